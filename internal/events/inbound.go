package events

import (
	"context"
	"fmt"

	"github.com/ignatzorin/credit-transaction-service/internal/models"
)

// CallbackHandler - идемпотентные обработчики обратных вызовов платёжного сервиса и сервиса кредитов.
type CallbackHandler interface {
	HandlePaymentCompleted(ctx context.Context, transactionID int64) (*models.Transaction, error)
	HandlePaymentFailed(ctx context.Context, transactionID int64) (*models.Transaction, error)
	HandleCreditTransferred(ctx context.Context, transactionID, creditTransferID int64) (*models.Transaction, error)
	HandleCreditTransferFailed(ctx context.Context, transactionID int64) (*models.Transaction, error)
}

// RegisterCallbacks подписывает обработчики на входящие события.
func RegisterCallbacks(sub Subscriber, h CallbackHandler) {
	sub.Subscribe(TypePaymentCompleted, func(ctx context.Context, e Event) error {
		id, err := paymentTransactionID(e)
		if err != nil {
			return err
		}
		_, err = h.HandlePaymentCompleted(ctx, id)
		return err
	})
	sub.Subscribe(TypePaymentFailed, func(ctx context.Context, e Event) error {
		id, err := paymentTransactionID(e)
		if err != nil {
			return err
		}
		_, err = h.HandlePaymentFailed(ctx, id)
		return err
	})
	sub.Subscribe(TypeCreditTransferCompleted, func(ctx context.Context, e Event) error {
		var p CreditTransferPayload
		if err := e.Decode(&p); err != nil {
			return err
		}
		if p.TransactionID <= 0 {
			return fmt.Errorf("events: %s без transaction_id", e.Type)
		}
		_, err := h.HandleCreditTransferred(ctx, p.TransactionID, p.CreditTransferID)
		return err
	})
	sub.Subscribe(TypeCreditTransferFailed, func(ctx context.Context, e Event) error {
		var p CreditTransferPayload
		if err := e.Decode(&p); err != nil {
			return err
		}
		if p.TransactionID <= 0 {
			return fmt.Errorf("events: %s без transaction_id", e.Type)
		}
		_, err := h.HandleCreditTransferFailed(ctx, p.TransactionID)
		return err
	})
}

func paymentTransactionID(e Event) (int64, error) {
	var p PaymentPayload
	if err := e.Decode(&p); err != nil {
		return 0, err
	}
	if p.TransactionID <= 0 {
		return 0, fmt.Errorf("events: %s без transaction_id", e.Type)
	}
	return p.TransactionID, nil
}
