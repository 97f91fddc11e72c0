package events

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Исходящие события жизненного цикла.
const (
	TypeTransactionCreated           = "TransactionCreated"
	TypeTransactionPaymentPending    = "TransactionPaymentPending"
	TypeTransactionPaymentCompleted  = "TransactionPaymentCompleted"
	TypeTransactionCreditTransferred = "TransactionCreditTransferred"
	TypeTransactionCompleted         = "TransactionCompleted"
	TypeTransactionCancelled         = "TransactionCancelled"
	TypeTransactionDisputed          = "TransactionDisputed"

	TypeDisputeCreated  = "DisputeCreated"
	TypeDisputeInReview = "DisputeInReview"
	TypeDisputeResolved = "DisputeResolved"
	TypeDisputeClosed   = "DisputeClosed"
)

// Входящие события от платёжного сервиса и сервиса кредитов.
const (
	TypePaymentCompleted        = "PaymentCompleted"
	TypePaymentFailed           = "PaymentFailed"
	TypeCreditTransferCompleted = "CreditTransferCompleted"
	TypeCreditTransferFailed    = "CreditTransferFailed"
)

// Event - конверт, в котором событие уходит в шину.
type Event struct {
	ID         string          `json:"id"`
	Type       string          `json:"type"`
	OccurredAt time.Time       `json:"occurred_at"`
	Payload    json.RawMessage `json:"payload"`
}

func NewEvent(eventType string, payload any) (Event, error) {
	raw, err := json.Marshal(payload)
	if err != nil {
		return Event{}, fmt.Errorf("events: marshal %s payload: %w", eventType, err)
	}
	return Event{
		ID:         uuid.NewString(),
		Type:       eventType,
		OccurredAt: time.Now().UTC(),
		Payload:    raw,
	}, nil
}

// Decode разбирает payload в out.
func (e Event) Decode(out any) error {
	if err := json.Unmarshal(e.Payload, out); err != nil {
		return fmt.Errorf("events: decode %s payload: %w", e.Type, err)
	}
	return nil
}

// TransactionPayload - данные событий Transaction*.
type TransactionPayload struct {
	TransactionID int64           `json:"transaction_id"`
	ListingID     int64           `json:"listing_id"`
	BuyerID       int64           `json:"buyer_id"`
	SellerID      int64           `json:"seller_id"`
	OldStatus     string          `json:"old_status,omitempty"`
	Status        string          `json:"status"`
	Reason        string          `json:"reason,omitempty"`
	TotalPrice    decimal.Decimal `json:"total_price"`
	Currency      string          `json:"currency"`
}

// DisputePayload - данные событий Dispute*.
type DisputePayload struct {
	DisputeID     int64  `json:"dispute_id"`
	TransactionID int64  `json:"transaction_id"`
	BuyerID       int64  `json:"buyer_id"`
	SellerID      int64  `json:"seller_id"`
	RaisedBy      int64  `json:"raised_by"`
	Status        string `json:"status"`
	Reason        string `json:"reason"`
	Resolution    string `json:"resolution,omitempty"`
}

// PaymentPayload - входящие PaymentCompleted / PaymentFailed.
type PaymentPayload struct {
	TransactionID int64 `json:"transaction_id"`
	PaymentID     int64 `json:"payment_id,omitempty"`
}

// CreditTransferPayload - входящие CreditTransferCompleted / CreditTransferFailed.
type CreditTransferPayload struct {
	TransactionID    int64 `json:"transaction_id"`
	CreditTransferID int64 `json:"credit_transfer_id,omitempty"`
}

// Participants возвращает пользователей, которым событие адресовано.
func Participants(e Event) []int64 {
	var p struct {
		BuyerID  int64 `json:"buyer_id"`
		SellerID int64 `json:"seller_id"`
	}
	if err := json.Unmarshal(e.Payload, &p); err != nil {
		return nil
	}
	var ids []int64
	if p.BuyerID != 0 {
		ids = append(ids, p.BuyerID)
	}
	if p.SellerID != 0 && p.SellerID != p.BuyerID {
		ids = append(ids, p.SellerID)
	}
	return ids
}

// TransactionEvents - типы событий, которые рассылаются участникам сделки.
func TransactionEvents() []string {
	return []string{
		TypeTransactionCreated,
		TypeTransactionPaymentPending,
		TypeTransactionPaymentCompleted,
		TypeTransactionCreditTransferred,
		TypeTransactionCompleted,
		TypeTransactionCancelled,
		TypeTransactionDisputed,
		TypeDisputeCreated,
		TypeDisputeInReview,
		TypeDisputeResolved,
		TypeDisputeClosed,
	}
}
