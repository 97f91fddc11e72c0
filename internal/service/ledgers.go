package service

import (
	"context"
	"errors"
	"time"

	"github.com/shopspring/decimal"

	domainrepo "github.com/ignatzorin/credit-transaction-service/internal/domain/repository"
	"github.com/ignatzorin/credit-transaction-service/internal/domain/valueobject"
	"github.com/ignatzorin/credit-transaction-service/internal/models"
	"github.com/ignatzorin/credit-transaction-service/internal/pkg/apperror"
)

// Подучёты сделки. Каждый проверяет свои инварианты при записи и не меняет статус самой сделки.

type escrowLedger struct {
	repo domainrepo.EscrowRepository
}

// Open удерживает полную сумму сделки.
func (l escrowLedger) Open(ctx context.Context, t *models.Transaction, now time.Time) (*models.EscrowRecord, error) {
	if !t.TotalPrice.IsPositive() {
		return nil, apperror.Validation("сумма escrow должна быть положительной")
	}
	e := &models.EscrowRecord{
		TransactionID: t.ID,
		AmountHeld:    t.TotalPrice,
		HeldAt:        now,
	}
	if err := l.repo.Create(ctx, e); err != nil {
		return nil, apperror.Database(err, "не удалось создать escrow")
	}
	return e, nil
}

func (l escrowLedger) Get(ctx context.Context, transactionID int64) (*models.EscrowRecord, error) {
	e, err := l.repo.GetByTransactionID(ctx, transactionID)
	if err != nil {
		return nil, ledgerLookupError(err, "escrow")
	}
	return e, nil
}

// Release освобождает escrow один раз. Повторный вызов ничего не меняет, причина остаётся первой.
func (l escrowLedger) Release(ctx context.Context, transactionID int64, reason string, now time.Time) (*models.EscrowRecord, error) {
	e, err := l.Get(ctx, transactionID)
	if err != nil {
		return nil, err
	}
	if e.IsReleased() {
		return e, nil
	}
	if err := l.repo.Release(ctx, transactionID, reason, now); err != nil {
		return nil, apperror.Database(err, "не удалось освободить escrow")
	}
	e.ReleasedAt = &now
	e.ReleaseReason = &reason
	return e, nil
}

type settlementLedger struct {
	repo domainrepo.SettlementRepository
}

// Open фиксирует разбивку суммы. seller_amount + platform_fee должно совпадать с total_price.
func (l settlementLedger) Open(ctx context.Context, t *models.Transaction, split valueobject.FeeSplit) (*models.SettlementRecord, error) {
	if !split.Balanced(t.TotalPrice) {
		return nil, apperror.Validation("seller_amount + platform_fee не равно total_price")
	}
	s := &models.SettlementRecord{
		TransactionID: t.ID,
		SellerAmount:  split.SellerAmount,
		PlatformFee:   split.PlatformFee,
		BuyerRefund:   decimal.Zero,
		Status:        valueobject.SettlementStatusPending,
	}
	if err := l.repo.Create(ctx, s); err != nil {
		return nil, apperror.Database(err, "не удалось создать settlement")
	}
	return s, nil
}

func (l settlementLedger) Get(ctx context.Context, transactionID int64) (*models.SettlementRecord, error) {
	s, err := l.repo.GetByTransactionID(ctx, transactionID)
	if err != nil {
		return nil, ledgerLookupError(err, "settlement")
	}
	return s, nil
}

// Complete отмечает выплату продавцу. Повторное завершение ничего не меняет.
func (l settlementLedger) Complete(ctx context.Context, transactionID int64, now time.Time) error {
	s, err := l.Get(ctx, transactionID)
	if err != nil {
		return err
	}
	if s.Status == valueobject.SettlementStatusCompleted {
		return nil
	}
	if err := l.repo.Update(ctx, transactionID, valueobject.SettlementStatusCompleted, s.BuyerRefund, &now); err != nil {
		return apperror.Database(err, "не удалось завершить settlement")
	}
	return nil
}

// Refund записывает возврат покупателю. Незавершённый settlement переводится в FAILED.
func (l settlementLedger) Refund(ctx context.Context, transactionID int64, refund, held decimal.Decimal) error {
	if refund.IsNegative() {
		return apperror.Validation("buyer_refund не может быть отрицательным")
	}
	if refund.GreaterThan(held) {
		return apperror.Validation("buyer_refund превышает удержанную сумму")
	}
	s, err := l.Get(ctx, transactionID)
	if err != nil {
		return err
	}
	status := s.Status
	if status == valueobject.SettlementStatusPending {
		status = valueobject.SettlementStatusFailed
	}
	if err := l.repo.Update(ctx, transactionID, status, refund, nil); err != nil {
		return apperror.Database(err, "не удалось обновить settlement")
	}
	return nil
}

type paymentLedger struct {
	repo domainrepo.PaymentRepository
}

// Link привязывает внешний платёж. Сумма платежа обязана совпадать с total_price.
func (l paymentLedger) Link(ctx context.Context, t *models.Transaction, paymentID int64, method *string, amount decimal.Decimal) (*models.PaymentLink, error) {
	if paymentID <= 0 {
		return nil, apperror.Validation("payment_id должен быть положительным")
	}
	if !amount.IsPositive() || !amount.Equal(t.TotalPrice) {
		return nil, apperror.Validation("сумма платежа должна совпадать с total_price")
	}
	p := &models.PaymentLink{
		TransactionID: t.ID,
		PaymentID:     paymentID,
		PaymentMethod: method,
		Status:        valueobject.PaymentStatusPending,
		Amount:        amount,
	}
	if err := l.repo.Create(ctx, p); err != nil {
		if errors.Is(err, domainrepo.ErrAlreadyExists) {
			return nil, apperror.Conflict("платёж для транзакции уже привязан")
		}
		return nil, apperror.Database(err, "не удалось привязать платёж")
	}
	return p, nil
}

// Find возвращает (nil, nil), если платёж ещё не привязан.
func (l paymentLedger) Find(ctx context.Context, transactionID int64) (*models.PaymentLink, error) {
	p, err := l.repo.GetByTransactionID(ctx, transactionID)
	if errors.Is(err, domainrepo.ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, apperror.Database(err, "не удалось получить платёж")
	}
	return p, nil
}

func (l paymentLedger) SetStatus(ctx context.Context, transactionID int64, status valueobject.PaymentStatus, paidAt *time.Time) error {
	if err := l.repo.UpdateStatus(ctx, transactionID, status, paidAt); err != nil {
		return apperror.Database(err, "не удалось обновить статус платежа")
	}
	return nil
}

type creditLedger struct {
	repo domainrepo.CreditRepository
}

// Open создаёт заготовку перевода кредитов; идентификатор перевода появится в колбэке.
func (l creditLedger) Open(ctx context.Context, t *models.Transaction) (*models.CreditLink, error) {
	c := &models.CreditLink{
		TransactionID: t.ID,
		Status:        valueobject.CreditStatusPending,
	}
	if err := l.repo.Create(ctx, c); err != nil {
		return nil, apperror.Database(err, "не удалось создать запись перевода кредитов")
	}
	return c, nil
}

func (l creditLedger) Get(ctx context.Context, transactionID int64) (*models.CreditLink, error) {
	c, err := l.repo.GetByTransactionID(ctx, transactionID)
	if err != nil {
		return nil, ledgerLookupError(err, "credit")
	}
	return c, nil
}

func (l creditLedger) SetStatus(ctx context.Context, transactionID int64, status valueobject.CreditStatus, creditTransferID int64, at *time.Time) error {
	if creditTransferID < 0 {
		return apperror.Validation("credit_transfer_id не может быть отрицательным")
	}
	if err := l.repo.UpdateStatus(ctx, transactionID, status, creditTransferID, at); err != nil {
		return apperror.Database(err, "не удалось обновить статус перевода кредитов")
	}
	return nil
}

type walletLedger struct {
	repo domainrepo.WalletRepository
}

func (l walletLedger) Open(ctx context.Context, t *models.Transaction) (*models.WalletReservation, error) {
	w := &models.WalletReservation{
		TransactionID: t.ID,
		Status:        valueobject.WalletStatusPending,
	}
	if err := l.repo.Create(ctx, w); err != nil {
		return nil, apperror.Database(err, "не удалось создать резерв кошелька")
	}
	return w, nil
}

func (l walletLedger) SetStatus(ctx context.Context, transactionID int64, status valueobject.WalletStatus, now time.Time) error {
	if err := l.repo.UpdateStatus(ctx, transactionID, status, now); err != nil {
		return apperror.Database(err, "не удалось обновить резерв кошелька")
	}
	return nil
}

type ledgers struct {
	escrow     escrowLedger
	settlement settlementLedger
	payment    paymentLedger
	credit     creditLedger
	wallet     walletLedger
}

func newLedgers(repos domainrepo.Repositories) ledgers {
	return ledgers{
		escrow:     escrowLedger{repo: repos.Escrows},
		settlement: settlementLedger{repo: repos.Settlements},
		payment:    paymentLedger{repo: repos.Payments},
		credit:     creditLedger{repo: repos.Credits},
		wallet:     walletLedger{repo: repos.Wallets},
	}
}

// Подучёты создаются вместе со сделкой, их отсутствие означает нарушенную целостность.
func ledgerLookupError(err error, name string) error {
	if errors.Is(err, domainrepo.ErrNotFound) {
		return apperror.New(apperror.ErrCodeInternal, "отсутствует запись "+name+" для транзакции")
	}
	return apperror.Database(err, "не удалось получить запись "+name)
}
