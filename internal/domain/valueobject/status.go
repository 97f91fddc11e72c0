package valueobject

import "github.com/ignatzorin/credit-transaction-service/internal/pkg/apperror"

type TransactionStatus string

const (
	TransactionStatusPending           TransactionStatus = "PENDING"
	TransactionStatusPaymentPending    TransactionStatus = "PAYMENT_PENDING"
	TransactionStatusPaymentCompleted  TransactionStatus = "PAYMENT_COMPLETED"
	TransactionStatusCreditTransferred TransactionStatus = "CREDIT_TRANSFERRED"
	TransactionStatusCompleted         TransactionStatus = "COMPLETED"
	TransactionStatusCancelled         TransactionStatus = "CANCELLED"
	TransactionStatusDisputed          TransactionStatus = "DISPUTED"
)

// transactionTransitions - единственная таблица допустимых переходов транзакции.
var transactionTransitions = map[TransactionStatus][]TransactionStatus{
	TransactionStatusPending:           {TransactionStatusPaymentPending, TransactionStatusCancelled, TransactionStatusDisputed},
	TransactionStatusPaymentPending:    {TransactionStatusPaymentCompleted, TransactionStatusCancelled, TransactionStatusDisputed},
	TransactionStatusPaymentCompleted:  {TransactionStatusCreditTransferred, TransactionStatusCancelled, TransactionStatusDisputed},
	TransactionStatusCreditTransferred: {TransactionStatusCompleted, TransactionStatusCancelled, TransactionStatusDisputed},
	TransactionStatusCompleted:         {TransactionStatusDisputed},
	TransactionStatusCancelled:         {},
	TransactionStatusDisputed:          {TransactionStatusCompleted, TransactionStatusCancelled},
}

// AllTransactionStatuses перечисляет статусы в порядке нормального жизненного цикла.
func AllTransactionStatuses() []TransactionStatus {
	return []TransactionStatus{
		TransactionStatusPending,
		TransactionStatusPaymentPending,
		TransactionStatusPaymentCompleted,
		TransactionStatusCreditTransferred,
		TransactionStatusCompleted,
		TransactionStatusCancelled,
		TransactionStatusDisputed,
	}
}

func (s TransactionStatus) IsValid() bool {
	_, ok := transactionTransitions[s]
	return ok
}

// IsTerminal сообщает, что из статуса нет исходящих переходов.
func (s TransactionStatus) IsTerminal() bool {
	return s.IsValid() && len(transactionTransitions[s]) == 0
}

func (s TransactionStatus) CanTransitionTo(newStatus TransactionStatus) bool {
	allowed, ok := transactionTransitions[s]
	if !ok {
		return false
	}

	for _, status := range allowed {
		if status == newStatus {
			return true
		}
	}
	return false
}

// AllowedTransitions возвращает копию списка допустимых следующих статусов.
func (s TransactionStatus) AllowedTransitions() []TransactionStatus {
	allowed := transactionTransitions[s]
	out := make([]TransactionStatus, len(allowed))
	copy(out, allowed)
	return out
}

func NewTransactionStatus(status string) (TransactionStatus, error) {
	s := TransactionStatus(status)
	if !s.IsValid() {
		return "", apperror.New(apperror.ErrCodeValidation, "некорректный статус транзакции")
	}
	return s, nil
}

type PaymentStatus string

const (
	PaymentStatusPending   PaymentStatus = "PENDING"
	PaymentStatusCompleted PaymentStatus = "COMPLETED"
	PaymentStatusFailed    PaymentStatus = "FAILED"
	PaymentStatusRefunded  PaymentStatus = "REFUNDED"
)

type CreditStatus string

const (
	CreditStatusPending     CreditStatus = "PENDING"
	CreditStatusTransferred CreditStatus = "TRANSFERRED"
	CreditStatusFailed      CreditStatus = "FAILED"
)

type WalletStatus string

const (
	WalletStatusPending  WalletStatus = "PENDING"
	WalletStatusReserved WalletStatus = "RESERVED"
	WalletStatusSettled  WalletStatus = "SETTLED"
	WalletStatusRefunded WalletStatus = "REFUNDED"
)

type SettlementStatus string

const (
	SettlementStatusPending   SettlementStatus = "PENDING"
	SettlementStatusCompleted SettlementStatus = "COMPLETED"
	SettlementStatusFailed    SettlementStatus = "FAILED"
)

type DisputeStatus string

const (
	DisputeStatusOpen     DisputeStatus = "OPEN"
	DisputeStatusInReview DisputeStatus = "IN_REVIEW"
	DisputeStatusResolved DisputeStatus = "RESOLVED"
	DisputeStatusClosed   DisputeStatus = "CLOSED"
)

var disputeTransitions = map[DisputeStatus][]DisputeStatus{
	DisputeStatusOpen:     {DisputeStatusInReview, DisputeStatusResolved, DisputeStatusClosed},
	DisputeStatusInReview: {DisputeStatusResolved, DisputeStatusClosed},
	DisputeStatusResolved: {DisputeStatusClosed},
	DisputeStatusClosed:   {},
}

func (s DisputeStatus) IsValid() bool {
	_, ok := disputeTransitions[s]
	return ok
}

// IsActive - спор ещё рассматривается (OPEN или IN_REVIEW).
func (s DisputeStatus) IsActive() bool {
	return s == DisputeStatusOpen || s == DisputeStatusInReview
}

func (s DisputeStatus) CanTransitionTo(newStatus DisputeStatus) bool {
	for _, status := range disputeTransitions[s] {
		if status == newStatus {
			return true
		}
	}
	return false
}

func NewDisputeStatus(status string) (DisputeStatus, error) {
	s := DisputeStatus(status)
	if !s.IsValid() {
		return "", apperror.New(apperror.ErrCodeValidation, "некорректный статус спора")
	}
	return s, nil
}
