package repository

import (
	"context"
	"errors"
	"time"

	"github.com/shopspring/decimal"

	"github.com/ignatzorin/credit-transaction-service/internal/domain/valueobject"
	"github.com/ignatzorin/credit-transaction-service/internal/models"
)

var (
	ErrNotFound      = errors.New("entity not found")
	ErrAlreadyExists = errors.New("entity already exists")
)

type TransactionRepository interface {
	Create(ctx context.Context, t *models.Transaction) error
	GetByID(ctx context.Context, id int64) (*models.Transaction, error)
	// GetByIDForUpdate блокирует строку транзакции до конца единицы работы.
	GetByIDForUpdate(ctx context.Context, id int64) (*models.Transaction, error)
	UpdateStatus(ctx context.Context, id int64, status valueobject.TransactionStatus, at time.Time) error
	ListByBuyer(ctx context.Context, buyerID int64, limit, offset int) ([]models.Transaction, error)
	CountByBuyer(ctx context.Context, buyerID int64) (int, error)
	ListBySeller(ctx context.Context, sellerID int64, limit, offset int) ([]models.Transaction, error)
	CountBySeller(ctx context.Context, sellerID int64) (int, error)
	ListExpired(ctx context.Context, now time.Time, limit int) ([]models.Transaction, error)
	GetSummary(ctx context.Context, id int64) (*models.TransactionSummary, error)
}

type EscrowRepository interface {
	Create(ctx context.Context, e *models.EscrowRecord) error
	GetByTransactionID(ctx context.Context, transactionID int64) (*models.EscrowRecord, error)
	Release(ctx context.Context, transactionID int64, reason string, at time.Time) error
}

type SettlementRepository interface {
	Create(ctx context.Context, s *models.SettlementRecord) error
	GetByTransactionID(ctx context.Context, transactionID int64) (*models.SettlementRecord, error)
	Update(ctx context.Context, transactionID int64, status valueobject.SettlementStatus, buyerRefund decimal.Decimal, settledAt *time.Time) error
}

type PaymentRepository interface {
	Create(ctx context.Context, p *models.PaymentLink) error
	GetByTransactionID(ctx context.Context, transactionID int64) (*models.PaymentLink, error)
	UpdateStatus(ctx context.Context, transactionID int64, status valueobject.PaymentStatus, paidAt *time.Time) error
}

type CreditRepository interface {
	Create(ctx context.Context, c *models.CreditLink) error
	GetByTransactionID(ctx context.Context, transactionID int64) (*models.CreditLink, error)
	UpdateStatus(ctx context.Context, transactionID int64, status valueobject.CreditStatus, creditTransferID int64, transferredAt *time.Time) error
}

type WalletRepository interface {
	Create(ctx context.Context, w *models.WalletReservation) error
	GetByTransactionID(ctx context.Context, transactionID int64) (*models.WalletReservation, error)
	// UpdateStatus выставляет reserved_at для RESERVED и settled_at для SETTLED/REFUNDED.
	UpdateStatus(ctx context.Context, transactionID int64, status valueobject.WalletStatus, at time.Time) error
}

type HistoryRepository interface {
	Add(ctx context.Context, entry *models.HistoryEntry) error
	ListByTransaction(ctx context.Context, transactionID int64) ([]models.HistoryEntry, error)
}
