package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/ignatzorin/credit-transaction-service/internal/domain/valueobject"
	"github.com/ignatzorin/credit-transaction-service/internal/models"
	"github.com/ignatzorin/credit-transaction-service/internal/repository/common"
)

type PaymentRepository struct {
	db sqlx.ExtContext
}

func NewPaymentRepository(db sqlx.ExtContext) *PaymentRepository {
	return &PaymentRepository{db: db}
}

// Create привязывает внешний платёж к сделке. Повторная привязка даёт ErrAlreadyExists.
func (r *PaymentRepository) Create(ctx context.Context, p *models.PaymentLink) error {
	err := r.db.QueryRowxContext(ctx, `
		INSERT INTO transaction_payments (transaction_id, payment_id, payment_method, payment_status, amount)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING id, created_at, updated_at
	`, p.TransactionID, p.PaymentID, p.PaymentMethod, p.Status, p.Amount).Scan(&p.ID, &p.CreatedAt, &p.UpdatedAt)
	if err != nil {
		return fmt.Errorf("payment repository: create %w", common.MapError(err))
	}
	return nil
}

func (r *PaymentRepository) GetByTransactionID(ctx context.Context, transactionID int64) (*models.PaymentLink, error) {
	return common.GetByField[models.PaymentLink](ctx, r.db, "transaction_payments", "transaction_id", transactionID)
}

func (r *PaymentRepository) UpdateStatus(ctx context.Context, transactionID int64, status valueobject.PaymentStatus, paidAt *time.Time) error {
	res, err := r.db.ExecContext(ctx, `
		UPDATE transaction_payments
		SET payment_status = $2, paid_at = COALESCE($3, paid_at), updated_at = NOW()
		WHERE transaction_id = $1
	`, transactionID, status, paidAt)
	return common.ExpectAffected(res, err)
}
