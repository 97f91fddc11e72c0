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

type CreditRepository struct {
	db sqlx.ExtContext
}

func NewCreditRepository(db sqlx.ExtContext) *CreditRepository {
	return &CreditRepository{db: db}
}

func (r *CreditRepository) Create(ctx context.Context, c *models.CreditLink) error {
	err := r.db.QueryRowxContext(ctx, `
		INSERT INTO transaction_credits (transaction_id, credit_transfer_id, credit_status)
		VALUES ($1, $2, $3)
		RETURNING id, created_at, updated_at
	`, c.TransactionID, c.CreditTransferID, c.Status).Scan(&c.ID, &c.CreatedAt, &c.UpdatedAt)
	if err != nil {
		return fmt.Errorf("credit repository: create %w", common.MapError(err))
	}
	return nil
}

func (r *CreditRepository) GetByTransactionID(ctx context.Context, transactionID int64) (*models.CreditLink, error) {
	return common.GetByField[models.CreditLink](ctx, r.db, "transaction_credits", "transaction_id", transactionID)
}

// UpdateStatus при creditTransferID = 0 оставляет прежний идентификатор перевода.
func (r *CreditRepository) UpdateStatus(ctx context.Context, transactionID int64, status valueobject.CreditStatus, creditTransferID int64, transferredAt *time.Time) error {
	res, err := r.db.ExecContext(ctx, `
		UPDATE transaction_credits
		SET credit_status = $2,
			credit_transfer_id = CASE WHEN $3::bigint = 0 THEN credit_transfer_id ELSE $3::bigint END,
			transferred_at = COALESCE($4, transferred_at),
			updated_at = NOW()
		WHERE transaction_id = $1
	`, transactionID, status, creditTransferID, transferredAt)
	return common.ExpectAffected(res, err)
}
