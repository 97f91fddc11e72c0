package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/ignatzorin/credit-transaction-service/internal/models"
	"github.com/ignatzorin/credit-transaction-service/internal/repository/common"
)

type EscrowRepository struct {
	db sqlx.ExtContext
}

func NewEscrowRepository(db sqlx.ExtContext) *EscrowRepository {
	return &EscrowRepository{db: db}
}

func (r *EscrowRepository) Create(ctx context.Context, e *models.EscrowRecord) error {
	err := r.db.QueryRowxContext(ctx, `
		INSERT INTO transaction_escrows (transaction_id, amount_held, held_at)
		VALUES ($1, $2, $3)
		RETURNING id, created_at, updated_at
	`, e.TransactionID, e.AmountHeld, e.HeldAt).Scan(&e.ID, &e.CreatedAt, &e.UpdatedAt)
	if err != nil {
		return fmt.Errorf("escrow repository: create %w", common.MapError(err))
	}
	return nil
}

func (r *EscrowRepository) GetByTransactionID(ctx context.Context, transactionID int64) (*models.EscrowRecord, error) {
	return common.GetByField[models.EscrowRecord](ctx, r.db, "transaction_escrows", "transaction_id", transactionID)
}

// Release не трогает уже освобождённый escrow: повторный вызов вернёт ErrNotFound.
func (r *EscrowRepository) Release(ctx context.Context, transactionID int64, reason string, at time.Time) error {
	res, err := r.db.ExecContext(ctx, `
		UPDATE transaction_escrows
		SET released_at = $2, release_reason = $3, updated_at = $2
		WHERE transaction_id = $1 AND released_at IS NULL
	`, transactionID, at, reason)
	return common.ExpectAffected(res, err)
}
