package repository

import (
	"context"
	"fmt"

	"github.com/jmoiron/sqlx"

	"github.com/ignatzorin/credit-transaction-service/internal/models"
	"github.com/ignatzorin/credit-transaction-service/internal/repository/common"
)

// HistoryRepository - журнал смен статуса, только вставка.
type HistoryRepository struct {
	db sqlx.ExtContext
}

func NewHistoryRepository(db sqlx.ExtContext) *HistoryRepository {
	return &HistoryRepository{db: db}
}

func (r *HistoryRepository) Add(ctx context.Context, entry *models.HistoryEntry) error {
	err := r.db.QueryRowxContext(ctx, `
		INSERT INTO transaction_history (transaction_id, old_status, new_status, changed_by, reason, changed_at)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING id
	`, entry.TransactionID, entry.OldStatus, entry.NewStatus, entry.ChangedBy, entry.Reason, entry.ChangedAt).Scan(&entry.ID)
	if err != nil {
		return fmt.Errorf("history repository: add %w", common.MapError(err))
	}
	return nil
}

func (r *HistoryRepository) ListByTransaction(ctx context.Context, transactionID int64) ([]models.HistoryEntry, error) {
	history := []models.HistoryEntry{}
	err := sqlx.SelectContext(ctx, r.db, &history, `
		SELECT * FROM transaction_history WHERE transaction_id = $1 ORDER BY changed_at ASC, id ASC
	`, transactionID)
	if err != nil {
		return nil, fmt.Errorf("history repository: list %w", err)
	}
	return history, nil
}
