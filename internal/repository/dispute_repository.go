package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/jmoiron/sqlx"

	domainrepo "github.com/ignatzorin/credit-transaction-service/internal/domain/repository"
	"github.com/ignatzorin/credit-transaction-service/internal/domain/valueobject"
	"github.com/ignatzorin/credit-transaction-service/internal/models"
	"github.com/ignatzorin/credit-transaction-service/internal/repository/common"
)

const disputesTable = "transaction_disputes"

type DisputeRepository struct {
	db sqlx.ExtContext
}

func NewDisputeRepository(db sqlx.ExtContext) *DisputeRepository {
	return &DisputeRepository{db: db}
}

// Create вставляет спор. Второй незакрытый спор по сделке отсекается частичным уникальным индексом.
func (r *DisputeRepository) Create(ctx context.Context, d *models.Dispute) error {
	query := `
		INSERT INTO transaction_disputes (transaction_id, raised_by, reason, description, status)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING id, created_at, updated_at
	`
	err := r.db.QueryRowxContext(ctx, query, d.TransactionID, d.RaisedBy, d.Reason, d.Description, d.Status).
		Scan(&d.ID, &d.CreatedAt, &d.UpdatedAt)
	if err != nil {
		return fmt.Errorf("dispute repository: create %w", common.MapError(err))
	}
	return nil
}

func (r *DisputeRepository) GetByID(ctx context.Context, id int64) (*models.Dispute, error) {
	return common.GetByField[models.Dispute](ctx, r.db, disputesTable, "id", id)
}

func (r *DisputeRepository) GetByIDForUpdate(ctx context.Context, id int64) (*models.Dispute, error) {
	return common.GetByFieldForUpdate[models.Dispute](ctx, r.db, disputesTable, "id", id)
}

func (r *DisputeRepository) GetLatestByTransaction(ctx context.Context, transactionID int64) (*models.Dispute, error) {
	return r.getOne(ctx, `
		SELECT * FROM transaction_disputes
		WHERE transaction_id = $1
		ORDER BY created_at DESC, id DESC LIMIT 1
	`, transactionID)
}

func (r *DisputeRepository) GetUnclosedByTransaction(ctx context.Context, transactionID int64) (*models.Dispute, error) {
	return r.getOne(ctx, `
		SELECT * FROM transaction_disputes
		WHERE transaction_id = $1 AND status <> $2
		ORDER BY created_at DESC, id DESC LIMIT 1
	`, transactionID, valueobject.DisputeStatusClosed)
}

func (r *DisputeRepository) Update(ctx context.Context, d *models.Dispute) error {
	err := r.db.QueryRowxContext(ctx, `
		UPDATE transaction_disputes
		SET status = $2, resolution = $3, resolved_by = $4, resolved_at = $5, updated_at = NOW()
		WHERE id = $1
		RETURNING updated_at
	`, d.ID, d.Status, d.Resolution, d.ResolvedBy, d.ResolvedAt).Scan(&d.UpdatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return domainrepo.ErrNotFound
		}
		return fmt.Errorf("dispute repository: update %w", common.MapError(err))
	}
	return nil
}

func (r *DisputeRepository) List(ctx context.Context, filter domainrepo.DisputeFilter) ([]models.Dispute, error) {
	where, args := disputeWhere(filter)
	args = append(args, filter.Limit, filter.Offset)
	query := fmt.Sprintf(`SELECT * FROM transaction_disputes %s ORDER BY created_at DESC, id DESC LIMIT $%d OFFSET $%d`,
		where, len(args)-1, len(args))

	disputes := []models.Dispute{}
	if err := sqlx.SelectContext(ctx, r.db, &disputes, query, args...); err != nil {
		return nil, fmt.Errorf("dispute repository: list %w", err)
	}
	return disputes, nil
}

func (r *DisputeRepository) Count(ctx context.Context, filter domainrepo.DisputeFilter) (int, error) {
	where, args := disputeWhere(filter)
	var count int
	if err := sqlx.GetContext(ctx, r.db, &count, `SELECT COUNT(*) FROM transaction_disputes `+where, args...); err != nil {
		return 0, fmt.Errorf("dispute repository: count %w", err)
	}
	return count, nil
}

func (r *DisputeRepository) getOne(ctx context.Context, query string, args ...interface{}) (*models.Dispute, error) {
	var d models.Dispute
	if err := sqlx.GetContext(ctx, r.db, &d, query, args...); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domainrepo.ErrNotFound
		}
		return nil, fmt.Errorf("dispute repository: get %w", err)
	}
	return &d, nil
}

func disputeWhere(filter domainrepo.DisputeFilter) (string, []interface{}) {
	var (
		conds []string
		args  []interface{}
	)
	if filter.RaisedBy != nil {
		args = append(args, *filter.RaisedBy)
		conds = append(conds, fmt.Sprintf("raised_by = $%d", len(args)))
	}
	if filter.Status != nil {
		args = append(args, *filter.Status)
		conds = append(conds, fmt.Sprintf("status = $%d", len(args)))
	}
	if filter.ActiveOnly {
		args = append(args, valueobject.DisputeStatusOpen, valueobject.DisputeStatusInReview)
		conds = append(conds, fmt.Sprintf("status IN ($%d, $%d)", len(args)-1, len(args)))
	}
	if len(conds) == 0 {
		return "", args
	}
	return "WHERE " + strings.Join(conds, " AND "), args
}
