package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"

	domainrepo "github.com/ignatzorin/credit-transaction-service/internal/domain/repository"
	"github.com/ignatzorin/credit-transaction-service/internal/domain/valueobject"
	"github.com/ignatzorin/credit-transaction-service/internal/models"
	"github.com/ignatzorin/credit-transaction-service/internal/repository/common"
)

const transactionsTable = "transactions"

type TransactionRepository struct {
	db sqlx.ExtContext
}

func NewTransactionRepository(db sqlx.ExtContext) *TransactionRepository {
	return &TransactionRepository{db: db}
}

// Create сохраняет транзакцию и заполняет ID и временные метки.
func (r *TransactionRepository) Create(ctx context.Context, t *models.Transaction) error {
	query := `
		INSERT INTO transactions
			(listing_id, buyer_id, seller_id, credit_amount, price_per_credit, total_price, currency, status, expires_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		RETURNING id, created_at, updated_at
	`
	err := r.db.QueryRowxContext(ctx, query,
		t.ListingID, t.BuyerID, t.SellerID, t.CreditAmount, t.PricePerCredit, t.TotalPrice, t.Currency, t.Status, t.ExpiresAt,
	).Scan(&t.ID, &t.CreatedAt, &t.UpdatedAt)
	if err != nil {
		return fmt.Errorf("transaction repository: create %w", common.MapError(err))
	}
	return nil
}

func (r *TransactionRepository) GetByID(ctx context.Context, id int64) (*models.Transaction, error) {
	return common.GetByField[models.Transaction](ctx, r.db, transactionsTable, "id", id)
}

// GetByIDForUpdate берёт строковую блокировку: все переходы одной сделки линеаризуются на ней.
func (r *TransactionRepository) GetByIDForUpdate(ctx context.Context, id int64) (*models.Transaction, error) {
	return common.GetByFieldForUpdate[models.Transaction](ctx, r.db, transactionsTable, "id", id)
}

func (r *TransactionRepository) UpdateStatus(ctx context.Context, id int64, status valueobject.TransactionStatus, at time.Time) error {
	res, err := r.db.ExecContext(ctx, `UPDATE transactions SET status = $2, updated_at = $3 WHERE id = $1`, id, status, at)
	return common.ExpectAffected(res, err)
}

func (r *TransactionRepository) ListByBuyer(ctx context.Context, buyerID int64, limit, offset int) ([]models.Transaction, error) {
	return r.listBy(ctx, "buyer_id", buyerID, limit, offset)
}

func (r *TransactionRepository) CountByBuyer(ctx context.Context, buyerID int64) (int, error) {
	return r.countBy(ctx, "buyer_id", buyerID)
}

func (r *TransactionRepository) ListBySeller(ctx context.Context, sellerID int64, limit, offset int) ([]models.Transaction, error) {
	return r.listBy(ctx, "seller_id", sellerID, limit, offset)
}

func (r *TransactionRepository) CountBySeller(ctx context.Context, sellerID int64) (int, error) {
	return r.countBy(ctx, "seller_id", sellerID)
}

// ListExpired возвращает PENDING транзакции с истёкшим expires_at, старые первыми.
func (r *TransactionRepository) ListExpired(ctx context.Context, now time.Time, limit int) ([]models.Transaction, error) {
	transactions := []models.Transaction{}
	err := sqlx.SelectContext(ctx, r.db, &transactions, `
		SELECT * FROM transactions
		WHERE status = $1 AND expires_at IS NOT NULL AND expires_at < $2
		ORDER BY expires_at ASC LIMIT $3
	`, valueobject.TransactionStatusPending, now, limit)
	if err != nil {
		return nil, fmt.Errorf("transaction repository: list expired %w", err)
	}
	return transactions, nil
}

func (r *TransactionRepository) GetSummary(ctx context.Context, id int64) (*models.TransactionSummary, error) {
	var summary models.TransactionSummary
	err := sqlx.GetContext(ctx, r.db, &summary, `SELECT * FROM v_transaction_summary WHERE id = $1`, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domainrepo.ErrNotFound
		}
		return nil, fmt.Errorf("transaction repository: get summary %w", err)
	}
	return &summary, nil
}

// listBy и countBy принимают только имена колонок из этого файла, не пользовательский ввод.
func (r *TransactionRepository) listBy(ctx context.Context, column string, value int64, limit, offset int) ([]models.Transaction, error) {
	transactions := []models.Transaction{}
	query := fmt.Sprintf(`SELECT * FROM transactions WHERE %s = $1 ORDER BY created_at DESC, id DESC LIMIT $2 OFFSET $3`, column)
	if err := sqlx.SelectContext(ctx, r.db, &transactions, query, value, limit, offset); err != nil {
		return nil, fmt.Errorf("transaction repository: list by %s %w", column, err)
	}
	return transactions, nil
}

func (r *TransactionRepository) countBy(ctx context.Context, column string, value int64) (int, error) {
	var count int
	query := fmt.Sprintf(`SELECT COUNT(*) FROM transactions WHERE %s = $1`, column)
	if err := sqlx.GetContext(ctx, r.db, &count, query, value); err != nil {
		return 0, fmt.Errorf("transaction repository: count by %s %w", column, err)
	}
	return count, nil
}
