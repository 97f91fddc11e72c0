package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/shopspring/decimal"

	"github.com/ignatzorin/credit-transaction-service/internal/domain/valueobject"
	"github.com/ignatzorin/credit-transaction-service/internal/models"
	"github.com/ignatzorin/credit-transaction-service/internal/repository/common"
)

type SettlementRepository struct {
	db sqlx.ExtContext
}

func NewSettlementRepository(db sqlx.ExtContext) *SettlementRepository {
	return &SettlementRepository{db: db}
}

func (r *SettlementRepository) Create(ctx context.Context, s *models.SettlementRecord) error {
	err := r.db.QueryRowxContext(ctx, `
		INSERT INTO transaction_settlements (transaction_id, seller_amount, platform_fee, buyer_refund, settlement_status)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING id, created_at, updated_at
	`, s.TransactionID, s.SellerAmount, s.PlatformFee, s.BuyerRefund, s.Status).Scan(&s.ID, &s.CreatedAt, &s.UpdatedAt)
	if err != nil {
		return fmt.Errorf("settlement repository: create %w", common.MapError(err))
	}
	return nil
}

func (r *SettlementRepository) GetByTransactionID(ctx context.Context, transactionID int64) (*models.SettlementRecord, error) {
	return common.GetByField[models.SettlementRecord](ctx, r.db, "transaction_settlements", "transaction_id", transactionID)
}

func (r *SettlementRepository) Update(ctx context.Context, transactionID int64, status valueobject.SettlementStatus, buyerRefund decimal.Decimal, settledAt *time.Time) error {
	res, err := r.db.ExecContext(ctx, `
		UPDATE transaction_settlements
		SET settlement_status = $2, buyer_refund = $3, settled_at = COALESCE($4, settled_at), updated_at = NOW()
		WHERE transaction_id = $1
	`, transactionID, status, buyerRefund, settledAt)
	return common.ExpectAffected(res, err)
}
