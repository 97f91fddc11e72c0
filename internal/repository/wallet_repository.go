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

type WalletRepository struct {
	db sqlx.ExtContext
}

func NewWalletRepository(db sqlx.ExtContext) *WalletRepository {
	return &WalletRepository{db: db}
}

func (r *WalletRepository) Create(ctx context.Context, w *models.WalletReservation) error {
	err := r.db.QueryRowxContext(ctx, `
		INSERT INTO transaction_wallets (transaction_id, buyer_wallet_reserve_id, seller_settlement_id, wallet_status)
		VALUES ($1, $2, $3, $4)
		RETURNING id, created_at, updated_at
	`, w.TransactionID, w.BuyerWalletReserveID, w.SellerSettlementID, w.Status).Scan(&w.ID, &w.CreatedAt, &w.UpdatedAt)
	if err != nil {
		return fmt.Errorf("wallet repository: create %w", common.MapError(err))
	}
	return nil
}

func (r *WalletRepository) GetByTransactionID(ctx context.Context, transactionID int64) (*models.WalletReservation, error) {
	return common.GetByField[models.WalletReservation](ctx, r.db, "transaction_wallets", "transaction_id", transactionID)
}

func (r *WalletRepository) UpdateStatus(ctx context.Context, transactionID int64, status valueobject.WalletStatus, at time.Time) error {
	query := `UPDATE transaction_wallets SET wallet_status = $2, updated_at = $3 WHERE transaction_id = $1`
	switch status {
	case valueobject.WalletStatusReserved:
		query = `UPDATE transaction_wallets SET wallet_status = $2, reserved_at = $3, updated_at = $3 WHERE transaction_id = $1`
	case valueobject.WalletStatusSettled, valueobject.WalletStatusRefunded:
		query = `UPDATE transaction_wallets SET wallet_status = $2, settled_at = $3, updated_at = $3 WHERE transaction_id = $1`
	}
	res, err := r.db.ExecContext(ctx, query, transactionID, status, at)
	return common.ExpectAffected(res, err)
}
