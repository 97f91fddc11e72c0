package models

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/ignatzorin/credit-transaction-service/internal/domain/valueobject"
)

// EscrowRecord - средства, удерживаемые под сделку до её завершения или отмены.
type EscrowRecord struct {
	ID            int64           `db:"id" json:"id"`
	TransactionID int64           `db:"transaction_id" json:"transaction_id"`
	AmountHeld    decimal.Decimal `db:"amount_held" json:"amount_held"`
	HeldAt        time.Time       `db:"held_at" json:"held_at"`
	ReleasedAt    *time.Time      `db:"released_at" json:"released_at,omitempty"`
	ReleaseReason *string         `db:"release_reason" json:"release_reason,omitempty"`
	CreatedAt     time.Time       `db:"created_at" json:"created_at"`
	UpdatedAt     time.Time       `db:"updated_at" json:"updated_at"`
}

func (e *EscrowRecord) IsReleased() bool {
	return e.ReleasedAt != nil
}

// SettlementRecord - разбивка суммы на выплату продавцу, комиссию и возврат покупателю.
type SettlementRecord struct {
	ID            int64                        `db:"id" json:"id"`
	TransactionID int64                        `db:"transaction_id" json:"transaction_id"`
	SellerAmount  decimal.Decimal              `db:"seller_amount" json:"seller_amount"`
	PlatformFee   decimal.Decimal              `db:"platform_fee" json:"platform_fee"`
	BuyerRefund   decimal.Decimal              `db:"buyer_refund" json:"buyer_refund"`
	Status        valueobject.SettlementStatus `db:"settlement_status" json:"settlement_status"`
	SettledAt     *time.Time                   `db:"settled_at" json:"settled_at,omitempty"`
	CreatedAt     time.Time                    `db:"created_at" json:"created_at"`
	UpdatedAt     time.Time                    `db:"updated_at" json:"updated_at"`
}

// PaymentLink связывает сделку с внешним платежом.
type PaymentLink struct {
	ID            int64                     `db:"id" json:"id"`
	TransactionID int64                     `db:"transaction_id" json:"transaction_id"`
	PaymentID     int64                     `db:"payment_id" json:"payment_id"`
	PaymentMethod *string                   `db:"payment_method" json:"payment_method,omitempty"`
	Status        valueobject.PaymentStatus `db:"payment_status" json:"payment_status"`
	Amount        decimal.Decimal           `db:"amount" json:"amount"`
	PaidAt        *time.Time                `db:"paid_at" json:"paid_at,omitempty"`
	CreatedAt     time.Time                 `db:"created_at" json:"created_at"`
	UpdatedAt     time.Time                 `db:"updated_at" json:"updated_at"`
}

// CreditLink связывает сделку с внешним переводом кредитов.
type CreditLink struct {
	ID               int64                    `db:"id" json:"id"`
	TransactionID    int64                    `db:"transaction_id" json:"transaction_id"`
	CreditTransferID int64                    `db:"credit_transfer_id" json:"credit_transfer_id"`
	Status           valueobject.CreditStatus `db:"credit_status" json:"credit_status"`
	TransferredAt    *time.Time               `db:"transferred_at" json:"transferred_at,omitempty"`
	CreatedAt        time.Time                `db:"created_at" json:"created_at"`
	UpdatedAt        time.Time                `db:"updated_at" json:"updated_at"`
}

// WalletReservation - заглушка под внешний кошелёк; жизненный цикл повторяет escrow.
type WalletReservation struct {
	ID                   int64                    `db:"id" json:"id"`
	TransactionID        int64                    `db:"transaction_id" json:"transaction_id"`
	BuyerWalletReserveID int64                    `db:"buyer_wallet_reserve_id" json:"buyer_wallet_reserve_id"`
	SellerSettlementID   int64                    `db:"seller_settlement_id" json:"seller_settlement_id"`
	Status               valueobject.WalletStatus `db:"wallet_status" json:"wallet_status"`
	ReservedAt           *time.Time               `db:"reserved_at" json:"reserved_at,omitempty"`
	SettledAt            *time.Time               `db:"settled_at" json:"settled_at,omitempty"`
	CreatedAt            time.Time                `db:"created_at" json:"created_at"`
	UpdatedAt            time.Time                `db:"updated_at" json:"updated_at"`
}
