package models

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/ignatzorin/credit-transaction-service/internal/domain/valueobject"
)

// Transaction - корень агрегата сделки по продаже кредитов.
type Transaction struct {
	ID             int64                         `db:"id" json:"id"`
	ListingID      int64                         `db:"listing_id" json:"listing_id"`
	BuyerID        int64                         `db:"buyer_id" json:"buyer_id"`
	SellerID       int64                         `db:"seller_id" json:"seller_id"`
	CreditAmount   decimal.Decimal               `db:"credit_amount" json:"credit_amount"`
	PricePerCredit decimal.Decimal               `db:"price_per_credit" json:"price_per_credit"`
	TotalPrice     decimal.Decimal               `db:"total_price" json:"total_price"`
	Currency       string                        `db:"currency" json:"currency"`
	Status         valueobject.TransactionStatus `db:"status" json:"status"`
	CreatedAt      time.Time                     `db:"created_at" json:"created_at"`
	UpdatedAt      time.Time                     `db:"updated_at" json:"updated_at"`
	ExpiresAt      *time.Time                    `db:"expires_at" json:"expires_at,omitempty"`
}

// IsParticipant сообщает, является ли пользователь покупателем или продавцом.
func (t *Transaction) IsParticipant(userID int64) bool {
	return userID == t.BuyerID || userID == t.SellerID
}

// IsExpired - транзакция в PENDING с истёкшим сроком.
func (t *Transaction) IsExpired(now time.Time) bool {
	return t.Status == valueobject.TransactionStatusPending && t.ExpiresAt != nil && t.ExpiresAt.Before(now)
}

// HistoryEntry - запись журнала смены статусов, только добавление.
type HistoryEntry struct {
	ID            int64                          `db:"id" json:"id"`
	TransactionID int64                          `db:"transaction_id" json:"transaction_id"`
	OldStatus     *valueobject.TransactionStatus `db:"old_status" json:"old_status,omitempty"`
	NewStatus     valueobject.TransactionStatus  `db:"new_status" json:"new_status"`
	ChangedBy     *int64                         `db:"changed_by" json:"changed_by,omitempty"`
	Reason        *string                        `db:"reason" json:"reason,omitempty"`
	ChangedAt     time.Time                      `db:"changed_at" json:"changed_at"`
}

// TransactionSummary - сводка по транзакции и статусам её подучётов (v_transaction_summary).
type TransactionSummary struct {
	ID               int64                          `db:"id" json:"id"`
	ListingID        int64                          `db:"listing_id" json:"listing_id"`
	BuyerID          int64                          `db:"buyer_id" json:"buyer_id"`
	SellerID         int64                          `db:"seller_id" json:"seller_id"`
	CreditAmount     decimal.Decimal                `db:"credit_amount" json:"credit_amount"`
	TotalPrice       decimal.Decimal                `db:"total_price" json:"total_price"`
	Currency         string                         `db:"currency" json:"currency"`
	Status           valueobject.TransactionStatus  `db:"status" json:"status"`
	PaymentStatus    *valueobject.PaymentStatus     `db:"payment_status" json:"payment_status,omitempty"`
	CreditStatus     *valueobject.CreditStatus      `db:"credit_status" json:"credit_status,omitempty"`
	WalletStatus     *valueobject.WalletStatus      `db:"wallet_status" json:"wallet_status,omitempty"`
	SettlementStatus *valueobject.SettlementStatus  `db:"settlement_status" json:"settlement_status,omitempty"`
	EscrowAmount     decimal.NullDecimal            `db:"escrow_amount" json:"escrow_amount"`
	EscrowReleasedAt *time.Time                     `db:"escrow_released_at" json:"escrow_released_at,omitempty"`
	SellerAmount     decimal.NullDecimal            `db:"seller_amount" json:"seller_amount"`
	PlatformFee      decimal.NullDecimal            `db:"platform_fee" json:"platform_fee"`
	BuyerRefund      decimal.NullDecimal            `db:"buyer_refund" json:"buyer_refund"`
	CreatedAt        time.Time                      `db:"created_at" json:"created_at"`
	UpdatedAt        time.Time                      `db:"updated_at" json:"updated_at"`
}

// CreateTransactionInput - параметры создания сделки.
type CreateTransactionInput struct {
	ListingID      int64
	BuyerID        int64
	SellerID       int64
	CreditAmount   decimal.Decimal
	PricePerCredit decimal.Decimal
	TotalPrice     decimal.Decimal
	Currency       string
}

// Page - страница результатов с общим количеством.
type Page[T any] struct {
	Items  []T `json:"items"`
	Total  int `json:"total"`
	Limit  int `json:"limit"`
	Offset int `json:"offset"`
}
