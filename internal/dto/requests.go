package dto

import (
	"github.com/shopspring/decimal"
)

// CreateTransactionRequest represents the request to open a credit sale
type CreateTransactionRequest struct {
	ListingID      int64           `json:"listing_id" binding:"required,gt=0"`
	BuyerID        int64           `json:"buyer_id" binding:"required,gt=0"`
	SellerID       int64           `json:"seller_id" binding:"required,gt=0"`
	CreditAmount   decimal.Decimal `json:"credit_amount"`
	PricePerCredit decimal.Decimal `json:"price_per_credit"`
	TotalPrice     decimal.Decimal `json:"total_price"`
	Currency       string          `json:"currency"`
}

// UpdateTransactionStatusRequest represents an explicit status change
type UpdateTransactionStatusRequest struct {
	Status    string  `json:"status" binding:"required"`
	Reason    *string `json:"reason"`
	ChangedBy *int64  `json:"changed_by"`
}

// CancelTransactionRequest represents the request to cancel a transaction
type CancelTransactionRequest struct {
	Reason    string `json:"reason" binding:"required"`
	ChangedBy *int64 `json:"changed_by"`
}

// InitiatePaymentRequest links an external payment to the transaction
type InitiatePaymentRequest struct {
	PaymentID     int64            `json:"payment_id" binding:"required,gt=0"`
	PaymentMethod *string          `json:"payment_method"`
	Amount        *decimal.Decimal `json:"amount"`
}

// PaymentCallbackRequest is sent by the payment service
type PaymentCallbackRequest struct {
	TransactionID int64 `json:"transaction_id" binding:"required,gt=0"`
	PaymentID     int64 `json:"payment_id"`
}

// CreditCallbackRequest is sent by the credit service
type CreditCallbackRequest struct {
	TransactionID    int64 `json:"transaction_id" binding:"required,gt=0"`
	CreditTransferID int64 `json:"credit_transfer_id"`
}

// CreateDisputeRequest represents the request to open a dispute
type CreateDisputeRequest struct {
	TransactionID int64   `json:"transaction_id" binding:"required,gt=0"`
	RaisedBy      int64   `json:"raised_by" binding:"required,gt=0"`
	Reason        string  `json:"reason" binding:"required"`
	Description   *string `json:"description"`
}

// ResolveDisputeRequest represents the request to resolve a dispute
type ResolveDisputeRequest struct {
	Resolution string `json:"resolution" binding:"required"`
	ResolvedBy int64  `json:"resolved_by" binding:"required,gt=0"`
}
