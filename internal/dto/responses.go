package dto

import (
	"time"

	"github.com/ignatzorin/credit-transaction-service/internal/models"
)

// ErrorResponse represents an error payload
type ErrorResponse struct {
	Error string `json:"error"`
	Code  string `json:"code,omitempty"`
}

// SuccessResponse represents a generic success payload
type SuccessResponse struct {
	Message string      `json:"message"`
	Data    interface{} `json:"data,omitempty"`
}

// TransactionResponse wraps a transaction with an optional message
type TransactionResponse struct {
	Message     string              `json:"message,omitempty"`
	Transaction *models.Transaction `json:"transaction"`
}

// HistoryResponse lists status changes of a transaction
type HistoryResponse struct {
	TransactionID int64                 `json:"transaction_id"`
	Entries       []models.HistoryEntry `json:"entries"`
}

// DisputeResponse wraps a dispute with an optional message
type DisputeResponse struct {
	Message string          `json:"message,omitempty"`
	Dispute *models.Dispute `json:"dispute"`
}

// HealthResponse describes dependency status
type HealthResponse struct {
	Status    string            `json:"status"`
	Checks    map[string]string `json:"checks"`
	Timestamp time.Time         `json:"timestamp"`
}
