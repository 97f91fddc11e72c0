package models

import (
	"time"

	"github.com/ignatzorin/credit-transaction-service/internal/domain/valueobject"
)

type Dispute struct {
	ID            int64                     `db:"id" json:"id"`
	TransactionID int64                     `db:"transaction_id" json:"transaction_id"`
	RaisedBy      int64                     `db:"raised_by" json:"raised_by"`
	Reason        string                    `db:"reason" json:"reason"`
	Description   *string                   `db:"description" json:"description,omitempty"`
	Status        valueobject.DisputeStatus `db:"status" json:"status"`
	Resolution    *string                   `db:"resolution" json:"resolution,omitempty"`
	ResolvedBy    *int64                    `db:"resolved_by" json:"resolved_by,omitempty"`
	CreatedAt     time.Time                 `db:"created_at" json:"created_at"`
	ResolvedAt    *time.Time                `db:"resolved_at" json:"resolved_at,omitempty"`
	UpdatedAt     time.Time                 `db:"updated_at" json:"updated_at"`
}

type CreateDisputeInput struct {
	TransactionID int64
	RaisedBy      int64
	Reason        string
	Description   *string
}
