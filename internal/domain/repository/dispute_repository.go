package repository

import (
	"context"

	"github.com/ignatzorin/credit-transaction-service/internal/domain/valueobject"
	"github.com/ignatzorin/credit-transaction-service/internal/models"
)

type DisputeRepository interface {
	Create(ctx context.Context, d *models.Dispute) error
	GetByID(ctx context.Context, id int64) (*models.Dispute, error)
	GetByIDForUpdate(ctx context.Context, id int64) (*models.Dispute, error)
	// GetLatestByTransaction возвращает последний по времени спор транзакции.
	GetLatestByTransaction(ctx context.Context, transactionID int64) (*models.Dispute, error)
	// GetUnclosedByTransaction возвращает спор в любом статусе, кроме CLOSED.
	GetUnclosedByTransaction(ctx context.Context, transactionID int64) (*models.Dispute, error)
	Update(ctx context.Context, d *models.Dispute) error

	List(ctx context.Context, filter DisputeFilter) ([]models.Dispute, error)
	Count(ctx context.Context, filter DisputeFilter) (int, error)
}

// DisputeFilter - фильтр выборки споров; пустые поля не ограничивают выборку.
type DisputeFilter struct {
	RaisedBy   *int64
	Status     *valueobject.DisputeStatus
	ActiveOnly bool
	Limit      int
	Offset     int
}
