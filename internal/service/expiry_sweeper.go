package service

import (
	"context"
	"time"

	"github.com/ignatzorin/credit-transaction-service/internal/goroutine"
	"github.com/ignatzorin/credit-transaction-service/internal/logger"
)

// ExpirySweeper периодически отменяет просроченные PENDING сделки.
type ExpirySweeper struct {
	transactions *TransactionService
	interval     time.Duration
}

func NewExpirySweeper(transactions *TransactionService, interval time.Duration) *ExpirySweeper {
	if interval <= 0 {
		interval = time.Minute
	}
	return &ExpirySweeper{transactions: transactions, interval: interval}
}

// Start запускает обход в фоне до отмены ctx.
func (w *ExpirySweeper) Start(ctx context.Context) {
	goroutine.Every(ctx, w.interval, w.sweep)
}

func (w *ExpirySweeper) sweep(ctx context.Context) {
	cancelled, err := w.transactions.ExpireTransactions(ctx)
	if err != nil {
		logger.Log.WithError(err).Error("expiry sweeper: обход завершился ошибкой")
		return
	}
	if cancelled > 0 {
		logger.Log.WithField("cancelled", cancelled).Info("expiry sweeper: просроченные транзакции отменены")
	}
}
