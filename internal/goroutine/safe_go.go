package goroutine

import (
	"context"
	"runtime/debug"
	"time"

	"github.com/ignatzorin/credit-transaction-service/internal/logger"
)

// Logger интерфейс для логирования ошибок
type Logger interface {
	Errorf(format string, args ...interface{})
}

// RecoveryHandler обрабатывает panic в горутинах
type RecoveryHandler struct {
	logger Logger
}

// NewRecoveryHandler создает новый обработчик
func NewRecoveryHandler(logger Logger) *RecoveryHandler {
	return &RecoveryHandler{logger: logger}
}

// SafeGo запускает горутину с обработкой panic
func (rh *RecoveryHandler) SafeGo(fn func()) {
	go func() {
		defer rh.recover("")
		fn()
	}()
}

// SafeGoWithContext запускает горутину с контекстом и обработкой panic
func (rh *RecoveryHandler) SafeGoWithContext(ctx context.Context, fn func(context.Context)) {
	go func() {
		defer rh.recover(" (with context)")
		fn(ctx)
	}()
}

// Every вызывает fn с периодом interval, пока не отменён ctx.
// Паника внутри fn гасится для одного тика, цикл продолжает работать.
func (rh *RecoveryHandler) Every(ctx context.Context, interval time.Duration, fn func(context.Context)) {
	rh.SafeGoWithContext(ctx, func(ctx context.Context) {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				rh.runTick(ctx, fn)
			}
		}
	})
}

func (rh *RecoveryHandler) runTick(ctx context.Context, fn func(context.Context)) {
	defer rh.recover(" (periodic)")
	fn(ctx)
}

func (rh *RecoveryHandler) recover(where string) {
	if r := recover(); r != nil {
		rh.logger.Errorf("Panic in goroutine%s: %v\nStack trace:\n%s", where, r, debug.Stack())
	}
}

// DefaultRecoveryHandler - глобальный обработчик, пишет в общий логгер сервиса
var DefaultRecoveryHandler = NewRecoveryHandler(logger.Log)

// SafeGo - упрощенная функция для запуска безопасной горутины
func SafeGo(fn func()) {
	DefaultRecoveryHandler.SafeGo(fn)
}

// SafeGoWithContext - упрощенная функция для запуска безопасной горутины с контекстом
func SafeGoWithContext(ctx context.Context, fn func(context.Context)) {
	DefaultRecoveryHandler.SafeGoWithContext(ctx, fn)
}

// Every - периодический запуск fn на глобальном обработчике
func Every(ctx context.Context, interval time.Duration, fn func(context.Context)) {
	DefaultRecoveryHandler.Every(ctx, interval, fn)
}
