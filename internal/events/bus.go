package events

import (
	"context"
	"sync"

	"github.com/ignatzorin/credit-transaction-service/internal/logger"
)

// Publisher отправляет событие в шину.
type Publisher interface {
	Publish(ctx context.Context, eventType string, payload any) error
}

// Handler обрабатывает одно входящее событие.
type Handler func(ctx context.Context, e Event) error

// Subscriber регистрирует обработчики по типу события.
type Subscriber interface {
	Subscribe(eventType string, h Handler)
}

type Bus interface {
	Publisher
	Subscriber
}

type handlerRegistry struct {
	mu       sync.RWMutex
	handlers map[string][]Handler
}

func newHandlerRegistry() *handlerRegistry {
	return &handlerRegistry{handlers: make(map[string][]Handler)}
}

func (r *handlerRegistry) add(eventType string, h Handler) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.handlers[eventType] = append(r.handlers[eventType], h)
}

func (r *handlerRegistry) types() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	types := make([]string, 0, len(r.handlers))
	for t := range r.handlers {
		types = append(types, t)
	}
	return types
}

// dispatch вызывает все обработчики типа. Ошибки логируются, следующий обработчик всё равно получает событие.
func (r *handlerRegistry) dispatch(ctx context.Context, e Event) {
	r.mu.RLock()
	handlers := append([]Handler(nil), r.handlers[e.Type]...)
	r.mu.RUnlock()

	for _, h := range handlers {
		if err := h(ctx, e); err != nil {
			logger.Log.WithFields(map[string]interface{}{
				"event_id":   e.ID,
				"event_type": e.Type,
				"error":      err.Error(),
			}).Warn("events: обработчик вернул ошибку")
		}
	}
}

// LocalBus - шина в пределах процесса, используется без Redis и в тестах.
// Доставка синхронная: Publish возвращается после всех обработчиков.
type LocalBus struct {
	registry *handlerRegistry
}

func NewLocalBus() *LocalBus {
	return &LocalBus{registry: newHandlerRegistry()}
}

func (b *LocalBus) Subscribe(eventType string, h Handler) {
	b.registry.add(eventType, h)
}

func (b *LocalBus) Publish(ctx context.Context, eventType string, payload any) error {
	e, err := NewEvent(eventType, payload)
	if err != nil {
		return err
	}
	b.registry.dispatch(ctx, e)
	return nil
}
