package ws

import (
	"context"
	"encoding/json"

	"github.com/ignatzorin/credit-transaction-service/internal/events"
)

// Forward подписывает хаб на события сделок: каждое событие уходит покупателю и продавцу.
func Forward(sub events.Subscriber, hub *Hub) {
	for _, eventType := range events.TransactionEvents() {
		sub.Subscribe(eventType, func(_ context.Context, e events.Event) error {
			for _, userID := range events.Participants(e) {
				if err := hub.BroadcastToUser(userID, e.Type, json.RawMessage(e.Payload)); err != nil {
					return err
				}
			}
			return nil
		})
	}
}
