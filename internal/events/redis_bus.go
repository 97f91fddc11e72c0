package events

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/redis/go-redis/v9"

	"github.com/ignatzorin/credit-transaction-service/internal/logger"
)

// Connect создаёт клиента Redis по URL (redis://...) или по адресу host:port.
func Connect(_ context.Context, redisURL string) (*redis.Client, error) {
	if strings.HasPrefix(redisURL, "redis://") || strings.HasPrefix(redisURL, "rediss://") {
		opt, err := redis.ParseURL(redisURL)
		if err != nil {
			return nil, fmt.Errorf("parse redis url: %w", err)
		}
		return redis.NewClient(opt), nil
	}
	return redis.NewClient(&redis.Options{Addr: redisURL}), nil
}

// RedisBus публикует события в каналы Redis вида "<prefix>:<type>".
type RedisBus struct {
	client   *redis.Client
	prefix   string
	registry *handlerRegistry
}

func NewRedisBus(client *redis.Client, prefix string) *RedisBus {
	return &RedisBus{
		client:   client,
		prefix:   prefix,
		registry: newHandlerRegistry(),
	}
}

func (b *RedisBus) channel(eventType string) string {
	return b.prefix + ":" + eventType
}

func (b *RedisBus) Publish(ctx context.Context, eventType string, payload any) error {
	e, err := NewEvent(eventType, payload)
	if err != nil {
		return err
	}
	data, err := json.Marshal(e)
	if err != nil {
		return fmt.Errorf("events: marshal envelope: %w", err)
	}
	if err := b.client.Publish(ctx, b.channel(eventType), data).Err(); err != nil {
		return fmt.Errorf("events: publish %s: %w", eventType, err)
	}
	return nil
}

// Subscribe регистрирует обработчик. Вызывать до Run.
func (b *RedisBus) Subscribe(eventType string, h Handler) {
	b.registry.add(eventType, h)
}

// Run подписывается на каналы зарегистрированных типов и доставляет сообщения до отмены ctx.
func (b *RedisBus) Run(ctx context.Context) error {
	types := b.registry.types()
	if len(types) == 0 {
		<-ctx.Done()
		return nil
	}

	channels := make([]string, 0, len(types))
	for _, t := range types {
		channels = append(channels, b.channel(t))
	}

	pubsub := b.client.Subscribe(ctx, channels...)
	defer pubsub.Close()

	if _, err := pubsub.Receive(ctx); err != nil {
		return fmt.Errorf("events: subscribe: %w", err)
	}
	logger.Log.WithField("channels", channels).Info("events: подписка на Redis активна")

	msgs := pubsub.Channel()
	for {
		select {
		case <-ctx.Done():
			return nil
		case msg, ok := <-msgs:
			if !ok {
				return nil
			}
			var e Event
			if err := json.Unmarshal([]byte(msg.Payload), &e); err != nil {
				logger.Log.WithFields(map[string]interface{}{
					"channel": msg.Channel,
					"error":   err.Error(),
				}).Warn("events: не удалось разобрать сообщение")
				continue
			}
			b.registry.dispatch(ctx, e)
		}
	}
}
