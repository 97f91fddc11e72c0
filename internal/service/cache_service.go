package service

import (
	"context"
	"sync"
	"time"

	"github.com/ignatzorin/credit-transaction-service/internal/goroutine"
	"github.com/ignatzorin/credit-transaction-service/internal/models"
)

// CacheService хранит сводки транзакций в памяти с TTL.
// Любая мутация сделки инвалидирует её запись после коммита.
type CacheService struct {
	mu      sync.RWMutex
	ttl     time.Duration
	entries map[int64]*cacheEntry
	now     func() time.Time
}

type cacheEntry struct {
	data      models.TransactionSummary
	expiresAt time.Time
}

// NewCacheService создаёт кэш. ttl <= 0 отключает кэширование.
func NewCacheService(ttl time.Duration) *CacheService {
	return &CacheService{
		ttl:     ttl,
		entries: make(map[int64]*cacheEntry),
		now:     time.Now,
	}
}

// Get возвращает копию закэшированной сводки.
func (cs *CacheService) Get(id int64) (*models.TransactionSummary, bool) {
	cs.mu.RLock()
	defer cs.mu.RUnlock()

	entry, exists := cs.entries[id]
	if !exists || cs.now().After(entry.expiresAt) {
		// просроченные записи удаляет cleanup
		return nil, false
	}

	summary := entry.data
	return &summary, true
}

func (cs *CacheService) Set(id int64, summary *models.TransactionSummary) {
	if cs.ttl <= 0 || summary == nil {
		return
	}

	cs.mu.Lock()
	defer cs.mu.Unlock()

	cs.entries[id] = &cacheEntry{
		data:      *summary,
		expiresAt: cs.now().Add(cs.ttl),
	}
}

func (cs *CacheService) Invalidate(id int64) {
	cs.mu.Lock()
	defer cs.mu.Unlock()

	delete(cs.entries, id)
}

// GetOrLoad возвращает сводку из кэша или загружает её через load.
func (cs *CacheService) GetOrLoad(
	ctx context.Context,
	id int64,
	load func(ctx context.Context) (*models.TransactionSummary, error),
) (*models.TransactionSummary, error) {
	if summary, found := cs.Get(id); found {
		return summary, nil
	}

	summary, err := load(ctx)
	if err != nil {
		return nil, err
	}

	cs.Set(id, summary)
	return summary, nil
}

// StartCleanup периодически удаляет просроченные записи до отмены ctx.
func (cs *CacheService) StartCleanup(ctx context.Context, interval time.Duration) {
	goroutine.Every(ctx, interval, func(context.Context) {
		cs.cleanup()
	})
}

func (cs *CacheService) cleanup() {
	cs.mu.Lock()
	defer cs.mu.Unlock()

	now := cs.now()
	for key, entry := range cs.entries {
		if now.After(entry.expiresAt) {
			delete(cs.entries, key)
		}
	}
}
