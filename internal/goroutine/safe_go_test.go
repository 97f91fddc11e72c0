package goroutine

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

type recordingLogger struct {
	mu   sync.Mutex
	logs []string
}

func (l *recordingLogger) Errorf(format string, args ...interface{}) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.logs = append(l.logs, fmt.Sprintf(format, args...))
}

func (l *recordingLogger) count() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.logs)
}

func TestSafeGo_RecoversPanic(t *testing.T) {
	log := &recordingLogger{}
	rh := NewRecoveryHandler(log)

	rh.SafeGo(func() { panic("boom") })

	assert.Eventually(t, func() bool { return log.count() == 1 }, time.Second, 5*time.Millisecond)
}

func TestEvery_SurvivesPanickingTick(t *testing.T) {
	log := &recordingLogger{}
	rh := NewRecoveryHandler(log)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	var ticks atomic.Int32
	rh.Every(ctx, 5*time.Millisecond, func(context.Context) {
		if ticks.Add(1) == 1 {
			panic("first tick")
		}
	})

	assert.Eventually(t, func() bool { return ticks.Load() >= 3 }, time.Second, 5*time.Millisecond)
	assert.Equal(t, 1, log.count())
}
