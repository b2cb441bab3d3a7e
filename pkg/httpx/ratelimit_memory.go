package httpx

import (
	"context"
	"sync"
	"time"

	"golang.org/x/time/rate"
)

// MemoryLimiter keeps one token bucket per profile and key in process memory.
type MemoryLimiter struct {
	limiters sync.Map // map[string]*rate.Limiter

	mu          sync.Mutex
	lastCleanup time.Time
	burstByKey  sync.Map // map[string]int, used by cleanup
}

func NewMemoryLimiter() *MemoryLimiter {
	return &MemoryLimiter{lastCleanup: time.Now()}
}

func (m *MemoryLimiter) Allow(_ context.Context, config RateLimitConfig, key string) (bool, time.Duration, error) {
	limiter := m.getLimiter(config, key)
	if limiter.Allow() {
		return true, 0, nil
	}

	// Peek at when the next token lands without consuming it.
	r := limiter.Reserve()
	delay := r.Delay()
	r.Cancel()
	return false, delay, nil
}

func (m *MemoryLimiter) getLimiter(config RateLimitConfig, key string) *rate.Limiter {
	k := config.Name + ":" + key
	if l, ok := m.limiters.Load(k); ok {
		return l.(*rate.Limiter)
	}

	burst := config.Burst
	if burst <= 0 {
		burst = config.RequestsPerWindow
	}
	every := rate.Limit(float64(config.RequestsPerWindow) / config.Window.Seconds())

	actual, _ := m.limiters.LoadOrStore(k, rate.NewLimiter(every, burst))
	m.burstByKey.Store(k, burst)
	m.maybeCleanup()
	return actual.(*rate.Limiter)
}

// maybeCleanup drops buckets that are full again, i.e. idle keys. Runs at
// most every five minutes.
func (m *MemoryLimiter) maybeCleanup() {
	m.mu.Lock()
	defer m.mu.Unlock()

	if time.Since(m.lastCleanup) < 5*time.Minute {
		return
	}
	m.lastCleanup = time.Now()

	m.limiters.Range(func(key, value any) bool {
		burst, _ := m.burstByKey.Load(key)
		b, _ := burst.(int)
		if value.(*rate.Limiter).Tokens() >= float64(b) {
			m.limiters.Delete(key)
			m.burstByKey.Delete(key)
		}
		return true
	})
}
