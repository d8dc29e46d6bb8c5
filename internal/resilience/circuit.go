package resilience

import (
	"sync"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
)

// ErrCircuitOpen is returned when the upstream is considered down and calls
// are rejected without being attempted.
var ErrCircuitOpen = eris.New("resilience: circuit open")

// Breaker is a consecutive-failure circuit breaker for the registry API.
// After threshold consecutive failures it rejects calls for cooldown, then
// lets a single probe through.
type Breaker struct {
	threshold int
	cooldown  time.Duration

	mu       sync.Mutex
	failures int
	openedAt time.Time
	open     bool

	now func() time.Time
}

func NewBreaker(threshold int, cooldown time.Duration) *Breaker {
	if threshold <= 0 {
		threshold = 5
	}
	if cooldown <= 0 {
		cooldown = 30 * time.Second
	}
	return &Breaker{threshold: threshold, cooldown: cooldown, now: time.Now}
}

// Allow reports whether a call may proceed. During cooldown it returns
// ErrCircuitOpen; after cooldown it admits a probe.
func (b *Breaker) Allow() error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if !b.open {
		return nil
	}
	if b.now().Sub(b.openedAt) < b.cooldown {
		return ErrCircuitOpen
	}
	// Probe window: admit the call, stay open until it succeeds.
	return nil
}

// Record feeds a call outcome into the breaker. Only transient failures
// count toward opening it; a permanent error says the upstream is fine.
func (b *Breaker) Record(err error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if err == nil || !IsTransient(err) {
		if b.open {
			zap.L().Info("circuit closed after successful probe")
		}
		b.open = false
		b.failures = 0
		return
	}

	b.failures++
	b.openedAt = b.now()
	if !b.open && b.failures >= b.threshold {
		b.open = true
		zap.L().Warn("circuit opened",
			zap.Int("consecutive_failures", b.failures),
			zap.Duration("cooldown", b.cooldown),
		)
	}
}

// Open reports whether the breaker currently rejects calls.
func (b *Breaker) Open() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.open && b.now().Sub(b.openedAt) < b.cooldown
}
