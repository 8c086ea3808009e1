package breaker

import (
	"sync"
	"time"

	"github.com/spanishfactoria/textocorrector/internal/model"
	logx "github.com/spanishfactoria/textocorrector/pkg/logger"
)

// State is the lifecycle position of one service's breaker.
type State string

const (
	// StateClosed lets calls through and counts failures.
	StateClosed State = "CLOSED"
	// StateOpen refuses calls until the recovery timeout elapses.
	StateOpen State = "OPEN"
	// StateHalfOpen lets probe calls through after the recovery timeout.
	StateHalfOpen State = "HALF_OPEN"
)

type entry struct {
	failureCount    int
	lastFailureTime time.Time
	state           State
}

// Breaker tracks failure state independently per named service. Services are
// registered lazily on first use, starting CLOSED with zero failures.
//
// HALF_OPEN deliberately admits every concurrent caller rather than a single
// probe; one success closes the circuit for all of them.
type Breaker struct {
	mu               sync.Mutex
	services         map[string]*entry
	failureThreshold int
	recoveryTimeout  time.Duration
	now              func() time.Time
}

// New builds a Breaker from config, falling back to defaults for
// non-positive values.
func New(cfg model.BreakerConfig) *Breaker {
	threshold := cfg.FailureThreshold
	if threshold <= 0 {
		threshold = 3
	}
	recovery := time.Duration(cfg.RecoveryTimeout) * time.Second
	if recovery <= 0 {
		recovery = 60 * time.Second
	}
	return &Breaker{
		services:         make(map[string]*entry),
		failureThreshold: threshold,
		recoveryTimeout:  recovery,
		now:              time.Now,
	}
}

// CanExecute reports whether a call to service should proceed. An OPEN
// circuit transitions to HALF_OPEN once the recovery timeout has elapsed
// since the last recorded failure.
func (b *Breaker) CanExecute(service string) bool {
	b.mu.Lock()
	defer b.mu.Unlock()

	e := b.entry(service)
	switch e.state {
	case StateClosed, StateHalfOpen:
		return true
	case StateOpen:
		if b.now().Sub(e.lastFailureTime) >= b.recoveryTimeout {
			e.state = StateHalfOpen
			logx.Info().Str("service", service).Msg("circuit breaker half-open, probing recovery")
			return true
		}
		return false
	}
	return true
}

// RecordSuccess resets the failure count and closes the circuit.
func (b *Breaker) RecordSuccess(service string) {
	b.mu.Lock()
	defer b.mu.Unlock()

	e := b.entry(service)
	if e.state == StateHalfOpen {
		logx.Info().Str("service", service).Msg("circuit breaker recovered, closing")
	}
	e.failureCount = 0
	e.state = StateClosed
}

// RecordFailure increments the failure count, stamps the failure time and
// opens the circuit once the threshold is reached. A failure during
// HALF_OPEN reopens immediately.
func (b *Breaker) RecordFailure(service string) {
	b.mu.Lock()
	defer b.mu.Unlock()

	e := b.entry(service)
	e.failureCount++
	e.lastFailureTime = b.now()

	if e.state == StateHalfOpen || e.failureCount >= b.failureThreshold {
		if e.state != StateOpen {
			logx.Warn().
				Str("service", service).
				Int("failures", e.failureCount).
				Msg("circuit breaker opened")
		}
		e.state = StateOpen
	}
}

// StateOf returns the current state of service without side effects.
func (b *Breaker) StateOf(service string) State {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.entry(service).state
}

func (b *Breaker) entry(service string) *entry {
	e, ok := b.services[service]
	if !ok {
		e = &entry{state: StateClosed}
		b.services[service] = e
	}
	return e
}
