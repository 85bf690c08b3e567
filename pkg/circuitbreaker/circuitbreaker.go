// Package circuitbreaker stops calling a dependency after repeated failures
// and lets a few trial calls through once a cool-down has passed.
//
// Every state change starts a new generation. A call remembers the generation
// it was admitted in, and its result is dropped if the breaker has moved on
// by the time the call returns.
package circuitbreaker

import (
	"context"
	"errors"
	"sync"
	"time"
)

// State of a breaker.
type State int

const (
	StateClosed State = iota
	StateOpen
	StateHalfOpen
)

func (s State) String() string {
	switch s {
	case StateClosed:
		return "closed"
	case StateOpen:
		return "open"
	case StateHalfOpen:
		return "half-open"
	}
	return "unknown"
}

var (
	// ErrOpen rejects calls during the cool-down.
	ErrOpen = errors.New("circuit breaker is open")
	// ErrHalfOpenFull rejects calls while every trial slot is in use.
	ErrHalfOpenFull = errors.New("circuit breaker trial slots are busy")
)

// IsRejection reports whether err came from the breaker and fn never ran.
func IsRejection(err error) bool {
	return errors.Is(err, ErrOpen) || errors.Is(err, ErrHalfOpenFull)
}

// ══════════════════════════════════════════════════════════════════════════════
// SETTINGS
// ══════════════════════════════════════════════════════════════════════════════

type settings struct {
	tripAfter     int
	closeAfter    int
	coolDown      time.Duration
	halfOpenLimit int
	onChange      func(name string, from, to State)
	isFailure     func(error) bool
	clock         func() time.Time
}

// Option tunes a breaker. Non-positive numbers keep the default.
type Option func(*settings)

// WithFailureThreshold sets how many failures in a row open the circuit.
func WithFailureThreshold(n int) Option {
	return func(s *settings) {
		if n > 0 {
			s.tripAfter = n
		}
	}
}

// WithSuccessThreshold sets how many trial successes in a row close it.
func WithSuccessThreshold(n int) Option {
	return func(s *settings) {
		if n > 0 {
			s.closeAfter = n
		}
	}
}

// WithCoolDown sets how long the circuit stays open.
func WithCoolDown(d time.Duration) Option {
	return func(s *settings) {
		if d > 0 {
			s.coolDown = d
		}
	}
}

// WithHalfOpenLimit caps concurrent trial calls.
func WithHalfOpenLimit(n int) Option {
	return func(s *settings) {
		if n > 0 {
			s.halfOpenLimit = n
		}
	}
}

// WithOnStateChange installs a callback. It runs under the breaker lock.
func WithOnStateChange(fn func(name string, from, to State)) Option {
	return func(s *settings) { s.onChange = fn }
}

// WithIsFailure decides which errors count. Errors it rejects are
// returned to the caller but recorded as successes.
func WithIsFailure(fn func(error) bool) Option {
	return func(s *settings) { s.isFailure = fn }
}

func withClock(now func() time.Time) Option {
	return func(s *settings) { s.clock = now }
}

// ══════════════════════════════════════════════════════════════════════════════
// BREAKER
// ══════════════════════════════════════════════════════════════════════════════

// Counts are totals since the last Reset. The consecutive runs restart on
// every state change.
type Counts struct {
	Requests             int
	TotalSuccesses       int
	TotalFailures        int
	ConsecutiveSuccesses int
	ConsecutiveFailures  int
	Rejected             int
}

// CircuitBreaker guards one dependency. Safe for concurrent use.
type CircuitBreaker struct {
	name string
	set  settings

	mu       sync.Mutex
	state    State
	gen      uint64
	counts   Counts
	reopenAt time.Time
	trials   int
}

// ticket is handed out on admission and returned with the result.
type ticket struct {
	gen   uint64
	trial bool
}

// New returns a closed breaker. Defaults: 5 failures, 2 successes, 30s,
// one trial call.
func New(name string, opts ...Option) *CircuitBreaker {
	set := settings{
		tripAfter:     5,
		closeAfter:    2,
		coolDown:      30 * time.Second,
		halfOpenLimit: 1,
		clock:         time.Now,
	}
	for _, opt := range opts {
		opt(&set)
	}
	return &CircuitBreaker{name: name, set: set}
}

// Execute runs fn if the breaker admits it and records the outcome.
// A panic in fn counts as a failure and is re-raised.
func (cb *CircuitBreaker) Execute(ctx context.Context, fn func(context.Context) error) error {
	t, err := cb.admit()
	if err != nil {
		return err
	}

	settled := false
	defer func() {
		if !settled {
			cb.settle(t, true)
		}
	}()

	err = fn(ctx)
	settled = true
	cb.settle(t, cb.failed(err))
	return err
}

func (cb *CircuitBreaker) failed(err error) bool {
	if err == nil {
		return false
	}
	if cb.set.isFailure != nil {
		return cb.set.isFailure(err)
	}
	return true
}

func (cb *CircuitBreaker) admit() (ticket, error) {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	cb.refresh()
	switch cb.state {
	case StateOpen:
		cb.counts.Rejected++
		return ticket{}, ErrOpen
	case StateHalfOpen:
		if cb.trials >= cb.set.halfOpenLimit {
			cb.counts.Rejected++
			return ticket{}, ErrHalfOpenFull
		}
		cb.trials++
		return ticket{gen: cb.gen, trial: true}, nil
	}
	return ticket{gen: cb.gen}, nil
}

func (cb *CircuitBreaker) settle(t ticket, failed bool) {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	if t.gen != cb.gen {
		return
	}
	if t.trial {
		cb.trials--
	}
	cb.counts.Requests++

	if !failed {
		cb.counts.TotalSuccesses++
		cb.counts.ConsecutiveSuccesses++
		cb.counts.ConsecutiveFailures = 0
		if cb.state == StateHalfOpen && cb.counts.ConsecutiveSuccesses >= cb.set.closeAfter {
			cb.moveTo(StateClosed)
		}
		return
	}

	cb.counts.TotalFailures++
	cb.counts.ConsecutiveFailures++
	cb.counts.ConsecutiveSuccesses = 0
	if cb.state == StateHalfOpen || cb.counts.ConsecutiveFailures >= cb.set.tripAfter {
		cb.moveTo(StateOpen)
	}
}

// refresh ends an expired cool-down. Caller holds mu.
func (cb *CircuitBreaker) refresh() {
	if cb.state == StateOpen && !cb.set.clock().Before(cb.reopenAt) {
		cb.moveTo(StateHalfOpen)
	}
}

// moveTo switches state and starts a new generation. Caller holds mu.
func (cb *CircuitBreaker) moveTo(next State) {
	prev := cb.state
	cb.state = next
	cb.gen++
	cb.trials = 0
	cb.counts.ConsecutiveSuccesses = 0
	cb.counts.ConsecutiveFailures = 0
	if next == StateOpen {
		cb.reopenAt = cb.set.clock().Add(cb.set.coolDown)
	}
	if cb.set.onChange != nil && prev != next {
		cb.set.onChange(cb.name, prev, next)
	}
}

// State returns the current state. An open breaker whose cool-down has
// expired reports half-open.
func (cb *CircuitBreaker) State() State {
	cb.mu.Lock()
	defer cb.mu.Unlock()
	cb.refresh()
	return cb.state
}

func (cb *CircuitBreaker) Counts() Counts {
	cb.mu.Lock()
	defer cb.mu.Unlock()
	return cb.counts
}

// Reset closes the circuit and zeroes the counts. Calls still in flight
// are not recorded. The state change callback is not invoked.
func (cb *CircuitBreaker) Reset() {
	cb.mu.Lock()
	defer cb.mu.Unlock()
	cb.state = StateClosed
	cb.gen++
	cb.trials = 0
	cb.counts = Counts{}
}

func (cb *CircuitBreaker) Name() string { return cb.name }

// TelegramAPIBreaker guards the Bot API client. Only errors matched by
// isFailure count, so 4xx replies never trip it.
func TelegramAPIBreaker(isFailure func(error) bool, onStateChange func(name string, from, to State)) *CircuitBreaker {
	return New("telegram-api",
		WithFailureThreshold(5),
		WithSuccessThreshold(1),
		WithCoolDown(30*time.Second),
		WithHalfOpenLimit(2),
		WithIsFailure(isFailure),
		WithOnStateChange(onStateChange),
	)
}
