package circuitbreaker

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var errBoom = errors.New("boom")

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

func newClock() *fakeClock {
	return &fakeClock{now: time.Unix(1_700_000_000, 0)}
}

func fail(context.Context) error { return errBoom }
func ok(context.Context) error   { return nil }

// blockingCall starts fn inside cb and returns once fn is running.
func blockingCall(cb *CircuitBreaker, result error) (release func(), done <-chan error) {
	gate := make(chan struct{})
	started := make(chan struct{})
	out := make(chan error, 1)
	go func() {
		out <- cb.Execute(context.Background(), func(context.Context) error {
			close(started)
			<-gate
			return result
		})
	}()
	<-started
	return func() { close(gate) }, out
}

func TestCircuitBreaker_OpensAfterThreshold(t *testing.T) {
	var transitions []string
	cb := New("test",
		WithFailureThreshold(3),
		WithOnStateChange(func(_ string, from, to State) {
			transitions = append(transitions, from.String()+"->"+to.String())
		}),
	)
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		assert.ErrorIs(t, cb.Execute(ctx, fail), errBoom)
	}
	assert.Equal(t, StateOpen, cb.State())

	called := false
	err := cb.Execute(ctx, func(context.Context) error { called = true; return nil })
	assert.ErrorIs(t, err, ErrOpen)
	assert.True(t, IsRejection(err))
	assert.False(t, called)
	assert.Equal(t, []string{"closed->open"}, transitions)
	assert.Equal(t, 1, cb.Counts().Rejected)
}

func TestCircuitBreaker_SuccessResetsFailureRun(t *testing.T) {
	cb := New("test", WithFailureThreshold(2))
	ctx := context.Background()

	_ = cb.Execute(ctx, fail)
	require.NoError(t, cb.Execute(ctx, ok))
	_ = cb.Execute(ctx, fail)

	assert.Equal(t, StateClosed, cb.State())
	assert.Equal(t, Counts{Requests: 3, TotalSuccesses: 1, TotalFailures: 2, ConsecutiveFailures: 1}, cb.Counts())
}

func TestCircuitBreaker_HalfOpenRecovery(t *testing.T) {
	clock := newClock()
	cb := New("test",
		WithFailureThreshold(1),
		WithSuccessThreshold(2),
		WithCoolDown(time.Minute),
		WithHalfOpenLimit(2),
		withClock(clock.Now),
	)
	ctx := context.Background()

	_ = cb.Execute(ctx, fail)
	require.Equal(t, StateOpen, cb.State())

	clock.Advance(30 * time.Second)
	assert.ErrorIs(t, cb.Execute(ctx, ok), ErrOpen)

	clock.Advance(31 * time.Second)
	assert.Equal(t, StateHalfOpen, cb.State(), "cool-down expiry is visible without a call")
	require.NoError(t, cb.Execute(ctx, ok))
	assert.Equal(t, StateHalfOpen, cb.State())
	require.NoError(t, cb.Execute(ctx, ok))
	assert.Equal(t, StateClosed, cb.State())
}

func TestCircuitBreaker_FailedTrialReopens(t *testing.T) {
	clock := newClock()
	cb := New("test", WithFailureThreshold(1), WithCoolDown(time.Second), withClock(clock.Now))
	ctx := context.Background()

	_ = cb.Execute(ctx, fail)
	clock.Advance(2 * time.Second)

	assert.ErrorIs(t, cb.Execute(ctx, fail), errBoom)
	assert.Equal(t, StateOpen, cb.State())
	assert.ErrorIs(t, cb.Execute(ctx, ok), ErrOpen)

	clock.Advance(999 * time.Millisecond)
	assert.Equal(t, StateOpen, cb.State(), "cool-down restarts from the failed trial")
}

func TestCircuitBreaker_HalfOpenLimit(t *testing.T) {
	clock := newClock()
	cb := New("test", WithFailureThreshold(1), WithCoolDown(time.Second), WithHalfOpenLimit(1), withClock(clock.Now))
	ctx := context.Background()

	_ = cb.Execute(ctx, fail)
	clock.Advance(2 * time.Second)

	release, done := blockingCall(cb, nil)

	err := cb.Execute(ctx, ok)
	assert.ErrorIs(t, err, ErrHalfOpenFull)
	assert.True(t, IsRejection(err))

	release()
	require.NoError(t, <-done)
}

func TestCircuitBreaker_StaleResultIgnored(t *testing.T) {
	clock := newClock()
	cb := New("test", WithFailureThreshold(2), WithCoolDown(time.Second), withClock(clock.Now))
	ctx := context.Background()

	// admitted while closed, finishes after the circuit opened
	release, done := blockingCall(cb, errBoom)

	_ = cb.Execute(ctx, fail)
	_ = cb.Execute(ctx, fail)
	require.Equal(t, StateOpen, cb.State())
	before := cb.Counts()

	release()
	assert.ErrorIs(t, <-done, errBoom)
	assert.Equal(t, before, cb.Counts())

	clock.Advance(2 * time.Second)
	assert.Equal(t, StateHalfOpen, cb.State())
}

func TestCircuitBreaker_PanicCountsAsFailure(t *testing.T) {
	clock := newClock()
	cb := New("test", WithFailureThreshold(1), WithCoolDown(time.Second), withClock(clock.Now))
	ctx := context.Background()

	_ = cb.Execute(ctx, fail)
	clock.Advance(2 * time.Second)

	assert.Panics(t, func() {
		_ = cb.Execute(ctx, func(context.Context) error { panic("boom") })
	})
	assert.Equal(t, StateOpen, cb.State())

	clock.Advance(2 * time.Second)
	require.NoError(t, cb.Execute(ctx, ok), "the trial slot was released")
}

func TestCircuitBreaker_IsFailureFilter(t *testing.T) {
	benign := errors.New("bad request")
	cb := New("test",
		WithFailureThreshold(1),
		WithIsFailure(func(err error) bool { return !errors.Is(err, benign) }),
	)

	err := cb.Execute(context.Background(), func(context.Context) error { return benign })
	assert.ErrorIs(t, err, benign)
	assert.Equal(t, StateClosed, cb.State())
	assert.Equal(t, 1, cb.Counts().TotalSuccesses)

	assert.ErrorIs(t, cb.Execute(context.Background(), fail), errBoom)
	assert.Equal(t, StateOpen, cb.State())
}

func TestCircuitBreaker_Reset(t *testing.T) {
	cb := New("test", WithFailureThreshold(1))
	_ = cb.Execute(context.Background(), fail)
	require.Equal(t, StateOpen, cb.State())

	cb.Reset()
	assert.Equal(t, StateClosed, cb.State())
	assert.Equal(t, Counts{}, cb.Counts())
	assert.Equal(t, "test", cb.Name())
}

func TestTelegramAPIBreaker(t *testing.T) {
	var changes []State
	cb := TelegramAPIBreaker(
		func(err error) bool { return errors.Is(err, errBoom) },
		func(name string, _, to State) {
			assert.Equal(t, "telegram-api", name)
			changes = append(changes, to)
		},
	)
	ctx := context.Background()

	for i := 0; i < 4; i++ {
		_ = cb.Execute(ctx, fail)
	}
	assert.Equal(t, StateClosed, cb.State())
	_ = cb.Execute(ctx, fail)
	assert.Equal(t, StateOpen, cb.State())
	assert.Equal(t, []State{StateOpen}, changes)
}
