package scheduler

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type funcJob struct {
	name string
	fn   func(ctx context.Context) error
}

func (j funcJob) Name() string                  { return j.name }
func (j funcJob) Run(ctx context.Context) error { return j.fn(ctx) }

func TestScheduler_Register(t *testing.T) {
	s := New(DefaultConfig())
	job := funcJob{name: "a", fn: func(context.Context) error { return nil }}

	require.NoError(t, s.Register(job, time.Minute))
	assert.ErrorIs(t, s.Register(job, time.Minute), ErrJobAlreadyExists)
	assert.ErrorIs(t, s.Register(nil, time.Minute), ErrNilJob)
	assert.ErrorIs(t, s.Register(funcJob{name: "b"}, 0), ErrInvalidInterval)

	status := s.Status()
	require.Len(t, status, 1)
	assert.Equal(t, "a", status[0].Name)
	assert.Equal(t, time.Minute, status[0].Interval)
}

func TestScheduler_RunsDueJobs(t *testing.T) {
	done := make(chan JobResult, 8)
	s := New(Config{
		Tick:          5 * time.Millisecond,
		OnJobComplete: func(r JobResult) {
			select {
			case done <- r:
			default:
			}
		},
	})

	var runs atomic.Int32
	require.NoError(t, s.Register(funcJob{name: "tick", fn: func(context.Context) error {
		runs.Add(1)
		return nil
	}}, 10*time.Millisecond))

	require.NoError(t, s.Start(context.Background()))
	assert.ErrorIs(t, s.Start(context.Background()), ErrAlreadyRunning)

	select {
	case r := <-done:
		assert.Equal(t, "tick", r.JobName)
		assert.NoError(t, r.Error)
	case <-time.After(2 * time.Second):
		t.Fatal("job never ran")
	}

	require.NoError(t, s.Stop())
	assert.ErrorIs(t, s.Stop(), ErrNotRunning)
	assert.GreaterOrEqual(t, runs.Load(), int32(1))
	assert.GreaterOrEqual(t, s.Status()[0].RunCount, int64(1))
}

func TestScheduler_NoOverlap(t *testing.T) {
	s := New(Config{Tick: time.Millisecond})

	var active, maxActive atomic.Int32
	release := make(chan struct{})
	require.NoError(t, s.Register(funcJob{name: "slow", fn: func(ctx context.Context) error {
		n := active.Add(1)
		defer active.Add(-1)
		if n > maxActive.Load() {
			maxActive.Store(n)
		}
		select {
		case <-release:
		case <-ctx.Done():
		}
		return nil
	}}, time.Millisecond))

	require.NoError(t, s.Start(context.Background()))
	time.Sleep(50 * time.Millisecond)
	close(release)
	require.NoError(t, s.Stop())

	assert.Equal(t, int32(1), maxActive.Load())
}

func TestScheduler_StopCancelsJobs(t *testing.T) {
	s := New(Config{Tick: time.Millisecond})
	started := make(chan struct{})
	var once atomic.Bool

	require.NoError(t, s.Register(funcJob{name: "blocking", fn: func(ctx context.Context) error {
		if once.CompareAndSwap(false, true) {
			close(started)
		}
		<-ctx.Done()
		return ctx.Err()
	}}, time.Millisecond))

	require.NoError(t, s.Start(context.Background()))
	<-started
	require.NoError(t, s.Stop())

	st := s.Status()[0]
	require.NotNil(t, st.LastRun)
	assert.ErrorIs(t, st.LastRun.Error, context.Canceled)
	assert.Equal(t, int64(1), st.FailCount)
}

func TestScheduler_RunNow(t *testing.T) {
	s := New(DefaultConfig())
	boom := errors.New("boom")
	require.NoError(t, s.Register(funcJob{name: "fail", fn: func(context.Context) error { return boom }}, time.Hour))
	require.NoError(t, s.Register(funcJob{name: "panic", fn: func(context.Context) error { panic("oops") }}, time.Hour))

	r, err := s.RunNow(context.Background(), "fail")
	require.NoError(t, err)
	assert.ErrorIs(t, r.Error, boom)

	r, err = s.RunNow(context.Background(), "panic")
	require.NoError(t, err)
	require.Error(t, r.Error)
	assert.Contains(t, r.Error.Error(), "oops")

	_, err = s.RunNow(context.Background(), "missing")
	assert.ErrorIs(t, err, ErrJobNotFound)
}
