package middleware

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"runtime/debug"
	"sync"
	"time"

	"github.com/wordle-hub/wordle-stats-bot/pkg/logger"
)

// ══════════════════════════════════════════════════════════════════════════════
// RECOVERY MIDDLEWARE
// ══════════════════════════════════════════════════════════════════════════════

// RecoveryConfig configures RecoveryMiddleware.
type RecoveryConfig struct {
	EnableStackTrace bool

	// OnPanic runs after the panic is logged.
	OnPanic func(ctx context.Context, info *PanicInfo)

	// MaxPanicsPerMinute caps logging only. Every panic is still recovered.
	MaxPanicsPerMinute int

	Logger *slog.Logger
}

// DefaultRecoveryConfig captures stacks and logs at most 100 panics a minute.
func DefaultRecoveryConfig() RecoveryConfig {
	return RecoveryConfig{EnableStackTrace: true, MaxPanicsPerMinute: 100}
}

// PanicInfo describes one recovered panic in an update handler.
type PanicInfo struct {
	Error      error
	PanicValue any
	StackTrace string
	RequestID  string
	UserID     int64
	Command    string
	Timestamp  time.Time
}

// RecoveryMiddleware keeps one bad update from killing the update loop.
type RecoveryMiddleware struct {
	config  RecoveryConfig
	logger  *slog.Logger
	limiter *panicRateLimiter
}

func NewRecoveryMiddleware(config RecoveryConfig) *RecoveryMiddleware {
	log := config.Logger
	if log == nil {
		log = logger.Nop()
	}
	return &RecoveryMiddleware{
		config:  config,
		logger:  log,
		limiter: newPanicRateLimiter(config.MaxPanicsPerMinute),
	}
}

// Run executes fn and converts a panic into an error. The returned PanicInfo
// is non-nil only when fn panicked.
func (m *RecoveryMiddleware) Run(ctx context.Context, userID int64, command string, fn func() error) (info *PanicInfo, err error) {
	defer func() {
		r := recover()
		if r == nil {
			return
		}
		info = m.handlePanic(ctx, r, userID, command)
		err = fmt.Errorf("recovered panic in %q: %w", command, info.Error)
	}()

	return nil, fn()
}

func (m *RecoveryMiddleware) handlePanic(ctx context.Context, value any, userID int64, command string) *PanicInfo {
	info := &PanicInfo{
		Error:      toError(value),
		PanicValue: value,
		RequestID:  RequestIDFromContext(ctx),
		UserID:     userID,
		Command:    command,
		Timestamp:  time.Now(),
	}
	if m.config.EnableStackTrace {
		info.StackTrace = string(debug.Stack())
	}

	if !m.limiter.allow() {
		return info
	}

	m.logger.ErrorContext(ctx, "panic recovered",
		logger.RequestID(info.RequestID),
		logger.UserID(userID),
		slog.String("command", command),
		logger.Err(info.Error),
		slog.String("stack", info.StackTrace),
	)

	if m.config.OnPanic != nil {
		m.config.OnPanic(ctx, info)
	}
	return info
}

func toError(value any) error {
	switch v := value.(type) {
	case error:
		return v
	case string:
		return errors.New(v)
	}
	return fmt.Errorf("panic: %v", value)
}

// ══════════════════════════════════════════════════════════════════════════════
// PANIC LOG LIMITER
// ══════════════════════════════════════════════════════════════════════════════

// panicRateLimiter is a fixed one-minute window counter.
type panicRateLimiter struct {
	limit int
	now   func() time.Time

	mu          sync.Mutex
	windowStart time.Time
	seen        int
}

func newPanicRateLimiter(limit int) *panicRateLimiter {
	return &panicRateLimiter{limit: limit, now: time.Now, windowStart: time.Now()}
}

func (p *panicRateLimiter) allow() bool {
	if p.limit <= 0 {
		return true
	}
	p.mu.Lock()
	defer p.mu.Unlock()

	if now := p.now(); now.Sub(p.windowStart) >= time.Minute {
		p.windowStart, p.seen = now, 0
	}
	p.seen++
	return p.seen <= p.limit
}
