// Package middleware contains Telegram bot middlewares for request processing.
// These middlewares wrap every incoming update before it reaches the handler:
// admin resolution, rate limiting, panic recovery and metrics.
package middleware

import (
	"context"
	"sort"
	"sync"
)

// ══════════════════════════════════════════════════════════════════════════════
// CONTEXT KEYS
// Used to pass data through the request context.
// ══════════════════════════════════════════════════════════════════════════════

// contextKey is a custom type for context keys to avoid collisions.
type contextKey string

const (
	// UserIDContextKey is the context key for the Telegram user ID.
	UserIDContextKey contextKey = "user_id"

	// RequestIDContextKey is the context key for request tracing.
	RequestIDContextKey contextKey = "request_id"
)

// ContextWithUserID adds the Telegram user ID to the context.
func ContextWithUserID(ctx context.Context, userID int64) context.Context {
	return context.WithValue(ctx, UserIDContextKey, userID)
}

// UserIDFromContext retrieves the Telegram user ID from context.
// Returns 0 if not set.
func UserIDFromContext(ctx context.Context) int64 {
	if id, ok := ctx.Value(UserIDContextKey).(int64); ok {
		return id
	}
	return 0
}

// ContextWithRequestID adds the request ID to the context.
func ContextWithRequestID(ctx context.Context, requestID string) context.Context {
	return context.WithValue(ctx, RequestIDContextKey, requestID)
}

// RequestIDFromContext retrieves the request ID from context.
func RequestIDFromContext(ctx context.Context) string {
	if id, ok := ctx.Value(RequestIDContextKey).(string); ok {
		return id
	}
	return ""
}

// ══════════════════════════════════════════════════════════════════════════════
// ADMIN AUTH
// Everybody may use the public commands; there is no registration step.
// Operator commands are gated on a static list of Telegram user IDs.
// ══════════════════════════════════════════════════════════════════════════════

// AdminAuth resolves whether a user is a bot admin.
type AdminAuth struct {
	mu     sync.RWMutex
	admins map[int64]bool
}

// NewAdminAuth creates an AdminAuth for the given user IDs.
func NewAdminAuth(adminIDs []int64) *AdminAuth {
	a := &AdminAuth{admins: make(map[int64]bool, len(adminIDs))}
	for _, id := range adminIDs {
		if id > 0 {
			a.admins[id] = true
		}
	}
	return a
}

// IsAdmin reports whether the user is a bot admin.
func (a *AdminAuth) IsAdmin(userID int64) bool {
	if a == nil {
		return false
	}
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.admins[userID]
}

// Grant adds a bot admin at runtime.
func (a *AdminAuth) Grant(userID int64) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.admins[userID] = true
}

// Revoke removes a bot admin.
func (a *AdminAuth) Revoke(userID int64) {
	a.mu.Lock()
	defer a.mu.Unlock()
	delete(a.admins, userID)
}

// Admins returns the admin IDs in ascending order.
func (a *AdminAuth) Admins() []int64 {
	a.mu.RLock()
	defer a.mu.RUnlock()
	ids := make([]int64, 0, len(a.admins))
	for id := range a.admins {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids
}
