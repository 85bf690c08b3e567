// Package memory implements the player store and edition counter in process
// memory. It backs single-node deployments and the application tests.
package memory

import (
	"context"
	"slices"
	"sync"
	"sync/atomic"
	"time"

	"github.com/wordle-hub/wordle-stats-bot/internal/domain/player"
	"github.com/wordle-hub/wordle-stats-bot/internal/domain/shared"
)

// ════════════════════════════════════════════════════════════════════════════
// PLAYER STORE
// ════════════════════════════════════════════════════════════════════════════

// Store keeps aggregates in a map guarded by a mutex.
// All returned aggregates are copies.
type Store struct {
	mu      sync.RWMutex
	players map[player.UserID]*player.Aggregate
	order   []player.UserID
	now     func() time.Time
}

// Option configures a Store.
type Option func(*Store)

// WithClock overrides the time source.
func WithClock(now func() time.Time) Option {
	return func(s *Store) { s.now = now }
}

// NewStore creates an empty Store.
func NewStore(opts ...Option) *Store {
	s := &Store{
		players: make(map[player.UserID]*player.Aggregate),
		now:     func() time.Time { return time.Now().UTC() },
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

var _ player.Repository = (*Store)(nil)

// Get returns a copy of the aggregate.
func (s *Store) Get(ctx context.Context, id player.UserID) (*player.Aggregate, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()

	agg, ok := s.players[id]
	if !ok {
		return nil, shared.ErrPlayerNotFound
	}
	return agg.Clone(), nil
}

// Create stores a copy of agg.
func (s *Store) Create(ctx context.Context, agg *player.Aggregate) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := agg.Validate(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.players[agg.UserID]; ok {
		return shared.ErrPlayerAlreadyExists
	}
	stored := agg.Clone()
	if stored.Version == 0 {
		stored.Version = 1
	}
	if stored.CreatedAt.IsZero() {
		stored.CreatedAt = s.now()
		stored.UpdatedAt = stored.CreatedAt
	}
	s.players[agg.UserID] = stored
	s.order = append(s.order, agg.UserID)
	return nil
}

// ConditionalUpdate checks cond and applies mut under the write lock.
func (s *Store) ConditionalUpdate(ctx context.Context, id player.UserID, cond player.Condition, mut player.Mutation) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	agg, ok := s.players[id]
	if !ok {
		return false, shared.ErrPlayerNotFound
	}
	if !cond.Matches(agg) {
		return false, nil
	}
	mut.Apply(agg, s.now())
	return true, nil
}

// Delete removes an aggregate.
func (s *Store) Delete(ctx context.Context, id player.UserID) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.players[id]; !ok {
		return shared.ErrPlayerNotFound
	}
	delete(s.players, id)
	s.order = slices.DeleteFunc(s.order, func(u player.UserID) bool { return u == id })
	return nil
}

// ListByChat returns chat members in creation order.
func (s *Store) ListByChat(ctx context.Context, chat player.ChatID) ([]*player.Aggregate, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []*player.Aggregate
	for _, id := range s.order {
		agg := s.players[id]
		if agg.IsMemberOf(chat) {
			out = append(out, agg.Clone())
		}
	}
	return out, nil
}

// RemoveChat drops chat from every membership set.
func (s *Store) RemoveChat(ctx context.Context, chat player.ChatID) (int, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	mut := player.Mutation{}.LeaveChat(chat)
	n := 0
	for _, agg := range s.players {
		if agg.IsMemberOf(chat) {
			mut.Apply(agg, now)
			n++
		}
	}
	return n, nil
}

// Purge deletes aggregates in scope.
func (s *Store) Purge(ctx context.Context, scope player.PurgeScope) (int, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	if !scope.IsValid() {
		return 0, shared.NewDomainError("player", "Purge", shared.ErrInvalidInput, "unknown purge scope")
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	n := 0
	kept := s.order[:0]
	for _, id := range s.order {
		if scope == player.PurgeAll || s.players[id].Synthetic {
			delete(s.players, id)
			n++
			continue
		}
		kept = append(kept, id)
	}
	s.order = kept
	return n, nil
}

// Len returns the number of stored aggregates.
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.players)
}

// Ping always succeeds.
func (s *Store) Ping(ctx context.Context) error {
	return ctx.Err()
}

// ════════════════════════════════════════════════════════════════════════════
// EDITION COUNTER
// ════════════════════════════════════════════════════════════════════════════

// EditionCounter is a lock-free write-if-greater counter.
type EditionCounter struct {
	latest atomic.Int64
}

// NewEditionCounter creates a counter starting at zero.
func NewEditionCounter() *EditionCounter {
	return &EditionCounter{}
}

var _ player.EditionCounter = (*EditionCounter)(nil)

// Latest returns the stored edition.
func (c *EditionCounter) Latest(ctx context.Context) (int, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	return int(c.latest.Load()), nil
}

// Advance stores max(current, edition).
func (c *EditionCounter) Advance(ctx context.Context, edition int) (int, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	next := int64(edition)
	for {
		cur := c.latest.Load()
		if next <= cur {
			return int(cur), nil
		}
		if c.latest.CompareAndSwap(cur, next) {
			return edition, nil
		}
	}
}

// Reset sets the counter unconditionally.
func (c *EditionCounter) Reset(ctx context.Context, edition int) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	c.latest.Store(int64(edition))
	return nil
}
