package redis

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/wordle-hub/wordle-stats-bot/internal/domain/player"
)

// advanceScript writes ARGV[1] only if it is greater than the stored value
// and returns whatever is stored afterwards.
var advanceScript = redis.NewScript(`
local current = tonumber(redis.call('GET', KEYS[1]) or '0')
local candidate = tonumber(ARGV[1])
if candidate > current then
	redis.call('SET', KEYS[1], candidate)
	return candidate
end
return current
`)

// EditionCounter keeps the latest edition in Redis so every replica sees the
// same value.
type EditionCounter struct {
	cache *Cache
}

// NewEditionCounter creates a counter on top of cache.
func NewEditionCounter(cache *Cache) *EditionCounter {
	return &EditionCounter{cache: cache}
}

var _ player.EditionCounter = (*EditionCounter)(nil)

// Latest returns the stored edition, zero if the key is missing.
func (c *EditionCounter) Latest(ctx context.Context) (int, error) {
	v, err := c.cache.client.Get(ctx, c.cache.key(keyLatestEdition)).Result()
	if errors.Is(err, redis.Nil) {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("redis: read edition: %w", err)
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, fmt.Errorf("redis: corrupt edition value %q: %w", v, err)
	}
	return n, nil
}

// Advance runs the compare-and-set-if-greater script.
func (c *EditionCounter) Advance(ctx context.Context, edition int) (int, error) {
	n, err := advanceScript.Run(ctx, c.cache.client, []string{c.cache.key(keyLatestEdition)}, edition).Int()
	if err != nil {
		return 0, fmt.Errorf("redis: advance edition: %w", err)
	}
	return n, nil
}

// Reset overwrites the stored edition.
func (c *EditionCounter) Reset(ctx context.Context, edition int) error {
	if err := c.cache.client.Set(ctx, c.cache.key(keyLatestEdition), edition, 0).Err(); err != nil {
		return fmt.Errorf("redis: reset edition: %w", err)
	}
	return nil
}

// ══════════════════════════════════════════════════════════════════════════════
// UPDATE DEDUPLICATION
// ══════════════════════════════════════════════════════════════════════════════

// UpdateDeduplicator remembers processed Telegram update IDs for a while, so a
// webhook redelivery handled by another replica is not scored twice.
type UpdateDeduplicator struct {
	cache *Cache
	ttl   time.Duration
}

// NewUpdateDeduplicator creates a deduplicator. ttl defaults to 24h.
func NewUpdateDeduplicator(cache *Cache, ttl time.Duration) *UpdateDeduplicator {
	if ttl <= 0 {
		ttl = 24 * time.Hour
	}
	return &UpdateDeduplicator{cache: cache, ttl: ttl}
}

// FirstSeen marks updateID as processed and reports whether it was new.
func (d *UpdateDeduplicator) FirstSeen(ctx context.Context, updateID int64) (bool, error) {
	key := d.cache.key(keyUpdatePrefix + strconv.FormatInt(updateID, 10))
	ok, err := d.cache.client.SetNX(ctx, key, 1, d.ttl).Result()
	if err != nil {
		return false, fmt.Errorf("redis: mark update: %w", err)
	}
	return ok, nil
}
