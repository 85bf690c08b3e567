package postgres

import (
	"context"
	"fmt"

	"github.com/wordle-hub/wordle-stats-bot/internal/domain/player"
)

// EditionCounter implements player.EditionCounter on a single-row table.
type EditionCounter struct {
	conn *Connection
}

// NewEditionCounter creates a new EditionCounter.
func NewEditionCounter(conn *Connection) *EditionCounter {
	return &EditionCounter{conn: conn}
}

var _ player.EditionCounter = (*EditionCounter)(nil)

// Latest returns the stored edition, zero if the row does not exist yet.
func (c *EditionCounter) Latest(ctx context.Context) (int, error) {
	var latest int
	err := c.conn.QueryRow(ctx, `SELECT latest FROM edition_counter WHERE id = 1`).Scan(&latest)
	if err != nil {
		if IsNoRows(err) {
			return 0, nil
		}
		return 0, fmt.Errorf("failed to read edition counter: %w", err)
	}
	return latest, nil
}

// Advance upserts GREATEST(latest, edition) and returns the stored value.
func (c *EditionCounter) Advance(ctx context.Context, edition int) (int, error) {
	var latest int
	err := c.conn.QueryRow(ctx, `
		INSERT INTO edition_counter (id, latest) VALUES (1, $1)
		ON CONFLICT (id) DO UPDATE
		SET latest = GREATEST(edition_counter.latest, EXCLUDED.latest),
		    updated_at = NOW()
		RETURNING latest
	`, edition).Scan(&latest)
	if err != nil {
		return 0, fmt.Errorf("failed to advance edition counter: %w", err)
	}
	return latest, nil
}

// Reset overwrites the stored edition.
func (c *EditionCounter) Reset(ctx context.Context, edition int) error {
	_, err := c.conn.Exec(ctx, `
		INSERT INTO edition_counter (id, latest) VALUES (1, $1)
		ON CONFLICT (id) DO UPDATE SET latest = EXCLUDED.latest, updated_at = NOW()
	`, edition)
	if err != nil {
		return fmt.Errorf("failed to reset edition counter: %w", err)
	}
	return nil
}
