package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/wordle-hub/wordle-stats-bot/internal/domain/player"
	"github.com/wordle-hub/wordle-stats-bot/internal/domain/shared"
)

// ══════════════════════════════════════════════════════════════════════════════
// PLAYER REPOSITORY IMPLEMENTATION
// ══════════════════════════════════════════════════════════════════════════════

const playerColumns = `
	user_id, username, num_games, streak, score_avg, last_game, last_active_chat,
	member_of_chats, toggle_retroactive, warning, synthetic, version, created_at, updated_at
`

// PlayerRepository implements player.Repository for PostgreSQL.
type PlayerRepository struct {
	conn *Connection
}

// NewPlayerRepository creates a new PlayerRepository.
func NewPlayerRepository(conn *Connection) *PlayerRepository {
	return &PlayerRepository{conn: conn}
}

var _ player.Repository = (*PlayerRepository)(nil)

// ─────────────────────────────────────────────────────────────────────────────
// CRUD Operations
// ─────────────────────────────────────────────────────────────────────────────

// Get returns the aggregate for id.
func (r *PlayerRepository) Get(ctx context.Context, id player.UserID) (*player.Aggregate, error) {
	row := r.conn.QueryRow(ctx, `SELECT `+playerColumns+` FROM players WHERE user_id = $1`, int64(id))
	agg, err := scanPlayer(row)
	if err != nil {
		if IsNoRows(err) {
			return nil, shared.ErrPlayerNotFound
		}
		return nil, fmt.Errorf("failed to get player: %w", err)
	}
	return agg, nil
}

// Create inserts a new aggregate. The seq column records creation order.
func (r *PlayerRepository) Create(ctx context.Context, a *player.Aggregate) error {
	if err := a.Validate(); err != nil {
		return err
	}

	version := a.Version
	if version == 0 {
		version = 1
	}

	query := `
		INSERT INTO players (
			user_id, username, num_games, streak, score_avg, last_game, last_active_chat,
			member_of_chats, toggle_retroactive, warning, synthetic, version, created_at, updated_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, COALESCE($13, NOW()), COALESCE($13, NOW()))
	`

	var created any
	if !a.CreatedAt.IsZero() {
		created = a.CreatedAt
	}

	_, err := r.conn.Exec(ctx, query,
		int64(a.UserID),
		a.Username,
		a.NumGames,
		a.Streak,
		a.ScoreAvg,
		a.LastGame,
		int64(a.LastActiveChat),
		chatsToInt64(a.MemberOfChats),
		a.ToggleRetroactive,
		a.Warning,
		a.Synthetic,
		version,
		created,
	)
	if err != nil {
		if IsUniqueViolation(err) {
			return shared.ErrPlayerAlreadyExists
		}
		return fmt.Errorf("failed to create player: %w", err)
	}
	return nil
}

// ConditionalUpdate runs one UPDATE whose WHERE clause carries the condition.
func (r *PlayerRepository) ConditionalUpdate(ctx context.Context, id player.UserID, cond player.Condition, mut player.Mutation) (bool, error) {
	query, args := buildConditionalUpdate(id, cond, mut)

	var version int64
	err := r.conn.QueryRow(ctx, query, args...).Scan(&version)
	switch {
	case err == nil:
		return true, nil
	case IsNoRows(err):
		exists, existsErr := r.exists(ctx, id)
		if existsErr != nil {
			return false, existsErr
		}
		if !exists {
			return false, shared.ErrPlayerNotFound
		}
		return false, nil
	case IsCheckViolation(err):
		return false, shared.WrapError("player", "Update", shared.ErrValueOutOfRange, "update violates player invariants", err)
	default:
		return false, fmt.Errorf("failed to update player: %w", err)
	}
}

// Delete removes the aggregate for id.
func (r *PlayerRepository) Delete(ctx context.Context, id player.UserID) error {
	tag, err := r.conn.Exec(ctx, `DELETE FROM players WHERE user_id = $1`, int64(id))
	if err != nil {
		return fmt.Errorf("failed to delete player: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return shared.ErrPlayerNotFound
	}
	return nil
}

func (r *PlayerRepository) exists(ctx context.Context, id player.UserID) (bool, error) {
	var ok bool
	err := r.conn.QueryRow(ctx, `SELECT EXISTS(SELECT 1 FROM players WHERE user_id = $1)`, int64(id)).Scan(&ok)
	if err != nil {
		return false, fmt.Errorf("failed to check player: %w", err)
	}
	return ok, nil
}

// ─────────────────────────────────────────────────────────────────────────────
// Chat Operations
// ─────────────────────────────────────────────────────────────────────────────

// ListByChat returns chat members in creation order.
func (r *PlayerRepository) ListByChat(ctx context.Context, chat player.ChatID) ([]*player.Aggregate, error) {
	rows, err := r.conn.Query(ctx,
		`SELECT `+playerColumns+` FROM players WHERE $1::bigint = ANY(member_of_chats) ORDER BY seq`,
		int64(chat),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to list chat members: %w", err)
	}
	defer rows.Close()

	var out []*player.Aggregate
	for rows.Next() {
		agg, err := scanPlayer(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan player: %w", err)
		}
		out = append(out, agg)
	}
	return out, rows.Err()
}

// RemoveChat drops chat from every membership array.
func (r *PlayerRepository) RemoveChat(ctx context.Context, chat player.ChatID) (int, error) {
	tag, err := r.conn.Exec(ctx, `
		UPDATE players
		SET member_of_chats = array_remove(member_of_chats, $1::bigint),
		    version = version + 1,
		    updated_at = NOW()
		WHERE $1::bigint = ANY(member_of_chats)
	`, int64(chat))
	if err != nil {
		return 0, fmt.Errorf("failed to clear chat: %w", err)
	}
	return int(tag.RowsAffected()), nil
}

// ─────────────────────────────────────────────────────────────────────────────
// Admin Operations
// ─────────────────────────────────────────────────────────────────────────────

// Purge deletes every aggregate in scope.
func (r *PlayerRepository) Purge(ctx context.Context, scope player.PurgeScope) (int, error) {
	var query string
	switch scope {
	case player.PurgeAll:
		query = `DELETE FROM players`
	case player.PurgeSynthetic:
		query = `DELETE FROM players WHERE synthetic`
	default:
		return 0, shared.NewDomainError("player", "Purge", shared.ErrInvalidInput, "unknown purge scope")
	}

	tag, err := r.conn.Exec(ctx, query)
	if err != nil {
		return 0, fmt.Errorf("failed to purge players: %w", err)
	}
	return int(tag.RowsAffected()), nil
}

// ─────────────────────────────────────────────────────────────────────────────
// Scanning
// ─────────────────────────────────────────────────────────────────────────────

func scanPlayer(row pgx.Row) (*player.Aggregate, error) {
	var (
		a          player.Aggregate
		userID     int64
		activeChat int64
		chats      []int64
	)
	err := row.Scan(
		&userID,
		&a.Username,
		&a.NumGames,
		&a.Streak,
		&a.ScoreAvg,
		&a.LastGame,
		&activeChat,
		&chats,
		&a.ToggleRetroactive,
		&a.Warning,
		&a.Synthetic,
		&a.Version,
		&a.CreatedAt,
		&a.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	a.UserID = player.UserID(userID)
	a.LastActiveChat = player.ChatID(activeChat)
	a.MemberOfChats = make([]player.ChatID, len(chats))
	for i, c := range chats {
		a.MemberOfChats[i] = player.ChatID(c)
	}
	return &a, nil
}

func chatsToInt64(chats []player.ChatID) []int64 {
	out := make([]int64, len(chats))
	for i, c := range chats {
		out[i] = int64(c)
	}
	return out
}
