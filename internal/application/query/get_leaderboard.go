package query

import (
	"context"
	"fmt"
	"sort"

	"github.com/wordle-hub/wordle-stats-bot/internal/domain/player"
	"github.com/wordle-hub/wordle-stats-bot/internal/domain/shared"
)

// ══════════════════════════════════════════════════════════════════════════════
// GET LEADERBOARD QUERY
// Таблица участников чата, от лучшего среднего к худшему.
// ══════════════════════════════════════════════════════════════════════════════

// GetLeaderboardQuery содержит параметры запроса лидерборда.
type GetLeaderboardQuery struct {
	// ChatID - чей лидерборд.
	ChatID player.ChatID

	// RequesterID - кто запросил. Может быть 0 (HTTP API).
	RequesterID player.UserID

	// JoinChat - добавить запросившего в участники чата перед чтением.
	JoinChat bool

	// Limit - сколько строк вернуть (0 = все).
	Limit int
}

// LeaderboardRow - строка лидерборда.
type LeaderboardRow struct {
	// Rank - место, начиная с 1.
	Rank int

	UserID   player.UserID
	Username string
	NumGames int
	Streak   int
	ScoreAvg float64
	OnStreak bool

	// IsRequester - строка того, кто запросил таблицу.
	IsRequester bool
}

// Leaderboard - результат запроса.
type Leaderboard struct {
	ChatID player.ChatID
	Rows   []LeaderboardRow

	// Total - число участников до применения Limit.
	Total int

	// RequesterRank - место запросившего (0 если его нет в таблице).
	RequesterRank int

	// Decayed - сколько серий сброшено этим чтением.
	Decayed int

	LatestEdition int
}

// GetLeaderboardHandler обрабатывает запрос лидерборда.
type GetLeaderboardHandler struct {
	repo    player.Repository
	counter player.EditionCounter
	decay   decayer
}

// NewGetLeaderboardHandler создаёт новый handler.
func NewGetLeaderboardHandler(repo player.Repository, counter player.EditionCounter) *GetLeaderboardHandler {
	return &GetLeaderboardHandler{
		repo:    repo,
		counter: counter,
		decay:   decayer{repo: repo, now: utcNow},
	}
}

// Handle выполняет запрос лидерборда.
// Возвращает ErrLeaderboardEmpty, если в чате нет ни одного участника.
func (h *GetLeaderboardHandler) Handle(ctx context.Context, q GetLeaderboardQuery) (*Leaderboard, error) {
	if !q.ChatID.IsValid() {
		return nil, fmt.Errorf("get_leaderboard: %w", shared.ErrInvalidChatID)
	}
	if q.Limit < 0 {
		return nil, fmt.Errorf("get_leaderboard: %w", shared.ErrNegativeValue)
	}

	// ─────────────────────────────────────────────────────────────────────────
	// Шаг 1: Запросивший становится участником чата
	// ─────────────────────────────────────────────────────────────────────────
	if q.JoinChat && q.RequesterID.IsValid() {
		if err := h.joinRequester(ctx, q.RequesterID, q.ChatID); err != nil {
			return nil, fmt.Errorf("get_leaderboard: join chat: %w", err)
		}
	}

	// ─────────────────────────────────────────────────────────────────────────
	// Шаг 2: Участники в порядке добавления
	// ─────────────────────────────────────────────────────────────────────────
	members, err := h.repo.ListByChat(ctx, q.ChatID)
	if err != nil {
		return nil, fmt.Errorf("get_leaderboard: list members: %w", err)
	}
	if len(members) == 0 {
		return nil, fmt.Errorf("get_leaderboard: %w", shared.ErrLeaderboardEmpty)
	}

	latest, err := h.counter.Latest(ctx)
	if err != nil {
		return nil, fmt.Errorf("get_leaderboard: latest edition: %w", err)
	}

	// ─────────────────────────────────────────────────────────────────────────
	// Шаг 3: Сброс прерванных серий
	// ─────────────────────────────────────────────────────────────────────────
	board := &Leaderboard{ChatID: q.ChatID, LatestEdition: latest, Total: len(members)}
	rows := make([]LeaderboardRow, 0, len(members))
	for _, m := range members {
		agg, decayed, err := h.decay.apply(ctx, m, latest)
		if shared.IsNotFound(err) {
			// удалён между списком и сбросом
			continue
		}
		if err != nil {
			return nil, fmt.Errorf("get_leaderboard: decay %d: %w", m.UserID, err)
		}
		if decayed {
			board.Decayed++
		}
		rows = append(rows, LeaderboardRow{
			UserID:      agg.UserID,
			Username:    agg.Username,
			NumGames:    agg.NumGames,
			Streak:      agg.Streak,
			ScoreAvg:    agg.ScoreAvg,
			OnStreak:    agg.OnStreak(),
			IsRequester: agg.UserID == q.RequesterID,
		})
	}
	if len(rows) == 0 {
		return nil, fmt.Errorf("get_leaderboard: %w", shared.ErrLeaderboardEmpty)
	}

	// ─────────────────────────────────────────────────────────────────────────
	// Шаг 4: Сортировка по среднему (меньше - лучше), при равенстве -
	// порядок добавления
	// ─────────────────────────────────────────────────────────────────────────
	sort.SliceStable(rows, func(i, j int) bool {
		return rows[i].ScoreAvg < rows[j].ScoreAvg
	})
	for i := range rows {
		rows[i].Rank = i + 1
		if rows[i].IsRequester {
			board.RequesterRank = rows[i].Rank
		}
	}

	board.Total = len(rows)
	if q.Limit > 0 && len(rows) > q.Limit {
		rows = rows[:q.Limit]
	}
	board.Rows = rows

	return board, nil
}

// joinRequester добавляет запросившего в чат. Если у него ещё нет статистики,
// ничего не делает: таблица показывается и без него.
func (h *GetLeaderboardHandler) joinRequester(ctx context.Context, id player.UserID, chat player.ChatID) error {
	agg, err := h.repo.Get(ctx, id)
	if shared.IsNotFound(err) {
		return nil
	}
	if err != nil {
		return err
	}
	if err := h.decay.join(ctx, agg, chat); err != nil && !shared.IsNotFound(err) {
		return err
	}
	return nil
}
