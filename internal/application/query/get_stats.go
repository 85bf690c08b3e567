package query

import (
	"context"
	"fmt"

	"github.com/wordle-hub/wordle-stats-bot/internal/domain/player"
)

// ══════════════════════════════════════════════════════════════════════════════
// GET STATS QUERY
// Статистика одного пользователя для /stats.
// ══════════════════════════════════════════════════════════════════════════════

// GetStatsQuery содержит параметры запроса статистики.
type GetStatsQuery struct {
	// UserID - чья статистика.
	UserID player.UserID

	// ChatID - чат, из которого пришёл запрос.
	ChatID player.ChatID

	// JoinChat - добавить пользователя в участники чата перед чтением.
	JoinChat bool
}

// PlayerStats - снимок статистики для отображения.
type PlayerStats struct {
	UserID            player.UserID
	Username          string
	NumGames          int
	Streak            int
	ScoreAvg          float64
	LastGame          int
	OnStreak          bool
	ToggleRetroactive bool
	Warning           bool
}

// GetStatsResult - результат запроса.
type GetStatsResult struct {
	Stats PlayerStats

	// Decayed - серия была сброшена этим чтением.
	Decayed bool

	// LatestEdition - глобальный счётчик выпусков на момент чтения.
	LatestEdition int
}

// GetStatsHandler обрабатывает запрос статистики.
type GetStatsHandler struct {
	repo    player.Repository
	counter player.EditionCounter
	decay   decayer
}

// NewGetStatsHandler создаёт новый handler.
func NewGetStatsHandler(repo player.Repository, counter player.EditionCounter) *GetStatsHandler {
	return &GetStatsHandler{
		repo:    repo,
		counter: counter,
		decay:   decayer{repo: repo, now: utcNow},
	}
}

// Handle выполняет запрос статистики.
// Возвращает ErrPlayerNotFound, если пользователь ещё ничего не отправлял.
func (h *GetStatsHandler) Handle(ctx context.Context, q GetStatsQuery) (*GetStatsResult, error) {
	agg, err := h.repo.Get(ctx, q.UserID)
	if err != nil {
		return nil, fmt.Errorf("get_stats: %w", err)
	}

	if q.JoinChat {
		if err := h.decay.join(ctx, agg, q.ChatID); err != nil {
			return nil, fmt.Errorf("get_stats: join chat: %w", err)
		}
	}

	latest, err := h.counter.Latest(ctx)
	if err != nil {
		return nil, fmt.Errorf("get_stats: latest edition: %w", err)
	}

	agg, decayed, err := h.decay.apply(ctx, agg, latest)
	if err != nil {
		return nil, fmt.Errorf("get_stats: decay: %w", err)
	}

	return &GetStatsResult{
		Stats:         StatsOf(agg),
		Decayed:       decayed,
		LatestEdition: latest,
	}, nil
}

// StatsOf строит снимок для отображения из агрегата.
func StatsOf(agg *player.Aggregate) PlayerStats {
	return PlayerStats{
		UserID:            agg.UserID,
		Username:          agg.Username,
		NumGames:          agg.NumGames,
		Streak:            agg.Streak,
		ScoreAvg:          agg.ScoreAvg,
		LastGame:          agg.LastGame,
		OnStreak:          agg.OnStreak(),
		ToggleRetroactive: agg.ToggleRetroactive,
		Warning:           agg.Warning,
	}
}
