package handlers

import (
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/wordle-hub/wordle-stats-bot/internal/application/query"
	"github.com/wordle-hub/wordle-stats-bot/internal/domain/player"
	"github.com/wordle-hub/wordle-stats-bot/internal/domain/shared"
	"github.com/wordle-hub/wordle-stats-bot/pkg/logger"
)

// ══════════════════════════════════════════════════════════════════════════════
// STATS API
// Read-only JSON views of the same queries /stats and /leaderboard use.
// Reading through the API never joins anyone to a chat.
// ══════════════════════════════════════════════════════════════════════════════

// PlayerDTO is the JSON shape of one player's stats.
type PlayerDTO struct {
	UserID   int64   `json:"user_id"`
	Username string  `json:"username"`
	NumGames int     `json:"num_games"`
	Streak   int     `json:"streak"`
	ScoreAvg float64 `json:"score_avg"`
	LastGame int     `json:"last_game"`
	OnStreak bool    `json:"on_streak"`
}

// LeaderboardRowDTO is one leaderboard row.
type LeaderboardRowDTO struct {
	Rank     int     `json:"rank"`
	UserID   int64   `json:"user_id"`
	Username string  `json:"username"`
	NumGames int     `json:"num_games"`
	Streak   int     `json:"streak"`
	ScoreAvg float64 `json:"score_avg"`
	OnStreak bool    `json:"on_streak"`
}

// LeaderboardDTO is a chat's leaderboard.
type LeaderboardDTO struct {
	ChatID        int64               `json:"chat_id"`
	Total         int                 `json:"total"`
	LatestEdition int                 `json:"latest_edition"`
	Rows          []LeaderboardRowDTO `json:"rows"`
}

// StatsAPI serves player and chat stats.
type StatsAPI struct {
	stats       *query.GetStatsHandler
	leaderboard *query.GetLeaderboardHandler
}

// NewStatsAPI creates the stats API handlers.
func NewStatsAPI(stats *query.GetStatsHandler, leaderboard *query.GetLeaderboardHandler) *StatsAPI {
	return &StatsAPI{stats: stats, leaderboard: leaderboard}
}

// PlayerStats handles GET /players/{userID}/stats.
func (a *StatsAPI) PlayerStats(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(chi.URLParam(r, "userID"), 10, 64)
	if err != nil || id <= 0 {
		WriteError(w, r, http.StatusBadRequest, "invalid_user_id", "user id must be a positive integer")
		return
	}

	res, err := a.stats.Handle(r.Context(), query.GetStatsQuery{UserID: player.UserID(id)})
	if err != nil {
		a.fail(w, r, err)
		return
	}

	s := res.Stats
	WriteJSON(w, r, http.StatusOK, PlayerDTO{
		UserID:   int64(s.UserID),
		Username: s.Username,
		NumGames: s.NumGames,
		Streak:   s.Streak,
		ScoreAvg: s.ScoreAvg,
		LastGame: s.LastGame,
		OnStreak: s.OnStreak,
	})
}

// ChatLeaderboard handles GET /chats/{chatID}/leaderboard?limit=N.
func (a *StatsAPI) ChatLeaderboard(w http.ResponseWriter, r *http.Request) {
	chatID, err := strconv.ParseInt(chi.URLParam(r, "chatID"), 10, 64)
	if err != nil || chatID == 0 {
		WriteError(w, r, http.StatusBadRequest, "invalid_chat_id", "chat id must be a non-zero integer")
		return
	}

	limit := 0
	if raw := r.URL.Query().Get("limit"); raw != "" {
		limit, err = strconv.Atoi(raw)
		if err != nil || limit < 0 {
			WriteError(w, r, http.StatusBadRequest, "invalid_limit", "limit must be a non-negative integer")
			return
		}
	}

	board, err := a.leaderboard.Handle(r.Context(), query.GetLeaderboardQuery{
		ChatID: player.ChatID(chatID),
		Limit:  limit,
	})
	if err != nil {
		a.fail(w, r, err)
		return
	}

	dto := LeaderboardDTO{
		ChatID:        int64(board.ChatID),
		Total:         board.Total,
		LatestEdition: board.LatestEdition,
		Rows:          make([]LeaderboardRowDTO, 0, len(board.Rows)),
	}
	for _, row := range board.Rows {
		dto.Rows = append(dto.Rows, LeaderboardRowDTO{
			Rank:     row.Rank,
			UserID:   int64(row.UserID),
			Username: row.Username,
			NumGames: row.NumGames,
			Streak:   row.Streak,
			ScoreAvg: row.ScoreAvg,
			OnStreak: row.OnStreak,
		})
	}
	WriteJSON(w, r, http.StatusOK, dto)
}

func (a *StatsAPI) fail(w http.ResponseWriter, r *http.Request, err error) {
	if shared.IsNotFound(err) {
		WriteError(w, r, http.StatusNotFound, "not_found", "no data recorded yet")
		return
	}
	logger.FromContext(r.Context()).ErrorContext(r.Context(), "stats api failed", logger.Err(err))
	WriteError(w, r, http.StatusInternalServerError, "internal_error", "an unexpected error occurred")
}
