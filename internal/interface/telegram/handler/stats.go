package handler

import (
	"context"
	"fmt"

	"github.com/wordle-hub/wordle-stats-bot/internal/application/query"
	"github.com/wordle-hub/wordle-stats-bot/internal/domain/player"
	"github.com/wordle-hub/wordle-stats-bot/internal/domain/shared"
	"github.com/wordle-hub/wordle-stats-bot/internal/interface/telegram/presenter"
)

// ══════════════════════════════════════════════════════════════════════════════
// STATS HANDLER
// Handles /stats. Reading applies any pending streak reset.
// ══════════════════════════════════════════════════════════════════════════════

// StatsHandler handles the /stats command.
type StatsHandler struct {
	stats    *query.GetStatsHandler
	features Features
}

// NewStatsHandler creates a new StatsHandler.
func NewStatsHandler(stats *query.GetStatsHandler, features Features) *StatsHandler {
	return &StatsHandler{stats: stats, features: featuresOrDefault(features)}
}

// Handle processes the /stats command.
func (h *StatsHandler) Handle(ctx context.Context, req Request) (*Response, error) {
	res, err := h.stats.Handle(ctx, query.GetStatsQuery{
		UserID:   player.UserID(req.UserID),
		ChatID:   player.ChatID(req.ChatID),
		JoinChat: h.features.EnabledFor(FeatureJoinOnRead, req.UserID),
	})
	if err != nil {
		if shared.IsNotFound(err) {
			return textResponse(presenter.NoDataText + presenter.NoDataStatsSuffix), nil
		}
		return nil, fmt.Errorf("stats: %w", err)
	}

	return viewResponse(presenter.FormatStats(res)), nil
}
