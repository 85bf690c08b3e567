package handler

import (
	"context"
	"errors"
	"fmt"

	"github.com/wordle-hub/wordle-stats-bot/internal/application/query"
	"github.com/wordle-hub/wordle-stats-bot/internal/domain/player"
	"github.com/wordle-hub/wordle-stats-bot/internal/domain/shared"
	"github.com/wordle-hub/wordle-stats-bot/internal/interface/telegram/presenter"
)

// ══════════════════════════════════════════════════════════════════════════════
// LEADERBOARD HANDLER
// Handles /leaderboard for the current chat.
// ══════════════════════════════════════════════════════════════════════════════

// EmptyLeaderboardText is sent when nobody in the chat has shared a result.
const EmptyLeaderboardText = "No data recorded for anyone yet! Start sharing your Wordle results " +
	"to this chat to enter yourself into the database."

// LeaderboardHandler handles the /leaderboard command.
type LeaderboardHandler struct {
	board    *query.GetLeaderboardHandler
	features Features
	limit    int
}

// NewLeaderboardHandler creates a new LeaderboardHandler. A limit of 0 shows
// every member.
func NewLeaderboardHandler(board *query.GetLeaderboardHandler, features Features, limit int) *LeaderboardHandler {
	return &LeaderboardHandler{board: board, features: featuresOrDefault(features), limit: limit}
}

// Handle processes the /leaderboard command.
func (h *LeaderboardHandler) Handle(ctx context.Context, req Request) (*Response, error) {
	lb, err := h.board.Handle(ctx, query.GetLeaderboardQuery{
		ChatID:      player.ChatID(req.ChatID),
		RequesterID: player.UserID(req.UserID),
		JoinChat:    h.features.EnabledFor(FeatureJoinOnRead, req.UserID),
		Limit:       h.limit,
	})
	if err != nil {
		if errors.Is(err, shared.ErrLeaderboardEmpty) {
			return textResponse(EmptyLeaderboardText), nil
		}
		return nil, fmt.Errorf("leaderboard: %w", err)
	}

	return viewResponse(presenter.FormatLeaderboard(lb)), nil
}
