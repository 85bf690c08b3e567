package command

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/wordle-hub/wordle-stats-bot/internal/domain/player"
	"github.com/wordle-hub/wordle-stats-bot/internal/domain/shared"
	"github.com/wordle-hub/wordle-stats-bot/pkg/logger"
)

// ══════════════════════════════════════════════════════════════════════════════
// CLEAR DATA COMMANDS
// Remove a user's aggregate, or detach every member from a chat.
// Confirmation happens in the Telegram layer before these run.
// ══════════════════════════════════════════════════════════════════════════════

// ClearDataHandler handles /clear and /clear chat.
type ClearDataHandler struct {
	repo   player.Repository
	logger *slog.Logger
}

// NewClearDataHandler creates a new ClearDataHandler.
func NewClearDataHandler(repo player.Repository, log *slog.Logger) *ClearDataHandler {
	if log == nil {
		log = logger.Nop()
	}
	return &ClearDataHandler{
		repo:   repo,
		logger: log.With(logger.Component("clear_data")),
	}
}

// ClearUser deletes the user's aggregate. Returns ErrPlayerNotFound when
// there is nothing to delete.
func (h *ClearDataHandler) ClearUser(ctx context.Context, userID player.UserID) error {
	if !userID.IsValid() {
		return fmt.Errorf("clear_user: %w", shared.ErrInvalidUserID)
	}
	if err := h.repo.Delete(ctx, userID); err != nil {
		return fmt.Errorf("clear_user: %w", err)
	}

	h.logger.InfoContext(ctx, "user data cleared", logger.UserID(int64(userID)))
	return nil
}

// ClearChat removes the chat from every member and returns how many
// aggregates were touched. Aggregates themselves are kept: the user may be
// tracked in other chats. Returns ErrLeaderboardEmpty when no one was a member.
func (h *ClearDataHandler) ClearChat(ctx context.Context, chatID player.ChatID) (int, error) {
	if !chatID.IsValid() {
		return 0, fmt.Errorf("clear_chat: %w", shared.ErrInvalidChatID)
	}
	n, err := h.repo.RemoveChat(ctx, chatID)
	if err != nil {
		return 0, fmt.Errorf("clear_chat: %w", err)
	}
	if n == 0 {
		return 0, fmt.Errorf("clear_chat: %w", shared.ErrLeaderboardEmpty)
	}

	h.logger.InfoContext(ctx, "chat data cleared", logger.ChatID(int64(chatID)), slog.Int("members", n))
	return n, nil
}
