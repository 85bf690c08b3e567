package handler

import (
	"context"

	"github.com/wordle-hub/wordle-stats-bot/internal/interface/telegram/presenter"
)

// ══════════════════════════════════════════════════════════════════════════════
// START HANDLER
// Handles /start. Players are created by their first shared result, so /start
// only explains how the bot works.
// ══════════════════════════════════════════════════════════════════════════════

// StartHandler handles the /start command.
type StartHandler struct{}

// NewStartHandler creates a new StartHandler.
func NewStartHandler() *StartHandler {
	return &StartHandler{}
}

// Handle processes the /start command.
func (h *StartHandler) Handle(_ context.Context, _ Request) (*Response, error) {
	return textResponse(presenter.StartText), nil
}
