package handler

import (
	"context"

	"github.com/wordle-hub/wordle-stats-bot/internal/interface/telegram/presenter"
)

// ══════════════════════════════════════════════════════════════════════════════
// HELP HANDLER
// Handles /help. Bot admins also see the operator commands.
// ══════════════════════════════════════════════════════════════════════════════

// HelpHandler handles the /help command.
type HelpHandler struct {
	features Features
}

// NewHelpHandler creates a new HelpHandler.
func NewHelpHandler(features Features) *HelpHandler {
	return &HelpHandler{features: featuresOrDefault(features)}
}

// Handle processes the /help command.
func (h *HelpHandler) Handle(_ context.Context, req Request) (*Response, error) {
	text := presenter.HelpText
	if req.IsBotAdmin && h.features.EnabledFor(FeatureAdminCommands, req.UserID) {
		text += "\n\n" + presenter.AdminHelpText
	}
	return markdownResponse(text), nil
}
