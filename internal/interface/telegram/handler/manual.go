package handler

import (
	"context"
	"fmt"

	"github.com/wordle-hub/wordle-stats-bot/internal/application/command"
	"github.com/wordle-hub/wordle-stats-bot/internal/domain/player"
	"github.com/wordle-hub/wordle-stats-bot/internal/domain/shared"
	"github.com/wordle-hub/wordle-stats-bot/internal/interface/telegram/presenter"
)

// ══════════════════════════════════════════════════════════════════════════════
// MANUAL UPDATE HANDLER
// Handles /name, /games, /streak, /average, /adjust and the two toggles.
// One handler instance serves every manual command; the router passes the
// command name through.
// ══════════════════════════════════════════════════════════════════════════════

// ManualHandler handles manual stat edits.
type ManualHandler struct {
	update *command.ManualUpdateHandler
}

// NewManualHandler creates a new ManualHandler.
func NewManualHandler(update *command.ManualUpdateHandler) *ManualHandler {
	return &ManualHandler{update: update}
}

// Commands returns the command names this handler serves.
func (h *ManualHandler) Commands() []string {
	names := make([]string, 0, len(command.ManualOps))
	for _, op := range command.ManualOps {
		names = append(names, string(op))
	}
	return names
}

// Handle processes a manual edit command.
func (h *ManualHandler) Handle(ctx context.Context, name string, req Request) (*Response, error) {
	op := command.ManualOp(name)

	res, err := h.update.Handle(ctx, command.ManualUpdateCommand{
		UserID: player.UserID(req.UserID),
		ChatID: player.ChatID(req.ChatID),
		Op:     op,
		Args:   req.Args,
	})
	if err != nil {
		if shared.IsNotFound(err) {
			return textResponse(presenter.NoDataText + presenter.NoDataUpdateSuffix), nil
		}
		if text, ok := userErrorText(err, name); ok {
			return errorResponse(text), nil
		}
		return nil, fmt.Errorf("%s: %w", name, err)
	}

	return markdownResponse(confirmation(res)), nil
}

func confirmation(res *command.ManualUpdateResult) string {
	switch res.Op {
	case command.OpAverage:
		return presenter.UpdatedText(string(res.Op), presenter.FormatAvg(res.Player.ScoreAvg))
	case command.OpAdjust:
		return presenter.AdjustedText(res.Player.NumGames, res.Player.ScoreAvg)
	case command.OpToggleRetroactive:
		return presenter.ToggledText("Retroactive updates", res.Enabled)
	case command.OpToggleWarning:
		return presenter.ToggledText("Old result warnings", res.Enabled)
	default:
		return presenter.UpdatedText(string(res.Op), res.Value)
	}
}
