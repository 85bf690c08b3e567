package handler

import (
	"context"
	"fmt"

	"github.com/wordle-hub/wordle-stats-bot/internal/application/command"
	"github.com/wordle-hub/wordle-stats-bot/internal/application/query"
	"github.com/wordle-hub/wordle-stats-bot/internal/domain/player"
	"github.com/wordle-hub/wordle-stats-bot/internal/domain/result"
	"github.com/wordle-hub/wordle-stats-bot/internal/interface/telegram/presenter"
)

// ══════════════════════════════════════════════════════════════════════════════
// SHARE HANDLER
// Handles plain messages. A message that parses as a shared Wordle result is
// folded into the sender's stats; anything else is ignored silently.
// ══════════════════════════════════════════════════════════════════════════════

// ShareHandler handles shared Wordle results.
type ShareHandler struct {
	submit   *command.SubmitResultHandler
	features Features
}

// NewShareHandler creates a new ShareHandler.
func NewShareHandler(submit *command.SubmitResultHandler, features Features) *ShareHandler {
	return &ShareHandler{submit: submit, features: featuresOrDefault(features)}
}

// Handle processes a plain message. A nil response means nothing to send.
func (h *ShareHandler) Handle(ctx context.Context, req Request) (*Response, error) {
	res, ok := result.Parse(req.Text)
	if !ok {
		return nil, nil
	}

	out, err := h.submit.Handle(ctx, command.SubmitResultCommand{
		UserID:   player.UserID(req.UserID),
		ChatID:   player.ChatID(req.ChatID),
		Username: req.DisplayName(),
		Edition:  res.Edition,
		Tries:    res.Tries,
	})
	if err != nil {
		return nil, fmt.Errorf("share: %w", err)
	}

	return h.reply(req, out), nil
}

func (h *ShareHandler) reply(req Request, out *command.SubmitResultResult) *Response {
	if !out.Notify {
		return nil
	}

	switch out.Outcome {
	case command.OutcomeCreated:
		resp := viewResponse(presenter.FormatNewPlayer(query.StatsOf(out.Player)))
		resp.ReplyTo = true
		return resp

	case command.OutcomeDuplicate:
		if !h.features.EnabledFor(FeatureDuplicateNotice, req.UserID) {
			return nil
		}
		return &Response{Text: presenter.DuplicateText, ReplyTo: true}

	case command.OutcomeRetroactiveRejected:
		if !h.features.EnabledFor(FeatureRetroactiveWarning, req.UserID) {
			return nil
		}
		return &Response{Text: presenter.RetroactiveWarningTxt, ReplyTo: true}
	}

	return nil
}
