package handler

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/wordle-hub/wordle-stats-bot/internal/application/command"
	"github.com/wordle-hub/wordle-stats-bot/internal/domain/player"
	"github.com/wordle-hub/wordle-stats-bot/internal/domain/shared"
	"github.com/wordle-hub/wordle-stats-bot/internal/interface/telegram/presenter"
	"github.com/wordle-hub/wordle-stats-bot/pkg/logger"
)

// ══════════════════════════════════════════════════════════════════════════════
// CLEAR HANDLER
// Handles /clear and its confirmation buttons.
//   /clear       - delete the sender's aggregate everywhere
//   /clear chat  - drop every member of this chat's leaderboard
// Nothing is deleted until the requester presses "Yes".
// ══════════════════════════════════════════════════════════════════════════════

// ClearHandler handles the /clear command.
type ClearHandler struct {
	clear    *command.ClearDataHandler
	admins   ChatAdminChecker
	features Features
	logger   *slog.Logger
}

// NewClearHandler creates a new ClearHandler. admins may be nil, in which
// case only bot admins can clear a chat.
func NewClearHandler(clear *command.ClearDataHandler, admins ChatAdminChecker, features Features, log *slog.Logger) *ClearHandler {
	if log == nil {
		log = logger.Nop()
	}
	return &ClearHandler{
		clear:    clear,
		admins:   admins,
		features: featuresOrDefault(features),
		logger:   log,
	}
}

// Handle asks for confirmation.
func (h *ClearHandler) Handle(ctx context.Context, req Request) (*Response, error) {
	scope := presenter.ClearScopeUser
	if len(req.Args) > 0 && req.Args[0] == presenter.ClearScopeChat {
		scope = presenter.ClearScopeChat
	}

	if scope == presenter.ClearScopeChat {
		if text, ok := h.checkChatClear(ctx, req.ChatID, req.UserID, req.IsBotAdmin, req.IsGroup()); !ok {
			return errorResponse(text), nil
		}
	}

	return &Response{
		Text:      presenter.ClearConfirmText(req.Mention(), scope == presenter.ClearScopeChat),
		ParseMode: presenter.ParseMode,
		Keyboard:  presenter.ClearConfirmKeyboard(scope, req.UserID),
	}, nil
}

// HandleCallback processes a confirmation button.
func (h *ClearHandler) HandleCallback(ctx context.Context, req CallbackRequest) (*CallbackResponse, error) {
	cb, ok := presenter.ParseClearCallback(req.Data)
	if !ok {
		return &CallbackResponse{RemoveKeyboard: true}, nil
	}
	if cb.RequesterID != req.UserID {
		return &CallbackResponse{Answer: presenter.NotYourButtonText, ShowAlert: true}, nil
	}

	// ─────────────────────────────────────────────────────────────────────────
	// Cancel
	// ─────────────────────────────────────────────────────────────────────────
	if cb.Scope == presenter.ClearScopeCancel {
		return done(presenter.ClearAbortedText), nil
	}

	// ─────────────────────────────────────────────────────────────────────────
	// Chat leaderboard
	// ─────────────────────────────────────────────────────────────────────────
	if cb.Scope == presenter.ClearScopeChat {
		// Права проверяются повторно: с момента вопроса они могли измениться.
		if text, ok := h.checkChatClear(ctx, req.ChatID, req.UserID, req.IsBotAdmin, true); !ok {
			return &CallbackResponse{Answer: text, ShowAlert: true, RemoveKeyboard: true}, nil
		}

		n, err := h.clear.ClearChat(ctx, player.ChatID(req.ChatID))
		if err != nil {
			if errors.Is(err, shared.ErrLeaderboardEmpty) {
				return done(presenter.NoChatDataText), nil
			}
			return nil, fmt.Errorf("clear chat: %w", err)
		}

		h.logger.InfoContext(ctx, "chat cleared",
			logger.ChatID(req.ChatID),
			logger.UserID(req.UserID),
			slog.Int("members", n),
		)
		return done(presenter.ClearedChatText), nil
	}

	// ─────────────────────────────────────────────────────────────────────────
	// Own data
	// ─────────────────────────────────────────────────────────────────────────
	if err := h.clear.ClearUser(ctx, player.UserID(req.UserID)); err != nil {
		if shared.IsNotFound(err) {
			return done(presenter.NoUserDataText), nil
		}
		return nil, fmt.Errorf("clear user: %w", err)
	}
	return done(presenter.ClearedUserText), nil
}

// checkChatClear returns the refusal text when the user may not clear the chat.
func (h *ClearHandler) checkChatClear(ctx context.Context, chatID, userID int64, botAdmin, group bool) (string, bool) {
	if !h.features.EnabledFor(FeatureClearChat, userID) {
		return presenter.DisabledCommandText, false
	}
	if !group {
		return presenter.GroupOnlyText, false
	}
	if botAdmin {
		return "", true
	}
	if h.admins == nil {
		return presenter.ChatAdminOnlyText, false
	}

	ok, err := h.admins.IsChatAdmin(ctx, chatID, userID)
	if err != nil {
		h.logger.WarnContext(ctx, "chat admin check failed",
			logger.ChatID(chatID),
			logger.UserID(userID),
			logger.Err(err),
		)
		return presenter.GenericErrorText, false
	}
	if !ok {
		return presenter.ChatAdminOnlyText, false
	}
	return "", true
}

func done(text string) *CallbackResponse {
	return &CallbackResponse{RemoveKeyboard: true, Message: textResponse(text)}
}
