package handler

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"
	"strings"

	"github.com/wordle-hub/wordle-stats-bot/internal/application/command"
	"github.com/wordle-hub/wordle-stats-bot/internal/application/query"
	"github.com/wordle-hub/wordle-stats-bot/internal/domain/player"
	"github.com/wordle-hub/wordle-stats-bot/internal/domain/result"
	"github.com/wordle-hub/wordle-stats-bot/internal/interface/telegram/presenter"
	"github.com/wordle-hub/wordle-stats-bot/pkg/logger"
)

// ══════════════════════════════════════════════════════════════════════════════
// ADMIN HANDLER
// Operator commands, available to configured bot admins only:
//   /adduser <user_id> <name> <result>  - share a result as a test account
//   /admingame <edition>                - force the global edition counter
//   /edition                            - show the global edition counter
//   /purgetest                          - delete test accounts
//   /restart                            - delete everything, counter to 0
// ══════════════════════════════════════════════════════════════════════════════

// Admin command names.
const (
	CmdAddUser   = "adduser"
	CmdAdminGame = "admingame"
	CmdEdition   = "edition"
	CmdPurgeTest = "purgetest"
	CmdRestart   = "restart"
)

// AdminHandler handles operator commands.
type AdminHandler struct {
	admin    *command.AdminHandler
	submit   *command.SubmitResultHandler
	features Features
	logger   *slog.Logger
}

// NewAdminHandler creates a new AdminHandler.
func NewAdminHandler(admin *command.AdminHandler, submit *command.SubmitResultHandler, features Features, log *slog.Logger) *AdminHandler {
	if log == nil {
		log = logger.Nop()
	}
	return &AdminHandler{
		admin:    admin,
		submit:   submit,
		features: featuresOrDefault(features),
		logger:   log,
	}
}

// Commands returns the command names this handler serves.
func (h *AdminHandler) Commands() []string {
	return []string{CmdAddUser, CmdAdminGame, CmdEdition, CmdPurgeTest, CmdRestart}
}

// Handle processes an admin command.
func (h *AdminHandler) Handle(ctx context.Context, name string, req Request) (*Response, error) {
	if !h.features.EnabledFor(FeatureAdminCommands, req.UserID) {
		return errorResponse(presenter.DisabledCommandText), nil
	}
	if !req.IsBotAdmin {
		return errorResponse(presenter.AdminOnlyText), nil
	}

	h.logger.InfoContext(ctx, "admin command",
		logger.UserID(req.UserID),
		logger.ChatID(req.ChatID),
		logger.Operation(name),
	)

	switch name {
	case CmdAddUser:
		return h.addUser(ctx, req)
	case CmdAdminGame:
		return h.setEdition(ctx, req)
	case CmdEdition:
		latest, err := h.admin.Edition(ctx)
		if err != nil {
			return nil, fmt.Errorf("edition: %w", err)
		}
		return textResponse(presenter.EditionText(latest)), nil
	case CmdPurgeTest:
		n, err := h.admin.PurgeSynthetic(ctx)
		if err != nil {
			return nil, fmt.Errorf("purgetest: %w", err)
		}
		return textResponse(presenter.PurgedText(n)), nil
	case CmdRestart:
		n, err := h.admin.Restart(ctx)
		if err != nil {
			return nil, fmt.Errorf("restart: %w", err)
		}
		return textResponse(presenter.RestartedText(n)), nil
	}

	return nil, fmt.Errorf("admin: unknown command %q", name)
}

// addUser parses "<user_id> <name words...> Wordle N x/6 ..." and submits
// the result for a synthetic account in the current chat.
func (h *AdminHandler) addUser(ctx context.Context, req Request) (*Response, error) {
	idx := strings.Index(req.Rest, "Wordle")
	if idx < 0 {
		return errorResponse(presenter.AddUserUsageText), nil
	}

	head := strings.Fields(req.Rest[:idx])
	if len(head) < 2 {
		return errorResponse(presenter.AddUserUsageText), nil
	}
	id, err := strconv.ParseInt(head[0], 10, 64)
	if err != nil || id <= 0 {
		return errorResponse(presenter.AddUserUsageText), nil
	}

	res, ok := result.Parse(req.Rest[idx:])
	if !ok {
		return errorResponse(presenter.AddUserInvalidText), nil
	}

	out, err := h.submit.Handle(ctx, command.SubmitResultCommand{
		UserID:    player.UserID(id),
		ChatID:    player.ChatID(req.ChatID),
		Username:  strings.Join(head[1:], " "),
		Edition:   res.Edition,
		Tries:     res.Tries,
		Synthetic: true,
	})
	if err != nil {
		return nil, fmt.Errorf("adduser: %w", err)
	}

	if out.Outcome == command.OutcomeCreated {
		return viewResponse(presenter.FormatNewPlayer(query.StatsOf(out.Player))), nil
	}
	return viewResponse(presenter.FormatStats(&query.GetStatsResult{
		Stats:         query.StatsOf(out.Player),
		LatestEdition: out.LatestEdition,
	})), nil
}

func (h *AdminHandler) setEdition(ctx context.Context, req Request) (*Response, error) {
	if len(req.Args) != 1 {
		return errorResponse(presenter.AdminGameUsageText), nil
	}
	edition, err := strconv.Atoi(strings.ReplaceAll(req.Args[0], ",", ""))
	if err != nil || edition < 0 {
		return errorResponse(presenter.AdminGameUsageText), nil
	}

	if err := h.admin.SetEdition(ctx, edition); err != nil {
		return nil, fmt.Errorf("admingame: %w", err)
	}
	return textResponse(presenter.EditionSetText(edition)), nil
}
