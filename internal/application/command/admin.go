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
// ADMIN COMMANDS
// Operator actions on the edition clock and on test data.
// Authorization is checked by the caller.
// ══════════════════════════════════════════════════════════════════════════════

// AdminHandler groups the operator commands.
type AdminHandler struct {
	repo    player.Repository
	counter player.EditionCounter
	logger  *slog.Logger
}

// NewAdminHandler creates a new AdminHandler.
func NewAdminHandler(repo player.Repository, counter player.EditionCounter, log *slog.Logger) *AdminHandler {
	if log == nil {
		log = logger.Nop()
	}
	return &AdminHandler{
		repo:    repo,
		counter: counter,
		logger:  log.With(logger.Component("admin")),
	}
}

// SetEdition overwrites the global edition counter, including moving it
// backwards.
func (h *AdminHandler) SetEdition(ctx context.Context, edition int) error {
	if edition < 0 || edition > player.MaxStat {
		return fmt.Errorf("set_edition: %w", shared.ErrInvalidEdition)
	}
	if err := h.counter.Reset(ctx, edition); err != nil {
		return fmt.Errorf("set_edition: %w", err)
	}

	h.logger.WarnContext(ctx, "edition counter overwritten", logger.Edition(edition))
	return nil
}

// Edition returns the global edition counter.
func (h *AdminHandler) Edition(ctx context.Context) (int, error) {
	latest, err := h.counter.Latest(ctx)
	if err != nil {
		return 0, fmt.Errorf("edition: %w", err)
	}
	return latest, nil
}

// PurgeSynthetic deletes the accounts created with /adduser.
func (h *AdminHandler) PurgeSynthetic(ctx context.Context) (int, error) {
	n, err := h.repo.Purge(ctx, player.PurgeSynthetic)
	if err != nil {
		return 0, fmt.Errorf("purge_synthetic: %w", err)
	}

	h.logger.WarnContext(ctx, "synthetic players purged", slog.Int("deleted", n))
	return n, nil
}

// Restart deletes every aggregate and resets the counter to zero.
func (h *AdminHandler) Restart(ctx context.Context) (int, error) {
	n, err := h.repo.Purge(ctx, player.PurgeAll)
	if err != nil {
		return 0, fmt.Errorf("restart: %w", err)
	}
	if err := h.counter.Reset(ctx, 0); err != nil {
		return n, fmt.Errorf("restart: reset edition: %w", err)
	}

	h.logger.WarnContext(ctx, "all data purged", slog.Int("deleted", n))
	return n, nil
}
