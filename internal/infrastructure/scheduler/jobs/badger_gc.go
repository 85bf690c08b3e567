// Package jobs contains the scheduled maintenance jobs.
package jobs

import (
	"context"
	"log/slog"

	"github.com/wordle-hub/wordle-stats-bot/pkg/logger"
)

// ══════════════════════════════════════════════════════════════════════════════
// BADGER VALUE LOG GC
// ══════════════════════════════════════════════════════════════════════════════

// GarbageCollector is implemented by badgerstore.Store.
type GarbageCollector interface {
	CollectGarbage(ctx context.Context, discardRatio float64) (int, error)
}

// BadgerGCJob reclaims space left in the value log by overwritten players.
type BadgerGCJob struct {
	store        GarbageCollector
	discardRatio float64
	logger       *slog.Logger
}

// NewBadgerGCJob creates the job. discardRatio defaults to 0.5.
func NewBadgerGCJob(store GarbageCollector, discardRatio float64, log *slog.Logger) *BadgerGCJob {
	if discardRatio <= 0 || discardRatio >= 1 {
		discardRatio = 0.5
	}
	if log == nil {
		log = logger.Nop()
	}
	return &BadgerGCJob{store: store, discardRatio: discardRatio, logger: log}
}

// Name implements scheduler.Job.
func (j *BadgerGCJob) Name() string { return "badger_gc" }

// Run implements scheduler.Job.
func (j *BadgerGCJob) Run(ctx context.Context) error {
	n, err := j.store.CollectGarbage(ctx, j.discardRatio)
	if n > 0 {
		j.logger.InfoContext(ctx, "value log rewritten", slog.Int("files", n))
	}
	return err
}
