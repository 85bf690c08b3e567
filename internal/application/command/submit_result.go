// Package command contains write operations (CQRS - Commands).
package command

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/wordle-hub/wordle-stats-bot/internal/application/validation"
	"github.com/wordle-hub/wordle-stats-bot/internal/domain/player"
	"github.com/wordle-hub/wordle-stats-bot/internal/domain/shared"
	"github.com/wordle-hub/wordle-stats-bot/pkg/logger"
	"github.com/wordle-hub/wordle-stats-bot/pkg/retry"
)

// ══════════════════════════════════════════════════════════════════════════════
// SUBMIT RESULT COMMAND
// Folds one shared Wordle result into the user's aggregate.
// ══════════════════════════════════════════════════════════════════════════════

// SubmitResultCommand contains a parsed result and who shared it where.
type SubmitResultCommand struct {
	// UserID is the Telegram user who shared the result.
	UserID player.UserID `name:"user_id" validate:"gt=0"`

	// ChatID is the chat the result was shared in.
	ChatID player.ChatID `name:"chat_id" validate:"ne=0"`

	// Username is used only when the aggregate is created.
	Username string `name:"username" validate:"required"`

	// Edition is the puzzle number.
	Edition int `name:"edition" validate:"gte=0,lte=1000000"`

	// Tries is 1..6, or 7 for a failed game.
	Tries float64 `name:"tries" validate:"gte=1,lte=7"`

	// Synthetic marks admin-created test accounts.
	Synthetic bool
}

// SubmitOutcome tells the caller what happened to the submission.
type SubmitOutcome string

const (
	// OutcomeCreated - first result of a new user.
	OutcomeCreated SubmitOutcome = "created"
	// OutcomeUpdated - next or gapped edition folded in.
	OutcomeUpdated SubmitOutcome = "updated"
	// OutcomeRetroactiveAccepted - older edition folded in, streak untouched.
	OutcomeRetroactiveAccepted SubmitOutcome = "retroactive_accepted"
	// OutcomeDuplicate - edition already counted and re-shared in the same chat.
	OutcomeDuplicate SubmitOutcome = "duplicate"
	// OutcomeMembershipUpdated - edition already counted, shared in another chat.
	OutcomeMembershipUpdated SubmitOutcome = "membership_updated"
	// OutcomeRetroactiveRejected - older edition while retroactive mode is off.
	OutcomeRetroactiveRejected SubmitOutcome = "retroactive_rejected"
)

// SubmitResultResult contains the result of a submission.
type SubmitResultResult struct {
	// Outcome classifies the submission.
	Outcome SubmitOutcome

	// Transition is the engine branch that was taken.
	Transition player.Transition

	// Player is the aggregate after the submission.
	Player *player.Aggregate

	// Notify is true when the user should get a reply: a new aggregate, a
	// repeat in the same chat, or a rejected old result with warnings on.
	Notify bool

	// Tries echoes the submitted value.
	Tries float64

	// LatestEdition is the global counter after this submission.
	LatestEdition int

	// Attempts counts optimistic-concurrency rounds.
	Attempts int
}

// ══════════════════════════════════════════════════════════════════════════════
// HANDLER
// ══════════════════════════════════════════════════════════════════════════════

// SubmitResultConfig tunes the handler.
type SubmitResultConfig struct {
	// MaxAttempts bounds the read-plan-write loop under contention.
	MaxAttempts int
}

// DefaultSubmitResultConfig returns default configuration.
func DefaultSubmitResultConfig() SubmitResultConfig {
	return SubmitResultConfig{MaxAttempts: 8}
}

// SubmitResultHandler handles SubmitResultCommand.
type SubmitResultHandler struct {
	repo    player.Repository
	counter player.EditionCounter
	retrier *retry.Retrier
	logger  *slog.Logger
	now     func() time.Time
}

// NewSubmitResultHandler creates a new SubmitResultHandler.
func NewSubmitResultHandler(
	repo player.Repository,
	counter player.EditionCounter,
	config SubmitResultConfig,
	log *slog.Logger,
) *SubmitResultHandler {
	if config.MaxAttempts <= 0 {
		config.MaxAttempts = DefaultSubmitResultConfig().MaxAttempts
	}
	if log == nil {
		log = logger.Nop()
	}
	return &SubmitResultHandler{
		repo:    repo,
		counter: counter,
		retrier: retry.ConflictRetrier(config.MaxAttempts, shared.IsConcurrentModification),
		logger:  log.With(logger.Component("submit_result")),
		now:     func() time.Time { return time.Now().UTC() },
	}
}

// Handle executes the submission.
func (h *SubmitResultHandler) Handle(ctx context.Context, cmd SubmitResultCommand) (*SubmitResultResult, error) {
	if err := validation.Default().Validate(cmd); err != nil {
		return nil, fmt.Errorf("submit_result: %w", err)
	}

	// ─────────────────────────────────────────────────────────────────────────
	// Step 1: Advance the global edition counter
	// ─────────────────────────────────────────────────────────────────────────
	latest, err := retry.DoValue(ctx, h.retrier, func(ctx context.Context) (int, error) {
		return h.counter.Advance(ctx, cmd.Edition)
	})
	if err != nil {
		return nil, fmt.Errorf("submit_result: advance edition: %w", err)
	}

	// ─────────────────────────────────────────────────────────────────────────
	// Step 2: Read, plan and conditionally write until the write lands
	// ─────────────────────────────────────────────────────────────────────────
	attempts := 0
	res, err := retry.DoValue(ctx, h.retrier, func(ctx context.Context) (*SubmitResultResult, error) {
		attempts++
		return h.attempt(ctx, cmd)
	})
	if err != nil {
		return nil, fmt.Errorf("submit_result: %w", err)
	}

	res.Tries = cmd.Tries
	res.LatestEdition = latest
	res.Attempts = attempts

	h.logger.DebugContext(ctx, "result processed",
		logger.UserID(int64(cmd.UserID)),
		logger.ChatID(int64(cmd.ChatID)),
		logger.Edition(cmd.Edition),
		slog.String("outcome", string(res.Outcome)),
		slog.Int("attempts", attempts),
	)

	return res, nil
}

// attempt runs one read-plan-write round. It returns ErrStaleAggregate when
// another writer got in between the read and the write.
func (h *SubmitResultHandler) attempt(ctx context.Context, cmd SubmitResultCommand) (*SubmitResultResult, error) {
	agg, err := h.repo.Get(ctx, cmd.UserID)
	if shared.IsNotFound(err) {
		return h.create(ctx, cmd)
	}
	if err != nil {
		return nil, err
	}

	plan := player.PlanSubmission(agg, cmd.ChatID, cmd.Edition, cmd.Tries)
	res := &SubmitResultResult{Transition: plan.Transition, Player: agg}

	switch plan.Transition {
	case player.TransitionSameEdition:
		if agg.LastActiveChat == cmd.ChatID {
			res.Outcome = OutcomeDuplicate
			res.Notify = true
		} else {
			res.Outcome = OutcomeMembershipUpdated
		}
	case player.TransitionNextEdition, player.TransitionGappedEdition:
		res.Outcome = OutcomeUpdated
	case player.TransitionOlderAccepted:
		res.Outcome = OutcomeRetroactiveAccepted
	case player.TransitionOlderRejected:
		res.Outcome = OutcomeRetroactiveRejected
		res.Notify = agg.Warning
	}

	if !plan.NeedsWrite() {
		return res, nil
	}

	next := agg.Clone()
	plan.Mutation.Apply(next, h.now())
	if err := next.Validate(); err != nil {
		return nil, err
	}

	ok, err := h.repo.ConditionalUpdate(ctx, agg.UserID, plan.Condition, plan.Mutation)
	if shared.IsNotFound(err) {
		// cleared between read and write; the next round recreates it
		return nil, shared.ErrStaleAggregate
	}
	if err != nil {
		return nil, err
	}
	if !ok {
		if plan.Transition == player.TransitionSameEdition {
			// a concurrent delivery already recorded this chat
			return res, nil
		}
		return nil, shared.ErrStaleAggregate
	}

	*agg = *next
	return res, nil
}

func (h *SubmitResultHandler) create(ctx context.Context, cmd SubmitResultCommand) (*SubmitResultResult, error) {
	agg, err := player.NewAggregate(player.NewAggregateParams{
		UserID:    cmd.UserID,
		ChatID:    cmd.ChatID,
		Username:  cmd.Username,
		Edition:   cmd.Edition,
		Tries:     cmd.Tries,
		Synthetic: cmd.Synthetic,
		Now:       h.now(),
	})
	if err != nil {
		return nil, err
	}

	if err := h.repo.Create(ctx, agg); err != nil {
		if shared.IsAlreadyExists(err) {
			// first results from two chats raced; re-read and classify again
			return nil, shared.ErrStaleAggregate
		}
		return nil, err
	}

	return &SubmitResultResult{
		Outcome:    OutcomeCreated,
		Transition: player.TransitionCreate,
		Player:     agg,
		Notify:     true,
	}, nil
}
