package command

import (
	"context"
	"fmt"
	"log/slog"
	"math"
	"strconv"
	"strings"
	"time"

	"github.com/wordle-hub/wordle-stats-bot/internal/domain/player"
	"github.com/wordle-hub/wordle-stats-bot/internal/domain/shared"
	"github.com/wordle-hub/wordle-stats-bot/pkg/logger"
	"github.com/wordle-hub/wordle-stats-bot/pkg/retry"
)

// ══════════════════════════════════════════════════════════════════════════════
// MANUAL UPDATE COMMAND
// Lets a user correct their own aggregate from chat commands.
// ══════════════════════════════════════════════════════════════════════════════

// ManualOp names a manual edit. Values match the chat command names.
type ManualOp string

const (
	OpName              ManualOp = "name"
	OpGames             ManualOp = "games"
	OpStreak            ManualOp = "streak"
	OpAverage           ManualOp = "average"
	OpAdjust            ManualOp = "adjust"
	OpToggleRetroactive ManualOp = "toggleretroactive"
	OpToggleWarning     ManualOp = "togglewarning"
)

// ManualOps lists every supported operation.
var ManualOps = []ManualOp{
	OpName, OpGames, OpStreak, OpAverage, OpAdjust, OpToggleRetroactive, OpToggleWarning,
}

// IsValid reports whether op is a known operation.
func (op ManualOp) IsValid() bool {
	for _, o := range ManualOps {
		if o == op {
			return true
		}
	}
	return false
}

// ArgCount returns how many arguments the operation expects.
// Name takes the rest of the line and reports 1.
func (op ManualOp) ArgCount() int {
	switch op {
	case OpAdjust:
		return 2
	case OpToggleRetroactive, OpToggleWarning:
		return 0
	default:
		return 1
	}
}

// ManualUpdateCommand contains a raw chat command for a manual edit.
type ManualUpdateCommand struct {
	UserID player.UserID
	ChatID player.ChatID
	Op     ManualOp

	// Args are the whitespace-separated words after the command.
	Args []string
}

// ManualUpdateResult contains the state after a manual edit.
type ManualUpdateResult struct {
	Op     ManualOp
	Player *player.Aggregate

	// Value is the accepted input as it should be echoed back.
	Value string

	// Enabled is the new flag value for toggle operations.
	Enabled bool
}

// ManualUpdateHandler handles ManualUpdateCommand.
type ManualUpdateHandler struct {
	repo    player.Repository
	retrier *retry.Retrier
	logger  *slog.Logger
	now     func() time.Time
}

// NewManualUpdateHandler creates a new ManualUpdateHandler.
func NewManualUpdateHandler(repo player.Repository, log *slog.Logger) *ManualUpdateHandler {
	if log == nil {
		log = logger.Nop()
	}
	return &ManualUpdateHandler{
		repo:    repo,
		retrier: retry.ConflictRetrier(DefaultSubmitResultConfig().MaxAttempts, shared.IsConcurrentModification),
		logger:  log.With(logger.Component("manual_update")),
		now:     func() time.Time { return time.Now().UTC() },
	}
}

// Handle parses the arguments and applies the edit.
func (h *ManualUpdateHandler) Handle(ctx context.Context, cmd ManualUpdateCommand) (*ManualUpdateResult, error) {
	if !cmd.Op.IsValid() {
		return nil, fmt.Errorf("manual_update: %w", shared.ErrUnknownOperation)
	}
	if !cmd.UserID.IsValid() {
		return nil, fmt.Errorf("manual_update: %w", shared.ErrInvalidUserID)
	}

	// ─────────────────────────────────────────────────────────────────────────
	// Step 1: Parse arguments before touching storage
	// ─────────────────────────────────────────────────────────────────────────
	parsed, err := parseEdit(cmd.Op, cmd.Args)
	if err != nil {
		return nil, fmt.Errorf("manual_update: %s: %w", cmd.Op, err)
	}

	// ─────────────────────────────────────────────────────────────────────────
	// Step 2: Read, build the mutation and write it under a version check
	// ─────────────────────────────────────────────────────────────────────────
	res, err := retry.DoValue(ctx, h.retrier, func(ctx context.Context) (*ManualUpdateResult, error) {
		return h.attempt(ctx, cmd, parsed)
	})
	if err != nil {
		return nil, fmt.Errorf("manual_update: %s: %w", cmd.Op, err)
	}

	h.logger.InfoContext(ctx, "aggregate edited",
		logger.UserID(int64(cmd.UserID)),
		logger.ChatID(int64(cmd.ChatID)),
		logger.Operation(string(cmd.Op)),
		slog.String("value", res.Value),
	)
	return res, nil
}

func (h *ManualUpdateHandler) attempt(ctx context.Context, cmd ManualUpdateCommand, e edit) (*ManualUpdateResult, error) {
	agg, err := h.repo.Get(ctx, cmd.UserID)
	if err != nil {
		return nil, err
	}

	res := &ManualUpdateResult{Op: cmd.Op, Player: agg}
	mut := player.Mutation{}

	switch cmd.Op {
	case OpName:
		mut = mut.SetUsername(e.name)
		res.Value = e.name
	case OpGames:
		mut = mut.SetNumGames(e.count)
		res.Value = strconv.Itoa(e.count)
	case OpStreak:
		mut = mut.SetStreak(e.count)
		res.Value = strconv.Itoa(e.count)
	case OpAverage:
		mut = mut.SetScoreAvg(e.avg)
		res.Value = strconv.FormatFloat(e.avg, 'f', -1, 64)
	case OpAdjust:
		games, avg, err := player.MergeHistory(agg.ScoreAvg, agg.NumGames, e.avg, e.count)
		if err != nil {
			return nil, err
		}
		mut = mut.SetNumGames(games).SetScoreAvg(avg)
		res.Value = fmt.Sprintf("%d %.3f", games, avg)
	case OpToggleRetroactive:
		res.Enabled = !agg.ToggleRetroactive
		mut = mut.SetToggleRetroactive(res.Enabled)
		res.Value = strconv.FormatBool(res.Enabled)
	case OpToggleWarning:
		res.Enabled = !agg.Warning
		mut = mut.SetWarning(res.Enabled)
		res.Value = strconv.FormatBool(res.Enabled)
	}

	if cmd.ChatID.IsValid() {
		mut = mut.JoinChat(cmd.ChatID)
	}

	next := agg.Clone()
	mut.Apply(next, h.now())
	if err := next.Validate(); err != nil {
		return nil, err
	}

	ok, err := h.repo.ConditionalUpdate(ctx, agg.UserID, player.Condition{}.AtVersion(agg.Version), mut)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, shared.ErrStaleAggregate
	}

	*agg = *next
	return res, nil
}

// ══════════════════════════════════════════════════════════════════════════════
// ARGUMENT PARSING
// ══════════════════════════════════════════════════════════════════════════════

type edit struct {
	name  string
	count int
	avg   float64
}

func parseEdit(op ManualOp, args []string) (edit, error) {
	var e edit
	if len(args) < op.ArgCount() {
		return e, shared.ErrMissingArgument
	}

	var err error
	switch op {
	case OpName:
		e.name, err = player.NormalizeUsername(strings.Join(args, " "))
	case OpGames:
		e.count, err = parseCount(args[0])
		if err == nil && e.count < 1 {
			err = shared.ErrInvalidGames
		}
	case OpStreak:
		e.count, err = parseCount(args[0])
		if err == nil && e.count < 0 {
			err = shared.ErrNegativeStat
		}
	case OpAverage:
		e.avg, err = parseAvg(args[0])
	case OpAdjust:
		if e.avg, err = parseAvg(args[0]); err != nil {
			return e, err
		}
		e.count, err = parseCount(args[1])
		if err == nil && e.count < 0 {
			err = shared.ErrNegativeStat
		}
	}
	return e, err
}

func parseCount(s string) (int, error) {
	n, err := strconv.Atoi(strings.TrimSpace(s))
	if err != nil {
		return 0, shared.ErrNotANumber
	}
	if n > player.MaxStat {
		return 0, shared.ErrStatTooLarge
	}
	return n, nil
}

func parseAvg(s string) (float64, error) {
	v, err := strconv.ParseFloat(strings.TrimSpace(s), 64)
	if err != nil || math.IsNaN(v) {
		return 0, shared.ErrNotANumber
	}
	if v > player.MaxScoreAvg {
		return 0, shared.ErrInvalidAvg
	}
	if v < 0 {
		return 0, shared.ErrNegativeStat
	}
	return v, nil
}
