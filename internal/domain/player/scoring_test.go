package player

import (
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wordle-hub/wordle-stats-bot/internal/domain/shared"
)

func newTestAggregate(t *testing.T) *Aggregate {
	t.Helper()
	a, err := NewAggregate(NewAggregateParams{
		UserID:   1,
		ChatID:   -100,
		Username: "alice",
		Edition:  100,
		Tries:    4,
		Now:      time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC),
	})
	require.NoError(t, err)
	return a
}

func TestNewAggregate_Defaults(t *testing.T) {
	a := newTestAggregate(t)

	assert.Equal(t, 1, a.NumGames)
	assert.Equal(t, 1, a.Streak)
	assert.Equal(t, 4.0, a.ScoreAvg)
	assert.Equal(t, 100, a.LastGame)
	assert.Equal(t, ChatID(-100), a.LastActiveChat)
	assert.Equal(t, []ChatID{-100}, a.MemberOfChats)
	assert.False(t, a.ToggleRetroactive)
	assert.True(t, a.Warning)
	assert.Equal(t, int64(1), a.Version)
	assert.NoError(t, a.Validate())
}

func TestNewAggregate_Validation(t *testing.T) {
	base := NewAggregateParams{UserID: 1, ChatID: -1, Username: "bob", Edition: 1, Tries: 3}

	tests := []struct {
		name   string
		mutate func(p *NewAggregateParams)
		want   error
	}{
		{"missing user", func(p *NewAggregateParams) { p.UserID = 0 }, shared.ErrInvalidUserID},
		{"missing chat", func(p *NewAggregateParams) { p.ChatID = 0 }, shared.ErrInvalidChatID},
		{"blank name", func(p *NewAggregateParams) { p.Username = "   " }, shared.ErrEmptyUsername},
		{"negative edition", func(p *NewAggregateParams) { p.Edition = -1 }, shared.ErrInvalidEdition},
		{"edition above bound", func(p *NewAggregateParams) { p.Edition = MaxStat + 1 }, shared.ErrInvalidEdition},
		{"zero tries", func(p *NewAggregateParams) { p.Tries = 0 }, shared.ErrInvalidTries},
		{"eight tries", func(p *NewAggregateParams) { p.Tries = 8 }, shared.ErrInvalidTries},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := base
			tt.mutate(&p)
			_, err := NewAggregate(p)
			assert.ErrorIs(t, err, tt.want)
		})
	}
}

func TestAggregate_ValidateBounds(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(a *Aggregate)
		want   error
	}{
		{"games above bound", func(a *Aggregate) { a.NumGames = MaxStat + 1 }, shared.ErrStatTooLarge},
		{"streak above bound", func(a *Aggregate) { a.Streak = MaxStat + 1 }, shared.ErrStatTooLarge},
		{"last game above bound", func(a *Aggregate) { a.LastGame = MaxStat + 1 }, shared.ErrStatTooLarge},
		{"wrapped games", func(a *Aggregate) { a.NumGames = math.MinInt }, shared.ErrNegativeStat},
		{"average above seven", func(a *Aggregate) { a.ScoreAvg = 7.5 }, shared.ErrInvalidAvg},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			a := newTestAggregate(t)
			tt.mutate(a)
			assert.ErrorIs(t, a.Validate(), tt.want)
		})
	}
}

func TestClassify(t *testing.T) {
	a := newTestAggregate(t)

	assert.Equal(t, TransitionCreate, Classify(nil, 100))
	assert.Equal(t, TransitionSameEdition, Classify(a, 100))
	assert.Equal(t, TransitionNextEdition, Classify(a, 101))
	assert.Equal(t, TransitionGappedEdition, Classify(a, 103))
	assert.Equal(t, TransitionOlderRejected, Classify(a, 99))

	a.ToggleRetroactive = true
	assert.Equal(t, TransitionOlderAccepted, Classify(a, 99))
}

func TestClassify_LargeEditions(t *testing.T) {
	a := newTestAggregate(t)
	a.LastGame = math.MaxInt

	assert.Equal(t, TransitionSameEdition, Classify(a, math.MaxInt))
	assert.Equal(t, TransitionOlderRejected, Classify(a, 0))
	assert.Equal(t, TransitionOlderRejected, Classify(a, math.MaxInt-1))

	a.LastGame = MaxStat
	assert.Equal(t, TransitionNextEdition, Classify(a, MaxStat+1))
	assert.Equal(t, TransitionGappedEdition, Classify(a, math.MaxInt))
}

func TestPlanSubmission_NextEdition(t *testing.T) {
	a := newTestAggregate(t)

	plan := PlanSubmission(a, -100, 101, 3)
	require.True(t, plan.NeedsWrite())
	require.True(t, plan.Condition.Matches(a))

	plan.Mutation.Apply(a, time.Now())

	assert.Equal(t, 2, a.NumGames)
	assert.Equal(t, 2, a.Streak)
	assert.InDelta(t, 3.5, a.ScoreAvg, 1e-9)
	assert.Equal(t, 101, a.LastGame)
	assert.Equal(t, int64(2), a.Version)
}

func TestPlanSubmission_GappedEditionResetsStreak(t *testing.T) {
	a := newTestAggregate(t)
	a.Streak = 5

	plan := PlanSubmission(a, -100, 110, 1)
	plan.Mutation.Apply(a, time.Now())

	assert.Equal(t, TransitionGappedEdition, plan.Transition)
	assert.Equal(t, 1, a.Streak)
	assert.Equal(t, 2, a.NumGames)
	assert.InDelta(t, 2.5, a.ScoreAvg, 1e-9)
	assert.Equal(t, 110, a.LastGame)
}

func TestPlanSubmission_SameEdition(t *testing.T) {
	t.Run("same chat is a no-op", func(t *testing.T) {
		a := newTestAggregate(t)
		plan := PlanSubmission(a, -100, 100, 2)

		assert.Equal(t, TransitionSameEdition, plan.Transition)
		assert.False(t, plan.NeedsWrite())
	})

	t.Run("other chat joins membership only", func(t *testing.T) {
		a := newTestAggregate(t)
		plan := PlanSubmission(a, -200, 100, 2)
		require.True(t, plan.Condition.Matches(a))

		plan.Mutation.Apply(a, time.Now())

		assert.Equal(t, ChatID(-200), a.LastActiveChat)
		assert.Equal(t, []ChatID{-100, -200}, a.MemberOfChats)
		assert.Equal(t, 1, a.NumGames)
		assert.Equal(t, 4.0, a.ScoreAvg)
	})

	t.Run("condition fails once the chat has been recorded", func(t *testing.T) {
		a := newTestAggregate(t)
		plan := PlanSubmission(a, -200, 100, 2)
		a.LastActiveChat = -200

		assert.False(t, plan.Condition.Matches(a))
	})
}

func TestPlanSubmission_Older(t *testing.T) {
	t.Run("rejected without retroactive mode", func(t *testing.T) {
		a := newTestAggregate(t)
		plan := PlanSubmission(a, -100, 90, 2)

		assert.Equal(t, TransitionOlderRejected, plan.Transition)
		assert.False(t, plan.NeedsWrite())
	})

	t.Run("accepted keeps streak and last game", func(t *testing.T) {
		a := newTestAggregate(t)
		a.ToggleRetroactive = true
		a.Streak = 3

		plan := PlanSubmission(a, -100, 90, 2)
		plan.Mutation.Apply(a, time.Now())

		assert.Equal(t, 2, a.NumGames)
		assert.Equal(t, 3, a.Streak)
		assert.Equal(t, 100, a.LastGame)
		assert.InDelta(t, 3.0, a.ScoreAvg, 1e-9)
	})
}

func TestWeightedAverage(t *testing.T) {
	assert.InDelta(t, 4.0, WeightedAverage(0, 0, 4), 1e-9)
	assert.InDelta(t, 3.5, WeightedAverage(4, 1, 3), 1e-9)
	assert.InDelta(t, 5.0, WeightedAverage(4, 2, 7), 1e-9)
}

func TestMergeHistory(t *testing.T) {
	games, avg, err := MergeHistory(4.0, 10, 3.0, 10)
	require.NoError(t, err)
	assert.Equal(t, 20, games)
	assert.InDelta(t, 3.5, avg, 1e-9)

	_, _, err = MergeHistory(4.0, 10, 7.5, 10)
	assert.ErrorIs(t, err, shared.ErrInvalidAvg)

	_, _, err = MergeHistory(4.0, 10, 3.0, -1)
	assert.True(t, shared.IsValidation(err))

	_, _, err = MergeHistory(4.0, 0, 3.0, 0)
	assert.ErrorIs(t, err, shared.ErrInvalidInput)

	_, _, err = MergeHistory(7.0, 1, 7.0, math.MaxInt)
	assert.ErrorIs(t, err, shared.ErrStatTooLarge)

	_, _, err = MergeHistory(4.0, MaxStat, 3.0, 1)
	assert.ErrorIs(t, err, shared.ErrStatTooLarge)

	games, _, err = MergeHistory(4.0, MaxStat-1, 3.0, 1)
	require.NoError(t, err)
	assert.Equal(t, MaxStat, games)
}

func TestDecayDue(t *testing.T) {
	a := newTestAggregate(t)
	a.Streak = 4

	assert.False(t, DecayDue(a, 100))
	assert.False(t, DecayDue(a, 101))
	assert.True(t, DecayDue(a, 102))

	a.Streak = 0
	assert.False(t, DecayDue(a, 200))
}
