// Package storetest holds the behavioural contract shared by every player
// store and edition counter backend.
package storetest

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/brianvoe/gofakeit/v7"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wordle-hub/wordle-stats-bot/internal/domain/player"
	"github.com/wordle-hub/wordle-stats-bot/internal/domain/shared"
)

// NewAggregate builds a valid aggregate for user id in chat.
func NewAggregate(t *testing.T, id player.UserID, chat player.ChatID, edition int) *player.Aggregate {
	t.Helper()
	agg, err := player.NewAggregate(player.NewAggregateParams{
		UserID:   id,
		ChatID:   chat,
		Username: gofakeit.New(uint64(id)).FirstName(),
		Edition:  edition,
		Tries:    4,
		Now:      time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC),
	})
	require.NoError(t, err)
	return agg
}

// RunRepository exercises a player.Repository produced by newRepo.
// Each subtest receives a fresh, empty repository.
func RunRepository(t *testing.T, newRepo func(t *testing.T) player.Repository) {
	ctx := context.Background()

	t.Run("get missing", func(t *testing.T) {
		repo := newRepo(t)
		_, err := repo.Get(ctx, 1)
		assert.ErrorIs(t, err, shared.ErrPlayerNotFound)
	})

	t.Run("create and get", func(t *testing.T) {
		repo := newRepo(t)
		agg := NewAggregate(t, 1, -10, 100)
		require.NoError(t, repo.Create(ctx, agg))

		got, err := repo.Get(ctx, 1)
		require.NoError(t, err)
		assert.Equal(t, agg.Username, got.Username)
		assert.Equal(t, 1, got.NumGames)
		assert.Equal(t, 1, got.Streak)
		assert.Equal(t, 4.0, got.ScoreAvg)
		assert.Equal(t, 100, got.LastGame)
		assert.Equal(t, player.ChatID(-10), got.LastActiveChat)
		assert.Equal(t, []player.ChatID{-10}, got.MemberOfChats)
		assert.True(t, got.Warning)
		assert.False(t, got.ToggleRetroactive)
	})

	t.Run("create duplicate", func(t *testing.T) {
		repo := newRepo(t)
		require.NoError(t, repo.Create(ctx, NewAggregate(t, 1, -10, 100)))
		err := repo.Create(ctx, NewAggregate(t, 1, -10, 100))
		assert.ErrorIs(t, err, shared.ErrPlayerAlreadyExists)
	})

	t.Run("conditional update applies on match", func(t *testing.T) {
		repo := newRepo(t)
		require.NoError(t, repo.Create(ctx, NewAggregate(t, 1, -10, 100)))
		got, err := repo.Get(ctx, 1)
		require.NoError(t, err)

		mut := player.Mutation{}.
			IncrementGames(1).
			IncrementStreak(1).
			SetScoreAvg(3.5).
			SetLastGame(101).
			JoinChat(-20)
		ok, err := repo.ConditionalUpdate(ctx, 1, player.Condition{}.AtVersion(got.Version), mut)
		require.NoError(t, err)
		require.True(t, ok)

		after, err := repo.Get(ctx, 1)
		require.NoError(t, err)
		assert.Equal(t, 2, after.NumGames)
		assert.Equal(t, 2, after.Streak)
		assert.InDelta(t, 3.5, after.ScoreAvg, 1e-9)
		assert.Equal(t, 101, after.LastGame)
		assert.Equal(t, []player.ChatID{-10, -20}, after.MemberOfChats)
		assert.Greater(t, after.Version, got.Version)
	})

	t.Run("conditional update stale", func(t *testing.T) {
		repo := newRepo(t)
		require.NoError(t, repo.Create(ctx, NewAggregate(t, 1, -10, 100)))

		ok, err := repo.ConditionalUpdate(ctx, 1, player.Condition{}.AtVersion(99), player.Mutation{}.SetStreak(9))
		require.NoError(t, err)
		assert.False(t, ok)

		ok, err = repo.ConditionalUpdate(ctx, 1, player.Condition{}.WithLastActiveChatNot(-10), player.Mutation{}.SetStreak(9))
		require.NoError(t, err)
		assert.False(t, ok)

		ok, err = repo.ConditionalUpdate(ctx, 1, player.Condition{}.WithLastGameAtMost(98), player.Mutation{}.SetStreak(0))
		require.NoError(t, err)
		assert.False(t, ok)

		got, err := repo.Get(ctx, 1)
		require.NoError(t, err)
		assert.Equal(t, 1, got.Streak)
	})

	t.Run("conditional update missing", func(t *testing.T) {
		repo := newRepo(t)
		_, err := repo.ConditionalUpdate(ctx, 1, player.Condition{}, player.Mutation{}.SetStreak(2))
		assert.ErrorIs(t, err, shared.ErrPlayerNotFound)
	})

	t.Run("membership stays a set", func(t *testing.T) {
		repo := newRepo(t)
		require.NoError(t, repo.Create(ctx, NewAggregate(t, 1, -10, 100)))
		for i := 0; i < 3; i++ {
			ok, err := repo.ConditionalUpdate(ctx, 1, player.Condition{}, player.Mutation{}.JoinChat(-10))
			require.NoError(t, err)
			require.True(t, ok)
		}
		got, err := repo.Get(ctx, 1)
		require.NoError(t, err)
		assert.Equal(t, []player.ChatID{-10}, got.MemberOfChats)
	})

	t.Run("delete", func(t *testing.T) {
		repo := newRepo(t)
		require.NoError(t, repo.Create(ctx, NewAggregate(t, 1, -10, 100)))
		require.NoError(t, repo.Delete(ctx, 1))

		_, err := repo.Get(ctx, 1)
		assert.ErrorIs(t, err, shared.ErrPlayerNotFound)
		assert.ErrorIs(t, repo.Delete(ctx, 1), shared.ErrPlayerNotFound)
	})

	t.Run("list by chat keeps creation order", func(t *testing.T) {
		repo := newRepo(t)
		for _, id := range []player.UserID{30, 10, 20} {
			require.NoError(t, repo.Create(ctx, NewAggregate(t, id, -10, 100)))
		}
		require.NoError(t, repo.Create(ctx, NewAggregate(t, 40, -99, 100)))

		members, err := repo.ListByChat(ctx, -10)
		require.NoError(t, err)
		ids := make([]player.UserID, 0, len(members))
		for _, m := range members {
			ids = append(ids, m.UserID)
		}
		assert.Equal(t, []player.UserID{30, 10, 20}, ids)

		empty, err := repo.ListByChat(ctx, -12345)
		require.NoError(t, err)
		assert.Empty(t, empty)
	})

	t.Run("remove chat", func(t *testing.T) {
		repo := newRepo(t)
		require.NoError(t, repo.Create(ctx, NewAggregate(t, 1, -10, 100)))
		require.NoError(t, repo.Create(ctx, NewAggregate(t, 2, -10, 100)))
		require.NoError(t, repo.Create(ctx, NewAggregate(t, 3, -20, 100)))

		n, err := repo.RemoveChat(ctx, -10)
		require.NoError(t, err)
		assert.Equal(t, 2, n)

		members, err := repo.ListByChat(ctx, -10)
		require.NoError(t, err)
		assert.Empty(t, members)

		n, err = repo.RemoveChat(ctx, -10)
		require.NoError(t, err)
		assert.Zero(t, n)

		_, err = repo.Get(ctx, 1)
		assert.NoError(t, err, "aggregate survives a chat clear")
	})

	t.Run("purge synthetic only", func(t *testing.T) {
		repo := newRepo(t)
		human := NewAggregate(t, 1, -10, 100)
		fake := NewAggregate(t, 2, -10, 100)
		fake.Synthetic = true
		require.NoError(t, repo.Create(ctx, human))
		require.NoError(t, repo.Create(ctx, fake))

		n, err := repo.Purge(ctx, player.PurgeSynthetic)
		require.NoError(t, err)
		assert.Equal(t, 1, n)

		_, err = repo.Get(ctx, 2)
		assert.ErrorIs(t, err, shared.ErrPlayerNotFound)
		_, err = repo.Get(ctx, 1)
		assert.NoError(t, err)

		n, err = repo.Purge(ctx, player.PurgeAll)
		require.NoError(t, err)
		assert.Equal(t, 1, n)
	})

	t.Run("concurrent increments are not lost", func(t *testing.T) {
		repo := newRepo(t)
		require.NoError(t, repo.Create(ctx, NewAggregate(t, 1, -10, 100)))

		const workers = 8
		var wg sync.WaitGroup
		for i := 0; i < workers; i++ {
			wg.Add(1)
			go func() {
				defer wg.Done()
				ok, err := repo.ConditionalUpdate(ctx, 1, player.Condition{}, player.Mutation{}.IncrementGames(1))
				assert.NoError(t, err)
				assert.True(t, ok)
			}()
		}
		wg.Wait()

		got, err := repo.Get(ctx, 1)
		require.NoError(t, err)
		assert.Equal(t, 1+workers, got.NumGames)
	})
}

// RunEditionCounter exercises a player.EditionCounter produced by newCounter.
func RunEditionCounter(t *testing.T, newCounter func(t *testing.T) player.EditionCounter) {
	ctx := context.Background()

	t.Run("starts at zero", func(t *testing.T) {
		c := newCounter(t)
		v, err := c.Latest(ctx)
		require.NoError(t, err)
		assert.Zero(t, v)
	})

	t.Run("advance keeps the maximum", func(t *testing.T) {
		c := newCounter(t)
		for _, e := range []int{5, 3, 9, 7} {
			_, err := c.Advance(ctx, e)
			require.NoError(t, err)
		}
		v, err := c.Latest(ctx)
		require.NoError(t, err)
		assert.Equal(t, 9, v)

		got, err := c.Advance(ctx, 8)
		require.NoError(t, err)
		assert.Equal(t, 9, got)
	})

	t.Run("reset can move backwards", func(t *testing.T) {
		c := newCounter(t)
		_, err := c.Advance(ctx, 50)
		require.NoError(t, err)
		require.NoError(t, c.Reset(ctx, 10))

		v, err := c.Latest(ctx)
		require.NoError(t, err)
		assert.Equal(t, 10, v)
	})

	t.Run("concurrent advances", func(t *testing.T) {
		c := newCounter(t)
		var wg sync.WaitGroup
		for e := 1; e <= 20; e++ {
			wg.Add(1)
			go func(e int) {
				defer wg.Done()
				_, err := c.Advance(ctx, e)
				assert.NoError(t, err)
			}(e)
		}
		wg.Wait()

		v, err := c.Latest(ctx)
		require.NoError(t, err)
		assert.Equal(t, 20, v)
	})
}
