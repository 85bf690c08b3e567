package command

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wordle-hub/wordle-stats-bot/internal/domain/player"
	"github.com/wordle-hub/wordle-stats-bot/internal/domain/shared"
)

func TestClearUser(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	err := f.clear.ClearUser(ctx, testUser)
	assert.True(t, shared.IsNotFound(err))

	f.share(t, testChat, 1, 3)
	require.NoError(t, f.clear.ClearUser(ctx, testUser))
	assert.Zero(t, f.store.Len())

	// a fresh share starts from scratch
	res := f.share(t, testChat, 2, 5)
	assert.Equal(t, OutcomeCreated, res.Outcome)
}

func TestClearChat(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	other := player.ChatID(-2)

	_, err := f.clear.ClearChat(ctx, testChat)
	assert.ErrorIs(t, err, shared.ErrLeaderboardEmpty)

	f.share(t, testChat, 1, 3)
	f.share(t, other, 1, 3)

	n, err := f.clear.ClearChat(ctx, testChat)
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	agg := f.get(t)
	assert.Equal(t, []player.ChatID{other}, agg.MemberOfChats)
	assert.Equal(t, 1, agg.NumGames)
}

func TestClearChat_RejoinOnSameEdition(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	f.share(t, testChat, 1, 3)
	_, err := f.clear.ClearChat(ctx, testChat)
	require.NoError(t, err)

	res := f.share(t, testChat, 1, 3)
	assert.Equal(t, OutcomeDuplicate, res.Outcome)
	assert.True(t, f.get(t).IsMemberOf(testChat))
}
