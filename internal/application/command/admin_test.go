package command

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wordle-hub/wordle-stats-bot/internal/domain/player"
	"github.com/wordle-hub/wordle-stats-bot/internal/domain/shared"
)

func TestAdmin_SetEdition(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	f.share(t, testChat, 900, 3)
	require.NoError(t, f.admin.SetEdition(ctx, 850))

	latest, err := f.admin.Edition(ctx)
	require.NoError(t, err)
	assert.Equal(t, 850, latest)

	assert.ErrorIs(t, f.admin.SetEdition(ctx, -1), shared.ErrInvalidEdition)
	assert.ErrorIs(t, f.admin.SetEdition(ctx, player.MaxStat+1), shared.ErrInvalidEdition)

	latest, err = f.admin.Edition(ctx)
	require.NoError(t, err)
	assert.Equal(t, 850, latest)
}

func TestAdmin_PurgeSyntheticKeepsHumans(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	f.share(t, testChat, 1, 3)
	for _, id := range []player.UserID{1001, 1002} {
		_, err := f.submit.Handle(ctx, SubmitResultCommand{
			UserID: id, ChatID: testChat, Username: "tester", Edition: 1, Tries: 4, Synthetic: true,
		})
		require.NoError(t, err)
	}
	require.Equal(t, 3, f.store.Len())

	n, err := f.admin.PurgeSynthetic(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, n)
	assert.Equal(t, 1, f.store.Len())
}

func TestAdmin_Restart(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	f.share(t, testChat, 77, 3)
	n, err := f.admin.Restart(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, n)
	assert.Zero(t, f.store.Len())

	latest, err := f.admin.Edition(ctx)
	require.NoError(t, err)
	assert.Zero(t, latest)
}
