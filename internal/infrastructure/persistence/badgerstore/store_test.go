package badgerstore

import (
	"context"
	"io"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wordle-hub/wordle-stats-bot/internal/domain/player"
	"github.com/wordle-hub/wordle-stats-bot/internal/infrastructure/persistence/storetest"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := Open(Options{Path: t.TempDir()}, slog.New(slog.NewTextHandler(io.Discard, nil)))
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func TestStore_Contract(t *testing.T) {
	storetest.RunRepository(t, func(t *testing.T) player.Repository {
		return openTestStore(t)
	})
}

func TestEditionCounter_Contract(t *testing.T) {
	storetest.RunEditionCounter(t, func(t *testing.T) player.EditionCounter {
		return openTestStore(t).EditionCounter()
	})
}

func TestStore_SurvivesReopen(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	s, err := Open(Options{Path: dir, SyncWrites: true}, logger)
	require.NoError(t, err)
	require.NoError(t, s.Create(ctx, storetest.NewAggregate(t, 7, -1, 300)))
	_, err = s.EditionCounter().Advance(ctx, 300)
	require.NoError(t, err)
	require.NoError(t, s.Close())

	reopened, err := Open(Options{Path: dir}, logger)
	require.NoError(t, err)
	defer reopened.Close()

	got, err := reopened.Get(ctx, 7)
	require.NoError(t, err)
	assert.Equal(t, 300, got.LastGame)

	latest, err := reopened.EditionCounter().Latest(ctx)
	require.NoError(t, err)
	assert.Equal(t, 300, latest)
	assert.NoError(t, reopened.Ping(ctx))
}

func TestOpen_InMemory(t *testing.T) {
	s, err := Open(Options{InMemory: true}, nil)
	require.NoError(t, err)
	defer s.Close()

	assert.NoError(t, s.Create(context.Background(), storetest.NewAggregate(t, 1, -1, 1)))
}

func TestStore_CollectGarbage(t *testing.T) {
	ctx := context.Background()

	onDisk, err := Open(Options{Path: t.TempDir()}, nil)
	require.NoError(t, err)
	defer onDisk.Close()
	require.NoError(t, onDisk.Create(ctx, storetest.NewAggregate(t, 1, -1, 1)))

	n, err := onDisk.CollectGarbage(ctx, 0.5)
	require.NoError(t, err)
	assert.Zero(t, n)

	inMemory, err := Open(Options{InMemory: true}, nil)
	require.NoError(t, err)
	defer inMemory.Close()
	n, err = inMemory.CollectGarbage(ctx, 0.5)
	require.NoError(t, err)
	assert.Zero(t, n)
}
