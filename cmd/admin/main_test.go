package main

import (
	"bytes"
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wordle-hub/wordle-stats-bot/config"
	"github.com/wordle-hub/wordle-stats-bot/internal/application/command"
	"github.com/wordle-hub/wordle-stats-bot/internal/infrastructure/persistence"
)

// badgerEnv points the CLI at a fresh Badger directory.
func badgerEnv(t *testing.T) config.DatabaseConfig {
	t.Helper()
	dir := t.TempDir()
	t.Setenv("DATABASE_DRIVER", config.DriverBadger)
	t.Setenv("DATABASE_BADGER_PATH", dir)
	return config.DatabaseConfig{Driver: config.DriverBadger, BadgerPath: dir}
}

func seed(t *testing.T, db config.DatabaseConfig, cmds ...command.SubmitResultCommand) {
	t.Helper()
	ctx := context.Background()
	s, err := persistence.Open(ctx, persistence.Options{Database: db})
	require.NoError(t, err)
	defer s.Close()

	h := command.NewSubmitResultHandler(s.Players, s.Editions, command.DefaultSubmitResultConfig(), nil)
	for _, cmd := range cmds {
		_, err := h.Handle(ctx, cmd)
		require.NoError(t, err)
	}
}

func runCLI(t *testing.T, args ...string) (string, error) {
	t.Helper()
	var out bytes.Buffer
	app := newApp()
	app.Writer = &out
	app.ErrWriter = &out
	err := app.Run(append([]string{"wordle-admin"}, args...))
	return out.String(), err
}

func TestEdition_SetAndGet(t *testing.T) {
	badgerEnv(t)

	out, err := runCLI(t, "edition", "set", "1200")
	require.NoError(t, err)
	assert.Contains(t, out, "Latest edition set to 1200")

	out, err = runCLI(t, "edition", "get")
	require.NoError(t, err)
	assert.Equal(t, "1200\n", out)
}

func TestEdition_SetRejectsGarbage(t *testing.T) {
	badgerEnv(t)

	_, err := runCLI(t, "edition", "set", "soon")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "edition must be a number")
}

func TestStatsAndLeaderboard(t *testing.T) {
	db := badgerEnv(t)
	seed(t, db,
		command.SubmitResultCommand{UserID: 1, ChatID: -100, Username: "Ann", Edition: 500, Tries: 3},
		command.SubmitResultCommand{UserID: 2, ChatID: -100, Username: "Bob", Edition: 500, Tries: 5},
	)

	out, err := runCLI(t, "stats", "1")
	require.NoError(t, err)
	assert.Contains(t, out, "Ann")
	assert.Contains(t, out, "3.000")

	out, err = runCLI(t, "leaderboard", "--limit", "1", "--", "-100")
	require.NoError(t, err)
	assert.Contains(t, out, "Ann")
	assert.NotContains(t, out, "Bob")
	assert.Contains(t, out, "(1 of 2 players)")
}

func TestStats_UnknownPlayer(t *testing.T) {
	badgerEnv(t)

	_, err := runCLI(t, "stats", "99")
	require.Error(t, err)
}

func TestPurgeAndRestart(t *testing.T) {
	db := badgerEnv(t)
	seed(t, db,
		command.SubmitResultCommand{UserID: 1, ChatID: -100, Username: "Ann", Edition: 500, Tries: 3},
		command.SubmitResultCommand{UserID: 9, ChatID: -100, Username: "Test", Edition: 500, Tries: 4, Synthetic: true},
	)

	out, err := runCLI(t, "purge")
	require.NoError(t, err)
	assert.Contains(t, out, "Deleted 1 test accounts")

	_, err = runCLI(t, "restart")
	require.Error(t, err, "restart needs --yes")

	out, err = runCLI(t, "restart", "--yes")
	require.NoError(t, err)
	assert.Contains(t, out, "Deleted 1 players")

	out, err = runCLI(t, "edition", "get")
	require.NoError(t, err)
	assert.Equal(t, "0\n", out)
}

func TestMigrate_RequiresPostgres(t *testing.T) {
	badgerEnv(t)

	_, err := runCLI(t, "migrate", "status")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "postgres")
}
