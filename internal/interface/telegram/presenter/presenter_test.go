package presenter

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wordle-hub/wordle-stats-bot/internal/application/query"
)

func TestEscape(t *testing.T) {
	assert.Equal(t, `a\_b\*c\.d\!`, Escape("a_b*c.d!"))
	assert.Equal(t, `\(x\) \- \[y\]`, Escape("(x) - [y]"))
	assert.Equal(t, "plain text", Escape("plain text"))
	assert.Equal(t, "emoji 🟩", Escape("emoji 🟩"))
}

func TestEscapeCode(t *testing.T) {
	assert.Equal(t, "a\\`b\\\\c.d", EscapeCode("a`b\\c.d"))
}

func TestUpdatedText(t *testing.T) {
	assert.Equal(t, `Successfully updated your average to *4\.500*\!`, UpdatedText("average", "4.500"))
	assert.Equal(t, `Successfully updated your games and average to *22* and *4\.455*\!`, AdjustedText(22, 4.4546))
}

func TestStatsCard(t *testing.T) {
	s := query.PlayerStats{Username: "ann_b", NumGames: 12, Streak: 3, ScoreAvg: 3.5, OnStreak: true}
	card := StatsCard(s)

	assert.True(t, strings.HasPrefix(card, "`") && strings.HasSuffix(card, "`"))
	assert.Contains(t, card, "Name: ann_b\n")
	assert.Contains(t, card, "# of Games : 12\n")
	assert.Contains(t, card, "Streak: 3 🔥\n")
	assert.Contains(t, card, "Avg. Score: 3.500/6")

	s.OnStreak = false
	s.Streak = 1
	assert.Contains(t, StatsCard(s), "Streak: 1\n")
}

func TestFormatStats(t *testing.T) {
	view := FormatStats(&query.GetStatsResult{Stats: query.PlayerStats{Username: "ann_b", NumGames: 1, ScoreAvg: 4}})
	assert.Equal(t, ParseMode, view.ParseMode)
	assert.True(t, strings.HasPrefix(view.Text, `Stats for *ann\_b*:`))
}

func TestFormatNewPlayer(t *testing.T) {
	view := FormatNewPlayer(query.PlayerStats{Username: "Bob", NumGames: 1, Streak: 1, ScoreAvg: 3})
	assert.True(t, strings.HasPrefix(view.Text, "New Wordle champion *Bob* added to the leaderboard"))
	assert.Contains(t, view.Text, "Avg. Score: 3.000/6")
	assert.Contains(t, view.Text, `use /name, /games, /streak, and /average\.`)
}

func TestLeaderboardTable(t *testing.T) {
	rows := []query.LeaderboardRow{
		{Rank: 1, Username: "Ann", NumGames: 10, Streak: 4, ScoreAvg: 3.25},
		{Rank: 2, Username: "Bartholomew", NumGames: 3, Streak: 0, ScoreAvg: 4},
	}
	lines := strings.Split(LeaderboardTable(rows), "\n")
	require.Len(t, lines, 3)

	assert.Equal(t, []string{"Name", "Gms", "🔥", "Avg."}, strings.Fields(lines[0]))
	assert.Equal(t, []string{"1", "Ann", "10", "4", "3.250"}, strings.Fields(lines[1]))
	assert.True(t, strings.HasSuffix(lines[2], "4.000"))

	// колонки выровнены
	assert.Equal(t, strings.Index(lines[1], "3.250"), strings.Index(lines[2], "4.000"))
}

func TestLeaderboardTable_TruncatesLongNames(t *testing.T) {
	table := LeaderboardTable([]query.LeaderboardRow{{Rank: 1, Username: "Bartholomew the Great", NumGames: 1, ScoreAvg: 4}})
	assert.Contains(t, table, "Bartholomew t…")
	assert.NotContains(t, table, "Great")
}

func TestFormatLeaderboard_RequesterOutsideLimit(t *testing.T) {
	lb := &query.Leaderboard{
		Rows:          []query.LeaderboardRow{{Rank: 1, Username: "Ann", NumGames: 1, ScoreAvg: 2}},
		Total:         5,
		RequesterRank: 4,
	}
	view := FormatLeaderboard(lb)
	assert.Contains(t, view.Text, "```\n")
	assert.Contains(t, view.Text, "Your rank: 4 of 5")

	lb.RequesterRank = 1
	assert.NotContains(t, FormatLeaderboard(lb).Text, "Your rank")
}

func TestClearCallback(t *testing.T) {
	kb := ClearConfirmKeyboard(ClearScopeUser, 42)
	require.Len(t, kb.Rows, 1)
	require.Len(t, kb.Rows[0], 2)
	assert.Equal(t, "clear:user:42", kb.Rows[0][0].CallbackData)
	assert.Equal(t, "clear:cancel:42", kb.Rows[0][1].CallbackData)

	cb, ok := ParseClearCallback("clear:chat:7")
	require.True(t, ok)
	assert.Equal(t, ClearCallback{Scope: ClearScopeChat, RequesterID: 7}, cb)

	for _, bad := range []string{"", "clear:", "clear:user", "clear:user:x", "clear:nuke:1", "clear:user:-1", "other:user:1"} {
		_, ok := ParseClearCallback(bad)
		assert.False(t, ok, bad)
	}
}

func TestClearConfirmText(t *testing.T) {
	text := ClearConfirmText("@ann_b", false)
	assert.True(t, strings.HasPrefix(text, `Are you sure you want to delete your data, @ann\_b?`))
	assert.Contains(t, text, "*permanently*")
	assert.Contains(t, ClearConfirmText("@x", true), "this chat's leaderboard")
}
