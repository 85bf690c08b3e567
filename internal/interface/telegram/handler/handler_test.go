package handler

import (
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wordle-hub/wordle-stats-bot/internal/application/command"
	"github.com/wordle-hub/wordle-stats-bot/internal/application/query"
	"github.com/wordle-hub/wordle-stats-bot/internal/domain/player"
	"github.com/wordle-hub/wordle-stats-bot/internal/infrastructure/persistence/memory"
	"github.com/wordle-hub/wordle-stats-bot/internal/interface/telegram/presenter"
)

const (
	testUser  int64 = 42
	otherUser int64 = 43
	groupChat int64 = -1001
)

const share100 = "Wordle 100 3/6\n\n⬛🟨⬛⬛⬛\n🟩⬛🟩⬛⬛\n🟩🟩🟩🟩🟩"

func shareText(edition string, tries string) string {
	return "Wordle " + edition + " " + tries + "/6\n\n🟩🟩🟩🟩🟩"
}

// flags turns off the named features.
type flags map[string]bool

func (f flags) EnabledFor(feature string, _ int64) bool { return !f[feature] }

type chatAdmins map[int64]bool

func (c chatAdmins) IsChatAdmin(_ context.Context, _, userID int64) (bool, error) {
	return c[userID], nil
}

type fixture struct {
	store   *memory.Store
	counter *memory.EditionCounter

	share       *ShareHandler
	stats       *StatsHandler
	leaderboard *LeaderboardHandler
	manual      *ManualHandler
	clear       *ClearHandler
	admin       *AdminHandler
	help        *HelpHandler
}

func newFixture(t *testing.T, features Features, admins ChatAdminChecker) *fixture {
	t.Helper()
	store := memory.NewStore()
	counter := memory.NewEditionCounter()
	submit := command.NewSubmitResultHandler(store, counter, command.DefaultSubmitResultConfig(), nil)

	return &fixture{
		store:       store,
		counter:     counter,
		share:       NewShareHandler(submit, features),
		stats:       NewStatsHandler(query.NewGetStatsHandler(store, counter), features),
		leaderboard: NewLeaderboardHandler(query.NewGetLeaderboardHandler(store, counter), features, 0),
		manual:      NewManualHandler(command.NewManualUpdateHandler(store, nil)),
		clear:       NewClearHandler(command.NewClearDataHandler(store, nil), admins, features, nil),
		admin:       NewAdminHandler(command.NewAdminHandler(store, counter, nil), submit, features, nil),
		help:        NewHelpHandler(features),
	}
}

func groupReq(user int64, text string, args ...string) Request {
	return Request{
		UserID:    user,
		ChatID:    groupChat,
		ChatType:  "supergroup",
		FirstName: "Ann",
		Username:  "ann_b",
		Text:      text,
		Args:      args,
	}
}

func (f *fixture) post(t *testing.T, user int64, text string) *Response {
	t.Helper()
	resp, err := f.share.Handle(context.Background(), groupReq(user, text))
	require.NoError(t, err)
	return resp
}

// ══════════════════════════════════════════════════════════════════════════════
// SHARE
// ══════════════════════════════════════════════════════════════════════════════

func TestShare_IgnoresChatter(t *testing.T) {
	f := newFixture(t, nil, nil)
	assert.Nil(t, f.post(t, testUser, "good morning"))
	assert.Nil(t, f.post(t, testUser, "Wordle 100 3/6"))
	assert.Zero(t, f.store.Len())
}

func TestShare_GreetsNewPlayer(t *testing.T) {
	f := newFixture(t, nil, nil)

	resp := f.post(t, testUser, share100)
	require.NotNil(t, resp)
	assert.True(t, resp.ReplyTo)
	assert.Equal(t, presenter.ParseMode, resp.ParseMode)
	assert.Contains(t, resp.Text, "New Wordle champion *Ann* added")

	// следующий выпуск проходит молча
	assert.Nil(t, f.post(t, testUser, shareText("101", "4")))
}

func TestShare_DuplicateNotice(t *testing.T) {
	f := newFixture(t, nil, nil)
	f.post(t, testUser, share100)

	resp := f.post(t, testUser, share100)
	require.NotNil(t, resp)
	assert.Equal(t, presenter.DuplicateText, resp.Text)

	quiet := newFixture(t, flags{FeatureDuplicateNotice: true}, nil)
	quiet.post(t, testUser, share100)
	assert.Nil(t, quiet.post(t, testUser, share100))
}

func TestShare_RetroactiveWarning(t *testing.T) {
	f := newFixture(t, nil, nil)
	f.post(t, testUser, shareText("1,000", "3"))

	resp := f.post(t, testUser, shareText("998", "2"))
	require.NotNil(t, resp)
	assert.Equal(t, presenter.RetroactiveWarningTxt, resp.Text)

	// предупреждения выключены пользователем
	_, err := f.manual.Handle(context.Background(), "togglewarning", groupReq(testUser, "/togglewarning"))
	require.NoError(t, err)
	assert.Nil(t, f.post(t, testUser, shareText("997", "2")))
}

// ══════════════════════════════════════════════════════════════════════════════
// STATS / LEADERBOARD
// ══════════════════════════════════════════════════════════════════════════════

func TestStats(t *testing.T) {
	f := newFixture(t, nil, nil)
	ctx := context.Background()

	resp, err := f.stats.Handle(ctx, groupReq(testUser, "/stats"))
	require.NoError(t, err)
	assert.Equal(t, presenter.NoDataText+presenter.NoDataStatsSuffix, resp.Text)

	f.post(t, testUser, share100)
	resp, err = f.stats.Handle(ctx, groupReq(testUser, "/stats"))
	require.NoError(t, err)
	assert.Contains(t, resp.Text, "Stats for *Ann*")
	assert.Contains(t, resp.Text, "Avg. Score: 3.000/6")
}

func TestLeaderboard(t *testing.T) {
	f := newFixture(t, nil, nil)
	ctx := context.Background()

	resp, err := f.leaderboard.Handle(ctx, groupReq(testUser, "/leaderboard"))
	require.NoError(t, err)
	assert.Equal(t, EmptyLeaderboardText, resp.Text)

	f.post(t, testUser, shareText("100", "4"))
	f.post(t, otherUser, shareText("100", "2"))

	resp, err = f.leaderboard.Handle(ctx, groupReq(testUser, "/leaderboard"))
	require.NoError(t, err)
	assert.Contains(t, resp.Text, "```")
	assert.Less(t, strings.Index(resp.Text, "2.000"), strings.Index(resp.Text, "4.000"))
}

// ══════════════════════════════════════════════════════════════════════════════
// MANUAL
// ══════════════════════════════════════════════════════════════════════════════

func TestManual(t *testing.T) {
	f := newFixture(t, nil, nil)
	ctx := context.Background()
	edit := func(name string, args ...string) *Response {
		t.Helper()
		resp, err := f.manual.Handle(ctx, name, groupReq(testUser, "/"+name, args...))
		require.NoError(t, err)
		return resp
	}

	assert.Equal(t, presenter.NoDataText+presenter.NoDataUpdateSuffix, edit("streak", "3").Text)

	f.post(t, testUser, share100)

	tests := []struct {
		name    string
		command string
		args    []string
		want    string
		isError bool
	}{
		{"average", "average", []string{"4.5"}, `Successfully updated your average to *4\.500*\!`, false},
		{"average ceiling", "average", []string{"8"}, presenter.InvalidAvgText, true},
		{"missing value", "games", nil, "Expected a value after /games!", true},
		{"not a number", "streak", []string{"many"}, "Expected a number after /streak!", true},
		{"negative", "streak", []string{"-2"}, presenter.NegativeValueText, true},
		{"zero games", "games", []string{"0"}, presenter.InvalidGamesText, true},
		{"adjust usage", "adjust", []string{"4.5"}, presenter.AdjustUsageText, true},
		{"name", "name", []string{"Queen", "Ann"}, `Successfully updated your name to *Queen Ann*\!`, false},
		{"retroactive", "toggleretroactive", nil, `Retroactive updates is now *ON*\.`, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resp := edit(tt.command, tt.args...)
			assert.Equal(t, tt.want, resp.Text)
			assert.Equal(t, tt.isError, resp.IsError)
		})
	}

	agg, err := f.store.Get(ctx, player.UserID(testUser))
	require.NoError(t, err)
	assert.Equal(t, "Queen Ann", agg.Username)
	assert.True(t, agg.ToggleRetroactive)
}

func TestManual_Adjust(t *testing.T) {
	f := newFixture(t, nil, nil)
	f.post(t, testUser, share100)

	resp, err := f.manual.Handle(context.Background(), "adjust", groupReq(testUser, "/adjust", "4", "3"))
	require.NoError(t, err)
	// (3*1 + 4*3) / 4
	assert.Equal(t, `Successfully updated your games and average to *4* and *3\.750*\!`, resp.Text)
}

// ══════════════════════════════════════════════════════════════════════════════
// CLEAR
// ══════════════════════════════════════════════════════════════════════════════

func TestClear_User(t *testing.T) {
	f := newFixture(t, nil, nil)
	ctx := context.Background()
	f.post(t, testUser, share100)

	resp, err := f.clear.Handle(ctx, groupReq(testUser, "/clear"))
	require.NoError(t, err)
	require.NotNil(t, resp.Keyboard)
	assert.Contains(t, resp.Text, `@ann\_b`)
	yes := resp.Keyboard.Rows[0][0].CallbackData
	cancel := resp.Keyboard.Rows[0][1].CallbackData

	press := func(user int64, data string) *CallbackResponse {
		t.Helper()
		cb, err := f.clear.HandleCallback(ctx, CallbackRequest{QueryID: "q", UserID: user, ChatID: groupChat, Data: data})
		require.NoError(t, err)
		return cb
	}

	cb := press(otherUser, yes)
	assert.Equal(t, presenter.NotYourButtonText, cb.Answer)
	assert.False(t, cb.RemoveKeyboard)
	assert.Equal(t, 1, f.store.Len())

	cb = press(testUser, cancel)
	assert.True(t, cb.RemoveKeyboard)
	assert.Equal(t, presenter.ClearAbortedText, cb.Message.Text)
	assert.Equal(t, 1, f.store.Len())

	cb = press(testUser, yes)
	assert.Equal(t, presenter.ClearedUserText, cb.Message.Text)
	assert.Zero(t, f.store.Len())

	cb = press(testUser, yes)
	assert.Equal(t, presenter.NoUserDataText, cb.Message.Text)
}

func TestClear_Chat(t *testing.T) {
	f := newFixture(t, nil, chatAdmins{testUser: true})
	ctx := context.Background()
	f.post(t, testUser, share100)
	f.post(t, otherUser, share100)

	private := groupReq(testUser, "/clear chat", "chat")
	private.ChatType = "private"
	resp, err := f.clear.Handle(ctx, private)
	require.NoError(t, err)
	assert.Equal(t, presenter.GroupOnlyText, resp.Text)

	resp, err = f.clear.Handle(ctx, groupReq(otherUser, "/clear chat", "chat"))
	require.NoError(t, err)
	assert.Equal(t, presenter.ChatAdminOnlyText, resp.Text)

	resp, err = f.clear.Handle(ctx, groupReq(testUser, "/clear chat", "chat"))
	require.NoError(t, err)
	require.NotNil(t, resp.Keyboard)
	assert.Equal(t, "clear:chat:42", resp.Keyboard.Rows[0][0].CallbackData)

	cb, err := f.clear.HandleCallback(ctx, CallbackRequest{UserID: testUser, ChatID: groupChat, Data: "clear:chat:42"})
	require.NoError(t, err)
	assert.Equal(t, presenter.ClearedChatText, cb.Message.Text)

	resp, err = f.leaderboard.Handle(ctx, Request{UserID: 0, ChatID: groupChat})
	require.NoError(t, err)
	assert.Equal(t, EmptyLeaderboardText, resp.Text)

	// агрегаты остаются, удаляется только членство в чате
	assert.Equal(t, 2, f.store.Len())
}

func TestClear_ChatDisabled(t *testing.T) {
	f := newFixture(t, flags{FeatureClearChat: true}, chatAdmins{testUser: true})

	resp, err := f.clear.Handle(context.Background(), groupReq(testUser, "/clear chat", "chat"))
	require.NoError(t, err)
	assert.Equal(t, presenter.DisabledCommandText, resp.Text)
}

// ══════════════════════════════════════════════════════════════════════════════
// ADMIN
// ══════════════════════════════════════════════════════════════════════════════

func adminReq(text string, rest string, args ...string) Request {
	req := groupReq(testUser, text, args...)
	req.Rest = rest
	req.IsBotAdmin = true
	return req
}

func TestAdmin_RequiresAdmin(t *testing.T) {
	f := newFixture(t, nil, nil)

	resp, err := f.admin.Handle(context.Background(), CmdRestart, groupReq(testUser, "/restart"))
	require.NoError(t, err)
	assert.Equal(t, presenter.AdminOnlyText, resp.Text)
}

func TestAdmin_Commands(t *testing.T) {
	f := newFixture(t, nil, nil)
	ctx := context.Background()

	rest := "9001 Test Bot " + shareText("1,205", "X")
	resp, err := f.admin.Handle(ctx, CmdAddUser, adminReq("/adduser "+rest, rest))
	require.NoError(t, err)
	assert.Contains(t, resp.Text, "New Wordle champion *Test Bot*")

	agg, err := f.store.Get(ctx, 9001)
	require.NoError(t, err)
	assert.True(t, agg.Synthetic)
	assert.InDelta(t, 7.0, agg.ScoreAvg, 1e-9)

	resp, err = f.admin.Handle(ctx, CmdEdition, adminReq("/edition", ""))
	require.NoError(t, err)
	assert.Equal(t, presenter.EditionText(1205), resp.Text)

	resp, err = f.admin.Handle(ctx, CmdAdminGame, adminReq("/admingame 1300", "1300", "1300"))
	require.NoError(t, err)
	assert.Equal(t, presenter.EditionSetText(1300), resp.Text)

	resp, err = f.admin.Handle(ctx, CmdAdminGame, adminReq("/admingame x", "x", "x"))
	require.NoError(t, err)
	assert.True(t, resp.IsError)

	f.post(t, testUser, share100)
	resp, err = f.admin.Handle(ctx, CmdPurgeTest, adminReq("/purgetest", ""))
	require.NoError(t, err)
	assert.Equal(t, presenter.PurgedText(1), resp.Text)
	assert.Equal(t, 1, f.store.Len())

	resp, err = f.admin.Handle(ctx, CmdRestart, adminReq("/restart", ""))
	require.NoError(t, err)
	assert.Equal(t, presenter.RestartedText(1), resp.Text)
	assert.Zero(t, f.store.Len())
}

func TestAdmin_AddUserUsage(t *testing.T) {
	f := newFixture(t, nil, nil)

	for _, rest := range []string{"", "9001", "abc Bob " + share100, "9001 " + share100} {
		resp, err := f.admin.Handle(context.Background(), CmdAddUser, adminReq("/adduser", rest))
		require.NoError(t, err)
		assert.True(t, resp.IsError, rest)
	}
}

func TestHelp_AdminSection(t *testing.T) {
	f := newFixture(t, nil, nil)

	resp, err := f.help.Handle(context.Background(), groupReq(testUser, "/help"))
	require.NoError(t, err)
	assert.NotContains(t, resp.Text, "/adduser")

	resp, err = f.help.Handle(context.Background(), adminReq("/help", ""))
	require.NoError(t, err)
	assert.Contains(t, resp.Text, "/adduser")
}
