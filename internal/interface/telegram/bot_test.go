package telegram

import (
	"context"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wordle-hub/wordle-stats-bot/internal/application/command"
	"github.com/wordle-hub/wordle-stats-bot/internal/application/query"
	"github.com/wordle-hub/wordle-stats-bot/internal/domain/player"
	"github.com/wordle-hub/wordle-stats-bot/internal/infrastructure/external/telegram"
	"github.com/wordle-hub/wordle-stats-bot/internal/infrastructure/persistence/memory"
	"github.com/wordle-hub/wordle-stats-bot/internal/interface/telegram/handler"
	"github.com/wordle-hub/wordle-stats-bot/internal/interface/telegram/middleware"
	"github.com/wordle-hub/wordle-stats-bot/internal/interface/telegram/presenter"
)

const (
	testUser  int64 = 42
	groupChat int64 = -1001
)

const share100 = "Wordle 100 3/6\n\n⬛🟨⬛⬛⬛\n🟩⬛🟩⬛⬛\n🟩🟩🟩🟩🟩"

// ══════════════════════════════════════════════════════════════════════════════
// FAKE API
// ══════════════════════════════════════════════════════════════════════════════

type fakeAPI struct {
	mu       sync.Mutex
	sent     []telegram.SendMessageParams
	answers  []string
	edits    []int64
	offsets  []int64
	commands []telegram.BotCommand
	webhook  string
	batch    []telegram.Update
	admins   map[int64]bool
}

func (f *fakeAPI) SendMessage(_ context.Context, p telegram.SendMessageParams) (*telegram.Message, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.sent = append(f.sent, p)
	return &telegram.Message{MessageID: int64(len(f.sent)), Chat: &telegram.Chat{ID: p.ChatID}}, nil
}

func (f *fakeAPI) EditMessageKeyboard(_ context.Context, _, messageID int64, _ *telegram.InlineKeyboardMarkup) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.edits = append(f.edits, messageID)
	return nil
}

func (f *fakeAPI) AnswerCallbackQuery(_ context.Context, id, text string, _ bool) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.answers = append(f.answers, id+":"+text)
	return nil
}

func (f *fakeAPI) GetMe(context.Context) (*telegram.User, error) {
	return &telegram.User{ID: 1, IsBot: true, Username: "wordle_bot"}, nil
}

func (f *fakeAPI) GetUpdates(ctx context.Context, offset int64, _, _ int, _ []string) ([]telegram.Update, error) {
	f.mu.Lock()
	f.offsets = append(f.offsets, offset)
	batch := f.batch
	f.batch = nil
	f.mu.Unlock()

	if batch != nil {
		return batch, nil
	}
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case <-time.After(10 * time.Millisecond):
		return nil, nil
	}
}

func (f *fakeAPI) SetWebhook(_ context.Context, url, _ string, _ []string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.webhook = url
	return nil
}

func (f *fakeAPI) DeleteWebhook(context.Context, bool) error { return nil }

func (f *fakeAPI) SetMyCommands(_ context.Context, c []telegram.BotCommand) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.commands = c
	return nil
}

func (f *fakeAPI) GetChatMember(_ context.Context, _, userID int64) (*telegram.ChatMember, error) {
	status := "member"
	if f.admins[userID] {
		status = "administrator"
	}
	return &telegram.ChatMember{User: &telegram.User{ID: userID}, Status: status}, nil
}

func (f *fakeAPI) sentTexts() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]string, 0, len(f.sent))
	for _, p := range f.sent {
		out = append(out, p.Text)
	}
	return out
}

func (f *fakeAPI) lastSent(t *testing.T) telegram.SendMessageParams {
	t.Helper()
	f.mu.Lock()
	defer f.mu.Unlock()
	require.NotEmpty(t, f.sent)
	return f.sent[len(f.sent)-1]
}

type dedupSet struct {
	mu   sync.Mutex
	seen map[int64]bool
}

func (d *dedupSet) FirstSeen(_ context.Context, id int64) (bool, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.seen[id] {
		return false, nil
	}
	d.seen[id] = true
	return true, nil
}

// ══════════════════════════════════════════════════════════════════════════════
// FIXTURE
// ══════════════════════════════════════════════════════════════════════════════

type botFixture struct {
	bot   *Bot
	api   *fakeAPI
	store *memory.Store
}

func newBotFixture(t *testing.T, mutate func(*BotDependencies)) *botFixture {
	t.Helper()
	store := memory.NewStore()
	counter := memory.NewEditionCounter()
	api := &fakeAPI{admins: map[int64]bool{}}

	deps := BotDependencies{
		API:          api,
		SubmitResult: command.NewSubmitResultHandler(store, counter, command.DefaultSubmitResultConfig(), nil),
		ManualUpdate: command.NewManualUpdateHandler(store, nil),
		ClearData:    command.NewClearDataHandler(store, nil),
		Admin:        command.NewAdminHandler(store, counter, nil),
		Stats:        query.NewGetStatsHandler(store, counter),
		Leaderboard:  query.NewGetLeaderboardHandler(store, counter),
	}
	if mutate != nil {
		mutate(&deps)
	}

	cfg := DefaultBotConfig()
	cfg.MaxConcurrentUpdates = 4
	bot, err := NewBot(cfg, deps)
	require.NoError(t, err)

	return &botFixture{bot: bot, api: api, store: store}
}

var nextUpdateID int64

func textUpdate(user int64, text string) *telegram.Update {
	nextUpdateID++
	msg := &telegram.Message{
		MessageID: 500 + nextUpdateID,
		From:      &telegram.User{ID: user, FirstName: "Ann", Username: "ann_b"},
		Chat:      &telegram.Chat{ID: groupChat, Type: telegram.ChatTypeSupergroup},
		Text:      text,
	}
	if strings.HasPrefix(text, "/") {
		word, _, _ := strings.Cut(text, " ")
		msg.Entities = []telegram.MessageEntity{{Type: "bot_command", Offset: 0, Length: len(word)}}
	}
	return &telegram.Update{UpdateID: nextUpdateID, Message: msg}
}

// ══════════════════════════════════════════════════════════════════════════════
// TESTS
// ══════════════════════════════════════════════════════════════════════════════

func TestBot_ShareCreatesPlayer(t *testing.T) {
	f := newBotFixture(t, nil)
	ctx := context.Background()

	upd := textUpdate(testUser, share100)
	require.NoError(t, f.bot.HandleUpdate(ctx, upd))

	agg, err := f.store.Get(ctx, player.UserID(testUser))
	require.NoError(t, err)
	assert.Equal(t, "Ann", agg.Username)
	assert.Equal(t, 100, agg.LastGame)

	sent := f.api.lastSent(t)
	assert.Equal(t, groupChat, sent.ChatID)
	assert.Equal(t, upd.Message.MessageID, sent.ReplyToMessageID)
	assert.Equal(t, presenter.ParseMode, sent.ParseMode)
	assert.Contains(t, sent.Text, "New Wordle champion")
}

func TestBot_IgnoresNoise(t *testing.T) {
	f := newBotFixture(t, nil)
	ctx := context.Background()

	fromBot := textUpdate(testUser, share100)
	fromBot.Message.From.IsBot = true

	for _, upd := range []*telegram.Update{
		textUpdate(testUser, "good morning"),
		textUpdate(testUser, "/unknowncommand"),
		fromBot,
		{UpdateID: 999, EditedMessage: &telegram.Message{Text: share100}},
	} {
		require.NoError(t, f.bot.HandleUpdate(ctx, upd))
	}

	assert.Empty(t, f.api.sentTexts())
	assert.Zero(t, f.store.Len())
}

func TestBot_StatsCommand(t *testing.T) {
	f := newBotFixture(t, nil)
	ctx := context.Background()

	require.NoError(t, f.bot.HandleUpdate(ctx, textUpdate(testUser, share100)))
	require.NoError(t, f.bot.HandleUpdate(ctx, textUpdate(testUser, "/stats")))

	sent := f.api.lastSent(t)
	assert.Contains(t, sent.Text, "Stats for")
	assert.Contains(t, sent.Text, "3.000")
}

func TestBot_ManualCommandError(t *testing.T) {
	f := newBotFixture(t, nil)
	ctx := context.Background()

	require.NoError(t, f.bot.HandleUpdate(ctx, textUpdate(testUser, share100)))
	require.NoError(t, f.bot.HandleUpdate(ctx, textUpdate(testUser, "/average 9")))

	assert.Equal(t, presenter.InvalidAvgText, f.api.lastSent(t).Text)
}

func TestBot_Deduplicates(t *testing.T) {
	dedup := &dedupSet{seen: map[int64]bool{}}
	f := newBotFixture(t, func(d *BotDependencies) { d.Dedup = dedup })
	ctx := context.Background()

	upd := textUpdate(testUser, "/help")
	require.NoError(t, f.bot.HandleUpdate(ctx, upd))
	require.NoError(t, f.bot.HandleUpdate(ctx, upd))

	assert.Len(t, f.api.sentTexts(), 1)
	stats := f.bot.Stats()
	assert.EqualValues(t, 2, stats.UpdatesReceived)
	assert.EqualValues(t, 1, stats.Duplicates)
}

func TestBot_RateLimit(t *testing.T) {
	cfg := middleware.DefaultRateLimitConfig()
	cfg.RequestsPerMinute = 1
	cfg.BurstSize = 1
	limiter := middleware.NewRateLimiter(cfg)
	t.Cleanup(limiter.Stop)

	f := newBotFixture(t, func(d *BotDependencies) { d.RateLimiter = limiter })
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		require.NoError(t, f.bot.HandleUpdate(ctx, textUpdate(testUser, "/help")))
	}

	texts := f.api.sentTexts()
	require.Len(t, texts, 2)
	assert.Contains(t, texts[1], "Too many requests")
	assert.EqualValues(t, 2, f.bot.Stats().RateLimited)
}

func TestBot_SharesAreNotRateLimited(t *testing.T) {
	cfg := middleware.DefaultRateLimitConfig()
	cfg.RequestsPerMinute = 1
	cfg.BurstSize = 1
	limiter := middleware.NewRateLimiter(cfg)
	t.Cleanup(limiter.Stop)

	f := newBotFixture(t, func(d *BotDependencies) { d.RateLimiter = limiter })
	ctx := context.Background()

	require.NoError(t, f.bot.HandleUpdate(ctx, textUpdate(testUser, "/help")))
	require.NoError(t, f.bot.HandleUpdate(ctx, textUpdate(testUser, share100)))

	_, err := f.store.Get(ctx, player.UserID(testUser))
	require.NoError(t, err)
}

func TestBot_ClearFlow(t *testing.T) {
	f := newBotFixture(t, nil)
	ctx := context.Background()

	require.NoError(t, f.bot.HandleUpdate(ctx, textUpdate(testUser, share100)))
	require.NoError(t, f.bot.HandleUpdate(ctx, textUpdate(testUser, "/clear")))

	prompt := f.api.lastSent(t)
	require.NotNil(t, prompt.ReplyMarkup)
	yes := prompt.ReplyMarkup.InlineKeyboard[0][0].CallbackData

	press := func(user int64, data string) {
		nextUpdateID++
		require.NoError(t, f.bot.HandleUpdate(ctx, &telegram.Update{
			UpdateID: nextUpdateID,
			CallbackQuery: &telegram.CallbackQuery{
				ID:      "q",
				From:    &telegram.User{ID: user},
				Message: &telegram.Message{MessageID: 77, Chat: &telegram.Chat{ID: groupChat}},
				Data:    data,
			},
		}))
	}

	// Someone else cannot confirm.
	press(testUser+1, yes)
	assert.Equal(t, 1, f.store.Len())

	press(testUser, yes)
	assert.Zero(t, f.store.Len())
	assert.Equal(t, presenter.ClearedUserText, f.api.lastSent(t).Text)

	f.api.mu.Lock()
	defer f.api.mu.Unlock()
	assert.Equal(t, []string{"q:" + presenter.NotYourButtonText, "q:"}, f.api.answers)
	assert.Equal(t, []int64{77}, f.api.edits)
}

func TestBot_AdminCommands(t *testing.T) {
	admins := middleware.NewAdminAuth([]int64{testUser})
	f := newBotFixture(t, func(d *BotDependencies) { d.Admins = admins })
	ctx := context.Background()

	require.NoError(t, f.bot.HandleUpdate(ctx, textUpdate(testUser, "/admingame 1,234")))
	assert.Equal(t, presenter.EditionSetText(1234), f.api.lastSent(t).Text)

	require.NoError(t, f.bot.HandleUpdate(ctx, textUpdate(testUser+1, "/edition")))
	assert.Equal(t, presenter.AdminOnlyText, f.api.lastSent(t).Text)
}

func TestBot_Polling(t *testing.T) {
	f := newBotFixture(t, nil)
	f.api.batch = []telegram.Update{*textUpdate(testUser, share100), *textUpdate(testUser, "/help")}
	last := f.api.batch[1].UpdateID

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- f.bot.Start(ctx) }()

	require.Eventually(t, func() bool {
		f.api.mu.Lock()
		defer f.api.mu.Unlock()
		return len(f.api.offsets) >= 2 && len(f.api.sent) >= 2
	}, 2*time.Second, 5*time.Millisecond)

	cancel()
	require.NoError(t, <-done)
	require.NoError(t, f.bot.Stop(context.Background()))

	f.api.mu.Lock()
	defer f.api.mu.Unlock()
	assert.Equal(t, int64(0), f.api.offsets[0])
	assert.Equal(t, last+1, f.api.offsets[1])
	assert.NotEmpty(t, f.api.commands)
	assert.Equal(t, 1, f.store.Len())
}

func TestBot_Webhook(t *testing.T) {
	f := newBotFixture(t, nil)
	f.bot.config.Mode = ModeWebhook
	f.bot.config.WebhookURL = "https://example.org/webhook/telegram/s3cret"

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- f.bot.Start(ctx) }()

	require.Eventually(t, func() bool {
		f.api.mu.Lock()
		defer f.api.mu.Unlock()
		return f.api.webhook != ""
	}, 2*time.Second, 5*time.Millisecond)

	cancel()
	require.NoError(t, <-done)
	assert.True(t, f.bot.IsRunning())
	require.NoError(t, f.bot.Stop(context.Background()))
	assert.False(t, f.bot.IsRunning())
}

// ══════════════════════════════════════════════════════════════════════════════
// ROUTER
// ══════════════════════════════════════════════════════════════════════════════

type namedCallback string

func (n namedCallback) HandleCallback(context.Context, handler.CallbackRequest) (*handler.CallbackResponse, error) {
	return &handler.CallbackResponse{Answer: string(n)}, nil
}

func TestRouter_LongestCallbackPrefix(t *testing.T) {
	r := NewRouter(RouterConfig{Sender: &fakeAPI{}})
	r.RegisterCallbackPrefix("clear:", namedCallback("any"))
	r.RegisterCallbackPrefix("clear:chat:", namedCallback("chat"))

	ctx := context.Background()
	resp, err := r.RouteCallback(ctx, handler.CallbackRequest{Data: "clear:chat:1"})
	require.NoError(t, err)
	assert.Equal(t, "chat", resp.Answer)

	resp, err = r.RouteCallback(ctx, handler.CallbackRequest{Data: "clear:user:1"})
	require.NoError(t, err)
	assert.Equal(t, "any", resp.Answer)

	resp, err = r.RouteCallback(ctx, handler.CallbackRequest{Data: "other"})
	require.NoError(t, err)
	assert.Empty(t, resp.Answer)
}

func TestRouter_Send(t *testing.T) {
	api := &fakeAPI{}
	r := NewRouter(RouterConfig{Sender: api})
	ctx := context.Background()

	require.NoError(t, r.Send(ctx, 5, 9, nil))
	require.NoError(t, r.Send(ctx, 5, 9, &handler.Response{Text: "plain"}))
	require.NoError(t, r.Send(ctx, 5, 9, &handler.Response{
		Text:     "quoted",
		ReplyTo:  true,
		Keyboard: presenter.ClearConfirmKeyboard(presenter.ClearScopeUser, 42),
	}))

	require.Len(t, api.sent, 2)
	assert.Zero(t, api.sent[0].ReplyToMessageID)
	assert.Nil(t, api.sent[0].ReplyMarkup)
	assert.EqualValues(t, 9, api.sent[1].ReplyToMessageID)
	require.NotNil(t, api.sent[1].ReplyMarkup)
	assert.Equal(t, "clear:user:42", api.sent[1].ReplyMarkup.InlineKeyboard[0][0].CallbackData)
}

func TestRouter_MultiCommand(t *testing.T) {
	r := NewRouter(RouterConfig{Sender: &fakeAPI{}})
	r.RegisterCommands(handler.NewManualHandler(command.NewManualUpdateHandler(memory.NewStore(), nil)))

	for _, name := range []string{"name", "games", "streak", "average", "adjust", "toggleretroactive", "togglewarning"} {
		assert.True(t, r.HasCommand(name), name)
	}
}
