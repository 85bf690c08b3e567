package telegram

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wordle-hub/wordle-stats-bot/internal/domain/shared"
	"github.com/wordle-hub/wordle-stats-bot/pkg/circuitbreaker"
)

func newTestClient(t *testing.T, h http.HandlerFunc) *Client {
	t.Helper()
	srv := httptest.NewServer(h)
	t.Cleanup(srv.Close)

	cfg := DefaultClientConfig("TEST:TOKEN")
	cfg.BaseURL = srv.URL
	cfg.RetryAttempts = 3
	cfg.RetryDelay = time.Millisecond
	cfg.Timeout = 5 * time.Second
	return NewClient(cfg)
}

func writeOK(t *testing.T, w http.ResponseWriter, result any) {
	t.Helper()
	raw, err := json.Marshal(result)
	require.NoError(t, err)
	require.NoError(t, json.NewEncoder(w).Encode(APIResponse{OK: true, Result: raw}))
}

func TestClient_SendMessage(t *testing.T) {
	var got map[string]any
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/botTEST:TOKEN/sendMessage", r.URL.Path)
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))
		body, _ := io.ReadAll(r.Body)
		require.NoError(t, json.Unmarshal(body, &got))
		writeOK(t, w, Message{MessageID: 55, Chat: &Chat{ID: -1}})
	})

	msg, err := c.SendMessage(context.Background(), SendMessageParams{
		ChatID:           -1,
		Text:             "hi",
		ParseMode:        ParseModeMarkdownV2,
		ReplyToMessageID: 9,
		ReplyMarkup: &InlineKeyboardMarkup{InlineKeyboard: [][]InlineKeyboardButton{
			{{Text: "Yes", CallbackData: "clear:user:1"}},
		}},
	})
	require.NoError(t, err)
	assert.EqualValues(t, 55, msg.MessageID)

	assert.EqualValues(t, -1, got["chat_id"])
	assert.Equal(t, "hi", got["text"])
	assert.Equal(t, "MarkdownV2", got["parse_mode"])
	assert.EqualValues(t, 9, got["reply_to_message_id"])
	assert.Contains(t, got, "reply_markup")
}

func TestClient_RetriesServerErrors(t *testing.T) {
	var calls atomic.Int32
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) < 3 {
			w.WriteHeader(http.StatusBadGateway)
			_, _ = w.Write([]byte("<html>bad gateway</html>"))
			return
		}
		writeOK(t, w, User{ID: 1, IsBot: true, Username: "wordle_bot"})
	})

	me, err := c.GetMe(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "wordle_bot", me.Username)
	assert.EqualValues(t, 3, calls.Load())
}

func TestClient_DoesNotRetryClientErrors(t *testing.T) {
	var calls atomic.Int32
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		_ = json.NewEncoder(w).Encode(APIResponse{OK: false, ErrorCode: 403, Description: "Forbidden: bot was blocked by the user"})
	})

	_, err := c.SendMessage(context.Background(), SendMessageParams{ChatID: 1, Text: "x"})
	require.Error(t, err)
	assert.EqualValues(t, 1, calls.Load())
	assert.True(t, IsForbidden(err))
	assert.True(t, shared.IsExternalService(err))
	assert.NotContains(t, err.Error(), "TEST:TOKEN")
}

func TestClient_BreakerStopsCalls(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusBadGateway)
	}))
	t.Cleanup(srv.Close)

	cfg := DefaultClientConfig("TEST:TOKEN")
	cfg.BaseURL = srv.URL
	cfg.RetryAttempts = 1
	cfg.Breaker = circuitbreaker.New("telegram-test",
		circuitbreaker.WithFailureThreshold(2),
		circuitbreaker.WithCoolDown(time.Hour),
		circuitbreaker.WithIsFailure(IsTransient),
	)
	c := NewClient(cfg)
	ctx := context.Background()

	for i := 0; i < 2; i++ {
		_, err := c.GetMe(ctx)
		require.Error(t, err)
		assert.True(t, IsTransient(err))
	}
	assert.Equal(t, circuitbreaker.StateOpen, cfg.Breaker.State())

	_, err := c.GetMe(ctx)
	require.Error(t, err)
	assert.ErrorIs(t, err, circuitbreaker.ErrOpen)
	assert.True(t, shared.IsExternalService(err))
	assert.EqualValues(t, 2, calls.Load())
}

func TestClient_ClientErrorsDoNotTripBreaker(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(APIResponse{OK: false, ErrorCode: 400, Description: "Bad Request: message is not modified"})
	}))
	t.Cleanup(srv.Close)

	cfg := DefaultClientConfig("TEST:TOKEN")
	cfg.BaseURL = srv.URL
	cfg.Breaker = circuitbreaker.New("telegram-test",
		circuitbreaker.WithFailureThreshold(1),
		circuitbreaker.WithIsFailure(IsTransient),
	)
	c := NewClient(cfg)

	for i := 0; i < 3; i++ {
		err := c.EditMessageKeyboard(context.Background(), 1, 2, nil)
		require.Error(t, err)
		assert.True(t, IsMessageNotModified(err))
	}
	assert.Equal(t, circuitbreaker.StateClosed, cfg.Breaker.State())
}

func TestClient_HonorsRetryAfter(t *testing.T) {
	var calls atomic.Int32
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) == 1 {
			_ = json.NewEncoder(w).Encode(APIResponse{
				OK: false, ErrorCode: 429, Description: "Too Many Requests",
				Parameters: &ResponseParameters{RetryAfter: 1},
			})
			return
		}
		writeOK(t, w, true)
	})

	start := time.Now()
	require.NoError(t, c.AnswerCallbackQuery(context.Background(), "q1", "", false))
	assert.GreaterOrEqual(t, time.Since(start), time.Second)
	assert.EqualValues(t, 2, calls.Load())
}

func TestClient_GetChatMember(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.True(t, strings.HasSuffix(r.URL.Path, "/getChatMember"))
		writeOK(t, w, ChatMember{User: &User{ID: 7}, Status: "administrator"})
	})

	m, err := c.GetChatMember(context.Background(), -100, 7)
	require.NoError(t, err)
	assert.True(t, m.IsAdministrator())
}

func TestExtractCommand(t *testing.T) {
	cmd := func(text string, length int) *Message {
		return &Message{Text: text, Entities: []MessageEntity{{Type: "bot_command", Offset: 0, Length: length}}}
	}

	tests := []struct {
		name string
		msg  *Message
		cmd  string
		args []string
	}{
		{"plain", cmd("/stats", 6), "stats", nil},
		{"bot suffix", cmd("/Leaderboard@WordleBot", 22), "leaderboard", nil},
		{"args", cmd("/adjust 4.5  20", 7), "adjust", []string{"4.5", "20"}},
		{"no entity", &Message{Text: "/stats"}, "", nil},
		{"nil", nil, "", nil},
		{"bad length", cmd("/x", 40), "x", nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.cmd, ExtractCommand(tt.msg))
			assert.Equal(t, tt.args, ExtractCommandArgs(tt.msg))
		})
	}
}

func TestExtractCommandRest(t *testing.T) {
	msg := &Message{
		Text:     "/adduser 99 Bob Wordle 1,000 3/6\n\n🟩🟩🟩🟩🟩",
		Entities: []MessageEntity{{Type: "bot_command", Offset: 0, Length: 8}},
	}
	assert.Equal(t, "99 Bob Wordle 1,000 3/6\n\n🟩🟩🟩🟩🟩", ExtractCommandRest(msg))
}

func TestChatTypeHelpers(t *testing.T) {
	group := &Message{Chat: &Chat{Type: ChatTypeSupergroup}}
	private := &Message{Chat: &Chat{Type: ChatTypePrivate}}

	assert.True(t, IsGroupChat(group))
	assert.False(t, IsPrivateChat(group))
	assert.True(t, IsPrivateChat(private))
	assert.False(t, IsGroupChat(nil))
}
