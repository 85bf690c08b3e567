// Package telegram implements a small Telegram Bot API client.
// It covers what the Wordle bot needs: sending and editing messages, inline
// keyboards, callback answers, long polling, webhooks and chat member lookups.
package telegram

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/wordle-hub/wordle-stats-bot/internal/domain/shared"
	"github.com/wordle-hub/wordle-stats-bot/pkg/circuitbreaker"
	"github.com/wordle-hub/wordle-stats-bot/pkg/retry"
)

const defaultBaseURL = "https://api.telegram.org"

// ══════════════════════════════════════════════════════════════════════════════
// CONFIGURATION
// ══════════════════════════════════════════════════════════════════════════════

// ClientConfig configures Client. Timeout must exceed the long polling
// timeout, or getUpdates is cut off by the HTTP client.
type ClientConfig struct {
	Token   string
	BaseURL string
	Timeout time.Duration

	// RetryAttempts counts the first attempt.
	RetryAttempts int
	RetryDelay    time.Duration

	Logger *slog.Logger

	// HTTPClient replaces the client built from Timeout.
	HTTPClient *http.Client

	// Breaker, when set, stops calls after repeated transient failures.
	Breaker *circuitbreaker.CircuitBreaker
}

func DefaultClientConfig(token string) ClientConfig {
	return ClientConfig{
		Token:         token,
		BaseURL:       defaultBaseURL,
		Timeout:       60 * time.Second,
		RetryAttempts: 4,
		RetryDelay:    500 * time.Millisecond,
	}
}

// ══════════════════════════════════════════════════════════════════════════════
// CLIENT
// ══════════════════════════════════════════════════════════════════════════════

// Client calls the Bot API over JSON POST requests.
type Client struct {
	config     ClientConfig
	httpClient *http.Client
	retrier    *retry.Retrier
	logger     *slog.Logger
}

func NewClient(config ClientConfig) *Client {
	if config.Logger == nil {
		config.Logger = slog.Default()
	}
	if config.BaseURL == "" {
		config.BaseURL = defaultBaseURL
	}
	config.RetryAttempts = max(config.RetryAttempts, 1)

	httpClient := config.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{Timeout: config.Timeout}
	}

	return &Client{
		config:     config,
		httpClient: httpClient,
		retrier: retry.New(
			retry.WithMaxAttempts(config.RetryAttempts),
			retry.WithInitialDelay(config.RetryDelay),
			retry.WithMaxDelay(10*time.Second),
			retry.WithMultiplier(2.0),
			retry.WithJitter(0.1),
			retry.WithRetryIf(isRetryableError),
		),
		logger: config.Logger,
	}
}

// ══════════════════════════════════════════════════════════════════════════════
// MESSAGES
// ══════════════════════════════════════════════════════════════════════════════

// SendMessageParams describes an outgoing text message. Link previews are
// always disabled.
type SendMessageParams struct {
	ChatID              int64
	Text                string
	ParseMode           string
	DisableNotification bool
	ReplyToMessageID    int64
	ReplyMarkup         *InlineKeyboardMarkup
}

// SendMessage posts a message. A reply to a deleted message is still sent.
func (c *Client) SendMessage(ctx context.Context, params SendMessageParams) (*Message, error) {
	req := sendMessageRequest{
		ChatID:                   params.ChatID,
		Text:                     params.Text,
		ParseMode:                params.ParseMode,
		DisableWebPagePreview:    true,
		DisableNotification:      params.DisableNotification,
		ReplyToMessageID:         params.ReplyToMessageID,
		AllowSendingWithoutReply: params.ReplyToMessageID > 0,
		ReplyMarkup:              params.ReplyMarkup,
	}

	var sent Message
	if err := c.callAPI(ctx, "sendMessage", req, &sent); err != nil {
		return nil, fmt.Errorf("send message: %w", err)
	}
	return &sent, nil
}

// EditMessageKeyboard replaces the inline keyboard of a message. A nil
// keyboard removes it.
func (c *Client) EditMessageKeyboard(ctx context.Context, chatID, messageID int64, keyboard *InlineKeyboardMarkup) error {
	if keyboard == nil {
		keyboard = &InlineKeyboardMarkup{InlineKeyboard: [][]InlineKeyboardButton{}}
	}
	req := editReplyMarkupRequest{ChatID: chatID, MessageID: messageID, ReplyMarkup: keyboard}
	if err := c.callAPI(ctx, "editMessageReplyMarkup", req, nil); err != nil {
		return fmt.Errorf("edit message keyboard: %w", err)
	}
	return nil
}

// AnswerCallbackQuery stops the button spinner, optionally with a toast or
// an alert.
func (c *Client) AnswerCallbackQuery(ctx context.Context, callbackQueryID, text string, showAlert bool) error {
	req := answerCallbackRequest{
		CallbackQueryID: callbackQueryID,
		Text:            text,
		ShowAlert:       showAlert && text != "",
	}
	if err := c.callAPI(ctx, "answerCallbackQuery", req, nil); err != nil {
		return fmt.Errorf("answer callback query: %w", err)
	}
	return nil
}

// ══════════════════════════════════════════════════════════════════════════════
// UPDATES AND WEBHOOKS
// ══════════════════════════════════════════════════════════════════════════════

// GetUpdates long-polls for up to timeout seconds.
func (c *Client) GetUpdates(ctx context.Context, offset int64, limit, timeout int, allowed []string) ([]Update, error) {
	req := getUpdatesRequest{Offset: offset, Limit: limit, Timeout: timeout, AllowedUpdates: allowed}

	var updates []Update
	if err := c.callAPI(ctx, "getUpdates", req, &updates); err != nil {
		return nil, fmt.Errorf("get updates: %w", err)
	}
	return updates, nil
}

func (c *Client) SetWebhook(ctx context.Context, webhookURL, secretToken string, allowed []string) error {
	req := setWebhookRequest{URL: webhookURL, SecretToken: secretToken, AllowedUpdates: allowed}
	if err := c.callAPI(ctx, "setWebhook", req, nil); err != nil {
		return fmt.Errorf("set webhook: %w", err)
	}
	return nil
}

// DeleteWebhook removes the webhook so long polling can be used.
func (c *Client) DeleteWebhook(ctx context.Context, dropPending bool) error {
	if err := c.callAPI(ctx, "deleteWebhook", deleteWebhookRequest{DropPendingUpdates: dropPending}, nil); err != nil {
		return fmt.Errorf("delete webhook: %w", err)
	}
	return nil
}

// ══════════════════════════════════════════════════════════════════════════════
// BOT AND CHAT INFO
// ══════════════════════════════════════════════════════════════════════════════

// GetMe returns the bot's own account.
func (c *Client) GetMe(ctx context.Context) (*User, error) {
	var me User
	if err := c.callAPI(ctx, "getMe", nil, &me); err != nil {
		return nil, fmt.Errorf("get me: %w", err)
	}
	return &me, nil
}

// SetMyCommands publishes the command menu.
func (c *Client) SetMyCommands(ctx context.Context, commands []BotCommand) error {
	if err := c.callAPI(ctx, "setMyCommands", setMyCommandsRequest{Commands: commands}, nil); err != nil {
		return fmt.Errorf("set my commands: %w", err)
	}
	return nil
}

// GetChatMember returns the membership of userID in chatID.
func (c *Client) GetChatMember(ctx context.Context, chatID, userID int64) (*ChatMember, error) {
	var member ChatMember
	if err := c.callAPI(ctx, "getChatMember", getChatMemberRequest{ChatID: chatID, UserID: userID}, &member); err != nil {
		return nil, fmt.Errorf("get chat member: %w", err)
	}
	return &member, nil
}

// ══════════════════════════════════════════════════════════════════════════════
// TRANSPORT
// ══════════════════════════════════════════════════════════════════════════════

// callAPI runs one logical call: breaker, then retries, then the request.
func (c *Client) callAPI(ctx context.Context, method string, body, result any) error {
	if c.config.Breaker == nil {
		return c.callWithRetry(ctx, method, body, result)
	}
	err := c.config.Breaker.Execute(ctx, func(ctx context.Context) error {
		return c.callWithRetry(ctx, method, body, result)
	})
	if circuitbreaker.IsRejection(err) {
		return shared.WrapError("telegram", method, shared.ErrExternalService, "Telegram API unavailable", err)
	}
	return err
}

// callWithRetry retries transient failures. Flood control waits for the
// advertised retry_after before the next attempt.
func (c *Client) callWithRetry(ctx context.Context, method string, body, result any) error {
	err := c.retrier.Do(ctx, func(ctx context.Context) error {
		err := c.post(ctx, method, body, result)

		var apiErr *APIError
		if !errors.As(err, &apiErr) || apiErr.RetryAfter <= 0 {
			return err
		}
		wait := time.Duration(apiErr.RetryAfter) * time.Second
		c.logger.WarnContext(ctx, "telegram flood control",
			slog.String("method", method),
			slog.Duration("retry_after", wait),
		)
		timer := time.NewTimer(wait)
		defer timer.Stop()
		select {
		case <-ctx.Done():
			return retry.Permanent(err)
		case <-timer.C:
			return err
		}
	})
	if err != nil {
		return shared.WrapError("telegram", method, shared.ErrExternalService, "Telegram API request failed", err)
	}
	return nil
}

// post sends a single request and decodes the envelope into result.
func (c *Client) post(ctx context.Context, method string, body, result any) error {
	var payload io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		if err != nil {
			return retry.Permanent(fmt.Errorf("marshal %s: %w", method, err))
		}
		payload = bytes.NewReader(raw)
	}

	endpoint := c.config.BaseURL + "/bot" + c.config.Token + "/" + method
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, payload)
	if err != nil {
		return retry.Permanent(fmt.Errorf("build request %s: %w", method, err))
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		// the URL embeds the token; report only the method
		return fmt.Errorf("http request %s: %w", method, unwrapURLError(err))
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("read %s response: %w", method, err)
	}

	var envelope APIResponse
	if err := json.Unmarshal(raw, &envelope); err != nil {
		if resp.StatusCode >= http.StatusInternalServerError {
			return &APIError{Code: resp.StatusCode, Description: http.StatusText(resp.StatusCode)}
		}
		return fmt.Errorf("decode %s response: %w", method, err)
	}
	if !envelope.OK {
		return newAPIError(envelope)
	}
	if result == nil || len(envelope.Result) == 0 {
		return nil
	}
	if err := json.Unmarshal(envelope.Result, result); err != nil {
		return retry.Permanent(fmt.Errorf("decode %s result: %w", method, err))
	}
	return nil
}

func unwrapURLError(err error) error {
	var urlErr *url.Error
	if errors.As(err, &urlErr) && urlErr.Err != nil {
		return urlErr.Err
	}
	return err
}

// ══════════════════════════════════════════════════════════════════════════════
// ERRORS
// ══════════════════════════════════════════════════════════════════════════════

// APIError is an ok=false reply, or a 5xx without a JSON body.
type APIError struct {
	Code        int
	Description string
	RetryAfter  int
}

func newAPIError(r APIResponse) *APIError {
	e := &APIError{Code: r.ErrorCode, Description: r.Description}
	if r.Parameters != nil {
		e.RetryAfter = r.Parameters.RetryAfter
	}
	return e
}

func (e *APIError) Error() string {
	return fmt.Sprintf("telegram api error %d: %s", e.Code, e.Description)
}

// IsTransient reports whether err is worth retrying later: flood control,
// 5xx replies and transport failures.
func IsTransient(err error) bool {
	return isRetryableError(err)
}

var transientMarkers = []string{"timeout", "connection refused", "temporary", "reset", "EOF"}

func isRetryableError(err error) bool {
	if err == nil || retry.IsPermanent(err) {
		return false
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return false
	}

	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return apiErr.Code == http.StatusTooManyRequests || apiErr.Code >= http.StatusInternalServerError
	}

	msg := err.Error()
	for _, marker := range transientMarkers {
		if strings.Contains(msg, marker) {
			return true
		}
	}
	return false
}

// IsForbidden reports whether the bot was blocked or removed from the chat.
func IsForbidden(err error) bool {
	var apiErr *APIError
	return errors.As(err, &apiErr) && apiErr.Code == http.StatusForbidden
}

// IsMessageNotModified reports the harmless error returned when an edit
// changes nothing.
func IsMessageNotModified(err error) bool {
	var apiErr *APIError
	return errors.As(err, &apiErr) && strings.Contains(apiErr.Description, "message is not modified")
}
