// Package handler contains Telegram command handlers.
// Each handler follows the pattern: receive update → validate → call application layer → format response.
package handler

import (
	"context"
	"errors"
	"strconv"

	"github.com/wordle-hub/wordle-stats-bot/internal/domain/shared"
	"github.com/wordle-hub/wordle-stats-bot/internal/interface/telegram/presenter"
)

// ══════════════════════════════════════════════════════════════════════════════
// REQUEST / RESPONSE
// Transport-neutral shapes. The router fills Request from a Telegram update
// and sends Response back through the Bot API client.
// ══════════════════════════════════════════════════════════════════════════════

// Request contains the data of one incoming message.
type Request struct {
	// UserID is the sender's Telegram ID.
	UserID int64

	// ChatID is the chat the message was sent in.
	ChatID int64

	// ChatType is "private", "group", "supergroup" or "channel".
	ChatType string

	// MessageID is the incoming message ID (for replies).
	MessageID int64

	// FirstName is the sender's first name. Used as the display name.
	FirstName string

	// Username is the sender's @handle without the @.
	Username string

	// Text is the full message text.
	Text string

	// Args are the whitespace-separated words after the command.
	Args []string

	// Rest is the raw text after the command, newlines preserved.
	Rest string

	// IsBotAdmin is set by the auth middleware.
	IsBotAdmin bool
}

// DisplayName returns the name a new player is created with.
func (r Request) DisplayName() string {
	switch {
	case r.FirstName != "":
		return r.FirstName
	case r.Username != "":
		return r.Username
	default:
		return "Player " + strconv.FormatInt(r.UserID, 10)
	}
}

// Mention returns @username, or the display name.
func (r Request) Mention() string {
	if r.Username != "" {
		return "@" + r.Username
	}
	return r.DisplayName()
}

// IsGroup reports whether the message came from a group chat.
func (r Request) IsGroup() bool {
	return r.ChatType == "group" || r.ChatType == "supergroup"
}

// Response contains the message to send back.
type Response struct {
	// Text is the message text.
	Text string

	// ParseMode is "" for plain text or "MarkdownV2".
	ParseMode string

	// Keyboard is the inline keyboard to attach.
	Keyboard *presenter.InlineKeyboard

	// ReplyTo quotes the incoming message.
	ReplyTo bool

	// IsError indicates if this is an error response.
	IsError bool
}

// CallbackRequest contains the data of one inline button press.
type CallbackRequest struct {
	QueryID    string
	UserID     int64
	ChatID     int64
	MessageID  int64
	Username   string
	Data       string
	IsBotAdmin bool
}

// CallbackResponse tells the router how to answer a button press.
type CallbackResponse struct {
	// Answer is the toast text shown to the presser. May be empty.
	Answer string

	// ShowAlert shows Answer as a modal alert.
	ShowAlert bool

	// RemoveKeyboard strips the buttons from the original message.
	RemoveKeyboard bool

	// Message is sent to the chat after the answer. May be nil.
	Message *Response
}

// ══════════════════════════════════════════════════════════════════════════════
// DEPENDENCIES
// ══════════════════════════════════════════════════════════════════════════════

// Feature flag names checked by handlers.
const (
	FeatureJoinOnRead         = "stats.join_on_read"
	FeatureDuplicateNotice    = "score.duplicate_notice"
	FeatureRetroactiveWarning = "score.retroactive_warning"
	FeatureAdminCommands      = "admin.commands"
	FeatureClearChat          = "clear.chat"
)

// Features reports whether a feature is on for a user.
type Features interface {
	EnabledFor(feature string, userID int64) bool
}

// allFeatures enables everything. Used when no flags are configured.
type allFeatures struct{}

func (allFeatures) EnabledFor(string, int64) bool { return true }

func featuresOrDefault(f Features) Features {
	if f == nil {
		return allFeatures{}
	}
	return f
}

// ChatAdminChecker reports whether a user administers a chat.
type ChatAdminChecker interface {
	IsChatAdmin(ctx context.Context, chatID, userID int64) (bool, error)
}

// ══════════════════════════════════════════════════════════════════════════════
// HELPERS
// ══════════════════════════════════════════════════════════════════════════════

func textResponse(text string) *Response {
	return &Response{Text: text}
}

func markdownResponse(text string) *Response {
	return &Response{Text: text, ParseMode: presenter.ParseMode}
}

func viewResponse(v *presenter.View) *Response {
	return &Response{Text: v.Text, ParseMode: v.ParseMode, Keyboard: v.Keyboard}
}

func errorResponse(text string) *Response {
	return &Response{Text: text, IsError: true}
}

// userErrorText maps well-known domain errors to chat replies.
// Returns false for errors that should surface as failures.
func userErrorText(err error, command string) (string, bool) {
	switch {
	case errors.Is(err, shared.ErrInvalidAvg):
		return presenter.InvalidAvgText, true
	case errors.Is(err, shared.ErrMissingArgument):
		if command == "adjust" {
			return presenter.AdjustUsageText, true
		}
		return presenter.ExpectedValueText(command), true
	case errors.Is(err, shared.ErrNotANumber):
		if command == "adjust" {
			return presenter.AdjustUsageText, true
		}
		return presenter.NotANumberText(command), true
	case errors.Is(err, shared.ErrInvalidGames):
		return presenter.InvalidGamesText, true
	case errors.Is(err, shared.ErrNegativeStat):
		return presenter.NegativeValueText, true
	case errors.Is(err, shared.ErrStatTooLarge):
		return presenter.StatTooLargeText, true
	case errors.Is(err, shared.ErrEmptyUsername):
		return presenter.EmptyNameText, true
	}
	return "", false
}
