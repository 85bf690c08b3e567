package telegram

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"sync"

	"github.com/wordle-hub/wordle-stats-bot/internal/infrastructure/external/telegram"
	"github.com/wordle-hub/wordle-stats-bot/internal/interface/telegram/handler"
	"github.com/wordle-hub/wordle-stats-bot/internal/interface/telegram/presenter"
	"github.com/wordle-hub/wordle-stats-bot/pkg/logger"
)

// ══════════════════════════════════════════════════════════════════════════════
// HANDLER INTERFACES
// Interfaces that handlers must implement to be registered with the router.
// ══════════════════════════════════════════════════════════════════════════════

// CommandHandler is the interface for command and plain-text handlers.
type CommandHandler interface {
	Handle(ctx context.Context, req handler.Request) (*handler.Response, error)
}

// CommandFunc adapts a function to CommandHandler.
type CommandFunc func(ctx context.Context, req handler.Request) (*handler.Response, error)

// Handle calls f.
func (f CommandFunc) Handle(ctx context.Context, req handler.Request) (*handler.Response, error) {
	return f(ctx, req)
}

// MultiCommandHandler serves several commands and needs the command name.
type MultiCommandHandler interface {
	Commands() []string
	Handle(ctx context.Context, name string, req handler.Request) (*handler.Response, error)
}

// CallbackHandler is the interface for callback handlers.
type CallbackHandler interface {
	HandleCallback(ctx context.Context, req handler.CallbackRequest) (*handler.CallbackResponse, error)
}

// Sender is the part of the Bot API the router writes to.
type Sender interface {
	SendMessage(ctx context.Context, params telegram.SendMessageParams) (*telegram.Message, error)
	EditMessageKeyboard(ctx context.Context, chatID, messageID int64, keyboard *telegram.InlineKeyboardMarkup) error
	AnswerCallbackQuery(ctx context.Context, callbackQueryID, text string, showAlert bool) error
}

// ══════════════════════════════════════════════════════════════════════════════
// ROUTER
// Routes incoming updates to the registered handlers and sends their replies.
// ══════════════════════════════════════════════════════════════════════════════

// RouterConfig contains configuration for the router.
type RouterConfig struct {
	// Sender delivers replies.
	Sender Sender

	// Logger for structured logging.
	Logger *slog.Logger
}

// Router routes Telegram updates to handlers.
type Router struct {
	sender Sender
	logger *slog.Logger

	mu        sync.RWMutex
	commands  map[string]CommandHandler
	callbacks map[string]CallbackHandler
	text      CommandHandler
}

// NewRouter creates a new router.
func NewRouter(config RouterConfig) *Router {
	if config.Logger == nil {
		config.Logger = logger.Nop()
	}
	return &Router{
		sender:    config.Sender,
		logger:    config.Logger,
		commands:  make(map[string]CommandHandler),
		callbacks: make(map[string]CallbackHandler),
	}
}

// ══════════════════════════════════════════════════════════════════════════════
// REGISTRATION METHODS
// ══════════════════════════════════════════════════════════════════════════════

// RegisterCommand registers a handler for a command without the leading "/".
func (r *Router) RegisterCommand(command string, h CommandHandler) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.commands[strings.ToLower(command)] = h
}

// RegisterCommands registers every command a MultiCommandHandler serves.
func (r *Router) RegisterCommands(h MultiCommandHandler) {
	for _, name := range h.Commands() {
		name := name
		r.RegisterCommand(name, CommandFunc(func(ctx context.Context, req handler.Request) (*handler.Response, error) {
			return h.Handle(ctx, name, req)
		}))
	}
}

// RegisterCallbackPrefix registers a handler for callback data starting with
// prefix. The longest matching prefix wins.
func (r *Router) RegisterCallbackPrefix(prefix string, h CallbackHandler) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.callbacks[prefix] = h
}

// SetTextHandler sets the handler for messages that are not commands.
func (r *Router) SetTextHandler(h CommandHandler) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.text = h
}

// HasCommand reports whether a handler is registered for command.
func (r *Router) HasCommand(command string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.commands[command]
	return ok
}

// Commands returns the registered command names, sorted.
func (r *Router) Commands() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, 0, len(r.commands))
	for name := range r.commands {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// ══════════════════════════════════════════════════════════════════════════════
// ROUTING METHODS
// ══════════════════════════════════════════════════════════════════════════════

// RouteCommand runs the handler for command. found is false for unknown
// commands, which are ignored so the bot stays quiet in busy groups.
func (r *Router) RouteCommand(ctx context.Context, command string, req handler.Request) (resp *handler.Response, found bool, err error) {
	r.mu.RLock()
	h, ok := r.commands[command]
	r.mu.RUnlock()

	if !ok {
		r.logger.DebugContext(ctx, "no handler for command", slog.String("command", command))
		return nil, false, nil
	}

	resp, err = h.Handle(ctx, req)
	return resp, true, err
}

// RouteText runs the plain-text handler.
func (r *Router) RouteText(ctx context.Context, req handler.Request) (*handler.Response, error) {
	r.mu.RLock()
	h := r.text
	r.mu.RUnlock()

	if h == nil {
		return nil, nil
	}
	return h.Handle(ctx, req)
}

// RouteCallback runs the handler whose prefix matches the callback data.
func (r *Router) RouteCallback(ctx context.Context, req handler.CallbackRequest) (*handler.CallbackResponse, error) {
	r.mu.RLock()
	var matched string
	var h CallbackHandler
	for prefix, candidate := range r.callbacks {
		if strings.HasPrefix(req.Data, prefix) && len(prefix) > len(matched) {
			matched = prefix
			h = candidate
		}
	}
	r.mu.RUnlock()

	if h == nil {
		r.logger.DebugContext(ctx, "no handler for callback", slog.String("data", req.Data))
		return &handler.CallbackResponse{}, nil
	}
	return h.HandleCallback(ctx, req)
}

// ══════════════════════════════════════════════════════════════════════════════
// SENDING
// ══════════════════════════════════════════════════════════════════════════════

// Send delivers a handler response. A nil response sends nothing.
// replyTo is the incoming message ID, used when the response asks for it.
func (r *Router) Send(ctx context.Context, chatID, replyTo int64, resp *handler.Response) error {
	if resp == nil || resp.Text == "" {
		return nil
	}

	params := telegram.SendMessageParams{
		ChatID:      chatID,
		Text:        resp.Text,
		ParseMode:   resp.ParseMode,
		ReplyMarkup: toMarkup(resp.Keyboard),
	}
	if resp.ReplyTo {
		params.ReplyToMessageID = replyTo
	}

	if _, err := r.sender.SendMessage(ctx, params); err != nil {
		return fmt.Errorf("send response: %w", err)
	}
	return nil
}

// Answer acknowledges a button press and applies the callback response.
func (r *Router) Answer(ctx context.Context, req handler.CallbackRequest, resp *handler.CallbackResponse) error {
	if resp == nil {
		resp = &handler.CallbackResponse{}
	}

	// Отвечаем всегда, иначе у пользователя крутится индикатор загрузки.
	if err := r.sender.AnswerCallbackQuery(ctx, req.QueryID, resp.Answer, resp.ShowAlert); err != nil {
		r.logger.WarnContext(ctx, "answer callback failed", logger.Err(err))
	}

	if resp.RemoveKeyboard && req.MessageID != 0 {
		err := r.sender.EditMessageKeyboard(ctx, req.ChatID, req.MessageID, nil)
		if err != nil && !telegram.IsMessageNotModified(err) {
			r.logger.WarnContext(ctx, "remove keyboard failed", logger.Err(err))
		}
	}

	return r.Send(ctx, req.ChatID, 0, resp.Message)
}

// toMarkup converts a presenter keyboard to Bot API markup.
func toMarkup(kb *presenter.InlineKeyboard) *telegram.InlineKeyboardMarkup {
	if kb == nil || len(kb.Rows) == 0 {
		return nil
	}
	markup := &telegram.InlineKeyboardMarkup{
		InlineKeyboard: make([][]telegram.InlineKeyboardButton, 0, len(kb.Rows)),
	}
	for _, row := range kb.Rows {
		buttons := make([]telegram.InlineKeyboardButton, 0, len(row))
		for _, b := range row {
			buttons = append(buttons, telegram.InlineKeyboardButton{
				Text:         b.Text,
				CallbackData: b.CallbackData,
				URL:          b.URL,
			})
		}
		markup.InlineKeyboard = append(markup.InlineKeyboard, buttons)
	}
	return markup
}
