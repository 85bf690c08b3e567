// Package telegram implements the Telegram Bot interface of the Wordle stats bot.
// This package is the entry point for all Telegram interactions, handling
// updates, routing them to the handlers, and managing the bot lifecycle.
package telegram

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/wordle-hub/wordle-stats-bot/internal/application/command"
	"github.com/wordle-hub/wordle-stats-bot/internal/application/query"
	"github.com/wordle-hub/wordle-stats-bot/internal/infrastructure/external/telegram"
	"github.com/wordle-hub/wordle-stats-bot/internal/interface/telegram/handler"
	"github.com/wordle-hub/wordle-stats-bot/internal/interface/telegram/middleware"
	"github.com/wordle-hub/wordle-stats-bot/internal/interface/telegram/presenter"
	"github.com/wordle-hub/wordle-stats-bot/pkg/logger"
)

// ══════════════════════════════════════════════════════════════════════════════
// BOT CONFIGURATION
// ══════════════════════════════════════════════════════════════════════════════

// Update receiving modes.
const (
	ModePolling = "polling"
	ModeWebhook = "webhook"
)

// BotConfig contains configuration for the Telegram bot.
type BotConfig struct {
	// Mode is the update receiving mode: "polling" or "webhook".
	Mode string

	// WebhookURL is the public URL Telegram posts updates to (webhook mode).
	WebhookURL string

	// WebhookSecret is echoed by Telegram in X-Telegram-Bot-Api-Secret-Token.
	WebhookSecret string

	// DropPendingUpdates discards the queue when switching modes.
	DropPendingUpdates bool

	// PollingTimeout is the timeout for long polling (in seconds).
	PollingTimeout int

	// AllowedUpdates specifies which update types to receive.
	AllowedUpdates []string

	// MaxConcurrentUpdates limits concurrent update processing.
	MaxConcurrentUpdates int

	// GracefulShutdownTimeout is the timeout for graceful shutdown.
	GracefulShutdownTimeout time.Duration

	// LeaderboardLimit caps the rows shown by /leaderboard. 0 shows everyone.
	LeaderboardLimit int

	// Logger for structured logging.
	Logger *slog.Logger
}

// DefaultBotConfig returns sensible defaults.
func DefaultBotConfig() BotConfig {
	return BotConfig{
		Mode:                    ModePolling,
		PollingTimeout:          30,
		AllowedUpdates:          []string{"message", "callback_query"},
		MaxConcurrentUpdates:    100,
		GracefulShutdownTimeout: 30 * time.Second,
	}
}

// ══════════════════════════════════════════════════════════════════════════════
// BOT DEPENDENCIES
// ══════════════════════════════════════════════════════════════════════════════

// API is the part of the Bot API client the bot uses.
type API interface {
	Sender
	GetMe(ctx context.Context) (*telegram.User, error)
	GetUpdates(ctx context.Context, offset int64, limit, timeout int, allowed []string) ([]telegram.Update, error)
	SetWebhook(ctx context.Context, webhookURL, secretToken string, allowed []string) error
	DeleteWebhook(ctx context.Context, dropPending bool) error
	SetMyCommands(ctx context.Context, commands []telegram.BotCommand) error
	GetChatMember(ctx context.Context, chatID, userID int64) (*telegram.ChatMember, error)
}

// Deduplicator remembers update IDs so redeliveries are handled once.
type Deduplicator interface {
	FirstSeen(ctx context.Context, updateID int64) (bool, error)
}

// BotDependencies contains all dependencies for the bot handlers.
type BotDependencies struct {
	API API

	// Commands
	SubmitResult *command.SubmitResultHandler
	ManualUpdate *command.ManualUpdateHandler
	ClearData    *command.ClearDataHandler
	Admin        *command.AdminHandler

	// Queries
	Stats       *query.GetStatsHandler
	Leaderboard *query.GetLeaderboardHandler

	// Cross-cutting. Every field below is optional.
	Features    handler.Features
	Admins      *middleware.AdminAuth
	RateLimiter *middleware.RateLimiter
	Recovery    *middleware.RecoveryMiddleware
	Metrics     *middleware.MetricsMiddleware
	Dedup       Deduplicator
}

// ══════════════════════════════════════════════════════════════════════════════
// BOT
// ══════════════════════════════════════════════════════════════════════════════

// Bot is the main Telegram bot controller.
type Bot struct {
	config BotConfig
	api    API
	router *Router
	logger *slog.Logger

	admins      *middleware.AdminAuth
	rateLimiter *middleware.RateLimiter
	recovery    *middleware.RecoveryMiddleware
	metrics     *middleware.MetricsMiddleware
	dedup       Deduplicator

	// Lifecycle management
	running   bool
	runningMu sync.Mutex
	stopCh    chan struct{}
	stopOnce  sync.Once
	updateSem chan struct{}
	wg        sync.WaitGroup

	stats botStats
}

type botStats struct {
	startedAt   atomic.Int64
	received    atomic.Int64
	handled     atomic.Int64
	errors      atomic.Int64
	duplicates  atomic.Int64
	rateLimited atomic.Int64
}

// Stats is a snapshot of runtime counters.
type Stats struct {
	StartedAt       time.Time `json:"started_at"`
	UpdatesReceived int64     `json:"updates_received"`
	UpdatesHandled  int64     `json:"updates_handled"`
	Errors          int64     `json:"errors"`
	Duplicates      int64     `json:"duplicates"`
	RateLimited     int64     `json:"rate_limited"`
}

// NewBot creates a new Telegram bot with all dependencies.
func NewBot(config BotConfig, deps BotDependencies) (*Bot, error) {
	if deps.API == nil {
		return nil, errors.New("telegram API client is required")
	}
	if deps.SubmitResult == nil || deps.ManualUpdate == nil || deps.ClearData == nil ||
		deps.Stats == nil || deps.Leaderboard == nil {
		return nil, errors.New("command and query handlers are required")
	}

	if config.Logger == nil {
		config.Logger = logger.Nop()
	}
	if config.MaxConcurrentUpdates <= 0 {
		config.MaxConcurrentUpdates = 1
	}
	if config.Mode == "" {
		config.Mode = ModePolling
	}

	if deps.Recovery == nil {
		rc := middleware.DefaultRecoveryConfig()
		rc.Logger = config.Logger
		deps.Recovery = middleware.NewRecoveryMiddleware(rc)
	}
	if deps.Metrics == nil {
		deps.Metrics = middleware.NewMetricsMiddleware(prometheus.NewRegistry(), middleware.DefaultMetricsConfig())
	}

	log := config.Logger.With(logger.Component("telegram_bot"))

	router := NewRouter(RouterConfig{Sender: deps.API, Logger: log})

	// ─────────────────────────────────────────────────────────────────────────
	// Handlers
	// ─────────────────────────────────────────────────────────────────────────
	clearHandler := handler.NewClearHandler(deps.ClearData, chatAdmins{api: deps.API}, deps.Features, log)

	router.RegisterCommand("start", handler.NewStartHandler())
	router.RegisterCommand("help", handler.NewHelpHandler(deps.Features))
	router.RegisterCommand("stats", handler.NewStatsHandler(deps.Stats, deps.Features))
	router.RegisterCommand("leaderboard", handler.NewLeaderboardHandler(deps.Leaderboard, deps.Features, config.LeaderboardLimit))
	router.RegisterCommand("clear", clearHandler)
	router.RegisterCommands(handler.NewManualHandler(deps.ManualUpdate))
	if deps.Admin != nil {
		router.RegisterCommands(handler.NewAdminHandler(deps.Admin, deps.SubmitResult, deps.Features, log))
	}

	router.RegisterCallbackPrefix(presenter.CallbackClearPrefix, clearHandler)
	router.SetTextHandler(handler.NewShareHandler(deps.SubmitResult, deps.Features))

	return &Bot{
		config:      config,
		api:         deps.API,
		router:      router,
		logger:      log,
		admins:      deps.Admins,
		rateLimiter: deps.RateLimiter,
		recovery:    deps.Recovery,
		metrics:     deps.Metrics,
		dedup:       deps.Dedup,
		stopCh:      make(chan struct{}),
		updateSem:   make(chan struct{}, config.MaxConcurrentUpdates),
	}, nil
}

// Router returns the bot's router.
func (b *Bot) Router() *Router {
	return b.router
}

// ══════════════════════════════════════════════════════════════════════════════
// LIFECYCLE MANAGEMENT
// ══════════════════════════════════════════════════════════════════════════════

// Start verifies the token, publishes the command menu and receives updates
// until ctx is cancelled or Stop is called.
func (b *Bot) Start(ctx context.Context) error {
	b.runningMu.Lock()
	if b.running {
		b.runningMu.Unlock()
		return errors.New("bot is already running")
	}
	b.running = true
	b.stats.startedAt.Store(time.Now().Unix())
	b.runningMu.Unlock()

	b.logger.InfoContext(ctx, "starting telegram bot", slog.String("mode", b.config.Mode))

	if err := b.verifyToken(ctx); err != nil {
		return fmt.Errorf("failed to verify bot token: %w", err)
	}

	if err := b.api.SetMyCommands(ctx, menuCommands()); err != nil {
		b.logger.WarnContext(ctx, "failed to set command menu", logger.Err(err))
	}

	switch b.config.Mode {
	case ModePolling:
		return b.startPolling(ctx)
	case ModeWebhook:
		return b.startWebhook(ctx)
	default:
		return fmt.Errorf("unknown bot mode: %s", b.config.Mode)
	}
}

// Stop signals the update loop to exit and waits for in-flight updates.
func (b *Bot) Stop(ctx context.Context) error {
	b.runningMu.Lock()
	if !b.running {
		b.runningMu.Unlock()
		return nil
	}
	b.running = false
	b.runningMu.Unlock()

	b.logger.InfoContext(ctx, "stopping telegram bot")
	b.stopOnce.Do(func() { close(b.stopCh) })

	done := make(chan struct{})
	go func() {
		b.wg.Wait()
		close(done)
	}()

	timeout := b.config.GracefulShutdownTimeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}

	select {
	case <-done:
		b.logger.InfoContext(ctx, "all handlers completed gracefully")
	case <-time.After(timeout):
		b.logger.WarnContext(ctx, "graceful shutdown timeout exceeded")
	case <-ctx.Done():
		b.logger.WarnContext(ctx, "context cancelled during shutdown")
		return ctx.Err()
	}

	return nil
}

// IsRunning returns whether the bot is currently running.
func (b *Bot) IsRunning() bool {
	b.runningMu.Lock()
	defer b.runningMu.Unlock()
	return b.running
}

func (b *Bot) verifyToken(ctx context.Context) error {
	me, err := b.api.GetMe(ctx)
	if err != nil {
		return err
	}

	b.logger.InfoContext(ctx, "bot verified",
		slog.Int64("id", me.ID),
		slog.String("username", me.Username),
	)
	return nil
}

// menuCommands is the command list shown in the Telegram client.
func menuCommands() []telegram.BotCommand {
	return []telegram.BotCommand{
		{Command: "stats", Description: "Show your aggregated stats"},
		{Command: "leaderboard", Description: "Show the chat leaderboard"},
		{Command: "clear", Description: "Clear your user data"},
		{Command: "name", Description: "Change your display name"},
		{Command: "games", Description: "Change your total number of games"},
		{Command: "streak", Description: "Change your current streak"},
		{Command: "average", Description: "Change your score average"},
		{Command: "adjust", Description: "Recalculate your average from an old one"},
		{Command: "toggleretroactive", Description: "Allow older results to update your stats"},
		{Command: "togglewarning", Description: "Warn when an older result is ignored"},
		{Command: "help", Description: "Show help"},
	}
}

// ══════════════════════════════════════════════════════════════════════════════
// POLLING MODE
// ══════════════════════════════════════════════════════════════════════════════

const (
	pollBatch      = 100
	pollBackoffMin = time.Second
	pollBackoffMax = 30 * time.Second
)

func (b *Bot) startPolling(ctx context.Context) error {
	// getUpdates fails with 409 while a webhook is set.
	if err := b.api.DeleteWebhook(ctx, b.config.DropPendingUpdates); err != nil {
		b.logger.WarnContext(ctx, "failed to delete webhook", logger.Err(err))
	}

	b.logger.InfoContext(ctx, "starting long polling")

	var offset int64
	backoff := pollBackoffMin

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-b.stopCh:
			return nil
		default:
		}

		updates, err := b.api.GetUpdates(ctx, offset, pollBatch, b.config.PollingTimeout, b.config.AllowedUpdates)
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			b.logger.WarnContext(ctx, "get updates failed",
				logger.Err(err),
				slog.Duration("backoff", backoff),
			)
			select {
			case <-ctx.Done():
				return nil
			case <-b.stopCh:
				return nil
			case <-time.After(backoff):
			}
			backoff = min(backoff*2, pollBackoffMax)
			continue
		}
		backoff = pollBackoffMin

		for i := range updates {
			update := updates[i]
			offset = update.UpdateID + 1

			// In-flight updates finish even when polling is cancelled.
			b.wg.Add(1)
			go func() {
				defer b.wg.Done()
				if err := b.HandleUpdate(context.WithoutCancel(ctx), &update); err != nil {
					b.logger.DebugContext(ctx, "update not handled", logger.Err(err))
				}
			}()
		}
	}
}

// ══════════════════════════════════════════════════════════════════════════════
// WEBHOOK MODE
// The HTTP server receives the posts and calls HandleUpdate.
// ══════════════════════════════════════════════════════════════════════════════

func (b *Bot) startWebhook(ctx context.Context) error {
	if b.config.WebhookURL == "" {
		return errors.New("webhook URL is required for webhook mode")
	}

	if err := b.api.SetWebhook(ctx, b.config.WebhookURL, b.config.WebhookSecret, b.config.AllowedUpdates); err != nil {
		return fmt.Errorf("failed to set webhook: %w", err)
	}

	b.logger.InfoContext(ctx, "webhook registered")

	select {
	case <-ctx.Done():
	case <-b.stopCh:
	}
	return nil
}

// ══════════════════════════════════════════════════════════════════════════════
// UPDATE HANDLING
// ══════════════════════════════════════════════════════════════════════════════

// HandleUpdate processes a single Telegram update. Safe for concurrent use.
func (b *Bot) HandleUpdate(ctx context.Context, update *telegram.Update) error {
	if update == nil {
		return nil
	}

	b.stats.received.Add(1)

	if b.dedup != nil {
		first, err := b.dedup.FirstSeen(ctx, update.UpdateID)
		if err != nil {
			b.logger.WarnContext(ctx, "dedup check failed", logger.Err(err))
		} else if !first {
			b.stats.duplicates.Add(1)
			b.metrics.ObserveDuplicate()
			return nil
		}
	}

	select {
	case b.updateSem <- struct{}{}:
		defer func() { <-b.updateSem }()
	case <-ctx.Done():
		return ctx.Err()
	}

	b.wg.Add(1)
	defer b.wg.Done()

	requestID := uuid.NewString()
	log := b.logger.With(logger.RequestID(requestID), slog.Int64("update_id", update.UpdateID))
	ctx = logger.WithContext(ctx, log)
	ctx = middleware.ContextWithRequestID(ctx, requestID)

	start := time.Now()

	var err error
	switch {
	case update.Message != nil:
		err = b.handleMessage(ctx, update.Message)
	case update.CallbackQuery != nil:
		err = b.handleCallbackQuery(ctx, update.CallbackQuery)
	default:
		// Edited messages and other kinds are ignored.
		return nil
	}

	if err != nil {
		b.stats.errors.Add(1)
		log.ErrorContext(ctx, "failed to handle update", logger.Err(err), logger.Latency(time.Since(start)))
		return err
	}

	b.stats.handled.Add(1)
	return nil
}

func (b *Bot) handleMessage(ctx context.Context, msg *telegram.Message) error {
	if msg.From == nil || msg.From.IsBot || msg.Chat == nil || msg.Text == "" {
		return nil
	}

	ctx = middleware.ContextWithUserID(ctx, msg.From.ID)

	req := handler.Request{
		UserID:     msg.From.ID,
		ChatID:     msg.Chat.ID,
		ChatType:   msg.Chat.Type,
		MessageID:  msg.MessageID,
		FirstName:  msg.From.FirstName,
		Username:   msg.From.Username,
		Text:       msg.Text,
		IsBotAdmin: b.admins.IsAdmin(msg.From.ID),
	}

	cmd := telegram.ExtractCommand(msg)
	if cmd == "" {
		b.metrics.ObserveUpdate("text")
		return b.handleText(ctx, req)
	}

	b.metrics.ObserveUpdate("command")
	req.Args = telegram.ExtractCommandArgs(msg)
	req.Rest = telegram.ExtractCommandRest(msg)

	if !b.allow(ctx, req.UserID, req.ChatID) {
		return nil
	}

	return b.handleCommand(ctx, cmd, req)
}

func (b *Bot) handleText(ctx context.Context, req handler.Request) error {
	var resp *handler.Response
	info, err := b.recovery.Run(ctx, req.UserID, "share", func() error {
		var routeErr error
		resp, routeErr = b.router.RouteText(ctx, req)
		return routeErr
	})
	if info != nil {
		return b.router.Send(ctx, req.ChatID, 0, &handler.Response{Text: presenter.GenericErrorText, IsError: true})
	}
	if err != nil {
		return fmt.Errorf("share: %w", err)
	}
	return b.router.Send(ctx, req.ChatID, req.MessageID, resp)
}

func (b *Bot) handleCommand(ctx context.Context, cmd string, req handler.Request) error {
	// Unknown commands are ignored and stay out of the metric labels.
	if !b.router.HasCommand(cmd) {
		return nil
	}

	rc := b.metrics.Start(cmd)
	status := middleware.StatusOK
	defer func() { rc.End(status) }()

	var resp *handler.Response
	info, err := b.recovery.Run(ctx, req.UserID, cmd, func() error {
		var routeErr error
		resp, _, routeErr = b.router.RouteCommand(ctx, cmd, req)
		return routeErr
	})

	switch {
	case info != nil:
		status = middleware.StatusPanic
		return b.router.Send(ctx, req.ChatID, 0, &handler.Response{Text: presenter.GenericErrorText, IsError: true})
	case err != nil:
		status = middleware.StatusError
		logger.FromContext(ctx).ErrorContext(ctx, "command failed",
			logger.Operation(cmd),
			logger.UserID(req.UserID),
			logger.ChatID(req.ChatID),
			logger.Err(err),
		)
		return b.router.Send(ctx, req.ChatID, 0, &handler.Response{Text: presenter.GenericErrorText, IsError: true})
	case resp != nil && resp.IsError:
		status = middleware.StatusUserError
	}

	return b.router.Send(ctx, req.ChatID, req.MessageID, resp)
}

func (b *Bot) handleCallbackQuery(ctx context.Context, cq *telegram.CallbackQuery) error {
	if cq.From == nil {
		return nil
	}

	b.metrics.ObserveUpdate("callback")
	ctx = middleware.ContextWithUserID(ctx, cq.From.ID)

	req := handler.CallbackRequest{
		QueryID:    cq.ID,
		UserID:     cq.From.ID,
		Username:   cq.From.Username,
		Data:       cq.Data,
		IsBotAdmin: b.admins.IsAdmin(cq.From.ID),
	}
	if cq.Message != nil && cq.Message.Chat != nil {
		req.ChatID = cq.Message.Chat.ID
		req.MessageID = cq.Message.MessageID
	}

	if !b.allow(ctx, req.UserID, 0) {
		return b.api.AnswerCallbackQuery(ctx, req.QueryID, "", false)
	}

	var resp *handler.CallbackResponse
	info, err := b.recovery.Run(ctx, req.UserID, "callback", func() error {
		var routeErr error
		resp, routeErr = b.router.RouteCallback(ctx, req)
		return routeErr
	})
	if info != nil || err != nil {
		if err != nil && info == nil {
			logger.FromContext(ctx).ErrorContext(ctx, "callback failed", logger.UserID(req.UserID), logger.Err(err))
		}
		resp = &handler.CallbackResponse{Answer: presenter.GenericErrorText, ShowAlert: true}
	}

	return b.router.Answer(ctx, req, resp)
}

// allow applies the per-user rate limit. The first rejection in a row gets a
// reply in chatID (when non-zero); later ones are dropped silently.
func (b *Bot) allow(ctx context.Context, userID, chatID int64) bool {
	if b.rateLimiter == nil {
		return true
	}

	res := b.rateLimiter.Check(ctx, userID)
	if res.Allowed {
		return true
	}

	b.stats.rateLimited.Add(1)
	b.metrics.ObserveRateLimited()

	if res.FirstViolation && chatID != 0 {
		if err := b.router.Send(ctx, chatID, 0, &handler.Response{Text: presenter.RateLimitedText(res.RetryAfter), IsError: true}); err != nil {
			logger.FromContext(ctx).WarnContext(ctx, "failed to send rate limit notice", logger.Err(err))
		}
	}
	return false
}

// Stats returns a snapshot of runtime counters.
func (b *Bot) Stats() Stats {
	var started time.Time
	if ts := b.stats.startedAt.Load(); ts != 0 {
		started = time.Unix(ts, 0)
	}
	return Stats{
		StartedAt:       started,
		UpdatesReceived: b.stats.received.Load(),
		UpdatesHandled:  b.stats.handled.Load(),
		Errors:          b.stats.errors.Load(),
		Duplicates:      b.stats.duplicates.Load(),
		RateLimited:     b.stats.rateLimited.Load(),
	}
}

// ══════════════════════════════════════════════════════════════════════════════
// CHAT ADMIN CHECK
// ══════════════════════════════════════════════════════════════════════════════

// chatAdmins answers handler.ChatAdminChecker through getChatMember.
type chatAdmins struct {
	api API
}

func (c chatAdmins) IsChatAdmin(ctx context.Context, chatID, userID int64) (bool, error) {
	member, err := c.api.GetChatMember(ctx, chatID, userID)
	if err != nil {
		return false, err
	}
	return member.IsAdministrator(), nil
}
