// Package main - точка входа Telegram-бота, который ведёт статистику Wordle:
// разбирает присланные результаты, считает средний балл и серию и строит
// лидерборды по чатам.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"

	"github.com/wordle-hub/wordle-stats-bot/config"

	// Application layer
	"github.com/wordle-hub/wordle-stats-bot/internal/application/command"
	"github.com/wordle-hub/wordle-stats-bot/internal/application/query"

	// Infrastructure layer
	tgapi "github.com/wordle-hub/wordle-stats-bot/internal/infrastructure/external/telegram"
	"github.com/wordle-hub/wordle-stats-bot/internal/infrastructure/persistence"
	"github.com/wordle-hub/wordle-stats-bot/internal/infrastructure/scheduler"
	"github.com/wordle-hub/wordle-stats-bot/internal/infrastructure/scheduler/jobs"

	// Interface layer
	httpserver "github.com/wordle-hub/wordle-stats-bot/internal/interface/http"
	"github.com/wordle-hub/wordle-stats-bot/internal/interface/http/handlers"
	"github.com/wordle-hub/wordle-stats-bot/internal/interface/telegram"
	"github.com/wordle-hub/wordle-stats-bot/internal/interface/telegram/middleware"

	// Packages
	"github.com/wordle-hub/wordle-stats-bot/pkg/circuitbreaker"
	"github.com/wordle-hub/wordle-stats-bot/pkg/logger"
)

const (
	metricsNamespace = "wordle_bot"
	gaugesInterval   = 30 * time.Second
	badgerGCInterval = 10 * time.Minute
)

// ══════════════════════════════════════════════════════════════════════════════
// MAIN
// ══════════════════════════════════════════════════════════════════════════════

func main() {
	configPath := flag.String("config", os.Getenv("CONFIG_FILE"), "path to a config file (optional)")
	flag.Parse()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, *configPath); err != nil {
		fmt.Fprintf(os.Stderr, "fatal error: %v\n", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, configPath string) error {
	// ─────────────────────────────────────────────────────────────────────────
	// 1. КОНФИГУРАЦИЯ
	// ─────────────────────────────────────────────────────────────────────────
	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}
	if err := cfg.ValidateBot(); err != nil {
		return fmt.Errorf("invalid bot config: %w", err)
	}

	// ─────────────────────────────────────────────────────────────────────────
	// 2. ЛОГИРОВАНИЕ
	// ─────────────────────────────────────────────────────────────────────────
	log := setupLogger(cfg)
	log.Info("starting Wordle stats bot",
		slog.String("env", string(cfg.App.Environment)),
		slog.String("version", cfg.App.Version),
		slog.String("storage", cfg.Database.Driver),
		slog.String("mode", cfg.Telegram.Mode),
	)

	// ─────────────────────────────────────────────────────────────────────────
	// 3. ХРАНИЛИЩЕ
	// ─────────────────────────────────────────────────────────────────────────
	storage, err := persistence.Open(ctx, persistence.Options{
		Database: cfg.Database,
		Redis:    cfg.Redis,
		Migrate:  cfg.Database.AutoMigrate,
		Logger:   log,
	})
	if err != nil {
		return fmt.Errorf("failed to open storage: %w", err)
	}
	defer func() {
		log.Info("closing storage...")
		if err := storage.Close(); err != nil {
			log.Error("failed to close storage", logger.Err(err))
		}
	}()

	// ─────────────────────────────────────────────────────────────────────────
	// 4. APPLICATION: команды и запросы
	// ─────────────────────────────────────────────────────────────────────────
	submitCfg := command.DefaultSubmitResultConfig()
	submitCfg.MaxAttempts = cfg.Engine.MaxUpdateAttempts

	submitResult := command.NewSubmitResultHandler(storage.Players, storage.Editions, submitCfg, log)
	manualUpdate := command.NewManualUpdateHandler(storage.Players, log)
	clearData := command.NewClearDataHandler(storage.Players, log)
	admin := command.NewAdminHandler(storage.Players, storage.Editions, log)

	statsQuery := query.NewGetStatsHandler(storage.Players, storage.Editions)
	leaderboardQuery := query.NewGetLeaderboardHandler(storage.Players, storage.Editions)

	// ─────────────────────────────────────────────────────────────────────────
	// 5. МЕТРИКИ
	// ─────────────────────────────────────────────────────────────────────────
	registry := prometheus.NewRegistry()
	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	metrics := middleware.NewMetricsMiddleware(registry, middleware.DefaultMetricsConfig())

	// ─────────────────────────────────────────────────────────────────────────
	// 6. TELEGRAM КЛИЕНТ
	// ─────────────────────────────────────────────────────────────────────────
	clientCfg := tgapi.DefaultClientConfig(cfg.Telegram.Token)
	clientCfg.Timeout = cfg.Telegram.RequestTimeout
	if floor := cfg.Telegram.PollingTimeout + 10*time.Second; clientCfg.Timeout < floor {
		clientCfg.Timeout = floor
	}
	clientCfg.RetryAttempts = cfg.Telegram.MaxRetries + 1
	clientCfg.Logger = log.With(logger.Component("telegram_client"))
	clientCfg.Breaker = circuitbreaker.TelegramAPIBreaker(tgapi.IsTransient, func(name string, from, to circuitbreaker.State) {
		log.Warn("circuit breaker state changed",
			slog.String("breaker", name),
			slog.String("from", from.String()),
			slog.String("to", to.String()),
		)
	})
	client := tgapi.NewClient(clientCfg)

	// ─────────────────────────────────────────────────────────────────────────
	// 7. MIDDLEWARE
	// ─────────────────────────────────────────────────────────────────────────
	admins := middleware.NewAdminAuth(cfg.Telegram.AdminIDs)

	rlCfg := middleware.DefaultRateLimitConfig()
	rlCfg.RequestsPerMinute = cfg.Telegram.UserRateLimit
	rlCfg.BurstSize = cfg.Telegram.UserRateBurst
	rlCfg.BanDuration = cfg.Telegram.UserRateLimitBan
	rlCfg.WhitelistedUsers = cfg.Telegram.AdminIDs
	rateLimiter := middleware.NewRateLimiter(rlCfg)
	defer rateLimiter.Stop()

	recoveryCfg := middleware.DefaultRecoveryConfig()
	recoveryCfg.Logger = log
	recovery := middleware.NewRecoveryMiddleware(recoveryCfg)

	// ─────────────────────────────────────────────────────────────────────────
	// 8. БОТ
	// ─────────────────────────────────────────────────────────────────────────
	botCfg := telegram.DefaultBotConfig()
	botCfg.Mode = cfg.Telegram.Mode
	botCfg.WebhookURL = cfg.Telegram.WebhookURL
	botCfg.WebhookSecret = cfg.Telegram.WebhookSecret
	botCfg.DropPendingUpdates = cfg.Telegram.DropPending
	botCfg.PollingTimeout = int(cfg.Telegram.PollingTimeout / time.Second)
	botCfg.MaxConcurrentUpdates = cfg.Telegram.MaxConcurrentUpdates
	botCfg.GracefulShutdownTimeout = cfg.App.ShutdownTimeout
	botCfg.LeaderboardLimit = cfg.Telegram.LeaderboardLimit
	botCfg.Logger = log

	botDeps := telegram.BotDependencies{
		API:          client,
		SubmitResult: submitResult,
		ManualUpdate: manualUpdate,
		ClearData:    clearData,
		Stats:        statsQuery,
		Leaderboard:  leaderboardQuery,
		Features:     cfg.Features,
		Admins:       admins,
		RateLimiter:  rateLimiter,
		Recovery:     recovery,
		Metrics:      metrics,
	}
	if cfg.Features.IsEnabled(config.FeatureAdminCommands) {
		botDeps.Admin = admin
	}
	if storage.Dedup != nil {
		botDeps.Dedup = storage.Dedup
	}

	bot, err := telegram.NewBot(botCfg, botDeps)
	if err != nil {
		return fmt.Errorf("failed to create bot: %w", err)
	}

	// ─────────────────────────────────────────────────────────────────────────
	// 9. HTTP SERVER
	// ─────────────────────────────────────────────────────────────────────────
	var httpServer *httpserver.Server
	if cfg.HTTP.Port > 0 {
		health := handlers.NewHealthChecker(cfg.App.Version)
		for name, p := range storage.Checks {
			health.AddCheck(name, handlers.PingCheck(p))
		}
		health.AddCheck("bot", func(context.Context) error {
			if !bot.IsRunning() {
				return errors.New("bot is not running")
			}
			return nil
		})

		httpCfg := httpserver.DefaultConfig()
		httpCfg.Host = cfg.HTTP.Host
		httpCfg.Port = cfg.HTTP.Port
		httpCfg.ReadTimeout = cfg.HTTP.ReadTimeout
		httpCfg.WriteTimeout = cfg.HTTP.WriteTimeout
		httpCfg.EnableMetrics = cfg.HTTP.EnableMetrics
		httpCfg.EnableAPI = cfg.Features.IsEnabled(config.FeatureHTTPAPI)
		httpCfg.APIKeys = cfg.HTTP.APIKeys
		httpCfg.WebhookSecret = cfg.Telegram.WebhookSecret
		httpCfg.Version = cfg.App.Version

		httpDeps := httpserver.Dependencies{
			Health:   health,
			StatsAPI: handlers.NewStatsAPI(statsQuery, leaderboardQuery),
			Gatherer: registry,
			Logger:   log,
		}
		if cfg.Telegram.Mode == telegram.ModeWebhook {
			httpDeps.Webhook = bot
		}
		httpServer = httpserver.NewServer(httpCfg, httpDeps)
	}

	// ─────────────────────────────────────────────────────────────────────────
	// 10. ПЛАНИРОВЩИК
	// ─────────────────────────────────────────────────────────────────────────
	schedCfg := scheduler.DefaultConfig()
	schedCfg.Logger = log
	sched := scheduler.New(schedCfg)

	backends := make(map[string]jobs.Pinger, len(storage.Checks))
	for name, p := range storage.Checks {
		backends[name] = p
	}
	gauges := jobs.NewStoreGaugesJob(registry, metricsNamespace, storage.Editions, backends)
	if err := sched.Register(gauges, gaugesInterval); err != nil {
		return fmt.Errorf("failed to register job: %w", err)
	}
	if storage.Badger != nil {
		if err := sched.Register(jobs.NewBadgerGCJob(storage.Badger, 0.5, log), badgerGCInterval); err != nil {
			return fmt.Errorf("failed to register job: %w", err)
		}
	}

	// ─────────────────────────────────────────────────────────────────────────
	// 11. ЗАПУСК
	// ─────────────────────────────────────────────────────────────────────────
	if err := sched.Start(ctx); err != nil {
		return fmt.Errorf("failed to start scheduler: %w", err)
	}
	// Первое значение гейджей не ждёт интервала.
	if _, err := sched.RunNow(ctx, gauges.Name()); err != nil {
		log.Warn("initial gauges run failed", logger.Err(err))
	}

	errCh := make(chan error, 2)

	if httpServer != nil {
		go func() {
			log.Info("starting HTTP server", slog.String("address", httpServer.Address()))
			if err := httpServer.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				errCh <- fmt.Errorf("http server error: %w", err)
			}
		}()
	}

	go func() {
		if err := bot.Start(ctx); err != nil && !errors.Is(err, context.Canceled) {
			errCh <- fmt.Errorf("telegram bot error: %w", err)
		}
	}()

	// ─────────────────────────────────────────────────────────────────────────
	// 12. GRACEFUL SHUTDOWN
	// ─────────────────────────────────────────────────────────────────────────
	var runErr error
	select {
	case <-ctx.Done():
		log.Info("received shutdown signal")
	case runErr = <-errCh:
		log.Error("service error", logger.Err(runErr))
	}

	log.Info("starting graceful shutdown...", slog.Duration("timeout", cfg.App.ShutdownTimeout))
	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.App.ShutdownTimeout)
	defer cancel()

	// Сначала бот: перестаём брать новые обновления и дожидаемся текущих.
	if err := bot.Stop(shutdownCtx); err != nil {
		log.Error("failed to stop bot gracefully", logger.Err(err))
	}
	if httpServer != nil {
		if err := httpServer.Shutdown(shutdownCtx); err != nil {
			log.Error("failed to stop HTTP server gracefully", logger.Err(err))
		}
	}
	if err := sched.Stop(); err != nil {
		log.Error("failed to stop scheduler", logger.Err(err))
	}

	stats := bot.Stats()
	log.Info("shutdown completed",
		slog.Int64("updates_handled", stats.UpdatesHandled),
		slog.Int64("errors", stats.Errors),
	)
	return runErr
}

// ══════════════════════════════════════════════════════════════════════════════
// HELPERS
// ══════════════════════════════════════════════════════════════════════════════

// setupLogger настраивает структурированное логирование.
func setupLogger(cfg *config.Config) *slog.Logger {
	opts := logger.DefaultOptions()
	opts.Level = logger.ParseLevel(cfg.Observability.LogLevel)
	opts.Format = logger.Format(cfg.Observability.LogFormat)
	opts.Service = cfg.App.Name
	opts.AddSource = cfg.IsDevelopment()

	log := logger.New(opts)
	slog.SetDefault(log)
	return log
}
