package main

import (
	"context"
	"fmt"
	"math"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	slacklib "github.com/slack-go/slack"

	"github.com/hushh/voicegate/internal/api/ws"
	"github.com/hushh/voicegate/internal/cachesync"
	"github.com/hushh/voicegate/internal/config"
	"github.com/hushh/voicegate/internal/gateway"
	"github.com/hushh/voicegate/internal/llm"
	"github.com/hushh/voicegate/internal/notify"
	"github.com/hushh/voicegate/internal/orchestrate"
	"github.com/hushh/voicegate/internal/provider/google"
	"github.com/hushh/voicegate/internal/server"
	"github.com/hushh/voicegate/internal/store/postgres"
	redisstore "github.com/hushh/voicegate/internal/store/redis"
	"github.com/hushh/voicegate/internal/tool"
	"github.com/hushh/voicegate/internal/turn"
)

func main() {
	if err := run(); err != nil {
		log.Fatal().Err(err).Msg("startup failed")
	}
}

func run() error {
	// Initialize structured logging from environment.
	logLevel := os.Getenv("VOICEGATE_LOG_LEVEL")
	level, parseErr := zerolog.ParseLevel(logLevel)
	if parseErr != nil {
		level = zerolog.InfoLevel
	}
	zerolog.SetGlobalLevel(level)

	logFormat := os.Getenv("VOICEGATE_LOG_FORMAT")
	if logFormat == "text" {
		log.Logger = zerolog.New(zerolog.ConsoleWriter{Out: os.Stdout}).With().Timestamp().Logger()
	} else {
		log.Logger = zerolog.New(os.Stdout).With().Timestamp().Logger()
	}

	ctx := context.Background()

	// Load configuration from environment.
	cfg, err := config.Load()
	if err != nil {
		return err
	}

	if cfg.Database.MaxConns < 0 || cfg.Database.MaxConns > math.MaxInt32 {
		return fmt.Errorf("database max_conns %d out of int32 range", cfg.Database.MaxConns)
	}

	// Connect to PostgreSQL.
	store, err := postgres.New(ctx, cfg.Database.DSN(), int32(cfg.Database.MaxConns)) //nolint:gosec // bounds checked above
	if err != nil {
		return err
	}
	defer store.Close()

	// Connect to Redis.
	pubsub, err := redisstore.New(ctx, cfg.Redis.Addr, cfg.Redis.Password, cfg.Redis.DB)
	if err != nil {
		return err
	}
	defer func() { _ = pubsub.Close() }()

	// Google provider client. Base URL overrides are for proxies and tests.
	var googleOpts []google.Option
	if cfg.Google.MailBaseURL != "" {
		googleOpts = append(googleOpts, google.WithMailBaseURL(cfg.Google.MailBaseURL))
	}
	if cfg.Google.CalendarBaseURL != "" {
		googleOpts = append(googleOpts, google.WithCalendarBaseURL(cfg.Google.CalendarBaseURL))
	}
	googleClient := google.NewClient(googleOpts...)

	// Inference backend.
	var modelOpts []llm.OpenAIOption
	if cfg.Model.Endpoint != "" {
		modelOpts = append(modelOpts, llm.WithEndpoint(cfg.Model.Endpoint))
	}
	model := llm.NewOpenAIClient(cfg.Model.APIKey, cfg.Model.Model, modelOpts...)

	// Provider cache synchronizer.
	sync := cachesync.New(store.Cache(), googleClient, pubsub, cachesync.Options{
		MailTTL:       cfg.Cache.MailTTL,
		CalendarTTL:   cfg.Cache.CalendarTTL,
		RefreshMargin: cfg.Cache.RefreshMargin,
		MailMax:       cfg.Cache.MailMax,
		CalendarMax:   cfg.Cache.CalendarMax,
		WindowBack:    cfg.Cache.WindowBack,
		WindowForward: cfg.Cache.WindowForward,
	}, log.Logger)

	// Tool registry.
	registry := tool.NewRegistry(log.Logger)
	if err := tool.RegisterMail(registry, sync, googleClient, model); err != nil {
		return err
	}
	if err := tool.RegisterCalendar(registry, sync, googleClient); err != nil {
		return err
	}
	if err := tool.RegisterProfile(registry, store.Profiles()); err != nil {
		return err
	}

	// Confirmation pings. Slack is optional; without it the gate still works,
	// pending requests just are not announced anywhere.
	var notifier orchestrate.Notifier
	if cfg.Slack.BotToken != "" && cfg.Slack.ChannelID != "" {
		senders := notify.NewRegistry()
		senders.Register(notify.NewSlackSender(slacklib.New(cfg.Slack.BotToken), cfg.Slack.ChannelID))
		notifier = notify.New(senders, log.Logger)
		log.Info().Str("channel_id", cfg.Slack.ChannelID).Msg("Slack confirmation pings enabled")
	}

	// Orchestration core.
	gate := orchestrate.NewGate(store.Confirmations(), notifier, log.Logger)
	executor := orchestrate.NewExecutor(registry, store.ToolRuns(), gate, model, cfg.Orchestra.MaxToolSteps, log.Logger)
	coordinator := turn.NewCoordinator(store.Turns(), log.Logger)
	planner := orchestrate.NewKeywordPlanner()

	// Session gateway and websocket hub.
	gw := gateway.New(gateway.NewRegistry(), coordinator, planner, executor, gate, model, pubsub, log.Logger)
	hub := ws.NewHub(gw, pubsub)

	// Graceful shutdown on SIGINT / SIGTERM.
	ctx, cancel := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer cancel()

	// Create HTTP server with all routes wired.
	srv := server.New(cfg, store, gate, registry, hub)

	// Start server in background goroutine.
	go func() {
		log.Info().Str("addr", cfg.Server.Addr).Msg("starting server")
		if startErr := srv.Start(ctx); startErr != nil {
			log.Error().Err(startErr).Msg("server error")
		}
	}()

	// Block until shutdown signal.
	<-ctx.Done()
	log.Info().Msg("shutting down")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	if shutdownErr := srv.Shutdown(shutdownCtx); shutdownErr != nil {
		return shutdownErr
	}

	log.Info().Msg("stopped")
	return nil
}
