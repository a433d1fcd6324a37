package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/bwmarrin/discordgo"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/crossroadbot/crossroad/internal/config"
	"github.com/crossroadbot/crossroad/internal/observability"
	"github.com/crossroadbot/crossroad/pkg/cooldown"
	"github.com/crossroadbot/crossroad/pkg/dispatch"
)

// runBot connects to the gateway and dispatches events until interrupted.
func runBot(ctx context.Context, cfg *config.Config) error {
	logger := slog.Default()

	tracer, shutdownTracer, err := observability.NewTracer(ctx, observability.TraceConfig{
		ServiceName:    "crossroad",
		ServiceVersion: version,
		Endpoint:       cfg.Observability.OTLPEndpoint,
		SamplingRate:   cfg.Observability.SamplingRate,
		EnableInsecure: cfg.Observability.Insecure,
	})
	if err != nil {
		return fmt.Errorf("set up tracing: %w", err)
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := shutdownTracer(shutdownCtx); err != nil {
			logger.Warn("tracer shutdown failed", "error", err)
		}
	}()

	tracker := cooldown.NewTracker()
	var store *cooldown.Store
	if cfg.Cooldowns.StorePath != "" {
		store, err = cooldown.OpenStore(cfg.Cooldowns.StorePath)
		if err != nil {
			return fmt.Errorf("open cooldown store: %w", err)
		}
		defer store.Close()
		if err := store.Load(ctx, tracker); err != nil {
			logger.Warn("restoring cooldown stamps failed", "error", err)
		} else {
			logger.Info("restored cooldown stamps", "count", tracker.Len())
		}
	}

	janitor, err := cooldown.NewJanitor(tracker, cfg.Cooldowns.EvictionSchedule, cfg.Cooldowns.EvictOlderThan, logger)
	if err != nil {
		return fmt.Errorf("set up cooldown janitor: %w", err)
	}
	janitor.Start()
	defer janitor.Stop()

	dispatcher, err := buildDispatcher(cfg, dispatch.Options[*app]{
		Data:      newApp(),
		Owners:    cfg.Discord.Owners,
		Prefixes:  cfg.Discord.Prefixes,
		Cooldowns: tracker,
		Logger:    logger,
		Metrics:   observability.NewMetrics(),
		Tracer:    tracer,
		OnError:   replyWithError,
	})
	if err != nil {
		return err
	}

	session, err := discordgo.New("Bot " + cfg.Discord.Token)
	if err != nil {
		return fmt.Errorf("create session: %w", err)
	}
	session.Identify.Intents = discordgo.IntentsGuilds |
		discordgo.IntentsGuildMessages |
		discordgo.IntentsDirectMessages |
		discordgo.IntentMessageContent

	dispatcher.Bind(session)

	if err := session.Open(); err != nil {
		return fmt.Errorf("open gateway connection: %w", err)
	}
	defer session.Close()
	logger.Info("connected to gateway", "prefixes", cfg.Discord.Prefixes)

	var metricsSrv *http.Server
	if addr := cfg.Observability.MetricsAddr; addr != "" {
		mux := http.NewServeMux()
		mux.Handle("/metrics", promhttp.Handler())
		metricsSrv = &http.Server{Addr: addr, Handler: mux}
		go func() {
			logger.Info("metrics endpoint listening", "addr", addr)
			if err := metricsSrv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
				logger.Error("metrics server failed", "error", err)
			}
		}()
	}

	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()
	<-ctx.Done()
	logger.Info("shutting down")

	if metricsSrv != nil {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := metricsSrv.Shutdown(shutdownCtx); err != nil {
			logger.Warn("metrics server shutdown failed", "error", err)
		}
	}
	if store != nil {
		saveCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := store.Save(saveCtx, tracker); err != nil {
			logger.Warn("persisting cooldown stamps failed", "error", err)
		}
	}
	return nil
}

// runSync registers the command tree with Discord and exits.
func runSync(ctx context.Context, cfg *config.Config) error {
	dispatcher, err := buildDispatcher(cfg, dispatch.Options[*app]{
		Data:   newApp(),
		Logger: slog.Default(),
	})
	if err != nil {
		return err
	}
	session, err := discordgo.New("Bot " + cfg.Discord.Token)
	if err != nil {
		return fmt.Errorf("create session: %w", err)
	}
	if err := dispatcher.Sync(session, cfg.Discord.AppID, cfg.Discord.GuildID); err != nil {
		return fmt.Errorf("sync application commands: %w", err)
	}
	slog.Info("application commands synced", "guild_id", cfg.Discord.GuildID)
	return nil
}

func buildDispatcher(cfg *config.Config, opts dispatch.Options[*app]) (*dispatch.Dispatcher[*app], error) {
	registry := dispatch.NewRegistry[*app](opts.Logger)
	if err := registerCommands(registry); err != nil {
		return nil, fmt.Errorf("register commands: %w", err)
	}
	return dispatch.New(registry, opts), nil
}

// replyWithError turns a dispatch failure into a user-visible response.
// Rejections explain themselves; faults get a generic apology so internals
// never leak into chat.
func replyWithError(ctx *dispatch.Context[*app], err error) {
	var content string
	switch dispatch.CodeOf(err) {
	case dispatch.CodeCooldown:
		if remaining, ok := dispatch.AsCooldown(err); ok {
			content = fmt.Sprintf("Slow down! Try again in %s.", remaining.Round(time.Second))
		}
	case dispatch.CodeCheckRejected:
		var de *dispatch.Error
		if errors.As(err, &de) {
			content = de.Message
		}
	case dispatch.CodeUnknownCommand:
		// Stale client-side command list; nothing useful to say.
		return
	default:
		content = "Something went wrong running that command."
	}
	if content == "" {
		return
	}
	if sendErr := ctx.Say(content); sendErr != nil {
		ctx.Logger().Warn("sending error reply failed", "error", sendErr)
	}
}
