package cmd

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/joho/godotenv"
	"golang.org/x/sync/errgroup"

	"github.com/nextlevelbuilder/dealbot/internal/admission"
	"github.com/nextlevelbuilder/dealbot/internal/bus"
	"github.com/nextlevelbuilder/dealbot/internal/channels"
	"github.com/nextlevelbuilder/dealbot/internal/channels/whop"
	"github.com/nextlevelbuilder/dealbot/internal/config"
	"github.com/nextlevelbuilder/dealbot/internal/dispatch"
	"github.com/nextlevelbuilder/dealbot/internal/offers"
	"github.com/nextlevelbuilder/dealbot/internal/pipeline"
	"github.com/nextlevelbuilder/dealbot/internal/providers"
	"github.com/nextlevelbuilder/dealbot/internal/sessions"
)

// eventBuffer sits between the listener and the admission loop.
const eventBuffer = 256

func setupLogging() {
	logLevel := slog.LevelInfo
	if verbose {
		logLevel = slog.LevelDebug
	}
	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{
		Level: logLevel,
	})))
}

// loadConfig reads .env (if present), the config file and the environment.
func loadConfig() (*config.Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		slog.Warn("failed to load .env", "error", err)
	}
	return config.Load(resolveConfigPath())
}

// loadKnowledge reads the prompt file and offer catalog. Missing files are
// logged and treated as empty.
func loadKnowledge(cfg *config.Config) (string, *offers.Catalog) {
	var prompt string
	if path := config.ExpandHome(cfg.Knowledge.PromptFile); path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			slog.Warn("could not load prompt file", "path", path, "error", err)
		} else {
			prompt = strings.TrimSpace(string(data))
			slog.Info("loaded prompt", "path", path)
		}
	}

	catalog := &offers.Catalog{}
	if path := config.ExpandHome(cfg.Knowledge.OffersFile); path != "" {
		c, err := offers.LoadCatalog(path)
		if err != nil {
			slog.Warn("could not load offers", "path", path, "error", err)
		} else {
			catalog = c
			slog.Info("parsed offers from knowledge base", "path", path, "count", c.Len())
		}
	}
	return prompt, catalog
}

func newController(cfg *config.Config) *admission.Controller {
	w := cfg.Limits.Windows()
	return admission.NewController(admission.Options{
		AgentUserID:     cfg.Whop.AgentUserID,
		AgentName:       cfg.Bot.AgentName,
		AdminUserID:     cfg.Bot.AdminUserID,
		GlobalMax:       cfg.Limits.GlobalMax,
		GlobalWindow:    w.Global,
		UserMax:         cfg.Limits.UserMax,
		UserWindow:      w.User,
		FloodMax:        cfg.Limits.FloodMax,
		FloodWindow:     w.Flood,
		Cooldown:        w.Cooldown,
		FollowupGrace:   w.FollowupGrace,
		SpamWindow:      w.Spam,
		SpamThreshold:   cfg.Limits.SpamThreshold,
		SpamPenalty:     w.SpamPenalty,
		DedupeCapacity:  cfg.Limits.DedupeCapacity,
		BotPostCapacity: bus.DefaultDedupeCapacity,
	})
}

// runSource runs src until ctx ends.
func runSource(ctx context.Context, src channels.Source, events chan<- bus.InboundEvent) error {
	slog.Info("source starting", "channel", src.Name())
	err := src.Run(ctx, events)
	slog.Info("source stopped", "channel", src.Name(), "connected", src.IsRunning())
	return err
}

func runBot() {
	setupLogging()

	cfg, err := loadConfig()
	if err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}
	if err := cfg.Validate(); err != nil {
		slog.Error("invalid configuration", "error", err)
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	shutdownTracing, err := setupTracing(ctx, cfg.Telemetry)
	if err != nil {
		slog.Warn("tracing disabled", "error", err)
	} else {
		defer func() {
			if err := shutdownTracing(context.Background()); err != nil {
				slog.Warn("tracing shutdown", "error", err)
			}
		}()
	}

	prompt, catalog := loadKnowledge(cfg)

	model := providers.NewOpenAIProvider(providers.OpenAIOptions{
		APIKey:      cfg.OpenAI.APIKey,
		APIBase:     cfg.OpenAI.APIBase,
		Model:       cfg.OpenAI.Model,
		MaxTokens:   cfg.OpenAI.MaxTokens,
		Temperature: cfg.OpenAI.Temperature,
		Timeout:     cfg.OpenAI.TimeoutDuration(),
	})

	var sender channels.Sender
	if dryRun {
		slog.Info("dry run: replies are logged, not posted")
		sender = channels.NewDryRunSender()
	} else {
		sender = whop.NewClient(whop.ClientOptions{
			Endpoint:          cfg.Whop.GraphQLEndpoint,
			APIKey:            cfg.Whop.APIKey,
			AgentUserID:       cfg.Whop.AgentUserID,
			RequestsPerSecond: cfg.Whop.RequestsPerSecond,
		})
	}

	ctrl := newController(cfg)
	p := pipeline.New(pipeline.Options{
		Controller:    ctrl,
		Sessions:      sessions.NewManager(sessions.BuildSystemPrompt(prompt, catalog.Text), cfg.Conversation.MaxTurns, cfg.Conversation.TimeoutDuration()),
		Model:         model,
		Dispatcher:    dispatch.New(sender, ctrl),
		Catalog:       catalog,
		EnrichReplies: cfg.Offers.EnrichReplies,
		MinOfferScore: cfg.Offers.MinScore,
		ModelTimeout:  cfg.OpenAI.TimeoutDuration(),
	})

	listener := whop.NewListener(whop.ListenerOptions{
		Endpoint:       cfg.Whop.WSEndpoint,
		APIKey:         cfg.Whop.APIKey,
		AgentUserID:    cfg.Whop.AgentUserID,
		Feeds:          cfg.Whop.Feeds,
		ReconnectDelay: cfg.Whop.ReconnectDelayDuration(),
	})

	slog.Info("dealbot starting",
		"version", Version,
		"model", model.Model(),
		"offers", catalog.Len(),
		"company_id", cfg.Whop.CompanyID,
		"target_feed_id", cfg.Whop.TargetFeedID,
		"feed_allow_list", len(cfg.Whop.Feeds),
		"dry_run", dryRun,
	)
	if !listener.HasAllowList() {
		slog.Info("no feed allow-list configured, answering every feed")
	}

	events := make(chan bus.InboundEvent, eventBuffer)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		defer close(events)
		return runSource(gctx, listener, events)
	})
	g.Go(func() error {
		return p.Run(gctx, events)
	})

	if err := g.Wait(); err != nil {
		slog.Error("dealbot stopped", "error", err)
		os.Exit(1)
	}

	stats := ctrl.Stats()
	slog.Info("dealbot stopped", "accepted", stats.Accepted, "rejected", stats.Rejected(), "commands", stats.Commands)
}
