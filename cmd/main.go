package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"aidigest/internal/bot"
	"aidigest/internal/config"
	"aidigest/internal/database"
	"aidigest/internal/digest"
	"aidigest/internal/feed"
	"aidigest/internal/ingest"
	"aidigest/internal/metrics"
	"aidigest/internal/planner"
	"aidigest/internal/scheduler"
	"aidigest/internal/summarizer"
)

func main() {
	log := slog.New(slog.NewJSONHandler(os.Stdout, nil))
	slog.SetDefault(log)

	start := time.Now()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	cfg, err := config.LoadConfig()
	if err != nil {
		log.ErrorContext(ctx, "Failed to load config",
			"error", err)

		return
	}

	location, err := cfg.Location()
	if err != nil {
		log.ErrorContext(ctx, "Failed to load timezone",
			"error", err,
			"timezone", cfg.Timezone)

		return
	}

	db, err := database.New(ctx, cfg.DBPath, log)
	if err != nil {
		log.ErrorContext(ctx, "Failed to initialize db",
			"error", err,
			"dbPath", cfg.DBPath)

		return
	}
	defer func() {
		if err = db.Close(); err != nil {
			log.ErrorContext(ctx, "Failed to close db",
				"error", err,
				"dbPath", cfg.DBPath)
		}
	}()
	log.InfoContext(ctx, "DB is initialized",
		"dbPath", cfg.DBPath)

	sources, err := loadSources(ctx, cfg.SourcesFile, log)
	if err != nil {
		log.ErrorContext(ctx, "Failed to load sources",
			"error", err,
			"sourcesFile", cfg.SourcesFile)

		return
	}

	m := metrics.New()
	if cfg.MetricsAddr != "" {
		go func() {
			if serveErr := m.Serve(ctx, cfg.MetricsAddr, log); serveErr != nil {
				log.ErrorContext(ctx, "Metrics server failed",
					"error", serveErr,
					"addr", cfg.MetricsAddr)
			}
		}()
		log.InfoContext(ctx, "Metrics server is started",
			"addr", cfg.MetricsAddr)
	}

	s := initOpenAISummarizer(ctx, cfg, log)

	feedFetchers := feed.NewFetchers(sources, s, log)
	fetchers := make([]ingest.Fetcher, 0, len(feedFetchers))
	for _, f := range feedFetchers {
		fetchers = append(fetchers, f)
	}

	pipeline := ingest.New(fetchers, db.Items(), m, cfg.RefreshReuseWindow, location, log)

	botInst, err := bot.New(cfg.Token, db.Subscribers(), cfg.AllowedUsers, log)
	if err != nil {
		log.ErrorContext(ctx, "Failed to initialize bot",
			"error", err,
			"allowedUsersCount", len(cfg.AllowedUsers))

		return
	}
	log.InfoContext(ctx, "Bot is initialized",
		"allowedUsersCount", len(cfg.AllowedUsers))

	// Cycles outlive the signal so in-flight deliveries get the grace period.
	sched := scheduler.New(context.WithoutCancel(ctx), scheduler.Deps{
		Registry:  db.Subscribers(),
		Refresher: pipeline,
		Planner:   planner.New(db.Items(), db.Ledger(), cfg.BatchCap, location),
		Ledger:    db.Ledger(),
		Notifier:  botInst,
		Formatter: digest.NewFormatter(""),
		Observer:  m,
	}, scheduler.Config{
		TickInterval:  cfg.TickInterval,
		Workers:       cfg.Workers,
		CycleTimeout:  cfg.CycleTimeout,
		ShutdownGrace: cfg.ShutdownGrace,
	}, log)

	if err = sched.Start(); err != nil {
		log.ErrorContext(ctx, "Failed to start scheduler",
			"error", err,
			"spec", sched.TickSpec())

		return
	}
	log.InfoContext(ctx, "Scheduler is started",
		"spec", sched.TickSpec(),
		"workers", cfg.Workers,
		"sources", len(sources),
		"timezone", location.String())

	botDone := make(chan struct{})
	go func() {
		defer close(botDone)
		botInst.Start(ctx, sched)
	}()
	log.InfoContext(ctx, "Bot is started")

	c := make(chan os.Signal, 1)
	signal.Notify(c, os.Interrupt, syscall.SIGTERM)
	sig := <-c
	log.InfoContext(ctx, "Shutdown signal is received",
		"signal", sig.String())
	cancel()

	<-botDone

	sched.Stop()
	log.InfoContext(ctx, "Scheduler is stopped",
		"uptimeSeconds", time.Since(start).Seconds())

	log.InfoContext(ctx, "Exiting...",
		"signal", sig.String(),
		"uptimeSeconds", time.Since(start).Seconds())
}

func loadSources(ctx context.Context, path string, log *slog.Logger) ([]feed.Source, error) {
	if path == "" {
		sources := feed.DefaultSources()
		log.InfoContext(ctx, "Using built-in sources",
			"sources", len(sources))

		return sources, nil
	}

	return feed.LoadSources(path)
}

func initOpenAISummarizer(ctx context.Context, cfg config.Config, log *slog.Logger) summarizer.Summarizer {
	if cfg.OpenAIAPIKey == "" {
		log.WarnContext(ctx, "OPENAI_API_KEY is missing so fallback will be used",
			"envVar", "OPENAI_API_KEY")

		return nil
	}

	s, err := summarizer.NewOpenAISummarizer(cfg.OpenAIAPIKey, cfg.OpenAIModel)
	if err != nil {
		log.ErrorContext(ctx, "Failed to create OpenAI summarizer so fallback will be used",
			"error", err,
			"envVar", "OPENAI_API_KEY")

		return nil
	}

	log.InfoContext(ctx, "OpenAI summarizer is initialized",
		"provider", "openai")

	return s
}
