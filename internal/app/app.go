// Package app wires the application together and owns its lifecycle.
package app

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/reviewloop/reviewloop/internal/config"
	"github.com/reviewloop/reviewloop/internal/core"
	"github.com/reviewloop/reviewloop/internal/db"
	"github.com/reviewloop/reviewloop/internal/digest"
	"github.com/reviewloop/reviewloop/internal/genai"
	"github.com/reviewloop/reviewloop/internal/github"
	"github.com/reviewloop/reviewloop/internal/index"
	"github.com/reviewloop/reviewloop/internal/logger"
	"github.com/reviewloop/reviewloop/internal/mail"
	"github.com/reviewloop/reviewloop/internal/parser"
	"github.com/reviewloop/reviewloop/internal/review"
	"github.com/reviewloop/reviewloop/internal/runtime"
	"github.com/reviewloop/reviewloop/internal/server"
	"github.com/reviewloop/reviewloop/internal/server/handler"
	"github.com/reviewloop/reviewloop/internal/storage"
)

// Retry budgets per function. Indexing and review calls hit flaky
// external services; the cron fan-out only talks to the local queue.
const (
	reviewRetries   = 3
	indexRetries    = 2
	summaryRetries  = 3
	dispatchRetries = 1
)

// App is the assembled service.
type App struct {
	cfg    *config.Config
	logger *slog.Logger

	server    *server.Server
	rt        *runtime.Runtime
	scheduler *cron.Cron
	dbCleanup func()
}

// New loads configuration and wires every component. Nothing starts
// processing until Start is called.
func New(ctx context.Context) (*App, error) {
	cfg, err := config.LoadConfig()
	if err != nil {
		return nil, fmt.Errorf("loading config: %w", err)
	}

	log := logger.New(logger.Config{Level: cfg.LogLevel, Format: cfg.LogFormat}, os.Stdout)
	slog.SetDefault(log)

	database, dbCleanup, err := db.NewDatabase(cfg.Database)
	if err != nil {
		return nil, fmt.Errorf("initializing database: %w", err)
	}

	store := storage.NewStore(database.DB)
	ledger := storage.NewLedger(database.DB)
	vectors := storage.NewVectorStore(database.DB, log)

	models, err := genai.NewClient(ctx, cfg.GeminiAPIKey, cfg.GeneratorModel, cfg.EmbedderModel, log)
	if err != nil {
		dbCleanup()
		return nil, fmt.Errorf("initializing model client: %w", err)
	}
	prompts, err := genai.NewPromptManager()
	if err != nil {
		dbCleanup()
		return nil, fmt.Errorf("loading prompts: %w", err)
	}

	extractor := parser.NewClient(cfg.ParserServiceURL, nil, log)
	sender := mail.NewResendSender(cfg.ResendAPIKey, cfg.EmailFrom, log)

	pipeline := index.NewPipeline(extractor, models, vectors, cfg.UpsertBatchSize, log)
	retriever := index.NewRetriever(models, vectors, log)

	ghFactory := github.ClientFactory(func(ctx context.Context, token string) github.Client {
		return github.NewTokenClient(ctx, token, log)
	})
	reviewJob := review.NewJob(store, retriever, prompts, models, ghFactory, cfg.RetrievalTopK, log)

	summarizer := digest.NewGenerator(models, prompts, log)
	orchestrator := digest.NewOrchestrator(store, summarizer, sender, cfg.DigestDefaultCC, log)

	rt := runtime.New(ledger, cfg.MaxWorkers, log)
	dispatcher := digest.NewDispatcher(store, rt, cfg.DispatchBatchSize, cfg.DigestDefaultCC, log)

	for _, fn := range []runtime.Function{
		reviewJob.Function(reviewRetries, cfg.ReviewConcurrency),
		index.NewFunction(pipeline, indexRetries),
		orchestrator.Function(summaryRetries),
		dispatcher.Function(dispatchRetries),
	} {
		if err := rt.Register(fn); err != nil {
			dbCleanup()
			return nil, fmt.Errorf("registering function %s: %w", fn.Name, err)
		}
	}

	scheduler := cron.New()
	_, err = scheduler.AddFunc(cfg.WeeklyCronSpec, func() {
		tick := runtime.Event{
			// Deterministic per week, so a tick that fires twice (or a
			// manual replay) reuses the same invocation.
			ID:   "cron-" + core.WeekKeyOf(time.Now()).String(),
			Name: core.EventWeeklyCronTick,
		}
		if err := rt.Send(context.Background(), tick); err != nil {
			log.Error("failed to queue weekly cron tick", "error", err)
		}
	})
	if err != nil {
		dbCleanup()
		return nil, fmt.Errorf("scheduling weekly digest cron %q: %w", cfg.WeeklyCronSpec, err)
	}

	events := handler.NewEventHandler(rt, log)
	srv := server.New(cfg.ServerPort, server.NewRouter(events), log)

	return &App{
		cfg:       cfg,
		logger:    log,
		server:    srv,
		rt:        rt,
		scheduler: scheduler,
		dbCleanup: dbCleanup,
	}, nil
}

// Start launches the runtime workers and the cron scheduler, then blocks
// serving HTTP.
func (a *App) Start() error {
	a.rt.Start()
	a.scheduler.Start()
	a.logger.Info("application started",
		"port", a.cfg.ServerPort,
		"workers", a.cfg.MaxWorkers,
		"weekly_cron", a.cfg.WeeklyCronSpec,
	)
	return a.server.Start()
}

// Stop shuts everything down in dependency order: stop accepting HTTP
// traffic, stop the cron, drain the runtime, then close the database.
func (a *App) Stop(ctx context.Context) {
	if err := a.server.Stop(ctx); err != nil {
		a.logger.Error("http server shutdown failed", "error", err)
	}
	<-a.scheduler.Stop().Done()
	a.rt.Stop()
	a.dbCleanup()
	a.logger.Info("application stopped")
}
