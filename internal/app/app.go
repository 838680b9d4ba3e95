package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"newsdash/internal/config"
	"newsdash/internal/infrastructure/llm"
	"newsdash/internal/infrastructure/push"
	"newsdash/internal/infrastructure/scheduler"
	"newsdash/internal/infrastructure/scrape"
	"newsdash/internal/infrastructure/storage"
	"newsdash/internal/logging"
	"newsdash/internal/ports"
	"newsdash/internal/scraper"
	"newsdash/internal/usecase"
	"newsdash/internal/web"
)

const shutdownTimeout = 10 * time.Second

// Application wires configs to use cases and lifecycle orchestration.
type Application struct {
	cfg       config.Config
	logger    *slog.Logger
	store     *storage.SQLiteStore
	scheduler *usecase.Scheduler
	server    *http.Server
}

// New builds a runnable application instance. The store is opened and
// migrated here so a broken database path fails at startup, not mid-pass.
func New(ctx context.Context, cfg config.Config, baseLogger *slog.Logger) (*Application, error) {
	if baseLogger == nil {
		baseLogger = logging.New(cfg.Logging.Level)
	}

	store, err := storage.Open(cfg.Database.Path)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	if err := store.Migrate(ctx); err != nil {
		store.Close()
		return nil, fmt.Errorf("migrate database: %w", err)
	}

	if err := web.SeedUser(ctx, store, cfg.Auth.AdminUsername, cfg.Auth.AdminPassword); err != nil {
		store.Close()
		return nil, fmt.Errorf("seed admin user: %w", err)
	}

	registry := scraper.NewRegistry()
	registry.Register(scrape.NewMKScraper(nil))
	registry.Register(scrape.NewIrobotScraper(nil))
	registry.Register(scrape.NewRobotReportScraper(nil))
	registry.Register(scrape.NewAICompaniesScraper(nil, baseLogger.With("component", "scraper.aicompanies")))
	registry.Register(scrape.NewAmazonChartsScraper(nil))
	registry.Register(scrape.NewYes24Scraper(nil))

	ingestor := usecase.NewIngestor(usecase.IngestorDeps{
		Registry:    registry,
		Store:       store,
		MaxArticles: cfg.Ingest.MaxArticles,
		Logger:      baseLogger.With("component", "ingestor"),
	})

	var notifier ports.Notifier
	pushNotifier := push.NewNotifier(store, cfg.Push.Subscriber,
		cfg.Push.PublicKey, cfg.Push.PrivateKey,
		baseLogger.With("component", "push"))
	if pushNotifier.Enabled() {
		notifier = pushNotifier
	} else {
		baseLogger.Info("push notifications disabled, no vapid keys configured")
	}

	cronDriver := scheduler.NewCronScheduler(cfg.Scheduler.CronExpression, cfg.Scheduler.Location())
	sched := usecase.NewScheduler(cronDriver, ingestor, notifier, baseLogger.With("component", "scheduler"))

	var chat ports.ChatClient
	if cfg.LLM.APIKey != "" {
		chat = llm.NewAnthropicClient(cfg.LLM)
	} else {
		baseLogger.Info("recommendation generation disabled, no api key configured")
	}
	recommender := usecase.NewRecommender(usecase.RecommenderDeps{
		Books:  store,
		Chat:   chat,
		Logger: baseLogger.With("component", "recommender"),
	})

	sessions := web.NewSessionManager(cfg.Auth.SecretKey, cfg.Auth.SessionTTL)
	srv := web.New(web.Deps{
		Articles:      store,
		Books:         store,
		Users:         store,
		Subscriptions: store,
		Ingestor:      ingestor,
		Recommender:   recommender,
		Sessions:      sessions,
		PushPublicKey: cfg.Push.PublicKey,
		Logger:        baseLogger.With("component", "web"),
	})

	return &Application{
		cfg:       cfg,
		logger:    baseLogger,
		store:     store,
		scheduler: sched,
		server: &http.Server{
			Addr:              cfg.HTTP.Addr,
			Handler:           srv,
			ReadHeaderTimeout: 5 * time.Second,
		},
	}, nil
}

// Run starts the scheduler and the HTTP listener, then blocks until ctx is
// cancelled and the server has drained.
func (a *Application) Run(ctx context.Context) error {
	if err := a.scheduler.Start(ctx); err != nil {
		return fmt.Errorf("start scheduler: %w", err)
	}

	errCh := make(chan error, 1)
	go func() {
		a.logger.Info("http server listening", "addr", a.cfg.HTTP.Addr)
		if err := a.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
			return
		}
		errCh <- nil
	}()

	select {
	case err := <-errCh:
		a.shutdown(context.Background())
		return err
	case <-ctx.Done():
	}

	a.logger.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	var errs []error
	if err := a.server.Shutdown(shutdownCtx); err != nil {
		errs = append(errs, fmt.Errorf("http shutdown: %w", err))
	}
	if err := a.shutdown(shutdownCtx); err != nil {
		errs = append(errs, err)
	}
	if err := <-errCh; err != nil {
		errs = append(errs, err)
	}

	return errors.Join(errs...)
}

func (a *Application) shutdown(ctx context.Context) error {
	var errs []error
	if err := a.scheduler.Stop(ctx); err != nil {
		errs = append(errs, fmt.Errorf("stop scheduler: %w", err))
	}
	if err := a.store.Close(); err != nil {
		errs = append(errs, fmt.Errorf("close store: %w", err))
	}
	return errors.Join(errs...)
}
