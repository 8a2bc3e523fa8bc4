package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"sync"
	"time"

	"ArticleDesk/internal/api"
	"ArticleDesk/internal/config"
	"ArticleDesk/internal/connector"
	"ArticleDesk/internal/infrastructure/gsheets"
	"ArticleDesk/internal/infrastructure/imapsource"
	"ArticleDesk/internal/infrastructure/llm"
	"ArticleDesk/internal/infrastructure/scheduler"
	"ArticleDesk/internal/infrastructure/scraper"
	"ArticleDesk/internal/infrastructure/storage"
	"ArticleDesk/internal/infrastructure/telegram"
	"ArticleDesk/internal/logging"
	"ArticleDesk/internal/metrics"
	"ArticleDesk/internal/ports"
	"ArticleDesk/internal/store"
	"ArticleDesk/internal/usecase"
)

// Application wires configs to use cases and lifecycle orchestration.
type Application struct {
	cfg       config.Config
	logger    *slog.Logger
	store     *store.Store
	pipeline  *usecase.Pipeline
	syncer    *usecase.Syncer
	scheduler *usecase.Scheduler
	server    *http.Server

	closersMu sync.Mutex
	closers   []func() error
}

// New builds the application. Remote integrations that cannot be set up
// are logged and left out; only local storage failures are fatal.
func New(ctx context.Context, cfg config.Config, baseLogger *slog.Logger) (*Application, error) {
	if baseLogger == nil {
		baseLogger = logging.New(cfg.Logging.Level, cfg.Logging.Format)
	}
	a := &Application{cfg: cfg, logger: baseLogger}

	m := metrics.New(cfg.Metrics.Enabled)

	st, err := store.Open(cfg.Storage.DataDir, store.Options{
		Logger:        baseLogger.With("component", "store"),
		Observer:      m,
		MirrorTimeout: cfg.Storage.MirrorTimeout,
	})
	if err != nil {
		return nil, fmt.Errorf("open store: %w", err)
	}
	a.store = st

	sheetsBackend, sheetID := a.sheetsBackend(ctx)
	var mirrorLink usecase.MirrorLink
	if dial := a.mirrorDialer(sheetsBackend, sheetID); dial != nil {
		link := store.NewMirrorLink(st, dial, cfg.Storage.MirrorRetry)
		if err := link.Ensure(ctx); err != nil {
			baseLogger.Warn("mirror not attached, continuing local-only until it is reachable",
				"component", "mirror", "mirror", cfg.Storage.Mirror, "error", err)
		}
		mirrorLink = link
	}

	var (
		analyzer ports.Analyzer
		answerer ports.Answerer
		grouper  ports.Grouper
		profiler ports.Profiler
	)
	if cfg.ChatGPT.APIKey != "" {
		client := llm.NewChatGPTClient(llm.Config{
			Endpoint:      cfg.ChatGPT.Endpoint,
			Model:         cfg.ChatGPT.Model,
			FallbackModel: cfg.ChatGPT.FallbackModel,
			APIKey:        cfg.ChatGPT.APIKey,
			SystemPrompt:  cfg.ChatGPT.SystemPrompt,
			Timeout:       cfg.ChatGPT.Timeout,
		})
		analyzer, answerer, grouper, profiler = client, client, client, client
	} else {
		baseLogger.Warn("no OpenAI API key configured, articles will be saved without analysis")
	}

	a.pipeline = usecase.NewPipeline(usecase.PipelineDeps{
		Store: st,
		Scraper: scraper.NewFetcher(scraper.Config{
			InsecureRetry: cfg.Scraper.InsecureRetry,
			MaxChars:      cfg.Scraper.MaxChars,
		}, baseLogger.With("component", "scraper")),
		Analyzer: analyzer,
		Answerer: answerer,
		Grouper:  grouper,
		Profiler: profiler,
		Metrics:  m,
		Logger:   baseLogger.With("component", "pipeline"),
	}, usecase.Config{
		MaxPerCycle:       cfg.Pipeline.MaxPerCycle,
		CycleDeadline:     cfg.Pipeline.CycleDeadline,
		ItemBudget:        cfg.Pipeline.ItemBudget,
		MaxTimeoutStrikes: cfg.Pipeline.MaxTimeoutStrikes,
		IgnorePatterns:    cfg.Pipeline.IgnorePatterns,
	})

	registry := connector.NewRegistry()
	registry.Register(imapsource.NewSource(imapsource.Config{
		Server:    cfg.Email.Server,
		Username:  cfg.Email.Username,
		Password:  cfg.Email.Password,
		Mailbox:   cfg.Email.Mailbox,
		ScanLimit: cfg.Email.ScanLimit,
	}, nil, baseLogger.With("component", "connector.email")))

	rows := gsheets.NewRowReader(sheetsBackend, sheetID, baseLogger.With("component", "connector.sheets"))
	registry.Register(rows)

	var notifier ports.Notifier
	if tg := cfg.Notifications.Telegram; tg.BotToken != "" && tg.ChatID != "" {
		notifier = telegram.NewNotifier(tg.BotToken, tg.ChatID)
	}

	a.syncer = usecase.NewSyncer(usecase.SyncerDeps{
		Pipeline: a.pipeline,
		Registry: registry,
		Notifier: notifier,
		Mirror:   mirrorLink,
		Logger:   baseLogger.With("component", "syncer"),
	}, cfg.Scheduler.Cooldown, map[string]usecase.ConnectorSettings{
		"email":  {AutoQualify: cfg.Email.AutoQualify},
		"sheets": {AutoQualify: cfg.Sheets.AutoQualify},
	})

	if cfg.Scheduler.Enabled {
		a.scheduler = usecase.NewScheduler(scheduler.NewIntervalScheduler(cfg.Scheduler.Interval), a.syncer)
	}

	router := api.NewRouter(api.Deps{
		Store:          st,
		Reviewer:       a.pipeline,
		Syncer:         a.syncer,
		Sheets:         rows,
		Metrics:        m.Handler(),
		Logger:         baseLogger.With("component", "api"),
		RequestTimeout: cfg.HTTP.RequestTimeout,
		SyncTimeout:    syncTimeout(cfg),
	})
	a.server = &http.Server{
		Addr:              cfg.HTTP.Addr,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	return a, nil
}

// syncTimeout leaves a forced sync room for a full cycle plus the
// acknowledgement and mirror writes that follow it.
func syncTimeout(cfg config.Config) time.Duration {
	if cfg.Pipeline.CycleDeadline <= 0 {
		return 0
	}
	return max(cfg.Pipeline.CycleDeadline+time.Minute, cfg.HTTP.RequestTimeout)
}

// sheetsBackend authenticates against Google Sheets when a spreadsheet is
// configured. It returns a nil Backend when Sheets is unavailable.
func (a *Application) sheetsBackend(ctx context.Context) (gsheets.Backend, string) {
	if a.cfg.Sheets.Sheet == "" {
		return nil, ""
	}
	log := a.logger.With("component", "sheets")

	sheetID, err := gsheets.ParseSheetRef(a.cfg.Sheets.Sheet)
	if err != nil {
		log.Warn("sheets disabled", "error", err)
		return nil, ""
	}
	creds, err := os.ReadFile(a.cfg.Sheets.CredentialsFile)
	if err != nil {
		log.Warn("sheets disabled, cannot read credentials", "path", a.cfg.Sheets.CredentialsFile, "error", err)
		return nil, sheetID
	}
	service, err := gsheets.NewService(ctx, creds)
	if err != nil {
		log.Warn("sheets disabled", "error", err)
		return nil, sheetID
	}
	return service, sheetID
}

// mirrorDialer returns how to reach the configured remote mirror, or nil
// when none is configured. The store attaches it through a MirrorLink,
// which retries while the remote is down.
func (a *Application) mirrorDialer(backend gsheets.Backend, sheetID string) store.MirrorDialer {
	switch a.cfg.Storage.Mirror {
	case config.MirrorSheets:
		if backend == nil {
			a.logger.Warn("sheets mirror requested but sheets is not configured", "component", "mirror")
			return nil
		}
		return func(context.Context) (ports.Mirror, error) {
			return gsheets.NewMirror(backend, sheetID), nil
		}
	case config.MirrorPostgres:
		var pg *storage.PostgresMirror
		return func(ctx context.Context) (ports.Mirror, error) {
			if pg == nil {
				db, err := storage.OpenPostgres(ctx, a.cfg.Database.DSN)
				if err != nil {
					return nil, err
				}
				a.addCloser(db.Close)
				pg = storage.NewPostgresMirror(db)
			}
			if err := pg.EnsureSchema(ctx); err != nil {
				return nil, err
			}
			return pg, nil
		}
	default:
		return nil
	}
}

func (a *Application) addCloser(fn func() error) {
	a.closersMu.Lock()
	defer a.closersMu.Unlock()
	a.closers = append(a.closers, fn)
}

// Run starts the scheduler and the HTTP API and blocks until ctx is done
// or the listener fails.
func (a *Application) Run(ctx context.Context) error {
	defer a.close()

	if a.scheduler != nil {
		if err := a.scheduler.Start(ctx); err != nil {
			return fmt.Errorf("start scheduler: %w", err)
		}
	}

	errCh := make(chan error, 1)
	go func() {
		a.logger.Info("http api listening", "addr", a.server.Addr)
		if err := a.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	var runErr error
	select {
	case <-ctx.Done():
		a.logger.Info("shutting down")
	case err, ok := <-errCh:
		if ok {
			runErr = fmt.Errorf("http api: %w", err)
		}
	}

	shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), a.cfg.HTTP.ShutdownTimeout)
	defer cancel()

	if err := a.server.Shutdown(shutdownCtx); err != nil {
		a.logger.Error("http shutdown", "error", err)
	}
	if a.scheduler != nil {
		if err := a.scheduler.Stop(shutdownCtx); err != nil {
			a.logger.Error("scheduler shutdown", "error", err)
		}
	}
	return runErr
}

func (a *Application) close() {
	a.closersMu.Lock()
	defer a.closersMu.Unlock()
	for _, fn := range a.closers {
		if err := fn(); err != nil {
			a.logger.Warn("close resource", "error", err)
		}
	}
}
