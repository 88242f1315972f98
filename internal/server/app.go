// Package server wires configuration, logging, PostgreSQL, the journal
// services and both listeners (REST API and gRPC health) into one process.
package server

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/dmitrijs2005/journalkeeper/internal/logging"
	"github.com/dmitrijs2005/journalkeeper/internal/server/config"
	"github.com/dmitrijs2005/journalkeeper/internal/server/httpapi"
	"github.com/dmitrijs2005/journalkeeper/internal/server/repositories/repomanager"
	"github.com/dmitrijs2005/journalkeeper/internal/server/services"
	"golang.org/x/sync/errgroup"

	gs "github.com/dmitrijs2005/journalkeeper/internal/server/grpc"
	_ "github.com/jackc/pgx/v5/stdlib"
)

var (
	openDB = func(dsn string) (*sql.DB, error) {
		return sql.Open("pgx", dsn)
	}

	newRepositoryManager = repomanager.NewPostgresRepositoryManager
)

type App struct {
	config            *config.Config
	logger            logging.Logger
	syncLogger        func() error
	db                *sql.DB
	journalService    *services.JournalService
	assessmentService *services.AssessmentService
	exportService     *services.ExportService
}

// NewLogger builds the logger selected by c.LogBackend. The returned func
// flushes buffered entries and is safe to call once at exit.
func NewLogger(c *config.Config) (logging.Logger, func() error, error) {
	switch c.LogBackend {
	case config.LogBackendZap:
		z, err := logging.NewProductionZapLogger(c.Debug)
		if err != nil {
			return nil, nil, fmt.Errorf("zap logger: %w", err)
		}
		// Sync on a terminal stdout reports EINVAL; there is nothing to recover.
		return z, func() error { _ = z.Sync(); return nil }, nil
	default:
		level := slog.LevelInfo
		if c.Debug {
			level = slog.LevelDebug
		}
		return logging.NewJSONLogger(os.Stdout, level), func() error { return nil }, nil
	}
}

func NewApp(ctx context.Context, c *config.Config) (*App, error) {
	if err := c.Validate(); err != nil {
		return nil, fmt.Errorf("config: %w", err)
	}

	logger, syncLogger, err := NewLogger(c)
	if err != nil {
		return nil, err
	}

	db, err := openDB(c.DatabaseDSN)
	if err != nil {
		return nil, fmt.Errorf("db init error: %w", err)
	}

	pingCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	if err := db.PingContext(pingCtx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("db ping error: %w", err)
	}

	m := newRepositoryManager()
	if err := m.RunMigrations(ctx, db); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("migrations error: %w", err)
	}

	return &App{
		config:            c,
		logger:            logger,
		syncLogger:        syncLogger,
		db:                db,
		journalService:    services.NewJournalService(db, m),
		assessmentService: services.NewAssessmentService(db, m),
		exportService:     services.NewExportService(db, m, c),
	}, nil
}

// Run serves the REST API and the health service until ctx is cancelled, a
// termination signal arrives or either listener fails.
func (app *App) Run(ctx context.Context) error {
	ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM, syscall.SIGQUIT)
	defer stop()

	app.logger.Info(ctx, "Starting app...")

	router := httpapi.NewRouter(app.logger, app.config.SecretKey, app.journalService, app.assessmentService, app.exportService)
	httpServer := httpapi.NewServer(app.config.HTTPAddr, app.logger, router)

	healthServer := gs.NewHealthServer(app.config.HealthAddr, app.logger)
	healthServer.SetServing(true)

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error { return httpServer.Run(ctx) })
	g.Go(func() error { return healthServer.Run(ctx) })

	if err := g.Wait(); err != nil {
		app.logger.Error(ctx, "server stopped", "err", err)
		return err
	}

	app.logger.Info(ctx, "Stopped")
	return nil
}

// Close releases the database pool and flushes the logger.
func (app *App) Close() error {
	return errors.Join(app.db.Close(), app.syncLogger())
}
