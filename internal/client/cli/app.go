package cli

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"sync"
	"time"

	"github.com/dmitrijs2005/journalkeeper/internal/client/client"
	"github.com/dmitrijs2005/journalkeeper/internal/client/config"
	"github.com/dmitrijs2005/journalkeeper/internal/client/notify"
	"github.com/dmitrijs2005/journalkeeper/internal/client/repositories/entries"
	"github.com/dmitrijs2005/journalkeeper/internal/client/repositories/kv"
	"github.com/dmitrijs2005/journalkeeper/internal/client/scope"
	"github.com/dmitrijs2005/journalkeeper/internal/client/services"
	"github.com/dmitrijs2005/journalkeeper/internal/filex"
	"github.com/dmitrijs2005/journalkeeper/internal/logging"
)

type Mode string

const (
	ModeOffline Mode = "offline"
	ModeOnline  Mode = "online"
)

type App struct {
	config *config.Config
	log    logging.Logger
	out    io.Writer
	reader *bufio.Reader

	client  client.Client
	store   kv.Repository
	diskv   *kv.DiskvRepository
	closers []io.Closer

	journal     services.JournalService
	assessments services.AssessmentService
	session     services.SessionService

	mu   sync.Mutex
	mode Mode
}

// NewApp opens the configured local cache and server client and restores the
// last session.
func NewApp(ctx context.Context, c *config.Config, log logging.Logger) (*App, error) {
	dir, err := filex.EnsureDir(c.DataDir)
	if err != nil {
		return nil, fmt.Errorf("create data dir: %w", err)
	}
	c.DataDir = dir

	var (
		store   kv.Repository
		dv      *kv.DiskvRepository
		closers []io.Closer
	)
	switch c.Storage {
	case config.StorageDiskv:
		r, err := kv.NewDiskvRepository(c.DiskvPath())
		if err != nil {
			return nil, err
		}
		store, dv = r, r
	default:
		db, err := kv.OpenSQLite(ctx, c.SQLitePath())
		if err != nil {
			log.Error(ctx, "error initializing database", "error", err)
			return nil, err
		}
		store = kv.NewSQLiteRepository(db)
		closers = append(closers, db)
	}

	var opts []client.Option
	if c.HealthAddr != "" {
		opts = append(opts, client.WithHealthAddr(c.HealthAddr))
	}
	apiClient, err := client.NewHTTPClient(c.ServerURL, opts...)
	if err != nil {
		for _, cl := range closers {
			_ = cl.Close()
		}
		return nil, err
	}

	a := assemble(c, log, apiClient, store)
	a.diskv = dv
	a.closers = append(closers, apiClient)

	if _, err := a.session.Restore(ctx); err != nil {
		log.Warn(ctx, "previous session not restored", "error", err)
	}
	return a, nil
}

// assemble builds the services over an already opened store and client.
func assemble(c *config.Config, log logging.Logger, apiClient client.Client, store kv.Repository) *App {
	if log == nil {
		log = logging.Nop()
	}

	opts := services.JournalOptions{
		Delay:    c.Debounce,
		Location: c.Location(),
		Logger:   log,
	}
	if c.Notify {
		opts.OnNotice = notify.OnNotice(notify.Desktop{}, log)
	}

	repo := entries.NewKVRepository(store, log)
	journal := services.NewJournalService(apiClient, repo, opts)
	assessments := services.NewAssessmentService(apiClient, store, nil, log)
	session := services.NewSessionService(apiClient, store, scope.NewMigrator(store, repo, log), journal, assessments, log)

	return &App{
		config:      c,
		log:         log,
		out:         os.Stdout,
		reader:      bufio.NewReader(os.Stdin),
		client:      apiClient,
		store:       store,
		journal:     journal,
		assessments: assessments,
		session:     session,
		mode:        ModeOffline,
	}
}

// Close pushes armed edits and releases the cache and the client.
func (a *App) Close(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	if err := a.journal.Flush(ctx); err != nil {
		a.log.Warn(ctx, "edits kept for the next sync", "error", err)
	}
	a.journal.Close()

	var errs []error
	for _, c := range a.closers {
		errs = append(errs, c.Close())
	}
	return errors.Join(errs...)
}

func (a *App) isLoggedIn() bool {
	return !a.session.Current().Anonymous()
}

func (a *App) Mode() Mode {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.mode
}

// setMode reports whether the mode changed.
func (a *App) setMode(mode Mode) bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.mode == mode {
		return false
	}
	a.mode = mode
	return true
}

// checkOnline probes the server once and drains the pending set when it just
// became reachable.
func (a *App) checkOnline(ctx context.Context) {
	pingCtx, cancel := context.WithTimeout(ctx, 3*time.Second)
	err := a.session.Ping(pingCtx)
	cancel()

	if err != nil {
		if a.setMode(ModeOffline) {
			a.log.Info(ctx, "switched to offline mode", "error", err)
		}
		return
	}

	if a.setMode(ModeOnline) {
		a.log.Info(ctx, "switched to online mode")
		if err := a.journal.SyncPending(ctx); err != nil {
			a.log.Warn(ctx, "pending entries not synced", "error", err)
		}
	}
}

func (a *App) StartOnlineStatusWatcher(ctx context.Context, interval time.Duration) {
	a.checkOnline(ctx)

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			a.checkOnline(ctx)
		case <-ctx.Done():
			return
		}
	}
}

// StartStorageWatcher reloads the journal whenever another process writes the
// current identity's namespaces. It is a no-op unless the diskv backend is used
// with watching enabled.
func (a *App) StartStorageWatcher(ctx context.Context) {
	if a.diskv == nil || !a.config.Watch {
		return
	}

	events, err := a.diskv.Watch(ctx)
	if err != nil {
		a.log.Warn(ctx, "storage watcher not started", "error", err)
		return
	}

	for ev := range events {
		sc := a.session.Current()
		if ev.Key == sc.EntriesNamespace || ev.Key == sc.PendingNamespace {
			a.journal.Reload(ctx)
		}
	}
}
