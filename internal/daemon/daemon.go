package daemon

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"sync/atomic"

	"github.com/gofrs/flock"

	"pmxfactory/internal/config"
	"pmxfactory/internal/factory"
	"pmxfactory/internal/journal"
	"pmxfactory/internal/logging"
	"pmxfactory/internal/metrics"
	"pmxfactory/internal/preflight"
	"pmxfactory/internal/services"
	"pmxfactory/internal/topology"
)

// Daemon runs the assembly actor and enforces single-instance execution.
type Daemon struct {
	cfg     *config.Config
	logger  *slog.Logger
	store   *journal.Store
	factory *factory.Factory
	metrics *metrics.Metrics
	api     *apiServer

	lockPath string
	lock     *flock.Flock

	running  atomic.Bool
	started  atomic.Bool
	mu       sync.Mutex
	cancel   context.CancelFunc
	actorErr chan error
}

// Status represents daemon runtime information.
type Status struct {
	Running       bool
	PID           int
	LockFilePath  string
	SocketPath    string
	JournalDriver string
	JournalSource string
	Factory       factory.Snapshot
	AssemblyStats map[journal.Status]int
	Checks        []preflight.Result
}

// New constructs a daemon with initialized dependencies. m may be nil.
func New(cfg *config.Config, store *journal.Store, f *factory.Factory, m *metrics.Metrics, logger *slog.Logger) (*Daemon, error) {
	if cfg == nil || store == nil || f == nil {
		return nil, errors.New("daemon requires config, journal, and factory")
	}
	if logger == nil {
		logger = logging.NewNop()
	}

	lockPath := filepath.Join(cfg.Paths.LogDir, "pmxfactoryd.lock")
	d := &Daemon{
		cfg:      cfg,
		logger:   logging.NewComponentLogger(logger, "daemon"),
		store:    store,
		factory:  f,
		metrics:  m,
		lockPath: lockPath,
		lock:     flock.New(lockPath),
	}
	api, err := newAPIServer(cfg, d, logger)
	if err != nil {
		return nil, err
	}
	d.api = api
	return d, nil
}

// Start acquires the daemon lock, launches the assembly actor, and opens the
// HTTP API. The actor cannot be restarted once stopped.
func (d *Daemon) Start(ctx context.Context) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.running.Load() {
		return errors.New("daemon already running")
	}
	if d.started.Load() {
		return errors.New("daemon cannot be restarted after stop")
	}
	if err := d.cfg.EnsureDirectories(); err != nil {
		return err
	}

	ok, err := d.lock.TryLock()
	if err != nil {
		return fmt.Errorf("acquire lock: %w", err)
	}
	if !ok {
		return errors.New("another pmxfactory daemon instance is already running")
	}

	if reset, err := d.store.ResetInterrupted(ctx); err != nil {
		logging.WarnWithContext(d.logger, "failed to reset interrupted assemblies", "journal_reset_failed",
			logging.Error(err),
			logging.String(logging.FieldImpact, "stale pending entries remain in the journal"),
		)
	} else if reset > 0 {
		d.logger.Info("interrupted assemblies marked failed", logging.Int64("count", reset))
	}

	runCtx, cancel := context.WithCancel(ctx)
	if err := d.api.start(runCtx); err != nil {
		cancel()
		_ = d.lock.Unlock()
		return err
	}

	d.actorErr = make(chan error, 1)
	go func() {
		err := d.factory.Run(runCtx)
		if err != nil {
			logging.ErrorWithContext(d.logger, "assembly actor exited", "actor_failed",
				logging.Error(err),
				logging.String(logging.FieldErrorHint, "check journal access and restart the daemon"),
			)
		}
		d.actorErr <- err
	}()

	// Report running only once the actor serves its mailbox.
	select {
	case <-d.factory.Ready():
	case err := <-d.actorErr:
		cancel()
		d.api.stop()
		_ = d.lock.Unlock()
		if err == nil {
			err = errors.New("assembly actor exited during startup")
		}
		return fmt.Errorf("start assembly actor: %w", err)
	}

	d.cancel = cancel
	d.started.Store(true)
	d.running.Store(true)
	d.logger.Info("pmxfactory daemon started", logging.String("lock", d.lockPath))
	return nil
}

// Stop stops the actor after its current assembly and releases the daemon lock.
func (d *Daemon) Stop() {
	d.mu.Lock()
	defer d.mu.Unlock()

	if !d.running.Load() {
		return
	}
	if d.cancel != nil {
		d.cancel()
		d.cancel = nil
	}
	<-d.actorErr
	d.api.stop()
	if err := d.lock.Unlock(); err != nil {
		logging.WarnWithContext(d.logger, "failed to release daemon lock", "daemon_lock_release_failed",
			logging.Error(err),
			logging.String(logging.FieldErrorHint, "remove the lock file manually if the next start fails"),
		)
	}
	d.running.Store(false)
	d.logger.Info("pmxfactory daemon stopped")
}

// Close releases resources held by the daemon.
func (d *Daemon) Close() error {
	d.Stop()
	if d.store != nil {
		return d.store.Close()
	}
	return nil
}

// APIAddress returns the bound HTTP API address, or "" when disabled.
func (d *Daemon) APIAddress() string {
	return d.api.address()
}

// LogPath returns the JSON log file the daemon writes.
func (d *Daemon) LogPath() string {
	return d.cfg.LogPath()
}

// CreateChannelStrip validates input and submits a channel strip request.
func (d *Daemon) CreateChannelStrip(ctx context.Context, name, kind string) (topology.ChannelStrip, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return topology.ChannelStrip{}, services.Wrap(services.ErrValidation, "daemon", "create channel strip", "name is required", nil)
	}
	parsed, err := topology.ParseChannelStripKind(kind)
	if err != nil {
		return topology.ChannelStrip{}, services.Wrap(services.ErrValidation, "daemon", "create channel strip", "", err)
	}
	if !d.running.Load() {
		return topology.ChannelStrip{}, factory.ErrStopped
	}
	return d.factory.CreateChannelStrip(ctx, name, parsed)
}

// CreateOutputStage validates input and submits an output stage request.
func (d *Daemon) CreateOutputStage(ctx context.Context, name string) (topology.OutputStage, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return topology.OutputStage{}, services.Wrap(services.ErrValidation, "daemon", "create output stage", "name is required", nil)
	}
	if !d.running.Load() {
		return topology.OutputStage{}, factory.ErrStopped
	}
	return d.factory.CreateOutputStage(ctx, name)
}

// ListAssemblies returns journal entries filtered by optional statuses.
func (d *Daemon) ListAssemblies(ctx context.Context, statuses []journal.Status) ([]*journal.Assembly, error) {
	return d.store.ListAssemblies(ctx, statuses...)
}

// ListChannelStrips returns mirrored channel strips.
func (d *Daemon) ListChannelStrips(ctx context.Context) ([]topology.ChannelStrip, error) {
	return d.store.ListChannelStrips(ctx)
}

// ListOutputStages returns mirrored output stages.
func (d *Daemon) ListOutputStages(ctx context.Context) ([]topology.OutputStage, error) {
	return d.store.ListOutputStages(ctx)
}

// Journal exposes the journal for read-only API services.
func (d *Daemon) Journal() *journal.Store {
	return d.store
}

// Status returns the current daemon status. Preflight checks are included
// when withChecks is set; they dial every backend.
func (d *Daemon) Status(ctx context.Context, withChecks bool) Status {
	status := Status{
		Running:       d.running.Load(),
		PID:           os.Getpid(),
		LockFilePath:  d.lockPath,
		SocketPath:    d.cfg.SocketPath(),
		JournalDriver: d.store.Driver(),
		JournalSource: d.store.Source(),
		Factory:       d.factory.Snapshot(),
	}
	if stats, err := d.store.Stats(ctx); err == nil {
		status.AssemblyStats = stats
	} else {
		d.logger.Debug("journal stats unavailable", logging.Error(err))
	}
	if withChecks {
		status.Checks = preflight.RunAll(ctx, d.cfg)
	}
	return status
}
