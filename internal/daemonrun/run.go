// Package daemonrun builds the daemon process: logger, journal, backend
// clients, assembly actor, HTTP API, and IPC socket.
package daemonrun

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"strconv"
	"strings"
	"syscall"

	"pmxfactory/internal/config"
	"pmxfactory/internal/daemon"
	"pmxfactory/internal/factory"
	"pmxfactory/internal/ipc"
	"pmxfactory/internal/journal"
	"pmxfactory/internal/logging"
	"pmxfactory/internal/metrics"
	"pmxfactory/internal/preflight"
	"pmxfactory/internal/services/modhost"
	"pmxfactory/internal/services/pipewire"
	"pmxfactory/internal/services/registry"
)

// Options configures daemon process runtime behavior.
type Options struct {
	LogLevel string
}

// Run starts the pmxfactory daemon and blocks until a signal or an IPC
// shutdown request arrives.
func Run(cmdCtx context.Context, cfg *config.Config, opts Options) error {
	if cfg == nil {
		return fmt.Errorf("config is required")
	}

	signalCtx, cancel := signal.NotifyContext(cmdCtx, syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	if level := strings.TrimSpace(opts.LogLevel); level != "" {
		cfg.Logging.Level = level
	}
	logger, err := logging.NewFromConfig(cfg)
	if err != nil {
		return fmt.Errorf("init logger: %w", err)
	}

	pidPath := filepath.Join(cfg.Paths.LogDir, "pmxfactory.pid")
	if err := writePIDFile(pidPath); err != nil {
		return fmt.Errorf("write pid file: %w", err)
	}
	defer os.Remove(pidPath)

	logPreflight(signalCtx, logger, cfg)

	store, err := journal.Open(cfg)
	if err != nil {
		logger.Error("open journal", logging.Error(err))
		return err
	}

	m := metrics.New()
	f := factory.New(cfg, newBackends(cfg), store, m, logger)
	d, err := daemon.New(cfg, store, f, m, logger)
	if err != nil {
		_ = store.Close()
		return fmt.Errorf("create daemon: %w", err)
	}
	defer d.Close()

	if err := d.Start(signalCtx); err != nil {
		return fmt.Errorf("start daemon: %w", err)
	}

	ipcServer, err := ipc.NewServer(signalCtx, cfg.SocketPath(), d, logger, cancel)
	if err != nil {
		return fmt.Errorf("start IPC server: %w", err)
	}
	defer ipcServer.Close()
	ipcServer.Serve()

	logger.Info("pmxfactory daemon ready",
		logging.String(logging.FieldEventType, "daemon_ready"),
		logging.String("socket", cfg.SocketPath()),
		logging.String("api", d.APIAddress()),
		logging.String("journal", store.Driver()),
	)

	<-signalCtx.Done()
	logger.Info("pmxfactory daemon shutting down")
	return nil
}

// newBackends builds the HTTP clients for the plugin host, graph, and
// registry services. They share one transport.
func newBackends(cfg *config.Config) factory.Backends {
	client := &http.Client{Timeout: cfg.RequestTimeout()}
	return factory.Backends{
		Host:     modhost.New(cfg.Services.ModHostURL, client),
		Linker:   pipewire.New(cfg.Services.PipewireURL, client),
		Registry: registry.New(cfg.Services.RegistryURL, client),
	}
}

func logPreflight(ctx context.Context, logger *slog.Logger, cfg *config.Config) {
	for _, result := range preflight.RunAll(ctx, cfg) {
		if result.Passed {
			logger.Info("preflight check passed",
				logging.String(logging.FieldEventType, "preflight_check"),
				logging.String("check", result.Name),
				logging.String("detail", result.Detail),
			)
			continue
		}
		logging.WarnWithContext(logger, "preflight check failed", "preflight_check_failed",
			logging.String("check", result.Name),
			logging.String("detail", result.Detail),
			logging.String(logging.FieldImpact, "assemblies touching this dependency will fail until it is reachable"),
		)
	}
}

func writePIDFile(path string) error {
	if path == "" {
		return nil
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	value := strconv.Itoa(os.Getpid()) + "\n"
	return os.WriteFile(path, []byte(value), 0o644)
}
