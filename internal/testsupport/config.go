package testsupport

import (
	"path/filepath"
	"testing"

	"pmxfactory/internal/config"
)

// ConfigOption adjusts a test configuration after defaults are applied.
type ConfigOption func(*config.Config)

// NewConfig returns the repository defaults rooted in a fresh temp
// directory: data/ and logs/ under it, an ephemeral API port, and a short
// backend timeout.
func NewConfig(t testing.TB, opts ...ConfigOption) *config.Config {
	t.Helper()

	base := t.TempDir()
	cfg := config.Default()
	cfg.Paths.DataDir = filepath.Join(base, "data")
	cfg.Paths.LogDir = filepath.Join(base, "logs")
	cfg.Paths.APIBind = "127.0.0.1:0"
	cfg.Services.RequestTimeout = 2
	for _, opt := range opts {
		opt(&cfg)
	}
	return &cfg
}

// WithServiceURLs points the three backend endpoints at the given servers.
func WithServiceURLs(modHost, pipewire, registry string) ConfigOption {
	return func(cfg *config.Config) {
		cfg.Services.ModHostURL = modHost
		cfg.Services.PipewireURL = pipewire
		cfg.Services.RegistryURL = registry
	}
}

// WithAPIToken enables bearer authentication on the daemon HTTP API.
func WithAPIToken(token string) ConfigOption {
	return func(cfg *config.Config) { cfg.Paths.APIToken = token }
}

// WithMailboxSize overrides the factory mailbox capacity.
func WithMailboxSize(size int) ConfigOption {
	return func(cfg *config.Config) { cfg.Factory.MailboxSize = size }
}

// WithJournalDriver selects the journal backend; dsn is ignored for sqlite.
func WithJournalDriver(driver, dsn string) ConfigOption {
	return func(cfg *config.Config) {
		cfg.Journal.Driver = driver
		cfg.Journal.DSN = dsn
	}
}

// BaseDir returns the root temp directory backing the generated config.
func BaseDir(cfg *config.Config) string {
	return filepath.Dir(cfg.Paths.DataDir)
}
