package config

import (
	_ "embed"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/pelletier/go-toml/v2"
)

//go:embed sample_config.toml
var sampleConfig string

// Paths contains directory and bind address configuration.
type Paths struct {
	DataDir  string `toml:"data_dir"`
	LogDir   string `toml:"log_dir"`
	APIBind  string `toml:"api_bind"`
	APIToken string `toml:"api_token"`
}

// Services contains the endpoints of the three backends the factory drives.
type Services struct {
	ModHostURL     string `toml:"mod_host_url"`
	PipewireURL    string `toml:"pipewire_url"`
	RegistryURL    string `toml:"registry_url"`
	RequestTimeout int    `toml:"request_timeout"`
}

// Plugins maps each channel strip role to the plugin implementation the
// plugin host should instantiate for it.
type Plugins struct {
	Type          string `toml:"type"`
	CrossFaderURI string `toml:"cross_fader_uri"`
	SaturatorURI  string `toml:"saturator_uri"`
	CompressorURI string `toml:"compressor_uri"`
	EqualizerURI  string `toml:"equalizer_uri"`
	GainURI       string `toml:"gain_uri"`
}

// Wiring describes the port layout used when linking plugin instances.
// Each value is a [left, right] port pair.
type Wiring struct {
	OutputPorts               []uint32 `toml:"output_ports"`
	InputPorts                []uint32 `toml:"input_ports"`
	CrossFaderPrimaryInputs   []uint32 `toml:"cross_fader_primary_inputs"`
	CrossFaderSecondaryInputs []uint32 `toml:"cross_fader_secondary_inputs"`
}

// Factory contains assembly actor tuning.
type Factory struct {
	MailboxSize int `toml:"mailbox_size"`
}

// Journal selects the assembly journal backend.
type Journal struct {
	Driver string `toml:"driver"`
	DSN    string `toml:"dsn"`
}

// Logging contains configuration for log output.
type Logging struct {
	Format string `toml:"format"`
	Level  string `toml:"level"`
}

// Config encapsulates all configuration values for pmxfactory.
//
// Configuration sections by subsystem:
//   - Paths: data/log directories and API bind address
//   - Services: plugin host, graph, and registry endpoints
//   - Plugins: plugin URIs per channel strip role
//   - Wiring: port pairs used for stereo links
//   - Factory: assembly actor mailbox sizing
//   - Journal: assembly journal storage
//   - Logging: log format and level
type Config struct {
	Paths    Paths    `toml:"paths"`
	Services Services `toml:"services"`
	Plugins  Plugins  `toml:"plugins"`
	Wiring   Wiring   `toml:"wiring"`
	Factory  Factory  `toml:"factory"`
	Journal  Journal  `toml:"journal"`
	Logging  Logging  `toml:"logging"`
}

// DefaultConfigPath returns the absolute path to the default configuration file location.
func DefaultConfigPath() (string, error) {
	return expandPath(defaultConfigPath)
}

// Load reads the config at path, or the first existing default location
// when path is empty, and returns it normalized and validated along with the
// resolved path and whether that file existed. A missing file yields defaults.
func Load(path string) (*Config, string, bool, error) {
	resolved, exists, err := resolveConfigPath(path)
	if err != nil {
		return nil, "", false, err
	}

	cfg := Default()
	if exists {
		if err := decodeFile(resolved, &cfg); err != nil {
			return nil, "", false, err
		}
	}
	if err := cfg.normalize(); err != nil {
		return nil, "", false, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, "", false, err
	}
	return &cfg, resolved, exists, nil
}

func decodeFile(path string, cfg *Config) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read config: %w", err)
	}
	if err := toml.Unmarshal(data, cfg); err != nil {
		var decodeErr *toml.DecodeError
		if errors.As(err, &decodeErr) {
			row, col := decodeErr.Position()
			return fmt.Errorf("parse config %s:%d:%d: %w", path, row, col, err)
		}
		return fmt.Errorf("parse config: %w", err)
	}
	return nil
}

// resolveConfigPath returns an explicit path as given, existing or not.
// Otherwise it tries the user config location, then ./pmxfactory.toml, and
// falls back to the user location.
func resolveConfigPath(path string) (string, bool, error) {
	var candidates []string
	if path != "" {
		candidates = []string{path}
	} else {
		candidates = []string{defaultConfigPath, "pmxfactory.toml"}
	}

	var first string
	for i, candidate := range candidates {
		expanded, err := expandPath(candidate)
		if err != nil {
			return "", false, err
		}
		if i == 0 {
			first = expanded
		}
		info, err := os.Stat(expanded)
		switch {
		case err == nil && !info.IsDir():
			return expanded, true, nil
		case err != nil && !errors.Is(err, fs.ErrNotExist):
			return "", false, fmt.Errorf("stat config: %w", err)
		}
	}
	return first, false, nil
}

// EnsureDirectories creates required directories for daemon operation.
func (c *Config) EnsureDirectories() error {
	for _, dir := range []string{c.Paths.DataDir, c.Paths.LogDir} {
		if strings.TrimSpace(dir) == "" {
			continue
		}
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create directory %q: %w", dir, err)
		}
	}
	return nil
}

// SocketPath returns the IPC socket location used by the daemon and CLI.
func (c *Config) SocketPath() string {
	return filepath.Join(c.Paths.LogDir, "pmxfactory.sock")
}

// LogPath returns the JSON lines log written by the daemon.
func (c *Config) LogPath() string {
	return filepath.Join(c.Paths.LogDir, "pmxfactory.jsonl")
}

// JournalPath returns the SQLite journal location used when the journal
// driver is sqlite.
func (c *Config) JournalPath() string {
	return filepath.Join(c.Paths.DataDir, "journal.db")
}

// RequestTimeout returns the per-call backend timeout.
func (c *Config) RequestTimeout() time.Duration {
	if c.Services.RequestTimeout <= 0 {
		return time.Duration(defaultRequestTimeout) * time.Second
	}
	return time.Duration(c.Services.RequestTimeout) * time.Second
}

func expandPath(pathValue string) (string, error) {
	if pathValue == "" {
		return pathValue, nil
	}
	if strings.HasPrefix(pathValue, "~") {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("resolve home directory: %w", err)
		}
		if pathValue == "~" {
			pathValue = home
		} else if len(pathValue) > 1 && (pathValue[1] == '/' || pathValue[1] == '\\') {
			pathValue = filepath.Join(home, pathValue[2:])
		}
	}
	cleaned := filepath.Clean(pathValue)
	absolute, err := filepath.Abs(cleaned)
	if err != nil {
		return "", fmt.Errorf("resolve absolute path for %q: %w", cleaned, err)
	}
	return absolute, nil
}

// ExpandPath exposes the repository path expansion rules for other packages.
func ExpandPath(pathValue string) (string, error) {
	return expandPath(pathValue)
}

// CreateSample writes a sample configuration file to the specified location.
func CreateSample(path string) error {
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create config directory: %w", err)
		}
	}

	if err := os.WriteFile(path, []byte(sampleConfig), 0o644); err != nil {
		return fmt.Errorf("write sample config: %w", err)
	}
	return nil
}
