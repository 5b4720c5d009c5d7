package config

import (
	"fmt"
	"os"
	"strings"
)

func (c *Config) normalize() error {
	if err := c.normalizePaths(); err != nil {
		return err
	}
	c.normalizeServices()
	c.normalizePlugins()
	c.normalizeWiring()
	if c.Factory.MailboxSize <= 0 {
		c.Factory.MailboxSize = defaultMailboxSize
	}
	c.normalizeJournal()
	c.normalizeLogging()
	return nil
}

func (c *Config) normalizePaths() error {
	var err error
	if strings.TrimSpace(c.Paths.DataDir) == "" {
		c.Paths.DataDir = defaultDataDir
	}
	if c.Paths.DataDir, err = expandPath(c.Paths.DataDir); err != nil {
		return fmt.Errorf("paths.data_dir: %w", err)
	}
	if strings.TrimSpace(c.Paths.LogDir) == "" {
		c.Paths.LogDir = defaultLogDir
	}
	if c.Paths.LogDir, err = expandPath(c.Paths.LogDir); err != nil {
		return fmt.Errorf("paths.log_dir: %w", err)
	}
	c.Paths.APIBind = strings.TrimSpace(c.Paths.APIBind)
	if c.Paths.APIBind == "" {
		c.Paths.APIBind = defaultAPIBind
	}
	if value, ok := lookupEnv("PMX_API_TOKEN"); ok {
		c.Paths.APIToken = value
	}
	c.Paths.APIToken = strings.TrimSpace(c.Paths.APIToken)
	return nil
}

// Environment values take precedence over file values for endpoints so a
// single config file can be reused across hosts.
func (c *Config) normalizeServices() {
	if value, ok := lookupEnv("PMX_MOD_HOST_URL"); ok {
		c.Services.ModHostURL = value
	}
	if value, ok := lookupEnv("PMX_PIPEWIRE_URL"); ok {
		c.Services.PipewireURL = value
	}
	if value, ok := lookupEnv("PMX_REGISTRY_URL"); ok {
		c.Services.RegistryURL = value
	}
	c.Services.ModHostURL = strings.TrimRight(strings.TrimSpace(c.Services.ModHostURL), "/")
	c.Services.PipewireURL = strings.TrimRight(strings.TrimSpace(c.Services.PipewireURL), "/")
	c.Services.RegistryURL = strings.TrimRight(strings.TrimSpace(c.Services.RegistryURL), "/")
	if c.Services.RequestTimeout <= 0 {
		c.Services.RequestTimeout = defaultRequestTimeout
	}
}

func (c *Config) normalizePlugins() {
	c.Plugins.Type = strings.ToLower(strings.TrimSpace(c.Plugins.Type))
	if c.Plugins.Type == "" {
		c.Plugins.Type = defaultPluginType
	}
	fill := func(value *string, fallback string) {
		*value = strings.TrimSpace(*value)
		if *value == "" {
			*value = fallback
		}
	}
	fill(&c.Plugins.CrossFaderURI, defaultCrossFaderURI)
	fill(&c.Plugins.SaturatorURI, defaultSaturatorURI)
	fill(&c.Plugins.CompressorURI, defaultCompressorURI)
	fill(&c.Plugins.EqualizerURI, defaultEqualizerURI)
	fill(&c.Plugins.GainURI, defaultGainURI)
}

func (c *Config) normalizeWiring() {
	if len(c.Wiring.OutputPorts) == 0 {
		c.Wiring.OutputPorts = defaultOutputPorts()
	}
	if len(c.Wiring.InputPorts) == 0 {
		c.Wiring.InputPorts = defaultInputPorts()
	}
	if len(c.Wiring.CrossFaderPrimaryInputs) == 0 {
		c.Wiring.CrossFaderPrimaryInputs = defaultCrossFaderPrimaryInputs()
	}
	if len(c.Wiring.CrossFaderSecondaryInputs) == 0 {
		c.Wiring.CrossFaderSecondaryInputs = defaultCrossFaderSecondaryInputs()
	}
}

func (c *Config) normalizeJournal() {
	c.Journal.Driver = strings.ToLower(strings.TrimSpace(c.Journal.Driver))
	switch c.Journal.Driver {
	case "", "sqlite3":
		c.Journal.Driver = JournalDriverSQLite
	case "pgx", "postgresql":
		c.Journal.Driver = JournalDriverPostgres
	}
	if value, ok := lookupEnv("PMX_JOURNAL_DSN"); ok {
		c.Journal.DSN = value
	}
	c.Journal.DSN = strings.TrimSpace(c.Journal.DSN)
}

func (c *Config) normalizeLogging() {
	c.Logging.Format = strings.ToLower(strings.TrimSpace(c.Logging.Format))
	switch c.Logging.Format {
	case "", "console":
		c.Logging.Format = "console"
	case "json":
	default:
		c.Logging.Format = "console"
	}
	c.Logging.Level = strings.ToLower(strings.TrimSpace(c.Logging.Level))
	if c.Logging.Level == "" {
		c.Logging.Level = defaultLogLevel
	}
}

func lookupEnv(key string) (string, bool) {
	value, ok := os.LookupEnv(key)
	if !ok {
		return "", false
	}
	value = strings.TrimSpace(value)
	return value, value != ""
}
