package config

import (
	"errors"
	"fmt"
	"net/url"
	"strings"
)

// Validate ensures the configuration is usable.
func (c *Config) Validate() error {
	if err := c.validateServices(); err != nil {
		return err
	}
	if err := c.validatePlugins(); err != nil {
		return err
	}
	if err := c.validateWiring(); err != nil {
		return err
	}
	if err := ensurePositiveMap(map[string]int{
		"services.request_timeout": c.Services.RequestTimeout,
		"factory.mailbox_size":     c.Factory.MailboxSize,
	}); err != nil {
		return err
	}
	if err := c.validateJournal(); err != nil {
		return err
	}
	if err := c.validateLogging(); err != nil {
		return err
	}
	return nil
}

func (c *Config) validateServices() error {
	for key, value := range map[string]string{
		"services.mod_host_url": c.Services.ModHostURL,
		"services.pipewire_url": c.Services.PipewireURL,
		"services.registry_url": c.Services.RegistryURL,
	} {
		if err := validateEndpoint(key, value); err != nil {
			return err
		}
	}
	return nil
}

func validateEndpoint(key, value string) error {
	if value == "" {
		return fmt.Errorf("%s must be set", key)
	}
	parsed, err := url.Parse(value)
	if err != nil {
		return fmt.Errorf("%s: %w", key, err)
	}
	if parsed.Scheme != "http" && parsed.Scheme != "https" {
		return fmt.Errorf("%s must use http or https, got %q", key, value)
	}
	if parsed.Host == "" {
		return fmt.Errorf("%s must include a host, got %q", key, value)
	}
	return nil
}

func (c *Config) validatePlugins() error {
	if _, ok := pluginTypes[c.Plugins.Type]; !ok {
		return fmt.Errorf("plugins.type %q is not supported (expected lv2, ladspa, vst2 or vst3)", c.Plugins.Type)
	}
	for key, value := range map[string]string{
		"plugins.cross_fader_uri": c.Plugins.CrossFaderURI,
		"plugins.saturator_uri":   c.Plugins.SaturatorURI,
		"plugins.compressor_uri":  c.Plugins.CompressorURI,
		"plugins.equalizer_uri":   c.Plugins.EqualizerURI,
		"plugins.gain_uri":        c.Plugins.GainURI,
	} {
		if strings.TrimSpace(value) == "" {
			return fmt.Errorf("%s must be set", key)
		}
	}
	return nil
}

func (c *Config) validateWiring() error {
	for key, pair := range map[string][]uint32{
		"wiring.output_ports":                 c.Wiring.OutputPorts,
		"wiring.input_ports":                  c.Wiring.InputPorts,
		"wiring.cross_fader_primary_inputs":   c.Wiring.CrossFaderPrimaryInputs,
		"wiring.cross_fader_secondary_inputs": c.Wiring.CrossFaderSecondaryInputs,
	} {
		if len(pair) != 2 {
			return fmt.Errorf("%s must list exactly two ports (left, right)", key)
		}
		if pair[0] == pair[1] {
			return fmt.Errorf("%s must use distinct left and right ports", key)
		}
	}
	primary := c.Wiring.CrossFaderPrimaryInputs
	for _, port := range c.Wiring.CrossFaderSecondaryInputs {
		if port == primary[0] || port == primary[1] {
			return errors.New("wiring.cross_fader_secondary_inputs must not overlap wiring.cross_fader_primary_inputs")
		}
	}
	return nil
}

func (c *Config) validateJournal() error {
	switch c.Journal.Driver {
	case JournalDriverSQLite:
		return nil
	case JournalDriverPostgres:
		if c.Journal.DSN == "" {
			return errors.New("journal.dsn must be set when journal.driver is postgres (or set PMX_JOURNAL_DSN)")
		}
		return nil
	default:
		return fmt.Errorf("journal.driver %q is not supported (expected sqlite or postgres)", c.Journal.Driver)
	}
}

func (c *Config) validateLogging() error {
	switch c.Logging.Level {
	case "debug", "info", "warn", "warning", "error":
		return nil
	default:
		return fmt.Errorf("logging.level %q is not supported", c.Logging.Level)
	}
}

func ensurePositiveMap(values map[string]int) error {
	for key, value := range values {
		if value <= 0 {
			return fmt.Errorf("%s must be positive", key)
		}
	}
	return nil
}
