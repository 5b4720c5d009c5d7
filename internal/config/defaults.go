package config

const (
	defaultConfigPath     = "~/.config/pmxfactory/config.toml"
	defaultDataDir        = "~/.local/share/pmxfactory"
	defaultLogDir         = "~/.local/share/pmxfactory/logs"
	defaultAPIBind        = "127.0.0.1:7620"
	defaultModHostURL     = "http://127.0.0.1:7621"
	defaultPipewireURL    = "http://127.0.0.1:7622"
	defaultRegistryURL    = "http://127.0.0.1:7623"
	defaultRequestTimeout = 10
	defaultPluginType     = "lv2"
	defaultCrossFaderURI  = "http://gareus.org/oss/lv2/xfade"
	defaultSaturatorURI   = "http://calf.sourceforge.net/plugins/Saturator"
	defaultCompressorURI  = "http://calf.sourceforge.net/plugins/Compressor"
	defaultEqualizerURI   = "http://calf.sourceforge.net/plugins/Equalizer5Band"
	defaultGainURI        = "urn:ardour:a-amp"
	defaultMailboxSize    = 64
	defaultJournalDriver  = JournalDriverSQLite
	defaultLogFormat      = "console"
	defaultLogLevel       = "info"
)

// Journal drivers accepted by journal.driver.
const (
	JournalDriverSQLite   = "sqlite"
	JournalDriverPostgres = "postgres"
)

// Supported plugin standards accepted by plugins.type.
var pluginTypes = map[string]struct{}{
	"lv2":    {},
	"ladspa": {},
	"vst2":   {},
	"vst3":   {},
}

func defaultOutputPorts() []uint32               { return []uint32{0, 1} }
func defaultInputPorts() []uint32                { return []uint32{0, 1} }
func defaultCrossFaderPrimaryInputs() []uint32   { return []uint32{0, 1} }
func defaultCrossFaderSecondaryInputs() []uint32 { return []uint32{2, 3} }

// Default returns a Config populated with repository defaults.
func Default() Config {
	return Config{
		Paths: Paths{
			DataDir: defaultDataDir,
			LogDir:  defaultLogDir,
			APIBind: defaultAPIBind,
		},
		Services: Services{
			ModHostURL:     defaultModHostURL,
			PipewireURL:    defaultPipewireURL,
			RegistryURL:    defaultRegistryURL,
			RequestTimeout: defaultRequestTimeout,
		},
		Plugins: Plugins{
			Type:          defaultPluginType,
			CrossFaderURI: defaultCrossFaderURI,
			SaturatorURI:  defaultSaturatorURI,
			CompressorURI: defaultCompressorURI,
			EqualizerURI:  defaultEqualizerURI,
			GainURI:       defaultGainURI,
		},
		Wiring: Wiring{
			OutputPorts:               defaultOutputPorts(),
			InputPorts:                defaultInputPorts(),
			CrossFaderPrimaryInputs:   defaultCrossFaderPrimaryInputs(),
			CrossFaderSecondaryInputs: defaultCrossFaderSecondaryInputs(),
		},
		Factory: Factory{
			MailboxSize: defaultMailboxSize,
		},
		Journal: Journal{
			Driver: defaultJournalDriver,
		},
		Logging: Logging{
			Format: defaultLogFormat,
			Level:  defaultLogLevel,
		},
	}
}
