// Package config provides the configuration schema and loader for the
// re-say pronunciation assessment server.
//
// Configuration is an explicit value constructed once at process start and
// passed to every component that needs it. Nothing in this package is
// global or lazily initialized.
package config

// LogLevel controls log verbosity for the server.
type LogLevel string

const (
	LogDebug LogLevel = "debug"
	LogInfo  LogLevel = "info"
	LogWarn  LogLevel = "warn"
	LogError LogLevel = "error"
)

// IsValid reports whether l is a recognised log level.
func (l LogLevel) IsValid() bool {
	switch l {
	case LogDebug, LogInfo, LogWarn, LogError:
		return true
	}
	return false
}

// Config is the root configuration structure. It is typically loaded from
// a YAML file using [Load] or [LoadFromReader]; Azure credentials may also
// arrive via environment variables (see [ApplyEnv]).
type Config struct {
	Server    ServerConfig    `yaml:"server"`
	Speech    SpeechConfig    `yaml:"speech"`
	Synthesis SynthesisConfig `yaml:"synthesis"`
	Limits    LimitsConfig    `yaml:"limits"`
	Storage   StorageConfig   `yaml:"storage"`
}

// ServerConfig holds network and logging settings.
type ServerConfig struct {
	// ListenAddr is the TCP address the server listens on (e.g., ":8080").
	ListenAddr string `yaml:"listen_addr"`

	// LogLevel controls verbosity.
	LogLevel LogLevel `yaml:"log_level"`

	// CORSAllowedOrigins lists origins permitted to call the API from a
	// browser. Empty means same-origin only.
	CORSAllowedOrigins []string `yaml:"cors_allowed_origins"`

	// TLS configures TLS for the server. When nil, the server runs plain HTTP.
	TLS *TLSConfig `yaml:"tls"`
}

// TLSConfig holds TLS certificate paths for enabling HTTPS.
type TLSConfig struct {
	// CertFile is the path to the PEM-encoded TLS certificate.
	CertFile string `yaml:"cert_file"`

	// KeyFile is the path to the PEM-encoded TLS private key.
	KeyFile string `yaml:"key_file"`
}

// SpeechConfig holds the Azure Speech credentials and recognition settings
// shared by the assessment and synthesis clients.
type SpeechConfig struct {
	// Key is the Azure Speech subscription key. Overridable via the
	// AZURE_SPEECH_KEY environment variable.
	Key string `yaml:"key"`

	// Region is the Azure Speech service region (e.g., "westeurope").
	// Overridable via the AZURE_SPEECH_REGION environment variable.
	Region string `yaml:"region"`

	// Language is the BCP-47 recognition language. Default: "en-US".
	Language string `yaml:"language"`
}

// SynthesisConfig controls reference-pronunciation synthesis.
type SynthesisConfig struct {
	// Voices is the ordered voice fallback chain. The first voice that
	// succeeds wins. Defaults to en-US-GuyNeural then en-US-BrandonNeural.
	Voices []string `yaml:"voices"`

	// OutputFormat is the provider output format identifier.
	OutputFormat string `yaml:"output_format"`
}

// LimitsConfig bounds per-request resource usage.
type LimitsConfig struct {
	// MaxUploadBytes caps the size of an uploaded recording.
	// Default: 10 MiB.
	MaxUploadBytes int64 `yaml:"max_upload_bytes"`

	// MaxSynthesisChars caps the length of text accepted for synthesis.
	// Default: 500.
	MaxSynthesisChars int `yaml:"max_synthesis_chars"`
}

// StorageConfig controls transient upload spooling.
type StorageConfig struct {
	// TempDir is the directory for transient upload files. Empty uses the
	// system temp directory.
	TempDir string `yaml:"temp_dir"`
}

// Default values applied by [applyDefaults] when the corresponding field
// is unset.
const (
	DefaultListenAddr        = ":8080"
	DefaultLanguage          = "en-US"
	DefaultMaxUploadBytes    = 10 << 20
	DefaultMaxSynthesisChars = 500
)

// DefaultVoices is the built-in synthesis voice fallback chain.
var DefaultVoices = []string{"en-US-GuyNeural", "en-US-BrandonNeural"}
