package config

import (
	"errors"
	"fmt"
	"io"
	"os"

	"gopkg.in/yaml.v3"
)

// Load reads the YAML configuration file at path, applies environment
// overrides and defaults, and returns a validated [Config]. A missing file
// is not an error: the server can run entirely from environment variables
// and defaults.
func Load(path string) (*Config, error) {
	f, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			cfg := &Config{}
			ApplyEnv(cfg)
			applyDefaults(cfg)
			return cfg, Validate(cfg)
		}
		return nil, fmt.Errorf("config: open %q: %w", path, err)
	}
	defer f.Close()

	cfg, err := LoadFromReader(f)
	if err != nil {
		return nil, fmt.Errorf("config: parse %q: %w", path, err)
	}
	return cfg, nil
}

// LoadFromReader decodes a YAML config from r, applies environment
// overrides and defaults, and validates the result. Useful in tests where
// configs are constructed from string literals.
func LoadFromReader(r io.Reader) (*Config, error) {
	cfg := &Config{}
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(cfg); err != nil && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("config: decode yaml: %w", err)
	}
	ApplyEnv(cfg)
	applyDefaults(cfg)
	if err := Validate(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

// ApplyEnv overrides credential fields from the environment. Environment
// values win over file values so deployments can keep secrets out of the
// config file.
func ApplyEnv(cfg *Config) {
	if v := os.Getenv("AZURE_SPEECH_KEY"); v != "" {
		cfg.Speech.Key = v
	}
	if v := os.Getenv("AZURE_SPEECH_REGION"); v != "" {
		cfg.Speech.Region = v
	}
}

// applyDefaults fills unset fields with their documented defaults.
func applyDefaults(cfg *Config) {
	if cfg.Server.ListenAddr == "" {
		cfg.Server.ListenAddr = DefaultListenAddr
	}
	if cfg.Server.LogLevel == "" {
		cfg.Server.LogLevel = LogInfo
	}
	if cfg.Speech.Language == "" {
		cfg.Speech.Language = DefaultLanguage
	}
	if len(cfg.Synthesis.Voices) == 0 {
		cfg.Synthesis.Voices = append([]string(nil), DefaultVoices...)
	}
	if cfg.Limits.MaxUploadBytes == 0 {
		cfg.Limits.MaxUploadBytes = DefaultMaxUploadBytes
	}
	if cfg.Limits.MaxSynthesisChars == 0 {
		cfg.Limits.MaxSynthesisChars = DefaultMaxSynthesisChars
	}
}

// Validate checks that cfg contains a coherent set of values.
// It returns a joined error listing all validation failures found.
func Validate(cfg *Config) error {
	var errs []error

	if !cfg.Server.LogLevel.IsValid() {
		errs = append(errs, fmt.Errorf("server.log_level %q is invalid; valid values: debug, info, warn, error", cfg.Server.LogLevel))
	}
	if cfg.Server.TLS != nil {
		if cfg.Server.TLS.CertFile == "" {
			errs = append(errs, errors.New("server.tls.cert_file is required when tls is set"))
		}
		if cfg.Server.TLS.KeyFile == "" {
			errs = append(errs, errors.New("server.tls.key_file is required when tls is set"))
		}
	}

	if cfg.Speech.Key == "" {
		errs = append(errs, errors.New("speech.key is required (or set AZURE_SPEECH_KEY)"))
	}
	if cfg.Speech.Region == "" {
		errs = append(errs, errors.New("speech.region is required (or set AZURE_SPEECH_REGION)"))
	}

	for i, v := range cfg.Synthesis.Voices {
		if v == "" {
			errs = append(errs, fmt.Errorf("synthesis.voices[%d] must not be empty", i))
		}
	}

	if cfg.Limits.MaxUploadBytes < 0 {
		errs = append(errs, fmt.Errorf("limits.max_upload_bytes %d must be positive", cfg.Limits.MaxUploadBytes))
	}
	if cfg.Limits.MaxSynthesisChars < 0 {
		errs = append(errs, fmt.Errorf("limits.max_synthesis_chars %d must be positive", cfg.Limits.MaxSynthesisChars))
	}

	return errors.Join(errs...)
}
