package config

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"slices"

	"gopkg.in/yaml.v3"
)

// ValidProviderNames lists known provider names per provider kind.
// Used by [Validate] to warn about unrecognised provider names.
var ValidProviderNames = map[string][]string{
	"stt": {"openai", "whisper"},
	"tts": {"openai"},
}

// Load reads the YAML configuration file at path and returns a validated
// [Config]. It is a convenience wrapper around [LoadFromReader] and
// [Validate].
func Load(path string) (*Config, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("config: open %q: %w", path, err)
	}
	defer f.Close()

	cfg, err := LoadFromReader(f)
	if err != nil {
		return nil, fmt.Errorf("config: parse %q: %w", path, err)
	}
	return cfg, nil
}

// LoadFromReader decodes a YAML config from r and validates the result.
// Useful in tests where configs are constructed from string literals.
func LoadFromReader(r io.Reader) (*Config, error) {
	cfg := &Config{}
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(cfg); err != nil {
		return nil, fmt.Errorf("config: decode yaml: %w", err)
	}
	if err := Validate(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks that cfg contains a coherent set of values.
// It returns a joined error listing all validation failures found.
func Validate(cfg *Config) error {
	var errs []error

	// Server
	if cfg.Server.LogLevel != "" && !cfg.Server.LogLevel.IsValid() {
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

	// Providers
	validateProviderName("stt", cfg.Providers.STT.Name)
	validateProviderName("tts", cfg.Providers.TTS.Name)
	if fb := cfg.Providers.STTFallback; fb != nil {
		validateProviderName("stt", fb.Name)
		if fb.Name == "" {
			errs = append(errs, errors.New("providers.stt_fallback.name is required when stt_fallback is set"))
		}
	}
	if fb := cfg.Providers.TTSFallback; fb != nil {
		validateProviderName("tts", fb.Name)
		if fb.Name == "" {
			errs = append(errs, errors.New("providers.tts_fallback.name is required when tts_fallback is set"))
		}
	}
	if cfg.Providers.STT.Name == "" {
		errs = append(errs, errors.New("providers.stt.name is required; voice notes cannot be transcribed without an STT provider"))
	}
	if cfg.Providers.TTS.Name == "" {
		errs = append(errs, errors.New("providers.tts.name is required; replies cannot be spoken without a TTS provider"))
	}

	// Safety
	if cfg.Safety.Grader != nil {
		if cfg.Safety.Grader.APIKey == "" {
			errs = append(errs, errors.New("safety.grader.api_key is required when grader is set"))
		}
		if cfg.Safety.Grader.Timeout < 0 {
			errs = append(errs, fmt.Errorf("safety.grader.timeout %s must not be negative", cfg.Safety.Grader.Timeout))
		}
	} else {
		slog.Warn("safety.grader is not configured; classification falls back to the local keyword scan only")
	}

	// Cooldown
	if cfg.Cooldown.Window < 0 {
		errs = append(errs, fmt.Errorf("cooldown.window %s must not be negative", cfg.Cooldown.Window))
	}

	// Identity
	if cfg.Identity.JWTSecret == "" {
		errs = append(errs, errors.New("identity.jwt_secret is required"))
	}
	if cfg.Identity.AccessTTL < 0 {
		errs = append(errs, fmt.Errorf("identity.access_ttl %s must not be negative", cfg.Identity.AccessTTL))
	}
	if cfg.Identity.PostgresDSN == "" {
		slog.Warn("identity.postgres_dsn is empty; user accounts will be lost on restart")
	}

	// Storage — archival is opt-in, but a partial block is a config mistake.
	if cfg.Storage.Bucket != "" {
		if cfg.Storage.Endpoint == "" {
			errs = append(errs, errors.New("storage.endpoint is required when storage.bucket is set"))
		}
		if cfg.Storage.AccessKey == "" || cfg.Storage.SecretKey == "" {
			errs = append(errs, errors.New("storage.access_key and storage.secret_key are required when storage.bucket is set"))
		}
	}

	if cfg.Reply.APIKey == "" {
		slog.Warn("reply.api_key is empty; every non-blocked note receives the static companion reply")
	}

	return errors.Join(errs...)
}

// validateProviderName logs a warning if name is non-empty and not found in
// the [ValidProviderNames] list for the given kind.
func validateProviderName(kind, name string) {
	if name == "" {
		return
	}
	known, ok := ValidProviderNames[kind]
	if !ok {
		return
	}
	if slices.Contains(known, name) {
		return
	}
	slog.Warn("unknown provider name — may be a typo or third-party provider",
		"kind", kind,
		"name", name,
		"known", known,
	)
}
