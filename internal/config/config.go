// Package config loads client settings from the environment.
package config

import (
	"errors"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"

	"github.com/HE-Arc/Mind-vs-Wild/internal/credstore"
)

// Config is the process configuration.
type Config struct {
	APIURL          string        `env:"MVW_API_URL"          envDefault:"http://127.0.0.1:8000"`
	FrontendURL     string        `env:"MVW_FRONTEND_URL"     envDefault:"http://localhost:5173"`
	CredentialStore string        `env:"MVW_CREDENTIAL_STORE" envDefault:"file"`
	CredentialPath  string        `env:"MVW_CREDENTIAL_PATH"`
	HTTPTimeout     time.Duration `env:"MVW_HTTP_TIMEOUT"     envDefault:"30s"`
	LogFile         string        `env:"MVW_LOG_FILE"`
	LogLevel        string        `env:"MVW_LOG_LEVEL"        envDefault:"info"`
}

// Load parses the environment and validates the result.
func Load() (Config, error) {
	var cfg Config
	if err := env.Parse(&cfg); err != nil {
		return Config{}, fmt.Errorf("parse env: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate checks the settings that would otherwise fail late.
func (c Config) Validate() error {
	var errs []error
	for name, raw := range map[string]string{"MVW_API_URL": c.APIURL, "MVW_FRONTEND_URL": c.FrontendURL} {
		u, err := url.Parse(raw)
		if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
			errs = append(errs, fmt.Errorf("%s: want an http(s) URL, got %q", name, raw))
		}
	}
	switch c.StoreKind() {
	case credstore.KindFile, credstore.KindSQLite, credstore.KindMemory:
	default:
		errs = append(errs, fmt.Errorf("MVW_CREDENTIAL_STORE: unknown backend %q", c.CredentialStore))
	}
	if c.HTTPTimeout <= 0 {
		errs = append(errs, fmt.Errorf("MVW_HTTP_TIMEOUT: must be positive, got %s", c.HTTPTimeout))
	}
	if err := errors.Join(errs...); err != nil {
		return fmt.Errorf("config: %w", err)
	}
	return nil
}

// StoreKind returns the credential backend.
func (c Config) StoreKind() credstore.Kind {
	return credstore.Kind(strings.ToLower(c.CredentialStore))
}
