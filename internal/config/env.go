package config

import (
	"fmt"
	"path/filepath"
	"time"

	"github.com/caarlos0/env/v11"
)

// Settings are the process-level settings of the evolution binary.
type Settings struct {
	// Root is the storage root holding ledger.db.
	Root string `env:"EVOLUTION_ROOT" envDefault:"data"`
	// ConfigPath overrides <Root>/config.yaml.
	ConfigPath string        `env:"EVOLUTION_CONFIG"`
	Timeout    time.Duration `env:"EVOLUTION_TIMEOUT" envDefault:"30s"`
	LogLevel   string        `env:"EVOLUTION_LOG_LEVEL" envDefault:"info"`
}

// ParseEnv loads configuration from environment variables.
func ParseEnv(target any) error {
	if err := env.Parse(target); err != nil {
		return fmt.Errorf("parse env: %w", err)
	}
	return nil
}

// LoadSettings parses Settings from the environment.
func LoadSettings() (Settings, error) {
	var s Settings
	if err := ParseEnv(&s); err != nil {
		return Settings{}, err
	}
	return s, nil
}

// ResolvedConfigPath returns the config file path for these settings.
func (s Settings) ResolvedConfigPath() string {
	if s.ConfigPath != "" {
		return s.ConfigPath
	}
	return filepath.Join(s.Root, "config.yaml")
}

// DatabasePath returns the ledger database path under Root.
func (s Settings) DatabasePath() string {
	return filepath.Join(s.Root, "ledger.db")
}
