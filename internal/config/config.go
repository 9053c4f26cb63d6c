package config

import (
	"fmt"

	"github.com/caarlos0/env/v11"
)

// Config holds the environment-driven service settings.
type Config struct {
	AppName      string `env:"APP_NAME" envDefault:"Pressline Content Server"`
	Port         string `env:"PORT" envDefault:"8080"`
	Env          string `env:"ENV" envDefault:"DEV"`
	DatabasePath string `env:"DB_PATH" envDefault:"./data/content.db"`
	LogLevel     string `env:"LOG_LEVEL" envDefault:"info"`

	AllowedOrigins []string `env:"ALLOWED_ORIGINS" envSeparator:"," envDefault:"*"`
}

// Load parses the configuration from the process environment.
func Load() (Config, error) {
	var cfg Config
	if err := env.Parse(&cfg); err != nil {
		return Config{}, fmt.Errorf("parse config: %w", err)
	}
	return cfg, nil
}

// Addr returns the listen address for the HTTP server.
func (c Config) Addr() string {
	if len(c.Port) > 0 && c.Port[0] == ':' {
		return c.Port
	}
	return fmt.Sprintf(":%s", c.Port)
}

// IsDev reports whether the server runs in development mode.
func (c Config) IsDev() bool {
	return c.Env == "DEV"
}
