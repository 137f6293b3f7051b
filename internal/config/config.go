package config

import (
	"fmt"
	"log/slog"
	"time"

	"github.com/caarlos0/env/v11"
)

type Config struct {
	HTTPAddr     string        `env:"HTTP_ADDR" envDefault:":8080"`
	DBPath       string        `env:"DB_PATH" envDefault:"data/parties.db"`
	LogLevel     slog.Level    `env:"LOG_LEVEL" envDefault:"INFO"`
	SPADir       string        `env:"SPA_DIR" envDefault:"../web/dist"`
	PollInterval time.Duration `env:"POLL_INTERVAL" envDefault:"1500ms"`
	ScanRate     float64       `env:"SCAN_RATE_LIMIT" envDefault:"20"`
	ScanBurst    int           `env:"SCAN_BURST" envDefault:"40"`
	Remote       Remote        `envPrefix:"REMOTE_"`
}

// Remote holds the connection parameters of the replicated store. All three
// must be set for the remote backend to be selected.
type Remote struct {
	URL       string `env:"URL"`
	ProjectID string `env:"PROJECT_ID"`
	APIKey    string `env:"API_KEY"`
}

func Load() (*Config, error) {
	cfg, err := env.ParseAs[Config]()
	if err != nil {
		return nil, fmt.Errorf("parsing environment: %w", err)
	}
	if cfg.PollInterval <= 0 {
		return nil, fmt.Errorf("POLL_INTERVAL must be positive, got %s", cfg.PollInterval)
	}
	return &cfg, nil
}
