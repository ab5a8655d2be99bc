package config

import (
	"errors"
	"fmt"
	"time"
	_ "time/tzdata"

	"github.com/caarlos0/env/v11"
)

type Config struct {
	Token        string  `env:"TOKEN,required,notEmpty"`
	AllowedUsers []int64 `env:"ALLOWED_USERS"`
	DBPath       string  `env:"DB_PATH"                 envDefault:"db.sqlite"`
	OpenAIAPIKey string  `env:"OPENAI_API_KEY"`
	OpenAIModel  string  `env:"OPENAI_MODEL"`
	SourcesFile  string  `env:"SOURCES_FILE"`
	MetricsAddr  string  `env:"METRICS_ADDR"`
	Timezone     string  `env:"TIMEZONE"                envDefault:"UTC"`

	BatchCap           int           `env:"BATCH_CAP"            envDefault:"5"`
	Workers            int           `env:"WORKERS"              envDefault:"4"`
	TickInterval       time.Duration `env:"TICK_INTERVAL"        envDefault:"30s"`
	RefreshReuseWindow time.Duration `env:"REFRESH_REUSE_WINDOW" envDefault:"1m"`
	CycleTimeout       time.Duration `env:"CYCLE_TIMEOUT"        envDefault:"5m"`
	ShutdownGrace      time.Duration `env:"SHUTDOWN_GRACE"       envDefault:"30s"`
}

func LoadConfig() (Config, error) {
	cfg, err := env.ParseAs[Config]()
	if err != nil {
		return Config{}, fmt.Errorf("parse env: %w", err)
	}

	if err = cfg.validate(); err != nil {
		return Config{}, err
	}

	return cfg, nil
}

// Location is the timezone that defines "today" for items.
func (c Config) Location() (*time.Location, error) {
	loc, err := time.LoadLocation(c.Timezone)
	if err != nil {
		return nil, fmt.Errorf("load timezone %q: %w", c.Timezone, err)
	}

	return loc, nil
}

func (c Config) validate() error {
	var errs []error

	if c.BatchCap <= 0 {
		errs = append(errs, fmt.Errorf("BATCH_CAP must be positive, got %d", c.BatchCap))
	}
	if c.Workers <= 0 {
		errs = append(errs, fmt.Errorf("WORKERS must be positive, got %d", c.Workers))
	}
	if c.TickInterval <= 0 {
		errs = append(errs, fmt.Errorf("TICK_INTERVAL must be positive, got %s", c.TickInterval))
	}
	if c.RefreshReuseWindow < 0 {
		errs = append(errs, fmt.Errorf("REFRESH_REUSE_WINDOW must not be negative, got %s", c.RefreshReuseWindow))
	}
	if c.CycleTimeout <= 0 {
		errs = append(errs, fmt.Errorf("CYCLE_TIMEOUT must be positive, got %s", c.CycleTimeout))
	}
	if c.ShutdownGrace <= 0 {
		errs = append(errs, fmt.Errorf("SHUTDOWN_GRACE must be positive, got %s", c.ShutdownGrace))
	}
	if _, err := c.Location(); err != nil {
		errs = append(errs, err)
	}

	return errors.Join(errs...)
}
