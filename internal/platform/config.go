package platform

import (
	"fmt"

	"github.com/caarlos0/env/v11"
	"github.com/go-playground/validator/v10"
)

// EnvConfig is the store configuration read from the environment.
type EnvConfig struct {
	Path      string `env:"PRODUCTBAKER_PATH" envDefault:"."`
	Adapter   string `env:"PRODUCTBAKER_ADAPTER" envDefault:"sqlite" validate:"oneof=sqlite fs memory redis"`
	Format    string `env:"PRODUCTBAKER_FORMAT" envDefault:"json" validate:"oneof=json yaml"`
	RedisURL  string `env:"PRODUCTBAKER_REDIS_URL" validate:"required_if=Adapter redis,omitempty,url"`
	Quota     int64  `env:"PRODUCTBAKER_QUOTA" validate:"min=0"`
	ReadOnly  bool   `env:"PRODUCTBAKER_READ_ONLY"`
	DevSafety bool   `env:"PRODUCTBAKER_DEV_SAFETY" envDefault:"true"`
}

// LoadEnvConfig parses and validates the PRODUCTBAKER_* variables.
func LoadEnvConfig() (EnvConfig, error) {
	var cfg EnvConfig
	if err := env.Parse(&cfg); err != nil {
		return EnvConfig{}, fmt.Errorf("failed to parse environment: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return EnvConfig{}, err
	}
	return cfg, nil
}

// Validate checks the configuration.
func (c EnvConfig) Validate() error {
	if err := validator.New().Struct(c); err != nil {
		return fmt.Errorf("config validation failed: %w", err)
	}
	return nil
}

// Options converts the configuration into store options.
func (c EnvConfig) Options() []Option {
	return []Option{
		WithAdapter(c.Adapter),
		WithFormat(c.Format),
		WithRedisURL(c.RedisURL),
		WithQuota(c.Quota),
		WithReadOnly(c.ReadOnly),
		WithDevSafety(c.DevSafety),
	}
}
