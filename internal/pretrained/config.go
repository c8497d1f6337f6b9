package pretrained

import (
	"fmt"

	"github.com/caarlos0/env/v11"

	"github.com/born-ml/pretrained/internal/serialization"
)

// Config holds load defaults taken from the environment.
type Config struct {
	Device        string `env:"PRETRAINED_DEVICE"         envDefault:"cpu"`
	IgnoreMissing bool   `env:"PRETRAINED_IGNORE_MISSING" envDefault:"true"`
	SkipChecksum  bool   `env:"PRETRAINED_SKIP_CHECKSUM"`
}

// ConfigFromEnv parses Config from environment variables.
func ConfigFromEnv() (Config, error) {
	var cfg Config
	if err := env.Parse(&cfg); err != nil {
		return Config{}, fmt.Errorf("parse env: %w", err)
	}
	return cfg, nil
}

// Options returns the load options cfg describes.
func (c Config) Options() []Option {
	return []Option{
		WithLocation(c.Device),
		WithIgnoreMissing(c.IgnoreMissing),
		WithReaderOptions(serialization.ReaderOptions{SkipChecksumValidation: c.SkipChecksum}),
	}
}
