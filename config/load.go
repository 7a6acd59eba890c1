package config

import (
	"github.com/ilyakaznacheev/cleanenv"
)

// Load reads the configuration from environment variables, falling back to
// the defaults declared on the struct tags.
func Load() (*Config, error) {
	var cfg Config
	if err := cleanenv.ReadEnv(&cfg); err != nil {
		return nil, err
	}
	return &cfg, nil
}
