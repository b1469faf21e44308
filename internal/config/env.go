package config

import (
	"fmt"

	"github.com/caarlos0/env/v11"
)

// EnvPrefix prefixes every environment override, e.g. WEAKWORDS_STORE_PATH.
const EnvPrefix = "WEAKWORDS_"

// LoadEnv reads the overrides set in the environment.
func LoadEnv() (FileConfig, error) {
	return parseEnv(env.Options{Prefix: EnvPrefix})
}

func parseEnv(opts env.Options) (FileConfig, error) {
	var cfg FileConfig
	if err := env.ParseWithOptions(&cfg, opts); err != nil {
		return FileConfig{}, fmt.Errorf("parse env: %w", err)
	}
	return cfg, nil
}
