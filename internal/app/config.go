// Package app holds shared configuration loading for the command-line tools.
package app

import (
	"os"

	"github.com/cristalhq/aconfig"
	"github.com/cristalhq/aconfig/aconfigyaml"
	"github.com/go-faster/errors"
)

// Config holds the complete tool configuration, loadable from environment
// variables (WASHLY_ prefix), flags, or YAML config files.
type Config struct {
	DatabaseURL string `usage:"PostgreSQL connection URL (WASHLY_DATABASE_URL or DATABASE_URL)" flag:"database-url"`
	Reprice     RepriceConfig
}

// RepriceConfig controls the bulk recompute tool.
type RepriceConfig struct {
	Workers int `default:"8" usage:"Concurrent order reprice workers"`
}

// LoadConfig loads configuration from environment variables, YAML config
// files, and applies platform fallbacks.
func LoadConfig() (*Config, error) {
	var cfg Config
	loader := aconfig.LoaderFor(&cfg, aconfig.Config{
		EnvPrefix: "WASHLY",
		Files:     []string{"config.yaml", "/etc/washly/config.yaml"},
		FileDecoders: map[string]aconfig.FileDecoder{
			".yaml": aconfigyaml.New(),
		},
	})
	if err := loader.Load(); err != nil {
		return nil, errors.Wrap(err, "load config")
	}

	if cfg.DatabaseURL == "" {
		cfg.DatabaseURL = os.Getenv("DATABASE_URL")
	}
	if cfg.DatabaseURL == "" {
		return nil, errors.New("database URL is required: set WASHLY_DATABASE_URL or DATABASE_URL")
	}

	return &cfg, nil
}
