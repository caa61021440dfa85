// Package config loads process configuration from the environment.
package config

import (
	"fmt"
	"strings"

	"github.com/caarlos0/env/v11"
)

const (
	StoreSQLite = "sqlite"
	StoreMemory = "memory"
)

// Server is the game server's process configuration. Game rules live in
// tuning.yaml and catalog.yaml under ConfigDir, not here.
type Server struct {
	Addr      string `env:"CHATWARS_ADDR" envDefault:":8080"`
	DataDir   string `env:"CHATWARS_DATA_DIR" envDefault:"./data"`
	ConfigDir string `env:"CHATWARS_CONFIG_DIR" envDefault:"./configs"`
	Store     string `env:"CHATWARS_STORE" envDefault:"sqlite"`
	Audit     bool   `env:"CHATWARS_AUDIT" envDefault:"true"`

	LogLevel  string `env:"LOG_LEVEL" envDefault:"info"`
	LogFormat string `env:"LOG_FORMAT" envDefault:"json"`
}

// ParseEnv loads configuration from environment variables.
func ParseEnv(target any) error {
	if err := env.Parse(target); err != nil {
		return fmt.Errorf("parse env: %w", err)
	}
	return nil
}

// LoadServer reads Server from the environment and validates it.
func LoadServer() (Server, error) {
	var cfg Server
	if err := ParseEnv(&cfg); err != nil {
		return Server{}, err
	}
	cfg.Normalize()
	if err := cfg.Validate(); err != nil {
		return Server{}, err
	}
	return cfg, nil
}

func (c *Server) Normalize() {
	c.Store = strings.ToLower(strings.TrimSpace(c.Store))
	c.LogFormat = strings.ToLower(strings.TrimSpace(c.LogFormat))
}

func (c Server) Validate() error {
	if strings.TrimSpace(c.Addr) == "" {
		return fmt.Errorf("config: empty listen address")
	}
	switch c.Store {
	case StoreSQLite:
		if strings.TrimSpace(c.DataDir) == "" {
			return fmt.Errorf("config: sqlite store needs a data dir")
		}
	case StoreMemory:
	default:
		return fmt.Errorf("config: unknown store %q (want sqlite or memory)", c.Store)
	}
	switch c.LogFormat {
	case "json", "text":
	default:
		return fmt.Errorf("config: unknown log format %q", c.LogFormat)
	}
	return nil
}
