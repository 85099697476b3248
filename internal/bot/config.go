package bot

import (
	coreconfig "github.com/Gsr1989/Aguascalientes/core/config"
)

// Config wraps the core configuration for the cmd runner.
type Config struct {
	core *coreconfig.Config
}

// LoadConfig reads the YAML config with env overrides.
func LoadConfig(path string) (*Config, error) {
	core, err := coreconfig.Load(path)
	if err != nil {
		return nil, err
	}
	return &Config{core: core}, nil
}

// CoreConfig exposes the embedded core configuration.
func (c *Config) CoreConfig() *coreconfig.Config { return c.core }
