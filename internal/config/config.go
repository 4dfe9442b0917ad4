package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

const (
	defaultConfigFile = "/etc/technews-auth/config/config.yaml"
	configFileEnv     = "TECHNEWS_AUTH_CONFIG"
)

type Config struct {
	Server   ServerConfig   `yaml:"server" json:"server"`
	Keys     KeysConfig     `yaml:"keys" json:"keys"`
	Token    TokenConfig    `yaml:"token" json:"token"`
	Store    StoreConfig    `yaml:"store" json:"store"`
	Identity IdentityConfig `yaml:"identity" json:"identity"`

	// LogLevel is overridden by the LOG_LEVEL environment variable.
	LogLevel string `yaml:"logLevel" json:"logLevel"`
}

func Load() (*Config, error) {
	fileName := defaultConfigFile
	if fn := os.Getenv(configFileEnv); fn != "" {
		fileName = fn
	}
	return LoadFile(fileName)
}

func LoadFile(fileName string) (*Config, error) {
	f, err := os.Open(fileName)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	var cfg Config
	if err := yaml.NewDecoder(f).Decode(&cfg); err != nil {
		return nil, fmt.Errorf("failed to decode config file '%s': %w", fileName, err)
	}
	if err := cfg.ValidateAndInitialize(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) ValidateAndInitialize() error {
	c.Server.applyDefaults()
	if err := c.Keys.validateAndInitialize(); err != nil {
		return err
	}
	if err := c.Token.validateAndInitialize(); err != nil {
		return err
	}
	if err := c.Store.validateAndInitialize(); err != nil {
		return err
	}
	if err := c.Identity.validateAndInitialize(); err != nil {
		return err
	}
	return nil
}
