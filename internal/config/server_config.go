package config

import "time"

const (
	defaultServerAddr     = ":8080"
	defaultShutdownPeriod = 10 * time.Second
)

type ServerConfig struct {
	Addr           string        `yaml:"addr" json:"addr"`
	ShutdownPeriod time.Duration `yaml:"shutdownPeriod" json:"shutdownPeriod"`
}

func (s *ServerConfig) applyDefaults() {
	if s.Addr == "" {
		s.Addr = defaultServerAddr
	}
	if s.ShutdownPeriod <= 0 {
		s.ShutdownPeriod = defaultShutdownPeriod
	}
}
