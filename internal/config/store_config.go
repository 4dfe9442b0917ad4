package config

import (
	"fmt"
	"time"
)

const (
	StoreBackendMemory   = "memory"
	StoreBackendFile     = "file"
	StoreBackendPostgres = "postgres"
	StoreBackendRedis    = "redis"

	defaultRedisPrefix  = "technews-auth:"
	defaultRedisLockTTL = 10 * time.Second
)

type StoreConfig struct {
	Backend  string              `yaml:"backend" json:"backend"`
	File     FileStoreConfig     `yaml:"file" json:"file"`
	Postgres PostgresStoreConfig `yaml:"postgres" json:"postgres"`
	Redis    RedisStoreConfig    `yaml:"redis" json:"redis"`
}

type FileStoreConfig struct {
	Dir string `yaml:"dir" json:"dir"`
}

type PostgresStoreConfig struct {
	DSN string `yaml:"dsn" json:"dsn"`
}

type RedisStoreConfig struct {
	Addr     string        `yaml:"addr" json:"addr"`
	Password string        `yaml:"password" json:"password"`
	DB       int           `yaml:"db" json:"db"`
	Prefix   string        `yaml:"prefix" json:"prefix"`
	LockTTL  time.Duration `yaml:"lockTTL" json:"lockTTL"`
}

func (s *StoreConfig) validateAndInitialize() error {
	if s.Backend == "" {
		s.Backend = StoreBackendMemory
	}

	switch s.Backend {
	case StoreBackendMemory:
	case StoreBackendFile:
		if s.File.Dir == "" {
			return fmt.Errorf("store.file.dir must be set")
		}
	case StoreBackendPostgres:
		if s.Postgres.DSN == "" {
			return fmt.Errorf("store.postgres.dsn must be set")
		}
	case StoreBackendRedis:
		if s.Redis.Addr == "" {
			return fmt.Errorf("store.redis.addr must be set")
		}
		if s.Redis.Prefix == "" {
			s.Redis.Prefix = defaultRedisPrefix
		}
		if s.Redis.LockTTL == 0 {
			s.Redis.LockTTL = defaultRedisLockTTL
		}
		if s.Redis.LockTTL < 0 {
			return fmt.Errorf("store.redis.lockTTL must be positive")
		}
	default:
		return fmt.Errorf("store.backend must be one of [%s, %s, %s, %s], got '%s'",
			StoreBackendMemory, StoreBackendFile, StoreBackendPostgres, StoreBackendRedis, s.Backend)
	}
	return nil
}
