package config

import (
	"fmt"
	"time"

	"github.com/matheuscscp/technews-auth/internal/keys"
)

const (
	defaultKeyAlgorithm    = keys.AlgorithmRS256
	defaultKeyTTL          = 30 * 24 * time.Hour
	defaultKeyPublishCount = 5
)

type KeysConfig struct {
	// Algorithm of newly created keys. Stored keys of any supported
	// algorithm keep being published and are never converted.
	Algorithm string `yaml:"algorithm" json:"algorithm"`

	TTL time.Duration `yaml:"ttl" json:"ttl"`

	// PublishCount is how many of the most recent keys, expired or not, the
	// published key set carries.
	PublishCount int `yaml:"publishCount" json:"publishCount"`

	// PublishCacheTTL caches the published keys. Zero disables caching.
	PublishCacheTTL time.Duration `yaml:"publishCacheTTL" json:"publishCacheTTL"`
}

func (k *KeysConfig) validateAndInitialize() error {
	if k.Algorithm == "" {
		k.Algorithm = defaultKeyAlgorithm.String()
	}
	if k.TTL == 0 {
		k.TTL = defaultKeyTTL
	}
	if k.PublishCount == 0 {
		k.PublishCount = defaultKeyPublishCount
	}

	alg, err := keys.ParseAlgorithm(k.Algorithm)
	if err != nil {
		return fmt.Errorf("keys.algorithm is invalid: %w", err)
	}
	k.Algorithm = alg.String()
	if k.TTL < 0 {
		return fmt.Errorf("keys.ttl must be positive")
	}
	if k.PublishCount < 0 {
		return fmt.Errorf("keys.publishCount must be positive")
	}
	if k.PublishCacheTTL < 0 {
		return fmt.Errorf("keys.publishCacheTTL must not be negative")
	}
	return nil
}

func (k *KeysConfig) AlgorithmOrDefault() keys.Algorithm {
	alg, err := keys.ParseAlgorithm(k.Algorithm)
	if err != nil {
		return defaultKeyAlgorithm
	}
	return alg
}
