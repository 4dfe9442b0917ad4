package config

import (
	"fmt"
	"net/url"
	"strings"
	"time"
)

const defaultTokenLifetime = time.Hour

type TokenConfig struct {
	// Issuer is the "iss" claim. When empty, the base URL of the request
	// that triggered the issuance is used.
	Issuer   string        `yaml:"issuer" json:"issuer"`
	Lifetime time.Duration `yaml:"lifetime" json:"lifetime"`
}

func (t *TokenConfig) validateAndInitialize() error {
	if t.Lifetime == 0 {
		t.Lifetime = defaultTokenLifetime
	}
	if t.Lifetime < time.Second {
		return fmt.Errorf("token.lifetime must be at least one second")
	}
	t.Issuer = strings.TrimRight(t.Issuer, "/")
	if t.Issuer != "" {
		u, err := url.Parse(t.Issuer)
		if err != nil || u.Scheme == "" || u.Host == "" {
			return fmt.Errorf("token.issuer must be an absolute URL: '%s'", t.Issuer)
		}
	}
	return nil
}
