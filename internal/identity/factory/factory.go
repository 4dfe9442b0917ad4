package factory

import (
	"fmt"

	"github.com/matheuscscp/technews-auth/internal/config"
	"github.com/matheuscscp/technews-auth/internal/identity"
	"github.com/matheuscscp/technews-auth/internal/identity/static"
	"github.com/matheuscscp/technews-auth/internal/identity/upstream"
)

func New(conf *config.IdentityConfig) (identity.Interface, error) {
	switch conf.Provider {
	case config.IdentityProviderStatic:
		return static.New(conf)
	case config.IdentityProviderUpstream:
		return upstream.New(&conf.Upstream)
	default:
		return nil, fmt.Errorf("unsupported identity provider: %s", conf.Provider)
	}
}
