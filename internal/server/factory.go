package server

import (
	"context"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/sirupsen/logrus"

	"github.com/matheuscscp/technews-auth/internal/config"
	"github.com/matheuscscp/technews-auth/internal/identity"
	"github.com/matheuscscp/technews-auth/internal/issuer"
)

func New(conf *config.Config, retriever *issuer.KeyRetriever, ti *issuer.TokenIssuer,
	idp identity.Interface, promRegisterer prometheus.Registerer, promGatherer prometheus.Gatherer) *http.Server {

	if conf.Token.Issuer == "" {
		logrus.Warn("token.issuer is not configured, tokens and discovery will use the request Host header as issuer")
	}

	api := newAPI(retriever, ti, idp, conf, time.Now)
	ready := func(ctx context.Context) error {
		_, err := retriever.Recent(ctx, 1)
		return err
	}
	return newServer(conf, api, ready, promRegisterer, promGatherer)
}
