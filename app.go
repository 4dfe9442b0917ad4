package main

import (
	"context"
	"fmt"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/matheuscscp/technews-auth/internal/config"
	"github.com/matheuscscp/technews-auth/internal/issuer"
	"github.com/matheuscscp/technews-auth/internal/logging"
	"github.com/matheuscscp/technews-auth/internal/metrics"
	"github.com/matheuscscp/technews-auth/internal/store"
)

// app holds what every command needs.
type app struct {
	conf      *config.Config
	retriever *issuer.KeyRetriever
	issuer    *issuer.TokenIssuer
	close     func()
}

func newApp(ctx context.Context, configFile string, promRegisterer prometheus.Registerer) (*app, error) {
	var conf *config.Config
	var err error
	if configFile != "" {
		conf, err = config.LoadFile(configFile)
	} else {
		conf, err = config.Load()
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}

	if err := logging.LoadLevel(conf.LogLevel); err != nil {
		return nil, err
	}

	s, closeStore, err := store.New(ctx, &conf.Store)
	if err != nil {
		return nil, fmt.Errorf("failed to create key store: %w", err)
	}

	m := metrics.New(promRegisterer)
	retriever, err := issuer.NewKeyRetriever(s, &conf.Keys, m)
	if err != nil {
		closeStore()
		return nil, fmt.Errorf("failed to create key retriever: %w", err)
	}

	return &app{
		conf:      conf,
		retriever: retriever,
		issuer:    issuer.NewTokenIssuer(retriever, &conf.Token, m),
		close:     closeStore,
	}, nil
}
