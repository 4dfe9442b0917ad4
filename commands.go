package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"

	"github.com/matheuscscp/technews-auth/internal/identity"
	"github.com/matheuscscp/technews-auth/internal/identity/factory"
	"github.com/matheuscscp/technews-auth/internal/issuer"
	"github.com/matheuscscp/technews-auth/internal/jwks"
	"github.com/matheuscscp/technews-auth/internal/server"
)

type ServeCmd struct{}

func (*ServeCmd) Run(ctx context.Context, cli *CLI) error {
	a, err := newApp(ctx, cli.Config, prometheus.DefaultRegisterer)
	if err != nil {
		return err
	}
	defer a.close()

	idp, err := factory.New(&a.conf.Identity)
	if err != nil {
		return fmt.Errorf("failed to create identity provider: %w", err)
	}

	s := server.New(a.conf, a.retriever, a.issuer, idp,
		prometheus.DefaultRegisterer, prometheus.DefaultGatherer)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		logrus.WithField("addr", s.Addr).Info("server started")
		if err := s.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("server failed: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		logrus.Info("shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), a.conf.Server.ShutdownPeriod)
		defer cancel()
		if err := s.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("failed to shut down server: %w", err)
		}
		return nil
	})
	return g.Wait()
}

type JWKSCmd struct{}

func (*JWKSCmd) Run(ctx context.Context, cli *CLI, out io.Writer) error {
	a, err := newApp(ctx, cli.Config, prometheus.NewRegistry())
	if err != nil {
		return err
	}
	defer a.close()

	ks, err := a.retriever.Recent(ctx, a.conf.Keys.PublishCount)
	if err != nil {
		return fmt.Errorf("failed to retrieve published keys: %w", err)
	}
	enc := json.NewEncoder(out)
	enc.SetIndent("", "  ")
	return enc.Encode(jwks.ToKeySet(ks))
}

type TokenCmd struct {
	Email  string `arg:"" help:"Email of a user from the identity section of the configuration."`
	Issuer string `help:"Issuer claim. Defaults to token.issuer from the configuration."`
}

func (t *TokenCmd) Run(ctx context.Context, cli *CLI, out io.Writer) error {
	a, err := newApp(ctx, cli.Config, prometheus.NewRegistry())
	if err != nil {
		return err
	}
	defer a.close()

	iss := t.Issuer
	if iss == "" {
		iss = a.conf.Token.Issuer
	}
	if iss == "" {
		return fmt.Errorf("--issuer must be set when token.issuer is not configured")
	}

	email := strings.ToLower(strings.TrimSpace(t.Email))
	for _, u := range a.conf.Identity.Users {
		if u.Email != email {
			continue
		}
		claims := make([]identity.Claim, 0, len(u.Claims))
		for _, c := range u.Claims {
			claims = append(claims, identity.Claim{Type: c.Type, Value: c.Value})
		}
		at, err := a.issuer.IssueCurrent(ctx, issuer.Request{
			SubjectID:   u.ID,
			Email:       u.Email,
			DisplayName: u.Name,
			Issuer:      iss,
			Claims:      claims,
			Roles:       u.Roles,
		}, time.Now())
		if err != nil {
			return err
		}
		enc := json.NewEncoder(out)
		enc.SetIndent("", "  ")
		return enc.Encode(at)
	}
	return fmt.Errorf("no configured user with email '%s'", email)
}
