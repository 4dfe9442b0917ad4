package server

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/matheuscscp/technews-auth/internal/config"
	"github.com/matheuscscp/technews-auth/internal/constants"
	"github.com/matheuscscp/technews-auth/internal/identity"
	"github.com/matheuscscp/technews-auth/internal/issuer"
	"github.com/matheuscscp/technews-auth/internal/jwks"
	"github.com/matheuscscp/technews-auth/internal/keys"
	"github.com/matheuscscp/technews-auth/internal/logging"
)

const (
	pathToken               = "/token"
	pathLogin               = "/api/auth/user/login"
	pathOpenIDConfiguration = "/.well-known/openid-configuration"
	pathJWKS                = "/.well-known/jwks.json"

	maxRequestBodyBytes = 1 << 20
)

type recentKeys interface {
	Recent(ctx context.Context, n int) ([]keys.Key, error)
}

type tokenIssuer interface {
	IssueCurrent(ctx context.Context, req issuer.Request, now time.Time) (*issuer.AccessToken, error)
}

type tokenRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

func newAPI(rk recentKeys, ti tokenIssuer, idp identity.Interface, conf *config.Config,
	nowFunc func() time.Time) http.Handler {

	mux := http.NewServeMux()

	token := func(w http.ResponseWriter, r *http.Request) {
		l := logging.FromRequest(r)

		var req tokenRequest
		dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxRequestBodyBytes))
		if err := dec.Decode(&req); err != nil {
			l.WithError(err).Debug("failed to parse request body as JSON")
			respondError(w, r, http.StatusBadRequest, constants.ErrorCodeInvalidRequest)
			return
		}
		if strings.TrimSpace(req.Email) == "" || req.Password == "" {
			respondError(w, r, http.StatusBadRequest, constants.ErrorCodeInvalidRequest)
			return
		}

		subject, err := idp.Authenticate(r.Context(), req.Email, req.Password)
		switch {
		case errors.Is(err, identity.ErrInvalidCredentials):
			respondError(w, r, http.StatusBadRequest, constants.ErrorCodeInvalidRequest)
			return
		case errors.Is(err, identity.ErrLockedOut):
			respondError(w, r, http.StatusForbidden, constants.ErrorCodeLockedUser)
			return
		case err != nil:
			l.WithError(err).Error("failed to authenticate user")
			respondError(w, r, http.StatusInternalServerError, constants.ErrorCodeInternal)
			return
		}

		at, err := ti.IssueCurrent(r.Context(), issuer.Request{
			SubjectID:   subject.ID,
			Email:       subject.Email,
			DisplayName: subject.Name,
			Issuer:      issuerURL(r, conf),
			Claims:      subject.Claims,
			Roles:       subject.Roles,
		}, nowFunc())
		if err != nil {
			l.WithError(err).Error("failed to issue access token")
			respondError(w, r, http.StatusInternalServerError, constants.ErrorCodeInternal)
			return
		}

		respondJSON(w, r, http.StatusOK, at)
	}
	mux.HandleFunc("POST "+pathToken, token)
	mux.HandleFunc("POST "+pathLogin, token)

	mux.HandleFunc("GET "+pathJWKS, func(w http.ResponseWriter, r *http.Request) {
		ks, err := rk.Recent(r.Context(), conf.Keys.PublishCount)
		if err != nil {
			logging.FromRequest(r).WithError(err).Error("failed to retrieve published keys")
			respondError(w, r, http.StatusInternalServerError, constants.ErrorCodeInternal)
			return
		}
		respondJSON(w, r, http.StatusOK, jwks.ToKeySet(ks))
	})

	mux.HandleFunc("GET "+pathOpenIDConfiguration, func(w http.ResponseWriter, r *http.Request) {
		algs := make([]string, 0, len(keys.Algorithms()))
		for _, alg := range keys.Algorithms() {
			algs = append(algs, alg.String())
		}
		iss := issuerURL(r, conf)
		respondJSON(w, r, http.StatusOK, map[string]any{
			"issuer":                                iss,
			"jwks_uri":                              iss + pathJWKS,
			"token_endpoint":                        iss + pathToken,
			"id_token_signing_alg_values_supported": algs,
		})
	})

	return withSecurityHeaders(mux)
}
