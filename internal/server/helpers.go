package server

import (
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/matheuscscp/technews-auth/internal/config"
	"github.com/matheuscscp/technews-auth/internal/logging"
)

type apiError struct {
	ErrorCode string `json:"errorCode"`
}

type errorResponse struct {
	Errors []apiError `json:"errors"`
}

func baseURL(r *http.Request) string {
	return fmt.Sprintf("https://%s", r.Host)
}

// issuerURL prefers the configured issuer over the request's host.
func issuerURL(r *http.Request, conf *config.Config) string {
	if conf.Token.Issuer != "" {
		return conf.Token.Issuer
	}
	return baseURL(r)
}

func respondJSON(w http.ResponseWriter, r *http.Request, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		logging.FromRequest(r).WithError(err).Error("failed to write response")
	}
}

func respondError(w http.ResponseWriter, r *http.Request, status int, errorCode string) {
	respondJSON(w, r, status, errorResponse{
		Errors: []apiError{{ErrorCode: errorCode}},
	})
}
