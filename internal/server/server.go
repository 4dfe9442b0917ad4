package server

import (
	"context"
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/matheuscscp/technews-auth/internal/config"
	"github.com/matheuscscp/technews-auth/internal/logging"
)

const readinessTimeout = 5 * time.Second

type statusRecorder struct {
	http.ResponseWriter
	statusCode int
}

func (s *statusRecorder) WriteHeader(statusCode int) {
	if s.statusCode == 0 {
		s.statusCode = statusCode
	}
	s.ResponseWriter.WriteHeader(statusCode)
}

func (s *statusRecorder) Unwrap() http.ResponseWriter { return s.ResponseWriter }

func (s *statusRecorder) status() int {
	if s.statusCode == 0 {
		return http.StatusOK
	}
	return s.statusCode
}

// newServer wraps api with request logging, request metrics and the health
// and metrics endpoints. ready may be nil.
func newServer(conf *config.Config, api http.Handler, ready func(context.Context) error,
	promRegisterer prometheus.Registerer, promGatherer prometheus.Gatherer) *http.Server {

	promHandler := promhttp.HandlerFor(promGatherer, promhttp.HandlerOpts{
		EnableOpenMetrics: true,
	})
	requestDurationSecs := prometheus.NewSummaryVec(prometheus.SummaryOpts{
		Name: "http_request_duration_seconds",
		Help: "Duration of HTTP requests in seconds",
	}, []string{"host", "method", "path", "status"})
	promRegisterer.MustRegister(requestDurationSecs)

	return &http.Server{
		Addr:              conf.Server.Addr,
		ReadHeaderTimeout: 10 * time.Second,
		Handler: http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			t := time.Now()
			sr := &statusRecorder{ResponseWriter: w}
			defer func() {
				requestDurationSecs.
					WithLabelValues(r.Host, r.Method, r.URL.Path, strconv.Itoa(sr.status())).
					Observe(time.Since(t).Seconds())
			}()

			w = sr
			r = logging.IntoRequest(r, logging.ForRequest(r))

			switch r.URL.Path {
			case "/healthz":
				w.WriteHeader(http.StatusOK)
			case "/readyz":
				if ready != nil {
					ctx, cancel := context.WithTimeout(r.Context(), readinessTimeout)
					defer cancel()
					if err := ready(ctx); err != nil {
						logging.FromRequest(r).WithError(err).Warn("not ready")
						w.WriteHeader(http.StatusServiceUnavailable)
						return
					}
				}
				w.WriteHeader(http.StatusOK)
			case "/metrics":
				promHandler.ServeHTTP(w, r)
			default:
				api.ServeHTTP(w, r)
			}
		}),
	}
}
