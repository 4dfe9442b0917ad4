package logging

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
)

const (
	levelEnv        = "LOG_LEVEL"
	requestIDHeader = "X-Request-Id"
)

type contextKeyLogger struct{}

func init() {
	logrus.SetFormatter(&logrus.JSONFormatter{
		TimestampFormat: time.RFC3339Nano,
	})
}

// LoadLevel sets the global level from LOG_LEVEL, falling back to configured
// and then to info.
func LoadLevel(configured string) error {
	source := "logLevel"
	logLevel := configured
	if env := os.Getenv(levelEnv); env != "" {
		source, logLevel = levelEnv, env
	}
	if logLevel == "" {
		logLevel = logrus.InfoLevel.String()
	}
	level, err := logrus.ParseLevel(logLevel)
	if err != nil {
		allLevels := make([]string, 0, len(logrus.AllLevels))
		for _, l := range logrus.AllLevels {
			allLevels = append(allLevels, l.String())
		}
		logrus.SetLevel(logrus.InfoLevel)
		return fmt.Errorf("invalid %s '%s', must be one of [%s]", source, logLevel, strings.Join(allLevels, ", "))
	}
	logrus.SetLevel(level)
	return nil
}

// ForRequest returns the logger for an incoming request. The request ID is
// taken from the X-Request-Id header when the client sent one.
func ForRequest(r *http.Request) logrus.FieldLogger {
	requestID := r.Header.Get(requestIDHeader)
	if requestID == "" {
		requestID = uuid.NewString()
	}
	return logrus.WithField("http", logrus.Fields{
		"requestID":  requestID,
		"host":       r.Host,
		"method":     r.Method,
		"path":       r.URL.Path,
		"remoteAddr": r.RemoteAddr,
	})
}

func FromRequest(r *http.Request) logrus.FieldLogger {
	return FromContext(r.Context())
}

func FromContext(ctx context.Context) logrus.FieldLogger {
	if logger, ok := ctx.Value(contextKeyLogger{}).(logrus.FieldLogger); ok {
		return logger
	}
	return logrus.StandardLogger()
}

func IntoRequest(r *http.Request, logger logrus.FieldLogger) *http.Request {
	return r.WithContext(IntoContext(r.Context(), logger))
}

func IntoContext(ctx context.Context, logger logrus.FieldLogger) context.Context {
	return context.WithValue(ctx, contextKeyLogger{}, logger)
}
