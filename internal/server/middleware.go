package server

import (
	"fmt"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"github.com/segmentio/ksuid"
)

// RequestIDHeader carries the request id back to the client.
const RequestIDHeader = "X-Request-Id"

// LoggingMiddleware logs details about each request and response. The
// request logger carries a ksuid request_id.
func LoggingMiddleware(logger zerolog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			requestID := ksuid.New().String()

			reqLogger := logger.With().Str("request_id", requestID).Logger()
			ctx := reqLogger.WithContext(r.Context())
			r = r.WithContext(ctx)

			w.Header().Set(RequestIDHeader, requestID)
			rw := &responseWriter{ResponseWriter: w, statusCode: http.StatusOK}

			// query strings are omitted; the callback carries the code
			zerolog.Ctx(ctx).Info().
				Str("method", r.Method).
				Str("path", r.URL.Path).
				Str("remote_addr", r.RemoteAddr).
				Str("user_agent", r.UserAgent()).
				Msg("Incoming request")

			next.ServeHTTP(rw, r)

			zerolog.Ctx(ctx).Info().
				Str("method", r.Method).
				Str("path", r.URL.Path).
				Int("status_code", rw.statusCode).
				Dur("duration", time.Since(start)).
				Msg("Request completed")
		})
	}
}

// responseWriter wraps http.ResponseWriter to capture status code
type responseWriter struct {
	http.ResponseWriter
	statusCode int
}

func (rw *responseWriter) WriteHeader(code int) {
	rw.statusCode = code
	rw.ResponseWriter.WriteHeader(code)
}

// StripEnvPrefix removes the /{env} stage prefix API Gateway adds to paths.
func StripEnvPrefix(env string, next http.Handler) http.Handler {
	if env == "" {
		return next
	}

	prefix := "/" + env
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == prefix || strings.HasPrefix(r.URL.Path, prefix+"/") {
			r.URL.Path = strings.TrimPrefix(r.URL.Path, prefix)
		}
		if r.URL.Path == "" {
			r.URL.Path = "/"
		}

		next.ServeHTTP(w, r)
	})
}

// BuildCallbackURL derives the OAuth redirect URI when none is configured.
// A port selects the local server; otherwise the custom domain is used.
// It returns "" when neither is known.
func BuildCallbackURL(customDomain, port string) string {
	if port != "" {
		return fmt.Sprintf("http://localhost:%s/login/callback", port)
	}
	if customDomain != "" {
		return fmt.Sprintf("https://%s/login/callback", customDomain)
	}
	return ""
}

// Wrap applies the standard middleware stack: strip env prefix, then logging.
func Wrap(logger zerolog.Logger, env string, router http.Handler) http.Handler {
	return LoggingMiddleware(logger)(StripEnvPrefix(env, router))
}

// Environment returns ENV or ENVIRONMENT.
func Environment() string {
	if env := os.Getenv("ENV"); env != "" {
		return env
	}
	return os.Getenv("ENVIRONMENT")
}
