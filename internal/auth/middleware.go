package auth

import (
	"encoding/json"
	"net/http"

	"github.com/rs/zerolog"
	"github.com/savaki/campus-portal/internal/metrics"
	"github.com/savaki/campus-portal/internal/session"
)

// GuardKind is the outcome of an access check.
type GuardKind int

const (
	Allow GuardKind = iota
	RedirectLogin
	RedirectForbidden
)

func (k GuardKind) String() string {
	switch k {
	case Allow:
		return "allow"
	case RedirectLogin:
		return "login"
	case RedirectForbidden:
		return "forbidden"
	default:
		return "unknown"
	}
}

// GuardResult carries the decoded session when Kind is Allow.
type GuardResult struct {
	Kind    GuardKind
	Session session.Session
}

// Guard decides per request whether the session cookies grant access.
// Every request is evaluated from its own cookie header; nothing is cached.
type Guard struct {
	codec *session.Codec
}

// NewGuard returns a Guard reading cookies with codec.
func NewGuard(codec *session.Codec) *Guard {
	return &Guard{codec: codec}
}

// Check evaluates a raw Cookie header against the required trust level.
func (g *Guard) Check(cookieHeader string, required session.TrustLevel) GuardResult {
	return decide(g.codec.Decode(cookieHeader), required)
}

// CheckRequest is Check for r, logging malformed cookies.
func (g *Guard) CheckRequest(r *http.Request, required session.TrustLevel) GuardResult {
	return decide(g.codec.DecodeRequest(r), required)
}

func decide(s session.Session, required session.TrustLevel) GuardResult {
	switch {
	case !s.Authenticated():
		return GuardResult{Kind: RedirectLogin}
	case s.TrustLevel < required:
		return GuardResult{Kind: RedirectForbidden}
	default:
		return GuardResult{Kind: Allow, Session: s}
	}
}

// RequireTrust creates middleware that admits only sessions at or above level.
// If redirectOnFail is true (for document/HTML routes), it redirects to the login or forbidden page.
// If redirectOnFail is false (for API routes), it returns a 401 or 403 JSON response.
// The protected handler runs only on Allow, with the session in the request context.
func (a *Authenticator) RequireTrust(level session.TrustLevel, redirectOnFail bool) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			logger := zerolog.Ctx(r.Context())

			result := a.guard.CheckRequest(r, level)
			metrics.RecordGuardDecision(result.Kind.String())

			if result.Kind != Allow {
				a.handleAuthFailure(w, r, redirectOnFail, result.Kind)
				return
			}

			logger.Debug().
				Str("path", r.URL.Path).
				Str("username", result.Session.Username).
				Stringer("trust_level", result.Session.TrustLevel).
				Msg("Authenticated request")

			next.ServeHTTP(w, r.WithContext(session.WithContext(r.Context(), result.Session)))
		})
	}
}

// handleAuthFailure handles authentication failures based on the request type
func (a *Authenticator) handleAuthFailure(w http.ResponseWriter, r *http.Request, redirectOnFail bool, kind GuardKind) {
	logger := zerolog.Ctx(r.Context())

	if redirectOnFail {
		target := a.paths.Login
		if kind == RedirectForbidden {
			target = a.paths.Forbidden
		}
		logger.Info().
			Str("path", r.URL.Path).
			Str("reason", kind.String()).
			Str("redirect", target).
			Msg("Redirecting unauthorized request")
		http.Redirect(w, r, target, http.StatusFound)
		return
	}

	status, message := http.StatusUnauthorized, "login required"
	if kind == RedirectForbidden {
		status, message = http.StatusForbidden, "insufficient trust level"
	}
	logger.Warn().
		Str("path", r.URL.Path).
		Str("reason", kind.String()).
		Msg("API authentication failed")
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(map[string]string{
		"error": message,
	})
}
