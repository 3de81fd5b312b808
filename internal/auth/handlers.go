package auth

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/rs/zerolog"
	"github.com/savaki/campus-portal/internal/authz"
	apperrors "github.com/savaki/campus-portal/internal/errors"
	"github.com/savaki/campus-portal/internal/metrics"
	"github.com/savaki/campus-portal/internal/session"
)

// StateLedger records consumed state tokens so a replayed callback is
// rejected even when the browser still holds a valid state cookie.
type StateLedger interface {
	// Record stores state for ttl. It returns ErrStateReplayed when state
	// was already recorded.
	Record(ctx context.Context, state string, ttl time.Duration) error
}

// HandleLogin redirects to the identity provider and sets the state cookie.
func (a *Authenticator) HandleLogin(w http.ResponseWriter, r *http.Request) {
	logger := zerolog.Ctx(r.Context())

	req, err := a.BuildAuthorizationRequest()
	if err != nil {
		logger.Error().Err(err).Msg("Failed to build authorization request")
		http.Error(w, "Internal Server Error", http.StatusInternalServerError)
		return
	}

	http.SetCookie(w, req.StateCookie)
	metrics.LoginsStarted.Inc()

	logger.Info().
		Str("provider", a.oauthProvider.GetProviderType()).
		Msg("Redirecting to OAuth provider for login")
	http.Redirect(w, r, req.URL, http.StatusFound)
}

// HandleCallback completes the authorization code flow. On success every
// session cookie is written in this one response.
func (a *Authenticator) HandleCallback(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	logger := zerolog.Ctx(ctx)
	query := r.URL.Query()

	// state is single use whatever the outcome
	stored, stateErr := a.states.Consume(r)
	http.SetCookie(w, a.states.Expire())

	if providerErr := query.Get("error"); providerErr != "" {
		logger.Warn().Str("provider_error", providerErr).Msg("Identity provider returned an error")
		a.fail(w, r, metrics.OutcomeProviderError)
		return
	}

	received := query.Get("state")
	if stateErr == nil {
		stateErr = VerifyState(stored, received)
	}
	if stateErr != nil {
		logger.Warn().Err(stateErr).Msg("State verification failed")
		a.fail(w, r, metrics.OutcomeStateMismatch)
		return
	}

	if a.ledger != nil {
		if err := a.ledger.Record(ctx, received, StateTTL); err != nil {
			if errors.Is(err, apperrors.ErrStateReplayed) {
				logger.Warn().Msg("Replayed state rejected")
				a.fail(w, r, metrics.OutcomeStateReplayed)
				return
			}
			logger.Error().Err(err).Msg("Failed to record state")
			a.fail(w, r, metrics.OutcomeInternal)
			return
		}
	}

	code := query.Get("code")
	if code == "" {
		logger.Warn().Msg("Code not found in callback")
		a.fail(w, r, metrics.OutcomeMissingCode)
		return
	}

	tokens, err := withRetry(ctx, a, "exchange", func(ctx context.Context) (*ProviderTokens, error) {
		return a.ExchangeCode(ctx, code)
	})
	if err != nil {
		logger.Warn().Err(err).Msg("Failed to exchange code for token")
		a.fail(w, r, outcomeOf(err))
		return
	}

	identity, err := withRetry(ctx, a, "userinfo", func(ctx context.Context) (*Identity, error) {
		return a.FetchProfile(ctx, tokens)
	})
	if err != nil {
		logger.Warn().Err(err).Msg("Failed to fetch profile")
		a.fail(w, r, outcomeOf(err))
		return
	}

	profile := authz.Profile{
		Sub:   identity.SubjectID,
		Name:  identity.DisplayName,
		Email: identity.Email,
	}
	if err := a.authorizer.Authorize(profile); err != nil {
		// expected business outcome, not an error
		logger.Info().
			Str("sub", identity.SubjectID).
			Str("email", identity.Email).
			Msg("Login rejected for email domain")
		metrics.RecordLoginOutcome(metrics.OutcomeDomainRejected)
		http.Redirect(w, r, a.paths.Forbidden, http.StatusFound)
		return
	}

	cookies, err := a.codec.Encode(SessionFromIdentity(*identity, session.TrustVerified), session.EncodeOptions{
		Persist: a.persist,
	})
	if err != nil {
		logger.Error().Err(err).Msg("Failed to encode session")
		a.fail(w, r, metrics.OutcomeInternal)
		return
	}
	for _, cookie := range cookies {
		http.SetCookie(w, cookie)
	}

	logger.Info().Str("sub", identity.SubjectID).Msg("User authenticated successfully")
	metrics.RecordLoginOutcome(metrics.OutcomeAdmitted)
	http.Redirect(w, r, a.paths.Portal, http.StatusFound)
}

// fail sends the user to the generic failure page. Provider detail stays in
// the logs.
func (a *Authenticator) fail(w http.ResponseWriter, r *http.Request, outcome string) {
	metrics.RecordLoginOutcome(outcome)
	http.Redirect(w, r, a.paths.Failure, http.StatusFound)
}

func outcomeOf(err error) string {
	switch {
	case errors.Is(err, apperrors.ErrNetwork):
		return metrics.OutcomeNetwork
	case errors.Is(err, apperrors.ErrProviderRejected):
		return metrics.OutcomeProviderRejected
	case errors.Is(err, apperrors.ErrProfileUnavailable):
		return metrics.OutcomeProfile
	case errors.Is(err, apperrors.ErrMissingCode):
		return metrics.OutcomeMissingCode
	default:
		return metrics.OutcomeInternal
	}
}

// HandleProfile returns the session held in the request cookies as JSON.
// It enforces nothing; protected callers run the guard first.
func (a *Authenticator) HandleProfile(w http.ResponseWriter, r *http.Request) {
	s := a.codec.DecodeRequest(r)

	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("Cache-Control", "no-store")
	if err := json.NewEncoder(w).Encode(s); err != nil {
		zerolog.Ctx(r.Context()).Error().Err(err).Msg("Failed to write profile")
	}
}

// HandleLogout expires every session cookie and redirects home.
func (a *Authenticator) HandleLogout(w http.ResponseWriter, r *http.Request) {
	for _, cookie := range a.codec.Clear() {
		http.SetCookie(w, cookie)
	}
	metrics.Logouts.Inc()

	zerolog.Ctx(r.Context()).Info().Msg("Logging out user")
	http.Redirect(w, r, a.paths.Home, http.StatusFound)
}
