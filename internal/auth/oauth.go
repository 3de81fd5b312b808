package auth

import (
	"context"
	"net/http"
	"time"

	"github.com/cenkalti/backoff/v5"
	"github.com/coreos/go-oidc/v3/oidc"
	"github.com/rs/zerolog"
	"github.com/savaki/campus-portal/internal/authz"
	apperrors "github.com/savaki/campus-portal/internal/errors"
	"github.com/savaki/campus-portal/internal/session"
	"golang.org/x/oauth2"
)

const (
	defaultProviderTimeout  = 10 * time.Second
	defaultProviderAttempts = 2
	defaultRetryInterval    = 200 * time.Millisecond
)

// Paths are the local redirect targets of the login flow.
type Paths struct {
	Home      string
	Portal    string
	Login     string
	Forbidden string
	Failure   string
}

func (p Paths) withDefaults() Paths {
	if p.Home == "" {
		p.Home = "/"
	}
	if p.Portal == "" {
		p.Portal = "/portal/"
	}
	if p.Login == "" {
		p.Login = "/login/initiate"
	}
	if p.Forbidden == "" {
		p.Forbidden = "/forbidden"
	}
	if p.Failure == "" {
		p.Failure = "/login/failed"
	}
	return p
}

type Authenticator struct {
	oidcProvider  *oidc.Provider
	oauthProvider Provider
	oauth2Config  oauth2.Config
	states        *StateStore
	codec         *session.Codec
	guard         *Guard
	authorizer    *authz.Authorizer
	ledger        StateLedger // optional replay detection
	paths         Paths
	httpClient    *http.Client
	timeout       time.Duration
	attempts      int
	persist       time.Duration
	newBackOff    func() backoff.BackOff
}

type AuthenticatorInput struct {
	Provider      Provider
	ClientID      string
	ClientSecret  string
	CallbackURL   string
	AllowedDomain string
	Keys          *session.KeySet
	Codec         *session.Codec
	Ledger        StateLedger
	Paths         Paths
	HTTPClient    *http.Client // optional, defaults to a client bounded by ProviderTimeout

	ProviderTimeout  time.Duration
	ProviderAttempts int
	SessionPersist   time.Duration

	IsLocalDev bool // Set to true for local development (disables Secure cookie flag)
}

func NewAuthenticator(ctx context.Context, input AuthenticatorInput) (*Authenticator, error) {
	var missing []string
	if input.ClientID == "" {
		missing = append(missing, "client-id")
	}
	if input.CallbackURL == "" {
		missing = append(missing, "redirect-uri")
	}
	if input.AllowedDomain == "" {
		missing = append(missing, "allowed-domain")
	}
	if input.Keys == nil || input.Codec == nil {
		missing = append(missing, "session-keys")
	}
	if input.Provider == nil {
		missing = append(missing, "provider")
	}
	if err := apperrors.Missing(missing...); err != nil {
		return nil, err
	}

	logger := zerolog.Ctx(ctx)

	timeout := input.ProviderTimeout
	if timeout <= 0 {
		timeout = defaultProviderTimeout
	}
	attempts := input.ProviderAttempts
	if attempts <= 0 {
		attempts = defaultProviderAttempts
	}
	httpClient := input.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{Timeout: timeout}
	}

	logger.Info().
		Str("provider_type", input.Provider.GetProviderType()).
		Str("issuer_url", input.Provider.GetIssuerURL()).
		Msg("Initializing OIDC provider")

	oidcProvider, err := input.Provider.OIDC(context.WithValue(ctx, oauth2.HTTPClient, httpClient))
	if err != nil {
		logger.Error().
			Err(err).
			Str("issuer_url", input.Provider.GetIssuerURL()).
			Msg("Failed to create OIDC provider")
		return nil, err
	}

	endpoint := oidcProvider.Endpoint()
	endpoint.AuthStyle = oauth2.AuthStyleInParams

	logger.Info().
		Str("auth_url", endpoint.AuthURL).
		Str("token_url", endpoint.TokenURL).
		Msg("OAuth endpoints configured")

	oauth2Config := oauth2.Config{
		ClientID:     input.ClientID,
		ClientSecret: input.ClientSecret,
		RedirectURL:  input.CallbackURL,
		Endpoint:     endpoint,
		Scopes:       []string{oidc.ScopeOpenID, "email", "profile"},
	}

	isSecure := !input.IsLocalDev

	logger.Info().
		Str("provider_type", input.Provider.GetProviderType()).
		Str("allowed_domain", input.AllowedDomain).
		Bool("secure_cookies", isSecure).
		Bool("state_ledger", input.Ledger != nil).
		Msg("Authenticator initialized")

	return &Authenticator{
		oidcProvider:  oidcProvider,
		oauthProvider: input.Provider,
		oauth2Config:  oauth2Config,
		states:        NewStateStore(input.Keys, isSecure),
		codec:         input.Codec,
		guard:         NewGuard(input.Codec),
		authorizer:    authz.NewDomainAuthorizer(input.AllowedDomain),
		ledger:        input.Ledger,
		paths:         input.Paths.withDefaults(),
		httpClient:    httpClient,
		timeout:       timeout,
		attempts:      attempts,
		persist:       input.SessionPersist,
		newBackOff: func() backoff.BackOff {
			b := backoff.NewExponentialBackOff()
			b.InitialInterval = defaultRetryInterval
			return b
		},
	}, nil
}

// Codec returns the session codec used to write login cookies.
func (a *Authenticator) Codec() *session.Codec {
	return a.codec
}

// Guard returns the access guard sharing the authenticator's codec.
func (a *Authenticator) Guard() *Guard {
	return a.guard
}

// Paths returns the redirect targets.
func (a *Authenticator) Paths() Paths {
	return a.paths
}

// AuthorizationRequest is a redirect to the provider plus the state cookie
// that must accompany it.
type AuthorizationRequest struct {
	URL         string
	State       string
	StateCookie *http.Cookie
}

// BuildAuthorizationRequest generates a fresh state and the provider
// authorization URL carrying it.
func (a *Authenticator) BuildAuthorizationRequest() (*AuthorizationRequest, error) {
	state, err := GenerateState()
	if err != nil {
		return nil, err
	}

	cookie, err := a.states.Issue(state)
	if err != nil {
		return nil, err
	}

	return &AuthorizationRequest{
		URL:         a.oauth2Config.AuthCodeURL(state, oauth2.AccessTypeOffline, oauth2.ApprovalForce),
		State:       state,
		StateCookie: cookie,
	}, nil
}

// providerContext bounds ctx by the provider timeout and attaches the
// provider HTTP client.
func (a *Authenticator) providerContext(ctx context.Context) (context.Context, context.CancelFunc) {
	ctx, cancel := context.WithTimeout(ctx, a.timeout)
	return context.WithValue(ctx, oauth2.HTTPClient, a.httpClient), cancel
}

// withRetry runs op up to attempts times, retrying only ErrNetwork.
func withRetry[T any](ctx context.Context, a *Authenticator, name string, op func(context.Context) (T, error)) (T, error) {
	logger := zerolog.Ctx(ctx)
	attempt := 0
	return backoff.Retry(ctx, func() (T, error) {
		attempt++
		v, err := op(ctx)
		if err == nil {
			return v, nil
		}
		if !apperrors.IsRetryable(err) {
			return v, backoff.Permanent(err)
		}
		logger.Warn().
			Err(err).
			Str("operation", name).
			Int("attempt", attempt).
			Msg("Identity provider call failed")
		return v, err
	},
		backoff.WithBackOff(a.newBackOff()),
		backoff.WithMaxTries(uint(a.attempts)),
	)
}
