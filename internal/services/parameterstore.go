package services

import (
	"context"
	"fmt"
	"net/url"
	"os"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/aws/aws-sdk-go-v2/service/ssm"
	apperrors "github.com/savaki/campus-portal/internal/errors"
)

const (
	DefaultIssuer      = "https://accounts.google.com"
	DefaultAuthURL     = "https://accounts.google.com/o/oauth2/v2/auth"
	DefaultTokenURL    = "https://oauth2.googleapis.com/token"
	DefaultUserInfoURL = "https://openidconnect.googleapis.com/v1/userinfo"

	DefaultProviderTimeout  = 10 * time.Second
	DefaultProviderAttempts = 2
	DefaultSessionMaxAge    = 12 * time.Hour
)

// Config holds all application configuration. It is built once at startup
// and shared read-only afterwards.
type Config struct {
	ClientID      string
	ClientSecret  string
	RedirectURI   string
	AllowedDomain string

	Issuer       string
	AuthURL      string
	TokenURL     string
	UserInfoURL  string
	UseDiscovery bool

	HomePath      string
	PortalPath    string
	LoginPath     string
	ForbiddenPath string
	FailurePath   string

	SessionKeySecretName string
	SessionKeys          string // comma separated base64 keys, local use only
	SessionPersist       time.Duration
	SessionMaxAge        time.Duration
	InsecureCookies      bool

	StateLedgerTable string

	ProviderTimeout  time.Duration
	ProviderAttempts int

	CustomDomain string
}

// Validate returns a ConfigurationError naming every missing required value.
func (c *Config) Validate() error {
	var missing []string
	if c.ClientID == "" {
		missing = append(missing, "client-id")
	}
	if c.ClientSecret == "" {
		missing = append(missing, "client-secret")
	}
	if c.RedirectURI == "" {
		missing = append(missing, "redirect-uri")
	}
	if c.AllowedDomain == "" {
		missing = append(missing, "allowed-domain")
	}
	if err := apperrors.Missing(missing...); err != nil {
		return err
	}

	if u, err := url.Parse(c.RedirectURI); err != nil || u.Scheme == "" || u.Host == "" {
		return &apperrors.ConfigurationError{Reason: fmt.Sprintf("redirect-uri %q is not an absolute URL", c.RedirectURI)}
	}
	if strings.Contains(c.AllowedDomain, "@") {
		return &apperrors.ConfigurationError{Reason: "allowed-domain must not contain @"}
	}
	if c.ProviderAttempts < 1 {
		return &apperrors.ConfigurationError{Reason: "provider-attempts must be at least 1"}
	}
	return nil
}

// applyDefaults fills optional values that were left empty.
func (c *Config) applyDefaults() {
	if c.Issuer == "" {
		c.Issuer = DefaultIssuer
	}
	if !c.UseDiscovery {
		if c.AuthURL == "" {
			c.AuthURL = DefaultAuthURL
		}
		if c.TokenURL == "" {
			c.TokenURL = DefaultTokenURL
		}
		if c.UserInfoURL == "" {
			c.UserInfoURL = DefaultUserInfoURL
		}
	}
	if c.HomePath == "" {
		c.HomePath = "/"
	}
	if c.PortalPath == "" {
		c.PortalPath = "/portal/"
	}
	if c.LoginPath == "" {
		c.LoginPath = "/login/initiate"
	}
	if c.ForbiddenPath == "" {
		c.ForbiddenPath = "/forbidden"
	}
	if c.FailurePath == "" {
		c.FailurePath = "/login/failed"
	}
	if c.SessionMaxAge == 0 {
		c.SessionMaxAge = DefaultSessionMaxAge
	}
	if c.ProviderTimeout == 0 {
		c.ProviderTimeout = DefaultProviderTimeout
	}
	if c.ProviderAttempts == 0 {
		c.ProviderAttempts = DefaultProviderAttempts
	}
}

// ParameterStore defines the interface for accessing configuration parameters
type ParameterStore interface {
	// GetParameter retrieves a single parameter by name
	GetParameter(ctx context.Context, name string) (string, error)

	// GetConfig loads all application configuration
	GetConfig(ctx context.Context) (*Config, error)
}

// SSMParameterStore implements ParameterStore using AWS Systems Manager Parameter Store
type SSMParameterStore struct {
	client *ssm.Client
	env    string
	mu     sync.RWMutex
	cache  map[string]string
}

// NewSSMParameterStore creates a new SSM-backed parameter store
func NewSSMParameterStore(client *ssm.Client, env string) *SSMParameterStore {
	return &SSMParameterStore{
		client: client,
		env:    env,
		cache:  make(map[string]string),
	}
}

// GetParameter retrieves a single parameter from SSM Parameter Store
func (s *SSMParameterStore) GetParameter(ctx context.Context, name string) (string, error) {
	s.mu.RLock()
	if value, ok := s.cache[name]; ok {
		s.mu.RUnlock()
		return value, nil
	}
	s.mu.RUnlock()

	result, err := s.client.GetParameter(ctx, &ssm.GetParameterInput{
		Name:           &name,
		WithDecryption: boolPtr(true),
	})
	if err != nil {
		return "", fmt.Errorf("failed to get parameter %s: %w", name, err)
	}

	if result.Parameter == nil || result.Parameter.Value == nil {
		return "", fmt.Errorf("parameter %s not found", name)
	}

	value := *result.Parameter.Value

	s.mu.Lock()
	s.cache[name] = value
	s.mu.Unlock()

	return value, nil
}

// GetConfig loads all application configuration under /{env}/campus-portal.
// The client secret is expected as a SecureString.
func (s *SSMParameterStore) GetConfig(ctx context.Context) (*Config, error) {
	path := fmt.Sprintf("/%s/campus-portal", s.env)

	params := make(map[string]string)
	input := &ssm.GetParametersByPathInput{
		Path:           &path,
		Recursive:      boolPtr(true),
		WithDecryption: boolPtr(true),
	}
	paginator := ssm.NewGetParametersByPathPaginator(s.client, input)
	for paginator.HasMorePages() {
		page, err := paginator.NextPage(ctx)
		if err != nil {
			return nil, fmt.Errorf("failed to get parameters by path %s: %w", path, err)
		}
		for _, param := range page.Parameters {
			if param.Name != nil && param.Value != nil {
				params[*param.Name] = *param.Value
			}
		}
	}

	s.mu.Lock()
	for k, v := range params {
		s.cache[k] = v
	}
	s.mu.Unlock()

	lookup := func(key string) string {
		return params[path+"/"+key]
	}

	return buildConfig(lookup)
}

// EnvParameterStore implements ParameterStore using environment variables.
// Used for local development without an AWS connection.
type EnvParameterStore struct {
	env    string
	getenv func(string) string
}

// NewEnvParameterStore creates a new environment variable-backed parameter store
func NewEnvParameterStore(env string) *EnvParameterStore {
	return &EnvParameterStore{
		env:    env,
		getenv: os.Getenv,
	}
}

// GetParameter retrieves a parameter from environment variables
func (e *EnvParameterStore) GetParameter(ctx context.Context, name string) (string, error) {
	return e.getenv(name), nil
}

// GetConfig loads all application configuration from environment variables.
// Keys are the SSM names upper-cased with dashes replaced, e.g. client-id
// becomes OAUTH_CLIENT_ID.
func (e *EnvParameterStore) GetConfig(ctx context.Context) (*Config, error) {
	lookup := func(key string) string {
		return e.getenv(envName(key))
	}

	config, err := buildConfig(lookup)
	if err != nil {
		return nil, err
	}
	config.SessionKeys = e.getenv("SESSION_KEYS")

	return config, nil
}

// envName maps a parameter key to its environment variable.
func envName(key string) string {
	name := strings.ToUpper(strings.ReplaceAll(key, "-", "_"))
	switch key {
	case "client-id", "client-secret", "redirect-uri", "issuer", "auth-url", "token-url", "userinfo-url", "use-discovery":
		return "OAUTH_" + name
	}
	return name
}

func buildConfig(lookup func(key string) string) (*Config, error) {
	config := &Config{
		ClientID:             lookup("client-id"),
		ClientSecret:         lookup("client-secret"),
		RedirectURI:          lookup("redirect-uri"),
		AllowedDomain:        lookup("allowed-domain"),
		Issuer:               lookup("issuer"),
		AuthURL:              lookup("auth-url"),
		TokenURL:             lookup("token-url"),
		UserInfoURL:          lookup("userinfo-url"),
		HomePath:             lookup("home-path"),
		PortalPath:           lookup("portal-path"),
		LoginPath:            lookup("login-path"),
		ForbiddenPath:        lookup("forbidden-path"),
		FailurePath:          lookup("failure-path"),
		SessionKeySecretName: lookup("session-key-secret-name"),
		StateLedgerTable:     lookup("state-ledger-table"),
		CustomDomain:         lookup("custom-domain"),
	}

	var err error
	if config.UseDiscovery, err = parseBool(lookup, "use-discovery"); err != nil {
		return nil, err
	}
	if config.InsecureCookies, err = parseBool(lookup, "insecure-cookies"); err != nil {
		return nil, err
	}
	if config.SessionPersist, err = parseDuration(lookup, "session-persist"); err != nil {
		return nil, err
	}
	if config.SessionMaxAge, err = parseDuration(lookup, "session-max-age"); err != nil {
		return nil, err
	}
	if config.ProviderTimeout, err = parseDuration(lookup, "provider-timeout"); err != nil {
		return nil, err
	}
	if v := lookup("provider-attempts"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return nil, &apperrors.ConfigurationError{Reason: fmt.Sprintf("provider-attempts %q is not an integer", v)}
		}
		config.ProviderAttempts = n
	}

	config.applyDefaults()

	return config, nil
}

func parseBool(lookup func(string) string, key string) (bool, error) {
	v := lookup(key)
	if v == "" {
		return false, nil
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return false, &apperrors.ConfigurationError{Reason: fmt.Sprintf("%s %q is not a boolean", key, v)}
	}
	return b, nil
}

func parseDuration(lookup func(string) string, key string) (time.Duration, error) {
	v := lookup(key)
	if v == "" {
		return 0, nil
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return 0, &apperrors.ConfigurationError{Reason: fmt.Sprintf("%s %q is not a duration", key, v)}
	}
	return d, nil
}

func boolPtr(b bool) *bool {
	return &b
}
