package di

import (
	"context"
	"crypto/rand"
	"fmt"
	"os"
	"strings"

	"github.com/aws/aws-sdk-go-v2/service/secretsmanager"
	"github.com/rs/zerolog"
	"github.com/savaki/campus-portal/internal/auth"
	"github.com/savaki/campus-portal/internal/services"
	"github.com/savaki/campus-portal/internal/session"
)

// ProvideSessionKeyService returns nil when no secret is configured.
func ProvideSessionKeyService(client *secretsmanager.Client, config *services.Config) *services.SessionKeyService {
	if config.SessionKeySecretName == "" {
		return nil
	}
	return services.NewSessionKeyService(client, config.SessionKeySecretName)
}

// ProvideSessionKeys resolves the signing keys, newest first. SESSION_KEYS
// wins over Secrets Manager. Outside Lambda a missing key falls back to an
// ephemeral one.
func ProvideSessionKeys(ctx context.Context, config *services.Config, keyService *services.SessionKeyService) ([][]byte, error) {
	logger := zerolog.Ctx(ctx)

	var (
		keys [][]byte
		err  error
	)
	switch {
	case config.SessionKeys != "":
		keys = services.ParseSessionKeys(ctx, config.SessionKeys)
		if len(keys) == 0 {
			err = fmt.Errorf("SESSION_KEYS holds no valid %d byte key", services.SessionKeyLength)
		}
	case keyService != nil:
		keys, err = keyService.GetSessionKeys(ctx)
	default:
		err = fmt.Errorf("no session key source configured")
	}
	if err == nil {
		return keys, nil
	}

	logger.Error().Err(err).Msg("Failed to load session keys")

	// Ephemeral keys break sessions across Lambda containers
	if os.Getenv("AWS_LAMBDA_RUNTIME_API") != "" {
		return nil, fmt.Errorf("session keys required in Lambda environment: %w", err)
	}

	logger.Warn().Msg("Using ephemeral session key for local development only")
	key := make([]byte, services.SessionKeyLength)
	if _, err := rand.Read(key); err != nil {
		return nil, fmt.Errorf("failed to generate ephemeral session key: %w", err)
	}
	return [][]byte{key}, nil
}

func ProvideKeySet(keys [][]byte) (*session.KeySet, error) {
	return session.NewKeySet(keys)
}

func ProvideCodec(keys *session.KeySet, config *services.Config) *session.Codec {
	return session.NewCodec(keys, session.CodecOptions{
		Secure: !insecureCookies(config),
		MaxAge: config.SessionMaxAge,
	})
}

// ProvideIdentityProvider picks Google's static endpoints unless a different
// issuer or discovery is configured.
func ProvideIdentityProvider(config *services.Config) auth.Provider {
	isGoogle := config.Issuer == services.DefaultIssuer &&
		config.AuthURL == services.DefaultAuthURL &&
		config.TokenURL == services.DefaultTokenURL &&
		config.UserInfoURL == services.DefaultUserInfoURL
	if isGoogle && !config.UseDiscovery {
		return &auth.GoogleProvider{}
	}

	return &auth.OIDCProvider{
		IssuerURL:   config.Issuer,
		AuthURL:     config.AuthURL,
		TokenURL:    config.TokenURL,
		UserInfoURL: config.UserInfoURL,
		Discovery:   config.UseDiscovery,
	}
}

func ProvideAuthenticator(
	ctx context.Context,
	config *services.Config,
	provider auth.Provider,
	keys *session.KeySet,
	codec *session.Codec,
	ledger auth.StateLedger,
) (*auth.Authenticator, error) {
	authenticator, err := auth.NewAuthenticator(ctx, auth.AuthenticatorInput{
		Provider:      provider,
		ClientID:      config.ClientID,
		ClientSecret:  config.ClientSecret,
		CallbackURL:   config.RedirectURI,
		AllowedDomain: config.AllowedDomain,
		Keys:          keys,
		Codec:         codec,
		Ledger:        ledger,
		Paths: auth.Paths{
			Home:      config.HomePath,
			Portal:    config.PortalPath,
			Login:     config.LoginPath,
			Forbidden: config.ForbiddenPath,
			Failure:   config.FailurePath,
		},
		ProviderTimeout:  config.ProviderTimeout,
		ProviderAttempts: config.ProviderAttempts,
		SessionPersist:   config.SessionPersist,
		IsLocalDev:       insecureCookies(config),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create authenticator: %w", err)
	}
	return authenticator, nil
}

// insecureCookies reports whether the Secure flag must be dropped: either
// explicitly configured or the redirect URI is plain http on the loopback.
func insecureCookies(config *services.Config) bool {
	if config.InsecureCookies {
		return true
	}
	return strings.HasPrefix(config.RedirectURI, "http://localhost") ||
		strings.HasPrefix(config.RedirectURI, "http://127.0.0.1")
}
