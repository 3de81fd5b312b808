package auth

import (
	"context"
	"fmt"
	"time"

	apperrors "github.com/savaki/campus-portal/internal/errors"
	"github.com/savaki/campus-portal/internal/metrics"
	"github.com/savaki/campus-portal/internal/session"
	"golang.org/x/oauth2"
)

// Identity is the result of a successful provider authentication. It is
// discarded once encoded into session cookies.
type Identity struct {
	SubjectID   string `json:"sub"`
	Email       string `json:"email"`
	DisplayName string `json:"name"`
}

// FetchProfile resolves the identity behind tokens from the user info
// endpoint. An identity is never returned without an email.
func (a *Authenticator) FetchProfile(ctx context.Context, tokens *ProviderTokens) (identity *Identity, err error) {
	if tokens == nil || tokens.AccessToken == "" {
		return nil, fmt.Errorf("no access token: %w", apperrors.ErrProfileUnavailable)
	}

	start := time.Now()
	defer func() { metrics.ObserveProvider("userinfo", start, err) }()

	ctx, cancel := a.providerContext(ctx)
	defer cancel()

	info, err := a.oidcProvider.UserInfo(ctx, oauth2.StaticTokenSource(&oauth2.Token{
		AccessToken: tokens.AccessToken,
		TokenType:   "Bearer",
	}))
	if err != nil {
		if isTransportError(err) {
			return nil, fmt.Errorf("userinfo: %v: %w", err, apperrors.ErrNetwork)
		}
		return nil, fmt.Errorf("userinfo: %v: %w", err, apperrors.ErrProfileUnavailable)
	}

	var claims struct {
		Name string `json:"name"`
	}
	if err := info.Claims(&claims); err != nil {
		return nil, fmt.Errorf("userinfo claims: %v: %w", err, apperrors.ErrProfileUnavailable)
	}
	if info.Email == "" {
		return nil, fmt.Errorf("userinfo has no email: %w", apperrors.ErrProfileUnavailable)
	}

	return &Identity{
		SubjectID:   info.Subject,
		Email:       info.Email,
		DisplayName: claims.Name,
	}, nil
}

// SessionFromIdentity maps an admitted identity onto the session written to
// cookies. The email doubles as the username.
func SessionFromIdentity(identity Identity, trust session.TrustLevel) session.Session {
	return session.Session{
		Username:   identity.Email,
		UserID:     identity.SubjectID,
		FullName:   identity.DisplayName,
		TrustLevel: trust,
	}
}
