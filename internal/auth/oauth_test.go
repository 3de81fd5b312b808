package auth

import (
	"context"
	"encoding/base64"
	"errors"
	"net/http"
	"net/http/httptest"
	"net/url"
	"testing"

	apperrors "github.com/savaki/campus-portal/internal/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGenerateState(t *testing.T) {
	seen := map[string]bool{}
	for i := 0; i < 100; i++ {
		state, err := GenerateState()
		require.NoError(t, err)

		raw, err := base64.RawURLEncoding.DecodeString(state)
		require.NoError(t, err)
		assert.Len(t, raw, 32)

		assert.False(t, seen[state], "state values must not repeat")
		seen[state] = true
	}
}

func TestNewAuthenticator_MissingConfiguration(t *testing.T) {
	fp := newFakeProvider(t)
	input := testInput(t, fp.provider())
	input.ClientID = ""
	input.CallbackURL = ""

	_, err := NewAuthenticator(context.Background(), input)
	require.Error(t, err)
	assert.True(t, errors.Is(err, apperrors.ErrConfiguration))

	var cfgErr *apperrors.ConfigurationError
	require.True(t, errors.As(err, &cfgErr))
	assert.Equal(t, []string{"client-id", "redirect-uri"}, cfgErr.Missing)
}

func TestBuildAuthorizationRequest(t *testing.T) {
	fp := newFakeProvider(t)
	a := newTestAuthenticator(t, testInput(t, fp.provider()))

	req, err := a.BuildAuthorizationRequest()
	require.NoError(t, err)

	u, err := url.Parse(req.URL)
	require.NoError(t, err)
	assert.Equal(t, fp.server.URL+"/authorize", u.Scheme+"://"+u.Host+u.Path)

	q := u.Query()
	assert.Equal(t, testClientID, q.Get("client_id"))
	assert.Equal(t, "code", q.Get("response_type"))
	assert.Equal(t, "openid email profile", q.Get("scope"))
	assert.Equal(t, testCallbackURL, q.Get("redirect_uri"))
	assert.Equal(t, req.State, q.Get("state"))
	assert.Equal(t, "offline", q.Get("access_type"))
	assert.Equal(t, "consent", q.Get("prompt"))

	c := req.StateCookie
	assert.Equal(t, "oauthState", c.Name)
	assert.NotEqual(t, req.State, c.Value, "state cookie is signed")
	assert.True(t, c.HttpOnly)
	assert.True(t, c.Secure)
	assert.Equal(t, http.SameSiteLaxMode, c.SameSite)
	assert.Equal(t, "/", c.Path)
	assert.Equal(t, 300, c.MaxAge)
}

func TestBuildAuthorizationRequest_FreshState(t *testing.T) {
	fp := newFakeProvider(t)
	a := newTestAuthenticator(t, testInput(t, fp.provider()))

	first, err := a.BuildAuthorizationRequest()
	require.NoError(t, err)
	second, err := a.BuildAuthorizationRequest()
	require.NoError(t, err)
	assert.NotEqual(t, first.State, second.State)
}

func TestBuildAuthorizationRequest_LocalDev(t *testing.T) {
	fp := newFakeProvider(t)
	input := testInput(t, fp.provider())
	input.IsLocalDev = true
	a := newTestAuthenticator(t, input)

	req, err := a.BuildAuthorizationRequest()
	require.NoError(t, err)
	assert.False(t, req.StateCookie.Secure)
}

func TestStateStore_RoundTrip(t *testing.T) {
	store := NewStateStore(testKeySet(t), true)

	cookie, err := store.Issue("abc")
	require.NoError(t, err)

	r := httptest.NewRequest(http.MethodGet, "/login/callback", nil)
	r.AddCookie(cookie)

	state, err := store.Consume(r)
	require.NoError(t, err)
	assert.Equal(t, "abc", state)

	expired := store.Expire()
	assert.Equal(t, "oauthState", expired.Name)
	assert.Empty(t, expired.Value)
	assert.Equal(t, -1, expired.MaxAge)
}

func TestStateStore_Rejects(t *testing.T) {
	store := NewStateStore(testKeySet(t), true)

	t.Run("missing", func(t *testing.T) {
		r := httptest.NewRequest(http.MethodGet, "/login/callback", nil)
		_, err := store.Consume(r)
		assert.ErrorIs(t, err, apperrors.ErrStateMismatch)
	})

	t.Run("unsigned", func(t *testing.T) {
		r := httptest.NewRequest(http.MethodGet, "/login/callback", nil)
		r.AddCookie(&http.Cookie{Name: "oauthState", Value: "abc"})
		_, err := store.Consume(r)
		assert.ErrorIs(t, err, apperrors.ErrStateMismatch)
	})

	t.Run("signed for another purpose", func(t *testing.T) {
		session, err := testInput(t, nil).Codec.Encode(alice(), sessionOpts())
		require.NoError(t, err)

		r := httptest.NewRequest(http.MethodGet, "/login/callback", nil)
		r.AddCookie(&http.Cookie{Name: "oauthState", Value: session[0].Value})
		_, err = store.Consume(r)
		assert.ErrorIs(t, err, apperrors.ErrStateMismatch)
	})
}

func TestVerifyState(t *testing.T) {
	assert.NoError(t, VerifyState("abc", "abc"))
	assert.ErrorIs(t, VerifyState("abc", "abd"), apperrors.ErrStateMismatch)
	assert.ErrorIs(t, VerifyState("abc", ""), apperrors.ErrStateMismatch)
	assert.ErrorIs(t, VerifyState("", ""), apperrors.ErrStateMismatch)
}
