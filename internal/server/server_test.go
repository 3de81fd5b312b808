package server

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/savaki/campus-portal/internal/auth"
	"github.com/savaki/campus-portal/internal/gql"
	"github.com/savaki/campus-portal/internal/services"
	"github.com/savaki/campus-portal/internal/session"
	"github.com/segmentio/ksuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fixture struct {
	handler http.Handler
	codec   *session.Codec
}

func newFixture(t *testing.T) *fixture {
	t.Helper()

	keys, err := session.NewKeySet([][]byte{bytes.Repeat([]byte{5}, 32)})
	require.NoError(t, err)
	codec := session.NewCodec(keys, session.CodecOptions{Secure: true, MaxAge: time.Hour})

	authenticator, err := auth.NewAuthenticator(context.Background(), auth.AuthenticatorInput{
		Provider: &auth.OIDCProvider{
			IssuerURL:   "https://sso.kzxy.edu.kg",
			AuthURL:     "https://sso.kzxy.edu.kg/authorize",
			TokenURL:    "https://sso.kzxy.edu.kg/token",
			UserInfoURL: "https://sso.kzxy.edu.kg/userinfo",
		},
		ClientID:      "portal-client",
		ClientSecret:  "portal-secret",
		CallbackURL:   "https://portal.kzxy.edu.kg/login/callback",
		AllowedDomain: "kzxy.edu.kg",
		Keys:          keys,
		Codec:         codec,
	})
	require.NoError(t, err)

	schema, err := gql.NewSchema(gql.NewResolver(gql.Config{
		AppConfig: &services.Config{AllowedDomain: "kzxy.edu.kg", HomePath: "/", PortalPath: "/portal/", LoginPath: "/login/initiate"},
	}))
	require.NoError(t, err)

	return &fixture{
		handler: Wrap(zerolog.Nop(), "", New(authenticator, schema).Router()),
		codec:   codec,
	}
}

func (f *fixture) do(t *testing.T, req *http.Request) *httptest.ResponseRecorder {
	t.Helper()
	w := httptest.NewRecorder()
	f.handler.ServeHTTP(w, req)
	return w
}

// signIn attaches the cookies of a verified campus session.
func (f *fixture) signIn(t *testing.T, req *http.Request, trust session.TrustLevel) {
	t.Helper()
	cookies, err := f.codec.Encode(session.Session{
		Username:   "alice@kzxy.edu.kg",
		UserID:     "u1",
		FullName:   "Alice Li",
		TrustLevel: trust,
	}, session.EncodeOptions{})
	require.NoError(t, err)
	for _, c := range cookies {
		req.AddCookie(c)
	}
}

func TestRouter_PublicPages(t *testing.T) {
	f := newFixture(t)

	for _, path := range []string{"/", "/forbidden", "/login/failed"} {
		t.Run(path, func(t *testing.T) {
			w := f.do(t, httptest.NewRequest(http.MethodGet, path, nil))
			assert.Equal(t, http.StatusOK, w.Code)
			assert.Contains(t, w.Header().Get("Content-Type"), "text/html")
		})
	}
}

func TestRouter_Health(t *testing.T) {
	f := newFixture(t)

	w := f.do(t, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	assert.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"status":"ok"}`, w.Body.String())
}

func TestRouter_Metrics(t *testing.T) {
	f := newFixture(t)

	// one guarded request so the guard counter has a sample
	f.do(t, httptest.NewRequest(http.MethodGet, "/portal/", nil))

	w := f.do(t, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "campus_portal_")
}

func TestRouter_PortalRequiresLogin(t *testing.T) {
	f := newFixture(t)

	w := f.do(t, httptest.NewRequest(http.MethodGet, "/portal/", nil))
	assert.Equal(t, http.StatusFound, w.Code)
	assert.Equal(t, "/login/initiate", w.Header().Get("Location"))
}

func TestRouter_PortalForbidsLowTrust(t *testing.T) {
	f := newFixture(t)

	req := httptest.NewRequest(http.MethodGet, "/portal/", nil)
	f.signIn(t, req, 1)

	w := f.do(t, req)
	assert.Equal(t, http.StatusFound, w.Code)
	assert.Equal(t, "/forbidden", w.Header().Get("Location"))
}

func TestRouter_PortalAdmitsVerified(t *testing.T) {
	f := newFixture(t)

	req := httptest.NewRequest(http.MethodGet, "/portal/", nil)
	f.signIn(t, req, session.TrustVerified)

	w := f.do(t, req)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "no-store", w.Header().Get("Cache-Control"))
}

func TestRouter_LoginRedirectsToProvider(t *testing.T) {
	f := newFixture(t)

	w := f.do(t, httptest.NewRequest(http.MethodGet, "/login/initiate", nil))
	require.Equal(t, http.StatusFound, w.Code)
	assert.True(t, strings.HasPrefix(w.Header().Get("Location"), "https://sso.kzxy.edu.kg/authorize?"))

	var names []string
	for _, c := range w.Result().Cookies() {
		names = append(names, c.Name)
	}
	assert.Contains(t, names, session.CookieState.String())
}

func TestRouter_LogoutRequiresPost(t *testing.T) {
	f := newFixture(t)

	w := f.do(t, httptest.NewRequest(http.MethodGet, "/session/logout", nil))
	assert.Equal(t, http.StatusMethodNotAllowed, w.Code)

	w = f.do(t, httptest.NewRequest(http.MethodPost, "/session/logout", nil))
	assert.Equal(t, http.StatusFound, w.Code)
	assert.Equal(t, "/", w.Header().Get("Location"))
}

func TestRouter_GraphQL(t *testing.T) {
	f := newFixture(t)
	query := `{"query":"{ viewer { username trustLevel } portal { allowedDomain } }"}`

	t.Run("anonymous", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodPost, "/graphql", strings.NewReader(query))
		w := f.do(t, req)
		assert.Equal(t, http.StatusUnauthorized, w.Code)
		assert.JSONEq(t, `{"error":"login required"}`, w.Body.String())
	})

	t.Run("signed in", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodPost, "/graphql", strings.NewReader(query))
		req.Header.Set("Content-Type", "application/json")
		f.signIn(t, req, session.TrustVerified)

		w := f.do(t, req)
		require.Equal(t, http.StatusOK, w.Code)

		var resp struct {
			Data struct {
				Viewer struct {
					Username   string `json:"username"`
					TrustLevel int    `json:"trustLevel"`
				} `json:"viewer"`
				Portal struct {
					AllowedDomain string `json:"allowedDomain"`
				} `json:"portal"`
			} `json:"data"`
		}
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
		assert.Equal(t, "alice@kzxy.edu.kg", resp.Data.Viewer.Username)
		assert.Equal(t, 3, resp.Data.Viewer.TrustLevel)
		assert.Equal(t, "kzxy.edu.kg", resp.Data.Portal.AllowedDomain)
	})
}

func TestLoggingMiddleware_RequestID(t *testing.T) {
	var buf bytes.Buffer
	logger := zerolog.New(&buf)

	handler := LoggingMiddleware(logger)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		zerolog.Ctx(r.Context()).Info().Msg("inside")
		w.WriteHeader(http.StatusTeapot)
	}))

	w := httptest.NewRecorder()
	handler.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/login/callback?code=secret-code", nil))

	assert.Equal(t, http.StatusTeapot, w.Code)

	id := w.Header().Get(RequestIDHeader)
	_, err := ksuid.Parse(id)
	require.NoError(t, err)

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	require.Len(t, lines, 3)
	for _, line := range lines {
		var entry map[string]any
		require.NoError(t, json.Unmarshal([]byte(line), &entry))
		assert.Equal(t, id, entry["request_id"])
	}
	assert.NotContains(t, buf.String(), "secret-code")
	assert.Contains(t, lines[2], `"status_code":418`)
}

func TestStripEnvPrefix(t *testing.T) {
	var got string
	handler := StripEnvPrefix("prod", http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		got = r.URL.Path
	}))

	tests := map[string]string{
		"/prod/portal/":   "/portal/",
		"/prod":           "/",
		"/production/x":   "/production/x",
		"/login/initiate": "/login/initiate",
	}
	for in, want := range tests {
		handler.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, in, nil))
		assert.Equal(t, want, got, "path %s", in)
	}
}

func TestBuildCallbackURL(t *testing.T) {
	assert.Equal(t, "http://localhost:8080/login/callback", BuildCallbackURL("portal.kzxy.edu.kg", "8080"))
	assert.Equal(t, "https://portal.kzxy.edu.kg/login/callback", BuildCallbackURL("portal.kzxy.edu.kg", ""))
	assert.Empty(t, BuildCallbackURL("", ""))
}
