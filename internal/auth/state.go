package auth

import (
	"crypto/rand"
	"crypto/subtle"
	"encoding/base64"
	"fmt"
	"net/http"
	"time"

	"github.com/gorilla/securecookie"
	"github.com/gorilla/sessions"
	apperrors "github.com/savaki/campus-portal/internal/errors"
	"github.com/savaki/campus-portal/internal/session"
)

// StateTTL bounds the time between the authorization redirect and its callback.
const StateTTL = 5 * time.Minute

const (
	stateBytes = 32
	stateKey   = "state"
)

// GenerateState creates a random state value for CSRF protection
func GenerateState() (string, error) {
	b := make([]byte, stateBytes)
	if _, err := rand.Read(b); err != nil {
		return "", fmt.Errorf("failed to generate state: %w", err)
	}
	return base64.RawURLEncoding.EncodeToString(b), nil
}

// StateStore issues and consumes the signed oauthState cookie.
type StateStore struct {
	store *sessions.CookieStore
}

// NewStateStore returns a StateStore signing with the state purpose keys.
// Secure should only be false for http://localhost.
func NewStateStore(keys *session.KeySet, secure bool) *StateStore {
	store := sessions.NewCookieStore(keys.Pairs(session.PurposeState)...)
	store.Options = &sessions.Options{
		Path:     "/",
		HttpOnly: true,
		Secure:   secure,
		SameSite: http.SameSiteLaxMode,
	}
	store.MaxAge(int(StateTTL.Seconds()))

	return &StateStore{store: store}
}

// Issue returns the cookie carrying state.
func (s *StateStore) Issue(state string) (*http.Cookie, error) {
	name := session.CookieState.String()
	values := map[interface{}]interface{}{stateKey: state}

	encoded, err := securecookie.EncodeMulti(name, values, s.store.Codecs...)
	if err != nil {
		return nil, fmt.Errorf("failed to encode state cookie: %w", err)
	}
	return sessions.NewCookie(name, encoded, s.store.Options), nil
}

// Consume reads the state stored in r. A missing, unsigned or expired
// cookie returns ErrStateMismatch. Callers must also send Expire.
func (s *StateStore) Consume(r *http.Request) (string, error) {
	sess, err := s.store.New(r, session.CookieState.String())
	if err != nil {
		return "", fmt.Errorf("state cookie rejected: %v: %w", err, apperrors.ErrStateMismatch)
	}
	if sess.IsNew {
		return "", fmt.Errorf("state cookie missing: %w", apperrors.ErrStateMismatch)
	}

	state, _ := sess.Values[stateKey].(string)
	if state == "" {
		return "", fmt.Errorf("state cookie empty: %w", apperrors.ErrStateMismatch)
	}
	return state, nil
}

// Expire returns a cookie deleting the state cookie.
func (s *StateStore) Expire() *http.Cookie {
	opts := *s.store.Options
	opts.MaxAge = -1
	return sessions.NewCookie(session.CookieState.String(), "", &opts)
}

// VerifyState compares the stored and received state in constant time.
func VerifyState(stored, received string) error {
	if stored == "" || received == "" {
		return fmt.Errorf("state missing: %w", apperrors.ErrStateMismatch)
	}
	if subtle.ConstantTimeCompare([]byte(stored), []byte(received)) != 1 {
		return apperrors.ErrStateMismatch
	}
	return nil
}
