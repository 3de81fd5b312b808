package session

import (
	"context"
	"strconv"
)

// TrustLevel is an access tier. Only TrustNone and TrustVerified are issued
// today; intermediate values are reserved.
type TrustLevel int

const (
	TrustNone     TrustLevel = 0
	TrustVerified TrustLevel = 3
)

func (t TrustLevel) String() string {
	return strconv.Itoa(int(t))
}

// ParseTrustLevel parses a decimal trust level. Missing, non-numeric or
// negative input yields TrustNone.
func ParseTrustLevel(s string) TrustLevel {
	n, err := strconv.Atoi(s)
	if err != nil || n < 0 {
		return TrustNone
	}
	return TrustLevel(n)
}

// Session is the client held authentication state, rebuilt on every request.
type Session struct {
	Username   string     `json:"username"`
	UserID     string     `json:"userId"`
	FullName   string     `json:"fullName"`
	TrustLevel TrustLevel `json:"trustLevel"`

	Email         string `json:"email,omitempty"`
	PersonalEmail string `json:"personalEmail,omitempty"`
	StudentID     string `json:"studentId,omitempty"`
}

// Authenticated reports whether the session names a user.
func (s Session) Authenticated() bool {
	return s.Username != ""
}

// Authorized reports whether the session may access a resource that
// requires the given trust level.
func (s Session) Authorized(required TrustLevel) bool {
	return s.Authenticated() && s.TrustLevel >= required
}

func (s Session) values() map[CookieName]string {
	return map[CookieName]string{
		CookieUsername:      s.Username,
		CookieUserID:        s.UserID,
		CookieFullName:      s.FullName,
		CookieTrustLevel:    s.TrustLevel.String(),
		CookieEmail:         s.Email,
		CookiePersonalEmail: s.PersonalEmail,
		CookieStudentID:     s.StudentID,
	}
}

type sessionContextKeyType struct{}

var sessionKey = sessionContextKeyType{}

// WithContext returns a copy of ctx carrying s.
func WithContext(ctx context.Context, s Session) context.Context {
	return context.WithValue(ctx, sessionKey, s)
}

// FromContext returns the session stored by the access guard, if any.
func FromContext(ctx context.Context) (Session, bool) {
	s, ok := ctx.Value(sessionKey).(Session)
	return s, ok
}
