package session

import (
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/gorilla/securecookie"
	"github.com/rs/zerolog"
)

// CodecOptions controls how session cookies are issued.
type CodecOptions struct {
	// Secure sets the Secure attribute. Disable only for http://localhost.
	Secure bool
	// MaxAge bounds how long a signed value is accepted, independent of the
	// cookie lifetime. Zero disables the check.
	MaxAge time.Duration
}

// EncodeOptions are per login choices.
type EncodeOptions struct {
	// Persist gives the cookies an explicit lifetime. Zero keeps them
	// browser-session scoped.
	Persist time.Duration
}

// Codec reads and writes the session cookie set.
type Codec struct {
	codecs []securecookie.Codec
	opts   CodecOptions
	now    func() time.Time
}

// NewCodec returns a Codec signing with keys.
func NewCodec(keys *KeySet, opts CodecOptions) *Codec {
	return &Codec{
		codecs: keys.Codecs(PurposeSession, int(opts.MaxAge.Seconds())),
		opts:   opts,
		now:    time.Now,
	}
}

// Encode returns the four core cookies plus any populated extended
// attribute. All cookies are written together by the caller.
func (c *Codec) Encode(s Session, opts EncodeOptions) ([]*http.Cookie, error) {
	values := s.values()

	names := CoreCookieNames()
	for _, name := range ExtendedCookieNames() {
		if values[name] != "" {
			names = append(names, name)
		}
	}

	cookies := make([]*http.Cookie, 0, len(names))
	for _, name := range names {
		encoded, err := securecookie.EncodeMulti(name.String(), values[name], c.codecs...)
		if err != nil {
			return nil, fmt.Errorf("session: failed to encode %s: %w", name, err)
		}

		cookie := c.cookie(name, encoded)
		if opts.Persist > 0 {
			cookie.MaxAge = int(opts.Persist.Seconds())
			cookie.Expires = c.now().Add(opts.Persist).UTC()
		}
		cookies = append(cookies, cookie)
	}

	return cookies, nil
}

// Decode rebuilds the session from a Cookie header. Missing, unsigned,
// tampered or expired values read as empty; it never fails.
func (c *Codec) Decode(cookieHeader string) Session {
	s, _ := c.decode(cookieHeader)
	return s
}

// DecodeRequest decodes the session carried by r, logging malformed cookies
// at debug level.
func (c *Codec) DecodeRequest(r *http.Request) Session {
	s, malformed := c.decode(strings.Join(r.Header.Values("Cookie"), "; "))
	if len(malformed) > 0 {
		names := make([]string, 0, len(malformed))
		for _, name := range malformed {
			names = append(names, name.String())
		}
		zerolog.Ctx(r.Context()).Debug().
			Strs("cookies", names).
			Str("path", r.URL.Path).
			Msg("Ignoring malformed session cookies")
	}
	return s
}

func (c *Codec) decode(cookieHeader string) (Session, []CookieName) {
	req := http.Request{Header: http.Header{"Cookie": []string{cookieHeader}}}

	raw := make(map[CookieName]string)
	for _, cookie := range req.Cookies() {
		raw[CookieName(cookie.Name)] = cookie.Value
	}

	var malformed []CookieName
	read := func(name CookieName) string {
		value, ok := raw[name]
		if !ok || value == "" {
			return ""
		}
		var decoded string
		if err := securecookie.DecodeMulti(name.String(), value, &decoded, c.codecs...); err != nil {
			malformed = append(malformed, name)
			return ""
		}
		return decoded
	}

	s := Session{
		Username:      read(CookieUsername),
		UserID:        read(CookieUserID),
		FullName:      read(CookieFullName),
		TrustLevel:    ParseTrustLevel(read(CookieTrustLevel)),
		Email:         read(CookieEmail),
		PersonalEmail: read(CookiePersonalEmail),
		StudentID:     read(CookieStudentID),
	}
	return s, malformed
}

// Clear expires every cookie name the service has ever written.
func (c *Codec) Clear() []*http.Cookie {
	names := AllCookieNames()
	cookies := make([]*http.Cookie, 0, len(names))
	for _, name := range names {
		cookie := c.cookie(name, "")
		cookie.Expires = time.Unix(0, 0).UTC()
		cookie.MaxAge = -1
		cookies = append(cookies, cookie)
	}
	return cookies
}

func (c *Codec) cookie(name CookieName, value string) *http.Cookie {
	return &http.Cookie{
		Name:     name.String(),
		Value:    value,
		Path:     "/",
		HttpOnly: true,
		Secure:   c.opts.Secure,
		SameSite: http.SameSiteLaxMode,
	}
}
