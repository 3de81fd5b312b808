package errors

import (
	"errors"
	"fmt"
	"strings"
)

var (
	ErrConfiguration      = errors.New("invalid configuration")
	ErrNetwork            = errors.New("identity provider unreachable")
	ErrProviderRejected   = errors.New("identity provider rejected the request")
	ErrProfileUnavailable = errors.New("identity profile unavailable")
	ErrDomainRejected     = errors.New("email domain not permitted")
	ErrMalformedSession   = errors.New("malformed session cookie")
	ErrStateMismatch      = errors.New("oauth state mismatch")
	ErrStateReplayed      = errors.New("oauth state already used")
	ErrMissingCode        = errors.New("authorization code missing")
)

// ConfigurationError reports every required setting that is absent. It is
// fatal at startup and never produced per request.
type ConfigurationError struct {
	Missing []string
	Reason  string
}

func (e *ConfigurationError) Error() string {
	if len(e.Missing) == 0 {
		return fmt.Sprintf("configuration error: %s", e.Reason)
	}
	if e.Reason == "" {
		return fmt.Sprintf("configuration error: missing %s", strings.Join(e.Missing, ", "))
	}
	return fmt.Sprintf("configuration error: %s: missing %s", e.Reason, strings.Join(e.Missing, ", "))
}

// Is reports true for ErrConfiguration so callers can use errors.Is.
func (e *ConfigurationError) Is(target error) bool {
	return target == ErrConfiguration
}

// Missing returns a ConfigurationError for the named settings, or nil when
// names is empty.
func Missing(names ...string) error {
	if len(names) == 0 {
		return nil
	}
	return &ConfigurationError{Missing: names}
}

// IsRetryable reports whether err is transient and may be retried by the
// caller. Only ErrNetwork qualifies.
func IsRetryable(err error) bool {
	return errors.Is(err, ErrNetwork)
}
