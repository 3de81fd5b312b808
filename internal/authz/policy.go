package authz

import (
	"fmt"
	"strings"

	apperrors "github.com/savaki/campus-portal/internal/errors"
)

// Profile represents user information needed for authorization.
// This mirrors auth.Identity but keeps packages decoupled.
type Profile struct {
	Sub   string
	Name  string
	Email string
}

// Decision is the outcome of a policy check.
type Decision int

const (
	Reject Decision = iota
	Admit
)

func (d Decision) String() string {
	if d == Admit {
		return "admit"
	}
	return "reject"
}

// Policy defines an authorization rule that can allow or deny access.
type Policy interface {
	// Authorize returns nil if the user is authorized, or an error if denied.
	Authorize(profile Profile) error
	// Name returns a human-readable name for this policy.
	Name() string
}

// DomainPolicy admits only emails in AllowedDomain.
type DomainPolicy struct {
	AllowedDomain string
}

// Name returns the policy name.
func (p *DomainPolicy) Name() string {
	return "EmailDomainRestriction"
}

// Authorize returns ErrDomainRejected unless the email belongs to AllowedDomain.
func (p *DomainPolicy) Authorize(profile Profile) error {
	if AuthorizeDomain(profile, p.AllowedDomain) != Admit {
		return fmt.Errorf("email %q is outside %s: %w", profile.Email, p.AllowedDomain, apperrors.ErrDomainRejected)
	}
	return nil
}

// AuthorizeDomain admits profile iff its email ends with exactly
// "@"+allowedDomain. Matching is case-sensitive; subdomains and look-alike
// prefixes are rejected, as is any email without a single @ and a local part.
func AuthorizeDomain(profile Profile, allowedDomain string) Decision {
	email := profile.Email
	if allowedDomain == "" || strings.Count(email, "@") != 1 {
		return Reject
	}
	suffix := "@" + allowedDomain
	if !strings.HasSuffix(email, suffix) || len(email) == len(suffix) {
		return Reject
	}
	return Admit
}

// Authorizer manages a collection of authorization policies.
type Authorizer struct {
	policies []Policy
	enabled  bool
}

// NewAuthorizer creates a new authorizer with the given policies.
func NewAuthorizer(enabled bool, policies ...Policy) *Authorizer {
	return &Authorizer{
		policies: policies,
		enabled:  enabled,
	}
}

// NewDomainAuthorizer creates an authorizer restricted to one email domain.
func NewDomainAuthorizer(allowedDomain string) *Authorizer {
	return NewAuthorizer(true, &DomainPolicy{AllowedDomain: allowedDomain})
}

// Authorize runs all policies and returns an error if any policy denies access.
func (a *Authorizer) Authorize(profile Profile) error {
	if !a.enabled {
		return nil
	}

	for _, policy := range a.policies {
		if err := policy.Authorize(profile); err != nil {
			return fmt.Errorf("authorization policy %s failed: %w", policy.Name(), err)
		}
	}
	return nil
}

// Decide is Authorize reduced to a Decision.
func (a *Authorizer) Decide(profile Profile) Decision {
	if err := a.Authorize(profile); err != nil {
		return Reject
	}
	return Admit
}
