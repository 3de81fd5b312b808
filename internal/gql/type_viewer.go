package gql

import (
	graphql "github.com/graph-gophers/graphql-go"
	"github.com/savaki/campus-portal/internal/services"
	"github.com/savaki/campus-portal/internal/session"
)

// ViewerResolver resolves the Viewer GraphQL type
type ViewerResolver struct {
	session session.Session
}

// Username resolves the username field
func (r *ViewerResolver) Username() string {
	return r.session.Username
}

// UserID resolves the userId field
func (r *ViewerResolver) UserID() graphql.ID {
	return graphql.ID(r.session.UserID)
}

// FullName resolves the fullName field
func (r *ViewerResolver) FullName() string {
	return r.session.FullName
}

// TrustLevel resolves the trustLevel field
func (r *ViewerResolver) TrustLevel() int32 {
	return int32(r.session.TrustLevel)
}

// Verified reports whether the viewer holds a verified institutional identity
func (r *ViewerResolver) Verified() bool {
	return r.session.Authorized(session.TrustVerified)
}

// Email resolves the optional email field
func (r *ViewerResolver) Email() *string {
	return optional(r.session.Email)
}

// PersonalEmail resolves the optional personalEmail field
func (r *ViewerResolver) PersonalEmail() *string {
	return optional(r.session.PersonalEmail)
}

// StudentID resolves the optional studentId field
func (r *ViewerResolver) StudentID() *string {
	return optional(r.session.StudentID)
}

func optional(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

// PortalResolver resolves the Portal GraphQL type
type PortalResolver struct {
	config *services.Config
}

func (r *PortalResolver) AllowedDomain() string { return r.config.AllowedDomain }
func (r *PortalResolver) HomePath() string      { return r.config.HomePath }
func (r *PortalResolver) PortalPath() string    { return r.config.PortalPath }
func (r *PortalResolver) LoginPath() string     { return r.config.LoginPath }
func (r *PortalResolver) LogoutPath() string    { return "/session/logout" }
