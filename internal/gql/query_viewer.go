package gql

import (
	"context"

	"github.com/savaki/campus-portal/internal/session"
)

// Viewer resolves the session placed in the context by the access guard.
func (r *Resolver) Viewer(ctx context.Context) *ViewerResolver {
	s, ok := session.FromContext(ctx)
	if !ok || !s.Authenticated() {
		return nil
	}
	return &ViewerResolver{session: s}
}

// Portal resolves the public portal settings
func (r *Resolver) Portal() *PortalResolver {
	return &PortalResolver{config: r.appConfig}
}
