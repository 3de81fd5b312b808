// Package server assembles the HTTP surface of the portal: the login flow,
// the guarded portal pages, GraphQL, metrics and health endpoints.
package server

import (
	"embed"
	"encoding/json"
	"net/http"
	"path"

	"github.com/graph-gophers/graphql-go"
	"github.com/graph-gophers/graphql-go/relay"
	"github.com/savaki/campus-portal/internal/auth"
	"github.com/savaki/campus-portal/internal/di"
	"github.com/savaki/campus-portal/internal/metrics"
	"github.com/savaki/campus-portal/internal/session"
)

//go:embed docroot
var docroot embed.FS

//go:embed graphiql.html
var graphiqlHTML string

type Handler struct {
	authenticator *auth.Authenticator
	schema        *graphql.Schema
}

type ErrorResponse struct {
	Error string `json:"error"`
}

// New returns a Handler serving authenticator's login flow and schema.
func New(authenticator *auth.Authenticator, schema *graphql.Schema) *Handler {
	return &Handler{
		authenticator: authenticator,
		schema:        schema,
	}
}

func NewHandler(container di.Container) *Handler {
	return New(
		di.MustGet[*auth.Authenticator](container),
		di.MustGet[*graphql.Schema](container),
	)
}

// Router configures all HTTP routes
func (h *Handler) Router() http.Handler {
	paths := h.authenticator.Paths()
	mux := http.NewServeMux()

	// Login flow (no authentication required)
	mux.HandleFunc("GET "+paths.Login, h.authenticator.HandleLogin)
	mux.HandleFunc("GET /login/callback", h.authenticator.HandleCallback)
	mux.HandleFunc("GET /session/profile", h.authenticator.HandleProfile)
	mux.HandleFunc("POST /session/logout", h.authenticator.HandleLogout)

	// Public pages
	mux.Handle("GET "+exact(paths.Home), h.page("index.html"))
	mux.Handle("GET "+exact(paths.Forbidden), h.page("forbidden.html"))
	mux.Handle("GET "+exact(paths.Failure), h.page("failed.html"))

	// Portal documents (redirect mode)
	requirePortal := h.authenticator.RequireTrust(session.TrustVerified, true)
	mux.Handle("GET "+paths.Portal, requirePortal(h.page("portal/index.html")))

	// GraphQL (API mode: 401/403 JSON on failure)
	requireAPI := h.authenticator.RequireTrust(session.TrustVerified, false)
	mux.Handle("GET /graphql", requireAPI(http.HandlerFunc(h.handleGraphiQL)))
	mux.Handle("POST /graphql", requireAPI(&relay.Handler{Schema: h.schema}))

	mux.Handle("GET /metrics", metrics.Handler())
	mux.HandleFunc("GET /healthz", h.handleHealth)

	return mux
}

// exact anchors a path ending in / so it does not match its subtree.
func exact(p string) string {
	if p == "/" || p[len(p)-1] == '/' {
		return p + "{$}"
	}
	return p
}

func (h *Handler) handleHealth(w http.ResponseWriter, r *http.Request) {
	h.jsonResponse(w, http.StatusOK, map[string]string{"status": "ok"})
}

// handleGraphiQL serves the GraphiQL interface
func (h *Handler) handleGraphiQL(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte(graphiqlHTML))
}

// page serves one embedded HTML document.
func (h *Handler) page(name string) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		content, err := docroot.ReadFile(path.Join("docroot", name))
		if err != nil {
			h.errorResponse(w, http.StatusNotFound, "not found")
			return
		}

		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		w.Header().Set("Cache-Control", "no-store")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write(content)
	})
}

// jsonResponse writes a JSON response
func (h *Handler) jsonResponse(w http.ResponseWriter, statusCode int, data interface{}) {
	body, err := json.Marshal(data)
	if err != nil {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusInternalServerError)
		_, _ = w.Write([]byte(`{"error":"failed to marshal response"}`))
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	_, _ = w.Write(body)
}

// errorResponse writes an error JSON response
func (h *Handler) errorResponse(w http.ResponseWriter, statusCode int, message string) {
	h.jsonResponse(w, statusCode, ErrorResponse{Error: message})
}
