package server

import (
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/rs/cors"

	"github.com/pantryware/homestock/internal/api"
	"github.com/pantryware/homestock/internal/metrics"
)

// RouteGroup defines an endpoint group with its auth requirements.
type RouteGroup struct {
	Name         string
	PathPrefix   string
	RequiresAuth bool
	AtHostRoot   bool // true for endpoints that must be at host root, not under base path
}

// routeGroups defines all endpoint groups and their auth requirements.
// This table is the single source of truth for routing decisions.
// Order matters: more specific prefixes come before their parents.
var routeGroups = []RouteGroup{
	// Root-only endpoints (must be at host root, never under external_base_path)
	{Name: "metrics", PathPrefix: "/metrics", RequiresAuth: false, AtHostRoot: true},

	// App endpoints (mounted under external_base_path)
	{Name: "nfc-adjust", PathPrefix: "/api/adjust", RequiresAuth: false, AtHostRoot: false}, // possession of the URL ID is the credential
	{Name: "api", PathPrefix: "/api", RequiresAuth: true, AtHostRoot: false},                // API: auth required (exceptions in publicExceptions)
}

// GetRouteGroups returns the route group definitions for testing.
func GetRouteGroups() []RouteGroup {
	return routeGroups
}

// publicExceptions are specific paths that don't require auth within otherwise protected groups.
var publicExceptions = []string{
	"/api/healthz",
	"/api/auth/login",
}

// IsAuthRequired checks if a given path requires authentication.
// This is used by the auth middleware to make gating decisions.
func IsAuthRequired(path string, basePath string) bool {
	// Check root-only endpoints first
	for _, rg := range routeGroups {
		if rg.AtHostRoot {
			if pathMatchesPrefix(path, rg.PathPrefix) {
				return rg.RequiresAuth
			}
		}
	}

	// Check public exceptions (paths that are always public)
	for _, exc := range publicExceptions {
		fullExc := basePath + exc
		if pathMatchesPrefix(path, fullExc) {
			return false
		}
	}

	// Check base-path-mounted endpoints
	for _, rg := range routeGroups {
		if !rg.AtHostRoot {
			fullPrefix := basePath + rg.PathPrefix
			if pathMatchesPrefix(path, fullPrefix) {
				return rg.RequiresAuth
			}
		}
	}

	// Default: require auth for unknown paths
	return true
}

// pathMatchesPrefix checks if path equals or is a subpath of prefix.
func pathMatchesPrefix(path, prefix string) bool {
	if path == prefix {
		return true
	}
	if len(path) > len(prefix) && path[:len(prefix)] == prefix {
		// Check for path separator
		if path[len(prefix)] == '/' {
			return true
		}
	}
	return false
}

// setupRoutes creates the chi router with all route groups mounted.
func (s *Server) setupRoutes() chi.Router {
	r := chi.NewRouter()

	// Global middleware stack (order matters for correct logging)
	// RequestID must come first so GetReqID works in loggingMiddleware.
	// loggingMiddleware wraps response, Recoverer writes through wrapper,
	// so access log captures correct status for panics.
	r.Use(middleware.RequestID)
	r.Use(s.loggingMiddleware)
	r.Use(middleware.Recoverer)

	if len(s.cfg.Server.CORSAllowedOrigins) > 0 {
		r.Use(cors.New(cors.Options{
			AllowedOrigins:   s.cfg.Server.CORSAllowedOrigins,
			AllowedMethods:   []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
			AllowedHeaders:   []string{"Authorization", "Content-Type"},
			AllowCredentials: true,
		}).Handler)
	}

	// Rate limiting for high-risk public endpoints
	rateLimitConfig := map[string]RateLimitConfig{
		"/api/auth/login": {RequestsPerMinute: 5, Burst: 2},
		"/api/adjust":     {RequestsPerMinute: 30, Burst: 10},
	}
	r.Use(s.rateLimitMiddleware(rateLimitConfig))

	// Auth middleware for all routes (checks IsAuthRequired)
	r.Use(s.authMiddleware)

	// Prometheus metrics at host root
	r.Handle("/metrics", metrics.Handler())

	// Mount app endpoints under external_base_path
	if s.cfg.ExternalBasePath != "" {
		r.Route(s.cfg.ExternalBasePath, func(r chi.Router) {
			s.mountAppEndpoints(r)
		})
	} else {
		s.mountAppEndpoints(r)
	}

	return r
}

// mountAppEndpoints mounts app endpoints (may be under base path).
func (s *Server) mountAppEndpoints(r chi.Router) {
	r.Route("/api", func(r chi.Router) {
		// Health endpoint (public)
		r.Get("/healthz", api.HealthHandler)

		// Auth endpoints (login is public)
		r.Route("/auth", func(r chi.Router) {
			r.Post("/login", s.authHandler.Login)
			r.Post("/logout", s.authHandler.Logout)
			r.Get("/me", s.authHandler.GetCurrentUser)
		})

		// Public NFC adjustment endpoint: possession of the unguessable
		// URL ID is the credential, no session required.
		r.Post("/adjust/{urlId}", s.nfcHandler.HandleAdjust)

		// Family management (authenticated)
		r.Route("/families", func(r chi.Router) {
			r.Post("/", s.familyHandler.HandleCreate)
			r.Get("/current", s.familyHandler.HandleGet)
			r.Patch("/current", s.familyHandler.HandleUpdate)
			r.Get("/current/members", s.familyHandler.HandleListMembers)
			r.Patch("/current/members/{memberId}", s.familyHandler.HandleUpdateMember)
			r.Delete("/current/members/{memberId}", s.familyHandler.HandleRemoveMember)
			r.Post("/current/invitations", s.invitesHandler.HandleCreate)
		})

		// Invitation inbox and decisions (authenticated)
		r.Route("/invitations", func(r chi.Router) {
			r.Get("/", s.invitesHandler.HandleList)
			r.Post("/decline-all", s.invitesHandler.HandleDeclineAll)
			r.Post("/{invitationId}/accept", s.invitesHandler.HandleAccept)
			r.Post("/{invitationId}/decline", s.invitesHandler.HandleDecline)
			r.Delete("/{invitationId}", s.invitesHandler.HandleRevoke)
		})

		// Inventory items (authenticated)
		r.Route("/items", func(r chi.Router) {
			r.Post("/", s.inventoryHandler.HandleCreateItem)
			r.Get("/", s.inventoryHandler.HandleListItems)
			r.Get("/{itemId}", s.inventoryHandler.HandleGetItem)
			r.Patch("/{itemId}", s.inventoryHandler.HandleUpdateItem)
			r.Delete("/{itemId}", s.inventoryHandler.HandleDeleteItem)
			r.Post("/{itemId}/adjust", s.inventoryHandler.HandleAdjustItem)
			r.Post("/{itemId}/nfc", s.nfcHandler.HandleCreateURL)
			r.Get("/{itemId}/nfc", s.nfcHandler.HandleListURLs)
		})

		// NFC URL lifecycle (authenticated)
		r.Route("/nfc", func(r chi.Router) {
			r.Post("/{urlId}/rotate", s.nfcHandler.HandleRotateURL)
			r.Delete("/{urlId}", s.nfcHandler.HandleDeactivateURL)
		})

		// Shopping lists (authenticated)
		r.Route("/lists", func(r chi.Router) {
			r.Post("/", s.inventoryHandler.HandleCreateList)
			r.Get("/", s.inventoryHandler.HandleLists)
			r.Get("/{listId}", s.inventoryHandler.HandleGetList)
			r.Delete("/{listId}", s.inventoryHandler.HandleDeleteList)
			r.Post("/{listId}/entries", s.inventoryHandler.HandleAddEntry)
			r.Patch("/{listId}/entries/{entryId}", s.inventoryHandler.HandleUpdateEntry)
			r.Delete("/{listId}/entries/{entryId}", s.inventoryHandler.HandleDeleteEntry)
		})

		// Notification preferences (authenticated)
		r.Route("/preferences", func(r chi.Router) {
			r.Get("/", s.prefsHandler.HandleGet)
			r.Put("/", s.prefsHandler.HandlePut)
		})
	})
}
