// Package server provides HTTP server wiring and lifecycle management.
package server

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/pantryware/homestock/internal/api"
	"github.com/pantryware/homestock/internal/cache"
	"github.com/pantryware/homestock/internal/config"
	"github.com/pantryware/homestock/internal/family"
	"github.com/pantryware/homestock/internal/identity"
	"github.com/pantryware/homestock/internal/inventory"
	"github.com/pantryware/homestock/internal/invites"
	"github.com/pantryware/homestock/internal/nfc"
	"github.com/pantryware/homestock/internal/notifications"
)

var ErrMissingDep = errors.New("missing required dependency")

// Deps holds all server dependencies.
type Deps struct {
	// Required: identity and auth
	PartyRepo   identity.PartyRepo
	SessionRepo identity.SessionRepo
	UserAuth    *identity.UserAuth

	// Required: cache for decision tokens and rate limiting
	Cache cache.Cache

	// Optional: persistence repos (nil uses in-memory)
	FamilyRepo      family.FamilyRepo
	MemberRepo      family.MemberRepo
	InvitationRepo  invites.Repo
	ItemRepo        inventory.ItemRepo
	ListRepo        inventory.ListRepo
	NFCURLRepo      nfc.URLRepo
	PreferencesRepo notifications.Repo
}

// Server wraps the HTTP server and its dependencies.
type Server struct {
	cfg            *config.Config
	httpServer     *http.Server
	logger         *slog.Logger
	deps           *Deps
	trustedProxies *TrustedProxies

	authHandler      *api.AuthHandler
	familyHandler    *family.Handler
	invitesHandler   *invites.Handler
	inventoryHandler *inventory.Handler
	nfcHandler       *nfc.Handler
	prefsHandler     *notifications.Handler
	tokenStore       *invites.TokenStore
}

// New creates a new Server with the given configuration.
// Returns an error if required dependencies are missing.
func New(cfg *config.Config, logger *slog.Logger, deps *Deps) (*Server, error) {
	// Fail fast: validate required dependencies
	if err := validateDeps(deps); err != nil {
		return nil, err
	}

	// Initialize default in-memory repos for optional dependencies
	initializeDefaultRepos(deps)

	authHandler := api.NewAuthHandler(deps.PartyRepo, deps.SessionRepo, deps.UserAuth)

	familySvc := family.NewService(deps.FamilyRepo, deps.MemberRepo)
	familyHandler := family.NewHandler(logger, familySvc, currentUser)

	tokenTTL := time.Duration(cfg.Invites.DecisionTokenTTLSeconds) * time.Second
	tokenStore := invites.NewTokenStore(deps.Cache, tokenTTL)
	invitesHandler := invites.NewHandler(logger, deps.InvitationRepo, tokenStore, familySvc, deps.PartyRepo, currentUser)

	inventoryHandler := inventory.NewHandler(logger, deps.ItemRepo, deps.ListRepo, deps.MemberRepo, currentUser)

	processor := nfc.NewProcessor(deps.NFCURLRepo, deps.ItemRepo)
	nfcHandler := nfc.NewHandler(logger, deps.NFCURLRepo, deps.ItemRepo, deps.MemberRepo, processor, currentUser)

	prefsHandler := notifications.NewHandler(logger, deps.PreferencesRepo, currentUser)

	// Trusted proxy handler for X-Forwarded-* header processing
	trustedProxies := NewTrustedProxies(cfg.Server.TrustedProxies)

	s := &Server{
		cfg:              cfg,
		logger:           logger,
		deps:             deps,
		trustedProxies:   trustedProxies,
		authHandler:      authHandler,
		familyHandler:    familyHandler,
		invitesHandler:   invitesHandler,
		inventoryHandler: inventoryHandler,
		nfcHandler:       nfcHandler,
		prefsHandler:     prefsHandler,
		tokenStore:       tokenStore,
	}

	router := s.setupRoutes()

	s.httpServer = &http.Server{
		Addr:         cfg.ListenAddr,
		Handler:      router,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	return s, nil
}

// Start starts the HTTP server. It blocks until the server is shut down.
func (s *Server) Start() error {
	s.logger.Info("starting server",
		"addr", s.cfg.ListenAddr,
		"external_origin", s.cfg.ExternalOrigin,
		"external_base_path", s.cfg.ExternalBasePath,
		"tls_mode", s.cfg.TLS.Mode,
	)

	switch s.cfg.TLS.Mode {
	case "off":
		return s.httpServer.ListenAndServe()

	case "acme":
		return s.startACME()

	case "static", "selfsigned":
		tlsManager := NewTLSManager(&s.cfg.TLS, s.logger)
		hostname := extractHostname(s.cfg.ExternalOrigin)
		tlsConfig, err := tlsManager.GetTLSConfig(hostname)
		if err != nil {
			return fmt.Errorf("failed to configure TLS: %w", err)
		}
		if tlsConfig == nil {
			return fmt.Errorf("TLS config is nil for mode %s", s.cfg.TLS.Mode)
		}

		s.httpServer.TLSConfig = tlsConfig
		s.logger.Info("starting server with TLS", "mode", s.cfg.TLS.Mode)

		// Certs live in TLSConfig.Certificates, so the file args stay empty.
		return s.httpServer.ListenAndServeTLS("", "")

	default:
		return fmt.Errorf("%w: %s", ErrInvalidTLSMode, s.cfg.TLS.Mode)
	}
}

// startACME obtains a certificate via ACME and serves TLS with it. The
// HTTP-01 challenge listener runs on the configured HTTP port for the
// lifetime of the server so renewals keep working.
func (s *Server) startACME() error {
	acmeMgr := NewACMEManager(&s.cfg.TLS.ACME, s.logger)

	httpPort := s.cfg.TLS.ACME.HTTPPort
	if httpPort == 0 {
		httpPort = 80
	}
	challengeServer := &http.Server{
		Addr:        fmt.Sprintf(":%d", httpPort),
		Handler:     acmeMgr.ChallengeHandler(),
		ReadTimeout: 10 * time.Second,
	}
	go func() {
		if err := challengeServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.logger.Error("ACME challenge listener", "error", err)
		}
	}()
	defer challengeServer.Close()

	if err := acmeMgr.Init(context.Background()); err != nil {
		return fmt.Errorf("failed to initialize ACME: %w", err)
	}

	s.httpServer.TLSConfig = acmeMgr.GetTLSConfig()
	s.logger.Info("starting server with TLS", "mode", "acme", "domain", s.cfg.TLS.ACME.Domain)
	return s.httpServer.ListenAndServeTLS("", "")
}

// Shutdown gracefully shuts down the server.
func (s *Server) Shutdown(ctx context.Context) error {
	s.logger.Info("shutting down server")
	return s.httpServer.Shutdown(ctx)
}

// TokenStore exposes the decision token store, mainly for tests.
func (s *Server) TokenStore() *invites.TokenStore {
	return s.tokenStore
}

// currentUser resolves the authenticated user placed in the request
// context by authMiddleware. Handlers treat a missing user as
// unauthenticated.
func currentUser(ctx context.Context) (*identity.User, error) {
	user := GetUserFromContext(ctx)
	if user == nil {
		return nil, identity.ErrSessionNotFound
	}
	return user, nil
}

// extractHostname extracts just the hostname from an external origin URL.
// For TLS certificate generation, we need the hostname without port.
func extractHostname(externalOrigin string) string {
	fqdn := externalOrigin
	if after, ok := cutPrefix(fqdn, "https://"); ok {
		fqdn = after
	} else if after, ok := cutPrefix(fqdn, "http://"); ok {
		fqdn = after
	}
	if len(fqdn) > 0 && fqdn[len(fqdn)-1] == '/' {
		fqdn = fqdn[:len(fqdn)-1]
	}
	// Remove port if present
	for i := len(fqdn) - 1; i >= 0; i-- {
		if fqdn[i] == ':' {
			return fqdn[:i]
		}
		if fqdn[i] == ']' {
			// IPv6 address like [::1]:8080
			break
		}
	}
	return fqdn
}

func cutPrefix(s, prefix string) (string, bool) {
	if len(s) > len(prefix) && s[:len(prefix)] == prefix {
		return s[len(prefix):], true
	}
	return s, false
}

// validateDeps checks that all required dependencies are provided.
func validateDeps(deps *Deps) error {
	if deps == nil {
		return errors.New("deps is nil")
	}

	if deps.PartyRepo == nil {
		return fmt.Errorf("%w: PartyRepo", ErrMissingDep)
	}
	if deps.SessionRepo == nil {
		return fmt.Errorf("%w: SessionRepo", ErrMissingDep)
	}
	if deps.UserAuth == nil {
		return fmt.Errorf("%w: UserAuth", ErrMissingDep)
	}
	if deps.Cache == nil {
		return fmt.Errorf("%w: Cache", ErrMissingDep)
	}

	// Optional deps are allowed to be nil
	return nil
}

// initializeDefaultRepos initializes in-memory repos for optional
// dependencies that are nil. This ensures handlers always have valid repos
// to work with.
func initializeDefaultRepos(deps *Deps) {
	if deps.FamilyRepo == nil {
		deps.FamilyRepo = family.NewMemoryFamilyRepo()
	}
	if deps.MemberRepo == nil {
		deps.MemberRepo = family.NewMemoryMemberRepo()
	}
	if deps.InvitationRepo == nil {
		deps.InvitationRepo = invites.NewMemoryRepo()
	}
	if deps.ItemRepo == nil {
		deps.ItemRepo = inventory.NewMemoryItemRepo()
	}
	if deps.ListRepo == nil {
		deps.ListRepo = inventory.NewMemoryListRepo()
	}
	if deps.NFCURLRepo == nil {
		deps.NFCURLRepo = nfc.NewMemoryURLRepo()
	}
	if deps.PreferencesRepo == nil {
		deps.PreferencesRepo = notifications.NewMemoryRepo()
	}
}
