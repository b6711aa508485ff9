// Package main is the entrypoint for the homestock server.
package main

import (
	"context"
	"flag"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"github.com/pantryware/homestock/internal/cache"
	"github.com/pantryware/homestock/internal/config"
	"github.com/pantryware/homestock/internal/identity"
	"github.com/pantryware/homestock/internal/invites"
	"github.com/pantryware/homestock/internal/logging"
	"github.com/pantryware/homestock/internal/server"
	"github.com/pantryware/homestock/internal/store"

	// Register cache and store drivers
	_ "github.com/pantryware/homestock/internal/cache/loader"
	_ "github.com/pantryware/homestock/internal/store/sqlite"
)

func main() {
	// Load .env if present; real environment wins over file values.
	_ = godotenv.Load()

	// Parse flags
	configPath := flag.String("config", "", "Path to TOML config file (optional)")
	modeFlag := flag.String("mode", "", "Operating mode: prod or dev (overrides config)")
	listenAddr := flag.String("listen", "", "Listen address (overrides config)")
	externalOrigin := flag.String("external-origin", "", "External origin (overrides config)")
	externalBasePath := flag.String("external-base-path", "", "External base path (overrides config)")
	tlsMode := flag.String("tls-mode", "", "TLS mode: off, static, selfsigned, or acme (overrides config)")
	storeDriver := flag.String("store-driver", "", "Store driver: memory or sqlite (overrides config)")
	dataDir := flag.String("data-dir", "", "Data directory for the store (overrides config)")
	adminUsername := flag.String("admin-username", "", "Bootstrap admin username (overrides config)")
	adminPassword := flag.String("admin-password", "", "Bootstrap admin password (overrides config)")
	loggingLevel := flag.String("logging-level", "", "Log level: debug, info, warn, error (overrides config)")
	loggingFormat := flag.String("logging-format", "", "Log format: json or pretty (overrides config)")
	flag.Parse()

	// Bootstrap logger for config loading errors (uses default level)
	bootstrapLogger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	}))

	// Load config with precedence: mode preset -> TOML file -> CLI flags
	cfg, err := config.Load(config.LoaderOptions{
		ConfigPath: *configPath,
		ModeFlag:   *modeFlag,
		FlagOverrides: config.FlagOverrides{
			ListenAddr:       listenAddr,
			ExternalOrigin:   externalOrigin,
			ExternalBasePath: externalBasePath,
			TLSMode:          tlsMode,
			StoreDriver:      storeDriver,
			DataDir:          dataDir,
			AdminUsername:    adminUsername,
			AdminPassword:    adminPassword,
			LoggingLevel:     loggingLevel,
			LoggingFormat:    loggingFormat,
		},
		Logger: bootstrapLogger,
	})
	if err != nil {
		bootstrapLogger.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	logger := logging.Setup(cfg.Logging.Format, logging.ParseLevel(cfg.Logging.Level))
	slog.SetDefault(logger)

	// Log effective config with secrets redacted
	logger.Info("effective configuration", "config", cfg.Redacted())

	// Open the persistence driver
	driver, err := store.New(&store.DriverConfig{
		Driver:  cfg.Store.Driver,
		DataDir: cfg.Store.DataDir,
	})
	if err != nil {
		logger.Error("failed to create store driver", "error", err, "available", store.AvailableDrivers())
		os.Exit(1)
	}
	if err := driver.Init(context.Background()); err != nil {
		logger.Error("failed to initialize store", "driver", driver.Name(), "error", err)
		os.Exit(1)
	}
	defer driver.Close()
	logger.Info("store initialized", "driver", driver.Name())

	// Identity components: sessions stay in memory, users follow the store
	sessionRepo := identity.NewMemorySessionRepo()
	userAuth := identity.NewUserAuth(0) // default bcrypt cost

	// Bootstrap admin user
	bootstrap := identity.NewBootstrap(driver.Users(), userAuth, logger)
	adminUser := identity.SeededUser{
		Username: cfg.Server.BootstrapAdmin.Username,
		Password: cfg.Server.BootstrapAdmin.Password,
	}
	if adminUser.Username == "" {
		adminUser.Username = "admin"
	}
	if _, err := bootstrap.Run(context.Background(), adminUser, nil); err != nil {
		logger.Error("failed to bootstrap admin", "error", err)
		os.Exit(1)
	}

	// Create cache (defaults to in-memory if not configured)
	// Passes driver-specific config from [cache.drivers.<driver>] section
	cacheDriver := cfg.Cache.Driver
	if cacheDriver == "" {
		cacheDriver = "memory"
	}
	cacheInstance, err := cache.NewFromConfig(cacheDriver, cfg.Cache.Drivers)
	if err != nil {
		logger.Error("failed to create cache", "error", err)
		os.Exit(1)
	}
	defer cacheInstance.Close()

	// Create server dependencies
	deps := &server.Deps{
		PartyRepo:       driver.Users(),
		SessionRepo:     sessionRepo,
		UserAuth:        userAuth,
		Cache:           cacheInstance,
		FamilyRepo:      driver.Families(),
		MemberRepo:      driver.Members(),
		InvitationRepo:  driver.Invitations(),
		ItemRepo:        driver.Items(),
		ListRepo:        driver.Lists(),
		NFCURLRepo:      driver.NFCURLs(),
		PreferencesRepo: driver.Preferences(),
	}

	// Create and start server
	srv, err := server.New(cfg, logger, deps)
	if err != nil {
		logger.Error("failed to create server", "error", err)
		os.Exit(1)
	}

	// Setup graceful shutdown
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Background sweep marking overdue pending invitations as expired
	sweepInterval := time.Duration(cfg.Invites.ExpirySweepSeconds) * time.Second
	sweeper := invites.NewSweeper(logger, driver.Invitations(), sweepInterval)
	go sweeper.Run(ctx)

	go func() {
		if err := srv.Start(); err != nil {
			logger.Error("server error", "error", err)
			os.Exit(1)
		}
	}()

	logger.Info("server started, press Ctrl+C to stop")

	// Wait for shutdown signal
	<-ctx.Done()
	logger.Info("shutdown signal received")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("shutdown error", "error", err)
		os.Exit(1)
	}

	logger.Info("server stopped")
}
