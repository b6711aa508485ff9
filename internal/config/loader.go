package config

import (
	"fmt"
	"log/slog"
	"os"
	"strings"

	"github.com/BurntSushi/toml"
)

// Mode represents the server operating mode.
type Mode string

const (
	ModeProd Mode = "prod"
	ModeDev  Mode = "dev"
)

// ParseMode parses a mode string, returning an error for invalid values.
func ParseMode(s string) (Mode, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "prod", "":
		return ModeProd, nil
	case "dev":
		return ModeDev, nil
	default:
		return "", fmt.Errorf("invalid mode %q: must be one of prod, dev", s)
	}
}

// LoaderOptions controls how configuration is loaded.
type LoaderOptions struct {
	// ConfigPath is the path to a TOML config file (optional).
	// If provided but file is missing or invalid, loading fails.
	ConfigPath string

	// ModeFlag is the --mode flag value (overrides config file mode).
	ModeFlag string

	// FlagOverrides are CLI flag values that override config file values.
	FlagOverrides FlagOverrides

	// Logger is used for warning messages (e.g., undecoded keys).
	// If nil, slog.Default() is used.
	Logger *slog.Logger
}

// FlagOverrides holds CLI flag values that override config file values.
// Nil pointers mean the flag was not set.
type FlagOverrides struct {
	ListenAddr       *string
	ExternalOrigin   *string
	ExternalBasePath *string
	TLSMode          *string
	StoreDriver      *string
	DataDir          *string
	AdminUsername    *string
	AdminPassword    *string
	LoggingLevel     *string
	LoggingFormat    *string
}

// fileConfig mirrors Config but with pointer sections to detect presence.
type fileConfig struct {
	Mode   string        `toml:"mode"`
	Server *serverConfig `toml:"server"`

	ExternalOrigin   string `toml:"external_origin"`
	ExternalBasePath string `toml:"external_base_path"`
	ListenAddr       string `toml:"listen_addr"`

	TLS     *tlsFileConfig     `toml:"tls"`
	Logging *loggingFileConfig `toml:"logging"`
	Store   *storeFileConfig   `toml:"store"`
	Cache   *cacheFileConfig   `toml:"cache"`
	Invites *invitesFileConfig `toml:"invites"`
}

type serverConfig struct {
	TrustedProxies     []string        `toml:"trusted_proxies"`
	BootstrapAdmin     *bootstrapAdmin `toml:"bootstrap_admin"`
	CORSAllowedOrigins []string        `toml:"cors_allowed_origins"`
}

type bootstrapAdmin struct {
	Username string `toml:"username"`
	Password string `toml:"password"`
}

type tlsFileConfig struct {
	Mode     string          `toml:"mode"`
	CertFile string          `toml:"cert_file"`
	KeyFile  string          `toml:"key_file"`
	ACME     *acmeFileConfig `toml:"acme"`
}

type acmeFileConfig struct {
	Domain     string `toml:"domain"`
	Email      string `toml:"email"`
	StorageDir string `toml:"storage_dir"`
	UseStaging *bool  `toml:"use_staging"`
	HTTPPort   int    `toml:"http_port"`
}

type loggingFileConfig struct {
	Level  string `toml:"level"`
	Format string `toml:"format"`
}

type storeFileConfig struct {
	Driver  string `toml:"driver"`
	DataDir string `toml:"data_dir"`
}

type cacheFileConfig struct {
	Driver  string                    `toml:"driver"`
	Drivers map[string]map[string]any `toml:"drivers"`
}

type invitesFileConfig struct {
	DecisionTokenTTLSeconds int `toml:"decision_token_ttl_seconds"`
	ExpirySweepSeconds      int `toml:"expiry_sweep_seconds"`
}

// Load loads configuration with the following precedence:
//  1. Determine effective mode: --mode flag > mode in config file > default (prod)
//  2. Start from mode preset defaults
//  3. Overlay TOML config file values
//  4. Overlay CLI flags
//  5. Validate enum fields
//
// If ConfigPath is provided but the file is missing, unreadable, or invalid TOML,
// Load returns an error (fail fast). Unknown/undecoded TOML keys produce a warning
// but do not fail the load.
func Load(opts LoaderOptions) (*Config, error) {
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}

	var fc fileConfig

	// Step 1: Load TOML file if provided
	if opts.ConfigPath != "" {
		data, err := os.ReadFile(opts.ConfigPath)
		if err != nil {
			return nil, fmt.Errorf("failed to read config file %s: %w", opts.ConfigPath, err)
		}
		md, err := toml.Decode(string(data), &fc)
		if err != nil {
			return nil, fmt.Errorf("failed to parse config file %s: %w", opts.ConfigPath, err)
		}

		// Warn about undecoded keys (do not fail)
		if undecoded := md.Undecoded(); len(undecoded) > 0 {
			keys := make([]string, len(undecoded))
			for i, k := range undecoded {
				keys[i] = k.String()
			}
			logger.Warn("config file contains undecoded keys", "path", opts.ConfigPath, "keys", keys)
		}
	}

	// Step 2: Determine effective mode
	modeStr := string(ModeProd)
	if fc.Mode != "" {
		modeStr = fc.Mode
	}
	if opts.ModeFlag != "" {
		modeStr = opts.ModeFlag
	}

	mode, err := ParseMode(modeStr)
	if err != nil {
		return nil, err
	}

	// Step 3: Start from mode preset
	cfg := presetForMode(mode)

	// Step 4: Overlay TOML values
	if opts.ConfigPath != "" {
		overlayFileConfig(cfg, &fc)
	}

	// Step 5: Overlay CLI flags
	overlayFlags(cfg, opts.FlagOverrides)

	// Step 6: Validate enum fields (fatal on invalid values)
	if err := validateEnums(cfg); err != nil {
		return nil, err
	}

	return cfg, nil
}

// presetForMode returns the base config for a given mode.
func presetForMode(mode Mode) *Config {
	switch mode {
	case ModeDev:
		return DevConfig()
	default:
		return ProdConfig()
	}
}

// ProdConfig returns production-safe defaults.
func ProdConfig() *Config {
	cfg := DefaultConfig()
	cfg.Mode = string(ModeProd)
	cfg.ExternalOrigin = "https://localhost:9300"
	cfg.Server.TrustedProxies = []string{"127.0.0.0/8", "::1/128"}
	cfg.TLS.Mode = "selfsigned"
	cfg.TLS.ACME.StorageDir = ".homestock/acme"
	cfg.Store.Driver = "sqlite"
	return cfg
}

// DevConfig returns development mode defaults.
func DevConfig() *Config {
	cfg := DefaultConfig()
	cfg.Mode = string(ModeDev)
	cfg.Server.TrustedProxies = []string{"127.0.0.0/8", "::1/128"}
	cfg.TLS.Mode = "off"
	cfg.TLS.ACME.StorageDir = ".homestock/acme"
	cfg.TLS.ACME.UseStaging = true
	cfg.Logging.Level = "debug"
	cfg.Logging.Format = "pretty"
	return cfg
}

// overlayFileConfig applies TOML file values onto cfg.
func overlayFileConfig(cfg *Config, fc *fileConfig) {
	if fc.ExternalOrigin != "" {
		cfg.ExternalOrigin = fc.ExternalOrigin
	}
	if fc.ExternalBasePath != "" {
		cfg.ExternalBasePath = fc.ExternalBasePath
	}
	if fc.ListenAddr != "" {
		cfg.ListenAddr = fc.ListenAddr
	}

	if fc.Server != nil {
		if len(fc.Server.TrustedProxies) > 0 {
			cfg.Server.TrustedProxies = fc.Server.TrustedProxies
		}
		if len(fc.Server.CORSAllowedOrigins) > 0 {
			cfg.Server.CORSAllowedOrigins = fc.Server.CORSAllowedOrigins
		}
		if fc.Server.BootstrapAdmin != nil {
			if fc.Server.BootstrapAdmin.Username != "" {
				cfg.Server.BootstrapAdmin.Username = fc.Server.BootstrapAdmin.Username
			}
			if fc.Server.BootstrapAdmin.Password != "" {
				cfg.Server.BootstrapAdmin.Password = fc.Server.BootstrapAdmin.Password
			}
		}
	}

	if fc.TLS != nil {
		if fc.TLS.Mode != "" {
			cfg.TLS.Mode = fc.TLS.Mode
		}
		if fc.TLS.CertFile != "" {
			cfg.TLS.CertFile = fc.TLS.CertFile
		}
		if fc.TLS.KeyFile != "" {
			cfg.TLS.KeyFile = fc.TLS.KeyFile
		}
		if fc.TLS.ACME != nil {
			if fc.TLS.ACME.Domain != "" {
				cfg.TLS.ACME.Domain = fc.TLS.ACME.Domain
			}
			if fc.TLS.ACME.Email != "" {
				cfg.TLS.ACME.Email = fc.TLS.ACME.Email
			}
			if fc.TLS.ACME.StorageDir != "" {
				cfg.TLS.ACME.StorageDir = fc.TLS.ACME.StorageDir
			}
			if fc.TLS.ACME.UseStaging != nil {
				cfg.TLS.ACME.UseStaging = *fc.TLS.ACME.UseStaging
			}
			if fc.TLS.ACME.HTTPPort != 0 {
				cfg.TLS.ACME.HTTPPort = fc.TLS.ACME.HTTPPort
			}
		}
	}

	if fc.Logging != nil {
		if fc.Logging.Level != "" {
			cfg.Logging.Level = fc.Logging.Level
		}
		if fc.Logging.Format != "" {
			cfg.Logging.Format = fc.Logging.Format
		}
	}

	if fc.Store != nil {
		if fc.Store.Driver != "" {
			cfg.Store.Driver = fc.Store.Driver
		}
		if fc.Store.DataDir != "" {
			cfg.Store.DataDir = fc.Store.DataDir
		}
	}

	if fc.Cache != nil {
		if fc.Cache.Driver != "" {
			cfg.Cache.Driver = fc.Cache.Driver
		}
		if len(fc.Cache.Drivers) > 0 {
			cfg.Cache.Drivers = fc.Cache.Drivers
		}
	}

	if fc.Invites != nil {
		if fc.Invites.DecisionTokenTTLSeconds > 0 {
			cfg.Invites.DecisionTokenTTLSeconds = fc.Invites.DecisionTokenTTLSeconds
		}
		if fc.Invites.ExpirySweepSeconds > 0 {
			cfg.Invites.ExpirySweepSeconds = fc.Invites.ExpirySweepSeconds
		}
	}
}

// overlayFlags applies CLI flag values onto cfg.
func overlayFlags(cfg *Config, flags FlagOverrides) {
	setIfPresent := func(dst *string, src *string) {
		if src != nil && *src != "" {
			*dst = *src
		}
	}

	setIfPresent(&cfg.ListenAddr, flags.ListenAddr)
	setIfPresent(&cfg.ExternalOrigin, flags.ExternalOrigin)
	setIfPresent(&cfg.ExternalBasePath, flags.ExternalBasePath)
	setIfPresent(&cfg.TLS.Mode, flags.TLSMode)
	setIfPresent(&cfg.Store.Driver, flags.StoreDriver)
	setIfPresent(&cfg.Store.DataDir, flags.DataDir)
	setIfPresent(&cfg.Server.BootstrapAdmin.Username, flags.AdminUsername)
	setIfPresent(&cfg.Server.BootstrapAdmin.Password, flags.AdminPassword)
	setIfPresent(&cfg.Logging.Level, flags.LoggingLevel)
	setIfPresent(&cfg.Logging.Format, flags.LoggingFormat)
}

// validateEnums checks enum-valued fields, failing fast on invalid values.
func validateEnums(cfg *Config) error {
	switch cfg.TLS.Mode {
	case "off", "static", "selfsigned", "acme":
	default:
		return fmt.Errorf("invalid tls.mode %q: must be one of off, static, selfsigned, acme", cfg.TLS.Mode)
	}

	switch cfg.Logging.Level {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("invalid logging.level %q: must be one of debug, info, warn, error", cfg.Logging.Level)
	}

	switch cfg.Logging.Format {
	case "json", "pretty":
	default:
		return fmt.Errorf("invalid logging.format %q: must be one of json, pretty", cfg.Logging.Format)
	}

	switch cfg.Store.Driver {
	case "memory", "sqlite":
	default:
		return fmt.Errorf("invalid store.driver %q: must be one of memory, sqlite", cfg.Store.Driver)
	}

	return nil
}
