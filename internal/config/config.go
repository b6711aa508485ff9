// Package config provides configuration loading and validation.
package config

// Config holds the server configuration.
type Config struct {
	// Mode is the effective operating mode: dev or prod.
	Mode string `json:"mode"`

	// ExternalOrigin is the public origin (scheme + host + port) for this
	// instance. NFC adjust links embed it.
	// Example: "https://home.example.net"
	ExternalOrigin string `json:"external_origin"`

	// ExternalBasePath is the optional path prefix for app endpoints.
	// Example: "/homestock" or empty string
	ExternalBasePath string `json:"external_base_path"`

	// ListenAddr is the address to listen on.
	// Example: ":9300"
	ListenAddr string `json:"listen_addr"`

	// Server holds server-specific settings.
	Server ServerConfig `json:"server"`

	// TLS configuration.
	TLS TLSConfig `json:"tls"`

	// Logging configuration.
	Logging LoggingConfig `json:"logging"`

	// Store selects and configures the persistence driver.
	Store StoreConfig `json:"store"`

	// Cache selects and configures the cache driver.
	Cache CacheConfig `json:"cache"`

	// Invites holds invitation workflow settings.
	Invites InvitesConfig `json:"invites"`
}

// ServerConfig holds server-specific settings.
type ServerConfig struct {
	// TrustedProxies are CIDRs whose X-Forwarded-For headers are honored.
	TrustedProxies []string `json:"trusted_proxies"`

	// BootstrapAdmin is the super admin created at startup if absent.
	BootstrapAdmin BootstrapAdmin `json:"bootstrap_admin"`

	// CORSAllowedOrigins are origins allowed by the CORS middleware.
	// Empty means same-origin only.
	CORSAllowedOrigins []string `json:"cors_allowed_origins"`
}

// BootstrapAdmin holds bootstrap super admin credentials.
type BootstrapAdmin struct {
	Username string `json:"username"`
	Password string `json:"password,omitempty"`
}

// TLSConfig holds TLS-related settings.
type TLSConfig struct {
	// Mode is one of: off, static, selfsigned, acme
	Mode string `json:"mode"`

	// CertFile and KeyFile for static mode
	CertFile string `json:"cert_file"`
	KeyFile  string `json:"key_file"`

	// ACME settings for acme mode
	ACME ACMEConfig `json:"acme"`
}

// ACMEConfig holds ACME (Let's Encrypt) settings.
type ACMEConfig struct {
	// Domain is the domain to obtain a certificate for.
	Domain string `json:"domain"`

	// Email is the ACME account email.
	Email string `json:"email"`

	// StorageDir is where account keys and certificates are stored.
	StorageDir string `json:"storage_dir"`

	// UseStaging selects the Let's Encrypt staging directory.
	UseStaging bool `json:"use_staging"`

	// HTTPPort is the port serving HTTP-01 challenges.
	HTTPPort int `json:"http_port"`
}

// LoggingConfig holds logging settings.
type LoggingConfig struct {
	// Level is one of: debug, info, warn, error
	Level string `json:"level"`

	// Format is one of: json, pretty
	Format string `json:"format"`
}

// StoreConfig holds persistence settings.
type StoreConfig struct {
	// Driver is one of: memory, sqlite
	Driver string `json:"driver"`

	// DataDir is the directory for data files (sqlite db).
	DataDir string `json:"data_dir"`
}

// CacheConfig holds cache settings.
type CacheConfig struct {
	// Driver is one of: memory, redis
	Driver string `json:"driver"`

	// Drivers holds driver-specific config keyed by driver name.
	Drivers map[string]map[string]any `json:"drivers,omitempty"`
}

// InvitesConfig holds invitation workflow settings.
type InvitesConfig struct {
	// DecisionTokenTTLSeconds is the decision token lifetime.
	DecisionTokenTTLSeconds int `json:"decision_token_ttl_seconds"`

	// ExpirySweepSeconds is the interval between expiry sweeps that mark
	// overdue pending invitations as expired. 0 disables the sweep.
	ExpirySweepSeconds int `json:"expiry_sweep_seconds"`
}

// DefaultConfig returns a Config with sensible defaults for local development.
func DefaultConfig() *Config {
	return &Config{
		ExternalOrigin:   "http://localhost:9300",
		ExternalBasePath: "",
		ListenAddr:       ":9300",
		Server: ServerConfig{
			BootstrapAdmin: BootstrapAdmin{Username: "admin"},
		},
		TLS: TLSConfig{
			Mode: "off",
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
		},
		Store: StoreConfig{
			Driver:  "memory",
			DataDir: "./data",
		},
		Cache: CacheConfig{
			Driver: "memory",
		},
		Invites: InvitesConfig{
			DecisionTokenTTLSeconds: 600,
			ExpirySweepSeconds:      300,
		},
	}
}

// Redacted returns a copy of the config safe for logging.
// Secrets are replaced with a placeholder.
func (c *Config) Redacted() Config {
	out := *c
	if out.Server.BootstrapAdmin.Password != "" {
		out.Server.BootstrapAdmin.Password = "<redacted>"
	}
	// Driver config may carry credentials (e.g. redis password).
	if len(out.Cache.Drivers) > 0 {
		redactedDrivers := make(map[string]map[string]any, len(out.Cache.Drivers))
		for name, dc := range out.Cache.Drivers {
			rd := make(map[string]any, len(dc))
			for k, v := range dc {
				if k == "password" {
					rd[k] = "<redacted>"
					continue
				}
				rd[k] = v
			}
			redactedDrivers[name] = rd
		}
		out.Cache.Drivers = redactedDrivers
	}
	return out
}
