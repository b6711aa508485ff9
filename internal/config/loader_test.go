package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func writeConfigFile(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "homestock.toml")
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return path
}

func TestLoad_Defaults(t *testing.T) {
	cfg, err := Load(LoaderOptions{})
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Mode != string(ModeProd) {
		t.Errorf("mode = %q, want prod", cfg.Mode)
	}
	if cfg.TLS.Mode != "selfsigned" {
		t.Errorf("tls.mode = %q, want selfsigned", cfg.TLS.Mode)
	}
	if cfg.Store.Driver != "sqlite" {
		t.Errorf("store.driver = %q, want sqlite", cfg.Store.Driver)
	}
}

func TestLoad_DevPreset(t *testing.T) {
	cfg, err := Load(LoaderOptions{ModeFlag: "dev"})
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.TLS.Mode != "off" {
		t.Errorf("tls.mode = %q, want off", cfg.TLS.Mode)
	}
	if cfg.Logging.Level != "debug" || cfg.Logging.Format != "pretty" {
		t.Errorf("logging = %q/%q, want debug/pretty", cfg.Logging.Level, cfg.Logging.Format)
	}
	if !cfg.TLS.ACME.UseStaging {
		t.Error("dev mode should default to the ACME staging directory")
	}
}

func TestLoad_FileOverridesPreset(t *testing.T) {
	path := writeConfigFile(t, `
mode = "dev"
external_origin = "https://pantry.example.org"
listen_addr = ":9400"

[store]
driver = "memory"

[invites]
decision_token_ttl_seconds = 300
`)

	cfg, err := Load(LoaderOptions{ConfigPath: path})
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Mode != string(ModeDev) {
		t.Errorf("mode = %q, want dev", cfg.Mode)
	}
	if cfg.ExternalOrigin != "https://pantry.example.org" {
		t.Errorf("external_origin = %q", cfg.ExternalOrigin)
	}
	if cfg.ListenAddr != ":9400" {
		t.Errorf("listen_addr = %q", cfg.ListenAddr)
	}
	if cfg.Store.Driver != "memory" {
		t.Errorf("store.driver = %q, want memory", cfg.Store.Driver)
	}
	if cfg.Invites.DecisionTokenTTLSeconds != 300 {
		t.Errorf("decision_token_ttl_seconds = %d, want 300", cfg.Invites.DecisionTokenTTLSeconds)
	}
}

func TestLoad_FlagsOverrideFile(t *testing.T) {
	path := writeConfigFile(t, `
listen_addr = ":9400"

[store]
driver = "memory"
`)

	listen := ":9500"
	driver := "sqlite"
	cfg, err := Load(LoaderOptions{
		ConfigPath: path,
		FlagOverrides: FlagOverrides{
			ListenAddr:  &listen,
			StoreDriver: &driver,
		},
	})
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.ListenAddr != ":9500" {
		t.Errorf("listen_addr = %q, want :9500", cfg.ListenAddr)
	}
	if cfg.Store.Driver != "sqlite" {
		t.Errorf("store.driver = %q, want sqlite", cfg.Store.Driver)
	}
}

func TestLoad_MissingFileFails(t *testing.T) {
	if _, err := Load(LoaderOptions{ConfigPath: filepath.Join(t.TempDir(), "nope.toml")}); err == nil {
		t.Fatal("expected error for missing config file")
	}
}

func TestLoad_InvalidEnums(t *testing.T) {
	cases := []struct {
		name    string
		content string
		wantErr string
	}{
		{"bad tls mode", "[tls]\nmode = \"sideways\"\n", "tls.mode"},
		{"bad logging level", "[logging]\nlevel = \"loud\"\n", "logging.level"},
		{"bad store driver", "[store]\ndriver = \"postgres\"\n", "store.driver"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			path := writeConfigFile(t, tc.content)
			_, err := Load(LoaderOptions{ConfigPath: path})
			if err == nil || !strings.Contains(err.Error(), tc.wantErr) {
				t.Fatalf("error = %v, want mention of %s", err, tc.wantErr)
			}
		})
	}
}

func TestParseMode(t *testing.T) {
	if m, err := ParseMode(""); err != nil || m != ModeProd {
		t.Errorf("ParseMode(\"\") = %v, %v", m, err)
	}
	if m, err := ParseMode(" DEV "); err != nil || m != ModeDev {
		t.Errorf("ParseMode(\" DEV \") = %v, %v", m, err)
	}
	if _, err := ParseMode("staging"); err == nil {
		t.Error("expected error for unknown mode")
	}
}

func TestRedacted(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Server.BootstrapAdmin.Password = "hunter2"

	red := cfg.Redacted()
	if red.Server.BootstrapAdmin.Password == "hunter2" {
		t.Error("redacted config leaks admin password")
	}
	if cfg.Server.BootstrapAdmin.Password != "hunter2" {
		t.Error("redaction mutated the original config")
	}
}
