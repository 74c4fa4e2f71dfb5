package config

import (
	"log/slog"
	"os"
	"path/filepath"
	"testing"
	"time"
)

func setRequired(t *testing.T) {
	t.Helper()
	t.Setenv("ACCESS_TOKEN_SECRET", "access-secret-0123456789")
	t.Setenv("REFRESH_TOKEN_SECRET", "refresh-secret-0123456789")
}

func TestLoad_Defaults(t *testing.T) {
	setRequired(t)

	cfg, err := Load("")
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.Port != 8080 {
		t.Errorf("Port = %d, want 8080", cfg.Port)
	}
	if cfg.Store.Driver != "sqlite" {
		t.Errorf("Store.Driver = %q", cfg.Store.Driver)
	}
	if cfg.Auth.AccessTTL != 15*time.Minute {
		t.Errorf("AccessTTL = %v", cfg.Auth.AccessTTL)
	}
	if cfg.Auth.RefreshTTL != 7*24*time.Hour {
		t.Errorf("RefreshTTL = %v", cfg.Auth.RefreshTTL)
	}
	if cfg.YouTube.RegionCode != "VN" {
		t.Errorf("RegionCode = %q", cfg.YouTube.RegionCode)
	}
	if cfg.ReportHistoryURL != "http://localhost:5173/reporthistory" {
		t.Errorf("ReportHistoryURL = %q", cfg.ReportHistoryURL)
	}
	if cfg.S3.Enabled() || cfg.SMTP.Enabled() || cfg.Google.Enabled() {
		t.Error("optional integrations should be disabled by default")
	}
}

func TestLoad_DotenvDoesNotOverrideEnvironment(t *testing.T) {
	setRequired(t)
	t.Setenv("PORT", "9000")

	dir := t.TempDir()
	path := filepath.Join(dir, ".env")
	if err := os.WriteFile(path, []byte("PORT=7000\nYOUTUBE_API_KEY=from-dotenv\n"), 0o600); err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { os.Unsetenv("YOUTUBE_API_KEY") })

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.Port != 9000 {
		t.Errorf("Port = %d, want 9000 from the environment", cfg.Port)
	}
	if cfg.YouTube.APIKey != "from-dotenv" {
		t.Errorf("APIKey = %q, want value from .env", cfg.YouTube.APIKey)
	}
}

func TestLoad_MissingDotenvIsFine(t *testing.T) {
	setRequired(t)
	if _, err := Load(filepath.Join(t.TempDir(), "nope.env")); err != nil {
		t.Fatalf("Load() error = %v", err)
	}
}

func TestValidate(t *testing.T) {
	valid := func() Config {
		return Config{
			Port:  8080,
			Store: StoreConfig{Driver: "sqlite"},
			Auth: AuthConfig{
				AccessSecret:  "access-secret-0123456789",
				RefreshSecret: "refresh-secret-0123456789",
				AccessTTL:     time.Minute,
				RefreshTTL:    time.Hour,
			},
		}
	}

	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr bool
	}{
		{"valid", func(*Config) {}, false},
		{"short access secret", func(c *Config) { c.Auth.AccessSecret = "short" }, true},
		{"missing refresh secret", func(c *Config) { c.Auth.RefreshSecret = "" }, true},
		{"shared secret", func(c *Config) { c.Auth.RefreshSecret = c.Auth.AccessSecret }, true},
		{"unknown driver", func(c *Config) { c.Store.Driver = "postgres" }, true},
		{"firestore without project", func(c *Config) { c.Store.Driver = "firestore" }, true},
		{"firestore with project", func(c *Config) {
			c.Store.Driver = "firestore"
			c.Store.FirebaseProjectID = "demo"
		}, false},
		{"bad port", func(c *Config) { c.Port = 0 }, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := valid()
			tt.mutate(&cfg)
			err := cfg.Validate()
			if (err != nil) != tt.wantErr {
				t.Errorf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestSlogLevel(t *testing.T) {
	tests := map[string]slog.Level{
		"debug": slog.LevelDebug,
		"WARN":  slog.LevelWarn,
		"error": slog.LevelError,
		"bogus": slog.LevelInfo,
	}
	for in, want := range tests {
		c := Config{LogLevel: in}
		if got := c.SlogLevel(); got != want {
			t.Errorf("SlogLevel(%q) = %v, want %v", in, got, want)
		}
	}
}
