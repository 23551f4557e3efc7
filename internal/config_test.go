package internal

import (
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	pkgconfig "github.com/starford/quill/pkg/config"
)

func TestAuthConfig_DisabledMode(t *testing.T) {
	cfg := AuthConfig{Mode: "disabled", Token: ""}
	if err := cfg.Validate(); err != nil {
		t.Fatalf("disabled mode should pass: %v", err)
	}
	if cfg.AuthEnabled() {
		t.Error("disabled mode should not be enabled")
	}
}

func TestAuthConfig_EmptyModeDefaultsDisabled(t *testing.T) {
	cfg := AuthConfig{Mode: "", Token: ""}
	if err := cfg.Validate(); err != nil {
		t.Fatalf("empty mode should default to disabled: %v", err)
	}
	if cfg.Mode != AuthModeDisabled {
		t.Errorf("mode = %q, want %q", cfg.Mode, AuthModeDisabled)
	}
}

func TestAuthConfig_TokenModeValid(t *testing.T) {
	cfg := AuthConfig{Mode: "token", Token: "mysecret"}
	if err := cfg.Validate(); err != nil {
		t.Fatalf("token mode with token should pass: %v", err)
	}
	if !cfg.AuthEnabled() {
		t.Error("token mode should be enabled")
	}
}

func TestAuthConfig_TokenModeEmptyToken(t *testing.T) {
	cfg := AuthConfig{Mode: "token", Token: ""}
	err := cfg.Validate()
	if err == nil {
		t.Fatal("token mode with empty token should fail")
	}
	if !strings.Contains(err.Error(), "token is empty") {
		t.Errorf("unexpected error: %v", err)
	}
}

func TestAuthConfig_InvalidMode(t *testing.T) {
	cfg := AuthConfig{Mode: "magic", Token: "x"}
	err := cfg.Validate()
	if err == nil {
		t.Fatal("invalid mode should fail validation")
	}
}

func TestAuthConfig_JWTMode(t *testing.T) {
	cfg := AuthConfig{Mode: AuthModeJWT, JWTSecret: "short"}
	if err := cfg.Validate(); err == nil {
		t.Fatal("short secret should fail")
	}
	cfg.JWTSecret = strings.Repeat("k", 32)
	if err := cfg.Validate(); err != nil {
		t.Fatalf("32-byte secret should pass: %v", err)
	}
	if !cfg.AuthEnabled() || len(cfg.Secret()) != 32 {
		t.Error("jwt mode should be enabled with its secret")
	}

	token := AuthConfig{Mode: AuthModeToken, Token: "x", JWTSecret: strings.Repeat("k", 32)}
	if token.Secret() != nil {
		t.Error("secret must only be exposed in jwt mode")
	}
}

func TestFullConfig_AuthValidationCalled(t *testing.T) {
	cfg := NewDefaultConfig()
	cfg.Auth.Mode = "token"
	cfg.Auth.Token = ""
	err := cfg.Validate()
	if err == nil {
		t.Fatal("full config validate should catch auth error")
	}
}

func TestDefaultConfigIsValid(t *testing.T) {
	if err := NewDefaultConfig().Validate(); err != nil {
		t.Fatalf("default config should validate: %v", err)
	}
}

func TestStorageConfig(t *testing.T) {
	cases := []struct {
		name    string
		cfg     StorageConfig
		wantErr bool
	}{
		{"fs", StorageConfig{Driver: StorageFS, Path: "./data"}, false},
		{"sqlite", StorageConfig{Driver: StorageSQLite, Path: "./quill.db"}, false},
		{"memory without path", StorageConfig{Driver: StorageMemory}, false},
		{"fs without path", StorageConfig{Driver: StorageFS}, true},
		{"unknown driver", StorageConfig{Driver: "redis", Path: "x"}, true},
		{"empty driver", StorageConfig{Path: "x"}, true},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			err := tc.cfg.Validate()
			if (err != nil) != tc.wantErr {
				t.Errorf("err = %v, wantErr %v", err, tc.wantErr)
			}
		})
	}
}

func TestRateLimitConfig_Negative(t *testing.T) {
	cfg := RateLimitConfig{RPS: -1}
	if err := cfg.Validate(); err == nil {
		t.Fatal("negative rps should fail")
	}
}

func TestEventsConfig_Negative(t *testing.T) {
	cfg := EventsConfig{Throttle: -time.Second}
	if err := cfg.Validate(); err == nil {
		t.Fatal("negative throttle should fail")
	}
}

func TestLoadYAML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	t.Setenv("QUILL_TEST_TOKEN", "s3cret")
	raw := `
app:
  log_level: debug
  http:
    port: 9090
storage:
  driver: sqlite
  path: ./quill.db
auth:
  mode: token
  token: ${QUILL_TEST_TOKEN}
events:
  throttle: 500ms
`
	if err := os.WriteFile(path, []byte(raw), 0o644); err != nil {
		t.Fatal(err)
	}

	cfg := NewDefaultConfig()
	if err := pkgconfig.Load(path, cfg); err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.App.HTTP.Port != 9090 || cfg.App.LogLevel != slog.LevelDebug {
		t.Errorf("app = %+v", cfg.App)
	}
	if cfg.Storage.Driver != StorageSQLite || cfg.Storage.Path != "./quill.db" {
		t.Errorf("storage = %+v", cfg.Storage)
	}
	if cfg.Auth.Token != "s3cret" {
		t.Errorf("token = %q, env not expanded", cfg.Auth.Token)
	}
	if cfg.Events.Throttle != 500*time.Millisecond {
		t.Errorf("throttle = %v", cfg.Events.Throttle)
	}
	if cfg.RateLimit.RPS != 50 {
		t.Errorf("rps = %d, default should survive", cfg.RateLimit.RPS)
	}
}
