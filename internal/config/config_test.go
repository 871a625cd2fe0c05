package config

import (
	"net"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func TestLoadMissingFile(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.BaseURL != "" || cfg.StartDelay != nil {
		t.Errorf("Load() of missing file = %+v, want empty config", cfg)
	}
}

func TestWriteLoadRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "config.yaml")
	delay := Duration(250 * time.Millisecond)
	cfg := &Config{
		BaseURL:      "http://localhost:6173",
		Token:        "secret-token",
		StartDelay:   &delay,
		StallTimeout: Duration(2 * time.Minute),
		CacheSize:    8,
		Log:          LogConfig{Level: "debug", Format: "json"},
	}

	if err := Write(path, cfg); err != nil {
		t.Fatalf("Write() error = %v", err)
	}

	raw, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("ReadFile() error = %v", err)
	}
	if !strings.Contains(string(raw), "start_delay: 250ms") {
		t.Errorf("written config missing duration string:\n%s", raw)
	}

	loaded, err := Load(path)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if loaded.StartDelay == nil || *loaded.StartDelay != delay {
		t.Errorf("StartDelay = %v, want %v", loaded.StartDelay, delay)
	}
	if loaded.StallTimeout.Std() != 2*time.Minute {
		t.Errorf("StallTimeout = %v, want 2m", loaded.StallTimeout.Std())
	}
	if loaded.Log.Format != "json" {
		t.Errorf("Log.Format = %q, want json", loaded.Log.Format)
	}
}

func TestLoadInvalidDuration(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte("stall_timeout: soon\n"), 0o600); err != nil {
		t.Fatal(err)
	}
	if _, err := Load(path); err == nil {
		t.Error("Load() with invalid duration should fail")
	}
}

func TestParseDuration(t *testing.T) {
	tests := []struct {
		in      string
		want    time.Duration
		wantErr bool
	}{
		{"1s", time.Second, false},
		{"250ms", 250 * time.Millisecond, false},
		{"2", 2 * time.Second, false},
		{"0.5", 500 * time.Millisecond, false},
		{"", 0, false},
		{"later", 0, true},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ParseDuration(tt.in)
			if (err != nil) != tt.wantErr {
				t.Fatalf("ParseDuration(%q) error = %v, wantErr %v", tt.in, err, tt.wantErr)
			}
			if got != tt.want {
				t.Errorf("ParseDuration(%q) = %v, want %v", tt.in, got, tt.want)
			}
		})
	}
}

func TestEffectiveStartDelay(t *testing.T) {
	zero := Duration(0)
	custom := Duration(3 * time.Second)

	tests := []struct {
		name string
		cfg  *Config
		want time.Duration
	}{
		{"nil config", nil, DefaultStartDelay},
		{"unset", &Config{}, DefaultStartDelay},
		{"explicit zero", &Config{StartDelay: &zero}, 0},
		{"custom", &Config{StartDelay: &custom}, 3 * time.Second},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := EffectiveStartDelay(tt.cfg); got != tt.want {
				t.Errorf("EffectiveStartDelay() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestSet(t *testing.T) {
	cfg := &Config{}

	if err := Set(cfg, "log.level", "DEBUG"); err != nil {
		t.Fatalf("Set(log.level) error = %v", err)
	}
	if cfg.Log.Level != "debug" {
		t.Errorf("Log.Level = %q, want debug", cfg.Log.Level)
	}
	if err := Set(cfg, "cache_size", "64"); err != nil || cfg.CacheSize != 64 {
		t.Errorf("Set(cache_size) = %v, CacheSize = %d", err, cfg.CacheSize)
	}
	if err := Set(cfg, "log.format", "xml"); err == nil {
		t.Error("Set(log.format, xml) should fail")
	}
	if err := Set(cfg, "colour", "blue"); err == nil || !strings.Contains(err.Error(), "valid keys") {
		t.Errorf("Set(unknown) error = %v, want list of valid keys", err)
	}
}

func TestResolveAppliesEnvAndDefaults(t *testing.T) {
	t.Chdir(t.TempDir())
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := Write(path, &Config{BaseURL: "https://file.example/", Token: "from-file"}); err != nil {
		t.Fatal(err)
	}
	t.Setenv("REPORTCTL_TOKEN", "from-env")
	t.Setenv("REPORTCTL_STALL_TIMEOUT", "45s")

	cfg, err := Resolve(path, false)
	if err != nil {
		t.Fatalf("Resolve() error = %v", err)
	}
	if cfg.BaseURL != "https://file.example" {
		t.Errorf("BaseURL = %q, want trailing slash trimmed", cfg.BaseURL)
	}
	if cfg.Token != "from-env" {
		t.Errorf("Token = %q, want env override", cfg.Token)
	}
	if cfg.StallTimeout.Std() != 45*time.Second {
		t.Errorf("StallTimeout = %v, want 45s", cfg.StallTimeout.Std())
	}
	if cfg.CacheSize != DefaultCacheSize || cfg.RequestTimeout.Std() != DefaultRequestTimeout {
		t.Errorf("defaults not applied: %+v", cfg)
	}
}

func TestResolveRejectsBadEnv(t *testing.T) {
	t.Chdir(t.TempDir())
	t.Setenv("REPORTCTL_CACHE_SIZE", "lots")

	if _, err := Resolve(filepath.Join(t.TempDir(), "missing.yaml"), false); err == nil {
		t.Error("Resolve() with invalid REPORTCTL_CACHE_SIZE should fail")
	}
}

func TestRedacted(t *testing.T) {
	cfg := &Config{Token: "abcdefghijklmnop", SessionCookie: "short"}
	r := cfg.Redacted()

	if r.Token != "abcd...mnop" {
		t.Errorf("Token = %q", r.Token)
	}
	if r.SessionCookie != "********" {
		t.Errorf("SessionCookie = %q", r.SessionCookie)
	}
	if cfg.Token != "abcdefghijklmnop" {
		t.Error("Redacted() modified the original")
	}
}

func TestReadPortFromEnv(t *testing.T) {
	path := filepath.Join(t.TempDir(), ".env")
	if err := os.WriteFile(path, []byte("# backend\nPORT=7001\nOTHER=x\n"), 0o600); err != nil {
		t.Fatal(err)
	}
	if got := readPortFromEnv(path); got != "7001" {
		t.Errorf("readPortFromEnv() = %q, want 7001", got)
	}
	if got := readPortFromEnv(filepath.Join(t.TempDir(), "missing")); got != "" {
		t.Errorf("readPortFromEnv(missing) = %q, want empty", got)
	}
}

func TestGetBackendPortWithAutoDetect(t *testing.T) {
	ln, err := net.Listen("tcp", "localhost:0")
	if err != nil {
		t.Skipf("cannot listen: %v", err)
	}
	defer ln.Close()

	_, port, _ := net.SplitHostPort(ln.Addr().String())
	t.Setenv("REPORTCTL_BACKEND_PORT", port)

	if got := GetBackendPortWithAutoDetect(); got != port {
		t.Errorf("GetBackendPortWithAutoDetect() = %q, want %q", got, port)
	}
	if got := GetBackendURL(true); got != "http://localhost:"+port {
		t.Errorf("GetBackendURL(true) = %q", got)
	}
	if !isPortOpen("localhost", port) {
		t.Error("isPortOpen() = false for a listening port")
	}
	if got := GetBackendURL(false); got != ProdBackendURL {
		t.Errorf("GetBackendURL(false) = %q", got)
	}
}
