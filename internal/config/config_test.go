package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func TestLoadDefaults(t *testing.T) {
	t.Setenv("CONFIG_FILE", "")
	t.Setenv("REMOTE_MEDIACENTER_HOST", "osmc.local")

	cfg, err := LoadConfig()
	if err != nil {
		t.Fatalf("load: %v", err)
	}

	if cfg.MediaCenter.Host != "osmc.local" {
		t.Errorf("host = %q, want env override", cfg.MediaCenter.Host)
	}
	if cfg.MediaCenter.WSPort != 9090 || cfg.MediaCenter.HTTPPort != 8080 {
		t.Errorf("ports = %d/%d", cfg.MediaCenter.WSPort, cfg.MediaCenter.HTTPPort)
	}
	if cfg.MediaCenter.HTTPTimeout != 2*time.Second {
		t.Errorf("http timeout = %v", cfg.MediaCenter.HTTPTimeout)
	}
	if cfg.MediaCenter.FailureThreshold != 3 {
		t.Errorf("failure threshold = %d", cfg.MediaCenter.FailureThreshold)
	}
	if cfg.Remote.TitleMaxLength != 21 || cfg.Remote.DefaultTitle != "OSMC" {
		t.Errorf("remote = %+v", cfg.Remote)
	}
	if cfg.Environment != "development" {
		t.Errorf("environment = %q", cfg.Environment)
	}
}

func TestLoadFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "remote.yaml")
	content := `
mediacenter:
  host: "192.168.1.50"
  transport: "http"
  username: "kodi"
remote:
  volume_step: 10
`
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatal(err)
	}
	t.Setenv("CONFIG_FILE", path)
	t.Setenv("REMOTE_MEDIACENTER_PASSWORD", "secret")

	cfg, err := LoadConfig()
	if err != nil {
		t.Fatalf("load: %v", err)
	}

	if cfg.MediaCenter.Transport != TransportHTTP {
		t.Errorf("transport = %q", cfg.MediaCenter.Transport)
	}
	if cfg.MediaCenter.Username != "kodi" || cfg.MediaCenter.Password != "secret" {
		t.Errorf("credentials = %q/%q", cfg.MediaCenter.Username, cfg.MediaCenter.Password)
	}
	if cfg.Remote.VolumeStep != 10 {
		t.Errorf("volume step = %d", cfg.Remote.VolumeStep)
	}
	if got := cfg.MediaCenter.HTTPURL(); got != "http://192.168.1.50:8080/jsonrpc" {
		t.Errorf("http url = %q", got)
	}
	if got := cfg.MediaCenter.WebSocketURL(); got != "ws://192.168.1.50:9090/jsonrpc" {
		t.Errorf("ws url = %q", got)
	}
}

func TestValidateConfig(t *testing.T) {
	tests := []struct {
		name   string
		modify func(*Config)
		errMsg string
	}{
		{"defaults", func(c *Config) {}, ""},
		{"bad transport", func(c *Config) { c.MediaCenter.Transport = "carrier-pigeon" }, "transport"},
		{"no host no discovery", func(c *Config) { c.Discovery.Enabled = false }, "host"},
		{"zero threshold", func(c *Config) { c.MediaCenter.FailureThreshold = 0 }, "threshold"},
		{"step too large", func(c *Config) { c.Remote.VolumeStep = 150 }, "volume step"},
		{"inverted bounds", func(c *Config) { c.Remote.VolumeMin = 100 }, "volume bounds"},
		{"ping after pong", func(c *Config) { c.WebSocket.PingPeriod = time.Minute }, "ping period"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := CreateDefaultConfig()
			tt.modify(cfg)
			err := validateConfig(cfg)
			if tt.errMsg == "" {
				if err != nil {
					t.Fatalf("unexpected error: %v", err)
				}
				return
			}
			if err == nil || !strings.Contains(err.Error(), tt.errMsg) {
				t.Fatalf("expected error containing %q, got %v", tt.errMsg, err)
			}
		})
	}
}

func TestValidateAndFixConfig(t *testing.T) {
	cfg := CreateDefaultConfig()
	cfg.MediaCenter.HTTPTimeout = 0
	cfg.MediaCenter.Path = "jsonrpc"
	cfg.Logging.Level = "loud"

	warnings := ValidateAndFixConfig(cfg)
	if len(warnings) != 3 {
		t.Fatalf("expected 3 warnings, got %v", warnings)
	}
	if cfg.MediaCenter.HTTPTimeout != 2*time.Second {
		t.Errorf("http timeout = %v", cfg.MediaCenter.HTTPTimeout)
	}
	if cfg.MediaCenter.Path != "/jsonrpc" {
		t.Errorf("path = %q", cfg.MediaCenter.Path)
	}
	if cfg.Logging.Level != "info" {
		t.Errorf("level = %q", cfg.Logging.Level)
	}
}

func TestWriteDefaultConfig(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "configs")
	if err := WriteDefaultConfig(dir); err != nil {
		t.Fatalf("write: %v", err)
	}

	t.Setenv("CONFIG_FILE", filepath.Join(dir, "app.yaml"))
	t.Setenv("REMOTE_MEDIACENTER_HOST", "kodi")
	cfg, err := LoadConfig()
	if err != nil {
		t.Fatalf("load written config: %v", err)
	}
	if cfg.MediaCenter.Path != "/jsonrpc" {
		t.Errorf("path = %q", cfg.MediaCenter.Path)
	}
}
