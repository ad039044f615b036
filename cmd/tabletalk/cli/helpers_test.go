package cli

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/spf13/viper"

	"github.com/tabletalk/tabletalk/internal/config"
)

func resetGlobals(t *testing.T) {
	t.Helper()
	viper.Reset()
	prevDataDir, prevLevel, prevDev := dataDir, logLevel, devMode
	t.Cleanup(func() {
		viper.Reset()
		dataDir, logLevel, devMode = prevDataDir, prevLevel, prevDev
	})
}

func TestLoadConfigDefaults(t *testing.T) {
	resetGlobals(t)
	dir := t.TempDir()
	dataDir = dir
	t.Setenv("OPENAI_API_KEY", "sk-test")
	t.Setenv("TABLETALK_MODEL", "")

	cfg, err := loadConfig()
	if err != nil {
		t.Fatalf("loadConfig: %v", err)
	}
	if cfg.DataDir != dir {
		t.Errorf("data dir = %q, want %q", cfg.DataDir, dir)
	}
	if cfg.Store.DSN != filepath.Join(dir, "tabletalk.db") {
		t.Errorf("dsn = %q", cfg.Store.DSN)
	}
	if cfg.LLM.APIKey != "sk-test" {
		t.Errorf("api key = %q, want the environment value", cfg.LLM.APIKey)
	}
	if cfg.Logging.Level != "info" {
		t.Errorf("level = %q", cfg.Logging.Level)
	}
}

func TestLoadConfigFlagsAndDevMode(t *testing.T) {
	resetGlobals(t)
	dataDir = t.TempDir()
	devMode = true
	viper.Set("server.port", 9100)
	viper.Set("llm.model", "gpt-4o")

	cfg, err := loadConfig()
	if err != nil {
		t.Fatalf("loadConfig: %v", err)
	}
	if cfg.Server.Port != 9100 {
		t.Errorf("port = %d, want 9100", cfg.Server.Port)
	}
	if cfg.LLM.Model != "gpt-4o" {
		t.Errorf("model = %q", cfg.LLM.Model)
	}
	if cfg.Logging.Level != "debug" {
		t.Errorf("level = %q, want debug in dev mode", cfg.Logging.Level)
	}
}

func TestLoadConfigRejectsInvalidTransport(t *testing.T) {
	resetGlobals(t)
	dataDir = t.TempDir()
	viper.Set("mcp.transport", "carrier-pigeon")

	if _, err := loadConfig(); err == nil {
		t.Fatal("expected an invalid transport to fail validation")
	}
}

func TestServerConfig(t *testing.T) {
	cfg := config.Default(t.TempDir())
	cfg.Server.Port = 9000
	cfg.Server.RequestTimeout = "45s"
	cfg.Server.ShutdownTimeout = "bogus"

	srvCfg := serverConfig(cfg)
	if srvCfg.Port != 9000 {
		t.Errorf("port = %d", srvCfg.Port)
	}
	if srvCfg.RequestTimeout != 45*time.Second {
		t.Errorf("request timeout = %v", srvCfg.RequestTimeout)
	}
	if srvCfg.ShutdownTimeout != 30*time.Second {
		t.Errorf("shutdown timeout = %v, want the default for a malformed value", srvCfg.ShutdownTimeout)
	}
	if srvCfg.RateLimit != 30 {
		t.Errorf("rate limit = %d, want 30", srvCfg.RateLimit)
	}

	cfg.Server.RateLimit.Enabled = false
	if got := serverConfig(cfg).RateLimit; got != 0 {
		t.Errorf("rate limit = %d, want 0 when disabled", got)
	}
}

func TestVersionString(t *testing.T) {
	prev := appVersion
	t.Cleanup(func() { appVersion = prev })

	tests := []struct {
		in, want string
	}{
		{"", "dev"},
		{"dev", "dev"},
		{"1.2.0", "v1.2.0"},
		{"v1.2.0", "v1.2.0"},
	}
	for _, tt := range tests {
		appVersion = tt.in
		if got := versionString(); got != tt.want {
			t.Errorf("versionString(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}
