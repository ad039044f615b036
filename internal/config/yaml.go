package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/tabletalk/tabletalk/internal/model"
)

// Config represents the top-level tabletalk configuration file.
type Config struct {
	DataDir string            `yaml:"data_dir"`
	Server  ServerConfig      `yaml:"server"`
	Store   model.StoreConfig `yaml:"store"`
	Catalog CatalogConfig     `yaml:"catalog"`
	LLM     LLMConfig         `yaml:"llm"`
	Auth    AuthConfig        `yaml:"auth"`
	MCP     MCPConfig         `yaml:"mcp"`
	Logging LoggingConfig     `yaml:"logging"`
}

// ServerConfig controls the HTTP server behavior.
type ServerConfig struct {
	Host            string          `yaml:"host"`
	Port            int             `yaml:"port"`
	MaxBodySize     int64           `yaml:"max_body_size"`
	RequestTimeout  string          `yaml:"request_timeout"`
	ShutdownTimeout string          `yaml:"shutdown_timeout"`
	CORS            CORSConfig      `yaml:"cors"`
	RateLimit       RateLimitConfig `yaml:"rate_limit"`
}

// CORSConfig controls cross-origin resource sharing settings.
type CORSConfig struct {
	Origins []string `yaml:"origins"`
}

// RateLimitConfig limits chat requests per client IP.
type RateLimitConfig struct {
	Enabled           bool `yaml:"enabled"`
	RequestsPerMinute int  `yaml:"requests_per_minute"`
}

// CatalogConfig controls where the schema comes from and where it is kept.
type CatalogConfig struct {
	SchemaFile   string            `yaml:"schema_file"`
	ImportSource string            `yaml:"import_source"`
	ImportTable  string            `yaml:"import_table"`
	Descriptions map[string]string `yaml:"descriptions"`
}

// LLMConfig controls the model provider.
type LLMConfig struct {
	APIKey      string  `yaml:"api_key"`
	BaseURL     string  `yaml:"base_url"`
	Model       string  `yaml:"model"`
	Timeout     string  `yaml:"timeout"`
	MaxRetries  int     `yaml:"max_retries"`
	MaxTurns    int     `yaml:"max_turns"`
	Temperature float64 `yaml:"temperature"`
}

// AuthConfig controls bearer authentication of the API. An empty secret
// disables authentication.
type AuthConfig struct {
	JWTSecret string `yaml:"jwt_secret"`
	JWTExpiry string `yaml:"jwt_expiry"`
}

// MCPConfig controls the MCP (Model Context Protocol) server.
type MCPConfig struct {
	Transport string `yaml:"transport"`
	Port      int    `yaml:"port"`
}

// LoggingConfig controls log output.
type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// DefaultDataDir returns ~/.tabletalk.
func DefaultDataDir() string {
	home, _ := os.UserHomeDir()
	return filepath.Join(home, ".tabletalk")
}

// Default returns a Config pre-filled with sensible defaults. Paths are
// resolved relative to dataDir (DefaultDataDir when empty).
func Default(dataDir string) *Config {
	if dataDir == "" {
		dataDir = DefaultDataDir()
	}
	return &Config{
		DataDir: dataDir,
		Server: ServerConfig{
			Host:            "0.0.0.0",
			Port:            8000,
			MaxBodySize:     1 << 20,
			RequestTimeout:  "120s",
			ShutdownTimeout: "30s",
			CORS:            CORSConfig{Origins: []string{"*"}},
			RateLimit:       RateLimitConfig{Enabled: true, RequestsPerMinute: 30},
		},
		Store: model.StoreConfig{
			Driver: "sqlite",
			DSN:    filepath.Join(dataDir, "tabletalk.db"),
			Pool:   model.DefaultPoolConfig(),
		},
		Catalog: CatalogConfig{
			SchemaFile:  filepath.Join(dataDir, "schema.json"),
			ImportTable: "accounts",
		},
		LLM: LLMConfig{
			Model:    "gpt-4o-mini",
			Timeout:  "30s",
			MaxTurns: 10,
		},
		Auth: AuthConfig{
			JWTExpiry: "24h",
		},
		MCP: MCPConfig{
			Transport: "stdio",
			Port:      3001,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "text",
		},
	}
}

// Load reads a YAML configuration file over the defaults. Environment
// variables referenced as ${VAR_NAME} in the file are expanded before
// parsing. Store and catalog paths left unset follow data_dir.
func Load(path string) (*Config, error) {
	return LoadWithDataDir(path, "")
}

// LoadWithDataDir is Load with a data directory used when the file does not
// set data_dir.
func LoadWithDataDir(path, dataDir string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config file: %w", err)
	}

	// Expand environment variables: ${VAR_NAME}
	content := os.ExpandEnv(string(data))

	var probe struct {
		DataDir string `yaml:"data_dir"`
	}
	if err := yaml.Unmarshal([]byte(content), &probe); err != nil {
		return nil, fmt.Errorf("parse config file: %w", err)
	}

	if probe.DataDir == "" {
		probe.DataDir = dataDir
	}
	cfg := Default(probe.DataDir)
	if err := yaml.Unmarshal([]byte(content), cfg); err != nil {
		return nil, fmt.Errorf("parse config file: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks values that would otherwise fail late.
func (c *Config) Validate() error {
	var problems []string
	if c.Server.Port < 0 || c.Server.Port > 65535 {
		problems = append(problems, fmt.Sprintf("server.port %d out of range", c.Server.Port))
	}
	if c.Store.Driver == "" {
		problems = append(problems, "store.driver is required")
	}
	if c.LLM.MaxTurns < 0 {
		problems = append(problems, "llm.max_turns must not be negative")
	}
	for key, v := range map[string]string{
		"server.request_timeout":  c.Server.RequestTimeout,
		"server.shutdown_timeout": c.Server.ShutdownTimeout,
		"llm.timeout":             c.LLM.Timeout,
		"auth.jwt_expiry":         c.Auth.JWTExpiry,
	} {
		if v == "" {
			continue
		}
		if _, err := time.ParseDuration(v); err != nil {
			problems = append(problems, fmt.Sprintf("%s: invalid duration %q", key, v))
		}
	}
	switch c.MCP.Transport {
	case "", "stdio", "http":
	default:
		problems = append(problems, fmt.Sprintf("mcp.transport %q must be stdio or http", c.MCP.Transport))
	}
	if len(problems) > 0 {
		return fmt.Errorf("%w: %s", ErrInvalid, strings.Join(problems, "; "))
	}
	return nil
}

// Duration parses s, returning fallback when s is empty or malformed.
func Duration(s string, fallback time.Duration) time.Duration {
	if s == "" {
		return fallback
	}
	d, err := time.ParseDuration(s)
	if err != nil {
		return fallback
	}
	return d
}

// WriteDefault writes the default configuration to a YAML file.
func WriteDefault(path string) error {
	data, err := yaml.Marshal(Default(""))
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0644)
}
