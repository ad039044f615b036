package cli

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strings"

	"github.com/spf13/viper"

	"github.com/tabletalk/tabletalk/internal/audit"
	"github.com/tabletalk/tabletalk/internal/catalog"
	"github.com/tabletalk/tabletalk/internal/chat"
	"github.com/tabletalk/tabletalk/internal/config"
	"github.com/tabletalk/tabletalk/internal/connector"
	"github.com/tabletalk/tabletalk/internal/connector/mysql"
	"github.com/tabletalk/tabletalk/internal/connector/postgres"
	"github.com/tabletalk/tabletalk/internal/connector/sqlite"
	"github.com/tabletalk/tabletalk/internal/executor"
	"github.com/tabletalk/tabletalk/internal/llm"
	"github.com/tabletalk/tabletalk/internal/observability"
	"github.com/tabletalk/tabletalk/internal/tools"
)

// storeName is the registry name of the queried store.
const storeName = "default"

// dataDir holds the --data-dir persistent flag value (set on root command).
var dataDir string

// resolveDataDir returns the data directory from --data-dir flag,
// TABLETALK_DATA_DIR env var, or ~/.tabletalk as fallback.
func resolveDataDir() string {
	if dataDir != "" {
		return dataDir
	}
	if envDir := os.Getenv("TABLETALK_DATA_DIR"); envDir != "" {
		return envDir
	}
	return config.DefaultDataDir()
}

// newRegistry creates a connector registry with all supported store drivers registered.
func newRegistry() *connector.Registry {
	registry := connector.NewRegistry()
	registry.RegisterDriver("sqlite", func() connector.Connector { return sqlite.New() })
	registry.RegisterDriver("postgres", func() connector.Connector { return postgres.New() })
	registry.RegisterDriver("mysql", func() connector.Connector { return mysql.New() })
	return registry
}

// loadConfig resolves the effective configuration. The YAML file found by
// viper (or the defaults) is overlaid with environment overrides and then
// with flags and TABLETALK_* keys bound in viper.
func loadConfig() (*config.Config, error) {
	var cfg *config.Config
	if path := viper.ConfigFileUsed(); path != "" {
		loaded, err := config.LoadWithDataDir(path, resolveDataDir())
		if err != nil {
			return nil, err
		}
		cfg = loaded
	} else {
		cfg = config.Default(resolveDataDir())
	}

	env, err := config.ParseEnv(nil)
	if err != nil {
		return nil, err
	}
	env.Apply(cfg)
	applyViper(cfg)

	if logLevel != "" {
		cfg.Logging.Level = logLevel
	}
	if devMode {
		cfg.Logging.Level = "debug"
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// applyViper copies the keys commands bind flags to. IsSet ignores flags
// left at their defaults, so file values survive. Strings are expanded like
// the file itself, since viper also sees the raw file.
func applyViper(cfg *config.Config) {
	getString := func(key string) string { return os.ExpandEnv(viper.GetString(key)) }

	if viper.IsSet("server.host") {
		cfg.Server.Host = getString("server.host")
	}
	if viper.IsSet("server.port") {
		cfg.Server.Port = viper.GetInt("server.port")
	}
	if viper.IsSet("mcp.port") {
		cfg.MCP.Port = viper.GetInt("mcp.port")
	}
	if viper.IsSet("mcp.transport") {
		cfg.MCP.Transport = getString("mcp.transport")
	}
	if viper.IsSet("llm.model") {
		cfg.LLM.Model = getString("llm.model")
	}
	if viper.IsSet("store.driver") {
		cfg.Store.Driver = getString("store.driver")
	}
	if viper.IsSet("store.dsn") {
		cfg.Store.DSN = getString("store.dsn")
	}
	if viper.IsSet("catalog.import_source") {
		cfg.Catalog.ImportSource = getString("catalog.import_source")
	}
}

// newLogger builds the process logger. Logs go to stderr so stdout stays
// clean for command output and the MCP stdio transport.
func newLogger(cfg *config.Config) *slog.Logger {
	return observability.NewLogger(cfg.Logging.Level, cfg.Logging.Format, os.Stderr)
}

// app holds the components every data command needs.
type app struct {
	cfg      *config.Config
	logger   *slog.Logger
	registry *connector.Registry
	store    connector.Connector
	schema   *catalog.Provider
	exec     *executor.Executor
	audit    *audit.Store
}

// openApp connects the store, prepares the catalog and opens the audit log.
// Call Close when done.
func openApp(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*app, error) {
	if cfg.Store.Driver == "sqlite" {
		if err := os.MkdirAll(cfg.DataDir, 0755); err != nil {
			return nil, fmt.Errorf("create data dir: %w", err)
		}
	}

	registry := newRegistry()
	store, err := registry.Connect(storeName, connector.ConfigFromStore(cfg.Store))
	if err != nil {
		return nil, err
	}
	logger.Info("store connected", "driver", cfg.Store.Driver)

	schema := catalog.NewProvider(store, catalog.Options{
		SchemaFile:   cfg.Catalog.SchemaFile,
		ImportSource: cfg.Catalog.ImportSource,
		ImportTable:  cfg.Catalog.ImportTable,
		Descriptions: cfg.Catalog.Descriptions,
	}, logger)
	if err := schema.Ensure(ctx); err != nil {
		registry.CloseAll()
		if errors.Is(err, catalog.ErrNoTables) {
			return nil, fmt.Errorf("%w: run 'tabletalk import <file.csv>' or set catalog.import_source", err)
		}
		return nil, err
	}

	auditStore, err := audit.NewStore(cfg.DataDir)
	if err != nil {
		registry.CloseAll()
		return nil, fmt.Errorf("init audit store: %w", err)
	}

	return &app{
		cfg:      cfg,
		logger:   logger,
		registry: registry,
		store:    store,
		schema:   schema,
		exec:     executor.New(store, logger),
		audit:    auditStore,
	}, nil
}

// Close releases the audit log and the store.
func (a *app) Close() {
	a.audit.Close()
	a.registry.CloseAll()
}

// dispatcher returns the selectSQL dispatcher over the store.
func (a *app) dispatcher() *tools.Dispatcher {
	return tools.NewDispatcher(a.exec, a.logger)
}

// newLoop builds the conversation loop on the OpenAI provider.
func (a *app) newLoop(opts ...chat.Option) (*chat.Loop, error) {
	llmCfg := a.cfg.LLM
	if llmCfg.APIKey == "" {
		return nil, fmt.Errorf("no model API key: set OPENAI_API_KEY or llm.api_key")
	}
	provider := llm.NewOpenAI(llm.OpenAIConfig{
		APIKey:      llmCfg.APIKey,
		BaseURL:     llmCfg.BaseURL,
		Model:       llmCfg.Model,
		Timeout:     config.Duration(llmCfg.Timeout, llm.DefaultTimeout),
		Temperature: llmCfg.Temperature,
		MaxRetries:  llmCfg.MaxRetries,
	})

	opts = append([]chat.Option{chat.WithRecorder(a.audit), chat.WithLogger(a.logger)}, opts...)
	return chat.NewLoop(provider, a.schema, a.dispatcher(), chat.Config{
		Model:       llmCfg.Model,
		MaxTurns:    llmCfg.MaxTurns,
		Temperature: llmCfg.Temperature,
	}, opts...), nil
}

// versionString returns a display version string.
func versionString() string {
	if appVersion == "" || appVersion == "dev" {
		return "dev"
	}
	if strings.HasPrefix(appVersion, "v") {
		return appVersion
	}
	return "v" + appVersion
}
