package cli

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/tabletalk/tabletalk/internal/chat"
	"github.com/tabletalk/tabletalk/internal/config"
	"github.com/tabletalk/tabletalk/internal/server"
	"github.com/tabletalk/tabletalk/internal/server/middleware"
	"github.com/tabletalk/tabletalk/internal/service"
)

const banner = `
 _        _     _      _        _ _
| |_ __ _| |__ | | ___| |_ __ _| | | __
| __/ _' | '_ \| |/ _ \ __/ _' | | |/ /
| || (_| | |_) | |  __/ || (_| | |   <
 \__\__,_|_.__/|_|\___|\__\__,_|_|_|\_\
`

func newServeCmd() *cobra.Command {
	var (
		port int
		host string
	)

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the tabletalk API server",
		Long: `Start the HTTP server answering chat requests. The chat endpoint takes the
whole conversation history and returns the assistant's answer.`,
		Example: `  tabletalk serve
  tabletalk serve --port 9000
  OPENAI_API_KEY=sk-... tabletalk serve --dev`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe(cmd.Context())
		},
	}

	cmd.Flags().IntVarP(&port, "port", "p", 8000, "HTTP listen port")
	cmd.Flags().StringVar(&host, "host", "0.0.0.0", "HTTP listen host")

	viper.BindPFlag("server.port", cmd.Flags().Lookup("port"))
	viper.BindPFlag("server.host", cmd.Flags().Lookup("host"))

	return cmd
}

func runServe(ctx context.Context) error {
	if ctx == nil {
		ctx = context.Background()
	}
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	logger := newLogger(cfg)

	fmt.Print(banner)
	fmt.Println()

	a, err := openApp(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer a.Close()

	// The request id doubles as the run id so audit records can be matched
	// with access log lines.
	loop, err := a.newLoop(chat.WithRunID(middleware.GetRequestID))
	if err != nil {
		return err
	}

	authSvc := service.NewAuthService(cfg.Auth.JWTSecret)
	if !authSvc.Enabled() {
		logger.Warn("authentication disabled - set auth.jwt_secret to require bearer tokens")
	}

	srvCfg := serverConfig(cfg)
	srv := server.New(srvCfg, server.Deps{
		Chat:    loop,
		Query:   a.exec,
		Schema:  a.schema,
		History: a.audit,
		Auth:    authSvc,
		Checks: map[string]server.Pinger{
			"store": a.store,
			"audit": a.audit,
		},
	}, logger)

	displayHost := cfg.Server.Host
	if displayHost == "0.0.0.0" || displayHost == "" {
		displayHost = "localhost"
	}
	fmt.Printf("→ tabletalk %s\n", versionString())
	fmt.Printf("→ Listening on http://%s:%d\n", displayHost, cfg.Server.Port)
	fmt.Printf("→ Chat:       POST http://%s:%d/chat\n", displayHost, cfg.Server.Port)
	fmt.Printf("→ OpenAPI:    http://%s:%d/openapi.json\n", displayHost, cfg.Server.Port)
	fmt.Printf("→ Health:     http://%s:%d/healthz\n", displayHost, cfg.Server.Port)
	fmt.Printf("→ Model:      %s\n", cfg.LLM.Model)
	fmt.Println()

	return srv.ListenAndServe()
}

// serverConfig maps the server section of the configuration.
func serverConfig(cfg *config.Config) server.Config {
	srvCfg := server.DefaultConfig()
	srvCfg.Host = cfg.Server.Host
	srvCfg.Port = cfg.Server.Port
	srvCfg.MaxBodySize = cfg.Server.MaxBodySize
	srvCfg.RequestTimeout = config.Duration(cfg.Server.RequestTimeout, srvCfg.RequestTimeout)
	srvCfg.ShutdownTimeout = config.Duration(cfg.Server.ShutdownTimeout, srvCfg.ShutdownTimeout)
	if len(cfg.Server.CORS.Origins) > 0 {
		srvCfg.CORSOrigins = cfg.Server.CORS.Origins
	}
	srvCfg.RateLimit = 0
	if cfg.Server.RateLimit.Enabled {
		srvCfg.RateLimit = cfg.Server.RateLimit.RequestsPerMinute
	}
	srvCfg.Version = versionString()
	return srvCfg
}
