package cli

import (
	"fmt"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	tmcp "github.com/tabletalk/tabletalk/internal/mcp"
)

func newMCPCmd() *cobra.Command {
	var (
		transport string
		port      int
	)

	cmd := &cobra.Command{
		Use:   "mcp",
		Short: "Start the MCP server for AI agents",
		Long: `Start a Model Context Protocol (MCP) server exposing the read-only selectSQL
tool, a describe_schema tool and the schema as a resource. Supports stdio
(default) and streamable HTTP transports.

No model API key is needed: the connecting agent plays the model's part.`,
		Example: `  tabletalk mcp                              # stdio mode
  tabletalk mcp --transport http --port 3001  # streamable HTTP`,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			logger := newLogger(cfg)

			a, err := openApp(cmd.Context(), cfg, logger)
			if err != nil {
				return err
			}
			defer a.Close()

			mcpSrv, err := tmcp.NewMCPServer(cmd.Context(), tmcp.Deps{
				Dispatcher: a.dispatcher(),
				Schema:     a.schema,
				Recorder:   a.audit,
				Version:    versionString(),
			}, logger)
			if err != nil {
				return err
			}

			switch cfg.MCP.Transport {
			case "", "stdio":
				return mcpSrv.ServeStdio()
			case "http":
				return mcpSrv.ServeHTTP(fmt.Sprintf(":%d", cfg.MCP.Port))
			default:
				return fmt.Errorf("unsupported transport %q; use 'stdio' or 'http'", cfg.MCP.Transport)
			}
		},
	}

	cmd.Flags().StringVar(&transport, "transport", "stdio", "Transport mode: stdio or http")
	cmd.Flags().IntVar(&port, "port", 3001, "HTTP port (only used with --transport http)")

	viper.BindPFlag("mcp.transport", cmd.Flags().Lookup("transport"))
	viper.BindPFlag("mcp.port", cmd.Flags().Lookup("port"))

	return cmd
}
