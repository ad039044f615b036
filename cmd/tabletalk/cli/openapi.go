package cli

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/tabletalk/tabletalk/internal/openapi"
)

func newOpenAPICmd() *cobra.Command {
	var (
		baseURL    string
		outputFile string
	)

	cmd := &cobra.Command{
		Use:   "openapi",
		Short: "Generate the OpenAPI specification",
		Long: `Generate the OpenAPI 3.1 specification of the chat API. Row schemas and the
table enum come from the current schema catalog.`,
		Example: `  tabletalk openapi
  tabletalk openapi --base-url https://tabletalk.example.com -o openapi.json`,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			a, err := openApp(cmd.Context(), cfg, newLogger(cfg))
			if err != nil {
				return err
			}
			defer a.Close()

			cat, err := a.schema.GetSchema(cmd.Context())
			if err != nil {
				return err
			}

			spec := openapi.Generate(cat, openapi.Options{
				BaseURL:     baseURL,
				Version:     versionString(),
				AuthEnabled: cfg.Auth.JWTSecret != "",
			})
			jsonBytes, err := json.MarshalIndent(spec, "", "  ")
			if err != nil {
				return fmt.Errorf("marshal spec: %w", err)
			}

			if outputFile != "" {
				if err := os.WriteFile(outputFile, jsonBytes, 0644); err != nil {
					return fmt.Errorf("write spec: %w", err)
				}
				fmt.Printf("Wrote %s\n", outputFile)
				return nil
			}
			fmt.Fprintln(cmd.OutOrStdout(), string(jsonBytes))
			return nil
		},
	}

	cmd.Flags().StringVar(&baseURL, "base-url", "", "Server URL to list in the spec")
	cmd.Flags().StringVarP(&outputFile, "output", "o", "", "Write spec to file instead of stdout")

	return cmd
}
