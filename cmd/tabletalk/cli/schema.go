package cli

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/tabletalk/tabletalk/internal/catalog"
	"github.com/tabletalk/tabletalk/internal/tools"
)

func newSchemaCmd() *cobra.Command {
	var (
		refresh    bool
		jsonOutput bool
		toolSchema bool
	)

	cmd := &cobra.Command{
		Use:   "schema",
		Short: "Show the schema the assistant sees",
		Long: `Print the persisted schema catalog as it is described to the model. Use
--refresh to derive it again from the live store.`,
		Example: `  tabletalk schema
  tabletalk schema --refresh --json
  tabletalk schema --tool`,
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
			if refresh {
				cat, err = a.schema.Refresh(cmd.Context())
			}
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			switch {
			case toolSchema:
				enc := json.NewEncoder(out)
				enc.SetIndent("", "  ")
				return enc.Encode(tools.SelectSQLTool(cat))
			case jsonOutput:
				enc := json.NewEncoder(out)
				enc.SetIndent("", "  ")
				return enc.Encode(cat)
			default:
				fmt.Fprint(out, catalog.Describe(cat))
				return nil
			}
		},
	}

	cmd.Flags().BoolVar(&refresh, "refresh", false, "Derive the schema from the live store and persist it")
	cmd.Flags().BoolVar(&jsonOutput, "json", false, "Output the catalog as JSON")
	cmd.Flags().BoolVar(&toolSchema, "tool", false, "Output the selectSQL tool descriptor")

	return cmd
}
