package cli

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/tabletalk/tabletalk/internal/catalog"
	"github.com/tabletalk/tabletalk/internal/query"
)

func newQueryCmd() *cobra.Command {
	var (
		columns []string
		where   string
		orderBy string
		showSQL bool
	)

	cmd := &cobra.Command{
		Use:   "query [table]",
		Short: "Run a bounded select like the model does",
		Long: `Run a structured select under the same checks as the selectSQL tool and
print at most five rows as JSON. The table defaults to accounts.`,
		Example: `  tabletalk query --where "Transaction Value > 1000"
  tabletalk query accounts --columns Account --order "Clearing Date DESC" --sql`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			table := catalog.DefaultTable
			if len(args) > 0 {
				table = args[0]
			}

			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			a, err := openApp(cmd.Context(), cfg, newLogger(cfg))
			if err != nil {
				return err
			}
			defer a.Close()

			res, err := a.exec.Run(cmd.Context(), query.Request{
				Table:   table,
				Columns: columns,
				Where:   where,
				OrderBy: orderBy,
			})
			if err != nil {
				return err
			}

			if showSQL {
				fmt.Fprintln(os.Stderr, res.Statement)
			}
			rows := res.Rows
			if rows == nil {
				rows = []query.Row{}
			}
			enc := json.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent("", "  ")
			enc.SetEscapeHTML(false)
			return enc.Encode(rows)
		},
	}

	cmd.Flags().StringSliceVar(&columns, "columns", nil, "Columns to return (default all)")
	cmd.Flags().StringVar(&where, "where", "", "WHERE clause conditions")
	cmd.Flags().StringVar(&orderBy, "order", "", "ORDER BY clause")
	cmd.Flags().BoolVar(&showSQL, "sql", false, "Print the executed statement to stderr")

	return cmd
}
