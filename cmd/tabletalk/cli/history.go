package cli

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/tabletalk/tabletalk/internal/audit"
)

func newHistoryCmd() *cobra.Command {
	var (
		limit      int
		runID      string
		status     string
		jsonOutput bool
	)

	cmd := &cobra.Command{
		Use:   "history",
		Short: "List recorded tool calls",
		Long:  "List the selectSQL calls made by the model, newest first, from the audit log.",
		Example: `  tabletalk history
  tabletalk history --status error --limit 10
  tabletalk history --run 0192f1c2-... --json`,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}

			store, err := audit.NewStore(cfg.DataDir)
			if err != nil {
				return fmt.Errorf("open audit store: %w", err)
			}
			defer store.Close()

			records, err := store.List(cmd.Context(), audit.ListOptions{Limit: limit, RunID: runID, Status: status})
			if err != nil {
				return err
			}

			if jsonOutput {
				enc := json.NewEncoder(os.Stdout)
				enc.SetIndent("", "  ")
				enc.SetEscapeHTML(false)
				return enc.Encode(records)
			}

			if len(records) == 0 {
				fmt.Println("No tool calls recorded.")
				return nil
			}

			fmt.Printf("%-20s %-10s %-7s %-5s %-8s %s\n", "TIME", "TOOL", "STATUS", "ROWS", "MS", "STATEMENT / ERROR")
			fmt.Printf("%-20s %-10s %-7s %-5s %-8s %s\n", "----", "----", "------", "----", "--", "-----------------")
			for _, r := range records {
				detail := r.Statement
				if r.Status != "ok" {
					detail = r.Error
				}
				fmt.Printf("%-20s %-10s %-7s %-5d %-8d %s\n",
					r.CreatedAt.Local().Format("2006-01-02 15:04:05"), r.Tool, r.Status, r.Rows, r.DurationMs, detail)
			}
			return nil
		},
	}

	cmd.Flags().IntVarP(&limit, "limit", "n", audit.DefaultListLimit, "Maximum number of records")
	cmd.Flags().StringVar(&runID, "run", "", "Only calls of this run (request id)")
	cmd.Flags().StringVar(&status, "status", "", "Only calls with this status (ok or error)")
	cmd.Flags().BoolVar(&jsonOutput, "json", false, "Output as JSON")

	return cmd
}
