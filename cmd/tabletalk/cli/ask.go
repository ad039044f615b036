package cli

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/tabletalk/tabletalk/internal/llm"
)

func newAskCmd() *cobra.Command {
	var (
		jsonOutput bool
		model      string
	)

	cmd := &cobra.Command{
		Use:   "ask <question>",
		Short: "Answer one question without a server",
		Long:  "Run the conversation loop in-process for a single question and print the answer.",
		Example: `  tabletalk ask "which accounts have a transaction value above 1000?"
  tabletalk ask --json "how many accounts are there?"`,
		Args: cobra.MinimumNArgs(1),
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

			loop, err := a.newLoop()
			if err != nil {
				return err
			}

			question := strings.Join(args, " ")
			res, err := loop.Run(cmd.Context(), []llm.Message{{Role: llm.RoleUser, Content: question}})
			if err != nil {
				return err
			}

			if jsonOutput {
				enc := json.NewEncoder(cmd.OutOrStdout())
				enc.SetIndent("", "  ")
				return enc.Encode(map[string]any{
					"answer":     res.Answer,
					"turns":      res.Turns,
					"tool_calls": res.ToolCalls,
					"run_id":     res.RunID,
				})
			}
			fmt.Fprintln(cmd.OutOrStdout(), res.Answer)
			return nil
		},
	}

	cmd.Flags().BoolVar(&jsonOutput, "json", false, "Output the answer with run details as JSON")
	cmd.Flags().StringVar(&model, "model", "", "Model to use (overrides llm.model)")
	viper.BindPFlag("llm.model", cmd.Flags().Lookup("model"))

	return cmd
}
