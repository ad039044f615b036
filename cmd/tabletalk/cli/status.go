package cli

import (
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/spf13/cobra"
)

func newStatusCmd() *cobra.Command {
	var serverURL string

	cmd := &cobra.Command{
		Use:   "status",
		Short: "Check if a tabletalk server is ready",
		Long:  "Query the readiness probe of a running server and print the state of each dependency.",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runStatus(serverURL)
		},
	}

	cmd.Flags().StringVar(&serverURL, "url", "http://localhost:8000", "Base URL of the tabletalk server")

	return cmd
}

func runStatus(serverURL string) error {
	readyAddr := serverURL + "/readyz"
	client := &http.Client{Timeout: 2 * time.Second}
	resp, err := client.Get(readyAddr)
	if err != nil {
		fmt.Printf("Server is not responding at %s\n", serverURL)
		return nil
	}
	defer resp.Body.Close()

	var body struct {
		Status string            `json:"status"`
		Checks map[string]string `json:"checks"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return fmt.Errorf("decode readiness response: %w", err)
	}

	fmt.Printf("Server is %s (%d)\n", body.Status, resp.StatusCode)
	for name, state := range body.Checks {
		fmt.Printf("  %-8s %s\n", name+":", state)
	}
	return nil
}
