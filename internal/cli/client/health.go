package client

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"
)

// HealthResponse represents the health API response.
type HealthResponse struct {
	Status string `json:"status"`
}

// HealthCmd creates the health command.
func HealthCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "health",
		Short: "Check server health",
		Long:  "Check that the server is up and its knowledge store is reachable.",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			outputJSON, _ := cmd.Flags().GetBool("output")
			return runHealth(cmd, outputJSON)
		},
	}

	return cmd
}

func runHealth(cmd *cobra.Command, outputJSON bool) error {
	api := NewAPIClient(cmd)

	resp, err := api.Get("/health")
	if err != nil {
		return fmt.Errorf("health check failed: %w", err)
	}

	var health HealthResponse
	if err := json.Unmarshal(resp.Data, &health); err != nil {
		return fmt.Errorf("failed to parse health response: %w", err)
	}

	if outputJSON {
		output, _ := json.MarshalIndent(health, "", "  ")
		fmt.Println(string(output))
		return nil
	}

	fmt.Printf("Server at %s is %s\n", api.baseURL, health.Status)
	return nil
}
