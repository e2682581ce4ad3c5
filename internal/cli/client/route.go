package client

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/spf13/cobra"
)

// RouteRequest represents the route API request.
type RouteRequest struct {
	Query string `json:"query"`
}

// RouteResponse represents the route API response.
type RouteResponse struct {
	Mode           string   `json:"mode"`
	MatchedPattern string   `json:"matched_pattern,omitempty"`
	Year           int      `json:"year,omitempty"`
	Entities       []string `json:"entities,omitempty"`
	Category       string   `json:"category,omitempty"`
}

// RouteCmd creates the route command.
func RouteCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "route <query>",
		Short: "Show how a query would be routed",
		Long:  "Classify a query without answering it and print the routing decision.",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			outputJSON, _ := cmd.Flags().GetBool("output")
			return runRoute(cmd, args[0], outputJSON)
		},
	}

	return cmd
}

func runRoute(cmd *cobra.Command, query string, outputJSON bool) error {
	api := NewAPIClient(cmd)

	resp, err := api.Post("/v1/route", RouteRequest{Query: query})
	if err != nil {
		return fmt.Errorf("route failed: %w", err)
	}

	var decision RouteResponse
	if err := json.Unmarshal(resp.Data, &decision); err != nil {
		return fmt.Errorf("failed to parse routing decision: %w", err)
	}

	if outputJSON {
		output, _ := json.MarshalIndent(decision, "", "  ")
		fmt.Println(string(output))
		return nil
	}

	fmt.Printf("Mode: %s\n", decision.Mode)
	if decision.MatchedPattern != "" {
		fmt.Printf("Pattern: %s\n", decision.MatchedPattern)
	}
	if decision.Year > 0 {
		fmt.Printf("Year: %d\n", decision.Year)
	}
	if len(decision.Entities) > 0 {
		fmt.Printf("Entities: %s\n", strings.Join(decision.Entities, ", "))
	}
	if decision.Category != "" {
		fmt.Printf("Category: %s\n", decision.Category)
	}

	return nil
}
