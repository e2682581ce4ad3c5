package client

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/spf13/cobra"
)

// SearchRequest represents the search API request.
type SearchRequest struct {
	Query string `json:"query"`
	Year  int    `json:"year,omitempty"`
	TopK  int    `json:"top_k,omitempty"`
}

// SearchResultItem is one scored chunk in the search response.
type SearchResultItem struct {
	ID         string  `json:"id"`
	Text       string  `json:"text"`
	Source     string  `json:"source,omitempty"`
	Type       string  `json:"type,omitempty"`
	ValidFrom  int     `json:"valid_from,omitempty"`
	ValidUntil int     `json:"valid_until,omitempty"`
	Score      float64 `json:"score"`
}

// SearchResponse represents the search API response.
type SearchResponse struct {
	Results          []SearchResultItem `json:"results"`
	Year             int                `json:"year,omitempty"`
	Category         string             `json:"category,omitempty"`
	Entities         []string           `json:"entities,omitempty"`
	LexicalDegraded  bool               `json:"lexical_degraded,omitempty"`
	SemanticDegraded bool               `json:"semantic_degraded,omitempty"`
	TemporalApplied  bool               `json:"temporal_applied,omitempty"`
}

// SearchCmd creates the search command.
func SearchCmd() *cobra.Command {
	var (
		year int
		topK int
	)

	cmd := &cobra.Command{
		Use:   "search <query>",
		Short: "Search the knowledge base",
		Long:  "Run a hybrid search and print the fused ranking.",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			outputJSON, _ := cmd.Flags().GetBool("output")
			return runSearch(cmd, args[0], year, topK, outputJSON)
		},
	}

	cmd.Flags().IntVar(&year, "year", 0, "Pin the temporal filter to this year")
	cmd.Flags().IntVarP(&topK, "top-k", "n", 0, "Maximum number of results")

	return cmd
}

func runSearch(cmd *cobra.Command, query string, year, topK int, outputJSON bool) error {
	api := NewAPIClient(cmd)

	req := SearchRequest{
		Query: query,
		Year:  year,
		TopK:  topK,
	}

	resp, err := api.Post("/v1/search", req)
	if err != nil {
		return fmt.Errorf("search failed: %w", err)
	}

	var searchResp SearchResponse
	if err := json.Unmarshal(resp.Data, &searchResp); err != nil {
		return fmt.Errorf("failed to parse search results: %w", err)
	}

	if outputJSON {
		output, _ := json.MarshalIndent(searchResp, "", "  ")
		fmt.Println(string(output))
		return nil
	}

	if searchResp.LexicalDegraded {
		fmt.Println("Warning: lexical leg degraded, ranking is semantic-only.")
	}
	if searchResp.SemanticDegraded {
		fmt.Println("Warning: semantic leg degraded, ranking is lexical-only.")
	}

	if len(searchResp.Results) == 0 {
		fmt.Println("No results found.")
		return nil
	}

	header := fmt.Sprintf("Found %d results", len(searchResp.Results))
	var hints []string
	if searchResp.Category != "" {
		hints = append(hints, "category "+searchResp.Category)
	}
	if searchResp.Year > 0 {
		hints = append(hints, fmt.Sprintf("year %d", searchResp.Year))
	}
	if len(searchResp.Entities) > 0 {
		hints = append(hints, "entities "+strings.Join(searchResp.Entities, ", "))
	}
	if len(hints) > 0 {
		header += " (" + strings.Join(hints, "; ") + ")"
	}
	fmt.Printf("%s:\n\n", header)

	for i, result := range searchResp.Results {
		fmt.Printf("%d. [%s] %s (%.3f)\n", i+1, result.Type, truncate(result.Text, 120), result.Score)
		if result.Source != "" {
			fmt.Printf("   Source: %s\n", result.Source)
		}
		if result.ValidFrom > 0 || result.ValidUntil > 0 {
			fmt.Printf("   Valid: %d-%d\n", result.ValidFrom, result.ValidUntil)
		}
		fmt.Printf("   ID: %s\n", result.ID)
		if i < len(searchResp.Results)-1 {
			fmt.Println(strings.Repeat("-", 40))
		}
	}

	return nil
}

// truncate shortens s to at most n runes. Byte slicing would split the
// multibyte Vietnamese characters.
func truncate(s string, n int) string {
	runes := []rune(s)
	if len(runes) <= n {
		return s
	}
	return string(runes[:n-3]) + "..."
}
