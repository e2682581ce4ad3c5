package client

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/spf13/cobra"
)

// AskRequest represents the answer API request.
type AskRequest struct {
	QID      string   `json:"qid,omitempty"`
	Question string   `json:"question"`
	Choices  []string `json:"choices"`
}

// AskResponse represents the answer API response.
type AskResponse struct {
	QID        string   `json:"qid,omitempty"`
	Answer     string   `json:"answer"`
	Mode       string   `json:"mode"`
	Unsafe     bool     `json:"unsafe"`
	Degraded   []string `json:"degraded,omitempty"`
	DurationMs int64    `json:"duration_ms"`
}

// AskCmd creates the ask command.
func AskCmd() *cobra.Command {
	var (
		options []string
		qid     string
	)

	cmd := &cobra.Command{
		Use:   "ask <question>",
		Short: "Answer one multiple-choice question",
		Long: `Send one question to the server and print the chosen option.

Answer options are passed with repeated -o flags, in order:
  khaothi ask "Thủ đô của Việt Nam là gì?" -o "Hà Nội" -o "Huế" -o "Đà Nẵng" -o "Cần Thơ"`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			outputJSON, _ := cmd.Flags().GetBool("output")
			return runAsk(cmd, args[0], qid, options, outputJSON)
		},
	}

	cmd.Flags().StringArrayVarP(&options, "option", "o", nil, "Answer option (repeat in answer order)")
	cmd.Flags().StringVar(&qid, "qid", "", "Question identifier for the audit trail")

	return cmd
}

func runAsk(cmd *cobra.Command, question, qid string, options []string, outputJSON bool) error {
	api := NewAPIClient(cmd)

	req := AskRequest{
		QID:      qid,
		Question: question,
		Choices:  options,
	}

	resp, err := api.Post("/v1/answer", req)
	if err != nil {
		return fmt.Errorf("ask failed: %w", err)
	}

	var answer AskResponse
	if err := json.Unmarshal(resp.Data, &answer); err != nil {
		return fmt.Errorf("failed to parse answer: %w", err)
	}

	if outputJSON {
		output, _ := json.MarshalIndent(answer, "", "  ")
		fmt.Println(string(output))
		return nil
	}

	fmt.Printf("Answer: %s\n", answer.Answer)
	fmt.Printf("Mode: %s\n", answer.Mode)
	if answer.Unsafe {
		fmt.Println("Flagged unsafe, answered with the refusal option.")
	}
	if len(answer.Degraded) > 0 {
		fmt.Printf("Degraded: %s\n", strings.Join(answer.Degraded, ", "))
	}
	fmt.Printf("Took: %dms\n", answer.DurationMs)

	return nil
}
