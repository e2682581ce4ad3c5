package admin

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"sort"
	"strings"
	"time"

	"github.com/schollz/progressbar/v3"
	"github.com/spf13/cobra"

	"github.com/khaothi-ai/khaothi/internal/config"
	"github.com/khaothi-ai/khaothi/internal/domain"
	"github.com/khaothi-ai/khaothi/internal/pipeline"
	"github.com/khaothi-ai/khaothi/internal/router"
	"github.com/khaothi-ai/khaothi/internal/rules"
	"github.com/khaothi-ai/khaothi/internal/safety"
	"github.com/khaothi-ai/khaothi/internal/search"
)

// PredictionRecord is one line of the predictions output file. The same
// shape works as a gold answer file for --answers.
type PredictionRecord struct {
	QID    string `json:"qid"`
	Answer string `json:"answer"`
}

type ModeAccuracy struct {
	Total    int     `json:"total"`
	Correct  int     `json:"correct"`
	Accuracy float64 `json:"accuracy"`
}

type AccuracyReport struct {
	Total    int                      `json:"total"`
	Scored   int                      `json:"scored"`
	Correct  int                      `json:"correct"`
	Accuracy float64                  `json:"accuracy"`
	Modes    map[string]*ModeAccuracy `json:"modes"`
}

// PredictCmd returns the predict command.
func PredictCmd() *cobra.Command {
	var (
		input       string
		output      string
		answers     string
		concurrency int
		report      string
	)

	cmd := &cobra.Command{
		Use:   "predict --input <questions.json>",
		Short: "Answer a question set offline",
		Long: `Answer every question in a JSON file and write the predictions.

The input is a JSON array of questions:
  [ { "qid": "q1", "question": "...", "choices": ["...", "..."] } ]

Accuracy is scored when gold labels are available, either inline as
"answer" fields or from a separate --answers file, and broken down by
routing mode.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runPredict(input, output, answers, concurrency, report)
		},
	}

	cmd.Flags().StringVarP(&input, "input", "i", "", "Questions JSON file (required)")
	cmd.Flags().StringVarP(&output, "output", "o", "predictions.json", "Predictions output file")
	cmd.Flags().StringVar(&answers, "answers", "", "Gold answers JSON file")
	cmd.Flags().IntVar(&concurrency, "concurrency", pipeline.DefaultBatchConcurrency, "Questions answered in parallel")
	cmd.Flags().StringVar(&report, "report", "", "Write the accuracy report JSON to this file")
	cmd.MarkFlagRequired("input")

	return cmd
}

func runPredict(input, output, answersPath string, concurrency int, reportPath string) error {
	ctx := context.Background()

	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return err
	}

	questions, err := readQuestions(input)
	if err != nil {
		return err
	}
	if len(questions) == 0 {
		return fmt.Errorf("no questions in %s", input)
	}

	ruleSet, err := rules.Load(cfg.RulesPath)
	if err != nil {
		return err
	}

	provider, err := newProvider(cfg)
	if err != nil {
		return err
	}

	knowledge, cleanup, err := openKnowledgeStore(ctx, cfg)
	if err != nil {
		return err
	}
	defer cleanup()

	matrix, err := loadSafetyMatrix(cfg.ArtifactDir)
	if err != nil {
		return err
	}

	guard := safety.NewGuard(provider, safety.GuardConfig{
		Matrix:    matrix,
		Threshold: cfg.SafetyThreshold,
		Keywords:  ruleSet.UnsafeKeywords,
	})
	selector := safety.NewSelector(provider, ruleSet.RefusalPhrases)

	queryRouter, err := router.New(ruleSet.RouterConfig())
	if err != nil {
		return err
	}

	engine := search.NewEngine(knowledge, provider, search.Config{
		TopK:           cfg.SearchTopK,
		FanOut:         cfg.SearchFanOut,
		RRFK:           cfg.SearchRRFK,
		MinScore:       cfg.MinScore,
		LexicalWeight:  cfg.LexicalWeight,
		SemanticWeight: cfg.SemanticWeight,
	})

	pipe := pipeline.New(pipeline.Deps{
		Guard:    guard,
		Selector: selector,
		Router:   queryRouter,
		Engine:   engine,
		Chat:     provider,
	})

	bar := progressbar.NewOptions(len(questions),
		progressbar.OptionShowBytes(false),
		progressbar.OptionSetWidth(40),
		progressbar.OptionShowCount(),
		progressbar.OptionSetDescription("Answering"),
		progressbar.OptionOnCompletion(func() {
			fmt.Println()
		}),
	)

	start := time.Now()
	predictions, err := pipe.AnswerBatch(ctx, questions, concurrency, func(done, total int) {
		bar.Set(done)
	})
	if err != nil {
		return fmt.Errorf("batch answering failed: %w", err)
	}

	if err := writePredictions(output, predictions); err != nil {
		return err
	}
	fmt.Printf("Answered %d questions in %s, predictions written to %s\n",
		len(questions), time.Since(start).Round(time.Millisecond), output)

	gold := inlineGold(questions)
	if answersPath != "" {
		gold, err = readGold(answersPath)
		if err != nil {
			return err
		}
	}
	if len(gold) == 0 {
		if reportPath != "" {
			return fmt.Errorf("cannot write accuracy report: no gold answers available")
		}
		return nil
	}

	rep := scoreAccuracy(predictions, gold)
	printAccuracy(rep)

	if reportPath != "" {
		encoded, err := json.MarshalIndent(rep, "", "  ")
		if err != nil {
			return fmt.Errorf("failed to encode accuracy report: %w", err)
		}
		if err := os.WriteFile(reportPath, encoded, 0o644); err != nil {
			return fmt.Errorf("failed to write accuracy report: %w", err)
		}
		fmt.Printf("Accuracy report written to %s\n", reportPath)
	}

	return nil
}

// readQuestions loads the input set. Questions without a qid get one from
// their position so predictions can be joined with gold answers.
func readQuestions(path string) ([]domain.Question, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read questions file: %w", err)
	}

	var questions []domain.Question
	if err := json.Unmarshal(data, &questions); err != nil {
		return nil, fmt.Errorf("failed to parse questions file: %w", err)
	}

	for i := range questions {
		if questions[i].ID == "" {
			questions[i].ID = fmt.Sprintf("q%d", i+1)
		}
	}
	return questions, nil
}

func writePredictions(path string, predictions []domain.Prediction) error {
	records := make([]PredictionRecord, len(predictions))
	for i, p := range predictions {
		records[i] = PredictionRecord{QID: p.QID, Answer: p.Answer}
	}

	encoded, err := json.MarshalIndent(records, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode predictions: %w", err)
	}
	if err := os.WriteFile(path, encoded, 0o644); err != nil {
		return fmt.Errorf("failed to write predictions: %w", err)
	}
	return nil
}

// readGold accepts either a record array (the predictions output shape) or
// a flat qid-to-letter object.
func readGold(path string) (map[string]string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read answers file: %w", err)
	}

	var records []PredictionRecord
	if err := json.Unmarshal(data, &records); err == nil {
		gold := make(map[string]string, len(records))
		for _, r := range records {
			gold[r.QID] = r.Answer
		}
		return gold, nil
	}

	var gold map[string]string
	if err := json.Unmarshal(data, &gold); err != nil {
		return nil, fmt.Errorf("failed to parse answers file: %w", err)
	}
	return gold, nil
}

func inlineGold(questions []domain.Question) map[string]string {
	gold := make(map[string]string)
	for _, q := range questions {
		if q.Answer != "" {
			gold[q.ID] = q.Answer
		}
	}
	return gold
}

func scoreAccuracy(predictions []domain.Prediction, gold map[string]string) *AccuracyReport {
	rep := &AccuracyReport{
		Total: len(predictions),
		Modes: make(map[string]*ModeAccuracy),
	}

	for _, p := range predictions {
		want, ok := gold[p.QID]
		if !ok || want == "" {
			continue
		}
		rep.Scored++

		m := rep.Modes[string(p.Mode)]
		if m == nil {
			m = &ModeAccuracy{}
			rep.Modes[string(p.Mode)] = m
		}
		m.Total++

		if strings.EqualFold(strings.TrimSpace(want), p.Answer) {
			rep.Correct++
			m.Correct++
		}
	}

	if rep.Scored > 0 {
		rep.Accuracy = float64(rep.Correct) / float64(rep.Scored)
	}
	for _, m := range rep.Modes {
		if m.Total > 0 {
			m.Accuracy = float64(m.Correct) / float64(m.Total)
		}
	}
	return rep
}

func printAccuracy(rep *AccuracyReport) {
	fmt.Printf("Accuracy: %.4f (%d/%d scored, %d total)\n",
		rep.Accuracy, rep.Correct, rep.Scored, rep.Total)

	modes := make([]string, 0, len(rep.Modes))
	for mode := range rep.Modes {
		modes = append(modes, mode)
	}
	sort.Strings(modes)
	for _, mode := range modes {
		m := rep.Modes[mode]
		fmt.Printf("  %-8s %.4f (%d/%d)\n", mode, m.Accuracy, m.Correct, m.Total)
	}
}
