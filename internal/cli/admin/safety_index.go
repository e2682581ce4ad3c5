package admin

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/spf13/cobra"

	"github.com/khaothi-ai/khaothi/internal/config"
	"github.com/khaothi-ai/khaothi/internal/rules"
	"github.com/khaothi-ai/khaothi/internal/safety"
	"github.com/khaothi-ai/khaothi/internal/store/memstore"
)

// SafetyIndexCmd returns the safety-index command.
func SafetyIndexCmd() *cobra.Command {
	var (
		rulesPath string
		out       string
		upload    bool
	)

	cmd := &cobra.Command{
		Use:   "safety-index",
		Short: "Embed the unsafe seed queries",
		Long: `Embed the unsafe intent seed queries into the safety screening
artifact. Seeds come from the rules file when it defines seed_queries,
otherwise from the built-in list.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runSafetyIndex(rulesPath, out, upload)
		},
	}

	cmd.Flags().StringVar(&rulesPath, "rules", "", "Rules YAML file (defaults to the configured one)")
	cmd.Flags().StringVarP(&out, "out", "o", "artifacts", "Output directory for the safety artifact")
	cmd.Flags().BoolVar(&upload, "upload", false, "Upload the artifact to S3 after writing")

	return cmd
}

func runSafetyIndex(rulesPath, out string, upload bool) error {
	ctx := context.Background()

	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return err
	}

	if rulesPath == "" {
		rulesPath = cfg.RulesPath
	}
	ruleSet, err := rules.Load(rulesPath)
	if err != nil {
		return err
	}

	seeds := ruleSet.SeedQueries
	if seeds == nil {
		seeds = safety.DefaultSeedQueries()
	}
	if len(seeds) == 0 {
		return fmt.Errorf("no seed queries to embed")
	}

	provider, err := newProvider(cfg)
	if err != nil {
		return err
	}

	start := time.Now()
	vectors, err := provider.EmbedBatch(ctx, seeds)
	if err != nil {
		return fmt.Errorf("failed to embed seed queries: %w", err)
	}

	if err := os.MkdirAll(out, 0o755); err != nil {
		return fmt.Errorf("failed to create output dir: %w", err)
	}
	dest := filepath.Join(out, memstore.SafetyFile)
	if err := memstore.WriteVectors(dest, provider.Dimensions(), vectors); err != nil {
		return fmt.Errorf("failed to write safety artifact: %w", err)
	}
	fmt.Printf("Embedded %d seed queries into %s in %s\n",
		len(seeds), dest, time.Since(start).Round(time.Millisecond))

	if upload {
		if err := uploadArtifacts(ctx, cfg, out, []string{memstore.SafetyFile}); err != nil {
			return err
		}
	}

	return nil
}
