package admin

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path"
	"path/filepath"
	"time"

	"github.com/schollz/progressbar/v3"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/khaothi-ai/khaothi/internal/config"
	"github.com/khaothi-ai/khaothi/internal/database"
	"github.com/khaothi-ai/khaothi/internal/domain"
	"github.com/khaothi-ai/khaothi/internal/llm"
	"github.com/khaothi-ai/khaothi/internal/storage"
	"github.com/khaothi-ai/khaothi/internal/store/memstore"
	"github.com/khaothi-ai/khaothi/internal/store/pgstore"
)

const (
	embedBatchSize   = 50
	embedConcurrency = 8
)

// IndexCmd returns the index command.
func IndexCmd() *cobra.Command {
	var (
		corpus string
		out    string
		dest   string
		upload bool
	)

	cmd := &cobra.Command{
		Use:   "index --corpus <corpus.json>",
		Short: "Build the retrieval index from a corpus",
		Long: `Embed corpus chunks and build the retrieval index.

The corpus is a JSON array of chunks:
  [ { "id": "law-1", "text": "...", "type": "law", "valid_from": 2013 } ]

Missing metadata gets defaults: type "general", validity 1900-9999,
region ALL. By default the index is written as artifact files; with
--store postgres the chunks go into the database instead.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runIndex(corpus, out, dest, upload)
		},
	}

	cmd.Flags().StringVarP(&corpus, "corpus", "c", "", "Corpus JSON file (required)")
	cmd.Flags().StringVarP(&out, "out", "o", "artifacts", "Output directory for index artifacts")
	cmd.Flags().StringVar(&dest, "store", "files", "Index destination: files or postgres")
	cmd.Flags().BoolVar(&upload, "upload", false, "Upload artifacts to S3 after writing")
	cmd.MarkFlagRequired("corpus")

	return cmd
}

func runIndex(corpusPath, out, dest string, upload bool) error {
	ctx := context.Background()

	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return err
	}

	chunks, err := readCorpus(corpusPath)
	if err != nil {
		return err
	}
	if len(chunks) == 0 {
		return fmt.Errorf("no chunks in %s", corpusPath)
	}

	provider, err := newProvider(cfg)
	if err != nil {
		return err
	}

	start := time.Now()
	vectors, err := embedChunks(ctx, provider, chunks)
	if err != nil {
		return err
	}

	switch dest {
	case "postgres":
		if !cfg.HasDatabase() {
			return fmt.Errorf("--store postgres requires KHAOTHI_DATABASE_URL")
		}
		pool, err := database.NewPool(ctx, database.Config{URL: cfg.DatabaseURL})
		if err != nil {
			return err
		}
		defer pool.Close()

		if err := runMigrations(cfg.DatabaseURL); err != nil {
			return fmt.Errorf("failed to run migrations: %w", err)
		}

		for i := range chunks {
			chunks[i].Embedding = vectors[i]
		}
		if err := pgstore.NewStore(pool).ReplaceChunks(ctx, chunks); err != nil {
			return fmt.Errorf("failed to write chunks: %w", err)
		}
		fmt.Printf("Indexed %d chunks into postgres in %s\n",
			len(chunks), time.Since(start).Round(time.Millisecond))

	case "files":
		if err := os.MkdirAll(out, 0o755); err != nil {
			return fmt.Errorf("failed to create output dir: %w", err)
		}
		if err := memstore.WriteChunks(filepath.Join(out, memstore.ChunksFile), chunks); err != nil {
			return fmt.Errorf("failed to write chunk artifact: %w", err)
		}
		if err := memstore.WriteVectors(filepath.Join(out, memstore.VectorsFile), provider.Dimensions(), vectors); err != nil {
			return fmt.Errorf("failed to write vector artifact: %w", err)
		}
		fmt.Printf("Indexed %d chunks into %s in %s\n",
			len(chunks), out, time.Since(start).Round(time.Millisecond))

		if upload {
			if err := uploadArtifacts(ctx, cfg, out, []string{memstore.ChunksFile, memstore.VectorsFile}); err != nil {
				return err
			}
		}

	default:
		return fmt.Errorf("unknown index destination %q (want files or postgres)", dest)
	}

	return nil
}

// readCorpus loads and validates the corpus. Duplicate IDs are rejected
// here; they would silently shadow each other in the stores.
func readCorpus(path string) ([]domain.Chunk, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read corpus file: %w", err)
	}

	var chunks []domain.Chunk
	if err := json.Unmarshal(data, &chunks); err != nil {
		return nil, fmt.Errorf("failed to parse corpus file: %w", err)
	}

	seen := make(map[string]struct{}, len(chunks))
	for i := range chunks {
		chunks[i].Normalize()
		if err := domain.ValidateChunk(&chunks[i]); err != nil {
			return nil, fmt.Errorf("corpus chunk %d: %w", i, err)
		}
		if _, dup := seen[chunks[i].ID]; dup {
			return nil, fmt.Errorf("corpus chunk %d: duplicate id %s", i, chunks[i].ID)
		}
		seen[chunks[i].ID] = struct{}{}
	}
	return chunks, nil
}

// embedChunks embeds all chunk texts, batches running in parallel. Vector
// order matches chunk order.
func embedChunks(ctx context.Context, embedder llm.EmbeddingClient, chunks []domain.Chunk) ([][]float32, error) {
	bar := progressbar.NewOptions(len(chunks),
		progressbar.OptionShowBytes(false),
		progressbar.OptionSetWidth(40),
		progressbar.OptionShowCount(),
		progressbar.OptionSetDescription("Embedding"),
		progressbar.OptionOnCompletion(func() {
			fmt.Println()
		}),
	)

	vectors := make([][]float32, len(chunks))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(embedConcurrency)

	for begin := 0; begin < len(chunks); begin += embedBatchSize {
		end := begin + embedBatchSize
		if end > len(chunks) {
			end = len(chunks)
		}

		g.Go(func() error {
			texts := make([]string, end-begin)
			for i := begin; i < end; i++ {
				texts[i-begin] = chunks[i].Text
			}

			vecs, err := embedder.EmbedBatch(gctx, texts)
			if err != nil {
				return fmt.Errorf("embedding batch at chunk %d failed: %w", begin, err)
			}
			copy(vectors[begin:end], vecs)
			bar.Add(len(vecs))
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}
	return vectors, nil
}

// uploadArtifacts pushes freshly built artifacts to the configured bucket
// under the artifact prefix.
func uploadArtifacts(ctx context.Context, cfg *config.Config, dir string, names []string) error {
	if !cfg.HasS3() {
		return fmt.Errorf("--upload requires KHAOTHI_S3_ENDPOINT, KHAOTHI_S3_ACCESS_KEY_ID and KHAOTHI_S3_SECRET_ACCESS_KEY")
	}

	s3Client, err := storage.NewS3Client(ctx, storage.S3ClientConfig{
		Endpoint:        cfg.S3Endpoint,
		Region:          cfg.S3Region,
		AccessKeyID:     cfg.S3AccessKey,
		SecretAccessKey: cfg.S3SecretKey,
		Bucket:          cfg.S3Bucket,
		UsePathStyle:    cfg.S3UsePathStyle,
	})
	if err != nil {
		return fmt.Errorf("failed to create S3 client: %w", err)
	}
	if err := s3Client.EnsureBucket(ctx); err != nil {
		return fmt.Errorf("failed to ensure S3 bucket: %w", err)
	}

	for _, name := range names {
		key := path.Join(cfg.ArtifactS3Prefix, name)
		if err := s3Client.Upload(ctx, key, filepath.Join(dir, name)); err != nil {
			return fmt.Errorf("failed to upload artifact %s: %w", name, err)
		}
		fmt.Printf("Uploaded %s to bucket %s\n", key, cfg.S3Bucket)
	}
	return nil
}
