package admin

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"path"
	"path/filepath"
	"syscall"
	"time"

	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database/postgres"
	_ "github.com/golang-migrate/migrate/v4/source/file"
	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/spf13/cobra"

	"github.com/khaothi-ai/khaothi/internal/api/handlers"
	"github.com/khaothi-ai/khaothi/internal/config"
	"github.com/khaothi-ai/khaothi/internal/database"
	"github.com/khaothi-ai/khaothi/internal/domain"
	"github.com/khaothi-ai/khaothi/internal/jobs"
	"github.com/khaothi-ai/khaothi/internal/pipeline"
	"github.com/khaothi-ai/khaothi/internal/router"
	"github.com/khaothi-ai/khaothi/internal/rules"
	"github.com/khaothi-ai/khaothi/internal/safety"
	"github.com/khaothi-ai/khaothi/internal/search"
	"github.com/khaothi-ai/khaothi/internal/server"
	"github.com/khaothi-ai/khaothi/internal/storage"
	"github.com/khaothi-ai/khaothi/internal/store"
	"github.com/khaothi-ai/khaothi/internal/store/memstore"
	"github.com/khaothi-ai/khaothi/internal/store/pgstore"
	"github.com/khaothi-ai/khaothi/internal/telemetry"
)

// ServeCmd returns the serve command
func ServeCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the query answering server",
		Long:  "Start the khaothi API server on the specified port",
		RunE:  runServe,
	}

	cmd.Flags().StringP("port", "p", "8108", "Port to listen on")
	cmd.Flags().Bool("no-migrate", false, "Skip automatic database migrations on startup")

	return cmd
}

func runServe(cmd *cobra.Command, args []string) error {
	ctx := context.Background()

	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return err
	}

	// Initialize Sentry with tracing if a DSN is configured
	if cfg.HasSentry() {
		// Default to 10% sampling in production, 100% in development
		sampleRate := 0.1
		if cfg.Environment == "development" {
			sampleRate = 1.0
		}

		shutdownTelemetry, err := telemetry.Init(telemetry.Config{
			DSN:              cfg.SentryDSN,
			Environment:      cfg.Environment,
			TracesSampleRate: sampleRate,
			Debug:            cfg.Debug,
		})
		if err != nil {
			log.Printf("telemetry init failed (continuing without tracing): %v", err)
		} else {
			defer shutdownTelemetry()
		}
	}

	portFlag, _ := cmd.Flags().GetString("port")
	if portFlag != "" && portFlag != "8108" {
		cfg.Port = portFlag
	}

	ruleSet, err := rules.Load(cfg.RulesPath)
	if err != nil {
		return err
	}

	provider, err := newProvider(cfg)
	if err != nil {
		return err
	}

	var knowledge store.KnowledgeStore
	var auditSink jobs.AuditSink = &jobs.LogSink{}
	healthHandler := handlers.NewHealthHandler(nil)

	switch cfg.StoreBackend {
	case "postgres":
		pool, err := database.NewPool(ctx, database.Config{URL: cfg.DatabaseURL})
		if err != nil {
			return err
		}
		defer pool.Close()
		log.Println("connected to database")

		// Run migrations unless --no-migrate flag is set
		noMigrate, _ := cmd.Flags().GetBool("no-migrate")
		if !noMigrate {
			if err := runMigrations(cfg.DatabaseURL); err != nil {
				return fmt.Errorf("failed to run migrations: %w", err)
			}
		}

		pgStore := pgstore.NewStore(pool)
		if err := pgStore.VerifyAlignment(ctx, cfg.EmbedDim); err != nil {
			return err
		}
		knowledge = pgStore
		auditSink = pgstore.NewAuditLogRepository(pool)
		healthHandler = handlers.NewHealthHandler(pool)

	case "memory":
		if err := fetchArtifacts(ctx, cfg); err != nil {
			return err
		}
		memStore, err := memstore.Load(cfg.ArtifactDir)
		if err != nil {
			return fmt.Errorf("failed to load index artifacts: %w", err)
		}
		count, _ := memStore.Count(ctx)
		log.Printf("loaded %d chunks from %s", count, cfg.ArtifactDir)
		knowledge = memStore
	}

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

	auditCh := make(chan domain.AuditRecord, cfg.AuditBuffer)
	auditWorker := jobs.NewAuditWorker(auditCh, auditSink, cfg.AuditInterval)
	go auditWorker.Start(ctx)
	log.Println("audit worker started")

	pipe := pipeline.New(pipeline.Deps{
		Guard:    guard,
		Selector: selector,
		Router:   queryRouter,
		Engine:   engine,
		Chat:     provider,
		Audit:    auditCh,
	})

	routerCfg := server.RouterConfig{
		QueryHandler:  handlers.NewQueryHandler(pipe, engine, queryRouter, guard),
		HealthHandler: healthHandler,
		QueryTimeout:  cfg.QueryTimeout,
		MaxBodyBytes:  cfg.MaxBodyBytes,
	}

	srv := &http.Server{
		Addr:    ":" + cfg.Port,
		Handler: server.NewRouter(routerCfg),
	}

	go func() {
		log.Printf("starting server on port %s", cfg.Port)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("server failed: %v", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Println("shutting down...")

	auditWorker.Stop()

	shutdownCtx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server forced to shutdown: %w", err)
	}

	log.Println("server exited")
	return nil
}

// fetchArtifacts pulls index artifacts that are missing locally from S3.
// Only runs when an artifact prefix and S3 credentials are configured.
func fetchArtifacts(ctx context.Context, cfg *config.Config) error {
	if cfg.ArtifactS3Prefix == "" || !cfg.HasS3() {
		return nil
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

	for _, name := range []string{memstore.ChunksFile, memstore.VectorsFile, memstore.SafetyFile} {
		dest := filepath.Join(cfg.ArtifactDir, name)
		if _, err := os.Stat(dest); err == nil {
			continue
		}

		key := path.Join(cfg.ArtifactS3Prefix, name)
		exists, err := s3Client.Exists(ctx, key)
		if err != nil {
			return fmt.Errorf("failed to check artifact %s: %w", key, err)
		}
		if !exists {
			// The safety matrix is optional; the guard falls back to
			// keyword screening without it.
			if name == memstore.SafetyFile {
				continue
			}
			return fmt.Errorf("artifact %s not found in bucket %s", key, cfg.S3Bucket)
		}

		log.Printf("artifacts: fetching %s from bucket %s", key, cfg.S3Bucket)
		if err := s3Client.Download(ctx, key, dest); err != nil {
			return fmt.Errorf("failed to fetch artifact %s: %w", key, err)
		}
	}

	return nil
}

// loadSafetyMatrix reads the seed embedding artifact when present. A missing
// file disables the similarity leg rather than failing startup.
func loadSafetyMatrix(dir string) ([][]float32, error) {
	p := filepath.Join(dir, memstore.SafetyFile)
	if _, err := os.Stat(p); errors.Is(err, os.ErrNotExist) {
		log.Printf("safety: no %s in %s, similarity screening disabled", memstore.SafetyFile, dir)
		return nil, nil
	}

	_, rows, err := memstore.ReadVectors(p)
	if err != nil {
		return nil, fmt.Errorf("failed to load safety matrix: %w", err)
	}
	log.Printf("safety: loaded %d seed embeddings", len(rows))
	return rows, nil
}

func runMigrations(databaseURL string) error {
	// Create a sql.DB connection for golang-migrate
	db, err := sql.Open("pgx", databaseURL)
	if err != nil {
		return fmt.Errorf("failed to open database for migrations: %w", err)
	}
	defer db.Close()

	// Create postgres driver instance
	driver, err := postgres.WithInstance(db, &postgres.Config{})
	if err != nil {
		return fmt.Errorf("failed to create migration driver: %w", err)
	}

	// Create migrate instance with file source
	m, err := migrate.NewWithDatabaseInstance(
		"file://migrations",
		"postgres",
		driver,
	)
	if err != nil {
		return fmt.Errorf("failed to create migrate instance: %w", err)
	}

	// Run migrations
	err = m.Up()
	if err != nil && err != migrate.ErrNoChange {
		return fmt.Errorf("failed to apply migrations: %w", err)
	}

	// Get migration version and status
	version, dirty, err := m.Version()
	if err != nil && err != migrate.ErrNilVersion {
		return fmt.Errorf("failed to get migration version: %w", err)
	}

	if err == migrate.ErrNilVersion {
		log.Println("migrations: database is up to date (no migrations applied)")
	} else if dirty {
		return fmt.Errorf("migration version %d is dirty - manual intervention required", version)
	} else if err == migrate.ErrNoChange {
		log.Printf("migrations: database is up to date (version %d)", version)
	} else {
		log.Printf("migrations: applied successfully (version %d)", version)
	}

	return nil
}
