package admin

import (
	"context"
	"database/sql"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database/postgres"
	_ "github.com/golang-migrate/migrate/v4/source/file"
	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/spf13/cobra"

	"github.com/evidentry/evidentry/internal/api/handlers"
	"github.com/evidentry/evidentry/internal/config"
	"github.com/evidentry/evidentry/internal/database"
	"github.com/evidentry/evidentry/internal/jobs"
	"github.com/evidentry/evidentry/internal/repository"
	"github.com/evidentry/evidentry/internal/server"
	"github.com/evidentry/evidentry/internal/service"
	"github.com/evidentry/evidentry/internal/signing"
	"github.com/evidentry/evidentry/internal/storage"
	"github.com/evidentry/evidentry/internal/telemetry"
)

func ServeCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the API server",
		Long:  "Start the evidentry API server on the specified port",
		RunE:  runServe,
	}

	cmd.Flags().StringP("port", "p", "8080", "Port to listen on")
	cmd.Flags().Bool("no-migrate", false, "Skip automatic database migrations on startup")

	return cmd
}

func runServe(cmd *cobra.Command, args []string) error {
	ctx := context.Background()

	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	if cfg.SentryDSN != "" {
		environment := os.Getenv("ENVIRONMENT")
		if environment == "" {
			environment = "development"
		}

		sampleRate := 0.1
		if environment == "development" {
			sampleRate = 1.0
		}

		shutdownTelemetry, err := telemetry.Init(telemetry.Config{
			DSN:              cfg.SentryDSN,
			Environment:      environment,
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
	if portFlag != "" && portFlag != "8080" {
		cfg.Port = portFlag
	}

	pool, err := database.NewPool(ctx, cfg.DatabaseURL)
	if err != nil {
		return fmt.Errorf("failed to connect to database: %w", err)
	}
	defer pool.Close()
	log.Println("connected to database")

	noMigrate, _ := cmd.Flags().GetBool("no-migrate")
	if !noMigrate {
		if err := runMigrations(cfg.DatabaseURL); err != nil {
			return fmt.Errorf("failed to run migrations: %w", err)
		}
	}

	if !cfg.HasS3() {
		return fmt.Errorf("artifact storage is required: set EVIDENTRY_S3_ENDPOINT, EVIDENTRY_S3_ACCESS_KEY_ID and EVIDENTRY_S3_SECRET_ACCESS_KEY")
	}
	s3Client, err := storage.NewS3Client(ctx, storage.S3ClientConfig{
		Endpoint:        cfg.S3Endpoint,
		Region:          cfg.S3Region,
		AccessKeyID:     cfg.S3AccessKey,
		SecretAccessKey: cfg.S3SecretKey,
		Bucket:          cfg.S3Bucket,
		UsePathStyle:    cfg.S3UsePathStyle,
		DownloadExpiry:  cfg.S3DownloadExpiry,
	})
	if err != nil {
		return fmt.Errorf("failed to create S3 client: %w", err)
	}
	if err := s3Client.EnsureBucket(ctx); err != nil {
		return fmt.Errorf("failed to ensure S3 bucket: %w", err)
	}
	log.Printf("S3 bucket '%s' ready", cfg.S3Bucket)

	ring, err := signing.ParseRing(cfg.SigningKeys, cfg.SigningActiveKey)
	if err != nil {
		return fmt.Errorf("failed to parse signing keys: %w", err)
	}
	if cfg.SigningEnabled() {
		log.Printf("artifact signing enabled, keys: %v", ring.KeyIDs())
	} else {
		log.Println("artifact signing disabled, artifacts stored hash-only")
	}

	decisionRepo := repository.NewDecisionRepository(pool)
	docRepo := repository.NewDocumentRepository(pool)
	artifactRepo := repository.NewArtifactRepository(pool)
	policyRepo := repository.NewPolicyRepository(pool)
	holdRepo := repository.NewHoldRepository(pool)
	tenantRepo := repository.NewTenantRepository(pool)
	apiKeyRepo := repository.NewAPIKeyRepository(pool)
	txRunner := repository.NewTxRunner(pool)

	uuidGen := &service.DefaultUUIDGenerator{}

	decisionSvc := service.NewDecisionService(txRunner, decisionRepo, docRepo)
	documentSvc := service.NewDocumentService(docRepo)
	reportSvc := service.NewReportService(decisionRepo, docRepo, policyRepo, artifactRepo, s3Client, ring)
	policySvc := service.NewPolicyService(policyRepo)
	holdSvc := service.NewHoldService(holdRepo, uuidGen)
	retentionSvc := service.NewRetentionService(artifactRepo, policyRepo, holdRepo, tenantRepo, s3Client)
	authSvc := service.NewAuthService(tenantRepo, apiKeyRepo, uuidGen)

	var sweepWorker *jobs.Worker
	if cfg.RetentionSweepInterval > 0 {
		sweeper := jobs.NewRetentionSweeper(retentionSvc, cfg.RetentionSweepDryRun)
		sweepWorker = jobs.NewWorker(sweeper, cfg.RetentionSweepInterval)
		go sweepWorker.Start(ctx)
		log.Printf("retention sweep worker started, interval %v dry_run=%v", cfg.RetentionSweepInterval, cfg.RetentionSweepDryRun)
	}

	router := server.NewRouter(server.RouterConfig{
		AuthValidator:    authSvc,
		OperatorKey:      cfg.OperatorKey,
		DecisionHandler:  handlers.NewDecisionHandler(decisionSvc),
		ReportHandler:    handlers.NewReportHandler(reportSvc),
		DocumentHandler:  handlers.NewDocumentHandler(documentSvc),
		PolicyHandler:    handlers.NewPolicyHandler(policySvc),
		HoldHandler:      handlers.NewHoldHandler(holdSvc),
		RetentionHandler: handlers.NewRetentionHandler(retentionSvc),
		AuthHandler:      handlers.NewAuthHandler(authSvc),
	})

	srv := &http.Server{
		Addr:    ":" + cfg.Port,
		Handler: router,
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

	if sweepWorker != nil {
		sweepWorker.Stop()
	}

	shutdownCtx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server forced to shutdown: %w", err)
	}

	log.Println("server exited")
	return nil
}

func runMigrations(databaseURL string) error {
	db, err := sql.Open("pgx", databaseURL)
	if err != nil {
		return fmt.Errorf("failed to open database for migrations: %w", err)
	}
	defer db.Close()

	driver, err := postgres.WithInstance(db, &postgres.Config{})
	if err != nil {
		return fmt.Errorf("failed to create migration driver: %w", err)
	}

	m, err := migrate.NewWithDatabaseInstance(
		"file://migrations",
		"postgres",
		driver,
	)
	if err != nil {
		return fmt.Errorf("failed to create migrate instance: %w", err)
	}

	err = m.Up()
	if err != nil && err != migrate.ErrNoChange {
		return fmt.Errorf("failed to apply migrations: %w", err)
	}

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
