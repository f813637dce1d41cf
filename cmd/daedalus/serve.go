package main

import (
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/getsentry/sentry-go"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/wehubfusion/Daedalus/internal/natsconn"
	"github.com/wehubfusion/Daedalus/internal/tracing"
	"github.com/wehubfusion/Daedalus/pkg/ruleset"
	"github.com/wehubfusion/Daedalus/pkg/runner"
	"github.com/wehubfusion/Daedalus/pkg/script"
	"github.com/wehubfusion/Daedalus/pkg/storage"
	"github.com/wehubfusion/Daedalus/pkg/transform"
)

func newServeCmd(verbose *bool) *cobra.Command {
	var (
		natsURL          string
		stream           string
		consumer         string
		resultSubject    string
		batchSize        int
		numWorkers       int
		processTimeout   time.Duration
		rulesetDir       string
		allowInline      bool
		connectionString string
		container        string
		otlpEndpoint     string
		sentryDSN        string
		environment      string
	)

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the transformation worker",
		Long: `Run a worker that pulls transformation jobs from a NATS JetStream
consumer, applies the named ruleset to each job's document, and publishes
the transformed document to the result subject.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			logger, err := newLogger(*verbose)
			if err != nil {
				return err
			}
			defer logger.Sync()

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			if sentryDSN != "" {
				err := sentry.Init(sentry.ClientOptions{
					Dsn:         sentryDSN,
					Environment: environment,
				})
				if err != nil {
					return fmt.Errorf("failed to initialize Sentry: %w", err)
				}
				defer sentry.Flush(2 * time.Second)
			}

			tracingConfig := tracing.DefaultConfig("daedalus-worker")
			tracingConfig.Environment = environment
			tracingConfig.OTLPEndpoint = otlpEndpoint
			shutdownTracing, err := tracing.Setup(ctx, tracingConfig, logger)
			if err != nil {
				return err
			}
			defer tracing.Shutdown(shutdownTracing, logger)

			conn, err := natsconn.Connect(ctx, natsconn.DefaultConfig(natsURL), logger)
			if err != nil {
				return err
			}
			defer natsconn.Close(conn)

			var store storage.DocumentStore
			if connectionString != "" {
				blobStore, err := storage.NewAzureBlobStore(connectionString, container, logger)
				if err != nil {
					return err
				}
				store = blobStore
			}

			engine := script.NewEngine(script.DefaultPoolSize)
			defer engine.Close()

			registry := ruleset.NewRegistry()
			transformations, err := loadTransformations(rulesetDir, registry, engine, logger)
			if err != nil {
				return err
			}

			var inlineRegistry *ruleset.Registry
			if allowInline {
				inlineRegistry = registry
			}
			processor := runner.NewTransformProcessor(transformations, inlineRegistry, engine, store, logger)

			r, err := runner.NewRunner(conn, processor, runner.Config{
				Stream:         stream,
				Consumer:       consumer,
				ResultSubject:  resultSubject,
				BatchSize:      batchSize,
				NumWorkers:     numWorkers,
				ProcessTimeout: processTimeout,
			}, logger)
			if err != nil {
				return err
			}

			logger.Info("Worker starting",
				zap.String("nats_url", natsURL),
				zap.String("stream", stream),
				zap.String("consumer", consumer),
				zap.Int("workers", numWorkers),
				zap.Int("transformations", len(transformations)))

			if err := r.Run(ctx); err != nil && ctx.Err() == nil {
				return err
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&natsURL, "nats-url", envOr("NATS_URL", "nats://localhost:4222"), "NATS server URL")
	cmd.Flags().StringVar(&stream, "stream", "TRANSFORM", "JetStream stream name")
	cmd.Flags().StringVar(&consumer, "consumer", "daedalus-workers", "durable consumer name")
	cmd.Flags().StringVar(&resultSubject, "result-subject", "", "subject for result payloads (default <stream>.results)")
	cmd.Flags().IntVar(&batchSize, "batch", 10, "jobs to pull per fetch")
	cmd.Flags().IntVar(&numWorkers, "workers", 4, "number of processing goroutines")
	cmd.Flags().DurationVar(&processTimeout, "timeout", time.Minute, "per-job processing timeout")
	cmd.Flags().StringVar(&rulesetDir, "rulesets", "", "directory of YAML rulesets to register by file name")
	cmd.Flags().BoolVar(&allowInline, "allow-inline", false, "accept jobs carrying inline rulesets")
	cmd.Flags().StringVar(&connectionString, "azure-connection-string", os.Getenv("AZURE_STORAGE_CONNECTION_STRING"), "Azure storage connection string")
	cmd.Flags().StringVar(&container, "container", "documents", "blob container for documents and results")
	cmd.Flags().StringVar(&otlpEndpoint, "otlp-endpoint", os.Getenv("OTLP_ENDPOINT"), "OTLP HTTP endpoint for traces")
	cmd.Flags().StringVar(&sentryDSN, "sentry-dsn", os.Getenv("SENTRY_DSN"), "Sentry DSN for error reporting")
	cmd.Flags().StringVar(&environment, "environment", envOr("ENVIRONMENT", "development"), "deployment environment")

	return cmd
}

// loadTransformations builds every YAML ruleset in dir, keyed by file name
// without extension.
func loadTransformations(dir string, registry *ruleset.Registry, engine *script.Engine, logger *zap.Logger) (map[string]*transform.Transformation, error) {
	transformations := make(map[string]*transform.Transformation)
	if dir == "" {
		return transformations, nil
	}

	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("failed to read ruleset directory: %w", err)
	}

	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		ext := filepath.Ext(entry.Name())
		if ext != ".yaml" && ext != ".yml" {
			continue
		}

		path := filepath.Join(dir, entry.Name())
		rs, err := ruleset.LoadFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to load ruleset %s: %w", path, err)
		}
		tr, err := rs.Build(registry, engine, logger)
		if err != nil {
			return nil, fmt.Errorf("failed to build ruleset %s: %w", path, err)
		}

		name := strings.TrimSuffix(entry.Name(), ext)
		transformations[name] = tr
		logger.Info("Registered transformation",
			zap.String("name", name),
			zap.String("path", path))
	}

	return transformations, nil
}

func envOr(key, fallback string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return fallback
}
