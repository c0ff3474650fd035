// Tenantd manages a finite pool of reusable hosting projects and runs
// cascading tenant deletions across the platform's external systems.
//
// Configuration is loaded from ~/.config/tenantd/config.yaml (or the
// --config flag), then overridden by environment variables. See
// internal/config for the full schema.
//
// Usage:
//
//	# Start the daemon with defaults
//	tenantd serve
//
//	# Configure via environment
//	SERVER_PORT=8080 POSTGRES_URL=postgres://... tenantd serve
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/labstack/echo/v4"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/fyrsmithlabs/tenantd/internal/config"
	"github.com/fyrsmithlabs/tenantd/internal/graph"
	"github.com/fyrsmithlabs/tenantd/internal/hosting"
	tenanthttp "github.com/fyrsmithlabs/tenantd/internal/http"
	"github.com/fyrsmithlabs/tenantd/internal/logging"
	"github.com/fyrsmithlabs/tenantd/internal/objectstore"
	"github.com/fyrsmithlabs/tenantd/internal/orchestrator"
	"github.com/fyrsmithlabs/tenantd/internal/pool"
	"github.com/fyrsmithlabs/tenantd/internal/reconciler"
	"github.com/fyrsmithlabs/tenantd/internal/record"
	"github.com/fyrsmithlabs/tenantd/internal/telemetry"
	"github.com/fyrsmithlabs/tenantd/internal/tenantmeta"
	"github.com/fyrsmithlabs/tenantd/internal/vector"
)

// Version information (set via ldflags during build)
var (
	version   = "dev"
	gitCommit = "unknown"
	buildDate = "unknown"
)

var configPath string

var rootCmd = &cobra.Command{
	Use:   "tenantd",
	Short: "Tenant resource pool and cascading deletion daemon",
	Long: `tenantd manages a finite pool of reusable hosting projects with
exclusive allocation and recycling, and deletes a tenant's resources
across the vector index, graph database, object storage, hosting
platform, and tenant metadata store.`,
	Version: version,
}

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the tenantd daemon",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, cancel := context.WithCancel(cmd.Context())
		defer cancel()

		sigCh := make(chan os.Signal, 1)
		signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
		go func() {
			<-sigCh
			cancel()
		}()

		return run(ctx)
	},
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Show version information",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Printf("tenantd by Fyrsmith Labs\n")
		fmt.Printf("Version:    %s\n", version)
		fmt.Printf("Commit:     %s\n", gitCommit)
		fmt.Printf("Build Date: %s\n", buildDate)
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "path to config.yaml (default ~/.config/tenantd/config.yaml)")
	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(versionCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

// run starts the daemon and blocks until the context is cancelled.
func run(ctx context.Context) error {
	cfg, err := config.LoadWithFile(configPath)
	if err != nil {
		return fmt.Errorf("loading configuration: %w", err)
	}

	logger, err := logging.New(&logging.Config{
		Level:  cfg.Logging.Level,
		Format: cfg.Logging.Format,
		Fields: map[string]string{"service": "tenantd"},
	})
	if err != nil {
		return fmt.Errorf("initializing logger: %w", err)
	}
	defer func() {
		_ = logging.Sync(logger)
	}()

	logger.Info("starting tenantd",
		zap.String("version", version),
		zap.Int("port", cfg.Server.Port))

	tel, err := telemetry.New(ctx, telemetryConfig(cfg))
	if err != nil {
		return fmt.Errorf("initializing telemetry: %w", err)
	}
	defer func() {
		if err := tel.Shutdown(context.Background()); err != nil {
			logger.Warn("telemetry shutdown failed", zap.Error(err))
		}
	}()

	deps, err := initDependencies(ctx, cfg, logger)
	if err != nil {
		return fmt.Errorf("initializing dependencies: %w", err)
	}
	defer deps.Close(logger)

	if err := pool.Seed(ctx, deps.store, seedProjects(cfg), logger.Named("seed")); err != nil {
		return fmt.Errorf("seeding pool: %w", err)
	}

	recycler := pool.NewRecycler(deps.store, deps.vectors, deps.graphs, deps.objects, deps.hosting, deps.meta, pool.RecyclerConfig{
		VectorIndex: cfg.Pool.VectorIndex,
		Buckets:     cfg.Pool.Buckets,
	}, logger.Named("recycler"))

	orch := orchestrator.New(deps.store, recycler, deps.vectors, deps.graphs, deps.objects, deps.hosting, deps.meta, orchestrator.Config{
		VectorIndex:    cfg.Pool.VectorIndex,
		Buckets:        cfg.Pool.Buckets,
		DocConcurrency: cfg.Deletion.DocConcurrency,
		DocBatchSize:   cfg.Deletion.DocBatchSize,
		BatchInterval:  cfg.Deletion.BatchInterval.Duration(),
		DocStepTimeout: cfg.Deletion.DocStepTimeout.Duration(),
	}, logger.Named("orchestrator"))

	recon := reconciler.New(deps.store, deps.meta, reconciler.Config{
		StaleInUseAfter:     cfg.Reconciler.StaleInUseAfter.Duration(),
		RecyclingStuckAfter: cfg.Reconciler.RecyclingStuckAfter.Duration(),
		Interval:            cfg.Reconciler.Interval.Duration(),
	}, logger.Named("reconciler"))
	go recon.Run(ctx)

	srv, err := tenanthttp.NewServer(deps.store, orch, recon, logger.Named("http"), &tenanthttp.Config{
		Host: cfg.Server.Host,
		Port: cfg.Server.Port,
	})
	if err != nil {
		return fmt.Errorf("creating http server: %w", err)
	}

	metrics := tenanthttp.NewHTTPMetrics(logger.Named("metrics"))
	srv.Echo().Use(metrics.MetricsMiddleware())
	srv.Echo().GET("/metrics", echo.WrapHandler(promhttp.Handler()))
	if err := tenanthttp.RegisterPoolGauges(deps.store, logger); err != nil {
		logger.Warn("pool gauge registration failed", zap.Error(err))
	}

	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.Start()
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	logger.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout.Duration())
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}

// dependencies holds all infrastructure connections.
type dependencies struct {
	pgpool  *pgxpool.Pool
	store   record.Store
	meta    tenantmeta.Adapter
	vectors vector.Adapter
	graphs  graph.Adapter
	objects objectstore.Adapter
	hosting hosting.Adapter

	redisAdapter  *tenantmeta.RedisAdapter
	qdrantAdapter *vector.QdrantAdapter
	neo4jAdapter  *graph.Neo4jAdapter
}

// Close releases all infrastructure resources.
func (d *dependencies) Close(logger *zap.Logger) {
	if d.qdrantAdapter != nil {
		if err := d.qdrantAdapter.Close(); err != nil {
			logger.Warn("closing qdrant client", zap.Error(err))
		}
	}
	if d.neo4jAdapter != nil {
		if err := d.neo4jAdapter.Close(context.Background()); err != nil {
			logger.Warn("closing neo4j driver", zap.Error(err))
		}
	}
	if d.redisAdapter != nil {
		if err := d.redisAdapter.Close(); err != nil {
			logger.Warn("closing redis client", zap.Error(err))
		}
	}
	if d.pgpool != nil {
		d.pgpool.Close()
	}
}

// initDependencies connects every external system the daemon talks to.
func initDependencies(ctx context.Context, cfg *config.Config, logger *zap.Logger) (*dependencies, error) {
	deps := &dependencies{}

	// Record store: Postgres when configured, in-memory otherwise. The
	// memory store is single-process only and meant for development.
	if cfg.Postgres.URL.IsSet() {
		pgpool, err := pgxpool.New(ctx, cfg.Postgres.URL.Value())
		if err != nil {
			return nil, fmt.Errorf("connecting to postgres: %w", err)
		}
		deps.pgpool = pgpool

		pg := record.NewPostgresStore(pgpool)
		if err := pg.EnsureSchema(ctx); err != nil {
			deps.Close(logger)
			return nil, err
		}
		deps.store = pg
		logger.Info("record store ready", zap.String("backend", "postgres"))
	} else {
		deps.store = record.NewMemoryStore()
		logger.Warn("no postgres url configured, using in-memory record store")
	}

	meta, err := tenantmeta.NewRedisAdapter(ctx, tenantmeta.RedisConfig{
		Addr:     cfg.Redis.Addr,
		Password: cfg.Redis.Password.Value(),
		DB:       cfg.Redis.DB,
	}, logger.Named("tenantmeta"))
	if err != nil {
		deps.Close(logger)
		return nil, fmt.Errorf("connecting to redis: %w", err)
	}
	deps.redisAdapter = meta
	deps.meta = meta

	vectors, err := vector.NewQdrantAdapter(vector.QdrantConfig{
		Host:   cfg.Qdrant.Host,
		Port:   cfg.Qdrant.Port,
		UseTLS: cfg.Qdrant.UseTLS,
	}, logger.Named("vector"))
	if err != nil {
		deps.Close(logger)
		return nil, fmt.Errorf("connecting to qdrant: %w", err)
	}
	deps.qdrantAdapter = vectors
	deps.vectors = vectors

	graphs, err := graph.NewNeo4jAdapter(ctx, graph.Neo4jConfig{
		URI:      cfg.Neo4j.URI,
		Username: cfg.Neo4j.Username,
		Password: cfg.Neo4j.Password.Value(),
	}, logger.Named("graph"))
	if err != nil {
		deps.Close(logger)
		return nil, fmt.Errorf("connecting to neo4j: %w", err)
	}
	deps.neo4jAdapter = graphs
	deps.graphs = graphs

	objects, err := objectstore.NewMinioAdapter(objectstore.MinioConfig{
		Endpoint:        cfg.Minio.Endpoint,
		AccessKeyID:     cfg.Minio.AccessKey,
		SecretAccessKey: cfg.Minio.SecretKey.Value(),
		UseSSL:          cfg.Minio.UseSSL,
	}, logger.Named("objectstore"))
	if err != nil {
		deps.Close(logger)
		return nil, fmt.Errorf("connecting to object storage: %w", err)
	}
	deps.objects = objects

	host, err := hosting.NewClient(hosting.ClientConfig{
		BaseURL:       cfg.Hosting.BaseURL,
		APIKey:        cfg.Hosting.AuthToken.Value(),
		ReadyAttempts: cfg.Hosting.ReadyAttempts,
		ReadyBackoff:  cfg.Hosting.ReadyBackoff.Duration(),
	}, logger.Named("hosting"))
	if err != nil {
		deps.Close(logger)
		return nil, fmt.Errorf("creating hosting client: %w", err)
	}
	deps.hosting = host

	return deps, nil
}

// telemetryConfig maps the daemon config onto the telemetry package.
func telemetryConfig(cfg *config.Config) *telemetry.Config {
	tc := telemetry.NewDefaultConfig()
	tc.Enabled = cfg.Telemetry.Enabled
	tc.ServiceName = cfg.Telemetry.ServiceName
	tc.ServiceVersion = version
	tc.Protocol = cfg.Telemetry.Protocol
	tc.Insecure = cfg.Telemetry.Insecure
	if cfg.Telemetry.Endpoint != "" {
		tc.Endpoint = cfg.Telemetry.Endpoint
	}
	return tc
}

// seedProjects converts configured seed entries to the pool's type.
func seedProjects(cfg *config.Config) []pool.SeedProject {
	seeds := make([]pool.SeedProject, 0, len(cfg.Pool.SeedProjects))
	for _, s := range cfg.Pool.SeedProjects {
		seeds = append(seeds, pool.SeedProject{
			ProjectID: s.ProjectID,
			Metadata:  s.Metadata,
		})
	}
	return seeds
}
