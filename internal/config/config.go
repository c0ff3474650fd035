// Package config provides configuration loading for tenantd.
//
// Configuration is loaded from a YAML file, then overridden by
// environment variables.
package config

import (
	"errors"
	"fmt"
	"time"
)

// Config holds the complete tenantd configuration.
type Config struct {
	Server     ServerConfig     `koanf:"server"`
	Logging    LoggingConfig    `koanf:"logging"`
	Telemetry  TelemetryConfig  `koanf:"telemetry"`
	Postgres   PostgresConfig   `koanf:"postgres"`
	Redis      RedisConfig      `koanf:"redis"`
	Qdrant     QdrantConfig     `koanf:"qdrant"`
	Minio      MinioConfig      `koanf:"minio"`
	Neo4j      Neo4jConfig      `koanf:"neo4j"`
	Hosting    HostingConfig    `koanf:"hosting"`
	Pool       PoolConfig       `koanf:"pool"`
	Reconciler ReconcilerConfig `koanf:"reconciler"`
	Deletion   DeletionConfig   `koanf:"deletion"`
}

// ServerConfig holds HTTP server configuration.
type ServerConfig struct {
	Host            string   `koanf:"host"`
	Port            int      `koanf:"port"`
	ShutdownTimeout Duration `koanf:"shutdown_timeout"`
}

// LoggingConfig holds logger configuration.
type LoggingConfig struct {
	Level  string `koanf:"level"`
	Format string `koanf:"format"`
}

// TelemetryConfig holds OpenTelemetry export configuration.
type TelemetryConfig struct {
	Enabled     bool   `koanf:"enabled"`
	ServiceName string `koanf:"service_name"`
	Endpoint    string `koanf:"endpoint"`
	Protocol    string `koanf:"protocol"` // grpc or http
	Insecure    bool   `koanf:"insecure"`
}

// PostgresConfig holds the record store connection.
type PostgresConfig struct {
	URL Secret `koanf:"url"`
}

// RedisConfig holds the tenant metadata store connection.
type RedisConfig struct {
	Addr     string `koanf:"addr"`
	Password Secret `koanf:"password"`
	DB       int    `koanf:"db"`
}

// QdrantConfig holds the vector index connection.
type QdrantConfig struct {
	Host   string `koanf:"host"`
	Port   int    `koanf:"port"`
	UseTLS bool   `koanf:"use_tls"`
}

// MinioConfig holds the object storage connection.
type MinioConfig struct {
	Endpoint  string `koanf:"endpoint"`
	AccessKey string `koanf:"access_key"`
	SecretKey Secret `koanf:"secret_key"`
	UseSSL    bool   `koanf:"use_ssl"`
}

// Neo4jConfig holds the graph database connection.
type Neo4jConfig struct {
	URI      string `koanf:"uri"`
	Username string `koanf:"username"`
	Password Secret `koanf:"password"`
}

// HostingConfig holds the hosting platform API client settings.
type HostingConfig struct {
	BaseURL       string   `koanf:"base_url"`
	AuthToken     Secret   `koanf:"auth_token"`
	ReadyAttempts int      `koanf:"ready_attempts"`
	ReadyBackoff  Duration `koanf:"ready_backoff"`
}

// SeedProjectConfig is one pre-provisioned pool project to register at
// startup.
type SeedProjectConfig struct {
	ProjectID string            `koanf:"project_id"`
	Metadata  map[string]string `koanf:"metadata"`
}

// PoolConfig holds pool-wide settings and the shared resources a
// recycle purges.
type PoolConfig struct {
	VectorIndex  string              `koanf:"vector_index"`
	Buckets      []string            `koanf:"buckets"`
	SeedProjects []SeedProjectConfig `koanf:"seed_projects"`
}

// ReconcilerConfig holds drift detection thresholds.
type ReconcilerConfig struct {
	StaleInUseAfter     Duration `koanf:"stale_in_use_after"`
	RecyclingStuckAfter Duration `koanf:"recycling_stuck_after"`
	Interval            Duration `koanf:"interval"`
}

// DeletionConfig tunes the cascading deletion orchestrator.
type DeletionConfig struct {
	DocConcurrency int      `koanf:"doc_concurrency"`
	DocBatchSize   int      `koanf:"doc_batch_size"`
	BatchInterval  Duration `koanf:"batch_interval"`
	DocStepTimeout Duration `koanf:"doc_step_timeout"`
}

// applyDefaults sets default values for missing configuration fields.
func applyDefaults(cfg *Config) {
	if cfg.Server.Host == "" {
		cfg.Server.Host = "localhost"
	}
	if cfg.Server.Port == 0 {
		cfg.Server.Port = 8080
	}
	if cfg.Server.ShutdownTimeout == 0 {
		cfg.Server.ShutdownTimeout = Duration(10 * time.Second)
	}

	if cfg.Logging.Level == "" {
		cfg.Logging.Level = "info"
	}
	if cfg.Logging.Format == "" {
		cfg.Logging.Format = "json"
	}

	if cfg.Telemetry.ServiceName == "" {
		cfg.Telemetry.ServiceName = "tenantd"
	}
	if cfg.Telemetry.Protocol == "" {
		cfg.Telemetry.Protocol = "grpc"
	}

	if cfg.Redis.Addr == "" {
		cfg.Redis.Addr = "localhost:6379"
	}

	if cfg.Qdrant.Host == "" {
		cfg.Qdrant.Host = "localhost"
	}
	if cfg.Qdrant.Port == 0 {
		cfg.Qdrant.Port = 6334
	}

	if cfg.Neo4j.URI == "" {
		cfg.Neo4j.URI = "neo4j://localhost:7687"
	}

	if cfg.Hosting.ReadyAttempts == 0 {
		cfg.Hosting.ReadyAttempts = 10
	}
	if cfg.Hosting.ReadyBackoff == 0 {
		cfg.Hosting.ReadyBackoff = Duration(2 * time.Second)
	}

	if cfg.Reconciler.StaleInUseAfter == 0 {
		cfg.Reconciler.StaleInUseAfter = Duration(24 * time.Hour)
	}
	if cfg.Reconciler.RecyclingStuckAfter == 0 {
		cfg.Reconciler.RecyclingStuckAfter = Duration(2 * time.Hour)
	}
	if cfg.Reconciler.Interval == 0 {
		cfg.Reconciler.Interval = Duration(15 * time.Minute)
	}

	if cfg.Deletion.DocConcurrency == 0 {
		cfg.Deletion.DocConcurrency = 4
	}
	if cfg.Deletion.DocBatchSize == 0 {
		cfg.Deletion.DocBatchSize = 20
	}
	if cfg.Deletion.BatchInterval == 0 {
		cfg.Deletion.BatchInterval = Duration(500 * time.Millisecond)
	}
	if cfg.Deletion.DocStepTimeout == 0 {
		cfg.Deletion.DocStepTimeout = Duration(5 * time.Minute)
	}
}

// Validate validates the configuration.
func (c *Config) Validate() error {
	if c.Server.Port < 1 || c.Server.Port > 65535 {
		return fmt.Errorf("invalid server port: %d (must be 1-65535)", c.Server.Port)
	}
	if c.Server.ShutdownTimeout <= 0 {
		return errors.New("shutdown timeout must be positive")
	}

	switch c.Logging.Format {
	case "json", "console":
	default:
		return fmt.Errorf("invalid logging format: %q (must be json or console)", c.Logging.Format)
	}

	if c.Telemetry.Enabled {
		if c.Telemetry.ServiceName == "" {
			return errors.New("service name required when telemetry is enabled")
		}
		switch c.Telemetry.Protocol {
		case "grpc", "http":
		default:
			return fmt.Errorf("invalid telemetry protocol: %q (must be grpc or http)", c.Telemetry.Protocol)
		}
	}

	for _, seed := range c.Pool.SeedProjects {
		if seed.ProjectID == "" {
			return errors.New("pool seed project with empty project_id")
		}
	}

	if c.Deletion.DocConcurrency < 1 {
		return errors.New("deletion doc_concurrency must be at least 1")
	}
	if c.Deletion.DocBatchSize < 1 {
		return errors.New("deletion doc_batch_size must be at least 1")
	}

	return nil
}
