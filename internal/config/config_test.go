package config

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParse_Defaults(t *testing.T) {
	cfg, err := Parse(nil)
	require.NoError(t, err)

	assert.Equal(t, "localhost", cfg.Server.Host)
	assert.Equal(t, 8080, cfg.Server.Port)
	assert.Equal(t, 10*time.Second, cfg.Server.ShutdownTimeout.Duration())
	assert.Equal(t, "info", cfg.Logging.Level)
	assert.Equal(t, "json", cfg.Logging.Format)
	assert.Equal(t, "tenantd", cfg.Telemetry.ServiceName)
	assert.Equal(t, "localhost:6379", cfg.Redis.Addr)
	assert.Equal(t, 6334, cfg.Qdrant.Port)
	assert.Equal(t, 24*time.Hour, cfg.Reconciler.StaleInUseAfter.Duration())
	assert.Equal(t, 2*time.Hour, cfg.Reconciler.RecyclingStuckAfter.Duration())
	assert.Equal(t, 4, cfg.Deletion.DocConcurrency)
	assert.Equal(t, 20, cfg.Deletion.DocBatchSize)
	assert.Equal(t, 500*time.Millisecond, cfg.Deletion.BatchInterval.Duration())
}

func TestParse_YAML(t *testing.T) {
	yaml := []byte(`
server:
  host: 0.0.0.0
  port: 9000
postgres:
  url: postgres://tenantd:secret@db/tenantd
pool:
  vector_index: tenant-docs
  buckets:
    - tenant-files
    - tenant-exports
  seed_projects:
    - project_id: pool-001
      metadata:
        region: us-central1
    - project_id: pool-002
reconciler:
  recycling_stuck_after: 45m
deletion:
  doc_concurrency: 8
`)
	cfg, err := Parse(yaml)
	require.NoError(t, err)

	assert.Equal(t, "0.0.0.0", cfg.Server.Host)
	assert.Equal(t, 9000, cfg.Server.Port)
	assert.Equal(t, "postgres://tenantd:secret@db/tenantd", cfg.Postgres.URL.Value())
	assert.Equal(t, "tenant-docs", cfg.Pool.VectorIndex)
	assert.Equal(t, []string{"tenant-files", "tenant-exports"}, cfg.Pool.Buckets)
	require.Len(t, cfg.Pool.SeedProjects, 2)
	assert.Equal(t, "pool-001", cfg.Pool.SeedProjects[0].ProjectID)
	assert.Equal(t, "us-central1", cfg.Pool.SeedProjects[0].Metadata["region"])
	assert.Equal(t, 45*time.Minute, cfg.Reconciler.RecyclingStuckAfter.Duration())
	assert.Equal(t, 8, cfg.Deletion.DocConcurrency)
	// Unset fields still get defaults.
	assert.Equal(t, 20, cfg.Deletion.DocBatchSize)
}

func TestParse_EnvOverride(t *testing.T) {
	t.Setenv("SERVER_PORT", "9999")
	t.Setenv("POOL_VECTOR_INDEX", "env-index")
	t.Setenv("RECONCILER_RECYCLING_STUCK_AFTER", "30m")

	yaml := []byte("server:\n  port: 9000\n")
	cfg, err := Parse(yaml)
	require.NoError(t, err)

	assert.Equal(t, 9999, cfg.Server.Port)
	assert.Equal(t, "env-index", cfg.Pool.VectorIndex)
	assert.Equal(t, 30*time.Minute, cfg.Reconciler.RecyclingStuckAfter.Duration())
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr string
	}{
		{
			name:    "valid defaults",
			mutate:  func(c *Config) {},
			wantErr: "",
		},
		{
			name:    "bad port",
			mutate:  func(c *Config) { c.Server.Port = 70000 },
			wantErr: "invalid server port",
		},
		{
			name:    "bad logging format",
			mutate:  func(c *Config) { c.Logging.Format = "xml" },
			wantErr: "invalid logging format",
		},
		{
			name: "telemetry without service name",
			mutate: func(c *Config) {
				c.Telemetry.Enabled = true
				c.Telemetry.ServiceName = ""
			},
			wantErr: "service name required",
		},
		{
			name: "telemetry bad protocol",
			mutate: func(c *Config) {
				c.Telemetry.Enabled = true
				c.Telemetry.Protocol = "udp"
			},
			wantErr: "invalid telemetry protocol",
		},
		{
			name: "seed project without id",
			mutate: func(c *Config) {
				c.Pool.SeedProjects = []SeedProjectConfig{{ProjectID: ""}}
			},
			wantErr: "empty project_id",
		},
		{
			name:    "zero doc concurrency",
			mutate:  func(c *Config) { c.Deletion.DocConcurrency = 0 },
			wantErr: "doc_concurrency",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var cfg Config
			applyDefaults(&cfg)
			tt.mutate(&cfg)

			err := cfg.Validate()
			if tt.wantErr == "" {
				assert.NoError(t, err)
			} else {
				require.Error(t, err)
				assert.Contains(t, err.Error(), tt.wantErr)
			}
		})
	}
}

func TestSecret_Redacted(t *testing.T) {
	s := Secret("super-secret")
	assert.Equal(t, "[REDACTED]", s.String())
	assert.Equal(t, "super-secret", s.Value())
	assert.True(t, s.IsSet())

	data, err := json.Marshal(s)
	require.NoError(t, err)
	assert.Equal(t, `"[REDACTED]"`, string(data))

	var empty Secret
	assert.Equal(t, "", empty.String())
	assert.False(t, empty.IsSet())
}

func TestDuration_UnmarshalText(t *testing.T) {
	var d Duration
	require.NoError(t, d.UnmarshalText([]byte("90s")))
	assert.Equal(t, 90*time.Second, d.Duration())

	assert.Error(t, d.UnmarshalText([]byte("-5s")))
	assert.Error(t, d.UnmarshalText([]byte("bogus")))
}
