package main

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/fyrsmithlabs/tenantd/internal/config"
)

func TestSeedProjects(t *testing.T) {
	cfg := &config.Config{}
	cfg.Pool.SeedProjects = []config.SeedProjectConfig{
		{ProjectID: "pool-001", Metadata: map[string]string{"region": "us-central1"}},
		{ProjectID: "pool-002"},
	}

	seeds := seedProjects(cfg)
	assert.Len(t, seeds, 2)
	assert.Equal(t, "pool-001", seeds[0].ProjectID)
	assert.Equal(t, "us-central1", seeds[0].Metadata["region"])
	assert.Equal(t, "pool-002", seeds[1].ProjectID)
}

func TestTelemetryConfig(t *testing.T) {
	cfg := &config.Config{}
	cfg.Telemetry.Enabled = true
	cfg.Telemetry.ServiceName = "tenantd-test"
	cfg.Telemetry.Protocol = "http"
	cfg.Telemetry.Insecure = true
	cfg.Telemetry.Endpoint = "localhost:4318"

	tc := telemetryConfig(cfg)
	assert.True(t, tc.Enabled)
	assert.Equal(t, "tenantd-test", tc.ServiceName)
	assert.Equal(t, "http", tc.Protocol)
	assert.Equal(t, "localhost:4318", tc.Endpoint)
	assert.Equal(t, version, tc.ServiceVersion)
}

func TestRootCommand(t *testing.T) {
	assert.Equal(t, "tenantd", rootCmd.Use)

	names := make([]string, 0)
	for _, c := range rootCmd.Commands() {
		names = append(names, c.Name())
	}
	assert.Contains(t, names, "serve")
	assert.Contains(t, names, "version")
}
