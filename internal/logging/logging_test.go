package logging

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewDefaultConfig(t *testing.T) {
	cfg := NewDefaultConfig()
	assert.Equal(t, "info", cfg.Level)
	assert.Equal(t, "json", cfg.Format)
	assert.Equal(t, "tenantd", cfg.Fields["service"])
	assert.NoError(t, cfg.Validate())
}

func TestConfigValidate(t *testing.T) {
	tests := []struct {
		name    string
		cfg     Config
		wantErr string
	}{
		{
			name: "valid console",
			cfg:  Config{Level: "debug", Format: "console"},
		},
		{
			name:    "invalid level",
			cfg:     Config{Level: "loud", Format: "json"},
			wantErr: "invalid level",
		},
		{
			name:    "invalid format",
			cfg:     Config{Level: "info", Format: "xml"},
			wantErr: "format must be",
		},
		{
			name:    "empty field key",
			cfg:     Config{Level: "info", Format: "json", Fields: map[string]string{"": "x"}},
			wantErr: "field key",
		},
		{
			name:    "empty field value",
			cfg:     Config{Level: "info", Format: "json", Fields: map[string]string{"env": ""}},
			wantErr: "empty value",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.cfg.Validate()
			if tt.wantErr == "" {
				assert.NoError(t, err)
			} else {
				require.Error(t, err)
				assert.Contains(t, err.Error(), tt.wantErr)
			}
		})
	}
}

func TestNew(t *testing.T) {
	t.Run("nil config uses defaults", func(t *testing.T) {
		logger, err := New(nil)
		require.NoError(t, err)
		require.NotNil(t, logger)
		logger.Info("hello")
	})

	t.Run("invalid config rejected", func(t *testing.T) {
		_, err := New(&Config{Level: "loud", Format: "json"})
		assert.Error(t, err)
	})

	t.Run("console format", func(t *testing.T) {
		logger, err := New(&Config{Level: "debug", Format: "console"})
		require.NoError(t, err)
		require.NotNil(t, logger)
	})
}
