package platform

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadEnvConfigDefaults(t *testing.T) {
	cfg, err := LoadEnvConfig()
	require.NoError(t, err)
	assert.Equal(t, ".", cfg.Path)
	assert.Equal(t, AdapterSQLite, cfg.Adapter)
	assert.True(t, cfg.DevSafety)
	assert.Len(t, cfg.Options(), 6)
}

func TestLoadEnvConfigFromEnvironment(t *testing.T) {
	t.Setenv("PRODUCTBAKER_PATH", "/srv/pb")
	t.Setenv("PRODUCTBAKER_ADAPTER", "fs")
	t.Setenv("PRODUCTBAKER_FORMAT", "yaml")
	t.Setenv("PRODUCTBAKER_QUOTA", "4096")
	t.Setenv("PRODUCTBAKER_READ_ONLY", "true")

	cfg, err := LoadEnvConfig()
	require.NoError(t, err)
	assert.Equal(t, EnvConfig{
		Path:      "/srv/pb",
		Adapter:   AdapterFS,
		Format:    "yaml",
		Quota:     4096,
		ReadOnly:  true,
		DevSafety: true,
	}, cfg)
}

func TestLoadEnvConfigValidation(t *testing.T) {
	t.Run("unknown adapter", func(t *testing.T) {
		t.Setenv("PRODUCTBAKER_ADAPTER", "dynamo")
		_, err := LoadEnvConfig()
		assert.ErrorContains(t, err, "config validation failed")
	})
	t.Run("redis without url", func(t *testing.T) {
		t.Setenv("PRODUCTBAKER_ADAPTER", "redis")
		_, err := LoadEnvConfig()
		assert.Error(t, err)
	})
	t.Run("bad quota", func(t *testing.T) {
		t.Setenv("PRODUCTBAKER_QUOTA", "lots")
		_, err := LoadEnvConfig()
		assert.ErrorContains(t, err, "failed to parse environment")
	})
}
