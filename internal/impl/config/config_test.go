package config

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"go.uber.org/zap"
)

func TestConfig_ResolveEnvironmentVariable(t *testing.T) {
	cfg := &Config{logger: zap.NewNop()}

	t.Run("raw value passes through", func(t *testing.T) {
		resolved, err := cfg.ResolveEnvironmentVariable("mongodb://localhost:27017")
		assert.NoError(t, err)
		assert.Equal(t, "mongodb://localhost:27017", resolved)
	})

	t.Run("reference resolves from environment", func(t *testing.T) {
		t.Setenv("PARLEY_TEST_SECRET", "s3cret-value")

		resolved, err := cfg.ResolveEnvironmentVariable("#{PARLEY_TEST_SECRET}#")
		assert.NoError(t, err)
		assert.Equal(t, "s3cret-value", resolved)
	})

	t.Run("missing variable errors", func(t *testing.T) {
		_, err := cfg.ResolveEnvironmentVariable("#{PARLEY_TEST_UNSET_VAR}#")
		assert.Error(t, err)
	})

	t.Run("empty variable name errors", func(t *testing.T) {
		_, err := cfg.ResolveEnvironmentVariable("#{}#")
		assert.Error(t, err)
	})
}

func TestInitConfig_ResolvesReferences(t *testing.T) {
	t.Setenv("PARLEY_TEST_SECRET", "s3cret-value")
	t.Setenv("PARLEY_API_KEY", "#{PARLEY_TEST_SECRET}#")
	t.Setenv("MONGO_URI", "mongodb://localhost:27017")

	cfg, err := InitConfig()

	assert.NoError(t, err)
	assert.Equal(t, "s3cret-value", cfg.APIKey)
	assert.Equal(t, "mongodb://localhost:27017", cfg.MongoURI)
}
