package config_test

import (
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mockbus/pubsub-capture/pkg/config"
)

type testConfig struct {
	Port     int    `env:"TEST_PORT" env-default:"8080"`
	LogLevel string `env:"TEST_LOG_LEVEL" env-default:"INFO" validate:"required"`
}

func TestLoad_FallsBackToEnvDefaultsWithNoFileOrEnv(t *testing.T) {
	var cfg testConfig
	require.NoError(t, config.Load(&cfg))
	assert.Equal(t, 8080, cfg.Port)
	assert.Equal(t, "INFO", cfg.LogLevel)
}

func TestLoad_ReadsFromEnvironment(t *testing.T) {
	t.Setenv("TEST_PORT", "9090")
	t.Setenv("TEST_LOG_LEVEL", "DEBUG")

	var cfg testConfig
	require.NoError(t, config.Load(&cfg))
	assert.Equal(t, 9090, cfg.Port)
	assert.Equal(t, "DEBUG", cfg.LogLevel)
}

type requiredOnlyConfig struct {
	Name string `env:"TEST_REQUIRED_NAME" validate:"required"`
}

func TestLoad_ValidationFailsOnMissingRequiredField(t *testing.T) {
	require.NoError(t, os.Unsetenv("TEST_REQUIRED_NAME"))

	var cfg requiredOnlyConfig
	err := config.Load(&cfg)
	assert.Error(t, err)
}
