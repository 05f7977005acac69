package config

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadConfigDefaults(t *testing.T) {
	t.Setenv("APP_ENV", "test")

	cfg, err := LoadConfig()
	require.NoError(t, err)

	assert.Equal(t, "8480", cfg.Port)
	assert.Equal(t, "tapcard", cfg.DBName)
	assert.Equal(t, 250, cfg.DebounceMS)
	assert.Equal(t, 10, cfg.ReconcileTimeoutS)
}

func TestValidateRejectsMissingPort(t *testing.T) {
	cfg := &Config{JWTSecret: "secret", DebounceMS: 250, ReconcileTimeoutS: 10}
	assert.Error(t, cfg.Validate())
}

func TestValidateRejectsNegativeDebounce(t *testing.T) {
	cfg := &Config{Port: "8480", JWTSecret: "secret", DebounceMS: -1, ReconcileTimeoutS: 10}
	assert.Error(t, cfg.Validate())
}

func TestValidateProductionRequiresStrongSecret(t *testing.T) {
	cfg := &Config{
		Port:              "8480",
		JWTSecret:         "your-secret-key-change-in-production",
		DBPassword:        "strong-enough-password",
		Env:               "production",
		DebounceMS:        250,
		ReconcileTimeoutS: 10,
	}
	err := cfg.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "JWT_SECRET")
}
