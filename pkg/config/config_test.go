package config

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func validConfig() *Config {
	cfg := &Config{
		ServiceName: "claims",
		Environment: "dev",
	}
	cfg.HTTP.Port = 8080
	cfg.Database.DSN = "claims:claims@tcp(127.0.0.1:3306)/claims"
	cfg.AI.Endpoint = "http://127.0.0.1:9000"
	cfg.PolicyStore.Endpoint = "http://127.0.0.1:9100"
	cfg.Scoring.StructuralBlend = 0.6
	cfg.Scoring.AIBlend = 0.4
	cfg.Scoring.MediumScore = 30
	cfg.Scoring.HighScore = 70
	cfg.Workflow.MaxAttempts = 3
	return cfg
}

func TestValidate(t *testing.T) {
	t.Run("defaults pass", func(t *testing.T) {
		require.NoError(t, validConfig().Validate())
	})

	t.Run("blend sum tolerates float rounding", func(t *testing.T) {
		// 0.7+0.3 浮点和为 0.9999999999999999，仍应通过
		cfg := validConfig()
		cfg.Scoring.StructuralBlend = 0.7
		cfg.Scoring.AIBlend = 0.3
		assert.NoError(t, cfg.Validate())
	})

	t.Run("blend sum off by more than rounding fails", func(t *testing.T) {
		cfg := validConfig()
		cfg.Scoring.StructuralBlend = 0.7
		cfg.Scoring.AIBlend = 0.4
		assert.Error(t, cfg.Validate())
	})

	t.Run("inverted risk thresholds fail", func(t *testing.T) {
		cfg := validConfig()
		cfg.Scoring.MediumScore = 80
		assert.Error(t, cfg.Validate())
	})

	t.Run("missing endpoints fail", func(t *testing.T) {
		cfg := validConfig()
		cfg.AI.Endpoint = ""
		assert.Error(t, cfg.Validate())
	})
}
