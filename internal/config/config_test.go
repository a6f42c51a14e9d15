package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_Defaults(t *testing.T) {
	t.Setenv("POSTGRES_URL", "postgres://localhost/app")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, ":8080", cfg.APIAddr)
	assert.Equal(t, "localhost", cfg.QdrantHost)
	assert.Equal(t, 6334, cfg.QdrantPort)
	assert.Equal(t, 2, cfg.WorkerCount)
	assert.Equal(t, 5*time.Second, cfg.PollInterval)
	assert.Equal(t, 30*time.Minute, cfg.StaleAfter)
	assert.Equal(t, time.Minute, cfg.CorpusRefresh)
	assert.Equal(t, 10*time.Second, cfg.SearchTimeout)
	assert.Equal(t, 500, cfg.EmbedBatchSize)
}

func TestLoad_Overrides(t *testing.T) {
	t.Setenv("POSTGRES_URL", "postgres://db:5432/app")
	t.Setenv("API_ADDR", ":9000")
	t.Setenv("QDRANT_PORT", "7000")
	t.Setenv("WORKER_COUNT", "8")
	t.Setenv("POLL_INTERVAL", "250ms")
	t.Setenv("STALE_AFTER", "1h")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, ":9000", cfg.APIAddr)
	assert.Equal(t, 7000, cfg.QdrantPort)
	assert.Equal(t, 8, cfg.WorkerCount)
	assert.Equal(t, 250*time.Millisecond, cfg.PollInterval)
	assert.Equal(t, time.Hour, cfg.StaleAfter)
}

func TestLoad_RequiresPostgresURL(t *testing.T) {
	t.Setenv("POSTGRES_URL", "")

	_, err := Load()
	assert.Error(t, err)
}

func TestLoad_InvalidValuesFallBack(t *testing.T) {
	t.Setenv("POSTGRES_URL", "postgres://localhost/app")
	t.Setenv("QDRANT_PORT", "not-a-number")
	t.Setenv("POLL_INTERVAL", "soon")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, 6334, cfg.QdrantPort)
	assert.Equal(t, 5*time.Second, cfg.PollInterval)
}
