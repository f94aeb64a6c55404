package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadServerDefaults(t *testing.T) {
	cfg, err := LoadServer("")
	require.NoError(t, err)
	assert.Equal(t, ":8080", cfg.HTTPAddr)
	assert.Equal(t, StoragePostgres, cfg.Storage)
	assert.Equal(t, "order.events", cfg.OutboxTopic)
	assert.Equal(t, 24*time.Hour, cfg.IdempotencyTTL)
}

func TestLoadServerEnvOverrides(t *testing.T) {
	t.Setenv("HTTP_ADDR", ":9999")
	t.Setenv("STORAGE", "MEMORY")
	t.Setenv("IDEMPOTENCY_TTL", "15m")

	cfg, err := LoadServer("")
	require.NoError(t, err)
	assert.Equal(t, ":9999", cfg.HTTPAddr)
	assert.Equal(t, StorageMemory, cfg.Storage)
	assert.Equal(t, 15*time.Minute, cfg.IdempotencyTTL)
}

func TestLoadServerRejectsUnknownStorage(t *testing.T) {
	t.Setenv("STORAGE", "sqlite")
	_, err := LoadServer("")
	require.Error(t, err)
}

func TestLoadClientFromFile(t *testing.T) {
	dir := t.TempDir()
	file := filepath.Join(dir, "client.env")
	require.NoError(t, os.WriteFile(file, []byte("ORDER_API_URL=http://orders.local:8080/\nQUEUE_STORAGE=redis\nSUBMIT_TIMEOUT=3s\n"), 0o600))

	cfg, err := LoadClient(file)
	require.NoError(t, err)
	assert.Equal(t, "http://orders.local:8080", cfg.APIURL)
	assert.Equal(t, QueueStorageRedis, cfg.QueueStorage)
	assert.Equal(t, 3*time.Second, cfg.SubmitTimeout)
	assert.Equal(t, "medsupply:offline-orders", cfg.QueueKey)
}

func TestLoadClientMissingFileFallsBackToDefaults(t *testing.T) {
	cfg, err := LoadClient(filepath.Join(t.TempDir(), "absent.env"))
	require.NoError(t, err)
	assert.Equal(t, 10*time.Second, cfg.SubmitTimeout)
	assert.Equal(t, QueueStorageFile, cfg.QueueStorage)
}
