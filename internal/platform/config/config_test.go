package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFromEnvDefaults(t *testing.T) {
	cfg := FromEnv()
	assert.Equal(t, ":8080", cfg.Addr)
	assert.Equal(t, BackendBadger, cfg.Storage.Backend)
	assert.Equal(t, "memoledger.ledger.events", cfg.Kafka.Topic)
	assert.NoError(t, cfg.Validate())
}

func TestFromEnvOverrides(t *testing.T) {
	t.Setenv("MEMOLEDGER_ADDR", ":9090")
	t.Setenv("STORAGE_BACKEND", "Postgres")
	t.Setenv("DATABASE_URL", "postgres://localhost/memo")
	t.Setenv("OUTBOX_POLL_INTERVAL", "2s")
	t.Setenv("IDENTITY_CACHE_SIZE", "not-a-number")
	t.Setenv("BADGER_IN_MEMORY", "true")

	cfg := FromEnv()
	assert.Equal(t, ":9090", cfg.Addr)
	assert.Equal(t, BackendPostgres, cfg.Storage.Backend)
	assert.Equal(t, 2*time.Second, cfg.Outbox.PollInterval)
	assert.Equal(t, 4096, cfg.Ledger.IdentityCacheSize, "unparsable values fall back to defaults")
	assert.True(t, cfg.Storage.BadgerInMemory)
	assert.NoError(t, cfg.Validate())
}

func TestValidate(t *testing.T) {
	cfg := FromEnv()
	cfg.Storage.Backend = BackendPostgres
	cfg.Ledger.ProgramSeed = "short"

	err := cfg.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "DATABASE_URL")
	assert.Contains(t, err.Error(), "LEDGER_PROGRAM_SEED")

	cfg = FromEnv()
	cfg.Storage.Backend = "mongo"
	assert.ErrorContains(t, cfg.Validate(), "unknown STORAGE_BACKEND")
}
