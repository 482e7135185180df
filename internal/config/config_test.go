package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestLoad_ReadsYAML(t *testing.T) {
	path := writeConfig(t, `
server:
  port: 9090
kafka:
  brokers: ["k1:9092", "k2:9092"]
  topic:
    payment_received: pr
    withdrawal: wd
ledger:
  address: "0x5fbdb2315678afecb367f032d93f642f64180aa3"
  owner: "0xf39fd6e51aad88f6f4ce6ab8827279cfffb92266"
  store: memory
business:
  faucet_enabled: true
  max_retry_count: 3
`)

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, 9090, cfg.Server.Port)
	assert.Equal(t, []string{"k1:9092", "k2:9092"}, cfg.Kafka.Brokers)
	assert.Equal(t, StoreMemory, cfg.Ledger.Store)
	assert.True(t, cfg.Business.FaucetEnabled)
	assert.Equal(t, 3, cfg.Business.MaxRetryCount)
	assert.Equal(t, "pr", cfg.Kafka.Topic.TopicFor("PaymentReceived"))
	assert.Equal(t, "wd", cfg.Kafka.Topic.TopicFor("Withdrawal"))
}

func TestLoad_Defaults(t *testing.T) {
	cfg, err := Load(writeConfig(t, "server:\n  port: 1\n"))
	require.NoError(t, err)

	assert.Equal(t, StoreMySQL, cfg.Ledger.Store)
	assert.Equal(t, int64(1), cfg.Server.WorkerID)
	assert.Equal(t, int32(18), cfg.Ledger.Decimals)
	assert.Equal(t, 5, cfg.Business.MaxRetryCount)
	assert.Equal(t, int64(60), int64(cfg.Business.ReconcileInterval().Seconds()))
	assert.Equal(t, int64(50), cfg.Business.InvokeLockRetry().Milliseconds())
}

func TestLoad_EnvOverride(t *testing.T) {
	t.Setenv("PAYLEDGER_LEDGER_STORE", "memory")
	cfg, err := Load(writeConfig(t, "ledger:\n  store: mysql\n"))
	require.NoError(t, err)
	assert.Equal(t, StoreMemory, cfg.Ledger.Store)
}

func TestLoad_MissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	assert.Error(t, err)
}
