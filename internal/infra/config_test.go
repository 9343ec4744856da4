package infra

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
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))
	return path
}

func TestLoadConfig_Defaults(t *testing.T) {
	path := writeConfig(t, "{}\n")

	cfg, err := LoadConfig(path)
	require.NoError(t, err)

	assert.Equal(t, ":8080", cfg.Server.HTTPPort)
	assert.Equal(t, ":50051", cfg.Server.GRPCPort)
	assert.Equal(t, "memory", cfg.Storage.Backend)
	assert.Equal(t, "localhost:6379", cfg.Redis.Addr)
	assert.Equal(t, 10000, cfg.Settlement.QueueSize)
	assert.Equal(t, 10, cfg.Settlement.WorkerCount)
	assert.Equal(t, "info", cfg.Logging.Level)
}

func TestLoadConfig_Values(t *testing.T) {
	path := writeConfig(t, `
server:
  http_port: ":9090"
storage:
  backend: mysql
  mysql_dsn: "root:root@tcp(localhost:3306)/custody?parseTime=true"
settlement:
  quote_asset: USDC
  fee_recipient: treasury
  fee_bps: 250
logging:
  level: debug
`)

	cfg, err := LoadConfig(path)
	require.NoError(t, err)

	assert.Equal(t, ":9090", cfg.Server.HTTPPort)
	assert.Equal(t, "mysql", cfg.Storage.Backend)
	assert.Equal(t, "treasury", cfg.Settlement.FeeRecipient)
	assert.Equal(t, uint32(250), cfg.Settlement.FeeBps)
	assert.Equal(t, "debug", cfg.Logging.Level)
}

func TestLoadConfig_Invalid(t *testing.T) {
	_, err := LoadConfig(filepath.Join(t.TempDir(), "missing.yaml"))
	require.Error(t, err)

	path := writeConfig(t, "storage:\n  backend: bogus\n")
	_, err = LoadConfig(path)
	require.Error(t, err)

	path = writeConfig(t, "settlement:\n  fee_bps: 10001\n")
	_, err = LoadConfig(path)
	require.Error(t, err)
}

func TestLoadConfig_EnvOverride(t *testing.T) {
	t.Setenv("MYSQL_DSN", "env-dsn")
	t.Setenv("REDIS_ADDR", "redis-env:6379")

	path := writeConfig(t, "storage:\n  mysql_dsn: file-dsn\n")
	cfg, err := LoadConfig(path)
	require.NoError(t, err)

	assert.Equal(t, "env-dsn", cfg.Storage.MySQLDSN)
	assert.Equal(t, "redis-env:6379", cfg.Redis.Addr)
}
