package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func inTempDir(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	wd, err := os.Getwd()
	require.NoError(t, err)
	require.NoError(t, os.Chdir(dir))
	t.Cleanup(func() { _ = os.Chdir(wd) })
	return dir
}

func TestLoad_Defaults(t *testing.T) {
	inTempDir(t)
	cfg, err := Load("")
	require.NoError(t, err)
	require.Equal(t, DefaultPort, cfg.Port)
	require.Equal(t, ":8081", cfg.Addr())
	require.Equal(t, 16, cfg.MaxRequests)
	require.Equal(t, 16, cfg.MaxSlices)
	require.True(t, cfg.ClampSlices)
	require.Equal(t, DefaultSendBuffer, cfg.SendBuffer)
	require.Empty(t, cfg.JournalPath)
	require.Empty(t, cfg.KafkaBrokers)
}

func TestLoad_SocketIOPortEnv(t *testing.T) {
	inTempDir(t)
	t.Setenv("SOCKETIO_PORT", "9090")
	cfg, err := Load("")
	require.NoError(t, err)
	require.Equal(t, 9090, cfg.Port)
}

func TestLoad_PrefixedEnv(t *testing.T) {
	inTempDir(t)
	t.Setenv("PIZZA_MAX_REQUESTS", "4")
	t.Setenv("PIZZA_CLAMP_SLICES", "false")
	cfg, err := Load("")
	require.NoError(t, err)
	require.Equal(t, 4, cfg.MaxRequests)
	require.False(t, cfg.Limits().ClampSlices)
}

func TestLoad_DotEnv(t *testing.T) {
	dir := inTempDir(t)
	require.NoError(t, os.WriteFile(filepath.Join(dir, ".env"), []byte("PIZZA_JOURNAL_PATH=journal.sqlite3\n"), 0o600))
	t.Cleanup(func() { _ = os.Unsetenv("PIZZA_JOURNAL_PATH") })
	cfg, err := Load("")
	require.NoError(t, err)
	require.Equal(t, "journal.sqlite3", cfg.JournalPath)
}

func TestLoad_File(t *testing.T) {
	dir := inTempDir(t)
	path := filepath.Join(dir, "relay.json")
	require.NoError(t, os.WriteFile(path, []byte(`{"port": 7000, "max_slices": 8, "kafka_brokers": ["k:9092"], "kafka_topic": "orders"}`), 0o600))
	cfg, err := Load(path)
	require.NoError(t, err)
	require.Equal(t, 7000, cfg.Port)
	require.Equal(t, 8, cfg.MaxSlices)
	require.Equal(t, []string{"k:9092"}, cfg.KafkaBrokers)
	require.Equal(t, "orders", cfg.KafkaTopic)
}

func TestLoad_MissingExplicitFile(t *testing.T) {
	dir := inTempDir(t)
	_, err := Load(filepath.Join(dir, "nope.json"))
	require.Error(t, err)
}

func TestValidate(t *testing.T) {
	cfg := &Config{Port: 0, MaxRequests: 1}
	require.Error(t, cfg.Validate())
	cfg = &Config{Port: 1, MaxRequests: 0}
	require.Error(t, cfg.Validate())
	cfg = &Config{Port: 1, MaxRequests: 1, ClampSlices: true}
	require.Error(t, cfg.Validate())
	cfg = &Config{Port: 1, MaxRequests: 1, KafkaBrokers: []string{"a"}}
	require.Error(t, cfg.Validate())
	cfg = &Config{Port: 1, MaxRequests: 1}
	require.NoError(t, cfg.Validate())
}
