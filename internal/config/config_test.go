package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParse(t *testing.T) {
	cfg := Default()
	err := Parse([]byte(`
log:
  level: debug
store:
  driver: postgres
  dsn: postgres://localhost/kidsbank?sslmode=disable
sync:
  debounce: 5s
cloud:
  provider: gcs
  bucket: family-bank
kafka:
  brokers: [k1:9092, k2:9092]
`), &cfg)
	require.NoError(t, err)

	assert.Equal(t, "debug", cfg.Log.Level)
	assert.Equal(t, "postgres", cfg.Store.Driver)
	assert.Equal(t, 5*time.Second, cfg.Sync.Debounce)
	assert.Equal(t, 4, cfg.Sync.QueueSize, "defaults survive a partial file")
	assert.Equal(t, "family-bank", cfg.Cloud.Bucket)
	assert.True(t, cfg.Kafka.Enabled())
	assert.Equal(t, "8080", cfg.API.Port)
}

func TestParse_RejectsUnknownFields(t *testing.T) {
	cfg := Default()
	assert.Error(t, Parse([]byte("stroe:\n  driver: sqlite3\n"), &cfg))
}

func TestApplyEnv(t *testing.T) {
	env := map[string]string{
		"KIDSBANK_LOG_LEVEL":     "warn",
		"KIDSBANK_KAFKA_BROKERS": " a:1, ,b:2 ",
		"KIDSBANK_SYNC_DEBOUNCE": "250ms",
		"KIDSBANK_LOG_JSON":      "true",
		"GCS_BUCKET":             "from-env",
	}
	lookup := func(k string) (string, bool) {
		v, ok := env[k]
		return v, ok
	}

	cfg := Default()
	require.NoError(t, applyEnv(&cfg, lookup))
	assert.Equal(t, "warn", cfg.Log.Level)
	assert.Equal(t, []string{"a:1", "b:2"}, cfg.Kafka.Brokers)
	assert.Equal(t, 250*time.Millisecond, cfg.Sync.Debounce)
	assert.True(t, cfg.Log.JSON)
	assert.Equal(t, "from-env", cfg.Cloud.Bucket)

	env["KIDSBANK_SYNC_DEBOUNCE"] = "soon"
	assert.Error(t, applyEnv(&cfg, lookup))
}

func TestLoad(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "kidsbank.yaml")
	require.NoError(t, os.WriteFile(path, []byte("api:\n  port: \"9090\"\n"), 0o600))
	envFile := filepath.Join(dir, ".env")
	require.NoError(t, os.WriteFile(envFile, []byte("KIDSBANK_NOTION_TOKEN=secret\n"), 0o600))
	t.Setenv("KIDSBANK_NOTION_TOKEN", "")
	os.Unsetenv("KIDSBANK_NOTION_TOKEN")

	cfg, err := Load(path, envFile)
	require.NoError(t, err)
	assert.Equal(t, "9090", cfg.API.Port)
	assert.Equal(t, "secret", cfg.Notion.Token)

	_, err = Load(filepath.Join(dir, "missing.yaml"), filepath.Join(dir, "missing.env"))
	assert.NoError(t, err)
}
