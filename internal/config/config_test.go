package config

import (
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"os"
	"path/filepath"
	"testing"
	"time"
	"warden/internal/types"
)

const catalogYAML = `
resources:
  - name: orders
    engine: postgres
    container: pg-orders
    vars:
      POSTGRES_USER: app
      POSTGRES_PASSWORD: ${TEST_ORDERS_PASSWORD}
      POSTGRES_DB: orders
  - name: cache
    engine: redis
    container: redis
health:
  failure_weight: 0.8
  storage_weight: 0.2
`

func writeCatalog(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "catalog.yml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func TestLoad(t *testing.T) {
	t.Setenv("WARDEN_CATALOG", writeCatalog(t, catalogYAML))
	t.Setenv("TEST_ORDERS_PASSWORD", "s3cret")
	t.Setenv("WARDEN_TICK_INTERVAL", "30s")
	t.Setenv("WARDEN_TIMEZONE", "Europe/Berlin")
	t.Setenv("S3_ENDPOINT", "")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, ":3646", cfg.Addr)
	assert.Equal(t, 30*time.Second, cfg.TickInterval)
	assert.Equal(t, 24*time.Hour, cfg.RetentionInterval)
	assert.Equal(t, 85.0, cfg.StorageThreshold)
	assert.Equal(t, "Europe/Berlin", cfg.Location.String())
	assert.Nil(t, cfg.ObjectStorage)
	assert.False(t, cfg.HasTLSConfig())
	assert.Equal(t, 0.8, cfg.Health.FailureWeight)

	orders, ok := cfg.Catalog.Lookup("orders")
	require.True(t, ok)
	assert.Equal(t, types.StorageEnginePostgres, orders.Engine)
	assert.Equal(t, "s3cret", orders.Vars["POSTGRES_PASSWORD"])
	assert.Equal(t, []string{"orders", "cache"}, cfg.Catalog.Names())
}

func TestLoad_ObjectStorage(t *testing.T) {
	t.Setenv("WARDEN_CATALOG", writeCatalog(t, catalogYAML))
	t.Setenv("S3_ENDPOINT", "minio:9000")
	t.Setenv("S3_BUCKET", "db-backups")
	t.Setenv("S3_USE_SSL", "false")
	t.Setenv("WARDEN_STORAGE_CAPACITY_BYTES", "1073741824")

	cfg, err := Load()
	require.NoError(t, err)
	require.NotNil(t, cfg.ObjectStorage)
	assert.Equal(t, "db-backups", cfg.ObjectStorage.Bucket)
	assert.False(t, cfg.ObjectStorage.UseSSL)
	assert.Equal(t, int64(1073741824), cfg.ObjectStorage.CapacityBytes)
}

func TestLoad_Invalid(t *testing.T) {
	tests := []struct {
		name string
		env  map[string]string
	}{
		{"bad duration", map[string]string{"WARDEN_JOB_TIMEOUT": "soon"}},
		{"threshold out of range", map[string]string{"WARDEN_STORAGE_THRESHOLD": "120"}},
		{"bad mode", map[string]string{"WARDEN_MODE": "staging"}},
		{"bad timezone", map[string]string{"WARDEN_TIMEZONE": "Mars/Olympus"}},
		{"missing catalog", map[string]string{"WARDEN_CATALOG": "/nonexistent/catalog.yml"}},
	}
	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			t.Setenv("WARDEN_CATALOG", writeCatalog(t, catalogYAML))
			t.Setenv("S3_ENDPOINT", "")
			for k, v := range test.env {
				t.Setenv(k, v)
			}
			_, err := Load()
			assert.Error(t, err)
		})
	}
}

func TestReadCatalog_Invalid(t *testing.T) {
	_, err := ReadCatalog(writeCatalog(t, "resources:\n  - name: orders\n    engine: oracle\n    container: db\n"))
	assert.Error(t, err)

	_, err = ReadCatalog(writeCatalog(t, "resources:\n  - name: a\n    engine: redis\n    container: r1\n  - name: a\n    engine: redis\n    container: r2\n"))
	assert.ErrorContains(t, err, "duplicate")
}
