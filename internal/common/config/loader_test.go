package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
	return path
}

func TestLoadFromFile_AppliesDefaults(t *testing.T) {
	path := writeConfig(t, `
camunda:
  broker_address: localhost:26500
database:
  postgres:
    host: localhost
    database: landreg
    user: landreg
workers:
  staging-promote-record:
    enabled: true
`)

	cfg, err := LoadFromFile(path)
	require.NoError(t, err)

	assert.Equal(t, 5432, cfg.Database.Postgres.Port)
	assert.Equal(t, "disable", cfg.Database.Postgres.SSLMode)
	assert.Equal(t, 12, cfg.Staging.IdentityNumberDigits)
	assert.Equal(t, 500, cfg.Staging.MaxRecordsPerBatch)
	assert.Equal(t, 24*time.Hour, GetDuration(cfg.Staging.IngestReplayTTL))
	assert.Equal(t, ":8080", cfg.HTTP.Address)

	w := GetWorkerConfig(cfg, "staging-promote-record")
	assert.Equal(t, 5, w.MaxJobsActive)
	assert.Equal(t, 30000, w.Timeout)
	assert.True(t, IsWorkerEnabled(cfg, "staging-list-records"))
}

func TestLoadFromFile_ExpandsEnvPlaceholders(t *testing.T) {
	t.Setenv("TEST_STAGING_DB_HOST", "db.internal")
	path := writeConfig(t, `
camunda:
  broker_address: localhost:26500
database:
  postgres:
    host: ${TEST_STAGING_DB_HOST}
    database: landreg
    user: landreg
`)

	cfg, err := LoadFromFile(path)
	require.NoError(t, err)
	assert.Equal(t, "db.internal", cfg.Database.Postgres.Host)
	assert.Contains(t, cfg.Database.Postgres.GetDSN(), "host=db.internal")
}

func TestLoadFromFile_Validation(t *testing.T) {
	tests := []struct {
		name    string
		body    string
		wantErr string
	}{
		{
			name:    "missing broker",
			body:    "database:\n  postgres:\n    host: h\n    database: d\n    user: u\n",
			wantErr: "camunda.broker_address",
		},
		{
			name:    "redis enabled without address",
			body:    "camunda:\n  broker_address: b\ndatabase:\n  postgres:\n    host: h\n    database: d\n    user: u\n  redis:\n    enabled: true\n",
			wantErr: "database.redis.address",
		},
		{
			name:    "sns enabled without topic",
			body:    "camunda:\n  broker_address: b\ndatabase:\n  postgres:\n    host: h\n    database: d\n    user: u\nnotifications:\n  sns:\n    enabled: true\n",
			wantErr: "topic_arn",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Setenv("STAGING_EVENTS_TOPIC_ARN", "")
			_, err := LoadFromFile(writeConfig(t, tt.body))
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}
