package postgres

import (
	"testing"
	"time"

	"github.com/cassiomorais/invoicepay/internal/infrastructure/config"
	"github.com/jackc/pgx/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testDatabaseConfig() *config.DatabaseConfig {
	return &config.DatabaseConfig{
		Host:              "db.internal",
		Port:              5432,
		User:              "app",
		Password:          "secret",
		Database:          "invoicepay",
		MaxConnections:    20,
		MinConnections:    2,
		ConnMaxLifetime:   time.Hour,
		ConnMaxIdleTime:   10 * time.Minute,
		HealthCheckPeriod: 15 * time.Second,
		SSLMode:           "disable",
	}
}

func TestPoolConfig_AppliesDatabaseConfig(t *testing.T) {
	pc, err := PoolConfig(testDatabaseConfig())
	require.NoError(t, err)

	assert.Equal(t, int32(20), pc.MaxConns)
	assert.Equal(t, int32(2), pc.MinConns)
	assert.Equal(t, time.Hour, pc.MaxConnLifetime)
	assert.Equal(t, 10*time.Minute, pc.MaxConnIdleTime)
	assert.Equal(t, 15*time.Second, pc.HealthCheckPeriod)
	assert.Equal(t, "db.internal", pc.ConnConfig.Host)
	assert.Equal(t, "invoicepay", pc.ConnConfig.RuntimeParams["application_name"])
}

func TestPoolConfig_ZeroValuesKeepDefaults(t *testing.T) {
	cfg := testDatabaseConfig()
	cfg.ConnMaxIdleTime = 0
	cfg.HealthCheckPeriod = 0

	pc, err := PoolConfig(cfg)
	require.NoError(t, err)

	assert.Equal(t, 30*time.Minute, pc.MaxConnIdleTime)
	assert.Equal(t, time.Minute, pc.HealthCheckPeriod)
}

func TestTxOptions(t *testing.T) {
	tests := []struct {
		level string
		want  pgx.TxIsoLevel
	}{
		{"", ""},
		{"read committed", pgx.ReadCommitted},
		{" Repeatable Read ", pgx.RepeatableRead},
		{"SERIALIZABLE", pgx.Serializable},
	}
	for _, tt := range tests {
		t.Run(tt.level, func(t *testing.T) {
			cfg := testDatabaseConfig()
			cfg.IsolationLevel = tt.level

			opts, err := TxOptions(cfg)
			require.NoError(t, err)
			assert.Equal(t, tt.want, opts.IsoLevel)
		})
	}

	cfg := testDatabaseConfig()
	cfg.IsolationLevel = "snapshot"
	_, err := TxOptions(cfg)
	assert.ErrorContains(t, err, `unsupported isolation level "snapshot"`)
}
