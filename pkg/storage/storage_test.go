package storage

import (
	"testing"
	"time"

	_ "github.com/mattn/go-sqlite3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestOpenSQLite(t *testing.T) {
	db, err := Open(Config{Driver: DriverSQLite, DSN: ":memory:"})
	require.NoError(t, err)
	defer db.Close()

	var one int
	require.NoError(t, db.QueryRow("SELECT 1").Scan(&one))
	assert.Equal(t, 1, one)

	stats := db.Stats()
	assert.Equal(t, DefaultMaxOpenConns, stats.MaxOpenConnections)
}

func TestOpenUnsupportedDriver(t *testing.T) {
	_, err := Open(Config{Driver: "oracle", DSN: "whatever"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), `unsupported storage driver: "oracle"`)
}

func TestConfigDefaults(t *testing.T) {
	cfg := Config{}.withDefaults()
	assert.Equal(t, DefaultMaxOpenConns, cfg.MaxOpenConns)
	assert.Equal(t, DefaultMaxIdleConns, cfg.MaxIdleConns)
	assert.Equal(t, DefaultConnMaxLifetime, cfg.ConnMaxLifetime)
	assert.Equal(t, DefaultConnMaxIdleTime, cfg.ConnMaxIdleTime)
	assert.Equal(t, DefaultPingTimeout, cfg.PingTimeout)

	// Explicit values survive.
	cfg = Config{MaxOpenConns: 3, PingTimeout: time.Second}.withDefaults()
	assert.Equal(t, 3, cfg.MaxOpenConns)
	assert.Equal(t, time.Second, cfg.PingTimeout)
}
