package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/mysql"
	"gorm.io/driver/postgres"
)

// chdir runs the test from an empty directory so no config.json or .env is picked up.
func chdir(t *testing.T, dir string) {
	t.Helper()
	wd, err := os.Getwd()
	require.NoError(t, err)
	require.NoError(t, os.Chdir(dir))
	t.Cleanup(func() { _ = os.Chdir(wd) })
}

func TestReadDefaults(t *testing.T) {
	chdir(t, t.TempDir())
	t.Setenv("JWT_SECRET", "x")

	c, err := Read()
	require.NoError(t, err)
	assert.Equal(t, "8080", c.AppPort)
	assert.Equal(t, "mysql", c.DBDriver)
	assert.Equal(t, "3306", c.DBPort)
	assert.Equal(t, 72*time.Hour, c.SessionTTL())
	assert.Equal(t, []string{"*"}, c.AllowedOrigins)
	assert.Equal(t, "pact-stale", c.KafkaTopic)
	assert.False(t, c.RedisEnabled())
	assert.NoError(t, c.Validate())
}

func TestReadJSONThenEnv(t *testing.T) {
	dir := t.TempDir()
	chdir(t, dir)
	require.NoError(t, os.Mkdir(filepath.Join(dir, "config"), 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "config", "config.json"), []byte(`{
		"app": {"AppPort": "9000", "JWTSecret": "from-file", "AllowedOrigins": ["https://a.dev"]},
		"database": {"Driver": "postgres", "DBName": "pacts_test"},
		"redis": {"RedisHost": "cache", "CacheTTLSeconds": 60},
		"kafka": {"Brokers": ["k1:9092"]}
	}`), 0o644))
	t.Setenv("APP_PORT", "9100")
	t.Setenv("CORS_ALLOWED_ORIGINS", "https://b.dev, https://c.dev ,")
	t.Setenv("REDIS_DB", "2")

	c, err := Read()
	require.NoError(t, err)
	assert.Equal(t, "9100", c.AppPort)
	assert.Equal(t, "from-file", c.JWTSecret)
	assert.Equal(t, "postgres", c.DBDriver)
	assert.Equal(t, "5432", c.DBPort)
	assert.Equal(t, "pacts_test", c.DBName)
	assert.Equal(t, []string{"https://b.dev", "https://c.dev"}, c.AllowedOrigins)
	assert.True(t, c.RedisEnabled())
	assert.Equal(t, 2, c.RedisDB)
	assert.Equal(t, 60, c.CacheTTLSeconds)
	assert.Equal(t, []string{"k1:9092"}, c.KafkaBrokers)
}

func TestReadPortFollowsDriverFromEnv(t *testing.T) {
	chdir(t, t.TempDir())
	t.Setenv("DB_DRIVER", "postgres")

	c, err := Read()
	require.NoError(t, err)
	assert.Equal(t, "postgres", c.DBDriver)
	assert.Equal(t, "5432", c.DBPort)

	t.Setenv("DB_PORT", "6543")
	c, err = Read()
	require.NoError(t, err)
	assert.Equal(t, "6543", c.DBPort)
}

func TestReadRejectsBadInteger(t *testing.T) {
	chdir(t, t.TempDir())
	t.Setenv("REDIS_PORT", "six")
	_, err := Read()
	assert.ErrorContains(t, err, "REDIS_PORT")
}

func TestValidate(t *testing.T) {
	assert.ErrorIs(t, AppConfig{DBDriver: "sqlite"}.Validate(), ErrMissingJWTSecret)
	assert.Error(t, AppConfig{JWTSecret: "x", DBDriver: "oracle"}.Validate())
	assert.NoError(t, AppConfig{JWTSecret: "x", DBDriver: "sqlite"}.Validate())
}

func TestOpenDatabaseSQLite(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "pacts.db")
	db, err := OpenDatabase(AppConfig{DBDriver: "sqlite", SQLitePath: path, LogLevel: "silent"})
	require.NoError(t, err)
	sqlDB, err := db.DB()
	require.NoError(t, err)
	defer sqlDB.Close()

	var fk int
	require.NoError(t, db.Raw("PRAGMA foreign_keys").Scan(&fk).Error)
	assert.Equal(t, 1, fk)
	assert.FileExists(t, path)
}

func TestOpenDatabaseUnsupportedDriver(t *testing.T) {
	_, err := OpenDatabase(AppConfig{DBDriver: "oracle"})
	assert.ErrorContains(t, err, "unsupported")
}

func TestDialectorDefaultsPortPerDriver(t *testing.T) {
	d, err := dialectorFor(AppConfig{DBDriver: "postgres", DBHost: "db", DBUser: "u", DBName: "pacts"})
	require.NoError(t, err)
	pg, ok := d.(*postgres.Dialector)
	require.True(t, ok)
	assert.Contains(t, pg.Config.DSN, "port=5432")

	d, err = dialectorFor(AppConfig{DBDriver: "mysql", DBHost: "db", DBUser: "u", DBName: "pacts"})
	require.NoError(t, err)
	my, ok := d.(*mysql.Dialector)
	require.True(t, ok)
	assert.Contains(t, my.Config.DSN, "tcp(db:3306)")
}
