package config

import (
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	chdirTemp(t)

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, EnvDevelopment, cfg.Env)
	assert.Equal(t, DriverPostgres, cfg.Database.Driver)
	assert.Equal(t, "/api/v1", cfg.APIPrefix)
	assert.Equal(t, []string{"pdf", "docx", "pptx", "xlsx", "csv"}, cfg.Uploads.AllowedExtensions)
	assert.Equal(t, 12*time.Hour, cfg.JWT.Expiration)
	assert.Equal(t, time.UTC, cfg.Attendance.Location())
}

func TestLoadFromEnvironment(t *testing.T) {
	chdirTemp(t)
	t.Setenv("DB_DRIVER", "MySQL")
	t.Setenv("UPLOADS_ALLOWED_EXTENSIONS", "PDF, csv ,")
	t.Setenv("JWT_EXPIRATION", "not-a-duration")
	t.Setenv("ATTENDANCE_TIMEZONE", "Asia/Jakarta")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, DriverMySQL, cfg.Database.Driver)
	assert.Equal(t, []string{"pdf", "csv"}, cfg.Uploads.AllowedExtensions)
	assert.Equal(t, 12*time.Hour, cfg.JWT.Expiration)
	assert.Equal(t, "Asia/Jakarta", cfg.Attendance.Location().String())
}

func TestUnknownDriverFallsBackToPostgres(t *testing.T) {
	chdirTemp(t)
	t.Setenv("DB_DRIVER", "sqlite")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, DriverPostgres, cfg.Database.Driver)
}

func chdirTemp(t *testing.T) {
	t.Helper()
	wd, err := os.Getwd()
	require.NoError(t, err)
	require.NoError(t, os.Chdir(t.TempDir()))
	t.Cleanup(func() { _ = os.Chdir(wd) })
}
