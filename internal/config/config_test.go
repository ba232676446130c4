package config

import (
	"net/url"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	t.Setenv("DATABASE_URL", "")
	t.Setenv("DB_USER", "app")
	t.Setenv("DB_PASSWORD", "pw")

	cfg, err := Load("testdata/missing.env")
	require.NoError(t, err)

	assert.Equal(t, "postgres://app:pw@localhost:5432/reminders?sslmode=disable", cfg.DSN())
	assert.Equal(t, 5*time.Minute, cfg.SchedulerInterval())
	assert.Equal(t, 15*time.Second, cfg.TransportTimeout())
	assert.Equal(t, 1, cfg.SchedulerWorkers)
	assert.Equal(t, ResolverModePreferences, cfg.ResolverMode)
	assert.Equal(t, "log", cfg.MailProvider)
}

func TestLoadClampsAndPrefersURL(t *testing.T) {
	t.Setenv("DATABASE_URL", "postgres://elsewhere/db")
	t.Setenv("SCHEDULER_WORKERS", "0")
	t.Setenv("SCHEDULER_INTERVAL_SECONDS", "5")

	cfg, err := Load("testdata/missing.env")
	require.NoError(t, err)
	assert.Equal(t, "postgres://elsewhere/db", cfg.DSN())
	assert.Equal(t, 1, cfg.SchedulerWorkers)
	assert.Equal(t, time.Minute, cfg.SchedulerInterval())
}

func TestLoadRejectsUnknownResolverMode(t *testing.T) {
	t.Setenv("RESOLVER_MODE", "everyone")

	_, err := Load("testdata/missing.env")
	assert.Error(t, err)
}

func TestDSNEscapesCredentials(t *testing.T) {
	t.Setenv("DATABASE_URL", "")
	t.Setenv("DB_USER", "svc@reminders")
	t.Setenv("DB_PASSWORD", "p@ss/w:rd?")

	cfg, err := Load("testdata/missing.env")
	require.NoError(t, err)

	u, err := url.Parse(cfg.DSN())
	require.NoError(t, err)
	assert.Equal(t, "svc@reminders", u.User.Username())
	pw, _ := u.User.Password()
	assert.Equal(t, "p@ss/w:rd?", pw)
	assert.Equal(t, "localhost:5432", u.Host)
	assert.Equal(t, "/reminders", u.Path)
	assert.Equal(t, "disable", u.Query().Get("sslmode"))
}
