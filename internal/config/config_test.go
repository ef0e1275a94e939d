package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func setRequired(t *testing.T) {
	t.Helper()
	t.Setenv("BOT_TOKEN", "123:abc")
	t.Setenv("ADMIN_ID", "42")
}

func TestLoad_Defaults(t *testing.T) {
	setRequired(t)

	cfg, err := Load(filepath.Join(t.TempDir(), "missing.env"))
	require.NoError(t, err)
	require.Equal(t, int64(42), cfg.AdminID)
	require.Equal(t, "Asia/Almaty", cfg.Timezone)
	require.Equal(t, "sqlite", cfg.DBDriver)
	require.Equal(t, 5*time.Minute, cfg.MisfireGrace())
	require.True(t, cfg.CoalesceMisfires)
	require.Equal(t, float64(25), cfg.SendRate)
	require.Equal(t, 10*time.Second, cfg.SendTimeout)
	require.Equal(t, time.Hour, cfg.StaleEventAfter)
	require.Equal(t, "@every 1h", cfg.ResyncSpec)
	require.Equal(t, "Asia/Almaty", cfg.Location().String())
}

func TestLoad_MissingToken(t *testing.T) {
	t.Setenv("BOT_TOKEN", "")
	t.Setenv("ADMIN_ID", "42")
	os.Unsetenv("BOT_TOKEN")

	_, err := Load(filepath.Join(t.TempDir(), "missing.env"))
	require.Error(t, err)
}

func TestLoad_DotEnvFile(t *testing.T) {
	t.Setenv("ADMIN_ID", "7")
	t.Setenv("BOT_TOKEN", "")
	os.Unsetenv("BOT_TOKEN")
	t.Setenv("DB_DRIVER", "")
	os.Unsetenv("DB_DRIVER")

	path := filepath.Join(t.TempDir(), ".env")
	require.NoError(t, os.WriteFile(path, []byte("BOT_TOKEN=from-file\nADMIN_ID=99\nDB_DRIVER=postgres\n"), 0o600))
	t.Cleanup(func() {
		os.Unsetenv("BOT_TOKEN")
		os.Unsetenv("DB_DRIVER")
	})

	cfg, err := Load(path)
	require.NoError(t, err)
	require.Equal(t, "from-file", cfg.BotToken)
	require.Equal(t, "postgres", cfg.DBDriver)
	// The environment wins over the file.
	require.Equal(t, int64(7), cfg.AdminID)
}

func TestValidate(t *testing.T) {
	valid := Config{
		AdminID:     1,
		Timezone:    "UTC",
		DBDriver:    "sqlite",
		SendTimeout: time.Second,
	}
	require.NoError(t, valid.Validate())

	cases := map[string]func(c *Config){
		"admin":    func(c *Config) { c.AdminID = 0 },
		"timezone": func(c *Config) { c.Timezone = "Mars/Olympus" },
		"driver":   func(c *Config) { c.DBDriver = "mysql" },
		"grace":    func(c *Config) { c.MisfireGraceSeconds = -1 },
		"rate":     func(c *Config) { c.SendRate = -1 },
		"timeout":  func(c *Config) { c.SendTimeout = 0 },
		"stale":    func(c *Config) { c.StaleEventAfter = -time.Second },
	}
	for name, mutate := range cases {
		t.Run(name, func(t *testing.T) {
			c := valid
			mutate(&c)
			require.Error(t, c.Validate())
		})
	}
}
