package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// inTempDir runs the test from an empty directory so no config file or .env
// from the repo leaks in.
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

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, 8080, cfg.Port)
	assert.Equal(t, "room", cfg.Sharding)
	assert.Equal(t, 54*time.Second, cfg.PingPeriod)
	assert.Equal(t, 60*time.Second, cfg.PongWait)
	assert.Equal(t, 64, cfg.SendBuffer)
	assert.Equal(t, 5*time.Minute, cfg.HibernateAfter)
}

func TestLoad_FileAndEnv(t *testing.T) {
	dir := inTempDir(t)
	require.NoError(t, os.Mkdir(filepath.Join(dir, "config"), 0o755))
	yaml := "port: 9000\nsharding: single\nallowed_origins:\n  - https://flip.example\n"
	require.NoError(t, os.WriteFile(filepath.Join(dir, "config", "config.test.yaml"), []byte(yaml), 0o644))
	t.Setenv("CONFIG_ENV", "test")
	t.Setenv("FLIP_SEND_BUFFER", "8")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, 9000, cfg.Port)
	assert.Equal(t, "single", cfg.Sharding)
	assert.Equal(t, 8, cfg.SendBuffer)
	assert.Equal(t, []string{"https://flip.example"}, cfg.AllowedOrigins)
}

func TestLoad_RejectsUnknownSharding(t *testing.T) {
	inTempDir(t)
	t.Setenv("FLIP_SHARDING", "global")

	_, err := Load()
	assert.ErrorIs(t, err, ErrInvalidConfig)
}

func TestConfig_Validate(t *testing.T) {
	base := Config{Port: 8080, Sharding: "room", SendBuffer: 1, PingPeriod: time.Second, PongWait: 2 * time.Second}
	require.NoError(t, base.Validate())

	tests := map[string]func(c *Config){
		"port":        func(c *Config) { c.Port = 0 },
		"send buffer": func(c *Config) { c.SendBuffer = 0 },
		"ping":        func(c *Config) { c.PingPeriod = c.PongWait },
	}
	for name, mutate := range tests {
		t.Run(name, func(t *testing.T) {
			c := base
			mutate(&c)
			assert.ErrorIs(t, c.Validate(), ErrInvalidConfig)
		})
	}
}

func TestLoadClient(t *testing.T) {
	inTempDir(t)

	cfg, err := LoadClient([]string{"--room", "ab12", "--user_id", "u1", "--max_backoff", "10s"})
	require.NoError(t, err)
	assert.Equal(t, "ab12", cfg.Room)
	assert.Equal(t, "u1", cfg.UserID)
	assert.Equal(t, time.Second, cfg.InitialBackoff)
	assert.Equal(t, 10*time.Second, cfg.MaxBackoff)
	assert.Equal(t, "ws://localhost:8080/ws", cfg.URL)

	_, err = LoadClient(nil)
	assert.ErrorIs(t, err, ErrInvalidConfig)
}
