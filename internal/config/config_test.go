package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func inDir(t *testing.T, dir string) {
	t.Helper()
	wd, err := os.Getwd()
	require.NoError(t, err)
	require.NoError(t, os.Chdir(dir))
	t.Cleanup(func() { _ = os.Chdir(wd) })
}

func TestLoad_Defaults(t *testing.T) {
	inDir(t, t.TempDir())
	t.Setenv("CONFIG_ENV", "missing")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, 8080, cfg.Port)
	assert.Equal(t, 500*time.Millisecond, cfg.Call.RemountGrace)
	assert.Equal(t, 30*time.Minute, cfg.Call.HostIdleTimeout)
	assert.Equal(t, "@every 1m", cfg.Call.SweepSchedule)
	assert.Equal(t, 2000, cfg.Call.ChatMaxLen)
	assert.Equal(t, 10, cfg.Guard.Ban.MaxFailures)
	assert.Equal(t, time.Hour, cfg.Guard.Ban.BanDuration)
	assert.Empty(t, cfg.Media.BaseURL)
}

func TestLoad_FileAndEnv(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.MkdirAll(filepath.Join(dir, "config"), 0o755))
	yaml := `
mode: debug
port: 9090
media:
  base_url: http://media:7000
  callback_secret: shh
  ice_servers:
    - urls: ["stun:stun.l.google.com:19302"]
    - urls: ["turn:turn.example.com:3478"]
      username: u
      credential: p
call:
  remount_grace: 750ms
`
	require.NoError(t, os.WriteFile(filepath.Join(dir, "config", "config.test.yaml"), []byte(yaml), 0o644))
	inDir(t, dir)
	t.Setenv("CONFIG_ENV", "test")
	t.Setenv("PODCALL_PORT", "9191")
	t.Setenv("PODCALL_AUTH_JWT_SECRET", "jwt")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, "debug", cfg.Mode)
	assert.Equal(t, 9191, cfg.Port)
	assert.Equal(t, "jwt", cfg.Auth.JWTSecret)
	assert.Equal(t, "http://media:7000", cfg.Media.BaseURL)
	assert.Equal(t, "http://media:7000", cfg.Media.PublicURL)
	assert.Equal(t, "shh", cfg.Media.CallbackSecret)
	assert.Equal(t, 750*time.Millisecond, cfg.Call.RemountGrace)
	require.Len(t, cfg.Media.ICEServers, 2)
	assert.Equal(t, []string{"stun:stun.l.google.com:19302"}, cfg.Media.ICEServers[0].URLs)
	assert.Equal(t, "u", cfg.Media.ICEServers[1].Username)
}
