package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func inDir(t *testing.T, dir string) {
	t.Helper()
	wd, err := os.Getwd()
	require.NoError(t, err)
	require.NoError(t, os.Chdir(dir))
	t.Cleanup(func() { _ = os.Chdir(wd) })
}

func TestLoadDefaults(t *testing.T) {
	inDir(t, t.TempDir())
	t.Setenv("CONFIG_ENV", "missing")

	cfg, err := Load()
	require.NoError(t, err)
	require.Equal(t, 8080, cfg.Port)
	require.Equal(t, 54*time.Second, cfg.PingPeriod)
	require.Equal(t, 15*time.Second, cfg.RaiseHandCooldown)
	require.Equal(t, time.Second, cfg.Recording.Timeslice)
	require.Equal(t, "vp8", cfg.Recording.Codec)
	require.True(t, cfg.Recording.Mic)
	require.Empty(t, cfg.Signal.URL)
}

func TestLoadFile(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.MkdirAll(filepath.Join(dir, "config"), 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "config", "config.test.yaml"), []byte(`
mode: debug
port: 9090
raise_hand_cooldown: 5s
recording:
  timeslice: 250ms
  codec: vp9
  s3:
    bucket: webinars
    directory: rec
signal:
  url: ws://signal.local/ws
`), 0o644))
	inDir(t, dir)
	t.Setenv("CONFIG_ENV", "test")

	cfg, err := Load()
	require.NoError(t, err)
	require.Equal(t, "debug", cfg.Mode)
	require.Equal(t, 9090, cfg.Port)
	require.Equal(t, 5*time.Second, cfg.RaiseHandCooldown)
	require.Equal(t, 250*time.Millisecond, cfg.Recording.Timeslice)
	require.Equal(t, "vp9", cfg.Recording.Codec)
	require.Equal(t, "webinars", cfg.Recording.S3.Bucket)
	require.Equal(t, "rec", cfg.Recording.S3.Directory)
	require.Equal(t, "ws://signal.local/ws", cfg.Signal.URL)
	require.Equal(t, "./recordings", cfg.Recording.Dir)
}
