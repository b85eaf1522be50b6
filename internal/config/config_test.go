package config

import (
	"log/slog"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/spf13/pflag"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefault_IsValid(t *testing.T) {
	cfg := Default()
	require.NoError(t, cfg.Validate())
	assert.Equal(t, "phone0", cfg.Worker.DefaultInstance)
	assert.Equal(t, 2*time.Second, cfg.Worker.DefaultTimeout)
	assert.Equal(t, 10*time.Second, cfg.Unlock.WatchdogDelay)
}

func TestParse_OverridesDefaults(t *testing.T) {
	cfg, err := Parse([]byte(`
worker:
  default_instance: phone1
  unbounded_ceiling: 1m
diagnostics:
  journal: /tmp/diag.db
log:
  level: debug
`))
	require.NoError(t, err)
	require.NoError(t, cfg.Validate())

	assert.Equal(t, "phone1", cfg.Worker.DefaultInstance)
	assert.Equal(t, time.Minute, cfg.Worker.UnboundedCeiling)
	assert.Equal(t, 2*time.Second, cfg.Worker.DefaultTimeout, "unset fields keep defaults")
	assert.Equal(t, "/tmp/diag.db", cfg.Diagnostics.Journal)

	level, err := cfg.SlogLevel()
	require.NoError(t, err)
	assert.Equal(t, slog.LevelDebug, level)
}

func TestParse_Empty(t *testing.T) {
	cfg, err := Parse(nil)
	require.NoError(t, err)
	assert.Equal(t, Default(), cfg)
}

func TestParse_UnknownKey(t *testing.T) {
	_, err := Parse([]byte("worker:\n  default_instanse: phone1\n"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "default_instanse")
}

func TestValidate_CollectsAllErrors(t *testing.T) {
	cfg := Default()
	cfg.Worker.DefaultInstance = "default"
	cfg.Worker.TagLimit = 0
	cfg.Unlock.WatchdogDelay = 0
	cfg.Log.Level = "loud"
	cfg.Log.Format = "xml"

	err := cfg.Validate()
	require.Error(t, err)
	for _, want := range []string{
		"worker.default_instance",
		"worker.tag_limit",
		"unlock.watchdog_delay",
		"log.level",
		"log.format",
	} {
		assert.Contains(t, err.Error(), want)
	}
}

func TestLoadFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "phonebridge.yaml")
	require.NoError(t, os.WriteFile(path, []byte("modem:\n  script: modem.yaml\n"), 0o644))

	cfg, err := LoadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "modem.yaml", cfg.Modem.Script)

	_, err = LoadFile(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)
}

func TestLoad_FromEnv(t *testing.T) {
	t.Setenv(EnvVar, "")
	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, Default(), cfg)

	path := filepath.Join(t.TempDir(), "phonebridge.yaml")
	require.NoError(t, os.WriteFile(path, []byte("worker:\n  tag_limit: 8\n"), 0o644))
	t.Setenv(EnvVar, path)

	cfg, err = Load()
	require.NoError(t, err)
	assert.Equal(t, 8, cfg.Worker.TagLimit)
}

func TestApplyFlags_OnlyChanged(t *testing.T) {
	fs := pflag.NewFlagSet("test", pflag.ContinueOnError)
	RegisterFlags(fs)
	require.NoError(t, fs.Parse([]string{"--timeout=500ms", "--default-instance", "phone2"}))

	cfg := Default()
	cfg.Diagnostics.Journal = "from-file.db"
	require.NoError(t, cfg.ApplyFlags(fs))

	assert.Equal(t, 500*time.Millisecond, cfg.Worker.DefaultTimeout)
	assert.Equal(t, "phone2", cfg.Worker.DefaultInstance)
	assert.Equal(t, "from-file.db", cfg.Diagnostics.Journal, "unset flag must not clobber file value")
}
