package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.json")
	require.NoError(t, os.WriteFile(path, []byte(body), 0644))
	return path
}

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, Default(), cfg)
	assert.Equal(t, 2*time.Second, time.Duration(cfg.LockTimeout))
}

func TestLoadOverridesDefaults(t *testing.T) {
	cfg, err := Load(writeConfig(t, `{
		"data_dir": "/tmp/idx",
		"lock_timeout": "250ms",
		"index": {"max_keys_per_page": 4},
		"logger": {"log_level": "debug"}
	}`))
	require.NoError(t, err)
	assert.Equal(t, "/tmp/idx", cfg.DataDir)
	assert.Equal(t, 250*time.Millisecond, time.Duration(cfg.LockTimeout))
	assert.Equal(t, 4, cfg.Index.MaxKeysPerPage)
	assert.Equal(t, "debug", cfg.Logger.LogLevel)
	assert.Equal(t, 1024, cfg.BufferPoolPages, "untouched fields keep their default")
}

func TestLoadRejectsInvalid(t *testing.T) {
	cases := map[string]string{
		"capacity":     `{"index": {"max_keys_per_page": 2}}`,
		"pool":         `{"buffer_pool_pages": 0}`,
		"timeout":      `{"lock_timeout": "0s"}`,
		"bad duration": `{"lock_timeout": "soon"}`,
		"level":        `{"logger": {"log_level": "loud"}}`,
		"data dir":     `{"data_dir": ""}`,
		"syntax":       `{`,
	}
	for name, body := range cases {
		_, err := Load(writeConfig(t, body))
		assert.Error(t, err, name)
	}

	_, err := Load(filepath.Join(t.TempDir(), "missing.json"))
	assert.Error(t, err)
}
