// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Thingful Contributors

package xdg

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/thingful/thingful/pkg/errutil"
)

func TestDirs(t *testing.T) {
	tests := []struct {
		name string
		env  map[string]string
		fn   func() (string, error)
		want string
	}{
		{"config from env", map[string]string{"XDG_CONFIG_HOME": "/custom/config"}, ConfigDir, "/custom/config/thingful"},
		{"config from home", map[string]string{"XDG_CONFIG_HOME": "", "HOME": "/home/u"}, ConfigDir, "/home/u/.config/thingful"},
		{"data from env", map[string]string{"XDG_DATA_HOME": "/custom/data"}, DataDir, "/custom/data/thingful"},
		{"data from home", map[string]string{"XDG_DATA_HOME": "", "HOME": "/home/u"}, DataDir, "/home/u/.local/share/thingful"},
		{"certs", map[string]string{"XDG_DATA_HOME": "/custom/data"}, CertsDir, "/custom/data/thingful/certs"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			for k, v := range tt.env {
				t.Setenv(k, v)
			}
			got, err := tt.fn()
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestConfigDir_NoHome(t *testing.T) {
	t.Setenv("XDG_CONFIG_HOME", "")
	t.Setenv("HOME", "")

	_, err := ConfigDir()
	errutil.AssertErrorCode(t, err, "XDG_NO_HOME")
}

func TestDefaultConfigFile(t *testing.T) {
	base := t.TempDir()
	t.Setenv("XDG_CONFIG_HOME", base)

	got, err := DefaultConfigFile()
	require.NoError(t, err)
	assert.Empty(t, got, "missing file is not an error")

	dir := filepath.Join(base, "thingful")
	require.NoError(t, EnsureDir(dir))
	require.NoError(t, os.WriteFile(filepath.Join(dir, ConfigFileName), []byte("storage: memory\n"), 0o600))

	got, err = DefaultConfigFile()
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(dir, ConfigFileName), got)
}

func TestEnsureDir(t *testing.T) {
	path := filepath.Join(t.TempDir(), "a", "b")

	require.NoError(t, EnsureDir(path))
	require.NoError(t, EnsureDir(path), "idempotent")

	info, err := os.Stat(path)
	require.NoError(t, err)
	assert.True(t, info.IsDir())
	assert.Equal(t, os.FileMode(0o700), info.Mode().Perm())
}
