// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Thingful Contributors

// Package xdg resolves XDG Base Directory paths for thingful.
package xdg

import (
	"errors"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/samber/oops"
)

const appName = "thingful"

// ConfigFileName is the configuration file looked up in ConfigDir.
const ConfigFileName = "config.yaml"

// ConfigDir returns $XDG_CONFIG_HOME/thingful, falling back to ~/.config/thingful.
func ConfigDir() (string, error) {
	return baseDir("XDG_CONFIG_HOME", ".config")
}

// DataDir returns $XDG_DATA_HOME/thingful, falling back to ~/.local/share/thingful.
func DataDir() (string, error) {
	return baseDir("XDG_DATA_HOME", filepath.Join(".local", "share"))
}

// CertsDir returns the directory holding generated TLS certificates.
func CertsDir() (string, error) {
	dir, err := DataDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, "certs"), nil
}

// DefaultConfigFile returns ConfigDir()/config.yaml when that file exists,
// and "" otherwise.
func DefaultConfigFile() (string, error) {
	dir, err := ConfigDir()
	if err != nil {
		return "", err
	}
	path := filepath.Join(dir, ConfigFileName)
	_, err = os.Stat(path)
	switch {
	case err == nil:
		return path, nil
	case errors.Is(err, fs.ErrNotExist):
		return "", nil
	default:
		return "", oops.Code("XDG_STAT_FAILED").With("path", path).Wrap(err)
	}
}

// EnsureDir creates path and its parents with 0700 permissions.
func EnsureDir(path string) error {
	if err := os.MkdirAll(path, 0o700); err != nil {
		return oops.Code("XDG_MKDIR_FAILED").With("path", path).Wrap(err)
	}
	return nil
}

func baseDir(env, homeRel string) (string, error) {
	if base := os.Getenv(env); base != "" {
		return filepath.Join(base, appName), nil
	}
	home := os.Getenv("HOME")
	if home == "" {
		return "", oops.Code("XDG_NO_HOME").Errorf("neither %s nor HOME is set", env)
	}
	return filepath.Join(home, homeRel, appName), nil
}
