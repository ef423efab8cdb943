// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 RetroBridge Contributors

// Package xdg provides XDG Base Directory paths for RetroBridge.
package xdg

import (
	"os"
	"path/filepath"

	"github.com/samber/oops"
)

const appName = "retrobridge"

// base resolves an XDG base variable, falling back to a path under HOME.
func base(env string, fallback ...string) (string, error) {
	if dir := os.Getenv(env); dir != "" {
		return dir, nil
	}
	home := os.Getenv("HOME")
	if home == "" {
		return "", oops.Code("NO_HOME").With("variable", env).
			Errorf("neither %s nor HOME is set", env)
	}
	return filepath.Join(append([]string{home}, fallback...)...), nil
}

// ConfigDir returns the XDG config directory for retrobridge.
// Checks XDG_CONFIG_HOME first, falls back to ~/.config.
func ConfigDir() (string, error) {
	dir, err := base("XDG_CONFIG_HOME", ".config")
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, appName), nil
}

// DataDir returns the XDG data directory for retrobridge.
// Checks XDG_DATA_HOME first, falls back to ~/.local/share.
func DataDir() (string, error) {
	dir, err := base("XDG_DATA_HOME", ".local", "share")
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, appName), nil
}

// StateDir returns the XDG state directory for retrobridge.
// Checks XDG_STATE_HOME first, falls back to ~/.local/state.
func StateDir() (string, error) {
	dir, err := base("XDG_STATE_HOME", ".local", "state")
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, appName), nil
}

func under(parent func() (string, error), name string) (string, error) {
	dir, err := parent()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, name), nil
}

// SystemDir returns where cores look for BIOS and system files.
func SystemDir() (string, error) { return under(DataDir, "system") }

// SaveDir returns where cores write battery saves.
func SaveDir() (string, error) { return under(DataDir, "saves") }

// CoresDir returns where fetched cores are installed.
func CoresDir() (string, error) { return under(DataDir, "cores") }

// StatesDir returns where save state slots are written.
func StatesDir() (string, error) { return under(StateDir, "states") }

// ConfigFile returns the default config file path.
func ConfigFile() (string, error) { return under(ConfigDir, "config.yaml") }

// EnsureDir creates a directory and all parent directories if they don't exist.
// Directories are created with 0700 permissions.
func EnsureDir(path string) error {
	if err := os.MkdirAll(path, 0o700); err != nil {
		return oops.Code("DIR_CREATE_FAILED").With("path", path).Wrap(err)
	}
	return nil
}
