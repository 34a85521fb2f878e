package main

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseFlags_DefaultsAndOverrides(t *testing.T) {
	cfg, err := parseFlags([]string{"-config", "custom.yaml", "-log-level", "debug"})
	require.NoError(t, err)
	assert.Equal(t, "custom.yaml", cfg.ConfigPath)
	assert.Equal(t, "debug", cfg.LogLevel)
	assert.Equal(t, "json", cfg.LogFormat)
}

func TestValidateFlags_RejectsMissingConfigFile(t *testing.T) {
	cfg := &CLIConfig{ConfigPath: filepath.Join(t.TempDir(), "missing.yaml"), LogLevel: "info", LogFormat: "json"}
	assert.Error(t, validateFlags(cfg))
}

func TestValidateFlags_RejectsBadLogLevel(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("nats:\n  url: nats://localhost\n"), 0o600))

	cfg := &CLIConfig{ConfigPath: path, LogLevel: "verbose", LogFormat: "json"}
	assert.Error(t, validateFlags(cfg))
}

func TestValidateFlags_AcceptsValidConfig(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("nats:\n  url: nats://localhost\n"), 0o600))

	cfg := &CLIConfig{ConfigPath: path, LogLevel: "info", LogFormat: "json"}
	assert.NoError(t, validateFlags(cfg))
}

func TestValidateFlags_SkipsChecksForVersionAndHelp(t *testing.T) {
	assert.NoError(t, validateFlags(&CLIConfig{ShowVersion: true}))
	assert.NoError(t, validateFlags(&CLIConfig{ShowHelp: true}))
}
