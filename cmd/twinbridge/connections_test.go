package main

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConnectionFile(t *testing.T, dir, name, body string) {
	t.Helper()
	require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte(body), 0o600))
}

func TestLoadConnections_ParsesEveryJSONFile(t *testing.T) {
	dir := t.TempDir()
	writeConnectionFile(t, dir, "a.json", `{"id":"conn-a","connectionType":"mqtt","uri":"tcp://broker:1883","sources":[{"addresses":["telemetry/#"]}]}`)
	writeConnectionFile(t, dir, "b.json", `{"id":"conn-b","connectionType":"http-push","uri":"https://example.invalid","targets":[{"address":"https://example.invalid/push","topics":["*"]}]}`)
	writeConnectionFile(t, dir, "notes.txt", "ignore me")

	conns, err := loadConnections(dir)
	require.NoError(t, err)
	require.Len(t, conns, 2)

	ids := []string{conns[0].ID, conns[1].ID}
	assert.ElementsMatch(t, []string{"conn-a", "conn-b"}, ids)
}

func TestLoadConnections_EmptyDirIsNotAnError(t *testing.T) {
	conns, err := loadConnections(t.TempDir())
	require.NoError(t, err)
	assert.Empty(t, conns)
}

func TestLoadConnections_MissingDirFails(t *testing.T) {
	_, err := loadConnections(filepath.Join(t.TempDir(), "missing"))
	assert.Error(t, err)
}

func TestLoadConnections_InvalidJSONFails(t *testing.T) {
	dir := t.TempDir()
	writeConnectionFile(t, dir, "bad.json", `{not valid json`)

	_, err := loadConnections(dir)
	assert.Error(t, err)
}
