package main

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/c360/twinbridge/connection"
)

// loadConnections reads one JSON connection document (spec.md §6) per
// *.json file in dir, in directory order. A directory containing no
// documents is not an error: a freshly provisioned daemon may start with
// zero connections and have them added later.
func loadConnections(dir string) ([]connection.Connection, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("read connections dir %s: %w", dir, err)
	}

	var conns []connection.Connection
	for _, e := range entries {
		if e.IsDir() || filepath.Ext(e.Name()) != ".json" {
			continue
		}
		path := filepath.Join(dir, e.Name())
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read %s: %w", path, err)
		}
		var conn connection.Connection
		if err := json.Unmarshal(data, &conn); err != nil {
			return nil, fmt.Errorf("parse %s: %w", path, err)
		}
		conns = append(conns, conn)
	}
	return conns, nil
}
