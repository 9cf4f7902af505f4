// Package file provides a file-based persistence implementation for local
// development and tests. Each record is one JSON file under the root
// directory; a process-wide mutex serializes writers.
package file

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/convflow/convflow/pkg/persistence"
)

// Persistence implements persistence.Persistence on the file system.
type Persistence struct {
	root string
	mu   sync.RWMutex
}

// NewPersistence creates a file persistence layer rooted at the given
// directory, accepting bare paths and file:// URLs.
func NewPersistence(root string) *Persistence {
	cleanRoot := strings.Replace(root, "file://", "", 1)

	return &Persistence{root: cleanRoot}
}

// Close performs any necessary cleanup. Nothing to do for files.
func (p *Persistence) Close(_ context.Context) error {
	return nil
}

// HealthCheck verifies the root directory exists.
func (p *Persistence) HealthCheck(_ context.Context) error {
	if _, err := os.Stat(p.root); os.IsNotExist(err) {
		return os.ErrNotExist
	}

	return nil
}

// writeRecord marshals a record into <root>/<kind>/<id>.json, creating the
// directory on first use. Callers hold the write lock.
func (p *Persistence) writeRecord(kind, id string, record any) error {
	dir := filepath.Join(p.root, kind)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("failed to create %s directory: %w", kind, err)
	}

	data, err := json.MarshalIndent(record, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal %s record: %w", kind, err)
	}

	if err := os.WriteFile(filepath.Join(dir, id+".json"), data, 0o600); err != nil {
		return fmt.Errorf("failed to write %s record %s: %w", kind, id, err)
	}

	return nil
}

// readRecord unmarshals <root>/<kind>/<id>.json into out. Callers hold at
// least the read lock.
func (p *Persistence) readRecord(kind, id string, out any) error {
	data, err := os.ReadFile(filepath.Join(p.root, kind, id+".json"))
	if err != nil {
		return err
	}

	if err := json.Unmarshal(data, out); err != nil {
		return fmt.Errorf("failed to unmarshal %s record %s: %w", kind, id, err)
	}

	return nil
}

// listRecordIDs returns the record ids stored for a kind.
func (p *Persistence) listRecordIDs(kind string) ([]string, error) {
	entries, err := os.ReadDir(filepath.Join(p.root, kind))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}

		return nil, fmt.Errorf("failed to list %s records: %w", kind, err)
	}

	ids := make([]string, 0, len(entries))

	for _, entry := range entries {
		name := entry.Name()
		if entry.IsDir() || !strings.HasSuffix(name, ".json") {
			continue
		}

		ids = append(ids, strings.TrimSuffix(name, ".json"))
	}

	return ids, nil
}

var _ persistence.Persistence = (*Persistence)(nil)
