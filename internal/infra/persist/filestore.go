// Package persist provides the durable backends for the log snapshot and
// the anchor ledger: a JSON-document file store and a postgres store.
package persist

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"merklelog/internal/domain"
)

const (
	leavesFile  = "leaves.json"
	entriesFile = "entries.json"
	anchorsFile = "anchors.json"
)

// FileStore persists the log state as three independently loadable JSON
// documents under one directory. A missing document reads as an empty
// array. Writes replace the whole document; there is no write-ahead log
// and no atomic rename.
type FileStore struct {
	dir  string
	sync bool

	mu sync.Mutex
}

// NewFileStore creates the data directory if needed. With syncWrites set,
// every write is fsynced before it is reported durable; the default mode
// accepts the weaker guarantee.
func NewFileStore(dir string, syncWrites bool) (*FileStore, error) {
	if dir == "" {
		return nil, fmt.Errorf("data directory is required")
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create data dir: %w", err)
	}
	fs := &FileStore{dir: dir, sync: syncWrites}
	if err := fs.ensureFile(anchorsFile); err != nil {
		return nil, err
	}
	return fs, nil
}

func (f *FileStore) Save(ctx context.Context, snapshot domain.Snapshot) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.writeJSON(leavesFile, snapshot.Leaves); err != nil {
		return err
	}
	return f.writeJSON(entriesFile, snapshot.Entries)
}

func (f *FileStore) Load(ctx context.Context) (domain.Snapshot, error) {
	if err := ctx.Err(); err != nil {
		return domain.Snapshot{}, err
	}
	f.mu.Lock()
	defer f.mu.Unlock()

	var snapshot domain.Snapshot
	if err := f.readJSON(leavesFile, &snapshot.Leaves); err != nil {
		return domain.Snapshot{}, err
	}
	if err := f.readJSON(entriesFile, &snapshot.Entries); err != nil {
		return domain.Snapshot{}, err
	}
	if snapshot.Leaves == nil {
		snapshot.Leaves = []string{}
	}
	if snapshot.Entries == nil {
		snapshot.Entries = []domain.LogEntry{}
	}
	return snapshot, nil
}

func (f *FileStore) Append(ctx context.Context, record domain.AnchorRecord) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	f.mu.Lock()
	defer f.mu.Unlock()

	var records []domain.AnchorRecord
	if err := f.readJSON(anchorsFile, &records); err != nil {
		return err
	}
	records = append(records, record)
	return f.writeJSON(anchorsFile, records)
}

func (f *FileStore) List(ctx context.Context) ([]domain.AnchorRecord, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	f.mu.Lock()
	defer f.mu.Unlock()

	var records []domain.AnchorRecord
	if err := f.readJSON(anchorsFile, &records); err != nil {
		return nil, err
	}
	if records == nil {
		records = []domain.AnchorRecord{}
	}
	return records, nil
}

func (f *FileStore) path(name string) string {
	return filepath.Join(f.dir, name)
}

func (f *FileStore) readJSON(name string, out any) error {
	content, err := os.ReadFile(f.path(name))
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return fmt.Errorf("read %s: %w", name, err)
	}
	if len(content) == 0 {
		return nil
	}
	if err := json.Unmarshal(content, out); err != nil {
		return fmt.Errorf("decode %s: %w", name, err)
	}
	return nil
}

func (f *FileStore) writeJSON(name string, value any) error {
	payload, err := json.MarshalIndent(value, "", "  ")
	if err != nil {
		return fmt.Errorf("encode %s: %w", name, err)
	}
	if !f.sync {
		if err := os.WriteFile(f.path(name), payload, 0o644); err != nil {
			return fmt.Errorf("write %s: %w", name, err)
		}
		return nil
	}

	file, err := os.OpenFile(f.path(name), os.O_WRONLY|os.O_CREATE|os.O_TRUNC, 0o644)
	if err != nil {
		return fmt.Errorf("open %s: %w", name, err)
	}
	if _, err := file.Write(payload); err != nil {
		file.Close()
		return fmt.Errorf("write %s: %w", name, err)
	}
	if err := file.Sync(); err != nil {
		file.Close()
		return fmt.Errorf("sync %s: %w", name, err)
	}
	return file.Close()
}

func (f *FileStore) ensureFile(name string) error {
	if _, err := os.Stat(f.path(name)); err == nil {
		return nil
	}
	if err := os.WriteFile(f.path(name), []byte("[]"), 0o644); err != nil {
		return fmt.Errorf("init %s: %w", name, err)
	}
	return nil
}
