// File: internal/scripts/file.go
package scripts

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sync"
	"time"

	"go.uber.org/zap"
	"gopkg.in/yaml.v3"

	"github.com/xkilldash9x/scriptfill/api/schemas"
)

// fileDocument is the on-disk layout of a FileStore.
type fileDocument struct {
	Scripts []schemas.Script `yaml:"scripts"`
}

// FileStore keeps scripts in a YAML file. Every write replaces the file
// atomically, so a crash never leaves it half written.
type FileStore struct {
	path string
	log  *zap.Logger
	now  func() time.Time

	mu sync.Mutex
}

var _ Repository = (*FileStore)(nil)

// NewFileStore returns a store backed by path. The file is created on the
// first write; a missing file reads as empty.
func NewFileStore(path string, logger *zap.Logger) *FileStore {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &FileStore{path: path, log: logger.Named("file_store"), now: time.Now}
}

// DecodeBatch parses scripts from YAML (or JSON), either in the FileStore
// layout or as a bare list.
func DecodeBatch(data []byte) ([]schemas.Script, error) {
	var doc fileDocument
	if err := yaml.Unmarshal(data, &doc); err == nil && len(doc.Scripts) > 0 {
		return doc.Scripts, nil
	}
	var list []schemas.Script
	if err := yaml.Unmarshal(data, &list); err != nil {
		return nil, fmt.Errorf("failed to parse scripts: %w", err)
	}
	return list, nil
}

func (f *FileStore) load() ([]schemas.Script, error) {
	data, err := os.ReadFile(f.path)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read script file: %w", err)
	}
	var doc fileDocument
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("failed to parse script file %s: %w", f.path, err)
	}
	return doc.Scripts, nil
}

func (f *FileStore) save(list []schemas.Script) error {
	Sort(list)
	data, err := yaml.Marshal(fileDocument{Scripts: list})
	if err != nil {
		return fmt.Errorf("failed to encode scripts: %w", err)
	}
	dir := filepath.Dir(f.path)
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return fmt.Errorf("failed to create script directory: %w", err)
	}
	tmp, err := os.CreateTemp(dir, ".scripts-*.yaml")
	if err != nil {
		return fmt.Errorf("failed to create temporary script file: %w", err)
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return fmt.Errorf("failed to write scripts: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return fmt.Errorf("failed to sync scripts: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("failed to close temporary script file: %w", err)
	}
	if err := os.Rename(tmp.Name(), f.path); err != nil {
		return fmt.Errorf("failed to replace script file: %w", err)
	}
	f.log.Debug("Script file written.", zap.String("path", f.path), zap.Int("count", len(list)))
	return nil
}

func (f *FileStore) List(ctx context.Context) ([]schemas.Script, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	list, err := f.load()
	if err != nil {
		return nil, err
	}
	Sort(list)
	return list, nil
}

func (f *FileStore) Get(ctx context.Context, id string) (schemas.Script, error) {
	list, err := f.List(ctx)
	if err != nil {
		return schemas.Script{}, err
	}
	for _, s := range list {
		if s.ID == id {
			return s, nil
		}
	}
	return schemas.Script{}, fmt.Errorf("%w: %s", ErrNotFound, id)
}

func (f *FileStore) Put(ctx context.Context, s schemas.Script) (schemas.Script, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	list, err := f.load()
	if err != nil {
		return schemas.Script{}, err
	}
	stored, list, err := upsert(list, s, f.now())
	if err != nil {
		return schemas.Script{}, err
	}
	return stored, f.save(list)
}

func (f *FileStore) Import(ctx context.Context, batch []schemas.Script) (int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	list, err := f.load()
	if err != nil {
		return 0, err
	}
	now := f.now()
	for i, s := range batch {
		if _, list, err = upsert(list, s, now); err != nil {
			return 0, fmt.Errorf("script %d: %w", i, err)
		}
	}
	if err := f.save(list); err != nil {
		return 0, err
	}
	return len(batch), nil
}

// upsert replaces the script with the same ID or appends a new one. The
// creation time of a replaced script is kept.
func upsert(list []schemas.Script, s schemas.Script, now time.Time) (schemas.Script, []schemas.Script, error) {
	for i := range list {
		if s.ID != "" && list[i].ID == s.ID {
			if s.CreatedAt.IsZero() {
				s.CreatedAt = list[i].CreatedAt
			}
			prepared, err := Prepare(s, now)
			if err != nil {
				return s, list, err
			}
			list[i] = prepared
			return prepared, list, nil
		}
	}
	prepared, err := Prepare(s, now)
	if err != nil {
		return s, list, err
	}
	return prepared, append(list, prepared), nil
}

func (f *FileStore) Delete(ctx context.Context, id string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	list, err := f.load()
	if err != nil {
		return err
	}
	for i := range list {
		if list[i].ID == id {
			return f.save(append(list[:i], list[i+1:]...))
		}
	}
	return fmt.Errorf("%w: %s", ErrNotFound, id)
}

func (f *FileStore) Search(ctx context.Context, query string) ([]schemas.Script, error) {
	list, err := f.List(ctx)
	if err != nil {
		return nil, err
	}
	return Filter(list, query), nil
}
