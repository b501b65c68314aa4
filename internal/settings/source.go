package settings

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
)

// Source provides the current snapshot.
type Source interface {
	// Name identifies the source in logs.
	Name() string
	Load(ctx context.Context) (Snapshot, error)
}

// Saver is implemented by sources that can persist a snapshot.
type Saver interface {
	Save(ctx context.Context, s Snapshot) error
}

// Watcher is implemented by sources that can signal changes made elsewhere.
// The returned channel receives a value after each change and is closed when
// ctx is done.
type Watcher interface {
	Watch(ctx context.Context) (<-chan struct{}, error)
}

// StaticSource serves a fixed snapshot, typically built from environment toggles.
type StaticSource struct {
	mu       sync.RWMutex
	snapshot Snapshot
}

// NewStaticSource returns a source holding s.
func NewStaticSource(s Snapshot) *StaticSource {
	return &StaticSource{snapshot: s}
}

func (s *StaticSource) Name() string { return "static" }

func (s *StaticSource) Load(_ context.Context) (Snapshot, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.snapshot, nil
}

// Save replaces the held snapshot in memory.
func (s *StaticSource) Save(_ context.Context, snap Snapshot) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.snapshot = snap
	return nil
}

// FileSource reads and writes a JSON snapshot on disk.
// A missing file loads as an empty snapshot.
type FileSource struct {
	path string
}

// NewFileSource returns a source for the file at path.
func NewFileSource(path string) *FileSource {
	return &FileSource{path: path}
}

func (f *FileSource) Name() string { return "file:" + f.path }

func (f *FileSource) Load(_ context.Context) (Snapshot, error) {
	data, err := os.ReadFile(f.path)
	if errors.Is(err, os.ErrNotExist) {
		return Snapshot{}, nil
	}
	if err != nil {
		return Snapshot{}, fmt.Errorf("failed to read settings file: %w", err)
	}

	s, err := Parse(data)
	if err != nil {
		return Snapshot{}, fmt.Errorf("settings file %s: %w", f.path, err)
	}
	return s, nil
}

// Save writes the snapshot to a temporary file and renames it into place,
// so readers never observe a partial file.
func (f *FileSource) Save(_ context.Context, s Snapshot) error {
	data, err := s.Marshal()
	if err != nil {
		return fmt.Errorf("failed to encode settings: %w", err)
	}

	tmp, err := os.CreateTemp(filepath.Dir(f.path), ".settings-*.json")
	if err != nil {
		return fmt.Errorf("failed to create temp settings file: %w", err)
	}
	defer os.Remove(tmp.Name()) // no-op after a successful rename

	if _, err := tmp.Write(data); err != nil {
		_ = tmp.Close()
		return fmt.Errorf("failed to write settings file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("failed to close settings file: %w", err)
	}
	if err := os.Rename(tmp.Name(), f.path); err != nil {
		return fmt.Errorf("failed to replace settings file: %w", err)
	}
	return nil
}
