package rulesmith

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
)

// RuleStore persists rendered rule artifacts. Implementations exist for
// the local filesystem, memory, SQLite, and S3; all of them key artifacts
// by rule name.
type RuleStore interface {
	// Put writes the rule's rendered artifact.
	Put(ctx context.Context, rule *Rule) error

	// Get reads a rendered artifact by rule name.
	Get(ctx context.Context, name string) ([]byte, error)

	// List returns the stored rule names, sorted.
	List(ctx context.Context) ([]string, error)

	// Delete removes a rule.
	Delete(ctx context.Context, name string) error

	// Close releases any resources.
	Close() error
}

// Ensure interfaces are implemented
var (
	_ RuleStore = (*FileStore)(nil)
	_ RuleStore = (*MemoryStore)(nil)
	_ RuleStore = (*SQLiteStore)(nil)
	_ RuleStore = (*S3Store)(nil)
)

// OpenStore creates the rule store named by the configuration.
func OpenStore(cfg StoreConfig) (RuleStore, error) {
	switch cfg.Backend {
	case "", "file":
		dir := cfg.Dir
		if dir == "" {
			dir = "."
		}
		return NewFileStore(dir)
	case "memory":
		return NewMemoryStore(), nil
	case "sqlite":
		return NewSQLiteStore(SQLiteStoreConfig{Path: cfg.Path})
	case "s3":
		return NewS3Store(cfg.S3)
	default:
		return nil, fmt.Errorf("unknown store backend %q", cfg.Backend)
	}
}

// FileStore keeps one artifact file per rule under a base directory.
type FileStore struct {
	baseDir string
}

// NewFileStore creates a file-based rule store rooted at baseDir.
func NewFileStore(baseDir string) (*FileStore, error) {
	if err := os.MkdirAll(baseDir, 0o755); err != nil {
		return nil, newStoreError(StoreErrorTypeWrite, "open", baseDir, err)
	}
	// Store the cleaned absolute path for consistent path traversal checks
	absDir, err := filepath.Abs(baseDir)
	if err != nil {
		return nil, newStoreError(StoreErrorTypeWrite, "open", baseDir, err)
	}
	return &FileStore{baseDir: filepath.Clean(absDir)}, nil
}

// safePath validates and returns a safe path within the base directory,
// rejecting names that would escape it.
func (f *FileStore) safePath(name string) (string, error) {
	resolved := filepath.Clean(filepath.Join(f.baseDir, filepath.Clean(name)))
	if resolved == f.baseDir || !strings.HasPrefix(resolved, f.baseDir+string(os.PathSeparator)) {
		return "", errors.New("invalid rule name: path traversal attempt detected")
	}
	return resolved, nil
}

func (f *FileStore) Put(ctx context.Context, rule *Rule) error {
	path, err := f.safePath(rule.Filename())
	if err != nil {
		return newStoreError(StoreErrorTypeWrite, "put", rule.Name, err)
	}
	if err := os.WriteFile(path, rule.Render(), 0o644); err != nil {
		return newStoreError(StoreErrorTypeWrite, "put", rule.Name, err)
	}
	return nil
}

func (f *FileStore) Get(ctx context.Context, name string) ([]byte, error) {
	path, err := f.safePath(name + RuleExt)
	if err != nil {
		return nil, newStoreError(StoreErrorTypeRead, "get", name, err)
	}
	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return nil, newStoreError(StoreErrorTypeNotFound, "get", name, ErrNotFound)
	}
	if err != nil {
		return nil, newStoreError(StoreErrorTypeRead, "get", name, err)
	}
	return data, nil
}

func (f *FileStore) List(ctx context.Context) ([]string, error) {
	entries, err := os.ReadDir(f.baseDir)
	if err != nil {
		return nil, newStoreError(StoreErrorTypeRead, "list", "", err)
	}
	var names []string
	for _, e := range entries {
		if e.IsDir() || !strings.HasSuffix(e.Name(), RuleExt) {
			continue
		}
		names = append(names, strings.TrimSuffix(e.Name(), RuleExt))
	}
	sort.Strings(names)
	return names, nil
}

func (f *FileStore) Delete(ctx context.Context, name string) error {
	path, err := f.safePath(name + RuleExt)
	if err != nil {
		return newStoreError(StoreErrorTypeWrite, "delete", name, err)
	}
	if err := os.Remove(path); os.IsNotExist(err) {
		return newStoreError(StoreErrorTypeNotFound, "delete", name, ErrNotFound)
	} else if err != nil {
		return newStoreError(StoreErrorTypeWrite, "delete", name, err)
	}
	return nil
}

func (f *FileStore) Close() error {
	return nil
}

// MemoryStore keeps artifacts in memory. Useful for testing and dry runs.
type MemoryStore struct {
	data map[string][]byte
	mu   sync.RWMutex
}

// NewMemoryStore creates an in-memory rule store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{data: make(map[string][]byte)}
}

func (m *MemoryStore) Put(ctx context.Context, rule *Rule) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.data == nil {
		return newStoreError(StoreErrorTypeClosed, "put", rule.Name, ErrStoreClosed)
	}
	m.data[rule.Name] = rule.Render()
	return nil
}

func (m *MemoryStore) Get(ctx context.Context, name string) ([]byte, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.data == nil {
		return nil, newStoreError(StoreErrorTypeClosed, "get", name, ErrStoreClosed)
	}
	data, ok := m.data[name]
	if !ok {
		return nil, newStoreError(StoreErrorTypeNotFound, "get", name, ErrNotFound)
	}
	return append([]byte(nil), data...), nil
}

func (m *MemoryStore) List(ctx context.Context) ([]string, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.data == nil {
		return nil, newStoreError(StoreErrorTypeClosed, "list", "", ErrStoreClosed)
	}
	names := make([]string, 0, len(m.data))
	for k := range m.data {
		names = append(names, k)
	}
	sort.Strings(names)
	return names, nil
}

func (m *MemoryStore) Delete(ctx context.Context, name string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.data == nil {
		return newStoreError(StoreErrorTypeClosed, "delete", name, ErrStoreClosed)
	}
	if _, ok := m.data[name]; !ok {
		return newStoreError(StoreErrorTypeNotFound, "delete", name, ErrNotFound)
	}
	delete(m.data, name)
	return nil
}

func (m *MemoryStore) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.data = nil
	return nil
}
