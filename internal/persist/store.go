package persist

import (
	"errors"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"sync"

	"gopkg.in/yaml.v3"

	"github.com/coreman2200/arcaluminis-matrix/internal/errs"
)

// Store is the key-value collaborator. Get fails with errs.NotFound for a
// missing key and errs.InvalidArgument when the stored type differs from t.
// Set may buffer; Commit makes earlier Sets durable.
type Store interface {
	Get(ns, key string, t Type) (Value, error)
	Set(ns, key string, v Value) error
	Dump() (map[string]map[string]Value, error)
	Commit() error
}

// MemStore keeps everything in memory.
type MemStore struct {
	mu sync.RWMutex
	m  map[string]map[string]Value
}

func NewMemStore() *MemStore {
	return &MemStore{m: map[string]map[string]Value{}}
}

func (s *MemStore) Get(ns, key string, t Type) (Value, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return lookup(s.m, ns, key, t)
}

func (s *MemStore) Set(ns, key string, v Value) error {
	if err := checkEntry(ns, key, v); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	put(s.m, ns, key, v)
	return nil
}

func (s *MemStore) Dump() (map[string]map[string]Value, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return clone(s.m), nil
}

func (s *MemStore) Commit() error { return nil }

// FileStore is a Store backed by a YAML file. Sets stay in memory until
// Commit, which replaces the file atomically.
type FileStore struct {
	path string

	mu    sync.RWMutex
	m     map[string]map[string]Value
	dirty bool
}

type fileEntry struct {
	Type  Type `yaml:"type"`
	Value any  `yaml:"value"`
}

// OpenFileStore loads path. A missing file is an empty store.
func OpenFileStore(path string) (*FileStore, error) {
	s := &FileStore{path: path, m: map[string]map[string]Value{}}
	b, err := os.ReadFile(path)
	if errors.Is(err, fs.ErrNotExist) {
		return s, nil
	}
	if err != nil {
		return nil, errs.Wrap(errs.IOFailure, "OpenFileStore", err)
	}
	var raw map[string]map[string]fileEntry
	if err := yaml.Unmarshal(b, &raw); err != nil {
		return nil, errs.Wrap(errs.InvalidArgument, "OpenFileStore", err)
	}
	for ns, keys := range raw {
		for key, e := range keys {
			v, err := parse(e.Type, e.Value)
			if err != nil {
				return nil, errs.E(errs.InvalidArgument, "OpenFileStore", "%s/%s: %v", ns, key, err)
			}
			put(s.m, ns, key, v)
		}
	}
	return s, nil
}

func (s *FileStore) Path() string { return s.path }

func (s *FileStore) Get(ns, key string, t Type) (Value, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return lookup(s.m, ns, key, t)
}

func (s *FileStore) Set(ns, key string, v Value) error {
	if err := checkEntry(ns, key, v); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	put(s.m, ns, key, v)
	s.dirty = true
	return nil
}

func (s *FileStore) Dump() (map[string]map[string]Value, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return clone(s.m), nil
}

func (s *FileStore) Commit() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.dirty {
		return nil
	}
	out := make(map[string]map[string]fileEntry, len(s.m))
	for ns, keys := range s.m {
		out[ns] = make(map[string]fileEntry, len(keys))
		for key, v := range keys {
			out[ns][key] = fileEntry{Type: v.T, Value: v.plain()}
		}
	}
	b, err := yaml.Marshal(out)
	if err != nil {
		return errs.Wrap(errs.IOFailure, "FileStore.Commit", err)
	}
	if err := writeAtomic(s.path, b); err != nil {
		return errs.Wrap(errs.IOFailure, "FileStore.Commit", err)
	}
	s.dirty = false
	return nil
}

func writeAtomic(path string, b []byte) error {
	tmp, err := os.CreateTemp(filepath.Dir(path), ".kv-*")
	if err != nil {
		return err
	}
	defer os.Remove(tmp.Name())
	if _, err := tmp.Write(b); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	return os.Rename(tmp.Name(), path)
}

func checkEntry(ns, key string, v Value) error {
	if ns == "" || key == "" {
		return errs.E(errs.InvalidArgument, "Store.Set", "namespace and key are required")
	}
	return v.Check()
}

func lookup(m map[string]map[string]Value, ns, key string, t Type) (Value, error) {
	v, ok := m[ns][key]
	if !ok {
		return Value{}, errs.E(errs.NotFound, "Store.Get", "%s/%s", ns, key)
	}
	if v.T != t {
		return Value{}, errs.E(errs.InvalidArgument, "Store.Get", "%s/%s is %s, not %s", ns, key, v.T, t)
	}
	return v, nil
}

func put(m map[string]map[string]Value, ns, key string, v Value) {
	if m[ns] == nil {
		m[ns] = map[string]Value{}
	}
	m[ns][key] = v
}

func clone(m map[string]map[string]Value) map[string]map[string]Value {
	out := make(map[string]map[string]Value, len(m))
	for ns, keys := range m {
		out[ns] = make(map[string]Value, len(keys))
		for k, v := range keys {
			if b, ok := v.V.([]byte); ok {
				v.V = append([]byte(nil), b...)
			}
			out[ns][k] = v
		}
	}
	return out
}

// Namespaces lists the namespaces of a dump in name order.
func Namespaces(d map[string]map[string]Value) []string {
	out := make([]string, 0, len(d))
	for ns := range d {
		out = append(out, ns)
	}
	sort.Strings(out)
	return out
}
