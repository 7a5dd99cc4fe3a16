package store

import (
	"sort"
	"sync"
)

// Memory is an in-process Store. It has no search path the engine could
// read, so it only suits callers that never hand it to a real library.
type Memory struct {
	mu     sync.RWMutex
	files  map[string][]byte
	dirs   []string
	writes int
}

// NewMemory creates an empty store with the given staging directories.
func NewMemory(dirs ...string) *Memory {
	if len(dirs) == 0 {
		dirs = []string{""}
	}

	return &Memory{
		files: make(map[string][]byte),
		dirs:  dirs,
	}
}

func (m *Memory) Exists(rel string) (bool, error) {
	key, err := cleanRel(rel)
	if err != nil {
		return false, err
	}

	m.mu.RLock()
	defer m.mu.RUnlock()

	_, ok := m.files[key]

	return ok, nil
}

func (m *Memory) Write(rel string, data []byte) error {
	key, err := cleanRel(rel)
	if err != nil {
		return err
	}

	cp := make([]byte, len(data))
	copy(cp, data)

	m.mu.Lock()
	defer m.mu.Unlock()

	m.files[key] = cp
	m.writes++

	return nil
}

func (m *Memory) Remove(rel string) error {
	key, err := cleanRel(rel)
	if err != nil {
		return err
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	delete(m.files, key)

	return nil
}

func (m *Memory) Dirs() []string {
	return append([]string(nil), m.dirs...)
}

func (m *Memory) SearchPath() string {
	return "memory"
}

// Read returns a copy of the file at rel.
func (m *Memory) Read(rel string) ([]byte, bool) {
	key, err := cleanRel(rel)
	if err != nil {
		return nil, false
	}

	m.mu.RLock()
	defer m.mu.RUnlock()

	data, ok := m.files[key]
	if !ok {
		return nil, false
	}

	return append([]byte(nil), data...), true
}

// Files returns the sorted list of stored paths.
func (m *Memory) Files() []string {
	m.mu.RLock()
	defer m.mu.RUnlock()

	names := make([]string, 0, len(m.files))
	for name := range m.files {
		names = append(names, name)
	}

	sort.Strings(names)

	return names
}

// Writes returns the number of successful writes.
func (m *Memory) Writes() int {
	m.mu.RLock()
	defer m.mu.RUnlock()

	return m.writes
}

// Ensure Memory implements the interface
var _ Store = (*Memory)(nil)
