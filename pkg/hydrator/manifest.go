package hydrator

import (
	"encoding/json"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/ethpandaops/ephemeris/pkg/segment"
	"github.com/ethpandaops/ephemeris/pkg/store"
)

const manifestDescription = "Hydration manifest for segment data"

// ManifestEntry records one hydrated segment.
type ManifestEntry struct {
	File       string    `json:"file"`
	Range      string    `json:"range"`
	Source     Source    `json:"source"`
	URL        string    `json:"url,omitempty"`
	Bytes      int       `json:"bytes"`
	Paths      []string  `json:"paths"`
	HydratedAt time.Time `json:"hydrated_at"`
}

// Manifest is the JSON document kept next to the staged segments.
type Manifest struct {
	Description string          `json:"description"`
	Files       []ManifestEntry `json:"files"`
}

type manifestWriter struct {
	mu      sync.Mutex
	store   store.Store
	name    string
	entries map[string]ManifestEntry
}

// reader is implemented by stores that can hand back a previous manifest.
type reader interface {
	Read(rel string) ([]byte, bool)
}

func newManifestWriter(st store.Store, name string) *manifestWriter {
	m := &manifestWriter{
		store:   st,
		name:    name,
		entries: make(map[string]ManifestEntry),
	}

	m.load()

	return m
}

// load seeds the entries from an existing manifest. A missing or corrupt
// file starts an empty manifest.
func (m *manifestWriter) load() {
	r, ok := m.store.(reader)
	if !ok || m.name == "" {
		return
	}

	data, ok := r.Read(m.name)
	if !ok {
		return
	}

	var existing Manifest
	if err := json.Unmarshal(data, &existing); err != nil {
		return
	}

	for _, entry := range existing.Files {
		ref, err := segment.ParseID(entry.File)
		if err != nil {
			continue
		}

		m.entries[ref.ID()] = entry
	}
}

// record adds an entry and rewrites the manifest file. An empty name keeps
// the manifest in memory only.
func (m *manifestWriter) record(id string, entry ManifestEntry) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.entries[id] = entry

	if m.name == "" {
		return nil
	}

	data, err := json.MarshalIndent(m.snapshotLocked(), "", "  ")
	if err != nil {
		return err
	}

	if err := m.store.Write(m.name, data); err != nil {
		return fmt.Errorf("failed to write manifest: %w", err)
	}

	return nil
}

func (m *manifestWriter) snapshot() Manifest {
	m.mu.Lock()
	defer m.mu.Unlock()

	return m.snapshotLocked()
}

func (m *manifestWriter) snapshotLocked() Manifest {
	ids := make([]string, 0, len(m.entries))
	for id := range m.entries {
		ids = append(ids, id)
	}

	sort.Strings(ids)

	files := make([]ManifestEntry, 0, len(ids))
	for _, id := range ids {
		files = append(files, m.entries[id])
	}

	return Manifest{Description: manifestDescription, Files: files}
}
