// Package store stages segment files where the ephemeris engine looks for them.
package store

import (
	"errors"
	"path"
	"strings"
)

var (
	// ErrPathInvalid is returned when a resident path escapes the store root
	ErrPathInvalid = errors.New("invalid resident path")
)

// Store is the engine's resident storage. Callers only check for existence
// and write new files; nothing is ever evicted.
type Store interface {
	// Exists reports whether rel is present.
	Exists(rel string) (bool, error)
	// Write stores data at rel atomically.
	Write(rel string, data []byte) error
	// Remove deletes rel; a missing file is not an error.
	Remove(rel string) error
	// Dirs returns the staging directories relative to the root; "" is the root.
	Dirs() []string
	// SearchPath returns the value handed to the engine's search path.
	SearchPath() string
}

// cleanRel normalises a store-relative path and rejects escapes.
func cleanRel(rel string) (string, error) {
	rel = strings.ReplaceAll(rel, "\\", "/")
	cleaned := path.Clean("/" + rel)
	cleaned = strings.TrimPrefix(cleaned, "/")

	if cleaned == "" || cleaned == "." {
		return "", ErrPathInvalid
	}

	if strings.HasPrefix(rel, "/") || strings.HasPrefix(rel, "..") || strings.Contains(rel, "/../") {
		return "", ErrPathInvalid
	}

	return cleaned, nil
}
