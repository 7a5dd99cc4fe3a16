package store

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// Dir is a Store backed by a directory tree. Files are staged in the root
// and in one subdirectory, matching both lookup conventions of the engine.
type Dir struct {
	root   string
	subdir string
	permF  os.FileMode
	permD  os.FileMode
}

// NewDir creates the root and subdirectory if needed.
func NewDir(cfg *Config) (*Dir, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	root, err := filepath.Abs(cfg.Root)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve store root: %w", err)
	}

	d := &Dir{
		root:   root,
		subdir: strings.Trim(cfg.Subdir, "/"),
		permF:  0o644,
		permD:  0o755,
	}

	for _, dir := range d.Dirs() {
		if err := os.MkdirAll(filepath.Join(d.root, filepath.FromSlash(dir)), d.permD); err != nil {
			return nil, fmt.Errorf("failed to create staging directory: %w", err)
		}
	}

	return d, nil
}

// Root returns the absolute store root.
func (d *Dir) Root() string {
	return d.root
}

func (d *Dir) Dirs() []string {
	if d.subdir == "" {
		return []string{""}
	}

	return []string{"", d.subdir}
}

func (d *Dir) SearchPath() string {
	dirs := d.Dirs()
	abs := make([]string, 0, len(dirs))

	for _, dir := range dirs {
		abs = append(abs, filepath.Join(d.root, filepath.FromSlash(dir)))
	}

	return strings.Join(abs, string(os.PathListSeparator))
}

func (d *Dir) Exists(rel string) (bool, error) {
	dest, err := d.mapPath(rel)
	if err != nil {
		return false, err
	}

	info, err := os.Stat(dest)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return false, nil
		}

		return false, err
	}

	return info.Mode().IsRegular(), nil
}

// Write stages data through a temporary file in the destination directory
// and renames it into place, so a reader never sees a partial segment.
func (d *Dir) Write(rel string, data []byte) error {
	dest, err := d.mapPath(rel)
	if err != nil {
		return err
	}

	dir := filepath.Dir(dest)
	if err := os.MkdirAll(dir, d.permD); err != nil {
		return err
	}

	tmp, err := os.CreateTemp(dir, ".tmp-*")
	if err != nil {
		return err
	}

	tmpPath := tmp.Name()
	_ = os.Chmod(tmpPath, d.permF)

	if _, err := tmp.Write(data); err != nil {
		_ = tmp.Close()
		_ = os.Remove(tmpPath)

		return err
	}

	if err := tmp.Sync(); err != nil {
		_ = tmp.Close()
		_ = os.Remove(tmpPath)

		return err
	}

	if err := tmp.Close(); err != nil {
		_ = os.Remove(tmpPath)
		return err
	}

	if err := os.Rename(tmpPath, dest); err != nil {
		_ = os.Remove(tmpPath)
		return err
	}

	return nil
}

func (d *Dir) Remove(rel string) error {
	dest, err := d.mapPath(rel)
	if err != nil {
		return err
	}

	if err := os.Remove(dest); err != nil && !errors.Is(err, os.ErrNotExist) {
		return err
	}

	return nil
}

// Read returns the file at rel. Missing or unreadable files report false.
func (d *Dir) Read(rel string) ([]byte, bool) {
	src, err := d.mapPath(rel)
	if err != nil {
		return nil, false
	}

	data, err := os.ReadFile(src) //nolint:gosec // path is confined to the store root
	if err != nil {
		return nil, false
	}

	return data, true
}

// mapPath joins a validated relative path onto the root.
func (d *Dir) mapPath(rel string) (string, error) {
	cleaned, err := cleanRel(rel)
	if err != nil {
		return "", err
	}

	return filepath.Join(d.root, filepath.FromSlash(cleaned)), nil
}

// Ensure Dir implements the interface
var _ Store = (*Dir)(nil)
