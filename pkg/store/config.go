package store

import (
	"errors"
	"strings"
)

var (
	// ErrRootRequired is returned when no store root is configured
	ErrRootRequired = errors.New("store root is required")
	// ErrSubdirInvalid is returned when the subdirectory escapes the root
	ErrSubdirInvalid = errors.New("store subdirectory must be a relative name inside the root")
)

// Config holds resident store settings
type Config struct {
	Root   string `yaml:"root" default:"./data/ephe"`
	Subdir string `yaml:"subdir" default:"ephe"`
}

// Validate validates the configuration
func (c *Config) Validate() error {
	if c.Root == "" {
		return ErrRootRequired
	}

	if c.Subdir != "" {
		if _, err := cleanRel(c.Subdir); err != nil || strings.Contains(c.Subdir, "..") {
			return ErrSubdirInvalid
		}
	}

	return nil
}
