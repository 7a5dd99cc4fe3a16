package swe

import (
	"context"
	"errors"
)

// ErrLibraryPathRequired is returned when no library path is configured
var ErrLibraryPathRequired = errors.New("ephemeris library path is required")

// Config holds engine library settings
type Config struct {
	LibraryPath string `yaml:"libraryPath" default:"libswe.so"`
}

// Validate validates the configuration
func (c *Config) Validate() error {
	if c.LibraryPath == "" {
		return ErrLibraryPathRequired
	}

	return nil
}

// LibraryLoader returns a Loader opening the configured library.
func (c *Config) LibraryLoader() Loader {
	path := c.LibraryPath

	return func(_ context.Context) (Library, error) {
		return Open(path)
	}
}
