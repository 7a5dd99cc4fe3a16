//go:build !darwin && !linux && !freebsd

package swe

import "fmt"

// Open is not available on this platform.
func Open(path string) (Library, error) {
	return nil, fmt.Errorf("%w: %s", ErrUnsupportedPlatform, path)
}
