package segcache

import (
	"errors"
	"time"
)

var (
	// ErrInvalidTTL is returned for a negative payload TTL
	ErrInvalidTTL = errors.New("ttl must not be negative")
	// ErrInvalidLockTTL is returned when the lock TTL is not positive
	ErrInvalidLockTTL = errors.New("lockTtl must be positive")
)

// Config holds payload cache settings. The cache is only used when Redis is configured.
type Config struct {
	Enabled bool          `yaml:"enabled" default:"true"`
	TTL     time.Duration `yaml:"ttl" default:"168h"`
	LockTTL time.Duration `yaml:"lockTtl" default:"2m"`
}

// Validate validates the configuration
func (c *Config) Validate() error {
	if c.TTL < 0 {
		return ErrInvalidTTL
	}

	if c.LockTTL <= 0 {
		return ErrInvalidLockTTL
	}

	return nil
}
