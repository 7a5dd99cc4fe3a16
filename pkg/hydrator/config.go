package hydrator

import "errors"

var (
	// ErrInvalidMinPayload is returned when the minimum payload size is not positive
	ErrInvalidMinPayload = errors.New("minPayloadBytes must be positive")
)

// Config holds hydration settings
type Config struct {
	MinPayloadBytes int    `yaml:"minPayloadBytes" default:"5120"`
	Manifest        string `yaml:"manifest" default:"ephemeris.manifest.json"`
}

// Validate validates the configuration
func (c *Config) Validate() error {
	if c.MinPayloadBytes <= 0 {
		return ErrInvalidMinPayload
	}

	return nil
}
