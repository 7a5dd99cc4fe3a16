package query

import "errors"

var (
	// ErrInvalidMaxSteps is returned when MaxSteps is not positive
	ErrInvalidMaxSteps = errors.New("maxSteps must be positive")
)

// Config holds query limits
type Config struct {
	MaxSteps             int `yaml:"maxSteps" default:"10000"`
	HydrationConcurrency int `yaml:"hydrationConcurrency" default:"4"`
}

// Validate validates the configuration
func (c *Config) Validate() error {
	if c.MaxSteps <= 0 {
		return ErrInvalidMaxSteps
	}

	return nil
}
