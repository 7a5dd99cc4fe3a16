package segment

import "errors"

// ErrThresholdOutOfRange is returned when the threshold year is implausible
var ErrThresholdOutOfRange = errors.New("threshold year must be between -13200 and 17100")

// Config holds segment resolution settings
type Config struct {
	// First year covered by the engine's always-resident data
	ThresholdYear int `yaml:"thresholdYear" default:"1800"`
}

// Validate validates the configuration
func (c *Config) Validate() error {
	// The published segment files span 13201 BC to AD 17191.
	if c.ThresholdYear < -13200 || c.ThresholdYear > 17100 {
		return ErrThresholdOutOfRange
	}

	return nil
}
