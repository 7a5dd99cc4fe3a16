package frontend

// Config represents frontend configuration. The query form is served by
// the API server on its root path.
type Config struct {
	Enabled bool `yaml:"enabled" default:"true"`
}

// Validate validates the frontend configuration
func (c *Config) Validate() error {
	return nil
}
