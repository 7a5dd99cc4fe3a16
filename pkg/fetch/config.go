package fetch

import (
	"errors"
	"net/url"
	"time"
)

// DefaultBaseURL is the public Astrodienst segment archive
const DefaultBaseURL = "https://www.astro.com/ftp/swisseph/ephe"

// DefaultTemplates cover both resident spellings, with and without the
// ".bin" suffix some mirrors publish.
var DefaultTemplates = []string{ //nolint:gochecknoglobals // default location list
	`{{ .Base }}/{{ .ID }}.se1`,
	`{{ .Base }}/{{ .Prefix }}_{{ .Era | trimPrefix "_" }}{{ .Block }}.se1`,
	`{{ .Base }}/{{ .ID }}.se1.bin`,
	`{{ .Base }}/{{ .Prefix }}_{{ .Era | trimPrefix "_" }}{{ .Block }}.se1.bin`,
}

var (
	// ErrInvalidBaseURL is returned when a base URL is not absolute http(s)
	ErrInvalidBaseURL = errors.New("base URL must be an absolute http or https URL")
	// ErrInvalidTimeout is returned for a negative timeout
	ErrInvalidTimeout = errors.New("timeout must not be negative")
	// ErrInvalidMaxPayload is returned when the payload ceiling is not positive
	ErrInvalidMaxPayload = errors.New("maxPayloadBytes must be positive")
)

// Config holds remote segment store settings
type Config struct {
	BaseURLs        []string      `yaml:"baseUrls"`
	Templates       []string      `yaml:"templates"`
	Timeout         time.Duration `yaml:"timeout" default:"60s"`
	UserAgent       string        `yaml:"userAgent" default:"ephemeris"`
	MaxPayloadBytes int64         `yaml:"maxPayloadBytes" default:"67108864"`
	MaxRedirects    int           `yaml:"maxRedirects" default:"5"`
}

// Validate validates the configuration and fills in the default locations
func (c *Config) Validate() error {
	if len(c.BaseURLs) == 0 {
		c.BaseURLs = []string{DefaultBaseURL}
	}

	if len(c.Templates) == 0 {
		c.Templates = append([]string(nil), DefaultTemplates...)
	}

	for _, base := range c.BaseURLs {
		u, err := url.Parse(base)
		if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
			return ErrInvalidBaseURL
		}
	}

	if c.Timeout < 0 {
		return ErrInvalidTimeout
	}

	if c.MaxPayloadBytes <= 0 {
		return ErrInvalidMaxPayload
	}

	return nil
}
