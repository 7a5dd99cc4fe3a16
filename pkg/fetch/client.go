// Package fetch retrieves segment payloads from remote stores.
package fetch

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"text/template"

	"github.com/Masterminds/sprig/v3"
	"github.com/ethpandaops/ephemeris/pkg/segment"
	"github.com/sirupsen/logrus"
)

var (
	// ErrMalformedPayload is returned for a payload that cannot be a segment
	ErrMalformedPayload = errors.New("malformed segment payload")
	// ErrTooManyRedirects is returned when a location redirects too often
	ErrTooManyRedirects = errors.New("too many redirects")
)

// StatusError reports a non-200 response from a location.
type StatusError struct {
	Location   string
	StatusCode int
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("server responded with %d for %s", e.StatusCode, e.Location)
}

// Client renders segment locations and downloads payloads.
type Client struct {
	log        logrus.FieldLogger
	cfg        *Config
	httpClient *http.Client
	templates  []*template.Template
}

// NewClient creates a client. The configuration is validated first.
func NewClient(log logrus.FieldLogger, cfg *Config) (*Client, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	templates := make([]*template.Template, 0, len(cfg.Templates))

	for i, text := range cfg.Templates {
		tmpl, err := template.New(fmt.Sprintf("location-%d", i)).
			Funcs(sprig.TxtFuncMap()).
			Option("missingkey=error").
			Parse(text)
		if err != nil {
			return nil, fmt.Errorf("failed to parse location template %q: %w", text, err)
		}

		templates = append(templates, tmpl)
	}

	maxRedirects := cfg.MaxRedirects

	return &Client{
		log: log.WithField("component", "fetch"),
		cfg: cfg,
		httpClient: &http.Client{
			CheckRedirect: func(_ *http.Request, via []*http.Request) error {
				if len(via) > maxRedirects {
					return ErrTooManyRedirects
				}

				return nil
			},
		},
		templates: templates,
	}, nil
}

// locationVars is the data every location template is rendered with
type locationVars struct {
	Base   string
	Prefix string
	Era    string
	Block  string
	ID     string
}

// Locations returns the ordered, de-duplicated candidate URLs for ref. Base
// URLs are tried in configured order, each with every template.
func (c *Client) Locations(ref segment.Ref) ([]string, error) {
	seen := make(map[string]struct{})
	locations := make([]string, 0, len(c.cfg.BaseURLs)*len(c.templates))

	for _, base := range c.cfg.BaseURLs {
		vars := locationVars{
			Base:   strings.TrimRight(base, "/"),
			Prefix: string(ref.Class),
			Era:    ref.Era(),
			Block:  ref.Block(),
			ID:     ref.ID(),
		}

		for _, tmpl := range c.templates {
			var buf bytes.Buffer
			if err := tmpl.Execute(&buf, vars); err != nil {
				return nil, fmt.Errorf("failed to render location %s: %w", tmpl.Name(), err)
			}

			location := strings.TrimSpace(buf.String())
			if _, ok := seen[location]; ok {
				continue
			}

			seen[location] = struct{}{}
			locations = append(locations, location)
		}
	}

	return locations, nil
}

// Fetch downloads one location. Only a 200 response is a success; the body
// is capped at the configured maximum.
func (c *Client) Fetch(ctx context.Context, location string) ([]byte, error) {
	if c.cfg.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.cfg.Timeout)

		defer cancel()
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, location, http.NoBody)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}

	req.Header.Set("User-Agent", c.cfg.UserAgent)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("send request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 4096))
		return nil, &StatusError{Location: location, StatusCode: resp.StatusCode}
	}

	data, err := io.ReadAll(io.LimitReader(resp.Body, c.cfg.MaxPayloadBytes+1))
	if err != nil {
		return nil, fmt.Errorf("read response: %w", err)
	}

	if int64(len(data)) > c.cfg.MaxPayloadBytes {
		return nil, fmt.Errorf("%w: larger than %d bytes", ErrMalformedPayload, c.cfg.MaxPayloadBytes)
	}

	c.log.WithFields(logrus.Fields{
		"location": location,
		"bytes":    len(data),
	}).Debug("Fetched segment payload")

	return data, nil
}

// CheckPayload rejects payloads shorter than minBytes. Error pages served
// with a 200 status are far smaller than any real segment.
func CheckPayload(data []byte, minBytes int) error {
	if len(data) < minBytes {
		return fmt.Errorf("%w: %d bytes, expected at least %d", ErrMalformedPayload, len(data), minBytes)
	}

	return nil
}
