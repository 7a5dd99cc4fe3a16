package query

import (
	"encoding/json"
	"errors"
	"fmt"
	"math"

	"github.com/ethpandaops/ephemeris/pkg/swe"
)

// GregorianReformYear is the first year interpreted on the Gregorian calendar.
const GregorianReformYear = 1582

var (
	// ErrInvalidRequest is wrapped by every request validation failure
	ErrInvalidRequest = errors.New("invalid query request")
)

// Mode selects the coordinate system of the result rows.
type Mode string

const (
	// ModeEquatorial returns right ascension and declination
	ModeEquatorial Mode = "equatorial"
	// ModeHorizontal returns azimuth and altitude for an observer
	ModeHorizontal Mode = "horizontal"
)

// Request is one position query. An Observer switches it to the horizontal
// variant.
type Request struct {
	Body       string          `json:"body" yaml:"body"`
	Year       int             `json:"year" yaml:"year"`
	Month      int             `json:"month" yaml:"month"`
	Day        int             `json:"day" yaml:"day"`
	Hour       float64         `json:"hour" yaml:"hour"`
	Steps      int             `json:"steps" yaml:"steps"`
	StepDays   float64         `json:"step_days" yaml:"stepDays"`
	Observer   *swe.Observer   `json:"observer,omitempty" yaml:"observer"`
	Atmosphere *swe.Atmosphere `json:"atmosphere,omitempty" yaml:"atmosphere"`
}

// Mode returns the coordinate system the request asks for.
func (r *Request) Mode() Mode {
	if r.Observer != nil {
		return ModeHorizontal
	}

	return ModeEquatorial
}

// Calendar returns Julian for years before the Gregorian reform.
func (r *Request) Calendar() swe.Calendar {
	return CalendarFor(r.Year)
}

// CalendarFor picks the calendar a year is interpreted in.
func CalendarFor(year int) swe.Calendar {
	if year < GregorianReformYear {
		return swe.Julian
	}

	return swe.Gregorian
}

// UnmarshalJSON defaults steps and step_days to one when they are absent.
// Explicit zeros are kept: zero steps yields no rows and a zero step size
// repeats the same instant.
func (r *Request) UnmarshalJSON(data []byte) error {
	type plain Request

	req := plain{Steps: 1, StepDays: 1}
	if err := json.Unmarshal(data, &req); err != nil {
		return err
	}

	*r = Request(req)

	return nil
}

// Normalize fills the standard atmosphere for the horizontal variant.
func (r *Request) Normalize() {
	if r.Observer != nil && r.Atmosphere == nil {
		r.Atmosphere = &swe.Atmosphere{Pressure: 1013.25, Temperature: 15}
	}
}

// Validate checks the request and returns the parsed body.
func (r *Request) Validate(maxSteps int) (swe.Body, error) {
	body, err := swe.ParseBody(r.Body)
	if err != nil {
		return 0, fmt.Errorf("%w: %v", ErrInvalidRequest, err)
	}

	switch {
	case r.Month < 1 || r.Month > 12:
		return 0, fmt.Errorf("%w: month %d out of range", ErrInvalidRequest, r.Month)
	case r.Day < 1 || r.Day > 31:
		return 0, fmt.Errorf("%w: day %d out of range", ErrInvalidRequest, r.Day)
	case r.Hour < 0 || r.Hour >= 24 || math.IsNaN(r.Hour):
		return 0, fmt.Errorf("%w: hour %v out of range", ErrInvalidRequest, r.Hour)
	case r.Steps < 0 || (maxSteps > 0 && r.Steps > maxSteps):
		return 0, fmt.Errorf("%w: steps must be between 0 and %d", ErrInvalidRequest, maxSteps)
	case r.StepDays < 0 || math.IsNaN(r.StepDays) || math.IsInf(r.StepDays, 0):
		return 0, fmt.Errorf("%w: step size must not be negative", ErrInvalidRequest)
	}

	if obs := r.Observer; obs != nil {
		if obs.Latitude < -90 || obs.Latitude > 90 {
			return 0, fmt.Errorf("%w: latitude %v out of range", ErrInvalidRequest, obs.Latitude)
		}

		if obs.Longitude < -180 || obs.Longitude > 180 {
			return 0, fmt.Errorf("%w: longitude %v out of range", ErrInvalidRequest, obs.Longitude)
		}
	}

	return body, nil
}
