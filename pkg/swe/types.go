// Package swe wraps the Swiss Ephemeris shared library behind a typed bridge.
package swe

import (
	"errors"
	"fmt"
	"strings"
)

var (
	// ErrEngineUninitialized is returned for any call made before the engine finished loading
	ErrEngineUninitialized = errors.New("ephemeris engine is not initialized")
	// ErrSymbolMissing is returned when a required primitive is not exported by the library
	ErrSymbolMissing = errors.New("ephemeris library is missing a required primitive")
	// ErrUnsupportedPlatform is returned when the library cannot be loaded on this OS
	ErrUnsupportedPlatform = errors.New("ephemeris library loading is not supported on this platform")
	// ErrUnknownBody is returned when a body name cannot be parsed
	ErrUnknownBody = errors.New("unknown body")
)

// Calendar selects Julian or Gregorian date interpretation.
type Calendar int32

const (
	// Julian is SE_JUL_CAL
	Julian Calendar = 0
	// Gregorian is SE_GREG_CAL
	Gregorian Calendar = 1
)

func (c Calendar) String() string {
	if c == Julian {
		return "julian"
	}

	return "gregorian"
}

// Body is a Swiss Ephemeris body number.
type Body int32

// Major bodies supported by the planetary and lunar segment files.
const (
	Sun     Body = 0
	Moon    Body = 1
	Mercury Body = 2
	Venus   Body = 3
	Mars    Body = 4
	Jupiter Body = 5
	Saturn  Body = 6
	Uranus  Body = 7
	Neptune Body = 8
	Pluto   Body = 9
)

//nolint:gochecknoglobals // static lookup table
var bodyNames = map[Body]string{
	Sun:     "sun",
	Moon:    "moon",
	Mercury: "mercury",
	Venus:   "venus",
	Mars:    "mars",
	Jupiter: "jupiter",
	Saturn:  "saturn",
	Uranus:  "uranus",
	Neptune: "neptune",
	Pluto:   "pluto",
}

func (b Body) String() string {
	if name, ok := bodyNames[b]; ok {
		return name
	}

	return fmt.Sprintf("body(%d)", int32(b))
}

// Valid reports whether the body is one of the supported major bodies.
func (b Body) Valid() bool {
	_, ok := bodyNames[b]
	return ok
}

// ParseBody parses a body by name (case-insensitive).
func ParseBody(name string) (Body, error) {
	name = strings.ToLower(strings.TrimSpace(name))
	for body, n := range bodyNames {
		if n == name {
			return body, nil
		}
	}

	return 0, fmt.Errorf("%w: %q", ErrUnknownBody, name)
}

// Bodies returns every supported body in ascending order.
func Bodies() []Body {
	return []Body{Sun, Moon, Mercury, Venus, Mars, Jupiter, Saturn, Uranus, Neptune, Pluto}
}

// Flag is a bitmask passed to the position primitive.
type Flag int32

const (
	// FlagSwissEph selects the Swiss Ephemeris data files (SEFLG_SWIEPH)
	FlagSwissEph Flag = 2
	// FlagSpeed requests speed values (SEFLG_SPEED)
	FlagSpeed Flag = 256
	// FlagEquatorial returns right ascension/declination (SEFLG_EQUATORIAL)
	FlagEquatorial Flag = 2048
	// FlagTopocentric computes relative to the configured observer (SEFLG_TOPOCTR)
	FlagTopocentric Flag = 32 * 1024
)

// HorizonMode selects the input coordinate system of the horizon transform.
type HorizonMode int32

const (
	// EclipticToHorizon is SE_ECL2HOR
	EclipticToHorizon HorizonMode = 0
	// EquatorialToHorizon is SE_EQU2HOR
	EquatorialToHorizon HorizonMode = 1
)

// Date is a calendar date with a fractional hour.
type Date struct {
	Year  int     `json:"year"`
	Month int     `json:"month"`
	Day   int     `json:"day"`
	Hour  float64 `json:"hour"`
}

// Position holds the six values returned by the position primitive.
// With FlagEquatorial set the first three are right ascension, declination
// (degrees) and distance (AU); the last three are their speeds.
type Position [6]float64

// Observer is a geographic location; longitude east positive, altitude in metres.
type Observer struct {
	Longitude float64 `json:"longitude" yaml:"longitude"`
	Latitude  float64 `json:"latitude" yaml:"latitude"`
	Altitude  float64 `json:"altitude" yaml:"altitude"`
}

// Atmosphere feeds the refraction model of the horizon transform.
type Atmosphere struct {
	Pressure    float64 `json:"pressure" yaml:"pressure"`       // hPa, 0 lets the engine estimate it
	Temperature float64 `json:"temperature" yaml:"temperature"` // °C
}

// Horizon is the result of the horizon transform. Azimuth is measured from
// south, clockwise through west, as the engine returns it.
type Horizon struct {
	Azimuth          float64 `json:"azimuth"`
	TrueAltitude     float64 `json:"true_altitude"`
	ApparentAltitude float64 `json:"apparent_altitude"`
}

// CalculationError carries a negative status returned by the position primitive.
type CalculationError struct {
	Status  int32
	Message string
}

func (e *CalculationError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("calculation failed with status %d", e.Status)
	}

	return fmt.Sprintf("calculation failed with status %d: %s", e.Status, e.Message)
}

// Engine is the set of primitives available inside a bridge session.
type Engine interface {
	JulianDay(date Date, cal Calendar) float64
	Position(jd float64, body Body, flags Flag) (Position, error)
	ReverseJulian(jd float64, cal Calendar) Date
	SetObserver(obs Observer)
	HorizonTransform(jd float64, mode HorizonMode, obs Observer, atm Atmosphere, in [3]float64) Horizon
}

// Library is a loaded engine instance, including its global search path.
type Library interface {
	Engine
	SetSearchPath(path string)
	Close() error
}
