package testutil

import (
	"context"
	"math"
	"sync"

	"github.com/ethpandaops/ephemeris/pkg/swe"
)

// FakeEngine is an in-process swe.Library. Date conversion follows the
// standard Julian day algorithm for both calendars; positions are a smooth
// deterministic function of the Julian day and body.
type FakeEngine struct {
	mu sync.Mutex

	// Fail returns the status and message for a position call, or 0 for success.
	Fail func(jd float64, body swe.Body) (int32, string)

	searchPaths []string
	observers   []swe.Observer
	calendars   []swe.Calendar
	positions   int
	closed      bool
}

// NewFakeEngine returns an engine that never fails.
func NewFakeEngine() *FakeEngine {
	return &FakeEngine{}
}

// Loader returns a swe.Loader that yields this engine.
func (f *FakeEngine) Loader() swe.Loader {
	return func(context.Context) (swe.Library, error) {
		return f, nil
	}
}

func (f *FakeEngine) JulianDay(date swe.Date, cal swe.Calendar) float64 {
	f.mu.Lock()
	f.calendars = append(f.calendars, cal)
	f.mu.Unlock()

	return JulianDay(date, cal)
}

func (f *FakeEngine) Position(jd float64, body swe.Body, _ swe.Flag) (swe.Position, error) {
	f.mu.Lock()
	f.positions++
	fail := f.Fail
	f.mu.Unlock()

	if fail != nil {
		if status, msg := fail(jd, body); status < 0 {
			return swe.Position{}, &swe.CalculationError{Status: status, Message: msg}
		}
	}

	ra := math.Mod(jd*(0.9856+float64(body)*0.1), 360)
	if ra < 0 {
		ra += 360
	}

	dec := 23.44 * math.Sin(jd/365.25+float64(body))

	return swe.Position{ra, dec, 1 + float64(body)*0.5, 0.98, 0.01, 0}, nil
}

func (f *FakeEngine) ReverseJulian(jd float64, cal swe.Calendar) swe.Date {
	return ReverseJulian(jd, cal)
}

func (f *FakeEngine) SetObserver(obs swe.Observer) {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.observers = append(f.observers, obs)
}

func (f *FakeEngine) HorizonTransform(_ float64, _ swe.HorizonMode, obs swe.Observer, _ swe.Atmosphere, in [3]float64) swe.Horizon {
	alt := in[1] - obs.Latitude/2

	return swe.Horizon{
		Azimuth:          math.Mod(in[0]+obs.Longitude+360, 360),
		TrueAltitude:     alt,
		ApparentAltitude: alt + 0.5,
	}
}

func (f *FakeEngine) SetSearchPath(path string) {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.searchPaths = append(f.searchPaths, path)
}

func (f *FakeEngine) Close() error {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.closed = true

	return nil
}

// SearchPaths returns every search path set, in order.
func (f *FakeEngine) SearchPaths() []string {
	f.mu.Lock()
	defer f.mu.Unlock()

	return append([]string(nil), f.searchPaths...)
}

// Calendars returns the calendar of every JulianDay call.
func (f *FakeEngine) Calendars() []swe.Calendar {
	f.mu.Lock()
	defer f.mu.Unlock()

	return append([]swe.Calendar(nil), f.calendars...)
}

// Observers returns every observer set.
func (f *FakeEngine) Observers() []swe.Observer {
	f.mu.Lock()
	defer f.mu.Unlock()

	return append([]swe.Observer(nil), f.observers...)
}

// Positions returns the number of position calls.
func (f *FakeEngine) Positions() int {
	f.mu.Lock()
	defer f.mu.Unlock()

	return f.positions
}

// Closed reports whether Close was called.
func (f *FakeEngine) Closed() bool {
	f.mu.Lock()
	defer f.mu.Unlock()

	return f.closed
}

// JulianDay converts a date to a Julian day number.
func JulianDay(d swe.Date, cal swe.Calendar) float64 {
	y := float64(d.Year)
	m := float64(d.Month)

	if d.Month <= 2 {
		y--
		m += 12
	}

	b := 0.0
	if cal == swe.Gregorian {
		a := math.Floor(y / 100)
		b = 2 - a + math.Floor(a/4)
	}

	return math.Floor(365.25*(y+4716)) + math.Floor(30.6001*(m+1)) + float64(d.Day) + b - 1524.5 + d.Hour/24
}

// ReverseJulian converts a Julian day number back to a date.
func ReverseJulian(jd float64, cal swe.Calendar) swe.Date {
	jd += 0.5
	z := math.Floor(jd)
	f := jd - z

	a := z
	if cal == swe.Gregorian {
		alpha := math.Floor((z - 1867216.25) / 36524.25)
		a = z + 1 + alpha - math.Floor(alpha/4)
	}

	b := a + 1524
	c := math.Floor((b - 122.1) / 365.25)
	d := math.Floor(365.25 * c)
	e := math.Floor((b - d) / 30.6001)

	dayf := b - d - math.Floor(30.6001*e) + f
	day := math.Floor(dayf)

	month := e - 1
	if e >= 14 {
		month = e - 13
	}

	year := c - 4716
	if month <= 2 {
		year = c - 4715
	}

	return swe.Date{Year: int(year), Month: int(month), Day: int(day), Hour: (dayf - day) * 24}
}

// Ensure FakeEngine implements the interface
var _ swe.Library = (*FakeEngine)(nil)
