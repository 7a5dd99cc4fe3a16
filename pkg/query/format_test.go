package query

import (
	"testing"

	"github.com/ethpandaops/ephemeris/pkg/swe"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFormatHMS(t *testing.T) {
	tests := []struct {
		name     string
		degrees  float64
		expected string
	}{
		{name: "zero", degrees: 0, expected: "00h 00m 00.00s"},
		{name: "six hours", degrees: 90, expected: "06h 00m 00.00s"},
		{name: "fractional", degrees: 83.6331, expected: "05h 34m 31.94s"},
		{name: "carries rounding into minutes", degrees: 15 * (59.99999 / 3600), expected: "00h 01m 00.00s"},
		{name: "wraps at 24h", degrees: 359.99999999, expected: "00h 00m 00.00s"},
		{name: "negative wraps", degrees: -15, expected: "23h 00m 00.00s"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, FormatHMS(tt.degrees))
		})
	}
}

func TestFormatDMS(t *testing.T) {
	tests := []struct {
		name     string
		degrees  float64
		signed   bool
		expected string
	}{
		{name: "positive", degrees: 23.4392911, signed: true, expected: `+23° 26' 21.45"`},
		{name: "negative", degrees: -5.5, signed: true, expected: `-05° 30' 00.00"`},
		{name: "zero is positive", degrees: 0, signed: true, expected: `+00° 00' 00.00"`},
		{name: "rounding carries", degrees: 10.9999999, signed: true, expected: `+11° 00' 00.00"`},
		{name: "bearing", degrees: 271.25, signed: false, expected: `271° 15' 00.00"`},
		{name: "small bearing padded", degrees: 5, signed: false, expected: `005° 00' 00.00"`},
		{name: "bearing rounding wraps at 360", degrees: 359.9999999, signed: false, expected: `000° 00' 00.00"`},
		{name: "full turn bearing", degrees: 360, signed: false, expected: `000° 00' 00.00"`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, FormatDMS(tt.degrees, tt.signed))
		})
	}
}

func TestFormatDate(t *testing.T) {
	assert.Equal(t, "-2500-01-01 00:00", FormatDate(swe.Date{Year: -2500, Month: 1, Day: 1}))
	assert.Equal(t, "2024-03-20 12:30", FormatDate(swe.Date{Year: 2024, Month: 3, Day: 20, Hour: 12.5}))
	assert.Equal(t, "2024-03-20 23:59", FormatDate(swe.Date{Year: 2024, Month: 3, Day: 20, Hour: 23.9999}))
}

func TestNorthAzimuth(t *testing.T) {
	assert.InDelta(t, 180.0, NorthAzimuth(0), 1e-9)
	assert.InDelta(t, 0.0, NorthAzimuth(180), 1e-9)
	assert.InDelta(t, 90.0, NorthAzimuth(270), 1e-9)
	assert.InDelta(t, 170.0, NorthAzimuth(-10), 1e-9)
}

func TestCalendarFor(t *testing.T) {
	assert.Equal(t, swe.Julian, CalendarFor(-2500))
	assert.Equal(t, swe.Julian, CalendarFor(1581))
	assert.Equal(t, swe.Gregorian, CalendarFor(1582))
	assert.Equal(t, swe.Gregorian, CalendarFor(2024))
}

func TestRequest_Normalize(t *testing.T) {
	req := Request{Steps: 3, Observer: &swe.Observer{}}
	req.Normalize()

	assert.Equal(t, 3, req.Steps)
	assert.InDelta(t, 0.0, req.StepDays, 0, "zero step size kept")
	require.NotNil(t, req.Atmosphere)
	assert.InDelta(t, 1013.25, req.Atmosphere.Pressure, 0)
	assert.Equal(t, ModeHorizontal, req.Mode())
}
