package query

import (
	"fmt"
	"math"

	"github.com/ethpandaops/ephemeris/pkg/swe"
)

const (
	centisPerDegree = 3600 * 100
	centisPerHour   = 3600 * 100
)

// FormatHMS formats an angle in degrees as hours, e.g. "05h 31m 20.74s".
// Rounding happens once, on hundredths of a second, so 59.999s carries.
func FormatHMS(degrees float64) string {
	hours := math.Mod(degrees/15, 24)
	if hours < 0 {
		hours += 24
	}

	centis := int64(math.Round(hours*centisPerHour)) % (24 * centisPerHour)

	h := centis / centisPerHour
	m := (centis / 6000) % 60
	s := float64(centis%6000) / 100

	return fmt.Sprintf("%02dh %02dm %05.2fs", h, m, s)
}

// FormatDMS formats degrees as "±DD° MM' SS.SS\"". Without a sign the value
// is printed as a three-digit bearing.
func FormatDMS(degrees float64, signed bool) string {
	sign := "+"
	if degrees < 0 {
		sign = "-"
		degrees = -degrees
	}

	centis := int64(math.Round(degrees * centisPerDegree))
	if !signed {
		centis %= 360 * centisPerDegree
	}

	d := centis / centisPerDegree
	m := (centis / 6000) % 60
	s := float64(centis%6000) / 100

	if !signed {
		return fmt.Sprintf("%03d° %02d' %05.2f\"", d, m, s)
	}

	return fmt.Sprintf("%s%02d° %02d' %05.2f\"", sign, d, m, s)
}

// FormatDate renders a reverse-converted date. Years are astronomical, so
// 1 BC is year 0.
func FormatDate(d swe.Date) string {
	minutes := int(math.Round(d.Hour * 60))
	if minutes >= 24*60 {
		minutes = 24*60 - 1
	}

	if minutes < 0 {
		minutes = 0
	}

	return fmt.Sprintf("%d-%02d-%02d %02d:%02d", d.Year, d.Month, d.Day, minutes/60, minutes%60)
}

// NorthAzimuth converts the engine's south-based azimuth to a bearing from north.
func NorthAzimuth(southBased float64) float64 {
	az := math.Mod(southBased+180, 360)
	if az < 0 {
		az += 360
	}

	return az
}
