package query

import (
	"encoding/csv"
	"io"
	"strconv"
)

//nolint:gochecknoglobals // fixed export headers
var (
	equatorialHeader = []string{"Date", "JD", "RA", "Dec", "Dist", "RA_hms", "Dec_dms"}
	horizontalHeader = []string{"Date", "JD", "Az", "Alt", "Dist", "Az_dms", "Alt_dms"}
)

// WriteCSV exports rs. Error rows are omitted.
func WriteCSV(w io.Writer, rs *ResultSet) error {
	cw := csv.NewWriter(w)

	header := equatorialHeader
	if rs.Mode == ModeHorizontal {
		header = horizontalHeader
	}

	if err := cw.Write(header); err != nil {
		return err
	}

	for i := range rs.Rows {
		row := &rs.Rows[i]
		if row.Failed() {
			continue
		}

		record := []string{row.Date, formatFloat(row.JulianDay, 6)}

		switch {
		case rs.Mode == ModeHorizontal && row.Horizontal != nil:
			record = append(record,
				formatFloat(row.Horizontal.Azimuth, 6),
				formatFloat(row.Horizontal.Altitude, 6),
				formatFloat(row.Distance, 8),
				row.Horizontal.AzimuthDMS,
				row.Horizontal.AltitudeDMS,
			)
		case row.Equatorial != nil:
			record = append(record,
				formatFloat(row.Equatorial.RA, 6),
				formatFloat(row.Equatorial.Dec, 6),
				formatFloat(row.Distance, 8),
				row.Equatorial.RAHMS,
				row.Equatorial.DecDMS,
			)
		default:
			continue
		}

		if err := cw.Write(record); err != nil {
			return err
		}
	}

	cw.Flush()

	return cw.Error()
}

func formatFloat(v float64, prec int) string {
	return strconv.FormatFloat(v, 'f', prec, 64)
}
