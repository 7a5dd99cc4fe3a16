package query

import (
	"fmt"
	"time"

	"github.com/ethpandaops/ephemeris/pkg/hydrator"
	"github.com/google/uuid"
)

// ErrorDate marks a row the engine could not compute.
const ErrorDate = "ERROR"

// Stage names the part of a query that failed.
type Stage string

const (
	StageValidate Stage = "validate"
	StageEngine   Stage = "engine"
	StageHydrate  Stage = "hydrate"
	StageCompute  Stage = "compute"
)

// QueryError is a whole-query failure. Per-row engine errors are not
// QueryErrors; they become error rows.
type QueryError struct {
	Stage Stage
	Err   error
}

func (e *QueryError) Error() string {
	return fmt.Sprintf("query failed during %s: %v", e.Stage, e.Err)
}

func (e *QueryError) Unwrap() error {
	return e.Err
}

// Equatorial holds right ascension and declination in degrees.
type Equatorial struct {
	RA     float64 `json:"ra"`
	Dec    float64 `json:"dec"`
	RAHMS  string  `json:"ra_hms"`
	DecDMS string  `json:"dec_dms"`
}

// Horizontal holds azimuth (from north) and altitudes in degrees.
type Horizontal struct {
	Azimuth          float64 `json:"azimuth"`
	Altitude         float64 `json:"altitude"`
	ApparentAltitude float64 `json:"apparent_altitude"`
	AzimuthDMS       string  `json:"azimuth_dms"`
	AltitudeDMS      string  `json:"altitude_dms"`
}

// Row is one step of a query.
type Row struct {
	Step       int         `json:"step"`
	Date       string      `json:"date"`
	JulianDay  float64     `json:"jd"`
	Distance   float64     `json:"distance,omitempty"`
	Equatorial *Equatorial `json:"equatorial,omitempty"`
	Horizontal *Horizontal `json:"horizontal,omitempty"`
	Error      string      `json:"error,omitempty"`
}

// Failed reports whether the row is an error row.
func (r *Row) Failed() bool {
	return r.Date == ErrorDate
}

// ResultSet is the outcome of one query.
type ResultSet struct {
	ID        uuid.UUID          `json:"id"`
	Request   Request            `json:"request"`
	Mode      Mode               `json:"mode"`
	Calendar  string             `json:"calendar"`
	Segments  []hydrator.Outcome `json:"segments"`
	Rows      []Row              `json:"rows"`
	CreatedAt time.Time          `json:"created_at"`
}

// Errors returns the number of error rows.
func (rs *ResultSet) Errors() int {
	n := 0

	for i := range rs.Rows {
		if rs.Rows[i].Failed() {
			n++
		}
	}

	return n
}
