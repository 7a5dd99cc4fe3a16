package segment

import (
	"errors"

	"github.com/ethpandaops/ephemeris/pkg/swe"
)

// ErrInvalidID is returned when a segment identifier cannot be parsed
var ErrInvalidID = errors.New("invalid segment identifier")

// Resolver decides which segment, if any, a date needs.
type Resolver struct {
	threshold int
}

// NewResolver creates a resolver. Years at or above threshold use the
// engine's built-in data and need no segment.
func NewResolver(threshold int) *Resolver {
	return &Resolver{threshold: threshold}
}

// Threshold returns the first year served by built-in data.
func (r *Resolver) Threshold() int {
	return r.threshold
}

// Resolve returns the segment covering year for body, or false when the
// built-in data already covers it. A year on a window boundary belongs to
// the window starting there.
func (r *Resolver) Resolve(year int, body swe.Body) (Ref, bool) {
	if year >= r.threshold {
		return Ref{}, false
	}

	return Ref{
		Class: ClassOf(body),
		Start: floorDiv(year, WindowYears) * WindowYears,
	}, true
}

// Span returns every segment needed for the years between from and to
// inclusive, in ascending order. The bounds may be given in either order.
func (r *Resolver) Span(from, to int, body swe.Body) []Ref {
	if from > to {
		from, to = to, from
	}

	var refs []Ref

	for year := from; year <= to; {
		ref, ok := r.Resolve(year, body)
		if !ok {
			break
		}

		refs = append(refs, ref)
		year = ref.End()
	}

	return refs
}

// floorDiv divides rounding toward negative infinity.
func floorDiv(a, b int) int {
	q := a / b
	if (a%b != 0) && ((a < 0) != (b < 0)) {
		q--
	}

	return q
}
