package hydrator

import (
	"errors"
	"fmt"
	"strings"

	"github.com/ethpandaops/ephemeris/pkg/segment"
)

var (
	// ErrDataUnavailable is matched by every DataUnavailableError
	ErrDataUnavailable = errors.New("segment data unavailable")
	// ErrNoLocations is matched by a DataUnavailableError that had no remote
	// location to try
	ErrNoLocations = errors.New("no remote locations for segment")
)

// Attempt is one failed remote location.
type Attempt struct {
	Location string
	Err      error
}

func (a Attempt) String() string {
	return fmt.Sprintf("%s: %v", a.Location, a.Err)
}

// DataUnavailableError reports a segment that no location could provide.
type DataUnavailableError struct {
	Segment  segment.Ref
	Attempts []Attempt
}

func (e *DataUnavailableError) Error() string {
	if len(e.Attempts) == 0 {
		return fmt.Sprintf("segment %s unavailable: %v", e.Segment.ID(), ErrNoLocations)
	}

	parts := make([]string, 0, len(e.Attempts))
	for _, a := range e.Attempts {
		parts = append(parts, a.String())
	}

	return fmt.Sprintf("segment %s unavailable after %d attempts: %s",
		e.Segment.ID(), len(e.Attempts), strings.Join(parts, "; "))
}

// Is makes errors.Is(err, ErrDataUnavailable) true, and ErrNoLocations too
// when nothing was attempted.
func (e *DataUnavailableError) Is(target error) bool {
	switch target {
	case ErrDataUnavailable:
		return true
	case ErrNoLocations:
		return len(e.Attempts) == 0
	default:
		return false
	}
}
