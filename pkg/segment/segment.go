// Package segment maps dates and bodies to the binary ephemeris files that cover them.
package segment

import (
	"fmt"
	"path"
	"strconv"
	"strings"

	"github.com/ethpandaops/ephemeris/pkg/swe"
)

const (
	// WindowYears is the number of years covered by one segment file
	WindowYears = 600
	// DefaultThresholdYear is the first year served by the engine's built-in data
	DefaultThresholdYear = 1800
	// Extension is the file extension the engine looks up
	Extension = ".se1"
)

// Class is a body-class file prefix.
type Class string

const (
	// ClassPlanetary covers the Sun, planets and Pluto
	ClassPlanetary Class = "sepl"
	// ClassLunar covers the Moon
	ClassLunar Class = "semo"
)

// ClassOf returns the segment family a body's positions are read from.
func ClassOf(body swe.Body) Class {
	if body == swe.Moon {
		return ClassLunar
	}

	return ClassPlanetary
}

// Ref identifies one segment: a body class and the first year of its window.
type Ref struct {
	Class Class `json:"class"`
	Start int   `json:"start"`
}

// End returns the first year after the window.
func (r Ref) End() int {
	return r.Start + WindowYears
}

// Covers reports whether year falls inside the window.
func (r Ref) Covers(year int) bool {
	return year >= r.Start && year < r.End()
}

// Era returns "m" for windows starting before year 0 and "_" otherwise.
func (r Ref) Era() string {
	if r.Start < 0 {
		return "m"
	}

	return "_"
}

// Block returns the two-digit block identifier, abs(start)/100.
func (r Ref) Block() string {
	start := r.Start
	if start < 0 {
		start = -start
	}

	return fmt.Sprintf("%02d", start/100)
}

// ID returns the canonical identifier, e.g. "seplm30" or "semo_12".
func (r Ref) ID() string {
	return string(r.Class) + r.Era() + r.Block()
}

func (r Ref) String() string {
	return fmt.Sprintf("%s[%d,%d)", r.ID(), r.Start, r.End())
}

// Aliases returns every resident file name the engine may look up for this
// segment. Negative windows are published both as "seplm30.se1" and
// "sepl_m30.se1"; positive windows already carry the underscore.
func (r Ref) Aliases() []string {
	canonical := r.ID() + Extension
	underscored := string(r.Class) + "_" + strings.TrimPrefix(r.Era(), "_") + r.Block() + Extension

	if underscored == canonical {
		return []string{canonical}
	}

	return []string{canonical, underscored}
}

// ResidentPaths returns every alias under every staging directory, relative
// to the resident store root. An empty dir means the root itself.
func (r Ref) ResidentPaths(dirs []string) []string {
	aliases := r.Aliases()
	paths := make([]string, 0, len(aliases)*len(dirs))

	for _, dir := range dirs {
		for _, alias := range aliases {
			paths = append(paths, path.Join(dir, alias))
		}
	}

	return paths
}

// ParseID parses a canonical identifier back into a Ref.
func ParseID(id string) (Ref, error) {
	id = strings.TrimSuffix(strings.TrimSpace(id), Extension)

	var class Class
	switch {
	case strings.HasPrefix(id, string(ClassPlanetary)):
		class = ClassPlanetary
	case strings.HasPrefix(id, string(ClassLunar)):
		class = ClassLunar
	default:
		return Ref{}, fmt.Errorf("%w: %q", ErrInvalidID, id)
	}

	rest := strings.TrimPrefix(strings.TrimPrefix(id, string(class)), "_")

	sign := 1
	if strings.HasPrefix(rest, "m") {
		sign = -1
		rest = rest[1:]
	}

	if len(rest) < 2 || len(rest) > 3 || strings.Trim(rest, "0123456789") != "" {
		return Ref{}, fmt.Errorf("%w: %q", ErrInvalidID, id)
	}

	block, err := strconv.Atoi(rest)
	if err != nil {
		return Ref{}, fmt.Errorf("%w: %q", ErrInvalidID, id)
	}

	start := sign * block * 100
	if floorDiv(start, WindowYears)*WindowYears != start {
		return Ref{}, fmt.Errorf("%w: %q is not on a window boundary", ErrInvalidID, id)
	}

	return Ref{Class: class, Start: start}, nil
}
