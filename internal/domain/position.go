package domain

import (
	"fmt"
	"regexp"
	"strconv"
)

// Position locates a bottle inside a zone: row counted from the top,
// depth counted from the front. Stored structured; formatted only at the
// display boundary.
type Position struct {
	Row   int
	Depth int
}

var positionRe = regexp.MustCompile(`^R(\d+)-P(\d+)$`)

// String renders the display form, e.g. "R3-P2" for row 3, depth 2.
func (p Position) String() string {
	return fmt.Sprintf("R%d-P%d", p.Row, p.Depth)
}

// ParsePosition parses a display-form position label. The empty string is
// not a position; callers represent "no position" as a nil *Position.
func ParsePosition(s string) (Position, error) {
	m := positionRe.FindStringSubmatch(s)
	if m == nil {
		return Position{}, fmt.Errorf("invalid position %q", s)
	}
	row, err := strconv.Atoi(m[1])
	if err != nil {
		return Position{}, fmt.Errorf("invalid row in %q: %w", s, err)
	}
	depth, err := strconv.Atoi(m[2])
	if err != nil {
		return Position{}, fmt.Errorf("invalid depth in %q: %w", s, err)
	}
	return Position{Row: row, Depth: depth}, nil
}
