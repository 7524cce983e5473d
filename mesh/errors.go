package mesh

import (
	"errors"
	"fmt"
	"sort"
	"strings"
)

var (
	// ErrNoOverlap is returned when two distance indexes share no candidate
	// beacon meeting the overlap threshold. Callers retry on a later pass.
	ErrNoOverlap = errors.New("no overlapping beacons")

	// ErrCorrespondenceCollision is returned when every qualifying candidate
	// relies on a distance value that occurs more than once in a row.
	ErrCorrespondenceCollision = errors.New("ambiguous beacon correspondence")

	// ErrDegenerateTransform is returned when matched points do not determine
	// a unique axis-aligned rotation and integer translation.
	ErrDegenerateTransform = errors.New("degenerate transform")

	// ErrTooFewPoints is returned when a solve is attempted with too few pairs.
	ErrTooFewPoints = errors.New("too few matched points")

	// ErrUnresolvedScanner is returned when a scanner has no transform yet.
	ErrUnresolvedScanner = errors.New("scanner has no resolved transform")
)

// ParseError reports a malformed line in scanner input.
type ParseError struct {
	Line int
	Text string
	Err  error
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("line %d %q: %v", e.Line, e.Text, e.Err)
}

func (e *ParseError) Unwrap() error {
	return e.Err
}

// UnresolvableError is returned when an assembly pass integrates nothing while
// scanners remain pending, i.e. the overlap graph is not connected to the
// origin. Causes holds the last failure seen per pending scanner.
type UnresolvableError struct {
	Pending []string
	Causes  map[string]error
}

func (e *UnresolvableError) Error() string {
	names := append([]string(nil), e.Pending...)
	sort.Strings(names)
	return fmt.Sprintf("%d scanner(s) cannot be placed: %s", len(names), strings.Join(names, ", "))
}
