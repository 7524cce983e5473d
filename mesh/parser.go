package mesh

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
)

// ParseScannerFile reads and parses a scanner report file
func ParseScannerFile(path string) ([]*Scanner, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("reading file: %w", err)
	}
	defer func() { _ = f.Close() }()
	return ParseScanners(f)
}

// ParseScanners parses scanner reports: blocks separated by blank lines, each
// starting with a "--- scanner N ---" header followed by one "x,y,z" line per
// beacon. The scanner name is the header with the dashes trimmed and must be
// unique within the input.
func ParseScanners(r io.Reader) ([]*Scanner, error) {
	var (
		scanners []*Scanner
		name     string
		beacons  []Point
		inBlock  bool
		seen     = make(map[string]int)
	)

	flush := func() {
		if inBlock {
			scanners = append(scanners, NewScanner(name, beacons))
		}
		name, beacons, inBlock = "", nil, false
	}

	sc := bufio.NewScanner(r)
	lineNo := 0
	for sc.Scan() {
		lineNo++
		line := strings.TrimSpace(sc.Text())
		switch {
		case line == "":
			flush()
		case strings.HasPrefix(line, "---"):
			if inBlock {
				flush()
			}
			name = strings.TrimSpace(strings.Trim(line, "-"))
			if name == "" {
				return nil, &ParseError{Line: lineNo, Text: line, Err: errors.New("empty scanner header")}
			}
			if first, ok := seen[name]; ok {
				return nil, &ParseError{Line: lineNo, Text: line, Err: fmt.Errorf("duplicate scanner name %q, first declared on line %d", name, first)}
			}
			seen[name] = lineNo
			inBlock = true
		default:
			if !inBlock {
				return nil, &ParseError{Line: lineNo, Text: line, Err: errors.New("beacon before scanner header")}
			}
			p, err := parsePoint(line)
			if err != nil {
				return nil, &ParseError{Line: lineNo, Text: line, Err: err}
			}
			beacons = append(beacons, p)
		}
	}
	if err := sc.Err(); err != nil {
		return nil, fmt.Errorf("scanning input: %w", err)
	}
	flush()

	return scanners, nil
}

func parsePoint(line string) (Point, error) {
	fields := strings.Split(line, ",")
	if len(fields) != 3 {
		return Point{}, fmt.Errorf("expected 3 coordinates, got %d", len(fields))
	}
	var v [3]int
	for i, f := range fields {
		n, err := strconv.Atoi(strings.TrimSpace(f))
		if err != nil {
			return Point{}, fmt.Errorf("coordinate %d: %w", i+1, err)
		}
		v[i] = n
	}
	return Point{X: v[0], Y: v[1], Z: v[2]}, nil
}
