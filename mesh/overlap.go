package mesh

import (
	"fmt"
	"sort"
)

// DefaultMinOverlap is the number of shared beacons required before two
// scanners are considered to observe the same region.
const DefaultMinOverlap = 12

// Pair links a point index in the self frame to a point index in the other frame.
type Pair struct {
	Self  int
	Other int
}

// Correspondence is a set of matched point indexes ordered by Self.
type Correspondence []Pair

// Points resolves the correspondence against the two frames' point lists,
// returning equal-length slices in matched order.
func (c Correspondence) Points(self, other []Point) (src, dst []Point) {
	src = make([]Point, len(c))
	dst = make([]Point, len(c))
	for i, p := range c {
		src[i] = self[p.Self]
		dst[i] = other[p.Other]
	}
	return src, dst
}

// FindOverlap searches for a beacon seen in both frames. A row of self and a
// row of other are taken to describe the same beacon when each shares at
// least minOverlap distance values with the other. The first such pair of
// rows wins; every distance value the two rows share then pairs up the
// beacons at those distances.
//
// Candidates whose shared values repeat within a row are ambiguous and
// skipped. ErrNoOverlap is returned when no candidate exists at all, and an
// error wrapping ErrCorrespondenceCollision when only ambiguous ones do.
func FindOverlap(self, other *DistanceIndex, minOverlap int) (Correspondence, error) {
	var found Correspondence
	err := EachOverlap(self, other, minOverlap, func(c Correspondence) bool {
		found = c
		return false
	})
	if err != nil {
		return nil, err
	}
	return found, nil
}

// EachOverlap calls visit with every unambiguous candidate correspondence in
// row order until visit returns false. It returns nil once visit has stopped
// the scan, otherwise the same ErrNoOverlap or ErrCorrespondenceCollision
// FindOverlap would.
//
// A candidate can still be wrong when an unrelated beacon happens to sit at a
// shared distance, so callers that validate candidates use this to move on to
// the next one.
func EachOverlap(self, other *DistanceIndex, minOverlap int, visit func(Correspondence) bool) error {
	if minOverlap <= 0 {
		minOverlap = DefaultMinOverlap
	}
	if self.Len() < minOverlap || other.Len() < minOverlap {
		return ErrNoOverlap
	}

	ambiguous, visited := 0, 0
	for a := 0; a < self.Len(); a++ {
		rowA := self.Row(a)
		for b := 0; b < other.Len(); b++ {
			if sharedCount(rowA, other, b) < minOverlap {
				continue
			}
			if sharedCount(other.Row(b), self, a) < minOverlap {
				continue
			}
			c, ok := correspond(self, a, other, b)
			if !ok {
				ambiguous++
				continue
			}
			visited++
			if !visit(c) {
				return nil
			}
		}
	}

	switch {
	case visited > 0:
		return fmt.Errorf("%d candidate beacon(s) rejected: %w", visited, ErrNoOverlap)
	case ambiguous > 0:
		return fmt.Errorf("%d candidate beacon(s) skipped: %w", ambiguous, ErrCorrespondenceCollision)
	}
	return ErrNoOverlap
}

// sharedCount counts entries of row whose value also occurs in row i of idx.
func sharedCount(row []float64, idx *DistanceIndex, i int) int {
	n := 0
	for _, v := range row {
		if idx.Count(i, v) > 0 {
			n++
		}
	}
	return n
}

// correspond pairs columns of self row a and other row b by shared value.
// Returns false when a shared value is not unique in either row.
func correspond(self *DistanceIndex, a int, other *DistanceIndex, b int) (Correspondence, bool) {
	selfCol := make(map[float64]int, self.Len())
	for i, v := range self.Row(a) {
		selfCol[v] = i
	}

	var c Correspondence
	for j, v := range other.Row(b) {
		i, ok := selfCol[v]
		if !ok {
			continue
		}
		if self.Count(a, v) > 1 || other.Count(b, v) > 1 {
			return nil, false
		}
		c = append(c, Pair{Self: i, Other: j})
	}

	sort.Slice(c, func(x, y int) bool { return c[x].Self < c[y].Self })
	return c, true
}
