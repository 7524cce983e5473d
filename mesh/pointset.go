package mesh

// PointSet is an ordered collection of unique points. Insertion order is
// preserved so distance index rows stay stable across merges.
type PointSet struct {
	points []Point
	seen   map[Point]struct{}
}

// NewPointSet creates a set from points, dropping duplicates.
func NewPointSet(points ...Point) *PointSet {
	ps := &PointSet{
		points: make([]Point, 0, len(points)),
		seen:   make(map[Point]struct{}, len(points)),
	}
	ps.Merge(points)
	return ps
}

// Merge inserts the points not yet present and returns how many were added.
func (ps *PointSet) Merge(points []Point) int {
	added := 0
	for _, p := range points {
		if _, ok := ps.seen[p]; ok {
			continue
		}
		ps.seen[p] = struct{}{}
		ps.points = append(ps.points, p)
		added++
	}
	return added
}

// Contains reports whether p is in the set.
func (ps *PointSet) Contains(p Point) bool {
	_, ok := ps.seen[p]
	return ok
}

// Len returns the number of points.
func (ps *PointSet) Len() int {
	return len(ps.points)
}

// At returns the i-th point in insertion order.
func (ps *PointSet) At(i int) Point {
	return ps.points[i]
}

// Points returns a copy of the points in insertion order.
func (ps *PointSet) Points() []Point {
	out := make([]Point, len(ps.points))
	copy(out, ps.points)
	return out
}
