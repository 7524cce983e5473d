package mesh

import (
	"math"

	"gonum.org/v1/gonum/spatial/r3"
)

// DistanceIndex caches the pairwise Euclidean distances of a point set.
// Distances are invariant under rigid motion, so two scanners that observe
// the same beacons share the distances between them.
type DistanceIndex struct {
	rows   [][]float64
	counts []map[float64]int
}

// NewDistanceIndex computes the full distance matrix for points.
func NewDistanceIndex(points []Point) *DistanceIndex {
	n := len(points)
	vecs := make([]r3.Vec, n)
	for i, p := range points {
		vecs[i] = toVec(p)
	}

	rows := make([][]float64, n)
	for i := range rows {
		rows[i] = make([]float64, n)
	}
	for i := 0; i < n; i++ {
		for j := i + 1; j < n; j++ {
			d := distance(vecs[i], vecs[j])
			rows[i][j] = d
			rows[j][i] = d
		}
	}

	counts := make([]map[float64]int, n)
	for i, row := range rows {
		c := make(map[float64]int, n)
		for _, d := range row {
			c[d]++
		}
		counts[i] = c
	}

	return &DistanceIndex{rows: rows, counts: counts}
}

// distance takes the root of the exact squared norm. Integer coordinates
// make the squared norm exact, so equal distances compare equal regardless
// of axis order or sign.
func distance(a, b r3.Vec) float64 {
	return math.Sqrt(r3.Norm2(r3.Sub(a, b)))
}

func toVec(p Point) r3.Vec {
	return r3.Vec{X: float64(p.X), Y: float64(p.Y), Z: float64(p.Z)}
}

// Len returns the number of indexed points.
func (d *DistanceIndex) Len() int {
	return len(d.rows)
}

// At returns the distance between points i and j.
func (d *DistanceIndex) At(i, j int) float64 {
	return d.rows[i][j]
}

// Row returns the distance profile of point i. The slice must not be modified.
func (d *DistanceIndex) Row(i int) []float64 {
	return d.rows[i]
}

// Count returns how many times v occurs in row i.
func (d *DistanceIndex) Count(i int, v float64) int {
	return d.counts[i][v]
}
