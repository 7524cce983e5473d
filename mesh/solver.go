package mesh

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/mat"
)

// minSolvePoints is the fewest pairs that give the 12-unknown system at least
// as many equations as unknowns.
const minSolvePoints = 4

// SolveTransform computes the transform mapping src onto dst (dst = R*src + t).
//
// Each pair contributes three equations in the unknowns
// v = [r11 r12 r13 r21 r22 r23 r31 r32 r33 t1 t2 t3]:
//
//	[x1 x2 x3 0  0  0  0  0  0  1 0 0]       [y1]
//	[0  0  0  x1 x2 x3 0  0  0  0 1 0] * v = [y2]
//	[0  0  0  0  0  0  x1 x2 x3 0 0 1]       [y3]
//
// The stacked system is solved in the least-squares sense and every component
// rounded to the nearest integer. The result must be an axis-aligned rotation
// that reproduces every pair exactly, otherwise ErrDegenerateTransform.
func SolveTransform(src, dst []Point) (Transform, error) {
	n := len(src)
	if n != len(dst) {
		return Transform{}, fmt.Errorf("mismatched point counts %d and %d", n, len(dst))
	}
	if n < minSolvePoints {
		return Transform{}, fmt.Errorf("%d pairs, need %d: %w", n, minSolvePoints, ErrTooFewPoints)
	}

	a := mat.NewDense(3*n, 12, nil)
	b := mat.NewVecDense(3*n, nil)
	for i := range src {
		x := [3]float64{float64(src[i].X), float64(src[i].Y), float64(src[i].Z)}
		y := [3]float64{float64(dst[i].X), float64(dst[i].Y), float64(dst[i].Z)}
		for k := 0; k < 3; k++ {
			row := 3*i + k
			for c := 0; c < 3; c++ {
				a.Set(row, 3*k+c, x[c])
			}
			a.Set(row, 9+k, 1)
			b.SetVec(row, y[k])
		}
	}

	var v mat.VecDense
	if err := v.SolveVec(a, b); err != nil {
		return Transform{}, fmt.Errorf("least squares solve (%v): %w", err, ErrDegenerateTransform)
	}

	round := func(i int) int {
		return int(math.Round(v.AtVec(i)))
	}

	var t Transform
	for k := 0; k < 9; k++ {
		t.Rotation[k/3][k%3] = round(k)
	}
	t.Translation = Point{X: round(9), Y: round(10), Z: round(11)}

	if !t.Rotation.Valid() {
		return Transform{}, fmt.Errorf("solved rotation %v is not axis-aligned: %w", t.Rotation, ErrDegenerateTransform)
	}
	for i := range src {
		if got := TransformPoint(src[i], t); got != dst[i] {
			return Transform{}, fmt.Errorf("pair %d maps to %v, want %v: %w", i, got, dst[i], ErrDegenerateTransform)
		}
	}

	return t, nil
}
