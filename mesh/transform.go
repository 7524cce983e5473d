package mesh

// IdentityRotation returns the rotation that leaves every axis in place.
func IdentityRotation() Rotation {
	return Rotation{{1, 0, 0}, {0, 1, 0}, {0, 0, 1}}
}

// Identity returns an identity transform (no rotation, no translation)
func Identity() Transform {
	return Transform{Rotation: IdentityRotation()}
}

// Apply rotates p.
func (r Rotation) Apply(p Point) Point {
	return Point{
		X: r[0][0]*p.X + r[0][1]*p.Y + r[0][2]*p.Z,
		Y: r[1][0]*p.X + r[1][1]*p.Y + r[1][2]*p.Z,
		Z: r[2][0]*p.X + r[2][1]*p.Y + r[2][2]*p.Z,
	}
}

// Det returns the determinant of r.
func (r Rotation) Det() int {
	return r[0][0]*(r[1][1]*r[2][2]-r[1][2]*r[2][1]) -
		r[0][1]*(r[1][0]*r[2][2]-r[1][2]*r[2][0]) +
		r[0][2]*(r[1][0]*r[2][1]-r[1][1]*r[2][0])
}

// Valid reports whether r is a signed permutation matrix with determinant +1,
// i.e. one of the 24 axis-aligned rotations.
func (r Rotation) Valid() bool {
	var colUsed [3]bool
	for i := 0; i < 3; i++ {
		nonzero := 0
		for j := 0; j < 3; j++ {
			switch r[i][j] {
			case 0:
			case 1, -1:
				if colUsed[j] {
					return false
				}
				colUsed[j] = true
				nonzero++
			default:
				return false
			}
		}
		if nonzero != 1 {
			return false
		}
	}
	return r.Det() == 1
}

// Rotations returns all 24 axis-aligned rotations.
func Rotations() []Rotation {
	perms := [][3]int{{0, 1, 2}, {0, 2, 1}, {1, 0, 2}, {1, 2, 0}, {2, 0, 1}, {2, 1, 0}}
	signs := []int{1, -1}

	out := make([]Rotation, 0, 24)
	for _, perm := range perms {
		for _, sx := range signs {
			for _, sy := range signs {
				for _, sz := range signs {
					var r Rotation
					r[0][perm[0]] = sx
					r[1][perm[1]] = sy
					r[2][perm[2]] = sz
					if r.Det() == 1 {
						out = append(out, r)
					}
				}
			}
		}
	}
	return out
}

// TransformPoint maps a local point into the global frame.
func TransformPoint(p Point, t Transform) Point {
	return t.Rotation.Apply(p).Add(t.Translation)
}

// TransformPoints applies a transform to multiple points
func TransformPoints(points []Point, t Transform) []Point {
	result := make([]Point, len(points))
	for i, p := range points {
		result[i] = TransformPoint(p, t)
	}
	return result
}
