package mesh

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestRotations(t *testing.T) {
	rots := Rotations()
	assert.Len(t, rots, 24)

	seen := make(map[Rotation]bool)
	for _, r := range rots {
		assert.True(t, r.Valid(), "rotation %v should be valid", r)
		assert.Equal(t, 1, r.Det())
		assert.False(t, seen[r], "duplicate rotation %v", r)
		seen[r] = true
	}
	assert.True(t, seen[IdentityRotation()])
}

func TestRotation_Valid(t *testing.T) {
	tests := []struct {
		name string
		r    Rotation
		want bool
	}{
		{"identity", IdentityRotation(), true},
		{"quarter turn about z", Rotation{{0, -1, 0}, {1, 0, 0}, {0, 0, 1}}, true},
		{"half turn about x", Rotation{{1, 0, 0}, {0, -1, 0}, {0, 0, -1}}, true},
		{"mirror", Rotation{{-1, 0, 0}, {0, 1, 0}, {0, 0, 1}}, false},
		{"axis swap without sign", Rotation{{0, 1, 0}, {1, 0, 0}, {0, 0, 1}}, false},
		{"scale", Rotation{{2, 0, 0}, {0, 1, 0}, {0, 0, 1}}, false},
		{"shared column", Rotation{{1, 0, 0}, {1, 0, 0}, {0, 0, 1}}, false},
		{"zero", Rotation{}, false},
		{"two entries in a row", Rotation{{1, 1, 0}, {0, 0, 1}, {0, 0, 0}}, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.r.Valid())
		})
	}
}

func TestTransformPoint(t *testing.T) {
	quarter := Rotation{{0, -1, 0}, {1, 0, 0}, {0, 0, 1}}
	tr := Transform{Rotation: quarter, Translation: Point{10, 20, 30}}

	assert.Equal(t, Point{8, 21, 33}, TransformPoint(Point{1, 2, 3}, tr))
	assert.Equal(t, Point{1, 2, 3}, TransformPoint(Point{1, 2, 3}, Identity()))
}

func TestTransformPoints(t *testing.T) {
	tr := Transform{Rotation: IdentityRotation(), Translation: Point{1, 1, 1}}
	got := TransformPoints([]Point{{0, 0, 0}, {1, 2, 3}}, tr)
	assert.Equal(t, []Point{{1, 1, 1}, {2, 3, 4}}, got)
	assert.Empty(t, TransformPoints(nil, tr))
}
