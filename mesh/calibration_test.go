package mesh

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSaveLoadCalibration(t *testing.T) {
	quarter := Rotation{{0, -1, 0}, {1, 0, 0}, {0, 0, 1}}
	cal := &CalibrationData{
		ReferenceScanner: "scanner 0",
		Scanners: map[string]Transform{
			"scanner 0": Identity(),
			"scanner 1": {Rotation: quarter, Translation: Point{68, -1246, -43}},
		},
	}

	path := filepath.Join(t.TempDir(), "nested", "cache.json")
	require.NoError(t, SaveCalibration(path, cal))
	assert.NotZero(t, cal.LastUpdated)

	loaded, err := LoadCalibration(path)
	require.NoError(t, err)
	assert.Equal(t, cal, loaded)
}

func TestLoadCalibration_Missing(t *testing.T) {
	cal, err := LoadCalibration(filepath.Join(t.TempDir(), "none.json"))
	assert.NoError(t, err)
	assert.Nil(t, cal)
}

func TestLoadCalibration_Corrupt(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bad.json")
	require.NoError(t, os.WriteFile(path, []byte("{not json"), 0644))

	_, err := LoadCalibration(path)
	assert.ErrorContains(t, err, "parsing calibration file")
}

func TestLoadCalibration_NoScanners(t *testing.T) {
	path := filepath.Join(t.TempDir(), "empty.json")
	require.NoError(t, os.WriteFile(path, []byte(`{"referenceScanner":"a"}`), 0644))

	cal, err := LoadCalibration(path)
	require.NoError(t, err)
	assert.NotNil(t, cal.Scanners)
	assert.Zero(t, cal.Apply(NewScanner("a", nil), nil))
}

func TestNewCalibrationData_SkipsUnresolved(t *testing.T) {
	origin := placedScanner("a", Point{})
	placed := placedScanner("b", Point{1, 2, 3})
	pending := NewScanner("c", nil)

	cal := NewCalibrationData(origin, []*Scanner{origin, placed, pending})

	assert.Equal(t, "a", cal.ReferenceScanner)
	assert.Equal(t, InputFingerprint([]*Scanner{origin, placed, pending}), cal.InputHash)
	assert.Len(t, cal.Scanners, 2)
	assert.Equal(t, Point{1, 2, 3}, cal.Scanners["b"].Translation)
}

func TestCalibrationData_Apply(t *testing.T) {
	good := Transform{Rotation: IdentityRotation(), Translation: Point{5, 0, 0}}
	bad := Transform{Rotation: Rotation{{-1, 0, 0}, {0, 1, 0}, {0, 0, 1}}}

	newScanners := func() []*Scanner {
		return []*Scanner{NewScanner("ref", nil), NewScanner("b", nil), NewScanner("c", nil), NewScanner("d", nil)}
	}
	cal := &CalibrationData{
		ReferenceScanner: "ref",
		InputHash:        InputFingerprint(newScanners()),
		Scanners:         map[string]Transform{"ref": Identity(), "b": good, "c": bad},
	}

	t.Run("presets known scanners", func(t *testing.T) {
		scanners := newScanners()
		assert.Equal(t, 1, cal.Apply(scanners[0], scanners))
		assert.Nil(t, scanners[0].Transform, "origin is left to the assembler")
		require.NotNil(t, scanners[1].Transform)
		assert.Equal(t, good, *scanners[1].Transform)
		assert.Nil(t, scanners[2].Transform, "invalid rotation is ignored")
		assert.Nil(t, scanners[3].Transform, "unknown scanner stays pending")
	})

	t.Run("keeps existing transforms", func(t *testing.T) {
		scanners := newScanners()
		existing := Transform{Rotation: IdentityRotation(), Translation: Point{9, 9, 9}}
		scanners[1].Transform = &existing
		assert.Zero(t, cal.Apply(scanners[0], scanners))
		assert.Equal(t, existing, *scanners[1].Transform)
	})

	t.Run("reference mismatch", func(t *testing.T) {
		scanners := newScanners()
		assert.Zero(t, cal.Apply(scanners[1], scanners))
		for _, s := range scanners {
			assert.Nil(t, s.Transform)
		}
	})

	t.Run("different reports", func(t *testing.T) {
		scanners := newScanners()
		scanners[1] = NewScanner("b", []Point{{1, 2, 3}})
		assert.Zero(t, cal.Apply(scanners[0], scanners))
		assert.Nil(t, scanners[1].Transform)
	})

	t.Run("cache without input hash", func(t *testing.T) {
		legacy := *cal
		legacy.InputHash = ""
		scanners := newScanners()
		assert.Zero(t, legacy.Apply(scanners[0], scanners))
	})

	t.Run("nil cache", func(t *testing.T) {
		var none *CalibrationData
		scanners := newScanners()
		assert.Zero(t, none.Apply(scanners[0], scanners))
	})
}

func TestInputFingerprint(t *testing.T) {
	a := NewScanner("a", []Point{{1, 2, 3}, {4, 5, 6}})
	b := NewScanner("b", []Point{{-1, 0, 7}})
	fp := InputFingerprint([]*Scanner{a, b})

	assert.Equal(t, fp, InputFingerprint([]*Scanner{
		NewScanner("a", []Point{{1, 2, 3}, {4, 5, 6}}),
		NewScanner("b", []Point{{-1, 0, 7}}),
	}), "same reports")
	assert.NotEqual(t, fp, InputFingerprint([]*Scanner{b, a}), "order")
	assert.NotEqual(t, fp, InputFingerprint([]*Scanner{NewScanner("z", []Point{{1, 2, 3}, {4, 5, 6}}), b}), "name")
	assert.NotEqual(t, fp, InputFingerprint([]*Scanner{NewScanner("a", []Point{{2, 1, 3}, {4, 5, 6}}), b}), "beacons")

	a.Merge([]Point{{9, 9, 9}})
	assert.Equal(t, fp, InputFingerprint([]*Scanner{a, b}), "merged beacons are not part of the report")
}
