package mesh

import (
	"fmt"
	"os"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geojson"
)

// Feature kinds written to the "kind" property.
const (
	FeatureKindBeacon  = "beacon"
	FeatureKindScanner = "scanner"
)

// projectXY drops the Z axis for top-down output.
func projectXY(p Point) orb.Point {
	return orb.Point{float64(p.X), float64(p.Y)}
}

// ProjectedBound returns the XY bounding box of the given points.
func ProjectedBound(points []Point) orb.Bound {
	mp := make(orb.MultiPoint, len(points))
	for i, p := range points {
		mp[i] = projectXY(p)
	}
	return mp.Bound()
}

// ToFeatureCollection exports the merged map as GeoJSON in the global frame.
// Geometries are projected onto the XY plane; the Z coordinate is kept in the
// "z" property. Beacons come first, then every integrated scanner origin.
func ToFeatureCollection(origin *Scanner, scanners []*Scanner) *geojson.FeatureCollection {
	fc := geojson.NewFeatureCollection()

	for i, p := range origin.Beacons.Points() {
		f := geojson.NewFeature(projectXY(p))
		f.ID = fmt.Sprintf("beacon-%d", i)
		f.Properties["kind"] = FeatureKindBeacon
		f.Properties["z"] = p.Z
		fc.Append(f)
	}

	for _, s := range scanners {
		if s.Transform == nil {
			continue
		}
		t := s.Transform.Translation
		f := geojson.NewFeature(projectXY(t))
		f.ID = s.Name
		f.Properties["kind"] = FeatureKindScanner
		f.Properties["name"] = s.Name
		f.Properties["z"] = t.Z
		f.Properties["rotation"] = s.Transform.Rotation
		f.Properties["reference"] = s == origin
		fc.Append(f)
	}

	return fc
}

// SaveGeoJSON writes a feature collection to path.
func SaveGeoJSON(path string, fc *geojson.FeatureCollection) error {
	data, err := fc.MarshalJSON()
	if err != nil {
		return fmt.Errorf("marshaling geojson: %w", err)
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("writing geojson file: %w", err)
	}
	return nil
}
