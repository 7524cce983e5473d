package mesh

import (
	"encoding/binary"
	"strconv"

	"github.com/cespare/xxhash/v2"
)

// InputFingerprint identifies a set of scanner reports by name, order and
// the beacons each scanner originally reported. Beacons merged into a scanner
// during assembly do not change it.
func InputFingerprint(scanners []*Scanner) string {
	d := xxhash.New()
	var buf [8]byte
	for _, s := range scanners {
		_, _ = d.WriteString(s.Name)
		_, _ = d.Write([]byte{0})
		binary.LittleEndian.PutUint64(buf[:], s.report)
		_, _ = d.Write(buf[:])
	}
	return strconv.FormatUint(d.Sum64(), 16)
}

func hashPoints(points []Point) uint64 {
	d := xxhash.New()
	var buf [8]byte
	for _, p := range points {
		for _, v := range [3]int{p.X, p.Y, p.Z} {
			binary.LittleEndian.PutUint64(buf[:], uint64(int64(v)))
			_, _ = d.Write(buf[:])
		}
	}
	return d.Sum64()
}
