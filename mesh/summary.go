package mesh

import (
	"fmt"
	"time"
)

// MaxManhattan returns the largest L1 distance between any two scanner
// origins. Every scanner must already be integrated.
func MaxManhattan(scanners []*Scanner) (int, error) {
	for _, s := range scanners {
		if s.Transform == nil {
			return 0, fmt.Errorf("%s: %w", s.Name, ErrUnresolvedScanner)
		}
	}

	best := 0
	for i := 0; i < len(scanners); i++ {
		for j := i + 1; j < len(scanners); j++ {
			d := scanners[i].Transform.Translation.Manhattan(scanners[j].Transform.Translation)
			if d > best {
				best = d
			}
		}
	}
	return best, nil
}

// Summarize reports the assembled map: beacon count of the origin, the
// largest scanner separation, and each scanner's pose in input order.
func Summarize(origin *Scanner, scanners []*Scanner) (*Summary, error) {
	maxDist, err := MaxManhattan(scanners)
	if err != nil {
		return nil, err
	}

	summary := &Summary{
		Reference:    origin.Name,
		BeaconCount:  origin.Beacons.Len(),
		MaxManhattan: maxDist,
		Scanners:     make([]ScannerPose, 0, len(scanners)),
		Timestamp:    time.Now().Unix(),
	}
	for _, s := range scanners {
		summary.Scanners = append(summary.Scanners, ScannerPose{
			Name:        s.Name,
			Rotation:    s.Transform.Rotation,
			Translation: s.Transform.Translation,
		})
	}
	return summary, nil
}
