package mesh

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"golang.org/x/sync/errgroup"
)

// Assemble folds every scanner into the origin's frame and returns the
// origin's merged beacon set.
//
// The origin gets the identity transform. Scanners that already carry a
// transform (e.g. loaded from a calibration cache) are merged up front once
// that transform lands at least minOverlap of their beacons on beacons the
// origin already holds; a preset that never does is cleared and the scanner
// is searched like any other.
//
// The rest form a worklist: each pass tries every pending scanner against the
// origin's accumulated beacons, and a scanner that overlaps is solved, merged
// and removed. Scanners without overlap stay pending because the origin keeps
// growing. A pass that places nothing ends assembly with *UnresolvableError,
// so a disconnected overlap graph fails after at most len(scanners) passes.
//
// With cfg.Workers > 1 the searches of one pass run concurrently against a
// snapshot of the origin taken at the start of the pass, and the results are
// merged in worklist order afterwards.
func Assemble(ctx context.Context, origin *Scanner, scanners []*Scanner, cfg AssemblyConfig) (_ *PointSet, err error) {
	start := time.Now()
	defer func() { observeAssembly(start, err) }()

	if origin == nil {
		return nil, errors.New("origin scanner is nil")
	}
	id := Identity()
	origin.Transform = &id

	var presets []*Scanner
	for _, s := range scanners {
		if s == origin || s.Transform == nil {
			continue
		}
		if !s.Transform.Rotation.Valid() {
			return nil, fmt.Errorf("preset transform for %s: rotation %v: %w", s.Name, s.Transform.Rotation, ErrDegenerateTransform)
		}
		presets = append(presets, s)
	}
	mergePresets(origin, presets, cfg.MinOverlap)

	var pending []*Scanner
	for _, s := range scanners {
		if s != origin && s.Transform == nil {
			pending = append(pending, s)
		}
	}

	causes := make(map[string]error)
	for pass := 1; len(pending) > 0; pass++ {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		assemblyPasses.Inc()

		var (
			remaining []*Scanner
			err       error
		)
		if cfg.Workers > 1 {
			remaining, err = parallelPass(ctx, origin, pending, cfg, causes)
		} else {
			remaining, err = sequentialPass(ctx, origin, pending, cfg, causes)
		}
		if err != nil {
			return nil, err
		}

		placed := len(pending) - len(remaining)
		log.Printf("[ASSEMBLE] pass %d: placed %d scanner(s), %d pending, %d beacons",
			pass, placed, len(remaining), origin.Beacons.Len())

		if placed == 0 {
			unresolved := &UnresolvableError{Causes: make(map[string]error, len(remaining))}
			for _, s := range remaining {
				unresolved.Pending = append(unresolved.Pending, s.Name)
				unresolved.Causes[s.Name] = causes[s.Name]
			}
			return nil, unresolved
		}
		pending = remaining
	}

	return origin.Beacons, nil
}

// mergePresets merges presets whose transformed beacons share at least
// minOverlap points with the origin. Presets are retried while any of them
// confirms, so a chain of cached scanners is accepted in any order.
func mergePresets(origin *Scanner, presets []*Scanner, minOverlap int) {
	if minOverlap <= 0 {
		minOverlap = DefaultMinOverlap
	}
	for len(presets) > 0 {
		var unconfirmed []*Scanner
		for _, s := range presets {
			moved := TransformPoints(s.Beacons.Points(), *s.Transform)
			if shared := sharedPoints(origin.Beacons, moved); shared < minOverlap {
				unconfirmed = append(unconfirmed, s)
				continue
			}
			added := origin.Merge(moved)
			log.Printf("[ASSEMBLE] %s: merged with preset transform (+%d beacons, total %d)", s.Name, added, origin.Beacons.Len())
		}
		if len(unconfirmed) == len(presets) {
			for _, s := range unconfirmed {
				log.Printf("[ASSEMBLE] %s: preset transform does not match the map, searching instead", s.Name)
				s.Transform = nil
			}
			return
		}
		presets = unconfirmed
	}
}

func sharedPoints(set *PointSet, points []Point) int {
	n := 0
	for _, p := range points {
		if set.Contains(p) {
			n++
		}
	}
	return n
}

// sequentialPass rebuilds the origin index after every merge, so later
// scanners in the same pass see beacons placed earlier in it.
func sequentialPass(ctx context.Context, origin *Scanner, pending []*Scanner, cfg AssemblyConfig, causes map[string]error) ([]*Scanner, error) {
	var remaining []*Scanner
	for _, s := range pending {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		t, err := locate(s, origin.Index(), origin.Beacons.Points(), cfg.MinOverlap)
		if err != nil {
			recordFailure(s, err, causes)
			remaining = append(remaining, s)
			continue
		}
		integrate(origin, s, t)
	}
	return remaining, nil
}

type locateResult struct {
	transform Transform
	err       error
}

func parallelPass(ctx context.Context, origin *Scanner, pending []*Scanner, cfg AssemblyConfig, causes map[string]error) ([]*Scanner, error) {
	snapshot := origin.Index()
	snapshotPoints := origin.Beacons.Points()
	results := make([]locateResult, len(pending))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(cfg.Workers)
	for i, s := range pending {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			t, err := locate(s, snapshot, snapshotPoints, cfg.MinOverlap)
			results[i] = locateResult{transform: t, err: err}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	var remaining []*Scanner
	for i, s := range pending {
		if err := results[i].err; err != nil {
			recordFailure(s, err, causes)
			remaining = append(remaining, s)
			continue
		}
		integrate(origin, s, results[i].transform)
	}
	return remaining, nil
}

// locate finds the transform from s's frame into the frame indexed by target.
func locate(s *Scanner, target *DistanceIndex, targetPoints []Point, minOverlap int) (Transform, error) {
	t, err := findTransform(s, target, targetPoints, minOverlap)
	overlapSearches.WithLabelValues(searchOutcome(err)).Inc()
	return t, err
}

// findTransform solves candidates in turn until one reproduces exactly. When
// every candidate fails to solve, the last solve error is returned.
func findTransform(s *Scanner, target *DistanceIndex, targetPoints []Point, minOverlap int) (Transform, error) {
	var (
		found    Transform
		solveErr error
		solved   bool
	)
	points := s.Beacons.Points()
	err := EachOverlap(s.Index(), target, minOverlap, func(c Correspondence) bool {
		src, dst := c.Points(points, targetPoints)
		t, err := SolveTransform(src, dst)
		if err != nil {
			solveErr = err
			return true
		}
		found, solved = t, true
		return false
	})
	switch {
	case solved:
		return found, nil
	case solveErr != nil:
		return Transform{}, solveErr
	}
	return Transform{}, err
}

func integrate(origin, s *Scanner, t Transform) {
	added := origin.Merge(TransformPoints(s.Beacons.Points(), t))
	s.Transform = &t
	log.Printf("[ASSEMBLE] %s: placed at %v rotation %v (+%d beacons, total %d)",
		s.Name, t.Translation, t.Rotation, added, origin.Beacons.Len())
}

func recordFailure(s *Scanner, err error, causes map[string]error) {
	causes[s.Name] = err
	if errors.Is(err, ErrNoOverlap) {
		return
	}
	log.Printf("[ASSEMBLE] %s: skipping merge this pass: %v", s.Name, err)
}
