package mesh

import (
	"context"
	"errors"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// assemblyTotal counts Assemble calls by result
	assemblyTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "beaconmesh_assembly_total",
		Help: "Total map assemblies by result",
	}, []string{"result"})

	assemblyDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "beaconmesh_assembly_duration_seconds",
		Help:    "Map assembly duration in seconds",
		Buckets: prometheus.ExponentialBuckets(0.001, 2, 14), // 1ms to ~8s
	})

	assemblyPasses = promauto.NewCounter(prometheus.CounterOpts{
		Name: "beaconmesh_assembly_passes_total",
		Help: "Total worklist passes over pending scanners",
	})

	// overlapSearches counts scanner placement attempts by outcome
	overlapSearches = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "beaconmesh_overlap_searches_total",
		Help: "Scanner placement attempts by outcome",
	}, []string{"outcome"})

	mapBeacons = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "beaconmesh_map_beacons",
		Help: "Unique beacons in the latest assembled map",
	})

	mapMaxManhattan = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "beaconmesh_map_max_manhattan",
		Help: "Largest Manhattan distance between scanners in the latest map",
	})

	mapScanners = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "beaconmesh_map_scanners",
		Help: "Scanners placed in the latest assembled map",
	})
)

func observeAssembly(start time.Time, err error) {
	assemblyDuration.Observe(time.Since(start).Seconds())
	result := "ok"
	var unresolved *UnresolvableError
	switch {
	case err == nil:
	case errors.As(err, &unresolved):
		result = "unresolvable"
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		result = "cancelled"
	default:
		result = "error"
	}
	assemblyTotal.WithLabelValues(result).Inc()
}

// searchOutcome buckets a locate error for the overlap search counter.
func searchOutcome(err error) string {
	switch {
	case err == nil:
		return "placed"
	case errors.Is(err, ErrNoOverlap):
		return "no_overlap"
	case errors.Is(err, ErrCorrespondenceCollision):
		return "ambiguous"
	default:
		return "solve_failed"
	}
}

func observeMap(s *Summary) {
	mapBeacons.Set(float64(s.BeaconCount))
	mapMaxManhattan.Set(float64(s.MaxManhattan))
	mapScanners.Set(float64(len(s.Scanners)))
}
