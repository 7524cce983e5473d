package mesh

import (
	"encoding/json"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/paulmach/orb/geojson"
)

// StateTracker holds the latest assembled map for HTTP endpoints
type StateTracker struct {
	mu        sync.RWMutex
	origin    *Scanner
	scanners  []*Scanner
	summary   *Summary
	updated   time.Time
	cachePath string // path to the summary cache file; empty disables persistence
}

// NewStateTracker creates a new state tracker
func NewStateTracker() *StateTracker {
	return &StateTracker{}
}

// NewStateTrackerWithCache creates a state tracker that persists the latest
// summary to cachePath. If the file exists, the cached summary is loaded on
// creation so /summary.json can answer before the first assembly.
func NewStateTrackerWithCache(cachePath string) *StateTracker {
	st := &StateTracker{cachePath: cachePath}
	if cachePath != "" {
		if s, err := LoadSummary(cachePath); err == nil {
			st.summary = s
		}
	}
	return st
}

// Update records a finished assembly. Every scanner must be integrated.
func (st *StateTracker) Update(origin *Scanner, scanners []*Scanner) (*Summary, error) {
	summary, err := Summarize(origin, scanners)
	if err != nil {
		return nil, err
	}

	st.mu.Lock()
	st.origin = origin
	st.scanners = append([]*Scanner(nil), scanners...)
	st.summary = summary
	st.updated = time.Now()
	cachePath := st.cachePath
	st.mu.Unlock()

	observeMap(summary)

	if cachePath != "" {
		if err := SaveSummary(summary, cachePath); err != nil {
			log.Printf("[STATE] warning: failed to save summary cache: %v", err)
		}
	}

	return summary, nil
}

// HasMap returns true once an assembly has been recorded
func (st *StateTracker) HasMap() bool {
	st.mu.RLock()
	defer st.mu.RUnlock()
	return st.origin != nil
}

// GetSummary returns a copy of the latest summary, or nil.
func (st *StateTracker) GetSummary() *Summary {
	st.mu.RLock()
	defer st.mu.RUnlock()
	if st.summary == nil {
		return nil
	}
	s := *st.summary
	s.Scanners = append([]ScannerPose(nil), st.summary.Scanners...)
	return &s
}

// LastUpdated returns when the map was last recorded; zero if never.
func (st *StateTracker) LastUpdated() time.Time {
	st.mu.RLock()
	defer st.mu.RUnlock()
	return st.updated
}

// MapView returns the drawable view of the latest map, or nil.
func (st *StateTracker) MapView() *MapView {
	st.mu.RLock()
	defer st.mu.RUnlock()
	if st.origin == nil {
		return nil
	}
	return NewMapView(st.origin, st.scanners)
}

// FeatureCollection returns the latest map as GeoJSON, or nil.
func (st *StateTracker) FeatureCollection() *geojson.FeatureCollection {
	st.mu.RLock()
	defer st.mu.RUnlock()
	if st.origin == nil {
		return nil
	}
	return ToFeatureCollection(st.origin, st.scanners)
}

// SaveSummary writes a Summary to disk as JSON.
func SaveSummary(s *Summary, path string) error {
	data, err := json.MarshalIndent(s, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal summary: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("create cache directory: %w", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("write summary cache: %w", err)
	}
	return nil
}

// LoadSummary reads a Summary from a JSON file on disk.
func LoadSummary(path string) (*Summary, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read summary cache: %w", err)
	}
	var s Summary
	if err := json.Unmarshal(data, &s); err != nil {
		return nil, fmt.Errorf("unmarshal summary cache: %w", err)
	}
	return &s, nil
}
