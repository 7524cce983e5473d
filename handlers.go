package main

import (
	"encoding/json"
	"image/png"
	"log"
	"net/http"
	"time"

	"github.com/kwv/beaconmesh/mesh"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// newHTTPServer creates an HTTP server with all endpoints
func newHTTPServer(stateTracker *mesh.StateTracker, render mesh.RenderConfig) http.Handler {
	mux := http.NewServeMux()

	// Health check endpoint
	mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		log.Printf("[HTTP] /health request from %s", r.RemoteAddr)
		w.Header().Set("Content-Type", "application/json")
		status := struct {
			Status      string     `json:"status"`
			Timestamp   time.Time  `json:"timestamp"`
			HasMap      bool       `json:"hasMap"`
			HasSummary  bool       `json:"hasSummary"`
			LastUpdated *time.Time `json:"lastUpdated,omitempty"`
		}{
			Status:     "ok",
			Timestamp:  time.Now(),
			HasMap:     stateTracker.HasMap(),
			HasSummary: stateTracker.GetSummary() != nil,
		}
		if updated := stateTracker.LastUpdated(); !updated.IsZero() {
			status.LastUpdated = &updated
		}
		if err := json.NewEncoder(w).Encode(status); err != nil {
			log.Printf("[HTTP] error encoding health status: %v", err)
		}
	})

	mux.HandleFunc("/summary.json", func(w http.ResponseWriter, r *http.Request) {
		summary := stateTracker.GetSummary()
		if summary == nil {
			http.Error(w, "No map assembled", http.StatusServiceUnavailable)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		w.Header().Set("Cache-Control", "no-cache")
		if err := json.NewEncoder(w).Encode(summary); err != nil {
			log.Printf("[HTTP] error encoding summary: %v", err)
		}
	})

	mux.HandleFunc("/map.geojson", func(w http.ResponseWriter, r *http.Request) {
		fc := stateTracker.FeatureCollection()
		if fc == nil {
			http.Error(w, "No map assembled", http.StatusServiceUnavailable)
			return
		}
		data, err := fc.MarshalJSON()
		if err != nil {
			log.Printf("[HTTP] error encoding geojson: %v", err)
			http.Error(w, "Failed to encode GeoJSON", http.StatusInternalServerError)
			return
		}
		w.Header().Set("Content-Type", "application/geo+json")
		w.Header().Set("Cache-Control", "no-cache")
		_, _ = w.Write(data)
	})

	mux.HandleFunc("/map.svg", func(w http.ResponseWriter, r *http.Request) {
		view := stateTracker.MapView()
		if !view.HasDrawableContent() {
			http.Error(w, "No map assembled", http.StatusServiceUnavailable)
			return
		}

		renderer := newVectorRenderer(view, render)
		w.Header().Set("Content-Type", "image/svg+xml")
		w.Header().Set("Cache-Control", "no-cache")
		if err := renderer.RenderToSVG(w); err != nil {
			log.Printf("[HTTP] error rendering SVG: %v", err)
		}
	})

	// Raster map; ?format=vector rasterizes the vector rendering instead
	mux.HandleFunc("/map.png", func(w http.ResponseWriter, r *http.Request) {
		view := stateTracker.MapView()
		if !view.HasDrawableContent() {
			http.Error(w, "No map assembled", http.StatusServiceUnavailable)
			return
		}

		w.Header().Set("Content-Type", "image/png")
		w.Header().Set("Cache-Control", "no-cache")

		if r.URL.Query().Get("format") == "vector" {
			if err := newVectorRenderer(view, render).RenderToPNG(w); err != nil {
				log.Printf("[HTTP] error rendering vector PNG: %v", err)
			}
			return
		}

		img := newCompositeRenderer(view, render).Render()
		if err := png.Encode(w, img); err != nil {
			log.Printf("[HTTP] error encoding map PNG: %v", err)
		}
	})

	mux.Handle("/metrics", promhttp.Handler())

	return mux
}

// newCompositeRenderer builds a raster renderer; padding is configured in
// world units and converted to pixels.
func newCompositeRenderer(view *mesh.MapView, cfg mesh.RenderConfig) *mesh.CompositeRenderer {
	renderer := mesh.NewCompositeRenderer(view)
	if cfg.Scale > 0 {
		renderer.Scale = cfg.Scale
	}
	if cfg.Padding > 0 {
		renderer.Padding = int(cfg.Padding * renderer.Scale)
	}
	return renderer
}

func newVectorRenderer(view *mesh.MapView, cfg mesh.RenderConfig) *mesh.VectorRenderer {
	renderer := mesh.NewVectorRenderer(view)
	renderer.ApplyConfig(cfg)
	return renderer
}
