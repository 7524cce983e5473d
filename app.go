package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/kwv/beaconmesh/mesh"
)

// App encapsulates the application state and dependencies
type App struct {
	Config       *mesh.Config
	Calibration  *mesh.CalibrationData
	StateTracker *mesh.StateTracker
	MQTTClient   *mesh.MQTTClient
	Publisher    *mesh.Publisher
	Out          io.Writer

	// CLI Flags (effectively dependencies)
	ConfigFile       string
	Input            string
	Reference        string
	CalibrationCache string
	StateCache       string
	SaveConfigFile   string
	OutputFile       string
	GeoJSONFile      string
	RenderFormat     string
	VectorFormat     string
	GridSpacing      float64
	MinOverlap       int
	Workers          int
	HttpPort         int
	MqttMode         bool
	HttpMode         bool
}

// NewApp creates a new App instance
func NewApp() *App {
	return &App{
		StateTracker: mesh.NewStateTracker(),
		Out:          os.Stdout,
	}
}

// ApplyOptions applies CLI options to the App instance
func (a *App) ApplyOptions(opts AppOptions) {
	a.ConfigFile = opts.ConfigFile
	a.Input = opts.Input
	a.Reference = opts.Reference
	a.CalibrationCache = opts.CalibrationCache
	a.StateCache = opts.StateCache
	a.SaveConfigFile = opts.SaveConfigFile
	if opts.StateCache != "" {
		a.StateTracker = mesh.NewStateTrackerWithCache(opts.StateCache)
		if s := a.StateTracker.GetSummary(); s != nil {
			log.Printf("Loaded cached summary from %s (%d beacons)", opts.StateCache, s.BeaconCount)
		}
	}
	a.OutputFile = opts.OutputFile
	a.GeoJSONFile = opts.GeoJSONFile
	a.RenderFormat = opts.RenderFormat
	a.VectorFormat = opts.VectorFormat
	a.GridSpacing = opts.GridSpacing
	a.MinOverlap = opts.MinOverlap
	a.Workers = opts.Workers
	a.HttpPort = opts.HttpPort
	a.MqttMode = opts.MqttMode
	a.HttpMode = opts.HttpMode
}

// loadConfig reads the optional config file and layers CLI overrides on top.
func (a *App) loadConfig() (*mesh.Config, error) {
	config := mesh.DefaultConfig()
	if a.ConfigFile != "" {
		loaded, err := mesh.LoadConfig(a.ConfigFile)
		if err != nil {
			return nil, fmt.Errorf("loading config: %w", err)
		}
		config = loaded
		log.Printf("Loaded config from %s", a.ConfigFile)
	}

	if a.Input != "" {
		config.Input = a.Input
	}
	if a.Reference != "" {
		config.Reference = a.Reference
	}
	if a.MinOverlap != 0 {
		config.Assembly.MinOverlap = a.MinOverlap
	}
	if a.Workers != 0 {
		config.Assembly.Workers = a.Workers
	}
	if a.GridSpacing != 0 {
		config.Render.GridSpacing = a.GridSpacing
	}
	if err := config.Validate(); err != nil {
		return nil, err
	}
	if config.Input == "" {
		return nil, errors.New("no input: pass --input or set input in the config file")
	}
	if a.SaveConfigFile != "" {
		if err := mesh.SaveConfig(a.SaveConfigFile, config); err != nil {
			return nil, err
		}
		log.Printf("Wrote effective config to %s", a.SaveConfigFile)
	}

	a.Config = config
	return config, nil
}

// loadScanners reads the configured input.
func (a *App) loadScanners(ctx context.Context) ([]*mesh.Scanner, error) {
	config, err := a.loadConfig()
	if err != nil {
		return nil, err
	}
	scanners, err := mesh.LoadScanners(ctx, config.Input)
	if err != nil {
		return nil, fmt.Errorf("loading %s: %w", config.Input, err)
	}
	if len(scanners) == 0 {
		return nil, fmt.Errorf("no scanners found in %s", config.Input)
	}
	return scanners, nil
}

// assemble loads the input, presets cached transforms, assembles the map and
// refreshes the cache. The result is recorded in the state tracker.
func (a *App) assemble(ctx context.Context) (*mesh.Summary, error) {
	scanners, err := a.loadScanners(ctx)
	if err != nil {
		return nil, err
	}

	origin, err := a.Config.FindReference(scanners)
	if err != nil {
		return nil, err
	}
	log.Printf("Reference scanner: %s", origin.Name)

	if a.CalibrationCache != "" {
		cache, err := mesh.LoadCalibration(a.CalibrationCache)
		if err != nil {
			log.Printf("Warning: failed to load calibration cache %s: %v", a.CalibrationCache, err)
		} else if cache != nil {
			a.Calibration = cache
			if n := cache.Apply(origin, scanners); n > 0 {
				log.Printf("Preset %d scanner transform(s) from %s", n, a.CalibrationCache)
			}
		}
	}

	start := time.Now()
	if _, err := mesh.Assemble(ctx, origin, scanners, a.Config.Assembly); err != nil {
		return nil, fmt.Errorf("assembling map: %w", err)
	}
	log.Printf("Assembled %d scanners in %v", len(scanners), time.Since(start).Round(time.Millisecond))

	if a.CalibrationCache != "" {
		a.Calibration = mesh.NewCalibrationData(origin, scanners)
		if err := mesh.SaveCalibration(a.CalibrationCache, a.Calibration); err != nil {
			log.Printf("Warning: failed to save calibration cache: %v", err)
		}
	}

	summary, err := a.StateTracker.Update(origin, scanners)
	if err != nil {
		return nil, err
	}

	if a.GeoJSONFile != "" {
		if err := mesh.SaveGeoJSON(a.GeoJSONFile, a.StateTracker.FeatureCollection()); err != nil {
			return nil, err
		}
		log.Printf("Wrote GeoJSON to %s", a.GeoJSONFile)
	}

	return summary, nil
}

// RunParseOnly parses the input and prints what each scanner reported
func (a *App) RunParseOnly() error {
	scanners, err := a.loadScanners(context.Background())
	if err != nil {
		return err
	}

	_, _ = fmt.Fprintf(a.Out, "Found %d scanner(s)\n\n", len(scanners))
	total := 0
	for _, s := range scanners {
		_, _ = fmt.Fprintf(a.Out, "=== %s ===\n", s.Name)
		_, _ = fmt.Fprintf(a.Out, "Beacons: %d\n\n", s.Beacons.Len())
		total += s.Beacons.Len()
	}
	_, _ = fmt.Fprintf(a.Out, "Total beacon reports: %d\n", total)
	return nil
}

// RunAssemble assembles the map and prints the summary
func (a *App) RunAssemble() error {
	summary, err := a.assemble(context.Background())
	if err != nil {
		return err
	}
	a.printSummary(summary)
	return nil
}

func (a *App) printSummary(s *mesh.Summary) {
	_, _ = fmt.Fprintf(a.Out, "Reference: %s\n", s.Reference)
	_, _ = fmt.Fprintf(a.Out, "Beacons: %d\n", s.BeaconCount)
	_, _ = fmt.Fprintf(a.Out, "Max Manhattan distance: %d\n", s.MaxManhattan)
	_, _ = fmt.Fprintln(a.Out, "\nScanner positions:")
	for _, p := range s.Scanners {
		_, _ = fmt.Fprintf(a.Out, "  %-12s (%d, %d, %d)\n", p.Name, p.Translation.X, p.Translation.Y, p.Translation.Z)
	}
}

// RunRender assembles the map and writes it as an image
func (a *App) RunRender() error {
	summary, err := a.assemble(context.Background())
	if err != nil {
		return err
	}
	a.printSummary(summary)

	view := a.StateTracker.MapView()
	if !view.HasDrawableContent() {
		return errors.New("nothing to render")
	}

	output := a.OutputFile
	if output == "" {
		output = "beacon-map.png"
	}

	switch a.RenderFormat {
	case "", "raster":
		renderer := newCompositeRenderer(view, a.Config.Render)
		if err := renderer.SavePNG(output); err != nil {
			return fmt.Errorf("saving %s: %w", output, err)
		}
	case "vector":
		if a.VectorFormat == "svg" && strings.EqualFold(filepath.Ext(output), ".png") {
			output = strings.TrimSuffix(output, filepath.Ext(output)) + ".svg"
		}
		if err := a.renderVector(view, output); err != nil {
			return err
		}
	default:
		return fmt.Errorf("unknown render format %q (want raster or vector)", a.RenderFormat)
	}

	_, _ = fmt.Fprintf(a.Out, "\nSaved map to %s\n", output)
	return nil
}

func (a *App) renderVector(view *mesh.MapView, output string) error {
	renderer := newVectorRenderer(view, a.Config.Render)

	f, err := os.Create(output)
	if err != nil {
		return fmt.Errorf("creating %s: %w", output, err)
	}
	defer func() { _ = f.Close() }()

	switch a.VectorFormat {
	case "", "svg":
		err = renderer.RenderToSVG(f)
	case "png":
		err = renderer.RenderToPNG(f)
	default:
		return fmt.Errorf("unknown vector format %q (want svg or png)", a.VectorFormat)
	}
	if err != nil {
		return fmt.Errorf("rendering %s: %w", output, err)
	}
	return nil
}

// RunService serves HTTP and/or publishes over MQTT until interrupted. The
// HTTP server starts before the first assembly, so a summary restored from
// --state-cache is available while the map is being assembled.
func (a *App) RunService() error {
	_, _ = fmt.Fprintln(a.Out, "Starting beaconmesh service...")

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	config, err := a.loadConfig()
	if err != nil {
		return err
	}

	var server *http.Server
	if a.HttpMode {
		server = &http.Server{
			Addr:              fmt.Sprintf("0.0.0.0:%d", a.HttpPort),
			Handler:           newHTTPServer(a.StateTracker, config.Render),
			ReadHeaderTimeout: 10 * time.Second,
		}
		go func() {
			log.Printf("[HTTP] Starting server on %s", server.Addr)
			if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				log.Printf("[HTTP] Server error: %v", err)
				stop()
			}
		}()

		_, _ = fmt.Fprintf(a.Out, "\nHTTP endpoints (port %d):\n", a.HttpPort)
		_, _ = fmt.Fprintln(a.Out, "  GET /health       - Health check")
		_, _ = fmt.Fprintln(a.Out, "  GET /summary.json - Beacon count, max distance, scanner poses")
		_, _ = fmt.Fprintln(a.Out, "  GET /map.geojson  - Beacons and scanners as GeoJSON")
		_, _ = fmt.Fprintln(a.Out, "  GET /map.svg      - Vector map")
		_, _ = fmt.Fprintln(a.Out, "  GET /map.png      - Raster map (?format=vector for rasterized vector)")
		_, _ = fmt.Fprintln(a.Out, "  GET /metrics      - Prometheus metrics")
	}

	summary, err := a.assemble(ctx)
	if err != nil {
		a.shutdown(server)
		return err
	}
	a.printSummary(summary)

	if a.MqttMode {
		mqttCfg := mesh.ResolveMQTTConfig(a.Config.MQTT)
		publish := func() {
			if s := a.StateTracker.GetSummary(); s != nil && a.Publisher != nil {
				if err := a.Publisher.PublishSummary(s); err != nil {
					log.Printf("[MQTT] error publishing summary: %v", err)
				}
			}
		}
		a.MQTTClient = mesh.NewMQTTClient(mqttCfg, publish)
		if a.MQTTClient == nil {
			a.shutdown(server)
			return errors.New("MQTT broker not configured (set mqtt.broker or MQTT_BROKER)")
		}
		a.Publisher = mesh.NewPublisher(a.MQTTClient.GetClient(), mqttCfg.PublishPrefix)
		a.MQTTClient.Start(ctx)
		_, _ = fmt.Fprintf(a.Out, "\nMQTT: publishing to %s/summary and %s/{scanner}\n", mqttCfg.PublishPrefix, mqttCfg.PublishPrefix)
	}

	_, _ = fmt.Fprintln(a.Out, "\nPress Ctrl+C to stop")
	<-ctx.Done()

	_, _ = fmt.Fprintln(a.Out, "\nShutting down service...")
	a.shutdown(server)
	if a.MQTTClient != nil {
		a.MQTTClient.Disconnect()
	}
	_, _ = fmt.Fprintln(a.Out, "Service stopped")
	return nil
}

func (a *App) shutdown(server *http.Server) {
	if server == nil {
		return
	}
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Printf("[HTTP] shutdown error: %v", err)
	}
}
