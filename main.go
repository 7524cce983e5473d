package main

import (
	"errors"
	"flag"
	"fmt"
	"io"
	"log"
	"os"
)

// Version is set at build time via -ldflags
var Version = "dev"

// AppOptions holds the parsed command line
type AppOptions struct {
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
	ParseOnly        bool
	RenderOnly       bool
	MqttMode         bool
	HttpMode         bool
}

// Runner is implemented by App; tests substitute a mock
type Runner interface {
	ApplyOptions(opts AppOptions)
	RunParseOnly() error
	RunAssemble() error
	RunRender() error
	RunService() error
}

func run(args []string, out io.Writer, app Runner) error {
	fs := flag.NewFlagSet("beaconmesh", flag.ContinueOnError)
	fs.SetOutput(out)

	var opts AppOptions
	fs.StringVar(&opts.ConfigFile, "config", "", "Path to optional YAML configuration file")
	fs.StringVar(&opts.Input, "input", "", "Scanner report file or http(s) URL (overrides config)")
	fs.StringVar(&opts.Reference, "reference", "", "Scanner whose frame becomes global (default: first scanner)")
	fs.StringVar(&opts.CalibrationCache, "calibration-cache", "", "Path to solved transform cache, reused only for identical input (default: disabled)")
	fs.StringVar(&opts.StateCache, "state-cache", "", "Path to persist the latest summary; served by --http until the first assembly finishes")
	fs.StringVar(&opts.SaveConfigFile, "save-config", "", "Write the effective configuration (file plus flag overrides) to this YAML file")
	fs.StringVar(&opts.OutputFile, "output", "beacon-map.png", "Output file for --render mode")
	fs.StringVar(&opts.GeoJSONFile, "geojson", "", "Write the assembled map as GeoJSON to this file")
	fs.StringVar(&opts.RenderFormat, "format", "raster", "Render format: raster or vector")
	fs.StringVar(&opts.VectorFormat, "vector-format", "svg", "Vector output format: svg or png")
	fs.Float64Var(&opts.GridSpacing, "grid-spacing", 0, "Grid line spacing in world units for vector output; 0 disables")
	fs.IntVar(&opts.MinOverlap, "min-overlap", 0, "Shared distances required to accept an overlap (default 12)")
	fs.IntVar(&opts.Workers, "workers", 0, "Concurrent overlap searches per pass (default 1)")
	fs.IntVar(&opts.HttpPort, "http-port", 8080, "HTTP server port")
	fs.BoolVar(&opts.ParseOnly, "parse-only", false, "Parse scanner reports and exit")
	fs.BoolVar(&opts.RenderOnly, "render", false, "Assemble, render the map and exit")
	fs.BoolVar(&opts.MqttMode, "mqtt", false, "Publish the assembled map to MQTT and keep running")
	fs.BoolVar(&opts.HttpMode, "http", false, "Serve the assembled map over HTTP and keep running")

	if err := fs.Parse(args); err != nil {
		return err
	}

	_, _ = fmt.Fprintf(out, "beaconmesh version: %s\n", Version)
	app.ApplyOptions(opts)

	switch {
	case opts.ParseOnly:
		return app.RunParseOnly()
	case opts.RenderOnly:
		return app.RunRender()
	case opts.MqttMode || opts.HttpMode:
		return app.RunService()
	default:
		return app.RunAssemble()
	}
}

func main() {
	if err := run(os.Args[1:], os.Stdout, NewApp()); err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return
		}
		log.Fatalf("Error: %v", err)
	}
}
