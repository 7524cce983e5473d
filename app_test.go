package main

import (
	"bytes"
	"encoding/json"
	"fmt"
	"image/png"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/kwv/beaconmesh/mesh"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const exampleInput = "mesh/testdata/example.txt"

// newTestApp returns an App writing to a buffer with its calibration cache in
// a temp dir.
func newTestApp(t *testing.T) (*App, *bytes.Buffer) {
	t.Helper()
	var out bytes.Buffer
	app := NewApp()
	app.Out = &out
	app.ApplyOptions(AppOptions{
		Input:            exampleInput,
		CalibrationCache: filepath.Join(t.TempDir(), "calibration.json"),
	})
	return app, &out
}

// writeReport writes scanners in the report format read by mesh.ParseScanners.
func writeReport(t *testing.T, path string, scanners []*mesh.Scanner) {
	t.Helper()
	var b strings.Builder
	for _, s := range scanners {
		_, _ = fmt.Fprintf(&b, "--- %s ---\n", s.Name)
		for _, p := range s.Beacons.Points() {
			_, _ = fmt.Fprintf(&b, "%d,%d,%d\n", p.X, p.Y, p.Z)
		}
		_, _ = b.WriteString("\n")
	}
	require.NoError(t, os.WriteFile(path, []byte(b.String()), 0644))
}

func TestNewApp(t *testing.T) {
	app := NewApp()
	assert.NotNil(t, app.StateTracker)
	assert.Equal(t, os.Stdout, app.Out)
	assert.Nil(t, app.Config)
	assert.Nil(t, app.MQTTClient)
}

func TestApplyOptions(t *testing.T) {
	app := NewApp()
	opts := AppOptions{
		ConfigFile:       "config.yaml",
		Input:            "scans.txt",
		Reference:        "scanner 1",
		CalibrationCache: "cache.json",
		SaveConfigFile:   "effective.yaml",
		OutputFile:       "out.svg",
		GeoJSONFile:      "out.geojson",
		RenderFormat:     "vector",
		VectorFormat:     "png",
		GridSpacing:      250,
		MinOverlap:       8,
		Workers:          3,
		HttpPort:         9000,
		MqttMode:         true,
		HttpMode:         true,
	}
	app.ApplyOptions(opts)

	assert.Equal(t, "config.yaml", app.ConfigFile)
	assert.Equal(t, "scans.txt", app.Input)
	assert.Equal(t, "scanner 1", app.Reference)
	assert.Equal(t, "cache.json", app.CalibrationCache)
	assert.Equal(t, "effective.yaml", app.SaveConfigFile)
	assert.Equal(t, "out.svg", app.OutputFile)
	assert.Equal(t, "out.geojson", app.GeoJSONFile)
	assert.Equal(t, "vector", app.RenderFormat)
	assert.Equal(t, "png", app.VectorFormat)
	assert.Equal(t, 250.0, app.GridSpacing)
	assert.Equal(t, 8, app.MinOverlap)
	assert.Equal(t, 3, app.Workers)
	assert.Equal(t, 9000, app.HttpPort)
	assert.True(t, app.MqttMode)
	assert.True(t, app.HttpMode)
}

func TestLoadConfig_Overrides(t *testing.T) {
	dir := t.TempDir()
	configPath := filepath.Join(dir, "config.yaml")
	require.NoError(t, os.WriteFile(configPath, []byte("input: from-config.txt\nassembly:\n  workers: 2\n"), 0644))

	app := NewApp()
	app.ApplyOptions(AppOptions{ConfigFile: configPath, Workers: 5, MinOverlap: 6})

	config, err := app.loadConfig()
	require.NoError(t, err)
	assert.Equal(t, "from-config.txt", config.Input)
	assert.Equal(t, 5, config.Assembly.Workers)
	assert.Equal(t, 6, config.Assembly.MinOverlap)
	assert.Same(t, config, app.Config)
}

func TestLoadConfig_Errors(t *testing.T) {
	tests := []struct {
		name    string
		opts    AppOptions
		wantErr string
	}{
		{"no input", AppOptions{}, "no input"},
		{"missing config file", AppOptions{ConfigFile: "does-not-exist.yaml"}, "loading config"},
		{"overlap too small", AppOptions{Input: "x.txt", MinOverlap: 2}, "minOverlap"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			app := NewApp()
			app.ApplyOptions(tt.opts)
			_, err := app.loadConfig()
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestRunParseOnly(t *testing.T) {
	app, out := newTestApp(t)
	require.NoError(t, app.RunParseOnly())

	s := out.String()
	assert.Contains(t, s, "Found 5 scanner(s)")
	assert.Contains(t, s, "=== scanner 4 ===")
	assert.Contains(t, s, "Beacons: 26")
	assert.Contains(t, s, "Total beacon reports: 127")
	assert.False(t, app.StateTracker.HasMap())
}

func TestRunParseOnly_MissingInput(t *testing.T) {
	app, _ := newTestApp(t)
	app.Input = "mesh/testdata/missing.txt"
	assert.Error(t, app.RunParseOnly())
}

func TestRunAssemble(t *testing.T) {
	app, out := newTestApp(t)
	app.GeoJSONFile = filepath.Join(t.TempDir(), "map.geojson")

	require.NoError(t, app.RunAssemble())

	s := out.String()
	assert.Contains(t, s, "Reference: scanner 0")
	assert.Contains(t, s, "Beacons: 79")
	assert.Contains(t, s, "Max Manhattan distance: 3621")
	assert.Contains(t, s, "(1105, -1205, 1229)")
	assert.True(t, app.StateTracker.HasMap())

	cal, err := mesh.LoadCalibration(app.CalibrationCache)
	require.NoError(t, err)
	require.NotNil(t, cal)
	assert.Equal(t, "scanner 0", cal.ReferenceScanner)
	assert.Len(t, cal.Scanners, 5)

	data, err := os.ReadFile(app.GeoJSONFile)
	require.NoError(t, err)
	var doc map[string]any
	require.NoError(t, json.Unmarshal(data, &doc))
	assert.Equal(t, "FeatureCollection", doc["type"])
}

func TestRunAssemble_UsesCalibrationCache(t *testing.T) {
	app, _ := newTestApp(t)
	require.NoError(t, app.RunAssemble())

	// Second run starts from the cached transforms and must agree.
	again, out := newTestApp(t)
	again.CalibrationCache = app.CalibrationCache
	require.NoError(t, again.RunAssemble())
	assert.Contains(t, out.String(), "Beacons: 79")
	assert.Equal(t, app.StateTracker.GetSummary().Scanners, again.StateTracker.GetSummary().Scanners)
}

func TestRunAssemble_CalibrationCacheFromOtherInput(t *testing.T) {
	first, _ := newTestApp(t)
	require.NoError(t, first.RunAssemble())

	// Same scanner names, but scanner 1 reports in a rotated frame.
	scanners, err := mesh.ParseScannerFile(exampleInput)
	require.NoError(t, err)
	turned := mesh.Transform{Rotation: mesh.Rotations()[5]}
	scanners[1] = mesh.NewScanner(scanners[1].Name, mesh.TransformPoints(scanners[1].Beacons.Points(), turned))
	rotatedInput := filepath.Join(t.TempDir(), "rotated.txt")
	writeReport(t, rotatedInput, scanners)

	second, out := newTestApp(t)
	second.Input = rotatedInput
	second.CalibrationCache = first.CalibrationCache
	require.NoError(t, second.RunAssemble())

	assert.Contains(t, out.String(), "Beacons: 79")
	assert.Contains(t, out.String(), "Max Manhattan distance: 3621")

	cal, err := mesh.LoadCalibration(first.CalibrationCache)
	require.NoError(t, err)
	assert.Equal(t, second.Calibration.InputHash, cal.InputHash, "cache rewritten for the new input")
	assert.NotEqual(t, first.Calibration.InputHash, cal.InputHash)
}

func TestRunAssemble_WithoutCalibrationCache(t *testing.T) {
	app, out := newTestApp(t)
	app.CalibrationCache = ""

	require.NoError(t, app.RunAssemble())
	assert.Contains(t, out.String(), "Beacons: 79")
	assert.Nil(t, app.Calibration)
}

func TestRunAssemble_SaveConfig(t *testing.T) {
	app, _ := newTestApp(t)
	app.Workers = 3
	app.SaveConfigFile = filepath.Join(t.TempDir(), "effective.yaml")

	require.NoError(t, app.RunAssemble())

	saved, err := mesh.LoadConfig(app.SaveConfigFile)
	require.NoError(t, err)
	assert.Equal(t, exampleInput, saved.Input)
	assert.Equal(t, 3, saved.Assembly.Workers)
}

func TestApplyOptions_StateCache(t *testing.T) {
	path := filepath.Join(t.TempDir(), "state.json")
	require.NoError(t, mesh.SaveSummary(&mesh.Summary{Reference: "scanner 0", BeaconCount: 79}, path))

	app := NewApp()
	app.ApplyOptions(AppOptions{Input: exampleInput, StateCache: path})
	require.NotNil(t, app.StateTracker.GetSummary(), "cached summary is available before assembling")
	assert.False(t, app.StateTracker.HasMap())

	app.Out = &bytes.Buffer{}
	require.NoError(t, app.RunAssemble())

	cached, err := mesh.LoadSummary(path)
	require.NoError(t, err)
	assert.Equal(t, 79, cached.BeaconCount)
	assert.Len(t, cached.Scanners, 5, "live assembly refreshed the cache")
}

func TestRunAssemble_AlternateReference(t *testing.T) {
	app, out := newTestApp(t)
	app.Reference = "scanner 1"
	app.Workers = 4

	require.NoError(t, app.RunAssemble())
	assert.Contains(t, out.String(), "Reference: scanner 1")
	assert.Contains(t, out.String(), "Beacons: 79")
	assert.Contains(t, out.String(), "Max Manhattan distance: 3621")
}

func TestRunAssemble_UnknownReference(t *testing.T) {
	app, _ := newTestApp(t)
	app.Reference = "scanner 99"
	assert.Error(t, app.RunAssemble())
}

func TestRunRender_Raster(t *testing.T) {
	app, out := newTestApp(t)
	app.OutputFile = filepath.Join(t.TempDir(), "map.png")

	require.NoError(t, app.RunRender())
	assert.Contains(t, out.String(), "Saved map to "+app.OutputFile)

	f, err := os.Open(app.OutputFile)
	require.NoError(t, err)
	defer func() { _ = f.Close() }()
	_, err = png.Decode(f)
	assert.NoError(t, err)
}

func TestRunRender_VectorSVG(t *testing.T) {
	app, out := newTestApp(t)
	dir := t.TempDir()
	app.OutputFile = filepath.Join(dir, "map.png")
	app.RenderFormat = "vector"
	app.VectorFormat = "svg"

	require.NoError(t, app.RunRender())

	want := filepath.Join(dir, "map.svg")
	assert.Contains(t, out.String(), "Saved map to "+want)
	data, err := os.ReadFile(want)
	require.NoError(t, err)
	assert.True(t, strings.Contains(string(data), "<svg"))
}

func TestRunRender_VectorPNG(t *testing.T) {
	app, _ := newTestApp(t)
	app.OutputFile = filepath.Join(t.TempDir(), "map.png")
	app.RenderFormat = "vector"
	app.VectorFormat = "png"

	require.NoError(t, app.RunRender())

	f, err := os.Open(app.OutputFile)
	require.NoError(t, err)
	defer func() { _ = f.Close() }()
	_, err = png.Decode(f)
	assert.NoError(t, err)
}

func TestRunRender_UnknownFormat(t *testing.T) {
	app, _ := newTestApp(t)
	app.OutputFile = filepath.Join(t.TempDir(), "map.png")
	app.RenderFormat = "ascii"

	err := app.RunRender()
	assert.ErrorContains(t, err, "unknown render format")
}

func TestRunService_MQTTWithoutBroker(t *testing.T) {
	t.Setenv("MQTT_BROKER", "")
	app, _ := newTestApp(t)
	app.MqttMode = true

	err := app.RunService()
	assert.ErrorContains(t, err, "MQTT broker not configured")
	assert.True(t, app.StateTracker.HasMap(), "map is assembled before MQTT starts")
}

func TestRunService_AssemblyFailureStopsHTTP(t *testing.T) {
	app, _ := newTestApp(t)
	app.HttpMode = true
	app.HttpPort = 0
	app.Input = "mesh/testdata/missing.txt"

	err := app.RunService()
	assert.ErrorContains(t, err, "loading mesh/testdata/missing.txt")
	assert.False(t, app.StateTracker.HasMap())
}
