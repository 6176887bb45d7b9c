package main

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/roverd/gridslam/slam"
)

// ---------------------------------------------------------------------------
// helpers
// ---------------------------------------------------------------------------

// writeScanFile writes a scan JSON fixture to dir with the replay naming
// convention scan-{sensorID}-{seq}.json.
func writeScanFile(t *testing.T, dir, sensorID, seq string, scan slam.ScanMessage) string {
	t.Helper()
	data, err := json.Marshal(scan)
	if err != nil {
		t.Fatalf("marshal scan: %v", err)
	}
	path := filepath.Join(dir, "scan-"+sensorID+"-"+seq+".json")
	if err := os.WriteFile(path, data, 0644); err != nil {
		t.Fatalf("write scan file: %v", err)
	}
	return path
}

// appWithTracker returns an App wired up far enough for handleScan and
// writeMap without going through loadConfig.
func appWithTracker(config *slam.Config) *App {
	app := NewApp()
	app.Config = config
	app.Tracker = slam.NewSensorTracker(config.Grid)
	return app
}

// ---------------------------------------------------------------------------
// construction and options
// ---------------------------------------------------------------------------

func TestNewApp(t *testing.T) {
	app := NewApp()
	if app == nil {
		t.Fatal("NewApp returned nil")
	}
	if app.Config != nil || app.Tracker != nil {
		t.Error("config and tracker should be nil before loading")
	}
}

func TestApplyOptions(t *testing.T) {
	app := NewApp()
	app.ApplyOptions(AppOptions{
		ConfigFile: "custom.yaml",
		DataDir:    "/tmp/scans",
		OutputFile: "map.svg",
		Format:     "vector",
		HttpPort:   9090,
		MqttMode:   true,
		HttpMode:   true,
	})

	if app.ConfigFile != "custom.yaml" {
		t.Errorf("ConfigFile = %q", app.ConfigFile)
	}
	if app.DataDir != "/tmp/scans" {
		t.Errorf("DataDir = %q", app.DataDir)
	}
	if app.OutputFile != "map.svg" {
		t.Errorf("OutputFile = %q", app.OutputFile)
	}
	if app.Format != "vector" {
		t.Errorf("Format = %q", app.Format)
	}
	if app.HttpPort != 9090 {
		t.Errorf("HttpPort = %d", app.HttpPort)
	}
	if !app.MqttMode || !app.HttpMode {
		t.Error("mode flags not applied")
	}
}

// ---------------------------------------------------------------------------
// sensorIDFromFilename
// ---------------------------------------------------------------------------

func TestSensorIDFromFilename(t *testing.T) {
	tests := []struct {
		path string
		want string
	}{
		{path: "scan-lidar-a-0001.json", want: "lidar-a"},
		{path: "/data/scans/scan-lidar-a-0002.json", want: "lidar-a"},
		{path: "scan-front-12.json", want: "front"},
		// No sequence separator: the remainder is the ID
		{path: "scan-solo.json", want: "solo"},
	}

	for _, tt := range tests {
		if got := sensorIDFromFilename(tt.path); got != tt.want {
			t.Errorf("sensorIDFromFilename(%q) = %q, want %q", tt.path, got, tt.want)
		}
	}
}

// ---------------------------------------------------------------------------
// handleScan
// ---------------------------------------------------------------------------

func TestHandleScanMapsCloud(t *testing.T) {
	app := appWithTracker(&slam.Config{
		Grid: slam.GridConfig{Resolution: 1, Dimensions: []int{30, 30}},
		Sensors: []slam.SensorConfig{
			{ID: "lidar-a", Topic: "sensors/lidar-a/scan"},
		},
	})

	app.handleScan("lidar-a", &slam.ScanMessage{
		Points:   [][]float64{{3, 0}, {0, 3}},
		NewFrame: true,
	})

	if count := app.Tracker.ScanCount("lidar-a"); count != 1 {
		t.Errorf("ScanCount = %d, want 1", count)
	}
	grid, _, ok := app.Tracker.Grid("lidar-a")
	if !ok {
		t.Fatal("no grid after handleScan")
	}
	// Endpoint relative to the grid center [15 15]
	if !grid.Touched(slam.Cell{18, 15}) {
		t.Error("endpoint cell not touched")
	}
}

func TestHandleScanAppliesVoxelDownsample(t *testing.T) {
	app := appWithTracker(&slam.Config{
		Grid: slam.GridConfig{Resolution: 1, Dimensions: []int{30, 30}},
		Sensors: []slam.SensorConfig{
			{ID: "lidar-a", Topic: "sensors/lidar-a/scan", VoxelSize: 10},
		},
	})

	// Two near-identical points collapse into a single voxel centroid, so
	// mapping still succeeds and touches the shared endpoint cell.
	app.handleScan("lidar-a", &slam.ScanMessage{
		Points:   [][]float64{{3.0, 0.1}, {3.1, 0.2}},
		NewFrame: true,
	})

	if count := app.Tracker.ScanCount("lidar-a"); count != 1 {
		t.Errorf("ScanCount = %d, want 1", count)
	}
}

func TestHandleScanKeepsTrackerOnMapperError(t *testing.T) {
	// A 4-dimensional grid cannot build a mapper; handleScan must log and
	// leave the tracker without a map instead of panicking.
	app := appWithTracker(&slam.Config{
		Grid:    slam.GridConfig{Resolution: 1, Dimensions: []int{10, 10, 10, 10}},
		Sensors: []slam.SensorConfig{{ID: "lidar-a", Topic: "t"}},
	})

	app.handleScan("lidar-a", &slam.ScanMessage{
		Points:   [][]float64{{1, 1, 1, 1}},
		NewFrame: true,
	})

	if app.Tracker.HasMaps() {
		t.Error("tracker should not report maps after a failed push")
	}
}

// ---------------------------------------------------------------------------
// writeMap
// ---------------------------------------------------------------------------

func TestWriteMapFormats(t *testing.T) {
	app := appWithTracker(&slam.Config{
		Grid:    slam.GridConfig{Resolution: 1, Dimensions: []int{30, 30}},
		Sensors: []slam.SensorConfig{{ID: "lidar-a", Topic: "t"}},
	})
	if _, err := app.Tracker.PushScan("lidar-a", slam.PointCloud{{3, 0}, {0, 3}}, true); err != nil {
		t.Fatalf("PushScan: %v", err)
	}
	grid, resolution, _ := app.Tracker.Grid("lidar-a")
	pose, _ := app.Tracker.Pose("lidar-a")

	dir := t.TempDir()
	tests := []struct {
		format string
		file   string
	}{
		{format: "raster", file: "map.png"},
		{format: "vector", file: "map.svg"},
		{format: "geojson", file: "map.geojson"},
	}

	for _, tt := range tests {
		t.Run(tt.format, func(t *testing.T) {
			app.Format = tt.format
			path := filepath.Join(dir, tt.file)
			if err := app.writeMap("lidar-a", grid, pose, resolution, path); err != nil {
				t.Fatalf("writeMap: %v", err)
			}
			info, err := os.Stat(path)
			if err != nil {
				t.Fatalf("stat output: %v", err)
			}
			if info.Size() == 0 {
				t.Error("output file is empty")
			}
		})
	}
}

func TestWriteMapUnknownFormat(t *testing.T) {
	app := appWithTracker(&slam.Config{
		Grid:    slam.GridConfig{Resolution: 1, Dimensions: []int{30, 30}},
		Sensors: []slam.SensorConfig{{ID: "lidar-a", Topic: "t"}},
	})
	if _, err := app.Tracker.PushScan("lidar-a", slam.PointCloud{{3, 0}}, true); err != nil {
		t.Fatalf("PushScan: %v", err)
	}
	grid, resolution, _ := app.Tracker.Grid("lidar-a")
	pose, _ := app.Tracker.Pose("lidar-a")

	app.Format = "jpeg"
	path := filepath.Join(t.TempDir(), "map.jpeg")
	if err := app.writeMap("lidar-a", grid, pose, resolution, path); err == nil {
		t.Error("expected an error for an unknown format")
	}
}

// ---------------------------------------------------------------------------
// replay fixtures
// ---------------------------------------------------------------------------

// TestReplayScanOrdering verifies the file naming round trip used by
// RunReplay: fixtures written with writeScanFile decode to the sensor they
// were written for, in lexical sequence order.
func TestReplayScanOrdering(t *testing.T) {
	dir := t.TempDir()
	writeScanFile(t, dir, "lidar-a", "0002", slam.ScanMessage{
		Points: [][]float64{{1, 0}}, NewFrame: true,
	})
	writeScanFile(t, dir, "lidar-a", "0001", slam.ScanMessage{
		Points: [][]float64{{2, 0}}, NewFrame: true,
	})

	files, err := filepath.Glob(filepath.Join(dir, "scan-*.json"))
	if err != nil {
		t.Fatalf("glob: %v", err)
	}
	if len(files) != 2 {
		t.Fatalf("found %d scan files, want 2", len(files))
	}

	for _, file := range files {
		scan, err := slam.DecodeScanFile(file)
		if err != nil {
			t.Errorf("decode %s: %v", file, err)
			continue
		}
		if scan.SensorID != "" {
			t.Errorf("fixture should rely on filename-derived IDs, got %q", scan.SensorID)
		}
		if got := sensorIDFromFilename(file); got != "lidar-a" {
			t.Errorf("sensorIDFromFilename(%q) = %q", file, got)
		}
	}
}
