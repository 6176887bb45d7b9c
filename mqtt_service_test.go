package main

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/roverd/gridslam/slam"
)

// ---------------------------------------------------------------------------
// config resolution
// ---------------------------------------------------------------------------

func TestLoadConfigResolvesDataDir(t *testing.T) {
	dir := t.TempDir()
	configYAML := `mqtt:
  broker: "tcp://localhost:1883"
  publishPrefix: "gridslam"

grid:
  resolution: 0.05
  dimensions: [400, 400]

sensors:
  - id: lidar-a
    topic: "sensors/lidar-a/scan"
    color: "#FF0000"
`
	if err := os.WriteFile(filepath.Join(dir, "config.yaml"), []byte(configYAML), 0644); err != nil {
		t.Fatalf("write config: %v", err)
	}

	app := NewApp()
	app.ApplyOptions(AppOptions{ConfigFile: "config.yaml", DataDir: dir})

	config := app.loadConfig()
	if config.MQTT.Broker != "tcp://localhost:1883" {
		t.Errorf("broker = %q", config.MQTT.Broker)
	}
	if len(config.Sensors) != 1 || config.Sensors[0].ID != "lidar-a" {
		t.Errorf("sensors = %+v", config.Sensors)
	}
	if app.Config != config {
		t.Error("loadConfig should store the config on the app")
	}
}

func TestLoadConfigExplicitPathWins(t *testing.T) {
	dir := t.TempDir()
	configYAML := `mqtt:
  broker: "tcp://elsewhere:1883"

grid:
  resolution: 1
  dimensions: [100, 100]

sensors:
  - id: lidar-a
    topic: "sensors/lidar-a/scan"
`
	explicit := filepath.Join(dir, "custom.yaml")
	if err := os.WriteFile(explicit, []byte(configYAML), 0644); err != nil {
		t.Fatalf("write config: %v", err)
	}

	// A non-default config path must not be rewritten against data-dir.
	app := NewApp()
	app.ApplyOptions(AppOptions{ConfigFile: explicit, DataDir: "/does/not/exist"})

	config := app.loadConfig()
	if config.MQTT.Broker != "tcp://elsewhere:1883" {
		t.Errorf("broker = %q", config.MQTT.Broker)
	}
}

// ---------------------------------------------------------------------------
// scan ingest to pose publish wiring
// ---------------------------------------------------------------------------

func TestHandleScanPublishesPose(t *testing.T) {
	t.Setenv("MQTT_PUBLISH_PREFIX", "")

	mock := slam.NewMockClient()
	mock.SetConnected(true)

	app := appWithTracker(&slam.Config{
		Grid:    slam.GridConfig{Resolution: 1, Dimensions: []int{40, 40}},
		Sensors: []slam.SensorConfig{{ID: "lidar-a", Topic: "sensors/lidar-a/scan"}},
	})
	app.Publisher = slam.NewPublisher(mock)

	app.handleScan("lidar-a", &slam.ScanMessage{
		Points:   [][]float64{{3, 0}, {0, 3}},
		NewFrame: true,
	})

	messages := mock.GetPublishedMessages()
	if len(messages) == 0 {
		t.Fatal("no MQTT messages published after a mapped scan")
	}

	var individual, combined bool
	for _, msg := range messages {
		switch msg.Topic {
		case "gridslam/lidar-a/pose":
			individual = true
			var payload struct {
				Position []float64 `json:"position"`
			}
			if err := json.Unmarshal(msg.Payload, &payload); err != nil {
				t.Fatalf("pose payload is not JSON: %v", err)
			}
			if len(payload.Position) != 2 || payload.Position[0] != 20 {
				t.Errorf("position = %v, want grid center [20 20]", payload.Position)
			}
		case "gridslam/poses":
			combined = true
		}
	}
	if !individual {
		t.Error("individual pose topic not published")
	}
	if !combined {
		t.Error("combined poses topic not published")
	}
}

func TestHandleScanSkipsPublishOnMapperError(t *testing.T) {
	t.Setenv("MQTT_PUBLISH_PREFIX", "")

	mock := slam.NewMockClient()
	mock.SetConnected(true)

	app := appWithTracker(&slam.Config{
		Grid:    slam.GridConfig{Resolution: 1, Dimensions: []int{10, 10, 10, 10}},
		Sensors: []slam.SensorConfig{{ID: "lidar-a", Topic: "t"}},
	})
	app.Publisher = slam.NewPublisher(mock)

	app.handleScan("lidar-a", &slam.ScanMessage{
		Points:   [][]float64{{1, 1, 1, 1}},
		NewFrame: true,
	})

	if messages := mock.GetPublishedMessages(); len(messages) != 0 {
		t.Errorf("published %d messages after a failed push, want 0", len(messages))
	}
}

// ---------------------------------------------------------------------------
// reset wiring
// ---------------------------------------------------------------------------

func TestResetClearsTrackerAndRetainedPose(t *testing.T) {
	t.Setenv("MQTT_PUBLISH_PREFIX", "")

	mock := slam.NewMockClient()
	mock.SetConnected(true)

	app := appWithTracker(&slam.Config{
		Grid:    slam.GridConfig{Resolution: 1, Dimensions: []int{40, 40}},
		Sensors: []slam.SensorConfig{{ID: "lidar-a", Topic: "sensors/lidar-a/scan"}},
	})
	app.Publisher = slam.NewPublisher(mock)

	app.handleScan("lidar-a", &slam.ScanMessage{
		Points:   [][]float64{{3, 0}},
		NewFrame: true,
	})
	if !app.Tracker.HasMaps() {
		t.Fatal("tracker has no maps after a scan")
	}

	// Mirror the reset handler RunService installs
	app.Tracker.Reset("lidar-a")
	app.Publisher.ClearPose("lidar-a")

	if app.Tracker.HasMaps() {
		t.Error("tracker still reports maps after reset")
	}
	if app.Tracker.ScanCount("lidar-a") != 0 {
		t.Error("scan count not cleared by reset")
	}
	if _, ok := app.Publisher.GetPose("lidar-a"); ok {
		t.Error("publisher still retains a pose after ClearPose")
	}
}
