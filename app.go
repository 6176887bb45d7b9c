package main

import (
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"sort"
	"strings"
	"syscall"

	"github.com/roverd/gridslam/slam"
)

// App encapsulates the application state and dependencies
type App struct {
	Config     *slam.Config
	Tracker    *slam.SensorTracker
	MQTTClient *slam.MQTTClient
	Publisher  *slam.Publisher

	// CLI Flags (effectively dependencies)
	ConfigFile string
	DataDir    string
	OutputFile string
	Format     string
	HttpPort   int
	MqttMode   bool
	HttpMode   bool
}

// NewApp creates a new App instance
func NewApp() *App {
	return &App{}
}

// ApplyOptions applies CLI options to the App instance
func (a *App) ApplyOptions(opts AppOptions) {
	a.ConfigFile = opts.ConfigFile
	a.DataDir = opts.DataDir
	a.OutputFile = opts.OutputFile
	a.Format = opts.Format
	a.HttpPort = opts.HttpPort
	a.MqttMode = opts.MqttMode
	a.HttpMode = opts.HttpMode
}

// loadConfig resolves the config path relative to data-dir and loads it
func (a *App) loadConfig() *slam.Config {
	resolved := a.ConfigFile
	if a.DataDir != "." && resolved == "config.yaml" {
		resolved = filepath.Join(a.DataDir, "config.yaml")
	}

	config, err := slam.LoadConfig(resolved)
	if err != nil {
		log.Fatalf("Failed to load config: %v (looked at %s)", err, resolved)
	}
	a.Config = config
	log.Printf("Loaded config from %s", resolved)
	return config
}

// handleScan feeds one decoded scan into the tracker and publishes the pose.
// It is the shared path for MQTT service mode and replay mode.
func (a *App) handleScan(sensorID string, scan *slam.ScanMessage) {
	cloud := scan.Cloud()

	// Optional per-sensor downsample before registration
	if sc := a.Config.GetSensorByID(sensorID); sc != nil && sc.VoxelSize > 0 {
		before := len(cloud)
		cloud = slam.VoxelDownsample(cloud, sc.VoxelSize)
		log.Printf("%s: downsampled %d -> %d points (voxel %.3f)",
			sensorID, before, len(cloud), sc.VoxelSize)
	}

	pose, err := a.Tracker.PushScan(sensorID, cloud, scan.NewFrame)
	if err != nil {
		log.Printf("Error mapping scan for %s: %v", sensorID, err)
		return
	}

	log.Printf("%s: mapped %d points, pose=%v heading=%.3f rad",
		sensorID, len(cloud), pose.Translation, pose.Rotation.Angle())

	if a.Publisher != nil {
		if err := a.Publisher.PublishPose(sensorID, pose); err != nil {
			log.Printf("Error publishing pose for %s: %v", sensorID, err)
		}
	}
}

// RunReplay processes recorded scan files from the data directory in order
// and writes the resulting map to the output file. Scan files are named
// scan-{sensorID}-{seq}.json and replayed in lexical order.
func (a *App) RunReplay() {
	config := a.loadConfig()
	a.Tracker = slam.NewSensorTracker(config.Grid)

	pattern := filepath.Join(a.DataDir, "scan-*.json")
	files, err := filepath.Glob(pattern)
	if err != nil {
		log.Fatalf("Error finding scan files: %v", err)
	}
	if len(files) == 0 {
		log.Fatal("No scan-*.json files found")
	}
	sort.Strings(files)

	fmt.Printf("Found %d scan file(s)\n", len(files))

	for _, file := range files {
		scan, err := slam.DecodeScanFile(file)
		if err != nil {
			log.Printf("Skipping %s: %v", file, err)
			continue
		}

		sensorID := scan.SensorID
		if sensorID == "" {
			sensorID = sensorIDFromFilename(file)
		}
		if sensorID == "" {
			log.Printf("Skipping %s: no sensor ID in payload or filename", file)
			continue
		}

		a.handleScan(sensorID, scan)
	}

	// Render each sensor's map
	for _, id := range a.Tracker.SensorIDs() {
		grid, resolution, ok := a.Tracker.Grid(id)
		if !ok {
			continue
		}
		pose, _ := a.Tracker.Pose(id)

		output := a.OutputFile
		if len(a.Tracker.SensorIDs()) > 1 {
			ext := filepath.Ext(output)
			output = strings.TrimSuffix(output, ext) + "-" + id + ext
		}

		if err := a.writeMap(id, grid, pose, resolution, output); err != nil {
			log.Fatalf("Error rendering map for %s: %v", id, err)
		}
		fmt.Printf("Created: %s\n", output)
	}
}

// writeMap renders one sensor's grid in the requested format
func (a *App) writeMap(sensorID string, grid *slam.OccupancyGrid, pose slam.RigidTransform, resolution float64, path string) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer func() { _ = f.Close() }()

	threshold := a.Config.RenderThreshold
	if threshold <= 0 {
		threshold = 0.5
	}

	switch a.Format {
	case "raster":
		renderer := slam.NewGridRenderer(grid, pose)
		renderer.Label = sensorID
		return renderer.RenderToPNG(f)
	case "vector":
		renderer := slam.NewVectorGridRenderer(grid, pose)
		renderer.Threshold = threshold
		return renderer.RenderToSVG(f)
	case "geojson":
		fc := slam.GridToFeatureCollection(grid, pose, a.Tracker.Trail(sensorID), sensorID, resolution, threshold)
		return writeJSON(f, fc)
	default:
		return fmt.Errorf("unknown format: %s (expected raster, vector, or geojson)", a.Format)
	}
}

// sensorIDFromFilename extracts the sensor ID from a scan-{id}-{seq}.json path
func sensorIDFromFilename(path string) string {
	base := filepath.Base(path)
	base = strings.TrimPrefix(base, "scan-")
	base = strings.TrimSuffix(base, ".json")
	if idx := strings.LastIndexByte(base, '-'); idx > 0 {
		return base[:idx]
	}
	return base
}

// RunService runs the MQTT ingest loop and/or the HTTP map server
func (a *App) RunService() {
	fmt.Println("Starting gridslam service...")

	config := a.loadConfig()
	a.Tracker = slam.NewSensorTracker(config.Grid)

	// Set colors from config
	for _, sc := range config.Sensors {
		if sc.Color != "" {
			a.Tracker.SetColor(sc.ID, sc.Color)
		}
	}

	// Start MQTT if enabled
	if a.MqttMode {
		messageHandler := func(sensorID string, rawPayload []byte, scan *slam.ScanMessage, err error) {
			if err != nil {
				log.Printf("Error receiving scan for %s: %v", sensorID, err)
				return
			}
			a.handleScan(sensorID, scan)
		}

		mqttClient, err := slam.InitMQTT(config, messageHandler)
		if err != nil {
			log.Fatalf("Failed to initialize MQTT: %v", err)
		}
		a.MQTTClient = mqttClient

		if mqttClient == nil {
			log.Fatal("MQTT broker not configured in config.yaml")
		}

		// Map reset requests discard the sensor's mapper and retained pose
		mqttClient.SetResetHandler(func(sensorID string) {
			log.Printf("Resetting map for %s", sensorID)
			a.Tracker.Reset(sensorID)
			if a.Publisher != nil {
				a.Publisher.ClearPose(sensorID)
			}
		})

		// Initialize publisher now that we have an MQTT client
		a.Publisher = slam.NewPublisher(mqttClient.GetClient())
		fmt.Println("MQTT pose publisher initialized")
	}

	// Start HTTP server if enabled
	if a.HttpMode {
		httpServer := newHTTPServer(a.Tracker, a.Config)
		go func() {
			addr := fmt.Sprintf("0.0.0.0:%d", a.HttpPort)
			log.Printf("[HTTP] Starting server on %s", addr)
			if err := http.ListenAndServe(addr, httpServer); err != nil {
				log.Fatalf("[HTTP] Server error: %v", err)
			}
		}()
	}

	// Print service info
	fmt.Println("\nService Running")
	fmt.Println("===============")

	if a.MqttMode {
		fmt.Println("\nMQTT:")
		fmt.Println("  Subscribed topics:")
		for _, sc := range config.Sensors {
			fmt.Printf("    - %s (%s)\n", sc.Topic, sc.ID)
		}
		publishPrefix := config.MQTT.PublishPrefix
		if publishPrefix == "" {
			publishPrefix = "gridslam"
		}
		fmt.Printf("  Publishing to: %s/{sensorID}/pose\n", publishPrefix)
		fmt.Printf("  Combined poses: %s/poses\n", publishPrefix)
	}

	if a.HttpMode {
		fmt.Printf("\nHTTP endpoints (port %d):\n", a.HttpPort)
		fmt.Println("  GET /healthz                  - Health check")
		fmt.Println("  GET /api/pose/{id}            - Current sensor pose")
		fmt.Println("  GET /api/map/{id}.png         - Greyscale occupancy map")
		fmt.Println("  GET /api/map/{id}.svg         - Vector occupancy map")
		fmt.Println("  GET /api/map/{id}.geojson     - Map as GeoJSON")
	}

	fmt.Println("\nPress Ctrl+C to stop")

	// Wait for interrupt signal
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	<-sigChan

	fmt.Println("\nShutting down service...")
	if a.MQTTClient != nil {
		a.MQTTClient.Disconnect()
	}
	fmt.Println("Service stopped")
}
