package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"io"
)

// Version is set at build time via -ldflags
var Version = "dev"

var (
	configFile = flag.String("config", "config.yaml", "Path to configuration file")
	dataDir    = flag.String("data-dir", ".", "Directory containing config and recorded scans")
	replayMode = flag.Bool("replay", false, "Replay recorded scan-*.json files and render the map")
	outputFile = flag.String("output", "occupancy-map.png", "Output file for --replay mode")
	format     = flag.String("format", "raster", "Render format: raster, vector, or geojson")
	mqttMode   = flag.Bool("mqtt", false, "Run MQTT service mode for live scan ingest")
	httpMode   = flag.Bool("http", false, "Enable HTTP server for serving map images")
	httpPort   = flag.Int("http-port", 8080, "HTTP server port (default 8080)")
)

// AppOptions carries parsed CLI flags into the App
type AppOptions struct {
	ConfigFile string
	DataDir    string
	OutputFile string
	Format     string
	HttpPort   int
	MqttMode   bool
	HttpMode   bool
}

func main() {
	flag.Parse()
	fmt.Printf("gridslam version: %s\n", Version)

	app := NewApp()
	app.ApplyOptions(AppOptions{
		ConfigFile: *configFile,
		DataDir:    *dataDir,
		OutputFile: *outputFile,
		Format:     *format,
		HttpPort:   *httpPort,
		MqttMode:   *mqttMode,
		HttpMode:   *httpMode,
	})

	if *replayMode {
		app.RunReplay()
		return
	}

	if *mqttMode || *httpMode {
		app.RunService()
		return
	}

	fmt.Println("gridslam service starting...")
	fmt.Println("Use --replay to process recorded scans and render a map")
	fmt.Println("Use --mqtt to run MQTT service mode")
	fmt.Println("Use --http to run HTTP server mode")
	fmt.Println("Use --mqtt --http to run both MQTT and HTTP together")
	fmt.Println("\nConfiguration:")
	fmt.Println("  config.yaml - MQTT broker, sensors, and grid settings")
}

// writeJSON encodes v as indented JSON to the writer
func writeJSON(w io.Writer, v interface{}) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
