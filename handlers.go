package main

import (
	"encoding/json"
	"fmt"
	"log"
	"net/http"
	"strings"
	"time"

	"github.com/roverd/gridslam/slam"
)

// newHTTPServer creates an HTTP server with all endpoints
func newHTTPServer(tracker *slam.SensorTracker, config *slam.Config) http.Handler {
	mux := http.NewServeMux()

	threshold := config.RenderThreshold
	if threshold <= 0 {
		threshold = 0.5
	}

	// Health check endpoint
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		status := struct {
			Status    string    `json:"status"`
			Timestamp time.Time `json:"timestamp"`
			HasMaps   bool      `json:"hasMaps"`
			Sensors   []string  `json:"sensors"`
		}{
			Status:    "ok",
			Timestamp: time.Now(),
			HasMaps:   tracker.HasMaps(),
			Sensors:   tracker.SensorIDs(),
		}
		if err := json.NewEncoder(w).Encode(status); err != nil {
			log.Printf("Error encoding health status: %v", err)
		}
	})

	// Pose endpoint: /api/pose/{sensorID}
	mux.HandleFunc("/api/pose/", func(w http.ResponseWriter, r *http.Request) {
		sensorID := strings.TrimPrefix(r.URL.Path, "/api/pose/")
		if sensorID == "" {
			http.Error(w, "Missing sensor ID", http.StatusBadRequest)
			return
		}

		pose, ok := tracker.Pose(sensorID)
		if !ok {
			http.Error(w, "No map for sensor", http.StatusNotFound)
			return
		}

		w.Header().Set("Content-Type", "application/json")
		w.Header().Set("Cache-Control", "no-cache")
		payload := struct {
			SensorID string    `json:"sensorId"`
			Position []float64 `json:"position"`
			Heading  float64   `json:"heading"`
			Scans    int       `json:"scans"`
		}{
			SensorID: sensorID,
			Position: pose.Translation,
			Heading:  pose.Rotation.Angle(),
			Scans:    tracker.ScanCount(sensorID),
		}
		if err := json.NewEncoder(w).Encode(payload); err != nil {
			log.Printf("Error encoding pose for %s: %v", sensorID, err)
		}
	})

	// Map endpoints: /api/map/{sensorID}.png|.svg|.geojson
	mux.HandleFunc("/api/map/", func(w http.ResponseWriter, r *http.Request) {
		name := strings.TrimPrefix(r.URL.Path, "/api/map/")

		var sensorID, format string
		if idx := strings.LastIndexByte(name, '.'); idx > 0 {
			sensorID = name[:idx]
			format = name[idx+1:]
		}
		if sensorID == "" || format == "" {
			http.Error(w, "Expected /api/map/{sensor}.{png|svg|geojson}", http.StatusBadRequest)
			return
		}

		grid, resolution, ok := tracker.Grid(sensorID)
		if !ok {
			http.Error(w, "No map for sensor", http.StatusNotFound)
			return
		}
		pose, _ := tracker.Pose(sensorID)

		switch format {
		case "png":
			renderer := slam.NewGridRenderer(grid, pose)
			renderer.Label = sensorID
			w.Header().Set("Content-Type", "image/png")
			w.Header().Set("Cache-Control", "no-cache")
			if err := renderer.RenderToPNG(w); err != nil {
				log.Printf("Error encoding map PNG for %s: %v", sensorID, err)
			}

		case "svg":
			renderer := slam.NewVectorGridRenderer(grid, pose)
			renderer.Threshold = threshold
			trail := tracker.Trail(sensorID)
			renderer.Trail = make([]slam.Point, len(trail))
			for i, p := range trail {
				renderer.Trail[i] = slam.Point{p[0], p[1]}
			}
			w.Header().Set("Content-Type", "image/svg+xml")
			w.Header().Set("Cache-Control", "no-cache")
			if err := renderer.RenderToSVG(w); err != nil {
				log.Printf("Error encoding map SVG for %s: %v", sensorID, err)
			}

		case "geojson":
			fc := slam.GridToFeatureCollection(grid, pose, tracker.Trail(sensorID), sensorID, resolution, threshold)
			w.Header().Set("Content-Type", "application/geo+json")
			w.Header().Set("Cache-Control", "no-cache")
			if err := json.NewEncoder(w).Encode(fc); err != nil {
				log.Printf("Error encoding map GeoJSON for %s: %v", sensorID, err)
			}

		default:
			http.Error(w, "Unknown format: "+format, http.StatusBadRequest)
		}
	})

	// Default route serves HTML page embedding the first sensor's SVG map
	mux.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/" {
			http.NotFound(w, r)
			return
		}
		first := ""
		if len(config.Sensors) > 0 {
			first = config.Sensors[0].ID
		}
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		w.Header().Set("Cache-Control", "no-cache")
		_, _ = fmt.Fprintf(w, `<!DOCTYPE html>
<html lang="en">
<head>
<meta charset="utf-8">
<meta name="viewport" content="width=device-width, initial-scale=1">
<title>gridslam</title>
<style>
*{margin:0;padding:0;box-sizing:border-box}
html,body{width:100%%;height:100%%;overflow:hidden;background:#1a1a1a}
img{display:block;width:100vw;height:100vh;object-fit:contain}
</style>
</head>
<body>
<img src="/api/map/%s.svg" alt="Occupancy Map">
</body>
</html>`, first)
	})

	// Wrap mux with logging middleware
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		log.Printf("[HTTP] %s %s from %s", r.Method, r.URL.Path, r.RemoteAddr)
		mux.ServeHTTP(w, r)
	})
}
