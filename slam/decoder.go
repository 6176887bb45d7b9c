package slam

import (
	"bytes"
	"compress/zlib"
	"encoding/json"
	"fmt"
	"io"
	"math"
	"os"
)

// ScanMessage is the wire format for an incoming point cloud. NewFrame marks
// the start of a new sensor sweep; intermediate partial clouds of the same
// sweep arrive with NewFrame false.
type ScanMessage struct {
	SensorID string      `json:"sensorId,omitempty"`
	Points   [][]float64 `json:"points"`
	NewFrame bool        `json:"newFrame"`
}

// Cloud converts the raw point rows into a PointCloud.
func (s *ScanMessage) Cloud() PointCloud {
	cloud := make(PointCloud, len(s.Points))
	for i, row := range s.Points {
		cloud[i] = Point(row)
	}
	return cloud
}

// DecodeScan decodes a scan payload from either format:
// - Raw JSON (primary format from MQTT)
// - Zlib-compressed JSON (bandwidth-constrained sensors)
func DecodeScan(data []byte) (*ScanMessage, error) {
	if len(data) == 0 {
		return nil, fmt.Errorf("empty data")
	}

	var jsonBytes []byte
	var err error

	if data[0] == '{' {
		jsonBytes = data
	} else {
		jsonBytes, err = inflateZlib(data)
		if err != nil {
			return nil, fmt.Errorf("unknown format: not JSON or zlib-compressed")
		}
	}

	if len(jsonBytes) == 0 {
		return nil, fmt.Errorf("decoded JSON payload is empty")
	}

	var scan ScanMessage
	if err := json.Unmarshal(jsonBytes, &scan); err != nil {
		return nil, fmt.Errorf("parsing scan JSON: %w", err)
	}

	if err := validateScan(&scan); err != nil {
		return nil, err
	}

	return &scan, nil
}

// validateScan rejects malformed clouds before they reach the mapper:
// mixed dimensionality and non-finite coordinates both poison the
// registration math silently, so they are refused at the boundary.
func validateScan(scan *ScanMessage) error {
	if len(scan.Points) == 0 {
		return fmt.Errorf("scan contains no points")
	}

	dim := len(scan.Points[0])
	if dim == 0 {
		return fmt.Errorf("scan point 0 has no coordinates")
	}

	for i, p := range scan.Points {
		if len(p) != dim {
			return fmt.Errorf("scan point %d has %d coordinates, expected %d", i, len(p), dim)
		}
		for j, v := range p {
			if math.IsNaN(v) || math.IsInf(v, 0) {
				return fmt.Errorf("scan point %d coordinate %d is not finite", i, j)
			}
		}
	}

	return nil
}

// inflateZlib decompresses zlib-compressed data
func inflateZlib(data []byte) ([]byte, error) {
	reader, err := zlib.NewReader(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("creating zlib reader: %w", err)
	}
	defer func() { _ = reader.Close() }()

	decompressed, err := io.ReadAll(reader)
	if err != nil {
		return nil, fmt.Errorf("decompressing zlib data: %w", err)
	}

	return decompressed, nil
}

// DecodeScanFile reads and decodes a scan payload from a file.
// This is a convenience function for replay mode and tests.
func DecodeScanFile(path string) (*ScanMessage, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading file: %w", err)
	}
	return DecodeScan(data)
}
