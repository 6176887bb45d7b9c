package slam

import (
	"encoding/json"
	"fmt"
	"log"
	"os"
	"sync"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"
)

// SensorPose is the published pose of one sensor in grid coordinates.
// Heading is the rotation angle in radians; for 3D poses it is the rotation
// angle about the quaternion axis.
type SensorPose struct {
	SensorID  string    `json:"sensorId"`
	Position  []float64 `json:"position"`
	Heading   float64   `json:"heading"`
	Timestamp int64     `json:"timestamp"`
}

// Publisher manages publishing estimated sensor poses to MQTT
type Publisher struct {
	client        mqtt.Client
	publishPrefix string
	qos           byte
	retain        bool
	poses         map[string]*SensorPose
	mu            sync.RWMutex
}

// NewPublisher creates a new pose publisher
// If client is nil, publishing is disabled (for testing)
func NewPublisher(client mqtt.Client) *Publisher {
	prefix := os.Getenv("MQTT_PUBLISH_PREFIX")
	if prefix == "" {
		prefix = "gridslam"
	}

	return &Publisher{
		client:        client,
		publishPrefix: prefix,
		qos:           0,    // QoS 0 for pose updates (fire and forget)
		retain:        true, // Retain for latest pose
		poses:         make(map[string]*SensorPose),
	}
}

// PublishPose publishes a single sensor's estimated pose to MQTT
// Publishes to both individual topic and combined poses topic
func (p *Publisher) PublishPose(sensorID string, transform RigidTransform) error {
	if p.client == nil || !p.client.IsConnected() {
		return fmt.Errorf("MQTT client not connected")
	}

	pose := &SensorPose{
		SensorID:  sensorID,
		Position:  transform.Translation.Clone(),
		Heading:   transform.Rotation.Angle(),
		Timestamp: time.Now().Unix(),
	}

	// Store pose for combined message
	p.mu.Lock()
	p.poses[sensorID] = pose
	p.mu.Unlock()

	// Publish to individual topic: gridslam/{sensorID}/pose
	if err := p.publishIndividual(pose); err != nil {
		log.Printf("Error publishing pose for %s: %v", sensorID, err)
		return err
	}

	// Publish to combined topic: gridslam/poses
	if err := p.publishCombined(); err != nil {
		log.Printf("Error publishing combined poses: %v", err)
		return err
	}

	return nil
}

// publishIndividual publishes a single sensor pose to its individual topic
func (p *Publisher) publishIndividual(pose *SensorPose) error {
	topic := fmt.Sprintf("%s/%s/pose", p.publishPrefix, pose.SensorID)

	payload, err := json.Marshal(pose)
	if err != nil {
		return fmt.Errorf("marshaling pose: %w", err)
	}

	token := p.client.Publish(topic, p.qos, p.retain, payload)
	if token.WaitTimeout(2*time.Second) && token.Error() != nil {
		return fmt.Errorf("publishing to %s: %w", topic, token.Error())
	}

	log.Printf("Published pose for %s: position=%v heading=%.3f rad",
		pose.SensorID, pose.Position, pose.Heading)
	return nil
}

// publishCombined publishes all sensor poses to the combined topic
func (p *Publisher) publishCombined() error {
	p.mu.RLock()
	poses := make([]*SensorPose, 0, len(p.poses))
	for _, pose := range p.poses {
		poses = append(poses, pose)
	}
	p.mu.RUnlock()

	if len(poses) == 0 {
		return nil
	}

	topic := fmt.Sprintf("%s/poses", p.publishPrefix)

	message := map[string]interface{}{
		"sensors":   poses,
		"timestamp": time.Now().Unix(),
	}

	payload, err := json.Marshal(message)
	if err != nil {
		return fmt.Errorf("marshaling combined poses: %w", err)
	}

	token := p.client.Publish(topic, p.qos, p.retain, payload)
	if token.WaitTimeout(2*time.Second) && token.Error() != nil {
		return fmt.Errorf("publishing to %s: %w", topic, token.Error())
	}

	return nil
}

// GetPose returns the last published pose for a sensor
func (p *Publisher) GetPose(sensorID string) (*SensorPose, bool) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	pose, ok := p.poses[sensorID]
	return pose, ok
}

// GetAllPoses returns all known sensor poses
func (p *Publisher) GetAllPoses() map[string]*SensorPose {
	p.mu.RLock()
	defer p.mu.RUnlock()

	// Return a copy to avoid race conditions
	poses := make(map[string]*SensorPose, len(p.poses))
	for id, pose := range p.poses {
		poseCopy := *pose
		poses[id] = &poseCopy
	}
	return poses
}

// ClearPose removes a sensor's pose (e.g., after a map reset)
func (p *Publisher) ClearPose(sensorID string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	delete(p.poses, sensorID)
}

// SetQoS sets the Quality of Service level for publishing (0, 1, or 2)
func (p *Publisher) SetQoS(qos byte) {
	if qos <= 2 {
		p.qos = qos
	}
}

// SetRetain sets whether published messages should be retained by the broker
func (p *Publisher) SetRetain(retain bool) {
	p.retain = retain
}
