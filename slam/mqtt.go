package slam

import (
	"fmt"
	"log"
	"os"
	"strings"
	"sync"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"
)

// MessageHandler is called when a scan message is received
// Parameters: sensorID, rawPayload, scan, error
// rawPayload is provided so callers can archive payloads that failed to decode
type MessageHandler func(sensorID string, rawPayload []byte, scan *ScanMessage, err error)

// ResetHandler is called when a sensor requests a map reset
type ResetHandler func(sensorID string)

// MQTTClient manages the MQTT connection and scan topic subscriptions
type MQTTClient struct {
	client         mqtt.Client
	config         *Config
	messageHandler MessageHandler
	resetHandler   ResetHandler
	isConnected    bool
	mu             sync.RWMutex
}

var (
	globalClient *MQTTClient
	clientMu     sync.Mutex
)

// InitMQTT initializes the global MQTT client with the provided configuration
// If MQTT_BROKER env var is empty, MQTT is disabled and this returns nil
func InitMQTT(config *Config, handler MessageHandler) (*MQTTClient, error) {
	clientMu.Lock()
	defer clientMu.Unlock()

	// Check if MQTT is enabled via env var or config
	broker := os.Getenv("MQTT_BROKER")
	if broker == "" && config != nil && config.MQTT.Broker != "" {
		broker = config.MQTT.Broker
	}

	if broker == "" {
		log.Println("MQTT disabled: MQTT_BROKER not set")
		return nil, nil
	}

	if config == nil || len(config.Sensors) == 0 {
		return nil, fmt.Errorf("MQTT enabled but no sensor configuration provided")
	}

	client := &MQTTClient{
		config:         config,
		messageHandler: handler,
	}

	// Build MQTT client options
	opts := mqtt.NewClientOptions()
	opts.AddBroker(broker)

	// Client ID
	clientID := os.Getenv("MQTT_CLIENT_ID")
	if clientID == "" && config.MQTT.ClientID != "" {
		clientID = config.MQTT.ClientID
	}
	if clientID == "" {
		clientID = "gridslam"
	}
	opts.SetClientID(clientID)

	// Authentication
	username := os.Getenv("MQTT_USERNAME")
	if username == "" && config.MQTT.Username != "" {
		username = config.MQTT.Username
	}
	if username != "" {
		opts.SetUsername(username)
		password := os.Getenv("MQTT_PASSWORD")
		if password == "" && config.MQTT.Password != "" {
			password = config.MQTT.Password
		}
		opts.SetPassword(password)
	}

	// Connection settings
	opts.SetAutoReconnect(true)
	opts.SetConnectRetry(true)
	opts.SetConnectRetryInterval(5 * time.Second)
	opts.SetMaxReconnectInterval(60 * time.Second)
	opts.SetKeepAlive(60 * time.Second)   // Longer than default 30s to reduce spurious disconnects
	opts.SetPingTimeout(10 * time.Second) // Timeout for ping response
	opts.SetCleanSession(false)           // Preserve subscriptions on reconnect
	opts.SetOrderMatters(true)            // Scans must reach the mapper in order

	// Callbacks
	opts.SetOnConnectHandler(client.onConnect)
	opts.SetConnectionLostHandler(client.onConnectionLost)
	opts.SetReconnectingHandler(client.onReconnecting)

	client.client = mqtt.NewClient(opts)

	// Connect asynchronously with retry
	go client.connectWithRetry()

	globalClient = client
	return client, nil
}

// GetMQTTClient returns the global MQTT client instance
func GetMQTTClient() *MQTTClient {
	clientMu.Lock()
	defer clientMu.Unlock()
	return globalClient
}

// connectWithRetry attempts to connect to the MQTT broker with exponential backoff
func (c *MQTTClient) connectWithRetry() {
	retryDelay := 1 * time.Second
	maxRetryDelay := 60 * time.Second

	for {
		log.Println("Connecting to MQTT broker...")

		token := c.client.Connect()
		if token.WaitTimeout(10 * time.Second) {
			if token.Error() == nil {
				log.Println("Successfully connected to MQTT broker")
				c.setConnected(true)
				return
			}
			log.Printf("MQTT connection failed: %v", token.Error())
		} else {
			log.Println("MQTT connection timeout")
		}

		// Exponential backoff
		log.Printf("Retrying MQTT connection in %v...", retryDelay)
		time.Sleep(retryDelay)
		retryDelay *= 2
		if retryDelay > maxRetryDelay {
			retryDelay = maxRetryDelay
		}
	}
}

// onConnect is called when the MQTT connection is established
func (c *MQTTClient) onConnect(client mqtt.Client) {
	log.Println("MQTT connected, subscribing to sensor topics...")
	c.setConnected(true)

	// Subscribe to all sensor topics from config
	for _, sensor := range c.config.Sensors {
		if sensor.Topic == "" {
			log.Printf("Warning: sensor %s has no topic configured", sensor.ID)
			continue
		}

		log.Printf("Subscribing to %s for sensor %s", sensor.Topic, sensor.ID)
		token := client.Subscribe(sensor.Topic, 1, c.createMessageHandler(sensor.ID))

		if token.WaitTimeout(5*time.Second) && token.Error() != nil {
			log.Printf("Error subscribing to %s: %v", sensor.Topic, token.Error())
		} else {
			log.Printf("Successfully subscribed to %s", sensor.Topic)
		}

		// Subscribe to reset topic for map reset requests
		if resetTopic, ok := deriveResetTopic(sensor.Topic); ok {
			log.Printf("Subscribing to %s for sensor %s resets", resetTopic, sensor.ID)
			resetToken := client.Subscribe(resetTopic, 1, c.createResetMessageHandler(sensor.ID))

			if resetToken.WaitTimeout(5*time.Second) && resetToken.Error() != nil {
				log.Printf("Error subscribing to %s: %v", resetTopic, resetToken.Error())
			} else {
				log.Printf("Successfully subscribed to %s", resetTopic)
			}
		}
	}
}

// onConnectionLost is called when the MQTT connection is lost
// Auto-reconnect is enabled, so this is typically a transient event
func (c *MQTTClient) onConnectionLost(client mqtt.Client, err error) {
	log.Printf("MQTT connection interrupted (%v), auto-reconnect will retry", err)
	c.setConnected(false)
}

// onReconnecting is called when the client attempts to reconnect
func (c *MQTTClient) onReconnecting(client mqtt.Client, opts *mqtt.ClientOptions) {
	log.Println("MQTT reconnecting...")
}

// createMessageHandler creates a handler function for a specific sensor's scan topic
func (c *MQTTClient) createMessageHandler(sensorID string) mqtt.MessageHandler {
	return func(client mqtt.Client, msg mqtt.Message) {
		payload := msg.Payload()
		log.Printf("Received scan for %s (topic: %s, size: %d bytes)",
			sensorID, msg.Topic(), len(payload))

		// Decode the scan (handles raw JSON or zlib-compressed JSON)
		scan, err := DecodeScan(payload)
		if err != nil {
			log.Printf("Error decoding scan for %s: %v", sensorID, err)
			if c.messageHandler != nil {
				c.messageHandler(sensorID, payload, nil, err)
			}
			return
		}

		if c.messageHandler != nil {
			c.messageHandler(sensorID, payload, scan, nil)
		}
	}
}

// SetResetHandler registers a callback that is invoked when a sensor requests a map reset
func (c *MQTTClient) SetResetHandler(handler ResetHandler) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.resetHandler = handler
}

// getResetHandler returns the current reset handler in a thread-safe manner
func (c *MQTTClient) getResetHandler() ResetHandler {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.resetHandler
}

// deriveResetTopic converts a scan topic to its reset command topic.
// Example: "lidar/rover1/scan" -> "lidar/rover1/reset"
// Returns the derived topic and true if the conversion succeeded, or empty string and false otherwise.
func deriveResetTopic(scanTopic string) (string, bool) {
	parts := strings.Split(scanTopic, "/")
	if len(parts) < 2 {
		return "", false
	}
	parts[len(parts)-1] = "reset"
	return strings.Join(parts, "/"), true
}

// createResetMessageHandler creates a handler for reset topic messages
func (c *MQTTClient) createResetMessageHandler(sensorID string) mqtt.MessageHandler {
	return func(client mqtt.Client, msg mqtt.Message) {
		log.Printf("Received reset request for %s (topic: %s)", sensorID, msg.Topic())

		handler := c.getResetHandler()
		if handler != nil {
			handler(sensorID)
		}
	}
}

// IsConnected returns true if the MQTT client is connected
func (c *MQTTClient) IsConnected() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.isConnected
}

// setConnected updates the connection status
func (c *MQTTClient) setConnected(connected bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.isConnected = connected
}

// Disconnect gracefully closes the MQTT connection
func (c *MQTTClient) Disconnect() {
	if c.client != nil && c.client.IsConnected() {
		log.Println("Disconnecting from MQTT broker...")
		c.client.Disconnect(250) // 250ms quiesce time
		c.setConnected(false)
	}
}

// GetSensorByTopic returns the sensor ID for a given topic
func (c *MQTTClient) GetSensorByTopic(topic string) (string, bool) {
	for _, sensor := range c.config.Sensors {
		if sensor.Topic == topic {
			return sensor.ID, true
		}
	}
	return "", false
}

// GetClient returns the underlying MQTT client for publishing
func (c *MQTTClient) GetClient() mqtt.Client {
	return c.client
}

// newMQTTClientWithMock creates an MQTTClient with a provided mqtt.Client
// This is used for testing with mock clients
func newMQTTClientWithMock(client mqtt.Client, config *Config, handler MessageHandler) *MQTTClient {
	return &MQTTClient{
		client:         client,
		config:         config,
		messageHandler: handler,
	}
}
