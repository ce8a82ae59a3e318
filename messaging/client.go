package messaging

import (
	"bytes"
	"context"
	"fmt"
	"net/http"
	"sync"
	"time"

	"tilledge/config"

	mqtt "github.com/eclipse/paho.mqtt.golang"
	kafkago "github.com/segmentio/kafka-go"
)

// Client is the unified sync transport (HTTP, MQTT or Kafka).
type Client struct {
	mu           sync.RWMutex
	cfg          *config.SyncConfig
	backend      string
	httpC        *http.Client
	mqttConn     mqtt.Client
	kafkaW       *kafkago.Writer
	onConnChange func(connected bool)
}

// NewClient creates a sync client based on config.
func NewClient(cfg *config.SyncConfig) *Client {
	return &Client{
		cfg:     cfg,
		backend: cfg.Backend,
	}
}

// OnConnectionChange registers a callback fired when the transport comes up
// or goes down. Must be set before Connect. The callback runs outside the
// client's lock and may call back into the client.
func (c *Client) OnConnectionChange(fn func(connected bool)) {
	c.mu.Lock()
	c.onConnChange = fn
	c.mu.Unlock()
}

func (c *Client) notifyConnChange(connected bool) {
	c.mu.RLock()
	fn := c.onConnChange
	c.mu.RUnlock()
	if fn != nil {
		fn(connected)
	}
}

// Connect establishes the transport connection.
func (c *Client) Connect() error {
	c.mu.Lock()
	var err error
	switch c.backend {
	case "http":
		err = c.connectHTTP()
	case "mqtt":
		err = c.connectMQTT()
	case "kafka":
		err = c.connectKafka()
	default:
		err = fmt.Errorf("unknown sync backend: %s", c.backend)
	}
	c.mu.Unlock()

	// MQTT announces its own transitions through the paho handlers.
	if err == nil && c.backend != "mqtt" {
		c.notifyConnChange(true)
	}
	return err
}

func (c *Client) connectHTTP() error {
	timeout := c.cfg.HTTP.Timeout
	if timeout <= 0 {
		timeout = 15 * time.Second
	}
	c.httpC = &http.Client{Timeout: timeout}
	return nil
}

func (c *Client) connectMQTT() error {
	broker := fmt.Sprintf("tcp://%s:%d", c.cfg.MQTT.Broker, c.cfg.MQTT.Port)
	opts := mqtt.NewClientOptions().
		AddBroker(broker).
		SetClientID(c.cfg.MQTT.ClientID).
		SetAutoReconnect(true).
		SetConnectRetry(true).
		SetConnectRetryInterval(5 * time.Second).
		SetOnConnectHandler(func(mqtt.Client) {
			c.notifyConnChange(true)
		}).
		SetConnectionLostHandler(func(_ mqtt.Client, _ error) {
			c.notifyConnChange(false)
		})

	client := mqtt.NewClient(opts)
	token := client.Connect()
	token.Wait()
	if err := token.Error(); err != nil {
		return fmt.Errorf("mqtt connect: %w", err)
	}
	c.mqttConn = client
	return nil
}

func (c *Client) connectKafka() error {
	c.kafkaW = &kafkago.Writer{
		Addr:         kafkago.TCP(c.cfg.Kafka.Brokers...),
		Balancer:     &kafkago.LeastBytes{},
		RequiredAcks: kafkago.RequireOne,
	}
	return nil
}

// Publish sends a message on the given topic. For the HTTP backend the topic
// is informational; the payload is POSTed to the configured endpoint.
func (c *Client) Publish(topic string, payload []byte) error {
	c.mu.RLock()
	defer c.mu.RUnlock()

	switch c.backend {
	case "http":
		if c.httpC == nil {
			return fmt.Errorf("http client not initialized")
		}
		resp, err := c.httpC.Post(c.cfg.HTTP.EndpointURL, "application/json", bytes.NewReader(payload))
		if err != nil {
			return err
		}
		defer resp.Body.Close()
		if resp.StatusCode < 200 || resp.StatusCode > 299 {
			return fmt.Errorf("sync endpoint returned %s", resp.Status)
		}
		return nil
	case "mqtt":
		if c.mqttConn == nil || !c.mqttConn.IsConnected() {
			return fmt.Errorf("mqtt not connected")
		}
		token := c.mqttConn.Publish(topic, 1, false, payload)
		token.Wait()
		return token.Error()
	case "kafka":
		if c.kafkaW == nil {
			return fmt.Errorf("kafka writer not initialized")
		}
		return c.kafkaW.WriteMessages(context.Background(), kafkago.Message{
			Topic: topic,
			Value: payload,
		})
	default:
		return fmt.Errorf("unknown backend: %s", c.backend)
	}
}

// IsConnected returns whether the transport is usable.
func (c *Client) IsConnected() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	switch c.backend {
	case "http":
		return c.httpC != nil
	case "mqtt":
		return c.mqttConn != nil && c.mqttConn.IsConnected()
	case "kafka":
		return c.kafkaW != nil
	default:
		return false
	}
}

// Close shuts down the transport.
func (c *Client) Close() {
	c.mu.Lock()
	wasConnected := c.httpC != nil || c.kafkaW != nil ||
		(c.mqttConn != nil && c.mqttConn.IsConnected())
	if c.mqttConn != nil {
		c.mqttConn.Disconnect(1000)
		c.mqttConn = nil
	}
	if c.kafkaW != nil {
		c.kafkaW.Close()
		c.kafkaW = nil
	}
	c.httpC = nil
	c.mu.Unlock()

	if wasConnected {
		c.notifyConnChange(false)
	}
}
