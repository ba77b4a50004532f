package notify

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"

	"github.com/CLDWare/attendance-kiosk/config"
	models "github.com/CLDWare/attendance-kiosk/pkg/db"
	"github.com/CLDWare/attendance-kiosk/pkg/logger"
)

// MQTTPublisher forwards notifications to <prefix>/<kiosk>/notifications
type MQTTPublisher struct {
	cfg    config.MQTTConfig
	client mqtt.Client

	mu        sync.RWMutex
	connected bool
	published uint64
	errors    uint64
}

func NewMQTTPublisher(cfg config.MQTTConfig) *MQTTPublisher {
	return &MQTTPublisher{cfg: cfg}
}

// Connect dials the broker. Reconnects after a lost connection happen in
// the background.
func (p *MQTTPublisher) Connect(ctx context.Context) error {
	opts := mqtt.NewClientOptions()
	opts.AddBroker(fmt.Sprintf("tcp://%s", p.cfg.Broker))
	opts.SetClientID(p.cfg.ClientID)
	opts.SetAutoReconnect(true)
	opts.SetConnectRetry(true)
	opts.SetConnectRetryInterval(2 * time.Second)
	opts.SetMaxReconnectInterval(30 * time.Second)

	opts.OnConnect = func(c mqtt.Client) {
		p.setConnected(true)
		logger.Info("MQTT: connected to", p.cfg.Broker)
	}
	opts.OnConnectionLost = func(c mqtt.Client, err error) {
		p.setConnected(false)
		logger.Warn("MQTT: connection lost, reconnecting:", err)
	}

	p.client = mqtt.NewClient(opts)

	token := p.client.Connect()
	if !token.WaitTimeout(5 * time.Second) {
		return fmt.Errorf("mqtt connection timeout")
	}
	if err := token.Error(); err != nil {
		return fmt.Errorf("mqtt connection failed: %w", err)
	}
	p.setConnected(true)
	return nil
}

func (p *MQTTPublisher) setConnected(v bool) {
	p.mu.Lock()
	p.connected = v
	p.mu.Unlock()
}

// Topic returns the topic notifications of kioskID are published on
func (p *MQTTPublisher) Topic(kioskID string) string {
	if kioskID == "" {
		kioskID = "unregistered"
	}
	return fmt.Sprintf("%s/%s/notifications", p.cfg.TopicPrefix, kioskID)
}

func (p *MQTTPublisher) Publish(ctx context.Context, n models.Notification) error {
	p.mu.RLock()
	connected := p.connected
	p.mu.RUnlock()
	if !connected || p.client == nil {
		p.countError()
		return fmt.Errorf("mqtt not connected")
	}

	payload, err := json.Marshal(remoteDoc(n))
	if err != nil {
		p.countError()
		return fmt.Errorf("failed to marshal notification: %w", err)
	}

	token := p.client.Publish(p.Topic(n.KioskID), p.cfg.QoS, false, payload)
	if !token.WaitTimeout(2 * time.Second) {
		p.countError()
		return fmt.Errorf("publish timeout")
	}
	if err := token.Error(); err != nil {
		p.countError()
		return fmt.Errorf("publish failed: %w", err)
	}

	p.mu.Lock()
	p.published++
	p.mu.Unlock()
	return nil
}

func (p *MQTTPublisher) countError() {
	p.mu.Lock()
	p.errors++
	p.mu.Unlock()
}

// Disconnect closes the broker connection
func (p *MQTTPublisher) Disconnect() {
	if p.client != nil && p.client.IsConnected() {
		p.client.Disconnect(250)
	}
	p.setConnected(false)
}
