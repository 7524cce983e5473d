package mesh

import (
	"encoding/json"
	"fmt"
	"log"
	"sync"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"
)

// Publisher publishes assembly summaries and scanner poses to MQTT
type Publisher struct {
	client        mqtt.Client
	publishPrefix string
	qos           byte
	retain        bool
	last          *Summary
	mu            sync.RWMutex
}

// NewPublisher creates a new summary publisher.
// If client is nil, publishing is disabled (for testing)
func NewPublisher(client mqtt.Client, prefix string) *Publisher {
	if prefix == "" {
		prefix = DefaultPublishPrefix
	}
	return &Publisher{
		client:        client,
		publishPrefix: prefix,
		qos:           1,    // at least once, results change rarely
		retain:        true, // late subscribers get the latest map
	}
}

// Prefix returns the topic prefix
func (p *Publisher) Prefix() string {
	return p.publishPrefix
}

// PublishSummary publishes the summary to <prefix>/summary and each scanner
// pose to <prefix>/<scanner name>.
func (p *Publisher) PublishSummary(s *Summary) error {
	if p.client == nil || !p.client.IsConnected() {
		return fmt.Errorf("MQTT client not connected")
	}

	p.mu.Lock()
	p.last = s
	p.mu.Unlock()

	if err := p.publishJSON(p.publishPrefix+"/summary", s); err != nil {
		log.Printf("[MQTT] error publishing summary: %v", err)
		return err
	}

	for _, pose := range s.Scanners {
		if err := p.publishJSON(p.publishPrefix+"/"+pose.Name, pose); err != nil {
			log.Printf("[MQTT] error publishing pose for %s: %v", pose.Name, err)
			return err
		}
	}

	log.Printf("[MQTT] published summary: %d beacons, %d scanners, max distance %d",
		s.BeaconCount, len(s.Scanners), s.MaxManhattan)
	return nil
}

func (p *Publisher) publishJSON(topic string, v interface{}) error {
	payload, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("marshaling payload for %s: %w", topic, err)
	}

	token := p.client.Publish(topic, p.qos, p.retain, payload)
	if token.WaitTimeout(2*time.Second) && token.Error() != nil {
		return fmt.Errorf("publishing to %s: %w", topic, token.Error())
	}
	return nil
}

// LastSummary returns the most recently published summary, if any
func (p *Publisher) LastSummary() (*Summary, bool) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.last, p.last != nil
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
