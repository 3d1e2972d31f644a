// Package events publishes maintenance lifecycle events to an MQTT broker.
package events

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"
	log "github.com/sirupsen/logrus"
)

// Kind names the event and forms the last topic segment.
type Kind string

const (
	KindCompleted Kind = "completed"
	KindDue       Kind = "due"
)

// Event is the JSON payload published for a schedule.
type Event struct {
	Kind         Kind      `json:"kind"`
	TenantID     string    `json:"tenant_id"`
	ScheduleID   string    `json:"schedule_id"`
	AssetID      string    `json:"asset_id"`
	ServiceType  string    `json:"service_type"`
	NextDueDate  time.Time `json:"next_due_date"`
	DaysUntilDue *int      `json:"days_until_due,omitempty"`
	Priority     string    `json:"priority,omitempty"`
	OccurredAt   time.Time `json:"occurred_at"`
}

// Publisher delivers events. Implementations must be safe for concurrent use.
type Publisher interface {
	Publish(ctx context.Context, event Event) error
}

// NopPublisher discards every event.
type NopPublisher struct{}

func (NopPublisher) Publish(context.Context, Event) error { return nil }

// MQTTPublisher publishes events with QoS 1 to
// <prefix>/<tenant>/maintenance/<kind>.
type MQTTPublisher struct {
	Client      mqtt.Client
	TopicPrefix string
}

// ConnectMQTT dials the broker and returns a connected publisher.
func ConnectMQTT(broker, clientID, topicPrefix string) (*MQTTPublisher, error) {
	opts := mqtt.NewClientOptions().
		AddBroker(broker).
		SetClientID(clientID).
		SetAutoReconnect(true).
		SetConnectTimeout(10 * time.Second).
		SetConnectionLostHandler(func(_ mqtt.Client, err error) {
			log.WithError(err).Warn("MQTT connection lost")
		})

	client := mqtt.NewClient(opts)
	token := client.Connect()
	if !token.WaitTimeout(15 * time.Second) {
		return nil, fmt.Errorf("mqtt connect to %s: timed out", broker)
	}
	if err := token.Error(); err != nil {
		return nil, fmt.Errorf("mqtt connect to %s: %w", broker, err)
	}
	return &MQTTPublisher{Client: client, TopicPrefix: topicPrefix}, nil
}

// Topic returns the topic an event is published on.
func (p *MQTTPublisher) Topic(event Event) string {
	tenant := event.TenantID
	if tenant == "" {
		tenant = "_"
	}
	return strings.Join([]string{strings.TrimSuffix(p.TopicPrefix, "/"), tenant, "maintenance", string(event.Kind)}, "/")
}

// Publish sends the event and waits for the broker acknowledgement or ctx.
func (p *MQTTPublisher) Publish(ctx context.Context, event Event) error {
	if p.Client == nil {
		return errors.New("mqtt client is nil")
	}
	payload, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("marshal event: %w", err)
	}

	token := p.Client.Publish(p.Topic(event), 1, false, payload)
	select {
	case <-token.Done():
		return token.Error()
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Close disconnects from the broker, allowing in-flight work 250ms.
func (p *MQTTPublisher) Close() {
	if p.Client != nil {
		p.Client.Disconnect(250)
	}
}
