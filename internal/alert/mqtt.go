package alert

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"controlling_tanks/internal/logger"
	"controlling_tanks/internal/models"

	"github.com/cenkalti/backoff/v4"
	mqtt "github.com/eclipse/paho.mqtt.golang"
)

const (
	mqttConnectRetries = 5
	mqttPublishTimeout = 5 * time.Second
	mqttDisconnectMs   = 250
)

// ConnectMQTT dials the broker, retrying with exponential backoff, and
// disconnects when ctx is done.
func ConnectMQTT(ctx context.Context, broker, clientID string, log *logger.Logger) (mqtt.Client, error) {
	if log == nil {
		log = logger.NewNop()
	}
	opts := mqtt.NewClientOptions()
	opts.AddBroker(broker)
	opts.SetClientID(clientID)
	opts.SetCleanSession(true)
	opts.SetAutoReconnect(true)

	bo := backoff.NewExponentialBackOff()
	bo.MaxElapsedTime = 10 * time.Second

	var client mqtt.Client
	err := backoff.Retry(func() error {
		client = mqtt.NewClient(opts)
		if token := client.Connect(); token.Wait() && token.Error() != nil {
			log.Warnw("mqtt_connect_failed", "broker", broker, "err", token.Error())
			return token.Error()
		}
		return nil
	}, backoff.WithContext(backoff.WithMaxRetries(bo, mqttConnectRetries-1), ctx))
	if err != nil {
		return nil, fmt.Errorf("connect to mqtt broker %s: %w", broker, err)
	}
	log.Infow("mqtt_connected", "broker", broker, "client_id", clientID)

	go func() {
		<-ctx.Done()
		client.Disconnect(mqttDisconnectMs)
	}()
	return client, nil
}

// MQTTPublisher mirrors safety events to the broker and raises alerts there.
//
// Events go to <topic>/events/<type> at QoS 0. Alerts go to <topic>/alert at
// QoS 1 and are retained, so a dashboard that connects later still sees the
// last emergency.
type MQTTPublisher struct {
	client mqtt.Client
	topic  string
	log    *logger.Logger
}

func NewMQTTPublisher(client mqtt.Client, topic string, log *logger.Logger) *MQTTPublisher {
	if log == nil {
		log = logger.NewNop()
	}
	return &MQTTPublisher{client: client, topic: strings.TrimSuffix(topic, "/"), log: log}
}

// Append publishes e as an event record.
func (p *MQTTPublisher) Append(ctx context.Context, e models.SafetyEvent) error {
	return p.publish(ctx, p.topic+"/events/"+strings.ToLower(string(e.Type)), 0, false, e)
}

// Alert publishes e as the current alert.
func (p *MQTTPublisher) Alert(ctx context.Context, e models.SafetyEvent) error {
	return p.publish(ctx, p.topic+"/alert", 1, true, e)
}

func (p *MQTTPublisher) publish(ctx context.Context, topic string, qos byte, retained bool, e models.SafetyEvent) error {
	payload, err := json.Marshal(e)
	if err != nil {
		return fmt.Errorf("encode event %s: %w", e.EventID, err)
	}

	token := p.client.Publish(topic, qos, retained, payload)
	select {
	case <-token.Done():
	case <-ctx.Done():
		return fmt.Errorf("publish %s: %w", topic, ctx.Err())
	case <-time.After(mqttPublishTimeout):
		return fmt.Errorf("publish %s: timed out after %s", topic, mqttPublishTimeout)
	}
	if err := token.Error(); err != nil {
		return fmt.Errorf("publish %s: %w", topic, err)
	}
	p.log.Debugw("mqtt_published", "topic", topic, "event_id", e.EventID)
	return nil
}
