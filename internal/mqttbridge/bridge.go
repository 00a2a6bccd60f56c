package mqttbridge

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"

	"telemetryd/internal/models"
	"telemetryd/internal/services"
)

const connectTimeout = 10 * time.Second

// Store is the slice of the telemetry store the bridge needs.
type Store interface {
	Insert(ctx context.Context, r *models.Reading) (string, error)
}

// Bridge subscribes to a broker topic and feeds published readings through
// the same validate-normalize-insert path as the HTTP endpoint. Devices in
// the field publish the identical JSON payload either way.
type Bridge struct {
	client mqtt.Client
	store  Store
	logger *slog.Logger
	topic  string
}

// New creates a Bridge for the given broker. Connect happens in Start.
func New(brokerURL, clientID, topic string, store Store, logger *slog.Logger) *Bridge {
	opts := mqtt.NewClientOptions().
		AddBroker(brokerURL).
		SetClientID(clientID).
		SetAutoReconnect(true).
		SetConnectTimeout(connectTimeout)

	return &Bridge{
		client: mqtt.NewClient(opts),
		store:  store,
		logger: logger,
		topic:  topic,
	}
}

// Start connects to the broker and subscribes. A rejected message is logged
// and dropped; it never stops the subscription.
func (b *Bridge) Start() error {
	if token := b.client.Connect(); token.Wait() && token.Error() != nil {
		return fmt.Errorf("failed to connect to broker: %w", token.Error())
	}

	handler := func(_ mqtt.Client, msg mqtt.Message) {
		id, err := b.ingest(msg.Payload())
		if err != nil {
			b.logger.Warn("mqtt reading rejected", "topic", msg.Topic(), "error", err)
			return
		}
		b.logger.Info("mqtt reading saved", "topic", msg.Topic(), "id", id)
	}

	if token := b.client.Subscribe(b.topic, 1, handler); token.Wait() && token.Error() != nil {
		return fmt.Errorf("failed to subscribe to %s: %w", b.topic, token.Error())
	}

	b.logger.Info("mqtt bridge subscribed", "topic", b.topic)
	return nil
}

// Stop disconnects from the broker, allowing in-flight handlers to finish.
func (b *Bridge) Stop() {
	b.client.Disconnect(250)
}

func (b *Bridge) ingest(payload []byte) (string, error) {
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(payload, &fields); err != nil {
		return "", fmt.Errorf("payload must be a JSON object: %w", err)
	}

	reading, err := services.BuildReading(fields, time.Now().UTC())
	if err != nil {
		return "", err
	}

	return b.store.Insert(context.Background(), reading)
}
