package telemetry

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"

	"github.com/autopeer-io/ota-backend/pkg/mqtt"
)

// ErrNotConnected is returned by the MQTT transport while the broker is
// unreachable.
var ErrNotConnected = errors.New("mqtt client not connected")

// Transport delivers one serialized event to the fleet backend.
type Transport interface {
	Deliver(ctx context.Context, payload []byte) error
}

// HTTPTransport POSTs each event to a collector endpoint.
type HTTPTransport struct {
	url    string
	client *http.Client
}

func NewHTTPTransport(url string, client *http.Client) *HTTPTransport {
	if client == nil {
		client = http.DefaultClient
	}
	return &HTTPTransport{url: url, client: client}
}

func (t *HTTPTransport) Deliver(ctx context.Context, payload []byte) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, t.url, bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("build collector request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := t.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, resp.Body)

	if resp.StatusCode >= http.StatusMultipleChoices {
		return fmt.Errorf("collector returned %s", resp.Status)
	}
	return nil
}

// MQTTTransport publishes each event with QoS 1 on a fixed topic.
type MQTTTransport struct {
	client mqtt.Publisher
	topic  string
}

func NewMQTTTransport(client mqtt.Publisher, topic string) *MQTTTransport {
	return &MQTTTransport{client: client, topic: topic}
}

func (t *MQTTTransport) Deliver(ctx context.Context, payload []byte) error {
	if !t.client.IsConnected() {
		return ErrNotConnected
	}
	return t.client.Publish(ctx, t.topic, mqtt.AtLeastOnce, false, payload)
}
