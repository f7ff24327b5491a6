package mqtt

import (
	"context"
)

// MessageHandler processes one received MQTT message.
type MessageHandler func(ctx context.Context, topic string, payload []byte)

// AtLeastOnce is the QoS of every command, ack and event ota-backend sends.
const AtLeastOnce = 1

// Publisher is the send side of a Client.
type Publisher interface {
	// Publish sends a message to the specified topic.
	Publish(ctx context.Context, topic string, qos int, retain bool, payload []byte) error

	// IsConnected returns true if the client is currently connected.
	IsConnected() bool
}

// Client is the MQTT client used by ota-backend. It hides the paho
// connection manager behind a small surface.
type Client interface {
	Publisher

	// Start initiates the connection to the broker.
	// It is non-blocking and returns immediately. Use AwaitConnection to wait.
	Start(ctx context.Context) error

	// Disconnect cleanly closes the connection.
	Disconnect(ctx context.Context)

	// Subscribe registers a handler for a topic filter. Subscriptions are
	// restored automatically after a reconnect.
	Subscribe(ctx context.Context, topic string, qos int, handler MessageHandler) error

	// Unsubscribe removes the handler and sends an UNSUBSCRIBE packet.
	Unsubscribe(ctx context.Context, topic string) error

	// AwaitConnection blocks until the client is connected to the broker.
	AwaitConnection(ctx context.Context) error
}
