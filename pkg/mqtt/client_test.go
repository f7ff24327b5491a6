package mqtt

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestTopicsMatch(t *testing.T) {
	tests := []struct {
		filter, topic string
		want          bool
	}{
		{"iov/v1/ota/command/dev1", "iov/v1/ota/command/dev1", true},
		{"iov/v1/ota/command/+", "iov/v1/ota/command/dev1", true},
		{"iov/v1/ota/command/+", "iov/v1/ota/command/ack/dev1", false},
		{"iov/v1/ota/#", "iov/v1/ota/events/dev1", true},
		{"iov/v1/ota/events/dev1", "iov/v1/ota/events/dev2", false},
		{"iov/+/ota", "iov/v1", false},
	}
	for _, tt := range tests {
		t.Run(tt.filter+"|"+tt.topic, func(t *testing.T) {
			assert.Equal(t, tt.want, topicsMatch(tt.filter, tt.topic))
		})
	}
}

func TestNewClientValidation(t *testing.T) {
	_, err := NewClient(nil)
	assert.Error(t, err)

	_, err = NewClient(&ClientConfig{BrokerURL: "tcp://localhost:1883"})
	assert.Error(t, err, "client id is required")

	c, err := NewClient(&ClientConfig{BrokerURL: "tcp://localhost:1883", ClientID: "ota-backend-dev1"})
	assert.NoError(t, err)
	assert.False(t, c.IsConnected())
}
