package mqtt

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/autopeer-io/ota-backend/internal/otabackend/ota"
	"github.com/autopeer-io/ota-backend/internal/pkg/mqtt/paths"
	"github.com/autopeer-io/ota-backend/pkg/log"
	pkgmqtt "github.com/autopeer-io/ota-backend/pkg/mqtt"
	"github.com/autopeer-io/ota-backend/pkg/mqtt/topic"
)

const qos = pkgmqtt.AtLeastOnce

// OnlinePayload is published retained on the online topic. The offline
// variant doubles as the last will.
type OnlinePayload struct {
	Online bool `json:"online"`
}

// CommandAck answers a start command.
type CommandAck struct {
	OTAID    string `json:"ota_id"`
	Accepted bool   `json:"accepted"`
	Reason   string `json:"reason,omitempty"`
}

// Server owns the MQTT connection of the device. It announces presence and,
// when commands are enabled, accepts start commands from the fleet backend.
type Server struct {
	client         pkgmqtt.Client
	topics         *topic.Builder
	deviceID       string
	svc            ota.Service
	acceptCommands bool
}

func NewServer(client pkgmqtt.Client, builder *topic.Builder, deviceID string, svc ota.Service, acceptCommands bool) *Server {
	return &Server{
		client:         client,
		topics:         builder,
		deviceID:       deviceID,
		svc:            svc,
		acceptCommands: acceptCommands,
	}
}

// Start connects to the broker and serves until ctx is done.
func (s *Server) Start(ctx context.Context) error {
	if err := s.client.Start(ctx); err != nil {
		return err
	}

	defer func() {
		log.Info("Disconnecting MQTT client...")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := s.publishOnline(shutdownCtx, false); err != nil {
			log.Warn("Failed to publish offline state", "error", err)
		}
		s.client.Disconnect(shutdownCtx)
		log.Info("MQTT client disconnected")
	}()

	log.Info("Waiting for MQTT connection...")
	if err := s.client.AwaitConnection(ctx); err != nil {
		if errors.Is(err, context.Canceled) {
			return nil
		}
		return err
	}
	log.Info("MQTT Connected")

	if err := s.publishOnline(ctx, true); err != nil {
		log.Warn("Failed to publish online state", "error", err)
	}

	if s.acceptCommands {
		cmdTopic := s.topics.Build(paths.OTACommand, s.deviceID)
		if err := s.client.Subscribe(ctx, cmdTopic, qos, s.handleCommand); err != nil {
			return fmt.Errorf("failed to subscribe to topic: %s, err: %w", cmdTopic, err)
		}
		log.Info("Accepting OTA commands", "topic", cmdTopic)
	}

	<-ctx.Done()
	return nil
}

func (s *Server) handleCommand(ctx context.Context, topic string, payload []byte) {
	var req ota.StartRequest
	ack := CommandAck{}

	err := json.Unmarshal(payload, &req)
	if err == nil {
		err = req.Validate()
	}
	if err == nil {
		req.Complete()
		err = s.svc.Start(ctx, req.OTAID, req.URL, req.TargetVersion)
	}

	ack.OTAID = req.OTAID
	if err != nil {
		log.Warn("OTA command rejected", "topic", topic, "runID", req.OTAID, "error", err)
		ack.Reason = err.Error()
	} else {
		log.Info("OTA command accepted", "runID", req.OTAID)
		ack.Accepted = true
	}

	if err := s.publish(ctx, s.topics.Build(paths.OTACommandAck, s.deviceID), false, ack); err != nil {
		log.Error(err, "Failed to publish command ack", "runID", req.OTAID)
	}
}

func (s *Server) publishOnline(ctx context.Context, online bool) error {
	return s.publish(ctx, s.topics.Build(paths.Online, s.deviceID), true, OnlinePayload{Online: online})
}

func (s *Server) publish(ctx context.Context, topic string, retain bool, v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return err
	}
	return s.client.Publish(ctx, topic, qos, retain, data)
}

// WillMessage is the payload the broker publishes on the online topic when
// the device drops off without a clean disconnect.
func WillMessage() []byte {
	data, _ := json.Marshal(OnlinePayload{Online: false})
	return data
}
