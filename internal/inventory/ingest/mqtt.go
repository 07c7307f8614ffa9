// Package ingest receives cabinet weight batches pushed over MQTT and hands
// them to the sensor service.
package ingest

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"

	"github.com/botiquin/botiquin-backend/internal/inventory/service"
	"github.com/botiquin/botiquin-backend/pkg/actor"
	"github.com/botiquin/botiquin-backend/pkg/config"
	"github.com/botiquin/botiquin-backend/pkg/errors"
	"github.com/botiquin/botiquin-backend/pkg/logger"
)

// DefaultTopic is where cabinets publish batches; the second segment is
// the hardware id.
const DefaultTopic = "botiquin/+/weights"

const (
	handleTimeout     = 30 * time.Second
	disconnectQuiesce = 250
)

// BatchIngester applies a batch of readings.
type BatchIngester interface {
	IngestBatch(ctx context.Context, req service.BatchRequest, source string) (*service.BatchResult, error)
}

// Subscriber consumes batches from the broker and acknowledges each one on
// the cabinet's ack topic.
type Subscriber struct {
	client   mqtt.Client
	topic    string
	qos      byte
	ingester BatchIngester
	logger   *logger.Logger
}

// NewSubscriber creates a subscriber for cfg. The subscription is renewed
// on every (re)connect since sessions are clean.
func NewSubscriber(cfg *config.MQTTConfig, ingester BatchIngester, log *logger.Logger) *Subscriber {
	s := &Subscriber{
		topic:    cfg.Topic,
		qos:      cfg.QoS,
		ingester: ingester,
		logger:   log.WithComponent("mqtt"),
	}
	if s.topic == "" {
		s.topic = DefaultTopic
	}

	opts := mqtt.NewClientOptions()
	opts.AddBroker(cfg.Broker)
	opts.SetClientID(cfg.ClientID)
	if cfg.Username != "" {
		opts.SetUsername(cfg.Username)
	}
	if cfg.Password != "" {
		opts.SetPassword(cfg.Password)
	}
	if cfg.ConnectTimeout > 0 {
		opts.SetConnectTimeout(cfg.ConnectTimeout)
	}
	opts.SetAutoReconnect(true)
	opts.SetCleanSession(true)
	opts.SetOnConnectHandler(func(c mqtt.Client) {
		if token := c.Subscribe(s.topic, s.qos, s.onMessage); token.Wait() && token.Error() != nil {
			s.logger.Error().Err(token.Error()).Str("topic", s.topic).Msg("failed to subscribe")
			return
		}
		s.logger.Info().Str("topic", s.topic).Msg("subscribed to sensor batches")
	})
	opts.SetConnectionLostHandler(func(_ mqtt.Client, err error) {
		s.logger.Warn().Err(err).Msg("mqtt connection lost")
	})

	s.client = mqtt.NewClient(opts)
	return s
}

// Start connects to the broker.
func (s *Subscriber) Start() error {
	if token := s.client.Connect(); token.Wait() && token.Error() != nil {
		return fmt.Errorf("failed to connect to MQTT broker: %w", token.Error())
	}
	return nil
}

// Stop unsubscribes and disconnects.
func (s *Subscriber) Stop() {
	if !s.client.IsConnected() {
		return
	}
	if token := s.client.Unsubscribe(s.topic); token.Wait() && token.Error() != nil {
		s.logger.Warn().Err(token.Error()).Msg("failed to unsubscribe")
	}
	s.client.Disconnect(disconnectQuiesce)
	s.logger.Info().Msg("mqtt subscriber stopped")
}

// Health reports the broker connection state.
func (s *Subscriber) Health() map[string]string {
	if s == nil {
		return map[string]string{"status": "disabled"}
	}
	if !s.client.IsConnected() {
		return map[string]string{"status": "down"}
	}
	return map[string]string{"status": "up"}
}

func (s *Subscriber) onMessage(c mqtt.Client, msg mqtt.Message) {
	ctx, cancel := context.WithTimeout(actor.WithActor(context.Background(), actor.SystemActor()), handleTimeout)
	defer cancel()

	ackTopic, ack := s.handle(ctx, msg.Topic(), msg.Payload())
	if ackTopic == "" {
		return
	}
	token := c.Publish(ackTopic, s.qos, false, ack)
	if token.Wait() && token.Error() != nil {
		s.logger.Error().Err(token.Error()).Str("topic", ackTopic).Msg("failed to publish ack")
	}
}

// errorAck is the acknowledgement for a batch that was not applied.
type errorAck struct {
	Success bool   `json:"success"`
	Error   string `json:"error"`
	Code    string `json:"code,omitempty"`
}

// rejectionAck reports err the way the HTTP API renders it: the client
// message and code of an AppError, and nothing internal otherwise.
func rejectionAck(err error) errorAck {
	var appErr *errors.AppError
	if errors.As(err, &appErr) {
		return errorAck{Error: appErr.Message, Code: appErr.Code}
	}
	return errorAck{Error: "internal error", Code: "INTERNAL_ERROR"}
}

// handle ingests one message and returns the ack topic and payload. An
// empty topic means the message cannot be acknowledged.
func (s *Subscriber) handle(ctx context.Context, topic string, payload []byte) (string, []byte) {
	hardwareID, ok := HardwareIDFromTopic(topic)
	if !ok {
		s.logger.Warn().Str("topic", topic).Msg("message on unexpected topic dropped")
		return "", nil
	}
	log := s.logger.WithHardwareID(hardwareID)
	ackTopic := AckTopic(topic)

	var req service.BatchRequest
	if err := json.Unmarshal(payload, &req); err != nil {
		log.Warn().Err(err).Msg("invalid batch payload")
		return ackTopic, marshalAck(errorAck{Error: "invalid JSON payload"})
	}
	if req.HardwareID != "" && req.HardwareID != hardwareID {
		log.Warn().Str("payload_hardware_id", req.HardwareID).Msg("hardware id does not match topic")
		return ackTopic, marshalAck(errorAck{Error: "hardware_id does not match topic"})
	}
	req.HardwareID = hardwareID

	result, err := s.ingester.IngestBatch(ctx, req, service.SourceMQTT)
	if err != nil {
		log.Warn().Err(err).Msg("batch rejected")
		return ackTopic, marshalAck(rejectionAck(err))
	}

	log.Debug().
		Int("processed", result.Processed).
		Int("errors", len(result.Errors)).
		Msg("batch acknowledged")
	return ackTopic, marshalAck(result)
}

func marshalAck(v any) []byte {
	data, err := json.Marshal(v)
	if err != nil {
		return []byte(`{"success":false,"error":"internal error"}`)
	}
	return data
}

// HardwareIDFromTopic extracts the hardware id from the second segment of
// a topic like botiquin/BOT001/weights.
func HardwareIDFromTopic(topic string) (string, bool) {
	parts := strings.Split(topic, "/")
	if len(parts) < 3 {
		return "", false
	}
	id := parts[1]
	if id == "" || id == "+" || id == "#" {
		return "", false
	}
	return id, true
}

// AckTopic swaps the last segment of topic for "ack".
func AckTopic(topic string) string {
	i := strings.LastIndex(topic, "/")
	if i < 0 {
		return topic + "/ack"
	}
	return topic[:i] + "/ack"
}
