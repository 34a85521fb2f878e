package protocol

import (
	"context"
	"crypto/tls"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"sync"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"

	"github.com/c360/twinbridge/client"
	"github.com/c360/twinbridge/connection"
	"github.com/c360/twinbridge/consumer"
	"github.com/c360/twinbridge/errors"
	"github.com/c360/twinbridge/external"
	"github.com/c360/twinbridge/publisher"
)

// MQTTFactory is the client.Factory for MQTT 3.1.1 connections, backed by
// github.com/eclipse/paho.mqtt.golang. One Factory owns exactly one
// underlying mqtt.Client, shared by every publish handle and source
// subscription of a generation, grounded on
// kalifun-navlink/pkg/transport/mqtt.MqttTransport's single-client-per-
// transport shape.
type MQTTFactory struct {
	logger *slog.Logger
	client mqtt.Client

	mu            sync.Mutex
	closeNotifier func(address string)
}

// NewMQTTFactory connects an mqtt.Client to conn.URI and returns a Factory
// ready to serve NewPublishHandle/Subscribe for that connection's
// generation. The MQTT client ID is always the connection id, mirroring the
// teacher's MqttConfig.ClientID field.
func NewMQTTFactory(conn connection.Connection, logger *slog.Logger) (*MQTTFactory, error) {
	if logger == nil {
		logger = slog.Default()
	}

	f := &MQTTFactory{logger: logger}

	opts := mqtt.NewClientOptions()
	opts.AddBroker(conn.URI)
	opts.SetClientID(conn.ID)
	opts.SetAutoReconnect(true)
	opts.SetCleanSession(true)
	opts.SetConnectTimeout(30 * time.Second)
	opts.SetMaxReconnectInterval(2 * time.Minute)
	if strings.HasPrefix(conn.URI, "ssl://") {
		opts.SetTLSConfig(&tls.Config{})
	}
	opts.OnConnectionLost = func(_ mqtt.Client, err error) {
		f.logger.Warn("protocol/mqtt: connection lost", "connection", conn.ID, "error", err)
	}
	opts.OnReconnecting = func(_ mqtt.Client, _ *mqtt.ClientOptions) {
		f.logger.Warn("protocol/mqtt: reconnecting", "connection", conn.ID)
	}

	f.client = mqtt.NewClient(opts)
	token := f.client.Connect()
	if !token.WaitTimeout(30 * time.Second) {
		return nil, errors.WrapTransient(errors.ErrConnectionTimeout, "protocol.MQTTFactory", "NewMQTTFactory", "connect")
	}
	if err := token.Error(); err != nil {
		return nil, errors.WrapTransient(err, "protocol.MQTTFactory", "NewMQTTFactory", "connect")
	}

	return f, nil
}

// NewPublishHandle returns a handle that publishes to address at the QoS
// the caller's Delivery carries per message (spec.md §4.7 step 3 "attach
// QoS where applicable (target.qos default 0)"); the handle itself is
// stateless beyond the shared client, so "creation" is just closing over
// address.
func (f *MQTTFactory) NewPublishHandle(_ context.Context, address string) (publisher.Handle, error) {
	return &mqttHandle{client: f.client, topic: address}, nil
}

// Subscribe subscribes to every address of src at its configured QoS,
// fanning every received message to onMessage as a consumer.RawMessage.
// Per spec.md §3 MQTT sources are capped at one consumer and carry exactly
// one Source per (addresses) set, so index is accepted but unused beyond
// disambiguating logging.
func (f *MQTTFactory) Subscribe(_ context.Context, src connection.Source, index int, onMessage func(consumer.RawMessage)) (client.Subscription, error) {
	qos := byte(0)
	if src.QoS != nil {
		qos = byte(*src.QoS)
	}

	sub := &mqttSubscription{client: f.client, topics: append([]string(nil), src.Addresses...)}

	handler := func(_ mqtt.Client, m mqtt.Message) {
		onMessage(consumer.RawMessage{
			Payload: m.Payload(),
			Headers: map[string]string{
				"mqtt-qos":      strconv.Itoa(int(m.Qos())),
				"mqtt-retained": strconv.FormatBool(m.Retained()),
			},
			Address: m.Topic(),
			Ack:     m.Ack,
		})
	}

	filters := make(map[string]byte, len(src.Addresses))
	for _, addr := range src.Addresses {
		filters[addr] = qos
	}

	token := f.client.SubscribeMultiple(filters, handler)
	if !token.WaitTimeout(10 * time.Second) {
		return nil, errors.WrapTransient(errors.ErrConnectionTimeout, "protocol.MQTTFactory", "Subscribe",
			fmt.Sprintf("subscribe source %d", index))
	}
	if err := token.Error(); err != nil {
		return nil, errors.WrapTransient(err, "protocol.MQTTFactory", "Subscribe", fmt.Sprintf("subscribe source %d", index))
	}

	return sub, nil
}

// Close disconnects the shared mqtt.Client, releasing every handle and
// subscription it backed.
func (f *MQTTFactory) Close() error {
	if f.client != nil && f.client.IsConnected() {
		f.client.Disconnect(250)
	}
	return nil
}

type mqttHandle struct {
	client mqtt.Client
	topic  string
}

// Send publishes msg.Bytes to the handle's topic at msg.QoS, defaulting to
// 0 when unset, per spec.md §4.7 step 3 "attach QoS where applicable
// (target.qos default 0)".
func (h *mqttHandle) Send(ctx context.Context, msg external.Message) error {
	qos := byte(0)
	if msg.QoS != nil {
		qos = byte(*msg.QoS)
	}
	token := h.client.Publish(h.topic, qos, false, msg.Bytes)
	select {
	case <-token.Done():
		if err := token.Error(); err != nil {
			return errors.WrapTransient(err, "protocol.mqttHandle", "Send", "publish to "+h.topic)
		}
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Close is a no-op: the handle doesn't own the underlying mqtt.Client, the
// Factory does.
func (h *mqttHandle) Close() error { return nil }

type mqttSubscription struct {
	client mqtt.Client
	topics []string
}

func (s *mqttSubscription) Close() error {
	token := s.client.Unsubscribe(s.topics...)
	token.Wait()
	return token.Error()
}
