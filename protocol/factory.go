// Package protocol provides the protocol-specific client.Factory
// implementations that client.Machine drives to open one connection
// generation's publish handles and source subscriptions (spec.md §6).
// Package client defines the Factory interface itself so that package
// never imports a concrete transport; every concrete type here implements
// client.Factory, and a caller (typically a connection manager in cmd/)
// constructs the right one from connection.Connection.ConnectionType and
// owns closing it once the generation using it has fully stopped.
package protocol

import (
	"log/slog"

	"github.com/c360/twinbridge/client"
	"github.com/c360/twinbridge/connection"
	"github.com/c360/twinbridge/errors"
)

// ClosableFactory is a client.Factory that also owns a shared resource
// (a broker client, an HTTP transport) which must be released once the
// connection generation using it has fully stopped. client.Machine itself
// never calls Close — a Machine is handed a Factory per generation and
// doesn't assume ownership of it, so the caller driving OpenConnection/
// CloseConnection is responsible for closing the factory afterwards.
type ClosableFactory interface {
	client.Factory
	Close() error
}

// NewFactory builds the concrete client.Factory appropriate to conn's
// type. MQTT and HTTP_PUSH are backed by real transports; AMQP_091,
// AMQP_10 and Kafka are backed by an in-memory Fake, documented in
// DESIGN.md, because no broker client library for those protocols appears
// anywhere in the retrieved example corpus (spec.md's Non-goal "relying on
// mature client libraries per protocol" has nothing to rely on for them).
func NewFactory(conn connection.Connection, logger *slog.Logger) (ClosableFactory, error) {
	if logger == nil {
		logger = slog.Default()
	}
	switch conn.ConnectionType {
	case connection.MQTT:
		return NewMQTTFactory(conn, logger)
	case connection.HTTPPush:
		return NewHTTPPushFactory(conn, logger), nil
	case connection.AMQP091, connection.AMQP10, connection.Kafka:
		return NewFakeFactory(conn), nil
	default:
		return nil, errors.WrapInvalid(
			errors.ErrConnectionConfigurationInvalid, "protocol", "NewFactory",
			"unsupported connection type "+string(conn.ConnectionType))
	}
}
