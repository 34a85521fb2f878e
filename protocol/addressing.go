package protocol

import (
	"fmt"
	"strings"

	"github.com/c360/twinbridge/errors"
)

// AMQPScheme distinguishes an AMQP publish target's destination kind
// (spec.md §6 "AMQP 1.0 target address prefixes: bare → queue;
// `queue://name`; `topic://name`").
type AMQPScheme int

const (
	AMQPQueue AMQPScheme = iota
	AMQPTopic
)

func (s AMQPScheme) String() string {
	if s == AMQPTopic {
		return "topic"
	}
	return "queue"
}

// AMQPTarget is a parsed AMQP 0.9.1/1.0 publish address.
type AMQPTarget struct {
	Scheme AMQPScheme
	Name   string
}

// ParseAMQPTarget parses address per the grammar spec.md §6 states for
// AMQP 1.0 target addresses (reused for AMQP 0.9.1, whose queue/exchange
// addressing follows the same bare-vs-scheme convention in the original
// implementation's AMQP client wiring): a bare name is a queue, an
// explicit "queue://name" or "topic://name" selects the scheme.
func ParseAMQPTarget(address string) (AMQPTarget, error) {
	if address == "" {
		return AMQPTarget{}, invalidAddress(address, "address must not be empty")
	}

	if idx := strings.Index(address, "://"); idx >= 0 {
		scheme, name := address[:idx], address[idx+3:]
		if name == "" {
			return AMQPTarget{}, invalidAddress(address, "name must not be empty")
		}
		switch scheme {
		case "queue":
			return AMQPTarget{Scheme: AMQPQueue, Name: name}, nil
		case "topic":
			return AMQPTarget{Scheme: AMQPTopic, Name: name}, nil
		default:
			return AMQPTarget{}, invalidAddress(address, fmt.Sprintf("unknown scheme %q", scheme))
		}
	}

	return AMQPTarget{Scheme: AMQPQueue, Name: address}, nil
}

// KafkaTarget is a parsed Kafka publish address: a topic name, optionally
// paired with a partition key after a "#" separator so a target can pin
// related signals (e.g. everything about one thing) to the same
// partition.
type KafkaTarget struct {
	Topic        string
	PartitionKey string
	HasKey       bool
}

// ParseKafkaTarget parses "topic" or "topic#key" into a KafkaTarget.
func ParseKafkaTarget(address string) (KafkaTarget, error) {
	if address == "" {
		return KafkaTarget{}, invalidAddress(address, "address must not be empty")
	}

	if idx := strings.IndexByte(address, '#'); idx >= 0 {
		topic, key := address[:idx], address[idx+1:]
		if topic == "" {
			return KafkaTarget{}, invalidAddress(address, "topic must not be empty")
		}
		return KafkaTarget{Topic: topic, PartitionKey: key, HasKey: true}, nil
	}
	return KafkaTarget{Topic: address}, nil
}

func invalidAddress(address, reason string) error {
	return errors.WrapInvalid(
		fmt.Errorf("%w: address %q: %s", errors.ErrConnectionConfigurationInvalid, address, reason),
		"protocol", "ParseAddress", "parse target address")
}
