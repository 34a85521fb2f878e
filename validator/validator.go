// Package validator implements the per-connection-type protocol linters
// invoked before a connection is opened or tested (spec.md §4.5).
package validator

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/c360/twinbridge/connection"
	"github.com/c360/twinbridge/errors"
)

// schemesByType lists the URI schemes each connection type accepts.
var schemesByType = map[connection.Type]map[string]struct{}{
	connection.AMQP091:  set("amqp", "amqps"),
	connection.AMQP10:   set("amqp", "amqps"),
	connection.MQTT:     set("tcp", "ssl"),
	connection.Kafka:    set("tcp", "ssl"),
	connection.HTTPPush: set("http", "https"),
}

// knownPlaceholderNamespaces are the namespace prefixes enforcement
// templates may reference (spec.md §4.1).
var knownPlaceholderNamespaces = set("header", "thing", "topic", "source")

var placeholderNSPattern = regexp.MustCompile(`\{\{\s*([a-zA-Z][a-zA-Z0-9_]*):`)

func set(items ...string) map[string]struct{} {
	m := make(map[string]struct{}, len(items))
	for _, i := range items {
		m[i] = struct{}{}
	}
	return m
}

// Validate runs structural validation (connection.Connection.Validate)
// followed by connection-type-specific rules. knownAliases is the set of
// mapping aliases the connection's registry can resolve (built-ins plus
// any mappingDefinitions), used to check payload-mapping references.
func Validate(c *connection.Connection, knownAliases map[string]struct{}) error {
	if err := c.Validate(); err != nil {
		return err
	}

	if err := checkURIScheme(c); err != nil {
		return err
	}
	if err := checkAliases(c, knownAliases); err != nil {
		return err
	}
	if err := checkEnforcementNamespaces(c); err != nil {
		return err
	}

	if c.ConnectionType == connection.MQTT {
		return checkMQTT(c)
	}
	return nil
}

func checkURIScheme(c *connection.Connection) error {
	allowed, ok := schemesByType[c.ConnectionType]
	if !ok {
		return invalid(fmt.Sprintf("unknown connection type %q", c.ConnectionType))
	}
	scheme := schemeOf(c.URI)
	if _, ok := allowed[scheme]; !ok {
		return invalid(fmt.Sprintf("uri scheme %q not accepted for %s", scheme, c.ConnectionType))
	}
	return nil
}

func schemeOf(uri string) string {
	idx := strings.Index(uri, "://")
	if idx < 0 {
		return ""
	}
	return uri[:idx]
}

func checkAliases(c *connection.Connection, known map[string]struct{}) error {
	resolves := func(alias string) bool {
		if alias == "" {
			return true
		}
		if known == nil {
			return true
		}
		_, ok := known[alias]
		return ok
	}

	for i, s := range c.Sources {
		for _, alias := range s.PayloadMapping {
			if !resolves(alias) {
				return invalid(fmt.Sprintf("sources[%d] references unknown payload-mapping alias %q", i, alias))
			}
		}
	}
	for i, t := range c.Targets {
		for _, alias := range t.PayloadMapping {
			if !resolves(alias) {
				return invalid(fmt.Sprintf("targets[%d] references unknown payload-mapping alias %q", i, alias))
			}
		}
	}
	return nil
}

func checkEnforcementNamespaces(c *connection.Connection) error {
	check := func(tpl string) error {
		for _, m := range placeholderNSPattern.FindAllStringSubmatch(tpl, -1) {
			ns := m[1]
			if _, ok := knownPlaceholderNamespaces[ns]; !ok {
				return invalid(fmt.Sprintf("enforcement template %q references unknown namespace %q", tpl, ns))
			}
		}
		return nil
	}

	for i, s := range c.Sources {
		if s.Enforcement == nil {
			continue
		}
		if err := check(s.Enforcement.Input); err != nil {
			return wrapIndexed("sources", i, err)
		}
		for _, f := range s.Enforcement.Filters {
			if err := check(f); err != nil {
				return wrapIndexed("sources", i, err)
			}
		}
	}
	return nil
}

func wrapIndexed(section string, i int, err error) error {
	return invalid(fmt.Sprintf("%s[%d]: %s", section, i, err))
}

// checkMQTT enforces spec.md §4.5's MQTT-specific invariants: mandatory
// QoS on sources and targets, no header mapping, client/consumer counts
// capped at 1, and wildcard placement rules.
func checkMQTT(c *connection.Connection) error {
	if c.ClientCount > 1 {
		return invalid("mqtt connections are capped at clientCount 1")
	}

	for i, s := range c.Sources {
		if s.QoS == nil {
			return invalid(fmt.Sprintf("sources[%d]: mqtt requires qos", i))
		}
		if *s.QoS < 0 || *s.QoS > 2 {
			return invalid(fmt.Sprintf("sources[%d]: mqtt qos must be 0-2", i))
		}
		if len(s.HeaderMapping) > 0 {
			return invalid(fmt.Sprintf("sources[%d]: mqtt does not support header mapping", i))
		}
		if s.ConsumerCount > 1 {
			return invalid(fmt.Sprintf("sources[%d]: mqtt consumerCount is capped at 1", i))
		}
		for _, addr := range s.Addresses {
			if err := validateMQTTTopic(addr, true); err != nil {
				return wrapIndexed("sources", i, err)
			}
		}
	}

	for i, t := range c.Targets {
		if t.QoS == nil {
			return invalid(fmt.Sprintf("targets[%d]: mqtt requires qos", i))
		}
		if *t.QoS < 0 || *t.QoS > 2 {
			return invalid(fmt.Sprintf("targets[%d]: mqtt qos must be 0-2", i))
		}
		if len(t.HeaderMapping) > 0 {
			return invalid(fmt.Sprintf("targets[%d]: mqtt does not support header mapping", i))
		}
		if err := validateMQTTTopic(t.Address, false); err != nil {
			return wrapIndexed("targets", i, err)
		}
	}
	return nil
}

// validateMQTTTopic checks that a topic string is well formed and, when
// wildcardsAllowed is false, contains no "+"/"#" segments (targets forbid
// wildcards; sources allow them, per spec.md §4.5/§6).
func validateMQTTTopic(topic string, wildcardsAllowed bool) error {
	if topic == "" {
		return invalid("mqtt topic must not be empty")
	}
	for _, seg := range strings.Split(topic, "/") {
		if seg == "" {
			return invalid(fmt.Sprintf("mqtt topic %q has an empty segment", topic))
		}
		if (seg == "+" || seg == "#") && !wildcardsAllowed {
			return invalid(fmt.Sprintf("mqtt topic %q must not contain wildcards", topic))
		}
		if seg != "+" && seg != "#" && strings.ContainsAny(seg, "+#") {
			return invalid(fmt.Sprintf("mqtt topic %q has an invalid wildcard placement", topic))
		}
	}
	return nil
}

func invalid(msg string) error {
	return errors.WrapInvalid(fmt.Errorf("%w: %s", errors.ErrConnectionConfigurationInvalid, msg), "validator", "Validate", "check protocol rules")
}
