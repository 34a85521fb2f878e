// Package placeholder resolves `{{ ns:name }}` templates against a set of
// named namespaces (header, thing, topic, source, and any caller-installed
// namespace). It has no global registry — callers build a Registry and pass
// it to Resolve explicitly, so different call sites (inbound vs outbound,
// test code installing a `test:*` namespace) never interfere with each
// other.
package placeholder
