// Package timestamp formats Unix epoch milliseconds as RFC3339, the wire
// format the ConnectionStatus mapper emits for readySince/readyUntil
// (spec.md §4.2, §8 scenario 7).
package timestamp

import "time"

// Format converts Unix milliseconds to an RFC3339 string in UTC. Unlike
// the teacher's timestamp package, 0 is a valid epoch-ms value (the Unix
// epoch itself, "1970-01-01T00:00:00Z") rather than a "not set" sentinel —
// ConnectionStatus's creation-time header is a real, meaningful timestamp
// that may legitimately be 0.
func Format(ms int64) string {
	return time.UnixMilli(ms).UTC().Format(time.RFC3339)
}
