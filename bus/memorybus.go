package bus

import (
	"context"
	"strings"
	"sync"

	"github.com/c360/twinbridge/signal"
)

// MemoryBus is an in-process Bus used by tests, where a real NATS
// connection would be overkill. Subject
// matching supports the same "." segment "*"/">" wildcards as NATS so
// tests exercise realistic subject patterns.
type MemoryBus struct {
	mu   sync.Mutex
	subs []*memorySub
}

// NewMemoryBus constructs an empty MemoryBus.
func NewMemoryBus() *MemoryBus {
	return &MemoryBus{}
}

type memorySub struct {
	subject string
	handler func(signal.Signal)
	closed  bool
}

func (b *MemoryBus) Publish(_ context.Context, subject string, sig signal.Signal) error {
	b.mu.Lock()
	matched := make([]*memorySub, 0, len(b.subs))
	for _, s := range b.subs {
		if !s.closed && subjectMatches(s.subject, subject) {
			matched = append(matched, s)
		}
	}
	b.mu.Unlock()

	for _, s := range matched {
		s.handler(sig.Clone())
	}
	return nil
}

func (b *MemoryBus) Subscribe(_ context.Context, subject string, handler func(signal.Signal)) (Subscription, error) {
	s := &memorySub{subject: subject, handler: handler}
	b.mu.Lock()
	b.subs = append(b.subs, s)
	b.mu.Unlock()
	return s, nil
}

func (s *memorySub) Unsubscribe() error {
	s.closed = true
	return nil
}

func (b *MemoryBus) Close() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.subs = nil
	return nil
}

// subjectMatches implements NATS-style "." segment wildcard matching:
// "*" matches exactly one segment, ">" matches one-or-more trailing
// segments and must be the pattern's final token.
func subjectMatches(pattern, subject string) bool {
	pSegs := strings.Split(pattern, ".")
	sSegs := strings.Split(subject, ".")

	for i, p := range pSegs {
		if p == ">" {
			return i < len(sSegs)
		}
		if i >= len(sSegs) {
			return false
		}
		if p == "*" {
			continue
		}
		if p != sSegs[i] {
			return false
		}
	}
	return len(pSegs) == len(sSegs)
}
