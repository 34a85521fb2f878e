package consumer_test

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/c360/twinbridge/connection"
	"github.com/c360/twinbridge/consumer"
	"github.com/c360/twinbridge/enforcement"
	"github.com/c360/twinbridge/mapping"
	"github.com/c360/twinbridge/processor"
	"github.com/c360/twinbridge/signal"
)

type fakeSink struct {
	mu        sync.Mutex
	forwarded []signal.Signal
	replied   []signal.Signal
}

func (f *fakeSink) Forward(ctx context.Context, sig signal.Signal) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.forwarded = append(f.forwarded, sig)
	return nil
}

func (f *fakeSink) Reply(ctx context.Context, sig signal.Signal) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.replied = append(f.replied, sig)
	return nil
}

func (f *fakeSink) snapshot() (int, int) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.forwarded), len(f.replied)
}

func newTestProcessor(t *testing.T) *processor.Processor {
	t.Helper()
	reg := mapping.NewRegistry()
	mappers, err := reg.Build(nil)
	require.NoError(t, err)
	wrapped := map[string]mapping.Mapper{}
	for alias, inner := range mappers {
		wrapped[alias] = &mapping.Wrapping{Delegate: inner}
	}
	return processor.New(wrapped, enforcement.PlainMatcher)
}

func TestWorker_ForwardsDecodedSignal(t *testing.T) {
	sink := &fakeSink{}
	w := consumer.New(connection.Source{}, 0, newTestProcessor(t), sink, nil, nil, 0)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go w.Run(ctx)

	acked := make(chan struct{}, 1)
	w.Enqueue(consumer.RawMessage{
		Payload:     []byte(`{"topic":"org.acme/hallway-sensor-07/things/twin/events/modified","value":{}}`),
		ContentType: signal.TwinContentType,
		Address:     "telemetry/hallway-sensor-07",
		Ack:         func() { acked <- struct{}{} },
	})

	select {
	case <-acked:
	case <-time.After(time.Second):
		t.Fatal("message was never acked")
	}

	require.Eventually(t, func() bool {
		forwarded, _ := sink.snapshot()
		return forwarded == 1
	}, time.Second, 10*time.Millisecond)
}

func TestWorker_DryRunDiscardsSilently(t *testing.T) {
	sink := &fakeSink{}
	w := consumer.New(connection.Source{}, 0, newTestProcessor(t), sink, nil, nil, 0)
	w.DryRun = true

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go w.Run(ctx)

	acked := make(chan struct{}, 1)
	w.Enqueue(consumer.RawMessage{
		Payload: []byte(`{"topic":"x/y/things/twin/events/modified","value":{}}`),
		Address: "x",
		Ack:     func() { acked <- struct{}{} },
	})

	select {
	case <-acked:
	case <-time.After(time.Second):
		t.Fatal("message was never acked")
	}

	forwarded, replied := sink.snapshot()
	assert.Equal(t, 0, forwarded)
	assert.Equal(t, 0, replied)
}

func TestWorker_EnqueueDropsHeadWhenFull(t *testing.T) {
	sink := &fakeSink{}
	w := consumer.New(connection.Source{}, 0, newTestProcessor(t), sink, nil, nil, 2)

	var mu sync.Mutex
	var acked []int
	ack := func(n int) func() {
		return func() {
			mu.Lock()
			acked = append(acked, n)
			mu.Unlock()
		}
	}

	// No Run loop is started: the inbox fills after 2 entries, and every
	// further Enqueue must drop (and ack) the oldest queued message to
	// make room for the new one, per the drop-head overflow policy.
	for i := 0; i < 5; i++ {
		w.Enqueue(consumer.RawMessage{Address: "a", Ack: ack(i)})
	}

	mu.Lock()
	defer mu.Unlock()
	// messages 0, 1 and 2 were dropped to admit 2, 3 and 4 in turn; the
	// inbox still holds the 2 most recent, unacked entries (3 and 4).
	assert.Equal(t, []int{0, 1, 2}, acked)
}

func TestWorker_RetrieveAddressStatus(t *testing.T) {
	sink := &fakeSink{}
	w := consumer.New(connection.Source{}, 0, newTestProcessor(t), sink, nil, nil, 0)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go w.Run(ctx)

	require.Eventually(t, func() bool {
		return w.RetrieveAddressStatus(ctx).Running
	}, time.Second, 10*time.Millisecond)
}
