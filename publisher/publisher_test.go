package publisher_test

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/c360/twinbridge/external"
	"github.com/c360/twinbridge/publisher"
)

type fakeHandle struct{}

func (fakeHandle) Send(context.Context, external.Message) error { return nil }
func (fakeHandle) Close() error                                 { return nil }

type countingClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *countingClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *countingClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

func countingFactory(count *int, mu *sync.Mutex) publisher.HandleFactory {
	return func(ctx context.Context, address string) (publisher.Handle, error) {
		mu.Lock()
		*count++
		mu.Unlock()
		return fakeHandle{}, nil
	}
}

// Scenario 6 (spec.md §8), spaced closures: across 10s starting at t=0,
// create is called 4 times (t=0, ~1s, ~3s, ~7s) when each closure is
// issued only after the previous backoff has fully elapsed.
func TestWorker_BackoffDoublesOnSpacedClosures(t *testing.T) {
	clock := &countingClock{now: time.Unix(0, 0)}
	var mu sync.Mutex
	creates := 0
	w := publisher.New(countingFactory(&creates, &mu), clock.Now)

	ctx := context.Background()
	address := "target-1"

	// t=0: first publish creates the handle (create #1).
	require.NoError(t, w.Publish(ctx, address, external.Message{}))

	// close #1 at t=0 -> backoff until t=1s.
	w.OnHandleClosed(address)
	clock.Advance(1001 * time.Millisecond)
	require.NoError(t, w.Publish(ctx, address, external.Message{})) // create #2

	// close #2 at ~t=1s -> backoff until ~t=3s (delay doubles to 2s).
	w.OnHandleClosed(address)
	clock.Advance(2001 * time.Millisecond)
	require.NoError(t, w.Publish(ctx, address, external.Message{})) // create #3

	// close #3 at ~t=3s -> backoff until ~t=7s (delay doubles to 4s).
	w.OnHandleClosed(address)
	clock.Advance(4001 * time.Millisecond)
	require.NoError(t, w.Publish(ctx, address, external.Message{})) // create #4

	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, 4, creates)
}

// Scenario 6, rapid closures: closures spammed faster than the backoff
// only trigger a single recreate once the backoff elapses; later closures
// during backoff are dropped.
func TestWorker_RapidClosuresOnlyRecreateOnce(t *testing.T) {
	clock := &countingClock{now: time.Unix(0, 0)}
	var mu sync.Mutex
	creates := 0
	w := publisher.New(countingFactory(&creates, &mu), clock.Now)

	ctx := context.Background()
	address := "target-1"

	require.NoError(t, w.Publish(ctx, address, external.Message{})) // create #1

	w.OnHandleClosed(address)
	w.OnHandleClosed(address)
	w.OnHandleClosed(address)

	clock.Advance(1001 * time.Millisecond)
	require.NoError(t, w.Publish(ctx, address, external.Message{})) // create #2

	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, 2, creates)
}

func TestWorker_PublishWhileBackingOffIsTransientError(t *testing.T) {
	clock := &countingClock{now: time.Unix(0, 0)}
	var mu sync.Mutex
	creates := 0
	w := publisher.New(countingFactory(&creates, &mu), clock.Now)

	ctx := context.Background()
	require.NoError(t, w.Publish(ctx, "a", external.Message{}))
	w.OnHandleClosed("a")

	err := w.Publish(ctx, "a", external.Message{})
	assert.Error(t, err)
}

func TestWorker_Close(t *testing.T) {
	clock := &countingClock{now: time.Unix(0, 0)}
	var mu sync.Mutex
	creates := 0
	w := publisher.New(countingFactory(&creates, &mu), clock.Now)

	ctx := context.Background()
	require.NoError(t, w.Publish(ctx, "a", external.Message{}))
	assert.NoError(t, w.Close())
}
