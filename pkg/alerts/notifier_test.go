package alerts

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/Gobusters/ectologger"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Ramsey-B/aster/pkg/guardrail"
)

type fakeSender struct {
	mu      sync.Mutex
	events  []Event
	digests []DigestEvent
}

func (f *fakeSender) Send(_ context.Context, event Event) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.events = append(f.events, event)
	return nil
}

func (f *fakeSender) SendDigest(_ context.Context, digest DigestEvent) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.digests = append(f.digests, digest)
	return nil
}

func (f *fakeSender) sent() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.events)
}

func (f *fakeSender) digestCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.digests)
}

func noopLogger() ectologger.Logger {
	return ectologger.NewEctoLogger(func(_ ectologger.EctoLogMessage) {})
}

func testConfig() Config {
	return Config{
		QueueSize:      3,
		DedupWindow:    30 * time.Minute,
		MaxPerMinute:   10,
		MaxPerProcess:  200,
		DigestInterval: time.Hour,
	}
}

func TestNotifierDeliversAndDeduplicates(t *testing.T) {
	sender := &fakeSender{}
	n := NewNotifier(testConfig(), sender, guardrail.NewPolicy(), noopLogger())
	n.Start()
	defer n.Stop()

	n.Notify("reconciliation", "board api returned 503: run 111 failed", "engine")
	n.Notify("reconciliation", "board api returned 503: run 222 failed", "engine")

	require.Eventually(t, func() bool { return sender.sent() == 1 }, 2*time.Second, 10*time.Millisecond,
		"materially identical messages must collapse to one delivery")
	assert.Equal(t, "reconciliation", sender.events[0].Category)
}

func TestNotifierQueueDropsOldest(t *testing.T) {
	sender := &fakeSender{}
	n := NewNotifier(testConfig(), sender, guardrail.NewPolicy(), noopLogger())
	// Worker not started: events stay queued.

	n.Notify("a", "first", "test")
	n.Notify("b", "second", "test")
	n.Notify("c", "third", "test")
	n.Notify("d", "fourth", "test")

	require.Len(t, n.queue, 3)
	oldest := <-n.queue
	assert.Equal(t, "b", oldest.Category, "overflow must drop the oldest pending event")
}

func TestNotifierNeverBlocksCaller(t *testing.T) {
	sender := &fakeSender{}
	n := NewNotifier(testConfig(), sender, guardrail.NewPolicy(), noopLogger())

	done := make(chan struct{})
	go func() {
		for i := 0; i < 50; i++ {
			n.Notify("flood", "message", "test")
		}
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Notify blocked on a full queue")
	}
}

func TestNotifierRateLimit(t *testing.T) {
	cfg := testConfig()
	cfg.QueueSize = 10
	cfg.MaxPerMinute = 2
	sender := &fakeSender{}
	n := NewNotifier(cfg, sender, guardrail.NewPolicy(), noopLogger())
	n.Start()
	defer n.Stop()

	// Distinct messages dodge dedup; the rolling limit still caps delivery.
	n.Notify("a", "alpha failed", "test")
	n.Notify("b", "beta failed", "test")
	n.Notify("c", "gamma failed", "test")

	require.Eventually(t, func() bool { return sender.sent() == 2 }, 2*time.Second, 10*time.Millisecond)
	time.Sleep(50 * time.Millisecond)
	assert.Equal(t, 2, sender.sent())
}

func TestNotifierBudgetUnaffectedByWriteDedup(t *testing.T) {
	cfg := testConfig()
	sender := &fakeSender{}
	n := NewNotifier(cfg, sender, guardrail.NewPolicy(), noopLogger())
	n.Start()
	defer n.Stop()

	// The engine's write-dedup policy is a separate instance; however many
	// writes it accepts, the first alert still goes out.
	writeGuard := guardrail.NewPolicy()
	for i := 0; i < cfg.MaxPerProcess; i++ {
		writeGuard.RecordAccepted(fmt.Sprintf("write-%d", i))
	}

	n.Notify("reconciliation", "mapping persistence failed", "engine")

	require.Eventually(t, func() bool { return sender.sent() == 1 }, 2*time.Second, 10*time.Millisecond,
		"write acceptances must not consume the alert budget")
}

func TestNotifierDigest(t *testing.T) {
	cfg := testConfig()
	cfg.DigestInterval = 50 * time.Millisecond
	sender := &fakeSender{}
	n := NewNotifier(cfg, sender, guardrail.NewPolicy(), noopLogger())
	n.Start()
	defer n.Stop()

	n.Notify("reconciliation", "same failure", "test")
	n.Notify("reconciliation", "same failure", "test")
	n.Notify("reconciliation", "same failure", "test")

	require.Eventually(t, func() bool { return sender.digestCount() >= 1 }, 2*time.Second, 10*time.Millisecond)

	sender.mu.Lock()
	defer sender.mu.Unlock()
	require.NotEmpty(t, sender.digests[0].Entries)
	assert.GreaterOrEqual(t, sender.digests[0].Entries[0].Suppressed, 1)
}
