package guardrail

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestPolicy() (*Policy, *time.Time) {
	now := time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC)
	p := NewPolicy()
	p.now = func() time.Time { return now }
	return p, &now
}

func TestDedupFirstOccurrenceNeverSuppressed(t *testing.T) {
	p, _ := newTestPolicy()

	assert.False(t, p.ShouldSuppress("fp", 30*time.Minute))
}

func TestDedupWindow(t *testing.T) {
	p, now := newTestPolicy()
	window := 30 * time.Minute

	p.RecordAccepted("fp")

	t.Run("inside window", func(t *testing.T) {
		*now = now.Add(10 * time.Minute)
		assert.True(t, p.ShouldSuppress("fp", window))
	})

	t.Run("other fingerprints unaffected", func(t *testing.T) {
		assert.False(t, p.ShouldSuppress("other", window))
	})

	t.Run("window elapsed", func(t *testing.T) {
		*now = now.Add(25 * time.Minute)
		assert.False(t, p.ShouldSuppress("fp", window))
	})

	t.Run("acceptance restarts the window", func(t *testing.T) {
		p.RecordAccepted("fp")
		*now = now.Add(time.Minute)
		assert.True(t, p.ShouldSuppress("fp", window))
	})
}

func TestRollingRateLimit(t *testing.T) {
	p, now := newTestPolicy()
	limit := Limit{MaxAccepted: 3, Window: time.Minute}

	for i := 0; i < 3; i++ {
		require.False(t, p.IsRateLimited(limit))
		p.RecordAccepted("fp")
		*now = now.Add(10 * time.Second)
	}

	// Fourth action inside the window is rejected regardless of fingerprint.
	assert.True(t, p.IsRateLimited(limit))

	// Once the oldest timestamp ages out, the next action is accepted.
	*now = now.Add(45 * time.Second)
	assert.False(t, p.IsRateLimited(limit))
}

func TestLifetimeLimitNeverResets(t *testing.T) {
	p, now := newTestPolicy()
	limit := Limit{MaxAccepted: 2}

	p.RecordAccepted("a")
	p.RecordAccepted("b")
	assert.True(t, p.IsRateLimited(limit))

	*now = now.Add(24 * time.Hour)
	assert.True(t, p.IsRateLimited(limit))
}

func TestEvaluateAtomicSequence(t *testing.T) {
	p, now := newTestPolicy()
	window := 30 * time.Minute
	perMinute := Limit{MaxAccepted: 2, Window: time.Minute}
	lifetime := Limit{MaxAccepted: 10}

	first := p.Evaluate("fp", window, lifetime, perMinute)
	assert.True(t, first.Accepted)

	second := p.Evaluate("fp", window, lifetime, perMinute)
	assert.True(t, second.Deduplicated)

	// Different fingerprints burn through the rolling limit.
	assert.True(t, p.Evaluate("other", window, lifetime, perMinute).Accepted)
	third := p.Evaluate("another", window, lifetime, perMinute)
	assert.True(t, third.RateLimited)
	assert.False(t, third.Accepted)

	*now = now.Add(2 * time.Minute)
	assert.True(t, p.Evaluate("another", window, lifetime, perMinute).Accepted)
}

func TestDigestResetsSuppressedCounts(t *testing.T) {
	p, _ := newTestPolicy()

	p.RecordAccepted("fp")
	p.RecordSuppressed("fp")
	p.RecordSuppressed("fp")
	p.RecordAccepted("clean")

	digest := p.Digest()
	require.Len(t, digest, 1)
	assert.Equal(t, "fp", digest[0].Fingerprint)
	assert.Equal(t, 3, digest[0].Occurrences)
	assert.Equal(t, 2, digest[0].Suppressed)

	assert.Empty(t, p.Digest(), "counters reset after each digest")
}
