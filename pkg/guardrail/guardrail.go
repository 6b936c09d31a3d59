package guardrail

import (
	"sync"
	"time"
)

// Limit bounds accepted actions. A zero Window means the limit applies to
// the whole process lifetime and never resets; a positive Window is a
// rolling window over accepted-action timestamps.
type Limit struct {
	MaxAccepted int
	Window      time.Duration
}

// Decision is the combined outcome of one Evaluate call.
type Decision struct {
	Accepted     bool
	Deduplicated bool
	RateLimited  bool
}

// DigestEntry summarizes suppression for one fingerprint since the last
// digest.
type DigestEntry struct {
	Fingerprint string
	Occurrences int
	Suppressed  int
	FirstSeen   time.Time
	LastSeen    time.Time
}

type entryState struct {
	firstSeen    time.Time
	lastSeen     time.Time
	occurrences  int
	suppressed   int
	lastAccepted time.Time
}

// Policy is an in-process dedup + rate-limit guardrail. The same structure
// backs outbound write throttling and alert suppression, but the accepted
// timestamps and lifetime counter are instance-wide, so each concern holds
// its own Policy: writes accepted by one must never consume another's
// rate-limit budget. All state is in memory and guarded by one mutex so
// check-and-record is atomic: two goroutines can never both observe "not
// limited" and both proceed.
type Policy struct {
	mu       sync.Mutex
	now      func() time.Time
	entries  map[string]*entryState
	accepted []time.Time
	lifetime int
}

// NewPolicy creates a new guardrail policy
func NewPolicy() *Policy {
	return &Policy{
		now:     time.Now,
		entries: make(map[string]*entryState),
	}
}

// ShouldSuppress reports whether a fingerprint occurrence inside the dedup
// window would be suppressed. The first occurrence of a fingerprint is never
// suppressed; after the window elapses the next occurrence is accepted again
// and restarts the window.
func (p *Policy) ShouldSuppress(fingerprint string, dedupWindow time.Duration) bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.shouldSuppress(fingerprint, dedupWindow)
}

func (p *Policy) shouldSuppress(fingerprint string, dedupWindow time.Duration) bool {
	entry, seen := p.entries[fingerprint]
	if !seen || entry.lastAccepted.IsZero() {
		return false
	}
	return p.now().Sub(entry.lastAccepted) < dedupWindow
}

// IsRateLimited reports whether the given limit would reject another
// accepted action right now. Expired timestamps are pruned before the check.
func (p *Policy) IsRateLimited(limit Limit) bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.isRateLimited(limit)
}

func (p *Policy) isRateLimited(limit Limit) bool {
	if limit.MaxAccepted <= 0 {
		return false
	}
	if limit.Window <= 0 {
		return p.lifetime >= limit.MaxAccepted
	}
	p.prune(limit.Window)
	count := 0
	cutoff := p.now().Add(-limit.Window)
	for _, ts := range p.accepted {
		if ts.After(cutoff) {
			count++
		}
	}
	return count >= limit.MaxAccepted
}

// RecordAccepted records an accepted action for a fingerprint.
func (p *Policy) RecordAccepted(fingerprint string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.recordAccepted(fingerprint)
}

func (p *Policy) recordAccepted(fingerprint string) {
	now := p.now()
	entry := p.entry(fingerprint, now)
	entry.occurrences++
	entry.lastSeen = now
	entry.lastAccepted = now
	p.accepted = append(p.accepted, now)
	p.lifetime++
}

// RecordSuppressed records a suppressed occurrence for a fingerprint. The
// suppressed count feeds the periodic digest.
func (p *Policy) RecordSuppressed(fingerprint string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.recordSuppressed(fingerprint)
}

func (p *Policy) recordSuppressed(fingerprint string) {
	now := p.now()
	entry := p.entry(fingerprint, now)
	entry.occurrences++
	entry.suppressed++
	entry.lastSeen = now
}

// Evaluate runs the full dedup + rate-limit sequence atomically and records
// the outcome. All limits must pass for an action to be accepted.
func (p *Policy) Evaluate(fingerprint string, dedupWindow time.Duration, limits ...Limit) Decision {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.shouldSuppress(fingerprint, dedupWindow) {
		p.recordSuppressed(fingerprint)
		return Decision{Deduplicated: true}
	}

	for _, limit := range limits {
		if p.isRateLimited(limit) {
			p.recordSuppressed(fingerprint)
			return Decision{RateLimited: true}
		}
	}

	p.recordAccepted(fingerprint)
	return Decision{Accepted: true}
}

// Digest returns every fingerprint with suppressed occurrences since the
// last digest and resets their suppressed counters.
func (p *Policy) Digest() []DigestEntry {
	p.mu.Lock()
	defer p.mu.Unlock()

	var digest []DigestEntry
	for fingerprint, entry := range p.entries {
		if entry.suppressed == 0 {
			continue
		}
		digest = append(digest, DigestEntry{
			Fingerprint: fingerprint,
			Occurrences: entry.occurrences,
			Suppressed:  entry.suppressed,
			FirstSeen:   entry.firstSeen,
			LastSeen:    entry.lastSeen,
		})
		entry.suppressed = 0
	}
	return digest
}

func (p *Policy) entry(fingerprint string, now time.Time) *entryState {
	entry, ok := p.entries[fingerprint]
	if !ok {
		entry = &entryState{firstSeen: now}
		p.entries[fingerprint] = entry
	}
	return entry
}

// prune drops accepted-action timestamps older than the window so the
// sliding list cannot grow without bound.
func (p *Policy) prune(window time.Duration) {
	cutoff := p.now().Add(-window)
	keep := p.accepted[:0]
	for _, ts := range p.accepted {
		if ts.After(cutoff) {
			keep = append(keep, ts)
		}
	}
	p.accepted = keep
}
