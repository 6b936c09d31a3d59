package alerts

import (
	"context"
	"sync"
	"time"

	"github.com/Gobusters/ectologger"

	"github.com/Ramsey-B/aster/pkg/fingerprint"
	"github.com/Ramsey-B/aster/pkg/guardrail"
)

const deliveryTimeout = 15 * time.Second

// Event is one alertable occurrence.
type Event struct {
	Category string    `json:"category"`
	Message  string    `json:"message"`
	Source   string    `json:"source"`
	Time     time.Time `json:"time"`
}

// DigestEvent summarizes suppressed alerts since the previous digest.
type DigestEvent struct {
	Interval time.Duration           `json:"interval"`
	Entries  []guardrail.DigestEntry `json:"entries"`
}

// Sender delivers alerts. The transport behind it (mail, chat webhook) is
// not this package's concern.
type Sender interface {
	Send(ctx context.Context, event Event) error
	SendDigest(ctx context.Context, digest DigestEvent) error
}

// Config holds alert notifier settings.
type Config struct {
	QueueSize      int
	DedupWindow    time.Duration
	MaxPerMinute   int
	MaxPerProcess  int
	DigestInterval time.Duration
}

// Notifier fans alertable events through a bounded queue into a single
// delivery worker. When the queue is full the oldest pending event is
// dropped in favor of the new one; fresh context beats stale context when
// alerting is already backlogged. Dedup and rate limits are enforced at
// delivery time by a guardrail policy the notifier must not share with any
// other rate-limited concern.
type Notifier struct {
	cfg    Config
	sender Sender
	guard  *guardrail.Policy
	logger ectologger.Logger

	mu      sync.Mutex
	queue   chan Event
	dropped int

	stop chan struct{}
	done chan struct{}
}

// NewNotifier creates a new alert notifier
func NewNotifier(cfg Config, sender Sender, guard *guardrail.Policy, logger ectologger.Logger) *Notifier {
	if cfg.QueueSize <= 0 {
		cfg.QueueSize = 100
	}
	return &Notifier{
		cfg:    cfg,
		sender: sender,
		guard:  guard,
		logger: logger,
		queue:  make(chan Event, cfg.QueueSize),
		stop:   make(chan struct{}),
		done:   make(chan struct{}),
	}
}

// Notify enqueues an alert. It never blocks the caller: a full queue drops
// the oldest pending event to make room.
func (n *Notifier) Notify(category, message, source string) {
	event := Event{
		Category: category,
		Message:  message,
		Source:   source,
		Time:     time.Now().UTC(),
	}

	n.mu.Lock()
	defer n.mu.Unlock()

	select {
	case n.queue <- event:
		return
	default:
	}

	select {
	case dropped := <-n.queue:
		n.dropped++
		n.logger.WithFields(map[string]any{"category": dropped.Category, "total_dropped": n.dropped}).Warn("Alert queue full; dropped oldest pending alert")
	default:
	}

	select {
	case n.queue <- event:
	default:
	}
}

// Start launches the delivery worker.
func (n *Notifier) Start() {
	go n.run()
}

// Stop shuts the worker down and waits for it to exit. Pending queued
// events are abandoned.
func (n *Notifier) Stop() {
	close(n.stop)
	<-n.done
}

func (n *Notifier) run() {
	defer close(n.done)

	ticker := time.NewTicker(n.cfg.DigestInterval)
	defer ticker.Stop()

	for {
		select {
		case <-n.stop:
			return
		case event := <-n.queue:
			n.deliver(event)
		case <-ticker.C:
			n.sendDigest()
		}
	}
}

func (n *Notifier) deliver(event Event) {
	fp := fingerprint.Event(event.Category, event.Message, event.Source)
	decision := n.guard.Evaluate(fp, n.cfg.DedupWindow,
		guardrail.Limit{MaxAccepted: n.cfg.MaxPerProcess},
		guardrail.Limit{MaxAccepted: n.cfg.MaxPerMinute, Window: time.Minute},
	)

	if !decision.Accepted {
		n.logger.WithFields(map[string]any{
			"category":     event.Category,
			"deduplicated": decision.Deduplicated,
			"rate_limited": decision.RateLimited,
		}).Debug("Alert suppressed")
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), deliveryTimeout)
	defer cancel()

	if err := n.sender.Send(ctx, event); err != nil {
		n.logger.WithError(err).WithField("category", event.Category).Error("Failed to deliver alert")
	}
}

// sendDigest reports fingerprints suppressed since the last digest. The
// digest bypasses the guardrail: it is the report about suppression itself.
func (n *Notifier) sendDigest() {
	entries := n.guard.Digest()
	if len(entries) == 0 {
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), deliveryTimeout)
	defer cancel()

	digest := DigestEvent{Interval: n.cfg.DigestInterval, Entries: entries}
	if err := n.sender.SendDigest(ctx, digest); err != nil {
		n.logger.WithError(err).Error("Failed to deliver suppression digest")
	}
}
