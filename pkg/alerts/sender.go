package alerts

import (
	"context"

	"github.com/Gobusters/ectologger"
)

// LogSender writes alerts to the structured log. It is the default transport
// when no external delivery channel is configured; log shippers pick the
// entries up downstream.
type LogSender struct {
	logger ectologger.Logger
}

// NewLogSender creates a new log-backed alert sender
func NewLogSender(logger ectologger.Logger) *LogSender {
	return &LogSender{logger: logger}
}

func (s *LogSender) Send(_ context.Context, event Event) error {
	s.logger.WithFields(map[string]any{
		"category": event.Category,
		"source":   event.Source,
		"time":     event.Time,
	}).Errorf("ALERT: %s", event.Message)
	return nil
}

func (s *LogSender) SendDigest(_ context.Context, digest DigestEvent) error {
	for _, entry := range digest.Entries {
		s.logger.WithFields(map[string]any{
			"fingerprint": entry.Fingerprint,
			"occurrences": entry.Occurrences,
			"suppressed":  entry.Suppressed,
			"first_seen":  entry.FirstSeen,
			"last_seen":   entry.LastSeen,
		}).Warn("Alert suppression digest entry")
	}
	return nil
}
