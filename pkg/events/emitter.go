package events

import (
	"context"
	"encoding/json"
	"strconv"
	"time"

	"github.com/Gobusters/ectologger"

	appcontext "github.com/Ramsey-B/aster/pkg/context"
	"github.com/Ramsey-B/aster/pkg/models"
	"github.com/Ramsey-B/aster/pkg/tracing"
)

// Event types published to the sync topic.
const (
	TypeRecordCreated = "record.created"
	TypeRecordSynced  = "record.synced"
)

// SyncEvent is the payload published after a successful board write.
type SyncEvent struct {
	Type        string    `json:"type"`
	CaseID      int64     `json:"case_id"`
	CaseNumber  string    `json:"case_number,omitempty"`
	BoardID     int64     `json:"board_id"`
	ItemID      int64     `json:"item_id"`
	SyncVersion string    `json:"sync_version"`
	IsTest      bool      `json:"is_test"`
	RunID       string    `json:"run_id,omitempty"`
	TraceID     string    `json:"trace_id,omitempty"`
	Timestamp   time.Time `json:"timestamp"`
}

// Publisher is the producer surface the emitter needs.
type Publisher interface {
	Publish(ctx context.Context, key string, value []byte, headers map[string]string) error
}

// Emitter publishes sync events for downstream consumers. Emission is best
// effort: a publish failure is logged and never fails the reconciliation
// outcome it describes.
type Emitter struct {
	producer Publisher
	boardID  int64
	logger   ectologger.Logger
}

// NewEmitter creates a new sync event emitter
func NewEmitter(producer Publisher, boardID int64, logger ectologger.Logger) *Emitter {
	return &Emitter{
		producer: producer,
		boardID:  boardID,
		logger:   logger,
	}
}

// RecordCreated publishes a record.created event.
func (e *Emitter) RecordCreated(ctx context.Context, record models.CaseRecord, itemID int64) {
	e.emit(ctx, TypeRecordCreated, record, itemID)
}

// RecordSynced publishes a record.synced event.
func (e *Emitter) RecordSynced(ctx context.Context, record models.CaseRecord, itemID int64) {
	e.emit(ctx, TypeRecordSynced, record, itemID)
}

func (e *Emitter) emit(ctx context.Context, eventType string, record models.CaseRecord, itemID int64) {
	ctx, span := tracing.StartSpan(ctx, "events.Emitter.emit")
	defer span.End()

	event := SyncEvent{
		Type:        eventType,
		CaseID:      record.CaseID,
		CaseNumber:  record.CaseNumber,
		BoardID:     e.boardID,
		ItemID:      itemID,
		SyncVersion: record.SyncVersion(),
		IsTest:      record.IsTest,
		RunID:       appcontext.GetRunID(ctx),
		TraceID:     tracing.GetTraceID(ctx),
		Timestamp:   time.Now().UTC(),
	}

	payload, err := json.Marshal(event)
	if err != nil {
		e.logger.WithContext(ctx).WithError(err).WithField("event_type", eventType).Warn("Failed to encode sync event")
		return
	}

	headers := map[string]string{"event_type": eventType}
	if event.RunID != "" {
		headers["run_id"] = event.RunID
	}
	if traceParent := tracing.GetTraceParent(ctx); traceParent != "" {
		headers["traceparent"] = traceParent
	}

	key := strconv.FormatInt(record.CaseID, 10)
	if err := e.producer.Publish(ctx, key, payload, headers); err != nil {
		e.logger.WithContext(ctx).WithError(err).WithFields(map[string]any{"event_type": eventType, "case_id": record.CaseID}).Warn("Failed to publish sync event")
	}
}
