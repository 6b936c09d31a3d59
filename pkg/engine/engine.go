package engine

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"time"

	"github.com/Gobusters/ectologger"
	"github.com/google/uuid"

	"github.com/Ramsey-B/aster/internal/repositories/mapping"
	appcontext "github.com/Ramsey-B/aster/pkg/context"
	"github.com/Ramsey-B/aster/pkg/fingerprint"
	"github.com/Ramsey-B/aster/pkg/gate"
	"github.com/Ramsey-B/aster/pkg/models"
	"github.com/Ramsey-B/aster/pkg/planner"
	"github.com/Ramsey-B/aster/pkg/schema"
	"github.com/Ramsey-B/aster/pkg/tracing"
)

// Audit actions written per record outcome.
const (
	outcomeCreate = "create"
	outcomeUpdate = "update"
	outcomeSkip   = "skip"
	outcomeFail   = "fail"
)

// SourceStore reads case records from the case-management store.
type SourceStore interface {
	GetByCaseIDs(ctx context.Context, caseIDs []int64) ([]models.CaseRecord, error)
	GetChangedCaseIDsSince(ctx context.Context, since time.Time) ([]int64, error)
}

// MappingStore is the mapping persistence surface the engine writes through.
type MappingStore interface {
	Create(ctx context.Context, req models.CreateMappingRequest) (*mapping.CreateResult, error)
	UpdateSyncVersion(ctx context.Context, id int64, syncVersion string) error
	UpdateNameChecksum(ctx context.Context, id int64, nameChecksum string) error
	UpdateHearingState(ctx context.Context, id int64, hearingState string) error
}

// RecordResolver finds or establishes the mapping for a record.
type RecordResolver interface {
	Resolve(ctx context.Context, record models.CaseRecord, boardID int64) (*models.BoardMapping, error)
}

// BoardWriter is the board write surface.
type BoardWriter interface {
	CreateItem(ctx context.Context, boardID int64, groupID, name string, fields models.FieldValues) (int64, error)
	UpdateItemName(ctx context.Context, boardID, itemID int64, name string) error
	UpdateItemFields(ctx context.Context, boardID, itemID int64, fields models.FieldValues) error
}

// FieldValidator validates candidate column values against the board schema.
type FieldValidator interface {
	ValidateCritical(ctx context.Context, boardID int64, columnID, value string) (schema.Result, error)
	ValidateOptional(ctx context.Context, boardID int64, columnID, value string) bool
}

// AuditLog appends per-record outcomes.
type AuditLog interface {
	Append(ctx context.Context, entry models.AuditEntry) error
}

// RunStore persists reconciliation run history.
type RunStore interface {
	Start(ctx context.Context, runID string) error
	Finish(ctx context.Context, run models.SyncRun) error
	LastSuccessfulFinish(ctx context.Context) (*time.Time, error)
}

// Guard suppresses duplicate outbound writes. Acceptance is recorded only
// after the remote write succeeds, so a failed write never suppresses its own
// retry on the next pass.
type Guard interface {
	ShouldSuppress(fingerprint string, dedupWindow time.Duration) bool
	RecordAccepted(fingerprint string)
	RecordSuppressed(fingerprint string)
}

// EventEmitter publishes sync events for downstream consumers.
type EventEmitter interface {
	RecordCreated(ctx context.Context, record models.CaseRecord, itemID int64)
	RecordSynced(ctx context.Context, record models.CaseRecord, itemID int64)
}

// Alerter receives record-failure notifications.
type Alerter interface {
	Notify(category, message, source string)
}

// ValidationError marks a schema validation failure. It is distinct from
// infrastructure failures: the record is aborted without retry and nothing
// is defaulted or guessed.
type ValidationError struct {
	Kind    schema.FailureKind
	Message string
}

func (e *ValidationError) Error() string {
	return e.Message
}

// Columns holds the remote board column ids the engine writes to.
type Columns struct {
	CaseNumber     string
	CaseStage      string
	HearingStatus  string
	Courtroom      string
	HearingOfficer string
	HearingDate    string
	HearingTime    string
}

// Config holds reconciliation engine settings.
type Config struct {
	BoardID          int64
	GroupID          string
	Columns          Columns
	BatchSize        int
	Overlap          time.Duration
	FirstRunLookback time.Duration
	WriteDedupWindow time.Duration
}

// Deps are the engine's collaborators. Events and Alerter are optional.
type Deps struct {
	Source    SourceStore
	Mappings  MappingStore
	Resolver  RecordResolver
	Board     BoardWriter
	Validator FieldValidator
	Audit     AuditLog
	Runs      RunStore
	Guard     Guard
	Events    EventEmitter
	Alerter   Alerter
	Logger    ectologger.Logger
}

// Engine runs reconciliation passes: it builds an incremental batch from the
// source change feed and loops over it sequentially, one record at a time,
// to respect the board's request-rate constraints.
type Engine struct {
	cfg       Config
	source    SourceStore
	mappings  MappingStore
	resolver  RecordResolver
	board     BoardWriter
	validator FieldValidator
	audits    AuditLog
	runs      RunStore
	guard     Guard
	events    EventEmitter
	alerter   Alerter
	logger    ectologger.Logger
}

// New creates a new reconciliation engine
func New(cfg Config, deps Deps) *Engine {
	return &Engine{
		cfg:       cfg,
		source:    deps.Source,
		mappings:  deps.Mappings,
		resolver:  deps.Resolver,
		board:     deps.Board,
		validator: deps.Validator,
		audits:    deps.Audit,
		runs:      deps.Runs,
		guard:     deps.Guard,
		events:    deps.Events,
		alerter:   deps.Alerter,
		logger:    deps.Logger,
	}
}

// RunPass executes one reconciliation pass. Cancellation is honored between
// records, never mid-write, so a cancelled pass leaves no partial writes.
// One record's failure never stops the batch.
func (e *Engine) RunPass(ctx context.Context) (*models.SyncRun, error) {
	ctx, span := tracing.StartSpan(ctx, "engine.Engine.RunPass")
	defer span.End()

	runID := uuid.New().String()
	ctx = appcontext.SetRunID(ctx, runID)
	run := models.SyncRun{ID: runID, StartedAt: time.Now().UTC()}

	if err := e.runs.Start(ctx, runID); err != nil {
		return nil, err
	}

	records, err := e.collectBatch(ctx)
	if err != nil {
		msg := err.Error()
		run.Error = &msg
		e.finish(ctx, run)
		return &run, err
	}

	e.logger.WithContext(ctx).WithField("batch_size", len(records)).Info("Starting reconciliation pass")

	for _, record := range records {
		if ctx.Err() != nil {
			msg := "pass cancelled: " + ctx.Err().Error()
			run.Error = &msg
			break
		}

		recordCtx := appcontext.SetCaseID(ctx, record.CaseID)
		outcome, detail, err := e.syncRecord(recordCtx, record)
		e.recordOutcome(recordCtx, record, outcome, detail, err, &run)
	}

	run.Succeeded = run.Error == nil && run.Failed == 0
	if !run.Succeeded && run.Error == nil {
		msg := fmt.Sprintf("%d of %d records failed", run.Failed, len(records))
		run.Error = &msg
	}
	e.finish(ctx, run)

	e.logger.WithContext(ctx).WithFields(map[string]any{
		"created": run.Created,
		"updated": run.Updated,
		"skipped": run.Skipped,
		"failed":  run.Failed,
	}).Info("Reconciliation pass finished")
	return &run, nil
}

// collectBatch builds the incremental batch: ids changed since the last
// successful run minus the safety overlap, then fresh snapshots for them.
func (e *Engine) collectBatch(ctx context.Context) ([]models.CaseRecord, error) {
	ctx, span := tracing.StartSpan(ctx, "engine.Engine.collectBatch")
	defer span.End()

	since, err := e.batchWatermark(ctx)
	if err != nil {
		return nil, err
	}

	ids, err := e.source.GetChangedCaseIDsSince(ctx, since)
	if err != nil {
		return nil, err
	}

	if e.cfg.BatchSize > 0 && len(ids) > e.cfg.BatchSize {
		e.logger.WithContext(ctx).WithFields(map[string]any{
			"batch_size": e.cfg.BatchSize,
			"deferred":   len(ids) - e.cfg.BatchSize,
		}).Warn("Change feed exceeds batch size; deferring remainder to the next pass")
		ids = ids[:e.cfg.BatchSize]
	}

	return e.source.GetByCaseIDs(ctx, ids)
}

func (e *Engine) batchWatermark(ctx context.Context) (time.Time, error) {
	last, err := e.runs.LastSuccessfulFinish(ctx)
	if err != nil {
		return time.Time{}, err
	}
	if last == nil {
		return time.Now().UTC().Add(-e.cfg.FirstRunLookback), nil
	}
	return last.Add(-e.cfg.Overlap), nil
}

func (e *Engine) syncRecord(ctx context.Context, record models.CaseRecord) (string, string, error) {
	ctx, span := tracing.StartSpan(ctx, "engine.Engine.syncRecord")
	defer span.End()

	m, err := e.resolver.Resolve(ctx, record, e.cfg.BoardID)
	if err != nil {
		return outcomeFail, "failed to resolve mapping", err
	}

	name := record.ItemName()
	plan := planner.Plan(m, record, name)

	switch plan.Action {
	case models.ActionSkip:
		return outcomeSkip, "no changes detected", nil
	case models.ActionCreate:
		return e.createRecord(ctx, record, name)
	default:
		return e.updateRecord(ctx, m, record, name, plan)
	}
}

func (e *Engine) createRecord(ctx context.Context, record models.CaseRecord, name string) (string, string, error) {
	ctx, span := tracing.StartSpan(ctx, "engine.Engine.createRecord")
	defer span.End()

	result, err := e.validator.ValidateCritical(ctx, e.cfg.BoardID, e.cfg.Columns.CaseStage, record.Stage)
	if err != nil {
		return outcomeFail, "failed to validate stage column", err
	}
	if !result.Valid {
		return outcomeFail, result.Message, &ValidationError{Kind: result.Kind, Message: result.Message}
	}

	current := snapshotFromRecord(record)
	_, flags := gate.ComputeSteps(current, gate.HearingSnapshot{})
	fields := e.buildFields(ctx, record, current, &flags)

	fp := writeFingerprint(record.CaseID, name, fields)
	if e.guard.ShouldSuppress(fp, e.cfg.WriteDedupWindow) {
		e.guard.RecordSuppressed(fp)
		return outcomeSkip, "duplicate outbound write suppressed", nil
	}

	var itemID int64
	err = e.withRetry(ctx, "board.CreateItem", func(ctx context.Context) error {
		id, createErr := e.board.CreateItem(ctx, e.cfg.BoardID, e.cfg.GroupID, name, fields)
		itemID = id
		return createErr
	})
	if err != nil {
		return outcomeFail, "failed to create board item", err
	}
	e.guard.RecordAccepted(fp)

	created, err := e.mappings.Create(ctx, models.CreateMappingRequest{
		CaseID:       record.CaseID,
		CaseNumber:   record.CaseNumber,
		BoardID:      e.cfg.BoardID,
		ItemID:       itemID,
		SyncVersion:  record.SyncVersion(),
		NameChecksum: fingerprint.Text(name),
		IsTest:       record.IsTest,
	})
	if err != nil {
		return outcomeFail, "board item created but mapping persistence failed", err
	}

	if applied := applySnapshot(gate.HearingSnapshot{}, current, flags); applied != (gate.HearingSnapshot{}) {
		e.persistHearingState(ctx, created.Mapping.ID, applied)
	}

	if e.events != nil {
		e.events.RecordCreated(ctx, record, itemID)
	}
	return outcomeCreate, fmt.Sprintf("created board item %d", itemID), nil
}

func (e *Engine) updateRecord(ctx context.Context, m *models.BoardMapping, record models.CaseRecord, name string, plan models.UpsertPlan) (string, string, error) {
	ctx, span := tracing.StartSpan(ctx, "engine.Engine.updateRecord")
	defer span.End()

	current := snapshotFromRecord(record)
	previous := e.previousSnapshot(ctx, m)
	_, flags := gate.ComputeSteps(current, previous)

	var fields models.FieldValues
	if plan.DataChanged {
		result, err := e.validator.ValidateCritical(ctx, e.cfg.BoardID, e.cfg.Columns.CaseStage, record.Stage)
		if err != nil {
			return outcomeFail, "failed to validate stage column", err
		}
		if !result.Valid {
			return outcomeFail, result.Message, &ValidationError{Kind: result.Kind, Message: result.Message}
		}
		fields = e.buildFields(ctx, record, current, &flags)
	}

	fp := writeFingerprint(record.CaseID, name, fields)
	if e.guard.ShouldSuppress(fp, e.cfg.WriteDedupWindow) {
		e.guard.RecordSuppressed(fp)
		return outcomeSkip, "duplicate outbound write suppressed", nil
	}

	// Each sub-write persists its own mapping column only after it succeeds;
	// a failed write leaves the watermark stale so the next pass retries.
	if plan.NameChanged {
		err := e.withRetry(ctx, "board.UpdateItemName", func(ctx context.Context) error {
			return e.board.UpdateItemName(ctx, m.BoardID, m.ItemID, name)
		})
		if err != nil {
			return outcomeFail, "failed to update board item name", err
		}
		if err := e.mappings.UpdateNameChecksum(ctx, m.ID, fingerprint.Text(name)); err != nil {
			return outcomeFail, "item renamed but checksum persistence failed", err
		}
	}

	if plan.DataChanged {
		err := e.withRetry(ctx, "board.UpdateItemFields", func(ctx context.Context) error {
			return e.board.UpdateItemFields(ctx, m.BoardID, m.ItemID, fields)
		})
		if err != nil {
			return outcomeFail, "failed to update board item fields", err
		}
		if err := e.mappings.UpdateSyncVersion(ctx, m.ID, record.SyncVersion()); err != nil {
			return outcomeFail, "fields updated but watermark persistence failed", err
		}
		if applied := applySnapshot(previous, current, flags); applied != previous {
			e.persistHearingState(ctx, m.ID, applied)
		}
	}

	e.guard.RecordAccepted(fp)

	if e.events != nil {
		e.events.RecordSynced(ctx, record, m.ItemID)
	}
	return outcomeUpdate, updateDetail(plan), nil
}

// buildFields assembles the column values for a data write. The stage column
// has already passed critical validation; every other column is optional and
// degrades to omission when validation rejects it. Gate flags for omitted
// hearing columns are cleared so the persisted snapshot only reflects values
// actually written.
func (e *Engine) buildFields(ctx context.Context, record models.CaseRecord, current gate.HearingSnapshot, flags *gate.ChangeFlags) models.FieldValues {
	cols := e.cfg.Columns
	fields := models.FieldValues{cols.CaseStage: record.Stage}
	if record.CaseNumber != "" {
		fields[cols.CaseNumber] = record.CaseNumber
	}

	if flags.Status {
		if e.validator.ValidateOptional(ctx, e.cfg.BoardID, cols.HearingStatus, current.Status) {
			fields[cols.HearingStatus] = current.Status
		} else {
			flags.Status = false
		}
	}

	if flags.Courtroom {
		courtroom := current.EffectiveCourtroom()
		if e.validator.ValidateOptional(ctx, e.cfg.BoardID, cols.Courtroom, courtroom) {
			fields[cols.Courtroom] = courtroom
		} else {
			flags.Courtroom = false
		}
	}

	if flags.Officer {
		if e.validator.ValidateOptional(ctx, e.cfg.BoardID, cols.HearingOfficer, current.Officer) {
			fields[cols.HearingOfficer] = current.Officer
		} else {
			flags.Officer = false
		}
	}

	if flags.Schedule {
		// The date/time pair moves together or not at all.
		if e.validator.ValidateOptional(ctx, e.cfg.BoardID, cols.HearingDate, current.Date) &&
			e.validator.ValidateOptional(ctx, e.cfg.BoardID, cols.HearingTime, current.Time) {
			fields[cols.HearingDate] = current.Date
			fields[cols.HearingTime] = current.Time
		} else {
			flags.Schedule = false
		}
	}

	return fields
}

// previousSnapshot loads the last-applied hearing snapshot from the mapping.
// A missing or unreadable snapshot degrades to the zero snapshot, which at
// worst re-applies current values (safe, idempotent).
func (e *Engine) previousSnapshot(ctx context.Context, m *models.BoardMapping) gate.HearingSnapshot {
	if m.HearingState == nil || *m.HearingState == "" {
		return gate.HearingSnapshot{}
	}
	var snapshot gate.HearingSnapshot
	if err := json.Unmarshal([]byte(*m.HearingState), &snapshot); err != nil {
		e.logger.WithContext(ctx).WithError(err).WithField("mapping_id", m.ID).Warn("Unreadable hearing snapshot; treating as empty")
		return gate.HearingSnapshot{}
	}
	return snapshot
}

// persistHearingState stores the applied snapshot. Failures are tolerated: a
// stale snapshot only causes an extra idempotent hearing write next pass.
func (e *Engine) persistHearingState(ctx context.Context, mappingID int64, snapshot gate.HearingSnapshot) {
	payload, err := json.Marshal(snapshot)
	if err != nil {
		e.logger.WithContext(ctx).WithError(err).WithField("mapping_id", mappingID).Warn("Failed to encode hearing snapshot")
		return
	}
	if err := e.mappings.UpdateHearingState(ctx, mappingID, string(payload)); err != nil {
		e.logger.WithContext(ctx).WithError(err).WithField("mapping_id", mappingID).Warn("Failed to persist hearing snapshot")
	}
}

func (e *Engine) recordOutcome(ctx context.Context, record models.CaseRecord, outcome, detail string, err error, run *models.SyncRun) {
	entry := models.AuditEntry{
		RunID:  run.ID,
		CaseID: record.CaseID,
		Action: outcome,
		Detail: detail,
	}

	switch outcome {
	case outcomeCreate:
		run.Created++
	case outcomeUpdate:
		run.Updated++
	case outcomeSkip:
		run.Skipped++
	case outcomeFail:
		run.Failed++
		msg := detail
		if err != nil {
			msg = err.Error()
		}
		entry.Error = &msg
		e.logger.WithContext(ctx).WithError(err).WithFields(map[string]any{"case_id": record.CaseID, "detail": detail}).Error("Record reconciliation failed")
		if e.alerter != nil {
			e.alerter.Notify("reconciliation", msg, "engine")
		}
	}

	if auditErr := e.audits.Append(ctx, entry); auditErr != nil {
		e.logger.WithContext(ctx).WithError(auditErr).WithField("case_id", record.CaseID).Warn("Audit append failed")
	}
}

func (e *Engine) finish(ctx context.Context, run models.SyncRun) {
	// The finish row must land even when the pass itself was cancelled.
	ctx = context.WithoutCancel(ctx)
	if err := e.runs.Finish(ctx, run); err != nil {
		e.logger.WithContext(ctx).WithError(err).WithField("run_id", run.ID).Error("Failed to persist run finish")
	}
}

func snapshotFromRecord(record models.CaseRecord) gate.HearingSnapshot {
	return gate.HearingSnapshot{
		Status:    record.HearingStatus,
		Courtroom: record.Courtroom,
		Venue:     record.Venue,
		Officer:   record.HearingOfficer,
		Date:      record.HearingDate,
		Time:      record.HearingTime,
	}
}

// applySnapshot merges only the field groups that were actually written into
// the previous snapshot, so blocked or omitted changes stay pending.
func applySnapshot(previous, current gate.HearingSnapshot, flags gate.ChangeFlags) gate.HearingSnapshot {
	next := previous
	if flags.Status {
		next.Status = current.Status
	}
	if flags.Courtroom {
		next.Courtroom = current.Courtroom
		next.Venue = current.Venue
	}
	if flags.Officer {
		next.Officer = current.Officer
	}
	if flags.Schedule {
		next.Date = current.Date
		next.Time = current.Time
	}
	return next
}

func writeFingerprint(caseID int64, name string, fields models.FieldValues) string {
	payload := map[string]string{
		"__case_id": strconv.FormatInt(caseID, 10),
		"__name":    name,
	}
	for column, value := range fields {
		payload[column] = value
	}
	return fingerprint.Fields(payload)
}

func updateDetail(plan models.UpsertPlan) string {
	switch {
	case plan.NameChanged && plan.DataChanged:
		return "updated name and fields"
	case plan.NameChanged:
		return "updated name"
	default:
		return "updated fields"
	}
}
