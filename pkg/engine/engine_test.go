package engine

import (
	"context"
	"testing"
	"time"

	"github.com/Gobusters/ectologger"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Ramsey-B/aster/internal/repositories/mapping"
	"github.com/Ramsey-B/aster/pkg/board"
	"github.com/Ramsey-B/aster/pkg/fingerprint"
	"github.com/Ramsey-B/aster/pkg/guardrail"
	"github.com/Ramsey-B/aster/pkg/models"
	"github.com/Ramsey-B/aster/pkg/resolver"
	"github.com/Ramsey-B/aster/pkg/schema"
)

type fakeSource struct {
	records []models.CaseRecord
}

func (f *fakeSource) GetChangedCaseIDsSince(_ context.Context, _ time.Time) ([]int64, error) {
	ids := make([]int64, 0, len(f.records))
	for _, r := range f.records {
		ids = append(ids, r.CaseID)
	}
	return ids, nil
}

func (f *fakeSource) GetByCaseIDs(_ context.Context, caseIDs []int64) ([]models.CaseRecord, error) {
	var out []models.CaseRecord
	for _, id := range caseIDs {
		for _, r := range f.records {
			if r.CaseID == id {
				out = append(out, r)
			}
		}
	}
	return out, nil
}

type fakeMappings struct {
	nextID int64
	rows   map[int64]*models.BoardMapping
}

func newFakeMappings() *fakeMappings {
	return &fakeMappings{rows: make(map[int64]*models.BoardMapping)}
}

func (f *fakeMappings) GetByBoardAndCaseNumber(_ context.Context, boardID int64, caseNumber string) (*models.BoardMapping, error) {
	for _, m := range f.rows {
		if m.BoardID == boardID && m.CaseNumber != nil && *m.CaseNumber == caseNumber {
			copied := *m
			return &copied, nil
		}
	}
	return nil, nil
}

func (f *fakeMappings) GetByCaseID(_ context.Context, caseID int64) (*models.BoardMapping, error) {
	for _, m := range f.rows {
		if m.CaseID == caseID {
			copied := *m
			return &copied, nil
		}
	}
	return nil, nil
}

func (f *fakeMappings) Create(_ context.Context, req models.CreateMappingRequest) (*mapping.CreateResult, error) {
	f.nextID++
	m := &models.BoardMapping{
		ID:           f.nextID,
		CaseID:       req.CaseID,
		BoardID:      req.BoardID,
		ItemID:       req.ItemID,
		SyncVersion:  req.SyncVersion,
		NameChecksum: req.NameChecksum,
		IsTest:       req.IsTest,
	}
	if req.CaseNumber != "" {
		caseNumber := req.CaseNumber
		m.CaseNumber = &caseNumber
	}
	f.rows[m.ID] = m
	copied := *m
	return &mapping.CreateResult{Mapping: &copied}, nil
}

func (f *fakeMappings) UpdateSyncVersion(_ context.Context, id int64, syncVersion string) error {
	f.rows[id].SyncVersion = syncVersion
	return nil
}

func (f *fakeMappings) UpdateNameChecksum(_ context.Context, id int64, nameChecksum string) error {
	f.rows[id].NameChecksum = nameChecksum
	return nil
}

func (f *fakeMappings) UpdateHearingState(_ context.Context, id int64, hearingState string) error {
	f.rows[id].HearingState = &hearingState
	return nil
}

func (f *fakeMappings) SetCaseNumber(_ context.Context, id int64, caseNumber string) error {
	f.rows[id].CaseNumber = &caseNumber
	return nil
}

func (f *fakeMappings) Repoint(_ context.Context, id int64, itemID int64, caseNumber string) error {
	f.rows[id].ItemID = itemID
	f.rows[id].CaseNumber = &caseNumber
	return nil
}

type fakeBoard struct {
	nextItemID  int64
	failCreates int

	itemsByValue map[string]int64
	columnTypes  map[string]models.ColumnType
	statusLabels map[string][]string

	creates      int
	nameUpdates  int
	fieldUpdates int
	lastFields   models.FieldValues
}

func newFakeBoard() *fakeBoard {
	return &fakeBoard{
		nextItemID:   554,
		itemsByValue: make(map[string]int64),
		columnTypes:  make(map[string]models.ColumnType),
		statusLabels: make(map[string][]string),
	}
}

func (f *fakeBoard) CreateItem(_ context.Context, _ int64, _, _ string, fields models.FieldValues) (int64, error) {
	if f.failCreates > 0 {
		f.failCreates--
		return 0, &board.APIError{StatusCode: 503, Body: "upstream unavailable"}
	}
	f.creates++
	f.lastFields = fields
	f.nextItemID++
	return f.nextItemID, nil
}

func (f *fakeBoard) UpdateItemName(_ context.Context, _, _ int64, _ string) error {
	f.nameUpdates++
	return nil
}

func (f *fakeBoard) UpdateItemFields(_ context.Context, _, _ int64, fields models.FieldValues) error {
	f.fieldUpdates++
	f.lastFields = fields
	return nil
}

func (f *fakeBoard) FindItemIDByFieldValue(_ context.Context, _ int64, _, value string) (int64, bool, error) {
	id, ok := f.itemsByValue[value]
	return id, ok, nil
}

func (f *fakeBoard) GetColumnType(_ context.Context, _ int64, columnID string) (models.ColumnType, error) {
	if t, ok := f.columnTypes[columnID]; ok {
		return t, nil
	}
	return models.ColumnTypeText, nil
}

func (f *fakeBoard) GetStatusLabels(_ context.Context, _ int64, columnID string) ([]string, error) {
	return f.statusLabels[columnID], nil
}

func (f *fakeBoard) GetDropdownLabels(_ context.Context, _ int64, columnID string) ([]string, error) {
	return f.statusLabels[columnID], nil
}

type fakeAudit struct {
	entries []models.AuditEntry
}

func (f *fakeAudit) Append(_ context.Context, entry models.AuditEntry) error {
	f.entries = append(f.entries, entry)
	return nil
}

type fakeRuns struct {
	started  []string
	finished []models.SyncRun
	last     *time.Time
}

func (f *fakeRuns) Start(_ context.Context, runID string) error {
	f.started = append(f.started, runID)
	return nil
}

func (f *fakeRuns) Finish(_ context.Context, run models.SyncRun) error {
	f.finished = append(f.finished, run)
	return nil
}

func (f *fakeRuns) LastSuccessfulFinish(_ context.Context) (*time.Time, error) {
	return f.last, nil
}

type harness struct {
	engine   *Engine
	source   *fakeSource
	mappings *fakeMappings
	board    *fakeBoard
	audit    *fakeAudit
	runs     *fakeRuns
}

func newHarness(records ...models.CaseRecord) *harness {
	logger := ectologger.NewEctoLogger(func(_ ectologger.EctoLogMessage) {})
	src := &fakeSource{records: records}
	mappings := newFakeMappings()
	boardClient := newFakeBoard()
	audits := &fakeAudit{}
	runs := &fakeRuns{}

	cfg := Config{
		BoardID: 42,
		GroupID: "new_cases",
		Columns: Columns{
			CaseNumber:     "case_number",
			CaseStage:      "stage",
			HearingStatus:  "hearing_status",
			Courtroom:      "courtroom",
			HearingOfficer: "hearing_officer",
			HearingDate:    "hearing_date",
			HearingTime:    "hearing_time",
		},
		BatchSize:        200,
		Overlap:          2 * time.Minute,
		FirstRunLookback: 5 * time.Minute,
		WriteDedupWindow: 10 * time.Minute,
	}

	eng := New(cfg, Deps{
		Source:    src,
		Mappings:  mappings,
		Resolver:  resolver.NewResolver(mappings, boardClient, cfg.Columns.CaseNumber, logger),
		Board:     boardClient,
		Validator: schema.NewValidator(boardClient, logger),
		Audit:     audits,
		Runs:      runs,
		Guard:     guardrail.NewPolicy(),
		Logger:    logger,
	})

	return &harness{engine: eng, source: src, mappings: mappings, board: boardClient, audit: audits, runs: runs}
}

func record(caseID int64, caseNumber string) models.CaseRecord {
	return models.CaseRecord{
		CaseID:     caseID,
		CaseNumber: caseNumber,
		Title:      "State v. Doe",
		Stage:      "Arraignment",
		ModifiedAt: time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC),
	}
}

func TestRunPassCreate(t *testing.T) {
	h := newHarness(record(100, "A-1"))

	run, err := h.engine.RunPass(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 1, run.Created)
	assert.Equal(t, 0, run.Failed)
	assert.True(t, run.Succeeded)
	assert.Equal(t, 1, h.board.creates)

	m, err := h.mappings.GetByBoardAndCaseNumber(context.Background(), 42, "A-1")
	require.NoError(t, err)
	require.NotNil(t, m)
	assert.Equal(t, int64(555), m.ItemID)
	assert.Equal(t, record(100, "A-1").SyncVersion(), m.SyncVersion)
	assert.Equal(t, fingerprint.Text(record(100, "A-1").ItemName()), m.NameChecksum)

	require.Len(t, h.audit.entries, 1)
	assert.Equal(t, outcomeCreate, h.audit.entries[0].Action)
}

func TestRunPassIdempotent(t *testing.T) {
	h := newHarness(record(100, "A-1"))

	run, err := h.engine.RunPass(context.Background())
	require.NoError(t, err)
	require.Equal(t, 1, run.Created)

	run, err = h.engine.RunPass(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 0, run.Created)
	assert.Equal(t, 0, run.Updated)
	assert.Equal(t, 1, run.Skipped)
	assert.Equal(t, 1, h.board.creates, "second pass must perform no remote writes")
	assert.Zero(t, h.board.nameUpdates)
	assert.Zero(t, h.board.fieldUpdates)
}

func TestRunPassUpdateAfterSourceChange(t *testing.T) {
	h := newHarness(record(100, "A-1"))

	_, err := h.engine.RunPass(context.Background())
	require.NoError(t, err)

	h.source.records[0].Stage = "Trial"
	h.source.records[0].ModifiedAt = h.source.records[0].ModifiedAt.Add(time.Hour)

	run, err := h.engine.RunPass(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 1, run.Updated)
	assert.Equal(t, 1, h.board.fieldUpdates)
	assert.Zero(t, h.board.nameUpdates, "unchanged name must not be rewritten")
	assert.Equal(t, "Trial", h.board.lastFields["stage"])
}

func TestRunPassLegacyBackfill(t *testing.T) {
	h := newHarness(record(100, "A-1"))

	// Legacy mapping: keyed by case id only, no case number, stale watermark.
	h.mappings.nextID = 1
	h.mappings.rows[1] = &models.BoardMapping{ID: 1, CaseID: 100, BoardID: 42, ItemID: 900, SyncVersion: "old"}
	h.board.itemsByValue["A-1"] = 900

	run, err := h.engine.RunPass(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 1, run.Updated)
	assert.Zero(t, h.board.creates)
	require.NotNil(t, h.mappings.rows[1].CaseNumber)
	assert.Equal(t, "A-1", *h.mappings.rows[1].CaseNumber)
}

func TestRunPassValidationFailure(t *testing.T) {
	h := newHarness(record(100, "A-1"))
	h.board.columnTypes["stage"] = models.ColumnTypeStatus
	h.board.statusLabels["stage"] = []string{"Filing", "Trial"}

	run, err := h.engine.RunPass(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 1, run.Failed)
	assert.False(t, run.Succeeded)
	assert.Zero(t, h.board.creates, "invalid label must block the write")

	require.Len(t, h.audit.entries, 1)
	assert.Equal(t, outcomeFail, h.audit.entries[0].Action)
	require.NotNil(t, h.audit.entries[0].Error)
	assert.Contains(t, *h.audit.entries[0].Error, "Filing")
	assert.Contains(t, *h.audit.entries[0].Error, "Trial")
}

func TestRunPassRetriesTransientOnce(t *testing.T) {
	h := newHarness(record(100, "A-1"))
	h.board.failCreates = 1

	run, err := h.engine.RunPass(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 1, run.Created)
	assert.Equal(t, 0, run.Failed)
}

func TestRunPassSecondTransientFailureSurfaces(t *testing.T) {
	h := newHarness(record(100, "A-1"))
	h.board.failCreates = 2

	run, err := h.engine.RunPass(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 1, run.Failed)
	assert.False(t, run.Succeeded)
}

func TestRunPassRetriesFailedWriteNextPass(t *testing.T) {
	h := newHarness(record(100, "A-1"))
	h.board.failCreates = 2 // the attempt and its retry both fail

	run, err := h.engine.RunPass(context.Background())
	require.NoError(t, err)
	require.Equal(t, 1, run.Failed)
	require.Zero(t, h.board.creates)

	// The write never landed, so the next pass must not treat the identical
	// content as a duplicate.
	run, err = h.engine.RunPass(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 1, run.Created)
	assert.Equal(t, 0, run.Skipped)
	assert.True(t, run.Succeeded)
	assert.Equal(t, 1, h.board.creates)
}

func TestRunPassDuplicateWriteSuppressed(t *testing.T) {
	h := newHarness(record(100, "A-1"))

	_, err := h.engine.RunPass(context.Background())
	require.NoError(t, err)
	require.Equal(t, 1, h.board.creates)

	// Same content resurfacing as a fresh create (mapping lost) inside the
	// dedup window stays suppressed.
	delete(h.mappings.rows, 1)

	run, err := h.engine.RunPass(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 0, run.Created)
	assert.Equal(t, 1, run.Skipped)
	assert.Equal(t, 1, h.board.creates, "accepted content must not be recreated inside the window")
}

func TestRunPassCancelledBeforeRecords(t *testing.T) {
	h := newHarness(record(100, "A-1"), record(101, "A-2"))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	run, err := h.engine.RunPass(ctx)
	require.NoError(t, err)

	assert.False(t, run.Succeeded)
	assert.Zero(t, h.board.creates)
	require.NotNil(t, run.Error)
	assert.Contains(t, *run.Error, "cancelled")
}

func TestRunPassFailureIsolation(t *testing.T) {
	bad := record(100, "A-1")
	bad.Stage = "" // fails critical validation
	good := record(101, "A-2")
	h := newHarness(bad, good)

	run, err := h.engine.RunPass(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 1, run.Failed)
	assert.Equal(t, 1, run.Created)
	assert.Equal(t, 1, h.board.creates, "one record's failure must not stop the batch")
}

func TestIsTransient(t *testing.T) {
	tests := []struct {
		name      string
		err       error
		transient bool
	}{
		{name: "nil", err: nil, transient: false},
		{name: "rate limited", err: &board.APIError{StatusCode: 429}, transient: true},
		{name: "server error", err: &board.APIError{StatusCode: 503}, transient: true},
		{name: "bad request", err: &board.APIError{StatusCode: 400}, transient: false},
		{name: "deadline", err: context.DeadlineExceeded, transient: true},
		{name: "validation", err: &ValidationError{Message: "nope"}, transient: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.transient, isTransient(tt.err))
		})
	}
}
