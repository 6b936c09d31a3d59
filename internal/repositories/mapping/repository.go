package mapping

import (
	"context"
	"database/sql"
	"errors"
	"net/http"
	"time"

	"github.com/Gobusters/ectoerror/httperror"
	"github.com/Gobusters/ectologger"
	"github.com/lib/pq"

	"github.com/Ramsey-B/aster/pkg/database"
	"github.com/Ramsey-B/aster/pkg/models"
	"github.com/Ramsey-B/aster/pkg/tracing"
)

const uniqueViolation = pq.ErrorCode("23505")

var mappingColumns = []string{"id", "case_id", "case_number", "board_id", "item_id", "sync_version", "name_checksum", "hearing_state", "is_test", "created_at", "last_synced_at"}

// Repository handles board mapping persistence
type Repository struct {
	db     database.DB
	logger ectologger.Logger
}

// NewRepository creates a new board mapping repository
func NewRepository(db database.DB, logger ectologger.Logger) *Repository {
	return &Repository{
		db:     db,
		logger: logger,
	}
}

// GetByBoardAndCaseNumber returns the mapping for (board_id, case_number), or
// nil when no row exists.
func (r *Repository) GetByBoardAndCaseNumber(ctx context.Context, boardID int64, caseNumber string) (*models.BoardMapping, error) {
	ctx, span := tracing.StartSpan(ctx, "mapping.Repository.GetByBoardAndCaseNumber")
	defer span.End()

	sb := database.NewSelectBuilder()
	sb.Select(mappingColumns...)
	sb.From("board_mappings")
	sb.Where(
		sb.Equal("board_id", boardID),
		sb.Equal("case_number", caseNumber),
	)
	sb.Limit(1)

	query, args := sb.Build()
	var m models.BoardMapping
	if err := r.db.GetContext(ctx, &m, query, args...); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		r.logger.WithContext(ctx).WithError(err).WithFields(map[string]any{"board_id": boardID, "case_number": caseNumber}).Error("Failed to get mapping by case number")
		return nil, httperror.NewHTTPError(http.StatusInternalServerError, "failed to get board mapping")
	}
	return &m, nil
}

// GetByCaseID returns the mapping for a case id regardless of board scope.
// Legacy rows predate board scoping, so this lookup intentionally ignores it.
func (r *Repository) GetByCaseID(ctx context.Context, caseID int64) (*models.BoardMapping, error) {
	ctx, span := tracing.StartSpan(ctx, "mapping.Repository.GetByCaseID")
	defer span.End()

	sb := database.NewSelectBuilder()
	sb.Select(mappingColumns...)
	sb.From("board_mappings")
	sb.Where(sb.Equal("case_id", caseID))
	sb.Limit(1)

	query, args := sb.Build()
	var m models.BoardMapping
	if err := r.db.GetContext(ctx, &m, query, args...); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		r.logger.WithContext(ctx).WithError(err).WithField("case_id", caseID).Error("Failed to get mapping by case id")
		return nil, httperror.NewHTTPError(http.StatusInternalServerError, "failed to get board mapping")
	}
	return &m, nil
}

// CreateResult holds the outcome of a mapping insert. Raced is set when a
// concurrent run already persisted the same row; the existing row is
// returned and the caller treats the insert as a success.
type CreateResult struct {
	Mapping *models.BoardMapping
	Raced   bool
}

// Create inserts a new mapping row. A unique violation on case_id is not an
// error: it means a parallel reconciliation run created the mapping first.
func (r *Repository) Create(ctx context.Context, req models.CreateMappingRequest) (*CreateResult, error) {
	ctx, span := tracing.StartSpan(ctx, "mapping.Repository.Create")
	defer span.End()

	var caseNumber *string
	if req.CaseNumber != "" {
		caseNumber = &req.CaseNumber
	}

	ib := database.NewInsertBuilder()
	ib = ib.InsertInto("board_mappings")
	ib = ib.Cols("case_id", "case_number", "board_id", "item_id", "sync_version", "name_checksum", "is_test", "created_at", "last_synced_at")
	now := time.Now().UTC()
	ib = ib.Values(req.CaseID, caseNumber, req.BoardID, req.ItemID, req.SyncVersion, req.NameChecksum, req.IsTest, now, now)
	ib = ib.Returning(mappingColumns...)

	query, args := ib.Build()
	var m models.BoardMapping
	if err := r.db.GetContext(ctx, &m, query, args...); err != nil {
		var pqErr *pq.Error
		if errors.As(err, &pqErr) && pqErr.Code == uniqueViolation {
			existing, getErr := r.GetByCaseID(ctx, req.CaseID)
			if getErr != nil {
				return nil, getErr
			}
			r.logger.WithContext(ctx).WithField("case_id", req.CaseID).Info("Mapping already created by a concurrent run")
			return &CreateResult{Mapping: existing, Raced: true}, nil
		}
		r.logger.WithContext(ctx).WithError(err).WithFields(map[string]any{"case_id": req.CaseID, "board_id": req.BoardID}).Error("Failed to create board mapping")
		return nil, httperror.NewHTTPError(http.StatusInternalServerError, "failed to create board mapping")
	}
	return &CreateResult{Mapping: &m}, nil
}

// UpdateSyncVersion persists a new watermark after a successful data write.
func (r *Repository) UpdateSyncVersion(ctx context.Context, id int64, syncVersion string) error {
	return r.update(ctx, id, map[string]any{"sync_version": syncVersion})
}

// UpdateNameChecksum persists a new checksum after a successful name write.
func (r *Repository) UpdateNameChecksum(ctx context.Context, id int64, nameChecksum string) error {
	return r.update(ctx, id, map[string]any{"name_checksum": nameChecksum})
}

// UpdateHearingState persists the last-applied hearing snapshot after a
// successful hearing write.
func (r *Repository) UpdateHearingState(ctx context.Context, id int64, hearingState string) error {
	return r.update(ctx, id, map[string]any{"hearing_state": hearingState})
}

// SetCaseNumber backfills the case number on a legacy mapping.
func (r *Repository) SetCaseNumber(ctx context.Context, id int64, caseNumber string) error {
	return r.update(ctx, id, map[string]any{"case_number": caseNumber})
}

// Repoint moves a mapping to a different board item, backfilling the case
// number at the same time. Used when the board item was recreated externally.
func (r *Repository) Repoint(ctx context.Context, id int64, itemID int64, caseNumber string) error {
	return r.update(ctx, id, map[string]any{"item_id": itemID, "case_number": caseNumber})
}

func (r *Repository) update(ctx context.Context, id int64, fields map[string]any) error {
	ctx, span := tracing.StartSpan(ctx, "mapping.Repository.update")
	defer span.End()

	ub := database.NewUpdateBuilder()
	ub.Update("board_mappings")
	assignments := []string{ub.Assign("last_synced_at", time.Now().UTC())}
	for col, val := range fields {
		assignments = append(assignments, ub.Assign(col, val))
	}
	ub.Set(assignments...)
	ub.Where(ub.Equal("id", id))

	query, args := ub.Build()
	if _, err := r.db.ExecContext(ctx, query, args...); err != nil {
		r.logger.WithContext(ctx).WithError(err).WithFields(map[string]any{"mapping_id": id, "fields": fields}).Error("Failed to update board mapping")
		return httperror.NewHTTPError(http.StatusInternalServerError, "failed to update board mapping")
	}
	return nil
}
