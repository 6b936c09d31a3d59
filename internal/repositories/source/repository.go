package source

import (
	"context"
	"net/http"
	"time"

	"github.com/Gobusters/ectoerror/httperror"
	"github.com/Gobusters/ectologger"

	"github.com/Ramsey-B/aster/pkg/database"
	"github.com/Ramsey-B/aster/pkg/models"
	"github.com/Ramsey-B/aster/pkg/tracing"
)

var recordColumns = []string{"case_id", "case_number", "title", "stage", "hearing_status", "courtroom", "venue", "hearing_officer", "hearing_date", "hearing_time", "is_test", "modified_at"}

// Repository reads case records from the case-management store. All queries
// are read only; the reconciliation engine never writes back to the source.
type Repository struct {
	db     database.DB
	logger ectologger.Logger
}

// NewRepository creates a new source store repository
func NewRepository(db database.DB, logger ectologger.Logger) *Repository {
	return &Repository{
		db:     db,
		logger: logger,
	}
}

// GetByCaseIDs returns fresh snapshots for the given case ids.
func (r *Repository) GetByCaseIDs(ctx context.Context, caseIDs []int64) ([]models.CaseRecord, error) {
	ctx, span := tracing.StartSpan(ctx, "source.Repository.GetByCaseIDs")
	defer span.End()

	if len(caseIDs) == 0 {
		return nil, nil
	}

	ids := make([]any, len(caseIDs))
	for i, id := range caseIDs {
		ids[i] = id
	}

	sb := database.NewSelectBuilder()
	sb.Select(recordColumns...)
	sb.From("cases")
	sb.Where(sb.In("case_id", ids...))
	sb.OrderBy("case_id ASC")

	query, args := sb.Build()
	var records []models.CaseRecord
	if err := r.db.SelectContext(ctx, &records, query, args...); err != nil {
		r.logger.WithContext(ctx).WithError(err).WithField("case_count", len(caseIDs)).Error("Failed to get case records by id")
		return nil, httperror.NewHTTPError(http.StatusInternalServerError, "failed to get case records")
	}
	return records, nil
}

// GetCreatedSince returns records created at or after the given time.
func (r *Repository) GetCreatedSince(ctx context.Context, since time.Time) ([]models.CaseRecord, error) {
	ctx, span := tracing.StartSpan(ctx, "source.Repository.GetCreatedSince")
	defer span.End()

	sb := database.NewSelectBuilder()
	sb.Select(recordColumns...)
	sb.From("cases")
	sb.Where(sb.GreaterEqualThan("created_at", since))
	sb.OrderBy("case_id ASC")

	query, args := sb.Build()
	var records []models.CaseRecord
	if err := r.db.SelectContext(ctx, &records, query, args...); err != nil {
		r.logger.WithContext(ctx).WithError(err).WithField("since", since).Error("Failed to get case records created since")
		return nil, httperror.NewHTTPError(http.StatusInternalServerError, "failed to get case records")
	}
	return records, nil
}

// GetChangedCaseIDsSince returns the ids of records modified at or after the
// given time. Used to build the incremental batch for a pass.
func (r *Repository) GetChangedCaseIDsSince(ctx context.Context, since time.Time) ([]int64, error) {
	ctx, span := tracing.StartSpan(ctx, "source.Repository.GetChangedCaseIDsSince")
	defer span.End()

	sb := database.NewSelectBuilder()
	sb.Select("case_id")
	sb.From("cases")
	sb.Where(sb.GreaterEqualThan("modified_at", since))
	sb.OrderBy("modified_at ASC")

	query, args := sb.Build()
	var ids []int64
	if err := r.db.SelectContext(ctx, &ids, query, args...); err != nil {
		r.logger.WithContext(ctx).WithError(err).WithField("since", since).Error("Failed to get changed case ids")
		return nil, httperror.NewHTTPError(http.StatusInternalServerError, "failed to get changed case ids")
	}
	return ids, nil
}
