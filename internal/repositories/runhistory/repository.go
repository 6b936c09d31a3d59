package runhistory

import (
	"context"
	"database/sql"
	"errors"
	"net/http"
	"time"

	"github.com/Gobusters/ectoerror/httperror"
	"github.com/Gobusters/ectologger"

	"github.com/Ramsey-B/aster/pkg/database"
	"github.com/Ramsey-B/aster/pkg/models"
	"github.com/Ramsey-B/aster/pkg/tracing"
)

// Repository persists reconciliation run history. The finished_at of the
// last successful run drives the incremental batch watermark.
type Repository struct {
	db     database.DB
	logger ectologger.Logger
}

// NewRepository creates a new run history repository
func NewRepository(db database.DB, logger ectologger.Logger) *Repository {
	return &Repository{
		db:     db,
		logger: logger,
	}
}

// Start records the beginning of a reconciliation run.
func (r *Repository) Start(ctx context.Context, runID string) error {
	ctx, span := tracing.StartSpan(ctx, "runhistory.Repository.Start")
	defer span.End()

	ib := database.NewInsertBuilder()
	ib = ib.InsertInto("sync_runs")
	ib = ib.Cols("id", "started_at", "succeeded")
	ib = ib.Values(runID, time.Now().UTC(), false)

	query, args := ib.Build()
	if _, err := r.db.ExecContext(ctx, query, args...); err != nil {
		r.logger.WithContext(ctx).WithError(err).WithField("run_id", runID).Error("Failed to record run start")
		return httperror.NewHTTPError(http.StatusInternalServerError, "failed to record run start")
	}
	return nil
}

// Finish records the end of a run with its aggregate counts.
func (r *Repository) Finish(ctx context.Context, run models.SyncRun) error {
	ctx, span := tracing.StartSpan(ctx, "runhistory.Repository.Finish")
	defer span.End()

	ub := database.NewUpdateBuilder()
	ub.Update("sync_runs")
	ub.Set(
		ub.Assign("finished_at", time.Now().UTC()),
		ub.Assign("created", run.Created),
		ub.Assign("updated", run.Updated),
		ub.Assign("skipped", run.Skipped),
		ub.Assign("failed", run.Failed),
		ub.Assign("succeeded", run.Succeeded),
		ub.Assign("error", run.Error),
	)
	ub.Where(ub.Equal("id", run.ID))

	query, args := ub.Build()
	if _, err := r.db.ExecContext(ctx, query, args...); err != nil {
		r.logger.WithContext(ctx).WithError(err).WithField("run_id", run.ID).Error("Failed to record run finish")
		return httperror.NewHTTPError(http.StatusInternalServerError, "failed to record run finish")
	}
	return nil
}

// LastSuccessfulFinish returns the finished_at of the most recent successful
// run, or nil when no run has succeeded yet (first-run fallback applies).
func (r *Repository) LastSuccessfulFinish(ctx context.Context) (*time.Time, error) {
	ctx, span := tracing.StartSpan(ctx, "runhistory.Repository.LastSuccessfulFinish")
	defer span.End()

	sb := database.NewSelectBuilder()
	sb.Select("finished_at")
	sb.From("sync_runs")
	sb.Where(
		sb.Equal("succeeded", true),
		sb.IsNotNull("finished_at"),
	)
	sb.OrderBy("finished_at DESC")
	sb.Limit(1)

	query, args := sb.Build()
	var finishedAt time.Time
	if err := r.db.GetContext(ctx, &finishedAt, query, args...); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		r.logger.WithContext(ctx).WithError(err).Error("Failed to get last successful run")
		return nil, httperror.NewHTTPError(http.StatusInternalServerError, "failed to get last successful run")
	}
	return &finishedAt, nil
}
