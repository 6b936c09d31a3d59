package audit

import (
	"context"
	"net/http"
	"time"

	"github.com/Gobusters/ectoerror/httperror"
	"github.com/Gobusters/ectologger"
	"github.com/google/uuid"

	"github.com/Ramsey-B/aster/pkg/database"
	"github.com/Ramsey-B/aster/pkg/models"
	"github.com/Ramsey-B/aster/pkg/tracing"
)

// Repository appends reconciliation outcomes to the sync_audit table. Rows
// are append-only; nothing here updates or deletes.
type Repository struct {
	db     database.DB
	logger ectologger.Logger
}

// NewRepository creates a new audit repository
func NewRepository(db database.DB, logger ectologger.Logger) *Repository {
	return &Repository{
		db:     db,
		logger: logger,
	}
}

// Append writes one audit entry. Audit failures are logged but do not fail
// the reconciliation outcome they describe.
func (r *Repository) Append(ctx context.Context, entry models.AuditEntry) error {
	ctx, span := tracing.StartSpan(ctx, "audit.Repository.Append")
	defer span.End()

	if entry.ID == "" {
		entry.ID = uuid.New().String()
	}
	if entry.CreatedAt.IsZero() {
		entry.CreatedAt = time.Now().UTC()
	}

	ib := database.NewInsertBuilder()
	ib = ib.InsertInto("sync_audit")
	ib = ib.Cols("id", "run_id", "case_id", "action", "detail", "error", "created_at")
	ib = ib.Values(entry.ID, entry.RunID, entry.CaseID, entry.Action, entry.Detail, entry.Error, entry.CreatedAt)

	query, args := ib.Build()
	if _, err := r.db.ExecContext(ctx, query, args...); err != nil {
		r.logger.WithContext(ctx).WithError(err).WithFields(map[string]any{"case_id": entry.CaseID, "action": entry.Action}).Error("Failed to append audit entry")
		return httperror.NewHTTPError(http.StatusInternalServerError, "failed to append audit entry")
	}
	return nil
}

// ListByRun returns the audit entries for one reconciliation run, oldest first.
func (r *Repository) ListByRun(ctx context.Context, runID string) ([]models.AuditEntry, error) {
	ctx, span := tracing.StartSpan(ctx, "audit.Repository.ListByRun")
	defer span.End()

	sb := database.NewSelectBuilder()
	sb.Select("id", "run_id", "case_id", "action", "detail", "error", "created_at")
	sb.From("sync_audit")
	sb.Where(sb.Equal("run_id", runID))
	sb.OrderBy("created_at ASC")

	query, args := sb.Build()
	var entries []models.AuditEntry
	if err := r.db.SelectContext(ctx, &entries, query, args...); err != nil {
		r.logger.WithContext(ctx).WithError(err).WithField("run_id", runID).Error("Failed to list audit entries")
		return nil, httperror.NewHTTPError(http.StatusInternalServerError, "failed to list audit entries")
	}
	return entries, nil
}
