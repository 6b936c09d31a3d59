package resolver

import (
	"context"

	"github.com/Gobusters/ectologger"

	"github.com/Ramsey-B/aster/internal/repositories/mapping"
	"github.com/Ramsey-B/aster/pkg/models"
	"github.com/Ramsey-B/aster/pkg/tracing"
)

// MappingStore is the persistence surface the resolver needs.
type MappingStore interface {
	GetByBoardAndCaseNumber(ctx context.Context, boardID int64, caseNumber string) (*models.BoardMapping, error)
	GetByCaseID(ctx context.Context, caseID int64) (*models.BoardMapping, error)
	Create(ctx context.Context, req models.CreateMappingRequest) (*mapping.CreateResult, error)
	SetCaseNumber(ctx context.Context, id int64, caseNumber string) error
	Repoint(ctx context.Context, id int64, itemID int64, caseNumber string) error
}

// ItemFinder looks up board items by a unique column value.
type ItemFinder interface {
	FindItemIDByFieldValue(ctx context.Context, boardID int64, columnID, value string) (int64, bool, error)
}

// Resolver finds (or establishes) the board mapping for a source record
// using a three-tier strategy: case number within the board scope, legacy
// case id, then a remote lookup by the case number column.
type Resolver struct {
	mappings           MappingStore
	finder             ItemFinder
	caseNumberColumnID string
	logger             ectologger.Logger
}

// NewResolver creates a new resolver
func NewResolver(mappings MappingStore, finder ItemFinder, caseNumberColumnID string, logger ectologger.Logger) *Resolver {
	return &Resolver{
		mappings:           mappings,
		finder:             finder,
		caseNumberColumnID: caseNumberColumnID,
		logger:             logger,
	}
}

// Resolve returns the mapping for a record, or nil when the record has no
// counterpart yet and should be treated as new. Steps 2 and 3 may create or
// mutate a mapping row as a side effect; that self-healing is idempotent
// under concurrent invocation.
func (r *Resolver) Resolve(ctx context.Context, record models.CaseRecord, boardID int64) (*models.BoardMapping, error) {
	ctx, span := tracing.StartSpan(ctx, "resolver.Resolver.Resolve")
	defer span.End()

	// Tier 1: case number within the board scope.
	if record.CaseNumber != "" {
		m, err := r.mappings.GetByBoardAndCaseNumber(ctx, boardID, record.CaseNumber)
		if err != nil {
			return nil, err
		}
		if m != nil {
			return m, nil
		}
	}

	// Tier 2: legacy lookup by case id alone.
	m, err := r.mappings.GetByCaseID(ctx, record.CaseID)
	if err != nil {
		return nil, err
	}
	if m != nil {
		if record.CaseNumber != "" && (!m.HasCaseNumber() || *m.CaseNumber != record.CaseNumber) {
			r.backfillCaseNumber(ctx, m, record, boardID)
		}
		return m, nil
	}

	// Tier 3: the item may have been created on the board directly.
	if record.CaseNumber != "" {
		itemID, found, err := r.finder.FindItemIDByFieldValue(ctx, boardID, r.caseNumberColumnID, record.CaseNumber)
		if err != nil {
			return nil, err
		}
		if found {
			result, err := r.mappings.Create(ctx, models.CreateMappingRequest{
				CaseID:     record.CaseID,
				CaseNumber: record.CaseNumber,
				BoardID:    boardID,
				ItemID:     itemID,
				IsTest:     record.IsTest,
			})
			if err != nil {
				return nil, err
			}
			r.logger.WithContext(ctx).WithFields(map[string]any{"case_id": record.CaseID, "item_id": itemID, "raced": result.Raced}).Info("Adopted externally created board item")
			return result.Mapping, nil
		}
	}

	return nil, nil
}

// backfillCaseNumber reconciles a legacy mapping whose case number is missing
// or stale. Remote failures here are tolerated: the stale mapping still
// resolves, and the next pass retries the backfill.
func (r *Resolver) backfillCaseNumber(ctx context.Context, m *models.BoardMapping, record models.CaseRecord, boardID int64) {
	itemID, found, err := r.finder.FindItemIDByFieldValue(ctx, boardID, r.caseNumberColumnID, record.CaseNumber)
	if err != nil {
		r.logger.WithContext(ctx).WithError(err).WithField("case_id", record.CaseID).Warn("Case number backfill lookup failed; keeping stale mapping")
		return
	}

	if found && itemID != m.ItemID {
		// The board item was recreated externally; follow it.
		if err := r.mappings.Repoint(ctx, m.ID, itemID, record.CaseNumber); err != nil {
			r.logger.WithContext(ctx).WithError(err).WithField("case_id", record.CaseID).Warn("Failed to repoint mapping; keeping stale mapping")
			return
		}
		r.logger.WithContext(ctx).WithFields(map[string]any{"case_id": record.CaseID, "old_item_id": m.ItemID, "new_item_id": itemID}).Info("Repointed mapping to recreated board item")
		m.ItemID = itemID
	} else {
		if err := r.mappings.SetCaseNumber(ctx, m.ID, record.CaseNumber); err != nil {
			r.logger.WithContext(ctx).WithError(err).WithField("case_id", record.CaseID).Warn("Failed to backfill case number; keeping stale mapping")
			return
		}
	}

	caseNumber := record.CaseNumber
	m.CaseNumber = &caseNumber
}
