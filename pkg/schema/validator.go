package schema

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/Gobusters/ectologger"

	"github.com/Ramsey-B/aster/pkg/board"
	"github.com/Ramsey-B/aster/pkg/models"
	"github.com/Ramsey-B/aster/pkg/tracing"
)

// FailureKind tags a validation failure. Infrastructure problems while
// fetching metadata are returned as errors instead, never as a FailureKind,
// so an outage cannot masquerade as a bad label.
type FailureKind string

const (
	FailureMissingValue          FailureKind = "missing_value"
	FailureMissingColumnType     FailureKind = "missing_column_type"
	FailureInvalidLabel          FailureKind = "invalid_label"
	FailureUnsupportedColumnType FailureKind = "unsupported_column_type"
)

// Result is the outcome of validating one candidate value.
type Result struct {
	Valid   bool        `json:"valid"`
	Kind    FailureKind `json:"kind,omitempty"`
	Message string      `json:"message,omitempty"`
	Allowed []string    `json:"allowed,omitempty"`
}

func ok() Result {
	return Result{Valid: true}
}

func fail(kind FailureKind, message string, allowed []string) Result {
	return Result{Valid: false, Kind: kind, Message: message, Allowed: allowed}
}

// MetadataSource fetches column metadata from the board.
type MetadataSource interface {
	GetColumnType(ctx context.Context, boardID int64, columnID string) (models.ColumnType, error)
	GetStatusLabels(ctx context.Context, boardID int64, columnID string) ([]string, error)
	GetDropdownLabels(ctx context.Context, boardID int64, columnID string) ([]string, error)
}

// Validator validates candidate column values against the board's schema.
// Column metadata is cached per (board, column) after the first successful
// fetch; remote schemas change rarely. Failed fetches are never cached.
type Validator struct {
	source MetadataSource
	logger ectologger.Logger

	mu    sync.RWMutex
	cache map[string]models.ColumnMetadata
}

// NewValidator creates a new schema validator
func NewValidator(source MetadataSource, logger ectologger.Logger) *Validator {
	return &Validator{
		source: source,
		logger: logger,
		cache:  make(map[string]models.ColumnMetadata),
	}
}

// ValidateCritical validates a value destined for a critical column. The
// returned error is reserved for infrastructure failures (auth, network)
// and aborts the record's write; validation outcomes come back as Result.
func (v *Validator) ValidateCritical(ctx context.Context, boardID int64, columnID, value string) (Result, error) {
	ctx, span := tracing.StartSpan(ctx, "schema.Validator.ValidateCritical")
	defer span.End()

	if strings.TrimSpace(value) == "" {
		return fail(FailureMissingValue, fmt.Sprintf("column %s requires a value", columnID), nil), nil
	}

	meta, found, err := v.metadata(ctx, boardID, columnID)
	if err != nil {
		return Result{}, err
	}
	if !found {
		return fail(FailureMissingColumnType, fmt.Sprintf("column %s has no detectable type on board %d", columnID, boardID), nil), nil
	}

	switch meta.Type {
	case models.ColumnTypeText, models.ColumnTypeLongText, models.ColumnTypeDate, models.ColumnTypeNumbers:
		return ok(), nil
	case models.ColumnTypeStatus, models.ColumnTypeDropdown:
		for _, label := range meta.Labels {
			if label == value {
				return ok(), nil
			}
		}
		msg := fmt.Sprintf("value %q is not an allowed label for column %s; allowed: [%s]", value, columnID, strings.Join(meta.Labels, ", "))
		return fail(FailureInvalidLabel, msg, meta.Labels), nil
	default:
		return fail(FailureUnsupportedColumnType, fmt.Sprintf("column %s has unsupported type %q", columnID, meta.Type), nil), nil
	}
}

// ValidateOptional validates a value for a non-critical column. Any failure,
// including infrastructure failures, degrades to "omit the column": the
// record write proceeds without it.
func (v *Validator) ValidateOptional(ctx context.Context, boardID int64, columnID, value string) bool {
	result, err := v.ValidateCritical(ctx, boardID, columnID, value)
	if err != nil {
		v.logger.WithContext(ctx).WithError(err).WithField("column_id", columnID).Warn("Omitting optional column: metadata fetch failed")
		return false
	}
	if !result.Valid {
		v.logger.WithContext(ctx).WithFields(map[string]any{"column_id": columnID, "kind": result.Kind, "message": result.Message}).Warn("Omitting optional column: validation failed")
		return false
	}
	return true
}

// metadata returns cached column metadata or fetches it. The full label set
// for constrained columns is fetched with the type so a partially-populated
// entry is never cached.
func (v *Validator) metadata(ctx context.Context, boardID int64, columnID string) (models.ColumnMetadata, bool, error) {
	key := fmt.Sprintf("%d:%s", boardID, columnID)

	v.mu.RLock()
	meta, cached := v.cache[key]
	v.mu.RUnlock()
	if cached {
		return meta, true, nil
	}

	columnType, err := v.source.GetColumnType(ctx, boardID, columnID)
	if err != nil {
		if errors.Is(err, board.ErrNotFound) {
			return models.ColumnMetadata{}, false, nil
		}
		return models.ColumnMetadata{}, false, fmt.Errorf("failed to fetch type for column %s: %w", columnID, err)
	}

	meta = models.ColumnMetadata{ColumnID: columnID, Type: columnType}

	// A constrained column may be status-shaped on one board and
	// dropdown-shaped on another; pick the accessor from the detected type.
	switch columnType {
	case models.ColumnTypeStatus:
		labels, err := v.source.GetStatusLabels(ctx, boardID, columnID)
		if err != nil {
			return models.ColumnMetadata{}, false, fmt.Errorf("failed to fetch status labels for column %s: %w", columnID, err)
		}
		meta.Labels = labels
	case models.ColumnTypeDropdown:
		labels, err := v.source.GetDropdownLabels(ctx, boardID, columnID)
		if err != nil {
			return models.ColumnMetadata{}, false, fmt.Errorf("failed to fetch dropdown labels for column %s: %w", columnID, err)
		}
		meta.Labels = labels
	}

	v.mu.Lock()
	v.cache[key] = meta
	v.mu.Unlock()

	return meta, true, nil
}
