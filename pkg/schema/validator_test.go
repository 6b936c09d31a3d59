package schema

import (
	"context"
	"errors"
	"testing"

	"github.com/Gobusters/ectologger"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Ramsey-B/aster/pkg/board"
	"github.com/Ramsey-B/aster/pkg/models"
)

type fakeSource struct {
	types          map[string]models.ColumnType
	statusLabels   map[string][]string
	dropdownLabels map[string][]string
	err            error

	typeFetches   int
	statusFetches int
	dropFetches   int
}

func (f *fakeSource) GetColumnType(_ context.Context, _ int64, columnID string) (models.ColumnType, error) {
	f.typeFetches++
	if f.err != nil {
		return "", f.err
	}
	t, ok := f.types[columnID]
	if !ok {
		return "", board.ErrNotFound
	}
	return t, nil
}

func (f *fakeSource) GetStatusLabels(_ context.Context, _ int64, columnID string) ([]string, error) {
	f.statusFetches++
	if f.err != nil {
		return nil, f.err
	}
	return f.statusLabels[columnID], nil
}

func (f *fakeSource) GetDropdownLabels(_ context.Context, _ int64, columnID string) ([]string, error) {
	f.dropFetches++
	if f.err != nil {
		return nil, f.err
	}
	return f.dropdownLabels[columnID], nil
}

func noopLogger() ectologger.Logger {
	return ectologger.NewEctoLogger(func(_ ectologger.EctoLogMessage) {})
}

func TestValidateCritical(t *testing.T) {
	source := &fakeSource{
		types: map[string]models.ColumnType{
			"title":    models.ColumnTypeText,
			"stage":    models.ColumnTypeStatus,
			"category": models.ColumnTypeDropdown,
			"chart":    models.ColumnType("timeline"),
		},
		statusLabels:   map[string][]string{"stage": {"Arraignment", "Filing", "Trial"}},
		dropdownLabels: map[string][]string{"category": {"Civil", "Criminal"}},
	}
	v := NewValidator(source, noopLogger())
	ctx := context.Background()

	t.Run("empty value", func(t *testing.T) {
		result, err := v.ValidateCritical(ctx, 1, "stage", "  ")
		require.NoError(t, err)
		assert.False(t, result.Valid)
		assert.Equal(t, FailureMissingValue, result.Kind)
	})

	t.Run("free text always passes", func(t *testing.T) {
		result, err := v.ValidateCritical(ctx, 1, "title", "anything at all")
		require.NoError(t, err)
		assert.True(t, result.Valid)
	})

	t.Run("allowed status label passes", func(t *testing.T) {
		result, err := v.ValidateCritical(ctx, 1, "stage", "Trial")
		require.NoError(t, err)
		assert.True(t, result.Valid)
	})

	t.Run("invalid label enumerates the allowed set", func(t *testing.T) {
		result, err := v.ValidateCritical(ctx, 1, "stage", "Sentencing")
		require.NoError(t, err)
		assert.False(t, result.Valid)
		assert.Equal(t, FailureInvalidLabel, result.Kind)
		assert.Equal(t, []string{"Arraignment", "Filing", "Trial"}, result.Allowed)
		assert.Contains(t, result.Message, "Arraignment")
		assert.Contains(t, result.Message, "Filing")
		assert.Contains(t, result.Message, "Trial")
	})

	t.Run("dropdown labels use the dropdown accessor", func(t *testing.T) {
		result, err := v.ValidateCritical(ctx, 1, "category", "Civil")
		require.NoError(t, err)
		assert.True(t, result.Valid)
		assert.GreaterOrEqual(t, source.dropFetches, 1)
	})

	t.Run("unknown column", func(t *testing.T) {
		result, err := v.ValidateCritical(ctx, 1, "missing", "value")
		require.NoError(t, err)
		assert.False(t, result.Valid)
		assert.Equal(t, FailureMissingColumnType, result.Kind)
	})

	t.Run("unsupported type", func(t *testing.T) {
		result, err := v.ValidateCritical(ctx, 1, "chart", "value")
		require.NoError(t, err)
		assert.False(t, result.Valid)
		assert.Equal(t, FailureUnsupportedColumnType, result.Kind)
	})
}

func TestValidateCriticalInfrastructureErrorPropagates(t *testing.T) {
	source := &fakeSource{err: errors.New("connection refused")}
	v := NewValidator(source, noopLogger())

	_, err := v.ValidateCritical(context.Background(), 1, "stage", "Trial")

	// An outage must not masquerade as an empty allowed set.
	require.Error(t, err)
	assert.Contains(t, err.Error(), "connection refused")
}

func TestMetadataCaching(t *testing.T) {
	source := &fakeSource{
		types:        map[string]models.ColumnType{"stage": models.ColumnTypeStatus},
		statusLabels: map[string][]string{"stage": {"Trial"}},
	}
	v := NewValidator(source, noopLogger())
	ctx := context.Background()

	_, err := v.ValidateCritical(ctx, 1, "stage", "Trial")
	require.NoError(t, err)
	_, err = v.ValidateCritical(ctx, 1, "stage", "Trial")
	require.NoError(t, err)

	assert.Equal(t, 1, source.typeFetches, "successful metadata is cached")
	assert.Equal(t, 1, source.statusFetches)

	t.Run("cache is scoped per board", func(t *testing.T) {
		_, err := v.ValidateCritical(ctx, 2, "stage", "Trial")
		require.NoError(t, err)
		assert.Equal(t, 2, source.typeFetches)
	})
}

func TestFailedFetchesAreNotCached(t *testing.T) {
	source := &fakeSource{err: errors.New("boom")}
	v := NewValidator(source, noopLogger())
	ctx := context.Background()

	_, err := v.ValidateCritical(ctx, 1, "stage", "Trial")
	require.Error(t, err)

	source.err = nil
	source.types = map[string]models.ColumnType{"stage": models.ColumnTypeStatus}
	source.statusLabels = map[string][]string{"stage": {"Trial"}}

	result, err := v.ValidateCritical(ctx, 1, "stage", "Trial")
	require.NoError(t, err)
	assert.True(t, result.Valid)
}

func TestValidateOptional(t *testing.T) {
	source := &fakeSource{
		types:        map[string]models.ColumnType{"stage": models.ColumnTypeStatus},
		statusLabels: map[string][]string{"stage": {"Trial"}},
	}
	v := NewValidator(source, noopLogger())
	ctx := context.Background()

	assert.True(t, v.ValidateOptional(ctx, 1, "stage", "Trial"))
	assert.False(t, v.ValidateOptional(ctx, 1, "stage", "Sentencing"))

	t.Run("infra failure degrades to omission", func(t *testing.T) {
		broken := &fakeSource{err: errors.New("boom")}
		v := NewValidator(broken, noopLogger())
		assert.False(t, v.ValidateOptional(ctx, 1, "stage", "Trial"))
	})
}
