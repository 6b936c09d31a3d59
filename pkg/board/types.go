package board

import (
	"errors"
	"fmt"

	"github.com/Ramsey-B/aster/pkg/models"
)

// ErrNotFound is returned by lookups when the board has no matching item or
// column. It is a normal outcome, not an infrastructure failure.
var ErrNotFound = errors.New("board item not found")

// APIError is a non-2xx response from the board API.
type APIError struct {
	StatusCode int
	Body       string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("board api returned %d: %s", e.StatusCode, e.Body)
}

// IsRetryable reports whether the response status indicates a transient
// condition worth one retry.
func (e *APIError) IsRetryable() bool {
	return e.StatusCode == 429 || e.StatusCode >= 500
}

type createItemRequest struct {
	GroupID string             `json:"group_id"`
	Name    string             `json:"name"`
	Fields  models.FieldValues `json:"fields,omitempty"`
}

type createItemResponse struct {
	ItemID int64 `json:"item_id"`
}

type updateNameRequest struct {
	Name string `json:"name"`
}

type updateFieldsRequest struct {
	Fields models.FieldValues `json:"fields"`
}

type lookupResponse struct {
	ItemID int64 `json:"item_id"`
}

type columnResponse struct {
	ColumnID string `json:"column_id"`
	Type     string `json:"type"`
}

// statusLabelsResponse is the shape returned for status-style columns: the
// labels come back as an index-keyed map.
type statusLabelsResponse struct {
	Labels map[string]string `json:"labels"`
}

// dropdownLabelsResponse is the shape returned for dropdown-style columns:
// the labels come back as an option list under settings.
type dropdownLabelsResponse struct {
	Settings struct {
		Options []struct {
			ID   int64  `json:"id"`
			Name string `json:"name"`
		} `json:"options"`
	} `json:"settings"`
}
