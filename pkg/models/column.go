package models

// ColumnType is the board's type discriminator for a column.
type ColumnType string

const (
	ColumnTypeText     ColumnType = "text"
	ColumnTypeLongText ColumnType = "long_text"
	ColumnTypeStatus   ColumnType = "status"
	ColumnTypeDropdown ColumnType = "dropdown"
	ColumnTypeDate     ColumnType = "date"
	ColumnTypeNumbers  ColumnType = "numbers"
)

// ColumnMetadata describes one remote column. Labels is populated only for
// constrained column types (status, dropdown) and always holds the full
// allowed set; a partial set is never cached.
type ColumnMetadata struct {
	ColumnID string     `json:"column_id"`
	Type     ColumnType `json:"type"`
	Labels   []string   `json:"labels,omitempty"`
}

// FieldValues maps board column ids to the values to write.
type FieldValues map[string]string
