package models

// UpsertAction is the outcome of change detection for one record.
type UpsertAction string

const (
	ActionCreate UpsertAction = "create"
	ActionUpdate UpsertAction = "update"
	ActionSkip   UpsertAction = "skip"
)

// UpsertPlan describes what the engine should do for one record. For updates
// the two flags gate independent sub-writes; both may be set at once.
type UpsertPlan struct {
	Action      UpsertAction `json:"action"`
	NameChanged bool         `json:"name_changed"`
	DataChanged bool         `json:"data_changed"`
}
