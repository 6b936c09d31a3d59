package models

import "time"

// BoardMapping associates a source case with its board item. At most one
// mapping exists per (board_id, case_id); case_number is nullable on legacy
// rows and backfilled by the resolver.
type BoardMapping struct {
	ID           int64     `db:"id" json:"id"`
	CaseID       int64     `db:"case_id" json:"case_id"`
	CaseNumber   *string   `db:"case_number" json:"case_number,omitempty"`
	BoardID      int64     `db:"board_id" json:"board_id"`
	ItemID       int64     `db:"item_id" json:"item_id"`
	SyncVersion  string    `db:"sync_version" json:"sync_version"`
	NameChecksum string    `db:"name_checksum" json:"name_checksum"`
	HearingState *string   `db:"hearing_state" json:"hearing_state,omitempty"`
	IsTest       bool      `db:"is_test" json:"is_test"`
	CreatedAt    time.Time `db:"created_at" json:"created_at"`
	LastSyncedAt time.Time `db:"last_synced_at" json:"last_synced_at"`
}

// HasCaseNumber reports whether the mapping carries a non-empty case number.
func (m *BoardMapping) HasCaseNumber() bool {
	return m.CaseNumber != nil && *m.CaseNumber != ""
}

// CreateMappingRequest holds the fields persisted when a mapping row is
// first established.
type CreateMappingRequest struct {
	CaseID       int64  `json:"case_id"`
	CaseNumber   string `json:"case_number"`
	BoardID      int64  `json:"board_id"`
	ItemID       int64  `json:"item_id"`
	SyncVersion  string `json:"sync_version"`
	NameChecksum string `json:"name_checksum"`
	IsTest       bool   `json:"is_test"`
}
