package models

import (
	"strings"
	"time"
)

// CaseRecord is a read-only snapshot of one case row from the source store.
// Records are fetched fresh at the start of every reconciliation pass and
// never mutated by the engine.
type CaseRecord struct {
	CaseID         int64     `db:"case_id" json:"case_id"`
	CaseNumber     string    `db:"case_number" json:"case_number"`
	Title          string    `db:"title" json:"title"`
	Stage          string    `db:"stage" json:"stage"`
	HearingStatus  string    `db:"hearing_status" json:"hearing_status"`
	Courtroom      string    `db:"courtroom" json:"courtroom"`
	Venue          string    `db:"venue" json:"venue"`
	HearingOfficer string    `db:"hearing_officer" json:"hearing_officer"`
	HearingDate    string    `db:"hearing_date" json:"hearing_date"`
	HearingTime    string    `db:"hearing_time" json:"hearing_time"`
	IsTest         bool      `db:"is_test" json:"is_test"`
	ModifiedAt     time.Time `db:"modified_at" json:"modified_at"`
}

// SyncVersion returns the order-preserving serialization of the record's
// modification time. It is compared as an opaque string against the stored
// mapping watermark, never parsed back.
func (r CaseRecord) SyncVersion() string {
	return r.ModifiedAt.UTC().Format(time.RFC3339Nano)
}

// ItemName renders the display name the board item should carry.
func (r CaseRecord) ItemName() string {
	if r.Title == "" {
		return r.CaseNumber
	}
	if r.CaseNumber == "" {
		return r.Title
	}
	return strings.TrimSpace(r.CaseNumber + " - " + r.Title)
}
