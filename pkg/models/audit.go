package models

import "time"

// AuditEntry is one append-only row describing a reconciliation outcome.
// Entries are never updated or deleted; they exist to reconstruct "why"
// after the fact.
type AuditEntry struct {
	ID        string    `db:"id" json:"id"`
	RunID     string    `db:"run_id" json:"run_id"`
	CaseID    int64     `db:"case_id" json:"case_id"`
	Action    string    `db:"action" json:"action"`
	Detail    string    `db:"detail" json:"detail"`
	Error     *string   `db:"error" json:"error,omitempty"`
	CreatedAt time.Time `db:"created_at" json:"created_at"`
}

// SyncRun records one reconciliation pass and its aggregate counts. The
// FinishedAt timestamp of the last successful run seeds the next incremental
// batch watermark.
type SyncRun struct {
	ID         string     `db:"id" json:"id"`
	StartedAt  time.Time  `db:"started_at" json:"started_at"`
	FinishedAt *time.Time `db:"finished_at" json:"finished_at,omitempty"`
	Created    int        `db:"created" json:"created"`
	Updated    int        `db:"updated" json:"updated"`
	Skipped    int        `db:"skipped" json:"skipped"`
	Failed     int        `db:"failed" json:"failed"`
	Succeeded  bool       `db:"succeeded" json:"succeeded"`
	Error      *string    `db:"error" json:"error,omitempty"`
}
