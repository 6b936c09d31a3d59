package planner

import (
	"github.com/Ramsey-B/aster/pkg/fingerprint"
	"github.com/Ramsey-B/aster/pkg/models"
)

// Plan decides create, update or skip for one record. The stored watermark
// acts as a coarse dirty bit: any string inequality means the record data is
// re-sent in full. That trades false-positive updates (safe, idempotent) for
// detector simplicity; no field-level diff is computed here.
func Plan(m *models.BoardMapping, record models.CaseRecord, renderedName string) models.UpsertPlan {
	if m == nil {
		return models.UpsertPlan{Action: models.ActionCreate, NameChanged: true, DataChanged: true}
	}

	dataChanged := m.SyncVersion != record.SyncVersion()
	nameChanged := m.NameChecksum != fingerprint.Text(renderedName)

	if !dataChanged && !nameChanged {
		return models.UpsertPlan{Action: models.ActionSkip}
	}

	return models.UpsertPlan{
		Action:      models.ActionUpdate,
		NameChanged: nameChanged,
		DataChanged: dataChanged,
	}
}
