package gate

// Step names for the independently-gated hearing sub-updates.
const (
	StepStatus    = "hearing_status"
	StepCourtroom = "courtroom"
	StepOfficer   = "hearing_officer"
	StepSchedule  = "hearing_schedule"
)

// NeutralStatus is the default hearing status. A record whose status moved
// back to neutral never produces a status step: a person may have set the
// board status by hand and the sync must not revert it.
const NeutralStatus = "Pending"

// HearingSnapshot captures the hearing field group of a record at one point
// in time. Previous snapshots are persisted alongside the mapping so the
// gate stays deterministic across passes.
type HearingSnapshot struct {
	Status    string `json:"status"`
	Courtroom string `json:"courtroom"`
	Venue     string `json:"venue"`
	Officer   string `json:"officer"`
	Date      string `json:"date"`
	Time      string `json:"time"`
}

// EffectiveCourtroom resolves the courtroom with its fallback: when the
// courtroom field is empty the venue stands in. Fallback resolution happens
// before any change comparison.
func (s HearingSnapshot) EffectiveCourtroom() string {
	if s.Courtroom != "" {
		return s.Courtroom
	}
	return s.Venue
}

// ChangeFlags reports which field groups changed and are permitted to write.
type ChangeFlags struct {
	Status    bool `json:"status"`
	Courtroom bool `json:"courtroom"`
	Officer   bool `json:"officer"`
	Schedule  bool `json:"schedule"`
}

// ComputeSteps returns the minimal set of hearing sub-updates to apply given
// the current record and the last-applied snapshot. Rules:
//   - the status step fires when the status changed to a non-neutral value;
//   - the two detail steps (courtroom, officer) fire independently whenever
//     their value is non-empty and changed;
//   - the schedule step fires only when the date/time pair changed AND both
//     detail fields are currently non-empty. A date/time change triggers
//     user-facing notifications downstream and must not fire with
//     incomplete context.
//
// The computation has no hidden state: the same (current, previous) pair
// always yields the same steps.
func ComputeSteps(current, previous HearingSnapshot) ([]string, ChangeFlags) {
	var flags ChangeFlags

	currentCourtroom := current.EffectiveCourtroom()
	previousCourtroom := previous.EffectiveCourtroom()

	if current.Status != previous.Status && current.Status != "" && current.Status != NeutralStatus {
		flags.Status = true
	}

	if currentCourtroom != "" && currentCourtroom != previousCourtroom {
		flags.Courtroom = true
	}

	if current.Officer != "" && current.Officer != previous.Officer {
		flags.Officer = true
	}

	scheduleChanged := current.Date != previous.Date || current.Time != previous.Time
	if scheduleChanged && currentCourtroom != "" && current.Officer != "" {
		flags.Schedule = true
	}

	steps := make([]string, 0, 4)
	if flags.Status {
		steps = append(steps, StepStatus)
	}
	if flags.Courtroom {
		steps = append(steps, StepCourtroom)
	}
	if flags.Officer {
		steps = append(steps, StepOfficer)
	}
	if flags.Schedule {
		steps = append(steps, StepSchedule)
	}
	return steps, flags
}
