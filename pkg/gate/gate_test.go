package gate

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestComputeStepsStatus(t *testing.T) {
	t.Run("changed non-neutral status fires", func(t *testing.T) {
		steps, flags := ComputeSteps(
			HearingSnapshot{Status: "Held"},
			HearingSnapshot{Status: "Pending"},
		)
		assert.True(t, flags.Status)
		assert.Contains(t, steps, StepStatus)
	})

	t.Run("status back to neutral never fires", func(t *testing.T) {
		// A person may have set the board status by hand; do not revert it.
		_, flags := ComputeSteps(
			HearingSnapshot{Status: NeutralStatus},
			HearingSnapshot{Status: "Held"},
		)
		assert.False(t, flags.Status)
	})

	t.Run("unchanged status never fires", func(t *testing.T) {
		_, flags := ComputeSteps(
			HearingSnapshot{Status: "Held"},
			HearingSnapshot{Status: "Held"},
		)
		assert.False(t, flags.Status)
	})
}

func TestComputeStepsDetails(t *testing.T) {
	t.Run("details fire independently", func(t *testing.T) {
		steps, flags := ComputeSteps(
			HearingSnapshot{Courtroom: "4B"},
			HearingSnapshot{},
		)
		assert.True(t, flags.Courtroom)
		assert.False(t, flags.Officer)
		assert.Equal(t, []string{StepCourtroom}, steps)
	})

	t.Run("empty detail never fires", func(t *testing.T) {
		_, flags := ComputeSteps(
			HearingSnapshot{Officer: ""},
			HearingSnapshot{Officer: "Judge Roy"},
		)
		assert.False(t, flags.Officer)
	})

	t.Run("venue stands in for an empty courtroom", func(t *testing.T) {
		_, flags := ComputeSteps(
			HearingSnapshot{Venue: "Downtown Annex"},
			HearingSnapshot{},
		)
		assert.True(t, flags.Courtroom)
	})

	t.Run("fallback resolves before comparison", func(t *testing.T) {
		// Courtroom emptied but venue carries the same effective value.
		_, flags := ComputeSteps(
			HearingSnapshot{Venue: "4B"},
			HearingSnapshot{Courtroom: "4B"},
		)
		assert.False(t, flags.Courtroom)
	})
}

func TestComputeStepsSchedule(t *testing.T) {
	t.Run("missing details block a changed date", func(t *testing.T) {
		steps, flags := ComputeSteps(
			HearingSnapshot{Date: "2024-03-01", Time: "09:00"},
			HearingSnapshot{},
		)
		assert.False(t, flags.Schedule)
		assert.NotContains(t, steps, StepSchedule)
	})

	t.Run("both details present permit a changed date", func(t *testing.T) {
		steps, flags := ComputeSteps(
			HearingSnapshot{Courtroom: "4B", Officer: "Judge Roy", Date: "2024-03-01", Time: "09:00"},
			HearingSnapshot{Courtroom: "4B", Officer: "Judge Roy"},
		)
		assert.True(t, flags.Schedule)
		assert.Contains(t, steps, StepSchedule)
	})

	t.Run("venue fallback satisfies the courtroom prerequisite", func(t *testing.T) {
		_, flags := ComputeSteps(
			HearingSnapshot{Venue: "Downtown Annex", Officer: "Judge Roy", Date: "2024-03-01"},
			HearingSnapshot{Venue: "Downtown Annex", Officer: "Judge Roy"},
		)
		assert.True(t, flags.Schedule)
	})

	t.Run("unchanged date never fires", func(t *testing.T) {
		_, flags := ComputeSteps(
			HearingSnapshot{Courtroom: "4B", Officer: "Judge Roy", Date: "2024-03-01", Time: "09:00"},
			HearingSnapshot{Courtroom: "4B", Officer: "Judge Roy", Date: "2024-03-01", Time: "09:00"},
		)
		assert.False(t, flags.Schedule)
	})

	t.Run("time-only change fires", func(t *testing.T) {
		_, flags := ComputeSteps(
			HearingSnapshot{Courtroom: "4B", Officer: "Judge Roy", Date: "2024-03-01", Time: "13:30"},
			HearingSnapshot{Courtroom: "4B", Officer: "Judge Roy", Date: "2024-03-01", Time: "09:00"},
		)
		assert.True(t, flags.Schedule)
	})
}

func TestComputeStepsDeterministic(t *testing.T) {
	current := HearingSnapshot{Status: "Held", Courtroom: "4B", Officer: "Judge Roy", Date: "2024-03-01", Time: "09:00"}
	previous := HearingSnapshot{Status: "Pending", Courtroom: "2A"}

	first, firstFlags := ComputeSteps(current, previous)
	second, secondFlags := ComputeSteps(current, previous)

	assert.Equal(t, first, second)
	assert.Equal(t, firstFlags, secondFlags)
	assert.Equal(t, []string{StepStatus, StepCourtroom, StepOfficer, StepSchedule}, first)
}
