package fingerprint

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNormalize(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		expected string
	}{
		{
			name:     "uuids collapse",
			input:    "run 550e8400-e29b-41d4-a716-446655440000 failed",
			expected: "run <id> failed",
		},
		{
			name:     "numbers collapse",
			input:    "case 1234 retry 2 of 3",
			expected: "case <n> retry <n> of <n>",
		},
		{
			name:     "line numbers collapse",
			input:    "panic at engine.go:412",
			expected: "panic at engine.go:<line>",
		},
		{
			name:     "whitespace and casing collapse",
			input:    "  Remote   Call FAILED ",
			expected: "remote call failed",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, Normalize(tt.input))
		})
	}
}

func TestEvent_CollapsesVolatileDetails(t *testing.T) {
	a := Event("sync_failure", "update failed for case 100 after 1 retries", "engine")
	b := Event("sync_failure", "update failed for case 205 after 2 retries", "engine")
	c := Event("sync_failure", "create failed for case 100", "engine")

	assert.Equal(t, a, b, "materially identical events should share a fingerprint")
	assert.NotEqual(t, a, c)
}

func TestFields_Deterministic(t *testing.T) {
	a := Fields(map[string]string{"stage": "Open", "courtroom": "4B"})
	b := Fields(map[string]string{"courtroom": "4B", "stage": "Open"})
	assert.Equal(t, a, b)

	c := Fields(map[string]string{"stage": "Closed", "courtroom": "4B"})
	assert.NotEqual(t, a, c)
}

func TestText_Stable(t *testing.T) {
	assert.Equal(t, Text("A-1 - Smith v. Jones"), Text("A-1 - Smith v. Jones"))
	assert.NotEqual(t, Text("A-1"), Text("A-2"))
}
