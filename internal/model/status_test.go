package model

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestCanTransition(t *testing.T) {
	testCases := []struct {
		name    string
		from    Status
		to      Status
		allowed bool
	}{
		{"PM approval advances to mechanical", StatusPendingPM, StatusPendingMechanical, true},
		{"PM rejection", StatusPendingPM, StatusRejected, true},
		{"mechanical assigns source", StatusPendingMechanical, StatusAwaitingSourcePM, true},
		{"mechanical rejection", StatusPendingMechanical, StatusRejected, true},
		{"source PM approval", StatusAwaitingSourcePM, StatusApproved, true},
		{"source PM rejection", StatusAwaitingSourcePM, StatusRejected, true},
		{"approved goes in transit", StatusApproved, StatusInTransit, true},
		{"in transit is received", StatusInTransit, StatusReceived, true},

		{"no skipping the mechanical step", StatusPendingPM, StatusAwaitingSourcePM, false},
		{"no skipping straight to approved", StatusPendingPM, StatusApproved, false},
		{"approved cannot be rejected", StatusApproved, StatusRejected, false},
		{"in transit cannot be rejected", StatusInTransit, StatusRejected, false},
		{"no backwards edge", StatusPendingMechanical, StatusPendingPM, false},
		{"received is terminal", StatusReceived, StatusInTransit, false},
		{"rejected is terminal", StatusRejected, StatusPendingPM, false},
		{"self transition is not legal", StatusApproved, StatusApproved, false},
		{"unknown from state", Status("bogus"), StatusApproved, false},
		{"unknown to state", StatusPendingPM, Status("bogus"), false},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.allowed, CanTransition(tc.from, tc.to))
		})
	}
}

func TestStatusIsTerminal(t *testing.T) {
	assert.True(t, StatusReceived.IsTerminal())
	assert.True(t, StatusRejected.IsTerminal())

	for _, s := range []Status{StatusPendingPM, StatusPendingMechanical, StatusAwaitingSourcePM, StatusApproved, StatusInTransit} {
		assert.False(t, s.IsTerminal(), "status %s should not be terminal", s)
	}

	// An unknown value is not terminal, it is simply invalid.
	assert.False(t, Status("bogus").IsTerminal())
}

func TestStatusValid(t *testing.T) {
	for _, s := range []Status{
		StatusPendingPM, StatusPendingMechanical, StatusAwaitingSourcePM,
		StatusApproved, StatusInTransit, StatusReceived, StatusRejected,
	} {
		assert.True(t, s.Valid(), "status %s should be valid", s)
	}
	assert.False(t, Status("").Valid())
	assert.False(t, Status("cancelled").Valid())
}

func TestStatusLabel(t *testing.T) {
	assert.Equal(t, "Pending PM Approval", StatusPendingPM.Label())
	assert.Equal(t, "Awaiting Source PM", StatusAwaitingSourcePM.Label())
	assert.Equal(t, "Received", StatusReceived.Label())
	// Unknown values fall back to the raw string.
	assert.Equal(t, "bogus", Status("bogus").Label())
}
