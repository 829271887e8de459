package model

// Status is the closed set of transfer request lifecycle states.
type Status string

const (
	StatusPendingPM         Status = "pending_pm_approval"
	StatusPendingMechanical Status = "pending_mechanical"
	StatusAwaitingSourcePM  Status = "awaiting_source_pm"
	StatusApproved          Status = "approved"
	StatusInTransit         Status = "in_transit"
	StatusReceived          Status = "received"
	StatusRejected          Status = "rejected"
)

// legalTransitions defines the allowed forward edges of the workflow.
// Each key is a "from" state, and the value is the set of valid "to"
// states. Terminal states map to the empty set.
var legalTransitions = map[Status]map[Status]bool{
	StatusPendingPM: {
		StatusPendingMechanical: true,
		StatusRejected:          true,
	},
	StatusPendingMechanical: {
		StatusAwaitingSourcePM: true,
		StatusRejected:         true,
	},
	StatusAwaitingSourcePM: {
		StatusApproved: true,
		StatusRejected: true,
	},
	StatusApproved: {
		StatusInTransit: true,
	},
	StatusInTransit: {
		StatusReceived: true,
	},
	StatusReceived: {},
	StatusRejected: {},
}

// CanTransition reports whether moving from one status to another is a
// legal edge of the workflow.
func CanTransition(from, to Status) bool {
	return legalTransitions[from][to]
}

// IsTerminal reports whether no further transitions are permitted.
func (s Status) IsTerminal() bool {
	next, ok := legalTransitions[s]
	return ok && len(next) == 0
}

// Valid reports whether s is one of the enumerated statuses.
func (s Status) Valid() bool {
	_, ok := legalTransitions[s]
	return ok
}

// Label returns the human-readable form shown in the console.
func (s Status) Label() string {
	switch s {
	case StatusPendingPM:
		return "Pending PM Approval"
	case StatusPendingMechanical:
		return "Pending Mechanical Head"
	case StatusAwaitingSourcePM:
		return "Awaiting Source PM"
	case StatusApproved:
		return "Approved"
	case StatusInTransit:
		return "In Transit"
	case StatusReceived:
		return "Received"
	case StatusRejected:
		return "Rejected"
	}
	return string(s)
}
