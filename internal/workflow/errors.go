package workflow

import (
	"errors"
	"fmt"

	"fleetops-backend/internal/model"
)

// ErrNotFound is returned when the transfer request id does not exist.
var ErrNotFound = errors.New("transfer request not found")

// ErrActorNotAllowed is returned when the actor policy does not offer the
// attempted action to the actor.
var ErrActorNotAllowed = errors.New("actor is not allowed to perform this action")

// ErrStaleStatus is returned by Store.CommitTransition when the request's
// status no longer matches the expected status at write time. The executor
// converts it into a PreconditionFailedError after re-reading.
var ErrStaleStatus = errors.New("transfer request status changed concurrently")

// PreconditionFailedError signals that the attempted transition does not
// match the request's current status. The caller holds a stale read and
// should refresh and re-evaluate; nothing was mutated.
type PreconditionFailedError struct {
	Expected model.Status
	Actual   model.Status
}

func (e *PreconditionFailedError) Error() string {
	return fmt.Sprintf("transfer request status is %q, expected %q", e.Actual, e.Expected)
}

// ValidationError signals a missing or invalid payload for a transition.
// Nothing was mutated.
type ValidationError struct {
	Reason string
}

func (e *ValidationError) Error() string {
	return e.Reason
}
