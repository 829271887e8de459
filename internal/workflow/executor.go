package workflow

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"fleetops-backend/internal/model"
)

// Store defines the persistence operations the executor needs. The GORM
// store implements it; tests use an in-memory fake.
type Store interface {
	CreateTransferRequest(ctx context.Context, req *model.TransferRequest, event *model.TransferEvent) error
	GetTransferRequest(ctx context.Context, id int64) (*model.TransferRequest, error)
	// CommitTransition atomically replaces the request's mutable fields and
	// appends the history event, but only while the stored status still
	// equals expected. A lost race yields ErrStaleStatus and no mutation.
	CommitTransition(ctx context.Context, req *model.TransferRequest, expected model.Status, event *model.TransferEvent) error
	GetSite(ctx context.Context, id int64) (*model.Site, error)
	GetMachine(ctx context.Context, id int64) (*model.Machine, error)
	ListMachinesAtSite(ctx context.Context, siteID int64, machineType string) ([]model.Machine, error)
}

// Notifier is told about every committed transition. May be nil.
type Notifier interface {
	Dispatch(requestID int64)
}

// Executor validates attempted transitions against the current status and
// the actor policy, then commits the new state and exactly one history
// entry per successful operation. Transitions on the same request id are
// serialized, and the store commit is a compare-and-swap on the expected
// status, so at most one legal edge is taken under concurrent actors.
type Executor struct {
	store    Store
	notifier Notifier
	now      func() time.Time

	mu    sync.Mutex
	locks map[int64]*sync.Mutex
}

// NewExecutor creates a transition executor. notifier may be nil.
func NewExecutor(s Store, notifier Notifier) *Executor {
	return &Executor{
		store:    s,
		notifier: notifier,
		now:      func() time.Time { return time.Now().UTC() },
		locks:    make(map[int64]*sync.Mutex),
	}
}

// CreateInput carries the fields of a new transfer request. The requesting
// site is taken from the actor.
type CreateInput struct {
	MachineType  string
	Purpose      string
	DurationDays *int
	RequiredBy   *time.Time
	Notes        string
}

// Create opens a new request in the pending-PM state with a single initial
// history entry.
func (e *Executor) Create(ctx context.Context, actor *model.User, in CreateInput) (*model.TransferRequest, error) {
	if actor == nil || actor.SiteID == nil {
		return nil, ErrActorNotAllowed
	}
	if strings.TrimSpace(in.MachineType) == "" {
		return nil, &ValidationError{Reason: "machine type is required"}
	}
	if _, err := e.store.GetSite(ctx, *actor.SiteID); err != nil {
		return nil, &ValidationError{Reason: "requesting site not found"}
	}

	now := e.now()
	req := &model.TransferRequest{
		RequestingSiteID: *actor.SiteID,
		MachineType:      in.MachineType,
		Status:           model.StatusPendingPM,
		Purpose:          in.Purpose,
		DurationDays:     in.DurationDays,
		RequiredBy:       in.RequiredBy,
		Notes:            in.Notes,
		CreatedAt:        now,
		UpdatedAt:        now,
	}
	notes := in.Notes
	if notes == "" {
		notes = "Transfer request created"
	}
	event := &model.TransferEvent{
		Status:    model.StatusPendingPM,
		ActorID:   actor.ID,
		ActorName: actor.Name,
		Notes:     notes,
		CreatedAt: now,
	}
	if err := e.store.CreateTransferRequest(ctx, req, event); err != nil {
		return nil, fmt.Errorf("creating transfer request: %w", err)
	}
	req.History = []model.TransferEvent{*event}
	return req, nil
}

// ApprovePM advances a pending-PM request to the mechanical head's queue.
func (e *Executor) ApprovePM(ctx context.Context, actor *model.User, id int64, notes string) (*model.TransferRequest, error) {
	return e.transition(ctx, actor, id, transitionSpec{
		requires:     model.StatusPendingPM,
		action:       ActionPMReview,
		to:           model.StatusPendingMechanical,
		notes:        notes,
		defaultNotes: "Approved by PM",
	})
}

// RejectPM terminally rejects a pending-PM request.
func (e *Executor) RejectPM(ctx context.Context, actor *model.User, id int64, notes string) (*model.TransferRequest, error) {
	return e.transition(ctx, actor, id, transitionSpec{
		requires:     model.StatusPendingPM,
		action:       ActionPMReview,
		to:           model.StatusRejected,
		notes:        notes,
		defaultNotes: "Rejected by PM",
	})
}

// AssignSourceSite sets the site that will provide the machine and moves
// the request to the source PM's queue. The history note records the
// resolved site name.
func (e *Executor) AssignSourceSite(ctx context.Context, actor *model.User, id int64, sourceSiteID int64) (*model.TransferRequest, error) {
	return e.transition(ctx, actor, id, transitionSpec{
		requires: model.StatusPendingMechanical,
		action:   ActionAssignSource,
		to:       model.StatusAwaitingSourcePM,
		apply: func(ctx context.Context, req *model.TransferRequest) (string, error) {
			site, err := e.store.GetSite(ctx, sourceSiteID)
			if err != nil {
				return "", &ValidationError{Reason: "source site not found"}
			}
			req.SourceSiteID = &sourceSiteID
			return fmt.Sprintf("Source site assigned: %s", site.Name), nil
		},
	})
}

// ApproveSourcePM approves providing a machine from the source site. A
// machine must be selected; the assignment and the status change commit as
// one operation with one history entry.
func (e *Executor) ApproveSourcePM(ctx context.Context, actor *model.User, id int64, machineID *int64, notes string) (*model.TransferRequest, error) {
	return e.transition(ctx, actor, id, transitionSpec{
		requires: model.StatusAwaitingSourcePM,
		action:   ActionSourceReview,
		to:       model.StatusApproved,
		apply: func(ctx context.Context, req *model.TransferRequest) (string, error) {
			if machineID == nil {
				return "", &ValidationError{Reason: "a machine must be selected"}
			}
			machine, err := e.store.GetMachine(ctx, *machineID)
			if err != nil {
				return "", &ValidationError{Reason: "machine not found"}
			}
			if req.SourceSiteID == nil || machine.SiteID != *req.SourceSiteID {
				return "", &ValidationError{Reason: "machine is not located at the source site"}
			}
			req.MachineID = machineID
			if notes == "" {
				return fmt.Sprintf("Approved by source PM; machine assigned: %s", machine.Name), nil
			}
			return fmt.Sprintf("%s (machine assigned: %s)", notes, machine.Name), nil
		},
	})
}

// RejectSourcePM terminally rejects the request at the source-PM step.
func (e *Executor) RejectSourcePM(ctx context.Context, actor *model.User, id int64, notes string) (*model.TransferRequest, error) {
	return e.transition(ctx, actor, id, transitionSpec{
		requires:     model.StatusAwaitingSourcePM,
		action:       ActionSourceReview,
		to:           model.StatusRejected,
		notes:        notes,
		defaultNotes: "Rejected by source PM",
	})
}

// MarkInTransit records that the machine has left the source site.
func (e *Executor) MarkInTransit(ctx context.Context, actor *model.User, id int64, notes string) (*model.TransferRequest, error) {
	return e.transition(ctx, actor, id, transitionSpec{
		requires:     model.StatusApproved,
		action:       ActionMarkInTransit,
		to:           model.StatusInTransit,
		notes:        notes,
		defaultNotes: "Marked in transit",
	})
}

// ConfirmReceipt records arrival at the requesting site. Received is
// terminal.
func (e *Executor) ConfirmReceipt(ctx context.Context, actor *model.User, id int64, notes string) (*model.TransferRequest, error) {
	return e.transition(ctx, actor, id, transitionSpec{
		requires:     model.StatusInTransit,
		action:       ActionConfirmReceipt,
		to:           model.StatusReceived,
		notes:        notes,
		defaultNotes: "Receipt confirmed",
	})
}

// CandidateMachines lists the machines the source PM may assign: machines
// at the assigned source site, narrowed to the requested machine type when
// one was given.
func (e *Executor) CandidateMachines(ctx context.Context, id int64) ([]model.Machine, error) {
	req, err := e.store.GetTransferRequest(ctx, id)
	if err != nil {
		return nil, err
	}
	if req.SourceSiteID == nil {
		return nil, &ValidationError{Reason: "no source site assigned yet"}
	}
	return e.store.ListMachinesAtSite(ctx, *req.SourceSiteID, req.MachineType)
}

type transitionSpec struct {
	requires     model.Status
	action       Action
	to           model.Status
	notes        string
	defaultNotes string
	// apply performs transition-specific validation and field assignment.
	// A non-empty returned note replaces the caller-supplied notes.
	apply func(ctx context.Context, req *model.TransferRequest) (string, error)
}

func (e *Executor) transition(ctx context.Context, actor *model.User, id int64, spec transitionSpec) (*model.TransferRequest, error) {
	if actor == nil {
		return nil, ErrActorNotAllowed
	}

	unlock := e.lockRequest(id)
	defer unlock()

	req, err := e.store.GetTransferRequest(ctx, id)
	if err != nil {
		return nil, err
	}
	if req.Status != spec.requires {
		return nil, &PreconditionFailedError{Expected: spec.requires, Actual: req.Status}
	}
	if !Allows(actor, req, spec.action) {
		return nil, ErrActorNotAllowed
	}

	notes := spec.notes
	if spec.apply != nil {
		note, err := spec.apply(ctx, req)
		if err != nil {
			return nil, err
		}
		if note != "" {
			notes = note
		}
	}
	if notes == "" {
		notes = spec.defaultNotes
	}

	if !model.CanTransition(req.Status, spec.to) {
		return nil, &PreconditionFailedError{Expected: spec.requires, Actual: req.Status}
	}

	expected := req.Status
	now := e.now()
	req.Status = spec.to
	req.UpdatedAt = now
	event := &model.TransferEvent{
		TransferRequestID: req.ID,
		Status:            spec.to,
		ActorID:           actor.ID,
		ActorName:         actor.Name,
		Notes:             notes,
		CreatedAt:         now,
	}

	if err := e.store.CommitTransition(ctx, req, expected, event); err != nil {
		if errors.Is(err, ErrStaleStatus) {
			current, lerr := e.store.GetTransferRequest(ctx, id)
			if lerr != nil {
				return nil, fmt.Errorf("transition lost race: %w", err)
			}
			return nil, &PreconditionFailedError{Expected: expected, Actual: current.Status}
		}
		return nil, fmt.Errorf("committing transition: %w", err)
	}

	req.History = append(req.History, *event)
	if e.notifier != nil {
		e.notifier.Dispatch(req.ID)
	}
	return req, nil
}

// lockRequest serializes transitions on a single request id.
func (e *Executor) lockRequest(id int64) func() {
	e.mu.Lock()
	l, ok := e.locks[id]
	if !ok {
		l = &sync.Mutex{}
		e.locks[id] = l
	}
	e.mu.Unlock()
	l.Lock()
	return l.Unlock
}
