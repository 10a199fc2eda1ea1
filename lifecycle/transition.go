package lifecycle

import "time"

// IssueState is the minimal view of an issue the engine needs to evaluate a
// transition. The persistence layer builds one from the stored record.
type IssueState struct {
	ID            string
	Status        Status
	CreatedBy     string
	AssignedTo    string
	AfterImageURL string
}

// TransitionRequest describes a requested status change plus the payload some
// transitions carry (assignment target, completion proof, rejection note).
type TransitionRequest struct {
	Target Status
	Actor  Actor

	// Assignment payload (reported -> assigned).
	Worker     string
	Department string

	// Completion payload (in_progress -> completed_by_worker).
	AfterImageURL string

	// Rejection payload (completed_by_worker -> in_progress).
	Note string
}

// Changeset is the set of field mutations a transition produces. Nil pointer
// fields are left untouched by the store. NoOp marks an idempotent retry of
// the current status: nothing is written, not even updated_at.
type Changeset struct {
	NoOp bool

	Status        Status
	AssignedTo    *string
	Department    *string
	AssignedAt    *time.Time
	CompletedAt   *time.Time
	AfterImageURL *string
	RejectionNote *string
	UpdatedAt     time.Time
}

// Transition validates a requested status change against the lifecycle graph,
// the actor's role, and the per-edge preconditions, and returns the changeset
// to persist. It never mutates its inputs.
func Transition(issue IssueState, req TransitionRequest, now time.Time) (Changeset, error) {
	from := issue.Status
	to := req.Target

	// Idempotent no-op: a retried client request targeting the current
	// status always succeeds without touching the record.
	if to == from {
		return Changeset{NoOp: true, Status: from}, nil
	}

	if !CanTransition(from, to) {
		return Changeset{}, &InvalidTransitionError{From: from, To: to}
	}

	// The closed override is authority-only from any non-terminal state and
	// mutates nothing but the status, so abandoned reports keep their history.
	if to == StatusClosed {
		if req.Actor.Role != RoleAuthority {
			return Changeset{}, &UnauthorizedError{Role: req.Actor.Role, From: from, To: to}
		}
		return Changeset{Status: StatusClosed, UpdatedAt: now}, nil
	}

	e := transitions[from][to]
	if !e.roles[req.Actor.Role] {
		return Changeset{}, &UnauthorizedError{Role: req.Actor.Role, From: from, To: to}
	}

	cs := Changeset{Status: to, UpdatedAt: now}

	switch {
	case from == StatusReported && to == StatusAssigned:
		if req.Worker == "" {
			return Changeset{}, &ValidationError{Reason: "assignment requires a worker id"}
		}
		worker := req.Worker
		assignedAt := now
		cs.AssignedTo = &worker
		cs.AssignedAt = &assignedAt
		if req.Department != "" {
			dept := req.Department
			cs.Department = &dept
		}

	case from == StatusAssigned && to == StatusInProgress:
		if req.Actor.Role == RoleWorker && req.Actor.ID != issue.AssignedTo {
			return Changeset{}, &UnauthorizedError{
				Role: req.Actor.Role, From: from, To: to,
				Reason: "issue is assigned to a different worker",
			}
		}

	case from == StatusInProgress && to == StatusCompletedByWorker:
		if req.Actor.ID != issue.AssignedTo {
			return Changeset{}, &UnauthorizedError{
				Role: req.Actor.Role, From: from, To: to,
				Reason: "issue is assigned to a different worker",
			}
		}
		after := req.AfterImageURL
		if after == "" {
			after = issue.AfterImageURL
		}
		if after == "" {
			return Changeset{}, &ValidationError{Reason: "completion requires an after image"}
		}
		completedAt := now
		cs.AfterImageURL = &after
		cs.CompletedAt = &completedAt

	case from == StatusCompletedByWorker && to == StatusInProgress:
		// Authority sends the work back; a note is recommended but not
		// required.
		if req.Note != "" {
			note := req.Note
			cs.RejectionNote = &note
		}

	case from == StatusCompletedByWorker && to == StatusResolved:
		// Status only. This is the point where the before/after pair becomes
		// eligible for public display.
	}

	return cs, nil
}
