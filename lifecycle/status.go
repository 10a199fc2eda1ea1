// Package lifecycle owns the issue status state machine, the role-gated
// transition rules, and the derived priority model. It is pure: no database,
// no clock, no HTTP. Callers inject "now" and persist the returned changesets.
package lifecycle

import (
	"fmt"
	"strings"
)

// Status is the canonical lifecycle state of an issue.
type Status string

const (
	StatusReported          Status = "reported"
	StatusAssigned          Status = "assigned"
	StatusInProgress        Status = "in_progress"
	StatusCompletedByWorker Status = "completed_by_worker"
	StatusResolved          Status = "resolved"
	StatusClosed            Status = "closed"
)

// statusAliases maps legacy spellings seen in older clients onto canonical
// values. Normalization happens here, at the boundary; the engine itself only
// ever sees canonical statuses.
var statusAliases = map[string]Status{
	"pending":   StatusReported,
	"open":      StatusReported,
	"completed": StatusCompletedByWorker,
	"done":      StatusResolved,
}

// ParseStatus normalizes raw status text ("In Progress", "in-progress",
// "completed") to its canonical Status value.
func ParseStatus(raw string) (Status, error) {
	s := strings.ToLower(strings.TrimSpace(raw))
	s = strings.ReplaceAll(s, "-", "_")
	s = strings.ReplaceAll(s, " ", "_")
	switch Status(s) {
	case StatusReported, StatusAssigned, StatusInProgress,
		StatusCompletedByWorker, StatusResolved, StatusClosed:
		return Status(s), nil
	}
	if alias, ok := statusAliases[s]; ok {
		return alias, nil
	}
	return "", &ValidationError{Reason: fmt.Sprintf("unknown status %q", raw)}
}

// Terminal reports whether s is a closing state that accepts no further
// transitions.
func (s Status) Terminal() bool {
	return s == StatusResolved || s == StatusClosed
}

// Role is the authorization scope an actor holds. Roles are claims supplied by
// the identity layer; the engine trusts them as given.
type Role string

const (
	RoleCitizen   Role = "citizen"
	RoleWorker    Role = "worker"
	RoleAuthority Role = "authority"
)

// ParseRole normalizes a raw role claim.
func ParseRole(raw string) (Role, error) {
	switch Role(strings.ToLower(strings.TrimSpace(raw))) {
	case RoleCitizen:
		return RoleCitizen, nil
	case RoleWorker:
		return RoleWorker, nil
	case RoleAuthority:
		return RoleAuthority, nil
	}
	return "", &ValidationError{Reason: fmt.Sprintf("unknown role %q", raw)}
}

// Actor is an authenticated identity plus its role claim.
type Actor struct {
	ID   string
	Role Role
}

// edge is one permitted transition: which roles may take it.
type edge struct {
	roles map[Role]bool
}

// transitions is the lifecycle graph. The closed override is handled
// separately in Transition because it applies from every non-terminal state.
var transitions = map[Status]map[Status]edge{
	StatusReported: {
		StatusAssigned: {roles: map[Role]bool{RoleAuthority: true}},
	},
	StatusAssigned: {
		StatusInProgress: {roles: map[Role]bool{RoleWorker: true, RoleAuthority: true}},
	},
	StatusInProgress: {
		StatusCompletedByWorker: {roles: map[Role]bool{RoleWorker: true}},
	},
	StatusCompletedByWorker: {
		StatusResolved:   {roles: map[Role]bool{RoleAuthority: true}},
		StatusInProgress: {roles: map[Role]bool{RoleAuthority: true}},
	},
}

// CanTransition reports whether the lifecycle graph contains an edge from one
// status to another, ignoring role and preconditions. The closed override
// counts for any non-terminal source.
func CanTransition(from, to Status) bool {
	if to == StatusClosed {
		return !from.Terminal()
	}
	_, ok := transitions[from][to]
	return ok
}
