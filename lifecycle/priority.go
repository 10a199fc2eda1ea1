package lifecycle

import (
	"fmt"
	"strings"
	"time"
)

// Category classifies an issue.
type Category string

const (
	CategoryTrash          Category = "Trash"
	CategoryWater          Category = "Water"
	CategoryInfrastructure Category = "Infrastructure"
	CategoryElectricity    Category = "Electricity"
	CategoryDrainage       Category = "Drainage"
	CategoryTransportation Category = "Transportation"
	CategoryHealth         Category = "Health"
	CategorySafety         Category = "Safety"
	CategoryOther          Category = "Other"
)

// Categories lists every valid category, in display order.
var Categories = []Category{
	CategoryTrash, CategoryWater, CategoryInfrastructure, CategoryElectricity,
	CategoryDrainage, CategoryTransportation, CategoryHealth, CategorySafety,
	CategoryOther,
}

// ParseCategory validates and canonicalizes a category string.
func ParseCategory(raw string) (Category, error) {
	for _, c := range Categories {
		if strings.EqualFold(raw, string(c)) {
			return c, nil
		}
	}
	return "", &ValidationError{Reason: fmt.Sprintf("unknown category %q", raw)}
}

// Urgency is the derived severity ranking used for sorting and map colors.
type Urgency string

const (
	UrgencyLow      Urgency = "low"
	UrgencyMedium   Urgency = "medium"
	UrgencyHigh     Urgency = "high"
	UrgencyCritical Urgency = "critical"
)

// urgencyLadder orders urgencies from least to most severe. Escalation steps
// move up this ladder and clamp at the top.
var urgencyLadder = []Urgency{UrgencyLow, UrgencyMedium, UrgencyHigh, UrgencyCritical}

// UrgencyRank returns the position of u on the ladder, with unknown values
// treated as medium.
func UrgencyRank(u Urgency) int {
	for i, v := range urgencyLadder {
		if v == u {
			return i
		}
	}
	return 1
}

// ParseUrgency validates an urgency string.
func ParseUrgency(raw string) (Urgency, error) {
	switch Urgency(strings.ToLower(strings.TrimSpace(raw))) {
	case UrgencyLow:
		return UrgencyLow, nil
	case UrgencyMedium:
		return UrgencyMedium, nil
	case UrgencyHigh:
		return UrgencyHigh, nil
	case UrgencyCritical:
		return UrgencyCritical, nil
	}
	return "", &ValidationError{Reason: fmt.Sprintf("unknown urgency %q", raw)}
}

// baseUrgency is the static category triage table. Categories not listed
// default to medium.
var baseUrgency = map[Category]Urgency{
	CategorySafety:         UrgencyCritical,
	CategoryWater:          UrgencyHigh,
	CategoryElectricity:    UrgencyHigh,
	CategoryInfrastructure: UrgencyMedium,
	CategoryTransportation: UrgencyMedium,
	CategoryTrash:          UrgencyLow,
	CategoryOther:          UrgencyLow,
}

// BaseUrgency returns the triage urgency for a category before any age
// escalation.
func BaseUrgency(cat Category) Urgency {
	if u, ok := baseUrgency[cat]; ok {
		return u
	}
	return UrgencyMedium
}

// Escalate moves u up the ladder by steps, clamped at critical.
func Escalate(u Urgency, steps int) Urgency {
	if steps <= 0 {
		return u
	}
	rank := UrgencyRank(u) + steps
	if rank >= len(urgencyLadder) {
		rank = len(urgencyLadder) - 1
	}
	return urgencyLadder[rank]
}

// EscalationConfig controls age-based escalation. Deployments that triage
// manually can disable it and rely on explicit urgency alone.
type EscalationConfig struct {
	Enabled bool
	Period  time.Duration
}

// DefaultEscalation escalates one rank per full week open.
var DefaultEscalation = EscalationConfig{Enabled: true, Period: 7 * 24 * time.Hour}

// DerivePriority computes the display urgency of an issue.
//
// An explicit urgency set by an authority wins outright. Otherwise the
// category's base urgency escalates one rank per full escalation period the
// issue has been open, capped at critical. Resolved and closed issues are
// frozen at resolvedAt: historical views keep the urgency the issue had when
// it left the active pipeline. A terminal issue with no resolvedAt falls back
// to its base value.
func DerivePriority(cat Category, createdAt time.Time, explicit Urgency, status Status, resolvedAt, now time.Time, cfg EscalationConfig) Urgency {
	if explicit != "" {
		return explicit
	}
	u := BaseUrgency(cat)
	if !cfg.Enabled || cfg.Period <= 0 {
		return u
	}
	asOf := now
	if status.Terminal() {
		if resolvedAt.IsZero() {
			return u
		}
		asOf = resolvedAt
	}
	age := asOf.Sub(createdAt)
	if age <= 0 {
		return u
	}
	return Escalate(u, int(age/cfg.Period))
}
