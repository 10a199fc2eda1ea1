package lifecycle

import "time"

// WorkerTask is the worker-facing read projection of an issue. It is never
// persisted: estimated duration and scheduled date are recomputed on read
// from static lookup tables.
type WorkerTask struct {
	IssueID           string        `json:"issueId"`
	Title             string        `json:"title"`
	Category          Category      `json:"category"`
	Location          string        `json:"location"`
	Status            Status        `json:"status"`
	Urgency           Urgency       `json:"urgency"`
	EstimatedDuration time.Duration `json:"estimatedDurationMinutes"`
	ScheduledDate     time.Time     `json:"scheduledDate"`
}

// categoryDuration estimates on-site remediation time per category.
var categoryDuration = map[Category]time.Duration{
	CategoryTrash:          2 * time.Hour,
	CategoryWater:          4 * time.Hour,
	CategoryInfrastructure: 8 * time.Hour,
	CategoryElectricity:    3 * time.Hour,
	CategoryDrainage:       6 * time.Hour,
	CategoryTransportation: 5 * time.Hour,
	CategoryHealth:         4 * time.Hour,
	CategorySafety:         2 * time.Hour,
}

const defaultTaskDuration = 4 * time.Hour

// slaOffset schedules work relative to assignment time, by urgency.
var slaOffset = map[Urgency]time.Duration{
	UrgencyCritical: 24 * time.Hour,
	UrgencyHigh:     48 * time.Hour,
	UrgencyMedium:   72 * time.Hour,
	UrgencyLow:      7 * 24 * time.Hour,
}

// EstimatedDuration returns the category's duration estimate.
func EstimatedDuration(cat Category) time.Duration {
	if d, ok := categoryDuration[cat]; ok {
		return d
	}
	return defaultTaskDuration
}

// ScheduledDate returns the SLA deadline for an issue assigned at the given
// time with the given urgency.
func ScheduledDate(assignedAt time.Time, u Urgency) time.Time {
	off, ok := slaOffset[u]
	if !ok {
		off = slaOffset[UrgencyMedium]
	}
	return assignedAt.Add(off)
}

// TaskSource carries the issue fields the projection reads.
type TaskSource struct {
	ID         string
	Title      string
	Category   Category
	Location   string
	Status     Status
	CreatedAt  time.Time
	AssignedAt time.Time
	Explicit   Urgency
}

// BuildWorkerTask derives the task projection for one assigned issue.
func BuildWorkerTask(src TaskSource, now time.Time, cfg EscalationConfig) WorkerTask {
	urgency := DerivePriority(src.Category, src.CreatedAt, src.Explicit, src.Status, time.Time{}, now, cfg)
	scheduledFrom := src.AssignedAt
	if scheduledFrom.IsZero() {
		scheduledFrom = now
	}
	return WorkerTask{
		IssueID:           src.ID,
		Title:             src.Title,
		Category:          src.Category,
		Location:          src.Location,
		Status:            src.Status,
		Urgency:           urgency,
		EstimatedDuration: EstimatedDuration(src.Category),
		ScheduledDate:     ScheduledDate(scheduledFrom, urgency),
	}
}
