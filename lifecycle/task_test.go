package lifecycle_test

import (
	"testing"
	"time"

	"urbancare-be/lifecycle"

	"github.com/stretchr/testify/assert"
)

func TestBuildWorkerTask(t *testing.T) {
	assignedAt := time.Date(2025, 6, 2, 8, 0, 0, 0, time.UTC)
	now := assignedAt.Add(2 * time.Hour)

	task := lifecycle.BuildWorkerTask(lifecycle.TaskSource{
		ID:         "i-1",
		Title:      "Burst pipe on Elm Street",
		Category:   lifecycle.CategoryWater,
		Location:   "Elm Street, Ward 4",
		Status:     lifecycle.StatusAssigned,
		CreatedAt:  assignedAt.Add(-24 * time.Hour),
		AssignedAt: assignedAt,
	}, now, lifecycle.DefaultEscalation)

	assert.Equal(t, "i-1", task.IssueID)
	assert.Equal(t, lifecycle.UrgencyHigh, task.Urgency)
	assert.Equal(t, 4*time.Hour, task.EstimatedDuration)
	// Water is high urgency: 48h SLA from assignment.
	assert.Equal(t, assignedAt.Add(48*time.Hour), task.ScheduledDate)
}

func TestWorkerTaskScheduleTracksEscalatedUrgency(t *testing.T) {
	created := time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC)
	assigned := created.Add(time.Hour)
	now := created.Add(8 * 24 * time.Hour) // one full week open: low -> medium

	task := lifecycle.BuildWorkerTask(lifecycle.TaskSource{
		ID:         "i-2",
		Category:   lifecycle.CategoryTrash,
		Status:     lifecycle.StatusAssigned,
		CreatedAt:  created,
		AssignedAt: assigned,
	}, now, lifecycle.DefaultEscalation)

	assert.Equal(t, lifecycle.UrgencyMedium, task.Urgency)
	assert.Equal(t, assigned.Add(72*time.Hour), task.ScheduledDate)
}

func TestWorkerTaskDefaultsWhenUnassignedTime(t *testing.T) {
	now := time.Date(2025, 6, 3, 10, 0, 0, 0, time.UTC)

	task := lifecycle.BuildWorkerTask(lifecycle.TaskSource{
		ID:        "i-3",
		Category:  lifecycle.CategoryOther,
		Status:    lifecycle.StatusAssigned,
		CreatedAt: now,
	}, now, lifecycle.DefaultEscalation)

	// Unknown duration category falls back to the default, schedule anchors
	// on now when assigned_at was never stamped.
	assert.Equal(t, 4*time.Hour, task.EstimatedDuration)
	assert.Equal(t, now.Add(7*24*time.Hour), task.ScheduledDate)
}
