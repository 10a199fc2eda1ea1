package models_test

import (
	"strings"
	"testing"
	"time"
	"unicode/utf8"

	"urbancare-be/lifecycle"
	"urbancare-be/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

func TestLifecycleStateProjection(t *testing.T) {
	worker := primitive.NewObjectID()
	after := "https://storage.example/after.jpg"

	issue := models.Issue{
		ID:            primitive.NewObjectID(),
		Status:        lifecycle.StatusInProgress,
		CreatedBy:     primitive.NewObjectID(),
		AssignedTo:    &worker,
		AfterImageURL: &after,
	}

	state := issue.LifecycleState()
	assert.Equal(t, issue.ID.Hex(), state.ID)
	assert.Equal(t, lifecycle.StatusInProgress, state.Status)
	assert.Equal(t, issue.CreatedBy.Hex(), state.CreatedBy)
	assert.Equal(t, worker.Hex(), state.AssignedTo)
	assert.Equal(t, after, state.AfterImageURL)
}

func TestLifecycleStateUnassigned(t *testing.T) {
	issue := models.Issue{
		ID:        primitive.NewObjectID(),
		Status:    lifecycle.StatusReported,
		CreatedBy: primitive.NewObjectID(),
	}

	state := issue.LifecycleState()
	assert.Empty(t, state.AssignedTo)
	assert.Empty(t, state.AfterImageURL)
}

func TestDerivedUrgencyUsesExplicitOverride(t *testing.T) {
	issue := models.Issue{
		Category:  lifecycle.CategoryTrash,
		Status:    lifecycle.StatusReported,
		Urgency:   lifecycle.UrgencyCritical,
		CreatedAt: time.Now().Add(-time.Hour),
	}

	got := issue.DerivedUrgency(time.Now(), lifecycle.DefaultEscalation)
	assert.Equal(t, lifecycle.UrgencyCritical, got)
}

func TestDerivedUrgencyFrozenForResolvedIssue(t *testing.T) {
	// Trash escalated low -> high over 14 days open; resolution freezes it
	// there for later views.
	resolvedAt := time.Date(2025, 7, 15, 9, 0, 0, 0, time.UTC)
	issue := models.Issue{
		Category:  lifecycle.CategoryTrash,
		Status:    lifecycle.StatusResolved,
		CreatedAt: resolvedAt.Add(-14 * 24 * time.Hour),
		UpdatedAt: resolvedAt,
	}

	got := issue.DerivedUrgency(resolvedAt.Add(90*24*time.Hour), lifecycle.DefaultEscalation)
	assert.Equal(t, lifecycle.UrgencyHigh, got)
}

func TestDeriveTitle(t *testing.T) {
	assert.Equal(t, "Broken pipe", models.DeriveTitle("Broken pipe", "ignored description"))

	short := "Overflowing bin on Elm Street"
	assert.Equal(t, short, models.DeriveTitle("", short))

	// A multi-byte description must truncate on a rune boundary, never in
	// the middle of a character.
	desc := strings.Repeat("जलभराव", 30)
	got := models.DeriveTitle("", desc)
	assert.Equal(t, 80, utf8.RuneCountInString(got))
	assert.True(t, utf8.ValidString(got))
	assert.True(t, strings.HasPrefix(desc, got))
}

func TestTaskSourceCarriesAssignment(t *testing.T) {
	assignedAt := time.Date(2025, 7, 1, 9, 0, 0, 0, time.UTC)
	issue := models.Issue{
		ID:         primitive.NewObjectID(),
		Title:      "Streetlight out near the school",
		Category:   lifecycle.CategoryElectricity,
		Location:   "Main & 5th",
		Status:     lifecycle.StatusAssigned,
		CreatedAt:  assignedAt.Add(-2 * time.Hour),
		AssignedAt: &assignedAt,
	}

	src := issue.TaskSource()
	require.Equal(t, issue.ID.Hex(), src.ID)
	assert.Equal(t, assignedAt, src.AssignedAt)
	assert.Equal(t, lifecycle.CategoryElectricity, src.Category)

	task := lifecycle.BuildWorkerTask(src, assignedAt.Add(time.Hour), lifecycle.DefaultEscalation)
	assert.Equal(t, lifecycle.UrgencyHigh, task.Urgency)
	assert.Equal(t, assignedAt.Add(48*time.Hour), task.ScheduledDate)
}
