package lifecycle_test

import (
	"testing"
	"time"

	"urbancare-be/lifecycle"

	"github.com/stretchr/testify/assert"
)

var t0 = time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)

func days(n int) time.Time { return t0.Add(time.Duration(n) * 24 * time.Hour) }

func TestBaseUrgencyTable(t *testing.T) {
	tests := []struct {
		cat  lifecycle.Category
		want lifecycle.Urgency
	}{
		{lifecycle.CategorySafety, lifecycle.UrgencyCritical},
		{lifecycle.CategoryWater, lifecycle.UrgencyHigh},
		{lifecycle.CategoryElectricity, lifecycle.UrgencyHigh},
		{lifecycle.CategoryInfrastructure, lifecycle.UrgencyMedium},
		{lifecycle.CategoryTransportation, lifecycle.UrgencyMedium},
		{lifecycle.CategoryTrash, lifecycle.UrgencyLow},
		{lifecycle.CategoryOther, lifecycle.UrgencyLow},
		// Unmapped categories default to medium.
		{lifecycle.CategoryDrainage, lifecycle.UrgencyMedium},
		{lifecycle.CategoryHealth, lifecycle.UrgencyMedium},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, lifecycle.BaseUrgency(tt.cat), "category %s", tt.cat)
	}
}

func TestExplicitUrgencyWins(t *testing.T) {
	// Even an ancient Trash issue stays where the authority pinned it.
	got := lifecycle.DerivePriority(lifecycle.CategoryTrash, t0, lifecycle.UrgencyHigh,
		lifecycle.StatusReported, time.Time{}, days(100), lifecycle.DefaultEscalation)
	assert.Equal(t, lifecycle.UrgencyHigh, got)
}

func TestEscalationStepArithmetic(t *testing.T) {
	// Trash starts low, escalates one rank per full 7 days open.
	tests := []struct {
		ageDays int
		want    lifecycle.Urgency
	}{
		{0, lifecycle.UrgencyLow},
		{6, lifecycle.UrgencyLow},
		{7, lifecycle.UrgencyMedium},
		{8, lifecycle.UrgencyMedium},
		{14, lifecycle.UrgencyHigh},
		{21, lifecycle.UrgencyCritical},
		{22, lifecycle.UrgencyCritical},
		{1000, lifecycle.UrgencyCritical}, // capped forever
	}
	for _, tt := range tests {
		got := lifecycle.DerivePriority(lifecycle.CategoryTrash, t0, "",
			lifecycle.StatusReported, time.Time{}, days(tt.ageDays), lifecycle.DefaultEscalation)
		assert.Equal(t, tt.want, got, "age %d days", tt.ageDays)
	}
}

func TestPriorityNeverLeavesLadder(t *testing.T) {
	ages := []int{-5, 0, 1, 30, 365, 10000}
	valid := map[lifecycle.Urgency]bool{
		lifecycle.UrgencyLow: true, lifecycle.UrgencyMedium: true,
		lifecycle.UrgencyHigh: true, lifecycle.UrgencyCritical: true,
	}
	for _, cat := range lifecycle.Categories {
		for _, age := range ages {
			got := lifecycle.DerivePriority(cat, t0, "", lifecycle.StatusReported,
				time.Time{}, days(age), lifecycle.DefaultEscalation)
			assert.True(t, valid[got], "category %s age %d gave %q", cat, age, got)
		}
	}
}

func TestTerminalUrgencyFrozenAtResolution(t *testing.T) {
	// An issue that escalated to critical over 21 days open keeps that
	// urgency in historical views no matter how much later we look.
	for _, status := range []lifecycle.Status{lifecycle.StatusResolved, lifecycle.StatusClosed} {
		got := lifecycle.DerivePriority(lifecycle.CategoryTrash, t0, "", status,
			days(21), days(1000), lifecycle.DefaultEscalation)
		assert.Equal(t, lifecycle.UrgencyCritical, got, "status %s", status)
	}

	// Resolved inside the first period: nothing had escalated yet.
	got := lifecycle.DerivePriority(lifecycle.CategoryTrash, t0, "",
		lifecycle.StatusResolved, days(3), days(1000), lifecycle.DefaultEscalation)
	assert.Equal(t, lifecycle.UrgencyLow, got)

	// No resolution time recorded: fall back to the base value rather than
	// keep escalating a dead issue.
	got = lifecycle.DerivePriority(lifecycle.CategoryTrash, t0, "",
		lifecycle.StatusClosed, time.Time{}, days(60), lifecycle.DefaultEscalation)
	assert.Equal(t, lifecycle.UrgencyLow, got)
}

func TestEscalationDisabled(t *testing.T) {
	got := lifecycle.DerivePriority(lifecycle.CategoryTrash, t0, "",
		lifecycle.StatusReported, time.Time{}, days(60), lifecycle.EscalationConfig{})
	assert.Equal(t, lifecycle.UrgencyLow, got)
}

func TestEscalateClampsAtCritical(t *testing.T) {
	assert.Equal(t, lifecycle.UrgencyMedium, lifecycle.Escalate(lifecycle.UrgencyLow, 1))
	assert.Equal(t, lifecycle.UrgencyCritical, lifecycle.Escalate(lifecycle.UrgencyLow, 3))
	assert.Equal(t, lifecycle.UrgencyCritical, lifecycle.Escalate(lifecycle.UrgencyLow, 99))
	assert.Equal(t, lifecycle.UrgencyCritical, lifecycle.Escalate(lifecycle.UrgencyCritical, 1))
	assert.Equal(t, lifecycle.UrgencyHigh, lifecycle.Escalate(lifecycle.UrgencyHigh, 0))
}

func TestParseCategory(t *testing.T) {
	got, err := lifecycle.ParseCategory("water")
	assert.NoError(t, err)
	assert.Equal(t, lifecycle.CategoryWater, got)

	_, err = lifecycle.ParseCategory("Potholes")
	assert.Error(t, err)
}

func TestParseUrgency(t *testing.T) {
	got, err := lifecycle.ParseUrgency("Critical")
	assert.NoError(t, err)
	assert.Equal(t, lifecycle.UrgencyCritical, got)

	_, err = lifecycle.ParseUrgency("urgent")
	assert.Error(t, err)
}
