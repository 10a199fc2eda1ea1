package lifecycle_test

import (
	"testing"

	"urbancare-be/lifecycle"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseStatusNormalizesLegacySpellings(t *testing.T) {
	tests := []struct {
		raw  string
		want lifecycle.Status
	}{
		{"reported", lifecycle.StatusReported},
		{"Pending", lifecycle.StatusReported},
		{"open", lifecycle.StatusReported},
		{"in-progress", lifecycle.StatusInProgress},
		{"In Progress", lifecycle.StatusInProgress},
		{"in_progress", lifecycle.StatusInProgress},
		{"completed", lifecycle.StatusCompletedByWorker},
		{"completed_by_worker", lifecycle.StatusCompletedByWorker},
		{"Completed-By-Worker", lifecycle.StatusCompletedByWorker},
		{"Resolved", lifecycle.StatusResolved},
		{"done", lifecycle.StatusResolved},
		{"closed", lifecycle.StatusClosed},
	}

	for _, tt := range tests {
		t.Run(tt.raw, func(t *testing.T) {
			got, err := lifecycle.ParseStatus(tt.raw)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestParseStatusRejectsUnknown(t *testing.T) {
	_, err := lifecycle.ParseStatus("abandoned")
	require.Error(t, err)

	var verr *lifecycle.ValidationError
	assert.ErrorAs(t, err, &verr)
}

func TestParseRole(t *testing.T) {
	for raw, want := range map[string]lifecycle.Role{
		"citizen":   lifecycle.RoleCitizen,
		"Worker":    lifecycle.RoleWorker,
		"AUTHORITY": lifecycle.RoleAuthority,
	} {
		got, err := lifecycle.ParseRole(raw)
		require.NoError(t, err)
		assert.Equal(t, want, got)
	}

	_, err := lifecycle.ParseRole("admin")
	assert.Error(t, err)
}

func TestTerminalStates(t *testing.T) {
	assert.True(t, lifecycle.StatusResolved.Terminal())
	assert.True(t, lifecycle.StatusClosed.Terminal())
	assert.False(t, lifecycle.StatusReported.Terminal())
	assert.False(t, lifecycle.StatusCompletedByWorker.Terminal())
}

func TestCanTransitionGraph(t *testing.T) {
	// Forward edges.
	assert.True(t, lifecycle.CanTransition(lifecycle.StatusReported, lifecycle.StatusAssigned))
	assert.True(t, lifecycle.CanTransition(lifecycle.StatusAssigned, lifecycle.StatusInProgress))
	assert.True(t, lifecycle.CanTransition(lifecycle.StatusInProgress, lifecycle.StatusCompletedByWorker))
	assert.True(t, lifecycle.CanTransition(lifecycle.StatusCompletedByWorker, lifecycle.StatusResolved))

	// Rejection path.
	assert.True(t, lifecycle.CanTransition(lifecycle.StatusCompletedByWorker, lifecycle.StatusInProgress))

	// Closed override from any non-terminal state, but not from terminal ones.
	assert.True(t, lifecycle.CanTransition(lifecycle.StatusReported, lifecycle.StatusClosed))
	assert.True(t, lifecycle.CanTransition(lifecycle.StatusCompletedByWorker, lifecycle.StatusClosed))
	assert.False(t, lifecycle.CanTransition(lifecycle.StatusResolved, lifecycle.StatusClosed))
	assert.False(t, lifecycle.CanTransition(lifecycle.StatusClosed, lifecycle.StatusClosed))

	// No skipping mandatory states, no moving backwards.
	assert.False(t, lifecycle.CanTransition(lifecycle.StatusReported, lifecycle.StatusInProgress))
	assert.False(t, lifecycle.CanTransition(lifecycle.StatusReported, lifecycle.StatusResolved))
	assert.False(t, lifecycle.CanTransition(lifecycle.StatusAssigned, lifecycle.StatusReported))
	assert.False(t, lifecycle.CanTransition(lifecycle.StatusResolved, lifecycle.StatusInProgress))
}
