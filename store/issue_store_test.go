package store

import (
	"context"
	"testing"
	"time"

	"urbancare-be/lifecycle"
	"urbancare-be/models"

	"github.com/cenkalti/backoff/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

// fakeRecords is an in-memory issueRecords used to exercise the
// read-evaluate-swap loop without a database. beforeSwap simulates a
// concurrent writer sneaking in between our read and our CAS write.
type fakeRecords struct {
	issue      *models.Issue
	loads      int
	swaps      int
	beforeSwap func(f *fakeRecords)
}

func (f *fakeRecords) Load(ctx context.Context, id primitive.ObjectID) (*models.Issue, error) {
	f.loads++
	if f.issue == nil || f.issue.ID != id {
		return nil, &lifecycle.NotFoundError{ID: id.Hex()}
	}
	cp := *f.issue
	return &cp, nil
}

func (f *fakeRecords) Swap(ctx context.Context, id primitive.ObjectID, from lifecycle.Status, cs lifecycle.Changeset, req lifecycle.TransitionRequest) (bool, error) {
	if f.beforeSwap != nil {
		hook := f.beforeSwap
		f.beforeSwap = nil
		hook(f)
	}
	f.swaps++
	if f.issue.Status != from {
		return false, nil
	}
	f.apply(cs)
	return true, nil
}

func (f *fakeRecords) apply(cs lifecycle.Changeset) {
	f.issue.Status = cs.Status
	f.issue.UpdatedAt = cs.UpdatedAt
	if cs.AssignedTo != nil {
		workerID, _ := primitive.ObjectIDFromHex(*cs.AssignedTo)
		f.issue.AssignedTo = &workerID
	}
	if cs.Department != nil {
		f.issue.Department = cs.Department
	}
	if cs.AssignedAt != nil {
		f.issue.AssignedAt = cs.AssignedAt
	}
	if cs.CompletedAt != nil {
		f.issue.CompletedAt = cs.CompletedAt
	}
	if cs.AfterImageURL != nil {
		f.issue.AfterImageURL = cs.AfterImageURL
	}
}

var (
	testIssueID  = primitive.NewObjectID()
	testWorkerID = primitive.NewObjectID()
	authority    = lifecycle.Actor{ID: primitive.NewObjectID().Hex(), Role: lifecycle.RoleAuthority}
)

func reportedIssue() *models.Issue {
	return &models.Issue{
		ID:        testIssueID,
		Status:    lifecycle.StatusReported,
		CreatedBy: primitive.NewObjectID(),
	}
}

func fastPolicy() backoff.BackOff {
	return backoff.WithMaxRetries(&backoff.ZeroBackOff{}, 3)
}

func TestRunTransitionAssigns(t *testing.T) {
	rec := &fakeRecords{issue: reportedIssue()}

	got, err := runTransition(context.Background(), rec, testIssueID, lifecycle.TransitionRequest{
		Target:     lifecycle.StatusAssigned,
		Actor:      authority,
		Worker:     testWorkerID.Hex(),
		Department: "Sanitation",
	}, fastPolicy())
	require.NoError(t, err)

	assert.Equal(t, lifecycle.StatusAssigned, got.Status)
	require.NotNil(t, got.AssignedTo)
	assert.Equal(t, testWorkerID, *got.AssignedTo)
	require.NotNil(t, got.Department)
	assert.Equal(t, "Sanitation", *got.Department)
	assert.NotNil(t, got.AssignedAt)
	assert.Equal(t, 1, rec.swaps)
}

func TestRunTransitionNoOpSkipsWrite(t *testing.T) {
	rec := &fakeRecords{issue: reportedIssue()}

	got, err := runTransition(context.Background(), rec, testIssueID, lifecycle.TransitionRequest{
		Target: lifecycle.StatusReported,
		Actor:  authority,
	}, fastPolicy())
	require.NoError(t, err)

	assert.Equal(t, lifecycle.StatusReported, got.Status)
	assert.Zero(t, rec.swaps, "idempotent retry must not write")
	assert.True(t, got.UpdatedAt.IsZero())
}

func TestRunTransitionRejectionDoesNotRetry(t *testing.T) {
	rec := &fakeRecords{issue: reportedIssue()}

	_, err := runTransition(context.Background(), rec, testIssueID, lifecycle.TransitionRequest{
		Target: lifecycle.StatusInProgress, // skips assigned
		Actor:  authority,
	}, fastPolicy())

	var terr *lifecycle.InvalidTransitionError
	require.ErrorAs(t, err, &terr)
	assert.Equal(t, 1, rec.loads, "engine rejections are permanent, no retry")
	assert.Zero(t, rec.swaps)
}

// TestRunTransitionLostSwapReloadsAndRejects is the CAS correctness check: a
// concurrent writer resolves the issue between our read and our write. The
// loop must not clobber the new status; it re-reads and the engine rejects
// the now-impossible transition.
func TestRunTransitionLostSwapReloadsAndRejects(t *testing.T) {
	issue := reportedIssue()
	issue.Status = lifecycle.StatusCompletedByWorker
	rec := &fakeRecords{issue: issue}
	rec.beforeSwap = func(f *fakeRecords) {
		f.issue.Status = lifecycle.StatusResolved // other authority won the race
	}

	_, err := runTransition(context.Background(), rec, testIssueID, lifecycle.TransitionRequest{
		Target: lifecycle.StatusClosed,
		Actor:  authority,
	}, fastPolicy())

	var terr *lifecycle.InvalidTransitionError
	require.ErrorAs(t, err, &terr)
	assert.Equal(t, lifecycle.StatusResolved, terr.From)
	assert.Equal(t, lifecycle.StatusResolved, rec.issue.Status, "concurrent write preserved")
}

// TestRunTransitionLostSwapRetriesToSuccess: the concurrent writer moved the
// issue to a state from which our transition is still legal, so the retry
// should land it.
func TestRunTransitionLostSwapRetriesToSuccess(t *testing.T) {
	issue := reportedIssue()
	issue.Status = lifecycle.StatusAssigned
	worker := testWorkerID
	issue.AssignedTo = &worker
	rec := &fakeRecords{issue: issue}
	rec.beforeSwap = func(f *fakeRecords) {
		// The worker started the job while the authority was closing it.
		f.issue.Status = lifecycle.StatusInProgress
	}

	got, err := runTransition(context.Background(), rec, testIssueID, lifecycle.TransitionRequest{
		Target: lifecycle.StatusClosed,
		Actor:  authority,
	}, fastPolicy())
	require.NoError(t, err)

	assert.Equal(t, lifecycle.StatusClosed, got.Status)
	assert.Equal(t, 2, rec.swaps, "first swap lost, second succeeded")
}

func TestRunTransitionNotFound(t *testing.T) {
	rec := &fakeRecords{}

	_, err := runTransition(context.Background(), rec, testIssueID,
		lifecycle.TransitionRequest{Target: lifecycle.StatusClosed, Actor: authority}, fastPolicy())

	var nerr *lifecycle.NotFoundError
	require.ErrorAs(t, err, &nerr)
	assert.Equal(t, 1, rec.loads)
}

// TestRunTransitionMonotonicSequence walks one issue through the full happy
// path and checks each observed status only ever moves forward.
func TestRunTransitionMonotonicSequence(t *testing.T) {
	worker := lifecycle.Actor{ID: testWorkerID.Hex(), Role: lifecycle.RoleWorker}
	rec := &fakeRecords{issue: reportedIssue()}

	steps := []lifecycle.TransitionRequest{
		{Target: lifecycle.StatusAssigned, Actor: authority, Worker: testWorkerID.Hex()},
		{Target: lifecycle.StatusInProgress, Actor: worker},
		{Target: lifecycle.StatusCompletedByWorker, Actor: worker, AfterImageURL: "https://storage.example/after.jpg"},
		{Target: lifecycle.StatusResolved, Actor: authority},
	}

	rank := map[lifecycle.Status]int{
		lifecycle.StatusReported:          0,
		lifecycle.StatusAssigned:          1,
		lifecycle.StatusInProgress:        2,
		lifecycle.StatusCompletedByWorker: 3,
		lifecycle.StatusResolved:          4,
	}

	prev := rank[rec.issue.Status]
	for _, step := range steps {
		got, err := runTransition(context.Background(), rec, testIssueID, step, fastPolicy())
		require.NoError(t, err, "target %s", step.Target)
		require.GreaterOrEqual(t, rank[got.Status], prev)
		prev = rank[got.Status]
	}

	assert.NotNil(t, rec.issue.CompletedAt)
	require.NotNil(t, rec.issue.AfterImageURL)
	assert.Equal(t, "https://storage.example/after.jpg", *rec.issue.AfterImageURL)
}

type voteKey struct{ issue, user primitive.ObjectID }

// fakeVotes is an in-memory voteRecords. beforeDelete simulates a concurrent
// un-vote racing our delete.
type fakeVotes struct {
	votes        map[voteKey]bool
	count        int64
	beforeDelete func(f *fakeVotes)
}

func newFakeVotes() *fakeVotes { return &fakeVotes{votes: map[voteKey]bool{}} }

func (f *fakeVotes) InsertVote(ctx context.Context, vote models.Vote) error {
	k := voteKey{vote.Issue, vote.User}
	if f.votes[k] {
		return errDuplicateVote
	}
	f.votes[k] = true
	return nil
}

func (f *fakeVotes) DeleteVote(ctx context.Context, issueID, userID primitive.ObjectID) (int64, error) {
	if f.beforeDelete != nil {
		hook := f.beforeDelete
		f.beforeDelete = nil
		hook(f)
	}
	k := voteKey{issueID, userID}
	if !f.votes[k] {
		return 0, nil
	}
	delete(f.votes, k)
	return 1, nil
}

func (f *fakeVotes) IncVotes(ctx context.Context, issueID primitive.ObjectID, delta int64) (int64, error) {
	f.count += delta
	return f.count, nil
}

// TestRunToggleNetZeroOverTwoCalls: vote, unvote, vote again. Each pair of
// toggles must leave the counter exactly where it started.
func TestRunToggleNetZeroOverTwoCalls(t *testing.T) {
	rec := newFakeVotes()
	userID := primitive.NewObjectID()
	now := time.Now()

	voted, count, err := runToggle(context.Background(), rec, testIssueID, userID, now)
	require.NoError(t, err)
	assert.True(t, voted)
	assert.Equal(t, int64(1), count)

	voted, count, err = runToggle(context.Background(), rec, testIssueID, userID, now)
	require.NoError(t, err)
	assert.False(t, voted)
	assert.Equal(t, int64(0), count, "two toggles are net zero")

	voted, count, err = runToggle(context.Background(), rec, testIssueID, userID, now)
	require.NoError(t, err)
	assert.True(t, voted)
	assert.Equal(t, int64(1), count)
}

func TestRunToggleCountsEachUserOnce(t *testing.T) {
	rec := newFakeVotes()
	now := time.Now()

	_, count, err := runToggle(context.Background(), rec, testIssueID, primitive.NewObjectID(), now)
	require.NoError(t, err)
	assert.Equal(t, int64(1), count)

	_, count, err = runToggle(context.Background(), rec, testIssueID, primitive.NewObjectID(), now)
	require.NoError(t, err)
	assert.Equal(t, int64(2), count)
}

// TestRunToggleConcurrentUnvoteSkipsDecrement: two un-votes from the same
// user race. Both take the already-voted branch, but only one delete removes
// the document; the loser must not decrement again or volunteersCount drifts
// below the real vote count.
func TestRunToggleConcurrentUnvoteSkipsDecrement(t *testing.T) {
	rec := newFakeVotes()
	userID := primitive.NewObjectID()
	now := time.Now()

	_, _, err := runToggle(context.Background(), rec, testIssueID, userID, now)
	require.NoError(t, err)

	// The other request deletes the vote and applies its decrement first.
	rec.beforeDelete = func(f *fakeVotes) {
		delete(f.votes, voteKey{testIssueID, userID})
		f.count--
	}

	voted, count, err := runToggle(context.Background(), rec, testIssueID, userID, now)
	require.NoError(t, err)
	assert.False(t, voted)
	assert.Equal(t, int64(0), count, "lost delete must not decrement again")
}
