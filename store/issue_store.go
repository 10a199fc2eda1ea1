// Package store persists issues in MongoDB and owns the write paths the
// lifecycle engine depends on: the compare-and-swap transition, the vote
// toggle, and the comment counter.
package store

import (
	"context"
	"errors"
	"time"

	"urbancare-be/config"
	"urbancare-be/lifecycle"
	"urbancare-be/models"

	"github.com/cenkalti/backoff/v4"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// errConcurrentTransition marks a lost compare-and-swap: another actor moved
// the issue between our read and write. The retry loop re-reads and re-runs
// the engine against the fresh status.
var errConcurrentTransition = errors.New("issue status changed concurrently")

type IssueStore struct {
	issues   *mongo.Collection
	votes    *mongo.Collection
	comments *mongo.Collection
	users    *mongo.Collection
}

func NewIssueStore() *IssueStore {
	return &IssueStore{
		issues:   config.GetCollection("issues"),
		votes:    config.GetCollection("votes"),
		comments: config.GetCollection("comments"),
		users:    config.GetCollection("users"),
	}
}

// classify maps driver errors onto the engine's taxonomy.
func classify(err error, issueID string) error {
	if errors.Is(err, mongo.ErrNoDocuments) {
		return &lifecycle.NotFoundError{ID: issueID}
	}
	return &lifecycle.TransientError{Err: err}
}

// Get loads one issue.
func (s *IssueStore) Get(ctx context.Context, id primitive.ObjectID) (*models.Issue, error) {
	var issue models.Issue
	if err := s.issues.FindOne(ctx, bson.M{"_id": id}).Decode(&issue); err != nil {
		return nil, classify(err, id.Hex())
	}
	return &issue, nil
}

// issueRecords is the slice of the store the transition loop needs: a point
// read and a compare-and-swap write keyed on the status the engine computed
// against.
type issueRecords interface {
	Load(ctx context.Context, id primitive.ObjectID) (*models.Issue, error)
	// Swap persists the changeset iff the record's status still equals from.
	// It returns false when another writer moved the status first.
	Swap(ctx context.Context, id primitive.ObjectID, from lifecycle.Status, cs lifecycle.Changeset, req lifecycle.TransitionRequest) (bool, error)
}

// runTransition is the read-evaluate-swap loop. Lost swaps and transient
// store failures go around again under the backoff policy; engine rejections
// abort immediately.
func runTransition(ctx context.Context, rec issueRecords, id primitive.ObjectID, req lifecycle.TransitionRequest, policy backoff.BackOff) (*models.Issue, error) {
	var result *models.Issue

	op := func() error {
		issue, err := rec.Load(ctx, id)
		if err != nil {
			if lifecycle.IsTransient(err) {
				return err
			}
			return backoff.Permanent(err)
		}

		cs, err := lifecycle.Transition(issue.LifecycleState(), req, time.Now())
		if err != nil {
			return backoff.Permanent(err)
		}
		if cs.NoOp {
			result = issue
			return nil
		}

		swapped, err := rec.Swap(ctx, id, issue.Status, cs, req)
		if err != nil {
			if lifecycle.IsTransient(err) {
				return err
			}
			return backoff.Permanent(err)
		}
		if !swapped {
			return &lifecycle.TransientError{Err: errConcurrentTransition}
		}

		result, err = rec.Load(ctx, id)
		return err
	}

	if err := backoff.Retry(op, backoff.WithContext(policy, ctx)); err != nil {
		return nil, err
	}
	return result, nil
}

// Transition runs the lifecycle engine against the current record and
// persists the resulting changeset with a compare-and-swap on
// (id, expected status).
func (s *IssueStore) Transition(ctx context.Context, id primitive.ObjectID, req lifecycle.TransitionRequest) (*models.Issue, error) {
	policy := backoff.WithMaxRetries(backoff.NewExponentialBackOff(), 4)
	return runTransition(ctx, s, id, req, policy)
}

// Load implements issueRecords.
func (s *IssueStore) Load(ctx context.Context, id primitive.ObjectID) (*models.Issue, error) {
	return s.Get(ctx, id)
}

// Swap implements issueRecords against Mongo: the filter pins the status the
// engine evaluated, so a concurrent transition shows up as MatchedCount zero
// instead of a lost update.
func (s *IssueStore) Swap(ctx context.Context, id primitive.ObjectID, from lifecycle.Status, cs lifecycle.Changeset, req lifecycle.TransitionRequest) (bool, error) {
	update, err := s.buildUpdate(ctx, cs, req)
	if err != nil {
		return false, err
	}

	res, err := s.issues.UpdateOne(ctx, bson.M{"_id": id, "status": from}, update)
	if err != nil {
		return false, &lifecycle.TransientError{Err: err}
	}
	return res.MatchedCount > 0, nil
}

// buildUpdate converts an engine changeset into a Mongo update document,
// validating the assignment target against the users collection.
func (s *IssueStore) buildUpdate(ctx context.Context, cs lifecycle.Changeset, req lifecycle.TransitionRequest) (bson.M, error) {
	set := bson.M{
		"status":    cs.Status,
		"updatedAt": cs.UpdatedAt,
	}

	if cs.AssignedTo != nil {
		workerID, err := primitive.ObjectIDFromHex(*cs.AssignedTo)
		if err != nil {
			return nil, &lifecycle.ValidationError{Reason: "invalid worker id"}
		}
		var worker models.User
		err = s.users.FindOne(ctx, bson.M{"_id": workerID, "role": lifecycle.RoleWorker}).Decode(&worker)
		if err != nil {
			if errors.Is(err, mongo.ErrNoDocuments) {
				return nil, &lifecycle.ValidationError{Reason: "assignee is not a known worker"}
			}
			return nil, &lifecycle.TransientError{Err: err}
		}
		set["assignedTo"] = workerID
		if cs.Department == nil && worker.Department != "" {
			set["department"] = worker.Department
		}
	}
	if cs.Department != nil {
		set["department"] = *cs.Department
	}
	if cs.AssignedAt != nil {
		set["assignedAt"] = *cs.AssignedAt
	}
	if cs.CompletedAt != nil {
		set["completedAt"] = *cs.CompletedAt
	}
	if cs.AfterImageURL != nil {
		set["afterImageUrl"] = *cs.AfterImageURL
	}

	update := bson.M{"$set": set}

	if cs.RejectionNote != nil {
		author, err := primitive.ObjectIDFromHex(req.Actor.ID)
		if err != nil {
			return nil, &lifecycle.ValidationError{Reason: "invalid actor id"}
		}
		update["$push"] = bson.M{"internalNotes": models.InternalNote{
			Author:    author,
			Text:      *cs.RejectionNote,
			CreatedAt: cs.UpdatedAt,
		}}
	}

	return update, nil
}

// errDuplicateVote marks an insert that hit the unique (issue, user) index:
// the caller had already voted.
var errDuplicateVote = errors.New("vote already recorded")

// voteRecords is the slice of the store the vote toggle needs: the vote
// relation writes plus the atomic counter bump.
type voteRecords interface {
	InsertVote(ctx context.Context, vote models.Vote) error
	// DeleteVote removes the caller's vote and reports how many documents
	// actually went away.
	DeleteVote(ctx context.Context, issueID, userID primitive.ObjectID) (int64, error)
	// IncVotes bumps volunteersCount by delta and returns the new value.
	IncVotes(ctx context.Context, issueID primitive.ObjectID, delta int64) (int64, error)
}

// runToggle flips the caller's vote. The unique index turns a concurrent
// double-vote into errDuplicateVote instead of a double count, and a delete
// that removed nothing (a concurrent un-vote got there first) skips the
// decrement so volunteersCount cannot drift below the real vote count.
func runToggle(ctx context.Context, rec voteRecords, issueID, userID primitive.ObjectID, now time.Time) (bool, int64, error) {
	vote := models.Vote{
		ID:        primitive.NewObjectID(),
		Issue:     issueID,
		User:      userID,
		CreatedAt: now,
	}

	var voted bool
	var delta int64
	switch err := rec.InsertVote(ctx, vote); {
	case err == nil:
		voted, delta = true, 1
	case errors.Is(err, errDuplicateVote):
		deleted, derr := rec.DeleteVote(ctx, issueID, userID)
		if derr != nil {
			return false, 0, derr
		}
		if deleted > 0 {
			delta = -1
		}
	default:
		return false, 0, err
	}

	count, err := rec.IncVotes(ctx, issueID, delta)
	if err != nil {
		return voted, 0, err
	}
	return voted, count, nil
}

// ToggleUpvote flips the caller's vote on an issue and returns the new state:
// vote if not voted, unvote if already voted. Two calls are net zero.
func (s *IssueStore) ToggleUpvote(ctx context.Context, issueID, userID primitive.ObjectID) (bool, int64, error) {
	if _, err := s.Get(ctx, issueID); err != nil {
		return false, 0, err
	}
	return runToggle(ctx, s, issueID, userID, time.Now())
}

// InsertVote implements voteRecords.
func (s *IssueStore) InsertVote(ctx context.Context, vote models.Vote) error {
	_, err := s.votes.InsertOne(ctx, vote)
	switch {
	case err == nil:
		return nil
	case mongo.IsDuplicateKeyError(err):
		return errDuplicateVote
	default:
		return &lifecycle.TransientError{Err: err}
	}
}

// DeleteVote implements voteRecords.
func (s *IssueStore) DeleteVote(ctx context.Context, issueID, userID primitive.ObjectID) (int64, error) {
	res, err := s.votes.DeleteOne(ctx, bson.M{"issue": issueID, "user": userID})
	if err != nil {
		return 0, &lifecycle.TransientError{Err: err}
	}
	return res.DeletedCount, nil
}

// IncVotes implements voteRecords.
func (s *IssueStore) IncVotes(ctx context.Context, issueID primitive.ObjectID, delta int64) (int64, error) {
	var updated models.Issue
	after := options.After
	err := s.issues.FindOneAndUpdate(ctx,
		bson.M{"_id": issueID},
		bson.M{"$inc": bson.M{"volunteersCount": delta}},
		options.FindOneAndUpdate().SetReturnDocument(after),
	).Decode(&updated)
	if err != nil {
		return 0, classify(err, issueID.Hex())
	}
	return updated.VolunteersCount, nil
}

// AddComment stores the comment and bumps commentsCount atomically.
func (s *IssueStore) AddComment(ctx context.Context, comment models.Comment) (int64, error) {
	if _, err := s.Get(ctx, comment.Issue); err != nil {
		return 0, err
	}

	if _, err := s.comments.InsertOne(ctx, comment); err != nil {
		return 0, &lifecycle.TransientError{Err: err}
	}

	var updated models.Issue
	after := options.After
	err := s.issues.FindOneAndUpdate(ctx,
		bson.M{"_id": comment.Issue},
		bson.M{"$inc": bson.M{"commentsCount": 1}},
		options.FindOneAndUpdate().SetReturnDocument(after),
	).Decode(&updated)
	if err != nil {
		return 0, classify(err, comment.Issue.Hex())
	}
	return updated.CommentsCount, nil
}

// ListComments returns an issue's comment thread, oldest first.
func (s *IssueStore) ListComments(ctx context.Context, issueID primitive.ObjectID) ([]models.Comment, error) {
	cursor, err := s.comments.Find(ctx, bson.M{"issue": issueID},
		options.Find().SetSort(bson.D{{Key: "createdAt", Value: 1}}))
	if err != nil {
		return nil, &lifecycle.TransientError{Err: err}
	}
	defer cursor.Close(ctx)

	comments := []models.Comment{}
	if err := cursor.All(ctx, &comments); err != nil {
		return nil, &lifecycle.TransientError{Err: err}
	}
	return comments, nil
}

// AddInternalNote appends an authority-only note.
func (s *IssueStore) AddInternalNote(ctx context.Context, issueID primitive.ObjectID, note models.InternalNote) error {
	res, err := s.issues.UpdateOne(ctx,
		bson.M{"_id": issueID},
		bson.M{"$push": bson.M{"internalNotes": note}},
	)
	if err != nil {
		return &lifecycle.TransientError{Err: err}
	}
	if res.MatchedCount == 0 {
		return &lifecycle.NotFoundError{ID: issueID.Hex()}
	}
	return nil
}

// SetUrgency records an explicit authority override; an empty urgency clears
// it so derivation takes over again.
func (s *IssueStore) SetUrgency(ctx context.Context, issueID primitive.ObjectID, urgency lifecycle.Urgency) error {
	update := bson.M{"$set": bson.M{"urgency": urgency, "updatedAt": time.Now()}}
	if urgency == "" {
		update = bson.M{
			"$unset": bson.M{"urgency": ""},
			"$set":   bson.M{"updatedAt": time.Now()},
		}
	}
	res, err := s.issues.UpdateOne(ctx, bson.M{"_id": issueID}, update)
	if err != nil {
		return &lifecycle.TransientError{Err: err}
	}
	if res.MatchedCount == 0 {
		return &lifecycle.NotFoundError{ID: issueID.Hex()}
	}
	return nil
}

// FindByAssignee returns the open issues assigned to one worker, for the task
// board.
func (s *IssueStore) FindByAssignee(ctx context.Context, workerID primitive.ObjectID) ([]models.Issue, error) {
	filter := bson.M{
		"assignedTo": workerID,
		"status": bson.M{"$in": []lifecycle.Status{
			lifecycle.StatusAssigned,
			lifecycle.StatusInProgress,
			lifecycle.StatusCompletedByWorker,
		}},
	}
	cursor, err := s.issues.Find(ctx, filter,
		options.Find().SetSort(bson.D{{Key: "assignedAt", Value: 1}}))
	if err != nil {
		return nil, &lifecycle.TransientError{Err: err}
	}
	defer cursor.Close(ctx)

	issues := []models.Issue{}
	if err := cursor.All(ctx, &issues); err != nil {
		return nil, &lifecycle.TransientError{Err: err}
	}
	return issues, nil
}
