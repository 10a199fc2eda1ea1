package models

import (
	"time"
	"unicode/utf8"

	"urbancare-be/lifecycle"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// InternalNote is an authority-only annotation. Notes are append-only.
type InternalNote struct {
	Author    primitive.ObjectID `bson:"author" json:"author"`
	Text      string             `bson:"text" json:"text"`
	CreatedAt time.Time          `bson:"createdAt" json:"createdAt"`
}

// Issue represents a civic issue reported by a citizen. Urgency holds only an
// explicit authority override; the displayed urgency is derived on read.
type Issue struct {
	ID          primitive.ObjectID `bson:"_id,omitempty" json:"id"`
	Title       string             `bson:"title" json:"title"`
	Description string             `bson:"description" json:"description"`
	Category    lifecycle.Category `bson:"category" json:"category"`
	Location    string             `bson:"location" json:"location"`
	Latitude    *float64           `bson:"latitude,omitempty" json:"latitude,omitempty"`
	Longitude   *float64           `bson:"longitude,omitempty" json:"longitude,omitempty"`

	ImageURL      *string `bson:"imageUrl,omitempty" json:"imageUrl,omitempty"`
	AfterImageURL *string `bson:"afterImageUrl,omitempty" json:"afterImageUrl,omitempty"`
	VoiceNoteURL  *string `bson:"voiceNoteUrl,omitempty" json:"voiceNoteUrl,omitempty"`

	Status  lifecycle.Status  `bson:"status" json:"status"`
	Urgency lifecycle.Urgency `bson:"urgency,omitempty" json:"urgency,omitempty"`

	CreatedBy  primitive.ObjectID  `bson:"createdBy" json:"createdBy"`
	AssignedTo *primitive.ObjectID `bson:"assignedTo,omitempty" json:"assignedTo,omitempty"`
	Department *string             `bson:"department,omitempty" json:"department,omitempty"`

	WorkerNotes   string         `bson:"workerNotes,omitempty" json:"workerNotes,omitempty"`
	InternalNotes []InternalNote `bson:"internalNotes,omitempty" json:"-"`

	CommentsCount   int64 `bson:"commentsCount" json:"commentsCount"`
	VolunteersCount int64 `bson:"volunteersCount" json:"volunteersCount"`

	CreatedAt   time.Time  `bson:"createdAt" json:"createdAt"`
	UpdatedAt   time.Time  `bson:"updatedAt" json:"updatedAt"`
	AssignedAt  *time.Time `bson:"assignedAt,omitempty" json:"assignedAt,omitempty"`
	CompletedAt *time.Time `bson:"completedAt,omitempty" json:"completedAt,omitempty"`
}

// DeriveTitle falls back to a prefix of the description when the reporter
// left the title empty. Truncation lands on a rune boundary so a multi-byte
// character at the cutoff never yields invalid UTF-8.
func DeriveTitle(title, description string) string {
	if title != "" {
		return title
	}
	const max = 80
	if utf8.RuneCountInString(description) <= max {
		return description
	}
	return string([]rune(description)[:max])
}

// LifecycleState projects the fields the transition engine evaluates.
func (i *Issue) LifecycleState() lifecycle.IssueState {
	state := lifecycle.IssueState{
		ID:        i.ID.Hex(),
		Status:    i.Status,
		CreatedBy: i.CreatedBy.Hex(),
	}
	if i.AssignedTo != nil {
		state.AssignedTo = i.AssignedTo.Hex()
	}
	if i.AfterImageURL != nil {
		state.AfterImageURL = *i.AfterImageURL
	}
	return state
}

// DerivedUrgency computes the display urgency for this issue at the given
// time. Terminal issues anchor on the time they were resolved or closed, so
// an issue that escalated while open keeps that urgency in historical views.
func (i *Issue) DerivedUrgency(now time.Time, cfg lifecycle.EscalationConfig) lifecycle.Urgency {
	var resolvedAt time.Time
	if i.Status.Terminal() {
		resolvedAt = i.UpdatedAt
		if resolvedAt.IsZero() && i.CompletedAt != nil {
			resolvedAt = *i.CompletedAt
		}
	}
	return lifecycle.DerivePriority(i.Category, i.CreatedAt, i.Urgency, i.Status, resolvedAt, now, cfg)
}

// TaskSource adapts the issue for the worker-task projection.
func (i *Issue) TaskSource() lifecycle.TaskSource {
	src := lifecycle.TaskSource{
		ID:        i.ID.Hex(),
		Title:     i.Title,
		Category:  i.Category,
		Location:  i.Location,
		Status:    i.Status,
		CreatedAt: i.CreatedAt,
		Explicit:  i.Urgency,
	}
	if i.AssignedAt != nil {
		src.AssignedAt = *i.AssignedAt
	}
	return src
}
