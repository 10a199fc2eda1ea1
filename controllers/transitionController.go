package controllers

import (
	"context"
	"net/http"
	"time"

	"urbancare-be/lifecycle"
	"urbancare-be/models"

	"github.com/gin-gonic/gin"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

// TransitionIssue moves an issue along its lifecycle. The body names the
// target status plus whatever the edge needs: worker and department for
// assignment, the after image for completion, a note for rejection.
func TransitionIssue(c *gin.Context) {
	idParam := c.Param("id")
	issueID, err := primitive.ObjectIDFromHex(idParam)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid issue ID"})
		return
	}

	actor, _, ok := actorFromContext(c)
	if !ok {
		return
	}

	var input struct {
		Target        string `json:"target" binding:"required"`
		Worker        string `json:"worker,omitempty"`
		Department    string `json:"department,omitempty"`
		AfterImageURL string `json:"afterImageUrl,omitempty"`
		Note          string `json:"note,omitempty"`
	}

	if err := c.ShouldBindJSON(&input); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	target, err := lifecycle.ParseStatus(input.Target)
	if err != nil {
		respondLifecycleError(c, err)
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	issue, err := issueStore.Transition(ctx, issueID, lifecycle.TransitionRequest{
		Target:        target,
		Actor:         actor,
		Worker:        input.Worker,
		Department:    input.Department,
		AfterImageURL: input.AfterImageURL,
		Note:          input.Note,
	})
	if err != nil {
		respondLifecycleError(c, err)
		return
	}

	viewerID, _ := primitive.ObjectIDFromHex(actor.ID)
	c.JSON(http.StatusOK, issueView(ctx, *issue, &viewerID))
}

// SetIssueUrgency lets an authority pin or clear an explicit urgency. An
// empty urgency returns the issue to derived priority.
func SetIssueUrgency(c *gin.Context) {
	idParam := c.Param("id")
	issueID, err := primitive.ObjectIDFromHex(idParam)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid issue ID"})
		return
	}

	if _, _, ok := actorFromContext(c); !ok {
		return
	}

	var input struct {
		Urgency string `json:"urgency"`
	}
	if err := c.ShouldBindJSON(&input); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	var urgency lifecycle.Urgency
	if input.Urgency != "" {
		urgency, err = lifecycle.ParseUrgency(input.Urgency)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid urgency"})
			return
		}
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := issueStore.SetUrgency(ctx, issueID, urgency); err != nil {
		respondLifecycleError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"message": "Urgency updated", "urgency": urgency})
}

// AddInternalNote appends an authority-only note to an issue.
func AddInternalNote(c *gin.Context) {
	idParam := c.Param("id")
	issueID, err := primitive.ObjectIDFromHex(idParam)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid issue ID"})
		return
	}

	_, authorID, ok := actorFromContext(c)
	if !ok {
		return
	}

	var input struct {
		Text string `json:"text" binding:"required,max=1000"`
	}
	if err := c.ShouldBindJSON(&input); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	note := models.InternalNote{
		Author:    authorID,
		Text:      input.Text,
		CreatedAt: time.Now(),
	}
	if err := issueStore.AddInternalNote(ctx, issueID, note); err != nil {
		respondLifecycleError(c, err)
		return
	}

	c.JSON(http.StatusCreated, note)
}

// GetInternalNotes lists an issue's authority-only notes.
func GetInternalNotes(c *gin.Context) {
	idParam := c.Param("id")
	issueID, err := primitive.ObjectIDFromHex(idParam)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid issue ID"})
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	issue, err := issueStore.Get(ctx, issueID)
	if err != nil {
		respondLifecycleError(c, err)
		return
	}

	notes := issue.InternalNotes
	if notes == nil {
		notes = []models.InternalNote{}
	}
	c.JSON(http.StatusOK, notes)
}
