package controllers

import (
	"context"
	"net/http"
	"time"

	"urbancare-be/models"

	"github.com/gin-gonic/gin"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

// AddComment posts a comment on an issue. commentsCount on the issue moves by
// exactly one per successful post.
func AddComment(c *gin.Context) {
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

	comment := models.Comment{
		ID:        primitive.NewObjectID(),
		Issue:     issueID,
		Author:    authorID,
		Text:      input.Text,
		CreatedAt: time.Now(),
	}

	count, err := issueStore.AddComment(ctx, comment)
	if err != nil {
		respondLifecycleError(c, err)
		return
	}

	c.JSON(http.StatusCreated, gin.H{
		"comment":       comment,
		"commentsCount": count,
	})
}

// GetComments returns an issue's comment thread, oldest first.
func GetComments(c *gin.Context) {
	idParam := c.Param("id")
	issueID, err := primitive.ObjectIDFromHex(idParam)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid issue ID"})
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	comments, err := issueStore.ListComments(ctx, issueID)
	if err != nil {
		respondLifecycleError(c, err)
		return
	}

	c.JSON(http.StatusOK, comments)
}
