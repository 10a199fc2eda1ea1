package controllers

import (
	"context"
	"net/http"
	"time"

	"urbancare-be/lifecycle"

	"github.com/gin-gonic/gin"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

// GetWorkerTasks returns the calling worker's open task board: each assigned
// issue projected with its estimated duration and SLA schedule.
func GetWorkerTasks(c *gin.Context) {
	_, workerID, ok := actorFromContext(c)
	if !ok {
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	issues, err := issueStore.FindByAssignee(ctx, workerID)
	if err != nil {
		respondLifecycleError(c, err)
		return
	}

	now := time.Now()
	cfg := escalationConfig()

	tasks := make([]lifecycle.WorkerTask, 0, len(issues))
	for _, issue := range issues {
		tasks = append(tasks, lifecycle.BuildWorkerTask(issue.TaskSource(), now, cfg))
	}

	c.JSON(http.StatusOK, gin.H{"tasks": tasks, "total": len(tasks)})
}

// UpdateWorkerNotes lets the assigned worker record field notes on an issue
// without changing its status. The notes are a single scratchpad the worker
// resubmits whole, so each write replaces the previous text; the append-only
// channel is internal notes.
func UpdateWorkerNotes(c *gin.Context) {
	idParam := c.Param("id")
	issueID, err := primitive.ObjectIDFromHex(idParam)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid issue ID"})
		return
	}

	_, workerID, ok := actorFromContext(c)
	if !ok {
		return
	}

	var input struct {
		Notes string `json:"notes" binding:"required,max=2000"`
	}
	if err := c.ShouldBindJSON(&input); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	// Only the assigned worker may write field notes.
	res, err := issueCollection.UpdateOne(ctx,
		bson.M{"_id": issueID, "assignedTo": workerID},
		bson.M{"$set": bson.M{"workerNotes": input.Notes, "updatedAt": time.Now()}})
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to update notes"})
		return
	}
	if res.MatchedCount == 0 {
		c.JSON(http.StatusForbidden, gin.H{"error": "Issue is not assigned to you"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"message": "Notes updated"})
}
