package controllers

import (
	"errors"
	"net/http"
	"os"
	"strconv"
	"time"

	"urbancare-be/config"
	"urbancare-be/lifecycle"
	"urbancare-be/store"

	"github.com/gin-gonic/gin"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
)

var issueCollection *mongo.Collection = config.GetCollection("issues")
var voteCollection *mongo.Collection = config.GetCollection("votes")
var userCollection *mongo.Collection = config.GetCollection("users")

var issueStore = store.NewIssueStore()

// escalationConfig reads the urgency escalation knobs. The escalation rule is
// optional behavior: deployments that want flat category urgencies set
// URGENCY_ESCALATION=off.
func escalationConfig() lifecycle.EscalationConfig {
	cfg := lifecycle.DefaultEscalation
	if os.Getenv("URGENCY_ESCALATION") == "off" {
		cfg.Enabled = false
	}
	if raw := os.Getenv("URGENCY_ESCALATION_DAYS"); raw != "" {
		if days, err := strconv.Atoi(raw); err == nil && days > 0 {
			cfg.Period = time.Duration(days) * 24 * time.Hour
		}
	}
	return cfg
}

// actorFromContext builds the lifecycle actor from the claims the auth
// middleware stored.
func actorFromContext(c *gin.Context) (lifecycle.Actor, primitive.ObjectID, bool) {
	userID, exists := c.Get("user_id")
	if !exists {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "User not authenticated"})
		return lifecycle.Actor{}, primitive.NilObjectID, false
	}
	objID, err := primitive.ObjectIDFromHex(userID.(string))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid user ID"})
		return lifecycle.Actor{}, primitive.NilObjectID, false
	}

	role := lifecycle.RoleCitizen
	if rawRole, ok := c.Get("role"); ok {
		if parsed, err := lifecycle.ParseRole(rawRole.(string)); err == nil {
			role = parsed
		}
	}

	return lifecycle.Actor{ID: objID.Hex(), Role: role}, objID, true
}

// respondLifecycleError maps the engine's error taxonomy onto HTTP statuses.
// Rejected transitions carry the current and requested states verbatim so the
// UI can explain why, not just fail.
func respondLifecycleError(c *gin.Context, err error) {
	var verr *lifecycle.ValidationError
	var uerr *lifecycle.UnauthorizedError
	var terr *lifecycle.InvalidTransitionError
	var nerr *lifecycle.NotFoundError

	switch {
	case errors.As(err, &verr):
		c.JSON(http.StatusBadRequest, gin.H{"error": verr.Error()})
	case errors.As(err, &uerr):
		c.JSON(http.StatusForbidden, gin.H{"error": uerr.Error()})
	case errors.As(err, &terr):
		c.JSON(http.StatusConflict, gin.H{
			"error":     terr.Error(),
			"current":   terr.From,
			"requested": terr.To,
		})
	case errors.As(err, &nerr):
		c.JSON(http.StatusNotFound, gin.H{"error": "Issue not found"})
	case lifecycle.IsTransient(err):
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "Temporary failure, please retry", "retryable": true})
	default:
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Something went wrong"})
	}
}
