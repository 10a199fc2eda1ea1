package routes

import (
	"urbancare-be/controllers"
	"urbancare-be/lifecycle"
	"urbancare-be/middlewares"

	"github.com/gin-gonic/gin"
)

// IssueRoutes sets up the issue routes
func IssueRoutes(r *gin.Engine) {
	issue := r.Group("/api/issue")
	{
		// Public reads; a token, when present, marks the caller's votes.
		issue.GET("", middlewares.OptionalAuthMiddleware(), controllers.GetAllIssues)
		issue.GET("/recent", controllers.RecentIssues)
		issue.GET("/analytics", controllers.GetIssueAnalytics)
		issue.GET("/mine", middlewares.AuthMiddleware(), controllers.GetIssuesByUser)
		issue.GET("/:id", middlewares.OptionalAuthMiddleware(), controllers.GetIssue)
		issue.GET("/:id/comments", controllers.GetComments)

		issue.POST("/create", middlewares.AuthMiddleware(), middlewares.IssueRateLimiter(5), controllers.CreateIssue)
		issue.PUT("/:id", middlewares.AuthMiddleware(), controllers.UpdateIssue)
		issue.POST("/:id/vote", middlewares.AuthMiddleware(), controllers.HandleVoteOnIssue)
		issue.POST("/:id/comments", middlewares.AuthMiddleware(), controllers.AddComment)

		// Lifecycle transitions; the engine enforces the per-edge role rules.
		issue.POST("/:id/transition", middlewares.AuthMiddleware(), controllers.TransitionIssue)

		// Authority-only triage surface.
		authority := issue.Group("", middlewares.AuthMiddleware(), middlewares.RequireRole(lifecycle.RoleAuthority))
		{
			authority.PUT("/:id/urgency", controllers.SetIssueUrgency)
			authority.POST("/:id/notes", controllers.AddInternalNote)
			authority.GET("/:id/notes", controllers.GetInternalNotes)
		}
	}
}
