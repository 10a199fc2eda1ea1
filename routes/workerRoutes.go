package routes

import (
	"urbancare-be/controllers"
	"urbancare-be/lifecycle"
	"urbancare-be/middlewares"

	"github.com/gin-gonic/gin"
)

// WorkerRoutes sets up the field-worker task board routes
func WorkerRoutes(r *gin.Engine) {
	worker := r.Group("/api/worker",
		middlewares.AuthMiddleware(),
		middlewares.RequireRole(lifecycle.RoleWorker, lifecycle.RoleAuthority))
	{
		worker.GET("/tasks", controllers.GetWorkerTasks)
		worker.PUT("/issue/:id/notes", controllers.UpdateWorkerNotes)
	}
}
