package router

import (
	"github.com/fasthttp/router"
	"github.com/valyala/fasthttp"

	apiHandler "github.com/fastygo/taskboard/api/handler"
)

type Handlers struct {
	Auth    *apiHandler.AuthHandler
	Profile *apiHandler.ProfileHandler
	Board   *apiHandler.BoardHandler
	Health  *apiHandler.HealthHandler
}

func New(handlers Handlers, authMiddleware func(fasthttp.RequestHandler) fasthttp.RequestHandler) *router.Router {
	r := router.New()

	r.GET("/health", handlers.Health.Check)

	api := r.Group("/api/v1")

	// Auth routes
	api.POST("/auth/register", handlers.Auth.Register)
	api.POST("/auth/login", handlers.Auth.Login)
	api.POST("/auth/oauth/{provider}", handlers.Auth.OAuth)
	api.POST("/auth/logout", authMiddleware(handlers.Auth.Logout))
	api.POST("/auth/reauthenticate", authMiddleware(handlers.Profile.Reauthenticate))
	api.POST("/auth/password", authMiddleware(handlers.Profile.ChangePassword))

	// Protected routes
	api.GET("/profile", authMiddleware(handlers.Profile.GetProfile))
	api.PUT("/profile", authMiddleware(handlers.Profile.UpdateProfile))

	b := handlers.Board
	api.GET("/board", authMiddleware(b.GetBoard))
	api.POST("/board/drag", authMiddleware(b.Drag))
	api.POST("/board/drop", authMiddleware(b.Drop))
	api.GET("/board/review/candidates", authMiddleware(b.ReviewerCandidates))
	api.POST("/board/review/confirm", authMiddleware(b.ConfirmReviewer))
	api.POST("/board/review/cancel", authMiddleware(b.CancelReviewer))
	api.GET("/board/blocked/candidates", authMiddleware(b.BlockerCandidates))
	api.POST("/board/blocked/confirm", authMiddleware(b.ConfirmBlocker))
	api.POST("/board/blocked/cancel", authMiddleware(b.CancelBlocker))
	api.POST("/board/approval/confirm", authMiddleware(b.ConfirmApproval))
	api.POST("/board/approval/cancel", authMiddleware(b.CancelApproval))
	api.POST("/board/tasks", authMiddleware(b.CreateTask))
	api.GET("/board/tasks/{id}", authMiddleware(b.GetTask))
	api.PUT("/board/tasks/{id}", authMiddleware(b.UpdateTask))
	api.DELETE("/board/tasks/{id}", authMiddleware(b.DeleteTask))
	api.POST("/board/tasks/{id}/approve", authMiddleware(b.RequestApproval))

	api.GET("/notifications", authMiddleware(b.Notifications))
	api.POST("/notifications/{id}/read", authMiddleware(b.MarkAsRead))
	api.DELETE("/notifications", authMiddleware(b.ClearNotifications))

	return r
}
