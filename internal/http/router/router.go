package router

import (
	"github.com/gin-gonic/gin"

	"github.com/assistmate/assistmate-backend/internal/config"
	"github.com/assistmate/assistmate-backend/internal/http/handlers"
	"github.com/assistmate/assistmate-backend/internal/http/middleware"
	"github.com/assistmate/assistmate-backend/internal/service"
)

// SetupRouter собирает все маршруты приложения.
func SetupRouter(
	cfg *config.Config,
	verifier *service.TokenVerifier,
	users *service.UserService,
	requests *service.RequestService,
	requestHandler *handlers.RequestHandler,
	notificationHandler *handlers.NotificationHandler,
	userHandler *handlers.UserHandler,
	chatHandler *handlers.ChatHandler,
	wsHandler *handlers.WSHandler,
	healthHandler *handlers.HealthHandler,
) *gin.Engine {
	if cfg.Env == "production" {
		gin.SetMode(gin.ReleaseMode)
	}

	r := gin.Default()
	r.Use(middleware.ErrorHandler(cfg.Env))
	r.Use(middleware.CORSMiddleware(cfg.AllowedOrigins))
	r.Use(middleware.RateLimitMiddleware(cfg.RateLimitLimit, cfg.RateLimitPeriod, cfg.RedisURL))

	r.GET("/health", healthHandler.Health)

	api := r.Group("/api")
	api.Use(middleware.AuthMiddleware(verifier, users))
	{
		api.GET("/ws", wsHandler.Handle)

		api.POST("/requests", requestHandler.CreateRequest)
		api.GET("/requests", requestHandler.ListRequests)
		api.GET("/requests/near", requestHandler.NearbyRequests)
		api.GET("/requests/top", requestHandler.TopRequests)
		api.GET("/requests/:id", middleware.UUIDValidator("id"), requestHandler.GetRequest)
		api.PATCH("/requests/:id",
			middleware.UUIDValidator("id"),
			middleware.RequestOwnership(requests, middleware.OwnershipUser),
			requestHandler.UpdateRequest)
		api.PATCH("/requests/:id/:action", middleware.UUIDValidator("id"), requestHandler.ActOnRequest)
		api.DELETE("/requests/:id",
			middleware.UUIDValidator("id"),
			middleware.RequestOwnership(requests, middleware.OwnershipUser),
			requestHandler.DeleteRequest)

		api.GET("/notifications", notificationHandler.ListNotifications)
		api.GET("/notifications/unread/count", notificationHandler.CountUnread)
		api.GET("/notifications/:id", middleware.UUIDValidator("id"), notificationHandler.GetNotification)
		api.PATCH("/notifications/read-all", notificationHandler.ReadAllNotifications)
		api.PATCH("/notifications/:id", middleware.UUIDValidator("id"), notificationHandler.UpdateNotification)
		api.DELETE("/notifications/:id", middleware.UUIDValidator("id"), notificationHandler.DeleteNotification)

		api.GET("/users", userHandler.ListUsers)
		api.GET("/users/me", userHandler.Me)
		api.PATCH("/users/me", userHandler.UpdateMe)
		api.PUT("/users/me/token", userHandler.UpdateToken)
		api.PUT("/users/me/location", userHandler.UpdateLocation)
		api.GET("/users/near", userHandler.NearbyUsers)
		api.GET("/users/:id", middleware.UUIDValidator("id"), userHandler.GetUser)

		api.GET("/chats/:requestId", middleware.UUIDValidator("requestId"), chatHandler.History)
	}

	return r
}
