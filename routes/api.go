package routes

import (
	"net/http"

	"github.com/labstack/echo/v4"
	echoSwagger "github.com/swaggo/echo-swagger"

	"github.com/onurcolak/messaging-dashboard/environments"
	"github.com/onurcolak/messaging-dashboard/handlers"
	"github.com/onurcolak/messaging-dashboard/internal/middlewares"
)

type Handlers struct {
	Health    *handlers.HealthHandler
	Message   *handlers.MessageHandler
	Client    *handlers.ClientHandler
	Campaign  *handlers.CampaignHandler
	Scheduler *handlers.SchedulerHandler
	Metrics   http.Handler
}

// RegisterRoutes registers all API routes with middleware
func RegisterRoutes(e *echo.Echo, h Handlers, cfg *environments.Config) {
	e.GET("/health", h.Health.Health)
	e.GET("/swagger/*", echoSwagger.WrapHandler)
	if h.Metrics != nil {
		e.GET("/metrics", echo.WrapHandler(h.Metrics))
	}

	// API v1 base group
	v1 := e.Group("/api/v1")

	dashboardAuth := middlewares.APIKeyAuth(cfg.Auth.MessagesAPIKey)

	// Message routes with their own API key
	messages := v1.Group("/messages", dashboardAuth)

	messages.GET("", h.Message.GetAllMessages)
	messages.POST("", h.Message.CreateMessage)
	messages.GET("/sent", h.Message.GetSentMessages)
	messages.GET("/stats", h.Message.GetStats)
	messages.GET("/cached", h.Message.GetCachedMessages)
	messages.GET("/:id", h.Message.GetMessage)

	messages.POST("/replay", h.Message.ReplayAllFailedMessages)
	messages.POST("/:id/replay", h.Message.ReplayFailedMessage)

	clients := v1.Group("/clients", dashboardAuth)

	clients.GET("", h.Client.ListClients)
	clients.POST("", h.Client.CreateClient)
	clients.GET("/:id", h.Client.GetClient)
	clients.PUT("/:id", h.Client.UpdateClient)
	clients.PUT("/:id/status", h.Client.SetClientStatus)
	clients.DELETE("/:id", h.Client.DeleteClient)

	campaigns := v1.Group("/campaigns", dashboardAuth)

	campaigns.GET("", h.Campaign.ListCampaigns)
	campaigns.POST("", h.Campaign.CreateCampaign)
	campaigns.GET("/presets", h.Campaign.ListPresets)
	campaigns.POST("/eta", h.Campaign.PreviewETA)
	campaigns.POST("/csv/parse", h.Campaign.ParseCSV)
	campaigns.GET("/:id", h.Campaign.GetCampaign)
	campaigns.POST("/:id/start", h.Campaign.StartCampaign)
	campaigns.POST("/:id/pause", h.Campaign.PauseCampaign)
	campaigns.POST("/:id/cancel", h.Campaign.CancelCampaign)
	campaigns.GET("/:id/progress", h.Campaign.GetProgress)
	campaigns.GET("/:id/analytics", h.Campaign.GetAnalytics)
	campaigns.GET("/:id/ab-test/winner", h.Campaign.GetWinner)
	campaigns.GET("/:id/events", h.Campaign.StreamEvents)

	// Provider delivery receipts
	webhooks := v1.Group("/webhooks", middlewares.APIKeyAuth(cfg.Auth.CallbackAPIKey))
	webhooks.POST("/status", h.Message.ReceiveStatus)

	// Scheduler routes with their own API key
	schedulerGroup := v1.Group("/scheduler", middlewares.APIKeyAuth(cfg.Auth.SchedulerAPIKey))

	schedulerGroup.POST("/start", h.Scheduler.StartScheduler)
	schedulerGroup.POST("/stop", h.Scheduler.StopScheduler)
	schedulerGroup.GET("/status", h.Scheduler.GetSchedulerStatus)
}
