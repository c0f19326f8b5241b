package http

import (
	"github.com/gin-gonic/gin"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"

	"github.com/datafirst-hq/aidly-backend/internal/http/handlers"
	"github.com/datafirst-hq/aidly-backend/internal/http/middleware"
	"github.com/datafirst-hq/aidly-backend/internal/pkg/logger"
)

// RouterConfig carries the handlers and middleware the router mounts. Nil
// handlers skip their routes so tests can stand up a partial router.
type RouterConfig struct {
	Log *logger.Logger

	ServiceName string
	CORSOrigins []string

	AuthMiddleware *middleware.AuthMiddleware

	HealthHandler       *handlers.HealthHandler
	AuthHandler         *handlers.AuthHandler
	ChatHandler         *handlers.ChatHandler
	ConversationHandler *handlers.ConversationHandler
	DataSourceHandler   *handlers.DataSourceHandler
	WidgetHandler       *handlers.WidgetHandler
	TicketHandler       *handlers.TicketHandler
	UserHandler         *handlers.UserHandler
	WorkspaceHandler    *handlers.WorkspaceHandler
}

func NewRouter(cfg RouterConfig) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())
	if cfg.ServiceName != "" {
		r.Use(otelgin.Middleware(cfg.ServiceName))
	}
	r.Use(middleware.AttachTraceContext())
	if cfg.Log != nil {
		r.Use(middleware.RequestLogger(cfg.Log))
	}
	r.Use(middleware.CORS(cfg.CORSOrigins))

	if cfg.HealthHandler != nil {
		r.GET("/healthcheck", cfg.HealthHandler.HealthCheck)
	}

	auth := r.Group("/auth")
	if cfg.AuthHandler != nil {
		auth.POST("/login", cfg.AuthHandler.Login)
		// Refresh authenticates with the refresh secret itself, so it stays
		// outside the bearer-token gate.
		auth.POST("/refresh", cfg.AuthHandler.Refresh)
	}
	authed := auth.Group("/")
	if cfg.AuthMiddleware != nil {
		authed.Use(cfg.AuthMiddleware.RequireAuth())
	}
	if cfg.AuthHandler != nil {
		authed.POST("/logout", cfg.AuthHandler.Logout)
		authed.POST("/logout-all", cfg.AuthHandler.LogoutAll)
		authed.POST("/register", cfg.AuthHandler.Register)
		authed.POST("/cleanup-tokens", cfg.AuthHandler.CleanupTokens)
	}

	widget := r.Group("/widget")
	visitor := widget.Group("/")
	if cfg.AuthMiddleware != nil {
		visitor.Use(cfg.AuthMiddleware.RequireWidget())
	}
	if cfg.WidgetHandler != nil {
		visitor.POST("/session/start", cfg.WidgetHandler.StartSession)
		visitor.POST("/chat", cfg.WidgetHandler.Chat)
	}
	dashboard := widget.Group("/")
	if cfg.AuthMiddleware != nil {
		dashboard.Use(cfg.AuthMiddleware.RequireAuth())
	}
	if cfg.WidgetHandler != nil {
		dashboard.POST("/generate", cfg.WidgetHandler.Generate)
		dashboard.POST("/revoke", cfg.WidgetHandler.Revoke)
		dashboard.GET("/bots", cfg.WidgetHandler.ListBots)
		dashboard.POST("/bots", cfg.WidgetHandler.CreateBot)
		dashboard.PUT("/bots/:id", cfg.WidgetHandler.UpdateBot)
		dashboard.DELETE("/bots/:id", cfg.WidgetHandler.DeleteBot)
	}

	protected := r.Group("/")
	if cfg.AuthMiddleware != nil {
		protected.Use(cfg.AuthMiddleware.RequireAuth())
	}

	if cfg.ChatHandler != nil {
		protected.POST("/chat/", cfg.ChatHandler.Ask)
	}

	if cfg.ConversationHandler != nil {
		protected.GET("/conversations/", cfg.ConversationHandler.List)
		protected.POST("/conversations/", cfg.ConversationHandler.Create)
		protected.PUT("/conversations/:id", cfg.ConversationHandler.Rename)
		protected.DELETE("/conversations/:id", cfg.ConversationHandler.Delete)
		protected.GET("/conversations/:id/messages", cfg.ConversationHandler.Messages)
		protected.GET("/messages/", cfg.ConversationHandler.RecentMessages)
		protected.POST("/messages/:id/feedback", cfg.ConversationHandler.Feedback)
	}

	if cfg.DataSourceHandler != nil {
		protected.GET("/datasources/", cfg.DataSourceHandler.List)
		protected.POST("/datasources/upload", cfg.DataSourceHandler.Upload)
		protected.POST("/datasources/add-url", cfg.DataSourceHandler.AddURL)
		protected.DELETE("/datasources/:id", cfg.DataSourceHandler.Delete)
		protected.POST("/datasources/regular/:id/sync", cfg.DataSourceHandler.SyncOne)
		protected.POST("/datasources/regular/:id/unsync", cfg.DataSourceHandler.UnsyncOne)
		protected.POST("/datasources/regular/sync", cfg.DataSourceHandler.SyncAll)
		protected.POST("/datasources/regular/unsync", cfg.DataSourceHandler.UnsyncAll)
		protected.POST("/datasources/external/:source_id/:provider/connect", cfg.DataSourceHandler.Connect)
		protected.GET("/datasources/external/:source_id/:provider/tickets", cfg.DataSourceHandler.Tickets)
		protected.POST("/datasources/external/:source_id/:provider/tickets/:ticket_id/sync", cfg.DataSourceHandler.SyncTask)
		protected.POST("/datasources/external/:source_id/:provider/tickets/:ticket_id/unsync", cfg.DataSourceHandler.UnsyncTask)
	}

	if cfg.TicketHandler != nil {
		protected.POST("/tickets/", cfg.TicketHandler.Create)
		protected.GET("/tickets/", cfg.TicketHandler.List)
	}

	if cfg.UserHandler != nil {
		protected.GET("/users/me", cfg.UserHandler.Me)
		protected.PUT("/users/language", cfg.UserHandler.SetLanguage)
	}

	if cfg.WorkspaceHandler != nil {
		protected.GET("/workspaces/", cfg.WorkspaceHandler.List)
		protected.POST("/workspaces/", cfg.WorkspaceHandler.Create)
		protected.PUT("/workspaces/current", cfg.WorkspaceHandler.SwitchCurrent)
	}

	return r
}
