package app

import (
	"github.com/datafirst-hq/aidly-backend/internal/http"
	"github.com/datafirst-hq/aidly-backend/internal/pkg/logger"
)

func wireRouter(log *logger.Logger, cfg Config, handlers Handlers, middleware Middleware) *http.Server {
	return http.NewServer(http.RouterConfig{
		Log:         log,
		ServiceName: "aidly",
		CORSOrigins: cfg.CORSOrigins,

		AuthMiddleware: middleware.Auth,

		HealthHandler:       handlers.Health,
		AuthHandler:         handlers.Auth,
		ChatHandler:         handlers.Chat,
		ConversationHandler: handlers.Conversation,
		DataSourceHandler:   handlers.DataSource,
		WidgetHandler:       handlers.Widget,
		TicketHandler:       handlers.Ticket,
		UserHandler:         handlers.User,
		WorkspaceHandler:    handlers.Workspace,
	})
}
