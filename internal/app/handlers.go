package app

import (
	"golang.org/x/sync/semaphore"

	"github.com/datafirst-hq/aidly-backend/internal/data/db"
	"github.com/datafirst-hq/aidly-backend/internal/http/handlers"
	"github.com/datafirst-hq/aidly-backend/internal/pkg/logger"
)

type Handlers struct {
	Health       *handlers.HealthHandler
	Auth         *handlers.AuthHandler
	Chat         *handlers.ChatHandler
	Conversation *handlers.ConversationHandler
	DataSource   *handlers.DataSourceHandler
	Widget       *handlers.WidgetHandler
	Ticket       *handlers.TicketHandler
	User         *handlers.UserHandler
	Workspace    *handlers.WorkspaceHandler
}

func wireHandlers(log *logger.Logger, cfg Config, dbService *db.Service, services Services) Handlers {
	log.Info("Wiring handlers...")

	// Dashboard chat and widget chat share one pool so embed traffic cannot
	// starve logged-in users.
	slots := semaphore.NewWeighted(cfg.ChatMaxConcurrent)

	return Handlers{
		Health:       handlers.NewHealthHandler(dbService),
		Auth:         handlers.NewAuthHandler(services.Auth),
		Chat:         handlers.NewChatHandler(services.Conversation, services.Workspace, slots, cfg.MaxQuestionLength),
		Conversation: handlers.NewConversationHandler(services.Conversation, services.Workspace),
		DataSource:   handlers.NewDataSourceHandler(services.Syncer, services.ExternalSync, services.Workspace),
		Widget:       handlers.NewWidgetHandler(services.Widget, slots, cfg.MaxQuestionLength),
		Ticket:       handlers.NewTicketHandler(services.Conversation, services.Workspace),
		User:         handlers.NewUserHandler(services.Workspace),
		Workspace:    handlers.NewWorkspaceHandler(services.Workspace),
	}
}
