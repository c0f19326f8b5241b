package app

import (
	"gorm.io/gorm"

	"github.com/datafirst-hq/aidly-backend/internal/data/repos"
	"github.com/datafirst-hq/aidly-backend/internal/pkg/logger"
)

type Repos struct {
	User           repos.UserRepo
	UserPreference repos.UserPreferenceRepo

	RefreshToken repos.RefreshTokenRepo
	WidgetToken  repos.WidgetTokenRepo

	Workspace     repos.WorkspaceRepo
	WorkspaceUser repos.WorkspaceUserRepo

	Conversation repos.ConversationRepo
	Message      repos.MessageRepo
	Bot          repos.BotRepo
	Session      repos.SessionRepo
	Ticket       repos.TicketRepo

	DataSource         repos.DataSourceRepo
	ExternalConnection repos.ExternalConnectionRepo
}

func wireRepos(db *gorm.DB, log *logger.Logger) Repos {
	log.Info("Wiring repos...")
	return Repos{
		User:           repos.NewUserRepo(db, log),
		UserPreference: repos.NewUserPreferenceRepo(db, log),

		RefreshToken: repos.NewRefreshTokenRepo(db, log),
		WidgetToken:  repos.NewWidgetTokenRepo(db, log),

		Workspace:     repos.NewWorkspaceRepo(db, log),
		WorkspaceUser: repos.NewWorkspaceUserRepo(db, log),

		Conversation: repos.NewConversationRepo(db, log),
		Message:      repos.NewMessageRepo(db, log),
		Bot:          repos.NewBotRepo(db, log),
		Session:      repos.NewSessionRepo(db, log),
		Ticket:       repos.NewTicketRepo(db, log),

		DataSource:         repos.NewDataSourceRepo(db, log),
		ExternalConnection: repos.NewExternalConnectionRepo(db, log),
	}
}
