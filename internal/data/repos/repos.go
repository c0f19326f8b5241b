package repos

import (
	"gorm.io/gorm"

	"github.com/datafirst-hq/aidly-backend/internal/data/repos/auth"
	"github.com/datafirst-hq/aidly-backend/internal/data/repos/chat"
	"github.com/datafirst-hq/aidly-backend/internal/data/repos/datasource"
	"github.com/datafirst-hq/aidly-backend/internal/data/repos/user"
	"github.com/datafirst-hq/aidly-backend/internal/data/repos/workspace"
	"github.com/datafirst-hq/aidly-backend/internal/pkg/logger"
)

type UserRepo = user.UserRepo
type UserPreferenceRepo = user.UserPreferenceRepo

type RefreshTokenRepo = auth.RefreshTokenRepo
type WidgetTokenRepo = auth.WidgetTokenRepo

type WorkspaceRepo = workspace.WorkspaceRepo
type WorkspaceUserRepo = workspace.WorkspaceUserRepo

type ConversationRepo = chat.ConversationRepo
type MessageRepo = chat.MessageRepo
type BotRepo = chat.BotRepo
type SessionRepo = chat.SessionRepo
type TicketRepo = chat.TicketRepo

type DataSourceRepo = datasource.DataSourceRepo
type ExternalConnectionRepo = datasource.ExternalConnectionRepo

func NewUserRepo(db *gorm.DB, baseLog *logger.Logger) UserRepo { return user.NewUserRepo(db, baseLog) }
func NewUserPreferenceRepo(db *gorm.DB, baseLog *logger.Logger) UserPreferenceRepo {
	return user.NewUserPreferenceRepo(db, baseLog)
}

func NewRefreshTokenRepo(db *gorm.DB, baseLog *logger.Logger) RefreshTokenRepo {
	return auth.NewRefreshTokenRepo(db, baseLog)
}
func NewWidgetTokenRepo(db *gorm.DB, baseLog *logger.Logger) WidgetTokenRepo {
	return auth.NewWidgetTokenRepo(db, baseLog)
}

func NewWorkspaceRepo(db *gorm.DB, baseLog *logger.Logger) WorkspaceRepo {
	return workspace.NewWorkspaceRepo(db, baseLog)
}
func NewWorkspaceUserRepo(db *gorm.DB, baseLog *logger.Logger) WorkspaceUserRepo {
	return workspace.NewWorkspaceUserRepo(db, baseLog)
}

func NewConversationRepo(db *gorm.DB, baseLog *logger.Logger) ConversationRepo {
	return chat.NewConversationRepo(db, baseLog)
}
func NewMessageRepo(db *gorm.DB, baseLog *logger.Logger) MessageRepo {
	return chat.NewMessageRepo(db, baseLog)
}
func NewBotRepo(db *gorm.DB, baseLog *logger.Logger) BotRepo {
	return chat.NewBotRepo(db, baseLog)
}
func NewSessionRepo(db *gorm.DB, baseLog *logger.Logger) SessionRepo {
	return chat.NewSessionRepo(db, baseLog)
}
func NewTicketRepo(db *gorm.DB, baseLog *logger.Logger) TicketRepo {
	return chat.NewTicketRepo(db, baseLog)
}

func NewDataSourceRepo(db *gorm.DB, baseLog *logger.Logger) DataSourceRepo {
	return datasource.NewDataSourceRepo(db, baseLog)
}
func NewExternalConnectionRepo(db *gorm.DB, baseLog *logger.Logger) ExternalConnectionRepo {
	return datasource.NewExternalConnectionRepo(db, baseLog)
}
