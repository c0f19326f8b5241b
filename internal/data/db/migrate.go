package db

import (
	types "github.com/datafirst-hq/aidly-backend/internal/domain"
	"gorm.io/gorm"
)

func AutoMigrateAll(db *gorm.DB) error {
	return db.AutoMigrate(

		// =========================
		// Identity + auth
		// =========================
		&types.User{},
		&types.UserPreference{},
		&types.RefreshToken{},
		&types.WidgetToken{},

		// =========================
		// Tenancy
		// =========================
		&types.Workspace{},
		&types.WorkspaceUser{},

		// =========================
		// Chat
		// =========================
		&types.Conversation{},
		&types.Message{},
		&types.Bot{},
		&types.ChatSession{},
		&types.Ticket{},

		// =========================
		// Knowledge sources
		// =========================
		&types.DataSource{},
		&types.ExternalConnection{},
	)
}
