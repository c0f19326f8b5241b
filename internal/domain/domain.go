package domain

import (
	"github.com/datafirst-hq/aidly-backend/internal/domain/auth"
	"github.com/datafirst-hq/aidly-backend/internal/domain/chat"
	"github.com/datafirst-hq/aidly-backend/internal/domain/datasource"
	"github.com/datafirst-hq/aidly-backend/internal/domain/user"
	"github.com/datafirst-hq/aidly-backend/internal/domain/workspace"
)

type User = user.User
type UserPreference = user.Preference

type RefreshToken = auth.RefreshToken
type WidgetToken = auth.WidgetToken

type Workspace = workspace.Workspace
type WorkspaceUser = workspace.WorkspaceUser

type Conversation = chat.Conversation
type Message = chat.Message
type Bot = chat.Bot
type ChatSession = chat.Session
type Ticket = chat.Ticket

type DataSource = datasource.DataSource
type ExternalConnection = datasource.ExternalConnection
type ExternalCredentials = datasource.Credentials

const (
	RoleAdmin  = workspace.RoleAdmin
	RoleMember = workspace.RoleMember

	FeedbackUp   = chat.FeedbackUp
	FeedbackDown = chat.FeedbackDown

	TicketStatusOpen   = chat.TicketStatusOpen
	TicketStatusClosed = chat.TicketStatusClosed

	SourceTypeFile         = datasource.SourceTypeFile
	SourceTypeURL          = datasource.SourceTypeURL
	SourceTypeExternalTask = datasource.SourceTypeExternalTask

	ProviderClickUp = datasource.ProviderClickUp

	PreferenceKeyLanguage = user.PreferenceKeyLanguage
)
