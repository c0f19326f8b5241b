package app

import (
	"fmt"

	"github.com/datafirst-hq/aidly-backend/internal/pkg/logger"
	"github.com/datafirst-hq/aidly-backend/internal/services"
)

type Services struct {
	Auth         services.AuthService
	Workspace    services.WorkspaceService
	Rag          services.RagService
	Interactions services.InteractionLogger
	Conversation services.ConversationService
	Splitter     services.DocumentSplitter
	Ingestor     services.Ingestor
	Syncer       services.SyncService
	ExternalSync services.ExternalSyncService
	Widget       services.WidgetService
}

func wireServices(log *logger.Logger, cfg Config, repos Repos, clients Clients) (Services, error) {
	log.Info("Wiring services...")

	auth := services.NewAuthService(log, repos.User, repos.RefreshToken, repos.WidgetToken, services.AuthConfig{
		SecretKey:  cfg.SecretKey,
		AccessTTL:  cfg.AccessTTL,
		RefreshTTL: cfg.RefreshTTL,
		WidgetTTL:  cfg.WidgetTTL,
	})
	workspace := services.NewWorkspaceService(log, repos.User, repos.Workspace, repos.WorkspaceUser, repos.UserPreference)

	rag := services.NewRagService(log, clients.Embedder, clients.Chat, clients.VectorStore, clients.Translator, cfg.SearchK)

	interactions, err := services.NewInteractionLogger(log, cfg.LogsDirectory)
	if err != nil {
		return Services{}, fmt.Errorf("init interaction logger: %w", err)
	}

	conversation := services.NewConversationService(log, repos.Conversation, repos.Message, repos.Ticket, rag, interactions)

	splitter := services.NewDocumentSplitter(log, cfg.ChunkSize, cfg.ChunkOverlap)
	ingestor := services.NewIngestor(log, splitter, clients.Embedder, clients.VectorStore)
	syncer := services.NewSyncService(log, repos.DataSource, ingestor, clients.VectorStore, cfg.DataDirectory)

	external := services.NewExternalSyncService(
		log,
		repos.DataSource,
		repos.ExternalConnection,
		syncer,
		cfg.DataDirectory,
		services.NewClickUpProvider(log, clients.ClickUp),
	)

	widget := services.NewWidgetService(log, repos.Bot, repos.Session, auth, workspace, conversation, services.WidgetConfig{
		MaxSessionsPerBot: cfg.WidgetSessionsPerBot,
		SessionIdleTTL:    cfg.WidgetSessionIdleTTL,
	})

	return Services{
		Auth:         auth,
		Workspace:    workspace,
		Rag:          rag,
		Interactions: interactions,
		Conversation: conversation,
		Splitter:     splitter,
		Ingestor:     ingestor,
		Syncer:       syncer,
		ExternalSync: external,
		Widget:       widget,
	}, nil
}
