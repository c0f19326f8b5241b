package handlers

import (
	"context"
	"errors"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	types "github.com/datafirst-hq/aidly-backend/internal/domain"
	"github.com/datafirst-hq/aidly-backend/internal/pkg/ctxutil"
	"github.com/datafirst-hq/aidly-backend/internal/services"
)

// Function-field fakes for the service interfaces the handlers consume.
// Unset fields return zero values so each test only wires what it asserts.

var errAny = errors.New("boom")

// withUser injects an authenticated dashboard identity, standing in for the
// bearer-token middleware.
func withUser(userID uuid.UUID) gin.HandlerFunc {
	return func(c *gin.Context) {
		rd := &ctxutil.RequestData{UserID: userID, TokenKind: ctxutil.TokenKindAccess}
		c.Request = c.Request.WithContext(ctxutil.WithRequestData(c.Request.Context(), rd))
		c.Next()
	}
}

// withWidget injects a verified widget identity.
func withWidget(ownerID, botID uuid.UUID) gin.HandlerFunc {
	return func(c *gin.Context) {
		rd := &ctxutil.RequestData{UserID: ownerID, BotID: botID, TokenKind: ctxutil.TokenKindWidget}
		c.Request = c.Request.WithContext(ctxutil.WithRequestData(c.Request.Context(), rd))
		c.Next()
	}
}

type fakeAuthService struct {
	loginFn      func(username, password string) (*services.TokenPair, error)
	refreshFn    func(secret string) (*services.TokenPair, error)
	logoutFn     func(secret string) error
	logoutAllFn  func(userID uuid.UUID) (int64, error)
	registerFn   func(username, email, password string) (*types.User, error)
	adminErr     error
	cleanupRes   *services.CleanupResult
	cleanupErr   error
	lastSecret   string
	lastUsername string
}

func (f *fakeAuthService) Register(ctx context.Context, username, email, password string) (*types.User, error) {
	f.lastUsername = username
	if f.registerFn != nil {
		return f.registerFn(username, email, password)
	}
	return &types.User{ID: uuid.New(), Username: username, Email: email}, nil
}

func (f *fakeAuthService) Login(ctx context.Context, username, password string) (*services.TokenPair, error) {
	f.lastUsername = username
	if f.loginFn != nil {
		return f.loginFn(username, password)
	}
	return &services.TokenPair{AccessToken: "access", RefreshToken: "refresh-secret", TokenType: "bearer"}, nil
}

func (f *fakeAuthService) Refresh(ctx context.Context, refreshSecret string) (*services.TokenPair, error) {
	f.lastSecret = refreshSecret
	if f.refreshFn != nil {
		return f.refreshFn(refreshSecret)
	}
	return &services.TokenPair{AccessToken: "access2", RefreshToken: "refresh-secret2", TokenType: "bearer"}, nil
}

func (f *fakeAuthService) Logout(ctx context.Context, refreshSecret string) error {
	f.lastSecret = refreshSecret
	if f.logoutFn != nil {
		return f.logoutFn(refreshSecret)
	}
	return nil
}

func (f *fakeAuthService) LogoutAll(ctx context.Context, userID uuid.UUID) (int64, error) {
	if f.logoutAllFn != nil {
		return f.logoutAllFn(userID)
	}
	return 0, nil
}

func (f *fakeAuthService) VerifyAccess(ctx context.Context, tokenString string) (uuid.UUID, error) {
	return uuid.Nil, errAny
}

func (f *fakeAuthService) VerifyWidget(ctx context.Context, tokenString string) (*services.WidgetIdentity, error) {
	return nil, errAny
}

func (f *fakeAuthService) RequireAdmin(ctx context.Context, userID uuid.UUID) error {
	return f.adminErr
}

func (f *fakeAuthService) IssueWidgetToken(ctx context.Context, ownerID, botID uuid.UUID) (*services.WidgetGrant, error) {
	return nil, errAny
}

func (f *fakeAuthService) RevokeWidgetTokens(ctx context.Context, botID uuid.UUID, tokenID *uuid.UUID) (int64, error) {
	return 0, nil
}

func (f *fakeAuthService) CleanupTokens(ctx context.Context) (*services.CleanupResult, error) {
	if f.cleanupErr != nil {
		return nil, f.cleanupErr
	}
	if f.cleanupRes != nil {
		return f.cleanupRes, nil
	}
	return &services.CleanupResult{}, nil
}

func (f *fakeAuthService) AccessTTL() time.Duration  { return time.Hour }
func (f *fakeAuthService) RefreshTTL() time.Duration { return 30 * 24 * time.Hour }

type fakeConversationService struct {
	askFn         func(in services.ChatTurnInput) (*services.ChatTurnResult, error)
	lastAsk       services.ChatTurnInput
	conversations []*types.Conversation
	messages      []*types.Message
	tickets       []*types.Ticket
	feedbackFn    func(userID, messageID uuid.UUID, feedback, clientIP string) error
	ticketFn      func(in services.TicketInput) (*types.Ticket, error)
	err           error
}

func (f *fakeConversationService) Ask(ctx context.Context, in services.ChatTurnInput) (*services.ChatTurnResult, error) {
	f.lastAsk = in
	if f.askFn != nil {
		return f.askFn(in)
	}
	return &services.ChatTurnResult{Answer: "answer", LatencyMS: 5, MessageID: uuid.New(), ConversationID: uuid.New()}, nil
}

func (f *fakeConversationService) CreateConversation(ctx context.Context, userID, workspaceID uuid.UUID, title string) (*types.Conversation, error) {
	if f.err != nil {
		return nil, f.err
	}
	return &types.Conversation{ID: uuid.New(), UserID: userID, WorkspaceID: workspaceID, Title: title}, nil
}

func (f *fakeConversationService) ListConversations(ctx context.Context, userID, workspaceID uuid.UUID, limit int) ([]*types.Conversation, error) {
	if f.err != nil {
		return nil, f.err
	}
	return f.conversations, nil
}

func (f *fakeConversationService) RenameConversation(ctx context.Context, userID, conversationID uuid.UUID, title string) (*types.Conversation, error) {
	if f.err != nil {
		return nil, f.err
	}
	return &types.Conversation{ID: conversationID, UserID: userID, Title: title}, nil
}

func (f *fakeConversationService) DeleteConversation(ctx context.Context, userID, conversationID uuid.UUID) error {
	return f.err
}

func (f *fakeConversationService) ListMessages(ctx context.Context, userID, conversationID uuid.UUID, limit int) ([]*types.Message, error) {
	if f.err != nil {
		return nil, f.err
	}
	return f.messages, nil
}

func (f *fakeConversationService) ListRecentMessages(ctx context.Context, workspaceID uuid.UUID, limit int) ([]*types.Message, error) {
	if f.err != nil {
		return nil, f.err
	}
	return f.messages, nil
}

func (f *fakeConversationService) RecordFeedback(ctx context.Context, userID, messageID uuid.UUID, feedback, clientIP string) error {
	if f.feedbackFn != nil {
		return f.feedbackFn(userID, messageID, feedback, clientIP)
	}
	return f.err
}

func (f *fakeConversationService) CreateTicket(ctx context.Context, in services.TicketInput) (*types.Ticket, error) {
	if f.ticketFn != nil {
		return f.ticketFn(in)
	}
	if f.err != nil {
		return nil, f.err
	}
	return &types.Ticket{ID: uuid.New(), Title: in.Title}, nil
}

func (f *fakeConversationService) ListTickets(ctx context.Context, workspaceID uuid.UUID, limit int) ([]*types.Ticket, error) {
	if f.err != nil {
		return nil, f.err
	}
	return f.tickets, nil
}

type fakeSyncService struct {
	uploadFn   func(in services.UploadInput) (*types.DataSource, error)
	urlFn      func(workspaceID, ownerID uuid.UUID, rawURL string) (*types.DataSource, error)
	sources    []*types.DataSource
	syncRes    *services.IngestResult
	batchRes   *services.BatchSyncResult
	err        error
	lastUpload services.UploadInput
	lastURL    string
	deleted    []uuid.UUID
}

func (f *fakeSyncService) RegisterUpload(ctx context.Context, in services.UploadInput) (*types.DataSource, error) {
	f.lastUpload = in
	if f.uploadFn != nil {
		return f.uploadFn(in)
	}
	if f.err != nil {
		return nil, f.err
	}
	return &types.DataSource{ID: uuid.New(), WorkspaceID: in.WorkspaceID, SourceType: types.SourceTypeFile, Reference: in.Filename}, nil
}

func (f *fakeSyncService) RegisterURL(ctx context.Context, workspaceID, ownerID uuid.UUID, rawURL string) (*types.DataSource, error) {
	f.lastURL = rawURL
	if f.urlFn != nil {
		return f.urlFn(workspaceID, ownerID, rawURL)
	}
	if f.err != nil {
		return nil, f.err
	}
	return &types.DataSource{ID: uuid.New(), WorkspaceID: workspaceID, SourceType: types.SourceTypeURL, Reference: rawURL}, nil
}

func (f *fakeSyncService) ListSources(ctx context.Context, workspaceID uuid.UUID) ([]*types.DataSource, error) {
	if f.err != nil {
		return nil, f.err
	}
	return f.sources, nil
}

func (f *fakeSyncService) SyncSource(ctx context.Context, workspaceID, id uuid.UUID) (*services.IngestResult, error) {
	if f.err != nil {
		return nil, f.err
	}
	if f.syncRes != nil {
		return f.syncRes, nil
	}
	return &services.IngestResult{ChunksAdded: 1, LastSyncedAt: time.Now()}, nil
}

func (f *fakeSyncService) UnsyncSource(ctx context.Context, workspaceID, id uuid.UUID) error {
	return f.err
}

func (f *fakeSyncService) DeleteSource(ctx context.Context, workspaceID, id uuid.UUID) error {
	f.deleted = append(f.deleted, id)
	return f.err
}

func (f *fakeSyncService) SyncAllRegular(ctx context.Context, workspaceID uuid.UUID) (*services.BatchSyncResult, error) {
	if f.err != nil {
		return nil, f.err
	}
	if f.batchRes != nil {
		return f.batchRes, nil
	}
	return &services.BatchSyncResult{}, nil
}

func (f *fakeSyncService) UnsyncAllRegular(ctx context.Context, workspaceID uuid.UUID) (*services.BatchSyncResult, error) {
	if f.err != nil {
		return nil, f.err
	}
	if f.batchRes != nil {
		return f.batchRes, nil
	}
	return &services.BatchSyncResult{}, nil
}

type fakeExternalSyncService struct {
	connectFn    func(workspaceID uuid.UUID, provider, apiToken string) error
	tickets      []services.ExternalTicket
	syncRes      *services.IngestResult
	err          error
	lastProvider string
	lastTicketID string
	lastFilter   services.TicketFilter
}

func (f *fakeExternalSyncService) Connect(ctx context.Context, workspaceID uuid.UUID, provider, apiToken string) error {
	f.lastProvider = provider
	if f.connectFn != nil {
		return f.connectFn(workspaceID, provider, apiToken)
	}
	return f.err
}

func (f *fakeExternalSyncService) ListTickets(ctx context.Context, workspaceID uuid.UUID, provider string, filter services.TicketFilter) ([]services.ExternalTicket, error) {
	f.lastProvider = provider
	f.lastFilter = filter
	if f.err != nil {
		return nil, f.err
	}
	return f.tickets, nil
}

func (f *fakeExternalSyncService) SyncTask(ctx context.Context, workspaceID, ownerID uuid.UUID, provider, ticketID string) (*services.IngestResult, error) {
	f.lastProvider = provider
	f.lastTicketID = ticketID
	if f.err != nil {
		return nil, f.err
	}
	if f.syncRes != nil {
		return f.syncRes, nil
	}
	return &services.IngestResult{ChunksAdded: 1}, nil
}

func (f *fakeExternalSyncService) UnsyncTask(ctx context.Context, workspaceID uuid.UUID, provider, ticketID string) error {
	f.lastProvider = provider
	f.lastTicketID = ticketID
	return f.err
}

type fakeWidgetService struct {
	generateFn func(in services.WidgetGenerateInput) (*services.WidgetGenerateResult, error)
	chatFn     func(identity services.WidgetIdentity, sessionID, message string) (*services.ChatTurnResult, error)
	startFn    func(identity services.WidgetIdentity) (*services.SessionStart, error)
	bots       []*types.Bot
	revoked    int64
	err        error
	lastBotIn  services.BotInput
	lastUpdate services.BotUpdate
}

func (f *fakeWidgetService) Generate(ctx context.Context, in services.WidgetGenerateInput) (*services.WidgetGenerateResult, error) {
	if f.generateFn != nil {
		return f.generateFn(in)
	}
	if f.err != nil {
		return nil, f.err
	}
	return &services.WidgetGenerateResult{WidgetToken: "tok", BotID: uuid.New(), BotName: in.BotName}, nil
}

func (f *fakeWidgetService) Revoke(ctx context.Context, userID, botID uuid.UUID, tokenID *uuid.UUID) (int64, error) {
	if f.err != nil {
		return 0, f.err
	}
	return f.revoked, nil
}

func (f *fakeWidgetService) StartSession(ctx context.Context, identity services.WidgetIdentity) (*services.SessionStart, error) {
	if f.startFn != nil {
		return f.startFn(identity)
	}
	if f.err != nil {
		return nil, f.err
	}
	return &services.SessionStart{SessionID: "sess_abc", BotName: "Support Widget", WelcomeMessage: "hi"}, nil
}

func (f *fakeWidgetService) Chat(ctx context.Context, identity services.WidgetIdentity, sessionID, message string, startedAt time.Time) (*services.ChatTurnResult, error) {
	if f.chatFn != nil {
		return f.chatFn(identity, sessionID, message)
	}
	if f.err != nil {
		return nil, f.err
	}
	return &services.ChatTurnResult{Answer: "widget answer", LatencyMS: 7, MessageID: uuid.New(), ConversationID: uuid.New()}, nil
}

func (f *fakeWidgetService) CreateBot(ctx context.Context, userID uuid.UUID, in services.BotInput) (*types.Bot, error) {
	f.lastBotIn = in
	if f.err != nil {
		return nil, f.err
	}
	return &types.Bot{ID: uuid.New(), Name: in.Name}, nil
}

func (f *fakeWidgetService) ListBots(ctx context.Context, userID uuid.UUID) ([]*types.Bot, error) {
	if f.err != nil {
		return nil, f.err
	}
	return f.bots, nil
}

func (f *fakeWidgetService) UpdateBot(ctx context.Context, userID, botID uuid.UUID, updates services.BotUpdate) (*types.Bot, error) {
	f.lastUpdate = updates
	if f.err != nil {
		return nil, f.err
	}
	return &types.Bot{ID: botID}, nil
}

func (f *fakeWidgetService) DeleteBot(ctx context.Context, userID, botID uuid.UUID) error {
	return f.err
}

func (f *fakeWidgetService) CleanupIdleSessions(ctx context.Context) (int64, error) {
	return 0, f.err
}

type fakeWorkspaceService struct {
	currentWS     uuid.UUID
	currentErr    error
	workspaces    []*types.Workspace
	profile       *services.UserProfile
	language      string
	membershipErr error
	setLangErr    error
	err           error
	lastLanguage  string
}

func (f *fakeWorkspaceService) CreateWorkspace(ctx context.Context, ownerID uuid.UUID, name string) (*types.Workspace, error) {
	if f.err != nil {
		return nil, f.err
	}
	return &types.Workspace{ID: uuid.New(), Name: name, OwnerID: ownerID}, nil
}

func (f *fakeWorkspaceService) ListWorkspaces(ctx context.Context, userID uuid.UUID) ([]*types.Workspace, error) {
	if f.err != nil {
		return nil, f.err
	}
	return f.workspaces, nil
}

func (f *fakeWorkspaceService) SetCurrentWorkspace(ctx context.Context, userID, workspaceID uuid.UUID) error {
	return f.err
}

func (f *fakeWorkspaceService) CurrentWorkspaceID(ctx context.Context, userID uuid.UUID) (uuid.UUID, error) {
	if f.currentErr != nil {
		return uuid.Nil, f.currentErr
	}
	return f.currentWS, nil
}

func (f *fakeWorkspaceService) EnsureDefaultWorkspace(ctx context.Context, userID uuid.UUID) (*types.Workspace, error) {
	if f.err != nil {
		return nil, f.err
	}
	return &types.Workspace{ID: f.currentWS}, nil
}

func (f *fakeWorkspaceService) RequireMembership(ctx context.Context, userID, workspaceID uuid.UUID) error {
	return f.membershipErr
}

func (f *fakeWorkspaceService) Profile(ctx context.Context, userID uuid.UUID) (*services.UserProfile, error) {
	if f.err != nil {
		return nil, f.err
	}
	if f.profile != nil {
		return f.profile, nil
	}
	return &services.UserProfile{ID: userID, Username: "sam", Email: "sam@example.com", Language: "en"}, nil
}

func (f *fakeWorkspaceService) Language(ctx context.Context, userID uuid.UUID) string {
	if f.language == "" {
		return "en"
	}
	return f.language
}

func (f *fakeWorkspaceService) SetLanguage(ctx context.Context, userID uuid.UUID, language string) error {
	f.lastLanguage = language
	return f.setLangErr
}
