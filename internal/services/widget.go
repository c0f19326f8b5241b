package services

import (
	"context"
	"crypto/rand"
	"encoding/base64"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	chatrepo "github.com/datafirst-hq/aidly-backend/internal/data/repos/chat"
	types "github.com/datafirst-hq/aidly-backend/internal/domain"
	"github.com/datafirst-hq/aidly-backend/internal/domain/apperr"
	"github.com/datafirst-hq/aidly-backend/internal/pkg/dbctx"
	"github.com/datafirst-hq/aidly-backend/internal/pkg/logger"
)

const (
	// sessionTokenPrefix + 32 random bytes base64url = "sess_" and 43 chars.
	sessionTokenPrefix = "sess_"
	sessionSecretBytes = 32

	defaultSessionsPerBot = 100
	defaultSessionIdleTTL = 24 * time.Hour
	defaultBotName        = "Support Widget"
	defaultWelcome        = "Hi! How can we help you today?"

	// widgetEmbedSrc is the script the embed snippet loads; the backend
	// serves it alongside the API.
	widgetEmbedSrc = "/widget.js"
)

// WidgetGenerateInput selects or provisions the bot a widget token is issued
// for. With no BotID the caller's workspace gets a bot created on the fly.
type WidgetGenerateInput struct {
	UserID      uuid.UUID
	BotID       *uuid.UUID
	BotName     string
	WorkspaceID *uuid.UUID
}

type WidgetGenerateResult struct {
	WidgetToken string    `json:"widget_token"`
	ExpiresAt   time.Time `json:"expires_at"`
	EmbedCode   string    `json:"embed_code"`
	BotID       uuid.UUID `json:"bot_id"`
	BotName     string    `json:"bot_name"`
}

// SessionStart is what an embedding page receives when a visitor opens the
// widget. SessionID doubles as the bearer for follow-up chat calls.
type SessionStart struct {
	SessionID      string `json:"session_id"`
	BotName        string `json:"bot_name"`
	WelcomeMessage string `json:"welcome_message"`
}

type BotInput struct {
	Name           string
	WelcomeMessage string
	WorkspaceID    *uuid.UUID
}

type BotUpdate struct {
	Name           *string
	WelcomeMessage *string
	IsActive       *bool
}

type WidgetConfig struct {
	MaxSessionsPerBot int

	// SessionIdleTTL is how long a session may sit without a message before
	// the periodic sweep deactivates it, freeing its slot under the cap.
	SessionIdleTTL time.Duration
}

// WidgetService owns the embeddable chat surface: bots, widget tokens, and
// anonymous visitor sessions. Visitor turns run under the bot owner's
// workspace so retrieval never crosses tenants.
type WidgetService interface {
	Generate(ctx context.Context, in WidgetGenerateInput) (*WidgetGenerateResult, error)
	Revoke(ctx context.Context, userID, botID uuid.UUID, tokenID *uuid.UUID) (int64, error)
	StartSession(ctx context.Context, identity WidgetIdentity) (*SessionStart, error)
	Chat(ctx context.Context, identity WidgetIdentity, sessionID, message string, startedAt time.Time) (*ChatTurnResult, error)
	CreateBot(ctx context.Context, userID uuid.UUID, in BotInput) (*types.Bot, error)
	ListBots(ctx context.Context, userID uuid.UUID) ([]*types.Bot, error)
	UpdateBot(ctx context.Context, userID, botID uuid.UUID, updates BotUpdate) (*types.Bot, error)
	DeleteBot(ctx context.Context, userID, botID uuid.UUID) error
	CleanupIdleSessions(ctx context.Context) (int64, error)
}

type widgetService struct {
	log           *logger.Logger
	bots          chatrepo.BotRepo
	sessions      chatrepo.SessionRepo
	auth          AuthService
	workspaces    WorkspaceService
	conversations ConversationService
	cfg           WidgetConfig
}

func NewWidgetService(
	log *logger.Logger,
	bots chatrepo.BotRepo,
	sessions chatrepo.SessionRepo,
	auth AuthService,
	workspaces WorkspaceService,
	conversations ConversationService,
	cfg WidgetConfig,
) WidgetService {
	if cfg.MaxSessionsPerBot <= 0 {
		cfg.MaxSessionsPerBot = defaultSessionsPerBot
	}
	if cfg.SessionIdleTTL <= 0 {
		cfg.SessionIdleTTL = defaultSessionIdleTTL
	}
	return &widgetService{
		log:           log.With("service", "WidgetService"),
		bots:          bots,
		sessions:      sessions,
		auth:          auth,
		workspaces:    workspaces,
		conversations: conversations,
		cfg:           cfg,
	}
}

func (s *widgetService) Generate(ctx context.Context, in WidgetGenerateInput) (*WidgetGenerateResult, error) {
	const op = "WidgetService.Generate"
	if in.UserID == uuid.Nil {
		return nil, apperr.New(apperr.CodeInvalidInput, op, "missing user_id", nil)
	}

	var bot *types.Bot
	if in.BotID != nil && *in.BotID != uuid.Nil {
		existing, err := s.ownedBot(ctx, op, in.UserID, *in.BotID)
		if err != nil {
			return nil, err
		}
		bot = existing
	} else {
		created, err := s.CreateBot(ctx, in.UserID, BotInput{
			Name:        in.BotName,
			WorkspaceID: in.WorkspaceID,
		})
		if err != nil {
			return nil, err
		}
		bot = created
		s.log.Info("Bot auto-provisioned for widget", "bot_id", bot.ID, "workspace_id", bot.WorkspaceID)
	}

	grant, err := s.auth.IssueWidgetToken(ctx, bot.OwnerID, bot.ID)
	if err != nil {
		return nil, err
	}
	return &WidgetGenerateResult{
		WidgetToken: grant.Token,
		ExpiresAt:   grant.ExpiresAt,
		EmbedCode:   embedSnippet(bot.ID, grant.Token),
		BotID:       bot.ID,
		BotName:     bot.Name,
	}, nil
}

func (s *widgetService) Revoke(ctx context.Context, userID, botID uuid.UUID, tokenID *uuid.UUID) (int64, error) {
	const op = "WidgetService.Revoke"
	if _, err := s.ownedBot(ctx, op, userID, botID); err != nil {
		return 0, err
	}
	return s.auth.RevokeWidgetTokens(ctx, botID, tokenID)
}

func (s *widgetService) StartSession(ctx context.Context, identity WidgetIdentity) (*SessionStart, error) {
	const op = "WidgetService.StartSession"
	bot, err := s.activeBot(ctx, op, identity.BotID)
	if err != nil {
		return nil, err
	}

	dbc := dbctx.Context{Ctx: ctx}
	active, err := s.sessions.CountActiveByBot(dbc, bot.ID)
	if err != nil {
		return nil, apperr.Wrap(apperr.CodeInternal, op, err)
	}
	if active >= int64(s.cfg.MaxSessionsPerBot) {
		return nil, apperr.New(apperr.CodeRateLimited, op, "session limit reached for this bot", nil)
	}

	token, err := newSessionToken()
	if err != nil {
		return nil, apperr.Wrap(apperr.CodeInternal, op, err)
	}
	if _, err := s.sessions.Create(dbc, &types.ChatSession{
		BotID:        bot.ID,
		SessionToken: token,
		IsActive:     true,
	}); err != nil {
		return nil, apperr.Wrap(apperr.CodeInternal, op, err)
	}
	s.log.Info("Widget session started", "bot_id", bot.ID, "active_sessions", active+1)

	welcome := bot.WelcomeMessage
	if welcome == "" {
		welcome = defaultWelcome
	}
	return &SessionStart{
		SessionID:      token,
		BotName:        bot.Name,
		WelcomeMessage: welcome,
	}, nil
}

func (s *widgetService) Chat(ctx context.Context, identity WidgetIdentity, sessionID, message string, startedAt time.Time) (*ChatTurnResult, error) {
	const op = "WidgetService.Chat"
	sessionID = strings.TrimSpace(sessionID)
	if sessionID == "" {
		return nil, apperr.New(apperr.CodeInvalidInput, op, "missing session_id", nil)
	}

	dbc := dbctx.Context{Ctx: ctx}
	sess, err := s.sessions.GetByToken(dbc, sessionID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperr.New(apperr.CodeNotFound, op, "session not found", err)
		}
		return nil, apperr.Wrap(apperr.CodeInternal, op, err)
	}
	if sess.BotID != identity.BotID {
		return nil, apperr.New(apperr.CodeForbidden, op, "session belongs to another bot", nil)
	}
	if !sess.IsActive {
		return nil, apperr.New(apperr.CodeInvalidToken, op, "session is no longer active", nil)
	}

	bot, err := s.activeBot(ctx, op, sess.BotID)
	if err != nil {
		return nil, err
	}

	res, err := s.conversations.Ask(ctx, ChatTurnInput{
		UserID:         bot.OwnerID,
		AnonymousAsker: true,
		WorkspaceID:    bot.WorkspaceID,
		Question:       message,
		Language:       s.workspaces.Language(ctx, bot.OwnerID),
		StartedAt:      startedAt,
	})
	if err != nil {
		return nil, err
	}

	if err := s.sessions.Touch(dbc, sess.ID); err != nil {
		s.log.Warn("Session touch failed", "session_id", sess.ID, "error", err)
	}
	return res, nil
}

func (s *widgetService) CreateBot(ctx context.Context, userID uuid.UUID, in BotInput) (*types.Bot, error) {
	const op = "WidgetService.CreateBot"
	if userID == uuid.Nil {
		return nil, apperr.New(apperr.CodeInvalidInput, op, "missing user_id", nil)
	}

	var workspaceID uuid.UUID
	if in.WorkspaceID != nil && *in.WorkspaceID != uuid.Nil {
		if err := s.workspaces.RequireMembership(ctx, userID, *in.WorkspaceID); err != nil {
			return nil, err
		}
		workspaceID = *in.WorkspaceID
	} else {
		ws, err := s.workspaces.EnsureDefaultWorkspace(ctx, userID)
		if err != nil {
			return nil, err
		}
		workspaceID = ws.ID
	}

	name := strings.TrimSpace(in.Name)
	if name == "" {
		name = defaultBotName
	}
	bot, err := s.bots.Create(dbctx.Context{Ctx: ctx}, &types.Bot{
		Name:           name,
		WorkspaceID:    workspaceID,
		OwnerID:        userID,
		IsActive:       true,
		WelcomeMessage: strings.TrimSpace(in.WelcomeMessage),
	})
	if err != nil {
		return nil, apperr.Wrap(apperr.CodeInternal, op, err)
	}
	return bot, nil
}

func (s *widgetService) ListBots(ctx context.Context, userID uuid.UUID) ([]*types.Bot, error) {
	const op = "WidgetService.ListBots"
	workspaceID, err := s.workspaces.CurrentWorkspaceID(ctx, userID)
	if err != nil {
		return nil, err
	}
	out, err := s.bots.ListByWorkspace(dbctx.Context{Ctx: ctx}, workspaceID)
	if err != nil {
		return nil, apperr.Wrap(apperr.CodeInternal, op, err)
	}
	return out, nil
}

func (s *widgetService) UpdateBot(ctx context.Context, userID, botID uuid.UUID, updates BotUpdate) (*types.Bot, error) {
	const op = "WidgetService.UpdateBot"
	bot, err := s.ownedBot(ctx, op, userID, botID)
	if err != nil {
		return nil, err
	}

	fields := map[string]interface{}{}
	if updates.Name != nil {
		name := strings.TrimSpace(*updates.Name)
		if name == "" {
			return nil, apperr.New(apperr.CodeInvalidInput, op, "name cannot be blank", nil)
		}
		fields["name"] = name
	}
	if updates.WelcomeMessage != nil {
		fields["welcome_message"] = strings.TrimSpace(*updates.WelcomeMessage)
	}
	if updates.IsActive != nil {
		fields["is_active"] = *updates.IsActive
	}
	if len(fields) == 0 {
		return bot, nil
	}

	dbc := dbctx.Context{Ctx: ctx}
	if err := s.bots.UpdateFields(dbc, bot.ID, fields); err != nil {
		return nil, apperr.Wrap(apperr.CodeInternal, op, err)
	}
	updated, err := s.bots.GetByID(dbc, bot.ID)
	if err != nil {
		return nil, apperr.Wrap(apperr.CodeInternal, op, err)
	}
	return updated, nil
}

func (s *widgetService) DeleteBot(ctx context.Context, userID, botID uuid.UUID) error {
	const op = "WidgetService.DeleteBot"
	bot, err := s.ownedBot(ctx, op, userID, botID)
	if err != nil {
		return err
	}

	// Outstanding widget tokens die with the bot.
	revoked, err := s.auth.RevokeWidgetTokens(ctx, bot.ID, nil)
	if err != nil {
		return err
	}
	if err := s.bots.Delete(dbctx.Context{Ctx: ctx}, bot.ID); err != nil {
		return apperr.Wrap(apperr.CodeInternal, op, err)
	}
	s.log.Info("Bot deleted", "bot_id", bot.ID, "tokens_revoked", revoked)
	return nil
}

// CleanupIdleSessions deactivates sessions idle past the configured TTL.
// Without it a bot's active-session cap fills up and never drains.
func (s *widgetService) CleanupIdleSessions(ctx context.Context) (int64, error) {
	const op = "WidgetService.CleanupIdleSessions"
	cutoff := time.Now().UTC().Add(-s.cfg.SessionIdleTTL)
	n, err := s.sessions.DeactivateIdleBefore(dbctx.Context{Ctx: ctx}, cutoff)
	if err != nil {
		return 0, apperr.Wrap(apperr.CodeInternal, op, err)
	}
	if n > 0 {
		s.log.Info("Idle widget sessions deactivated", "count", n, "idle_for", s.cfg.SessionIdleTTL)
	}
	return n, nil
}

func (s *widgetService) ownedBot(ctx context.Context, op string, userID, botID uuid.UUID) (*types.Bot, error) {
	if userID == uuid.Nil {
		return nil, apperr.New(apperr.CodeInvalidInput, op, "missing user_id", nil)
	}
	if botID == uuid.Nil {
		return nil, apperr.New(apperr.CodeInvalidInput, op, "missing bot_id", nil)
	}
	bot, err := s.bots.GetByID(dbctx.Context{Ctx: ctx}, botID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperr.New(apperr.CodeNotFound, op, "bot not found", err)
		}
		return nil, apperr.Wrap(apperr.CodeInternal, op, err)
	}
	if bot.OwnerID != userID {
		return nil, apperr.New(apperr.CodeForbidden, op, "bot not owned", nil)
	}
	return bot, nil
}

// activeBot resolves a bot for widget-token traffic; ownership was already
// proven by the token signature.
func (s *widgetService) activeBot(ctx context.Context, op string, botID uuid.UUID) (*types.Bot, error) {
	if botID == uuid.Nil {
		return nil, apperr.New(apperr.CodeInvalidToken, op, "token carries no bot", nil)
	}
	bot, err := s.bots.GetByID(dbctx.Context{Ctx: ctx}, botID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperr.New(apperr.CodeNotFound, op, "bot not found", err)
		}
		return nil, apperr.Wrap(apperr.CodeInternal, op, err)
	}
	if !bot.IsActive {
		return nil, apperr.New(apperr.CodeForbidden, op, "bot is disabled", nil)
	}
	return bot, nil
}

func newSessionToken() (string, error) {
	buf := make([]byte, sessionSecretBytes)
	if _, err := rand.Read(buf); err != nil {
		return "", err
	}
	return sessionTokenPrefix + base64.RawURLEncoding.EncodeToString(buf), nil
}

func embedSnippet(botID uuid.UUID, token string) string {
	return fmt.Sprintf(`<script src=%q data-aidly-bot=%q data-aidly-token=%q defer></script>`,
		widgetEmbedSrc, botID.String(), token)
}
