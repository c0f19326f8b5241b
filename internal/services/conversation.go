package services

import (
	"context"
	"errors"
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

// conversationTitleRunes is how much of the first question becomes the
// auto-generated conversation title.
const conversationTitleRunes = 10

// ChatTurnInput is one question the pipeline should answer and persist.
// UserID is the acting identity; widget turns run as the bot owner with
// AnonymousAsker set so the message row carries no user.
type ChatTurnInput struct {
	UserID         uuid.UUID
	AnonymousAsker bool
	WorkspaceID    uuid.UUID
	ConversationID *uuid.UUID
	Question       string
	Language       string
	ClientIP       string

	// StartedAt is when the handler first saw the request; latency_ms is
	// measured from it to the end of generation.
	StartedAt time.Time
}

type ChatTurnResult struct {
	Answer         string    `json:"answer"`
	LatencyMS      int64     `json:"latency_ms"`
	MessageID      uuid.UUID `json:"message_id"`
	ConversationID uuid.UUID `json:"conversation_id"`
}

// TicketInput is a support escalation raised by a user.
type TicketInput struct {
	UserID         uuid.UUID
	WorkspaceID    uuid.UUID
	ConversationID *uuid.UUID
	Title          string
	Description    string
	Priority       string
	Category       string
}

// ConversationService owns conversations and their message history: running
// chat turns, recording feedback, and escalating to tickets.
type ConversationService interface {
	Ask(ctx context.Context, in ChatTurnInput) (*ChatTurnResult, error)
	CreateConversation(ctx context.Context, userID, workspaceID uuid.UUID, title string) (*types.Conversation, error)
	ListConversations(ctx context.Context, userID, workspaceID uuid.UUID, limit int) ([]*types.Conversation, error)
	RenameConversation(ctx context.Context, userID, conversationID uuid.UUID, title string) (*types.Conversation, error)
	DeleteConversation(ctx context.Context, userID, conversationID uuid.UUID) error
	ListMessages(ctx context.Context, userID, conversationID uuid.UUID, limit int) ([]*types.Message, error)
	ListRecentMessages(ctx context.Context, workspaceID uuid.UUID, limit int) ([]*types.Message, error)
	RecordFeedback(ctx context.Context, userID, messageID uuid.UUID, feedback, clientIP string) error
	CreateTicket(ctx context.Context, in TicketInput) (*types.Ticket, error)
	ListTickets(ctx context.Context, workspaceID uuid.UUID, limit int) ([]*types.Ticket, error)
}

type conversationService struct {
	log           *logger.Logger
	conversations chatrepo.ConversationRepo
	messages      chatrepo.MessageRepo
	tickets       chatrepo.TicketRepo
	rag           RagService
	interactions  InteractionLogger
}

func NewConversationService(
	log *logger.Logger,
	conversations chatrepo.ConversationRepo,
	messages chatrepo.MessageRepo,
	tickets chatrepo.TicketRepo,
	rag RagService,
	interactions InteractionLogger,
) ConversationService {
	return &conversationService{
		log:           log.With("service", "ConversationService"),
		conversations: conversations,
		messages:      messages,
		tickets:       tickets,
		rag:           rag,
		interactions:  interactions,
	}
}

func (s *conversationService) Ask(ctx context.Context, in ChatTurnInput) (*ChatTurnResult, error) {
	const op = "ConversationService.Ask"
	question := strings.TrimSpace(in.Question)
	if question == "" {
		return nil, apperr.New(apperr.CodeInvalidInput, op, "question is required", nil)
	}
	if in.UserID == uuid.Nil || in.WorkspaceID == uuid.Nil {
		return nil, apperr.New(apperr.CodeInvalidInput, op, "missing user_id or workspace_id", nil)
	}
	if in.StartedAt.IsZero() {
		in.StartedAt = time.Now().UTC()
	}

	dbc := dbctx.Context{Ctx: ctx}
	var conv *types.Conversation
	if in.ConversationID != nil && *in.ConversationID != uuid.Nil {
		existing, err := s.ownedConversation(ctx, op, in.UserID, *in.ConversationID)
		if err != nil {
			return nil, err
		}
		if existing.WorkspaceID != in.WorkspaceID {
			return nil, apperr.New(apperr.CodeForbidden, op, "conversation belongs to another workspace", nil)
		}
		conv = existing
	} else {
		created, err := s.conversations.Create(dbc, &types.Conversation{
			UserID:      in.UserID,
			WorkspaceID: in.WorkspaceID,
			Title:       conversationTitle(question),
		})
		if err != nil {
			return nil, apperr.Wrap(apperr.CodeInternal, op, err)
		}
		conv = created
	}

	res := s.rag.Ask(ctx, AskRequest{
		Question:    question,
		WorkspaceID: in.WorkspaceID,
		Language:    in.Language,
	})
	latency := time.Since(in.StartedAt).Milliseconds()

	var msgUser *uuid.UUID
	if !in.AnonymousAsker {
		uid := in.UserID
		msgUser = &uid
	}
	msg, err := s.messages.Create(dbc, &types.Message{
		ConversationID: conv.ID,
		UserID:         msgUser,
		Question:       question,
		Answer:         res.Answer,
		Model:          res.Metrics.ModelName,
		LatencyMS:      latency,
	})
	if err != nil {
		return nil, apperr.Wrap(apperr.CodeInternal, op, err)
	}
	if err := s.conversations.Touch(dbc, conv.ID); err != nil {
		s.log.Warn("Conversation touch failed", "conversation_id", conv.ID, "error", err)
	}

	s.logInteraction(in, conv.ID, msg.ID, question, res, latency)

	return &ChatTurnResult{
		Answer:         res.Answer,
		LatencyMS:      latency,
		MessageID:      msg.ID,
		ConversationID: conv.ID,
	}, nil
}

func (s *conversationService) CreateConversation(ctx context.Context, userID, workspaceID uuid.UUID, title string) (*types.Conversation, error) {
	const op = "ConversationService.CreateConversation"
	if userID == uuid.Nil || workspaceID == uuid.Nil {
		return nil, apperr.New(apperr.CodeInvalidInput, op, "missing user_id or workspace_id", nil)
	}
	title = strings.TrimSpace(title)
	if title == "" {
		title = conversationTitle("")
	}
	conv, err := s.conversations.Create(dbctx.Context{Ctx: ctx}, &types.Conversation{
		UserID:      userID,
		WorkspaceID: workspaceID,
		Title:       title,
	})
	if err != nil {
		return nil, apperr.Wrap(apperr.CodeInternal, op, err)
	}
	return conv, nil
}

func (s *conversationService) ListConversations(ctx context.Context, userID, workspaceID uuid.UUID, limit int) ([]*types.Conversation, error) {
	const op = "ConversationService.ListConversations"
	if userID == uuid.Nil || workspaceID == uuid.Nil {
		return nil, apperr.New(apperr.CodeInvalidInput, op, "missing user_id or workspace_id", nil)
	}
	out, err := s.conversations.ListByUserWorkspace(dbctx.Context{Ctx: ctx}, userID, workspaceID, limit)
	if err != nil {
		return nil, apperr.Wrap(apperr.CodeInternal, op, err)
	}
	return out, nil
}

func (s *conversationService) RenameConversation(ctx context.Context, userID, conversationID uuid.UUID, title string) (*types.Conversation, error) {
	const op = "ConversationService.RenameConversation"
	title = strings.TrimSpace(title)
	if title == "" {
		return nil, apperr.New(apperr.CodeInvalidInput, op, "title is required", nil)
	}
	conv, err := s.ownedConversation(ctx, op, userID, conversationID)
	if err != nil {
		return nil, err
	}
	if err := s.conversations.UpdateTitle(dbctx.Context{Ctx: ctx}, conv.ID, title); err != nil {
		return nil, apperr.Wrap(apperr.CodeInternal, op, err)
	}
	conv.Title = title
	return conv, nil
}

func (s *conversationService) DeleteConversation(ctx context.Context, userID, conversationID uuid.UUID) error {
	const op = "ConversationService.DeleteConversation"
	conv, err := s.ownedConversation(ctx, op, userID, conversationID)
	if err != nil {
		return err
	}
	dbc := dbctx.Context{Ctx: ctx}
	if _, err := s.messages.DeleteByConversation(dbc, conv.ID); err != nil {
		return apperr.Wrap(apperr.CodeInternal, op, err)
	}
	if err := s.conversations.Delete(dbc, conv.ID); err != nil {
		return apperr.Wrap(apperr.CodeInternal, op, err)
	}
	s.log.Info("Conversation deleted", "conversation_id", conv.ID, "user_id", userID)
	return nil
}

func (s *conversationService) ListMessages(ctx context.Context, userID, conversationID uuid.UUID, limit int) ([]*types.Message, error) {
	const op = "ConversationService.ListMessages"
	conv, err := s.ownedConversation(ctx, op, userID, conversationID)
	if err != nil {
		return nil, err
	}
	out, err := s.messages.ListByConversation(dbctx.Context{Ctx: ctx}, conv.ID, limit)
	if err != nil {
		return nil, apperr.Wrap(apperr.CodeInternal, op, err)
	}
	return out, nil
}

func (s *conversationService) ListRecentMessages(ctx context.Context, workspaceID uuid.UUID, limit int) ([]*types.Message, error) {
	const op = "ConversationService.ListRecentMessages"
	if workspaceID == uuid.Nil {
		return nil, apperr.New(apperr.CodeInvalidInput, op, "missing workspace_id", nil)
	}
	out, err := s.messages.ListByWorkspace(dbctx.Context{Ctx: ctx}, workspaceID, limit)
	if err != nil {
		return nil, apperr.Wrap(apperr.CodeInternal, op, err)
	}
	return out, nil
}

func (s *conversationService) RecordFeedback(ctx context.Context, userID, messageID uuid.UUID, feedback, clientIP string) error {
	const op = "ConversationService.RecordFeedback"
	feedback = strings.ToLower(strings.TrimSpace(feedback))
	if feedback != types.FeedbackUp && feedback != types.FeedbackDown {
		return apperr.New(apperr.CodeInvalidInput, op, `feedback must be "up" or "down"`, nil)
	}
	if messageID == uuid.Nil {
		return apperr.New(apperr.CodeInvalidInput, op, "missing message_id", nil)
	}

	dbc := dbctx.Context{Ctx: ctx}
	msg, err := s.messages.GetByID(dbc, messageID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return apperr.New(apperr.CodeNotFound, op, "message not found", err)
		}
		return apperr.Wrap(apperr.CodeInternal, op, err)
	}
	if _, err := s.ownedConversation(ctx, op, userID, msg.ConversationID); err != nil {
		return err
	}
	if err := s.messages.SetFeedback(dbc, msg.ID, feedback); err != nil {
		return apperr.Wrap(apperr.CodeInternal, op, err)
	}

	if s.interactions != nil {
		uid := userID.String()
		convID := msg.ConversationID.String()
		rec := FeedbackRecord{
			MessageID:         msg.ID.String(),
			UserID:            &uid,
			FeedbackType:      feedback,
			OriginalQuery:     msg.Question,
			OriginalResponse:  msg.Answer,
			ResponseLatencyMS: &msg.LatencyMS,
			ConversationID:    &convID,
		}
		if msg.Model != "" {
			model := msg.Model
			rec.ModelUsed = &model
		}
		if strings.TrimSpace(clientIP) != "" {
			ip := clientIP
			rec.ClientIP = &ip
		}
		go s.interactions.LogFeedback(rec)
	}
	return nil
}

func (s *conversationService) CreateTicket(ctx context.Context, in TicketInput) (*types.Ticket, error) {
	const op = "ConversationService.CreateTicket"
	if in.UserID == uuid.Nil || in.WorkspaceID == uuid.Nil {
		return nil, apperr.New(apperr.CodeInvalidInput, op, "missing user_id or workspace_id", nil)
	}
	title := strings.TrimSpace(in.Title)
	if title == "" {
		return nil, apperr.New(apperr.CodeInvalidInput, op, "title is required", nil)
	}
	priority := strings.ToLower(strings.TrimSpace(in.Priority))
	if priority == "" {
		priority = "normal"
	}
	switch priority {
	case "low", "normal", "high", "urgent":
	default:
		return nil, apperr.New(apperr.CodeInvalidInput, op, "invalid priority", nil)
	}
	if in.ConversationID != nil && *in.ConversationID != uuid.Nil {
		conv, err := s.ownedConversation(ctx, op, in.UserID, *in.ConversationID)
		if err != nil {
			return nil, err
		}
		if conv.WorkspaceID != in.WorkspaceID {
			return nil, apperr.New(apperr.CodeForbidden, op, "conversation belongs to another workspace", nil)
		}
	}

	ticket, err := s.tickets.Create(dbctx.Context{Ctx: ctx}, &types.Ticket{
		UserID:         in.UserID,
		WorkspaceID:    in.WorkspaceID,
		ConversationID: in.ConversationID,
		Title:          title,
		Description:    strings.TrimSpace(in.Description),
		Priority:       priority,
		Category:       strings.TrimSpace(in.Category),
		Status:         types.TicketStatusOpen,
	})
	if err != nil {
		return nil, apperr.Wrap(apperr.CodeInternal, op, err)
	}
	s.log.Info("Ticket created", "ticket_id", ticket.ID, "workspace_id", in.WorkspaceID, "priority", priority)
	return ticket, nil
}

func (s *conversationService) ListTickets(ctx context.Context, workspaceID uuid.UUID, limit int) ([]*types.Ticket, error) {
	const op = "ConversationService.ListTickets"
	if workspaceID == uuid.Nil {
		return nil, apperr.New(apperr.CodeInvalidInput, op, "missing workspace_id", nil)
	}
	out, err := s.tickets.ListByWorkspace(dbctx.Context{Ctx: ctx}, workspaceID, limit)
	if err != nil {
		return nil, apperr.Wrap(apperr.CodeInternal, op, err)
	}
	return out, nil
}

func (s *conversationService) ownedConversation(ctx context.Context, op string, userID, conversationID uuid.UUID) (*types.Conversation, error) {
	if userID == uuid.Nil {
		return nil, apperr.New(apperr.CodeInvalidInput, op, "missing user_id", nil)
	}
	if conversationID == uuid.Nil {
		return nil, apperr.New(apperr.CodeInvalidInput, op, "missing conversation_id", nil)
	}
	conv, err := s.conversations.GetByID(dbctx.Context{Ctx: ctx}, conversationID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperr.New(apperr.CodeNotFound, op, "conversation not found", err)
		}
		return nil, apperr.Wrap(apperr.CodeInternal, op, err)
	}
	if conv.UserID != userID {
		return nil, apperr.New(apperr.CodeForbidden, op, "conversation belongs to another user", nil)
	}
	return conv, nil
}

func (s *conversationService) logInteraction(in ChatTurnInput, convID, msgID uuid.UUID, question string, res AskResult, latency int64) {
	if s.interactions == nil {
		return
	}
	var userID *string
	if !in.AnonymousAsker {
		v := in.UserID.String()
		userID = &v
	}
	convStr := convID.String()
	msgStr := msgID.String()
	rec := InteractionRecord{
		UserID:              userID,
		UserQuery:           question,
		Response:            res.Answer,
		LatencyMS:           latency,
		RetrievedDocs:       res.Metrics.RetrievedDocs,
		RetrievalLatencyMS:  &res.Metrics.RetrievalLatencyMS,
		GenerationLatencyMS: &res.Metrics.GenerationLatencyMS,
		ModelName:           &res.Metrics.ModelName,
		Temperature:         &res.Metrics.Temperature,
		ConversationID:      &convStr,
		MessageID:           &msgStr,
		SourceLanguage:      res.Metrics.SourceLanguage,
		ResponseLanguage:    res.Metrics.ResponseLanguage,
		WasTranslated:       res.Metrics.WasTranslated,
		OriginalQuestion:    res.Metrics.OriginalQuestion,
		TranslatedQuestion:  res.Metrics.TranslatedQuestion,
		Err:                 res.Metrics.Err,
		AdditionalContext:   res.Metrics.ContextText,
	}
	go s.interactions.LogInteraction(rec)
}

// conversationTitle derives a short title from the first question; blank
// input falls back to a timestamp.
func conversationTitle(question string) string {
	q := strings.TrimSpace(question)
	if q == "" {
		return time.Now().UTC().Format("2006-01-02 15:04:05")
	}
	runes := []rune(q)
	if len(runes) > conversationTitleRunes {
		return string(runes[:conversationTitleRunes]) + "…"
	}
	return q
}
