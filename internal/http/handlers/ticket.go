package handlers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/datafirst-hq/aidly-backend/internal/http/response"
	"github.com/datafirst-hq/aidly-backend/internal/services"
)

// TicketHandler covers escalation: turns the pipeline could not resolve get
// handed to a human as support tickets.
type TicketHandler struct {
	conversations services.ConversationService
	workspaces    services.WorkspaceService
}

func NewTicketHandler(conversations services.ConversationService, workspaces services.WorkspaceService) *TicketHandler {
	return &TicketHandler{conversations: conversations, workspaces: workspaces}
}

// POST /tickets/
func (h *TicketHandler) Create(c *gin.Context) {
	userID, ok := currentUser(c)
	if !ok {
		response.RespondError(c, http.StatusUnauthorized, "unauthenticated", errors.New("missing identity"))
		return
	}
	var req struct {
		ConversationID *uuid.UUID `json:"conversation_id"`
		Title          string     `json:"title"`
		Description    string     `json:"description"`
		Priority       string     `json:"priority"`
		Category       string     `json:"category"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		response.RespondError(c, http.StatusBadRequest, "invalid_request", err)
		return
	}
	ctx := c.Request.Context()
	wsID, err := h.workspaces.CurrentWorkspaceID(ctx, userID)
	if err != nil {
		response.RespondAppError(c, err)
		return
	}
	ticket, err := h.conversations.CreateTicket(ctx, services.TicketInput{
		UserID:         userID,
		WorkspaceID:    wsID,
		ConversationID: req.ConversationID,
		Title:          req.Title,
		Description:    req.Description,
		Priority:       req.Priority,
		Category:       req.Category,
	})
	if err != nil {
		response.RespondAppError(c, err)
		return
	}
	response.RespondData(c, "ticket created", ticket)
}

// GET /tickets/?limit=50
func (h *TicketHandler) List(c *gin.Context) {
	userID, ok := currentUser(c)
	if !ok {
		response.RespondError(c, http.StatusUnauthorized, "unauthenticated", errors.New("missing identity"))
		return
	}
	ctx := c.Request.Context()
	wsID, err := h.workspaces.CurrentWorkspaceID(ctx, userID)
	if err != nil {
		response.RespondAppError(c, err)
		return
	}
	tickets, err := h.conversations.ListTickets(ctx, wsID, queryLimit(c, 50))
	if err != nil {
		response.RespondAppError(c, err)
		return
	}
	response.RespondData(c, "tickets fetched", tickets)
}
