package handlers

import (
	"errors"
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/datafirst-hq/aidly-backend/internal/http/response"
	"github.com/datafirst-hq/aidly-backend/internal/services"
)

type ConversationHandler struct {
	conversations services.ConversationService
	workspaces    services.WorkspaceService
}

func NewConversationHandler(conversations services.ConversationService, workspaces services.WorkspaceService) *ConversationHandler {
	return &ConversationHandler{conversations: conversations, workspaces: workspaces}
}

// GET /conversations/?limit=50
func (h *ConversationHandler) List(c *gin.Context) {
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
	list, err := h.conversations.ListConversations(ctx, userID, wsID, queryLimit(c, 50))
	if err != nil {
		response.RespondAppError(c, err)
		return
	}
	response.RespondData(c, "conversations fetched", list)
}

// POST /conversations/
func (h *ConversationHandler) Create(c *gin.Context) {
	userID, ok := currentUser(c)
	if !ok {
		response.RespondError(c, http.StatusUnauthorized, "unauthenticated", errors.New("missing identity"))
		return
	}
	var req struct {
		Title string `json:"title"`
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
	conv, err := h.conversations.CreateConversation(ctx, userID, wsID, req.Title)
	if err != nil {
		response.RespondAppError(c, err)
		return
	}
	response.RespondData(c, "conversation created", conv)
}

// PUT /conversations/:id
func (h *ConversationHandler) Rename(c *gin.Context) {
	userID, ok := currentUser(c)
	if !ok {
		response.RespondError(c, http.StatusUnauthorized, "unauthenticated", errors.New("missing identity"))
		return
	}
	convID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		response.RespondError(c, http.StatusBadRequest, "invalid_conversation_id", err)
		return
	}
	var req struct {
		Title string `json:"title"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		response.RespondError(c, http.StatusBadRequest, "invalid_request", err)
		return
	}
	conv, err := h.conversations.RenameConversation(c.Request.Context(), userID, convID, req.Title)
	if err != nil {
		response.RespondAppError(c, err)
		return
	}
	response.RespondData(c, "conversation renamed", conv)
}

// DELETE /conversations/:id
func (h *ConversationHandler) Delete(c *gin.Context) {
	userID, ok := currentUser(c)
	if !ok {
		response.RespondError(c, http.StatusUnauthorized, "unauthenticated", errors.New("missing identity"))
		return
	}
	convID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		response.RespondError(c, http.StatusBadRequest, "invalid_conversation_id", err)
		return
	}
	if err := h.conversations.DeleteConversation(c.Request.Context(), userID, convID); err != nil {
		response.RespondAppError(c, err)
		return
	}
	response.RespondData(c, "conversation deleted", nil)
}

// GET /conversations/:id/messages?limit=100
func (h *ConversationHandler) Messages(c *gin.Context) {
	userID, ok := currentUser(c)
	if !ok {
		response.RespondError(c, http.StatusUnauthorized, "unauthenticated", errors.New("missing identity"))
		return
	}
	convID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		response.RespondError(c, http.StatusBadRequest, "invalid_conversation_id", err)
		return
	}
	msgs, err := h.conversations.ListMessages(c.Request.Context(), userID, convID, queryLimit(c, 100))
	if err != nil {
		response.RespondAppError(c, err)
		return
	}
	response.RespondData(c, "messages fetched", msgs)
}

// GET /messages/?limit=50
// Recent turns across the current workspace, newest first.
func (h *ConversationHandler) RecentMessages(c *gin.Context) {
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
	msgs, err := h.conversations.ListRecentMessages(ctx, wsID, queryLimit(c, 50))
	if err != nil {
		response.RespondAppError(c, err)
		return
	}
	response.RespondData(c, "messages fetched", msgs)
}

// POST /messages/:id/feedback
func (h *ConversationHandler) Feedback(c *gin.Context) {
	userID, ok := currentUser(c)
	if !ok {
		response.RespondError(c, http.StatusUnauthorized, "unauthenticated", errors.New("missing identity"))
		return
	}
	msgID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		response.RespondError(c, http.StatusBadRequest, "invalid_message_id", err)
		return
	}
	var req struct {
		Feedback string `json:"feedback"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		response.RespondError(c, http.StatusBadRequest, "invalid_request", err)
		return
	}
	if err := h.conversations.RecordFeedback(c.Request.Context(), userID, msgID, req.Feedback, c.ClientIP()); err != nil {
		response.RespondAppError(c, err)
		return
	}
	response.RespondData(c, "feedback recorded", nil)
}

func queryLimit(c *gin.Context, fallback int) int {
	limit := fallback
	if v := strings.TrimSpace(c.Query("limit")); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			limit = n
		}
	}
	return limit
}
