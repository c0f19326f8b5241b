package handlers

import (
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"golang.org/x/sync/semaphore"

	"github.com/datafirst-hq/aidly-backend/internal/http/response"
	"github.com/datafirst-hq/aidly-backend/internal/services"
)

// WidgetHandler serves both sides of the embeddable widget: the dashboard
// side (token generation, bot management, Bearer auth) and the visitor side
// (session start and chat, widget-token auth). Visitor turns share the chat
// semaphore so embedded traffic cannot starve the dashboard.
type WidgetHandler struct {
	widget         services.WidgetService
	slots          *semaphore.Weighted
	maxQuestionLen int
}

func NewWidgetHandler(widget services.WidgetService, slots *semaphore.Weighted, maxQuestionLen int) *WidgetHandler {
	if maxQuestionLen <= 0 {
		maxQuestionLen = 1000
	}
	return &WidgetHandler{widget: widget, slots: slots, maxQuestionLen: maxQuestionLen}
}

// POST /widget/generate
func (h *WidgetHandler) Generate(c *gin.Context) {
	userID, ok := currentUser(c)
	if !ok {
		response.RespondError(c, http.StatusUnauthorized, "unauthenticated", errors.New("missing identity"))
		return
	}
	var req struct {
		BotID       *uuid.UUID `json:"bot_id"`
		BotName     string     `json:"bot_name"`
		WorkspaceID *uuid.UUID `json:"workspace_id"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		response.RespondError(c, http.StatusBadRequest, "invalid_request", err)
		return
	}
	res, err := h.widget.Generate(c.Request.Context(), services.WidgetGenerateInput{
		UserID:      userID,
		BotID:       req.BotID,
		BotName:     req.BotName,
		WorkspaceID: req.WorkspaceID,
	})
	if err != nil {
		response.RespondAppError(c, err)
		return
	}
	response.RespondOK(c, res)
}

// POST /widget/revoke
func (h *WidgetHandler) Revoke(c *gin.Context) {
	userID, ok := currentUser(c)
	if !ok {
		response.RespondError(c, http.StatusUnauthorized, "unauthenticated", errors.New("missing identity"))
		return
	}
	var req struct {
		BotID   uuid.UUID  `json:"bot_id"`
		TokenID *uuid.UUID `json:"token_id"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		response.RespondError(c, http.StatusBadRequest, "invalid_request", err)
		return
	}
	revoked, err := h.widget.Revoke(c.Request.Context(), userID, req.BotID, req.TokenID)
	if err != nil {
		response.RespondAppError(c, err)
		return
	}
	response.RespondOK(c, gin.H{"revoked": revoked})
}

// GET /widget/bots
func (h *WidgetHandler) ListBots(c *gin.Context) {
	userID, ok := currentUser(c)
	if !ok {
		response.RespondError(c, http.StatusUnauthorized, "unauthenticated", errors.New("missing identity"))
		return
	}
	bots, err := h.widget.ListBots(c.Request.Context(), userID)
	if err != nil {
		response.RespondAppError(c, err)
		return
	}
	response.RespondData(c, "bots fetched", bots)
}

// POST /widget/bots
func (h *WidgetHandler) CreateBot(c *gin.Context) {
	userID, ok := currentUser(c)
	if !ok {
		response.RespondError(c, http.StatusUnauthorized, "unauthenticated", errors.New("missing identity"))
		return
	}
	var req struct {
		Name           string     `json:"name"`
		WelcomeMessage string     `json:"welcome_message"`
		WorkspaceID    *uuid.UUID `json:"workspace_id"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		response.RespondError(c, http.StatusBadRequest, "invalid_request", err)
		return
	}
	bot, err := h.widget.CreateBot(c.Request.Context(), userID, services.BotInput{
		Name:           req.Name,
		WelcomeMessage: req.WelcomeMessage,
		WorkspaceID:    req.WorkspaceID,
	})
	if err != nil {
		response.RespondAppError(c, err)
		return
	}
	response.RespondData(c, "bot created", bot)
}

// PUT /widget/bots/:id
func (h *WidgetHandler) UpdateBot(c *gin.Context) {
	userID, ok := currentUser(c)
	if !ok {
		response.RespondError(c, http.StatusUnauthorized, "unauthenticated", errors.New("missing identity"))
		return
	}
	botID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		response.RespondError(c, http.StatusBadRequest, "invalid_bot_id", err)
		return
	}
	var req struct {
		Name           *string `json:"name"`
		WelcomeMessage *string `json:"welcome_message"`
		IsActive       *bool   `json:"is_active"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		response.RespondError(c, http.StatusBadRequest, "invalid_request", err)
		return
	}
	bot, err := h.widget.UpdateBot(c.Request.Context(), userID, botID, services.BotUpdate{
		Name:           req.Name,
		WelcomeMessage: req.WelcomeMessage,
		IsActive:       req.IsActive,
	})
	if err != nil {
		response.RespondAppError(c, err)
		return
	}
	response.RespondData(c, "bot updated", bot)
}

// DELETE /widget/bots/:id
func (h *WidgetHandler) DeleteBot(c *gin.Context) {
	userID, ok := currentUser(c)
	if !ok {
		response.RespondError(c, http.StatusUnauthorized, "unauthenticated", errors.New("missing identity"))
		return
	}
	botID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		response.RespondError(c, http.StatusBadRequest, "invalid_bot_id", err)
		return
	}
	if err := h.widget.DeleteBot(c.Request.Context(), userID, botID); err != nil {
		response.RespondAppError(c, err)
		return
	}
	response.RespondData(c, "bot deleted", nil)
}

// POST /widget/session/start (widget token)
func (h *WidgetHandler) StartSession(c *gin.Context) {
	identity, ok := currentWidget(c)
	if !ok {
		response.RespondError(c, http.StatusUnauthorized, "unauthenticated", errors.New("missing widget identity"))
		return
	}
	start, err := h.widget.StartSession(c.Request.Context(), identity)
	if err != nil {
		response.RespondAppError(c, err)
		return
	}
	response.RespondOK(c, start)
}

// POST /widget/chat (widget token)
func (h *WidgetHandler) Chat(c *gin.Context) {
	startedAt := time.Now()

	identity, ok := currentWidget(c)
	if !ok {
		response.RespondError(c, http.StatusUnauthorized, "unauthenticated", errors.New("missing widget identity"))
		return
	}
	var req struct {
		SessionID string `json:"session_id"`
		Message   string `json:"message"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		response.RespondError(c, http.StatusBadRequest, "invalid_request", err)
		return
	}
	message := strings.TrimSpace(req.Message)
	if message == "" {
		response.RespondError(c, http.StatusBadRequest, "invalid_input", errors.New("message is required"))
		return
	}
	if len(message) > h.maxQuestionLen {
		response.RespondError(c, http.StatusBadRequest, "invalid_input",
			fmt.Errorf("message exceeds %d bytes", h.maxQuestionLen))
		return
	}

	if h.slots != nil {
		if !h.slots.TryAcquire(1) {
			response.RespondError(c, http.StatusServiceUnavailable, "upstream_unavailable",
				errors.New("chat is at capacity, retry shortly"))
			return
		}
		defer h.slots.Release(1)
	}

	res, err := h.widget.Chat(c.Request.Context(), identity, req.SessionID, message, startedAt)
	if err != nil {
		response.RespondAppError(c, err)
		return
	}
	// Visitor sessions track their own history; the internal conversation id
	// stays server-side.
	response.RespondOK(c, gin.H{
		"answer":     res.Answer,
		"message_id": res.MessageID,
		"latency_ms": res.LatencyMS,
	})
}
