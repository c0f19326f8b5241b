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

// ChatHandler fronts the answer pipeline. A weighted semaphore bounds
// in-flight turns; past the bound the handler sheds load with a 503 rather
// than queueing requests behind slow generations.
type ChatHandler struct {
	conversations  services.ConversationService
	workspaces     services.WorkspaceService
	slots          *semaphore.Weighted
	maxQuestionLen int
}

func NewChatHandler(
	conversations services.ConversationService,
	workspaces services.WorkspaceService,
	slots *semaphore.Weighted,
	maxQuestionLen int,
) *ChatHandler {
	if maxQuestionLen <= 0 {
		maxQuestionLen = 1000
	}
	return &ChatHandler{
		conversations:  conversations,
		workspaces:     workspaces,
		slots:          slots,
		maxQuestionLen: maxQuestionLen,
	}
}

// POST /chat/
func (h *ChatHandler) Ask(c *gin.Context) {
	startedAt := time.Now()

	userID, ok := currentUser(c)
	if !ok {
		response.RespondError(c, http.StatusUnauthorized, "unauthenticated", errors.New("missing identity"))
		return
	}

	var req struct {
		Question       string     `json:"question"`
		ConversationID *uuid.UUID `json:"conversation_id"`
		// Accepted for client compatibility; the configured model answers.
		ModelName string `json:"model_name"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		response.RespondError(c, http.StatusBadRequest, "invalid_request", err)
		return
	}
	question := strings.TrimSpace(req.Question)
	if question == "" {
		response.RespondError(c, http.StatusBadRequest, "invalid_input", errors.New("question is required"))
		return
	}
	if len(question) > h.maxQuestionLen {
		response.RespondError(c, http.StatusBadRequest, "invalid_input",
			fmt.Errorf("question exceeds %d bytes", h.maxQuestionLen))
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

	ctx := c.Request.Context()
	wsID, err := h.workspaces.CurrentWorkspaceID(ctx, userID)
	if err != nil {
		response.RespondAppError(c, err)
		return
	}

	res, err := h.conversations.Ask(ctx, services.ChatTurnInput{
		UserID:         userID,
		WorkspaceID:    wsID,
		ConversationID: req.ConversationID,
		Question:       question,
		Language:       h.workspaces.Language(ctx, userID),
		ClientIP:       c.ClientIP(),
		StartedAt:      startedAt,
	})
	if err != nil {
		response.RespondAppError(c, err)
		return
	}
	response.RespondOK(c, res)
}
