package handlers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/datafirst-hq/aidly-backend/internal/http/response"
	"github.com/datafirst-hq/aidly-backend/internal/services"
)

type UserHandler struct {
	workspaces services.WorkspaceService
}

func NewUserHandler(workspaces services.WorkspaceService) *UserHandler {
	return &UserHandler{workspaces: workspaces}
}

// GET /users/me
func (uh *UserHandler) Me(c *gin.Context) {
	userID, ok := currentUser(c)
	if !ok {
		response.RespondError(c, http.StatusUnauthorized, "unauthenticated", errors.New("missing identity"))
		return
	}
	me, err := uh.workspaces.Profile(c.Request.Context(), userID)
	if err != nil {
		response.RespondAppError(c, err)
		return
	}
	response.RespondOK(c, gin.H{"me": me})
}

// PUT /users/language
func (uh *UserHandler) SetLanguage(c *gin.Context) {
	userID, ok := currentUser(c)
	if !ok {
		response.RespondError(c, http.StatusUnauthorized, "unauthenticated", errors.New("missing identity"))
		return
	}
	var req struct {
		Language string `json:"language"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		response.RespondError(c, http.StatusBadRequest, "invalid_request", err)
		return
	}
	if err := uh.workspaces.SetLanguage(c.Request.Context(), userID, req.Language); err != nil {
		response.RespondAppError(c, err)
		return
	}
	response.RespondData(c, "language updated", nil)
}
