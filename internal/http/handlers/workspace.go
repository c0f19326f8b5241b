package handlers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/datafirst-hq/aidly-backend/internal/http/response"
	"github.com/datafirst-hq/aidly-backend/internal/services"
)

type WorkspaceHandler struct {
	workspaces services.WorkspaceService
}

func NewWorkspaceHandler(workspaces services.WorkspaceService) *WorkspaceHandler {
	return &WorkspaceHandler{workspaces: workspaces}
}

// GET /workspaces/
func (wh *WorkspaceHandler) List(c *gin.Context) {
	userID, ok := currentUser(c)
	if !ok {
		response.RespondError(c, http.StatusUnauthorized, "unauthenticated", errors.New("missing identity"))
		return
	}
	list, err := wh.workspaces.ListWorkspaces(c.Request.Context(), userID)
	if err != nil {
		response.RespondAppError(c, err)
		return
	}
	response.RespondData(c, "workspaces fetched", list)
}

// POST /workspaces/
func (wh *WorkspaceHandler) Create(c *gin.Context) {
	userID, ok := currentUser(c)
	if !ok {
		response.RespondError(c, http.StatusUnauthorized, "unauthenticated", errors.New("missing identity"))
		return
	}
	var req struct {
		Name string `json:"name"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		response.RespondError(c, http.StatusBadRequest, "invalid_request", err)
		return
	}
	ws, err := wh.workspaces.CreateWorkspace(c.Request.Context(), userID, req.Name)
	if err != nil {
		response.RespondAppError(c, err)
		return
	}
	response.RespondData(c, "workspace created", ws)
}

// PUT /workspaces/current
func (wh *WorkspaceHandler) SwitchCurrent(c *gin.Context) {
	userID, ok := currentUser(c)
	if !ok {
		response.RespondError(c, http.StatusUnauthorized, "unauthenticated", errors.New("missing identity"))
		return
	}
	var req struct {
		WorkspaceID uuid.UUID `json:"workspace_id"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		response.RespondError(c, http.StatusBadRequest, "invalid_request", err)
		return
	}
	if err := wh.workspaces.SetCurrentWorkspace(c.Request.Context(), userID, req.WorkspaceID); err != nil {
		response.RespondAppError(c, err)
		return
	}
	response.RespondData(c, "workspace switched", nil)
}
