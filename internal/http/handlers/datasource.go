package handlers

import (
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	types "github.com/datafirst-hq/aidly-backend/internal/domain"
	"github.com/datafirst-hq/aidly-backend/internal/http/response"
	"github.com/datafirst-hq/aidly-backend/internal/services"
)

// DataSourceHandler serves the knowledge-base surface: uploads, urls, the
// sync lifecycle, and external ticket providers. Every operation is scoped
// to the caller's current workspace.
type DataSourceHandler struct {
	syncer     services.SyncService
	external   services.ExternalSyncService
	workspaces services.WorkspaceService
}

func NewDataSourceHandler(
	syncer services.SyncService,
	external services.ExternalSyncService,
	workspaces services.WorkspaceService,
) *DataSourceHandler {
	return &DataSourceHandler{syncer: syncer, external: external, workspaces: workspaces}
}

// scope resolves the caller and their current workspace, replying itself
// when either is missing.
func (h *DataSourceHandler) scope(c *gin.Context) (uuid.UUID, uuid.UUID, bool) {
	userID, ok := currentUser(c)
	if !ok {
		response.RespondError(c, http.StatusUnauthorized, "unauthenticated", errors.New("missing identity"))
		return uuid.Nil, uuid.Nil, false
	}
	wsID, err := h.workspaces.CurrentWorkspaceID(c.Request.Context(), userID)
	if err != nil {
		response.RespondAppError(c, err)
		return uuid.Nil, uuid.Nil, false
	}
	return userID, wsID, true
}

// GET /datasources/
func (h *DataSourceHandler) List(c *gin.Context) {
	_, wsID, ok := h.scope(c)
	if !ok {
		return
	}
	rows, err := h.syncer.ListSources(c.Request.Context(), wsID)
	if err != nil {
		response.RespondAppError(c, err)
		return
	}
	response.RespondData(c, "data sources fetched", rows)
}

// POST /datasources/upload
// multipart: files (repeatable), category, tags, workspace_id (optional
// override, membership checked).
func (h *DataSourceHandler) Upload(c *gin.Context) {
	userID, wsID, ok := h.scope(c)
	if !ok {
		return
	}
	ctx := c.Request.Context()

	if v := strings.TrimSpace(c.PostForm("workspace_id")); v != "" {
		override, err := uuid.Parse(v)
		if err != nil {
			response.RespondError(c, http.StatusBadRequest, "invalid_workspace_id", err)
			return
		}
		if err := h.workspaces.RequireMembership(ctx, userID, override); err != nil {
			response.RespondAppError(c, err)
			return
		}
		wsID = override
	}

	form, err := c.MultipartForm()
	if err != nil {
		response.RespondError(c, http.StatusBadRequest, "invalid_request", err)
		return
	}
	files := form.File["files"]
	if len(files) == 0 {
		response.RespondError(c, http.StatusBadRequest, "invalid_input", errors.New("no files provided"))
		return
	}
	category := strings.TrimSpace(c.PostForm("category"))
	tags := strings.TrimSpace(c.PostForm("tags"))

	saved := make([]*types.DataSource, 0, len(files))
	for _, fh := range files {
		f, err := fh.Open()
		if err != nil {
			response.RespondError(c, http.StatusBadRequest, "invalid_request", err)
			return
		}
		row, err := h.syncer.RegisterUpload(ctx, services.UploadInput{
			WorkspaceID: wsID,
			OwnerID:     userID,
			Filename:    fh.Filename,
			Content:     f,
			Category:    category,
			Tags:        tags,
		})
		f.Close()
		if err != nil {
			response.RespondAppError(c, err)
			return
		}
		saved = append(saved, row)
	}
	response.RespondData(c, "files uploaded", saved)
}

// POST /datasources/add-url
func (h *DataSourceHandler) AddURL(c *gin.Context) {
	userID, wsID, ok := h.scope(c)
	if !ok {
		return
	}
	var req struct {
		URL string `json:"url"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		response.RespondError(c, http.StatusBadRequest, "invalid_request", err)
		return
	}
	row, err := h.syncer.RegisterURL(c.Request.Context(), wsID, userID, req.URL)
	if err != nil {
		response.RespondAppError(c, err)
		return
	}
	response.RespondData(c, "url added", row)
}

// DELETE /datasources/:id
func (h *DataSourceHandler) Delete(c *gin.Context) {
	_, wsID, ok := h.scope(c)
	if !ok {
		return
	}
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		response.RespondError(c, http.StatusBadRequest, "invalid_source_id", err)
		return
	}
	if err := h.syncer.DeleteSource(c.Request.Context(), wsID, id); err != nil {
		response.RespondAppError(c, err)
		return
	}
	response.RespondData(c, "data source deleted", nil)
}

// POST /datasources/regular/:id/sync
func (h *DataSourceHandler) SyncOne(c *gin.Context) {
	_, wsID, ok := h.scope(c)
	if !ok {
		return
	}
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		response.RespondError(c, http.StatusBadRequest, "invalid_source_id", err)
		return
	}
	res, err := h.syncer.SyncSource(c.Request.Context(), wsID, id)
	if err != nil {
		response.RespondAppError(c, err)
		return
	}
	response.RespondData(c, "source synced", res)
}

// POST /datasources/regular/:id/unsync
func (h *DataSourceHandler) UnsyncOne(c *gin.Context) {
	_, wsID, ok := h.scope(c)
	if !ok {
		return
	}
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		response.RespondError(c, http.StatusBadRequest, "invalid_source_id", err)
		return
	}
	if err := h.syncer.UnsyncSource(c.Request.Context(), wsID, id); err != nil {
		response.RespondAppError(c, err)
		return
	}
	response.RespondData(c, "source unsynced", nil)
}

// POST /datasources/regular/sync
func (h *DataSourceHandler) SyncAll(c *gin.Context) {
	_, wsID, ok := h.scope(c)
	if !ok {
		return
	}
	res, err := h.syncer.SyncAllRegular(c.Request.Context(), wsID)
	if err != nil {
		response.RespondAppError(c, err)
		return
	}
	if len(res.Failed) > 0 {
		response.RespondFailure(c, "some sources failed to sync", res)
		return
	}
	response.RespondData(c, "sync complete", res)
}

// POST /datasources/regular/unsync
func (h *DataSourceHandler) UnsyncAll(c *gin.Context) {
	_, wsID, ok := h.scope(c)
	if !ok {
		return
	}
	res, err := h.syncer.UnsyncAllRegular(c.Request.Context(), wsID)
	if err != nil {
		response.RespondAppError(c, err)
		return
	}
	if len(res.Failed) > 0 {
		response.RespondFailure(c, "some sources failed to unsync", res)
		return
	}
	response.RespondData(c, "unsync complete", res)
}

// POST /datasources/external/:source_id/:provider/connect
func (h *DataSourceHandler) Connect(c *gin.Context) {
	_, wsID, ok := h.scope(c)
	if !ok {
		return
	}
	var req struct {
		APIToken string `json:"api_token"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		response.RespondError(c, http.StatusBadRequest, "invalid_request", err)
		return
	}
	if err := h.external.Connect(c.Request.Context(), wsID, c.Param("provider"), req.APIToken); err != nil {
		response.RespondAppError(c, err)
		return
	}
	response.RespondData(c, "connection validated", nil)
}

// GET /datasources/external/:source_id/:provider/tickets?team_id=&space_id=&list_id=&search=
func (h *DataSourceHandler) Tickets(c *gin.Context) {
	_, wsID, ok := h.scope(c)
	if !ok {
		return
	}
	filter := services.TicketFilter{
		TeamID:  strings.TrimSpace(c.Query("team_id")),
		SpaceID: strings.TrimSpace(c.Query("space_id")),
		ListID:  strings.TrimSpace(c.Query("list_id")),
		Search:  strings.TrimSpace(c.Query("search")),
	}
	tickets, err := h.external.ListTickets(c.Request.Context(), wsID, c.Param("provider"), filter)
	if err != nil {
		response.RespondAppError(c, err)
		return
	}
	response.RespondData(c, "tickets fetched", tickets)
}

// POST /datasources/external/:source_id/:provider/tickets/:ticket_id/sync
func (h *DataSourceHandler) SyncTask(c *gin.Context) {
	userID, wsID, ok := h.scope(c)
	if !ok {
		return
	}
	res, err := h.external.SyncTask(c.Request.Context(), wsID, userID, c.Param("provider"), c.Param("ticket_id"))
	if err != nil {
		response.RespondAppError(c, err)
		return
	}
	response.RespondData(c, "task synced", res)
}

// POST /datasources/external/:source_id/:provider/tickets/:ticket_id/unsync
func (h *DataSourceHandler) UnsyncTask(c *gin.Context) {
	_, wsID, ok := h.scope(c)
	if !ok {
		return
	}
	if err := h.external.UnsyncTask(c.Request.Context(), wsID, c.Param("provider"), c.Param("ticket_id")); err != nil {
		response.RespondAppError(c, err)
		return
	}
	response.RespondData(c, "task unsynced", nil)
}
