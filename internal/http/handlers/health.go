package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/datafirst-hq/aidly-backend/internal/data/db"
)

type HealthHandler struct {
	db *db.Service
}

func NewHealthHandler(db *db.Service) *HealthHandler {
	return &HealthHandler{db: db}
}

// GET /healthcheck
func (h *HealthHandler) HealthCheck(c *gin.Context) {
	if h.db != nil {
		if err := h.db.HealthCheck(c.Request.Context()); err != nil {
			c.String(http.StatusServiceUnavailable, "db unavailable")
			return
		}
	}
	c.String(http.StatusOK, "ok")
}
