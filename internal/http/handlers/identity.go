package handlers

import (
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/datafirst-hq/aidly-backend/internal/pkg/ctxutil"
	"github.com/datafirst-hq/aidly-backend/internal/services"
)

// currentUser pulls the authenticated user off the request context. The auth
// middleware guarantees it on protected routes; the bool covers misrouted
// calls.
func currentUser(c *gin.Context) (uuid.UUID, bool) {
	rd := ctxutil.GetRequestData(c.Request.Context())
	if rd == nil || rd.UserID == uuid.Nil {
		return uuid.Nil, false
	}
	return rd.UserID, true
}

// currentWidget resolves the widget identity placed by the widget middleware.
func currentWidget(c *gin.Context) (services.WidgetIdentity, bool) {
	rd := ctxutil.GetRequestData(c.Request.Context())
	if rd == nil || rd.TokenKind != ctxutil.TokenKindWidget || rd.BotID == uuid.Nil {
		return services.WidgetIdentity{}, false
	}
	return services.WidgetIdentity{OwnerID: rd.UserID, BotID: rd.BotID}, true
}
