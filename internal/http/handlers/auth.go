package handlers

import (
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/datafirst-hq/aidly-backend/internal/http/response"
	"github.com/datafirst-hq/aidly-backend/internal/services"
)

const refreshCookieName = "refresh_token"

type AuthHandler struct {
	authService services.AuthService
}

func NewAuthHandler(authService services.AuthService) *AuthHandler {
	return &AuthHandler{authService: authService}
}

// POST /auth/login
func (ah *AuthHandler) Login(c *gin.Context) {
	var req struct {
		Username string `json:"username"`
		Password string `json:"password"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		response.RespondError(c, http.StatusBadRequest, "invalid_request", err)
		return
	}
	pair, err := ah.authService.Login(c.Request.Context(), req.Username, req.Password)
	if err != nil {
		response.RespondAppError(c, err)
		return
	}
	ah.setRefreshCookie(c, pair.RefreshToken)
	response.RespondOK(c, gin.H{
		"access_token":  pair.AccessToken,
		"refresh_token": pair.RefreshToken,
		"token_type":    pair.TokenType,
		"expires_in":    int(ah.authService.AccessTTL().Seconds()),
	})
}

// POST /auth/refresh
// Browsers present the HttpOnly cookie; other clients send the secret in the
// body. Both get a rotated pair back.
func (ah *AuthHandler) Refresh(c *gin.Context) {
	secret := ah.refreshSecret(c)
	if secret == "" {
		response.RespondError(c, http.StatusUnauthorized, "invalid_token", errors.New("missing refresh token"))
		return
	}
	pair, err := ah.authService.Refresh(c.Request.Context(), secret)
	if err != nil {
		ah.clearRefreshCookie(c)
		response.RespondAppError(c, err)
		return
	}
	ah.setRefreshCookie(c, pair.RefreshToken)
	response.RespondOK(c, gin.H{
		"access_token":  pair.AccessToken,
		"refresh_token": pair.RefreshToken,
		"token_type":    pair.TokenType,
		"expires_in":    int(ah.authService.AccessTTL().Seconds()),
	})
}

// POST /auth/logout
func (ah *AuthHandler) Logout(c *gin.Context) {
	secret := ah.refreshSecret(c)
	if secret == "" {
		response.RespondError(c, http.StatusBadRequest, "invalid_request", errors.New("missing refresh token"))
		return
	}
	if err := ah.authService.Logout(c.Request.Context(), secret); err != nil {
		response.RespondAppError(c, err)
		return
	}
	ah.clearRefreshCookie(c)
	response.RespondOK(c, gin.H{"ok": true})
}

// POST /auth/logout-all
func (ah *AuthHandler) LogoutAll(c *gin.Context) {
	userID, ok := currentUser(c)
	if !ok {
		response.RespondError(c, http.StatusUnauthorized, "unauthenticated", errors.New("missing identity"))
		return
	}
	revoked, err := ah.authService.LogoutAll(c.Request.Context(), userID)
	if err != nil {
		response.RespondAppError(c, err)
		return
	}
	ah.clearRefreshCookie(c)
	response.RespondOK(c, gin.H{"ok": true, "revoked": revoked})
}

// POST /auth/register (admin)
func (ah *AuthHandler) Register(c *gin.Context) {
	userID, ok := currentUser(c)
	if !ok {
		response.RespondError(c, http.StatusUnauthorized, "unauthenticated", errors.New("missing identity"))
		return
	}
	if err := ah.authService.RequireAdmin(c.Request.Context(), userID); err != nil {
		response.RespondAppError(c, err)
		return
	}
	var req struct {
		Username string `json:"username"`
		Email    string `json:"email"`
		Password string `json:"password"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		response.RespondError(c, http.StatusBadRequest, "invalid_request", err)
		return
	}
	user, err := ah.authService.Register(c.Request.Context(), req.Username, req.Email, req.Password)
	if err != nil {
		response.RespondAppError(c, err)
		return
	}
	response.RespondOK(c, gin.H{"user": user})
}

// POST /auth/cleanup-tokens (admin)
func (ah *AuthHandler) CleanupTokens(c *gin.Context) {
	userID, ok := currentUser(c)
	if !ok {
		response.RespondError(c, http.StatusUnauthorized, "unauthenticated", errors.New("missing identity"))
		return
	}
	if err := ah.authService.RequireAdmin(c.Request.Context(), userID); err != nil {
		response.RespondAppError(c, err)
		return
	}
	res, err := ah.authService.CleanupTokens(c.Request.Context())
	if err != nil {
		response.RespondAppError(c, err)
		return
	}
	response.RespondOK(c, res)
}

func (ah *AuthHandler) refreshSecret(c *gin.Context) string {
	if v, err := c.Cookie(refreshCookieName); err == nil && v != "" {
		return v
	}
	var req struct {
		RefreshToken string `json:"refresh_token"`
	}
	if err := c.ShouldBindJSON(&req); err == nil {
		return strings.TrimSpace(req.RefreshToken)
	}
	return ""
}

// The refresh secret lives in an HttpOnly cookie scoped to the auth
// endpoints, out of reach of page scripts.
func (ah *AuthHandler) setRefreshCookie(c *gin.Context, secret string) {
	c.SetSameSite(http.SameSiteStrictMode)
	c.SetCookie(refreshCookieName, secret, int(ah.authService.RefreshTTL().Seconds()), "/auth", "", false, true)
}

func (ah *AuthHandler) clearRefreshCookie(c *gin.Context) {
	c.SetSameSite(http.SameSiteStrictMode)
	c.SetCookie(refreshCookieName, "", -1, "/auth", "", false, true)
}
