package handlers

import (
	"net/http"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/datafirst-hq/aidly-backend/internal/domain/apperr"
	"github.com/datafirst-hq/aidly-backend/internal/services"
)

func newAuthRouter(fake *fakeAuthService, userID uuid.UUID) *gin.Engine {
	h := NewAuthHandler(fake)
	r := gin.New()
	r.POST("/auth/login", h.Login)
	r.POST("/auth/refresh", h.Refresh)
	r.POST("/auth/logout", h.Logout)
	if userID != uuid.Nil {
		r.POST("/auth/logout-all", withUser(userID), h.LogoutAll)
		r.POST("/auth/register", withUser(userID), h.Register)
		r.POST("/auth/cleanup-tokens", withUser(userID), h.CleanupTokens)
	} else {
		r.POST("/auth/logout-all", h.LogoutAll)
		r.POST("/auth/register", h.Register)
		r.POST("/auth/cleanup-tokens", h.CleanupTokens)
	}
	return r
}

func TestLoginSetsRefreshCookie(t *testing.T) {
	fake := &fakeAuthService{}
	r := newAuthRouter(fake, uuid.Nil)

	rec := doRequest(t, r, testRequest{
		method: http.MethodPost,
		path:   "/auth/login",
		body:   `{"username":"sam","password":"pw123456"}`,
	})
	if rec.Code != http.StatusOK {
		t.Fatalf("unexpected status: got=%d body=%s", rec.Code, rec.Body.String())
	}

	body := decodeBody(t, rec)
	if body["access_token"] != "access" || body["refresh_token"] != "refresh-secret" {
		t.Fatalf("unexpected token payload: %v", body)
	}
	if body["token_type"] != "bearer" {
		t.Fatalf("unexpected token_type: %v", body["token_type"])
	}
	if body["expires_in"] != float64(3600) {
		t.Fatalf("expires_in should follow the access ttl, got %v", body["expires_in"])
	}

	ck := responseCookie(t, rec, "refresh_token")
	if ck == nil {
		t.Fatalf("login must set the refresh cookie")
	}
	if ck.Value != "refresh-secret" {
		t.Fatalf("unexpected cookie value: %q", ck.Value)
	}
	if !ck.HttpOnly {
		t.Fatalf("refresh cookie must be HttpOnly")
	}
	if ck.Path != "/auth" {
		t.Fatalf("refresh cookie must be scoped to /auth, got %q", ck.Path)
	}
	if ck.MaxAge != int((30 * 24 * 3600)) {
		t.Fatalf("cookie lifetime should follow the refresh ttl, got %d", ck.MaxAge)
	}
}

func TestLoginInvalidCredentials(t *testing.T) {
	fake := &fakeAuthService{
		loginFn: func(username, password string) (*services.TokenPair, error) {
			return nil, apperr.New(apperr.CodeUnauthenticated, "AuthService.Login", "invalid username or password", nil)
		},
	}
	r := newAuthRouter(fake, uuid.Nil)

	rec := doRequest(t, r, testRequest{
		method: http.MethodPost,
		path:   "/auth/login",
		body:   `{"username":"sam","password":"wrong"}`,
	})
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("unexpected status: got=%d", rec.Code)
	}
	body := decodeBody(t, rec)
	if got := errorField(t, body, "code"); got != "unauthenticated" {
		t.Fatalf("unexpected error code: %q", got)
	}
	if ck := responseCookie(t, rec, "refresh_token"); ck != nil {
		t.Fatalf("failed login must not set a cookie")
	}
}

func TestLoginRejectsMalformedBody(t *testing.T) {
	r := newAuthRouter(&fakeAuthService{}, uuid.Nil)
	rec := doRequest(t, r, testRequest{method: http.MethodPost, path: "/auth/login", body: `{"username":`})
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("unexpected status: got=%d", rec.Code)
	}
}

func TestRefreshPrefersCookieOverBody(t *testing.T) {
	fake := &fakeAuthService{}
	r := newAuthRouter(fake, uuid.Nil)

	rec := doRequest(t, r, testRequest{
		method:  http.MethodPost,
		path:    "/auth/refresh",
		body:    `{"refresh_token":"body-secret"}`,
		cookies: []*http.Cookie{{Name: "refresh_token", Value: "cookie-secret"}},
	})
	if rec.Code != http.StatusOK {
		t.Fatalf("unexpected status: got=%d body=%s", rec.Code, rec.Body.String())
	}
	if fake.lastSecret != "cookie-secret" {
		t.Fatalf("refresh should prefer the cookie secret, got %q", fake.lastSecret)
	}

	ck := responseCookie(t, rec, "refresh_token")
	if ck == nil || ck.Value != "refresh-secret2" {
		t.Fatalf("refresh must rotate the cookie, got %+v", ck)
	}
}

func TestRefreshFromBody(t *testing.T) {
	fake := &fakeAuthService{}
	r := newAuthRouter(fake, uuid.Nil)

	rec := doRequest(t, r, testRequest{
		method: http.MethodPost,
		path:   "/auth/refresh",
		body:   `{"refresh_token":"  body-secret  "}`,
	})
	if rec.Code != http.StatusOK {
		t.Fatalf("unexpected status: got=%d", rec.Code)
	}
	if fake.lastSecret != "body-secret" {
		t.Fatalf("body secret should be trimmed, got %q", fake.lastSecret)
	}
}

func TestRefreshWithoutSecret(t *testing.T) {
	r := newAuthRouter(&fakeAuthService{}, uuid.Nil)
	rec := doRequest(t, r, testRequest{method: http.MethodPost, path: "/auth/refresh"})
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("unexpected status: got=%d", rec.Code)
	}
	body := decodeBody(t, rec)
	if got := errorField(t, body, "code"); got != "invalid_token" {
		t.Fatalf("unexpected error code: %q", got)
	}
}

func TestRefreshRejectionClearsCookie(t *testing.T) {
	fake := &fakeAuthService{
		refreshFn: func(secret string) (*services.TokenPair, error) {
			return nil, apperr.New(apperr.CodeInvalidToken, "AuthService.Refresh", "refresh token expired", nil)
		},
	}
	r := newAuthRouter(fake, uuid.Nil)

	rec := doRequest(t, r, testRequest{
		method:  http.MethodPost,
		path:    "/auth/refresh",
		cookies: []*http.Cookie{{Name: "refresh_token", Value: "stale"}},
	})
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("unexpected status: got=%d", rec.Code)
	}

	ck := responseCookie(t, rec, "refresh_token")
	if ck == nil {
		t.Fatalf("rejected refresh must clear the cookie")
	}
	if ck.Value != "" || ck.MaxAge >= 0 {
		t.Fatalf("cookie should be expired, got value=%q maxage=%d", ck.Value, ck.MaxAge)
	}
}

func TestLogoutRevokesAndClearsCookie(t *testing.T) {
	fake := &fakeAuthService{}
	r := newAuthRouter(fake, uuid.Nil)

	rec := doRequest(t, r, testRequest{
		method:  http.MethodPost,
		path:    "/auth/logout",
		cookies: []*http.Cookie{{Name: "refresh_token", Value: "s1"}},
	})
	if rec.Code != http.StatusOK {
		t.Fatalf("unexpected status: got=%d", rec.Code)
	}
	if fake.lastSecret != "s1" {
		t.Fatalf("logout should pass the cookie secret, got %q", fake.lastSecret)
	}
	body := decodeBody(t, rec)
	if body["ok"] != true {
		t.Fatalf("unexpected payload: %v", body)
	}
	ck := responseCookie(t, rec, "refresh_token")
	if ck == nil || ck.Value != "" || ck.MaxAge >= 0 {
		t.Fatalf("logout must clear the cookie, got %+v", ck)
	}
}

func TestLogoutWithoutSecret(t *testing.T) {
	r := newAuthRouter(&fakeAuthService{}, uuid.Nil)
	rec := doRequest(t, r, testRequest{method: http.MethodPost, path: "/auth/logout"})
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("unexpected status: got=%d", rec.Code)
	}
}

func TestLogoutAll(t *testing.T) {
	userID := uuid.New()
	fake := &fakeAuthService{
		logoutAllFn: func(id uuid.UUID) (int64, error) {
			if id != userID {
				t.Fatalf("unexpected user id: %s", id)
			}
			return 3, nil
		},
	}
	r := newAuthRouter(fake, userID)

	rec := doRequest(t, r, testRequest{method: http.MethodPost, path: "/auth/logout-all"})
	if rec.Code != http.StatusOK {
		t.Fatalf("unexpected status: got=%d", rec.Code)
	}
	body := decodeBody(t, rec)
	if body["revoked"] != float64(3) {
		t.Fatalf("unexpected revoked count: %v", body["revoked"])
	}
}

func TestLogoutAllWithoutIdentity(t *testing.T) {
	r := newAuthRouter(&fakeAuthService{}, uuid.Nil)
	rec := doRequest(t, r, testRequest{method: http.MethodPost, path: "/auth/logout-all"})
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("unexpected status: got=%d", rec.Code)
	}
}

func TestRegisterRequiresAdmin(t *testing.T) {
	fake := &fakeAuthService{
		adminErr: apperr.New(apperr.CodeForbidden, "AuthService.RequireAdmin", "admin required", nil),
	}
	r := newAuthRouter(fake, uuid.New())

	rec := doRequest(t, r, testRequest{
		method: http.MethodPost,
		path:   "/auth/register",
		body:   `{"username":"new","email":"new@example.com","password":"pw123456"}`,
	})
	if rec.Code != http.StatusForbidden {
		t.Fatalf("unexpected status: got=%d", rec.Code)
	}
	if fake.lastUsername != "" {
		t.Fatalf("register must not reach the service without admin")
	}
}

func TestRegisterAsAdmin(t *testing.T) {
	fake := &fakeAuthService{}
	r := newAuthRouter(fake, uuid.New())

	rec := doRequest(t, r, testRequest{
		method: http.MethodPost,
		path:   "/auth/register",
		body:   `{"username":"new","email":"new@example.com","password":"pw123456"}`,
	})
	if rec.Code != http.StatusOK {
		t.Fatalf("unexpected status: got=%d body=%s", rec.Code, rec.Body.String())
	}
	body := decodeBody(t, rec)
	user, ok := body["user"].(map[string]any)
	if !ok || user["username"] != "new" {
		t.Fatalf("unexpected payload: %v", body)
	}
}

func TestCleanupTokens(t *testing.T) {
	fake := &fakeAuthService{
		cleanupRes: &services.CleanupResult{ExpiredDeleted: 5, InactiveDeleted: 2},
	}
	r := newAuthRouter(fake, uuid.New())

	rec := doRequest(t, r, testRequest{method: http.MethodPost, path: "/auth/cleanup-tokens"})
	if rec.Code != http.StatusOK {
		t.Fatalf("unexpected status: got=%d", rec.Code)
	}
	body := decodeBody(t, rec)
	if body["expired_deleted"] != float64(5) || body["inactive_deleted"] != float64(2) {
		t.Fatalf("unexpected payload: %v", body)
	}
}
