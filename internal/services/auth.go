package services

import (
	"context"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"

	"github.com/datafirst-hq/aidly-backend/internal/data/dberr"
	authrepo "github.com/datafirst-hq/aidly-backend/internal/data/repos/auth"
	userrepo "github.com/datafirst-hq/aidly-backend/internal/data/repos/user"
	types "github.com/datafirst-hq/aidly-backend/internal/domain"
	"github.com/datafirst-hq/aidly-backend/internal/domain/apperr"
	"github.com/datafirst-hq/aidly-backend/internal/pkg/dbctx"
	"github.com/datafirst-hq/aidly-backend/internal/pkg/logger"
	"github.com/datafirst-hq/aidly-backend/internal/pkg/syncx"
)

const (
	tokenTypeAccess = "access"
	tokenTypeWidget = "widget"

	// refreshSecretBytes makes the opaque refresh secret 256 bits before
	// base64url encoding. Only its SHA-256 hex ever reaches the database.
	refreshSecretBytes = 32

	// maxActiveRefreshTokens caps live sessions per user; issuing a new
	// token retires the oldest extras.
	maxActiveRefreshTokens = 2

	// refreshInactivityWindow is how long an inactive row survives before
	// cleanup removes it.
	refreshInactivityWindow = 7 * 24 * time.Hour

	minPasswordLength = 8
)

// TokenPair is the login/refresh response payload. The refresh secret is
// plaintext here and exists nowhere else once handed to the client.
type TokenPair struct {
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token"`
	TokenType    string `json:"token_type"`
}

// WidgetGrant is a freshly signed widget JWT plus its revocation row id.
type WidgetGrant struct {
	TokenID   uuid.UUID `json:"token_id"`
	Token     string    `json:"token"`
	ExpiresAt time.Time `json:"expires_at"`
}

// WidgetIdentity is the resolved identity behind a verified widget token.
type WidgetIdentity struct {
	OwnerID uuid.UUID
	BotID   uuid.UUID
}

// CleanupResult counts the token rows a sweep removed.
type CleanupResult struct {
	ExpiredDeleted  int64 `json:"expired_deleted"`
	InactiveDeleted int64 `json:"inactive_deleted"`
}

// AuthConfig carries the signing key and token lifetimes.
type AuthConfig struct {
	SecretKey  string
	AccessTTL  time.Duration
	RefreshTTL time.Duration
	WidgetTTL  time.Duration
}

type AuthService interface {
	Register(ctx context.Context, username, email, password string) (*types.User, error)
	Login(ctx context.Context, username, password string) (*TokenPair, error)
	Refresh(ctx context.Context, refreshSecret string) (*TokenPair, error)
	Logout(ctx context.Context, refreshSecret string) error
	LogoutAll(ctx context.Context, userID uuid.UUID) (int64, error)
	VerifyAccess(ctx context.Context, tokenString string) (uuid.UUID, error)
	VerifyWidget(ctx context.Context, tokenString string) (*WidgetIdentity, error)
	RequireAdmin(ctx context.Context, userID uuid.UUID) error
	IssueWidgetToken(ctx context.Context, ownerID, botID uuid.UUID) (*WidgetGrant, error)
	RevokeWidgetTokens(ctx context.Context, botID uuid.UUID, tokenID *uuid.UUID) (int64, error)
	CleanupTokens(ctx context.Context) (*CleanupResult, error)
	AccessTTL() time.Duration
	RefreshTTL() time.Duration
}

type authService struct {
	log           *logger.Logger
	users         userrepo.UserRepo
	refreshTokens authrepo.RefreshTokenRepo
	widgetTokens  authrepo.WidgetTokenRepo
	cfg           AuthConfig

	// rotation serializes issuance per user so the active-token cap holds
	// under concurrent logins.
	rotation *syncx.KeyedMutex
}

func NewAuthService(
	log *logger.Logger,
	users userrepo.UserRepo,
	refreshTokens authrepo.RefreshTokenRepo,
	widgetTokens authrepo.WidgetTokenRepo,
	cfg AuthConfig,
) AuthService {
	return &authService{
		log:           log.With("service", "AuthService"),
		users:         users,
		refreshTokens: refreshTokens,
		widgetTokens:  widgetTokens,
		cfg:           cfg,
		rotation:      syncx.NewKeyedMutex(),
	}
}

func (s *authService) AccessTTL() time.Duration  { return s.cfg.AccessTTL }
func (s *authService) RefreshTTL() time.Duration { return s.cfg.RefreshTTL }

func (s *authService) Register(ctx context.Context, username, email, password string) (*types.User, error) {
	const op = "AuthService.Register"
	username = strings.TrimSpace(username)
	if username == "" {
		return nil, apperr.New(apperr.CodeInvalidInput, op, "username is required", nil)
	}
	if len(password) < minPasswordLength {
		return nil, apperr.New(apperr.CodeInvalidInput, op,
			fmt.Sprintf("password must be at least %d characters", minPasswordLength), nil)
	}

	dbc := dbctx.Context{Ctx: ctx}
	taken, err := s.users.UsernameExists(dbc, username)
	if err != nil {
		return nil, apperr.Wrap(apperr.CodeInternal, op, err)
	}
	if taken {
		return nil, apperr.New(apperr.CodeConflict, op, "username already taken", nil)
	}

	hashed, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return nil, apperr.Wrap(apperr.CodeInternal, op, err)
	}
	created, err := s.users.Create(dbc, &types.User{
		Username: username,
		Email:    strings.TrimSpace(email),
		Password: string(hashed),
		IsActive: true,
	})
	if err != nil {
		// The exists check above can race a concurrent signup; the unique
		// index is the arbiter and surfaces here as a conflict.
		return nil, dberr.Map(op, err)
	}
	s.log.Info("User registered", "user_id", created.ID, "username", created.Username)
	return created, nil
}

func (s *authService) Login(ctx context.Context, username, password string) (*TokenPair, error) {
	const op = "AuthService.Login"
	username = strings.TrimSpace(username)
	if username == "" || password == "" {
		return nil, apperr.New(apperr.CodeUnauthenticated, op, "invalid username or password", nil)
	}

	dbc := dbctx.Context{Ctx: ctx}
	u, err := s.users.GetByUsername(dbc, username)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperr.New(apperr.CodeUnauthenticated, op, "invalid username or password", nil)
		}
		return nil, apperr.Wrap(apperr.CodeInternal, op, err)
	}
	if err := bcrypt.CompareHashAndPassword([]byte(u.Password), []byte(password)); err != nil {
		return nil, apperr.New(apperr.CodeUnauthenticated, op, "invalid username or password", nil)
	}
	if !u.IsActive {
		return nil, apperr.New(apperr.CodeUnauthenticated, op, "user account is disabled", nil)
	}

	pair, err := s.issuePair(ctx, op, u.ID)
	if err != nil {
		return nil, err
	}
	s.log.Info("User logged in", "user_id", u.ID)
	return pair, nil
}

func (s *authService) Refresh(ctx context.Context, refreshSecret string) (*TokenPair, error) {
	const op = "AuthService.Refresh"
	refreshSecret = strings.TrimSpace(refreshSecret)
	if refreshSecret == "" {
		return nil, apperr.New(apperr.CodeInvalidToken, op, "missing refresh token", nil)
	}

	dbc := dbctx.Context{Ctx: ctx}
	row, err := s.refreshTokens.GetByHash(dbc, hashToken(refreshSecret))
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperr.New(apperr.CodeInvalidToken, op, "invalid refresh token", nil)
		}
		return nil, apperr.Wrap(apperr.CodeInternal, op, err)
	}
	if !row.IsActive || !row.ExpiresAt.After(time.Now().UTC()) {
		return nil, apperr.New(apperr.CodeInvalidToken, op, "invalid refresh token", nil)
	}
	if err := s.refreshTokens.TouchLastUsed(dbc, row.ID); err != nil {
		s.log.Warn("Refresh token last_used update failed", "token_id", row.ID, "error", err)
	}
	return s.issuePair(ctx, op, row.UserID)
}

func (s *authService) Logout(ctx context.Context, refreshSecret string) error {
	const op = "AuthService.Logout"
	refreshSecret = strings.TrimSpace(refreshSecret)
	if refreshSecret == "" {
		return apperr.New(apperr.CodeInvalidToken, op, "missing refresh token", nil)
	}
	dbc := dbctx.Context{Ctx: ctx}
	row, err := s.refreshTokens.GetByHash(dbc, hashToken(refreshSecret))
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil
		}
		return apperr.Wrap(apperr.CodeInternal, op, err)
	}
	if err := s.refreshTokens.DeactivateByID(dbc, row.ID); err != nil {
		return apperr.Wrap(apperr.CodeInternal, op, err)
	}
	s.log.Info("Refresh token revoked", "user_id", row.UserID, "token_id", row.ID)
	return nil
}

func (s *authService) LogoutAll(ctx context.Context, userID uuid.UUID) (int64, error) {
	const op = "AuthService.LogoutAll"
	if userID == uuid.Nil {
		return 0, apperr.New(apperr.CodeInvalidInput, op, "missing user_id", nil)
	}
	n, err := s.refreshTokens.DeactivateAllForUser(dbctx.Context{Ctx: ctx}, userID)
	if err != nil {
		return 0, apperr.Wrap(apperr.CodeInternal, op, err)
	}
	s.log.Info("All refresh tokens revoked", "user_id", userID, "count", n)
	return n, nil
}

func (s *authService) VerifyAccess(ctx context.Context, tokenString string) (uuid.UUID, error) {
	const op = "AuthService.VerifyAccess"
	claims, err := s.parseToken(tokenString)
	if err != nil {
		return uuid.Nil, apperr.New(apperr.CodeInvalidToken, op, "invalid access token", err)
	}
	if claims.TokenType != tokenTypeAccess {
		return uuid.Nil, apperr.New(apperr.CodeInvalidToken, op, "token is not an access token", nil)
	}
	userID, err := uuid.Parse(claims.Subject)
	if err != nil {
		return uuid.Nil, apperr.New(apperr.CodeInvalidToken, op, "invalid token subject", err)
	}
	return userID, nil
}

// RequireAdmin gates operator-only endpoints on the global admin flag.
func (s *authService) RequireAdmin(ctx context.Context, userID uuid.UUID) error {
	const op = "AuthService.RequireAdmin"
	if userID == uuid.Nil {
		return apperr.New(apperr.CodeUnauthenticated, op, "missing user identity", nil)
	}
	u, err := s.users.GetByID(dbctx.Context{Ctx: ctx}, userID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return apperr.New(apperr.CodeUnauthenticated, op, "unknown user", err)
		}
		return apperr.Wrap(apperr.CodeInternal, op, err)
	}
	if !u.IsAdmin {
		return apperr.New(apperr.CodeForbidden, op, "admin privileges required", nil)
	}
	return nil
}

func (s *authService) VerifyWidget(ctx context.Context, tokenString string) (*WidgetIdentity, error) {
	const op = "AuthService.VerifyWidget"
	claims, err := s.parseToken(tokenString)
	if err != nil {
		return nil, apperr.New(apperr.CodeInvalidToken, op, "invalid widget token", err)
	}
	if claims.TokenType != tokenTypeWidget {
		return nil, apperr.New(apperr.CodeInvalidToken, op, "token is not a widget token", nil)
	}
	ownerID, err := uuid.Parse(claims.Subject)
	if err != nil {
		return nil, apperr.New(apperr.CodeInvalidToken, op, "invalid token subject", err)
	}
	botID, err := uuid.Parse(claims.BotID)
	if err != nil {
		return nil, apperr.New(apperr.CodeInvalidToken, op, "invalid bot_id claim", err)
	}

	dbc := dbctx.Context{Ctx: ctx}
	row, err := s.widgetTokens.GetByHash(dbc, hashToken(tokenString))
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperr.New(apperr.CodeInvalidToken, op, "widget token revoked", nil)
		}
		return nil, apperr.Wrap(apperr.CodeInternal, op, err)
	}
	if !row.IsActive || !row.ExpiresAt.After(time.Now().UTC()) {
		return nil, apperr.New(apperr.CodeInvalidToken, op, "widget token revoked", nil)
	}
	if err := s.widgetTokens.TouchLastUsed(dbc, row.ID); err != nil {
		s.log.Warn("Widget token last_used update failed", "token_id", row.ID, "error", err)
	}
	return &WidgetIdentity{OwnerID: ownerID, BotID: botID}, nil
}

func (s *authService) IssueWidgetToken(ctx context.Context, ownerID, botID uuid.UUID) (*WidgetGrant, error) {
	const op = "AuthService.IssueWidgetToken"
	if ownerID == uuid.Nil || botID == uuid.Nil {
		return nil, apperr.New(apperr.CodeInvalidInput, op, "missing owner_id or bot_id", nil)
	}
	signed, expiresAt, err := s.signToken(ownerID, tokenTypeWidget, botID.String(), s.cfg.WidgetTTL)
	if err != nil {
		return nil, apperr.Wrap(apperr.CodeInternal, op, err)
	}
	row, err := s.widgetTokens.Create(dbctx.Context{Ctx: ctx}, &types.WidgetToken{
		OwnerID:   ownerID,
		BotID:     botID,
		TokenHash: hashToken(signed),
		IsActive:  true,
		ExpiresAt: expiresAt,
	})
	if err != nil {
		return nil, apperr.Wrap(apperr.CodeInternal, op, err)
	}
	s.log.Info("Widget token issued", "bot_id", botID, "token_id", row.ID, "expires_at", expiresAt)
	return &WidgetGrant{TokenID: row.ID, Token: signed, ExpiresAt: expiresAt}, nil
}

// RevokeWidgetTokens deactivates one token of the bot, or every active one
// when tokenID is nil. Bot ownership checks belong to the caller.
func (s *authService) RevokeWidgetTokens(ctx context.Context, botID uuid.UUID, tokenID *uuid.UUID) (int64, error) {
	const op = "AuthService.RevokeWidgetTokens"
	if botID == uuid.Nil {
		return 0, apperr.New(apperr.CodeInvalidInput, op, "missing bot_id", nil)
	}
	dbc := dbctx.Context{Ctx: ctx}
	if tokenID == nil {
		n, err := s.widgetTokens.DeactivateAllForBot(dbc, botID)
		if err != nil {
			return 0, apperr.Wrap(apperr.CodeInternal, op, err)
		}
		s.log.Info("Widget tokens revoked", "bot_id", botID, "count", n)
		return n, nil
	}

	rows, err := s.widgetTokens.ListActiveByBot(dbc, botID)
	if err != nil {
		return 0, apperr.Wrap(apperr.CodeInternal, op, err)
	}
	for _, row := range rows {
		if row.ID == *tokenID {
			if err := s.widgetTokens.DeactivateByID(dbc, row.ID); err != nil {
				return 0, apperr.Wrap(apperr.CodeInternal, op, err)
			}
			s.log.Info("Widget token revoked", "bot_id", botID, "token_id", row.ID)
			return 1, nil
		}
	}
	return 0, apperr.New(apperr.CodeNotFound, op, "widget token not found for bot", nil)
}

// CleanupTokens removes refresh rows that expired and rows inactive past the
// retention window, plus expired widget rows. Shared by the admin endpoint,
// the background sweep, and the cleanup-tokens utility.
func (s *authService) CleanupTokens(ctx context.Context) (*CleanupResult, error) {
	const op = "AuthService.CleanupTokens"
	dbc := dbctx.Context{Ctx: ctx}
	now := time.Now().UTC()

	expired, err := s.refreshTokens.DeleteExpired(dbc, now)
	if err != nil {
		return nil, apperr.Wrap(apperr.CodeInternal, op, err)
	}
	inactive, err := s.refreshTokens.DeleteInactiveBefore(dbc, now.Add(-refreshInactivityWindow))
	if err != nil {
		return nil, apperr.Wrap(apperr.CodeInternal, op, err)
	}
	widgetExpired, err := s.widgetTokens.DeleteExpired(dbc, now)
	if err != nil {
		return nil, apperr.Wrap(apperr.CodeInternal, op, err)
	}
	s.log.Info("Token cleanup finished",
		"refresh_expired", expired,
		"refresh_inactive", inactive,
		"widget_expired", widgetExpired,
	)
	return &CleanupResult{
		ExpiredDeleted:  expired + widgetExpired,
		InactiveDeleted: inactive,
	}, nil
}

// issuePair signs an access token and mints a refresh secret. Issuance for
// one user is serialized so the two-newest-active rule survives races.
func (s *authService) issuePair(ctx context.Context, op string, userID uuid.UUID) (*TokenPair, error) {
	unlock := s.rotation.Lock(userID.String())
	defer unlock()

	access, _, err := s.signToken(userID, tokenTypeAccess, "", s.cfg.AccessTTL)
	if err != nil {
		return nil, apperr.Wrap(apperr.CodeInternal, op, err)
	}
	secret, secretHash, err := newRefreshSecret()
	if err != nil {
		return nil, apperr.Wrap(apperr.CodeInternal, op, err)
	}

	dbc := dbctx.Context{Ctx: ctx}
	if _, err := s.refreshTokens.Create(dbc, &types.RefreshToken{
		UserID:    userID,
		TokenHash: secretHash,
		IsActive:  true,
		ExpiresAt: time.Now().UTC().Add(s.cfg.RefreshTTL),
	}); err != nil {
		return nil, apperr.Wrap(apperr.CodeInternal, op, err)
	}

	active, err := s.refreshTokens.ListActiveByUser(dbc, userID)
	if err != nil {
		return nil, apperr.Wrap(apperr.CodeInternal, op, err)
	}
	if len(active) > maxActiveRefreshTokens {
		for _, extra := range active[maxActiveRefreshTokens:] {
			if err := s.refreshTokens.DeactivateByID(dbc, extra.ID); err != nil {
				return nil, apperr.Wrap(apperr.CodeInternal, op, err)
			}
			s.log.Debug("Rotated out refresh token", "user_id", userID, "token_id", extra.ID)
		}
	}

	return &TokenPair{AccessToken: access, RefreshToken: secret, TokenType: "bearer"}, nil
}

type jwtClaims struct {
	TokenType string `json:"type"`
	BotID     string `json:"bot_id,omitempty"`
	jwt.RegisteredClaims
}

func (s *authService) signToken(subject uuid.UUID, tokenType, botID string, ttl time.Duration) (string, time.Time, error) {
	now := time.Now().UTC()
	expiresAt := now.Add(ttl)
	claims := jwtClaims{
		TokenType: tokenType,
		BotID:     botID,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   subject.String(),
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(expiresAt),
		},
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(s.cfg.SecretKey))
	if err != nil {
		return "", time.Time{}, err
	}
	return signed, expiresAt, nil
}

func (s *authService) parseToken(tokenString string) (*jwtClaims, error) {
	tokenString = strings.TrimSpace(tokenString)
	if tokenString == "" {
		return nil, fmt.Errorf("empty token")
	}
	parsed, err := jwt.ParseWithClaims(tokenString, &jwtClaims{}, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method %q", t.Method.Alg())
		}
		return []byte(s.cfg.SecretKey), nil
	})
	if err != nil {
		return nil, err
	}
	claims, ok := parsed.Claims.(*jwtClaims)
	if !ok || !parsed.Valid {
		return nil, fmt.Errorf("invalid token claims")
	}
	return claims, nil
}

func newRefreshSecret() (secret, secretHash string, err error) {
	buf := make([]byte, refreshSecretBytes)
	if _, err := rand.Read(buf); err != nil {
		return "", "", err
	}
	secret = base64.RawURLEncoding.EncodeToString(buf)
	return secret, hashToken(secret), nil
}

func hashToken(s string) string {
	sum := sha256.Sum256([]byte(s))
	return hex.EncodeToString(sum[:])
}
