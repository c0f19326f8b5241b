package services

import (
	"context"
	"errors"
	"strings"

	"github.com/google/uuid"
	"gorm.io/gorm"

	userrepo "github.com/datafirst-hq/aidly-backend/internal/data/repos/user"
	wsrepo "github.com/datafirst-hq/aidly-backend/internal/data/repos/workspace"
	types "github.com/datafirst-hq/aidly-backend/internal/domain"
	"github.com/datafirst-hq/aidly-backend/internal/domain/apperr"
	"github.com/datafirst-hq/aidly-backend/internal/pkg/dbctx"
	"github.com/datafirst-hq/aidly-backend/internal/pkg/logger"
)

const (
	defaultWorkspaceName = "Default Workspace"
	defaultLanguage      = "en"
)

// UserProfile is the /users/me projection: the user row plus tenancy info.
type UserProfile struct {
	ID                 uuid.UUID  `json:"id"`
	Username           string     `json:"username"`
	Email              string     `json:"email"`
	IsAdmin            bool       `json:"is_admin"`
	CurrentWorkspaceID *uuid.UUID `json:"current_workspace_id,omitempty"`
	Language           string     `json:"language"`
}

// WorkspaceService owns tenancy: membership checks, the user's current
// workspace pointer, and per-user preferences such as the reply language.
type WorkspaceService interface {
	CreateWorkspace(ctx context.Context, ownerID uuid.UUID, name string) (*types.Workspace, error)
	ListWorkspaces(ctx context.Context, userID uuid.UUID) ([]*types.Workspace, error)
	SetCurrentWorkspace(ctx context.Context, userID, workspaceID uuid.UUID) error
	CurrentWorkspaceID(ctx context.Context, userID uuid.UUID) (uuid.UUID, error)
	EnsureDefaultWorkspace(ctx context.Context, userID uuid.UUID) (*types.Workspace, error)
	RequireMembership(ctx context.Context, userID, workspaceID uuid.UUID) error
	Profile(ctx context.Context, userID uuid.UUID) (*UserProfile, error)
	Language(ctx context.Context, userID uuid.UUID) string
	SetLanguage(ctx context.Context, userID uuid.UUID, language string) error
}

type workspaceService struct {
	log        *logger.Logger
	users      userrepo.UserRepo
	workspaces wsrepo.WorkspaceRepo
	members    wsrepo.WorkspaceUserRepo
	prefs      userrepo.UserPreferenceRepo
}

func NewWorkspaceService(
	log *logger.Logger,
	users userrepo.UserRepo,
	workspaces wsrepo.WorkspaceRepo,
	members wsrepo.WorkspaceUserRepo,
	prefs userrepo.UserPreferenceRepo,
) WorkspaceService {
	return &workspaceService{
		log:        log.With("service", "WorkspaceService"),
		users:      users,
		workspaces: workspaces,
		members:    members,
		prefs:      prefs,
	}
}

func (s *workspaceService) CreateWorkspace(ctx context.Context, ownerID uuid.UUID, name string) (*types.Workspace, error) {
	const op = "WorkspaceService.CreateWorkspace"
	if ownerID == uuid.Nil {
		return nil, apperr.New(apperr.CodeInvalidInput, op, "missing owner_id", nil)
	}
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, apperr.New(apperr.CodeInvalidInput, op, "workspace name is required", nil)
	}

	dbc := dbctx.Context{Ctx: ctx}
	owner, err := s.users.GetByID(dbc, ownerID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperr.New(apperr.CodeNotFound, op, "user not found", err)
		}
		return nil, apperr.Wrap(apperr.CodeInternal, op, err)
	}

	ws, err := s.workspaces.Create(dbc, &types.Workspace{Name: name, OwnerID: owner.ID})
	if err != nil {
		return nil, apperr.Wrap(apperr.CodeInternal, op, err)
	}
	if _, err := s.members.Create(dbc, &types.WorkspaceUser{
		WorkspaceID: ws.ID,
		UserID:      owner.ID,
		Role:        types.RoleAdmin,
	}); err != nil {
		return nil, apperr.Wrap(apperr.CodeInternal, op, err)
	}
	if owner.CurrentWorkspaceID == nil {
		if err := s.users.UpdateCurrentWorkspace(dbc, owner.ID, ws.ID); err != nil {
			return nil, apperr.Wrap(apperr.CodeInternal, op, err)
		}
	}
	s.log.Info("Workspace created", "workspace_id", ws.ID, "owner_id", owner.ID, "name", name)
	return ws, nil
}

func (s *workspaceService) ListWorkspaces(ctx context.Context, userID uuid.UUID) ([]*types.Workspace, error) {
	const op = "WorkspaceService.ListWorkspaces"
	if userID == uuid.Nil {
		return nil, apperr.New(apperr.CodeInvalidInput, op, "missing user_id", nil)
	}
	out, err := s.workspaces.ListByUser(dbctx.Context{Ctx: ctx}, userID)
	if err != nil {
		return nil, apperr.Wrap(apperr.CodeInternal, op, err)
	}
	return out, nil
}

func (s *workspaceService) SetCurrentWorkspace(ctx context.Context, userID, workspaceID uuid.UUID) error {
	const op = "WorkspaceService.SetCurrentWorkspace"
	if err := s.RequireMembership(ctx, userID, workspaceID); err != nil {
		return err
	}
	if err := s.users.UpdateCurrentWorkspace(dbctx.Context{Ctx: ctx}, userID, workspaceID); err != nil {
		return apperr.Wrap(apperr.CodeInternal, op, err)
	}
	return nil
}

// CurrentWorkspaceID resolves the workspace a user's requests run under.
// A dangling pointer (membership revoked, workspace deleted) falls back to
// the user's oldest workspace and heals the pointer.
func (s *workspaceService) CurrentWorkspaceID(ctx context.Context, userID uuid.UUID) (uuid.UUID, error) {
	const op = "WorkspaceService.CurrentWorkspaceID"
	if userID == uuid.Nil {
		return uuid.Nil, apperr.New(apperr.CodeInvalidInput, op, "missing user_id", nil)
	}

	dbc := dbctx.Context{Ctx: ctx}
	u, err := s.users.GetByID(dbc, userID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return uuid.Nil, apperr.New(apperr.CodeNotFound, op, "user not found", err)
		}
		return uuid.Nil, apperr.Wrap(apperr.CodeInternal, op, err)
	}

	if u.CurrentWorkspaceID != nil && *u.CurrentWorkspaceID != uuid.Nil {
		ok, err := s.members.IsMember(dbc, *u.CurrentWorkspaceID, userID)
		if err != nil {
			return uuid.Nil, apperr.Wrap(apperr.CodeInternal, op, err)
		}
		if ok {
			return *u.CurrentWorkspaceID, nil
		}
	}

	owned, err := s.workspaces.ListByUser(dbc, userID)
	if err != nil {
		return uuid.Nil, apperr.Wrap(apperr.CodeInternal, op, err)
	}
	if len(owned) == 0 {
		return uuid.Nil, apperr.New(apperr.CodeInvalidInput, op, "user has no workspace", nil)
	}
	if err := s.users.UpdateCurrentWorkspace(dbc, userID, owned[0].ID); err != nil {
		return uuid.Nil, apperr.Wrap(apperr.CodeInternal, op, err)
	}
	s.log.Info("Current workspace healed", "user_id", userID, "workspace_id", owned[0].ID)
	return owned[0].ID, nil
}

// EnsureDefaultWorkspace returns the user's current workspace, provisioning
// one when the user has none. Widget generation relies on this.
func (s *workspaceService) EnsureDefaultWorkspace(ctx context.Context, userID uuid.UUID) (*types.Workspace, error) {
	const op = "WorkspaceService.EnsureDefaultWorkspace"
	wsID, err := s.CurrentWorkspaceID(ctx, userID)
	if err == nil {
		ws, gerr := s.workspaces.GetByID(dbctx.Context{Ctx: ctx}, wsID)
		if gerr != nil {
			return nil, apperr.Wrap(apperr.CodeInternal, op, gerr)
		}
		return ws, nil
	}
	if !apperr.IsCode(err, apperr.CodeInvalidInput) {
		return nil, err
	}
	return s.CreateWorkspace(ctx, userID, defaultWorkspaceName)
}

func (s *workspaceService) RequireMembership(ctx context.Context, userID, workspaceID uuid.UUID) error {
	const op = "WorkspaceService.RequireMembership"
	if userID == uuid.Nil || workspaceID == uuid.Nil {
		return apperr.New(apperr.CodeInvalidInput, op, "missing user_id or workspace_id", nil)
	}
	ok, err := s.members.IsMember(dbctx.Context{Ctx: ctx}, workspaceID, userID)
	if err != nil {
		return apperr.Wrap(apperr.CodeInternal, op, err)
	}
	if !ok {
		return apperr.New(apperr.CodeForbidden, op, "not a member of this workspace", nil)
	}
	return nil
}

func (s *workspaceService) Profile(ctx context.Context, userID uuid.UUID) (*UserProfile, error) {
	const op = "WorkspaceService.Profile"
	if userID == uuid.Nil {
		return nil, apperr.New(apperr.CodeInvalidInput, op, "missing user_id", nil)
	}
	u, err := s.users.GetByID(dbctx.Context{Ctx: ctx}, userID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperr.New(apperr.CodeNotFound, op, "user not found", err)
		}
		return nil, apperr.Wrap(apperr.CodeInternal, op, err)
	}
	return &UserProfile{
		ID:                 u.ID,
		Username:           u.Username,
		Email:              u.Email,
		IsAdmin:            u.IsAdmin,
		CurrentWorkspaceID: u.CurrentWorkspaceID,
		Language:           s.Language(ctx, userID),
	}, nil
}

// Language returns the user's preferred reply language, defaulting to "en".
// Lookup failures are deliberately swallowed; language is never fatal.
func (s *workspaceService) Language(ctx context.Context, userID uuid.UUID) string {
	if userID == uuid.Nil {
		return defaultLanguage
	}
	pref, err := s.prefs.Get(dbctx.Context{Ctx: ctx}, userID, types.PreferenceKeyLanguage)
	if err != nil {
		if !errors.Is(err, gorm.ErrRecordNotFound) {
			s.log.Warn("Language preference lookup failed", "user_id", userID, "error", err)
		}
		return defaultLanguage
	}
	lang := strings.ToLower(strings.TrimSpace(pref.Value))
	if lang == "" {
		return defaultLanguage
	}
	return lang
}

func (s *workspaceService) SetLanguage(ctx context.Context, userID uuid.UUID, language string) error {
	const op = "WorkspaceService.SetLanguage"
	if userID == uuid.Nil {
		return apperr.New(apperr.CodeInvalidInput, op, "missing user_id", nil)
	}
	language = strings.ToLower(strings.TrimSpace(language))
	if language == "" || len(language) > 8 {
		return apperr.New(apperr.CodeInvalidInput, op, "invalid language code", nil)
	}
	for _, r := range language {
		if (r < 'a' || r > 'z') && r != '-' {
			return apperr.New(apperr.CodeInvalidInput, op, "invalid language code", nil)
		}
	}
	if _, err := s.prefs.Upsert(dbctx.Context{Ctx: ctx}, userID, types.PreferenceKeyLanguage, language); err != nil {
		return apperr.Wrap(apperr.CodeInternal, op, err)
	}
	return nil
}
