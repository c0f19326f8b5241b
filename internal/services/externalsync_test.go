package services

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"github.com/google/uuid"
	"gorm.io/gorm"

	types "github.com/datafirst-hq/aidly-backend/internal/domain"
	"github.com/datafirst-hq/aidly-backend/internal/domain/apperr"
	"github.com/datafirst-hq/aidly-backend/internal/pkg/dbctx"
	"github.com/datafirst-hq/aidly-backend/internal/platform/clickup"
)

type fakeConnectionRepo struct {
	mu   sync.Mutex
	rows map[string]*types.ExternalConnection
}

func newFakeConnectionRepo() *fakeConnectionRepo {
	return &fakeConnectionRepo{rows: map[string]*types.ExternalConnection{}}
}

func connKey(workspaceID uuid.UUID, provider string) string {
	return workspaceID.String() + "|" + provider
}

func (f *fakeConnectionRepo) Upsert(dbc dbctx.Context, row *types.ExternalConnection) (*types.ExternalConnection, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if row.ID == uuid.Nil {
		row.ID = uuid.New()
	}
	f.rows[connKey(row.WorkspaceID, row.Provider)] = row
	return row, nil
}

func (f *fakeConnectionRepo) GetByWorkspaceProvider(dbc dbctx.Context, workspaceID uuid.UUID, provider string) (*types.ExternalConnection, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	row, ok := f.rows[connKey(workspaceID, provider)]
	if !ok {
		return nil, gorm.ErrRecordNotFound
	}
	cp := *row
	return &cp, nil
}

func (f *fakeConnectionRepo) ListByWorkspace(dbc dbctx.Context, workspaceID uuid.UUID) ([]*types.ExternalConnection, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []*types.ExternalConnection
	for _, row := range f.rows {
		if row.WorkspaceID == workspaceID {
			cp := *row
			out = append(out, &cp)
		}
	}
	return out, nil
}

func (f *fakeConnectionRepo) Deactivate(dbc dbctx.Context, workspaceID uuid.UUID, provider string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	row, ok := f.rows[connKey(workspaceID, provider)]
	if !ok {
		return gorm.ErrRecordNotFound
	}
	row.IsActive = false
	return nil
}

type fakeTaskProvider struct {
	name        string
	validateErr error
	fetchErr    error
	browseErr   error
	tasks       map[string]*ExternalTask
	browse      []ExternalTask
	lastToken   string
	lastFilter  TicketFilter
}

func (f *fakeTaskProvider) Name() string {
	if f.name == "" {
		return "clickup"
	}
	return f.name
}

func (f *fakeTaskProvider) Validate(ctx context.Context, token string) error {
	f.lastToken = token
	return f.validateErr
}

func (f *fakeTaskProvider) FetchTask(ctx context.Context, token, ticketID string) (*ExternalTask, error) {
	f.lastToken = token
	if f.fetchErr != nil {
		return nil, f.fetchErr
	}
	task, ok := f.tasks[ticketID]
	if !ok {
		return nil, errors.New("task not found")
	}
	cp := *task
	return &cp, nil
}

func (f *fakeTaskProvider) BrowseTickets(ctx context.Context, token string, filter TicketFilter) ([]ExternalTask, error) {
	f.lastToken = token
	f.lastFilter = filter
	if f.browseErr != nil {
		return nil, f.browseErr
	}
	return f.browse, nil
}

type externalSyncFixture struct {
	svc      ExternalSyncService
	repo     *fakeSourceRepo
	conns    *fakeConnectionRepo
	provider *fakeTaskProvider
	store    *fakeVectorStore
	dataDir  string
}

func newExternalSyncFixture(t *testing.T) *externalSyncFixture {
	t.Helper()
	repo := newFakeSourceRepo()
	conns := newFakeConnectionRepo()
	provider := &fakeTaskProvider{tasks: map[string]*ExternalTask{}}
	store := &fakeVectorStore{}
	dataDir := t.TempDir()
	syncer := NewSyncService(testLogger(t), repo, &fakeIngestor{}, store, dataDir)
	svc := NewExternalSyncService(testLogger(t), repo, conns, syncer, dataDir, provider)
	return &externalSyncFixture{svc: svc, repo: repo, conns: conns, provider: provider, store: store, dataDir: dataDir}
}

func seedConnection(t *testing.T, conns *fakeConnectionRepo, wsID uuid.UUID, provider, token string, active bool) {
	t.Helper()
	row := &types.ExternalConnection{WorkspaceID: wsID, Provider: provider, IsActive: active}
	if err := row.EncodeCredentials(types.ExternalCredentials{APIToken: token}); err != nil {
		t.Fatalf("encode credentials: %v", err)
	}
	if _, err := conns.Upsert(dbctx.Context{Ctx: context.Background()}, row); err != nil {
		t.Fatalf("seed connection: %v", err)
	}
}

func TestConnectValidatesAndStoresToken(t *testing.T) {
	fx := newExternalSyncFixture(t)
	wsID := uuid.New()

	if err := fx.svc.Connect(context.Background(), wsID, "clickup", "  pk_123  "); err != nil {
		t.Fatalf("Connect: %v", err)
	}
	if fx.provider.lastToken != "pk_123" {
		t.Fatalf("token should be trimmed before validation, got %q", fx.provider.lastToken)
	}

	conn, err := fx.conns.GetByWorkspaceProvider(dbctx.Context{Ctx: context.Background()}, wsID, "clickup")
	if err != nil {
		t.Fatalf("connection row missing: %v", err)
	}
	if !conn.IsActive {
		t.Fatal("connection must start active")
	}
	creds, err := conn.DecodeCredentials()
	if err != nil || creds.APIToken != "pk_123" {
		t.Fatalf("stored credentials: %+v err=%v", creds, err)
	}
}

func TestConnectRejectsBadToken(t *testing.T) {
	fx := newExternalSyncFixture(t)
	fx.provider.validateErr = errors.New("401 unauthorized")

	err := fx.svc.Connect(context.Background(), uuid.New(), "clickup", "bad")
	if !apperr.IsCode(err, apperr.CodeInvalidInput) {
		t.Fatalf("want invalid_input, got %v", err)
	}

	fx.provider.validateErr = nil
	if err := fx.svc.Connect(context.Background(), uuid.New(), "clickup", "   "); !apperr.IsCode(err, apperr.CodeInvalidInput) {
		t.Fatalf("empty token: want invalid_input, got %v", err)
	}
}

func TestConnectUnknownProvider(t *testing.T) {
	fx := newExternalSyncFixture(t)
	err := fx.svc.Connect(context.Background(), uuid.New(), "jira", "tok")
	if !apperr.IsCode(err, apperr.CodeInvalidInput) {
		t.Fatalf("want invalid_input, got %v", err)
	}
}

func TestListTicketsMarksSynced(t *testing.T) {
	fx := newExternalSyncFixture(t)
	wsID := uuid.New()
	seedConnection(t, fx.conns, wsID, "clickup", "pk_123", true)

	fx.provider.browse = []ExternalTask{
		{ID: "t1", Title: "Login broken", Description: "500 on submit", Status: "open"},
		{ID: "t2", Title: "Slow search", Description: "times out", Status: "closed"},
	}
	fx.repo.add(&types.DataSource{
		WorkspaceID: wsID,
		SourceType:  types.SourceTypeExternalTask,
		Reference:   "clickup_t1.txt",
		IsSynced:    true,
	})

	tickets, err := fx.svc.ListTickets(context.Background(), wsID, "clickup", TicketFilter{})
	if err != nil {
		t.Fatalf("ListTickets: %v", err)
	}
	if len(tickets) != 2 {
		t.Fatalf("want 2 tickets, got %d", len(tickets))
	}
	if !tickets[0].IsSynced || tickets[1].IsSynced {
		t.Fatalf("synced flags wrong: %+v", tickets)
	}
	if fx.provider.lastToken != "pk_123" {
		t.Fatalf("browse should use the stored token, got %q", fx.provider.lastToken)
	}
}

func TestListTicketsSearchFilter(t *testing.T) {
	fx := newExternalSyncFixture(t)
	wsID := uuid.New()
	seedConnection(t, fx.conns, wsID, "clickup", "pk_123", true)

	fx.provider.browse = []ExternalTask{
		{ID: "t1", Title: "Login broken", Description: "500 on submit"},
		{ID: "t2", Title: "Slow search", Description: "query times out"},
		{ID: "t3", Title: "Crash", Description: "fails after LOGIN"},
	}

	tickets, err := fx.svc.ListTickets(context.Background(), wsID, "clickup", TicketFilter{Search: "login"})
	if err != nil {
		t.Fatalf("ListTickets: %v", err)
	}
	if len(tickets) != 2 {
		t.Fatalf("search should match title and description case-insensitively, got %d", len(tickets))
	}
	if tickets[0].ID != "t1" || tickets[1].ID != "t3" {
		t.Fatalf("unexpected matches: %+v", tickets)
	}
}

func TestListTicketsRequiresActiveConnection(t *testing.T) {
	fx := newExternalSyncFixture(t)
	wsID := uuid.New()

	_, err := fx.svc.ListTickets(context.Background(), wsID, "clickup", TicketFilter{})
	if !apperr.IsCode(err, apperr.CodeNotFound) {
		t.Fatalf("missing connection: want not_found, got %v", err)
	}

	seedConnection(t, fx.conns, wsID, "clickup", "pk_123", false)
	_, err = fx.svc.ListTickets(context.Background(), wsID, "clickup", TicketFilter{})
	if !apperr.IsCode(err, apperr.CodeNotFound) {
		t.Fatalf("inactive connection: want not_found, got %v", err)
	}
}

func TestSyncTaskCanonicalizesAndIngests(t *testing.T) {
	fx := newExternalSyncFixture(t)
	wsID, ownerID := uuid.New(), uuid.New()
	seedConnection(t, fx.conns, wsID, "clickup", "pk_123", true)

	fx.provider.tasks["abc"] = &ExternalTask{
		ID:          "abc",
		Title:       "Login broken",
		Description: "500 on submit",
		Status:      "open",
		Assignees:   []string{"ana", "bo"},
		Solution:    "Rotate the session key.",
	}

	res, err := fx.svc.SyncTask(context.Background(), wsID, ownerID, "clickup", "abc")
	if err != nil {
		t.Fatalf("SyncTask: %v", err)
	}
	if res.ChunksAdded <= 0 {
		t.Fatalf("no chunks ingested: %+v", res)
	}

	row, err := fx.repo.GetByReference(dbctx.Context{Ctx: context.Background()}, wsID, "clickup_abc.txt")
	if err != nil {
		t.Fatalf("source row missing: %v", err)
	}
	if row.SourceType != types.SourceTypeExternalTask || row.OwnerID != ownerID {
		t.Fatalf("row identity: %+v", row)
	}
	if row.Category != "open" || row.Tags != "ana, bo" {
		t.Fatalf("row metadata: category=%q tags=%q", row.Category, row.Tags)
	}
	if !row.IsSynced {
		t.Fatal("synced task must be flagged synced")
	}

	raw, err := os.ReadFile(filepath.Join(fx.dataDir, "workspaces", wsID.String(), "clickup_abc.txt"))
	if err != nil {
		t.Fatalf("canonical file missing: %v", err)
	}
	want := "Task ID: abc\nIssue: Login broken\nProblem: 500 on submit\nSolution:\nRotate the session key."
	if string(raw) != want {
		t.Fatalf("canonical content:\n got %q\nwant %q", raw, want)
	}
}

func TestSyncTaskWithoutSolution(t *testing.T) {
	fx := newExternalSyncFixture(t)
	wsID := uuid.New()
	seedConnection(t, fx.conns, wsID, "clickup", "pk_123", true)

	fx.provider.tasks["t9"] = &ExternalTask{ID: "t9", Title: "Crash", Description: "boom", Solution: "   "}

	if _, err := fx.svc.SyncTask(context.Background(), wsID, uuid.New(), "clickup", "t9"); err != nil {
		t.Fatalf("SyncTask: %v", err)
	}
	raw, err := os.ReadFile(filepath.Join(fx.dataDir, "workspaces", wsID.String(), "clickup_t9.txt"))
	if err != nil {
		t.Fatalf("canonical file missing: %v", err)
	}
	if !strings.HasSuffix(string(raw), "Solution:\nNo solution provided.") {
		t.Fatalf("empty solution must canonicalize to the placeholder, got %q", raw)
	}
}

func TestSyncTaskTwiceKeepsOneRow(t *testing.T) {
	fx := newExternalSyncFixture(t)
	wsID := uuid.New()
	seedConnection(t, fx.conns, wsID, "clickup", "pk_123", true)

	fx.provider.tasks["abc"] = &ExternalTask{ID: "abc", Title: "Login broken", Status: "open"}
	if _, err := fx.svc.SyncTask(context.Background(), wsID, uuid.New(), "clickup", "abc"); err != nil {
		t.Fatalf("first SyncTask: %v", err)
	}

	fx.provider.tasks["abc"].Status = "closed"
	if _, err := fx.svc.SyncTask(context.Background(), wsID, uuid.New(), "clickup", "abc"); err != nil {
		t.Fatalf("second SyncTask: %v", err)
	}

	rows, err := fx.repo.ListByWorkspace(dbctx.Context{Ctx: context.Background()}, wsID)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(rows) != 1 {
		t.Fatalf("re-sync must update in place, got %d rows", len(rows))
	}
	if rows[0].Category != "closed" {
		t.Fatalf("re-sync should refresh the status category, got %q", rows[0].Category)
	}
}

func TestSyncTaskUpstreamFailure(t *testing.T) {
	fx := newExternalSyncFixture(t)
	wsID := uuid.New()
	seedConnection(t, fx.conns, wsID, "clickup", "pk_123", true)
	fx.provider.fetchErr = errors.New("clickup 502")

	_, err := fx.svc.SyncTask(context.Background(), wsID, uuid.New(), "clickup", "abc")
	if !apperr.IsCode(err, apperr.CodeUpstreamUnavailable) {
		t.Fatalf("want upstream_unavailable, got %v", err)
	}
	rows, _ := fx.repo.ListByWorkspace(dbctx.Context{Ctx: context.Background()}, wsID)
	if len(rows) != 0 {
		t.Fatalf("failed fetch must not leave rows behind, got %d", len(rows))
	}
}

func TestUnsyncTaskRemovesEverything(t *testing.T) {
	fx := newExternalSyncFixture(t)
	wsID := uuid.New()
	seedConnection(t, fx.conns, wsID, "clickup", "pk_123", true)

	fx.provider.tasks["abc"] = &ExternalTask{ID: "abc", Title: "Login broken"}
	if _, err := fx.svc.SyncTask(context.Background(), wsID, uuid.New(), "clickup", "abc"); err != nil {
		t.Fatalf("SyncTask: %v", err)
	}
	path := filepath.Join(fx.dataDir, "workspaces", wsID.String(), "clickup_abc.txt")
	if _, err := os.Stat(path); err != nil {
		t.Fatalf("canonical file should exist before unsync: %v", err)
	}

	if err := fx.svc.UnsyncTask(context.Background(), wsID, "clickup", "abc"); err != nil {
		t.Fatalf("UnsyncTask: %v", err)
	}

	if _, err := fx.repo.GetByReference(dbctx.Context{Ctx: context.Background()}, wsID, "clickup_abc.txt"); !errors.Is(err, gorm.ErrRecordNotFound) {
		t.Fatalf("row should be gone, got %v", err)
	}
	if _, err := os.Stat(path); !errors.Is(err, os.ErrNotExist) {
		t.Fatalf("canonical file should be removed, got %v", err)
	}
}

func TestUnsyncTaskNotFound(t *testing.T) {
	fx := newExternalSyncFixture(t)
	err := fx.svc.UnsyncTask(context.Background(), uuid.New(), "clickup", "ghost")
	if !apperr.IsCode(err, apperr.CodeNotFound) {
		t.Fatalf("want not_found, got %v", err)
	}
}

// ClickUp provider adapter.

type fakeClickUpClient struct {
	teams    []clickup.Team
	spaces   map[string][]clickup.Space
	lists    map[string][]clickup.List
	tasks    map[string][]clickup.Task
	task     *clickup.Task
	teamsErr error
	taskErr  error
	listErrs map[string]error
}

func (f *fakeClickUpClient) GetTeams(ctx context.Context, token string) ([]clickup.Team, error) {
	if f.teamsErr != nil {
		return nil, f.teamsErr
	}
	return f.teams, nil
}

func (f *fakeClickUpClient) GetSpaces(ctx context.Context, token, teamID string) ([]clickup.Space, error) {
	return f.spaces[teamID], nil
}

func (f *fakeClickUpClient) GetLists(ctx context.Context, token, spaceID string) ([]clickup.List, error) {
	return f.lists[spaceID], nil
}

func (f *fakeClickUpClient) GetTasks(ctx context.Context, token, listID string) ([]clickup.Task, error) {
	if err := f.listErrs[listID]; err != nil {
		return nil, err
	}
	return f.tasks[listID], nil
}

func (f *fakeClickUpClient) GetTask(ctx context.Context, token, taskID string) (*clickup.Task, error) {
	if f.taskErr != nil {
		return nil, f.taskErr
	}
	return f.task, nil
}

func (f *fakeClickUpClient) GetComments(ctx context.Context, token, taskID string) ([]string, error) {
	return nil, nil
}

func TestClickUpValidateNeedsTeams(t *testing.T) {
	p := NewClickUpProvider(testLogger(t), &fakeClickUpClient{})
	if err := p.Validate(context.Background(), "tok"); err == nil {
		t.Fatal("token without teams must fail validation")
	}

	p = NewClickUpProvider(testLogger(t), &fakeClickUpClient{teams: []clickup.Team{{ID: "team1"}}})
	if err := p.Validate(context.Background(), "tok"); err != nil {
		t.Fatalf("Validate: %v", err)
	}
}

func TestClickUpBrowsePrecedence(t *testing.T) {
	client := &fakeClickUpClient{
		teams:  []clickup.Team{{ID: "team1"}},
		spaces: map[string][]clickup.Space{"team1": {{ID: "space1"}}},
		lists:  map[string][]clickup.List{"space1": {{ID: "list1"}, {ID: "list2"}}},
		tasks: map[string][]clickup.Task{
			"list1": {{ID: "a", Name: "A"}},
			"list2": {{ID: "b", Name: "B"}},
		},
	}
	p := NewClickUpProvider(testLogger(t), client)

	// The most specific filter wins.
	out, err := p.BrowseTickets(context.Background(), "tok", TicketFilter{ListID: "list2", SpaceID: "space1", TeamID: "team1"})
	if err != nil {
		t.Fatalf("BrowseTickets: %v", err)
	}
	if len(out) != 1 || out[0].ID != "b" {
		t.Fatalf("list filter should win, got %+v", out)
	}

	// No filter walks the first team.
	out, err = p.BrowseTickets(context.Background(), "tok", TicketFilter{})
	if err != nil {
		t.Fatalf("BrowseTickets: %v", err)
	}
	if len(out) != 2 {
		t.Fatalf("default browse should cover the first team, got %d", len(out))
	}
	if out[0].ListID != "list1" || out[1].ListID != "list2" {
		t.Fatalf("tasks must carry their list id, got %+v", out)
	}
}

func TestClickUpBrowseSkipsLockedLists(t *testing.T) {
	client := &fakeClickUpClient{
		teams:    []clickup.Team{{ID: "team1"}},
		spaces:   map[string][]clickup.Space{"team1": {{ID: "space1"}}},
		lists:    map[string][]clickup.List{"space1": {{ID: "list1"}, {ID: "list2"}}},
		tasks:    map[string][]clickup.Task{"list2": {{ID: "b", Name: "B"}}},
		listErrs: map[string]error{"list1": errors.New("403 forbidden")},
	}
	p := NewClickUpProvider(testLogger(t), client)

	out, err := p.BrowseTickets(context.Background(), "tok", TicketFilter{SpaceID: "space1"})
	if err != nil {
		t.Fatalf("a locked list must not abort the browse: %v", err)
	}
	if len(out) != 1 || out[0].ID != "b" {
		t.Fatalf("unexpected tasks: %+v", out)
	}
}

func TestClickUpFetchTaskMapsSolution(t *testing.T) {
	client := &fakeClickUpClient{
		task: &clickup.Task{
			ID:          "abc",
			Name:        "Login broken",
			Description: "500 on submit",
			Status:      "open",
			CustomFields: []clickup.CustomField{
				{Name: "Severity", Value: "2"},
				{Name: "Solution", Value: "Rotate the session key."},
			},
		},
	}
	p := NewClickUpProvider(testLogger(t), client)

	task, err := p.FetchTask(context.Background(), "tok", "abc")
	if err != nil {
		t.Fatalf("FetchTask: %v", err)
	}
	if task.Title != "Login broken" || task.Solution != "Rotate the session key." {
		t.Fatalf("unexpected mapping: %+v", task)
	}
}
