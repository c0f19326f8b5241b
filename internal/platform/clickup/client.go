package clickup

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/datafirst-hq/aidly-backend/internal/pkg/ctxutil"
	"github.com/datafirst-hq/aidly-backend/internal/pkg/httpx"
	"github.com/datafirst-hq/aidly-backend/internal/pkg/logger"
)

// Client is the ClickUp v2 API client. Tokens are per-workspace credentials,
// so every call takes the token of the connection it acts for.
type Client interface {
	GetTeams(ctx context.Context, token string) ([]Team, error)
	GetSpaces(ctx context.Context, token string, teamID string) ([]Space, error)
	GetLists(ctx context.Context, token string, spaceID string) ([]List, error)
	GetTasks(ctx context.Context, token string, listID string) ([]Task, error)
	GetTask(ctx context.Context, token string, taskID string) (*Task, error)
	GetComments(ctx context.Context, token string, taskID string) ([]string, error)
}

type Team struct {
	ID   string
	Name string
}

type Space struct {
	ID   string
	Name string
}

type List struct {
	ID   string
	Name string
}

type Task struct {
	ID           string
	Name         string
	Description  string
	Status       string
	Priority     string
	Assignees    []string
	DueDate      *time.Time
	CustomFields []CustomField
}

type CustomField struct {
	Name  string
	Value string
}

// Solution returns the value of the custom field named "Solution",
// or "" when the field is absent or blank.
func (t *Task) Solution() string {
	for _, f := range t.CustomFields {
		if f.Name == "Solution" && strings.TrimSpace(f.Value) != "" {
			return f.Value
		}
	}
	return ""
}

type client struct {
	log        *logger.Logger
	baseURL    string
	httpClient *http.Client
	maxRetries int
}

func NewClient(log *logger.Logger) (Client, error) {
	if log == nil {
		return nil, fmt.Errorf("logger required")
	}

	baseURL := strings.TrimSpace(os.Getenv("CLICKUP_BASE_URL"))
	if baseURL == "" {
		baseURL = "https://api.clickup.com"
	}
	baseURL = strings.TrimRight(baseURL, "/")

	timeoutSec := 30
	if v := os.Getenv("CLICKUP_TIMEOUT_SECONDS"); v != "" {
		if parsed, err := strconv.Atoi(strings.TrimSpace(v)); err == nil && parsed > 0 {
			timeoutSec = parsed
		}
	}

	maxRetries := 4
	if v := os.Getenv("CLICKUP_MAX_RETRIES"); v != "" {
		if parsed, err := strconv.Atoi(strings.TrimSpace(v)); err == nil && parsed >= 0 {
			maxRetries = parsed
		}
	}

	return &client{
		log:        log.With("service", "ClickUpClient"),
		baseURL:    baseURL,
		httpClient: &http.Client{Timeout: time.Duration(timeoutSec) * time.Second},
		maxRetries: maxRetries,
	}, nil
}

type clickupHTTPError struct {
	StatusCode int
	Body       string
}

func (e *clickupHTTPError) Error() string {
	return fmt.Sprintf("clickup http %d: %s", e.StatusCode, e.Body)
}

func (e *clickupHTTPError) HTTPStatusCode() int {
	if e == nil {
		return 0
	}
	return e.StatusCode
}

func (c *client) getOnce(ctx context.Context, token string, path string) (*http.Response, []byte, error) {
	req, err := http.NewRequestWithContext(ctxutil.Default(ctx), http.MethodGet, c.baseURL+path, nil)
	if err != nil {
		return nil, nil, err
	}
	req.Header.Set("Authorization", token)
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, nil, err
	}

	raw, readErr := io.ReadAll(resp.Body)
	_ = resp.Body.Close()
	if readErr != nil {
		return resp, nil, readErr
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return resp, raw, &clickupHTTPError{StatusCode: resp.StatusCode, Body: string(raw)}
	}
	return resp, raw, nil
}

func (c *client) get(ctx context.Context, token string, path string, out any) error {
	if strings.TrimSpace(token) == "" {
		return fmt.Errorf("clickup token required")
	}

	backoff := 1 * time.Second

	for attempt := 0; attempt <= c.maxRetries; attempt++ {
		if ctx != nil && ctx.Err() != nil {
			return ctx.Err()
		}

		resp, raw, err := c.getOnce(ctx, token, path)
		if err == nil {
			if uErr := json.Unmarshal(raw, out); uErr != nil {
				return fmt.Errorf("clickup decode error: %w; raw=%s", uErr, string(raw))
			}
			return nil
		}

		if !httpx.IsRetryableError(err) || attempt == c.maxRetries {
			return err
		}

		sleepFor := httpx.RetryAfterDuration(resp, backoff, 10*time.Second)
		sleepFor = httpx.JitterSleep(sleepFor)

		c.log.Warn("ClickUp request retrying",
			"path", path,
			"attempt", attempt+1,
			"max_retries", c.maxRetries,
			"sleep", sleepFor.String(),
			"error", err.Error(),
		)

		time.Sleep(sleepFor)
		backoff *= 2
	}

	return fmt.Errorf("unreachable retry loop")
}

// -------------------- Wire payloads --------------------

type namedResource struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

type taskPayload struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Description string `json:"description"`
	Status      *struct {
		Status string `json:"status"`
	} `json:"status"`
	Priority *struct {
		Priority string `json:"priority"`
	} `json:"priority"`
	Assignees []struct {
		Username string `json:"username"`
	} `json:"assignees"`
	DueDate      string `json:"due_date"`
	CustomFields []struct {
		Name  string `json:"name"`
		Value any    `json:"value"`
	} `json:"custom_fields"`
}

func (p *taskPayload) toTask() Task {
	t := Task{
		ID:          p.ID,
		Name:        p.Name,
		Description: p.Description,
	}
	if p.Status != nil {
		t.Status = p.Status.Status
	}
	if p.Priority != nil {
		t.Priority = p.Priority.Priority
	}
	for _, a := range p.Assignees {
		if strings.TrimSpace(a.Username) != "" {
			t.Assignees = append(t.Assignees, a.Username)
		}
	}
	// due_date arrives as epoch milliseconds in a string.
	if ms, err := strconv.ParseInt(strings.TrimSpace(p.DueDate), 10, 64); err == nil && ms > 0 {
		due := time.UnixMilli(ms).UTC()
		t.DueDate = &due
	}
	for _, f := range p.CustomFields {
		t.CustomFields = append(t.CustomFields, CustomField{Name: f.Name, Value: valueString(f.Value)})
	}
	return t
}

func valueString(v any) string {
	switch val := v.(type) {
	case nil:
		return ""
	case string:
		return val
	case float64:
		return strconv.FormatFloat(val, 'f', -1, 64)
	case bool:
		return strconv.FormatBool(val)
	default:
		return ""
	}
}

// -------------------- Operations --------------------

func (c *client) GetTeams(ctx context.Context, token string) ([]Team, error) {
	var resp struct {
		Teams []namedResource `json:"teams"`
	}
	if err := c.get(ctx, token, "/api/v2/team", &resp); err != nil {
		return nil, err
	}
	teams := make([]Team, 0, len(resp.Teams))
	for _, t := range resp.Teams {
		teams = append(teams, Team{ID: t.ID, Name: t.Name})
	}
	return teams, nil
}

func (c *client) GetSpaces(ctx context.Context, token string, teamID string) ([]Space, error) {
	if strings.TrimSpace(teamID) == "" {
		return nil, fmt.Errorf("missing team_id")
	}
	var resp struct {
		Spaces []namedResource `json:"spaces"`
	}
	path := "/api/v2/team/" + url.PathEscape(teamID) + "/space"
	if err := c.get(ctx, token, path, &resp); err != nil {
		return nil, err
	}
	spaces := make([]Space, 0, len(resp.Spaces))
	for _, s := range resp.Spaces {
		spaces = append(spaces, Space{ID: s.ID, Name: s.Name})
	}
	return spaces, nil
}

// GetLists returns both a space's folderless lists and the lists inside its
// folders. Folder failures are tolerated so one broken folder does not hide
// the rest of the space.
func (c *client) GetLists(ctx context.Context, token string, spaceID string) ([]List, error) {
	if strings.TrimSpace(spaceID) == "" {
		return nil, fmt.Errorf("missing space_id")
	}

	var listsResp struct {
		Lists []namedResource `json:"lists"`
	}
	path := "/api/v2/space/" + url.PathEscape(spaceID) + "/list"
	if err := c.get(ctx, token, path, &listsResp); err != nil {
		return nil, err
	}

	lists := make([]List, 0, len(listsResp.Lists))
	for _, l := range listsResp.Lists {
		lists = append(lists, List{ID: l.ID, Name: l.Name})
	}

	var foldersResp struct {
		Folders []struct {
			ID    string          `json:"id"`
			Lists []namedResource `json:"lists"`
		} `json:"folders"`
	}
	folderPath := "/api/v2/space/" + url.PathEscape(spaceID) + "/folder"
	if err := c.get(ctx, token, folderPath, &foldersResp); err != nil {
		c.log.Debug("ClickUp folder listing failed", "space_id", spaceID, "error", err.Error())
		return lists, nil
	}

	for _, folder := range foldersResp.Folders {
		folderLists := folder.Lists
		if len(folderLists) == 0 && strings.TrimSpace(folder.ID) != "" {
			var folderListsResp struct {
				Lists []namedResource `json:"lists"`
			}
			flPath := "/api/v2/folder/" + url.PathEscape(folder.ID) + "/list"
			if err := c.get(ctx, token, flPath, &folderListsResp); err != nil {
				c.log.Debug("ClickUp folder lists fetch failed", "folder_id", folder.ID, "error", err.Error())
				continue
			}
			folderLists = folderListsResp.Lists
		}
		for _, l := range folderLists {
			lists = append(lists, List{ID: l.ID, Name: l.Name})
		}
	}
	return lists, nil
}

func (c *client) GetTasks(ctx context.Context, token string, listID string) ([]Task, error) {
	if strings.TrimSpace(listID) == "" {
		return nil, fmt.Errorf("missing list_id")
	}
	var resp struct {
		Tasks []taskPayload `json:"tasks"`
	}
	path := "/api/v2/list/" + url.PathEscape(listID) + "/task?include_closed=true"
	if err := c.get(ctx, token, path, &resp); err != nil {
		return nil, err
	}
	tasks := make([]Task, 0, len(resp.Tasks))
	for i := range resp.Tasks {
		tasks = append(tasks, resp.Tasks[i].toTask())
	}
	return tasks, nil
}

func (c *client) GetTask(ctx context.Context, token string, taskID string) (*Task, error) {
	if strings.TrimSpace(taskID) == "" {
		return nil, fmt.Errorf("missing task_id")
	}
	var payload taskPayload
	path := "/api/v2/task/" + url.PathEscape(taskID)
	if err := c.get(ctx, token, path, &payload); err != nil {
		return nil, err
	}
	task := payload.toTask()
	return &task, nil
}

func (c *client) GetComments(ctx context.Context, token string, taskID string) ([]string, error) {
	if strings.TrimSpace(taskID) == "" {
		return nil, fmt.Errorf("missing task_id")
	}
	var resp struct {
		Comments []struct {
			CommentText string `json:"comment_text"`
		} `json:"comments"`
	}
	path := "/api/v2/task/" + url.PathEscape(taskID) + "/comment"
	if err := c.get(ctx, token, path, &resp); err != nil {
		return nil, err
	}
	comments := make([]string, 0, len(resp.Comments))
	for _, cm := range resp.Comments {
		if strings.TrimSpace(cm.CommentText) != "" {
			comments = append(comments, cm.CommentText)
		}
	}
	return comments, nil
}
