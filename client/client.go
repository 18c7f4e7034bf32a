// Package client talks to the project API and keeps a local mirror of what it
// sees. When the API cannot be reached, or answers with a server error, calls
// are served from the mirror instead.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/cipherstudio/ide-backend/internal/projects/domain"
)

const DefaultBaseURL = "http://localhost:5000/api"

// ErrUnavailable marks a request that never got an answer from the API.
var ErrUnavailable = errors.New("project api unavailable")

// APIError is a non-2xx answer that is not a 400 or 404.
type APIError struct {
	StatusCode int
	Message    string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("project api: %d %s", e.StatusCode, e.Message)
}

type Client struct {
	baseURL   string
	http      *http.Client
	local     LocalStorage
	logger    *zap.Logger
	keyPrefix string
	now       func() time.Time
	newID     func() string
	starter   map[string]string

	// mu serializes read-modify-write cycles on the local mirror.
	mu sync.Mutex
}

type Option func(*Client)

func WithHTTPClient(hc *http.Client) Option { return func(c *Client) { c.http = hc } }

func WithLocalStorage(s LocalStorage) Option { return func(c *Client) { c.local = s } }

func WithLogger(l *zap.Logger) Option { return func(c *Client) { c.logger = l } }

// WithKeyPrefix namespaces the mirror keys, e.g. "cipherstudio-".
func WithKeyPrefix(p string) Option { return func(c *Client) { c.keyPrefix = p } }

func WithClock(now func() time.Time) Option { return func(c *Client) { c.now = now } }

// WithStarterFiles seeds projects created without files, e.g. with
// preview.StarterFiles().
func WithStarterFiles(files map[string]string) Option {
	return func(c *Client) { c.starter = domain.CloneFiles(files) }
}

func New(baseURL string, opts ...Option) *Client {
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	c := &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		http:    &http.Client{Timeout: 30 * time.Second},
		logger:  zap.NewNop(),
		now:     time.Now,
		newID:   uuid.NewString,
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.local == nil {
		c.local = NewMemoryStorage()
	}
	return c
}

func (c *Client) ListProjects(ctx context.Context) ([]domain.Summary, error) {
	var items []domain.Summary
	err := c.do(ctx, http.MethodGet, "/projects", nil, &items)
	if err == nil {
		c.mirror("list", func() error { return c.writeList(items) })
		return items, nil
	}
	if !c.offline("list", err) {
		return nil, err
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	return c.readList()
}

func (c *Client) GetProject(ctx context.Context, id string) (*domain.Project, error) {
	var p domain.Project
	err := c.do(ctx, http.MethodGet, projectPath(id), nil, &p)
	if err == nil {
		c.mirror("get", func() error { return c.storeProject(&p) })
		return &p, nil
	}
	if !c.offline("get", err) {
		return nil, err
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	return c.loadProject(id)
}

type createBody struct {
	Name     string            `json:"name"`
	Files    map[string]string `json:"files"`
	Metadata domain.Metadata   `json:"metadata"`
}

func (c *Client) CreateProject(ctx context.Context, name string, files map[string]string) (*domain.Project, error) {
	if len(files) == 0 && c.starter != nil {
		files = c.starter
	}
	body := createBody{Name: name, Files: domain.CloneFiles(files), Metadata: domain.Metadata{}.Normalize()}

	var p domain.Project
	err := c.do(ctx, http.MethodPost, "/projects", body, &p)
	if err == nil {
		c.mirror("create", func() error { return c.storeProject(&p) })
		return &p, nil
	}
	if !c.offline("create", err) {
		return nil, err
	}

	if strings.TrimSpace(name) == "" {
		return nil, domain.NewValidationError("Project name is required")
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	created := domain.NewProject(c.newID(), domain.CreateInput{Name: name, Files: files}, c.now())
	if err := c.storeProject(created); err != nil {
		return nil, err
	}
	return created, nil
}

type updateBody struct {
	Name     *string            `json:"name,omitempty"`
	Files    *map[string]string `json:"files,omitempty"`
	Metadata *domain.Metadata   `json:"metadata,omitempty"`
}

func (c *Client) UpdateProject(ctx context.Context, id string, in domain.UpdateInput) (*domain.Project, error) {
	var p domain.Project
	err := c.do(ctx, http.MethodPut, projectPath(id), updateBody(in), &p)
	if err == nil {
		c.mirror("update", func() error { return c.storeProject(&p) })
		return &p, nil
	}
	if !c.offline("update", err) {
		return nil, err
	}

	if in.Name != nil && strings.TrimSpace(*in.Name) == "" {
		in.Name = nil
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	cur, err := c.loadProject(id)
	if err != nil {
		return nil, err
	}
	cur.Apply(in, c.now())
	if err := c.storeProject(cur); err != nil {
		return nil, err
	}
	return cur, nil
}

func (c *Client) SaveProjectFiles(ctx context.Context, id string, files map[string]string) error {
	if files == nil {
		return domain.NewValidationError("Files data is required")
	}

	var resp struct {
		Project *domain.Project `json:"project"`
	}
	err := c.do(ctx, http.MethodPost, projectPath(id)+"/files", map[string]any{"files": files}, &resp)
	if err == nil {
		c.mirror("save_files", func() error {
			if resp.Project != nil {
				return c.storeProject(resp.Project)
			}
			return c.writeFiles(id, files)
		})
		return nil
	}
	if !c.offline("save_files", err) {
		return err
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if err := c.writeFiles(id, files); err != nil {
		return err
	}
	items, err := c.readList()
	if err != nil {
		return err
	}
	for i := range items {
		if items[i].ID == id {
			items[i].UpdatedAt = domain.Touch(items[i].UpdatedAt, c.now())
			return c.writeList(items)
		}
	}
	return nil
}

func (c *Client) DeleteProject(ctx context.Context, id string) error {
	err := c.do(ctx, http.MethodDelete, projectPath(id), nil, nil)
	if err != nil && !c.offline("delete", err) {
		return err
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	return c.forget(id)
}

// ExportFiles returns the mirrored file map of a project as JSON.
func (c *Client) ExportFiles(id string) ([]byte, error) {
	raw, ok, err := c.local.GetItem(c.filesKey(id))
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, domain.ErrNotFound
	}
	return []byte(raw), nil
}

// ImportFiles replaces the mirrored file map of a project with data, which
// must be a JSON object of path to contents.
func (c *Client) ImportFiles(id string, data []byte) error {
	var files map[string]string
	if err := json.Unmarshal(data, &files); err != nil || files == nil {
		return domain.NewValidationError("Invalid project file")
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	return c.writeFiles(id, files)
}

func (c *Client) do(ctx context.Context, method, path string, body, out any) error {
	var rdr io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			return err
		}
		rdr = bytes.NewReader(b)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, rdr)
	if err != nil {
		return err
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		if out == nil {
			return nil
		}
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			return fmt.Errorf("decode response: %w", err)
		}
		return nil
	}

	var e struct {
		Error string `json:"error"`
	}
	_ = json.NewDecoder(resp.Body).Decode(&e)

	switch {
	case resp.StatusCode == http.StatusNotFound:
		return domain.ErrNotFound
	case resp.StatusCode == http.StatusBadRequest:
		return domain.NewValidationError(e.Error)
	default:
		return &APIError{StatusCode: resp.StatusCode, Message: e.Error}
	}
}

// offline reports whether err should be answered from the local mirror.
func (c *Client) offline(op string, err error) bool {
	var apiErr *APIError
	fallback := errors.Is(err, ErrUnavailable) ||
		(errors.As(err, &apiErr) && apiErr.StatusCode >= http.StatusInternalServerError)
	if fallback {
		c.logger.Warn("project api failed, using local storage", zap.String("op", op), zap.Error(err))
	}
	return fallback
}

func (c *Client) mirror(op string, fn func() error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if err := fn(); err != nil {
		c.logger.Warn("local mirror write failed", zap.String("op", op), zap.Error(err))
	}
}

func (c *Client) listKey() string           { return c.keyPrefix + "projects" }
func (c *Client) filesKey(id string) string { return c.keyPrefix + "project-" + id }

func (c *Client) readList() ([]domain.Summary, error) {
	raw, ok, err := c.local.GetItem(c.listKey())
	if err != nil {
		return nil, err
	}
	items := []domain.Summary{}
	if !ok || raw == "" {
		return items, nil
	}
	if err := json.Unmarshal([]byte(raw), &items); err != nil {
		return nil, fmt.Errorf("decode local project list: %w", err)
	}
	return items, nil
}

func (c *Client) writeList(items []domain.Summary) error {
	if items == nil {
		items = []domain.Summary{}
	}
	b, err := json.Marshal(items)
	if err != nil {
		return err
	}
	return c.local.SetItem(c.listKey(), string(b))
}

func (c *Client) writeFiles(id string, files map[string]string) error {
	b, err := json.Marshal(files)
	if err != nil {
		return err
	}
	return c.local.SetItem(c.filesKey(id), string(b))
}

// storeProject upserts the summary and the file map of p.
func (c *Client) storeProject(p *domain.Project) error {
	items, err := c.readList()
	if err != nil {
		return err
	}
	replaced := false
	for i := range items {
		if items[i].ID == p.ID {
			items[i] = p.Summary()
			replaced = true
			break
		}
	}
	if !replaced {
		items = append(items, p.Summary())
	}
	if err := c.writeList(items); err != nil {
		return err
	}
	return c.writeFiles(p.ID, p.Files)
}

func (c *Client) loadProject(id string) (*domain.Project, error) {
	raw, ok, err := c.local.GetItem(c.filesKey(id))
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, domain.ErrNotFound
	}
	var files map[string]string
	if err := json.Unmarshal([]byte(raw), &files); err != nil {
		return nil, fmt.Errorf("decode local files: %w", err)
	}

	items, err := c.readList()
	if err != nil {
		return nil, err
	}
	for _, s := range items {
		if s.ID == id {
			return &domain.Project{
				ID:        s.ID,
				Name:      s.Name,
				Files:     domain.CloneFiles(files),
				CreatedAt: s.CreatedAt,
				UpdatedAt: s.UpdatedAt,
				Metadata:  s.Metadata.Normalize(),
			}, nil
		}
	}
	return nil, domain.ErrNotFound
}

func (c *Client) forget(id string) error {
	items, err := c.readList()
	if err != nil {
		return err
	}
	kept := items[:0]
	for _, s := range items {
		if s.ID != id {
			kept = append(kept, s)
		}
	}
	if err := c.writeList(kept); err != nil {
		return err
	}
	return c.local.RemoveItem(c.filesKey(id))
}

func projectPath(id string) string {
	return "/projects/" + url.PathEscape(id)
}
