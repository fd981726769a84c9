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

	"github.com/sony/gobreaker"

	"smartnotes/internal/apperr"
	"smartnotes/internal/config"
	"smartnotes/internal/logging"
	"smartnotes/internal/types"
)

const (
	defaultTimeout   = 10 * time.Second
	defaultAITimeout = 60 * time.Second
)

// Client talks to the notes HTTP API.
type Client struct {
	baseURL   string
	mu        sync.RWMutex
	token     string
	http      *http.Client
	aiTimeout time.Duration
	breaker   *gobreaker.CircuitBreaker
	logger    logging.Logger
}

func New(cfg config.Config, logger logging.Logger) *Client {
	if logger == nil {
		logger = logging.Nop()
	}
	c := &Client{
		baseURL:   cfg.APIBaseURL(),
		http:      &http.Client{Timeout: cfg.Timeout()},
		aiTimeout: cfg.AITimeout(),
		logger:    logger,
	}
	c.breaker = newBreaker(cfg.BreakerFailures(), cfg.BreakerTimeout(), logger)
	return c
}

func NewWithBaseURL(baseURL, token string) *Client {
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		token:   token,
		http: &http.Client{
			Timeout: defaultTimeout,
		},
		aiTimeout: defaultAITimeout,
		logger:    logging.Nop(),
	}
}

func (c *Client) SetToken(token string) {
	c.mu.Lock()
	c.token = strings.TrimSpace(token)
	c.mu.Unlock()
}

func (c *Client) Token() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.token
}

func (c *Client) Close() error {
	c.http.CloseIdleConnections()
	return nil
}

func (c *Client) Register(ctx context.Context, reg types.Registration) (*types.User, error) {
	email := strings.TrimSpace(reg.Email)
	req := registerRequest{
		Username: email,
		Email:    email,
		Name:     strings.TrimSpace(reg.Name),
		Password: reg.Password,
	}
	var resp userDTO
	if err := c.doJSON(ctx, http.MethodPost, "/auth/register", req, false, &resp); err != nil {
		return nil, err
	}
	user := resp.toUser()
	if user.Name == "" || user.Name == email {
		user.Name = req.Name
	}
	return user, nil
}

func (c *Client) Login(ctx context.Context, creds types.Credentials) (*types.LoginResult, error) {
	req := loginRequest{
		Username: strings.TrimSpace(creds.Email),
		Password: creds.Password,
	}
	var resp types.LoginResult
	err := c.doJSON(ctx, http.MethodPost, "/auth/login-json", req, false, &resp)
	if err != nil {
		if apperr.Is(err, apperr.KindNotAuthenticated) {
			return nil, apperr.InvalidCredentials("login")
		}
		return nil, err
	}
	if strings.TrimSpace(resp.Token) == "" {
		return nil, apperr.RemoteRejected("login", http.StatusOK, "server returned no access token")
	}
	return &resp, nil
}

func (c *Client) Profile(ctx context.Context) (*types.User, error) {
	var resp userDTO
	if err := c.doJSON(ctx, http.MethodGet, "/api/users/me", nil, true, &resp); err != nil {
		return nil, err
	}
	return resp.toUser(), nil
}

func (c *Client) UpdateProfile(ctx context.Context, update types.ProfileUpdate) (*types.User, error) {
	req := updateProfileRequest{
		Name:     strings.TrimSpace(update.Name),
		Email:    strings.TrimSpace(update.Email),
		Avatar:   update.Avatar,
		Password: update.Password,
	}
	var resp userDTO
	if err := c.doJSON(ctx, http.MethodPut, "/api/users/me", req, true, &resp); err != nil {
		return nil, err
	}
	user := resp.toUser()
	if user.Name == "" {
		user.Name = req.Name
	}
	if user.Email == "" {
		user.Email = req.Email
	}
	return user, nil
}

func (c *Client) ListFolders(ctx context.Context) ([]*types.Folder, error) {
	var resp []folderDTO
	if err := c.doJSON(ctx, http.MethodGet, "/api/folders/", nil, true, &resp); err != nil {
		return nil, err
	}
	folders := make([]*types.Folder, 0, len(resp))
	for _, item := range resp {
		folders = append(folders, item.toFolder())
	}
	return folders, nil
}

func (c *Client) CreateFolder(ctx context.Context, name string) (*types.Folder, error) {
	var resp folderDTO
	req := createFolderRequest{Name: strings.TrimSpace(name)}
	if err := c.doJSON(ctx, http.MethodPost, "/api/folders/", req, true, &resp); err != nil {
		return nil, err
	}
	folder := resp.toFolder()
	if folder.Name == "" {
		folder.Name = req.Name
	}
	return folder, nil
}

func (c *Client) DeleteFolder(ctx context.Context, id string) error {
	return c.doJSON(ctx, http.MethodDelete, "/api/folders/"+url.PathEscape(id), nil, true, nil)
}

func (c *Client) ListNotes(ctx context.Context, folderID string) ([]*types.Note, error) {
	var resp []noteDTO
	path := fmt.Sprintf("/api/folders/%s/notes/", url.PathEscape(folderID))
	if err := c.doJSON(ctx, http.MethodGet, path, nil, true, &resp); err != nil {
		return nil, err
	}
	notes := make([]*types.Note, 0, len(resp))
	for _, item := range resp {
		notes = append(notes, item.toNote(folderID))
	}
	return notes, nil
}

func (c *Client) CreateNote(ctx context.Context, folderID string, draft types.NoteDraft) (*types.Note, error) {
	if draft.OriginalText == "" {
		draft.OriginalText = draft.Content
	}
	var resp noteDTO
	path := fmt.Sprintf("/api/folders/%s/notes/", url.PathEscape(folderID))
	if err := c.doJSON(ctx, http.MethodPost, path, draft, true, &resp); err != nil {
		return nil, err
	}
	return resp.toNote(folderID), nil
}

func (c *Client) UpdateNote(ctx context.Context, id string, patch types.NotePatch) (*types.Note, error) {
	var resp noteDTO
	if err := c.doJSON(ctx, http.MethodPut, "/api/notes/"+url.PathEscape(id), patch, true, &resp); err != nil {
		return nil, err
	}
	return resp.toNote(""), nil
}

func (c *Client) DeleteNote(ctx context.Context, id string) error {
	return c.doJSON(ctx, http.MethodDelete, "/api/notes/"+url.PathEscape(id), nil, true, nil)
}

func (c *Client) doJSON(ctx context.Context, method, path string, body any, requireAuth bool, out any) error {
	return c.doJSONWithClient(ctx, method, path, body, requireAuth, out, c.http)
}

func (c *Client) doJSONWithTimeout(ctx context.Context, method, path string, body any, requireAuth bool, out any, timeout time.Duration) error {
	client := c.http
	if timeout > 0 {
		client = &http.Client{
			Timeout:   timeout,
			Transport: c.http.Transport,
		}
	}
	return c.doJSONWithClient(ctx, method, path, body, requireAuth, out, client)
}

func (c *Client) doJSONWithClient(ctx context.Context, method, path string, body any, requireAuth bool, out any, httpClient *http.Client) error {
	var reader io.Reader
	if body != nil {
		buf, err := json.Marshal(body)
		if err != nil {
			return err
		}
		reader = bytes.NewReader(buf)
	}
	req, err := c.newRequest(ctx, method, path, reader, requireAuth)
	if err != nil {
		return err
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	return c.do(req, out, httpClient)
}

func (c *Client) newRequest(ctx context.Context, method, path string, body io.Reader, requireAuth bool) (*http.Request, error) {
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Accept", "application/json")
	if requireAuth {
		token := c.Token()
		if token == "" {
			return nil, apperr.NotAuthenticated(operation(method, path))
		}
		req.Header.Set("Authorization", "Bearer "+token)
	}
	return req, nil
}

func (c *Client) do(req *http.Request, out any, httpClient *http.Client) error {
	op := operation(req.Method, req.URL.Path)
	if httpClient == nil {
		httpClient = http.DefaultClient
	}
	start := time.Now()
	resp, err := httpClient.Do(req)
	if err != nil {
		c.log().Debug("api_request_failed", logging.F("op", op), logging.Err(err))
		return apperr.NetworkUnavailable(op, err)
	}
	defer resp.Body.Close()
	c.log().Debug("api_request",
		logging.F("op", op),
		logging.F("status", resp.StatusCode),
		logging.F("duration", time.Since(start)),
	)

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return decodeAPIError(op, resp)
	}
	if out == nil || resp.StatusCode == http.StatusNoContent {
		return nil
	}
	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return apperr.NetworkUnavailable(op, err)
	}
	if len(bytes.TrimSpace(data)) == 0 {
		return nil
	}
	if err := json.Unmarshal(data, out); err != nil {
		return apperr.RemoteRejected(op, resp.StatusCode, "malformed response from server")
	}
	return nil
}

func (c *Client) log() logging.Logger {
	if c.logger == nil {
		return logging.Nop()
	}
	return c.logger
}

func operation(method, path string) string {
	return strings.ToLower(method) + " " + path
}

func decodeAPIError(op string, resp *http.Response) error {
	type errorPayload struct {
		Detail  json.RawMessage `json:"detail"`
		Error   string          `json:"error"`
		Message string          `json:"message"`
	}
	var payload errorPayload
	data, _ := io.ReadAll(io.LimitReader(resp.Body, 64<<10))
	_ = json.Unmarshal(data, &payload)
	reason := detailText(payload.Detail)
	if reason == "" {
		reason = strings.TrimSpace(payload.Error)
	}
	if reason == "" {
		reason = strings.TrimSpace(payload.Message)
	}
	if reason == "" && resp.StatusCode != http.StatusUnauthorized && resp.StatusCode != http.StatusNotFound {
		reason = fmt.Sprintf("HTTP error! status: %d", resp.StatusCode)
	}
	return apperr.FromStatus(op, resp.StatusCode, reason)
}

// detailText flattens a FastAPI detail, which is either a string or a list of
// validation entries carrying a "msg".
func detailText(raw json.RawMessage) string {
	if len(raw) == 0 {
		return ""
	}
	var text string
	if err := json.Unmarshal(raw, &text); err == nil {
		return strings.TrimSpace(text)
	}
	var items []struct {
		Msg string `json:"msg"`
		Loc []any  `json:"loc"`
	}
	if err := json.Unmarshal(raw, &items); err == nil {
		parts := make([]string, 0, len(items))
		for _, item := range items {
			if msg := strings.TrimSpace(item.Msg); msg != "" {
				parts = append(parts, msg)
			}
		}
		return strings.Join(parts, "; ")
	}
	return ""
}

// IsBreakerOpen reports whether err came from a tripped AI circuit breaker.
func IsBreakerOpen(err error) bool {
	return errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests)
}
