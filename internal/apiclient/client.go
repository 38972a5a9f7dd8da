// Package apiclient はフロントエンド層からto-doリストAPIを呼び出すHTTPクライアントを提供する。
package apiclient

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"
)

// maxErrorBodySize はエラーレスポンスとして読み取る本文の上限。
const maxErrorBodySize = 64 << 10

// Error はAPIが2xx以外で返したエラーレスポンス。
type Error struct {
	StatusCode int
	Code       string `json:"code"`
	Message    string `json:"message"`
	Category   string `json:"category"`
	Action     string `json:"action"`
}

// Error はerrorインターフェースを実装する。
func (e *Error) Error() string {
	if e.Code == "" {
		return fmt.Sprintf("APIがステータス %d を返しました", e.StatusCode)
	}
	return fmt.Sprintf("APIがステータス %d を返しました: [%s] %s", e.StatusCode, e.Code, e.Message)
}

// User はユーザー情報。
type User struct {
	ID       string `json:"id"`
	Username string `json:"username"`
	Email    string `json:"email"`
	FullName string `json:"full_name"`
}

// LoginResult はログイン結果。TokenはAuthorizationヘッダーに使うbearerトークン。
type LoginResult struct {
	Token     string    `json:"token"`
	ExpiresAt time.Time `json:"expires_at"`
	User      User      `json:"user"`
}

// List はto-doリスト。Roleは呼び出しユーザーのロール。
type List struct {
	ID          string    `json:"id"`
	Name        string    `json:"name"`
	Description string    `json:"description"`
	OwnerID     string    `json:"owner_id"`
	Role        string    `json:"role"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// SharedList は自分と共有されているリスト。
type SharedList struct {
	ListID        string    `json:"list_id"`
	Name          string    `json:"name"`
	Description   string    `json:"description"`
	OwnerID       string    `json:"owner_id"`
	OwnerUsername string    `json:"owner_username"`
	Role          string    `json:"role"`
	SharedAt      time.Time `json:"shared_at"`
}

// Task はタスク。
type Task struct {
	ID             string     `json:"id"`
	ListID         string     `json:"list_id"`
	Name           string     `json:"name"`
	Description    string     `json:"description"`
	DueDate        *time.Time `json:"due_date"`
	IsCompleted    bool       `json:"is_completed"`
	OwnerID        string     `json:"owner_id"`
	AssignedUserID string     `json:"assigned_user_id"`
}

// Comment はタスクへのコメント。
type Comment struct {
	ID        string    `json:"id"`
	TaskID    string    `json:"task_id"`
	UserID    string    `json:"user_id"`
	UserName  string    `json:"user_name"`
	Text      string    `json:"text"`
	CreatedAt time.Time `json:"created_at"`
}

// Client はto-doリストAPIのクライアント。
// Loginに成功するとトークンを保持し、以降のリクエストにbearerトークンとして付与する。
type Client struct {
	httpClient *http.Client
	logger     *slog.Logger
	baseURL    string

	mu    sync.RWMutex
	token string
}

// NewClient はClientの新しいインスタンスを生成する。
// baseURLはAPIサーバーのオリジン（例: http://localhost:8080）。
func NewClient(baseURL string, httpClient *http.Client, logger *slog.Logger) *Client {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 10 * time.Second}
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Client{
		httpClient: httpClient,
		logger:     logger,
		baseURL:    strings.TrimRight(baseURL, "/"),
	}
}

// SetToken はbearerトークンを設定する。
func (c *Client) SetToken(token string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.token = token
}

// Token は現在のbearerトークンを返す。
func (c *Client) Token() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.token
}

// Login はユーザー名とパスワードでログインし、得られたトークンを保持する。
func (c *Client) Login(ctx context.Context, username, password string) (*LoginResult, error) {
	var out LoginResult
	body := map[string]string{"username": username, "password": password}
	if err := c.do(ctx, http.MethodPost, "/auth/login", body, &out); err != nil {
		return nil, err
	}
	c.SetToken(out.Token)
	return &out, nil
}

// Me はログイン中のユーザーを返す。
func (c *Client) Me(ctx context.Context) (*User, error) {
	var out User
	if err := c.do(ctx, http.MethodGet, "/auth/me", nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// ListLists は自分が所有するリストを返す。
func (c *Client) ListLists(ctx context.Context) ([]List, error) {
	var out []List
	if err := c.do(ctx, http.MethodGet, "/api/lists", nil, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// CreateList はリストを作成する。
func (c *Client) CreateList(ctx context.Context, name, description string) (*List, error) {
	var out List
	body := map[string]string{"name": name, "description": description}
	if err := c.do(ctx, http.MethodPost, "/api/lists", body, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// ListTasks はリストのタスク一覧を返す。
func (c *Client) ListTasks(ctx context.Context, listID string) ([]Task, error) {
	var out []Task
	if err := c.do(ctx, http.MethodGet, "/api/lists/"+url.PathEscape(listID)+"/tasks", nil, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// ShareList はリストをtargetUserIDとrole（Editor または Viewer）で共有する。
func (c *Client) ShareList(ctx context.Context, listID, targetUserID, role string) error {
	body := map[string]string{"target_user_id": targetUserID, "role": role}
	return c.do(ctx, http.MethodPost, "/api/lists/"+url.PathEscape(listID)+"/shares", body, nil)
}

// SharedWithMe は自分と共有されているリストを返す。
func (c *Client) SharedWithMe(ctx context.Context) ([]SharedList, error) {
	var out []SharedList
	if err := c.do(ctx, http.MethodGet, "/api/shared-with-me", nil, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// UpdateTaskStatus は担当タスクの完了状態を更新する。
func (c *Client) UpdateTaskStatus(ctx context.Context, taskID string, isCompleted bool) error {
	body := map[string]bool{"is_completed": isCompleted}
	return c.do(ctx, http.MethodPut, "/api/tasks/"+url.PathEscape(taskID)+"/status", body, nil)
}

// ReassignTask は担当タスクを別のユーザーに引き継ぐ。
func (c *Client) ReassignTask(ctx context.Context, taskID, newUserID string) error {
	body := map[string]string{"user_id": newUserID}
	return c.do(ctx, http.MethodPut, "/api/tasks/"+url.PathEscape(taskID)+"/assignee", body, nil)
}

// AddComment はタスクにコメントを追加する。
func (c *Client) AddComment(ctx context.Context, taskID, text string) (*Comment, error) {
	var out Comment
	body := map[string]string{"text": text}
	if err := c.do(ctx, http.MethodPost, "/api/tasks/"+url.PathEscape(taskID)+"/comments", body, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// do はリクエストを送信し、2xxの場合はレスポンスをoutにデコードする。
// outがnilの場合は本文を読み捨てる。
func (c *Client) do(ctx context.Context, method, path string, in, out any) error {
	var body io.Reader
	if in != nil {
		b, err := json.Marshal(in)
		if err != nil {
			return fmt.Errorf("リクエストJSONの生成に失敗しました: %w", err)
		}
		body = bytes.NewReader(b)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return fmt.Errorf("HTTPリクエストの作成に失敗しました: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if token := c.Token(); token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		c.logger.Error("APIの呼び出しに失敗しました",
			slog.String("method", method),
			slog.String("path", path),
			slog.String("error", err.Error()),
		)
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		apiErr := &Error{StatusCode: resp.StatusCode}
		raw, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBodySize))
		if len(raw) > 0 {
			if err := json.Unmarshal(raw, apiErr); err != nil {
				apiErr.Message = strings.TrimSpace(string(raw))
			}
		}
		c.logger.Warn("APIがエラーステータスを返しました",
			slog.String("method", method),
			slog.String("path", path),
			slog.Int("http_status", resp.StatusCode),
			slog.String("code", apiErr.Code),
		)
		return apiErr
	}

	if out == nil || resp.StatusCode == http.StatusNoContent {
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("レスポンスJSONのパースに失敗しました: %w", err)
	}
	return nil
}
