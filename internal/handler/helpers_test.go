package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/hitoshi/todolist/internal/auth"
	"github.com/hitoshi/todolist/internal/comment"
	"github.com/hitoshi/todolist/internal/middleware"
	"github.com/hitoshi/todolist/internal/model"
	"github.com/hitoshi/todolist/internal/permission"
	"github.com/hitoshi/todolist/internal/repository/repotest"
	"github.com/hitoshi/todolist/internal/security"
	"github.com/hitoshi/todolist/internal/sharing"
	"github.com/hitoshi/todolist/internal/tag"
	"github.com/hitoshi/todolist/internal/task"
	"github.com/hitoshi/todolist/internal/todolist"
	"github.com/hitoshi/todolist/internal/user"
	"golang.org/x/crypto/bcrypt"
)

// --- テストヘルパー ---

// withUserID はテスト用にリクエストコンテキストにユーザーIDを注入するヘルパー。
func withUserID(r *http.Request, userID string) *http.Request {
	ctx := middleware.ContextWithUserID(r.Context(), userID)
	return r.WithContext(ctx)
}

// withChiURLParams はテスト用にchiのURLパラメータを注入するヘルパー。
// kvはキーと値を交互に並べる。
func withChiURLParams(r *http.Request, kv ...string) *http.Request {
	rctx := chi.NewRouteContext()
	for i := 0; i+1 < len(kv); i += 2 {
		rctx.URLParams.Add(kv[i], kv[i+1])
	}
	ctx := context.WithValue(r.Context(), chi.RouteCtxKey, rctx)
	return r.WithContext(ctx)
}

// jsonRequest はJSONボディ付きのリクエストを生成する。
func jsonRequest(method, target, body string) *http.Request {
	req := httptest.NewRequest(method, target, bytes.NewBufferString(body))
	req.Header.Set("Content-Type", "application/json")
	return req
}

// parseAPIErrorResponse はレスポンスボディからAPIErrorレスポンスをパースするヘルパー。
func parseAPIErrorResponse(t *testing.T, w *httptest.ResponseRecorder) map[string]string {
	t.Helper()
	var result map[string]string
	if err := json.NewDecoder(w.Body).Decode(&result); err != nil {
		t.Fatalf("failed to decode error response: %v", err)
	}
	return result
}

// decodeBody はレスポンスボディをvにデコードする。
func decodeBody(t *testing.T, w *httptest.ResponseRecorder, v any) {
	t.Helper()
	if err := json.NewDecoder(w.Body).Decode(v); err != nil {
		t.Fatalf("failed to decode response: %v (body=%s)", err, w.Body.String())
	}
}

// assertStatus はステータスコードを検証する。
func assertStatus(t *testing.T, w *httptest.ResponseRecorder, want int) {
	t.Helper()
	if w.Code != want {
		t.Fatalf("status = %d, want %d (body=%s)", w.Code, want, w.Body.String())
	}
}

// assertErrorCode はエラーレスポンスのコードを検証する。
func assertErrorCode(t *testing.T, w *httptest.ResponseRecorder, status int, code string) {
	t.Helper()
	assertStatus(t, w, status)
	body := parseAPIErrorResponse(t, w)
	if body["code"] != code {
		t.Errorf("code = %q, want %q", body["code"], code)
	}
}

// --- メモリストアで組み立てたサービス群 ---

// testEnv はメモリストア上に実サービスを組み立てたテスト環境。
type testEnv struct {
	store    *repotest.Store
	checker  *permission.Checker
	lists    *todolist.Service
	sharing  *sharing.Service
	tasks    *task.Service
	comments *comment.Service
	tags     *tag.Service
	users    *user.Service
	auth     *auth.Service
}

func newTestEnv() *testEnv {
	s := repotest.New()
	checker := permission.NewChecker(s.Lists(), s.Shares(), s.Tasks())
	sanitizer := security.NewTextSanitizer()
	users := user.NewService(s.Users(), s.Sessions(), bcrypt.MinCost)
	return &testEnv{
		store:    s,
		checker:  checker,
		lists:    todolist.NewService(s.Lists(), checker, sanitizer),
		sharing:  sharing.NewService(s.Lists(), s.Shares(), s.Users(), checker),
		tasks:    task.NewService(s.Lists(), s.Tasks(), s.Users(), checker, sanitizer),
		comments: comment.NewService(s.Comments(), s.Tasks(), checker, sanitizer),
		tags:     tag.NewService(s.Tags(), s.Tasks(), checker),
		users:    users,
		auth:     auth.NewService(s.Users(), s.Sessions(), auth.ServiceConfig{SessionMaxAge: 3600}),
	}
}

// router はテスト環境のサービスでNewRouterを組み立てる。
func (e *testEnv) router() http.Handler {
	return NewRouter(&RouterDeps{
		SessionFinder:     e.store.Sessions(),
		CORSAllowedOrigin: "http://localhost:3000",
		RateLimiter:       middleware.NewRateLimiter(middleware.DefaultRateLimiterConfig()),
		AuthService:       e.auth,
		AuthConfig:        AuthHandlerConfig{SessionMaxAge: 3600},
		UserService:       e.users,
		UserLookup:        e.users,
		Registration:      e.users,
		ListService:       e.lists,
		SharingService:    e.sharing,
		TaskService:       e.tasks,
		CommentService:    e.comments,
		TagService:        e.tags,
	})
}

// addSession はユーザーのセッションを直接登録し、bearerトークンを返す。
func (e *testEnv) addSession(t *testing.T, userID string) string {
	t.Helper()
	token := "token-" + userID
	err := e.store.Sessions().Create(context.Background(), &model.Session{
		ID:        token,
		UserID:    userID,
		ExpiresAt: time.Now().Add(time.Hour),
		CreatedAt: time.Now(),
	})
	if err != nil {
		t.Fatalf("failed to create session: %v", err)
	}
	return token
}

// do はbearerトークン付きでルーターにリクエストを送る。
func do(h http.Handler, token, method, target, body string) *httptest.ResponseRecorder {
	var req *http.Request
	if body == "" {
		req = httptest.NewRequest(method, target, nil)
	} else {
		req = jsonRequest(method, target, body)
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	req.RemoteAddr = "192.0.2.1:1234"
	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)
	return w
}

// permissionRole はユーザーのリストに対する実効ロールを返す。
func permissionRole(env *testEnv, listID, userID string) (model.Role, error) {
	return env.checker.ResolveRole(context.Background(), listID, userID)
}
