package handler

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/hitoshi/todolist/internal/middleware"
)

// HealthChecker はデータベースの疎通確認に使う。*sql.DBが実装する。
type HealthChecker interface {
	PingContext(ctx context.Context) error
}

// RouterDeps はNewRouterに必要な依存関係をまとめた構造体。
type RouterDeps struct {
	// ミドルウェア依存
	Logger            *slog.Logger
	StatusRecorder    middleware.HTTPStatusRecorder
	SessionFinder     middleware.SessionFinder
	CSRFConfig        middleware.CSRFConfig
	CORSAllowedOrigin string
	RateLimiter       *middleware.RateLimiter

	// 運用エンドポイント
	HealthChecker  HealthChecker
	MetricsHandler http.Handler

	// 認証
	AuthService AuthServiceInterface
	AuthConfig  AuthHandlerConfig

	// ドメイン
	UserService    UserServiceInterface
	UserLookup     UserLookup
	Registration   RegistrationService
	ListService    ListServiceInterface
	SharingService SharingServiceInterface
	TaskService    TaskServiceInterface
	CommentService CommentServiceInterface
	TagService     TagServiceInterface
}

// NewRouter は全APIエンドポイントのルーティングとミドルウェアチェーンを構成したchi.Routerを返す。
//
// ミドルウェアスタックの実行順序:
//
//	RealIP → Logging → Recovery → SecurityHeaders → CORS
//	/api/*: Session → RateLimit(General) → CSRF
//
// 認証ルート（/auth/*）とヘルスチェックはセッション不要。
func NewRouter(deps *RouterDeps) http.Handler {
	r := chi.NewRouter()

	logger := deps.Logger
	if logger == nil {
		logger = slog.Default()
	}
	var recorders []middleware.HTTPStatusRecorder
	if deps.StatusRecorder != nil {
		recorders = append(recorders, deps.StatusRecorder)
	}

	r.Use(chimw.RealIP)
	r.Use(middleware.NewLoggingMiddleware(logger, recorders...))
	r.Use(middleware.NewRecoveryMiddleware())
	r.Use(middleware.NewSecurityHeadersMiddleware())
	r.Use(middleware.NewCORSMiddleware(deps.CORSAllowedOrigin))

	authHandler := NewAuthHandler(deps.AuthService, deps.Registration, deps.AuthConfig)
	userHandler := NewUserHandler(deps.UserService)
	listHandler := NewListHandler(deps.ListService)
	shareHandler := NewShareHandler(deps.SharingService)
	taskHandler := NewTaskHandler(deps.TaskService)
	commentHandler := NewCommentHandler(deps.CommentService, deps.UserLookup)
	tagHandler := NewTagHandler(deps.TagService)

	// --- 認証不要のルート ---

	r.Get("/health", healthHandler(deps.HealthChecker))
	if deps.MetricsHandler != nil {
		r.Method(http.MethodGet, "/metrics", deps.MetricsHandler)
	}

	r.Route("/auth", func(r chi.Router) {
		r.Post("/register", authHandler.Register)
		r.With(deps.RateLimiter.LoginMiddleware()).Post("/login", authHandler.Login)
		r.Post("/logout", authHandler.Logout)
		r.Get("/me", authHandler.Me)
	})

	r.Method(http.MethodGet, "/api/csrf-token", middleware.NewCSRFTokenHandler(deps.CSRFConfig))

	// --- 認証が必要なルート ---
	// ミドルウェアスタック: Session → RateLimit(General) → CSRF
	r.Group(func(r chi.Router) {
		r.Use(middleware.NewSessionMiddleware(deps.SessionFinder))
		r.Use(deps.RateLimiter.GeneralMiddleware())
		r.Use(middleware.NewCSRFMiddleware(deps.CSRFConfig))

		// ユーザー
		r.Route("/api/users", func(r chi.Router) {
			r.Get("/", userHandler.ListUsers)
			r.Delete("/me", userHandler.Withdraw)
		})

		// リスト
		r.Route("/api/lists", func(r chi.Router) {
			r.Get("/", listHandler.ListOwned)
			r.Post("/", listHandler.CreateList)

			r.Route("/{id}", func(r chi.Router) {
				r.Get("/", listHandler.GetList)
				r.Put("/", listHandler.UpdateList)
				r.Delete("/", listHandler.DeleteList)

				r.Get("/tasks", taskHandler.ListTasks)
				r.Post("/tasks", taskHandler.CreateTask)

				// 共有
				r.Get("/shares", shareHandler.ListSharedUsers)
				r.Post("/shares", shareHandler.Share)
				r.Put("/shares/{userID}", shareHandler.UpdateShareRole)
				r.Delete("/shares/{userID}", shareHandler.RemoveShare)
			})
		})

		r.Get("/api/shared-with-me", shareHandler.SharedWithMe)

		// タスク
		r.Route("/api/tasks", func(r chi.Router) {
			r.Get("/assigned", taskHandler.ListAssigned)
			r.Get("/search", taskHandler.SearchTasks)

			r.Route("/{id}", func(r chi.Router) {
				r.Get("/", taskHandler.GetTask)
				r.Put("/", taskHandler.UpdateTask)
				r.Delete("/", taskHandler.DeleteTask)
				r.Put("/status", taskHandler.UpdateStatus)
				r.Put("/assignee", taskHandler.Reassign)

				r.Get("/comments", commentHandler.ListComments)
				r.Post("/comments", commentHandler.AddComment)

				r.Get("/tags", tagHandler.TagsForTask)
				r.Post("/tags", tagHandler.AddTag)
				r.Delete("/tags/{name}", tagHandler.RemoveTag)
			})
		})

		// コメント
		r.Route("/api/comments/{id}", func(r chi.Router) {
			r.Put("/", commentHandler.EditComment)
			r.Delete("/", commentHandler.DeleteComment)
		})

		// タグ
		r.Route("/api/tags", func(r chi.Router) {
			r.Get("/", tagHandler.AllTags)
			r.Get("/{name}/tasks", tagHandler.TasksByTag)
		})
	})

	return r
}

// healthHandler はDB疎通を確認するヘルスチェックハンドラーを返す。
// checkerがnilの場合はプロセスの生存のみを返す。
func healthHandler(checker HealthChecker) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if checker != nil {
			ctx, cancel := context.WithTimeout(r.Context(), 3*time.Second)
			defer cancel()
			if err := checker.PingContext(ctx); err != nil {
				slog.Error("health check failed", slog.String("error", err.Error()))
				writeJSON(w, http.StatusServiceUnavailable, map[string]string{"status": "unavailable"})
				return
			}
		}
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	}
}
