package app

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"

	"github.com/hitoshi/todolist/internal/auth"
	"github.com/hitoshi/todolist/internal/comment"
	"github.com/hitoshi/todolist/internal/config"
	"github.com/hitoshi/todolist/internal/database"
	"github.com/hitoshi/todolist/internal/handler"
	"github.com/hitoshi/todolist/internal/logger"
	"github.com/hitoshi/todolist/internal/metrics"
	"github.com/hitoshi/todolist/internal/middleware"
	"github.com/hitoshi/todolist/internal/permission"
	"github.com/hitoshi/todolist/internal/repository"
	"github.com/hitoshi/todolist/internal/security"
	"github.com/hitoshi/todolist/internal/sharing"
	"github.com/hitoshi/todolist/internal/tag"
	"github.com/hitoshi/todolist/internal/task"
	"github.com/hitoshi/todolist/internal/todolist"
	"github.com/hitoshi/todolist/internal/user"
	"github.com/hitoshi/todolist/internal/worker/cleanup"
)

// runContext はサブコマンドの実行に必要な初期化済みの依存。
type runContext struct {
	cfg    *config.Config
	logger *slog.Logger
}

// Init はアプリケーションの初期化を行う。
// JSON構造化ログをセットアップしてから環境変数のConfigを読み込み、LOG_LEVELをログレベルに反映する。
// writerが指定された場合はログ出力先としてそのwriterを使用する。
func Init(w io.Writer) (*config.Config, error) {
	// 1. ログの初期化（設定読み込み前にログを使えるようにする）
	level := logger.SetupDefault(w)

	// 2. 環境変数から設定を読み込む
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}

	// 3. ログレベルの反映
	lvl, err := logger.ParseLevel(cfg.LogLevel)
	if err != nil {
		slog.Warn("unknown LOG_LEVEL, falling back to info",
			slog.String("log_level", cfg.LogLevel),
		)
	}
	level.Set(lvl)

	return cfg, nil
}

// Run はアプリケーションのメインエントリーポイント。
// コマンドライン引数からサブコマンドを解析し、対応するモードで起動する。
// argsにはos.Args[1:]を渡す。
func Run(w io.Writer, args []string) error {
	root := NewRootCmd(w)
	root.SetArgs(args)
	if w != nil {
		root.SetOut(w)
	}
	return root.Execute()
}

// runWithConfig はInitを行ってからfnを実行する。
func runWithConfig(w io.Writer, cmd Command, fn func(*runContext) error) error {
	cfg, err := Init(w)
	if err != nil {
		return fmt.Errorf("initialization failed: %w", err)
	}

	slog.Info("starting application",
		slog.String("command", string(cmd)),
		slog.String("port", cfg.ServerPort),
		slog.String("base_url", cfg.BaseURL),
	)

	return fn(&runContext{cfg: cfg, logger: slog.Default()})
}

// openDB はDB接続を開き、疎通を確認する。
func openDB(ctx context.Context, cfg *config.Config) (*sql.DB, error) {
	db, err := database.Open(cfg.DatabaseURL)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := db.PingContext(pingCtx); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	return db, nil
}

// newRegistry はGo/プロセスのコレクターを登録したレジストリを生成する。
func newRegistry() *prometheus.Registry {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return reg
}

// buildRouter はリポジトリ、サービス、ミドルウェアを組み立ててルーターを返す。
// 返されたRateLimiterはサーバー停止時にStopすること。
func buildRouter(cfg *config.Config, db *sql.DB, log *slog.Logger, reg *prometheus.Registry) (http.Handler, *middleware.RateLimiter) {
	// 1. リポジトリの初期化
	userRepo := repository.NewPostgresUserRepo(db)
	sessionRepo := repository.NewPostgresSessionRepo(db)
	listRepo := repository.NewPostgresListRepo(db)
	shareRepo := repository.NewPostgresShareRepo(db)
	taskRepo := repository.NewPostgresTaskRepo(db)
	commentRepo := repository.NewPostgresCommentRepo(db)
	tagRepo := repository.NewPostgresTagRepo(db)

	// 2. メトリクスと権限判定
	collector := metrics.NewCollector(reg)
	checker := permission.NewChecker(listRepo, shareRepo, taskRepo)
	checker.SetRecorder(collector)

	// 3. ドメインサービスの初期化
	sanitizer := security.NewTextSanitizer()

	userService := user.NewService(userRepo, sessionRepo, cfg.BcryptCost)
	authService := auth.NewService(userRepo, sessionRepo, auth.ServiceConfig{
		SessionMaxAge: cfg.SessionMaxAge,
	})
	listService := todolist.NewService(listRepo, checker, sanitizer)
	sharingService := sharing.NewService(listRepo, shareRepo, userRepo, checker)
	sharingService.SetRecorder(collector)
	taskService := task.NewService(listRepo, taskRepo, userRepo, checker, sanitizer)
	commentService := comment.NewService(commentRepo, taskRepo, checker, sanitizer)
	tagService := tag.NewService(tagRepo, taskRepo, checker)

	// 4. ルーターの構築
	rateLimiter := middleware.NewRateLimiter(
		middleware.PerMinuteRateLimiterConfig(cfg.RateLimitGeneral, cfg.RateLimitLogin),
	)

	deps := &handler.RouterDeps{
		Logger:         log,
		StatusRecorder: collector,
		SessionFinder:  sessionRepo,
		CSRFConfig: middleware.CSRFConfig{
			CookieSecure: cfg.CookieSecure,
			CookieDomain: cfg.CookieDomain,
		},
		CORSAllowedOrigin: cfg.CORSAllowedOrigin,
		RateLimiter:       rateLimiter,

		HealthChecker:  db,
		MetricsHandler: metrics.Handler(reg),

		AuthService: authService,
		AuthConfig: handler.AuthHandlerConfig{
			CookieDomain:  cfg.CookieDomain,
			CookieSecure:  cfg.CookieSecure,
			SessionMaxAge: cfg.SessionMaxAge,
		},

		UserService:    userService,
		UserLookup:     userService,
		Registration:   userService,
		ListService:    listService,
		SharingService: sharingService,
		TaskService:    taskService,
		CommentService: commentService,
		TagService:     tagService,
	}

	return handler.NewRouter(deps), rateLimiter
}

// newHTTPServer はタイムアウトを設定したhttp.Serverを返す。
func newHTTPServer(addr string, h http.Handler) *http.Server {
	return &http.Server{
		Addr:         addr,
		Handler:      h,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}
}

// runServe はAPIサーバーモードで起動する。
// DB接続を開き、全依存関係をワイヤリングし、HTTPサーバーを起動する。
// SIGINTまたはSIGTERMシグナルを受信するとグレースフルシャットダウンを行う。
func runServe(c *runContext) error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	db, err := openDB(ctx, c.cfg)
	if err != nil {
		return err
	}
	defer db.Close()

	slog.Info("database connection established")

	router, rateLimiter := buildRouter(c.cfg, db, c.logger, newRegistry())
	defer rateLimiter.Stop()

	server := newHTTPServer(":"+c.cfg.ServerPort, router)

	errCh := make(chan error, 1)
	go func() {
		slog.Info("API server starting",
			slog.String("addr", server.Addr),
		)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("server listen error: %w", err)
		}
		return nil
	case <-ctx.Done():
	}

	slog.Info("shutting down API server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server shutdown failed: %w", err)
	}

	slog.Info("API server stopped gracefully")
	return nil
}

// runWorker はワーカーモードで起動する。
// 期限切れセッションのクリーンアップジョブをSESSION_CLEANUP_INTERVALごとに実行する。
// metricsAddrが指定された場合は/metricsを公開する。
// SIGINTまたはSIGTERMシグナルを受信するとシャットダウンする。
func runWorker(c *runContext, metricsAddr string) error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	db, err := openDB(ctx, c.cfg)
	if err != nil {
		return err
	}
	defer db.Close()

	slog.Info("database connection established (worker)")

	reg := newRegistry()
	job := cleanup.NewCleanupJob(db, c.logger)
	job.SetRecorder(metrics.NewCollector(reg))

	if metricsAddr != "" {
		metricsServer := newHTTPServer(metricsAddr, metrics.SetupMetricsRoute(reg))
		go func() {
			slog.Info("worker metrics server starting", slog.String("addr", metricsAddr))
			if err := metricsServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				slog.Error("metrics server listen error", slog.String("error", err.Error()))
			}
		}()
		defer func() {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			_ = metricsServer.Shutdown(shutdownCtx)
		}()
	}

	slog.Info("worker starting",
		slog.Duration("session_cleanup_interval", c.cfg.SessionCleanupInterval),
	)

	// コンテキストがキャンセルされるまでブロックする
	job.Start(ctx, c.cfg.SessionCleanupInterval)

	slog.Info("worker stopped gracefully")
	return nil
}

// runMigrate はデータベースマイグレーションを実行する。
// すべての未適用マイグレーションを順番に適用する。
func runMigrate(c *runContext) error {
	slog.Info("running database migrations",
		slog.String("database_url", config.RedactedDatabaseURL(c.cfg.DatabaseURL)),
	)

	if err := database.RunMigrations(c.cfg.DatabaseURL); err != nil {
		return fmt.Errorf("migration failed: %w", err)
	}

	slog.Info("database migrations completed successfully")
	return nil
}

// runHealthcheck はヘルスチェックを実行する。
// distroless環境でのDockerヘルスチェック用サブコマンド。
// /health エンドポイントにHTTPリクエストを送り、結果を返す。
func runHealthcheck(port string) error {
	url := fmt.Sprintf("http://localhost:%s/health", port)
	client := &http.Client{Timeout: 5 * time.Second}

	resp, err := client.Get(url)
	if err != nil {
		return fmt.Errorf("health check failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("health check returned status %d", resp.StatusCode)
	}

	return nil
}
