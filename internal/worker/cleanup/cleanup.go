// Package cleanup は期限切れセッションの自動削除ジョブを提供する。
// 有効期限を過ぎたセッションは認証に使われないが、行として残り続けるため定期的に削除する。
package cleanup

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"time"
)

// Executor はSQLのExecContextを抽象化するインターフェース。
// *sql.DB や *sql.Tx を受け付けることができる。
type Executor interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

// PurgeRecorder は削除件数の記録先。metrics.Collectorが実装する。
type PurgeRecorder interface {
	RecordSessionsPurged(count int64)
}

// CleanupJob は期限切れセッションの削除ジョブ。冪等な削除処理を保証する。
type CleanupJob struct {
	db       Executor
	logger   *slog.Logger
	recorder PurgeRecorder

	// GracePeriod は期限切れ後も残しておく期間。0の場合は期限切れ直後から削除対象になる。
	GracePeriod time.Duration
	// RetryDelay は実行失敗後の初回再実行までの待ち時間。0の場合は30秒。
	// 連続して失敗すると2倍ずつ延び、Startのintervalで頭打ちになる。
	RetryDelay time.Duration
}

// NewCleanupJob は新しいCleanupJobを生成する。
func NewCleanupJob(db Executor, logger *slog.Logger) *CleanupJob {
	return &CleanupJob{
		db:     db,
		logger: logger,
	}
}

// SetRecorder は削除件数の記録先を設定する。
func (j *CleanupJob) SetRecorder(r PurgeRecorder) {
	j.recorder = r
}

// Run はexpires_atがGracePeriodより前に過ぎたセッションを削除する。
// 冪等: 削除対象がない場合でもエラーにならない。
func (j *CleanupJob) Run(ctx context.Context) error {
	start := time.Now()

	grace := fmt.Sprintf("%d seconds", int64(j.GracePeriod/time.Second))

	query := `DELETE FROM sessions WHERE expires_at < now() - $1::interval`
	result, err := j.db.ExecContext(ctx, query, grace)
	if err != nil {
		j.logger.Error("セッションクリーンアップジョブの実行に失敗しました",
			slog.String("error", err.Error()),
		)
		return fmt.Errorf("セッションクリーンアップの実行に失敗: %w", err)
	}

	deletedCount, err := result.RowsAffected()
	if err != nil {
		j.logger.Error("削除件数の取得に失敗しました",
			slog.String("error", err.Error()),
		)
		return fmt.Errorf("削除件数の取得に失敗: %w", err)
	}

	if j.recorder != nil {
		j.recorder.RecordSessionsPurged(deletedCount)
	}

	duration := time.Since(start)
	j.logger.Info("セッションクリーンアップジョブが完了しました",
		slog.Int64("deleted_count", deletedCount),
		slog.Duration("grace_period", j.GracePeriod),
		slog.Float64("duration_ms", float64(duration.Milliseconds())),
	)

	return nil
}

// Start は起動直後に1回、その後intervalごとにRunを実行する。
// Runが失敗した場合はRetryDelayから始まる指数バックオフで再実行する。
// コンテキストがキャンセルされるまで実行を継続する。
func (j *CleanupJob) Start(ctx context.Context, interval time.Duration) {
	j.logger.Info("セッションクリーンアップを開始しました",
		slog.Duration("interval", interval),
	)

	consecutiveErrors := 0
	for {
		wait := interval
		if err := j.Run(ctx); err != nil && ctx.Err() == nil {
			consecutiveErrors++
			wait = retryDelay(consecutiveErrors, j.RetryDelay, interval)
			j.logger.Warn("セッションクリーンアップを再試行します",
				slog.Int("consecutive_errors", consecutiveErrors),
				slog.Duration("retry_in", wait),
			)
		} else {
			consecutiveErrors = 0
		}

		timer := time.NewTimer(wait)
		select {
		case <-ctx.Done():
			timer.Stop()
			j.logger.Info("セッションクリーンアップを停止しました")
			return
		case <-timer.C:
		}
	}
}
