package cleanup

import (
	"bytes"
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"log/slog"
	"strings"
	"sync"
	"testing"
	"time"
)

type fakeResult struct {
	rowsAffected int64
}

func (r *fakeResult) LastInsertId() (int64, error) { return 0, nil }
func (r *fakeResult) RowsAffected() (int64, error) { return r.rowsAffected, nil }

// Executor インターフェースに対するモック実装
type mockExecutor struct {
	mu     sync.Mutex
	calls  int
	query  string
	args   []any
	result sql.Result
	err    error
}

func (m *mockExecutor) ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls++
	m.query = query
	m.args = args
	return m.result, m.err
}

func (m *mockExecutor) callCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.calls
}

type mockRecorder struct {
	total int64
}

func (r *mockRecorder) RecordSessionsPurged(count int64) { r.total += count }

func newTestLogger(buf *bytes.Buffer) *slog.Logger {
	return slog.New(slog.NewJSONHandler(buf, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	}))
}

// logEntries はJSONログを1行ずつデコードする。
func logEntries(buf *bytes.Buffer) []map[string]any {
	var entries []map[string]any
	for _, line := range strings.Split(strings.TrimSpace(buf.String()), "\n") {
		var entry map[string]any
		if err := json.Unmarshal([]byte(line), &entry); err == nil {
			entries = append(entries, entry)
		}
	}
	return entries
}

func TestCleanupJob_Run_DeletesExpiredSessions(t *testing.T) {
	var buf bytes.Buffer
	mock := &mockExecutor{result: &fakeResult{rowsAffected: 5}}
	job := NewCleanupJob(mock, newTestLogger(&buf))

	if err := job.Run(context.Background()); err != nil {
		t.Fatalf("Run() がエラーを返した: %v", err)
	}

	if !strings.Contains(mock.query, "DELETE FROM sessions") {
		t.Errorf("クエリに 'DELETE FROM sessions' が含まれていない: %s", mock.query)
	}
	if !strings.Contains(mock.query, "expires_at") {
		t.Errorf("クエリに 'expires_at' 条件が含まれていない: %s", mock.query)
	}
	if got, _ := mock.args[0].(string); got != "0 seconds" {
		t.Errorf("interval引数 = %q, want %q", got, "0 seconds")
	}
}

func TestCleanupJob_Run_GracePeriod(t *testing.T) {
	var buf bytes.Buffer
	mock := &mockExecutor{result: &fakeResult{}}
	job := NewCleanupJob(mock, newTestLogger(&buf))
	job.GracePeriod = 2 * time.Hour

	_ = job.Run(context.Background())

	if got, _ := mock.args[0].(string); got != "7200 seconds" {
		t.Errorf("interval引数 = %q, want %q", got, "7200 seconds")
	}
}

func TestCleanupJob_Run_LogsAndRecordsDeletedCount(t *testing.T) {
	tests := []struct {
		name  string
		count int64
	}{
		{"削除あり", 42},
		{"0件でもログを出す", 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var buf bytes.Buffer
			rec := &mockRecorder{}
			job := NewCleanupJob(&mockExecutor{result: &fakeResult{rowsAffected: tt.count}}, newTestLogger(&buf))
			job.SetRecorder(rec)

			if err := job.Run(context.Background()); err != nil {
				t.Fatal(err)
			}

			found := false
			for _, entry := range logEntries(&buf) {
				if entry["deleted_count"] == float64(tt.count) {
					if _, ok := entry["duration_ms"]; !ok {
						t.Error("ログに duration_ms が記録されていない")
					}
					found = true
				}
			}
			if !found {
				t.Errorf("ログに deleted_count=%d が記録されていない。ログ出力: %s", tt.count, buf.String())
			}
			if rec.total != tt.count {
				t.Errorf("recorded = %d, want %d", rec.total, tt.count)
			}
		})
	}
}

func TestCleanupJob_Run_ReturnsErrorOnDBFailure(t *testing.T) {
	var buf bytes.Buffer
	job := NewCleanupJob(&mockExecutor{err: sql.ErrConnDone}, newTestLogger(&buf))

	err := job.Run(context.Background())
	if err == nil {
		t.Fatal("DBエラー時に Run() は nil でないエラーを返すべき")
	}
	if !strings.Contains(err.Error(), "sql: connection is already closed") {
		t.Errorf("エラーメッセージが期待と異なる: %v", err)
	}
	if !strings.Contains(buf.String(), "ERROR") {
		t.Errorf("エラー時にERRORレベルのログが記録されていない。ログ出力: %s", buf.String())
	}
}

func TestCleanupJob_Run_Idempotent_ZeroRows(t *testing.T) {
	var buf bytes.Buffer
	job := NewCleanupJob(&mockExecutor{result: &fakeResult{}}, newTestLogger(&buf))

	for i := 0; i < 2; i++ {
		if err := job.Run(context.Background()); err != nil {
			t.Fatalf("%d回目の Run() がエラーを返した: %v", i+1, err)
		}
	}
}

func TestCleanupJob_Start_RunsImmediatelyAndStopsOnCancel(t *testing.T) {
	var buf bytes.Buffer
	mock := &mockExecutor{result: &fakeResult{}}
	job := NewCleanupJob(mock, newTestLogger(&buf))

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		job.Start(ctx, 10*time.Millisecond)
		close(done)
	}()

	deadline := time.Now().Add(2 * time.Second)
	for mock.callCount() < 2 && time.Now().Before(deadline) {
		time.Sleep(5 * time.Millisecond)
	}
	cancel()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("Start がキャンセル後に終了しなかった")
	}
	if mock.callCount() < 2 {
		t.Errorf("Run の呼び出し回数 = %d, want >= 2", mock.callCount())
	}
}

func TestCleanupJob_Start_RetriesWithBackoffOnFailure(t *testing.T) {
	var buf syncBuffer
	mock := &mockExecutor{err: errors.New("connection refused")}
	job := NewCleanupJob(mock, slog.New(slog.NewJSONHandler(&buf, nil)))
	job.RetryDelay = 5 * time.Millisecond

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		// intervalが長くても失敗時はRetryDelayで再実行される
		job.Start(ctx, time.Hour)
		close(done)
	}()

	deadline := time.Now().Add(2 * time.Second)
	for mock.callCount() < 3 && time.Now().Before(deadline) {
		time.Sleep(5 * time.Millisecond)
	}
	cancel()
	<-done

	if mock.callCount() < 3 {
		t.Errorf("Run の呼び出し回数 = %d, want >= 3", mock.callCount())
	}
	if !strings.Contains(buf.String(), `"consecutive_errors":2`) {
		t.Errorf("連続失敗回数がログに出力されていない: %s", buf.String())
	}
}

// syncBuffer はgoroutineから書き込まれるログ用のバッファ。
type syncBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (b *syncBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.Write(p)
}

func (b *syncBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.String()
}
