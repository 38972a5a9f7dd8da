package model

import "time"

// Task はリストに属するタスク。
// OwnerIDは作成者、AssignedUserIDは現在の担当者（作成時は作成者）。
type Task struct {
	ID             string
	ListID         string
	Name           string
	Description    string
	DueDate        *time.Time
	IsCompleted    bool
	OwnerID        string
	AssignedUserID string
	CreatedAt      time.Time
	UpdatedAt      time.Time
}

// IsOverdue は期限切れの未完了タスクかどうかを返す。
func (t *Task) IsOverdue(now time.Time) bool {
	return !t.IsCompleted && t.DueDate != nil && t.DueDate.Before(now)
}

// TaskStatusFilter は担当タスク一覧の状態フィルタ。
type TaskStatusFilter string

const (
	// TaskStatusAll は全件。
	TaskStatusAll TaskStatusFilter = "all"
	// TaskStatusPending は未完了のみ。
	TaskStatusPending TaskStatusFilter = "pending"
	// TaskStatusCompleted は完了済みのみ。
	TaskStatusCompleted TaskStatusFilter = "completed"
	// TaskStatusOverdue は期限切れの未完了のみ。
	TaskStatusOverdue TaskStatusFilter = "overdue"
)

// ParseTaskStatusFilter はクエリ文字列からフィルタを解釈する。空文字はTaskStatusAll。
func ParseTaskStatusFilter(s string) (TaskStatusFilter, bool) {
	switch TaskStatusFilter(s) {
	case "", TaskStatusAll:
		return TaskStatusAll, true
	case TaskStatusPending, TaskStatusCompleted, TaskStatusOverdue:
		return TaskStatusFilter(s), true
	default:
		return "", false
	}
}

// TaskSearch はタスク検索の条件。ゼロ値の項目は絞り込みに使わない。
type TaskSearch struct {
	// Query は名前または説明に含まれる文字列（大文字小文字を区別しない）。
	Query          string
	IsCompleted    *bool
	DueBefore      *time.Time
	AssignedUserID string
}

// Comment はタスクへのコメント。
// UserNameは書き込み時点の表示名で、後から再計算しない。
type Comment struct {
	ID        string
	TaskID    string
	UserID    string
	UserName  string
	Text      string
	CreatedAt time.Time
	UpdatedAt time.Time
}

// Tag はタスクに付与するタグ。名前は大文字小文字を区別せず一意。
type Tag struct {
	ID   string
	Name string
}
