// Package repository はデータ永続化のインターフェースを定義する。
package repository

import (
	"context"
	"database/sql"
	"errors"

	"github.com/hitoshi/todolist/internal/model"
)

var (
	// ErrNotFound は更新・削除対象の行が存在しなかったことを表す。
	ErrNotFound = errors.New("record not found")
	// ErrDuplicate は一意制約違反を表す。
	// 同時実行で競合した書き込みはこのエラーで敗者側に通知される。
	ErrDuplicate = errors.New("duplicate record")
)

// Querier は *sql.DB と *sql.Tx の共通部分。
// リポジトリは呼び出し側から渡されたハンドル上でクエリを実行する。
type Querier interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// TxBeginner はトランザクション開始用のインターフェース。
type TxBeginner interface {
	BeginTx(ctx context.Context, opts *sql.TxOptions) (*sql.Tx, error)
}

// UserRepository はユーザーデータの永続化インターフェース。
// ユーザーディレクトリとして共有・担当替えの対象ユーザー検証にも使う。
type UserRepository interface {
	// FindByID は指定IDのユーザーを取得する。見つからない場合はnilを返す。
	FindByID(ctx context.Context, id string) (*model.User, error)

	// FindByUsername はユーザー名でユーザーを取得する。見つからない場合はnilを返す。
	FindByUsername(ctx context.Context, username string) (*model.User, error)

	// ListAll は全ユーザーをユーザー名順で返す。
	ListAll(ctx context.Context) ([]*model.User, error)

	// Create はユーザーを作成する。ユーザー名が重複する場合はErrDuplicateを返す。
	Create(ctx context.Context, user *model.User) error

	// DeleteByID は指定IDのユーザーを削除する。
	// 所有リスト、共有、セッションはCASCADE削除される。
	// 他ユーザーのリストにある作成・担当タスクはリストのオーナーに引き継ぎ、
	// コメントは作成者IDを空にして残す。
	DeleteByID(ctx context.Context, id string) error
}

// SessionRepository はセッションデータの永続化インターフェース。
type SessionRepository interface {
	// Create はセッションを作成する。
	Create(ctx context.Context, session *model.Session) error
	// FindByID は指定IDのセッションを取得する。期限切れの場合はnilを返す。
	FindByID(ctx context.Context, id string) (*model.Session, error)
	// DeleteByID は指定IDのセッションを削除する。
	DeleteByID(ctx context.Context, id string) error
	// DeleteByUserID は指定ユーザーの全セッションを削除する。
	DeleteByUserID(ctx context.Context, userID string) error
}

// ListRepository はリストデータの永続化インターフェース。
type ListRepository interface {
	// FindByID は指定IDのリストを取得する。見つからない場合はnilを返す。
	FindByID(ctx context.Context, id string) (*model.TodoList, error)

	// ListByOwner はユーザーが所有するリストを作成日時順で返す。
	ListByOwner(ctx context.Context, ownerID string) ([]*model.TodoList, error)

	// Create はリストを作成する。
	Create(ctx context.Context, list *model.TodoList) error

	// Update はリストの名前と説明を更新する。OwnerIDは変更しない。
	// 対象が存在しない場合はErrNotFoundを返す。
	Update(ctx context.Context, list *model.TodoList) error

	// Delete はリストを削除する。タスク、共有、コメント、タグ付けはCASCADE削除される。
	// 対象が存在しない場合はErrNotFoundを返す。
	Delete(ctx context.Context, id string) error
}

// ShareRepository はリスト共有レコードの永続化インターフェース。
type ShareRepository interface {
	// Find は(listID, userID)の共有レコードを取得する。見つからない場合はnilを返す。
	Find(ctx context.Context, listID, userID string) (*model.ListShare, error)

	// ListByList はリストの全共有レコードを返す。
	ListByList(ctx context.Context, listID string) ([]*model.ListShare, error)

	// ListSharedWithUser はユーザーが共有を受けているリストを返す。
	// ユーザー自身が所有するリストは除外する。
	ListSharedWithUser(ctx context.Context, userID string) ([]model.SharedList, error)

	// Create は共有レコードを作成する。
	// (listID, userID)が既に存在する場合はErrDuplicateを返す。
	Create(ctx context.Context, share *model.ListShare) error

	// UpdateRole は共有レコードのロールを更新する。存在しない場合はErrNotFoundを返す。
	UpdateRole(ctx context.Context, listID, userID string, role model.Role) error

	// Delete は共有レコードを削除する。存在しない場合はErrNotFoundを返す。
	Delete(ctx context.Context, listID, userID string) error
}

// TaskRepository はタスクデータの永続化インターフェース。
type TaskRepository interface {
	// FindByID は指定IDのタスクを取得する。見つからない場合はnilを返す。
	FindByID(ctx context.Context, id string) (*model.Task, error)

	// ListByList はリストのタスクを作成日時順で返す。
	ListByList(ctx context.Context, listID string) ([]*model.Task, error)

	// ListByAssignee はユーザーが担当するタスクを状態フィルタ付きで返す。
	ListByAssignee(ctx context.Context, userID string, filter model.TaskStatusFilter) ([]*model.Task, error)

	// Search はユーザーが閲覧できるタスクを条件で絞り込み、作成日時順で返す。
	// 閲覧範囲は所有リスト、共有リスト、自分が担当者のタスク。期限なしのタスクはDueBeforeに一致しない。
	Search(ctx context.Context, userID string, criteria model.TaskSearch) ([]*model.Task, error)

	// Create はタスクを作成する。
	Create(ctx context.Context, task *model.Task) error

	// Update はタスクの名前、説明、期限、完了フラグを更新する。
	// 対象が存在しない場合はErrNotFoundを返す。
	Update(ctx context.Context, task *model.Task) error

	// UpdateAssignee は担当者を更新する。
	// 現在の担当者がexpectedAssigneeと一致する行だけを更新し、一致しない場合はErrNotFoundを返す。
	UpdateAssignee(ctx context.Context, id, expectedAssignee, newAssignee string) error

	// UpdateCompletion は完了フラグを更新する。対象が存在しない場合はErrNotFoundを返す。
	UpdateCompletion(ctx context.Context, id string, isCompleted bool) error

	// Delete はタスクを削除する。対象が存在しない場合はErrNotFoundを返す。
	Delete(ctx context.Context, id string) error
}

// CommentRepository はコメントデータの永続化インターフェース。
type CommentRepository interface {
	// FindByID は指定IDのコメントを取得する。見つからない場合はnilを返す。
	FindByID(ctx context.Context, id string) (*model.Comment, error)

	// ListByTask はタスクのコメントを作成日時の昇順で返す。
	ListByTask(ctx context.Context, taskID string) ([]*model.Comment, error)

	// Create はコメントを作成する。
	Create(ctx context.Context, comment *model.Comment) error

	// UpdateText はコメント本文を更新する。対象が存在しない場合はErrNotFoundを返す。
	UpdateText(ctx context.Context, id, text string) error

	// Delete はコメントを削除する。対象が存在しない場合はErrNotFoundを返す。
	Delete(ctx context.Context, id string) error
}

// TagRepository はタグとタスクへのタグ付けの永続化インターフェース。
type TagRepository interface {
	// ListByTask はタスクに付いたタグを名前順で返す。
	ListByTask(ctx context.Context, taskID string) ([]*model.Tag, error)

	// Attach はタグ名（大文字小文字を区別しない）でタグを検索または作成し、タスクに付与する。
	// 既に付与済みの場合は何もしない。
	Attach(ctx context.Context, taskID, name string) (*model.Tag, error)

	// Detach はタスクからタグ名のタグを外す。付与されていない場合はErrNotFoundを返す。
	Detach(ctx context.Context, taskID, name string) error

	// ListVisibleNames はユーザーが閲覧できるタスクに付いたタグ名を重複なしで返す。
	ListVisibleNames(ctx context.Context, userID string) ([]string, error)

	// ListVisibleTasksByTag はユーザーが閲覧できるタスクのうち指定タグが付いたものを返す。
	ListVisibleTasksByTag(ctx context.Context, userID, name string) ([]*model.Task, error)
}
