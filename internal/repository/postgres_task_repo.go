package repository

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/hitoshi/todolist/internal/model"
)

// PostgresTaskRepo はPostgreSQLを使用したタスクリポジトリ。
type PostgresTaskRepo struct {
	db Querier
}

// NewPostgresTaskRepo はPostgresTaskRepoを生成する。
func NewPostgresTaskRepo(db Querier) *PostgresTaskRepo {
	return &PostgresTaskRepo{db: db}
}

const taskColumns = `t.id, t.list_id, t.name, t.description, t.due_date, t.is_completed,
	t.owner_id, t.assigned_user_id, t.created_at, t.updated_at`

func scanTask(row interface{ Scan(dest ...any) error }) (*model.Task, error) {
	task := &model.Task{}
	var dueDate sql.NullTime
	err := row.Scan(
		&task.ID, &task.ListID, &task.Name, &task.Description, &dueDate, &task.IsCompleted,
		&task.OwnerID, &task.AssignedUserID, &task.CreatedAt, &task.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	if dueDate.Valid {
		due := dueDate.Time
		task.DueDate = &due
	}
	return task, nil
}

func scanTasks(rows *sql.Rows) ([]*model.Task, error) {
	defer rows.Close()

	var tasks []*model.Task
	for rows.Next() {
		task, err := scanTask(rows)
		if err != nil {
			return nil, fmt.Errorf("タスク行の読み取りに失敗しました: %w", err)
		}
		tasks = append(tasks, task)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("タスク一覧の走査に失敗しました: %w", err)
	}
	return tasks, nil
}

// FindByID は指定IDのタスクを取得する。見つからない場合はnilを返す。
func (r *PostgresTaskRepo) FindByID(ctx context.Context, id string) (*model.Task, error) {
	if !validID(id) {
		return nil, nil
	}
	task, err := scanTask(r.db.QueryRowContext(ctx,
		`SELECT `+taskColumns+` FROM tasks t WHERE t.id = $1`,
		id,
	))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("タスクの取得に失敗しました: %w", err)
	}
	return task, nil
}

// ListByList はリストのタスクを作成日時順で返す。
func (r *PostgresTaskRepo) ListByList(ctx context.Context, listID string) ([]*model.Task, error) {
	if !validID(listID) {
		return nil, nil
	}
	rows, err := r.db.QueryContext(ctx,
		`SELECT `+taskColumns+` FROM tasks t WHERE t.list_id = $1 ORDER BY t.created_at ASC`,
		listID,
	)
	if err != nil {
		return nil, fmt.Errorf("タスク一覧の取得に失敗しました: %w", err)
	}
	return scanTasks(rows)
}

// statusCondition は状態フィルタに対応するWHERE句の追加条件を返す。
func statusCondition(filter model.TaskStatusFilter) string {
	switch filter {
	case model.TaskStatusPending:
		return ` AND t.is_completed = false`
	case model.TaskStatusCompleted:
		return ` AND t.is_completed = true`
	case model.TaskStatusOverdue:
		return ` AND t.is_completed = false AND t.due_date IS NOT NULL AND t.due_date < now()`
	default:
		return ""
	}
}

// ListByAssignee はユーザーが担当するタスクを状態フィルタ付きで返す。
// 期限のあるタスクを期限順に並べ、期限なしは末尾にする。
func (r *PostgresTaskRepo) ListByAssignee(ctx context.Context, userID string, filter model.TaskStatusFilter) ([]*model.Task, error) {
	if !validID(userID) {
		return nil, nil
	}
	rows, err := r.db.QueryContext(ctx,
		`SELECT `+taskColumns+` FROM tasks t WHERE t.assigned_user_id = $1`+statusCondition(filter)+
			` ORDER BY t.due_date ASC NULLS LAST, t.created_at ASC`,
		userID,
	)
	if err != nil {
		return nil, fmt.Errorf("担当タスク一覧の取得に失敗しました: %w", err)
	}
	return scanTasks(rows)
}

// Search はユーザー($1)が閲覧できるタスクを条件で絞り込んで返す。
func (r *PostgresTaskRepo) Search(ctx context.Context, userID string, criteria model.TaskSearch) ([]*model.Task, error) {
	if !validID(userID) {
		return nil, nil
	}
	query := `SELECT ` + taskColumns + ` FROM tasks t WHERE ` + visibleTasksCondition
	args := []any{userID}
	arg := func(v any) string {
		args = append(args, v)
		return fmt.Sprintf("$%d", len(args))
	}

	if criteria.Query != "" {
		p := arg(criteria.Query)
		query += ` AND (strpos(lower(t.name), lower(` + p + `)) > 0 OR strpos(lower(t.description), lower(` + p + `)) > 0)`
	}
	if criteria.IsCompleted != nil {
		query += ` AND t.is_completed = ` + arg(*criteria.IsCompleted)
	}
	if criteria.DueBefore != nil {
		query += ` AND t.due_date <= ` + arg(*criteria.DueBefore)
	}
	if criteria.AssignedUserID != "" {
		if !validID(criteria.AssignedUserID) {
			return nil, nil
		}
		query += ` AND t.assigned_user_id = ` + arg(criteria.AssignedUserID)
	}
	query += ` ORDER BY t.created_at ASC`

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("タスク検索に失敗しました: %w", err)
	}
	return scanTasks(rows)
}

// Create はタスクを作成する。
func (r *PostgresTaskRepo) Create(ctx context.Context, task *model.Task) error {
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO tasks (id, list_id, name, description, due_date, is_completed,
		                    owner_id, assigned_user_id, created_at, updated_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`,
		task.ID, task.ListID, task.Name, task.Description, task.DueDate, task.IsCompleted,
		task.OwnerID, task.AssignedUserID, task.CreatedAt, task.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("タスクの作成に失敗しました: %w", err)
	}
	return nil
}

// Update はタスクの名前、説明、期限、完了フラグを更新する。
func (r *PostgresTaskRepo) Update(ctx context.Context, task *model.Task) error {
	if !validID(task.ID) {
		return ErrNotFound
	}
	result, err := r.db.ExecContext(ctx,
		`UPDATE tasks
		 SET name = $2, description = $3, due_date = $4, is_completed = $5, updated_at = NOW()
		 WHERE id = $1`,
		task.ID, task.Name, task.Description, task.DueDate, task.IsCompleted,
	)
	if err != nil {
		return fmt.Errorf("タスクの更新に失敗しました: %w", err)
	}
	return rowsAffectedOrNotFound(result)
}

// UpdateAssignee は担当者を更新する。
// 現在の担当者がexpectedAssigneeと一致する行だけを更新するため、
// 同時に担当替えが行われた場合は後発側がErrNotFoundを受け取る。
func (r *PostgresTaskRepo) UpdateAssignee(ctx context.Context, id, expectedAssignee, newAssignee string) error {
	if !validID(id, expectedAssignee, newAssignee) {
		return ErrNotFound
	}
	result, err := r.db.ExecContext(ctx,
		`UPDATE tasks SET assigned_user_id = $3, updated_at = NOW()
		 WHERE id = $1 AND assigned_user_id = $2`,
		id, expectedAssignee, newAssignee,
	)
	if err != nil {
		return fmt.Errorf("担当者の更新に失敗しました: %w", err)
	}
	return rowsAffectedOrNotFound(result)
}

// UpdateCompletion は完了フラグを更新する。
func (r *PostgresTaskRepo) UpdateCompletion(ctx context.Context, id string, isCompleted bool) error {
	if !validID(id) {
		return ErrNotFound
	}
	result, err := r.db.ExecContext(ctx,
		`UPDATE tasks SET is_completed = $2, updated_at = NOW() WHERE id = $1`,
		id, isCompleted,
	)
	if err != nil {
		return fmt.Errorf("完了状態の更新に失敗しました: %w", err)
	}
	return rowsAffectedOrNotFound(result)
}

// Delete はタスクを削除する。コメントとタグ付けはCASCADE削除される。
func (r *PostgresTaskRepo) Delete(ctx context.Context, id string) error {
	if !validID(id) {
		return ErrNotFound
	}
	result, err := r.db.ExecContext(ctx,
		`DELETE FROM tasks WHERE id = $1`,
		id,
	)
	if err != nil {
		return fmt.Errorf("タスクの削除に失敗しました: %w", err)
	}
	return rowsAffectedOrNotFound(result)
}

// compile-time interface check
var _ TaskRepository = (*PostgresTaskRepo)(nil)
