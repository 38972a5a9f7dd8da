package repository

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"github.com/hitoshi/todolist/internal/model"
)

// PostgresTagRepo はPostgreSQLを使用したタグリポジトリ。
type PostgresTagRepo struct {
	db Querier
}

// NewPostgresTagRepo はPostgresTagRepoを生成する。
func NewPostgresTagRepo(db Querier) *PostgresTagRepo {
	return &PostgresTagRepo{db: db}
}

// visibleTasksCondition はユーザー($1)が閲覧できるタスクtの条件。
// 所有リスト、共有リスト、または自分が担当者のタスク。
const visibleTasksCondition = `(
	t.assigned_user_id = $1
	OR EXISTS (SELECT 1 FROM todo_lists l WHERE l.id = t.list_id AND l.owner_id = $1)
	OR EXISTS (SELECT 1 FROM list_shares s WHERE s.list_id = t.list_id AND s.user_id = $1)
)`

// ListByTask はタスクに付いたタグを名前順で返す。
func (r *PostgresTagRepo) ListByTask(ctx context.Context, taskID string) ([]*model.Tag, error) {
	if !validID(taskID) {
		return nil, nil
	}
	rows, err := r.db.QueryContext(ctx,
		`SELECT g.id, g.name
		 FROM task_tags tt
		 JOIN tags g ON g.id = tt.tag_id
		 WHERE tt.task_id = $1
		 ORDER BY lower(g.name) ASC`,
		taskID,
	)
	if err != nil {
		return nil, fmt.Errorf("タグ一覧の取得に失敗しました: %w", err)
	}
	defer rows.Close()

	var tags []*model.Tag
	for rows.Next() {
		tag := &model.Tag{}
		if err := rows.Scan(&tag.ID, &tag.Name); err != nil {
			return nil, fmt.Errorf("タグ行の読み取りに失敗しました: %w", err)
		}
		tags = append(tags, tag)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("タグ一覧の走査に失敗しました: %w", err)
	}
	return tags, nil
}

// Attach はタグ名でタグを検索または作成し、タスクに付与する。
// tagsのlower(name)一意インデックスとtask_tagsの主キーにより、
// 同時実行時も重複行は作られない。
func (r *PostgresTagRepo) Attach(ctx context.Context, taskID, name string) (*model.Tag, error) {
	if !validID(taskID) {
		return nil, ErrNotFound
	}

	if _, err := r.db.ExecContext(ctx,
		`INSERT INTO tags (id, name) VALUES ($1, $2) ON CONFLICT DO NOTHING`,
		uuid.New().String(), name,
	); err != nil {
		return nil, fmt.Errorf("タグの作成に失敗しました: %w", err)
	}

	tag := &model.Tag{}
	err := r.db.QueryRowContext(ctx,
		`SELECT id, name FROM tags WHERE lower(name) = lower($1)`,
		name,
	).Scan(&tag.ID, &tag.Name)
	if err != nil {
		return nil, fmt.Errorf("タグの取得に失敗しました: %w", err)
	}

	if _, err := r.db.ExecContext(ctx,
		`INSERT INTO task_tags (task_id, tag_id) VALUES ($1, $2) ON CONFLICT DO NOTHING`,
		taskID, tag.ID,
	); err != nil {
		return nil, fmt.Errorf("タグの付与に失敗しました: %w", err)
	}
	return tag, nil
}

// Detach はタスクからタグ名のタグを外す。付与されていない場合はErrNotFoundを返す。
func (r *PostgresTagRepo) Detach(ctx context.Context, taskID, name string) error {
	if !validID(taskID) {
		return ErrNotFound
	}
	result, err := r.db.ExecContext(ctx,
		`DELETE FROM task_tags tt
		 USING tags g
		 WHERE tt.tag_id = g.id AND tt.task_id = $1 AND lower(g.name) = lower($2)`,
		taskID, name,
	)
	if err != nil {
		return fmt.Errorf("タグの解除に失敗しました: %w", err)
	}
	return rowsAffectedOrNotFound(result)
}

// ListVisibleNames はユーザーが閲覧できるタスクに付いたタグ名を重複なしで返す。
func (r *PostgresTagRepo) ListVisibleNames(ctx context.Context, userID string) ([]string, error) {
	if !validID(userID) {
		return nil, nil
	}
	rows, err := r.db.QueryContext(ctx,
		`SELECT DISTINCT g.name, lower(g.name)
		 FROM tags g
		 JOIN task_tags tt ON tt.tag_id = g.id
		 JOIN tasks t ON t.id = tt.task_id
		 WHERE `+visibleTasksCondition+`
		 ORDER BY lower(g.name) ASC`,
		userID,
	)
	if err != nil {
		return nil, fmt.Errorf("タグ名一覧の取得に失敗しました: %w", err)
	}
	defer rows.Close()

	var names []string
	for rows.Next() {
		var name, sortKey string
		if err := rows.Scan(&name, &sortKey); err != nil {
			return nil, fmt.Errorf("タグ名の読み取りに失敗しました: %w", err)
		}
		names = append(names, name)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("タグ名一覧の走査に失敗しました: %w", err)
	}
	return names, nil
}

// ListVisibleTasksByTag はユーザーが閲覧できるタスクのうち指定タグが付いたものを返す。
func (r *PostgresTagRepo) ListVisibleTasksByTag(ctx context.Context, userID, name string) ([]*model.Task, error) {
	if !validID(userID) {
		return nil, nil
	}
	rows, err := r.db.QueryContext(ctx,
		`SELECT `+taskColumns+`
		 FROM tasks t
		 JOIN task_tags tt ON tt.task_id = t.id
		 JOIN tags g ON g.id = tt.tag_id
		 WHERE lower(g.name) = lower($2) AND `+visibleTasksCondition+`
		 ORDER BY t.created_at ASC`,
		userID, name,
	)
	if err != nil {
		return nil, fmt.Errorf("タグ別タスク一覧の取得に失敗しました: %w", err)
	}
	return scanTasks(rows)
}

// compile-time interface check
var _ TagRepository = (*PostgresTagRepo)(nil)
