package repository

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/hitoshi/todolist/internal/model"
)

// PostgresCommentRepo はPostgreSQLを使用したコメントリポジトリ。
type PostgresCommentRepo struct {
	db Querier
}

// NewPostgresCommentRepo はPostgresCommentRepoを生成する。
func NewPostgresCommentRepo(db Querier) *PostgresCommentRepo {
	return &PostgresCommentRepo{db: db}
}

// FindByID は指定IDのコメントを取得する。見つからない場合はnilを返す。
func (r *PostgresCommentRepo) FindByID(ctx context.Context, id string) (*model.Comment, error) {
	if !validID(id) {
		return nil, nil
	}
	c := &model.Comment{}
	err := r.db.QueryRowContext(ctx,
		`SELECT id, task_id, COALESCE(user_id::text, ''), user_name, text, created_at, updated_at
		 FROM comments WHERE id = $1`,
		id,
	).Scan(&c.ID, &c.TaskID, &c.UserID, &c.UserName, &c.Text, &c.CreatedAt, &c.UpdatedAt)

	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("コメントの取得に失敗しました: %w", err)
	}
	return c, nil
}

// ListByTask はタスクのコメントを作成日時の昇順で返す。
func (r *PostgresCommentRepo) ListByTask(ctx context.Context, taskID string) ([]*model.Comment, error) {
	if !validID(taskID) {
		return nil, nil
	}
	rows, err := r.db.QueryContext(ctx,
		`SELECT id, task_id, COALESCE(user_id::text, ''), user_name, text, created_at, updated_at
		 FROM comments WHERE task_id = $1 ORDER BY created_at ASC`,
		taskID,
	)
	if err != nil {
		return nil, fmt.Errorf("コメント一覧の取得に失敗しました: %w", err)
	}
	defer rows.Close()

	var comments []*model.Comment
	for rows.Next() {
		c := &model.Comment{}
		if err := rows.Scan(&c.ID, &c.TaskID, &c.UserID, &c.UserName, &c.Text, &c.CreatedAt, &c.UpdatedAt); err != nil {
			return nil, fmt.Errorf("コメント行の読み取りに失敗しました: %w", err)
		}
		comments = append(comments, c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("コメント一覧の走査に失敗しました: %w", err)
	}
	return comments, nil
}

// Create はコメントを作成する。
func (r *PostgresCommentRepo) Create(ctx context.Context, c *model.Comment) error {
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO comments (id, task_id, user_id, user_name, text, created_at, updated_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		c.ID, c.TaskID, c.UserID, c.UserName, c.Text, c.CreatedAt, c.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("コメントの作成に失敗しました: %w", err)
	}
	return nil
}

// UpdateText はコメント本文を更新する。
func (r *PostgresCommentRepo) UpdateText(ctx context.Context, id, text string) error {
	if !validID(id) {
		return ErrNotFound
	}
	result, err := r.db.ExecContext(ctx,
		`UPDATE comments SET text = $2, updated_at = NOW() WHERE id = $1`,
		id, text,
	)
	if err != nil {
		return fmt.Errorf("コメントの更新に失敗しました: %w", err)
	}
	return rowsAffectedOrNotFound(result)
}

// Delete はコメントを削除する。
func (r *PostgresCommentRepo) Delete(ctx context.Context, id string) error {
	if !validID(id) {
		return ErrNotFound
	}
	result, err := r.db.ExecContext(ctx,
		`DELETE FROM comments WHERE id = $1`,
		id,
	)
	if err != nil {
		return fmt.Errorf("コメントの削除に失敗しました: %w", err)
	}
	return rowsAffectedOrNotFound(result)
}

// compile-time interface check
var _ CommentRepository = (*PostgresCommentRepo)(nil)
