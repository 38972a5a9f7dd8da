package repository

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/hitoshi/todolist/internal/model"
)

// PostgresListRepo はPostgreSQLを使用したリストリポジトリ。
type PostgresListRepo struct {
	db Querier
}

// NewPostgresListRepo はPostgresListRepoを生成する。
func NewPostgresListRepo(db Querier) *PostgresListRepo {
	return &PostgresListRepo{db: db}
}

// FindByID は指定IDのリストを取得する。見つからない場合はnilを返す。
func (r *PostgresListRepo) FindByID(ctx context.Context, id string) (*model.TodoList, error) {
	if !validID(id) {
		return nil, nil
	}
	list := &model.TodoList{}
	err := r.db.QueryRowContext(ctx,
		`SELECT id, name, description, owner_id, created_at, updated_at
		 FROM todo_lists WHERE id = $1`,
		id,
	).Scan(&list.ID, &list.Name, &list.Description, &list.OwnerID, &list.CreatedAt, &list.UpdatedAt)

	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("リストの取得に失敗しました: %w", err)
	}
	return list, nil
}

// ListByOwner はユーザーが所有するリストを作成日時順で返す。
func (r *PostgresListRepo) ListByOwner(ctx context.Context, ownerID string) ([]*model.TodoList, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT id, name, description, owner_id, created_at, updated_at
		 FROM todo_lists WHERE owner_id = $1 ORDER BY created_at ASC`,
		ownerID,
	)
	if err != nil {
		return nil, fmt.Errorf("リスト一覧の取得に失敗しました: %w", err)
	}
	defer rows.Close()

	var lists []*model.TodoList
	for rows.Next() {
		list := &model.TodoList{}
		if err := rows.Scan(&list.ID, &list.Name, &list.Description, &list.OwnerID, &list.CreatedAt, &list.UpdatedAt); err != nil {
			return nil, fmt.Errorf("リスト行の読み取りに失敗しました: %w", err)
		}
		lists = append(lists, list)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("リスト一覧の走査に失敗しました: %w", err)
	}
	return lists, nil
}

// Create はリストを作成する。
func (r *PostgresListRepo) Create(ctx context.Context, list *model.TodoList) error {
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO todo_lists (id, name, description, owner_id, created_at, updated_at)
		 VALUES ($1, $2, $3, $4, $5, $6)`,
		list.ID, list.Name, list.Description, list.OwnerID, list.CreatedAt, list.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("リストの作成に失敗しました: %w", err)
	}
	return nil
}

// Update はリストの名前と説明を更新する。OwnerIDは変更しない。
func (r *PostgresListRepo) Update(ctx context.Context, list *model.TodoList) error {
	if !validID(list.ID) {
		return ErrNotFound
	}
	result, err := r.db.ExecContext(ctx,
		`UPDATE todo_lists SET name = $2, description = $3, updated_at = NOW() WHERE id = $1`,
		list.ID, list.Name, list.Description,
	)
	if err != nil {
		return fmt.Errorf("リストの更新に失敗しました: %w", err)
	}
	return rowsAffectedOrNotFound(result)
}

// Delete はリストを削除する。タスク、共有はCASCADE削除される。
func (r *PostgresListRepo) Delete(ctx context.Context, id string) error {
	if !validID(id) {
		return ErrNotFound
	}
	result, err := r.db.ExecContext(ctx,
		`DELETE FROM todo_lists WHERE id = $1`,
		id,
	)
	if err != nil {
		return fmt.Errorf("リストの削除に失敗しました: %w", err)
	}
	return rowsAffectedOrNotFound(result)
}

// compile-time interface check
var _ ListRepository = (*PostgresListRepo)(nil)
