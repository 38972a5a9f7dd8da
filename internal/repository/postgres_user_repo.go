package repository

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/hitoshi/todolist/internal/model"
)

// PostgresUserRepo はPostgreSQLを使用したユーザーリポジトリ。
type PostgresUserRepo struct {
	db Querier
}

// NewPostgresUserRepo はPostgresUserRepoを生成する。
func NewPostgresUserRepo(db Querier) *PostgresUserRepo {
	return &PostgresUserRepo{db: db}
}

const userColumns = `id, username, email, full_name, password_hash, created_at, updated_at`

func scanUser(row interface{ Scan(dest ...any) error }) (*model.User, error) {
	user := &model.User{}
	err := row.Scan(&user.ID, &user.Username, &user.Email, &user.FullName, &user.PasswordHash, &user.CreatedAt, &user.UpdatedAt)
	return user, err
}

// FindByID は指定IDのユーザーを取得する。見つからない場合はnilを返す。
func (r *PostgresUserRepo) FindByID(ctx context.Context, id string) (*model.User, error) {
	if !validID(id) {
		return nil, nil
	}
	user, err := scanUser(r.db.QueryRowContext(ctx,
		`SELECT `+userColumns+` FROM users WHERE id = $1`,
		id,
	))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to find user by ID: %w", err)
	}
	return user, nil
}

// FindByUsername はユーザー名でユーザーを取得する。大文字小文字は区別しない。
func (r *PostgresUserRepo) FindByUsername(ctx context.Context, username string) (*model.User, error) {
	user, err := scanUser(r.db.QueryRowContext(ctx,
		`SELECT `+userColumns+` FROM users WHERE lower(username) = lower($1)`,
		username,
	))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to find user by username: %w", err)
	}
	return user, nil
}

// ListAll は全ユーザーをユーザー名順で返す。
func (r *PostgresUserRepo) ListAll(ctx context.Context) ([]*model.User, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT `+userColumns+` FROM users ORDER BY lower(username) ASC`,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to list users: %w", err)
	}
	defer rows.Close()

	var users []*model.User
	for rows.Next() {
		user, err := scanUser(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan user: %w", err)
		}
		users = append(users, user)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate users: %w", err)
	}
	return users, nil
}

// Create はユーザーを作成する。ユーザー名が重複する場合はErrDuplicateを返す。
func (r *PostgresUserRepo) Create(ctx context.Context, user *model.User) error {
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO users (id, username, email, full_name, password_hash, created_at, updated_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		user.ID, user.Username, user.Email, user.FullName, user.PasswordHash, user.CreatedAt, user.UpdatedAt,
	)
	if isUniqueViolation(err) {
		return ErrDuplicate
	}
	if err != nil {
		return fmt.Errorf("failed to insert user: %w", err)
	}
	return nil
}

// handBackTasksQuery は他ユーザーのリストにある、退会ユーザーが作成または担当するタスクを
// リストのオーナーに引き継ぐ。自分のリストのタスクはリストごと削除されるため対象外。
const handBackTasksQuery = `
UPDATE tasks t
SET owner_id = CASE WHEN t.owner_id = $1 THEN l.owner_id ELSE t.owner_id END,
    assigned_user_id = CASE WHEN t.assigned_user_id = $1 THEN l.owner_id ELSE t.assigned_user_id END,
    updated_at = now()
FROM todo_lists l
WHERE t.list_id = l.id
  AND l.owner_id <> $1
  AND (t.owner_id = $1 OR t.assigned_user_id = $1)`

// DeleteByID は指定IDのユーザーを削除する。
// 他ユーザーのリストにあるタスクはリストのオーナーに引き継いでから削除し、
// 所有リスト、共有、セッションはCASCADE削除される。コメントは作成者IDだけが外れる。
// ユーザー行をロックするため、並行する担当替えやタスク作成は完了まで待たされる。
func (r *PostgresUserRepo) DeleteByID(ctx context.Context, id string) error {
	if !validID(id) {
		return ErrNotFound
	}
	return withTx(ctx, r.db, func(q Querier) error {
		var locked string
		err := q.QueryRowContext(ctx, `SELECT id FROM users WHERE id = $1 FOR UPDATE`, id).Scan(&locked)
		if err == sql.ErrNoRows {
			return ErrNotFound
		}
		if err != nil {
			return fmt.Errorf("failed to lock user: %w", err)
		}

		if _, err := q.ExecContext(ctx, handBackTasksQuery, id); err != nil {
			return fmt.Errorf("failed to hand back tasks: %w", err)
		}

		result, err := q.ExecContext(ctx, `DELETE FROM users WHERE id = $1`, id)
		if err != nil {
			return fmt.Errorf("failed to delete user: %w", err)
		}
		return rowsAffectedOrNotFound(result)
	})
}

// compile-time interface check
var _ UserRepository = (*PostgresUserRepo)(nil)
