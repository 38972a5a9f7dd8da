package repository

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/hitoshi/todolist/internal/model"
)

// PostgresShareRepo はPostgreSQLを使用したリスト共有リポジトリ。
type PostgresShareRepo struct {
	db Querier
}

// NewPostgresShareRepo はPostgresShareRepoを生成する。
func NewPostgresShareRepo(db Querier) *PostgresShareRepo {
	return &PostgresShareRepo{db: db}
}

// Find は(listID, userID)の共有レコードを取得する。見つからない場合はnilを返す。
func (r *PostgresShareRepo) Find(ctx context.Context, listID, userID string) (*model.ListShare, error) {
	if !validID(listID, userID) {
		return nil, nil
	}
	share := &model.ListShare{}
	err := r.db.QueryRowContext(ctx,
		`SELECT list_id, user_id, role, created_at, updated_at
		 FROM list_shares WHERE list_id = $1 AND user_id = $2`,
		listID, userID,
	).Scan(&share.ListID, &share.UserID, &share.Role, &share.CreatedAt, &share.UpdatedAt)

	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("共有レコードの取得に失敗しました: %w", err)
	}
	return share, nil
}

// ListByList はリストの全共有レコードを共有日時順で返す。
func (r *PostgresShareRepo) ListByList(ctx context.Context, listID string) ([]*model.ListShare, error) {
	if !validID(listID) {
		return nil, nil
	}
	rows, err := r.db.QueryContext(ctx,
		`SELECT list_id, user_id, role, created_at, updated_at
		 FROM list_shares WHERE list_id = $1 ORDER BY created_at ASC`,
		listID,
	)
	if err != nil {
		return nil, fmt.Errorf("共有一覧の取得に失敗しました: %w", err)
	}
	defer rows.Close()

	var shares []*model.ListShare
	for rows.Next() {
		share := &model.ListShare{}
		if err := rows.Scan(&share.ListID, &share.UserID, &share.Role, &share.CreatedAt, &share.UpdatedAt); err != nil {
			return nil, fmt.Errorf("共有行の読み取りに失敗しました: %w", err)
		}
		shares = append(shares, share)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("共有一覧の走査に失敗しました: %w", err)
	}
	return shares, nil
}

// ListSharedWithUser はユーザーが共有を受けているリストを返す。
// 所有者自身の行が紛れ込んでいても l.owner_id <> $1 で除外する。
func (r *PostgresShareRepo) ListSharedWithUser(ctx context.Context, userID string) ([]model.SharedList, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT l.id, l.name, l.description, l.owner_id, u.username, s.role, s.created_at
		 FROM list_shares s
		 JOIN todo_lists l ON l.id = s.list_id
		 JOIN users u ON u.id = l.owner_id
		 WHERE s.user_id = $1 AND l.owner_id <> $1
		 ORDER BY s.created_at DESC`,
		userID,
	)
	if err != nil {
		return nil, fmt.Errorf("共有リスト一覧の取得に失敗しました: %w", err)
	}
	defer rows.Close()

	var results []model.SharedList
	for rows.Next() {
		var sl model.SharedList
		if err := rows.Scan(&sl.ListID, &sl.Name, &sl.Description, &sl.OwnerID, &sl.OwnerUsername, &sl.Role, &sl.SharedAt); err != nil {
			return nil, fmt.Errorf("共有リスト行の読み取りに失敗しました: %w", err)
		}
		results = append(results, sl)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("共有リスト一覧の走査に失敗しました: %w", err)
	}
	return results, nil
}

// Create は共有レコードを作成する。
// 主キー(list_id, user_id)の一意制約違反はErrDuplicateとして返す。
func (r *PostgresShareRepo) Create(ctx context.Context, share *model.ListShare) error {
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO list_shares (list_id, user_id, role, created_at, updated_at)
		 VALUES ($1, $2, $3, $4, $5)`,
		share.ListID, share.UserID, string(share.Role), share.CreatedAt, share.UpdatedAt,
	)
	if isUniqueViolation(err) {
		return ErrDuplicate
	}
	if err != nil {
		return fmt.Errorf("共有レコードの作成に失敗しました: %w", err)
	}
	return nil
}

// UpdateRole は共有レコードのロールを更新する。
func (r *PostgresShareRepo) UpdateRole(ctx context.Context, listID, userID string, role model.Role) error {
	if !validID(listID, userID) {
		return ErrNotFound
	}
	result, err := r.db.ExecContext(ctx,
		`UPDATE list_shares SET role = $3, updated_at = NOW() WHERE list_id = $1 AND user_id = $2`,
		listID, userID, string(role),
	)
	if err != nil {
		return fmt.Errorf("共有ロールの更新に失敗しました: %w", err)
	}
	return rowsAffectedOrNotFound(result)
}

// Delete は共有レコードを削除する。
func (r *PostgresShareRepo) Delete(ctx context.Context, listID, userID string) error {
	if !validID(listID, userID) {
		return ErrNotFound
	}
	result, err := r.db.ExecContext(ctx,
		`DELETE FROM list_shares WHERE list_id = $1 AND user_id = $2`,
		listID, userID,
	)
	if err != nil {
		return fmt.Errorf("共有レコードの削除に失敗しました: %w", err)
	}
	return rowsAffectedOrNotFound(result)
}

// compile-time interface check
var _ ShareRepository = (*PostgresShareRepo)(nil)
