package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/lib/pq"
)

// pgUniqueViolation はPostgreSQLの一意制約違反のSQLSTATE。
const pgUniqueViolation = "23505"

// isUniqueViolation はerrがPostgreSQLの一意制約違反かどうかを判定する。
func isUniqueViolation(err error) bool {
	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		return pqErr.Code == pgUniqueViolation
	}
	return false
}

// affectedOrNotFound はUPDATE/DELETEの影響行数が0の場合にErrNotFoundを返す。
func affectedOrNotFound(rowsAffected int64) error {
	if rowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

// validID はidがUUIDとして解釈できるかを返す。
// UUID列に不正な文字列を渡すとPostgreSQLが構文エラーを返すため、
// 検索前に弾いて「存在しない」として扱う。
func validID(ids ...string) bool {
	for _, id := range ids {
		if _, err := uuid.Parse(id); err != nil {
			return false
		}
	}
	return true
}

// rowsAffectedOrNotFound はsql.Resultの影響行数を確認し、0件ならErrNotFoundを返す。
func rowsAffectedOrNotFound(result sql.Result) error {
	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("影響行数の取得に失敗しました: %w", err)
	}
	return affectedOrNotFound(rowsAffected)
}

// withTx はfnをトランザクション内で実行する。
// dbが既に*sql.Txの場合などトランザクションを開始できない場合はそのまま実行する。
func withTx(ctx context.Context, db Querier, fn func(q Querier) error) error {
	beginner, ok := db.(TxBeginner)
	if !ok {
		return fn(db)
	}
	tx, err := beginner.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("トランザクションの開始に失敗しました: %w", err)
	}
	if err := fn(tx); err != nil {
		_ = tx.Rollback()
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("トランザクションのコミットに失敗しました: %w", err)
	}
	return nil
}
