// Package database はtodolistスキーマへの接続とマイグレーション管理を提供する。
package database

import (
	"embed"
	"errors"
	"fmt"

	"github.com/golang-migrate/migrate/v4"
	_ "github.com/golang-migrate/migrate/v4/database/postgres"
	"github.com/golang-migrate/migrate/v4/source/iofs"
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

// NewMigrator はtodolistスキーマ用のmigrateインスタンスを生成する。
func NewMigrator(databaseURL string) (*migrate.Migrate, error) {
	source, err := iofs.New(migrationsFS, "migrations")
	if err != nil {
		return nil, fmt.Errorf("todolist schema: migration source: %w", err)
	}

	m, err := migrate.NewWithSourceInstance("iofs", source, databaseURL)
	if err != nil {
		return nil, fmt.Errorf("todolist schema: create migrator: %w", err)
	}

	return m, nil
}

// RunMigrations はtodolistスキーマの未適用マイグレーションをすべて適用する。
// すでに最新の場合はエラーなしで返る。途中で失敗してdirtyになった場合は
// 手動で `migrate force` するまで失敗し続けるため、バージョンをメッセージに含める。
func RunMigrations(databaseURL string) error {
	m, err := NewMigrator(databaseURL)
	if err != nil {
		return err
	}
	defer m.Close()

	err = m.Up()
	if err == nil || errors.Is(err, migrate.ErrNoChange) {
		return nil
	}

	var dirty migrate.ErrDirty
	if errors.As(err, &dirty) {
		return fmt.Errorf("todolist schema is dirty at version %d, fix it and force the version: %w", dirty.Version, err)
	}
	return fmt.Errorf("todolist schema: run migrations: %w", err)
}
