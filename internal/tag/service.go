// Package tag はタスクへのタグ付けを扱う。
// タグ名は大文字小文字を区別せず、初めて使われた時点で作成される。
package tag

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"unicode/utf8"

	"github.com/hitoshi/todolist/internal/model"
	"github.com/hitoshi/todolist/internal/repository"
)

// MaxNameLength はタグ名の最大文字数。
const MaxNameLength = 50

// PermissionChecker はタグ操作に必要な権限判定インターフェース。
type PermissionChecker interface {
	CanManageTags(ctx context.Context, taskID, userID string) (bool, error)
	CanViewTask(ctx context.Context, taskID, userID string) (bool, error)
}

// TaskFinder はタグ付け対象タスクの検索インターフェース。
type TaskFinder interface {
	FindByID(ctx context.Context, id string) (*model.Task, error)
}

// Service はタグ管理のサービス層。
type Service struct {
	tags  repository.TagRepository
	tasks TaskFinder
	perm  PermissionChecker
}

// NewService はServiceの新しいインスタンスを生成する。
func NewService(tags repository.TagRepository, tasks TaskFinder, perm PermissionChecker) *Service {
	return &Service{tags: tags, tasks: tasks, perm: perm}
}

// normalizeName はタグ名の前後空白を除去して検証する。
func normalizeName(name string) (string, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return "", model.NewValidationError("タグ名は必須です")
	}
	if utf8.RuneCountInString(name) > MaxNameLength {
		return "", model.NewValidationError(fmt.Sprintf("タグ名は%d文字以内で入力してください", MaxNameLength))
	}
	if strings.ContainsAny(name, "/,") {
		return "", model.NewValidationError("タグ名に / や , は使えません")
	}
	return name, nil
}

// AddTag はタスクにタグを付与する。既に付与済みの場合は既存のタグを返す。
func (s *Service) AddTag(ctx context.Context, userID, taskID, name string) (*model.Tag, error) {
	name, err := normalizeName(name)
	if err != nil {
		return nil, err
	}
	if err := s.requireTask(ctx, taskID); err != nil {
		return nil, err
	}
	if err := s.requireManage(ctx, taskID, userID, "タグの追加"); err != nil {
		return nil, err
	}

	tag, err := s.tags.Attach(ctx, taskID, name)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, model.NewTaskNotFoundError(taskID)
		}
		return nil, fmt.Errorf("タグの付与に失敗しました: %w", err)
	}

	slog.Info("タグを付与しました",
		slog.String("task_id", taskID),
		slog.String("tag", tag.Name),
		slog.String("user_id", userID),
	)
	return tag, nil
}

// RemoveTag はタスクからタグを外す。
func (s *Service) RemoveTag(ctx context.Context, userID, taskID, name string) error {
	name, err := normalizeName(name)
	if err != nil {
		return err
	}
	if err := s.requireTask(ctx, taskID); err != nil {
		return err
	}
	if err := s.requireManage(ctx, taskID, userID, "タグの削除"); err != nil {
		return err
	}

	if err := s.tags.Detach(ctx, taskID, name); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return model.NewTagNotFoundError(name)
		}
		return fmt.Errorf("タグの削除に失敗しました: %w", err)
	}

	slog.Info("タグを外しました",
		slog.String("task_id", taskID),
		slog.String("tag", name),
		slog.String("user_id", userID),
	)
	return nil
}

// TagsForTask はタスクに付いたタグを返す。
func (s *Service) TagsForTask(ctx context.Context, userID, taskID string) ([]*model.Tag, error) {
	if err := s.requireTask(ctx, taskID); err != nil {
		return nil, err
	}
	ok, err := s.perm.CanViewTask(ctx, taskID, userID)
	if err != nil {
		return nil, fmt.Errorf("タスク閲覧権限の確認に失敗しました: %w", err)
	}
	if !ok {
		return nil, model.NewForbiddenError("タグの閲覧")
	}

	tags, err := s.tags.ListByTask(ctx, taskID)
	if err != nil {
		return nil, fmt.Errorf("タグ一覧の取得に失敗しました: %w", err)
	}
	return tags, nil
}

// AllTags はユーザーが閲覧できるタスクに付いたタグ名を返す。
func (s *Service) AllTags(ctx context.Context, userID string) ([]string, error) {
	names, err := s.tags.ListVisibleNames(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("タグ一覧の取得に失敗しました: %w", err)
	}
	return names, nil
}

// TasksByTag はユーザーが閲覧できるタスクのうち、指定タグが付いたものを返す。
// 該当するタスクがない場合は空のスライスを返す。
func (s *Service) TasksByTag(ctx context.Context, userID, name string) ([]*model.Task, error) {
	name, err := normalizeName(name)
	if err != nil {
		return nil, err
	}
	tasks, err := s.tags.ListVisibleTasksByTag(ctx, userID, name)
	if err != nil {
		return nil, fmt.Errorf("タグ別タスク一覧の取得に失敗しました: %w", err)
	}
	if tasks == nil {
		tasks = []*model.Task{}
	}
	return tasks, nil
}

func (s *Service) requireTask(ctx context.Context, taskID string) error {
	task, err := s.tasks.FindByID(ctx, taskID)
	if err != nil {
		return fmt.Errorf("タスクの取得に失敗しました: %w", err)
	}
	if task == nil {
		return model.NewTaskNotFoundError(taskID)
	}
	return nil
}

func (s *Service) requireManage(ctx context.Context, taskID, userID, operation string) error {
	ok, err := s.perm.CanManageTags(ctx, taskID, userID)
	if err != nil {
		return fmt.Errorf("タグ管理権限の確認に失敗しました: %w", err)
	}
	if !ok {
		slog.Warn("タグ操作を拒否しました",
			slog.String("task_id", taskID),
			slog.String("user_id", userID),
		)
		return model.NewForbiddenError(operation)
	}
	return nil
}
