// Package todolist はリストの作成・取得・更新・削除を扱う。
package todolist

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"

	"github.com/hitoshi/todolist/internal/model"
	"github.com/hitoshi/todolist/internal/repository"
	"github.com/hitoshi/todolist/internal/security"
)

// MaxNameLength はリスト名の最大文字数。
const MaxNameLength = 200

// PermissionChecker はリスト操作に必要な権限判定インターフェース。
type PermissionChecker interface {
	ResolveRole(ctx context.Context, listID, userID string) (model.Role, error)
	CanEditList(ctx context.Context, listID, userID string) (bool, error)
	CanDeleteList(ctx context.Context, listID, userID string) (bool, error)
}

// ListWithRole はリストと呼び出しユーザーの実効ロールの組。
type ListWithRole struct {
	List *model.TodoList
	Role model.Role
}

// Service はリスト管理のサービス層。
type Service struct {
	lists     repository.ListRepository
	perm      PermissionChecker
	sanitizer security.TextSanitizer
	now       func() time.Time
}

// NewService はServiceの新しいインスタンスを生成する。
func NewService(lists repository.ListRepository, perm PermissionChecker, sanitizer security.TextSanitizer) *Service {
	return &Service{
		lists:     lists,
		perm:      perm,
		sanitizer: sanitizer,
		now:       time.Now,
	}
}

func (s *Service) normalize(name, description string) (string, string, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return "", "", model.NewValidationError("リスト名は必須です")
	}
	if utf8.RuneCountInString(name) > MaxNameLength {
		return "", "", model.NewValidationError(fmt.Sprintf("リスト名は%d文字以内で指定してください", MaxNameLength))
	}
	return name, s.sanitizer.Sanitize(description), nil
}

// CreateList はownerIDをオーナーとするリストを作成する。
func (s *Service) CreateList(ctx context.Context, ownerID, name, description string) (*model.TodoList, error) {
	name, description, err := s.normalize(name, description)
	if err != nil {
		return nil, err
	}

	now := s.now()
	list := &model.TodoList{
		ID:          uuid.New().String(),
		Name:        name,
		Description: description,
		OwnerID:     ownerID,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if err := s.lists.Create(ctx, list); err != nil {
		return nil, fmt.Errorf("リストの作成に失敗しました: %w", err)
	}

	slog.Info("リストを作成しました",
		slog.String("list_id", list.ID),
		slog.String("user_id", ownerID),
	)
	return list, nil
}

// GetList はリストと呼び出しユーザーのロールを返す。
// リストが存在しない場合はNotFound、ロールがない場合はForbiddenを返す。
func (s *Service) GetList(ctx context.Context, userID, listID string) (*ListWithRole, error) {
	list, err := s.findList(ctx, listID)
	if err != nil {
		return nil, err
	}
	role, err := s.perm.ResolveRole(ctx, listID, userID)
	if err != nil {
		return nil, fmt.Errorf("ロールの解決に失敗しました: %w", err)
	}
	if role == model.RoleNone {
		return nil, model.NewForbiddenError("リストの閲覧")
	}
	return &ListWithRole{List: list, Role: role}, nil
}

// ListOwned はユーザーが所有するリストを返す。
func (s *Service) ListOwned(ctx context.Context, userID string) ([]*model.TodoList, error) {
	lists, err := s.lists.ListByOwner(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("リスト一覧の取得に失敗しました: %w", err)
	}
	return lists, nil
}

// UpdateList はリストの名前と説明を更新する。オーナーとEditorが更新できる。
func (s *Service) UpdateList(ctx context.Context, userID, listID, name, description string) (*model.TodoList, error) {
	name, description, err := s.normalize(name, description)
	if err != nil {
		return nil, err
	}
	list, err := s.findList(ctx, listID)
	if err != nil {
		return nil, err
	}
	ok, err := s.perm.CanEditList(ctx, listID, userID)
	if err != nil {
		return nil, fmt.Errorf("編集権限の確認に失敗しました: %w", err)
	}
	if !ok {
		return nil, model.NewForbiddenError("リストの編集")
	}

	list.Name = name
	list.Description = description
	if err := s.lists.Update(ctx, list); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, model.NewListNotFoundError(listID)
		}
		return nil, fmt.Errorf("リストの更新に失敗しました: %w", err)
	}
	list.UpdatedAt = s.now()

	slog.Info("リストを更新しました",
		slog.String("list_id", listID),
		slog.String("user_id", userID),
	)
	return list, nil
}

// DeleteList はリストを削除する。オーナーのみが削除できる。
// タスク、共有、コメント、タグ付けはストアのCASCADEで削除される。
func (s *Service) DeleteList(ctx context.Context, userID, listID string) error {
	if _, err := s.findList(ctx, listID); err != nil {
		return err
	}
	ok, err := s.perm.CanDeleteList(ctx, listID, userID)
	if err != nil {
		return fmt.Errorf("削除権限の確認に失敗しました: %w", err)
	}
	if !ok {
		return model.NewForbiddenError("リストの削除")
	}

	if err := s.lists.Delete(ctx, listID); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return model.NewListNotFoundError(listID)
		}
		return fmt.Errorf("リストの削除に失敗しました: %w", err)
	}

	slog.Info("リストを削除しました",
		slog.String("list_id", listID),
		slog.String("user_id", userID),
	)
	return nil
}

func (s *Service) findList(ctx context.Context, listID string) (*model.TodoList, error) {
	list, err := s.lists.FindByID(ctx, listID)
	if err != nil {
		return nil, fmt.Errorf("リストの取得に失敗しました: %w", err)
	}
	if list == nil {
		return nil, model.NewListNotFoundError(listID)
	}
	return list, nil
}
