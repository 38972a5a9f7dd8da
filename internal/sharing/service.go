// Package sharing はリストの共有（協力者の追加・ロール変更・解除）を扱う。
// 共有の変更はリストのオーナーのみが行える。
package sharing

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/hitoshi/todolist/internal/model"
	"github.com/hitoshi/todolist/internal/repository"
)

// PermissionChecker は共有操作に必要な権限判定インターフェース。
type PermissionChecker interface {
	ResolveRole(ctx context.Context, listID, userID string) (model.Role, error)
	CanViewList(ctx context.Context, listID, userID string) (bool, error)
}

// UserFinder は共有相手の存在確認に使うユーザーディレクトリ。
type UserFinder interface {
	FindByID(ctx context.Context, id string) (*model.User, error)
}

// ChangeRecorder は共有の変更を記録する。metricsパッケージが実装する。
type ChangeRecorder interface {
	RecordShareChange(op string)
}

// 共有変更の種別
const (
	OpShare  = "share"
	OpUpdate = "update"
	OpRemove = "remove"
)

// Service はリスト共有のサービス層。
type Service struct {
	lists    repository.ListRepository
	shares   repository.ShareRepository
	users    UserFinder
	perm     PermissionChecker
	recorder ChangeRecorder
	now      func() time.Time
}

// NewService はServiceの新しいインスタンスを生成する。
func NewService(
	lists repository.ListRepository,
	shares repository.ShareRepository,
	users UserFinder,
	perm PermissionChecker,
) *Service {
	return &Service{
		lists:  lists,
		shares: shares,
		users:  users,
		perm:   perm,
		now:    time.Now,
	}
}

// SetRecorder は共有変更の記録先を設定する。
func (s *Service) SetRecorder(r ChangeRecorder) {
	s.recorder = r
}

// Share はリストをtargetUserIDとroleで共有する。
// 既に共有済みの場合はConflictを返す。事前確認をすり抜けた同時実行の重複は
// 主キー制約違反としてリポジトリから返り、同じConflictに変換される。
func (s *Service) Share(ctx context.Context, listID, targetUserID string, role model.Role, requestingUserID string) error {
	if !role.IsShareable() {
		return model.NewInvalidRoleError(string(role))
	}
	if targetUserID == requestingUserID {
		return model.NewSelfShareError()
	}
	if err := s.requireOwner(ctx, listID, requestingUserID, "リストの共有"); err != nil {
		return err
	}

	target, err := s.users.FindByID(ctx, targetUserID)
	if err != nil {
		return fmt.Errorf("共有相手ユーザーの取得に失敗しました: %w", err)
	}
	if target == nil {
		return model.NewUserNotFoundError(targetUserID)
	}

	existing, err := s.shares.Find(ctx, listID, targetUserID)
	if err != nil {
		return fmt.Errorf("既存の共有レコードの取得に失敗しました: %w", err)
	}
	if existing != nil {
		return model.NewDuplicateShareError()
	}

	now := s.now()
	share := &model.ListShare{
		ListID:    listID,
		UserID:    targetUserID,
		Role:      role,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := s.shares.Create(ctx, share); err != nil {
		if errors.Is(err, repository.ErrDuplicate) {
			return model.NewDuplicateShareError()
		}
		return fmt.Errorf("共有レコードの作成に失敗しました: %w", err)
	}

	slog.Info("リストを共有しました",
		slog.String("list_id", listID),
		slog.String("user_id", requestingUserID),
		slog.String("target_user_id", targetUserID),
		slog.String("role", string(role)),
	)
	s.recordChange(OpShare)
	return nil
}

// UpdateShareRole は既存の共有レコードのロールを変更する。
func (s *Service) UpdateShareRole(ctx context.Context, listID, targetUserID string, newRole model.Role, requestingUserID string) error {
	if !newRole.IsShareable() {
		return model.NewInvalidRoleError(string(newRole))
	}
	if err := s.requireOwner(ctx, listID, requestingUserID, "共有ロールの変更"); err != nil {
		return err
	}

	if err := s.shares.UpdateRole(ctx, listID, targetUserID, newRole); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return model.NewShareNotFoundError(listID, targetUserID)
		}
		return fmt.Errorf("共有ロールの更新に失敗しました: %w", err)
	}

	slog.Info("共有ロールを変更しました",
		slog.String("list_id", listID),
		slog.String("user_id", requestingUserID),
		slog.String("target_user_id", targetUserID),
		slog.String("role", string(newRole)),
	)
	s.recordChange(OpUpdate)
	return nil
}

// RemoveShare は共有を解除する。共有されていない場合はNotFoundを返す。
func (s *Service) RemoveShare(ctx context.Context, listID, targetUserID, requestingUserID string) error {
	if err := s.requireOwner(ctx, listID, requestingUserID, "共有の解除"); err != nil {
		return err
	}

	if err := s.shares.Delete(ctx, listID, targetUserID); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return model.NewShareNotFoundError(listID, targetUserID)
		}
		return fmt.Errorf("共有レコードの削除に失敗しました: %w", err)
	}

	slog.Info("共有を解除しました",
		slog.String("list_id", listID),
		slog.String("user_id", requestingUserID),
		slog.String("target_user_id", targetUserID),
	)
	s.recordChange(OpRemove)
	return nil
}

// ListSharedUsers はリストの共有レコード一覧を返す。
// 閲覧権限があれば、オーナー以外も取得できる。
func (s *Service) ListSharedUsers(ctx context.Context, listID, requestingUserID string) ([]*model.ListShare, error) {
	if err := s.requireList(ctx, listID); err != nil {
		return nil, err
	}
	ok, err := s.perm.CanViewList(ctx, listID, requestingUserID)
	if err != nil {
		return nil, fmt.Errorf("閲覧権限の確認に失敗しました: %w", err)
	}
	if !ok {
		return nil, model.NewForbiddenError("共有ユーザーの一覧取得")
	}

	shares, err := s.shares.ListByList(ctx, listID)
	if err != nil {
		return nil, fmt.Errorf("共有ユーザー一覧の取得に失敗しました: %w", err)
	}
	return shares, nil
}

// ListSharedWithMe はユーザーが共有を受けているリストを返す。
// ユーザー自身が所有するリストは含まない。
func (s *Service) ListSharedWithMe(ctx context.Context, userID string) ([]model.SharedList, error) {
	lists, err := s.shares.ListSharedWithUser(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("共有リスト一覧の取得に失敗しました: %w", err)
	}

	// ストア側の除外に加えて、オーナー自身の行を確実に落とす
	result := make([]model.SharedList, 0, len(lists))
	for _, l := range lists {
		if l.OwnerID == userID {
			continue
		}
		result = append(result, l)
	}
	return result, nil
}

func (s *Service) requireList(ctx context.Context, listID string) error {
	list, err := s.lists.FindByID(ctx, listID)
	if err != nil {
		return fmt.Errorf("リストの取得に失敗しました: %w", err)
	}
	if list == nil {
		return model.NewListNotFoundError(listID)
	}
	return nil
}

// requireOwner はリストが存在し、requestingUserIDがオーナーであることを確認する。
func (s *Service) requireOwner(ctx context.Context, listID, requestingUserID, operation string) error {
	if err := s.requireList(ctx, listID); err != nil {
		return err
	}
	role, err := s.perm.ResolveRole(ctx, listID, requestingUserID)
	if err != nil {
		return fmt.Errorf("ロールの解決に失敗しました: %w", err)
	}
	if role != model.RoleOwner {
		slog.Warn("オーナー以外による共有操作を拒否しました",
			slog.String("list_id", listID),
			slog.String("user_id", requestingUserID),
			slog.String("role", string(role)),
		)
		return model.NewForbiddenError(operation)
	}
	return nil
}

func (s *Service) recordChange(op string) {
	if s.recorder != nil {
		s.recorder.RecordShareChange(op)
	}
}
