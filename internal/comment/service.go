// Package comment はタスクへのコメントの追加・編集・削除を扱う。
//
// コメントの閲覧と追加はリストの全参加者ができる。
// 編集は作成者のみ、削除は作成者またはリストのタスク管理権限を持つユーザーができる。
package comment

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"

	"github.com/hitoshi/todolist/internal/model"
	"github.com/hitoshi/todolist/internal/repository"
	"github.com/hitoshi/todolist/internal/security"
)

// MaxTextLength はコメント本文の最大文字数。
const MaxTextLength = 2000

// PermissionChecker はコメント操作に必要な権限判定インターフェース。
type PermissionChecker interface {
	CanManageComments(ctx context.Context, taskID, userID string) (bool, error)
	CanManageTasks(ctx context.Context, listID, userID string) (bool, error)
}

// TaskFinder はコメントの親タスク検索インターフェース。
type TaskFinder interface {
	FindByID(ctx context.Context, id string) (*model.Task, error)
}

// Service はコメント管理のサービス層。
type Service struct {
	comments  repository.CommentRepository
	tasks     TaskFinder
	perm      PermissionChecker
	sanitizer security.TextSanitizer
	now       func() time.Time
}

// NewService はServiceの新しいインスタンスを生成する。
func NewService(
	comments repository.CommentRepository,
	tasks TaskFinder,
	perm PermissionChecker,
	sanitizer security.TextSanitizer,
) *Service {
	return &Service{
		comments:  comments,
		tasks:     tasks,
		perm:      perm,
		sanitizer: sanitizer,
		now:       time.Now,
	}
}

func (s *Service) cleanText(text string) (string, error) {
	cleaned := s.sanitizer.Sanitize(text)
	if cleaned == "" {
		return "", model.NewValidationError("コメント本文は必須です")
	}
	if utf8.RuneCountInString(cleaned) > MaxTextLength {
		return "", model.NewValidationError(fmt.Sprintf("コメントは%d文字以内で入力してください", MaxTextLength))
	}
	return cleaned, nil
}

// ListComments はタスクのコメントを古い順に返す。
func (s *Service) ListComments(ctx context.Context, userID, taskID string) ([]*model.Comment, error) {
	if _, err := s.findTask(ctx, taskID); err != nil {
		return nil, err
	}
	if err := s.requireCommentAccess(ctx, taskID, userID, "コメントの閲覧"); err != nil {
		return nil, err
	}

	comments, err := s.comments.ListByTask(ctx, taskID)
	if err != nil {
		return nil, fmt.Errorf("コメント一覧の取得に失敗しました: %w", err)
	}
	return comments, nil
}

// AddComment はタスクにコメントを追加する。
// userNameは書き込み時点の表示名として保存し、後から更新しない。
func (s *Service) AddComment(ctx context.Context, taskID, userID, userName, text string) (*model.Comment, error) {
	cleaned, err := s.cleanText(text)
	if err != nil {
		return nil, err
	}
	if _, err := s.findTask(ctx, taskID); err != nil {
		return nil, err
	}
	if err := s.requireCommentAccess(ctx, taskID, userID, "コメントの追加"); err != nil {
		return nil, err
	}

	now := s.now()
	c := &model.Comment{
		ID:        uuid.New().String(),
		TaskID:    taskID,
		UserID:    userID,
		UserName:  userName,
		Text:      cleaned,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := s.comments.Create(ctx, c); err != nil {
		return nil, fmt.Errorf("コメントの作成に失敗しました: %w", err)
	}

	slog.Info("コメントを追加しました",
		slog.String("comment_id", c.ID),
		slog.String("task_id", taskID),
		slog.String("user_id", userID),
	)
	return c, nil
}

// EditComment はコメント本文を変更する。作成者以外はロールに関わらず拒否される。
func (s *Service) EditComment(ctx context.Context, commentID, userID, newText string) (*model.Comment, error) {
	cleaned, err := s.cleanText(newText)
	if err != nil {
		return nil, err
	}
	c, err := s.findComment(ctx, commentID)
	if err != nil {
		return nil, err
	}
	if err := s.requireCommentAccess(ctx, c.TaskID, userID, "コメントの編集"); err != nil {
		return nil, err
	}
	if c.UserID != userID {
		return nil, model.NewNotCommentAuthorError(commentID)
	}

	if err := s.comments.UpdateText(ctx, commentID, cleaned); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, model.NewCommentNotFoundError(commentID)
		}
		return nil, fmt.Errorf("コメントの更新に失敗しました: %w", err)
	}
	c.Text = cleaned
	c.UpdatedAt = s.now()

	slog.Info("コメントを編集しました",
		slog.String("comment_id", commentID),
		slog.String("user_id", userID),
	)
	return c, nil
}

// DeleteComment はコメントを削除する。
// 作成者本人、またはリストでタスク管理権限を持つユーザー（オーナー・Editor）が削除できる。
func (s *Service) DeleteComment(ctx context.Context, commentID, userID string) error {
	c, err := s.findComment(ctx, commentID)
	if err != nil {
		return err
	}
	if err := s.requireCommentAccess(ctx, c.TaskID, userID, "コメントの削除"); err != nil {
		return err
	}

	if c.UserID != userID {
		task, err := s.findTask(ctx, c.TaskID)
		if err != nil {
			return err
		}
		canManage, err := s.perm.CanManageTasks(ctx, task.ListID, userID)
		if err != nil {
			return fmt.Errorf("タスク管理権限の確認に失敗しました: %w", err)
		}
		if !canManage {
			return model.NewNotCommentAuthorError(commentID)
		}
	}

	if err := s.comments.Delete(ctx, commentID); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return model.NewCommentNotFoundError(commentID)
		}
		return fmt.Errorf("コメントの削除に失敗しました: %w", err)
	}

	slog.Info("コメントを削除しました",
		slog.String("comment_id", commentID),
		slog.String("user_id", userID),
		slog.Bool("by_author", c.UserID == userID),
	)
	return nil
}

func (s *Service) requireCommentAccess(ctx context.Context, taskID, userID, operation string) error {
	ok, err := s.perm.CanManageComments(ctx, taskID, userID)
	if err != nil {
		return fmt.Errorf("コメント権限の確認に失敗しました: %w", err)
	}
	if !ok {
		return model.NewForbiddenError(operation)
	}
	return nil
}

func (s *Service) findTask(ctx context.Context, taskID string) (*model.Task, error) {
	task, err := s.tasks.FindByID(ctx, taskID)
	if err != nil {
		return nil, fmt.Errorf("タスクの取得に失敗しました: %w", err)
	}
	if task == nil {
		return nil, model.NewTaskNotFoundError(taskID)
	}
	return task, nil
}

func (s *Service) findComment(ctx context.Context, commentID string) (*model.Comment, error) {
	c, err := s.comments.FindByID(ctx, commentID)
	if err != nil {
		return nil, fmt.Errorf("コメントの取得に失敗しました: %w", err)
	}
	if c == nil {
		return nil, model.NewCommentNotFoundError(commentID)
	}
	return c, nil
}
