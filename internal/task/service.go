// Package task はタスクの作成・更新・削除と、担当者による担当替え・完了状態の更新を扱う。
//
// 担当替えと完了状態の更新はリスト上のロールではなく、
// タスクの現在の担当者であるかどうかだけで判定する。
package task

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

const (
	// MaxNameLength はタスク名の最大文字数。
	MaxNameLength = 200
	// MaxSearchQueryLength は検索文字列の最大文字数。
	MaxSearchQueryLength = 200
)

// PermissionChecker はタスク操作に必要な権限判定インターフェース。
type PermissionChecker interface {
	CanViewList(ctx context.Context, listID, userID string) (bool, error)
	CanManageTasks(ctx context.Context, listID, userID string) (bool, error)
	CanViewTask(ctx context.Context, taskID, userID string) (bool, error)
	CanEditTask(ctx context.Context, taskID, userID string) (bool, error)
	CanDeleteTask(ctx context.Context, taskID, userID string) (bool, error)
}

// UserFinder は担当者の存在確認に使うユーザーディレクトリ。
type UserFinder interface {
	FindByID(ctx context.Context, id string) (*model.User, error)
}

// CreateInput はタスク作成の入力。
// AssignedUserIDが空の場合は作成者が担当者になる。
type CreateInput struct {
	Name           string
	Description    string
	DueDate        *time.Time
	AssignedUserID string
}

// UpdateInput はタスク更新の入力。全項目を置き換える。
type UpdateInput struct {
	Name        string
	Description string
	DueDate     *time.Time
	IsCompleted bool
}

// SearchInput はタスク検索の入力。nilと空文字の項目は絞り込みに使わない。
type SearchInput struct {
	Query          string
	IsCompleted    *bool
	DueBefore      *time.Time
	AssignedUserID string
}

// Service はタスク管理のサービス層。
type Service struct {
	lists     repository.ListRepository
	tasks     repository.TaskRepository
	users     UserFinder
	perm      PermissionChecker
	sanitizer security.TextSanitizer
	now       func() time.Time
}

// NewService はServiceの新しいインスタンスを生成する。
func NewService(
	lists repository.ListRepository,
	tasks repository.TaskRepository,
	users UserFinder,
	perm PermissionChecker,
	sanitizer security.TextSanitizer,
) *Service {
	return &Service{
		lists:     lists,
		tasks:     tasks,
		users:     users,
		perm:      perm,
		sanitizer: sanitizer,
		now:       time.Now,
	}
}

func validateName(name string) (string, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return "", model.NewValidationError("タスク名は必須です")
	}
	if utf8.RuneCountInString(name) > MaxNameLength {
		return "", model.NewValidationError(fmt.Sprintf("タスク名は%d文字以内で指定してください", MaxNameLength))
	}
	return name, nil
}

// CreateTask はリストにタスクを作成する。オーナーとEditorが作成できる。
func (s *Service) CreateTask(ctx context.Context, userID, listID string, in CreateInput) (*model.Task, error) {
	name, err := validateName(in.Name)
	if err != nil {
		return nil, err
	}
	if err := s.requireList(ctx, listID); err != nil {
		return nil, err
	}
	ok, err := s.perm.CanManageTasks(ctx, listID, userID)
	if err != nil {
		return nil, fmt.Errorf("タスク管理権限の確認に失敗しました: %w", err)
	}
	if !ok {
		return nil, model.NewForbiddenError("タスクの作成")
	}

	assignee := userID
	if in.AssignedUserID != "" && in.AssignedUserID != userID {
		if err := s.requireUser(ctx, in.AssignedUserID); err != nil {
			return nil, err
		}
		assignee = in.AssignedUserID
	}

	now := s.now()
	task := &model.Task{
		ID:             uuid.New().String(),
		ListID:         listID,
		Name:           name,
		Description:    s.sanitizer.Sanitize(in.Description),
		DueDate:        in.DueDate,
		OwnerID:        userID,
		AssignedUserID: assignee,
		CreatedAt:      now,
		UpdatedAt:      now,
	}
	if err := s.tasks.Create(ctx, task); err != nil {
		return nil, fmt.Errorf("タスクの作成に失敗しました: %w", err)
	}

	slog.Info("タスクを作成しました",
		slog.String("task_id", task.ID),
		slog.String("list_id", listID),
		slog.String("user_id", userID),
		slog.String("assigned_user_id", assignee),
	)
	return task, nil
}

// GetTask はタスクを返す。リストの参加者と担当者が閲覧できる。
func (s *Service) GetTask(ctx context.Context, userID, taskID string) (*model.Task, error) {
	task, err := s.findTask(ctx, taskID)
	if err != nil {
		return nil, err
	}
	ok, err := s.perm.CanViewTask(ctx, taskID, userID)
	if err != nil {
		return nil, fmt.Errorf("閲覧権限の確認に失敗しました: %w", err)
	}
	if !ok {
		return nil, model.NewForbiddenError("タスクの閲覧")
	}
	return task, nil
}

// ListTasks はリストのタスク一覧を返す。
func (s *Service) ListTasks(ctx context.Context, userID, listID string) ([]*model.Task, error) {
	if err := s.requireList(ctx, listID); err != nil {
		return nil, err
	}
	ok, err := s.perm.CanViewList(ctx, listID, userID)
	if err != nil {
		return nil, fmt.Errorf("閲覧権限の確認に失敗しました: %w", err)
	}
	if !ok {
		return nil, model.NewForbiddenError("タスク一覧の閲覧")
	}

	tasks, err := s.tasks.ListByList(ctx, listID)
	if err != nil {
		return nil, fmt.Errorf("タスク一覧の取得に失敗しました: %w", err)
	}
	return tasks, nil
}

// UpdateTask はタスクを更新する。
// タスク管理権限のない担当者は完了フラグだけを変更できる。
func (s *Service) UpdateTask(ctx context.Context, userID, taskID string, in UpdateInput) (*model.Task, error) {
	name, err := validateName(in.Name)
	if err != nil {
		return nil, err
	}
	task, err := s.findTask(ctx, taskID)
	if err != nil {
		return nil, err
	}
	ok, err := s.perm.CanEditTask(ctx, taskID, userID)
	if err != nil {
		return nil, fmt.Errorf("編集権限の確認に失敗しました: %w", err)
	}
	if !ok {
		return nil, model.NewForbiddenError("タスクの編集")
	}

	// 取得した値をそのまま送り返した場合は説明を変更とみなさない
	description := task.Description
	if in.Description != task.Description {
		description = s.sanitizer.Sanitize(in.Description)
	}
	detailsChanged := name != task.Name || description != task.Description || !sameDueDate(in.DueDate, task.DueDate)
	if detailsChanged {
		canManage, err := s.perm.CanManageTasks(ctx, task.ListID, userID)
		if err != nil {
			return nil, fmt.Errorf("タスク管理権限の確認に失敗しました: %w", err)
		}
		if !canManage {
			return nil, model.NewForbiddenError("担当者が変更できるのは完了状態のみです")
		}
	}

	task.Name = name
	task.Description = description
	task.DueDate = in.DueDate
	task.IsCompleted = in.IsCompleted
	if err := s.tasks.Update(ctx, task); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, model.NewTaskNotFoundError(taskID)
		}
		return nil, fmt.Errorf("タスクの更新に失敗しました: %w", err)
	}
	task.UpdatedAt = s.now()

	slog.Info("タスクを更新しました",
		slog.String("task_id", taskID),
		slog.String("user_id", userID),
	)
	return task, nil
}

// DeleteTask はタスクを削除する。担当者であるだけでは削除できない。
func (s *Service) DeleteTask(ctx context.Context, userID, taskID string) error {
	if _, err := s.findTask(ctx, taskID); err != nil {
		return err
	}
	ok, err := s.perm.CanDeleteTask(ctx, taskID, userID)
	if err != nil {
		return fmt.Errorf("削除権限の確認に失敗しました: %w", err)
	}
	if !ok {
		return model.NewForbiddenError("タスクの削除")
	}

	if err := s.tasks.Delete(ctx, taskID); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return model.NewTaskNotFoundError(taskID)
		}
		return fmt.Errorf("タスクの削除に失敗しました: %w", err)
	}

	slog.Info("タスクを削除しました",
		slog.String("task_id", taskID),
		slog.String("user_id", userID),
	)
	return nil
}

// Reassign はタスクの担当者をcurrentUserIDからnewUserIDに替える。
// 現在の担当者本人だけが実行でき、リストのオーナーやEditorでも担当者でなければ拒否される。
// 更新は担当者が変わっていないことを条件に行うため、同時に担当替えされた場合は後発側が拒否される。
func (s *Service) Reassign(ctx context.Context, taskID, currentUserID, newUserID string) error {
	task, err := s.findTask(ctx, taskID)
	if err != nil {
		return err
	}
	if task.AssignedUserID != currentUserID {
		slog.Warn("担当者以外による担当替えを拒否しました",
			slog.String("task_id", taskID),
			slog.String("user_id", currentUserID),
		)
		return model.NewNotAssigneeError(taskID)
	}
	if err := s.requireUser(ctx, newUserID); err != nil {
		return err
	}

	if err := s.tasks.UpdateAssignee(ctx, taskID, currentUserID, newUserID); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return s.classifyMissedUpdate(ctx, taskID)
		}
		return fmt.Errorf("担当者の更新に失敗しました: %w", err)
	}

	slog.Info("タスクの担当者を変更しました",
		slog.String("task_id", taskID),
		slog.String("user_id", currentUserID),
		slog.String("assigned_user_id", newUserID),
	)
	return nil
}

// UpdateStatus は担当者がタスクの完了状態を更新する。
// タスクが存在しない場合はNotFound、担当者でない場合はNotAssigneeを返す。
func (s *Service) UpdateStatus(ctx context.Context, taskID string, isCompleted bool, userID string) error {
	task, err := s.findTask(ctx, taskID)
	if err != nil {
		return err
	}
	if task.AssignedUserID != userID {
		return model.NewNotAssigneeError(taskID)
	}

	if err := s.tasks.UpdateCompletion(ctx, taskID, isCompleted); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return model.NewTaskNotFoundError(taskID)
		}
		return fmt.Errorf("完了状態の更新に失敗しました: %w", err)
	}

	slog.Info("タスクの完了状態を更新しました",
		slog.String("task_id", taskID),
		slog.String("user_id", userID),
		slog.Bool("is_completed", isCompleted),
	)
	return nil
}

// ListAssigned はユーザーが担当するタスクを状態で絞り込んで返す。
// statusは all, pending, completed, overdue のいずれか（空はall）。
func (s *Service) ListAssigned(ctx context.Context, userID, status string) ([]*model.Task, error) {
	filter, ok := model.ParseTaskStatusFilter(status)
	if !ok {
		return nil, model.NewInvalidStatusFilterError(status)
	}
	tasks, err := s.tasks.ListByAssignee(ctx, userID, filter)
	if err != nil {
		return nil, fmt.Errorf("担当タスク一覧の取得に失敗しました: %w", err)
	}
	return tasks, nil
}

// Search はユーザーが閲覧できるタスクを名前・説明の部分一致、完了状態、期限、担当者で絞り込む。
// 条件を何も指定しない場合は閲覧できるタスクをすべて返す。
func (s *Service) Search(ctx context.Context, userID string, in SearchInput) ([]*model.Task, error) {
	query := strings.TrimSpace(in.Query)
	if utf8.RuneCountInString(query) > MaxSearchQueryLength {
		return nil, model.NewValidationError(fmt.Sprintf("検索文字列は%d文字以内で指定してください", MaxSearchQueryLength))
	}

	tasks, err := s.tasks.Search(ctx, userID, model.TaskSearch{
		Query:          query,
		IsCompleted:    in.IsCompleted,
		DueBefore:      in.DueBefore,
		AssignedUserID: strings.TrimSpace(in.AssignedUserID),
	})
	if err != nil {
		return nil, fmt.Errorf("タスク検索に失敗しました: %w", err)
	}
	return tasks, nil
}

// classifyMissedUpdate は条件付き更新が0件だった理由を判別する。
func (s *Service) classifyMissedUpdate(ctx context.Context, taskID string) error {
	task, err := s.tasks.FindByID(ctx, taskID)
	if err != nil {
		return fmt.Errorf("タスクの取得に失敗しました: %w", err)
	}
	if task == nil {
		return model.NewTaskNotFoundError(taskID)
	}
	return model.NewNotAssigneeError(taskID)
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

func (s *Service) requireUser(ctx context.Context, userID string) error {
	user, err := s.users.FindByID(ctx, userID)
	if err != nil {
		return fmt.Errorf("ユーザーの取得に失敗しました: %w", err)
	}
	if user == nil {
		return model.NewUserNotFoundError(userID)
	}
	return nil
}

func sameDueDate(a, b *time.Time) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	return a.Equal(*b)
}
