// Package permission はリストに対するロールの解決と、
// ロールおよびタスクの担当状態から導出される操作可否の判定を提供する。
// 判定は毎回ストアから最新の状態を読み直し、結果をキャッシュしない。
package permission

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/hitoshi/todolist/internal/model"
)

// ListFinder はロール解決に必要なリスト検索インターフェース。
type ListFinder interface {
	FindByID(ctx context.Context, id string) (*model.TodoList, error)
}

// ShareFinder はロール解決に必要な共有レコード検索インターフェース。
type ShareFinder interface {
	Find(ctx context.Context, listID, userID string) (*model.ListShare, error)
}

// TaskFinder はタスク単位の判定に必要なタスク検索インターフェース。
type TaskFinder interface {
	FindByID(ctx context.Context, id string) (*model.Task, error)
}

// DecisionRecorder は判定結果の記録先。metricsパッケージが実装する。
type DecisionRecorder interface {
	RecordDecision(capability string, allowed bool)
}

// Checker はロール解決と操作可否判定を行う。
// 判定関数はストアのエラー以外でエラーを返さない。拒否はfalseで表す。
type Checker struct {
	lists    ListFinder
	shares   ShareFinder
	tasks    TaskFinder
	recorder DecisionRecorder
}

// NewChecker はCheckerを生成する。
func NewChecker(lists ListFinder, shares ShareFinder, tasks TaskFinder) *Checker {
	return &Checker{lists: lists, shares: shares, tasks: tasks}
}

// SetRecorder は判定結果の記録先を設定する。nilの場合は記録しない。
func (c *Checker) SetRecorder(r DecisionRecorder) {
	c.recorder = r
}

// ResolveRole はユーザーのリストに対する実効ロールを返す。
// オーナーならRoleOwner、共有レコードがあればそのロール、それ以外はRoleNone。
// 存在しないリストもRoleNoneになる。
func (c *Checker) ResolveRole(ctx context.Context, listID, userID string) (model.Role, error) {
	list, err := c.lists.FindByID(ctx, listID)
	if err != nil {
		return model.RoleNone, fmt.Errorf("ロール解決のためのリスト取得に失敗しました: %w", err)
	}
	if list != nil && list.OwnerID == userID {
		return model.RoleOwner, nil
	}

	share, err := c.shares.Find(ctx, listID, userID)
	if err != nil {
		return model.RoleNone, fmt.Errorf("ロール解決のための共有レコード取得に失敗しました: %w", err)
	}
	if share == nil || !share.Role.IsShareable() {
		return model.RoleNone, nil
	}
	return share.Role, nil
}

// CanViewList はリストを閲覧できるか判定する。
func (c *Checker) CanViewList(ctx context.Context, listID, userID string) (bool, error) {
	return c.checkList(ctx, ViewList, listID, userID)
}

// CanEditList はリストを編集できるか判定する。
func (c *Checker) CanEditList(ctx context.Context, listID, userID string) (bool, error) {
	return c.checkList(ctx, EditList, listID, userID)
}

// CanDeleteList はリストを削除できるか判定する。
func (c *Checker) CanDeleteList(ctx context.Context, listID, userID string) (bool, error) {
	return c.checkList(ctx, DeleteList, listID, userID)
}

// CanManageTasks はリスト内のタスクを作成・削除できるか判定する。
func (c *Checker) CanManageTasks(ctx context.Context, listID, userID string) (bool, error) {
	return c.checkList(ctx, ManageTasks, listID, userID)
}

// CanViewTask はタスクを閲覧できるか判定する。
func (c *Checker) CanViewTask(ctx context.Context, taskID, userID string) (bool, error) {
	return c.checkTask(ctx, ViewTask, taskID, userID)
}

// CanEditTask はタスクを更新できるか判定する。担当者は常に更新できる。
func (c *Checker) CanEditTask(ctx context.Context, taskID, userID string) (bool, error) {
	return c.checkTask(ctx, EditTask, taskID, userID)
}

// CanDeleteTask はタスクを削除できるか判定する。担当者であるだけでは削除できない。
func (c *Checker) CanDeleteTask(ctx context.Context, taskID, userID string) (bool, error) {
	return c.checkTask(ctx, DeleteTask, taskID, userID)
}

// CanManageTags はタスクのタグを付け外しできるか判定する。
func (c *Checker) CanManageTags(ctx context.Context, taskID, userID string) (bool, error) {
	return c.checkTask(ctx, ManageTags, taskID, userID)
}

// CanManageComments はタスクのコメントを閲覧・追加できるか判定する。
// Viewerを含むリストの全参加者が対象。
func (c *Checker) CanManageComments(ctx context.Context, taskID, userID string) (bool, error) {
	return c.checkTask(ctx, ManageComments, taskID, userID)
}

// TaskAccess はタスクとそのリストに対するユーザーのロールを返す。
// タスクが存在しない場合はnilを返す。
// 1つの操作で複数の判定を行うサービスが、同じ読み取り結果から判定するために使う。
func (c *Checker) TaskAccess(ctx context.Context, taskID, userID string) (*model.Task, model.Role, error) {
	task, err := c.tasks.FindByID(ctx, taskID)
	if err != nil {
		return nil, model.RoleNone, fmt.Errorf("権限判定のためのタスク取得に失敗しました: %w", err)
	}
	if task == nil {
		return nil, model.RoleNone, nil
	}
	role, err := c.ResolveRole(ctx, task.ListID, userID)
	if err != nil {
		return nil, model.RoleNone, err
	}
	return task, role, nil
}

func (c *Checker) checkList(ctx context.Context, capability Capability, listID, userID string) (bool, error) {
	role, err := c.ResolveRole(ctx, listID, userID)
	if err != nil {
		return false, err
	}
	return c.record(capability, RoleAllows(role, capability), listID, userID), nil
}

func (c *Checker) checkTask(ctx context.Context, capability Capability, taskID, userID string) (bool, error) {
	task, role, err := c.TaskAccess(ctx, taskID, userID)
	if err != nil {
		return false, err
	}
	// 存在しないタスクは全ての判定で拒否
	if task == nil {
		return c.record(capability, false, taskID, userID), nil
	}
	return c.record(capability, TaskAllows(task, role, userID, capability), taskID, userID), nil
}

func (c *Checker) record(capability Capability, allowed bool, resourceID, userID string) bool {
	if c.recorder != nil {
		c.recorder.RecordDecision(string(capability), allowed)
	}
	if !allowed {
		slog.Debug("操作が拒否されました",
			slog.String("capability", string(capability)),
			slog.String("resource_id", resourceID),
			slog.String("user_id", userID),
		)
	}
	return allowed
}
