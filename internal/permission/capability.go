package permission

import "github.com/hitoshi/todolist/internal/model"

// Capability は判定対象の操作。
type Capability string

const (
	ViewList       Capability = "view_list"
	EditList       Capability = "edit_list"
	DeleteList     Capability = "delete_list"
	ManageTasks    Capability = "manage_tasks"
	ViewTask       Capability = "view_task"
	EditTask       Capability = "edit_task"
	DeleteTask     Capability = "delete_task"
	ManageTags     Capability = "manage_tags"
	ManageComments Capability = "manage_comments"
)

// RoleAllows はリスト上のロールだけで判定できる操作の可否を返す。
// タスク単位の操作は担当者を考慮しない場合の結果になる。
func RoleAllows(role model.Role, capability Capability) bool {
	switch capability {
	case ViewList, ViewTask, ManageComments:
		return role != model.RoleNone
	case EditList, ManageTasks, EditTask, DeleteTask, ManageTags:
		return role == model.RoleOwner || role == model.RoleEditor
	case DeleteList:
		return role == model.RoleOwner
	default:
		return false
	}
}

// TaskAllows はタスクの担当状態を加味した操作可否を返す。
// 担当者は閲覧と更新ができるが、削除とタグ管理はリスト上のロールに従う。
func TaskAllows(task *model.Task, role model.Role, userID string, capability Capability) bool {
	if task == nil {
		return false
	}
	isAssignee := task.AssignedUserID == userID
	switch capability {
	case ViewTask, EditTask:
		if isAssignee {
			return true
		}
	}
	return RoleAllows(role, capability)
}
