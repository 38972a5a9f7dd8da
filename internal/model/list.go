package model

import "time"

// Role はリストに対するユーザーの権限レベルを表す。
type Role string

const (
	// RoleNone はアクセス権がないことを表す。
	RoleNone Role = ""
	// RoleOwner はリストの作成者。ListShareには現れず、TodoList.OwnerIDから導出される。
	RoleOwner Role = "Owner"
	// RoleEditor はリストとタスクを編集できる共有ユーザー。
	RoleEditor Role = "Editor"
	// RoleViewer は閲覧とコメントのみできる共有ユーザー。
	RoleViewer Role = "Viewer"
)

// IsShareable は共有レコードに保存できるロール（Editor/Viewer）かどうかを返す。
func (r Role) IsShareable() bool {
	return r == RoleEditor || r == RoleViewer
}

// ParseShareRole は共有用のロール文字列を検証して返す。
func ParseShareRole(s string) (Role, bool) {
	r := Role(s)
	if !r.IsShareable() {
		return RoleNone, false
	}
	return r, true
}

// TodoList はタスクをまとめるリスト。
// OwnerIDは作成後に変更されない。
type TodoList struct {
	ID          string
	Name        string
	Description string
	OwnerID     string
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// ListShare はオーナー以外のユーザーにリストのロールを付与するレコード。
// (ListID, UserID) の組は一意。
type ListShare struct {
	ListID    string
	UserID    string
	Role      Role
	CreatedAt time.Time
	UpdatedAt time.Time
}

// SharedList は「自分と共有されているリスト」の一覧要素。
type SharedList struct {
	ListID        string
	Name          string
	Description   string
	OwnerID       string
	OwnerUsername string
	Role          Role
	SharedAt      time.Time
}
