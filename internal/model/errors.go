package model

import (
	"errors"
	"fmt"
)

// APIError は統一エラーフォーマットを表す。
// UIに表示する原因カテゴリと対処方法を含む。
type APIError struct {
	Code     string // エラーコード
	Message  string // エラーメッセージ
	Category string // カテゴリ: auth, permission, not_found, validation, conflict, system
	Action   string // ユーザー向け対処方法
}

// Error はerrorインターフェースを実装する。
func (e *APIError) Error() string {
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

// エラーカテゴリ
const (
	CategoryAuth       = "auth"
	CategoryPermission = "permission"
	CategoryNotFound   = "not_found"
	CategoryValidation = "validation"
	CategoryConflict   = "conflict"
	CategorySystem     = "system"
)

// 定義済みエラーコード
const (
	ErrCodeUnauthenticated    = "UNAUTHORIZED"
	ErrCodeInvalidCredentials = "INVALID_CREDENTIALS"
	ErrCodeForbidden          = "FORBIDDEN"
	ErrCodeNotAssignee        = "NOT_ASSIGNEE"
	ErrCodeNotCommentAuthor   = "NOT_COMMENT_AUTHOR"
	ErrCodeListNotFound       = "LIST_NOT_FOUND"
	ErrCodeTaskNotFound       = "TASK_NOT_FOUND"
	ErrCodeCommentNotFound    = "COMMENT_NOT_FOUND"
	ErrCodeUserNotFound       = "USER_NOT_FOUND"
	ErrCodeShareNotFound      = "SHARE_NOT_FOUND"
	ErrCodeTagNotFound        = "TAG_NOT_FOUND"
	ErrCodeInvalidRole        = "INVALID_ROLE"
	ErrCodeInvalidRequest     = "INVALID_REQUEST"
	ErrCodeInvalidStatus      = "INVALID_STATUS_FILTER"
	ErrCodeSelfShare          = "SELF_SHARE"
	ErrCodeDuplicateShare     = "DUPLICATE_SHARE"
	ErrCodeDuplicateUsername  = "DUPLICATE_USERNAME"
)

// IsCategory はerrがAPIErrorであり、指定カテゴリに属するかを返す。
func IsCategory(err error, category string) bool {
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return apiErr.Category == category
	}
	return false
}

// HasCode はerrがAPIErrorであり、指定コードを持つかを返す。
func HasCode(err error, code string) bool {
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return apiErr.Code == code
	}
	return false
}

// NewUnauthenticatedError は未認証リクエストのエラーを生成する。
func NewUnauthenticatedError() *APIError {
	return &APIError{
		Code:     ErrCodeUnauthenticated,
		Message:  "認証が必要です。",
		Category: CategoryAuth,
		Action:   "ログインしてください。",
	}
}

// NewInvalidCredentialsError はログイン失敗エラーを生成する。
// ユーザー名とパスワードのどちらが誤っているかは区別しない。
func NewInvalidCredentialsError() *APIError {
	return &APIError{
		Code:     ErrCodeInvalidCredentials,
		Message:  "ユーザー名またはパスワードが正しくありません。",
		Category: CategoryAuth,
		Action:   "入力内容を確認してください。",
	}
}

// NewForbiddenError は権限不足エラーを生成する。
// operationには拒否された操作の説明を渡す。
func NewForbiddenError(operation string) *APIError {
	return &APIError{
		Code:     ErrCodeForbidden,
		Message:  fmt.Sprintf("この操作を行う権限がありません: %s", operation),
		Category: CategoryPermission,
		Action:   "リストのオーナーに権限の付与を依頼してください。",
	}
}

// NewNotAssigneeError はタスクの担当者でないユーザーが担当者専用の操作を行った場合のエラーを生成する。
func NewNotAssigneeError(taskID string) *APIError {
	return &APIError{
		Code:     ErrCodeNotAssignee,
		Message:  fmt.Sprintf("このタスクの担当者ではありません: %s", taskID),
		Category: CategoryPermission,
		Action:   "現在の担当者に操作を依頼してください。",
	}
}

// NewNotCommentAuthorError はコメントの作成者以外が作成者専用の操作を行った場合のエラーを生成する。
func NewNotCommentAuthorError(commentID string) *APIError {
	return &APIError{
		Code:     ErrCodeNotCommentAuthor,
		Message:  fmt.Sprintf("このコメントを変更する権限がありません: %s", commentID),
		Category: CategoryPermission,
		Action:   "コメントを編集できるのは作成者のみです。",
	}
}

// NewListNotFoundError はリスト未検出エラーを生成する。
func NewListNotFoundError(listID string) *APIError {
	return &APIError{
		Code:     ErrCodeListNotFound,
		Message:  fmt.Sprintf("指定されたリストが見つかりません: %s", listID),
		Category: CategoryNotFound,
		Action:   "リストIDを確認してください。",
	}
}

// NewTaskNotFoundError はタスク未検出エラーを生成する。
func NewTaskNotFoundError(taskID string) *APIError {
	return &APIError{
		Code:     ErrCodeTaskNotFound,
		Message:  fmt.Sprintf("指定されたタスクが見つかりません: %s", taskID),
		Category: CategoryNotFound,
		Action:   "タスクIDを確認してください。",
	}
}

// NewCommentNotFoundError はコメント未検出エラーを生成する。
func NewCommentNotFoundError(commentID string) *APIError {
	return &APIError{
		Code:     ErrCodeCommentNotFound,
		Message:  fmt.Sprintf("指定されたコメントが見つかりません: %s", commentID),
		Category: CategoryNotFound,
		Action:   "コメントIDを確認してください。",
	}
}

// NewUserNotFoundError はユーザーが見つからない場合のエラーを生成する。
func NewUserNotFoundError(userID string) *APIError {
	return &APIError{
		Code:     ErrCodeUserNotFound,
		Message:  fmt.Sprintf("ユーザーが見つかりません: %s", userID),
		Category: CategoryNotFound,
		Action:   "ユーザーIDを確認してください。",
	}
}

// NewShareNotFoundError は共有レコード未検出エラーを生成する。
func NewShareNotFoundError(listID, userID string) *APIError {
	return &APIError{
		Code:     ErrCodeShareNotFound,
		Message:  fmt.Sprintf("リスト %s はユーザー %s と共有されていません。", listID, userID),
		Category: CategoryNotFound,
		Action:   "共有ユーザー一覧を確認してください。",
	}
}

// NewTagNotFoundError はタスクにタグが付いていない場合のエラーを生成する。
func NewTagNotFoundError(name string) *APIError {
	return &APIError{
		Code:     ErrCodeTagNotFound,
		Message:  fmt.Sprintf("指定されたタグが見つかりません: %s", name),
		Category: CategoryNotFound,
		Action:   "タグ名を確認してください。",
	}
}

// NewInvalidRoleError は共有ロールが無効な場合のエラーを生成する。
func NewInvalidRoleError(role string) *APIError {
	return &APIError{
		Code:     ErrCodeInvalidRole,
		Message:  fmt.Sprintf("無効なロールです: %s", role),
		Category: CategoryValidation,
		Action:   "ロールには Editor または Viewer を指定してください。",
	}
}

// NewValidationError は入力値エラーを生成する。
func NewValidationError(reason string) *APIError {
	return &APIError{
		Code:     ErrCodeInvalidRequest,
		Message:  fmt.Sprintf("入力内容が正しくありません: %s", reason),
		Category: CategoryValidation,
		Action:   "入力内容を確認してください。",
	}
}

// NewInvalidStatusFilterError は無効な状態フィルタのエラーを生成する。
func NewInvalidStatusFilterError(status string) *APIError {
	return &APIError{
		Code:     ErrCodeInvalidStatus,
		Message:  fmt.Sprintf("無効な状態フィルタです: %s", status),
		Category: CategoryValidation,
		Action:   "状態には all、pending、completed、overdue のいずれかを指定してください。",
	}
}

// NewSelfShareError は自分自身とリストを共有しようとした場合のエラーを生成する。
func NewSelfShareError() *APIError {
	return &APIError{
		Code:     ErrCodeSelfShare,
		Message:  "自分自身とリストを共有することはできません。",
		Category: CategoryConflict,
		Action:   "共有相手のユーザーIDを確認してください。",
	}
}

// NewDuplicateShareError は既に共有済みのユーザーと再度共有しようとした場合のエラーを生成する。
func NewDuplicateShareError() *APIError {
	return &APIError{
		Code:     ErrCodeDuplicateShare,
		Message:  "このリストは既にこのユーザーと共有されています。",
		Category: CategoryConflict,
		Action:   "ロールを変更する場合は共有設定の更新を行ってください。",
	}
}

// NewDuplicateUsernameError はユーザー名が既に使われている場合のエラーを生成する。
func NewDuplicateUsernameError(username string) *APIError {
	return &APIError{
		Code:     ErrCodeDuplicateUsername,
		Message:  fmt.Sprintf("ユーザー名は既に使用されています: %s", username),
		Category: CategoryConflict,
		Action:   "別のユーザー名を指定してください。",
	}
}
