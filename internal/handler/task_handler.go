package handler

import (
	"context"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/hitoshi/todolist/internal/middleware"
	"github.com/hitoshi/todolist/internal/model"
	"github.com/hitoshi/todolist/internal/task"
)

// TaskServiceInterface はタスクハンドラーが必要とするサービスインターフェース。
type TaskServiceInterface interface {
	CreateTask(ctx context.Context, userID, listID string, in task.CreateInput) (*model.Task, error)
	GetTask(ctx context.Context, userID, taskID string) (*model.Task, error)
	ListTasks(ctx context.Context, userID, listID string) ([]*model.Task, error)
	UpdateTask(ctx context.Context, userID, taskID string, in task.UpdateInput) (*model.Task, error)
	DeleteTask(ctx context.Context, userID, taskID string) error
	Reassign(ctx context.Context, taskID, currentUserID, newUserID string) error
	UpdateStatus(ctx context.Context, taskID string, isCompleted bool, userID string) error
	ListAssigned(ctx context.Context, userID, status string) ([]*model.Task, error)
	Search(ctx context.Context, userID string, in task.SearchInput) ([]*model.Task, error)
}

// TaskHandler はタスク管理のHTTPハンドラー。
type TaskHandler struct {
	service TaskServiceInterface
}

// NewTaskHandler はTaskHandlerを生成する。
func NewTaskHandler(service TaskServiceInterface) *TaskHandler {
	return &TaskHandler{service: service}
}

type createTaskRequest struct {
	Name           string     `json:"name"`
	Description    string     `json:"description"`
	DueDate        *time.Time `json:"due_date"`
	AssignedUserID string     `json:"assigned_user_id"`
}

type updateTaskRequest struct {
	Name        string     `json:"name"`
	Description string     `json:"description"`
	DueDate     *time.Time `json:"due_date"`
	IsCompleted bool       `json:"is_completed"`
}

type updateStatusRequest struct {
	IsCompleted *bool `json:"is_completed"`
}

type reassignRequest struct {
	UserID string `json:"user_id"`
}

// ListTasks はリストのタスク一覧を返す。
// GET /api/lists/{id}/tasks
func (h *TaskHandler) ListTasks(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUserID(w, r)
	if !ok {
		return
	}

	tasks, err := h.service.ListTasks(r.Context(), userID, chi.URLParam(r, "id"))
	if err != nil {
		middleware.WriteError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, toTaskResponses(tasks))
}

// CreateTask はリストにタスクを作成する。
// POST /api/lists/{id}/tasks
func (h *TaskHandler) CreateTask(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUserID(w, r)
	if !ok {
		return
	}

	var req createTaskRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	t, err := h.service.CreateTask(r.Context(), userID, chi.URLParam(r, "id"), task.CreateInput{
		Name:           req.Name,
		Description:    req.Description,
		DueDate:        req.DueDate,
		AssignedUserID: req.AssignedUserID,
	})
	if err != nil {
		middleware.WriteError(w, r, err)
		return
	}

	writeJSON(w, http.StatusCreated, toTaskResponse(t))
}

// GetTask はタスクを返す。
// GET /api/tasks/{id}
func (h *TaskHandler) GetTask(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUserID(w, r)
	if !ok {
		return
	}

	t, err := h.service.GetTask(r.Context(), userID, chi.URLParam(r, "id"))
	if err != nil {
		middleware.WriteError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, toTaskResponse(t))
}

// UpdateTask はタスクの内容を置き換える。
// PUT /api/tasks/{id}
func (h *TaskHandler) UpdateTask(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUserID(w, r)
	if !ok {
		return
	}

	var req updateTaskRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	t, err := h.service.UpdateTask(r.Context(), userID, chi.URLParam(r, "id"), task.UpdateInput{
		Name:        req.Name,
		Description: req.Description,
		DueDate:     req.DueDate,
		IsCompleted: req.IsCompleted,
	})
	if err != nil {
		middleware.WriteError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, toTaskResponse(t))
}

// DeleteTask はタスクを削除する。
// DELETE /api/tasks/{id}
func (h *TaskHandler) DeleteTask(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUserID(w, r)
	if !ok {
		return
	}

	if err := h.service.DeleteTask(r.Context(), userID, chi.URLParam(r, "id")); err != nil {
		middleware.WriteError(w, r, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// UpdateStatus は担当者がタスクの完了状態を変更する。
// PUT /api/tasks/{id}/status
func (h *TaskHandler) UpdateStatus(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUserID(w, r)
	if !ok {
		return
	}

	var req updateStatusRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	if req.IsCompleted == nil {
		middleware.WriteErrorResponse(w, http.StatusBadRequest, model.NewValidationError("is_completed は必須です"))
		return
	}

	if err := h.service.UpdateStatus(r.Context(), chi.URLParam(r, "id"), *req.IsCompleted, userID); err != nil {
		middleware.WriteError(w, r, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// Reassign は担当者がタスクを別のユーザーに引き継ぐ。
// PUT /api/tasks/{id}/assignee
func (h *TaskHandler) Reassign(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUserID(w, r)
	if !ok {
		return
	}

	var req reassignRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	if req.UserID == "" {
		middleware.WriteErrorResponse(w, http.StatusBadRequest, model.NewValidationError("user_id は必須です"))
		return
	}

	if err := h.service.Reassign(r.Context(), chi.URLParam(r, "id"), userID, req.UserID); err != nil {
		middleware.WriteError(w, r, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// ListAssigned は自分が担当するタスクを返す。
// GET /api/tasks/assigned?status=pending
func (h *TaskHandler) ListAssigned(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUserID(w, r)
	if !ok {
		return
	}

	tasks, err := h.service.ListAssigned(r.Context(), userID, r.URL.Query().Get("status"))
	if err != nil {
		middleware.WriteError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, toTaskResponses(tasks))
}

// SearchTasks は閲覧できるタスクを検索する。
// GET /api/tasks/search?q=report&is_completed=false&due_before=2026-01-31T23:59:59Z&assigned_user_id=...
func (h *TaskHandler) SearchTasks(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUserID(w, r)
	if !ok {
		return
	}

	in, apiErr := parseSearchQuery(r)
	if apiErr != nil {
		middleware.WriteErrorResponse(w, http.StatusBadRequest, apiErr)
		return
	}

	tasks, err := h.service.Search(r.Context(), userID, in)
	if err != nil {
		middleware.WriteError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, toTaskResponses(tasks))
}

// parseSearchQuery はクエリ文字列を検索条件に変換する。
func parseSearchQuery(r *http.Request) (task.SearchInput, *model.APIError) {
	q := r.URL.Query()
	in := task.SearchInput{
		Query:          q.Get("q"),
		AssignedUserID: q.Get("assigned_user_id"),
	}
	if v := q.Get("is_completed"); v != "" {
		completed, err := strconv.ParseBool(v)
		if err != nil {
			return in, model.NewValidationError("is_completed は true または false で指定してください")
		}
		in.IsCompleted = &completed
	}
	if v := q.Get("due_before"); v != "" {
		due, err := time.Parse(time.RFC3339, v)
		if err != nil {
			return in, model.NewValidationError("due_before はRFC3339形式で指定してください")
		}
		in.DueBefore = &due
	}
	return in, nil
}
