package handler

import (
	"context"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/hitoshi/todolist/internal/middleware"
	"github.com/hitoshi/todolist/internal/model"
	"github.com/hitoshi/todolist/internal/todolist"
)

// ListServiceInterface はリストハンドラーが必要とするサービスインターフェース。
type ListServiceInterface interface {
	CreateList(ctx context.Context, ownerID, name, description string) (*model.TodoList, error)
	GetList(ctx context.Context, userID, listID string) (*todolist.ListWithRole, error)
	ListOwned(ctx context.Context, userID string) ([]*model.TodoList, error)
	UpdateList(ctx context.Context, userID, listID, name, description string) (*model.TodoList, error)
	DeleteList(ctx context.Context, userID, listID string) error
}

// ListHandler はリスト管理のHTTPハンドラー。
type ListHandler struct {
	service ListServiceInterface
}

// NewListHandler はListHandlerを生成する。
func NewListHandler(service ListServiceInterface) *ListHandler {
	return &ListHandler{service: service}
}

type listRequest struct {
	Name        string `json:"name"`
	Description string `json:"description"`
}

// ListOwned は自分が所有するリストの一覧を返す。
// GET /api/lists
func (h *ListHandler) ListOwned(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUserID(w, r)
	if !ok {
		return
	}

	lists, err := h.service.ListOwned(r.Context(), userID)
	if err != nil {
		middleware.WriteError(w, r, err)
		return
	}

	out := make([]listResponse, 0, len(lists))
	for _, l := range lists {
		out = append(out, toListResponse(l, model.RoleOwner))
	}
	writeJSON(w, http.StatusOK, out)
}

// CreateList はリストを作成する。作成者がオーナーになる。
// POST /api/lists
func (h *ListHandler) CreateList(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUserID(w, r)
	if !ok {
		return
	}

	var req listRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	list, err := h.service.CreateList(r.Context(), userID, req.Name, req.Description)
	if err != nil {
		middleware.WriteError(w, r, err)
		return
	}

	writeJSON(w, http.StatusCreated, toListResponse(list, model.RoleOwner))
}

// GetList はリストと呼び出しユーザーのロールを返す。
// GET /api/lists/{id}
func (h *ListHandler) GetList(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUserID(w, r)
	if !ok {
		return
	}

	lr, err := h.service.GetList(r.Context(), userID, chi.URLParam(r, "id"))
	if err != nil {
		middleware.WriteError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, toListResponse(lr.List, lr.Role))
}

// UpdateList はリストの名前と説明を更新する。
// PUT /api/lists/{id}
func (h *ListHandler) UpdateList(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUserID(w, r)
	if !ok {
		return
	}

	var req listRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	list, err := h.service.UpdateList(r.Context(), userID, chi.URLParam(r, "id"), req.Name, req.Description)
	if err != nil {
		middleware.WriteError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, toListResponse(list, ""))
}

// DeleteList はリストを削除する。
// DELETE /api/lists/{id}
func (h *ListHandler) DeleteList(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUserID(w, r)
	if !ok {
		return
	}

	if err := h.service.DeleteList(r.Context(), userID, chi.URLParam(r, "id")); err != nil {
		middleware.WriteError(w, r, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}
