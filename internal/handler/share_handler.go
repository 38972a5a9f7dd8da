package handler

import (
	"context"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/hitoshi/todolist/internal/middleware"
	"github.com/hitoshi/todolist/internal/model"
)

// SharingServiceInterface は共有ハンドラーが必要とするサービスインターフェース。
type SharingServiceInterface interface {
	Share(ctx context.Context, listID, targetUserID string, role model.Role, requestingUserID string) error
	UpdateShareRole(ctx context.Context, listID, targetUserID string, newRole model.Role, requestingUserID string) error
	RemoveShare(ctx context.Context, listID, targetUserID, requestingUserID string) error
	ListSharedUsers(ctx context.Context, listID, requestingUserID string) ([]*model.ListShare, error)
	ListSharedWithMe(ctx context.Context, userID string) ([]model.SharedList, error)
}

// ShareHandler はリスト共有のHTTPハンドラー。
type ShareHandler struct {
	service SharingServiceInterface
}

// NewShareHandler はShareHandlerを生成する。
func NewShareHandler(service SharingServiceInterface) *ShareHandler {
	return &ShareHandler{service: service}
}

type shareRequest struct {
	TargetUserID string `json:"target_user_id"`
	Role         string `json:"role"`
}

type updateShareRequest struct {
	Role string `json:"role"`
}

// Share はリストを他のユーザーと共有する。
// POST /api/lists/{id}/shares
func (h *ShareHandler) Share(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUserID(w, r)
	if !ok {
		return
	}

	var req shareRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	listID := chi.URLParam(r, "id")
	role := model.Role(req.Role)
	if err := h.service.Share(r.Context(), listID, req.TargetUserID, role, userID); err != nil {
		middleware.WriteError(w, r, err)
		return
	}

	writeJSON(w, http.StatusCreated, shareResponse{
		ListID: listID,
		UserID: req.TargetUserID,
		Role:   string(role),
	})
}

// ListSharedUsers はリストの共有先一覧を返す。
// GET /api/lists/{id}/shares
func (h *ShareHandler) ListSharedUsers(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUserID(w, r)
	if !ok {
		return
	}

	shares, err := h.service.ListSharedUsers(r.Context(), chi.URLParam(r, "id"), userID)
	if err != nil {
		middleware.WriteError(w, r, err)
		return
	}

	out := make([]shareResponse, 0, len(shares))
	for _, s := range shares {
		out = append(out, shareResponse{
			ListID:    s.ListID,
			UserID:    s.UserID,
			Role:      string(s.Role),
			CreatedAt: s.CreatedAt,
		})
	}
	writeJSON(w, http.StatusOK, out)
}

// UpdateShareRole は共有先のロールを変更する。
// PUT /api/lists/{id}/shares/{userID}
func (h *ShareHandler) UpdateShareRole(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUserID(w, r)
	if !ok {
		return
	}

	var req updateShareRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	listID := chi.URLParam(r, "id")
	targetID := chi.URLParam(r, "userID")
	role := model.Role(req.Role)
	if err := h.service.UpdateShareRole(r.Context(), listID, targetID, role, userID); err != nil {
		middleware.WriteError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, shareResponse{
		ListID: listID,
		UserID: targetID,
		Role:   string(role),
	})
}

// RemoveShare は共有を解除する。
// DELETE /api/lists/{id}/shares/{userID}
func (h *ShareHandler) RemoveShare(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUserID(w, r)
	if !ok {
		return
	}

	err := h.service.RemoveShare(r.Context(), chi.URLParam(r, "id"), chi.URLParam(r, "userID"), userID)
	if err != nil {
		middleware.WriteError(w, r, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// SharedWithMe は自分と共有されているリストの一覧を返す。
// GET /api/shared-with-me
func (h *ShareHandler) SharedWithMe(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUserID(w, r)
	if !ok {
		return
	}

	lists, err := h.service.ListSharedWithMe(r.Context(), userID)
	if err != nil {
		middleware.WriteError(w, r, err)
		return
	}

	out := make([]sharedListResponse, 0, len(lists))
	for _, l := range lists {
		out = append(out, sharedListResponse{
			ListID:        l.ListID,
			Name:          l.Name,
			Description:   l.Description,
			OwnerID:       l.OwnerID,
			OwnerUsername: l.OwnerUsername,
			Role:          string(l.Role),
			SharedAt:      l.SharedAt,
		})
	}
	writeJSON(w, http.StatusOK, out)
}
