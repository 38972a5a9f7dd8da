package handler

import (
	"context"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/hitoshi/todolist/internal/middleware"
	"github.com/hitoshi/todolist/internal/model"
)

// TagServiceInterface はタグハンドラーが必要とするサービスインターフェース。
type TagServiceInterface interface {
	AddTag(ctx context.Context, userID, taskID, name string) (*model.Tag, error)
	RemoveTag(ctx context.Context, userID, taskID, name string) error
	TagsForTask(ctx context.Context, userID, taskID string) ([]*model.Tag, error)
	AllTags(ctx context.Context, userID string) ([]string, error)
	TasksByTag(ctx context.Context, userID, name string) ([]*model.Task, error)
}

// TagHandler はタグのHTTPハンドラー。
type TagHandler struct {
	service TagServiceInterface
}

// NewTagHandler はTagHandlerを生成する。
func NewTagHandler(service TagServiceInterface) *TagHandler {
	return &TagHandler{service: service}
}

type tagRequest struct {
	Name string `json:"name"`
}

// TagsForTask はタスクに付いたタグを返す。
// GET /api/tasks/{id}/tags
func (h *TagHandler) TagsForTask(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUserID(w, r)
	if !ok {
		return
	}

	tags, err := h.service.TagsForTask(r.Context(), userID, chi.URLParam(r, "id"))
	if err != nil {
		middleware.WriteError(w, r, err)
		return
	}

	out := make([]tagResponse, 0, len(tags))
	for _, t := range tags {
		out = append(out, tagResponse{ID: t.ID, Name: t.Name})
	}
	writeJSON(w, http.StatusOK, out)
}

// AddTag はタスクにタグを付ける。
// POST /api/tasks/{id}/tags
func (h *TagHandler) AddTag(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUserID(w, r)
	if !ok {
		return
	}

	var req tagRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	tag, err := h.service.AddTag(r.Context(), userID, chi.URLParam(r, "id"), req.Name)
	if err != nil {
		middleware.WriteError(w, r, err)
		return
	}

	writeJSON(w, http.StatusCreated, tagResponse{ID: tag.ID, Name: tag.Name})
}

// RemoveTag はタスクからタグを外す。
// DELETE /api/tasks/{id}/tags/{name}
func (h *TagHandler) RemoveTag(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUserID(w, r)
	if !ok {
		return
	}

	err := h.service.RemoveTag(r.Context(), userID, chi.URLParam(r, "id"), chi.URLParam(r, "name"))
	if err != nil {
		middleware.WriteError(w, r, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// AllTags は閲覧できるタスクに付いたタグ名の一覧を返す。
// GET /api/tags
func (h *TagHandler) AllTags(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUserID(w, r)
	if !ok {
		return
	}

	names, err := h.service.AllTags(r.Context(), userID)
	if err != nil {
		middleware.WriteError(w, r, err)
		return
	}
	if names == nil {
		names = []string{}
	}

	writeJSON(w, http.StatusOK, names)
}

// TasksByTag は指定タグが付いた閲覧可能なタスクを返す。
// GET /api/tags/{name}/tasks
func (h *TagHandler) TasksByTag(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUserID(w, r)
	if !ok {
		return
	}

	tasks, err := h.service.TasksByTag(r.Context(), userID, chi.URLParam(r, "name"))
	if err != nil {
		middleware.WriteError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, toTaskResponses(tasks))
}
