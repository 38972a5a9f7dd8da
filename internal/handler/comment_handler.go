package handler

import (
	"context"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/hitoshi/todolist/internal/middleware"
	"github.com/hitoshi/todolist/internal/model"
)

// CommentServiceInterface はコメントハンドラーが必要とするサービスインターフェース。
type CommentServiceInterface interface {
	ListComments(ctx context.Context, userID, taskID string) ([]*model.Comment, error)
	AddComment(ctx context.Context, taskID, userID, userName, text string) (*model.Comment, error)
	EditComment(ctx context.Context, commentID, userID, newText string) (*model.Comment, error)
	DeleteComment(ctx context.Context, commentID, userID string) error
}

// UserLookup はコメントに記録する表示名の取得に使う。
type UserLookup interface {
	FindByID(ctx context.Context, userID string) (*model.User, error)
}

// CommentHandler はコメントのHTTPハンドラー。
type CommentHandler struct {
	service CommentServiceInterface
	users   UserLookup
}

// NewCommentHandler はCommentHandlerを生成する。
func NewCommentHandler(service CommentServiceInterface, users UserLookup) *CommentHandler {
	return &CommentHandler{
		service: service,
		users:   users,
	}
}

type commentRequest struct {
	Text string `json:"text"`
}

// ListComments はタスクのコメントを古い順に返す。
// GET /api/tasks/{id}/comments
func (h *CommentHandler) ListComments(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUserID(w, r)
	if !ok {
		return
	}

	comments, err := h.service.ListComments(r.Context(), userID, chi.URLParam(r, "id"))
	if err != nil {
		middleware.WriteError(w, r, err)
		return
	}

	out := make([]commentResponse, 0, len(comments))
	for _, c := range comments {
		out = append(out, toCommentResponse(c))
	}
	writeJSON(w, http.StatusOK, out)
}

// AddComment はタスクにコメントを追加する。
// 表示名は書き込み時点のユーザー情報から決める。
// POST /api/tasks/{id}/comments
func (h *CommentHandler) AddComment(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUserID(w, r)
	if !ok {
		return
	}

	var req commentRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	author, err := h.users.FindByID(r.Context(), userID)
	if err != nil {
		middleware.WriteError(w, r, err)
		return
	}

	c, err := h.service.AddComment(r.Context(), chi.URLParam(r, "id"), userID, author.DisplayName(), req.Text)
	if err != nil {
		middleware.WriteError(w, r, err)
		return
	}

	writeJSON(w, http.StatusCreated, toCommentResponse(c))
}

// EditComment はコメント本文を変更する。作成者のみ実行できる。
// PUT /api/comments/{id}
func (h *CommentHandler) EditComment(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUserID(w, r)
	if !ok {
		return
	}

	var req commentRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	c, err := h.service.EditComment(r.Context(), chi.URLParam(r, "id"), userID, req.Text)
	if err != nil {
		middleware.WriteError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, toCommentResponse(c))
}

// DeleteComment はコメントを削除する。
// DELETE /api/comments/{id}
func (h *CommentHandler) DeleteComment(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUserID(w, r)
	if !ok {
		return
	}

	if err := h.service.DeleteComment(r.Context(), chi.URLParam(r, "id"), userID); err != nil {
		middleware.WriteError(w, r, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}
