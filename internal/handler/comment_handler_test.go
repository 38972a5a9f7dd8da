package handler

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/hitoshi/todolist/internal/model"
)

func commentRequestFor(method, id, body, userID string) *http.Request {
	req := jsonRequest(method, "/api/comments/"+id, body)
	return withChiURLParams(withUserID(req, userID), "id", id)
}

func TestCommentHandler_AddComment_ViewerCanComment(t *testing.T) {
	env := newTestEnv()
	owner := env.store.AddUser("owner")
	viewer := env.store.AddUser("viewer")
	listID := env.store.AddList(owner, "L")
	env.store.AddShare(listID, viewer, model.RoleViewer)
	taskID := env.store.AddTask(listID, owner, owner, "T")
	h := NewCommentHandler(env.comments, env.users)

	w := httptest.NewRecorder()
	h.AddComment(w, commentRequestFor(http.MethodPost, taskID, `{"text":"  <script>x</script>了解です "}`, viewer))

	assertStatus(t, w, http.StatusCreated)
	var got commentResponse
	decodeBody(t, w, &got)
	if got.UserID != viewer || got.UserName != "viewer" {
		t.Errorf("author = %q/%q", got.UserID, got.UserName)
	}
	if got.Text != "了解です" {
		t.Errorf("text = %q, want %q", got.Text, "了解です")
	}
}

func TestCommentHandler_AddComment_Errors(t *testing.T) {
	env := newTestEnv()
	owner := env.store.AddUser("owner")
	outsider := env.store.AddUser("outsider")
	listID := env.store.AddList(owner, "L")
	taskID := env.store.AddTask(listID, owner, owner, "T")
	h := NewCommentHandler(env.comments, env.users)

	tests := []struct {
		name   string
		taskID string
		userID string
		body   string
		status int
		code   string
	}{
		{"outsider", taskID, outsider, `{"text":"hi"}`, http.StatusForbidden, model.ErrCodeForbidden},
		{"blank text", taskID, owner, `{"text":"   "}`, http.StatusBadRequest, model.ErrCodeInvalidRequest},
		{"missing task", "no-such-task", owner, `{"text":"hi"}`, http.StatusNotFound, model.ErrCodeTaskNotFound},
		{"unknown user", taskID, "ghost", `{"text":"hi"}`, http.StatusNotFound, model.ErrCodeUserNotFound},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := httptest.NewRecorder()
			h.AddComment(w, commentRequestFor(http.MethodPost, tt.taskID, tt.body, tt.userID))
			assertErrorCode(t, w, tt.status, tt.code)
		})
	}
}

func TestCommentHandler_EditComment_AuthorOnly(t *testing.T) {
	env := newTestEnv()
	owner := env.store.AddUser("owner")
	editor := env.store.AddUser("editor")
	listID := env.store.AddList(owner, "L")
	env.store.AddShare(listID, editor, model.RoleEditor)
	taskID := env.store.AddTask(listID, owner, owner, "T")
	commentID := env.store.AddComment(taskID, editor, "first")
	h := NewCommentHandler(env.comments, env.users)

	w := httptest.NewRecorder()
	h.EditComment(w, commentRequestFor(http.MethodPut, commentID, `{"text":"by owner"}`, owner))
	assertErrorCode(t, w, http.StatusForbidden, model.ErrCodeNotCommentAuthor)

	w = httptest.NewRecorder()
	h.EditComment(w, commentRequestFor(http.MethodPut, commentID, `{"text":"second"}`, editor))
	assertStatus(t, w, http.StatusOK)
	var got commentResponse
	decodeBody(t, w, &got)
	if got.Text != "second" {
		t.Errorf("text = %q, want %q", got.Text, "second")
	}

	w = httptest.NewRecorder()
	h.EditComment(w, commentRequestFor(http.MethodPut, "no-such-comment", `{"text":"x"}`, editor))
	assertErrorCode(t, w, http.StatusNotFound, model.ErrCodeCommentNotFound)
}

func TestCommentHandler_DeleteComment_AuthorOrTaskManager(t *testing.T) {
	env := newTestEnv()
	owner := env.store.AddUser("owner")
	viewer := env.store.AddUser("viewer")
	viewer2 := env.store.AddUser("viewer2")
	listID := env.store.AddList(owner, "L")
	env.store.AddShare(listID, viewer, model.RoleViewer)
	env.store.AddShare(listID, viewer2, model.RoleViewer)
	taskID := env.store.AddTask(listID, owner, owner, "T")
	c1 := env.store.AddComment(taskID, viewer, "one")
	c2 := env.store.AddComment(taskID, viewer, "two")
	h := NewCommentHandler(env.comments, env.users)

	w := httptest.NewRecorder()
	h.DeleteComment(w, commentRequestFor(http.MethodDelete, c1, "", viewer2))
	assertErrorCode(t, w, http.StatusForbidden, model.ErrCodeNotCommentAuthor)

	w = httptest.NewRecorder()
	h.DeleteComment(w, commentRequestFor(http.MethodDelete, c1, "", viewer))
	assertStatus(t, w, http.StatusNoContent)

	w = httptest.NewRecorder()
	h.DeleteComment(w, commentRequestFor(http.MethodDelete, c2, "", owner))
	assertStatus(t, w, http.StatusNoContent)

	remaining, err := env.store.Comments().ListByTask(context.Background(), taskID)
	if err != nil {
		t.Fatal(err)
	}
	if len(remaining) != 0 {
		t.Errorf("remaining comments = %d, want 0", len(remaining))
	}
}

func TestCommentHandler_ListComments_OldestFirst(t *testing.T) {
	env := newTestEnv()
	owner := env.store.AddUser("owner")
	listID := env.store.AddList(owner, "L")
	taskID := env.store.AddTask(listID, owner, owner, "T")
	env.store.AddComment(taskID, owner, "first")
	env.store.AddComment(taskID, owner, "second")
	h := NewCommentHandler(env.comments, env.users)

	req := withChiURLParams(withUserID(httptest.NewRequest(http.MethodGet, "/api/tasks/"+taskID+"/comments", nil), owner), "id", taskID)
	w := httptest.NewRecorder()
	h.ListComments(w, req)

	assertStatus(t, w, http.StatusOK)
	var got []commentResponse
	decodeBody(t, w, &got)
	if len(got) != 2 {
		t.Fatalf("comments = %d, want 2", len(got))
	}
	if got[0].Text != "first" {
		t.Errorf("first comment = %q, want %q", got[0].Text, "first")
	}
}
