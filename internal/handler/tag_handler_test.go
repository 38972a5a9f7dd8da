package handler

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/hitoshi/todolist/internal/model"
)

func tagRequestFor(method, taskID, name, body, userID string) *http.Request {
	req := jsonRequest(method, "/api/tasks/"+taskID+"/tags", body)
	req = withUserID(req, userID)
	if name == "" {
		return withChiURLParams(req, "id", taskID)
	}
	return withChiURLParams(req, "id", taskID, "name", name)
}

func TestTagHandler_AddAndListTags(t *testing.T) {
	env := newTestEnv()
	owner := env.store.AddUser("owner")
	listID := env.store.AddList(owner, "L")
	taskID := env.store.AddTask(listID, owner, owner, "T")
	h := NewTagHandler(env.tags)

	w := httptest.NewRecorder()
	h.AddTag(w, tagRequestFor(http.MethodPost, taskID, "", `{"name":"Urgent"}`, owner))
	assertStatus(t, w, http.StatusCreated)

	// 大文字小文字違いは同じタグとして扱う
	w = httptest.NewRecorder()
	h.AddTag(w, tagRequestFor(http.MethodPost, taskID, "", `{"name":"urgent"}`, owner))
	assertStatus(t, w, http.StatusCreated)

	w = httptest.NewRecorder()
	h.TagsForTask(w, tagRequestFor(http.MethodGet, taskID, "", "", owner))
	assertStatus(t, w, http.StatusOK)
	var got []tagResponse
	decodeBody(t, w, &got)
	if len(got) != 1 {
		t.Fatalf("tags = %+v, want exactly one", got)
	}
}

func TestTagHandler_AddTag_ViewerForbidden(t *testing.T) {
	env := newTestEnv()
	owner := env.store.AddUser("owner")
	viewer := env.store.AddUser("viewer")
	listID := env.store.AddList(owner, "L")
	env.store.AddShare(listID, viewer, model.RoleViewer)
	taskID := env.store.AddTask(listID, owner, owner, "T")
	h := NewTagHandler(env.tags)

	w := httptest.NewRecorder()
	h.AddTag(w, tagRequestFor(http.MethodPost, taskID, "", `{"name":"x"}`, viewer))
	assertErrorCode(t, w, http.StatusForbidden, model.ErrCodeForbidden)

	// 閲覧はできる
	w = httptest.NewRecorder()
	h.TagsForTask(w, tagRequestFor(http.MethodGet, taskID, "", "", viewer))
	assertStatus(t, w, http.StatusOK)
}

func TestTagHandler_AddTag_InvalidName(t *testing.T) {
	env := newTestEnv()
	owner := env.store.AddUser("owner")
	listID := env.store.AddList(owner, "L")
	taskID := env.store.AddTask(listID, owner, owner, "T")
	h := NewTagHandler(env.tags)

	for _, body := range []string{`{"name":""}`, `{"name":"a/b"}`, `{"name":"a,b"}`} {
		w := httptest.NewRecorder()
		h.AddTag(w, tagRequestFor(http.MethodPost, taskID, "", body, owner))
		assertErrorCode(t, w, http.StatusBadRequest, model.ErrCodeInvalidRequest)
	}
}

func TestTagHandler_RemoveTag(t *testing.T) {
	env := newTestEnv()
	owner := env.store.AddUser("owner")
	listID := env.store.AddList(owner, "L")
	taskID := env.store.AddTask(listID, owner, owner, "T")
	h := NewTagHandler(env.tags)

	w := httptest.NewRecorder()
	h.AddTag(w, tagRequestFor(http.MethodPost, taskID, "", `{"name":"home"}`, owner))
	assertStatus(t, w, http.StatusCreated)

	w = httptest.NewRecorder()
	h.RemoveTag(w, tagRequestFor(http.MethodDelete, taskID, "home", "", owner))
	assertStatus(t, w, http.StatusNoContent)

	w = httptest.NewRecorder()
	h.RemoveTag(w, tagRequestFor(http.MethodDelete, taskID, "home", "", owner))
	assertErrorCode(t, w, http.StatusNotFound, model.ErrCodeTagNotFound)
}

func TestTagHandler_AllTags_And_TasksByTag_OnlyVisible(t *testing.T) {
	env := newTestEnv()
	u1 := env.store.AddUser("u1")
	u2 := env.store.AddUser("u2")
	l1 := env.store.AddList(u1, "L1")
	l2 := env.store.AddList(u2, "L2")
	t1 := env.store.AddTask(l1, u1, u1, "T1")
	t2 := env.store.AddTask(l2, u2, u2, "T2")
	h := NewTagHandler(env.tags)

	for _, tc := range []struct{ taskID, userID, name string }{{t1, u1, "mine"}, {t2, u2, "secret"}} {
		w := httptest.NewRecorder()
		h.AddTag(w, tagRequestFor(http.MethodPost, tc.taskID, "", `{"name":"`+tc.name+`"}`, tc.userID))
		assertStatus(t, w, http.StatusCreated)
	}

	w := httptest.NewRecorder()
	h.AllTags(w, withUserID(httptest.NewRequest(http.MethodGet, "/api/tags", nil), u1))
	assertStatus(t, w, http.StatusOK)
	var names []string
	decodeBody(t, w, &names)
	if len(names) != 1 || names[0] != "mine" {
		t.Errorf("tags = %v, want [mine]", names)
	}

	req := withChiURLParams(withUserID(httptest.NewRequest(http.MethodGet, "/api/tags/secret/tasks", nil), u1), "name", "secret")
	w = httptest.NewRecorder()
	h.TasksByTag(w, req)
	assertStatus(t, w, http.StatusOK)
	var tasks []taskResponse
	decodeBody(t, w, &tasks)
	if len(tasks) != 0 {
		t.Errorf("tasks = %+v, want none", tasks)
	}
}
