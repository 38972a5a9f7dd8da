package todolist

import (
	"context"
	"strings"
	"testing"

	"github.com/hitoshi/todolist/internal/model"
	"github.com/hitoshi/todolist/internal/permission"
	"github.com/hitoshi/todolist/internal/repository/repotest"
	"github.com/hitoshi/todolist/internal/security"
)

func newTestService(t *testing.T) (*Service, *repotest.Store) {
	t.Helper()
	s := repotest.New()
	checker := permission.NewChecker(s.Lists(), s.Shares(), s.Tasks())
	return NewService(s.Lists(), checker, security.NewTextSanitizer()), s
}

func TestCreateList(t *testing.T) {
	svc, store := newTestService(t)
	ctx := context.Background()
	owner := store.AddUser("owner")

	list, err := svc.CreateList(ctx, owner, "  Groceries  ", "<b>weekly</b> run")
	if err != nil {
		t.Fatalf("CreateList: %v", err)
	}
	if list.Name != "Groceries" {
		t.Errorf("Name = %q, want trimmed", list.Name)
	}
	if list.Description != "weekly run" {
		t.Errorf("Description = %q, want sanitized", list.Description)
	}
	if list.OwnerID != owner {
		t.Errorf("OwnerID = %q, want %q", list.OwnerID, owner)
	}

	got, err := svc.GetList(ctx, owner, list.ID)
	if err != nil {
		t.Fatalf("GetList: %v", err)
	}
	if got.Role != model.RoleOwner {
		t.Errorf("Role = %q, want Owner", got.Role)
	}
}

func TestCreateList_Validation(t *testing.T) {
	svc, store := newTestService(t)
	owner := store.AddUser("owner")

	for _, name := range []string{"", "   ", strings.Repeat("x", MaxNameLength+1)} {
		_, err := svc.CreateList(context.Background(), owner, name, "")
		if !model.IsCategory(err, model.CategoryValidation) {
			t.Errorf("CreateList(%q) error = %v, want validation", name, err)
		}
	}
}

func TestGetList_Access(t *testing.T) {
	svc, store := newTestService(t)
	ctx := context.Background()
	owner := store.AddUser("owner")
	viewer := store.AddUser("viewer")
	outsider := store.AddUser("outsider")
	list := store.AddList(owner, "L")
	store.AddShare(list, viewer, model.RoleViewer)

	got, err := svc.GetList(ctx, viewer, list)
	if err != nil {
		t.Fatalf("GetList(viewer): %v", err)
	}
	if got.Role != model.RoleViewer {
		t.Errorf("Role = %q, want Viewer", got.Role)
	}

	if _, err := svc.GetList(ctx, outsider, list); !model.IsCategory(err, model.CategoryPermission) {
		t.Errorf("GetList(outsider) error = %v, want permission", err)
	}
	if _, err := svc.GetList(ctx, owner, "00000000-0000-0000-0000-000000000000"); !model.IsCategory(err, model.CategoryNotFound) {
		t.Errorf("GetList(missing) error = %v, want not_found", err)
	}
}

func TestUpdateList_EditorAllowedViewerDenied(t *testing.T) {
	svc, store := newTestService(t)
	ctx := context.Background()
	owner := store.AddUser("owner")
	editor := store.AddUser("editor")
	viewer := store.AddUser("viewer")
	list := store.AddList(owner, "L")
	store.AddShare(list, editor, model.RoleEditor)
	store.AddShare(list, viewer, model.RoleViewer)

	updated, err := svc.UpdateList(ctx, editor, list, "Renamed", "desc")
	if err != nil {
		t.Fatalf("UpdateList(editor): %v", err)
	}
	if updated.Name != "Renamed" || updated.OwnerID != owner {
		t.Errorf("updated = %+v", updated)
	}

	if _, err := svc.UpdateList(ctx, viewer, list, "Nope", ""); !model.IsCategory(err, model.CategoryPermission) {
		t.Errorf("UpdateList(viewer) error = %v, want permission", err)
	}
}

func TestDeleteList_OwnerOnly(t *testing.T) {
	svc, store := newTestService(t)
	ctx := context.Background()
	owner := store.AddUser("owner")
	editor := store.AddUser("editor")
	list := store.AddList(owner, "L")
	store.AddShare(list, editor, model.RoleEditor)
	task := store.AddTask(list, owner, owner, "T")

	if err := svc.DeleteList(ctx, editor, list); !model.IsCategory(err, model.CategoryPermission) {
		t.Fatalf("DeleteList(editor) error = %v, want permission", err)
	}
	if err := svc.DeleteList(ctx, owner, list); err != nil {
		t.Fatalf("DeleteList(owner): %v", err)
	}
	if got, _ := store.Tasks().FindByID(ctx, task); got != nil {
		t.Error("task survived list deletion")
	}
	if err := svc.DeleteList(ctx, owner, list); !model.IsCategory(err, model.CategoryNotFound) {
		t.Errorf("second DeleteList error = %v, want not_found", err)
	}
}

func TestListOwned(t *testing.T) {
	svc, store := newTestService(t)
	owner := store.AddUser("owner")
	other := store.AddUser("other")
	store.AddList(owner, "A")
	store.AddList(owner, "B")
	store.AddList(other, "C")

	lists, err := svc.ListOwned(context.Background(), owner)
	if err != nil {
		t.Fatalf("ListOwned: %v", err)
	}
	if len(lists) != 2 {
		t.Errorf("len = %d, want 2", len(lists))
	}
}
