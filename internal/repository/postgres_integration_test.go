package repository

import (
	"context"
	"database/sql"
	"errors"
	"os"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/hitoshi/todolist/internal/database"
	"github.com/hitoshi/todolist/internal/model"
)

// openIntegrationDB はTEST_DATABASE_URLのPostgreSQLにマイグレーションを適用して返す。
// 未設定または接続できない場合はスキップする。
func openIntegrationDB(t *testing.T) *sql.DB {
	t.Helper()

	dbURL := os.Getenv("TEST_DATABASE_URL")
	if dbURL == "" {
		t.Skip("TEST_DATABASE_URL が未設定のためスキップ")
	}
	db, err := database.Open(dbURL)
	if err != nil {
		t.Fatalf("データベースへの接続に失敗: %v", err)
	}
	if err := db.Ping(); err != nil {
		t.Skipf("テスト用データベースに接続できません（スキップ）: %v", err)
	}
	if err := database.RunMigrations(dbURL); err != nil {
		t.Fatalf("マイグレーション実行に失敗: %v", err)
	}
	if _, err := db.Exec(`TRUNCATE users, tags CASCADE`); err != nil {
		t.Fatalf("クリーンアップに失敗: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return db
}

func createTestUser(t *testing.T, repo *PostgresUserRepo, username string) *model.User {
	t.Helper()
	now := time.Now()
	u := &model.User{
		ID:           uuid.New().String(),
		Username:     username,
		Email:        username + "@example.com",
		PasswordHash: "hash",
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	if err := repo.Create(context.Background(), u); err != nil {
		t.Fatalf("ユーザー作成に失敗: %v", err)
	}
	return u
}

func TestPostgresRepos_SharingLifecycle(t *testing.T) {
	db := openIntegrationDB(t)
	ctx := context.Background()

	users := NewPostgresUserRepo(db)
	lists := NewPostgresListRepo(db)
	shares := NewPostgresShareRepo(db)

	owner := createTestUser(t, users, "owner")
	editor := createTestUser(t, users, "editor")

	now := time.Now()
	list := &model.TodoList{ID: uuid.New().String(), Name: "Groceries", OwnerID: owner.ID, CreatedAt: now, UpdatedAt: now}
	if err := lists.Create(ctx, list); err != nil {
		t.Fatalf("リスト作成に失敗: %v", err)
	}

	share := &model.ListShare{ListID: list.ID, UserID: editor.ID, Role: model.RoleViewer, CreatedAt: now, UpdatedAt: now}
	if err := shares.Create(ctx, share); err != nil {
		t.Fatalf("共有作成に失敗: %v", err)
	}
	if err := shares.Create(ctx, share); !errors.Is(err, ErrDuplicate) {
		t.Errorf("二重共有 = %v, want ErrDuplicate", err)
	}

	if err := shares.UpdateRole(ctx, list.ID, editor.ID, model.RoleEditor); err != nil {
		t.Fatalf("ロール更新に失敗: %v", err)
	}
	got, err := shares.Find(ctx, list.ID, editor.ID)
	if err != nil || got == nil {
		t.Fatalf("共有取得に失敗: %v", err)
	}
	if got.Role != model.RoleEditor {
		t.Errorf("Role = %q, want Editor", got.Role)
	}

	shared, err := shares.ListSharedWithUser(ctx, editor.ID)
	if err != nil {
		t.Fatalf("共有リスト一覧の取得に失敗: %v", err)
	}
	if len(shared) != 1 || shared[0].OwnerUsername != "owner" {
		t.Errorf("ListSharedWithUser = %+v, want 1件 (owner)", shared)
	}

	ownerShared, err := shares.ListSharedWithUser(ctx, owner.ID)
	if err != nil {
		t.Fatalf("共有リスト一覧の取得に失敗: %v", err)
	}
	if len(ownerShared) != 0 {
		t.Errorf("オーナーの共有リスト一覧 = %d件, want 0", len(ownerShared))
	}

	if err := shares.Delete(ctx, list.ID, editor.ID); err != nil {
		t.Fatalf("共有削除に失敗: %v", err)
	}
	if err := shares.Delete(ctx, list.ID, editor.ID); !errors.Is(err, ErrNotFound) {
		t.Errorf("2回目の共有削除 = %v, want ErrNotFound", err)
	}
}

func TestPostgresRepos_TaskAssignmentAndTags(t *testing.T) {
	db := openIntegrationDB(t)
	ctx := context.Background()

	users := NewPostgresUserRepo(db)
	lists := NewPostgresListRepo(db)
	tasks := NewPostgresTaskRepo(db)
	tags := NewPostgresTagRepo(db)

	u1 := createTestUser(t, users, "u1")
	u2 := createTestUser(t, users, "u2")
	u3 := createTestUser(t, users, "u3")

	now := time.Now()
	list := &model.TodoList{ID: uuid.New().String(), Name: "Work", OwnerID: u1.ID, CreatedAt: now, UpdatedAt: now}
	if err := lists.Create(ctx, list); err != nil {
		t.Fatalf("リスト作成に失敗: %v", err)
	}
	past := now.Add(-24 * time.Hour)
	task := &model.Task{
		ID: uuid.New().String(), ListID: list.ID, Name: "Report", DueDate: &past,
		OwnerID: u1.ID, AssignedUserID: u1.ID, CreatedAt: now, UpdatedAt: now,
	}
	if err := tasks.Create(ctx, task); err != nil {
		t.Fatalf("タスク作成に失敗: %v", err)
	}

	if err := tasks.UpdateAssignee(ctx, task.ID, u2.ID, u3.ID); !errors.Is(err, ErrNotFound) {
		t.Errorf("担当者不一致のUpdateAssignee = %v, want ErrNotFound", err)
	}
	if err := tasks.UpdateAssignee(ctx, task.ID, u1.ID, u2.ID); err != nil {
		t.Fatalf("担当者更新に失敗: %v", err)
	}

	overdue, err := tasks.ListByAssignee(ctx, u2.ID, model.TaskStatusOverdue)
	if err != nil {
		t.Fatalf("担当タスク一覧の取得に失敗: %v", err)
	}
	if len(overdue) != 1 {
		t.Errorf("overdue = %d件, want 1", len(overdue))
	}
	if err := tasks.UpdateCompletion(ctx, task.ID, true); err != nil {
		t.Fatalf("完了状態の更新に失敗: %v", err)
	}
	pending, _ := tasks.ListByAssignee(ctx, u2.ID, model.TaskStatusPending)
	if len(pending) != 0 {
		t.Errorf("pending = %d件, want 0", len(pending))
	}

	first, err := tags.Attach(ctx, task.ID, "Urgent")
	if err != nil {
		t.Fatalf("タグ付与に失敗: %v", err)
	}
	second, err := tags.Attach(ctx, task.ID, "urgent")
	if err != nil {
		t.Fatalf("2回目のタグ付与に失敗: %v", err)
	}
	if first.ID != second.ID {
		t.Errorf("大文字小文字違いで別タグが作られた: %s != %s", first.ID, second.ID)
	}
	onTask, _ := tags.ListByTask(ctx, task.ID)
	if len(onTask) != 1 {
		t.Errorf("タスクのタグ = %d件, want 1", len(onTask))
	}

	// u2は担当者なので見える、u3は見えない
	if names, _ := tags.ListVisibleNames(ctx, u2.ID); len(names) != 1 {
		t.Errorf("u2の可視タグ = %v, want [Urgent]", names)
	}
	if found, _ := tags.ListVisibleTasksByTag(ctx, u3.ID, "URGENT"); len(found) != 0 {
		t.Errorf("u3の可視タスク = %d件, want 0", len(found))
	}

	if err := tags.Detach(ctx, task.ID, "URGENT"); err != nil {
		t.Fatalf("タグ解除に失敗: %v", err)
	}
	if err := tags.Detach(ctx, task.ID, "urgent"); !errors.Is(err, ErrNotFound) {
		t.Errorf("2回目のタグ解除 = %v, want ErrNotFound", err)
	}
}

func TestPostgresRepos_Comments(t *testing.T) {
	db := openIntegrationDB(t)
	ctx := context.Background()

	users := NewPostgresUserRepo(db)
	lists := NewPostgresListRepo(db)
	tasks := NewPostgresTaskRepo(db)
	comments := NewPostgresCommentRepo(db)

	u := createTestUser(t, users, "author")
	now := time.Now()
	list := &model.TodoList{ID: uuid.New().String(), Name: "L", OwnerID: u.ID, CreatedAt: now, UpdatedAt: now}
	if err := lists.Create(ctx, list); err != nil {
		t.Fatalf("リスト作成に失敗: %v", err)
	}
	task := &model.Task{ID: uuid.New().String(), ListID: list.ID, Name: "T", OwnerID: u.ID, AssignedUserID: u.ID, CreatedAt: now, UpdatedAt: now}
	if err := tasks.Create(ctx, task); err != nil {
		t.Fatalf("タスク作成に失敗: %v", err)
	}

	for i, text := range []string{"first", "second"} {
		c := &model.Comment{
			ID: uuid.New().String(), TaskID: task.ID, UserID: u.ID, UserName: "author", Text: text,
			CreatedAt: now.Add(time.Duration(i) * time.Second), UpdatedAt: now,
		}
		if err := comments.Create(ctx, c); err != nil {
			t.Fatalf("コメント作成に失敗: %v", err)
		}
	}

	got, err := comments.ListByTask(ctx, task.ID)
	if err != nil {
		t.Fatalf("コメント一覧の取得に失敗: %v", err)
	}
	if len(got) != 2 || got[0].Text != "first" {
		t.Fatalf("ListByTask = %+v, want [first second]", got)
	}
	if err := comments.UpdateText(ctx, got[0].ID, "edited"); err != nil {
		t.Fatalf("コメント更新に失敗: %v", err)
	}
	if err := lists.Delete(ctx, list.ID); err != nil {
		t.Fatalf("リスト削除に失敗: %v", err)
	}
	if c, _ := comments.FindByID(ctx, got[0].ID); c != nil {
		t.Error("リスト削除後もコメントが残っている")
	}
}

// TestPostgresRepos_DeleteUserHandsBackTasks は退会したユーザーのタスクが
// 他ユーザーのリストに残り、リストのオーナーへ引き継がれることを検証する。
func TestPostgresRepos_DeleteUserHandsBackTasks(t *testing.T) {
	db := openIntegrationDB(t)
	ctx := context.Background()

	users := NewPostgresUserRepo(db)
	lists := NewPostgresListRepo(db)
	shares := NewPostgresShareRepo(db)
	tasks := NewPostgresTaskRepo(db)
	comments := NewPostgresCommentRepo(db)

	owner := createTestUser(t, users, "owner")
	editor := createTestUser(t, users, "editor")

	now := time.Now()
	list := &model.TodoList{ID: uuid.New().String(), Name: "Team", OwnerID: owner.ID, CreatedAt: now, UpdatedAt: now}
	if err := lists.Create(ctx, list); err != nil {
		t.Fatalf("リスト作成に失敗: %v", err)
	}
	share := &model.ListShare{ListID: list.ID, UserID: editor.ID, Role: model.RoleEditor, CreatedAt: now, UpdatedAt: now}
	if err := shares.Create(ctx, share); err != nil {
		t.Fatalf("共有作成に失敗: %v", err)
	}
	task := &model.Task{ID: uuid.New().String(), ListID: list.ID, Name: "Review", OwnerID: editor.ID, AssignedUserID: editor.ID, CreatedAt: now, UpdatedAt: now}
	if err := tasks.Create(ctx, task); err != nil {
		t.Fatalf("タスク作成に失敗: %v", err)
	}
	comment := &model.Comment{ID: uuid.New().String(), TaskID: task.ID, UserID: editor.ID, UserName: "editor", Text: "done soon", CreatedAt: now, UpdatedAt: now}
	if err := comments.Create(ctx, comment); err != nil {
		t.Fatalf("コメント作成に失敗: %v", err)
	}

	if err := users.DeleteByID(ctx, editor.ID); err != nil {
		t.Fatalf("ユーザー削除に失敗: %v", err)
	}
	if err := users.DeleteByID(ctx, editor.ID); !errors.Is(err, ErrNotFound) {
		t.Errorf("2回目のユーザー削除 = %v, want ErrNotFound", err)
	}

	got, err := tasks.FindByID(ctx, task.ID)
	if err != nil {
		t.Fatalf("タスク取得に失敗: %v", err)
	}
	if got == nil {
		t.Fatal("退会後にオーナーのリストのタスクが消えた")
	}
	if got.OwnerID != owner.ID || got.AssignedUserID != owner.ID {
		t.Errorf("owner=%s assignee=%s, want both %s", got.OwnerID, got.AssignedUserID, owner.ID)
	}

	c, err := comments.FindByID(ctx, comment.ID)
	if err != nil {
		t.Fatalf("コメント取得に失敗: %v", err)
	}
	if c == nil || c.UserID != "" || c.Text != "done soon" {
		t.Errorf("comment = %+v, want 投稿者IDのみ消えて本文が残る", c)
	}
}

func TestPostgresRepos_SearchTasks(t *testing.T) {
	db := openIntegrationDB(t)
	ctx := context.Background()

	users := NewPostgresUserRepo(db)
	lists := NewPostgresListRepo(db)
	tasks := NewPostgresTaskRepo(db)

	owner := createTestUser(t, users, "owner")
	assignee := createTestUser(t, users, "assignee")

	now := time.Now()
	list := &model.TodoList{ID: uuid.New().String(), Name: "Work", OwnerID: owner.ID, CreatedAt: now, UpdatedAt: now}
	if err := lists.Create(ctx, list); err != nil {
		t.Fatalf("リスト作成に失敗: %v", err)
	}
	due := now.Add(48 * time.Hour)
	for i, task := range []*model.Task{
		{Name: "Quarterly report", Description: "numbers 100%", DueDate: &due, AssignedUserID: assignee.ID},
		{Name: "Groceries", Description: "milk_and_eggs", AssignedUserID: owner.ID},
	} {
		task.ID = uuid.New().String()
		task.ListID = list.ID
		task.OwnerID = owner.ID
		task.CreatedAt = now.Add(time.Duration(i) * time.Second)
		task.UpdatedAt = now
		if err := tasks.Create(ctx, task); err != nil {
			t.Fatalf("タスク作成に失敗: %v", err)
		}
	}

	search := func(userID string, c model.TaskSearch) []*model.Task {
		t.Helper()
		got, err := tasks.Search(ctx, userID, c)
		if err != nil {
			t.Fatalf("タスク検索に失敗: %v", err)
		}
		return got
	}

	if got := search(owner.ID, model.TaskSearch{}); len(got) != 2 {
		t.Errorf("条件なし = %d件, want 2", len(got))
	}
	// %と_は通常の文字として扱う
	if got := search(owner.ID, model.TaskSearch{Query: "100%"}); len(got) != 1 || got[0].Name != "Quarterly report" {
		t.Errorf("q=100%% = %+v", got)
	}
	if got := search(owner.ID, model.TaskSearch{Query: "k_a"}); len(got) != 1 || got[0].Name != "Groceries" {
		t.Errorf("q=k_a = %+v", got)
	}
	if got := search(owner.ID, model.TaskSearch{DueBefore: &due}); len(got) != 1 {
		t.Errorf("due_before = %d件, want 1", len(got))
	}
	completed := true
	if got := search(owner.ID, model.TaskSearch{IsCompleted: &completed}); len(got) != 0 {
		t.Errorf("完了済み = %d件, want 0", len(got))
	}
	// 担当者はリストに共有されていなくても担当タスクだけ見える
	if got := search(assignee.ID, model.TaskSearch{}); len(got) != 1 || got[0].AssignedUserID != assignee.ID {
		t.Errorf("担当者の検索結果 = %+v", got)
	}
	if got := search(owner.ID, model.TaskSearch{AssignedUserID: "not-a-uuid"}); len(got) != 0 {
		t.Errorf("不正な担当者ID = %d件, want 0", len(got))
	}
}
