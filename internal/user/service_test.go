package user

import (
	"context"
	"errors"
	"strings"
	"testing"

	"golang.org/x/crypto/bcrypt"

	"github.com/hitoshi/todolist/internal/model"
	"github.com/hitoshi/todolist/internal/repository"
	"github.com/hitoshi/todolist/internal/repository/repotest"
)

// --- モック ---

type mockUserRepo struct {
	findByIDFn       func(ctx context.Context, id string) (*model.User, error)
	findByUsernameFn func(ctx context.Context, username string) (*model.User, error)
	createFn         func(ctx context.Context, user *model.User) error
	deleteByIDFn     func(ctx context.Context, id string) error
}

func (m *mockUserRepo) FindByID(ctx context.Context, id string) (*model.User, error) {
	if m.findByIDFn != nil {
		return m.findByIDFn(ctx, id)
	}
	return nil, nil
}
func (m *mockUserRepo) FindByUsername(ctx context.Context, username string) (*model.User, error) {
	if m.findByUsernameFn != nil {
		return m.findByUsernameFn(ctx, username)
	}
	return nil, nil
}
func (m *mockUserRepo) ListAll(ctx context.Context) ([]*model.User, error) {
	return nil, nil
}
func (m *mockUserRepo) Create(ctx context.Context, user *model.User) error {
	if m.createFn != nil {
		return m.createFn(ctx, user)
	}
	return nil
}
func (m *mockUserRepo) DeleteByID(ctx context.Context, id string) error {
	return m.deleteByIDFn(ctx, id)
}

type mockSessionRepo struct {
	deleteByUserIDFn func(ctx context.Context, userID string) error
}

func (m *mockSessionRepo) Create(ctx context.Context, session *model.Session) error {
	return nil
}
func (m *mockSessionRepo) FindByID(ctx context.Context, id string) (*model.Session, error) {
	return nil, nil
}
func (m *mockSessionRepo) DeleteByID(ctx context.Context, id string) error {
	return nil
}
func (m *mockSessionRepo) DeleteByUserID(ctx context.Context, userID string) error {
	return m.deleteByUserIDFn(ctx, userID)
}

var _ repository.UserRepository = (*mockUserRepo)(nil)
var _ repository.SessionRepository = (*mockSessionRepo)(nil)

// --- テスト ---

func TestService_Register(t *testing.T) {
	store := repotest.New()
	svc := NewService(store.Users(), store.Sessions(), bcrypt.MinCost)

	u, err := svc.Register(context.Background(), RegisterInput{
		Username: "  alice ",
		Email:    "alice@example.com",
		FullName: "Alice Liddell",
		Password: "secret1",
	})
	if err != nil {
		t.Fatalf("Register returned error: %v", err)
	}
	if u.Username != "alice" {
		t.Errorf("Username = %q, want trimmed alice", u.Username)
	}
	if u.PasswordHash == "secret1" {
		t.Fatal("password stored in plain text")
	}
	if err := bcrypt.CompareHashAndPassword([]byte(u.PasswordHash), []byte("secret1")); err != nil {
		t.Errorf("hash does not match password: %v", err)
	}

	found, err := svc.FindByID(context.Background(), u.ID)
	if err != nil || found.Username != "alice" {
		t.Errorf("FindByID = %+v, %v", found, err)
	}
}

func TestService_Register_Validation(t *testing.T) {
	svc := NewService(repotest.New().Users(), nil, bcrypt.MinCost)

	tests := []struct {
		name string
		in   RegisterInput
	}{
		{name: "ユーザー名が短い", in: RegisterInput{Username: "ab", Password: "secret1"}},
		{name: "ユーザー名が長い", in: RegisterInput{Username: strings.Repeat("a", MaxUsernameLength+1), Password: "secret1"}},
		{name: "ユーザー名に空白", in: RegisterInput{Username: "al ice", Password: "secret1"}},
		{name: "パスワードが短い", in: RegisterInput{Username: "alice", Password: "12345"}},
		{name: "パスワードが長すぎる", in: RegisterInput{Username: "alice", Password: strings.Repeat("p", 73)}},
		{name: "メールアドレスの形式", in: RegisterInput{Username: "alice", Password: "secret1", Email: "alice"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := svc.Register(context.Background(), tt.in)
			if !model.IsCategory(err, model.CategoryValidation) {
				t.Errorf("error = %v, want validation", err)
			}
		})
	}
}

func TestService_Register_DuplicateUsername(t *testing.T) {
	store := repotest.New()
	store.AddUser("alice")
	svc := NewService(store.Users(), nil, bcrypt.MinCost)

	_, err := svc.Register(context.Background(), RegisterInput{Username: "ALICE", Password: "secret1"})
	if !model.HasCode(err, model.ErrCodeDuplicateUsername) {
		t.Errorf("error = %v, want DUPLICATE_USERNAME", err)
	}
}

// TestService_Register_RaceOnCreate は事前確認をすり抜けた重複が一意制約で競合になることを検証する。
func TestService_Register_RaceOnCreate(t *testing.T) {
	repo := &mockUserRepo{
		createFn: func(ctx context.Context, user *model.User) error {
			return repository.ErrDuplicate
		},
	}
	svc := NewService(repo, nil, bcrypt.MinCost)

	_, err := svc.Register(context.Background(), RegisterInput{Username: "alice", Password: "secret1"})
	if !model.IsCategory(err, model.CategoryConflict) {
		t.Errorf("error = %v, want conflict", err)
	}
}

func TestService_ListAll(t *testing.T) {
	store := repotest.New()
	store.AddUser("bob")
	store.AddUser("alice")
	svc := NewService(store.Users(), nil, bcrypt.MinCost)

	users, err := svc.ListAll(context.Background())
	if err != nil {
		t.Fatalf("ListAll: %v", err)
	}
	if len(users) != 2 || users[0].Username != "alice" {
		t.Errorf("users = %+v, want alice first", users)
	}
}

func TestService_FindByID_NotFound(t *testing.T) {
	svc := NewService(repotest.New().Users(), nil, bcrypt.MinCost)
	_, err := svc.FindByID(context.Background(), "00000000-0000-0000-0000-000000000000")
	if !model.HasCode(err, model.ErrCodeUserNotFound) {
		t.Errorf("error = %v, want USER_NOT_FOUND", err)
	}
}

// TestService_Withdraw は退会処理がセッションとユーザーを削除することを検証する。
func TestService_Withdraw(t *testing.T) {
	userDeleteCalled := false
	sessionDeleteCalled := false

	userRepo := &mockUserRepo{
		findByIDFn: func(ctx context.Context, id string) (*model.User, error) {
			return &model.User{ID: id, Username: "alice"}, nil
		},
		deleteByIDFn: func(ctx context.Context, id string) error {
			if !sessionDeleteCalled {
				t.Error("user deleted before sessions")
			}
			userDeleteCalled = true
			return nil
		},
	}
	sessionRepo := &mockSessionRepo{
		deleteByUserIDFn: func(ctx context.Context, userID string) error {
			sessionDeleteCalled = true
			return nil
		},
	}

	svc := NewService(userRepo, sessionRepo, bcrypt.MinCost)

	if err := svc.Withdraw(context.Background(), "user-1"); err != nil {
		t.Fatalf("Withdraw returned error: %v", err)
	}
	if !sessionDeleteCalled {
		t.Error("expected sessions DeleteByUserID to be called")
	}
	if !userDeleteCalled {
		t.Error("expected user DeleteByID to be called")
	}
}

// TestService_Withdraw_CascadesOwnedLists は退会したユーザーの所有リストと共有が消えることを検証する。
func TestService_Withdraw_CascadesOwnedLists(t *testing.T) {
	store := repotest.New()
	alice := store.AddUser("alice")
	bob := store.AddUser("bob")
	list := store.AddList(alice, "groceries")
	store.AddShare(list, bob, model.RoleEditor)

	svc := NewService(store.Users(), store.Sessions(), bcrypt.MinCost)
	if err := svc.Withdraw(context.Background(), alice); err != nil {
		t.Fatalf("Withdraw: %v", err)
	}

	got, err := store.Lists().FindByID(context.Background(), list)
	if err != nil {
		t.Fatal(err)
	}
	if got != nil {
		t.Error("owned list survived withdrawal")
	}
	shared, err := store.Shares().ListSharedWithUser(context.Background(), bob)
	if err != nil {
		t.Fatal(err)
	}
	if len(shared) != 0 {
		t.Errorf("shared = %v, want none", shared)
	}
}

// TestService_Withdraw_KeepsTasksInOtherUsersLists は退会したユーザーが担当・作成した
// 他ユーザーのリストのタスクが残り、リストのオーナーに引き継がれることを検証する。
func TestService_Withdraw_KeepsTasksInOtherUsersLists(t *testing.T) {
	ctx := context.Background()
	store := repotest.New()
	alice := store.AddUser("alice")
	bob := store.AddUser("bob")
	list := store.AddList(alice, "team")
	store.AddShare(list, bob, model.RoleEditor)
	assigned := store.AddTask(list, alice, bob, "assigned to bob")
	created := store.AddTask(list, bob, bob, "created by bob")
	comment := store.AddComment(assigned, bob, "on it")

	svc := NewService(store.Users(), store.Sessions(), bcrypt.MinCost)
	if err := svc.Withdraw(ctx, bob); err != nil {
		t.Fatalf("Withdraw: %v", err)
	}

	for _, id := range []string{assigned, created} {
		task, err := store.Tasks().FindByID(ctx, id)
		if err != nil {
			t.Fatal(err)
		}
		if task == nil {
			t.Fatalf("task %s in alice's list was deleted", id)
		}
		if task.AssignedUserID != alice || task.OwnerID != alice {
			t.Errorf("task %s owner=%q assignee=%q, want both %q", id, task.OwnerID, task.AssignedUserID, alice)
		}
	}

	c, err := store.Comments().FindByID(ctx, comment)
	if err != nil {
		t.Fatal(err)
	}
	if c == nil {
		t.Fatal("comment on alice's task was deleted")
	}
	if c.UserID != "" || c.Text != "on it" {
		t.Errorf("comment = %+v, want author id cleared and text kept", c)
	}
}

// TestService_Withdraw_UserNotFound は存在しないユーザーの退会がエラーになることを検証する。
func TestService_Withdraw_UserNotFound(t *testing.T) {
	userRepo := &mockUserRepo{
		findByIDFn: func(ctx context.Context, id string) (*model.User, error) {
			return nil, nil
		},
	}

	svc := NewService(userRepo, nil, bcrypt.MinCost)

	err := svc.Withdraw(context.Background(), "nonexistent-user")
	if !model.IsCategory(err, model.CategoryNotFound) {
		t.Fatalf("error = %v, want not_found", err)
	}
}

func TestService_Withdraw_SessionError(t *testing.T) {
	userRepo := &mockUserRepo{
		findByIDFn: func(ctx context.Context, id string) (*model.User, error) {
			return &model.User{ID: id}, nil
		},
		deleteByIDFn: func(ctx context.Context, id string) error {
			t.Error("user must not be deleted when session deletion fails")
			return nil
		},
	}
	sessionRepo := &mockSessionRepo{
		deleteByUserIDFn: func(ctx context.Context, userID string) error {
			return errors.New("db down")
		},
	}
	svc := NewService(userRepo, sessionRepo, bcrypt.MinCost)

	if err := svc.Withdraw(context.Background(), "user-1"); err == nil {
		t.Fatal("expected error")
	}
}
