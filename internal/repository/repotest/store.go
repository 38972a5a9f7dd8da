// Package repotest はrepositoryパッケージのインターフェースをメモリ上で実装する。
// サービス層のテストでPostgreSQLの代わりに使う。
package repotest

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/hitoshi/todolist/internal/model"
	"github.com/hitoshi/todolist/internal/repository"
)

type shareKey struct {
	listID string
	userID string
}

// Store はメモリ上のデータストア。
// 外部キーのCASCADE削除と一意制約はPostgreSQLのスキーマと同じように振る舞う。
type Store struct {
	mu sync.Mutex

	// Err が設定されている場合、全操作がこのエラーを返す。
	Err error

	users    map[string]*model.User
	sessions map[string]*model.Session
	lists    map[string]*model.TodoList
	shares   map[shareKey]*model.ListShare
	tasks    map[string]*model.Task
	comments map[string]*model.Comment
	tags     map[string]*model.Tag
	taskTags map[string]map[string]bool // taskID -> tagID

	now func() time.Time

	clockMu sync.Mutex
	last    time.Time
}

// New は空のStoreを生成する。
func New() *Store {
	s := &Store{
		users:    make(map[string]*model.User),
		sessions: make(map[string]*model.Session),
		lists:    make(map[string]*model.TodoList),
		shares:   make(map[shareKey]*model.ListShare),
		tasks:    make(map[string]*model.Task),
		comments: make(map[string]*model.Comment),
		tags:     make(map[string]*model.Tag),
		taskTags: make(map[string]map[string]bool),
	}
	s.now = s.tick
	return s
}

// tick は単調増加する現在時刻を返す。
// 連続して登録したレコードの作成日時が同じにならないようにする。
func (s *Store) tick() time.Time {
	s.clockMu.Lock()
	defer s.clockMu.Unlock()
	t := time.Now()
	if !t.After(s.last) {
		t = s.last.Add(time.Microsecond)
	}
	s.last = t
	return t
}

// Users はUserRepositoryの実装を返す。
func (s *Store) Users() *UserRepo { return &UserRepo{s} }

// Sessions はSessionRepositoryの実装を返す。
func (s *Store) Sessions() *SessionRepo { return &SessionRepo{s} }

// Lists はListRepositoryの実装を返す。
func (s *Store) Lists() *ListRepo { return &ListRepo{s} }

// Shares はShareRepositoryの実装を返す。
func (s *Store) Shares() *ShareRepo { return &ShareRepo{s} }

// Tasks はTaskRepositoryの実装を返す。
func (s *Store) Tasks() *TaskRepo { return &TaskRepo{s} }

// Comments はCommentRepositoryの実装を返す。
func (s *Store) Comments() *CommentRepo { return &CommentRepo{s} }

// Tags はTagRepositoryの実装を返す。
func (s *Store) Tags() *TagRepo { return &TagRepo{s} }

// AddUser はテスト用にユーザーを登録してIDを返す。
func (s *Store) AddUser(username string) string {
	id := uuid.New().String()
	now := s.now()
	s.mu.Lock()
	defer s.mu.Unlock()
	s.users[id] = &model.User{ID: id, Username: username, Email: username + "@example.com", CreatedAt: now, UpdatedAt: now}
	return id
}

// AddList はテスト用にリストを登録してIDを返す。
func (s *Store) AddList(ownerID, name string) string {
	id := uuid.New().String()
	now := s.now()
	s.mu.Lock()
	defer s.mu.Unlock()
	s.lists[id] = &model.TodoList{ID: id, Name: name, OwnerID: ownerID, CreatedAt: now, UpdatedAt: now}
	return id
}

// AddShare はテスト用に共有レコードを登録する。
func (s *Store) AddShare(listID, userID string, role model.Role) {
	now := s.now()
	s.mu.Lock()
	defer s.mu.Unlock()
	s.shares[shareKey{listID, userID}] = &model.ListShare{ListID: listID, UserID: userID, Role: role, CreatedAt: now, UpdatedAt: now}
}

// AddTask はテスト用にタスクを登録してIDを返す。
func (s *Store) AddTask(listID, ownerID, assigneeID, name string) string {
	id := uuid.New().String()
	now := s.now()
	s.mu.Lock()
	defer s.mu.Unlock()
	s.tasks[id] = &model.Task{ID: id, ListID: listID, Name: name, OwnerID: ownerID, AssignedUserID: assigneeID, CreatedAt: now, UpdatedAt: now}
	return id
}

// AddComment はテスト用にコメントを登録してIDを返す。
func (s *Store) AddComment(taskID, userID, text string) string {
	id := uuid.New().String()
	now := s.now()
	s.mu.Lock()
	defer s.mu.Unlock()
	name := ""
	if u, ok := s.users[userID]; ok {
		name = u.DisplayName()
	}
	s.comments[id] = &model.Comment{ID: id, TaskID: taskID, UserID: userID, UserName: name, Text: text, CreatedAt: now, UpdatedAt: now}
	return id
}

// deleteTaskLocked はタスクと従属するコメント、タグ付けを削除する。
func (s *Store) deleteTaskLocked(id string) {
	delete(s.tasks, id)
	delete(s.taskTags, id)
	for cid, c := range s.comments {
		if c.TaskID == id {
			delete(s.comments, cid)
		}
	}
}

// deleteListLocked はリストと従属する共有、タスクを削除する。
func (s *Store) deleteListLocked(id string) {
	delete(s.lists, id)
	for k := range s.shares {
		if k.listID == id {
			delete(s.shares, k)
		}
	}
	for tid, t := range s.tasks {
		if t.ListID == id {
			s.deleteTaskLocked(tid)
		}
	}
}

func (s *Store) canViewTaskLocked(userID string, t *model.Task) bool {
	if t.AssignedUserID == userID {
		return true
	}
	if l, ok := s.lists[t.ListID]; ok && l.OwnerID == userID {
		return true
	}
	_, shared := s.shares[shareKey{t.ListID, userID}]
	return shared
}

func (s *Store) findTagLocked(name string) *model.Tag {
	for _, tag := range s.tags {
		if strings.EqualFold(tag.Name, name) {
			return tag
		}
	}
	return nil
}

// UserRepo はメモリ上のUserRepository実装。
type UserRepo struct{ s *Store }

func (r *UserRepo) FindByID(_ context.Context, id string) (*model.User, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if r.s.Err != nil {
		return nil, r.s.Err
	}
	if u, ok := r.s.users[id]; ok {
		cp := *u
		return &cp, nil
	}
	return nil, nil
}

func (r *UserRepo) FindByUsername(_ context.Context, username string) (*model.User, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if r.s.Err != nil {
		return nil, r.s.Err
	}
	for _, u := range r.s.users {
		if strings.EqualFold(u.Username, username) {
			cp := *u
			return &cp, nil
		}
	}
	return nil, nil
}

func (r *UserRepo) ListAll(_ context.Context) ([]*model.User, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if r.s.Err != nil {
		return nil, r.s.Err
	}
	var users []*model.User
	for _, u := range r.s.users {
		cp := *u
		users = append(users, &cp)
	}
	sort.Slice(users, func(i, j int) bool {
		return strings.ToLower(users[i].Username) < strings.ToLower(users[j].Username)
	})
	return users, nil
}

func (r *UserRepo) Create(_ context.Context, user *model.User) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if r.s.Err != nil {
		return r.s.Err
	}
	for _, u := range r.s.users {
		if strings.EqualFold(u.Username, user.Username) {
			return repository.ErrDuplicate
		}
	}
	cp := *user
	r.s.users[user.ID] = &cp
	return nil
}

func (r *UserRepo) DeleteByID(_ context.Context, id string) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if r.s.Err != nil {
		return r.s.Err
	}
	if _, ok := r.s.users[id]; !ok {
		return repository.ErrNotFound
	}
	delete(r.s.users, id)
	for sid, sess := range r.s.sessions {
		if sess.UserID == id {
			delete(r.s.sessions, sid)
		}
	}
	for lid, l := range r.s.lists {
		if l.OwnerID == id {
			r.s.deleteListLocked(lid)
		}
	}
	for k := range r.s.shares {
		if k.userID == id {
			delete(r.s.shares, k)
		}
	}
	// 残っているタスクは他ユーザーのリストのものなのでリストのオーナーに引き継ぐ
	for _, t := range r.s.tasks {
		if t.OwnerID != id && t.AssignedUserID != id {
			continue
		}
		l, ok := r.s.lists[t.ListID]
		if !ok {
			continue
		}
		owner := l.OwnerID
		if t.OwnerID == id {
			t.OwnerID = owner
		}
		if t.AssignedUserID == id {
			t.AssignedUserID = owner
		}
		t.UpdatedAt = r.s.now()
	}
	for _, c := range r.s.comments {
		if c.UserID == id {
			c.UserID = ""
		}
	}
	return nil
}

// SessionRepo はメモリ上のSessionRepository実装。
type SessionRepo struct{ s *Store }

func (r *SessionRepo) Create(_ context.Context, session *model.Session) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if r.s.Err != nil {
		return r.s.Err
	}
	cp := *session
	r.s.sessions[session.ID] = &cp
	return nil
}

func (r *SessionRepo) FindByID(_ context.Context, id string) (*model.Session, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if r.s.Err != nil {
		return nil, r.s.Err
	}
	sess, ok := r.s.sessions[id]
	if !ok || !sess.ExpiresAt.After(r.s.now()) {
		return nil, nil
	}
	cp := *sess
	return &cp, nil
}

func (r *SessionRepo) DeleteByID(_ context.Context, id string) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if r.s.Err != nil {
		return r.s.Err
	}
	delete(r.s.sessions, id)
	return nil
}

func (r *SessionRepo) DeleteByUserID(_ context.Context, userID string) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if r.s.Err != nil {
		return r.s.Err
	}
	for id, sess := range r.s.sessions {
		if sess.UserID == userID {
			delete(r.s.sessions, id)
		}
	}
	return nil
}

// ListRepo はメモリ上のListRepository実装。
type ListRepo struct{ s *Store }

func (r *ListRepo) FindByID(_ context.Context, id string) (*model.TodoList, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if r.s.Err != nil {
		return nil, r.s.Err
	}
	if l, ok := r.s.lists[id]; ok {
		cp := *l
		return &cp, nil
	}
	return nil, nil
}

func (r *ListRepo) ListByOwner(_ context.Context, ownerID string) ([]*model.TodoList, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if r.s.Err != nil {
		return nil, r.s.Err
	}
	var lists []*model.TodoList
	for _, l := range r.s.lists {
		if l.OwnerID == ownerID {
			cp := *l
			lists = append(lists, &cp)
		}
	}
	sort.Slice(lists, func(i, j int) bool { return lists[i].CreatedAt.Before(lists[j].CreatedAt) })
	return lists, nil
}

func (r *ListRepo) Create(_ context.Context, list *model.TodoList) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if r.s.Err != nil {
		return r.s.Err
	}
	cp := *list
	r.s.lists[list.ID] = &cp
	return nil
}

func (r *ListRepo) Update(_ context.Context, list *model.TodoList) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if r.s.Err != nil {
		return r.s.Err
	}
	existing, ok := r.s.lists[list.ID]
	if !ok {
		return repository.ErrNotFound
	}
	existing.Name = list.Name
	existing.Description = list.Description
	existing.UpdatedAt = r.s.now()
	return nil
}

func (r *ListRepo) Delete(_ context.Context, id string) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if r.s.Err != nil {
		return r.s.Err
	}
	if _, ok := r.s.lists[id]; !ok {
		return repository.ErrNotFound
	}
	r.s.deleteListLocked(id)
	return nil
}

// ShareRepo はメモリ上のShareRepository実装。
type ShareRepo struct{ s *Store }

func (r *ShareRepo) Find(_ context.Context, listID, userID string) (*model.ListShare, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if r.s.Err != nil {
		return nil, r.s.Err
	}
	if sh, ok := r.s.shares[shareKey{listID, userID}]; ok {
		cp := *sh
		return &cp, nil
	}
	return nil, nil
}

func (r *ShareRepo) ListByList(_ context.Context, listID string) ([]*model.ListShare, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if r.s.Err != nil {
		return nil, r.s.Err
	}
	var shares []*model.ListShare
	for k, sh := range r.s.shares {
		if k.listID == listID {
			cp := *sh
			shares = append(shares, &cp)
		}
	}
	sort.Slice(shares, func(i, j int) bool { return shares[i].CreatedAt.Before(shares[j].CreatedAt) })
	return shares, nil
}

func (r *ShareRepo) ListSharedWithUser(_ context.Context, userID string) ([]model.SharedList, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if r.s.Err != nil {
		return nil, r.s.Err
	}
	var result []model.SharedList
	for k, sh := range r.s.shares {
		if k.userID != userID {
			continue
		}
		l, ok := r.s.lists[k.listID]
		if !ok || l.OwnerID == userID {
			continue
		}
		ownerName := ""
		if owner, ok := r.s.users[l.OwnerID]; ok {
			ownerName = owner.Username
		}
		result = append(result, model.SharedList{
			ListID:        l.ID,
			Name:          l.Name,
			Description:   l.Description,
			OwnerID:       l.OwnerID,
			OwnerUsername: ownerName,
			Role:          sh.Role,
			SharedAt:      sh.CreatedAt,
		})
	}
	sort.Slice(result, func(i, j int) bool { return result[i].SharedAt.After(result[j].SharedAt) })
	return result, nil
}

func (r *ShareRepo) Create(_ context.Context, share *model.ListShare) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if r.s.Err != nil {
		return r.s.Err
	}
	key := shareKey{share.ListID, share.UserID}
	if _, ok := r.s.shares[key]; ok {
		return repository.ErrDuplicate
	}
	cp := *share
	r.s.shares[key] = &cp
	return nil
}

func (r *ShareRepo) UpdateRole(_ context.Context, listID, userID string, role model.Role) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if r.s.Err != nil {
		return r.s.Err
	}
	sh, ok := r.s.shares[shareKey{listID, userID}]
	if !ok {
		return repository.ErrNotFound
	}
	sh.Role = role
	sh.UpdatedAt = r.s.now()
	return nil
}

func (r *ShareRepo) Delete(_ context.Context, listID, userID string) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if r.s.Err != nil {
		return r.s.Err
	}
	key := shareKey{listID, userID}
	if _, ok := r.s.shares[key]; !ok {
		return repository.ErrNotFound
	}
	delete(r.s.shares, key)
	return nil
}

// TaskRepo はメモリ上のTaskRepository実装。
type TaskRepo struct{ s *Store }

func sortTasks(tasks []*model.Task) {
	sort.Slice(tasks, func(i, j int) bool { return tasks[i].CreatedAt.Before(tasks[j].CreatedAt) })
}

func (r *TaskRepo) FindByID(_ context.Context, id string) (*model.Task, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if r.s.Err != nil {
		return nil, r.s.Err
	}
	if t, ok := r.s.tasks[id]; ok {
		cp := *t
		return &cp, nil
	}
	return nil, nil
}

func (r *TaskRepo) ListByList(_ context.Context, listID string) ([]*model.Task, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if r.s.Err != nil {
		return nil, r.s.Err
	}
	var tasks []*model.Task
	for _, t := range r.s.tasks {
		if t.ListID == listID {
			cp := *t
			tasks = append(tasks, &cp)
		}
	}
	sortTasks(tasks)
	return tasks, nil
}

func (r *TaskRepo) ListByAssignee(_ context.Context, userID string, filter model.TaskStatusFilter) ([]*model.Task, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if r.s.Err != nil {
		return nil, r.s.Err
	}
	now := r.s.now()
	var tasks []*model.Task
	for _, t := range r.s.tasks {
		if t.AssignedUserID != userID {
			continue
		}
		switch filter {
		case model.TaskStatusPending:
			if t.IsCompleted {
				continue
			}
		case model.TaskStatusCompleted:
			if !t.IsCompleted {
				continue
			}
		case model.TaskStatusOverdue:
			if !t.IsOverdue(now) {
				continue
			}
		}
		cp := *t
		tasks = append(tasks, &cp)
	}
	sortTasks(tasks)
	return tasks, nil
}

func (r *TaskRepo) Search(_ context.Context, userID string, c model.TaskSearch) ([]*model.Task, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if r.s.Err != nil {
		return nil, r.s.Err
	}
	query := strings.ToLower(c.Query)
	var tasks []*model.Task
	for _, t := range r.s.tasks {
		if !r.s.canViewTaskLocked(userID, t) {
			continue
		}
		if query != "" && !strings.Contains(strings.ToLower(t.Name), query) &&
			!strings.Contains(strings.ToLower(t.Description), query) {
			continue
		}
		if c.IsCompleted != nil && t.IsCompleted != *c.IsCompleted {
			continue
		}
		if c.DueBefore != nil && (t.DueDate == nil || t.DueDate.After(*c.DueBefore)) {
			continue
		}
		if c.AssignedUserID != "" && t.AssignedUserID != c.AssignedUserID {
			continue
		}
		cp := *t
		tasks = append(tasks, &cp)
	}
	sortTasks(tasks)
	return tasks, nil
}

func (r *TaskRepo) Create(_ context.Context, task *model.Task) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if r.s.Err != nil {
		return r.s.Err
	}
	cp := *task
	r.s.tasks[task.ID] = &cp
	return nil
}

func (r *TaskRepo) Update(_ context.Context, task *model.Task) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if r.s.Err != nil {
		return r.s.Err
	}
	existing, ok := r.s.tasks[task.ID]
	if !ok {
		return repository.ErrNotFound
	}
	existing.Name = task.Name
	existing.Description = task.Description
	existing.DueDate = task.DueDate
	existing.IsCompleted = task.IsCompleted
	existing.UpdatedAt = r.s.now()
	return nil
}

func (r *TaskRepo) UpdateAssignee(_ context.Context, id, expectedAssignee, newAssignee string) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if r.s.Err != nil {
		return r.s.Err
	}
	t, ok := r.s.tasks[id]
	if !ok || t.AssignedUserID != expectedAssignee {
		return repository.ErrNotFound
	}
	t.AssignedUserID = newAssignee
	t.UpdatedAt = r.s.now()
	return nil
}

func (r *TaskRepo) UpdateCompletion(_ context.Context, id string, isCompleted bool) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if r.s.Err != nil {
		return r.s.Err
	}
	t, ok := r.s.tasks[id]
	if !ok {
		return repository.ErrNotFound
	}
	t.IsCompleted = isCompleted
	t.UpdatedAt = r.s.now()
	return nil
}

func (r *TaskRepo) Delete(_ context.Context, id string) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if r.s.Err != nil {
		return r.s.Err
	}
	if _, ok := r.s.tasks[id]; !ok {
		return repository.ErrNotFound
	}
	r.s.deleteTaskLocked(id)
	return nil
}

// CommentRepo はメモリ上のCommentRepository実装。
type CommentRepo struct{ s *Store }

func (r *CommentRepo) FindByID(_ context.Context, id string) (*model.Comment, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if r.s.Err != nil {
		return nil, r.s.Err
	}
	if c, ok := r.s.comments[id]; ok {
		cp := *c
		return &cp, nil
	}
	return nil, nil
}

func (r *CommentRepo) ListByTask(_ context.Context, taskID string) ([]*model.Comment, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if r.s.Err != nil {
		return nil, r.s.Err
	}
	var comments []*model.Comment
	for _, c := range r.s.comments {
		if c.TaskID == taskID {
			cp := *c
			comments = append(comments, &cp)
		}
	}
	sort.Slice(comments, func(i, j int) bool { return comments[i].CreatedAt.Before(comments[j].CreatedAt) })
	return comments, nil
}

func (r *CommentRepo) Create(_ context.Context, comment *model.Comment) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if r.s.Err != nil {
		return r.s.Err
	}
	cp := *comment
	r.s.comments[comment.ID] = &cp
	return nil
}

func (r *CommentRepo) UpdateText(_ context.Context, id, text string) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if r.s.Err != nil {
		return r.s.Err
	}
	c, ok := r.s.comments[id]
	if !ok {
		return repository.ErrNotFound
	}
	c.Text = text
	c.UpdatedAt = r.s.now()
	return nil
}

func (r *CommentRepo) Delete(_ context.Context, id string) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if r.s.Err != nil {
		return r.s.Err
	}
	if _, ok := r.s.comments[id]; !ok {
		return repository.ErrNotFound
	}
	delete(r.s.comments, id)
	return nil
}

// TagRepo はメモリ上のTagRepository実装。
type TagRepo struct{ s *Store }

func (r *TagRepo) ListByTask(_ context.Context, taskID string) ([]*model.Tag, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if r.s.Err != nil {
		return nil, r.s.Err
	}
	var tags []*model.Tag
	for tagID := range r.s.taskTags[taskID] {
		cp := *r.s.tags[tagID]
		tags = append(tags, &cp)
	}
	sort.Slice(tags, func(i, j int) bool { return strings.ToLower(tags[i].Name) < strings.ToLower(tags[j].Name) })
	return tags, nil
}

func (r *TagRepo) Attach(_ context.Context, taskID, name string) (*model.Tag, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if r.s.Err != nil {
		return nil, r.s.Err
	}
	if _, ok := r.s.tasks[taskID]; !ok {
		return nil, repository.ErrNotFound
	}
	tag := r.s.findTagLocked(name)
	if tag == nil {
		tag = &model.Tag{ID: uuid.New().String(), Name: name}
		r.s.tags[tag.ID] = tag
	}
	if r.s.taskTags[taskID] == nil {
		r.s.taskTags[taskID] = make(map[string]bool)
	}
	r.s.taskTags[taskID][tag.ID] = true
	cp := *tag
	return &cp, nil
}

func (r *TagRepo) Detach(_ context.Context, taskID, name string) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if r.s.Err != nil {
		return r.s.Err
	}
	tag := r.s.findTagLocked(name)
	if tag == nil || !r.s.taskTags[taskID][tag.ID] {
		return repository.ErrNotFound
	}
	delete(r.s.taskTags[taskID], tag.ID)
	return nil
}

func (r *TagRepo) ListVisibleNames(_ context.Context, userID string) ([]string, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if r.s.Err != nil {
		return nil, r.s.Err
	}
	seen := make(map[string]bool)
	var names []string
	for taskID, tagIDs := range r.s.taskTags {
		t, ok := r.s.tasks[taskID]
		if !ok || !r.s.canViewTaskLocked(userID, t) {
			continue
		}
		for tagID := range tagIDs {
			if !seen[tagID] {
				seen[tagID] = true
				names = append(names, r.s.tags[tagID].Name)
			}
		}
	}
	sort.Slice(names, func(i, j int) bool { return strings.ToLower(names[i]) < strings.ToLower(names[j]) })
	return names, nil
}

func (r *TagRepo) ListVisibleTasksByTag(_ context.Context, userID, name string) ([]*model.Task, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if r.s.Err != nil {
		return nil, r.s.Err
	}
	tag := r.s.findTagLocked(name)
	if tag == nil {
		return nil, nil
	}
	var tasks []*model.Task
	for taskID, tagIDs := range r.s.taskTags {
		t, ok := r.s.tasks[taskID]
		if !ok || !tagIDs[tag.ID] || !r.s.canViewTaskLocked(userID, t) {
			continue
		}
		cp := *t
		tasks = append(tasks, &cp)
	}
	sortTasks(tasks)
	return tasks, nil
}

// compile-time interface check
var (
	_ repository.UserRepository    = (*UserRepo)(nil)
	_ repository.SessionRepository = (*SessionRepo)(nil)
	_ repository.ListRepository    = (*ListRepo)(nil)
	_ repository.ShareRepository   = (*ShareRepo)(nil)
	_ repository.TaskRepository    = (*TaskRepo)(nil)
	_ repository.CommentRepository = (*CommentRepo)(nil)
	_ repository.TagRepository     = (*TagRepo)(nil)
)
