// Package memory provides a map-backed storage.Store with the same observable
// semantics as the Postgres store. It backs unit and handler tests.
package memory

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/hongminglow/kinder-admin/internal/models"
	"github.com/hongminglow/kinder-admin/internal/storage"
)

var _ storage.Store = (*Store)(nil)

// errForeignKey mirrors a Postgres foreign key violation, which the
// Postgres store reports as storage unavailable.
var errForeignKey = errors.New("foreign key violation")

type Store struct {
	mu     sync.RWMutex
	roles  map[int64]models.Role
	users  map[int64]models.User
	posts  map[int64]models.Post
	nextID int64
	now    func() time.Time
}

func New() *Store {
	return &Store{
		roles: make(map[int64]models.Role),
		users: make(map[int64]models.User),
		posts: make(map[int64]models.Post),
		now:   time.Now,
	}
}

func (s *Store) Ping(context.Context) error { return nil }

func (s *Store) Close() {}

func (s *Store) id() int64 {
	s.nextID++
	return s.nextID
}

// Roles

func (s *Store) FindRoleByID(_ context.Context, id int64) (models.Role, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	role, ok := s.roles[id]
	if !ok {
		return models.Role{}, storage.ErrNotFound
	}
	return role, nil
}

func (s *Store) FindRoleByName(_ context.Context, name string) (models.Role, error) {
	return s.firstRole(func(r models.Role) bool { return r.Name == name })
}

func (s *Store) FindDefaultRole(_ context.Context) (models.Role, error) {
	return s.firstRole(func(r models.Role) bool { return r.IsDefault })
}

func (s *Store) FindRoleByPermissions(_ context.Context, perms models.Permission) (models.Role, error) {
	return s.firstRole(func(r models.Role) bool { return r.Permissions == perms })
}

func (s *Store) firstRole(match func(models.Role) bool) (models.Role, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var found *models.Role
	for _, role := range s.roles {
		if !match(role) {
			continue
		}
		if found == nil || role.ID < found.ID {
			r := role
			found = &r
		}
	}
	if found == nil {
		return models.Role{}, storage.ErrNotFound
	}
	return *found, nil
}

func (s *Store) SaveRole(_ context.Context, role models.Role) (models.Role, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if role.ID == 0 {
		for id, existing := range s.roles {
			if existing.Name == role.Name {
				role.ID = id
				break
			}
		}
		if role.ID == 0 {
			role.ID = s.id()
		}
		s.roles[role.ID] = role
		return role, nil
	}
	if _, ok := s.roles[role.ID]; !ok {
		return models.Role{}, storage.ErrNotFound
	}
	for id, existing := range s.roles {
		if id != role.ID && existing.Name == role.Name {
			return models.Role{}, storage.ErrAlreadyExists
		}
	}
	s.roles[role.ID] = role
	return role, nil
}

func (s *Store) ListRoles(_ context.Context) ([]models.Role, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]models.Role, 0, len(s.roles))
	for _, role := range s.roles {
		out = append(out, role)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

// Users

func (s *Store) CreateUser(_ context.Context, user models.User) (models.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.conflicts(0, user.Email, user.Username) {
		return models.User{}, storage.ErrAlreadyExists
	}
	role, ok := s.roles[user.RoleID]
	if !ok {
		return models.User{}, storage.Unavailable("create user", fmt.Errorf("%w: role %d", errForeignKey, user.RoleID))
	}
	now := s.now()
	user.ID = s.id()
	user.Role = role
	if user.MemberSince.IsZero() {
		user.MemberSince = now
	}
	if user.LastSeen.IsZero() {
		user.LastSeen = now
	}
	s.users[user.ID] = user
	return user, nil
}

func (s *Store) conflicts(selfID int64, email, username string) bool {
	for id, u := range s.users {
		if id == selfID {
			continue
		}
		if u.Email == email || u.Username == username {
			return true
		}
	}
	return false
}

func (s *Store) FindUserByID(_ context.Context, id int64) (models.User, error) {
	return s.findUser(func(u models.User) bool { return u.ID == id })
}

func (s *Store) FindUserByEmail(_ context.Context, email string) (models.User, error) {
	return s.findUser(func(u models.User) bool { return u.Email == email })
}

func (s *Store) FindUserByUsername(_ context.Context, username string) (models.User, error) {
	return s.findUser(func(u models.User) bool { return u.Username == username })
}

func (s *Store) findUser(match func(models.User) bool) (models.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, u := range s.users {
		if match(u) {
			u.Role = s.roles[u.RoleID]
			return u, nil
		}
	}
	return models.User{}, storage.ErrNotFound
}

func (s *Store) UpdateUser(_ context.Context, user models.User) (models.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	current, ok := s.users[user.ID]
	if !ok {
		return models.User{}, storage.ErrNotFound
	}
	if s.conflicts(user.ID, user.Email, user.Username) {
		return models.User{}, storage.ErrAlreadyExists
	}
	role, ok := s.roles[user.RoleID]
	if !ok {
		return models.User{}, storage.Unavailable("update user", fmt.Errorf("%w: role %d", errForeignKey, user.RoleID))
	}
	user.PasswordHash = current.PasswordHash
	user.Confirmed = current.Confirmed
	user.Deleted = current.Deleted
	user.MemberSince = current.MemberSince
	user.LastSeen = current.LastSeen
	user.Role = role
	s.users[user.ID] = user
	return user, nil
}

func (s *Store) MarkConfirmed(_ context.Context, id int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	u, ok := s.users[id]
	if !ok {
		return storage.ErrNotFound
	}
	u.Confirmed = true
	s.users[id] = u
	return nil
}

func (s *Store) SetDeleted(_ context.Context, id int64, deleted bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	u, ok := s.users[id]
	if !ok {
		return storage.ErrNotFound
	}
	u.Deleted = deleted
	s.users[id] = u
	return nil
}

func (s *Store) TouchLastSeen(_ context.Context, id int64, at time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	u, ok := s.users[id]
	if !ok {
		return storage.ErrNotFound
	}
	u.LastSeen = at
	s.users[id] = u
	return nil
}

// Posts

func (s *Store) CreatePost(_ context.Context, post models.Post) (models.Post, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	author, ok := s.users[post.AuthorID]
	if !ok {
		return models.Post{}, storage.Unavailable("create post", fmt.Errorf("%w: author %d", errForeignKey, post.AuthorID))
	}
	now := s.now()
	post.ID = s.id()
	post.Author = author.Username
	post.CreatedAt = now
	post.UpdatedAt = now
	s.posts[post.ID] = post
	return post, nil
}

func (s *Store) FindPostByID(_ context.Context, id int64) (models.Post, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	post, ok := s.posts[id]
	if !ok {
		return models.Post{}, storage.ErrNotFound
	}
	post.Author = s.users[post.AuthorID].Username
	return post, nil
}

func (s *Store) UpdatePost(_ context.Context, post models.Post) (models.Post, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	current, ok := s.posts[post.ID]
	if !ok {
		return models.Post{}, storage.ErrNotFound
	}
	current.Body = post.Body
	current.UpdatedAt = s.now()
	s.posts[post.ID] = current
	current.Author = s.users[current.AuthorID].Username
	return current, nil
}

func (s *Store) ListPosts(_ context.Context, page models.Pagination) ([]models.Post, int, error) {
	all := s.sortedPosts(func(models.Post) bool { return true })
	total := len(all)
	start := page.Offset()
	if start < 0 || start >= total || page.PerPage <= 0 {
		return []models.Post{}, total, nil
	}
	end := total
	if page.PerPage < total-start {
		end = start + page.PerPage
	}
	return all[start:end], total, nil
}

func (s *Store) ListPostsByAuthor(_ context.Context, authorID int64) ([]models.Post, error) {
	return s.sortedPosts(func(p models.Post) bool { return p.AuthorID == authorID }), nil
}

func (s *Store) sortedPosts(match func(models.Post) bool) []models.Post {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]models.Post, 0, len(s.posts))
	for _, p := range s.posts {
		if match(p) {
			p.Author = s.users[p.AuthorID].Username
			out = append(out, p)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].ID > out[j].ID
		}
		return out[i].CreatedAt.After(out[j].CreatedAt)
	})
	return out
}
