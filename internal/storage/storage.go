package storage

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/hongminglow/kinder-admin/internal/models"
)

// ErrNotFound indicates a record does not exist.
var ErrNotFound = errors.New("record not found")

// ErrAlreadyExists indicates a uniqueness conflict.
var ErrAlreadyExists = errors.New("record already exists")

// ErrUnavailable marks driver failures (connection loss, unexpected constraint
// violations). Callers match it with errors.Is and surface it unchanged.
var ErrUnavailable = errors.New("storage unavailable")

// UnavailableError carries the failing operation and the driver error.
type UnavailableError struct {
	Op  string
	Err error
}

func (e *UnavailableError) Error() string {
	return fmt.Sprintf("%s: %v: %v", e.Op, ErrUnavailable, e.Err)
}

func (e *UnavailableError) Unwrap() error { return e.Err }

func (e *UnavailableError) Is(target error) bool { return target == ErrUnavailable }

// Unavailable wraps err for op unless it is nil or already a storage sentinel.
func Unavailable(op string, err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, ErrNotFound) || errors.Is(err, ErrAlreadyExists) || errors.Is(err, ErrUnavailable) {
		return err
	}
	return &UnavailableError{Op: op, Err: err}
}

// RoleStore persists role rows.
type RoleStore interface {
	FindRoleByID(ctx context.Context, id int64) (models.Role, error)
	FindRoleByName(ctx context.Context, name string) (models.Role, error)
	FindDefaultRole(ctx context.Context) (models.Role, error)
	FindRoleByPermissions(ctx context.Context, perms models.Permission) (models.Role, error)
	// SaveRole inserts the role when ID is zero and updates it otherwise.
	// Inserting a name that already exists updates that row instead.
	SaveRole(ctx context.Context, role models.Role) (models.Role, error)
	ListRoles(ctx context.Context) ([]models.Role, error)
}

// UserStore captures persistence operations needed by the auth service and handlers.
// Returned users always carry their Role.
type UserStore interface {
	CreateUser(ctx context.Context, user models.User) (models.User, error)
	FindUserByID(ctx context.Context, id int64) (models.User, error)
	FindUserByEmail(ctx context.Context, email string) (models.User, error)
	FindUserByUsername(ctx context.Context, username string) (models.User, error)
	UpdateUser(ctx context.Context, user models.User) (models.User, error)
	MarkConfirmed(ctx context.Context, id int64) error
	// SetDeleted soft-deletes or restores an account. Deleted accounts cannot sign in.
	SetDeleted(ctx context.Context, id int64, deleted bool) error
	TouchLastSeen(ctx context.Context, id int64, at time.Time) error
}

// PostStore persists blog posts.
type PostStore interface {
	CreatePost(ctx context.Context, post models.Post) (models.Post, error)
	FindPostByID(ctx context.Context, id int64) (models.Post, error)
	UpdatePost(ctx context.Context, post models.Post) (models.Post, error)
	// ListPosts returns one page, newest first, and the total number of posts.
	ListPosts(ctx context.Context, page models.Pagination) ([]models.Post, int, error)
	ListPostsByAuthor(ctx context.Context, authorID int64) ([]models.Post, error)
}

// Store is the full persistence surface wired into the server.
type Store interface {
	RoleStore
	UserStore
	PostStore
	Ping(ctx context.Context) error
	Close()
}
