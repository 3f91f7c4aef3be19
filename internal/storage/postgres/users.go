package postgres

import (
	"context"
	"fmt"
	"time"

	sq "github.com/Masterminds/squirrel"
	"github.com/hongminglow/kinder-admin/internal/models"
	"github.com/hongminglow/kinder-admin/internal/storage"
	"github.com/jackc/pgx/v5"
)

var userColumns = []string{
	"u.id", "u.email", "u.username", "u.password_hash", "u.confirmed", "u.deleted",
	"u.role_id", "u.full_name", "u.location", "u.about_me", "u.member_since", "u.last_seen",
	"r.id", "r.name", "r.permissions", "r.is_default",
}

func (s *Store) selectUsers() sq.SelectBuilder {
	return s.builder.Select(userColumns...).
		From("users u").
		Join("roles r ON r.id = u.role_id")
}

// CreateUser inserts a new user row and returns it with its role.
func (s *Store) CreateUser(ctx context.Context, user models.User) (models.User, error) {
	stmt, args, err := s.builder.Insert("users").
		Columns("email", "username", "password_hash", "confirmed", "role_id").
		Values(user.Email, user.Username, user.PasswordHash, user.Confirmed, user.RoleID).
		Suffix("RETURNING id").
		ToSql()
	if err != nil {
		return models.User{}, fmt.Errorf("build insert user sql: %w", err)
	}

	var id int64
	if err := s.db.QueryRow(ctx, stmt, args...).Scan(&id); err != nil {
		return models.User{}, mapError("insert user", err)
	}
	return s.FindUserByID(ctx, id)
}

// FindUserByID fetches a user by primary key.
func (s *Store) FindUserByID(ctx context.Context, id int64) (models.User, error) {
	return s.findUser(ctx, "find user by id", sq.Eq{"u.id": id})
}

// FindUserByEmail fetches a user by exact, case-sensitive email.
func (s *Store) FindUserByEmail(ctx context.Context, email string) (models.User, error) {
	return s.findUser(ctx, "find user by email", sq.Eq{"u.email": email})
}

// FindUserByUsername fetches a user by username.
func (s *Store) FindUserByUsername(ctx context.Context, username string) (models.User, error) {
	return s.findUser(ctx, "find user by username", sq.Eq{"u.username": username})
}

func (s *Store) findUser(ctx context.Context, op string, where sq.Eq) (models.User, error) {
	stmt, args, err := s.selectUsers().Where(where).ToSql()
	if err != nil {
		return models.User{}, fmt.Errorf("build %s sql: %w", op, err)
	}
	user, err := scanUser(s.db.QueryRow(ctx, stmt, args...))
	if err != nil {
		return models.User{}, mapError(op, err)
	}
	return user, nil
}

// UpdateUser writes the editable profile and administrative fields.
// Password hash, soft-delete flag and timestamps are not touched.
func (s *Store) UpdateUser(ctx context.Context, user models.User) (models.User, error) {
	stmt, args, err := s.builder.Update("users").
		Set("email", user.Email).
		Set("username", user.Username).
		Set("role_id", user.RoleID).
		Set("full_name", user.FullName).
		Set("location", user.Location).
		Set("about_me", user.AboutMe).
		Where(sq.Eq{"id": user.ID}).
		ToSql()
	if err != nil {
		return models.User{}, fmt.Errorf("build update user sql: %w", err)
	}
	if err := s.execOne(ctx, "update user", stmt, args); err != nil {
		return models.User{}, err
	}
	return s.FindUserByID(ctx, user.ID)
}

// MarkConfirmed sets the confirmed flag. Running it twice is harmless.
func (s *Store) MarkConfirmed(ctx context.Context, id int64) error {
	stmt, args, err := s.builder.Update("users").
		Set("confirmed", true).
		Where(sq.Eq{"id": id}).
		ToSql()
	if err != nil {
		return fmt.Errorf("build confirm user sql: %w", err)
	}
	return s.execOne(ctx, "confirm user", stmt, args)
}

// SetDeleted flips the soft-delete flag.
func (s *Store) SetDeleted(ctx context.Context, id int64, deleted bool) error {
	stmt, args, err := s.builder.Update("users").
		Set("deleted", deleted).
		Where(sq.Eq{"id": id}).
		ToSql()
	if err != nil {
		return fmt.Errorf("build delete user sql: %w", err)
	}
	return s.execOne(ctx, "delete user", stmt, args)
}

// TouchLastSeen records activity for the user.
func (s *Store) TouchLastSeen(ctx context.Context, id int64, at time.Time) error {
	stmt, args, err := s.builder.Update("users").
		Set("last_seen", at).
		Where(sq.Eq{"id": id}).
		ToSql()
	if err != nil {
		return fmt.Errorf("build touch user sql: %w", err)
	}
	return s.execOne(ctx, "touch user", stmt, args)
}

// execOne runs stmt and reports storage.ErrNotFound when no row matched.
func (s *Store) execOne(ctx context.Context, op, stmt string, args []any) error {
	tag, err := s.db.Exec(ctx, stmt, args...)
	if err != nil {
		return mapError(op, err)
	}
	if tag.RowsAffected() == 0 {
		return storage.ErrNotFound
	}
	return nil
}

func scanUser(row pgx.Row) (models.User, error) {
	var (
		user  models.User
		perms int32
	)
	if err := row.Scan(
		&user.ID, &user.Email, &user.Username, &user.PasswordHash, &user.Confirmed, &user.Deleted,
		&user.RoleID, &user.FullName, &user.Location, &user.AboutMe, &user.MemberSince, &user.LastSeen,
		&user.Role.ID, &user.Role.Name, &perms, &user.Role.IsDefault,
	); err != nil {
		return models.User{}, err
	}
	user.Role.Permissions = models.Permission(perms)
	return user, nil
}
