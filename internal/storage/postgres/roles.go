package postgres

import (
	"context"
	"fmt"

	sq "github.com/Masterminds/squirrel"
	"github.com/hongminglow/kinder-admin/internal/models"
	"github.com/jackc/pgx/v5"
)

var roleColumns = []string{"id", "name", "permissions", "is_default"}

const roleReturning = "RETURNING id, name, permissions, is_default"

// FindRoleByID fetches a role by primary key.
func (s *Store) FindRoleByID(ctx context.Context, id int64) (models.Role, error) {
	return s.findRole(ctx, "find role by id", sq.Eq{"id": id})
}

// FindRoleByName fetches a role by its unique name.
func (s *Store) FindRoleByName(ctx context.Context, name string) (models.Role, error) {
	return s.findRole(ctx, "find role by name", sq.Eq{"name": name})
}

// FindDefaultRole returns the role new users receive.
func (s *Store) FindDefaultRole(ctx context.Context) (models.Role, error) {
	return s.findRole(ctx, "find default role", sq.Eq{"is_default": true})
}

// FindRoleByPermissions returns the first role whose bitmask equals perms exactly.
func (s *Store) FindRoleByPermissions(ctx context.Context, perms models.Permission) (models.Role, error) {
	return s.findRole(ctx, "find role by permissions", sq.Eq{"permissions": int32(perms)})
}

func (s *Store) findRole(ctx context.Context, op string, where sq.Eq) (models.Role, error) {
	stmt, args, err := s.builder.Select(roleColumns...).
		From("roles").
		Where(where).
		OrderBy("id").
		Limit(1).
		ToSql()
	if err != nil {
		return models.Role{}, fmt.Errorf("build %s sql: %w", op, err)
	}
	role, err := scanRole(s.db.QueryRow(ctx, stmt, args...))
	if err != nil {
		return models.Role{}, mapError(op, err)
	}
	return role, nil
}

// SaveRole upserts by name when role.ID is zero and updates by id otherwise.
func (s *Store) SaveRole(ctx context.Context, role models.Role) (models.Role, error) {
	var (
		stmt string
		args []any
		err  error
	)
	if role.ID == 0 {
		stmt, args, err = s.builder.Insert("roles").
			Columns("name", "permissions", "is_default").
			Values(role.Name, int32(role.Permissions), role.IsDefault).
			Suffix("ON CONFLICT (name) DO UPDATE SET permissions = EXCLUDED.permissions, is_default = EXCLUDED.is_default " + roleReturning).
			ToSql()
	} else {
		stmt, args, err = s.builder.Update("roles").
			Set("name", role.Name).
			Set("permissions", int32(role.Permissions)).
			Set("is_default", role.IsDefault).
			Where(sq.Eq{"id": role.ID}).
			Suffix(roleReturning).
			ToSql()
	}
	if err != nil {
		return models.Role{}, fmt.Errorf("build save role sql: %w", err)
	}

	saved, err := scanRole(s.db.QueryRow(ctx, stmt, args...))
	if err != nil {
		return models.Role{}, mapError("save role", err)
	}
	return saved, nil
}

// ListRoles returns every role sorted by name.
func (s *Store) ListRoles(ctx context.Context) ([]models.Role, error) {
	stmt, args, err := s.builder.Select(roleColumns...).
		From("roles").
		OrderBy("name ASC").
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("build list roles sql: %w", err)
	}

	rows, err := s.db.Query(ctx, stmt, args...)
	if err != nil {
		return nil, mapError("list roles", err)
	}
	defer rows.Close()

	var roles []models.Role
	for rows.Next() {
		role, err := scanRole(rows)
		if err != nil {
			return nil, mapError("scan role", err)
		}
		roles = append(roles, role)
	}
	if err := rows.Err(); err != nil {
		return nil, mapError("list roles", err)
	}
	return roles, nil
}

func scanRole(row pgx.Row) (models.Role, error) {
	var (
		role  models.Role
		perms int32
	)
	if err := row.Scan(&role.ID, &role.Name, &perms, &role.IsDefault); err != nil {
		return models.Role{}, err
	}
	role.Permissions = models.Permission(perms)
	return role, nil
}
