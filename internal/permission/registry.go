package permission

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/hongminglow/kinder-admin/internal/models"
	"github.com/hongminglow/kinder-admin/internal/storage"
)

// Registry keeps persisted role rows in line with the canonical table.
type Registry struct {
	roles storage.RoleStore
	log   *zap.Logger
}

// NewRegistry creates a registry over the provided role store.
func NewRegistry(roles storage.RoleStore, log *zap.Logger) *Registry {
	if log == nil {
		log = zap.NewNop()
	}
	return &Registry{roles: roles, log: log}
}

// ReconcileRoles finds or creates every canonical role and overwrites its
// bitmask and default flag. Roles outside the canonical table are left alone.
// Running it again yields the same rows.
func (r *Registry) ReconcileRoles(ctx context.Context) ([]models.Role, error) {
	out := make([]models.Role, 0, len(Canonical))
	for _, def := range Canonical {
		role, err := r.roles.FindRoleByName(ctx, def.Name)
		switch {
		case errors.Is(err, storage.ErrNotFound):
			role = models.Role{Name: def.Name}
		case err != nil:
			return nil, fmt.Errorf("find role %s: %w", def.Name, err)
		}

		role.Permissions = def.Permissions
		role.IsDefault = def.IsDefault

		saved, err := r.roles.SaveRole(ctx, role)
		if err != nil {
			return nil, fmt.Errorf("save role %s: %w", def.Name, err)
		}
		out = append(out, saved)
	}

	r.log.Info("roles reconciled", zap.Int("count", len(out)))
	return out, nil
}

// Roles lists every persisted role.
func (r *Registry) Roles(ctx context.Context) ([]models.Role, error) {
	return r.roles.ListRoles(ctx)
}
