// Package permission holds the canonical role table and the bitmask checks
// that guard protected operations.
package permission

import (
	"errors"
	"net/http"

	"github.com/hongminglow/kinder-admin/internal/models"
)

// ErrPermissionDenied is returned when a role lacks a required permission.
var ErrPermissionDenied = errors.New("permission denied")

// Definition is one row of the canonical role table.
type Definition struct {
	Name        string
	Permissions models.Permission
	IsDefault   bool
}

// Canonical lists the roles every deployment must have. Exactly one is default.
var Canonical = []Definition{
	{Name: models.UserRole, Permissions: models.Follow | models.Comment | models.WriteArticles, IsDefault: true},
	{Name: models.ModeratorRole, Permissions: models.Follow | models.Comment | models.WriteArticles | models.ModerateComments},
	{Name: models.AdministratorRole, Permissions: models.AllPermissions},
}

// Has reports whether role carries every bit of p. A nil role is an
// anonymous actor and has no permissions.
func Has(role *models.Role, p models.Permission) bool {
	return role != nil && role.Permissions&p == p
}

// Decision is the outcome of a permission guard.
type Decision int

const (
	Deny Decision = iota
	Allow
)

// Require checks role against p.
func Require(role *models.Role, p models.Permission) Decision {
	if Has(role, p) {
		return Allow
	}
	return Deny
}

func (d Decision) Allowed() bool { return d == Allow }

// Err returns ErrPermissionDenied for Deny and nil for Allow.
func (d Decision) Err() error {
	if d == Allow {
		return nil
	}
	return ErrPermissionDenied
}

// Status maps the decision to the HTTP status a handler should answer with.
func (d Decision) Status() int {
	if d == Allow {
		return http.StatusOK
	}
	return http.StatusForbidden
}

func (d Decision) String() string {
	if d == Allow {
		return "allow"
	}
	return "deny"
}
