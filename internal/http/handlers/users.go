package handlers

import (
	"errors"
	"net/http"
	"strings"

	"go.uber.org/zap"

	"github.com/hongminglow/kinder-admin/internal/auth"
	"github.com/hongminglow/kinder-admin/internal/http/respond"
	"github.com/hongminglow/kinder-admin/internal/models"
	"github.com/hongminglow/kinder-admin/internal/models/dto"
	"github.com/hongminglow/kinder-admin/internal/permission"
	"github.com/hongminglow/kinder-admin/internal/storage"
)

// UserHandler serves public profiles, self-service edits and the admin API.
type UserHandler struct {
	users    storage.UserStore
	roles    storage.RoleStore
	posts    storage.PostStore
	registry *permission.Registry
	svc      *auth.Service
	log      *zap.Logger
}

// NewUserHandler constructs the handler.
func NewUserHandler(store storage.Store, registry *permission.Registry, svc *auth.Service, log *zap.Logger) *UserHandler {
	if log == nil {
		log = zap.NewNop()
	}
	return &UserHandler{users: store, roles: store, posts: store, registry: registry, svc: svc, log: log}
}

// Register attaches profile and admin routes to the mux.
func (h *UserHandler) Register(mux *http.ServeMux) {
	mux.HandleFunc("GET /users/{username}", h.handleProfile)
	mux.HandleFunc("PUT /profile", h.handleEditProfile)
	mux.HandleFunc("PUT /admin/users/{id}", h.admin(h.handleAdminEdit))
	mux.HandleFunc("DELETE /admin/users/{id}", h.admin(h.handleAdminDelete))
	mux.HandleFunc("GET /admin/roles", h.admin(h.handleRoles))
	mux.HandleFunc("POST /admin/roles/reconcile", h.admin(h.handleReconcile))
}

// admin guards next with the Administer permission.
func (h *UserHandler) admin(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		p, ok := principal(w, r)
		if !ok {
			return
		}
		if !permitted(w, h.svc.RequirePermission(p, models.Administer)) {
			return
		}
		next(w, r)
	}
}

func (h *UserHandler) handleProfile(w http.ResponseWriter, r *http.Request) {
	user, err := h.users.FindUserByUsername(r.Context(), r.PathValue("username"))
	if err == nil && user.Deleted {
		err = storage.ErrNotFound
	}
	if err != nil {
		respondError(w, r, h.log, err)
		return
	}
	posts, err := h.posts.ListPostsByAuthor(r.Context(), user.ID)
	if err != nil {
		respondError(w, r, h.log, err)
		return
	}
	if posts == nil {
		posts = []models.Post{}
	}
	respond.JSON(w, http.StatusOK, "ok", dto.UserPageResponse{User: user, Posts: posts})
}

func (h *UserHandler) handleEditProfile(w http.ResponseWriter, r *http.Request) {
	p, ok := principal(w, r)
	if !ok {
		return
	}
	var req dto.ProfileRequest
	if err := respond.Decode(r, &req); err != nil {
		respond.Error(w, http.StatusBadRequest, "invalid JSON payload")
		return
	}
	user := *p.User
	user.FullName = strings.TrimSpace(req.FullName)
	user.Location = strings.TrimSpace(req.Location)
	user.AboutMe = strings.TrimSpace(req.AboutMe)

	updated, err := h.users.UpdateUser(r.Context(), user)
	if err != nil {
		respondError(w, r, h.log, err)
		return
	}
	respond.JSON(w, http.StatusOK, "Your profile has been updated.", updated)
}

func (h *UserHandler) handleAdminEdit(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	var req dto.AdminProfileRequest
	if err := respond.Decode(r, &req); err != nil {
		respond.Error(w, http.StatusBadRequest, "invalid JSON payload")
		return
	}
	if strings.TrimSpace(req.Email) == "" || strings.TrimSpace(req.Username) == "" {
		respond.Error(w, http.StatusBadRequest, "email and username are required")
		return
	}

	user, err := h.users.FindUserByID(r.Context(), id)
	if err != nil {
		respondError(w, r, h.log, err)
		return
	}
	role, err := h.roles.FindRoleByID(r.Context(), req.RoleID)
	if errors.Is(err, storage.ErrNotFound) {
		respond.Error(w, http.StatusBadRequest, "unknown role")
		return
	}
	if err != nil {
		respondError(w, r, h.log, err)
		return
	}

	user.Email = strings.TrimSpace(req.Email)
	user.Username = strings.TrimSpace(req.Username)
	user.RoleID = role.ID
	user.Role = role
	user.FullName = strings.TrimSpace(req.FullName)
	user.Location = strings.TrimSpace(req.Location)
	user.AboutMe = strings.TrimSpace(req.AboutMe)

	updated, err := h.users.UpdateUser(r.Context(), user)
	if err != nil {
		respondError(w, r, h.log, err)
		return
	}
	respond.JSON(w, http.StatusOK, "The profile has been updated.", updated)
}

func (h *UserHandler) handleAdminDelete(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	if err := h.users.SetDeleted(r.Context(), id, true); err != nil {
		respondError(w, r, h.log, err)
		return
	}
	respond.JSON(w, http.StatusOK, "The account has been deleted.", nil)
}

func (h *UserHandler) handleRoles(w http.ResponseWriter, r *http.Request) {
	roles, err := h.registry.Roles(r.Context())
	if err != nil {
		respondError(w, r, h.log, err)
		return
	}
	respond.JSON(w, http.StatusOK, "ok", roles)
}

func (h *UserHandler) handleReconcile(w http.ResponseWriter, r *http.Request) {
	roles, err := h.registry.ReconcileRoles(r.Context())
	if err != nil {
		respondError(w, r, h.log, err)
		return
	}
	respond.JSON(w, http.StatusOK, "roles reconciled", roles)
}
