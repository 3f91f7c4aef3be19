package handlers

import (
	"net/http"
	"strconv"
	"strings"

	"go.uber.org/zap"

	"github.com/hongminglow/kinder-admin/internal/auth"
	"github.com/hongminglow/kinder-admin/internal/http/respond"
	"github.com/hongminglow/kinder-admin/internal/models"
	"github.com/hongminglow/kinder-admin/internal/models/dto"
	"github.com/hongminglow/kinder-admin/internal/storage"
)

// PostHandler serves the post feed.
type PostHandler struct {
	posts   storage.PostStore
	svc     *auth.Service
	perPage int
	log     *zap.Logger
}

// NewPostHandler constructs the handler. perPage is the feed page size.
func NewPostHandler(posts storage.PostStore, svc *auth.Service, perPage int, log *zap.Logger) *PostHandler {
	if log == nil {
		log = zap.NewNop()
	}
	return &PostHandler{posts: posts, svc: svc, perPage: perPage, log: log}
}

// Register attaches post routes to the mux.
func (h *PostHandler) Register(mux *http.ServeMux) {
	mux.HandleFunc("GET /posts", h.handleList)
	mux.HandleFunc("POST /posts", h.handleCreate)
	mux.HandleFunc("GET /posts/{id}", h.handleGet)
	mux.HandleFunc("PUT /posts/{id}", h.handleUpdate)
}

func (h *PostHandler) handleList(w http.ResponseWriter, r *http.Request) {
	page, _ := strconv.Atoi(r.URL.Query().Get("page"))
	pagination := models.NewPagination(page, 0, h.perPage)

	posts, total, err := h.posts.ListPosts(r.Context(), pagination)
	if err != nil {
		respondError(w, r, h.log, err)
		return
	}
	pagination.Total = total
	if posts == nil {
		posts = []models.Post{}
	}
	respond.JSON(w, http.StatusOK, "ok", dto.PostListResponse{
		Posts:      posts,
		Pagination: pagination,
		HasPrev:    pagination.HasPrev(),
		HasNext:    pagination.HasNext(),
	})
}

func (h *PostHandler) handleCreate(w http.ResponseWriter, r *http.Request) {
	p, ok := principal(w, r)
	if !ok {
		return
	}
	if !permitted(w, h.svc.RequirePermission(p, models.WriteArticles)) {
		return
	}
	body, ok := decodeBody(w, r)
	if !ok {
		return
	}
	post, err := h.posts.CreatePost(r.Context(), models.Post{Body: body, AuthorID: p.User.ID})
	if err != nil {
		respondError(w, r, h.log, err)
		return
	}
	respond.JSON(w, http.StatusCreated, "Your post has been published.", post)
}

func (h *PostHandler) handleGet(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	post, err := h.posts.FindPostByID(r.Context(), id)
	if err != nil {
		respondError(w, r, h.log, err)
		return
	}
	respond.JSON(w, http.StatusOK, "ok", post)
}

func (h *PostHandler) handleUpdate(w http.ResponseWriter, r *http.Request) {
	p, ok := principal(w, r)
	if !ok {
		return
	}
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	post, err := h.posts.FindPostByID(r.Context(), id)
	if err != nil {
		respondError(w, r, h.log, err)
		return
	}
	if post.AuthorID != p.User.ID {
		if !permitted(w, h.svc.RequirePermission(p, models.Administer)) {
			return
		}
	}
	body, ok := decodeBody(w, r)
	if !ok {
		return
	}
	post.Body = body
	updated, err := h.posts.UpdatePost(r.Context(), post)
	if err != nil {
		respondError(w, r, h.log, err)
		return
	}
	respond.JSON(w, http.StatusOK, "The post has been updated.", updated)
}

func decodeBody(w http.ResponseWriter, r *http.Request) (string, bool) {
	var req dto.PostRequest
	if err := respond.Decode(r, &req); err != nil {
		respond.Error(w, http.StatusBadRequest, "invalid JSON payload")
		return "", false
	}
	body := strings.TrimSpace(req.Body)
	if body == "" {
		respond.Error(w, http.StatusBadRequest, "body is required")
		return "", false
	}
	return body, true
}
