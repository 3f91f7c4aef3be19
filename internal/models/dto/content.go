package dto

import "github.com/hongminglow/kinder-admin/internal/models"

type PostRequest struct {
	Body string `json:"body"`
}

type PostListResponse struct {
	Posts      []models.Post     `json:"posts"`
	Pagination models.Pagination `json:"pagination"`
	HasPrev    bool              `json:"has_prev"`
	HasNext    bool              `json:"has_next"`
}

type ProfileRequest struct {
	FullName string `json:"full_name"`
	Location string `json:"location"`
	AboutMe  string `json:"about_me"`
}

// AdminProfileRequest carries no confirmed flag: confirmation only
// changes through a confirmation token.
type AdminProfileRequest struct {
	Email    string `json:"email"`
	Username string `json:"username"`
	RoleID   int64  `json:"role_id"`
	FullName string `json:"full_name"`
	Location string `json:"location"`
	AboutMe  string `json:"about_me"`
}

type UserPageResponse struct {
	User  models.User   `json:"user"`
	Posts []models.Post `json:"posts"`
}
