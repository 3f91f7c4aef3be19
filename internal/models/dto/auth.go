package dto

import "github.com/hongminglow/kinder-admin/internal/models"

type RegisterRequest struct {
	Email     string `json:"email"`
	Username  string `json:"username"`
	Password  string `json:"password"`
	Password2 string `json:"password2"`
}

type LoginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
	Remember bool   `json:"remember_me"`
}

type LoginResponse struct {
	Session string      `json:"session"`
	User    models.User `json:"user"`
}

type StatusResponse struct {
	Authenticated bool         `json:"authenticated"`
	Confirmed     bool         `json:"confirmed"`
	User          *models.User `json:"user,omitempty"`
}
