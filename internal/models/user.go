package models

import "time"

// User captures application-facing fields for an authenticated identity.
type User struct {
	ID           int64     `json:"id"`
	Username     string    `json:"username"`
	Email        string    `json:"email"`
	PasswordHash string    `json:"-"`
	Confirmed    bool      `json:"confirmed"`
	Deleted      bool      `json:"-"`
	RoleID       int64     `json:"role_id"`
	Role         Role      `json:"role"`
	FullName     string    `json:"full_name"`
	Location     string    `json:"location"`
	AboutMe      string    `json:"about_me"`
	MemberSince  time.Time `json:"member_since"`
	LastSeen     time.Time `json:"last_seen"`
}
