package models

// Permission is a bit flag naming a single capability. Roles carry a union of them.
type Permission uint32

const (
	Follow           Permission = 0x01
	Comment          Permission = 0x02
	WriteArticles    Permission = 0x04
	ModerateComments Permission = 0x08
	Administer       Permission = 0x80

	// AllPermissions is the Administrator bitmask and covers every defined bit.
	AllPermissions Permission = 0xff
)

const (
	UserRole          = "User"
	ModeratorRole     = "Moderator"
	AdministratorRole = "Administrator"
)

// Role is a named bundle of permission bits assigned to users.
type Role struct {
	ID          int64      `json:"id"`
	Name        string     `json:"name"`
	Permissions Permission `json:"permissions"`
	IsDefault   bool       `json:"is_default"`
}
