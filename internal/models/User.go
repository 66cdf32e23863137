package models

import "gorm.io/gorm"

// Page keys a user can be granted. PermissionAll grants every page.
const (
	PermissionAll = "*"

	RoleAdmin = "admin"
	RoleStaff = "staff"
)

var KnownPermissions = []string{
	"dashboard", "orders", "planning", "batches", "milestones",
	"kpi", "rates", "master_data", "notifications", "users",
}

type User struct {
	gorm.Model
	Name        string   `json:"name"`
	Email       string   `json:"email" gorm:"uniqueIndex;not null"`
	Password    string   `json:"-"`
	Phone       string   `json:"phone"`
	Role        string   `json:"role" gorm:"default:staff"` // "admin", "staff"
	Permissions []string `json:"permissions" gorm:"serializer:json"`

	Notifications []Notification `gorm:"foreignKey:UserID;constraint:OnUpdate:CASCADE,OnDelete:CASCADE;" json:"-"`
}

// HasPermission reports whether the user may open the given page.
func (u User) HasPermission(key string) bool {
	if u.Role == RoleAdmin {
		return true
	}
	for _, p := range u.Permissions {
		if p == PermissionAll || p == key {
			return true
		}
	}
	return false
}

// IsKnownPermission reports whether key names a page (or the wildcard).
func IsKnownPermission(key string) bool {
	if key == PermissionAll {
		return true
	}
	for _, p := range KnownPermissions {
		if p == key {
			return true
		}
	}
	return false
}
