package domain

import "time"

// UserType classifies users. Key is a stable machine identifier (for example
// staff_admin); Name is the display label shown in filter dropdowns.
type UserType struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	Key       string    `gorm:"uniqueIndex;size:64;not null" json:"key"`
	Name      string    `gorm:"size:255;not null" json:"name"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// StaffAdminKey is the classification stamped on every user created through
// the admin portal and the default listing filter.
const StaffAdminKey = "staff_admin"
