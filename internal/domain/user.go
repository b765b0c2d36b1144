package domain

import (
	"time"

	"gorm.io/gorm"
)

// User is a patron or staff record in the library system. Records managed by
// this service always belong to the staff_admin user type and carry an Admin
// profile. Deletion is soft: rows keep their data and drop out of queries.
type User struct {
	ID            uint           `gorm:"primaryKey" json:"id"`
	LibraryID     int64          `gorm:"uniqueIndex;not null" json:"library_id"`
	FirstName     string         `gorm:"size:50;not null" json:"first_name"`
	MiddleInitial string         `gorm:"size:1" json:"middle_initial"`
	LastName      string         `gorm:"size:50;not null" json:"last_name"`
	Sex           string         `gorm:"size:1;not null" json:"sex"`
	ContactNumber string         `gorm:"size:32" json:"contact_number"`
	Email         string         `gorm:"uniqueIndex;size:255;not null" json:"email"`
	PasswordHash  string         `gorm:"size:255;not null" json:"-"`
	UserTypeID    uint           `gorm:"index;not null" json:"user_type_id"`
	UserType      *UserType      `json:"user_type,omitempty"`
	Admin         *Admin         `json:"admin,omitempty"`
	CreatedAt     time.Time      `json:"created_at"`
	UpdatedAt     time.Time      `json:"updated_at"`
	DeletedAt     gorm.DeletedAt `gorm:"index" json:"-"`
}
