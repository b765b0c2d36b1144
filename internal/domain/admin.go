package domain

import "time"

// Admin is the one-to-one profile extension marking a User as administrative.
// It is created in the same transaction as its owning User.
type Admin struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	UserID    uint      `gorm:"uniqueIndex;not null" json:"user_id"`
	RoleTitle string    `gorm:"size:100;not null" json:"role_title"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}
