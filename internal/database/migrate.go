package database

import (
	"github.com/librasys/admin-portal/internal/domain"

	"gorm.io/gorm"
)

func Migrate(db *gorm.DB) error {
	return db.AutoMigrate(
		&domain.UserType{},
		&domain.User{},
		&domain.Admin{},
		&domain.IdempotencyRecord{},
	)
}
