package repository

import (
	"testing"

	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/librasys/admin-portal/internal/domain"
)

func newRepositoryDBForTest(t *testing.T) *gorm.DB {
	t.Helper()
	db, err := gorm.Open(sqlite.Open("file:"+t.Name()+"?mode=memory&cache=shared"), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	if err := db.AutoMigrate(&domain.UserType{}, &domain.User{}, &domain.Admin{}); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	return db
}

func seedUserTypeForTest(t *testing.T, db *gorm.DB, key, name string) *domain.UserType {
	t.Helper()
	ut := &domain.UserType{Key: key, Name: name}
	if err := db.Create(ut).Error; err != nil {
		t.Fatalf("seed user type %s: %v", key, err)
	}
	return ut
}
