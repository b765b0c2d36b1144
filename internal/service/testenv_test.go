package service

import (
	"testing"
	"time"

	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/librasys/admin-portal/internal/domain"
	"github.com/librasys/admin-portal/internal/repository"
)

type adminServiceEnv struct {
	svc       *AdminService
	users     repository.UserRepository
	userTypes repository.UserTypeRepository
	db        *gorm.DB
	staffType *domain.UserType
}

func newServiceDBForTest(t *testing.T) *gorm.DB {
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

func newAdminServiceEnv(t *testing.T, seedStaff bool, checker CompromisedPasswordChecker, cache ListCacheStore, ttl time.Duration) *adminServiceEnv {
	t.Helper()
	db := newServiceDBForTest(t)
	env := &adminServiceEnv{
		users:     repository.NewUserRepository(db),
		userTypes: repository.NewUserTypeRepository(db),
		db:        db,
	}
	if seedStaff {
		env.staffType = &domain.UserType{Key: domain.StaffAdminKey, Name: "Staff Admin"}
		if err := db.Create(env.staffType).Error; err != nil {
			t.Fatalf("seed staff type: %v", err)
		}
	}
	env.svc = NewAdminService(env.users, env.userTypes, checker, cache, ttl)
	return env
}

func validCreateInput() CreateAdminInput {
	return CreateAdminInput{
		LibraryID:            "1000000001",
		FirstName:            "Maria",
		MiddleInitial:        "C",
		LastName:             "Santos",
		Sex:                  "f",
		ContactNumber:        "09171234567",
		RoleTitle:            "Registrar",
		Email:                "Maria.Santos@example.com",
		Password:             "Abcd1234!",
		PasswordConfirmation: "Abcd1234!",
	}
}
