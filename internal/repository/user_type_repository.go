package repository

import (
	"context"
	"errors"

	"gorm.io/gorm"

	"github.com/librasys/admin-portal/internal/domain"
)

var ErrUserTypeNotFound = errors.New("user type not found")

type UserTypeRepository interface {
	FindByKey(ctx context.Context, key string) (*domain.UserType, error)
	List(ctx context.Context) ([]domain.UserType, error)
}

type GormUserTypeRepository struct{ db *gorm.DB }

func NewUserTypeRepository(db *gorm.DB) UserTypeRepository {
	return &GormUserTypeRepository{db: db}
}

func (r *GormUserTypeRepository) FindByKey(ctx context.Context, key string) (*domain.UserType, error) {
	var ut domain.UserType
	err := r.db.WithContext(ctx).Where("key = ?", key).First(&ut).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrUserTypeNotFound
		}
		return nil, err
	}
	return &ut, nil
}

// List returns all user types ordered by display name, for the listing
// filter dropdown.
func (r *GormUserTypeRepository) List(ctx context.Context) ([]domain.UserType, error) {
	var types []domain.UserType
	err := r.db.WithContext(ctx).Order("name asc").Find(&types).Error
	return types, err
}
