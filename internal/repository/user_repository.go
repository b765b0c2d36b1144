package repository

import (
	"context"
	"errors"
	"strings"

	"gorm.io/gorm"

	"github.com/librasys/admin-portal/internal/domain"
	"github.com/librasys/admin-portal/internal/observability"
)

var ErrUserNotFound = errors.New("user not found")

// UserListQuery carries the filter/sort/page parameters for a listing query.
// SortBy must already be validated against the handler's allow-list; an empty
// SortBy falls back to a stable id ordering. UserTypeIDs is the normalized
// type filter: empty means no type constraint, one entry becomes an equality
// match and several become a set-membership match.
type UserListQuery struct {
	PageRequest
	SortBy      string
	SortOrder   string
	UserTypeIDs []int64
	Search      string
}

type UserRepository interface {
	FindByID(ctx context.Context, id uint) (*domain.User, error)
	ListPaged(ctx context.Context, q UserListQuery) (PageResult[domain.User], error)
	ExistsByLibraryID(ctx context.Context, libraryID int64) (bool, error)
	ExistsByEmail(ctx context.Context, email string) (bool, error)
	CreateWithAdmin(ctx context.Context, user *domain.User, admin *domain.Admin) error
	DeleteByID(ctx context.Context, id uint) error
}

type GormUserRepository struct{ db *gorm.DB }

func NewUserRepository(db *gorm.DB) UserRepository { return &GormUserRepository{db: db} }

func (r *GormUserRepository) FindByID(ctx context.Context, id uint) (*domain.User, error) {
	var u domain.User
	err := r.db.WithContext(ctx).Preload("UserType").Preload("Admin").First(&u, id).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			observability.RecordRepositoryOperation(ctx, "user", "find_by_id", "not_found")
			return nil, ErrUserNotFound
		}
		observability.RecordRepositoryOperation(ctx, "user", "find_by_id", "error")
		return nil, err
	}
	observability.RecordRepositoryOperation(ctx, "user", "find_by_id", "success")
	return &u, nil
}

func (r *GormUserRepository) ListPaged(ctx context.Context, q UserListQuery) (PageResult[domain.User], error) {
	normalized := normalizePageRequest(q.PageRequest)
	result := PageResult[domain.User]{
		Page:     normalized.Page,
		PageSize: normalized.PageSize,
	}

	base := r.db.WithContext(ctx).Model(&domain.User{})
	switch len(q.UserTypeIDs) {
	case 0:
	case 1:
		base = base.Where("user_type_id = ?", q.UserTypeIDs[0])
	default:
		base = base.Where("user_type_id IN ?", q.UserTypeIDs)
	}
	if term := strings.TrimSpace(q.Search); term != "" {
		pattern := "%" + strings.ToLower(term) + "%"
		base = base.Where(
			r.db.Where("LOWER(first_name) LIKE ?", pattern).
				Or("LOWER(last_name) LIKE ?", pattern).
				Or("CAST(library_id AS TEXT) LIKE ?", pattern),
		)
	}

	if err := base.Count(&result.Total).Error; err != nil {
		observability.RecordRepositoryOperation(ctx, "user", "list_paged", "error")
		return PageResult[domain.User]{}, err
	}

	order := "id asc"
	if q.SortBy != "" {
		direction := strings.ToLower(q.SortOrder)
		if direction != "desc" {
			direction = "asc"
		}
		order = q.SortBy + " " + direction
	}
	offset := (normalized.Page - 1) * normalized.PageSize
	err := base.Preload("UserType").Preload("Admin").
		Order(order).Offset(offset).Limit(normalized.PageSize).
		Find(&result.Items).Error
	if err != nil {
		observability.RecordRepositoryOperation(ctx, "user", "list_paged", "error")
		return PageResult[domain.User]{}, err
	}
	result.TotalPages = calcTotalPages(result.Total, normalized.PageSize)
	observability.RecordRepositoryOperation(ctx, "user", "list_paged", "success")
	return result, nil
}

func (r *GormUserRepository) ExistsByLibraryID(ctx context.Context, libraryID int64) (bool, error) {
	var count int64
	err := r.db.WithContext(ctx).Model(&domain.User{}).Where("library_id = ?", libraryID).Count(&count).Error
	return count > 0, err
}

func (r *GormUserRepository) ExistsByEmail(ctx context.Context, email string) (bool, error) {
	var count int64
	err := r.db.WithContext(ctx).Model(&domain.User{}).Where("email = ?", email).Count(&count).Error
	return count > 0, err
}

// CreateWithAdmin inserts the user and its admin profile as one transaction so
// a failed profile insert cannot leave an orphaned user behind.
func (r *GormUserRepository) CreateWithAdmin(ctx context.Context, user *domain.User, admin *domain.Admin) error {
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(user).Error; err != nil {
			return err
		}
		admin.UserID = user.ID
		return tx.Create(admin).Error
	})
	if err != nil {
		observability.RecordRepositoryOperation(ctx, "user", "create_with_admin", "error")
		return err
	}
	user.Admin = admin
	observability.RecordRepositoryOperation(ctx, "user", "create_with_admin", "success")
	return nil
}

func (r *GormUserRepository) DeleteByID(ctx context.Context, id uint) error {
	res := r.db.WithContext(ctx).Delete(&domain.User{}, id)
	if res.Error != nil {
		observability.RecordRepositoryOperation(ctx, "user", "delete_by_id", "error")
		return res.Error
	}
	if res.RowsAffected == 0 {
		observability.RecordRepositoryOperation(ctx, "user", "delete_by_id", "not_found")
		return ErrUserNotFound
	}
	observability.RecordRepositoryOperation(ctx, "user", "delete_by_id", "success")
	return nil
}
