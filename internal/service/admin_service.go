package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"time"

	"github.com/librasys/admin-portal/internal/domain"
	"github.com/librasys/admin-portal/internal/observability"
	"github.com/librasys/admin-portal/internal/repository"
	"github.com/librasys/admin-portal/internal/security"
)

const listCacheNamespace = "admin.users"

// ListParams is the explicit parameter object for a listing request. The
// handler normalizes raw query values before handing them over: UserTypeIDs
// holds the cleaned type filter and RawTypeFilter the value as the caller sent
// it, echoed back in the filter descriptors.
type ListParams struct {
	repository.PageRequest
	SortField     string
	SortDirection string
	UserTypeIDs   []int64
	TypeFilterSet bool
	RawTypeFilter any
	Search        string
}

// FilterDescriptor echoes an active filter back to the caller for display.
type FilterDescriptor struct {
	ID    string `json:"id"`
	Value any    `json:"value"`
}

type ListResult struct {
	Data      repository.PageResult[domain.User] `json:"data"`
	Filters   []FilterDescriptor                 `json:"filter"`
	UserTypes []domain.UserType                  `json:"user_types"`
}

type CreateAdminInput struct {
	LibraryID            string
	FirstName            string
	MiddleInitial        string
	LastName             string
	Sex                  string
	ContactNumber        string
	RoleTitle            string
	Email                string
	Password             string
	PasswordConfirmation string
}

type AdminServiceInterface interface {
	ListAdmins(ctx context.Context, p ListParams) (*ListResult, error)
	CreateAdmin(ctx context.Context, in CreateAdminInput) (*domain.User, error)
	DeleteAdmin(ctx context.Context, id uint) error
}

type AdminService struct {
	users       repository.UserRepository
	userTypes   repository.UserTypeRepository
	compromised CompromisedPasswordChecker
	cache       ListCacheStore
	cacheTTL    time.Duration // zero disables caching
}

func NewAdminService(
	users repository.UserRepository,
	userTypes repository.UserTypeRepository,
	compromised CompromisedPasswordChecker,
	cache ListCacheStore,
	cacheTTL time.Duration,
) *AdminService {
	if compromised == nil {
		compromised = NoopCompromisedChecker{}
	}
	if cache == nil {
		cache = NewNoopListCacheStore()
	}
	return &AdminService{
		users:       users,
		userTypes:   userTypes,
		compromised: compromised,
		cache:       cache,
		cacheTTL:    cacheTTL,
	}
}

// ListAdmins resolves the effective user-type filter, serves the page from
// cache when possible, and otherwise queries the store. When the caller sent
// no type filter the staff_admin classification is the default; if that
// classification does not exist the default is simply omitted.
func (s *AdminService) ListAdmins(ctx context.Context, p ListParams) (*ListResult, error) {
	typeIDs := p.UserTypeIDs
	rawEcho := p.RawTypeFilter
	if !p.TypeFilterSet {
		adminType, err := s.userTypes.FindByKey(ctx, domain.StaffAdminKey)
		switch {
		case err == nil:
			typeIDs = []int64{int64(adminType.ID)}
			rawEcho = adminType.ID
		case errors.Is(err, repository.ErrUserTypeNotFound):
			typeIDs = nil
			rawEcho = nil
		default:
			return nil, fmt.Errorf("resolve default user type: %w", err)
		}
	}

	filters := make([]FilterDescriptor, 0, 2)
	if rawEcho != nil && !emptyFilterValue(rawEcho) {
		filters = append(filters, FilterDescriptor{ID: "user_type_id", Value: rawEcho})
	}
	search := strings.TrimSpace(p.Search)
	if search != "" {
		filters = append(filters, FilterDescriptor{ID: "search", Value: search})
	}

	cacheKey := listCacheKey(p, typeIDs)
	if s.cacheTTL > 0 {
		if payload, ok, err := s.cache.Get(ctx, listCacheNamespace, cacheKey); err == nil && ok {
			var cached ListResult
			if err := json.Unmarshal(payload, &cached); err == nil {
				observability.RecordAdminListCacheEvent(ctx, "hit")
				return &cached, nil
			}
		} else if err != nil {
			slog.WarnContext(ctx, "admin list cache read failed", "error", err)
		}
		observability.RecordAdminListCacheEvent(ctx, "miss")
	}

	page, err := s.users.ListPaged(ctx, repository.UserListQuery{
		PageRequest: p.PageRequest,
		SortBy:      p.SortField,
		SortOrder:   p.SortDirection,
		UserTypeIDs: typeIDs,
		Search:      search,
	})
	if err != nil {
		return nil, fmt.Errorf("list users: %w", err)
	}
	userTypes, err := s.userTypes.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("list user types: %w", err)
	}

	result := &ListResult{Data: page, Filters: filters, UserTypes: userTypes}
	if s.cacheTTL > 0 {
		if payload, err := json.Marshal(result); err == nil {
			if err := s.cache.Set(ctx, listCacheNamespace, cacheKey, payload, s.cacheTTL); err != nil {
				slog.WarnContext(ctx, "admin list cache write failed", "error", err)
			}
		}
	}
	return result, nil
}

// CreateAdmin validates the candidate record, resolves the staff_admin
// classification, and creates the user plus its admin profile in one
// transaction. Validation failures come back as *ValidationError.
func (s *AdminService) CreateAdmin(ctx context.Context, in CreateAdminInput) (*domain.User, error) {
	vErr, err := s.validate(ctx, &in)
	if err != nil {
		return nil, fmt.Errorf("validate admin input: %w", err)
	}
	if vErr != nil {
		return nil, vErr
	}

	adminType, err := s.userTypes.FindByKey(ctx, domain.StaffAdminKey)
	if err != nil {
		return nil, err
	}

	hash, err := security.HashPassword(in.Password)
	if err != nil {
		return nil, fmt.Errorf("hash password: %w", err)
	}
	libraryID, err := strconv.ParseInt(in.LibraryID, 10, 64)
	if err != nil {
		return nil, fmt.Errorf("parse library id: %w", err)
	}

	user := &domain.User{
		LibraryID:     libraryID,
		FirstName:     in.FirstName,
		MiddleInitial: in.MiddleInitial,
		LastName:      in.LastName,
		Sex:           in.Sex,
		ContactNumber: strings.TrimSpace(in.ContactNumber),
		Email:         in.Email,
		PasswordHash:  hash,
		UserTypeID:    adminType.ID,
	}
	admin := &domain.Admin{RoleTitle: in.RoleTitle}
	if err := s.users.CreateWithAdmin(ctx, user, admin); err != nil {
		return nil, err
	}

	if err := s.cache.InvalidateNamespace(ctx, listCacheNamespace); err != nil {
		slog.WarnContext(ctx, "admin list cache invalidation failed", "error", err)
	}
	return user, nil
}

// DeleteAdmin soft-deletes the user with the given id. A missing record comes
// back as repository.ErrUserNotFound.
func (s *AdminService) DeleteAdmin(ctx context.Context, id uint) error {
	if _, err := s.users.FindByID(ctx, id); err != nil {
		return err
	}
	if err := s.users.DeleteByID(ctx, id); err != nil {
		return err
	}
	if err := s.cache.InvalidateNamespace(ctx, listCacheNamespace); err != nil {
		slog.WarnContext(ctx, "admin list cache invalidation failed", "error", err)
	}
	return nil
}

func listCacheKey(p ListParams, typeIDs []int64) string {
	ids := make([]string, 0, len(typeIDs))
	for _, id := range typeIDs {
		ids = append(ids, strconv.FormatInt(id, 10))
	}
	return fmt.Sprintf("page=%d;per_page=%d;sort=%s;dir=%s;types=%s;search=%s;raw=%v",
		p.Page, p.PageSize, p.SortField, p.SortDirection,
		strings.Join(ids, ","), strings.ToLower(strings.TrimSpace(p.Search)), p.RawTypeFilter)
}

func emptyFilterValue(v any) bool {
	switch value := v.(type) {
	case string:
		return strings.TrimSpace(value) == ""
	case []string:
		return len(value) == 0
	default:
		return false
	}
}
