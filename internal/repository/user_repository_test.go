package repository

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/librasys/admin-portal/internal/domain"
)

func createAdminUserForTest(t *testing.T, repo UserRepository, typeID uint, libraryID int64, first, last, email string) *domain.User {
	t.Helper()
	user := &domain.User{
		LibraryID:     libraryID,
		FirstName:     first,
		LastName:      last,
		Sex:           "f",
		Email:         email,
		PasswordHash:  "hash",
		UserTypeID:    typeID,
	}
	if err := repo.CreateWithAdmin(context.Background(), user, &domain.Admin{RoleTitle: "Registrar"}); err != nil {
		t.Fatalf("create user %s: %v", email, err)
	}
	return user
}

func TestUserRepositoryCreateWithAdminAndFind(t *testing.T) {
	db := newRepositoryDBForTest(t)
	staff := seedUserTypeForTest(t, db, domain.StaffAdminKey, "Staff Admin")
	repo := NewUserRepository(db)

	u := createAdminUserForTest(t, repo, staff.ID, 1000000001, "Maria", "Santos", "maria@example.com")
	if u.ID == 0 {
		t.Fatal("expected user id to be assigned")
	}
	if u.Admin == nil || u.Admin.UserID != u.ID {
		t.Fatalf("expected admin profile bound to user, got %+v", u.Admin)
	}

	loaded, err := repo.FindByID(context.Background(), u.ID)
	if err != nil {
		t.Fatalf("find by id: %v", err)
	}
	if loaded.Email != "maria@example.com" {
		t.Fatalf("unexpected email: %q", loaded.Email)
	}
	if loaded.UserType == nil || loaded.UserType.Key != domain.StaffAdminKey {
		t.Fatalf("expected user type preloaded, got %+v", loaded.UserType)
	}
	if loaded.Admin == nil || loaded.Admin.RoleTitle != "Registrar" {
		t.Fatalf("expected admin profile preloaded, got %+v", loaded.Admin)
	}
}

func TestUserRepositoryCreateWithAdminRollsBackOnProfileFailure(t *testing.T) {
	db := newRepositoryDBForTest(t)
	staff := seedUserTypeForTest(t, db, domain.StaffAdminKey, "Staff Admin")
	repo := NewUserRepository(db)

	// Dropping the admins table makes the profile insert fail after the user
	// insert succeeded, which must roll the user back too.
	if err := db.Migrator().DropTable(&domain.Admin{}); err != nil {
		t.Fatalf("drop admins table: %v", err)
	}

	user := &domain.User{
		LibraryID:    1000000002,
		FirstName:    "Jose",
		LastName:     "Cruz",
		Sex:          "m",
		Email:        "jose@example.com",
		PasswordHash: "hash",
		UserTypeID:   staff.ID,
	}
	if err := repo.CreateWithAdmin(context.Background(), user, &domain.Admin{RoleTitle: "Clerk"}); err == nil {
		t.Fatal("expected profile insert failure")
	}

	var count int64
	if err := db.Model(&domain.User{}).Where("email = ?", "jose@example.com").Count(&count).Error; err != nil {
		t.Fatalf("count users: %v", err)
	}
	if count != 0 {
		t.Fatalf("expected user insert rolled back, found %d rows", count)
	}
}

func TestUserRepositoryListPagedFiltersAndSort(t *testing.T) {
	db := newRepositoryDBForTest(t)
	staff := seedUserTypeForTest(t, db, domain.StaffAdminKey, "Staff Admin")
	librarian := seedUserTypeForTest(t, db, "librarian", "Librarian")
	repo := NewUserRepository(db)
	ctx := context.Background()

	createAdminUserForTest(t, repo, staff.ID, 1000000001, "Maria", "Santos", "maria@example.com")
	createAdminUserForTest(t, repo, staff.ID, 1000000002, "Jose", "Cruz", "jose@example.com")
	createAdminUserForTest(t, repo, librarian.ID, 2000000001, "Ana", "Reyes", "ana@example.com")

	page, err := repo.ListPaged(ctx, UserListQuery{
		PageRequest: PageRequest{Page: 1, PageSize: 10},
		UserTypeIDs: []int64{int64(staff.ID)},
	})
	if err != nil {
		t.Fatalf("list staff: %v", err)
	}
	if page.Total != 2 || len(page.Items) != 2 {
		t.Fatalf("expected 2 staff users, got total=%d items=%d", page.Total, len(page.Items))
	}

	page, err = repo.ListPaged(ctx, UserListQuery{
		PageRequest: PageRequest{Page: 1, PageSize: 10},
		UserTypeIDs: []int64{int64(staff.ID), int64(librarian.ID)},
	})
	if err != nil {
		t.Fatalf("list both types: %v", err)
	}
	if page.Total != 3 {
		t.Fatalf("expected 3 users across both types, got %d", page.Total)
	}

	page, err = repo.ListPaged(ctx, UserListQuery{
		PageRequest: PageRequest{Page: 1, PageSize: 10},
		SortBy:      "first_name",
		SortOrder:   "asc",
	})
	if err != nil {
		t.Fatalf("list sorted: %v", err)
	}
	if page.Items[0].FirstName != "Ana" || page.Items[2].FirstName != "Maria" {
		t.Fatalf("unexpected sort order: %q, %q, %q",
			page.Items[0].FirstName, page.Items[1].FirstName, page.Items[2].FirstName)
	}
}

func TestUserRepositoryListPagedSearch(t *testing.T) {
	db := newRepositoryDBForTest(t)
	staff := seedUserTypeForTest(t, db, domain.StaffAdminKey, "Staff Admin")
	repo := NewUserRepository(db)
	ctx := context.Background()

	createAdminUserForTest(t, repo, staff.ID, 1000000001, "Maria", "Santos", "maria@example.com")
	createAdminUserForTest(t, repo, staff.ID, 1000000002, "Jose", "Cruz", "jose@example.com")

	page, err := repo.ListPaged(ctx, UserListQuery{
		PageRequest: PageRequest{Page: 1, PageSize: 10},
		Search:      "MARIA",
	})
	if err != nil {
		t.Fatalf("search by first name: %v", err)
	}
	if page.Total != 1 || page.Items[0].FirstName != "Maria" {
		t.Fatalf("expected case-insensitive first name match, got %+v", page.Items)
	}

	page, err = repo.ListPaged(ctx, UserListQuery{
		PageRequest: PageRequest{Page: 1, PageSize: 10},
		Search:      "cru",
	})
	if err != nil {
		t.Fatalf("search by last name: %v", err)
	}
	if page.Total != 1 || page.Items[0].LastName != "Cruz" {
		t.Fatalf("expected last name match, got %+v", page.Items)
	}

	page, err = repo.ListPaged(ctx, UserListQuery{
		PageRequest: PageRequest{Page: 1, PageSize: 10},
		Search:      "1000000002",
	})
	if err != nil {
		t.Fatalf("search by library id: %v", err)
	}
	if page.Total != 1 || page.Items[0].LibraryID != 1000000002 {
		t.Fatalf("expected library id match, got %+v", page.Items)
	}

	page, err = repo.ListPaged(ctx, UserListQuery{
		PageRequest: PageRequest{Page: 1, PageSize: 10},
		Search:      "no-such-person",
	})
	if err != nil {
		t.Fatalf("search without matches: %v", err)
	}
	if page.Total != 0 || len(page.Items) != 0 {
		t.Fatalf("expected empty result, got %+v", page)
	}
}

func TestUserRepositoryListPagedPagination(t *testing.T) {
	db := newRepositoryDBForTest(t)
	staff := seedUserTypeForTest(t, db, domain.StaffAdminKey, "Staff Admin")
	repo := NewUserRepository(db)
	ctx := context.Background()

	for i := 0; i < 5; i++ {
		createAdminUserForTest(t, repo, staff.ID, int64(1000000001+i),
			fmt.Sprintf("First%d", i), fmt.Sprintf("Last%d", i), fmt.Sprintf("user%d@example.com", i))
	}

	page, err := repo.ListPaged(ctx, UserListQuery{PageRequest: PageRequest{Page: 2, PageSize: 2}})
	if err != nil {
		t.Fatalf("list page 2: %v", err)
	}
	if page.Total != 5 || page.TotalPages != 3 || len(page.Items) != 2 {
		t.Fatalf("unexpected page: total=%d totalPages=%d items=%d", page.Total, page.TotalPages, len(page.Items))
	}
	if page.Page != 2 || page.PageSize != 2 {
		t.Fatalf("unexpected page metadata: %+v", page)
	}

	// A request past the end comes back empty but keeps the totals.
	page, err = repo.ListPaged(ctx, UserListQuery{PageRequest: PageRequest{Page: 9, PageSize: 2}})
	if err != nil {
		t.Fatalf("list past end: %v", err)
	}
	if page.Total != 5 || len(page.Items) != 0 {
		t.Fatalf("expected empty page with totals, got %+v", page)
	}
}

func TestUserRepositorySoftDelete(t *testing.T) {
	db := newRepositoryDBForTest(t)
	staff := seedUserTypeForTest(t, db, domain.StaffAdminKey, "Staff Admin")
	repo := NewUserRepository(db)
	ctx := context.Background()

	u := createAdminUserForTest(t, repo, staff.ID, 1000000001, "Maria", "Santos", "maria@example.com")

	if err := repo.DeleteByID(ctx, u.ID); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if _, err := repo.FindByID(ctx, u.ID); !errors.Is(err, ErrUserNotFound) {
		t.Fatalf("expected ErrUserNotFound after delete, got %v", err)
	}

	page, err := repo.ListPaged(ctx, UserListQuery{PageRequest: PageRequest{Page: 1, PageSize: 10}})
	if err != nil {
		t.Fatalf("list after delete: %v", err)
	}
	if page.Total != 0 {
		t.Fatalf("expected deleted user excluded from listing, got total=%d", page.Total)
	}

	// Soft delete keeps the row around.
	var count int64
	if err := db.Unscoped().Model(&domain.User{}).Where("id = ?", u.ID).Count(&count).Error; err != nil {
		t.Fatalf("unscoped count: %v", err)
	}
	if count != 1 {
		t.Fatalf("expected soft-deleted row to remain, got %d", count)
	}

	if err := repo.DeleteByID(ctx, u.ID); !errors.Is(err, ErrUserNotFound) {
		t.Fatalf("expected ErrUserNotFound on second delete, got %v", err)
	}
}

func TestUserRepositoryExistence(t *testing.T) {
	db := newRepositoryDBForTest(t)
	staff := seedUserTypeForTest(t, db, domain.StaffAdminKey, "Staff Admin")
	repo := NewUserRepository(db)
	ctx := context.Background()

	createAdminUserForTest(t, repo, staff.ID, 1000000001, "Maria", "Santos", "maria@example.com")

	if ok, err := repo.ExistsByLibraryID(ctx, 1000000001); err != nil || !ok {
		t.Fatalf("expected library id taken, got ok=%v err=%v", ok, err)
	}
	if ok, err := repo.ExistsByLibraryID(ctx, 999); err != nil || ok {
		t.Fatalf("expected library id free, got ok=%v err=%v", ok, err)
	}
	if ok, err := repo.ExistsByEmail(ctx, "maria@example.com"); err != nil || !ok {
		t.Fatalf("expected email taken, got ok=%v err=%v", ok, err)
	}
	if ok, err := repo.ExistsByEmail(ctx, "free@example.com"); err != nil || ok {
		t.Fatalf("expected email free, got ok=%v err=%v", ok, err)
	}
}

func TestUserRepositoryFindByIDNotFound(t *testing.T) {
	db := newRepositoryDBForTest(t)
	repo := NewUserRepository(db)
	if _, err := repo.FindByID(context.Background(), 12345); !errors.Is(err, ErrUserNotFound) {
		t.Fatalf("expected ErrUserNotFound, got %v", err)
	}
}
