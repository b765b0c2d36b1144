package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/librasys/admin-portal/internal/domain"
	"github.com/librasys/admin-portal/internal/repository"
	"github.com/librasys/admin-portal/internal/security"
)

func TestCreateAdminSuccess(t *testing.T) {
	env := newAdminServiceEnv(t, true, nil, nil, 0)

	user, err := env.svc.CreateAdmin(context.Background(), validCreateInput())
	if err != nil {
		t.Fatalf("create admin: %v", err)
	}
	if user.ID == 0 {
		t.Fatal("expected user id to be assigned")
	}
	if user.Email != "maria.santos@example.com" {
		t.Fatalf("expected lowercased email, got %q", user.Email)
	}
	if user.UserTypeID != env.staffType.ID {
		t.Fatalf("expected staff admin type %d, got %d", env.staffType.ID, user.UserTypeID)
	}
	if user.Admin == nil || user.Admin.RoleTitle != "Registrar" {
		t.Fatalf("expected admin profile, got %+v", user.Admin)
	}

	ok, err := security.VerifyPassword(user.PasswordHash, "Abcd1234!")
	if err != nil || !ok {
		t.Fatalf("expected stored hash to verify, ok=%v err=%v", ok, err)
	}

	loaded, err := env.users.FindByID(context.Background(), user.ID)
	if err != nil {
		t.Fatalf("reload user: %v", err)
	}
	if loaded.Admin == nil || loaded.Admin.UserID != user.ID {
		t.Fatalf("expected persisted admin profile, got %+v", loaded.Admin)
	}
}

func TestCreateAdminCollectsAllValidationErrors(t *testing.T) {
	env := newAdminServiceEnv(t, true, nil, nil, 0)

	_, err := env.svc.CreateAdmin(context.Background(), CreateAdminInput{Sex: "x"})
	var vErr *ValidationError
	if !errors.As(err, &vErr) {
		t.Fatalf("expected ValidationError, got %v", err)
	}
	for _, field := range []string{"library_id", "first_name", "last_name", "sex", "role_title", "email", "password"} {
		if _, ok := vErr.Fields[field]; !ok {
			t.Fatalf("expected error for field %q, got %+v", field, vErr.Fields)
		}
	}
}

func TestCreateAdminFieldRules(t *testing.T) {
	cases := []struct {
		name    string
		mutate  func(*CreateAdminInput)
		field   string
		message string
	}{
		{"non numeric library id", func(in *CreateAdminInput) { in.LibraryID = "12ab34" }, "library_id", "The library id must be an integer."},
		{"library id too long", func(in *CreateAdminInput) { in.LibraryID = "12345678901" }, "library_id", "The library id must be between 1 and 10 digits."},
		{"middle initial too long", func(in *CreateAdminInput) { in.MiddleInitial = "CD" }, "middle_initial", "The middle initial may not be greater than 1 character."},
		{"invalid sex", func(in *CreateAdminInput) { in.Sex = "x" }, "sex", "The selected sex is invalid."},
		{"invalid email", func(in *CreateAdminInput) { in.Email = "not-an-email" }, "email", "The email must be a valid email address."},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			env := newAdminServiceEnv(t, true, nil, nil, 0)
			in := validCreateInput()
			tc.mutate(&in)
			_, err := env.svc.CreateAdmin(context.Background(), in)
			var vErr *ValidationError
			if !errors.As(err, &vErr) {
				t.Fatalf("expected ValidationError, got %v", err)
			}
			if got := vErr.Fields[tc.field]; got != tc.message {
				t.Fatalf("field %q: got %q want %q", tc.field, got, tc.message)
			}
		})
	}
}

func TestCreateAdminPasswordPolicy(t *testing.T) {
	cases := []struct {
		name         string
		password     string
		confirmation string
		message      string
	}{
		{"missing", "", "", "The password field is required."},
		{"confirmation mismatch", "Abcd1234!", "Different1!", "The password confirmation does not match."},
		{"too short", "Ab1!", "Ab1!", "The password must be at least 8 characters."},
		{"no uppercase", "abcd1234!", "abcd1234!", "The password must contain at least one uppercase and one lowercase letter."},
		{"no lowercase", "ABCD1234!", "ABCD1234!", "The password must contain at least one uppercase and one lowercase letter."},
		{"no digit", "Abcdefgh!", "Abcdefgh!", "The password must contain at least one number."},
		{"no symbol", "Abcd12345", "Abcd12345", "The password must contain at least one symbol."},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			env := newAdminServiceEnv(t, true, nil, nil, 0)
			in := validCreateInput()
			in.Password = tc.password
			in.PasswordConfirmation = tc.confirmation
			_, err := env.svc.CreateAdmin(context.Background(), in)
			var vErr *ValidationError
			if !errors.As(err, &vErr) {
				t.Fatalf("expected ValidationError, got %v", err)
			}
			if got := vErr.Fields["password"]; got != tc.message {
				t.Fatalf("got %q want %q", got, tc.message)
			}
		})
	}
}

func TestCreateAdminRejectsCompromisedPassword(t *testing.T) {
	checker := NewStaticCompromisedChecker("Abcd1234!")
	env := newAdminServiceEnv(t, true, checker, nil, 0)

	_, err := env.svc.CreateAdmin(context.Background(), validCreateInput())
	var vErr *ValidationError
	if !errors.As(err, &vErr) {
		t.Fatalf("expected ValidationError, got %v", err)
	}
	if vErr.Fields["password"] != "The given password has appeared in a data leak. Please choose a different password." {
		t.Fatalf("unexpected message: %q", vErr.Fields["password"])
	}
}

func TestCreateAdminAllowsPasswordWhenCheckerUnavailable(t *testing.T) {
	checker := NewRangeAPICompromisedChecker("http://127.0.0.1:1")
	env := newAdminServiceEnv(t, true, checker, nil, 0)

	if _, err := env.svc.CreateAdmin(context.Background(), validCreateInput()); err != nil {
		t.Fatalf("expected creation to succeed despite checker outage, got %v", err)
	}
}

func TestCreateAdminDuplicateChecks(t *testing.T) {
	env := newAdminServiceEnv(t, true, nil, nil, 0)
	if _, err := env.svc.CreateAdmin(context.Background(), validCreateInput()); err != nil {
		t.Fatalf("seed first admin: %v", err)
	}

	in := validCreateInput()
	_, err := env.svc.CreateAdmin(context.Background(), in)
	var vErr *ValidationError
	if !errors.As(err, &vErr) {
		t.Fatalf("expected ValidationError, got %v", err)
	}
	if vErr.Fields["library_id"] != "The library id has already been taken." {
		t.Fatalf("unexpected library id message: %q", vErr.Fields["library_id"])
	}
	if vErr.Fields["email"] != "The email has already been taken." {
		t.Fatalf("unexpected email message: %q", vErr.Fields["email"])
	}

	var count int64
	if err := env.db.Model(&domain.Admin{}).Count(&count).Error; err != nil {
		t.Fatalf("count admins: %v", err)
	}
	if count != 1 {
		t.Fatalf("expected no partial admin rows, got %d", count)
	}
}

func TestCreateAdminMissingStaffType(t *testing.T) {
	env := newAdminServiceEnv(t, false, nil, nil, 0)
	_, err := env.svc.CreateAdmin(context.Background(), validCreateInput())
	if !errors.Is(err, repository.ErrUserTypeNotFound) {
		t.Fatalf("expected ErrUserTypeNotFound, got %v", err)
	}
}

func TestListAdminsDefaultsToStaffAdminFilter(t *testing.T) {
	env := newAdminServiceEnv(t, true, nil, nil, 0)
	librarian := &domain.UserType{Key: "librarian", Name: "Librarian"}
	if err := env.db.Create(librarian).Error; err != nil {
		t.Fatalf("seed librarian type: %v", err)
	}
	if _, err := env.svc.CreateAdmin(context.Background(), validCreateInput()); err != nil {
		t.Fatalf("create admin: %v", err)
	}
	other := &domain.User{
		LibraryID: 2000000001, FirstName: "Ana", LastName: "Reyes", Sex: "f",
		Email: "ana@example.com", PasswordHash: "hash", UserTypeID: librarian.ID,
	}
	if err := env.db.Create(other).Error; err != nil {
		t.Fatalf("seed librarian user: %v", err)
	}

	result, err := env.svc.ListAdmins(context.Background(), ListParams{
		PageRequest: repository.PageRequest{Page: 1, PageSize: 10},
	})
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if result.Data.Total != 1 {
		t.Fatalf("expected only staff admins, got total=%d", result.Data.Total)
	}
	if len(result.Filters) != 1 || result.Filters[0].ID != "user_type_id" {
		t.Fatalf("expected default type filter descriptor, got %+v", result.Filters)
	}
	if len(result.UserTypes) != 2 {
		t.Fatalf("expected both user types for the dropdown, got %d", len(result.UserTypes))
	}
}

func TestListAdminsOmitsDefaultWhenStaffTypeMissing(t *testing.T) {
	env := newAdminServiceEnv(t, false, nil, nil, 0)
	patron := &domain.UserType{Key: "patron", Name: "Patron"}
	if err := env.db.Create(patron).Error; err != nil {
		t.Fatalf("seed patron type: %v", err)
	}
	u := &domain.User{
		LibraryID: 2000000001, FirstName: "Ana", LastName: "Reyes", Sex: "f",
		Email: "ana@example.com", PasswordHash: "hash", UserTypeID: patron.ID,
	}
	if err := env.db.Create(u).Error; err != nil {
		t.Fatalf("seed user: %v", err)
	}

	result, err := env.svc.ListAdmins(context.Background(), ListParams{
		PageRequest: repository.PageRequest{Page: 1, PageSize: 10},
	})
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if result.Data.Total != 1 {
		t.Fatalf("expected unfiltered listing, got total=%d", result.Data.Total)
	}
	if len(result.Filters) != 0 {
		t.Fatalf("expected no filter descriptors, got %+v", result.Filters)
	}
}

func TestListAdminsExplicitFilterAndSearch(t *testing.T) {
	env := newAdminServiceEnv(t, true, nil, nil, 0)
	if _, err := env.svc.CreateAdmin(context.Background(), validCreateInput()); err != nil {
		t.Fatalf("create admin: %v", err)
	}

	result, err := env.svc.ListAdmins(context.Background(), ListParams{
		PageRequest:   repository.PageRequest{Page: 1, PageSize: 10},
		UserTypeIDs:   []int64{int64(env.staffType.ID)},
		TypeFilterSet: true,
		RawTypeFilter: "1",
		Search:        "  santos ",
	})
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if result.Data.Total != 1 {
		t.Fatalf("expected one match, got %d", result.Data.Total)
	}
	if len(result.Filters) != 2 {
		t.Fatalf("expected type and search descriptors, got %+v", result.Filters)
	}
	if result.Filters[0].ID != "user_type_id" || result.Filters[0].Value != "1" {
		t.Fatalf("unexpected type descriptor: %+v", result.Filters[0])
	}
	if result.Filters[1].ID != "search" || result.Filters[1].Value != "santos" {
		t.Fatalf("expected trimmed search descriptor, got %+v", result.Filters[1])
	}
}

func TestListAdminsCachingAndInvalidation(t *testing.T) {
	cache := NewInMemoryListCacheStore()
	env := newAdminServiceEnv(t, true, nil, cache, time.Minute)
	if _, err := env.svc.CreateAdmin(context.Background(), validCreateInput()); err != nil {
		t.Fatalf("create admin: %v", err)
	}

	params := ListParams{PageRequest: repository.PageRequest{Page: 1, PageSize: 10}}
	first, err := env.svc.ListAdmins(context.Background(), params)
	if err != nil {
		t.Fatalf("first list: %v", err)
	}
	if first.Data.Total != 1 {
		t.Fatalf("expected one admin, got %d", first.Data.Total)
	}

	// A direct insert bypasses the service, so a cached page must not see it.
	direct := &domain.User{
		LibraryID: 3000000001, FirstName: "Pia", LastName: "Lim", Sex: "f",
		Email: "pia@example.com", PasswordHash: "hash", UserTypeID: env.staffType.ID,
	}
	if err := env.db.Create(direct).Error; err != nil {
		t.Fatalf("direct insert: %v", err)
	}
	cached, err := env.svc.ListAdmins(context.Background(), params)
	if err != nil {
		t.Fatalf("cached list: %v", err)
	}
	if cached.Data.Total != 1 {
		t.Fatalf("expected cached total 1, got %d", cached.Data.Total)
	}

	// Deleting through the service invalidates the namespace.
	if err := env.svc.DeleteAdmin(context.Background(), direct.ID); err != nil {
		t.Fatalf("delete: %v", err)
	}
	fresh, err := env.svc.ListAdmins(context.Background(), params)
	if err != nil {
		t.Fatalf("fresh list: %v", err)
	}
	if fresh.Data.Total != 1 {
		t.Fatalf("expected fresh total 1 after delete, got %d", fresh.Data.Total)
	}
}

func TestDeleteAdmin(t *testing.T) {
	env := newAdminServiceEnv(t, true, nil, nil, 0)
	user, err := env.svc.CreateAdmin(context.Background(), validCreateInput())
	if err != nil {
		t.Fatalf("create admin: %v", err)
	}

	if err := env.svc.DeleteAdmin(context.Background(), user.ID); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if _, err := env.users.FindByID(context.Background(), user.ID); !errors.Is(err, repository.ErrUserNotFound) {
		t.Fatalf("expected user gone, got %v", err)
	}

	if err := env.svc.DeleteAdmin(context.Background(), 9999); !errors.Is(err, repository.ErrUserNotFound) {
		t.Fatalf("expected ErrUserNotFound, got %v", err)
	}
}
