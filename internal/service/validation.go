package service

import (
	"context"
	"log/slog"
	"net/mail"
	"regexp"
	"strconv"
	"strings"

	"github.com/librasys/admin-portal/internal/observability"
)

var (
	digitsOnlyRe = regexp.MustCompile(`^[0-9]+$`)
	uppercaseRe  = regexp.MustCompile(`[A-Z]`)
	lowercaseRe  = regexp.MustCompile(`[a-z]`)
	digitRe      = regexp.MustCompile(`[0-9]`)
	symbolRe     = regexp.MustCompile(`[^A-Za-z0-9]`)
)

// validate checks every declared rule before any persistence is attempted.
// The returned ValidationError is nil when the input passes. A non-nil error
// reports an infrastructure failure during uniqueness lookups, not a rule
// violation.
func (s *AdminService) validate(ctx context.Context, in *CreateAdminInput) (*ValidationError, error) {
	v := newValidationError()

	in.LibraryID = strings.TrimSpace(in.LibraryID)
	switch {
	case in.LibraryID == "":
		v.add("library_id", "The library id field is required.")
	case !digitsOnlyRe.MatchString(in.LibraryID):
		v.add("library_id", "The library id must be an integer.")
	case len(in.LibraryID) > 10:
		v.add("library_id", "The library id must be between 1 and 10 digits.")
	default:
		libraryID, err := strconv.ParseInt(in.LibraryID, 10, 64)
		if err != nil {
			v.add("library_id", "The library id must be an integer.")
			break
		}
		taken, err := s.users.ExistsByLibraryID(ctx, libraryID)
		if err != nil {
			return nil, err
		}
		if taken {
			v.add("library_id", "The library id has already been taken.")
		}
	}

	in.FirstName = strings.TrimSpace(in.FirstName)
	if in.FirstName == "" {
		v.add("first_name", "The first name field is required.")
	} else if len(in.FirstName) > 50 {
		v.add("first_name", "The first name may not be greater than 50 characters.")
	}

	if len(in.MiddleInitial) > 1 {
		v.add("middle_initial", "The middle initial may not be greater than 1 character.")
	}

	in.LastName = strings.TrimSpace(in.LastName)
	if in.LastName == "" {
		v.add("last_name", "The last name field is required.")
	} else if len(in.LastName) > 50 {
		v.add("last_name", "The last name may not be greater than 50 characters.")
	}

	if in.Sex != "m" && in.Sex != "f" {
		v.add("sex", "The selected sex is invalid.")
	}

	in.RoleTitle = strings.TrimSpace(in.RoleTitle)
	if in.RoleTitle == "" {
		v.add("role_title", "The role title field is required.")
	} else if len(in.RoleTitle) > 100 {
		v.add("role_title", "The role title may not be greater than 100 characters.")
	}

	in.Email = strings.ToLower(strings.TrimSpace(in.Email))
	switch {
	case in.Email == "":
		v.add("email", "The email field is required.")
	case len(in.Email) > 255:
		v.add("email", "The email may not be greater than 255 characters.")
	case !validEmail(in.Email):
		v.add("email", "The email must be a valid email address.")
	default:
		taken, err := s.users.ExistsByEmail(ctx, in.Email)
		if err != nil {
			return nil, err
		}
		if taken {
			v.add("email", "The email has already been taken.")
		}
	}

	s.validatePassword(ctx, in, v)

	if v.empty() {
		return nil, nil
	}
	return v, nil
}

func (s *AdminService) validatePassword(ctx context.Context, in *CreateAdminInput, v *ValidationError) {
	if in.Password == "" {
		v.add("password", "The password field is required.")
		return
	}
	if in.Password != in.PasswordConfirmation {
		v.add("password", "The password confirmation does not match.")
		return
	}
	switch {
	case len(in.Password) < 8:
		v.add("password", "The password must be at least 8 characters.")
	case !uppercaseRe.MatchString(in.Password) || !lowercaseRe.MatchString(in.Password):
		v.add("password", "The password must contain at least one uppercase and one lowercase letter.")
	case !digitRe.MatchString(in.Password):
		v.add("password", "The password must contain at least one number.")
	case !symbolRe.MatchString(in.Password):
		v.add("password", "The password must contain at least one symbol.")
	default:
		compromised, err := s.compromised.Compromised(ctx, in.Password)
		if err != nil {
			// The check is advisory: a lookup outage must not block admin
			// creation, but it is worth a warning.
			observability.RecordCompromisedCheck(ctx, "unavailable")
			slog.WarnContext(ctx, "compromised password check unavailable", "error", err)
			return
		}
		if compromised {
			observability.RecordCompromisedCheck(ctx, "compromised")
			v.add("password", "The given password has appeared in a data leak. Please choose a different password.")
			return
		}
		observability.RecordCompromisedCheck(ctx, "clean")
	}
}

func validEmail(email string) bool {
	addr, err := mail.ParseAddress(email)
	return err == nil && addr.Address == email
}
