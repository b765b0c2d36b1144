package database

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"gorm.io/gorm"

	"github.com/librasys/admin-portal/internal/config"
	"github.com/librasys/admin-portal/internal/domain"
	"github.com/librasys/admin-portal/internal/repository"
	"github.com/librasys/admin-portal/internal/security"
)

var defaultUserTypes = []domain.UserType{
	{Key: domain.StaffAdminKey, Name: "Staff Admin"},
	{Key: "librarian", Name: "Librarian"},
	{Key: "patron", Name: "Patron"},
}

// BootstrapAdmin describes the initial admin account the seed tool may
// install on a fresh database.
type BootstrapAdmin struct {
	LibraryID int64
	FirstName string
	LastName  string
	Email     string
	Password  string
	RoleTitle string
}

// BootstrapAdminFromConfig builds the bootstrap account from the
// BOOTSTRAP_ADMIN_* variables. It returns nil when none of them are set;
// a partially filled block is an error so a typo cannot silently skip the
// account.
func BootstrapAdminFromConfig(cfg *config.Config) (*BootstrapAdmin, error) {
	fields := map[string]string{
		"BOOTSTRAP_ADMIN_LIBRARY_ID": strings.TrimSpace(cfg.BootstrapAdminLibraryID),
		"BOOTSTRAP_ADMIN_FIRST_NAME": strings.TrimSpace(cfg.BootstrapAdminFirstName),
		"BOOTSTRAP_ADMIN_LAST_NAME":  strings.TrimSpace(cfg.BootstrapAdminLastName),
		"BOOTSTRAP_ADMIN_EMAIL":      strings.TrimSpace(cfg.BootstrapAdminEmail),
		"BOOTSTRAP_ADMIN_PASSWORD":   cfg.BootstrapAdminPassword,
		"BOOTSTRAP_ADMIN_ROLE_TITLE": strings.TrimSpace(cfg.BootstrapAdminRoleTitle),
	}

	var missing []string
	anySet := false
	for name, value := range fields {
		if value == "" {
			missing = append(missing, name)
		} else {
			anySet = true
		}
	}
	if !anySet {
		return nil, nil
	}
	if len(missing) > 0 {
		return nil, fmt.Errorf("incomplete bootstrap admin configuration, missing %s", strings.Join(missing, ", "))
	}

	libraryID, err := strconv.ParseInt(fields["BOOTSTRAP_ADMIN_LIBRARY_ID"], 10, 64)
	if err != nil {
		return nil, errors.New("BOOTSTRAP_ADMIN_LIBRARY_ID must be an integer")
	}

	return &BootstrapAdmin{
		LibraryID: libraryID,
		FirstName: fields["BOOTSTRAP_ADMIN_FIRST_NAME"],
		LastName:  fields["BOOTSTRAP_ADMIN_LAST_NAME"],
		Email:     strings.ToLower(fields["BOOTSTRAP_ADMIN_EMAIL"]),
		Password:  fields["BOOTSTRAP_ADMIN_PASSWORD"],
		RoleTitle: fields["BOOTSTRAP_ADMIN_ROLE_TITLE"],
	}, nil
}

type SeedReport struct {
	CreatedUserTypes      int  `json:"created_user_types"`
	CreatedBootstrapAdmin bool `json:"created_bootstrap_admin"`
	Noop                  bool `json:"noop"`
}

// Seed installs the baseline user types and, when bootstrap is non-nil, the
// initial admin account. It is idempotent and safe to run on every startup.
func Seed(db *gorm.DB, bootstrap *BootstrapAdmin) (*SeedReport, error) {
	report := &SeedReport{}
	for _, ut := range defaultUserTypes {
		res := db.Where("key = ?", ut.Key).FirstOrCreate(&ut)
		if res.Error != nil {
			return nil, res.Error
		}
		if res.RowsAffected > 0 {
			report.CreatedUserTypes++
		}
	}

	if bootstrap != nil {
		created, err := seedBootstrapAdmin(db, bootstrap)
		if err != nil {
			return nil, err
		}
		report.CreatedBootstrapAdmin = created
	}

	report.Noop = report.CreatedUserTypes == 0 && !report.CreatedBootstrapAdmin
	return report, nil
}

func seedBootstrapAdmin(db *gorm.DB, bootstrap *BootstrapAdmin) (bool, error) {
	ctx := context.Background()
	users := repository.NewUserRepository(db)

	exists, err := users.ExistsByEmail(ctx, bootstrap.Email)
	if err != nil {
		return false, fmt.Errorf("check bootstrap admin email: %w", err)
	}
	if exists {
		return false, nil
	}

	userTypes := repository.NewUserTypeRepository(db)
	staff, err := userTypes.FindByKey(ctx, domain.StaffAdminKey)
	if err != nil {
		return false, fmt.Errorf("resolve staff admin type: %w", err)
	}

	hash, err := security.HashPassword(bootstrap.Password)
	if err != nil {
		return false, fmt.Errorf("hash bootstrap admin password: %w", err)
	}

	user := &domain.User{
		LibraryID:    bootstrap.LibraryID,
		FirstName:    bootstrap.FirstName,
		LastName:     bootstrap.LastName,
		Email:        bootstrap.Email,
		PasswordHash: hash,
		UserTypeID:   staff.ID,
	}
	admin := &domain.Admin{RoleTitle: bootstrap.RoleTitle}
	if err := users.CreateWithAdmin(ctx, user, admin); err != nil {
		return false, fmt.Errorf("create bootstrap admin: %w", err)
	}
	return true, nil
}
