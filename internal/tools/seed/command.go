package seed

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"gorm.io/gorm"

	"github.com/librasys/admin-portal/internal/config"
	"github.com/librasys/admin-portal/internal/database"
	"github.com/librasys/admin-portal/internal/tools/common"
)

type options struct {
	envFile string
	ci      bool
}

func NewRootCommand() *cobra.Command {
	opts := &options{}
	cmd := &cobra.Command{Use: "seed", Short: "Database seed tooling"}
	cmd.PersistentFlags().StringVar(&opts.envFile, "env-file", ".env", "path to env file")
	cmd.PersistentFlags().BoolVar(&opts.ci, "ci", false, "non-interactive machine-readable output")
	cmd.AddCommand(newApplyCommand(opts), newDryRunCommand(opts))
	return cmd
}

func newApplyCommand(opts *options) *cobra.Command {
	return &cobra.Command{
		Use:   "apply",
		Short: "Apply default seed data",
		RunE: func(cmd *cobra.Command, args []string) error {
			details, err := func() ([]string, error) {
				db, cfg, err := loadDB(opts.envFile)
				if err != nil {
					return nil, err
				}
				if err := database.Migrate(db); err != nil {
					return nil, err
				}
				bootstrap, err := database.BootstrapAdminFromConfig(cfg)
				if err != nil {
					return nil, err
				}
				report, err := database.Seed(db, bootstrap)
				if err != nil {
					return nil, err
				}
				if report.Noop {
					return []string{"all seed data already present"}, nil
				}
				details := []string{fmt.Sprintf("created %d default user types", report.CreatedUserTypes)}
				if report.CreatedBootstrapAdmin {
					details = append(details, fmt.Sprintf("created bootstrap admin %s", bootstrap.Email))
				}
				return details, nil
			}()
			report(opts, "seed apply", details, err)
			if err != nil {
				os.Exit(3)
			}
			return nil
		},
	}
}

func newDryRunCommand(opts *options) *cobra.Command {
	return &cobra.Command{
		Use:   "dry-run",
		Short: "Show what seeding would do",
		RunE: func(cmd *cobra.Command, args []string) error {
			details := []string{
				"would run schema migrations for user_types, users, admins, idempotency_records",
				"would ensure user types: staff_admin, librarian, patron",
				"would create the bootstrap admin when the BOOTSTRAP_ADMIN_* variables are set",
			}
			report(opts, "seed dry-run", details, nil)
			return nil
		},
	}
}

func report(opts *options, title string, details []string, err error) {
	if opts.ci {
		common.PrintCIResult(err == nil, title, details, err)
		return
	}
	if err != nil {
		fmt.Fprintf(os.Stderr, "%s failed: %v\n", title, err)
		return
	}
	for _, d := range details {
		fmt.Println(d)
	}
}

func loadDB(envFile string) (*gorm.DB, *config.Config, error) {
	if err := common.LoadEnvFile(envFile); err != nil {
		return nil, nil, err
	}
	cfg, err := config.Load()
	if err != nil {
		return nil, nil, err
	}
	db, err := database.Open(cfg)
	if err != nil {
		return nil, nil, err
	}
	return db, cfg, nil
}
