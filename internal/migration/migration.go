package migration

import (
	"database/sql"
	"embed"
	"errors"
	"fmt"
	"io/fs"

	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database/postgres"
	"github.com/golang-migrate/migrate/v4/source/iofs"
	auditdomain "github.com/smallbiznis/nanolite/internal/audit/domain"
	authdomain "github.com/smallbiznis/nanolite/internal/auth/domain"
	garansidomain "github.com/smallbiznis/nanolite/internal/garansi/domain"
	orderdomain "github.com/smallbiznis/nanolite/internal/order/domain"
	refdomain "github.com/smallbiznis/nanolite/internal/reference/domain"
	"gorm.io/gorm"
)

const migrationsDir = "sql"

//go:embed sql/*.sql
var embeddedMigrations embed.FS

// RunMigrations applies the embedded postgres migrations.
func RunMigrations(db *sql.DB) error {
	if db == nil {
		return errors.New("migration database handle is required")
	}

	sub, err := fs.Sub(embeddedMigrations, migrationsDir)
	if err != nil {
		return fmt.Errorf("open migrations: %w", err)
	}

	source, err := iofs.New(sub, ".")
	if err != nil {
		return fmt.Errorf("create migration source: %w", err)
	}

	driver, err := postgres.WithInstance(db, &postgres.Config{})
	if err != nil {
		return fmt.Errorf("create migration driver: %w", err)
	}

	migrator, err := migrate.NewWithInstance("iofs", source, "postgres", driver)
	if err != nil {
		return fmt.Errorf("create migrator: %w", err)
	}

	upErr := migrator.Up()
	if upErr != nil && !errors.Is(upErr, migrate.ErrNoChange) {
		return fmt.Errorf("apply migrations: %w", upErr)
	}
	// Do not call migrator.Close here because it would close the shared *sql.DB.

	return nil
}

// Models lists every table owned by the application.
func Models() []any {
	return []any{
		&authdomain.User{},
		&authdomain.Session{},
		&auditdomain.AuditLog{},
		&refdomain.Region{},
		&refdomain.PostalCode{},
		&refdomain.Company{},
		&refdomain.Department{},
		&refdomain.Employee{},
		&refdomain.CustomerCategory{},
		&refdomain.CustomerProgram{},
		&refdomain.Customer{},
		&refdomain.Brand{},
		&refdomain.Category{},
		&refdomain.Product{},
		&garansidomain.Garansi{},
		&orderdomain.Order{},
	}
}

// Apply brings the schema up to date. Postgres uses the versioned SQL
// migrations; mysql and sqlite fall back to gorm auto migration.
func Apply(conn *gorm.DB, dialect string) error {
	if dialect == "postgres" {
		sqlDB, err := conn.DB()
		if err != nil {
			return err
		}
		return RunMigrations(sqlDB)
	}
	if err := conn.AutoMigrate(Models()...); err != nil {
		return fmt.Errorf("auto migrate: %w", err)
	}
	return nil
}
