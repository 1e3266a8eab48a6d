package seed

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/bwmarrin/snowflake"
	authdomain "github.com/smallbiznis/nanolite/internal/auth/domain"
	"github.com/smallbiznis/nanolite/internal/auth/password"
	"github.com/smallbiznis/nanolite/internal/config"
	refdomain "github.com/smallbiznis/nanolite/internal/reference/domain"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

const (
	defaultCompanyName = "Nanolite"
	defaultAdminName   = "Nanolite Admin"
)

// Bootstrap seeds demo reference data and the admin account when enabled.
// Every step is idempotent so it can run on each start.
func Bootstrap(ctx context.Context, db *gorm.DB, cfg config.Config, log *zap.Logger) error {
	if db == nil {
		return errors.New("seed database handle is required")
	}
	boot := cfg.Bootstrap
	if !boot.SeedReferenceData && strings.TrimSpace(boot.AdminEmail) == "" {
		return nil
	}

	node, err := snowflake.NewNode(1)
	if err != nil {
		return err
	}

	return db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		company, err := ensureCompany(tx, node, snowflake.ID(cfg.DefaultCompanyID))
		if err != nil {
			return fmt.Errorf("seed company: %w", err)
		}
		if boot.SeedReferenceData {
			if err := seedReference(tx, node, company.ID); err != nil {
				return fmt.Errorf("seed reference data: %w", err)
			}
			log.Info("reference data seeded", zap.String("company_id", company.ID.String()))
		}
		if email := strings.TrimSpace(boot.AdminEmail); email != "" {
			created, err := ensureAdmin(tx, node, company.ID, email, boot.AdminPassword)
			if err != nil {
				return fmt.Errorf("seed admin: %w", err)
			}
			if created {
				log.Info("admin user created", zap.String("email", email))
			}
		}
		return nil
	})
}

func ensureCompany(tx *gorm.DB, node *snowflake.Node, id snowflake.ID) (refdomain.Company, error) {
	var company refdomain.Company
	if id != 0 {
		err := tx.Where(refdomain.Company{ID: id}).
			Attrs(refdomain.Company{Name: defaultCompanyName, CreatedAt: time.Now().UTC()}).
			FirstOrCreate(&company).Error
		return company, err
	}
	err := tx.Where(refdomain.Company{Name: defaultCompanyName}).
		Attrs(refdomain.Company{ID: node.Generate(), CreatedAt: time.Now().UTC()}).
		FirstOrCreate(&company).Error
	return company, err
}

func ensureAdmin(tx *gorm.DB, node *snowflake.Node, companyID snowflake.ID, email, rawPassword string) (bool, error) {
	email = strings.ToLower(email)
	var existing authdomain.User
	err := tx.Where("email = ?", email).First(&existing).Error
	if err == nil {
		return false, nil
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return false, err
	}
	if strings.TrimSpace(rawPassword) == "" {
		return false, errors.New("admin password is required")
	}

	hashed, err := password.Hash(rawPassword)
	if err != nil {
		return false, err
	}
	now := time.Now().UTC()
	user := authdomain.User{
		ID:           node.Generate(),
		Name:         defaultAdminName,
		Email:        email,
		PasswordHash: &hashed,
		Role:         authdomain.RoleSuperAdmin,
		CompanyID:    companyID,
		IsDefault:    true,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	return true, tx.Create(&user).Error
}

type demoProduct struct {
	name   string
	colors []string
	price  int64
}

var demoCatalog = map[string]map[string][]demoProduct{
	"Nano": {
		"Lampu LED": {
			{name: "LED Bulb 9W", colors: []string{"Putih", "Kuning"}, price: 25000},
			{name: "LED Bulb 12W", colors: []string{"Putih", "Kuning"}, price: 32000},
		},
		"Downlight": {
			{name: "Downlight Panel 6W", colors: []string{"Putih", "Warm White"}, price: 45000},
		},
	},
	"Terang": {
		"Lampu Jalan": {
			{name: "Street Light 50W", colors: []string{"Putih"}, price: 350000},
		},
	},
}

func seedReference(tx *gorm.DB, node *snowflake.Node, companyID snowflake.ID) error {
	now := time.Now().UTC()

	if err := seedRegions(tx); err != nil {
		return err
	}

	var dept refdomain.Department
	if err := tx.Where(refdomain.Department{CompanyID: companyID, Name: "Sales Jakarta"}).
		Attrs(refdomain.Department{ID: node.Generate(), CreatedAt: now}).
		FirstOrCreate(&dept).Error; err != nil {
		return err
	}

	employees := make([]refdomain.Employee, 0, 2)
	for _, name := range []string{"Budi Santoso", "Sari Wulandari"} {
		var emp refdomain.Employee
		if err := tx.Where(refdomain.Employee{CompanyID: companyID, DepartmentID: dept.ID, Name: name}).
			Attrs(refdomain.Employee{ID: node.Generate(), CreatedAt: now}).
			FirstOrCreate(&emp).Error; err != nil {
			return err
		}
		employees = append(employees, emp)
	}

	categories := make([]refdomain.CustomerCategory, 0, 2)
	for _, name := range []string{"Toko Listrik", "Kontraktor"} {
		var cat refdomain.CustomerCategory
		if err := tx.Where(refdomain.CustomerCategory{CompanyID: companyID, Name: name}).
			Attrs(refdomain.CustomerCategory{ID: node.Generate(), CreatedAt: now}).
			FirstOrCreate(&cat).Error; err != nil {
			return err
		}
		categories = append(categories, cat)
	}

	for _, name := range []string{"Loyalty Partner", "Proyek Pemerintah"} {
		var program refdomain.CustomerProgram
		if err := tx.Where(refdomain.CustomerProgram{CompanyID: companyID, Name: name}).
			Attrs(refdomain.CustomerProgram{ID: node.Generate(), CreatedAt: now}).
			FirstOrCreate(&program).Error; err != nil {
			return err
		}
	}

	customers := []struct {
		name     string
		employee int
		category int
		status   string
	}{
		{name: "Toko Terang Jaya", employee: 0, category: 0, status: refdomain.CustomerStatusActive},
		{name: "CV Cahaya Abadi", employee: 0, category: 1, status: refdomain.CustomerStatusActive},
		{name: "Toko Sinar Baru", employee: 1, category: 0, status: refdomain.CustomerStatusActive},
		{name: "PT Bangun Kota", employee: 1, category: 1, status: refdomain.CustomerStatusPending},
	}
	for _, c := range customers {
		emp := employees[c.employee]
		var customer refdomain.Customer
		if err := tx.Where(refdomain.Customer{CompanyID: companyID, Name: c.name}).
			Attrs(refdomain.Customer{
				ID:                 node.Generate(),
				DepartmentID:       dept.ID,
				EmployeeID:         emp.ID,
				CustomerCategoryID: categories[c.category].ID,
				Status:             c.status,
				CreatedAt:          now,
			}).
			FirstOrCreate(&customer).Error; err != nil {
			return err
		}
	}

	for brandName, cats := range demoCatalog {
		var brand refdomain.Brand
		if err := tx.Where(refdomain.Brand{CompanyID: companyID, Name: brandName}).
			Attrs(refdomain.Brand{ID: node.Generate(), CreatedAt: now}).
			FirstOrCreate(&brand).Error; err != nil {
			return err
		}
		for catName, products := range cats {
			var cat refdomain.Category
			if err := tx.Where(refdomain.Category{CompanyID: companyID, BrandID: brand.ID, Name: catName}).
				Attrs(refdomain.Category{ID: node.Generate(), CreatedAt: now}).
				FirstOrCreate(&cat).Error; err != nil {
				return err
			}
			for _, p := range products {
				var product refdomain.Product
				if err := tx.Where(refdomain.Product{CompanyID: companyID, CategoryID: cat.ID, Name: p.name}).
					Attrs(refdomain.Product{
						ID:        node.Generate(),
						BrandID:   brand.ID,
						Colors:    p.colors,
						Price:     p.price,
						CreatedAt: now,
					}).
					FirstOrCreate(&product).Error; err != nil {
					return err
				}
			}
		}
	}
	return nil
}

func seedRegions(tx *gorm.DB) error {
	parent := func(code string) *string { return &code }
	regions := []refdomain.Region{
		{Code: "31", Kind: "province", Name: "DKI Jakarta"},
		{Code: "3171", Kind: "city", Name: "Jakarta Pusat", ParentCode: parent("31")},
		{Code: "3174", Kind: "city", Name: "Jakarta Selatan", ParentCode: parent("31")},
		{Code: "317101", Kind: "district", Name: "Gambir", ParentCode: parent("3171")},
		{Code: "317401", Kind: "district", Name: "Tebet", ParentCode: parent("3174")},
		{Code: "3171011001", Kind: "village", Name: "Gambir", ParentCode: parent("317101")},
		{Code: "3174011001", Kind: "village", Name: "Tebet Barat", ParentCode: parent("317401")},
	}
	for i := range regions {
		r := regions[i]
		if err := tx.Where(refdomain.Region{Code: r.Code}).Attrs(r).FirstOrCreate(&r).Error; err != nil {
			return err
		}
	}
	postal := []refdomain.PostalCode{
		{VillageCode: "3171011001", PostalCode: "10110"},
		{VillageCode: "3174011001", PostalCode: "12810"},
	}
	for i := range postal {
		p := postal[i]
		if err := tx.Where(refdomain.PostalCode{VillageCode: p.VillageCode}).Attrs(p).FirstOrCreate(&p).Error; err != nil {
			return err
		}
	}
	return nil
}
