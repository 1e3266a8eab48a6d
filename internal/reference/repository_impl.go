package reference

import (
	"context"
	"fmt"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/nanolite/internal/reference/domain"
	"github.com/smallbiznis/nanolite/pkg/db/option"
	"github.com/smallbiznis/nanolite/pkg/repository"
	"gorm.io/gorm"
)

type repo struct {
	db       *gorm.DB
	products repository.Repository[domain.Product]
}

func NewRepository(db *gorm.DB) domain.Repository {
	return &repo{
		db:       db,
		products: repository.ProvideStore[domain.Product](db),
	}
}

func (r *repo) Names(ctx context.Context, t domain.Table, companyID snowflake.ID, ids []snowflake.ID) (map[snowflake.ID]string, error) {
	if !t.Valid() {
		return nil, domain.ErrUnknownTable
	}
	out := make(map[snowflake.ID]string, len(ids))
	ids = uniqueIDs(ids)
	if len(ids) == 0 {
		return out, nil
	}

	type row struct {
		ID   snowflake.ID `gorm:"column:id"`
		Name string       `gorm:"column:name"`
	}
	var rows []row
	query := fmt.Sprintf(`SELECT id, name FROM %s WHERE id IN ?`, t)
	args := []any{ids}
	if t != domain.TableCompanies {
		query += ` AND company_id = ?`
		args = append(args, companyID)
	}
	if err := r.db.WithContext(ctx).Raw(query, args...).Scan(&rows).Error; err != nil {
		return nil, err
	}
	for _, item := range rows {
		out[item.ID] = item.Name
	}
	return out, nil
}

func (r *repo) Products(ctx context.Context, companyID snowflake.ID, ids []snowflake.ID) ([]domain.Product, error) {
	ids = uniqueIDs(ids)
	if len(ids) == 0 {
		return nil, nil
	}
	items, err := r.products.Find(ctx, &domain.Product{CompanyID: companyID}, option.WithIDs(ids))
	if err != nil {
		return nil, err
	}
	out := make([]domain.Product, 0, len(items))
	for _, item := range items {
		out = append(out, *item)
	}
	return out, nil
}

func (r *repo) RegionNames(ctx context.Context, codes []string) ([]domain.Region, error) {
	codes = uniqueStrings(codes)
	if len(codes) == 0 {
		return nil, nil
	}
	var regions []domain.Region
	err := r.db.WithContext(ctx).
		Raw(`SELECT code, kind, name, parent_code FROM regions WHERE code IN ?`, codes).
		Scan(&regions).Error
	return regions, err
}

func (r *repo) PostalCodes(ctx context.Context, villageCodes []string) (map[string]string, error) {
	out := make(map[string]string)
	villageCodes = uniqueStrings(villageCodes)
	if len(villageCodes) == 0 {
		return out, nil
	}
	var rows []domain.PostalCode
	err := r.db.WithContext(ctx).
		Raw(`SELECT village_code, postal_code FROM postal_codes WHERE village_code IN ?`, villageCodes).
		Scan(&rows).Error
	if err != nil {
		return nil, err
	}
	for _, item := range rows {
		out[item.VillageCode] = item.PostalCode
	}
	return out, nil
}

func (r *repo) ListRegions(ctx context.Context, kind string, parentCode string) ([]domain.Region, error) {
	stmt := r.db.WithContext(ctx).Model(&domain.Region{}).Where("kind = ?", kind)
	if parentCode != "" {
		stmt = stmt.Where("parent_code = ?", parentCode)
	}
	var regions []domain.Region
	err := stmt.Order("name").Find(&regions).Error
	return regions, err
}

func (r *repo) CustomerCategoriesUsed(ctx context.Context, companyID, employeeID snowflake.ID) ([]domain.CustomerCategory, error) {
	var categories []domain.CustomerCategory
	err := r.db.WithContext(ctx).
		Raw(`SELECT DISTINCT cc.id, cc.company_id, cc.name, cc.created_at
			FROM customer_categories cc
			JOIN customers c ON c.customer_category_id = cc.id
			WHERE c.company_id = ? AND c.employee_id = ?
			ORDER BY cc.name`, companyID, employeeID).
		Scan(&categories).Error
	return categories, err
}

func (r *repo) CustomersByFilter(ctx context.Context, filter domain.CustomerFilter) ([]domain.Customer, error) {
	var customers []domain.Customer
	err := r.db.WithContext(ctx).
		Where("company_id = ? AND department_id = ? AND employee_id = ? AND customer_category_id = ? AND status = ?",
			filter.CompanyID, filter.DepartmentID, filter.EmployeeID, filter.CustomerCategoryID, domain.CustomerStatusActive).
		Order("name").
		Find(&customers).Error
	return customers, err
}

func (r *repo) ListCustomerPrograms(ctx context.Context, companyID snowflake.ID) ([]domain.CustomerProgram, error) {
	var programs []domain.CustomerProgram
	err := r.db.WithContext(ctx).Where("company_id = ?", companyID).Order("name").Find(&programs).Error
	return programs, err
}

func (r *repo) ListBrands(ctx context.Context, companyID snowflake.ID) ([]domain.Brand, error) {
	var brands []domain.Brand
	err := r.db.WithContext(ctx).Where("company_id = ?", companyID).Order("name").Find(&brands).Error
	return brands, err
}

func (r *repo) ListCategories(ctx context.Context, companyID, brandID snowflake.ID) ([]domain.Category, error) {
	stmt := r.db.WithContext(ctx).Where("company_id = ?", companyID)
	if brandID != 0 {
		stmt = stmt.Where("brand_id = ?", brandID)
	}
	var categories []domain.Category
	err := stmt.Order("name").Find(&categories).Error
	return categories, err
}

func (r *repo) ListProducts(ctx context.Context, companyID, categoryID snowflake.ID) ([]domain.Product, error) {
	opts := []option.QueryOption{option.WithOrder("name", false)}
	if categoryID != 0 {
		opts = append(opts, option.WithWhere("category_id = ?", categoryID))
	}
	items, err := r.products.Find(ctx, &domain.Product{CompanyID: companyID}, opts...)
	if err != nil {
		return nil, err
	}
	out := make([]domain.Product, 0, len(items))
	for _, item := range items {
		out = append(out, *item)
	}
	return out, nil
}

func uniqueIDs(ids []snowflake.ID) []snowflake.ID {
	seen := make(map[snowflake.ID]struct{}, len(ids))
	out := make([]snowflake.ID, 0, len(ids))
	for _, id := range ids {
		if id == 0 {
			continue
		}
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	return out
}

func uniqueStrings(values []string) []string {
	seen := make(map[string]struct{}, len(values))
	out := make([]string, 0, len(values))
	for _, v := range values {
		if v == "" || v == "-" {
			continue
		}
		if _, ok := seen[v]; ok {
			continue
		}
		seen[v] = struct{}{}
		out = append(out, v)
	}
	return out
}
