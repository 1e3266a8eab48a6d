package repository

import (
	"context"
	"strings"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/nanolite/internal/accessscope"
	"github.com/smallbiznis/nanolite/internal/garansi/domain"
	"github.com/smallbiznis/nanolite/pkg/db/option"
	"github.com/smallbiznis/nanolite/pkg/db/pagination"
	"gorm.io/gorm"
)

type repo struct{}

func Provide() domain.Repository {
	return &repo{}
}

func (r *repo) Insert(ctx context.Context, db *gorm.DB, g *domain.Garansi) error {
	return db.WithContext(ctx).Create(g).Error
}

func (r *repo) Update(ctx context.Context, db *gorm.DB, g *domain.Garansi) error {
	return db.WithContext(ctx).
		Model(g).
		Select("*").
		Omit("id", "code", "company_id", "created_at").
		Updates(g).Error
}

func (r *repo) FindByID(ctx context.Context, db *gorm.DB, companyID, id snowflake.ID, owner *accessscope.OwnerFilter) (*domain.Garansi, error) {
	var rows []domain.Garansi
	stmt := db.WithContext(ctx).
		Model(&domain.Garansi{}).
		Where("company_id = ? AND id = ?", companyID, id)
	if err := owner.Apply(stmt).Limit(1).Find(&rows).Error; err != nil {
		return nil, err
	}
	if len(rows) == 0 {
		return nil, nil
	}
	return &rows[0], nil
}

func (r *repo) List(ctx context.Context, db *gorm.DB, companyID snowflake.ID, filter domain.ListFilter, sort domain.Sort, page pagination.Page) ([]domain.Garansi, int64, error) {
	query := func() *gorm.DB {
		stmt := db.WithContext(ctx).
			Model(&domain.Garansi{}).
			Where("company_id = ?", companyID)
		return applyFilter(stmt, filter)
	}

	var total int64
	if err := query().Count(&total).Error; err != nil {
		return nil, 0, err
	}

	var items []domain.Garansi
	stmt := query()
	for _, opt := range []option.QueryOption{
		option.WithOrder(sort.Column, sort.Desc),
		option.WithOrder("id", sort.Desc),
		option.WithOffset(page.Offset()),
		option.WithLimit(page.Limit()),
	} {
		stmt = opt.Apply(stmt)
	}
	if err := stmt.Find(&items).Error; err != nil {
		return nil, 0, err
	}
	return items, total, nil
}

func (r *repo) UpdateArtifacts(ctx context.Context, db *gorm.DB, id snowflake.ID, pdfPath, excelPath *string) error {
	return db.WithContext(ctx).Exec(
		`UPDATE garansis SET pdf_path = ?, excel_path = ? WHERE id = ?`,
		pdfPath,
		excelPath,
		id,
	).Error
}

func (r *repo) MissingArtifacts(ctx context.Context, db *gorm.DB, limit int) ([]domain.Garansi, error) {
	var items []domain.Garansi
	err := db.WithContext(ctx).
		Model(&domain.Garansi{}).
		Where("pdf_path IS NULL OR excel_path IS NULL").
		Order("updated_at ASC, id ASC").
		Limit(limit).
		Find(&items).Error
	if err != nil {
		return nil, err
	}
	return items, nil
}

func applyFilter(stmt *gorm.DB, f domain.ListFilter) *gorm.DB {
	stmt = f.Owner.Apply(stmt)

	for column, value := range map[string]string{
		"code":   f.Code,
		"phone":  f.Phone,
		"reason": f.Reason,
	} {
		if v := strings.TrimSpace(value); v != "" {
			stmt = stmt.Where("LOWER("+column+") LIKE ?", "%"+strings.ToLower(v)+"%")
		}
	}

	for column, value := range map[string]*snowflake.ID{
		"department_id":        f.DepartmentID,
		"employee_id":          f.EmployeeID,
		"customer_id":          f.CustomerID,
		"customer_category_id": f.CustomerCategoryID,
	} {
		if value != nil {
			stmt = stmt.Where(column+" = ?", *value)
		}
	}

	for column, value := range map[string]string{
		"submission_status":  f.SubmissionStatus,
		"product_status":     f.ProductStatus,
		"fulfillment_status": f.FulfillmentStatus,
	} {
		if v := strings.TrimSpace(value); v != "" {
			stmt = stmt.Where(column+" = ?", v)
		}
	}

	if f.PurchaseDateFrom != nil {
		stmt = stmt.Where("purchase_date >= ?", *f.PurchaseDateFrom)
	}
	if f.PurchaseDateTo != nil {
		stmt = stmt.Where("purchase_date <= ?", *f.PurchaseDateTo)
	}
	if f.ClaimDateFrom != nil {
		stmt = stmt.Where("claim_date >= ?", *f.ClaimDateFrom)
	}
	if f.ClaimDateTo != nil {
		stmt = stmt.Where("claim_date <= ?", *f.ClaimDateTo)
	}
	return stmt
}
