package repository

import (
	"context"
	"strings"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/nanolite/internal/accessscope"
	"github.com/smallbiznis/nanolite/internal/order/domain"
	"github.com/smallbiznis/nanolite/pkg/db/option"
	"github.com/smallbiznis/nanolite/pkg/db/pagination"
	"gorm.io/gorm"
)

type repo struct{}

func Provide() domain.Repository {
	return &repo{}
}

func (r *repo) Insert(ctx context.Context, db *gorm.DB, o *domain.Order) error {
	return db.WithContext(ctx).Create(o).Error
}

func (r *repo) Update(ctx context.Context, db *gorm.DB, o *domain.Order) error {
	return db.WithContext(ctx).
		Model(o).
		Select("*").
		Omit("id", "code", "company_id", "created_at").
		Updates(o).Error
}

func (r *repo) FindByID(ctx context.Context, db *gorm.DB, companyID, id snowflake.ID, owner *accessscope.OwnerFilter) (*domain.Order, error) {
	var rows []domain.Order
	stmt := db.WithContext(ctx).
		Model(&domain.Order{}).
		Where("company_id = ? AND id = ?", companyID, id)
	if err := owner.Apply(stmt).Limit(1).Find(&rows).Error; err != nil {
		return nil, err
	}
	if len(rows) == 0 {
		return nil, nil
	}
	return &rows[0], nil
}

func (r *repo) List(ctx context.Context, db *gorm.DB, companyID snowflake.ID, filter domain.ListFilter, sort domain.Sort, page pagination.Page) ([]domain.Order, int64, error) {
	query := func() *gorm.DB {
		stmt := db.WithContext(ctx).
			Model(&domain.Order{}).
			Where("company_id = ?", companyID)
		return applyFilter(stmt, filter)
	}

	var total int64
	if err := query().Count(&total).Error; err != nil {
		return nil, 0, err
	}

	var items []domain.Order
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

func (r *repo) ListForExport(ctx context.Context, db *gorm.DB, companyID snowflake.ID, filter domain.ListFilter) ([]domain.Order, error) {
	stmt := db.WithContext(ctx).
		Model(&domain.Order{}).
		Where("company_id = ?", companyID)
	stmt = applyFilter(stmt, filter)

	var rows []domain.Order
	if err := stmt.Order("created_at ASC").Order("id ASC").Find(&rows).Error; err != nil {
		return nil, err
	}

	items := rows[:0]
	for i := range rows {
		if filter.MatchesItems(&rows[i]) {
			items = append(items, rows[i])
		}
	}
	return items, nil
}

func (r *repo) UpdateArtifacts(ctx context.Context, db *gorm.DB, id snowflake.ID, pdfPath, excelPath *string) error {
	return db.WithContext(ctx).Exec(
		`UPDATE orders SET pdf_path = ?, excel_path = ? WHERE id = ?`,
		pdfPath,
		excelPath,
		id,
	).Error
}

func (r *repo) MissingArtifacts(ctx context.Context, db *gorm.DB, limit int) ([]domain.Order, error) {
	var items []domain.Order
	err := db.WithContext(ctx).
		Model(&domain.Order{}).
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
		"code":  f.Code,
		"phone": f.Phone,
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
		"customer_program_id":  f.CustomerProgramID,
	} {
		if value != nil {
			stmt = stmt.Where(column+" = ?", *value)
		}
	}

	for column, value := range map[string]string{
		"payment_method":     f.PaymentMethod,
		"payment_status":     f.PaymentStatus,
		"submission_status":  f.SubmissionStatus,
		"product_status":     f.ProductStatus,
		"fulfillment_status": f.FulfillmentStatus,
	} {
		if v := strings.TrimSpace(value); v != "" {
			stmt = stmt.Where(column+" = ?", v)
		}
	}

	for column, value := range map[string]*bool{
		"discounts_enabled": f.HasDiscount,
		"program_enabled":   f.HasProgramPoints,
		"reward_enabled":    f.HasRewardPoints,
	} {
		if value != nil {
			stmt = stmt.Where(column+" = ?", *value)
		}
	}
	return stmt
}
