package domain

import (
	"context"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/nanolite/internal/accessscope"
	"github.com/smallbiznis/nanolite/pkg/db/pagination"
	"gorm.io/gorm"
)

// ListFilter narrows an order listing or export.
type ListFilter struct {
	Code  string
	Phone string

	DepartmentID       *snowflake.ID
	EmployeeID         *snowflake.ID
	CustomerID         *snowflake.ID
	CustomerCategoryID *snowflake.ID
	CustomerProgramID  *snowflake.ID

	PaymentMethod     string
	PaymentStatus     string
	SubmissionStatus  string
	ProductStatus     string
	FulfillmentStatus string

	HasDiscount      *bool
	HasProgramPoints *bool
	HasRewardPoints  *bool

	// Line item filters match when any product row carries the id. They
	// are applied after loading since products are stored as JSON.
	BrandID    *snowflake.ID
	CategoryID *snowflake.ID
	ProductID  *snowflake.ID

	Owner *accessscope.OwnerFilter
}

// MatchesItems reports whether o passes the line item filters.
func (f ListFilter) MatchesItems(o *Order) bool {
	match := func(id *snowflake.ID, pick func(i int) snowflake.ID) bool {
		if id == nil {
			return true
		}
		for i := range o.Products {
			if pick(i) == *id {
				return true
			}
		}
		return false
	}
	return match(f.BrandID, func(i int) snowflake.ID { return o.Products[i].BrandID }) &&
		match(f.CategoryID, func(i int) snowflake.ID { return o.Products[i].CategoryID }) &&
		match(f.ProductID, func(i int) snowflake.ID { return o.Products[i].ProductID })
}

// Sort is a validated order clause.
type Sort struct {
	Column string
	Desc   bool
}

type Repository interface {
	Insert(ctx context.Context, db *gorm.DB, o *Order) error
	Update(ctx context.Context, db *gorm.DB, o *Order) error
	FindByID(ctx context.Context, db *gorm.DB, companyID, id snowflake.ID, owner *accessscope.OwnerFilter) (*Order, error)
	List(ctx context.Context, db *gorm.DB, companyID snowflake.ID, filter ListFilter, sort Sort, page pagination.Page) ([]Order, int64, error)
	// ListForExport returns every matching order, oldest first.
	ListForExport(ctx context.Context, db *gorm.DB, companyID snowflake.ID, filter ListFilter) ([]Order, error)
	UpdateArtifacts(ctx context.Context, db *gorm.DB, id snowflake.ID, pdfPath, excelPath *string) error
	MissingArtifacts(ctx context.Context, db *gorm.DB, limit int) ([]Order, error)
}
