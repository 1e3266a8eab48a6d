package domain

import (
	"context"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/nanolite/internal/accessscope"
	"github.com/smallbiznis/nanolite/pkg/db/pagination"
	"gorm.io/gorm"
)

// ListFilter narrows a garansi listing. Text filters match partially.
type ListFilter struct {
	Code   string
	Phone  string
	Reason string

	DepartmentID       *snowflake.ID
	EmployeeID         *snowflake.ID
	CustomerID         *snowflake.ID
	CustomerCategoryID *snowflake.ID

	SubmissionStatus  string
	ProductStatus     string
	FulfillmentStatus string

	PurchaseDateFrom *time.Time
	PurchaseDateTo   *time.Time
	ClaimDateFrom    *time.Time
	ClaimDateTo      *time.Time

	Owner *accessscope.OwnerFilter
}

// Sort is a validated order clause.
type Sort struct {
	Column string
	Desc   bool
}

type Repository interface {
	Insert(ctx context.Context, db *gorm.DB, g *Garansi) error
	Update(ctx context.Context, db *gorm.DB, g *Garansi) error
	FindByID(ctx context.Context, db *gorm.DB, companyID, id snowflake.ID, owner *accessscope.OwnerFilter) (*Garansi, error)
	List(ctx context.Context, db *gorm.DB, companyID snowflake.ID, filter ListFilter, sort Sort, page pagination.Page) ([]Garansi, int64, error)
	UpdateArtifacts(ctx context.Context, db *gorm.DB, id snowflake.ID, pdfPath, excelPath *string) error
	MissingArtifacts(ctx context.Context, db *gorm.DB, limit int) ([]Garansi, error)
}
