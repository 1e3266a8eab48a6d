package domain

import (
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/nanolite/internal/claim"
	"github.com/smallbiznis/nanolite/internal/claim/validation"
	"github.com/smallbiznis/nanolite/internal/workflow"
	"gorm.io/datatypes"
)

const CodePrefix = claim.PrefixGaransi

// Garansi is a warranty claim.
type Garansi struct {
	ID                 snowflake.ID                        `gorm:"primaryKey" json:"id"`
	Code               string                              `gorm:"column:code;uniqueIndex;not null" json:"code"`
	CompanyID          snowflake.ID                        `gorm:"column:company_id;not null;index" json:"company_id"`
	DepartmentID       snowflake.ID                        `gorm:"column:department_id;not null;index" json:"department_id"`
	EmployeeID         snowflake.ID                        `gorm:"column:employee_id;not null;index" json:"employee_id"`
	CustomerID         snowflake.ID                        `gorm:"column:customer_id;not null" json:"customer_id"`
	CustomerCategoryID snowflake.ID                        `gorm:"column:customer_category_id;not null" json:"customer_category_id"`
	Phone              string                              `gorm:"column:phone;not null" json:"phone"`
	Address            datatypes.JSONType[claim.Address]   `gorm:"column:address" json:"address"`
	Products           datatypes.JSONSlice[claim.LineItem] `gorm:"column:products" json:"products"`
	PurchaseDate       time.Time                           `gorm:"column:purchase_date;type:date" json:"purchase_date"`
	ClaimDate          time.Time                           `gorm:"column:claim_date;type:date" json:"claim_date"`
	Reason             string                              `gorm:"column:reason;not null" json:"reason"`
	Note               *string                             `gorm:"column:note" json:"note"`

	workflow.State `gorm:"embedded"`

	Images    datatypes.JSONSlice[string] `gorm:"column:images" json:"images"`
	PDFPath   *string                     `gorm:"column:pdf_path" json:"pdf_path"`
	ExcelPath *string                     `gorm:"column:excel_path" json:"excel_path"`
	CreatedAt time.Time                   `gorm:"column:created_at;not null" json:"created_at"`
	UpdatedAt time.Time                   `gorm:"column:updated_at;not null" json:"updated_at"`
}

func (Garansi) TableName() string { return "garansis" }

// Payload is a decoded create or update body. Nil fields were absent.
type Payload struct {
	DepartmentID       *snowflake.ID    `json:"department_id"`
	EmployeeID         *snowflake.ID    `json:"employee_id"`
	CustomerID         *snowflake.ID    `json:"customer_id"`
	CustomerCategoryID *snowflake.ID    `json:"customer_category_id"`
	Phone              *string          `json:"phone" validate:"omitempty,max=50"`
	Address            *claim.Address   `json:"address"`
	Products           []claim.LineItem `json:"products" validate:"omitempty,min=1,dive"`
	PurchaseDate       *string          `json:"purchase_date" validate:"omitempty,ymd"`
	ClaimDate          *string          `json:"claim_date" validate:"omitempty,ymd"`
	Reason             *string          `json:"reason" validate:"omitempty,max=2000"`
	Note               *string          `json:"note" validate:"omitempty,max=2000"`
	Images             []string         `json:"images" validate:"omitempty,dive,image_ref"`
	DeliveryImages     []string         `json:"delivery_images" validate:"omitempty,dive,image_ref"`

	validation.StatusChange `validate:"-"`
}

// RequiredFields must be present and non-blank on create.
var RequiredFields = []string{
	"department_id",
	"employee_id",
	"customer_id",
	"customer_category_id",
	"phone",
	"address",
	"products",
	"purchase_date",
	"claim_date",
	"reason",
}
