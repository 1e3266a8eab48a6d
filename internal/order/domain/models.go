package domain

import (
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/nanolite/internal/claim"
	"github.com/smallbiznis/nanolite/internal/claim/validation"
	"github.com/smallbiznis/nanolite/internal/workflow"
	"gorm.io/datatypes"
)

const CodePrefix = claim.PrefixOrder

const (
	PaymentTempo = "tempo"
	PaymentCash  = "cash"

	PaymentUnpaid  = "unpaid"
	PaymentPaid    = "paid"
	PaymentPartial = "partial"
)

// Order is a sales order.
type Order struct {
	ID                 snowflake.ID                        `gorm:"primaryKey" json:"id"`
	Code               string                              `gorm:"column:code;uniqueIndex;not null" json:"code"`
	CompanyID          snowflake.ID                        `gorm:"column:company_id;not null;index" json:"company_id"`
	DepartmentID       snowflake.ID                        `gorm:"column:department_id;not null;index" json:"department_id"`
	EmployeeID         snowflake.ID                        `gorm:"column:employee_id;not null;index" json:"employee_id"`
	CustomerID         snowflake.ID                        `gorm:"column:customer_id;not null" json:"customer_id"`
	CustomerCategoryID snowflake.ID                        `gorm:"column:customer_category_id;not null" json:"customer_category_id"`
	CustomerProgramID  *snowflake.ID                       `gorm:"column:customer_program_id" json:"customer_program_id"`
	Phone              string                              `gorm:"column:phone;not null" json:"phone"`
	Address            datatypes.JSONType[claim.Address]   `gorm:"column:address" json:"address"`
	Products           datatypes.JSONSlice[claim.LineItem] `gorm:"column:products" json:"products"`

	DiscountsEnabled bool    `gorm:"column:discounts_enabled;not null;default:false" json:"discounts_enabled"`
	Discount1        float64 `gorm:"column:discount_1;not null;default:0" json:"discount_1"`
	Discount2        float64 `gorm:"column:discount_2;not null;default:0" json:"discount_2"`
	Discount3        float64 `gorm:"column:discount_3;not null;default:0" json:"discount_3"`
	Discount4        float64 `gorm:"column:discount_4;not null;default:0" json:"discount_4"`
	DiscountNote1    string  `gorm:"column:discount_note_1" json:"discount_note_1"`
	DiscountNote2    string  `gorm:"column:discount_note_2" json:"discount_note_2"`
	DiscountNote3    string  `gorm:"column:discount_note_3" json:"discount_note_3"`
	DiscountNote4    string  `gorm:"column:discount_note_4" json:"discount_note_4"`

	ProgramEnabled bool   `gorm:"column:program_enabled;not null;default:false" json:"program_enabled"`
	ProgramPoints  *int64 `gorm:"column:program_points" json:"program_points"`
	RewardEnabled  bool   `gorm:"column:reward_enabled;not null;default:false" json:"reward_enabled"`
	RewardPoints   *int64 `gorm:"column:reward_points" json:"reward_points"`

	PaymentMethod   string     `gorm:"column:payment_method;not null" json:"payment_method"`
	PaymentDueUntil *time.Time `gorm:"column:payment_due_until;type:date" json:"payment_due_until"`
	PaymentStatus   string     `gorm:"column:payment_status;not null;default:unpaid" json:"payment_status"`

	TotalPrice    int64 `gorm:"column:total_price;not null;default:0" json:"total_price"`
	TotalAfterTax int64 `gorm:"column:total_after_tax;not null;default:0" json:"total_after_tax"`

	workflow.State `gorm:"embedded"`

	Images    datatypes.JSONSlice[string] `gorm:"column:images" json:"images"`
	PDFPath   *string                     `gorm:"column:pdf_path" json:"pdf_path"`
	ExcelPath *string                     `gorm:"column:excel_path" json:"excel_path"`
	CreatedAt time.Time                   `gorm:"column:created_at;not null" json:"created_at"`
	UpdatedAt time.Time                   `gorm:"column:updated_at;not null" json:"updated_at"`
}

func (Order) TableName() string { return "orders" }

func (o *Order) Discounts() [4]float64 {
	return [4]float64{o.Discount1, o.Discount2, o.Discount3, o.Discount4}
}

func (o *Order) DiscountNotes() [4]string {
	return [4]string{o.DiscountNote1, o.DiscountNote2, o.DiscountNote3, o.DiscountNote4}
}

// HasDiscount reports whether any enabled discount is non-zero.
func (o *Order) HasDiscount() bool {
	if !o.DiscountsEnabled {
		return false
	}
	for _, d := range o.Discounts() {
		if d > 0 {
			return true
		}
	}
	return false
}

// Payload is a decoded create or update body. Nil fields were absent.
type Payload struct {
	DepartmentID       *snowflake.ID    `json:"department_id"`
	EmployeeID         *snowflake.ID    `json:"employee_id"`
	CustomerID         *snowflake.ID    `json:"customer_id"`
	CustomerCategoryID *snowflake.ID    `json:"customer_category_id"`
	CustomerProgramID  *snowflake.ID    `json:"customer_program_id"`
	Phone              *string          `json:"phone" validate:"omitempty,max=50"`
	Address            *claim.Address   `json:"address"`
	Products           []claim.LineItem `json:"products" validate:"omitempty,min=1,dive"`

	DiscountsEnabled *bool    `json:"discounts_enabled"`
	Discount1        *float64 `json:"discount_1" validate:"omitempty,min=0,max=100"`
	Discount2        *float64 `json:"discount_2" validate:"omitempty,min=0,max=100"`
	Discount3        *float64 `json:"discount_3" validate:"omitempty,min=0,max=100"`
	Discount4        *float64 `json:"discount_4" validate:"omitempty,min=0,max=100"`
	DiscountNote1    *string  `json:"discount_note_1" validate:"omitempty,max=255"`
	DiscountNote2    *string  `json:"discount_note_2" validate:"omitempty,max=255"`
	DiscountNote3    *string  `json:"discount_note_3" validate:"omitempty,max=255"`
	DiscountNote4    *string  `json:"discount_note_4" validate:"omitempty,max=255"`

	ProgramEnabled *bool  `json:"program_enabled"`
	ProgramPoints  *int64 `json:"program_points" validate:"omitempty,min=0"`
	RewardEnabled  *bool  `json:"reward_enabled"`
	RewardPoints   *int64 `json:"reward_points" validate:"omitempty,min=0"`

	PaymentMethod   *string `json:"payment_method" validate:"omitempty,oneof=tempo cash"`
	PaymentDueUntil *string `json:"payment_due_until" validate:"omitempty,ymd"`
	PaymentStatus   *string `json:"payment_status" validate:"omitempty,oneof=unpaid paid partial"`
	TotalAfterTax   *int64  `json:"total_after_tax" validate:"omitempty,min=0"`

	Images         []string `json:"images" validate:"omitempty,dive,image_ref"`
	DeliveryImages []string `json:"delivery_images" validate:"omitempty,dive,image_ref"`

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
	"payment_method",
}
