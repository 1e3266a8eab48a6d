package domain

import (
	"context"
	"errors"
	"strings"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/nanolite/internal/accessscope"
	"github.com/smallbiznis/nanolite/internal/claim"
	"github.com/smallbiznis/nanolite/internal/claim/view"
	"github.com/smallbiznis/nanolite/pkg/db/pagination"
)

var (
	ErrNotFound            = errors.New("not_found")
	ErrInvalidID           = errors.New("invalid_id")
	ErrInvalidSort         = errors.New("invalid_sort")
	ErrCodeConflict        = errors.New("code_conflict")
	ErrArtifactUnavailable = errors.New("artifact_unavailable")
	ErrUnknownArtifactKind = errors.New("unknown_artifact_kind")
)

var sortColumns = map[string]string{
	"id":          "id",
	"code":        "code",
	"total_price": "total_price",
	"created_at":  "created_at",
	"updated_at":  "updated_at",
}

// ParseSort reads "column" or "-column". Empty means newest first.
func ParseSort(raw string) (Sort, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return Sort{Column: "created_at", Desc: true}, nil
	}
	desc := strings.HasPrefix(raw, "-")
	column, ok := sortColumns[strings.TrimPrefix(raw, "-")]
	if !ok {
		return Sort{}, ErrInvalidSort
	}
	return Sort{Column: column, Desc: desc}, nil
}

type ListRequest struct {
	Filter ListFilter
	Sort   string
	Page   pagination.Page
}

type ListResponse struct {
	Items []Order
	Meta  pagination.PageMeta
}

// Resource is the API shape of an order.
type Resource struct {
	ID                   string              `json:"id"`
	Code                 string              `json:"code"`
	CompanyID            string              `json:"company_id"`
	DepartmentID         string              `json:"department_id"`
	DepartmentName       string              `json:"department_name"`
	EmployeeID           string              `json:"employee_id"`
	EmployeeName         string              `json:"employee_name"`
	CustomerID           string              `json:"customer_id"`
	CustomerName         string              `json:"customer_name"`
	CustomerCategoryID   string              `json:"customer_category_id"`
	CustomerCategoryName string              `json:"customer_category_name"`
	CustomerProgramID    *string             `json:"customer_program_id"`
	CustomerProgramName  string              `json:"customer_program_name"`
	Phone                string              `json:"phone"`
	Address              string              `json:"address"`
	AddressParts         []claim.AddressPart `json:"address_parts,omitempty"`
	Products             []view.Line         `json:"products"`

	DiscountsEnabled bool       `json:"discounts_enabled"`
	Discounts        [4]float64 `json:"discounts"`
	DiscountNotes    [4]string  `json:"discount_notes"`
	DiscountSummary  string     `json:"discount_summary"`
	ProgramEnabled   bool       `json:"program_enabled"`
	ProgramPoints    *int64     `json:"program_points"`
	RewardEnabled    bool       `json:"reward_enabled"`
	RewardPoints     *int64     `json:"reward_points"`

	PaymentMethod      string `json:"payment_method"`
	PaymentMethodLabel string `json:"payment_method_label"`
	PaymentDueUntil    string `json:"payment_due_until"`
	PaymentStatus      string `json:"payment_status"`
	PaymentStatusLabel string `json:"payment_status_label"`

	Subtotal      int64 `json:"subtotal"`
	TotalPrice    int64 `json:"total_price"`
	TotalAfterTax int64 `json:"total_after_tax"`

	Images []string `json:"images"`
	view.Status

	PDFURL    *string `json:"pdf_url"`
	ExcelURL  *string `json:"excel_url"`
	CreatedAt string  `json:"created_at"`
	UpdatedAt string  `json:"updated_at"`
}

type Service interface {
	Create(ctx context.Context, fields accessscope.Fields) (*Order, error)
	Update(ctx context.Context, id snowflake.ID, fields accessscope.Fields) (*Order, error)
	Get(ctx context.Context, id snowflake.ID) (*Order, error)
	List(ctx context.Context, req ListRequest) (ListResponse, error)
	Present(ctx context.Context, records []Order) ([]Resource, error)
	// Export renders every order matching filter into one spreadsheet.
	Export(ctx context.Context, filter ListFilter) ([]byte, error)
	// Artifact returns the stored key of the pdf or excel artifact,
	// rendering it first when missing.
	Artifact(ctx context.Context, id snowflake.ID, kind string) (string, error)
	// Backfill re-renders up to limit orders without artifacts and returns
	// how many now have both.
	Backfill(ctx context.Context, limit int) (int, error)
}
