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
	"id":            "id",
	"code":          "code",
	"purchase_date": "purchase_date",
	"claim_date":    "claim_date",
	"created_at":    "created_at",
	"updated_at":    "updated_at",
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
	Items []Garansi
	Meta  pagination.PageMeta
}

// Resource is the API shape of a garansi.
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
	Phone                string              `json:"phone"`
	Address              string              `json:"address"`
	AddressParts         []claim.AddressPart `json:"address_parts,omitempty"`
	Products             []view.Line         `json:"products"`
	PurchaseDate         string              `json:"purchase_date"`
	ClaimDate            string              `json:"claim_date"`
	Reason               string              `json:"reason"`
	Note                 *string             `json:"note"`
	Images               []string            `json:"images"`

	view.Status

	PDFURL    *string `json:"pdf_url"`
	ExcelURL  *string `json:"excel_url"`
	CreatedAt string  `json:"created_at"`
	UpdatedAt string  `json:"updated_at"`
}

type Service interface {
	Create(ctx context.Context, fields accessscope.Fields) (*Garansi, error)
	Update(ctx context.Context, id snowflake.ID, fields accessscope.Fields) (*Garansi, error)
	Get(ctx context.Context, id snowflake.ID) (*Garansi, error)
	List(ctx context.Context, req ListRequest) (ListResponse, error)
	Present(ctx context.Context, records []Garansi) ([]Resource, error)
	// Artifact returns the stored key of the pdf or excel artifact,
	// rendering it first when missing.
	Artifact(ctx context.Context, id snowflake.ID, kind string) (string, error)
	// Backfill re-renders up to limit records without artifacts and
	// returns how many now have both.
	Backfill(ctx context.Context, limit int) (int, error)
}
