// Package view turns stored claim records into API resources and export rows.
package view

import (
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/nanolite/internal/claim"
	"github.com/smallbiznis/nanolite/internal/export"
	"github.com/smallbiznis/nanolite/internal/reference"
	refdomain "github.com/smallbiznis/nanolite/internal/reference/domain"
	"github.com/smallbiznis/nanolite/internal/workflow"
)

const (
	DateLayout     = "02/01/2006"
	DateTimeLayout = "02/01/2006 15:04"
)

// URLer maps stored keys to public URLs.
type URLer interface {
	PublicURL(key string) string
}

// Line is a line item with resolved names.
type Line struct {
	BrandID      string `json:"brand_id"`
	BrandName    string `json:"brand_name"`
	CategoryID   string `json:"category_id"`
	CategoryName string `json:"category_name"`
	ProductID    string `json:"product_id"`
	ProductName  string `json:"product_name"`
	Color        string `json:"color"`
	Quantity     int    `json:"quantity"`
	Price        *int64 `json:"price,omitempty"`
	Subtotal     *int64 `json:"subtotal,omitempty"`
	Description  string `json:"description"`
}

// Lines resolves items. Prices are only reported when priced is set.
func Lines(items []claim.LineItem, l *reference.Lookup, priced bool) []Line {
	out := make([]Line, 0, len(items))
	for _, item := range items {
		line := Line{
			BrandID:      item.BrandID.String(),
			BrandName:    l.Name(refdomain.TableBrands, item.BrandID),
			CategoryID:   item.CategoryID.String(),
			CategoryName: l.Name(refdomain.TableCategories, item.CategoryID),
			ProductID:    item.ProductID.String(),
			ProductName:  l.Name(refdomain.TableProducts, item.ProductID),
			Color:        string(item.Color),
			Quantity:     item.Quantity,
		}
		if priced {
			price := item.UnitPrice()
			subtotal := item.Subtotal()
			line.Price = &price
			line.Subtotal = &subtotal
		}
		line.Description = exportLine(item, l).Description()
		out = append(out, line)
	}
	return out
}

// ExportLines resolves items for the export assembler.
func ExportLines(items []claim.LineItem, l *reference.Lookup) []export.Line {
	out := make([]export.Line, 0, len(items))
	for _, item := range items {
		out = append(out, exportLine(item, l))
	}
	return out
}

func exportLine(item claim.LineItem, l *reference.Lookup) export.Line {
	return export.Line{
		Brand:    l.Name(refdomain.TableBrands, item.BrandID),
		Category: l.Name(refdomain.TableCategories, item.CategoryID),
		Product:  l.Name(refdomain.TableProducts, item.ProductID),
		Color:    string(item.Color),
		Quantity: item.Quantity,
		Price:    item.UnitPrice(),
	}
}

// Status is the workflow part of a resource.
type Status struct {
	SubmissionStatus       string `json:"submission_status"`
	SubmissionStatusLabel  string `json:"submission_status_label"`
	ProductStatus          string `json:"product_status"`
	ProductStatusLabel     string `json:"product_status_label"`
	FulfillmentStatus      string `json:"fulfillment_status"`
	FulfillmentStatusLabel string `json:"fulfillment_status_label"`

	RejectionComment *string `json:"rejection_comment"`
	RejectedBy       *string `json:"rejected_by"`
	SoldOutComment   *string `json:"sold_out_comment"`
	SoldOutBy        *string `json:"sold_out_by"`
	OnHoldComment    *string `json:"on_hold_comment"`
	OnHoldUntil      string  `json:"on_hold_until"`
	OnHoldBy         *string `json:"on_hold_by"`
	CancelledComment *string `json:"cancelled_comment"`
	CancelledBy      *string `json:"cancelled_by"`

	DeliveryImages []string `json:"delivery_images"`
	DeliveredAt    string   `json:"delivered_at"`
	DeliveredBy    *string  `json:"delivered_by"`
}

func NewStatus(s workflow.State, urls URLer) Status {
	return Status{
		SubmissionStatus:       s.Status(workflow.AxisSubmission),
		SubmissionStatusLabel:  export.SubmissionLabel(s.SubmissionStatus),
		ProductStatus:          s.Status(workflow.AxisProduct),
		ProductStatusLabel:     export.ProductLabel(s.ProductStatus),
		FulfillmentStatus:      s.Status(workflow.AxisFulfillment),
		FulfillmentStatusLabel: export.FulfillmentLabel(s.FulfillmentStatus),
		RejectionComment:       s.RejectionComment,
		RejectedBy:             OptionalID(s.RejectedBy),
		SoldOutComment:         s.SoldOutComment,
		SoldOutBy:              OptionalID(s.SoldOutBy),
		OnHoldComment:          s.OnHoldComment,
		OnHoldUntil:            DateTime(s.OnHoldUntil),
		OnHoldBy:               OptionalID(s.OnHoldBy),
		CancelledComment:       s.CancelledComment,
		CancelledBy:            OptionalID(s.CancelledBy),
		DeliveryImages:         URLs(urls, s.DeliveryImages),
		DeliveredAt:            DateTime(s.DeliveredAt),
		DeliveredBy:            OptionalID(s.DeliveredBy),
	}
}

// ExportStatus is the workflow summary used by artifacts.
func ExportStatus(s workflow.State) export.Status {
	st := export.Status{
		Submission:  s.SubmissionStatus,
		Product:     s.ProductStatus,
		Fulfillment: s.FulfillmentStatus,
		OnHoldUntil: s.OnHoldUntil,
	}
	if s.OnHoldComment != nil {
		st.OnHoldComment = *s.OnHoldComment
	}
	return st
}

func URLs(urls URLer, keys []string) []string {
	out := make([]string, 0, len(keys))
	for _, k := range keys {
		if k == "" {
			continue
		}
		out = append(out, urls.PublicURL(k))
	}
	return out
}

func OptionalURL(urls URLer, key *string) *string {
	if key == nil || *key == "" {
		return nil
	}
	u := urls.PublicURL(*key)
	return &u
}

// Date formats t as dd/mm/yyyy, or "" for nil and zero values.
func Date(t *time.Time) string {
	if t == nil || t.IsZero() {
		return ""
	}
	return t.Format(DateLayout)
}

func DateTime(t *time.Time) string {
	if t == nil || t.IsZero() {
		return ""
	}
	return t.Format(DateTimeLayout)
}

func OptionalID(id *snowflake.ID) *string {
	if id == nil || *id == 0 {
		return nil
	}
	s := id.String()
	return &s
}

// Deref returns the value of s or "".
func Deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
