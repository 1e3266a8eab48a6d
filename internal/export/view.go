package export

import (
	"strings"
	"time"
)

// Line is a resolved line item.
type Line struct {
	Brand    string
	Category string
	Product  string
	Color    string
	Quantity int
	Price    int64
}

// Description renders "brand – category – product – color" with
// placeholders for missing names.
func (l Line) Description() string {
	return strings.Join([]string{
		orPlaceholder(l.Brand, "(Brand hilang)"),
		orPlaceholder(l.Category, "(Kategori hilang)"),
		orPlaceholder(l.Product, "(Produk hilang)"),
		orPlaceholder(l.Color, "(Warna hilang)"),
	}, " – ")
}

func (l Line) Subtotal() int64 {
	return int64(l.Quantity) * l.Price
}

// Status is the workflow part of a view.
type Status struct {
	Submission    string
	Product       string
	Fulfillment   string
	OnHoldUntil   *time.Time
	OnHoldComment string
}

// GaransiView is a garansi record with every reference resolved.
type GaransiView struct {
	Code             string
	CreatedAt        time.Time
	UpdatedAt        time.Time
	Company          string
	Department       string
	Employee         string
	Customer         string
	CustomerCategory string
	Phone            string
	Address          string
	PurchaseDate     *time.Time
	ClaimDate        *time.Time
	Reason           string
	Note             string
	Lines            []Line
	Status           Status
	// Pictures are stored keys of the delivery proof.
	Pictures []string
}

// OrderView is an order record with every reference resolved.
type OrderView struct {
	Code             string
	CreatedAt        time.Time
	UpdatedAt        time.Time
	Company          string
	Department       string
	Employee         string
	Customer         string
	CustomerCategory string
	Program          string
	Phone            string
	Address          string
	Lines            []Line

	ProgramPoints    *int64
	RewardPoints     *int64
	DiscountsEnabled bool
	Discounts        [4]float64
	DiscountNotes    [4]string
	TotalAfterTax    int64

	PaymentMethod   string
	PaymentDueUntil *time.Time
	PaymentStatus   string

	Status   Status
	Pictures []string
}

func (v OrderView) Subtotal() int64 {
	var total int64
	for _, l := range v.Lines {
		total += l.Subtotal()
	}
	return total
}

func (v OrderView) Total() int64 {
	return FinalTotal(v.Subtotal(), v.Discounts[:], v.DiscountsEnabled, v.TotalAfterTax)
}

// DiscountAmount is the part of the subtotal removed by discounts.
func (v OrderView) DiscountAmount() int64 {
	d := v.Subtotal() - ApplyDiscounts(v.Subtotal(), v.Discounts[:], v.DiscountsEnabled)
	if d < 0 {
		return 0
	}
	return d
}

func (v OrderView) DiscountSummary() string {
	return DiscountSummary(v.Discounts[:])
}

// DiscountNote joins the non-empty explanations with " + ".
func (v OrderView) DiscountNote() string {
	parts := make([]string, 0, len(v.DiscountNotes))
	for _, n := range v.DiscountNotes {
		if n = strings.TrimSpace(n); n != "" {
			parts = append(parts, n)
		}
	}
	return strings.Join(parts, " + ")
}

func orPlaceholder(s, placeholder string) string {
	if strings.TrimSpace(s) == "" {
		return placeholder
	}
	return s
}

func dash(s string) string {
	if strings.TrimSpace(s) == "" {
		return "-"
	}
	return s
}

func formatDateTime(t time.Time) string {
	if t.IsZero() {
		return "-"
	}
	return t.Format("2006-01-02 15:04")
}

func formatDate(t *time.Time) string {
	if t == nil || t.IsZero() {
		return "-"
	}
	return t.Format("2006-01-02")
}

func formatPoints(p *int64) string {
	if p == nil {
		return "-"
	}
	return Int(*p).String()
}
