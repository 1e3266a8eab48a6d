// Package claim holds the pieces shared by garansi and order records: line
// items, addresses and record codes.
package claim

import (
	"bytes"
	"encoding/json"
	"errors"
	"strconv"
	"strings"

	"github.com/bwmarrin/snowflake"
)

// ColorRef is either a positional index into a product's color list or an
// already resolved color name. Clients send both JSON numbers and strings.
type ColorRef string

func (c *ColorRef) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	if len(b) == 0 || bytes.Equal(b, []byte("null")) {
		*c = ""
		return nil
	}
	if b[0] == '"' {
		var s string
		if err := json.Unmarshal(b, &s); err != nil {
			return err
		}
		*c = ColorRef(strings.TrimSpace(s))
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(b, &n); err != nil {
		return errors.New("color must be a string or a number")
	}
	*c = ColorRef(n.String())
	return nil
}

// Index returns the positional index when the reference is numeric.
func (c ColorRef) Index() (int, bool) {
	if c == "" {
		return 0, false
	}
	i, err := strconv.Atoi(string(c))
	if err != nil {
		return 0, false
	}
	return i, true
}

// LineItem is one product row of a claim record.
type LineItem struct {
	BrandID    snowflake.ID `json:"brand_id" validate:"required"`
	CategoryID snowflake.ID `json:"category_id" validate:"required"`
	ProductID  snowflake.ID `json:"product_id" validate:"required"`
	Color      ColorRef     `json:"color,omitempty" validate:"max=100"`
	Quantity   int          `json:"quantity" validate:"required,min=1"`
	Price      *int64       `json:"price,omitempty" validate:"omitempty,min=0"`
}

// UnitPrice returns the line price or zero.
func (l LineItem) UnitPrice() int64 {
	if l.Price == nil {
		return 0
	}
	return *l.Price
}

// Subtotal is quantity times unit price.
func (l LineItem) Subtotal() int64 {
	return int64(l.Quantity) * l.UnitPrice()
}

// ColorLookup returns the color list of a product, or nil when unknown.
type ColorLookup func(productID snowflake.ID) []string

// ResolveColors replaces numeric color references with the color name at
// that position of the product's color list. Names and out of range indices
// are kept. A color list whose names are themselves numeric resolves again on
// a second pass, so call it only on items fresh from a request.
func ResolveColors(items []LineItem, colors ColorLookup) []LineItem {
	if len(items) == 0 || colors == nil {
		return items
	}
	out := make([]LineItem, len(items))
	copy(out, items)
	for i := range out {
		idx, ok := out[i].Color.Index()
		if !ok {
			continue
		}
		list := colors(out[i].ProductID)
		if idx < 0 || idx >= len(list) {
			continue
		}
		name := strings.TrimSpace(list[idx])
		if name == "" {
			continue
		}
		out[i].Color = ColorRef(name)
	}
	return out
}

// DefaultPrices fills missing unit prices from the catalog.
func DefaultPrices(items []LineItem, price func(productID snowflake.ID) (int64, bool)) []LineItem {
	if len(items) == 0 || price == nil {
		return items
	}
	out := make([]LineItem, len(items))
	copy(out, items)
	for i := range out {
		if out[i].Price != nil {
			continue
		}
		if p, ok := price(out[i].ProductID); ok {
			v := p
			out[i].Price = &v
		}
	}
	return out
}
