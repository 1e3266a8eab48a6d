package export

import (
	"math"
	"strconv"
	"strings"
)

// ClampPercent keeps p inside [0, 100].
func ClampPercent(p float64) float64 {
	if math.IsNaN(p) || p < 0 {
		return 0
	}
	if p > 100 {
		return 100
	}
	return p
}

// ApplyDiscounts applies the percentages one after another and rounds half
// away from zero.
func ApplyDiscounts(subtotal int64, percents []float64, enabled bool) int64 {
	if !enabled {
		return subtotal
	}
	total := float64(subtotal)
	for _, p := range percents {
		total *= 1 - ClampPercent(p)/100
	}
	return int64(math.Round(total))
}

// FinalTotal is the discounted subtotal unless a precomputed total is set.
func FinalTotal(subtotal int64, percents []float64, enabled bool, precomputed int64) int64 {
	if precomputed != 0 {
		return precomputed
	}
	return ApplyDiscounts(subtotal, percents, enabled)
}

// DiscountSummary joins the non-zero percentages, e.g. "10% + 5.5%". The
// stored percentages are listed whether or not discounts are switched on.
func DiscountSummary(percents []float64) string {
	parts := make([]string, 0, len(percents))
	for _, p := range percents {
		p = ClampPercent(p)
		if p == 0 {
			continue
		}
		rounded := math.Round(p*100) / 100
		parts = append(parts, strconv.FormatFloat(rounded, 'f', -1, 64)+"%")
	}
	if len(parts) == 0 {
		return "0%"
	}
	return strings.Join(parts, " + ")
}
