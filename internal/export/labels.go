package export

import (
	"strings"
	"unicode"
	"unicode/utf8"
)

var submissionLabels = map[string]string{
	"pending":  "Pending",
	"approved": "Disetujui",
	"rejected": "Ditolak",
}

var productLabels = map[string]string{
	"pending":     "Pending",
	"ready_stock": "Ready Stock",
	"sold_out":    "Sold Out",
	"rejected":    "Ditolak",
}

var fulfillmentLabels = map[string]string{
	"pending":    "Pending",
	"confirmed":  "Confirmed",
	"processing": "Processing",
	"on_hold":    "On Hold",
	"delivered":  "Delivered",
	"completed":  "Completed",
	"cancelled":  "Cancelled",
	"rejected":   "Ditolak",
}

var paymentLabels = map[string]string{
	"unpaid":  "Belum Bayar",
	"paid":    "Sudah Bayar",
	"partial": "Belum Lunas",
}

var paymentMethodLabels = map[string]string{
	"tempo": "Tempo",
	"cash":  "Cash",
}

func SubmissionLabel(v string) string    { return label(submissionLabels, v) }
func ProductLabel(v string) string       { return label(productLabels, v) }
func FulfillmentLabel(v string) string   { return label(fulfillmentLabels, v) }
func PaymentLabel(v string) string       { return label(paymentLabels, v) }
func PaymentMethodLabel(v string) string { return label(paymentMethodLabels, v) }

func label(table map[string]string, v string) string {
	v = strings.TrimSpace(v)
	if v == "" {
		return "Pending"
	}
	if l, ok := table[v]; ok {
		return l
	}
	return ucfirst(v)
}

func ucfirst(s string) string {
	r, size := utf8.DecodeRuneInString(s)
	if r == utf8.RuneError {
		return s
	}
	return string(unicode.ToUpper(r)) + s[size:]
}
