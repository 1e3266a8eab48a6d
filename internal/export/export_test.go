package export

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type dirResolver string

func (d dirResolver) LocalPath(key string) (string, error) {
	if filepath.IsAbs(key) {
		return "", errors.New("absolute")
	}
	return filepath.Join(string(d), filepath.FromSlash(key)), nil
}

func TestApplyDiscounts(t *testing.T) {
	cases := []struct {
		name     string
		subtotal int64
		percents []float64
		enabled  bool
		want     int64
	}{
		{"disabled", 1_000_000, []float64{10, 50}, false, 1_000_000},
		{"sequential", 1_000_000, []float64{10, 50, 0, 0}, true, 450_000},
		{"clamped", 200_000, []float64{150, -5}, true, 0},
		{"negative ignored", 200_000, []float64{-5, 10}, true, 180_000},
		{"half away from zero", 15, []float64{10}, true, 14},
		{"rounds up at half", 5, []float64{50}, true, 3},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, ApplyDiscounts(tc.subtotal, tc.percents, tc.enabled))
		})
	}
}

func TestFinalTotalPrefersPrecomputed(t *testing.T) {
	assert.Equal(t, int64(999), FinalTotal(1_000_000, []float64{10}, true, 999))
	assert.Equal(t, int64(900_000), FinalTotal(1_000_000, []float64{10}, true, 0))
}

func TestDiscountSummary(t *testing.T) {
	assert.Equal(t, "10% + 50%", DiscountSummary([]float64{10, 50, 0, 0}))
	assert.Equal(t, "12.5% + 3.33%", DiscountSummary([]float64{12.5, 3.333, 0}))
	assert.Equal(t, "0%", DiscountSummary([]float64{0, 0}))

	disabled := OrderView{
		Lines:     []Line{{Quantity: 1, Price: 1000}},
		Discounts: [4]float64{10},
	}
	assert.Equal(t, "10%", disabled.DiscountSummary(), "stored percentages are listed when discounts are off")
	assert.Equal(t, int64(1000), disabled.Total())
}

func TestFormatRupiah(t *testing.T) {
	assert.Equal(t, "Rp 1.000.000", FormatRupiah(1_000_000))
	assert.Equal(t, "Rp 0", FormatRupiah(0))
	assert.Equal(t, "Rp 1.000.000", Money(1_000_000).String())
	assert.Equal(t, "12", Int(12).String())
}

func TestLabels(t *testing.T) {
	assert.Equal(t, "Disetujui", SubmissionLabel("approved"))
	assert.Equal(t, "Pending", SubmissionLabel(""))
	assert.Equal(t, "Ready Stock", ProductLabel("ready_stock"))
	assert.Equal(t, "On Hold", FulfillmentLabel("on_hold"))
	assert.Equal(t, "Ditolak", FulfillmentLabel("rejected"))
	assert.Equal(t, "Belum Lunas", PaymentLabel("partial"))
	assert.Equal(t, "Shipped", FulfillmentLabel("shipped"))
}

func TestLineDescription(t *testing.T) {
	l := Line{Brand: "Nano", Product: "LED 10W", Color: "Putih"}
	assert.Equal(t, "Nano – (Kategori hilang) – LED 10W – Putih", l.Description())
}

func writeFile(t *testing.T, root, key string) {
	t.Helper()
	path := filepath.Join(root, filepath.FromSlash(key))
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, []byte("x"), 0o644))
}

func TestPicturesResolveAndCap(t *testing.T) {
	root := t.TempDir()
	for _, k := range []string{"p/1.jpg", "p/2.jpg", "p/3.jpg", "p/4.jpg"} {
		writeFile(t, root, k)
	}
	a := NewAssembler(dirResolver(root))

	got := a.Pictures([]string{"/storage/p/1.jpg", "p/missing.jpg", "storage/p/2.jpg", "p/3.jpg", "p/4.jpg"})
	require.Len(t, got, 3)
	assert.Equal(t, filepath.Join(root, "p", "1.jpg"), got[0])
	assert.Equal(t, filepath.Join(root, "p", "3.jpg"), got[2])
}

func TestOrderTable(t *testing.T) {
	a := NewAssembler(dirResolver(t.TempDir()))
	created := time.Date(2025, 2, 3, 9, 30, 0, 0, time.UTC)
	view := OrderView{
		Code:             "ORD-20250203ABCD",
		CreatedAt:        created,
		UpdatedAt:        created,
		Lines: []Line{
			{Brand: "Nano", Category: "Lampu", Product: "LED", Color: "Putih", Quantity: 2, Price: 500_000},
			{Brand: "Nano", Category: "Lampu", Product: "Bulb", Color: "Kuning", Quantity: 1, Price: 200_000},
		},
		DiscountsEnabled: true,
		Discounts:        [4]float64{10, 50},
		DiscountNotes:    [4]string{"promo", "", "grosir"},
	}

	table := a.OrderTable(view)
	require.Len(t, table.Rows, 2)
	row := table.Rows[0]
	assert.Len(t, row, len(table.Headers))
	assert.Equal(t, "2025-02-03 09:30", row[2].String())
	assert.Equal(t, "Tidak Ikut Program", row[8].String())
	assert.Equal(t, "Rp 1.000.000", row[14].String())
	assert.Equal(t, "10% + 50%", row[17].String())
	assert.Equal(t, "promo + grosir", row[18].String())
	for _, r := range table.Rows {
		assert.Equal(t, "-", r[table.ImageColumn].String())
	}
	assert.False(t, table.HasImages())

	require.Len(t, table.Footer, 3)
	assert.Equal(t, "Rp 1.200.000", table.Footer[0][1].String())
	assert.Equal(t, "Rp 660.000", table.Footer[1][1].String())
	assert.Equal(t, "Rp 540.000", table.Footer[2][1].String())
}

func TestOrderListTable(t *testing.T) {
	root := t.TempDir()
	writeFile(t, root, "order-delivery-photos/a.jpg")
	a := NewAssembler(dirResolver(root))

	views := []OrderView{
		{
			Code: "ORD-1",
			Lines: []Line{
				{Brand: "A", Category: "B", Product: "C", Color: "D", Quantity: 1, Price: 1000},
				{Brand: "E", Category: "F", Product: "G", Color: "H", Quantity: 3, Price: 2000},
			},
			TotalAfterTax: 6500,
			Pictures:      []string{"order-delivery-photos/a.jpg"},
		},
		{Code: "ORD-2", Lines: []Line{{Quantity: 1, Price: 10}}},
	}
	table := a.OrderListTable(views)
	require.Len(t, table.Rows, 2)
	first := table.Rows[0]
	assert.Equal(t, "A – B – C – D\nE – F – G – H", first[11].String())
	assert.Equal(t, "4", first[12].String())
	assert.Equal(t, "Rp 1.000\nRp 2.000", first[13].String())
	assert.Equal(t, "Rp 7.000", first[14].String())
	assert.Equal(t, "Rp 6.500", first[19].String())
	assert.Len(t, table.Images[0], 1)
	assert.Equal(t, "", first[table.ImageColumn].String())
	assert.Equal(t, "-", table.Rows[1][table.ImageColumn].String())
}

func TestGaransiTable(t *testing.T) {
	a := NewAssembler(nil)
	purchase := time.Date(2025, 1, 2, 0, 0, 0, 0, time.UTC)
	view := GaransiView{
		Code:         "GAR-20250110WXYZ",
		PurchaseDate: &purchase,
		Reason:       "Mati total",
		Lines: []Line{
			{Brand: "Nano", Category: "Lampu", Product: "LED", Color: "Putih", Quantity: 1},
			{Brand: "Nano", Category: "Lampu", Product: "LED", Quantity: 2},
		},
		Status: Status{Submission: "approved", Fulfillment: "on_hold", OnHoldComment: "menunggu"},
	}
	table := a.GaransiTable(view)
	require.Len(t, table.Rows, 2)
	assert.Equal(t, TitleGaransi, table.Title)
	assert.Equal(t, "2025-01-02", table.Rows[0][12].String())
	assert.Equal(t, "-", table.Rows[0][13].String())
	assert.Equal(t, "Disetujui", table.Rows[0][16].String())
	assert.Equal(t, "Pending", table.Rows[0][17].String())
	assert.Equal(t, "On Hold", table.Rows[0][18].String())
	assert.Equal(t, "Nano – Lampu – LED – (Warna hilang)", table.Rows[1][10].String())
	assert.Equal(t, "-", table.Rows[1][table.ImageColumn].String())
}
