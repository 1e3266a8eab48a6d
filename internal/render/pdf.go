package render

import (
	"fmt"
	"strings"
	"time"

	"github.com/johnfercher/maroto/v2"
	"github.com/johnfercher/maroto/v2/pkg/components/col"
	"github.com/johnfercher/maroto/v2/pkg/components/image"
	"github.com/johnfercher/maroto/v2/pkg/components/text"
	"github.com/johnfercher/maroto/v2/pkg/config"
	"github.com/johnfercher/maroto/v2/pkg/consts/align"
	"github.com/johnfercher/maroto/v2/pkg/consts/extension"
	"github.com/johnfercher/maroto/v2/pkg/consts/fontstyle"
	"github.com/johnfercher/maroto/v2/pkg/consts/orientation"
	"github.com/johnfercher/maroto/v2/pkg/core"
	"github.com/johnfercher/maroto/v2/pkg/props"
	"github.com/smallbiznis/nanolite/internal/export"
	"go.uber.org/zap"
)

var headerBackground = &props.Color{Red: 240, Green: 240, Blue: 240}

func newDocument() core.Maroto {
	cfg := config.NewBuilder().
		WithOrientation(orientation.Horizontal).
		WithPageNumber(props.PageNumber{
			Pattern: "Halaman {current} dari {total}",
			Place:   props.RightBottom,
		}).
		Build()
	return maroto.New(cfg)
}

func (r *DocumentRenderer) garansiPDF(v export.GaransiView) ([]byte, error) {
	m := newDocument()

	title(m, "GARANSI", v.Code)
	details(m, [][2]string{
		{"Tanggal Dibuat", formatDateTime(v.CreatedAt)},
		{"Department", v.Department},
		{"Karyawan", v.Employee},
		{"Customer", v.Customer},
		{"Kategori Customer", v.CustomerCategory},
		{"Phone", v.Phone},
		{"Alamat", v.Address},
		{"Tanggal Pembelian", formatDate(v.PurchaseDate)},
		{"Tanggal Klaim", formatDate(v.ClaimDate)},
		{"Alasan", v.Reason},
		{"Catatan", v.Note},
	})
	statusBlock(m, v.Status, "Status Garansi")

	m.AddRow(8,
		text.NewCol(1, "No.", headerText()),
		text.NewCol(9, "Item Description", headerText()),
		text.NewCol(2, "Pcs", headerTextRight()),
	).WithStyle(&props.Cell{BackgroundColor: headerBackground})
	for i, line := range v.Lines {
		m.AddRow(7,
			text.NewCol(1, fmt.Sprintf("%d", i+1), bodyText()),
			text.NewCol(9, line.Description(), bodyText()),
			text.NewCol(2, fmt.Sprintf("%d", line.Quantity), bodyTextRight()),
		)
	}

	r.pictures(m, v.Pictures)
	return generate(m)
}

func (r *DocumentRenderer) orderPDF(v export.OrderView) ([]byte, error) {
	m := newDocument()

	title(m, "SALES ORDER", v.Code)
	program := v.Program
	if strings.TrimSpace(program) == "" {
		program = "Tidak Ikut Program"
	}
	details(m, [][2]string{
		{"Tanggal Dibuat", formatDateTime(v.CreatedAt)},
		{"Department", v.Department},
		{"Karyawan", v.Employee},
		{"Customer", v.Customer},
		{"Kategori Customer", v.CustomerCategory},
		{"Customer Program", program},
		{"Phone", v.Phone},
		{"Alamat", v.Address},
		{"Metode Pembayaran", export.PaymentMethodLabel(v.PaymentMethod)},
		{"Jatuh Tempo", formatDate(v.PaymentDueUntil)},
		{"Status Pembayaran", export.PaymentLabel(v.PaymentStatus)},
	})
	statusBlock(m, v.Status, "Status Order")

	m.AddRow(8,
		text.NewCol(1, "No.", headerText()),
		text.NewCol(6, "Item Description", headerText()),
		text.NewCol(1, "Pcs", headerTextRight()),
		text.NewCol(2, "Unit Price", headerTextRight()),
		text.NewCol(2, "Total Awal", headerTextRight()),
	).WithStyle(&props.Cell{BackgroundColor: headerBackground})
	for i, line := range v.Lines {
		m.AddRow(7,
			text.NewCol(1, fmt.Sprintf("%d", i+1), bodyText()),
			text.NewCol(6, line.Description(), bodyText()),
			text.NewCol(1, fmt.Sprintf("%d", line.Quantity), bodyTextRight()),
			text.NewCol(2, export.FormatRupiah(line.Price), bodyTextRight()),
			text.NewCol(2, export.FormatRupiah(line.Subtotal()), bodyTextRight()),
		)
	}

	discount := "-"
	if amount := v.DiscountAmount(); amount > 0 {
		discount = export.FormatRupiah(amount)
	}
	totals := [][2]string{
		{"Disc%", v.DiscountSummary()},
		{"Penjelasan Diskon", dash(v.DiscountNote())},
		{"Sub Total", export.FormatRupiah(v.Subtotal())},
		{"Discount", discount},
		{"Total Akhir", export.FormatRupiah(v.Total())},
	}
	if v.ProgramPoints != nil {
		totals = append(totals, [2]string{"Program Point", fmt.Sprintf("%d", *v.ProgramPoints)})
	}
	if v.RewardPoints != nil {
		totals = append(totals, [2]string{"Reward Point", fmt.Sprintf("%d", *v.RewardPoints)})
	}
	for _, t := range totals {
		m.AddRow(6,
			col.New(8),
			text.NewCol(2, t[0], props.Text{Size: 9, Style: fontstyle.Bold}),
			text.NewCol(2, t[1], bodyTextRight()),
		)
	}

	r.pictures(m, v.Pictures)
	return generate(m)
}

// pictures appends up to three delivery proof thumbnails.
func (r *DocumentRenderer) pictures(m core.Maroto, keys []string) {
	paths := r.assembler.Pictures(keys)
	if len(paths) == 0 {
		return
	}
	m.AddRow(8, text.NewCol(12, "Bukti Pengiriman", props.Text{Size: 10, Style: fontstyle.Bold, Top: 2}))
	cols := make([]core.Col, 0, 4)
	for _, path := range paths {
		data, err := thumbnail(path)
		if err != nil {
			r.log.Warn("skip pdf image", zap.String("path", path), zap.Error(err))
			continue
		}
		cols = append(cols, image.NewFromBytesCol(2, data, extension.Jpg, props.Rect{Center: true, Percent: 90}))
	}
	if len(cols) == 0 {
		return
	}
	cols = append(cols, col.New(12-2*len(cols)))
	m.AddRow(30, cols...)
}

func title(m core.Maroto, heading, code string) {
	m.AddRow(12,
		text.NewCol(8, heading, props.Text{Size: 18, Style: fontstyle.Bold, Align: align.Left}),
		text.NewCol(4, code, props.Text{Size: 12, Style: fontstyle.Bold, Align: align.Right, Top: 3}),
	)
}

func details(m core.Maroto, pairs [][2]string) {
	for _, p := range pairs {
		m.AddRow(6,
			text.NewCol(3, p[0], props.Text{Size: 9, Style: fontstyle.Bold}),
			text.NewCol(9, dash(p[1]), props.Text{Size: 9}),
		)
	}
}

func statusBlock(m core.Maroto, s export.Status, fulfillmentCaption string) {
	m.AddRow(4)
	m.AddRow(6,
		text.NewCol(4, "Status Pengajuan: "+export.SubmissionLabel(s.Submission), props.Text{Size: 9}),
		text.NewCol(4, "Status Produk: "+export.ProductLabel(s.Product), props.Text{Size: 9}),
		text.NewCol(4, fulfillmentCaption+": "+export.FulfillmentLabel(s.Fulfillment), props.Text{Size: 9}),
	)
	if s.OnHoldUntil != nil || strings.TrimSpace(s.OnHoldComment) != "" {
		m.AddRow(6,
			text.NewCol(4, "Batas Hold: "+formatDate(s.OnHoldUntil), props.Text{Size: 9}),
			text.NewCol(8, "Alasan Hold: "+dash(s.OnHoldComment), props.Text{Size: 9}),
		)
	}
	m.AddRow(4)
}

func generate(m core.Maroto) ([]byte, error) {
	doc, err := m.Generate()
	if err != nil {
		return nil, fmt.Errorf("generate pdf: %w", err)
	}
	return doc.GetBytes(), nil
}

func headerText() props.Text {
	return props.Text{Size: 9, Style: fontstyle.Bold, Top: 1.5}
}

func headerTextRight() props.Text {
	return props.Text{Size: 9, Style: fontstyle.Bold, Align: align.Right, Top: 1.5}
}

func bodyText() props.Text {
	return props.Text{Size: 9, Top: 1}
}

func bodyTextRight() props.Text {
	return props.Text{Size: 9, Align: align.Right, Top: 1}
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
	return t.Format("02/01/2006 15:04")
}

func formatDate(t *time.Time) string {
	if t == nil || t.IsZero() {
		return "-"
	}
	return t.Format("02/01/2006")
}
