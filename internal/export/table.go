package export

import (
	"os"
	"strings"
)

const (
	TitleGaransi = "GARANSI"
	TitleOrder   = "SALES ORDER"

	maxPictures = 3
	noProgram   = "Tidak Ikut Program"
)

var garansiHeaders = []string{
	"No.", "No Garansi", "Tanggal Dibuat", "Tanggal Diupdate", "Department", "Karyawan", "Customer",
	"Kategori Customer", "Phone", "Alamat", "Item Description", "Pcs", "Tanggal Pembelian",
	"Tanggal Klaim", "Alasan", "Catatan", "Status Pengajuan", "Status Produk", "Status Garansi",
	"Batas Hold", "Alasan Hold", "Bukti Pengiriman",
}

var orderHeaders = []string{
	"No.", "No Order", "Tanggal Dibuat", "Tanggal Diupdate", "Department", "Karyawan", "Customer",
	"Kategori Customer", "Customer Program", "Phone", "Alamat", "Item Description", "Pcs", "Unit Price",
	"Total Awal", "Program Point", "Reward Point", "Disc%", "Penjelasan Diskon", "Metode Pembayaran",
	"Jatuh Tempo", "Status Pembayaran", "Status Pengajuan", "Status Produk", "Status Order",
	"Batas Hold", "Alasan Hold", "Bukti Pengiriman",
}

var orderListHeaders = []string{
	"No.", "No Order", "Tanggal Dibuat", "Tanggal Diupdate", "Department", "Karyawan", "Customer",
	"Kategori Customer", "Customer Program", "Phone", "Alamat", "Item Description", "Pcs", "Unit Price",
	"Total Awal", "Program Point", "Reward Point", "Disc%", "Penjelasan Diskon", "Total Akhir",
	"Metode Pembayaran", "Jatuh Tempo", "Status Pembayaran", "Status Pengajuan", "Status Produk",
	"Status Order", "Batas Hold", "Alasan Hold", "Bukti Pengiriman",
}

// PathResolver maps a stored key to a local file.
type PathResolver interface {
	LocalPath(key string) (string, error)
}

// Assembler builds tables. Pictures that cannot be found on disk are left
// out of the image side table.
type Assembler struct {
	paths PathResolver
}

func NewAssembler(paths PathResolver) *Assembler {
	return &Assembler{paths: paths}
}

// GaransiTable renders one row per line item.
func (a *Assembler) GaransiTable(v GaransiView) Table {
	t := Table{
		Title:       TitleGaransi,
		Headers:     append([]string(nil), garansiHeaders...),
		ImageColumn: len(garansiHeaders) - 1,
		Images:      map[int][]string{},
	}
	pictures := a.Pictures(v.Pictures)
	for i, line := range v.Lines {
		t.Rows = append(t.Rows, []Cell{
			Int(int64(i + 1)),
			Text(dash(v.Code)),
			Text(formatDateTime(v.CreatedAt)),
			Text(formatDateTime(v.UpdatedAt)),
			Text(dash(v.Department)),
			Text(dash(v.Employee)),
			Text(dash(v.Customer)),
			Text(dash(v.CustomerCategory)),
			Text(dash(v.Phone)),
			Text(dash(v.Address)),
			Text(line.Description()),
			Int(int64(line.Quantity)),
			Text(formatDate(v.PurchaseDate)),
			Text(formatDate(v.ClaimDate)),
			Text(dash(v.Reason)),
			Text(dash(v.Note)),
			Text(SubmissionLabel(v.Status.Submission)),
			Text(ProductLabel(v.Status.Product)),
			Text(FulfillmentLabel(v.Status.Fulfillment)),
			Text(formatDate(v.Status.OnHoldUntil)),
			Text(dash(v.Status.OnHoldComment)),
			pictureCell(i == 0 && len(pictures) > 0),
		})
	}
	if len(t.Rows) > 0 && len(pictures) > 0 {
		t.Images[0] = pictures
	}
	return t
}

// OrderTable renders one row per line item followed by the totals footer.
func (a *Assembler) OrderTable(v OrderView) Table {
	t := Table{
		Title:       TitleOrder,
		Headers:     append([]string(nil), orderHeaders...),
		ImageColumn: len(orderHeaders) - 1,
		Images:      map[int][]string{},
	}
	pictures := a.Pictures(v.Pictures)
	for i, line := range v.Lines {
		t.Rows = append(t.Rows, []Cell{
			Int(int64(i + 1)),
			Text(dash(v.Code)),
			Text(formatDateTime(v.CreatedAt)),
			Text(formatDateTime(v.UpdatedAt)),
			Text(dash(v.Department)),
			Text(dash(v.Employee)),
			Text(dash(v.Customer)),
			Text(dash(v.CustomerCategory)),
			Text(programName(v.Program)),
			Text(dash(v.Phone)),
			Text(dash(v.Address)),
			Text(line.Description()),
			Int(int64(line.Quantity)),
			Money(line.Price),
			Money(line.Subtotal()),
			Text(formatPoints(v.ProgramPoints)),
			Text(formatPoints(v.RewardPoints)),
			Text(v.DiscountSummary()),
			Text(dash(v.DiscountNote())),
			Text(dash(PaymentMethodLabel(v.PaymentMethod))),
			Text(formatDate(v.PaymentDueUntil)),
			Text(PaymentLabel(v.PaymentStatus)),
			Text(SubmissionLabel(v.Status.Submission)),
			Text(ProductLabel(v.Status.Product)),
			Text(FulfillmentLabel(v.Status.Fulfillment)),
			Text(formatDate(v.Status.OnHoldUntil)),
			Text(dash(v.Status.OnHoldComment)),
			pictureCell(i == 0 && len(pictures) > 0),
		})
	}
	if len(t.Rows) > 0 && len(pictures) > 0 {
		t.Images[0] = pictures
	}

	discount := Text("-")
	if amount := v.DiscountAmount(); amount > 0 {
		discount = Money(amount)
	}
	t.Footer = [][]Cell{
		{Text("Sub Total:"), Money(v.Subtotal())},
		{Text("Discount:"), discount},
		{Text("Total Akhir:"), Money(v.Total())},
	}
	return t
}

// OrderListTable renders one row per order, line items joined by newline.
func (a *Assembler) OrderListTable(views []OrderView) Table {
	t := Table{
		Title:       TitleOrder,
		Headers:     append([]string(nil), orderListHeaders...),
		ImageColumn: len(orderListHeaders) - 1,
		Images:      map[int][]string{},
	}
	for i, v := range views {
		descriptions := make([]string, 0, len(v.Lines))
		prices := make([]string, 0, len(v.Lines))
		var pcs int64
		for _, line := range v.Lines {
			descriptions = append(descriptions, line.Description())
			prices = append(prices, FormatRupiah(line.Price))
			pcs += int64(line.Quantity)
		}
		pictures := a.Pictures(v.Pictures)
		if len(pictures) > 0 {
			t.Images[i] = pictures
		}
		t.Rows = append(t.Rows, []Cell{
			Int(int64(i + 1)),
			Text(dash(v.Code)),
			Text(formatDateTime(v.CreatedAt)),
			Text(formatDateTime(v.UpdatedAt)),
			Text(dash(v.Department)),
			Text(dash(v.Employee)),
			Text(dash(v.Customer)),
			Text(dash(v.CustomerCategory)),
			Text(programName(v.Program)),
			Text(dash(v.Phone)),
			Text(dash(v.Address)),
			Text(strings.Join(descriptions, "\n")),
			Int(pcs),
			Text(strings.Join(prices, "\n")),
			Money(v.Subtotal()),
			Text(formatPoints(v.ProgramPoints)),
			Text(formatPoints(v.RewardPoints)),
			Text(v.DiscountSummary()),
			Text(dash(v.DiscountNote())),
			Money(v.Total()),
			Text(dash(PaymentMethodLabel(v.PaymentMethod))),
			Text(formatDate(v.PaymentDueUntil)),
			Text(PaymentLabel(v.PaymentStatus)),
			Text(SubmissionLabel(v.Status.Submission)),
			Text(ProductLabel(v.Status.Product)),
			Text(FulfillmentLabel(v.Status.Fulfillment)),
			Text(formatDate(v.Status.OnHoldUntil)),
			Text(dash(v.Status.OnHoldComment)),
			pictureCell(len(pictures) > 0),
		})
	}
	return t
}

// Pictures resolves stored keys to existing local files, at most three.
func (a *Assembler) Pictures(keys []string) []string {
	if a.paths == nil {
		return nil
	}
	out := make([]string, 0, maxPictures)
	for _, key := range keys {
		key = strings.TrimPrefix(strings.TrimSpace(key), "/")
		key = strings.TrimPrefix(key, "storage/")
		if key == "" {
			continue
		}
		path, err := a.paths.LocalPath(key)
		if err != nil {
			continue
		}
		if info, err := os.Stat(path); err != nil || info.IsDir() {
			continue
		}
		out = append(out, path)
		if len(out) == maxPictures {
			break
		}
	}
	return out
}

// pictureCell is blank under an embedded image and "-" on every other row.
func pictureCell(hasImages bool) Cell {
	if hasImages {
		return Text("")
	}
	return Text("-")
}

func programName(name string) string {
	if strings.TrimSpace(name) == "" {
		return noProgram
	}
	return name
}
