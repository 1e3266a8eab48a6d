package render

import (
	"bytes"
	"context"
	"image"
	"image/color"
	"image/png"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"
	"go.uber.org/zap"

	"github.com/smallbiznis/nanolite/internal/blobstore"
	"github.com/smallbiznis/nanolite/internal/config"
	"github.com/smallbiznis/nanolite/internal/export"
)

func newTestRenderer(t *testing.T) (*DocumentRenderer, string) {
	t.Helper()
	root := t.TempDir()
	store, err := blobstore.NewLocalStore(config.Config{Storage: config.StorageConfig{Root: root, PublicURL: "/storage"}}, zap.NewNop())
	require.NoError(t, err)
	return New(Params{Store: store, Log: zap.NewNop()}), root
}

func writePNG(t *testing.T, root, key string) {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, 120, 80))
	for x := 0; x < 120; x++ {
		for y := 0; y < 80; y++ {
			img.Set(x, y, color.RGBA{R: uint8(x), G: 120, B: uint8(y), A: 255})
		}
	}
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, img))
	path := filepath.Join(root, filepath.FromSlash(key))
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, buf.Bytes(), 0o644))
}

func sampleOrder() export.OrderView {
	created := time.Date(2025, 2, 3, 9, 30, 0, 0, time.UTC)
	return export.OrderView{
		Code:             "ORD-20250203ABCD",
		CreatedAt:        created,
		UpdatedAt:        created,
		Customer:         "Toko Terang",
		Lines:            []export.Line{{Brand: "Nano", Category: "Lampu", Product: "LED", Color: "Putih", Quantity: 2, Price: 500_000}},
		DiscountsEnabled: true,
		Discounts:        [4]float64{10},
		Pictures:         []string{"order-delivery-photos/proof.png"},
	}
}

func TestRenderSpreadsheetLayout(t *testing.T) {
	r, root := newTestRenderer(t)
	writePNG(t, root, "order-delivery-photos/proof.png")

	table := r.Assembler().OrderTable(sampleOrder())
	data, err := r.RenderSpreadsheet(context.Background(), table)
	require.NoError(t, err)

	f, err := excelize.OpenReader(bytes.NewReader(data))
	require.NoError(t, err)
	defer f.Close()

	title, err := f.GetCellValue("Sheet1", "A1")
	require.NoError(t, err)
	assert.Equal(t, export.TitleOrder, title)

	merged, err := f.GetMergeCells("Sheet1")
	require.NoError(t, err)
	require.Len(t, merged, 1)
	assert.Equal(t, "A1", merged[0].GetStartAxis())

	header, err := f.GetCellValue("Sheet1", "B2")
	require.NoError(t, err)
	assert.Equal(t, "No Order", header)

	code, err := f.GetCellValue("Sheet1", "B3")
	require.NoError(t, err)
	assert.Equal(t, "ORD-20250203ABCD", code)

	imageCol, err := excelize.ColumnNumberToName(table.ImageColumn + 1)
	require.NoError(t, err)
	width, err := f.GetColWidth("Sheet1", imageCol)
	require.NoError(t, err)
	assert.Equal(t, float64(imageColumnWidth), width)

	height, err := f.GetRowHeight("Sheet1", 3)
	require.NoError(t, err)
	assert.Equal(t, float64(imageRowHeight), height)

	pics, err := f.GetPictures("Sheet1", imageCol+"3")
	require.NoError(t, err)
	assert.Len(t, pics, 1)

	lastCol, err := excelize.ColumnNumberToName(len(table.Headers))
	require.NoError(t, err)
	total, err := f.GetCellValue("Sheet1", lastCol+"8")
	require.NoError(t, err)
	assert.Equal(t, "Rp 900.000", total)
}

func TestRenderSpreadsheetRejectsEmptyTable(t *testing.T) {
	r, _ := newTestRenderer(t)
	_, err := r.RenderSpreadsheet(context.Background(), export.Table{})
	assert.Error(t, err)
}

func TestRenderPDF(t *testing.T) {
	r, root := newTestRenderer(t)
	writePNG(t, root, "order-delivery-photos/proof.png")

	data, err := r.RenderPDF(context.Background(), TemplateOrder, sampleOrder())
	require.NoError(t, err)
	assert.True(t, bytes.HasPrefix(data, []byte("%PDF")))

	data, err = r.RenderPDF(context.Background(), TemplateGaransi, export.GaransiView{Code: "GAR-1"})
	require.NoError(t, err)
	assert.NotEmpty(t, data)
}

func TestRenderPDFRejectsMismatchedView(t *testing.T) {
	r, _ := newTestRenderer(t)

	_, err := r.RenderPDF(context.Background(), TemplateGaransi, sampleOrder())
	assert.ErrorIs(t, err, ErrInvalidView)

	_, err = r.RenderPDF(context.Background(), "invoice", sampleOrder())
	assert.ErrorIs(t, err, ErrUnknownTemplate)
}

func TestRenderHonoursCancelledContext(t *testing.T) {
	r, _ := newTestRenderer(t)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := r.RenderPDF(ctx, TemplateOrder, sampleOrder())
	assert.ErrorIs(t, err, context.Canceled)
}

func TestThumbnail(t *testing.T) {
	root := t.TempDir()
	writePNG(t, root, "a.png")
	data, err := thumbnail(filepath.Join(root, "a.png"))
	require.NoError(t, err)

	img, format, err := image.Decode(bytes.NewReader(data))
	require.NoError(t, err)
	assert.Equal(t, "jpeg", format)
	assert.Equal(t, thumbnailSize, img.Bounds().Dy())

	_, err = thumbnail(filepath.Join(root, "missing.png"))
	assert.Error(t, err)
}
