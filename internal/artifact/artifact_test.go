package artifact

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/smallbiznis/nanolite/internal/blobstore"
	"github.com/smallbiznis/nanolite/internal/config"
	"github.com/smallbiznis/nanolite/internal/export"
	"github.com/smallbiznis/nanolite/internal/observability/metrics"
)

type fakeRenderer struct {
	pdfErr   error
	sheetErr error
}

func (f fakeRenderer) RenderPDF(ctx context.Context, templateID string, view any) ([]byte, error) {
	if f.pdfErr != nil {
		return nil, f.pdfErr
	}
	return []byte("%PDF-" + templateID), nil
}

func (f fakeRenderer) RenderSpreadsheet(ctx context.Context, table export.Table) ([]byte, error) {
	if f.sheetErr != nil {
		return nil, f.sheetErr
	}
	return []byte(table.Title), nil
}

func newTestWriter(t *testing.T, r fakeRenderer) (*Writer, *blobstore.LocalStore) {
	t.Helper()
	cfg := config.Config{
		Storage: config.StorageConfig{Root: t.TempDir(), PublicURL: "/storage"},
		Render:  config.RenderConfig{Timeout: time.Second},
	}
	store, err := blobstore.NewLocalStore(cfg, zaptest.NewLogger(t))
	require.NoError(t, err)
	return NewWriter(Params{
		Renderer: r,
		Tables:   export.NewAssembler(store),
		Store:    store,
		Cfg:      cfg,
		Log:      zaptest.NewLogger(t),
		Metrics:  metrics.NewNoop(),
	}), store
}

func TestWriterStoresBothArtifacts(t *testing.T) {
	w, store := newTestWriter(t, fakeRenderer{})

	paths := w.Garansi(context.Background(), export.GaransiView{Code: "GAR-20250101ABCD"})
	require.True(t, paths.Complete())
	assert.Equal(t, "exports/Garansi-GAR-20250101ABCD.pdf", *paths.PDF)
	assert.Equal(t, "exports/Garansi-GAR-20250101ABCD.xlsx", *paths.Excel)
	assert.True(t, store.Exists(*paths.PDF))

	data, err := store.Get(context.Background(), *paths.Excel)
	require.NoError(t, err)
	assert.Equal(t, export.TitleGaransi, string(data))
}

func TestWriterKeepsGoingWhenOneArtifactFails(t *testing.T) {
	w, store := newTestWriter(t, fakeRenderer{pdfErr: errors.New("boom")})

	paths := w.Order(context.Background(), export.OrderView{Code: "ORD-20250101ABCD"})
	assert.Nil(t, paths.PDF)
	require.NotNil(t, paths.Excel)
	assert.False(t, paths.Complete())
	assert.True(t, store.Exists("exports/Order-ORD-20250101ABCD.xlsx"))
}

func TestFileBase(t *testing.T) {
	assert.Equal(t, "Order-ORD-1", FileBase("Order", "ORD-1"))
	assert.Equal(t, "Garansi-gar-1-x", FileBase("Garansi", "GAR 1/x"))
	assert.Equal(t, "Order-unknown", FileBase("Order", ""))
}
