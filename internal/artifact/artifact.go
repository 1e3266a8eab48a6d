// Package artifact regenerates the PDF and spreadsheet of a record and
// stores them under exports/.
package artifact

import (
	"context"
	"fmt"
	"regexp"
	"time"

	"github.com/gosimple/slug"
	"github.com/smallbiznis/nanolite/internal/blobstore"
	"github.com/smallbiznis/nanolite/internal/config"
	"github.com/smallbiznis/nanolite/internal/export"
	"github.com/smallbiznis/nanolite/internal/observability/metrics"
	"github.com/smallbiznis/nanolite/internal/render"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

const (
	Folder = "exports"

	EntityGaransi = "garansi"
	EntityOrder   = "order"

	KindPDF   = "pdf"
	KindExcel = "excel"

	defaultTimeout = 30 * time.Second
)

var safeCode = regexp.MustCompile(`^[A-Za-z0-9_-]+$`)

// Paths are the stored keys of a record's artifacts. A nil path means the
// artifact could not be produced.
type Paths struct {
	PDF   *string
	Excel *string
}

// Complete reports whether both artifacts exist.
func (p Paths) Complete() bool {
	return p.PDF != nil && p.Excel != nil
}

type Params struct {
	fx.In

	Renderer render.Renderer
	Tables   *export.Assembler
	Store    blobstore.Store
	Cfg      config.Config
	Log      *zap.Logger
	Metrics  *metrics.Metrics `optional:"true"`
}

type Writer struct {
	renderer render.Renderer
	tables   *export.Assembler
	store    blobstore.Store
	timeout  time.Duration
	log      *zap.Logger
	metrics  *metrics.Metrics
}

func NewWriter(p Params) *Writer {
	timeout := p.Cfg.Render.Timeout
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	return &Writer{
		renderer: p.Renderer,
		tables:   p.Tables,
		store:    p.Store,
		timeout:  timeout,
		log:      p.Log.Named("artifact"),
		metrics:  p.Metrics,
	}
}

// Garansi renders and stores both artifacts of a garansi record. Failures
// are logged and counted and leave the matching path nil.
func (w *Writer) Garansi(ctx context.Context, v export.GaransiView) Paths {
	base := FileBase("Garansi", v.Code)
	return Paths{
		PDF: w.write(ctx, EntityGaransi, KindPDF, base+".pdf", func(ctx context.Context) ([]byte, error) {
			return w.renderer.RenderPDF(ctx, render.TemplateGaransi, v)
		}),
		Excel: w.write(ctx, EntityGaransi, KindExcel, base+".xlsx", func(ctx context.Context) ([]byte, error) {
			return w.renderer.RenderSpreadsheet(ctx, w.tables.GaransiTable(v))
		}),
	}
}

// Order renders and stores both artifacts of an order.
func (w *Writer) Order(ctx context.Context, v export.OrderView) Paths {
	base := FileBase("Order", v.Code)
	return Paths{
		PDF: w.write(ctx, EntityOrder, KindPDF, base+".pdf", func(ctx context.Context) ([]byte, error) {
			return w.renderer.RenderPDF(ctx, render.TemplateOrder, v)
		}),
		Excel: w.write(ctx, EntityOrder, KindExcel, base+".xlsx", func(ctx context.Context) ([]byte, error) {
			return w.renderer.RenderSpreadsheet(ctx, w.tables.OrderTable(v))
		}),
	}
}

// OrderList renders the multi-record spreadsheet without storing it.
func (w *Writer) OrderList(ctx context.Context, views []export.OrderView) ([]byte, error) {
	ctx, cancel := context.WithTimeout(ctx, w.timeout)
	defer cancel()
	return w.renderer.RenderSpreadsheet(ctx, w.tables.OrderListTable(views))
}

func (w *Writer) write(ctx context.Context, entity, kind, name string, produce func(context.Context) ([]byte, error)) *string {
	ctx, span := otel.Tracer("nanolite/artifact").Start(ctx, "artifact.render")
	defer span.End()
	span.SetAttributes(
		attribute.String("entity", entity),
		attribute.String("kind", kind),
	)

	start := time.Now()
	renderCtx, cancel := context.WithTimeout(ctx, w.timeout)
	defer cancel()

	key := Folder + "/" + name
	data, err := produce(renderCtx)
	if err == nil {
		err = w.store.Put(renderCtx, key, data)
	}
	elapsed := time.Since(start)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "render failed")
		w.metrics.RecordArtifactRender(ctx, entity, kind, "error", elapsed)
		w.log.Error("artifact render failed",
			zap.String("entity", entity),
			zap.String("kind", kind),
			zap.String("key", key),
			zap.Duration("elapsed", elapsed),
			zap.Error(err),
		)
		return nil
	}

	w.metrics.RecordArtifactRender(ctx, entity, kind, "ok", elapsed)
	w.log.Debug("artifact stored",
		zap.String("entity", entity),
		zap.String("kind", kind),
		zap.String("key", key),
		zap.Int("bytes", len(data)),
	)
	return &key
}

// FileBase returns "<prefix>-<code>", slugging codes with unsafe characters.
func FileBase(prefix, code string) string {
	if !safeCode.MatchString(code) {
		code = slug.Make(code)
	}
	if code == "" {
		code = "unknown"
	}
	return fmt.Sprintf("%s-%s", prefix, code)
}
