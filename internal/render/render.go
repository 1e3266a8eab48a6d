// Package render turns export views and tables into PDF and xlsx bytes.
package render

import (
	"context"
	"errors"
	"fmt"

	"github.com/smallbiznis/nanolite/internal/blobstore"
	"github.com/smallbiznis/nanolite/internal/export"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

const (
	TemplateGaransi = "garansi"
	TemplateOrder   = "order"
)

var (
	ErrUnknownTemplate = errors.New("unknown_template")
	ErrInvalidView     = errors.New("invalid_view")
)

type Renderer interface {
	RenderPDF(ctx context.Context, templateID string, view any) ([]byte, error)
	RenderSpreadsheet(ctx context.Context, table export.Table) ([]byte, error)
}

type Params struct {
	fx.In

	Store blobstore.Store
	Log   *zap.Logger
}

type DocumentRenderer struct {
	assembler *export.Assembler
	log       *zap.Logger
}

func New(p Params) *DocumentRenderer {
	return &DocumentRenderer{
		assembler: export.NewAssembler(p.Store),
		log:       p.Log.Named("render"),
	}
}

func (r *DocumentRenderer) RenderPDF(ctx context.Context, templateID string, view any) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	switch templateID {
	case TemplateGaransi:
		v, ok := view.(export.GaransiView)
		if !ok {
			return nil, fmt.Errorf("%w: %T", ErrInvalidView, view)
		}
		return r.garansiPDF(v)
	case TemplateOrder:
		v, ok := view.(export.OrderView)
		if !ok {
			return nil, fmt.Errorf("%w: %T", ErrInvalidView, view)
		}
		return r.orderPDF(v)
	default:
		return nil, fmt.Errorf("%w: %s", ErrUnknownTemplate, templateID)
	}
}

func (r *DocumentRenderer) RenderSpreadsheet(ctx context.Context, table export.Table) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return r.spreadsheet(table)
}

// Assembler exposes the table builder bound to the same store.
func (r *DocumentRenderer) Assembler() *export.Assembler {
	return r.assembler
}
