package repository

import (
	"context"

	"github.com/smallbiznis/nanolite/pkg/db/option"
	"gorm.io/gorm"
)

// Repository is a generic store over one gorm model. The match argument of
// the read methods is a struct filter; non-zero fields become equality
// conditions, and nil matches everything.
type Repository[T any] interface {
	WithTrx(tx *gorm.DB) Repository[T]
	Find(ctx context.Context, match *T, opts ...option.QueryOption) ([]*T, error)
	// FindOne returns nil, nil when nothing matches.
	FindOne(ctx context.Context, match *T, opts ...option.QueryOption) (*T, error)
	Count(ctx context.Context, match *T, opts ...option.QueryOption) (int64, error)
	Create(ctx context.Context, rows ...*T) error
	// Update applies fields to the row with the given id and reports how many
	// rows changed.
	Update(ctx context.Context, id any, fields map[string]any) (int64, error)
}
