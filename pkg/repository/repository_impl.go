package repository

import (
	"context"
	"errors"

	"github.com/smallbiznis/nanolite/pkg/db/option"
	"gorm.io/gorm"
)

type store[T any] struct {
	db *gorm.DB
}

func ProvideStore[T any](db *gorm.DB) Repository[T] {
	return store[T]{db: db}
}

func (s store[T]) WithTrx(tx *gorm.DB) Repository[T] {
	return store[T]{db: tx}
}

func (s store[T]) Find(ctx context.Context, match *T, opts ...option.QueryOption) ([]*T, error) {
	var rows []*T
	return rows, s.scope(ctx, match, opts).Find(&rows).Error
}

func (s store[T]) FindOne(ctx context.Context, match *T, opts ...option.QueryOption) (*T, error) {
	row := new(T)
	err := s.scope(ctx, match, opts).First(row).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return row, nil
}

func (s store[T]) Count(ctx context.Context, match *T, opts ...option.QueryOption) (int64, error) {
	var n int64
	return n, s.scope(ctx, match, opts).Model(new(T)).Count(&n).Error
}

func (s store[T]) Create(ctx context.Context, rows ...*T) error {
	switch len(rows) {
	case 0:
		return nil
	case 1:
		return s.db.WithContext(ctx).Create(rows[0]).Error
	default:
		return s.db.WithContext(ctx).Create(rows).Error
	}
}

func (s store[T]) Update(ctx context.Context, id any, fields map[string]any) (int64, error) {
	if len(fields) == 0 {
		return 0, nil
	}
	tx := s.db.WithContext(ctx).Model(new(T)).Where("id = ?", id).Updates(fields)
	return tx.RowsAffected, tx.Error
}

func (s store[T]) scope(ctx context.Context, match *T, opts []option.QueryOption) *gorm.DB {
	q := s.db.WithContext(ctx)
	if match != nil {
		q = q.Where(match)
	}
	for _, opt := range opts {
		q = opt.Apply(q)
	}
	return q
}
