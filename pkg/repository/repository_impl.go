package repository

import (
	"context"
	"errors"

	"gorm.io/gorm"
)

type gormStore[T any] struct {
	db *gorm.DB
}

// ProvideStore returns a Repository backed by db. The zero value of T's fields
// is ignored when a filter model is used as a query.
func ProvideStore[T any](db *gorm.DB) Repository[T] {
	return &gormStore[T]{db: db}
}

func (s *gormStore[T]) WithTrx(tx *gorm.DB) Repository[T] {
	if tx == nil {
		return s
	}
	return &gormStore[T]{db: tx}
}

func (s *gormStore[T]) Find(ctx context.Context, filter *T, opts ...QueryOption) ([]*T, error) {
	rows := make([]*T, 0)
	if err := s.scope(ctx, filter, opts).Find(&rows).Error; err != nil {
		return nil, err
	}
	return rows, nil
}

// FindOne returns nil without an error when nothing matches.
func (s *gormStore[T]) FindOne(ctx context.Context, filter *T, opts ...QueryOption) (*T, error) {
	row := new(T)
	err := s.scope(ctx, filter, opts).Take(row).Error
	switch {
	case errors.Is(err, gorm.ErrRecordNotFound):
		return nil, nil
	case err != nil:
		return nil, err
	}
	return row, nil
}

func (s *gormStore[T]) Create(ctx context.Context, row *T) error {
	return s.db.WithContext(ctx).Create(row).Error
}

func (s *gormStore[T]) BatchCreate(ctx context.Context, rows []*T) error {
	if len(rows) == 0 {
		return nil
	}
	return s.db.WithContext(ctx).CreateInBatches(rows, 500).Error
}

func (s *gormStore[T]) Count(ctx context.Context, filter *T, opts ...QueryOption) (int64, error) {
	var n int64
	err := s.scope(ctx, filter, opts).Model(new(T)).Count(&n).Error
	return n, err
}

func (s *gormStore[T]) scope(ctx context.Context, filter *T, opts []QueryOption) *gorm.DB {
	q := s.db.WithContext(ctx).Model(new(T))
	if filter != nil {
		q = q.Where(filter)
	}
	for _, opt := range opts {
		q = opt.Apply(q)
	}
	return q
}
