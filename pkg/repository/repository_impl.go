package repository

import (
	"context"
	"errors"

	"gorm.io/gorm"
)

// Repository is a generic read/write store over one gorm model. Filters use
// gorm's struct conditions, so zero-valued fields are ignored.
type Repository[T any] interface {
	WithTrx(tx *gorm.DB) Repository[T]
	Find(ctx context.Context, query *T, opts ...QueryOption) ([]T, error)
	FindOne(ctx context.Context, query *T, opts ...QueryOption) (*T, error)
	Create(ctx context.Context, resource *T) error
	Count(ctx context.Context, query *T) (int64, error)
}

// QueryOption decorates a statement before execution.
type QueryOption func(*gorm.DB) *gorm.DB

func OrderBy(column string) QueryOption {
	return func(db *gorm.DB) *gorm.DB { return db.Order(column) }
}

func Limit(n int) QueryOption {
	return func(db *gorm.DB) *gorm.DB {
		if n <= 0 {
			return db
		}
		return db.Limit(n)
	}
}

// AfterID restricts results to rows with id greater than id, for cursor paging.
func AfterID(id int64) QueryOption {
	return func(db *gorm.DB) *gorm.DB {
		if id <= 0 {
			return db
		}
		return db.Where("id > ?", id)
	}
}

func Preload(assoc string) QueryOption {
	return func(db *gorm.DB) *gorm.DB { return db.Preload(assoc) }
}

type store[T any] struct {
	db *gorm.DB
}

func ProvideStore[T any](db *gorm.DB) Repository[T] {
	return &store[T]{db: db}
}

func (r *store[T]) WithTrx(tx *gorm.DB) Repository[T] {
	return &store[T]{db: tx}
}

func (r *store[T]) Find(ctx context.Context, query *T, opts ...QueryOption) ([]T, error) {
	var result []T
	err := r.buildQuery(ctx, query, opts...).Find(&result).Error
	return result, err
}

func (r *store[T]) FindOne(ctx context.Context, query *T, opts ...QueryOption) (*T, error) {
	var result T
	err := r.buildQuery(ctx, query, opts...).First(&result).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &result, nil
}

func (r *store[T]) Create(ctx context.Context, resource *T) error {
	return r.db.WithContext(ctx).Create(resource).Error
}

func (r *store[T]) Count(ctx context.Context, query *T) (int64, error) {
	var count int64
	err := r.db.WithContext(ctx).Model(query).Where(query).Count(&count).Error
	return count, err
}

func (r *store[T]) buildQuery(ctx context.Context, filter *T, opts ...QueryOption) *gorm.DB {
	db := r.db.WithContext(ctx).Where(filter)
	for _, opt := range opts {
		db = opt(db)
	}
	return db
}
