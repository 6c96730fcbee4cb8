package repository

import (
	"context"
	"errors"

	"gorm.io/gorm"

	"paz-rewards/pkg/db/option"
)

// Repository is the generic store shared by the domain services. FindOne
// returns (nil, nil) when no row matches so callers can treat absence as a
// domain condition instead of an error.
type Repository[T any] interface {
	WithTrx(tx *gorm.DB) Repository[T]
	Find(ctx context.Context, query *T, opts ...option.QueryOption) ([]*T, error)
	FindOne(ctx context.Context, query *T, opts ...option.QueryOption) (*T, error)
	Create(ctx context.Context, resource *T) error
	Update(ctx context.Context, resourceID string, resource any) error
	Delete(ctx context.Context, resourceID string) error
	Count(ctx context.Context, query *T, opts ...option.QueryOption) (int64, error)
}

type store[T any] struct {
	db *gorm.DB
}

// ProvideStore returns the gorm-backed Repository for T.
func ProvideStore[T any](db *gorm.DB) Repository[T] {
	return &store[T]{db: db}
}

func (s *store[T]) WithTrx(tx *gorm.DB) Repository[T] {
	if tx == nil {
		return s
	}
	return &store[T]{db: tx}
}

func (s *store[T]) apply(ctx context.Context, query *T, opts ...option.QueryOption) *gorm.DB {
	tx := s.db.WithContext(ctx).Model(new(T))
	if query != nil {
		tx = tx.Where(query)
	}
	for _, opt := range opts {
		tx = opt(tx)
	}
	return tx
}

func (s *store[T]) Find(ctx context.Context, query *T, opts ...option.QueryOption) ([]*T, error) {
	var resources []*T
	if err := s.apply(ctx, query, opts...).Find(&resources).Error; err != nil {
		return nil, err
	}
	return resources, nil
}

func (s *store[T]) FindOne(ctx context.Context, query *T, opts ...option.QueryOption) (*T, error) {
	var resource T
	if err := s.apply(ctx, query, opts...).First(&resource).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &resource, nil
}

func (s *store[T]) Create(ctx context.Context, resource *T) error {
	return s.db.WithContext(ctx).Create(resource).Error
}

func (s *store[T]) Update(ctx context.Context, resourceID string, resource any) error {
	return s.db.WithContext(ctx).Model(new(T)).
		Where("id = ?", resourceID).
		Updates(resource).Error
}

func (s *store[T]) Delete(ctx context.Context, resourceID string) error {
	return s.db.WithContext(ctx).Where("id = ?", resourceID).Delete(new(T)).Error
}

func (s *store[T]) Count(ctx context.Context, query *T, opts ...option.QueryOption) (int64, error) {
	var total int64
	if err := s.apply(ctx, query, opts...).Count(&total).Error; err != nil {
		return 0, err
	}
	return total, nil
}
