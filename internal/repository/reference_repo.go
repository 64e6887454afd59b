package repository

import (
	"context"

	"gorm.io/gorm"

	"github.com/qs-lzh/cineportal/internal/model"
)

// Actors, cinemas and producers are reference data: this module only reads them.

type ActorRepo interface {
	GetByID(ctx context.Context, id uint) (*model.Actor, error)
	ListByIDs(ctx context.Context, ids []uint) ([]model.Actor, error)
	ListAll(ctx context.Context) ([]model.Actor, error)
}

type CinemaRepo interface {
	GetByID(ctx context.Context, id uint) (*model.Cinema, error)
	ListAll(ctx context.Context) ([]model.Cinema, error)
}

type ProducerRepo interface {
	GetByID(ctx context.Context, id uint) (*model.Producer, error)
	ListAll(ctx context.Context) ([]model.Producer, error)
}

// referenceRepoGorm serves any read-only reference table keyed by id.
type referenceRepoGorm[T any] struct {
	db *gorm.DB
}

func newReferenceRepoGorm[T any](db *gorm.DB) *referenceRepoGorm[T] {
	return &referenceRepoGorm[T]{
		db: db,
	}
}

func (r *referenceRepoGorm[T]) WithTx(tx *gorm.DB) *referenceRepoGorm[T] {
	return &referenceRepoGorm[T]{
		db: tx,
	}
}

func (r *referenceRepoGorm[T]) GetByID(ctx context.Context, id uint) (*T, error) {
	record, err := gorm.G[T](r.db).Where("id = ?", id).First(ctx)
	if err != nil {
		return nil, err
	}
	return &record, nil
}

func (r *referenceRepoGorm[T]) ListByIDs(ctx context.Context, ids []uint) ([]T, error) {
	if len(ids) == 0 {
		return []T{}, nil
	}
	records, err := gorm.G[T](r.db).Where("id IN ?", ids).Order("id").Find(ctx)
	if err != nil {
		return nil, err
	}
	return records, nil
}

func (r *referenceRepoGorm[T]) ListAll(ctx context.Context) ([]T, error) {
	records, err := gorm.G[T](r.db).Order("id").Find(ctx)
	if err != nil {
		return nil, err
	}
	return records, nil
}

var (
	_ ActorRepo    = (*referenceRepoGorm[model.Actor])(nil)
	_ CinemaRepo   = (*referenceRepoGorm[model.Cinema])(nil)
	_ ProducerRepo = (*referenceRepoGorm[model.Producer])(nil)
)

func NewActorRepoGorm(db *gorm.DB) *referenceRepoGorm[model.Actor] {
	return newReferenceRepoGorm[model.Actor](db)
}

func NewCinemaRepoGorm(db *gorm.DB) *referenceRepoGorm[model.Cinema] {
	return newReferenceRepoGorm[model.Cinema](db)
}

func NewProducerRepoGorm(db *gorm.DB) *referenceRepoGorm[model.Producer] {
	return newReferenceRepoGorm[model.Producer](db)
}
