package repository

import (
	"context"

	"gorm.io/gorm"

	"github.com/qs-lzh/cineportal/internal/model"
)

type ActorMovieRepo interface {
	ListByMovieID(ctx context.Context, movieID uint) ([]model.ActorMovie, error)
	Create(ctx context.Context, links []model.ActorMovie) error
	DeleteByMovieID(ctx context.Context, movieID uint) error
}

type actorMovieRepoGorm struct {
	db *gorm.DB
}

var _ ActorMovieRepo = (*actorMovieRepoGorm)(nil)

func NewActorMovieRepoGorm(db *gorm.DB) *actorMovieRepoGorm {
	return &actorMovieRepoGorm{
		db: db,
	}
}

func (r *actorMovieRepoGorm) WithTx(tx *gorm.DB) *actorMovieRepoGorm {
	return &actorMovieRepoGorm{
		db: tx,
	}
}

func (r *actorMovieRepoGorm) ListByMovieID(ctx context.Context, movieID uint) ([]model.ActorMovie, error) {
	links, err := gorm.G[model.ActorMovie](r.db).Where("movie_id = ?", movieID).Order("actor_id").Find(ctx)
	if err != nil {
		return nil, err
	}
	return links, nil
}

func (r *actorMovieRepoGorm) Create(ctx context.Context, links []model.ActorMovie) error {
	if len(links) == 0 {
		return nil
	}
	return r.db.WithContext(ctx).Omit("Movie", "Actor").Create(&links).Error
}

func (r *actorMovieRepoGorm) DeleteByMovieID(ctx context.Context, movieID uint) error {
	if _, err := gorm.G[model.ActorMovie](r.db).Where("movie_id = ?", movieID).Delete(ctx); err != nil {
		return err
	}
	return nil
}
