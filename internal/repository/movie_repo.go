package repository

import (
	"context"

	"gorm.io/gorm"

	"github.com/qs-lzh/cineportal/internal/model"
)

type MovieRepo interface {
	Create(ctx context.Context, movie *model.Movie) error
	GetByID(ctx context.Context, id uint) (*model.Movie, error)
	Update(ctx context.Context, movie *model.Movie) error
	ListAll(ctx context.Context) ([]model.Movie, error)
}

// movieScalarColumns are written on every update, zero values included.
var movieScalarColumns = []string{
	"name", "description", "price", "image_url", "start_date", "category", "cinema_id", "producer_id",
}

type movieRepoGorm struct {
	db *gorm.DB
}

var _ MovieRepo = (*movieRepoGorm)(nil)

func NewMovieRepoGorm(db *gorm.DB) *movieRepoGorm {
	return &movieRepoGorm{
		db: db,
	}
}

func (r *movieRepoGorm) WithTx(tx *gorm.DB) *movieRepoGorm {
	return &movieRepoGorm{
		db: tx,
	}
}

func (r *movieRepoGorm) Create(ctx context.Context, movie *model.Movie) error {
	if err := gorm.G[model.Movie](r.db).Create(ctx, movie); err != nil {
		return err
	}
	return nil
}

func (r *movieRepoGorm) GetByID(ctx context.Context, id uint) (*model.Movie, error) {
	movie, err := gorm.G[model.Movie](r.db).Where("id = ?", id).First(ctx)
	if err != nil {
		return nil, err
	}
	return &movie, nil
}

func (r *movieRepoGorm) Update(ctx context.Context, movie *model.Movie) error {
	res := r.db.WithContext(ctx).
		Model(&model.Movie{ID: movie.ID}).
		Select(movieScalarColumns).
		Updates(movie)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}

func (r *movieRepoGorm) ListAll(ctx context.Context) ([]model.Movie, error) {
	movies, err := gorm.G[model.Movie](r.db).Order("id").Find(ctx)
	if err != nil {
		return nil, err
	}
	return movies, nil
}
