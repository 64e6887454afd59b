package repository

import (
	"context"

	"github.com/qs-lzh/cineportal/internal/model"
	"gorm.io/gorm"
)

// PurchaseFilter narrows ListPurchases to one user and, optionally, one movie.
type PurchaseFilter struct {
	UserID  string
	MovieID *uint
}

type OrderRepo interface {
	ListPurchases(ctx context.Context, filter PurchaseFilter) ([]model.Purchase, error)
}

type orderRepoGorm struct {
	db *gorm.DB
}

var _ OrderRepo = (*orderRepoGorm)(nil)

func NewOrderRepoGorm(db *gorm.DB) *orderRepoGorm {
	return &orderRepoGorm{
		db: db,
	}
}

func (r *orderRepoGorm) WithTx(tx *gorm.DB) *orderRepoGorm {
	return &orderRepoGorm{
		db: tx,
	}
}

const purchaseColumns = `o.id AS order_id, oi.id AS order_item_id, o.user_id AS user_id,
	o.order_date AS order_date, oi.price AS price_paid,
	m.id AS movie_id, m.name AS movie_name, m.description AS movie_description,
	m.image_url AS movie_image_url, m.category AS movie_category, m.start_date AS movie_start_date,
	COALESCE(c.name, '') AS cinema_name, COALESCE(p.full_name, '') AS producer_name`

func (r *orderRepoGorm) ListPurchases(ctx context.Context, filter PurchaseFilter) ([]model.Purchase, error) {
	q := r.db.WithContext(ctx).
		Table("order_items AS oi").
		Select(purchaseColumns).
		Joins("JOIN orders o ON o.id = oi.order_id").
		Joins("JOIN movies m ON m.id = oi.movie_id").
		Joins("LEFT JOIN cinemas c ON c.id = m.cinema_id").
		Joins("LEFT JOIN producers p ON p.id = m.producer_id").
		Where("o.user_id = ?", filter.UserID)
	if filter.MovieID != nil {
		q = q.Where("oi.movie_id = ?", *filter.MovieID)
	}

	purchases := []model.Purchase{}
	if err := q.Order("o.order_date, oi.id").Scan(&purchases).Error; err != nil {
		return nil, err
	}
	return purchases, nil
}
