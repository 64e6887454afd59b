package domain

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/qs-lzh/cineportal/internal/model"
	"github.com/qs-lzh/cineportal/internal/repository"
	"github.com/qs-lzh/cineportal/internal/service"
)

// PurchaseWindow is how long every movie in an order stays watchable.
const PurchaseWindow = 7 * 24 * time.Hour

// WindowEnd is the last instant at which a purchase made at orderDate
// still grants access.
func WindowEnd(orderDate time.Time) time.Time {
	return orderDate.Add(PurchaseWindow)
}

// WatchDetails describes the purchase that grants access. Price is what the
// customer paid, not the movie's current price.
type WatchDetails struct {
	MovieID      uint                `json:"movie_id"`
	Name         string              `json:"name"`
	Description  string              `json:"description"`
	ImageURL     string              `json:"image_url"`
	Price        float64             `json:"price"`
	Category     model.MovieCategory `json:"category"`
	StartDate    time.Time           `json:"start_date"`
	OrderDate    time.Time           `json:"order_date"`
	PurchaseDate time.Time           `json:"purchase_date"`
	EndDate      time.Time           `json:"end_date"`
	Cinema       string              `json:"cinema"`
	Producer     string              `json:"producer"`
}

// Access is the outcome of an entitlement check. Watch is set only when
// Granted is true.
type Access struct {
	Granted bool          `json:"granted"`
	Watch   *WatchDetails `json:"watch,omitempty"`
}

type EntitlementService interface {
	CanWatch(ctx context.Context, userID string, movieID uint, now time.Time) (Access, error)
}

type entitlementService struct {
	orders repository.OrderRepo
	logger *zap.Logger
}

var _ EntitlementService = (*entitlementService)(nil)

func NewEntitlementService(store repository.Store, logger *zap.Logger) *entitlementService {
	return &entitlementService{
		orders: store.Orders(),
		logger: logger,
	}
}

// CanWatch grants access when any purchase of movieID by userID is still
// inside its window at now. The window end itself is inclusive. When
// several purchases qualify, the most recent order is reported.
// The returned error is always a store failure; being denied is not one.
func (s *entitlementService) CanWatch(ctx context.Context, userID string, movieID uint, now time.Time) (Access, error) {
	if userID == "" {
		return Access{}, nil
	}

	purchases, err := s.orders.ListPurchases(ctx, repository.PurchaseFilter{
		UserID:  userID,
		MovieID: &movieID,
	})
	if err != nil {
		s.logger.Error("failed to load purchases",
			zap.String("user_id", userID),
			zap.Uint("movie_id", movieID),
			zap.Error(err),
		)
		return Access{}, service.Classify(err)
	}

	var best *model.Purchase
	for i := range purchases {
		p := &purchases[i]
		if p.MovieID != movieID || now.After(WindowEnd(p.OrderDate)) {
			continue
		}
		if best == nil || p.OrderDate.After(best.OrderDate) ||
			(p.OrderDate.Equal(best.OrderDate) && p.OrderItemID > best.OrderItemID) {
			best = p
		}
	}
	if best == nil {
		return Access{}, nil
	}

	return Access{Granted: true, Watch: watchDetailsFrom(best)}, nil
}

func watchDetailsFrom(p *model.Purchase) *WatchDetails {
	return &WatchDetails{
		MovieID:      p.MovieID,
		Name:         p.MovieName,
		Description:  p.MovieDescription,
		ImageURL:     p.MovieImageURL,
		Price:        p.PricePaid,
		Category:     p.MovieCategory,
		StartDate:    p.MovieStartDate,
		OrderDate:    p.OrderDate,
		PurchaseDate: p.OrderDate,
		EndDate:      WindowEnd(p.OrderDate),
		Cinema:       p.CinemaName,
		Producer:     p.ProducerName,
	}
}
