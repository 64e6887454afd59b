package domain

import (
	"context"
	"errors"
	"time"

	"go.uber.org/zap"
	"golang.org/x/text/cases"
	"gorm.io/gorm"

	"github.com/qs-lzh/cineportal/internal/cache"
	"github.com/qs-lzh/cineportal/internal/model"
	"github.com/qs-lzh/cineportal/internal/repository"
	"github.com/qs-lzh/cineportal/internal/service"
)

// MovieDetail is a movie with everything it references.
type MovieDetail struct {
	Movie    model.Movie    `json:"movie"`
	Cinema   model.Cinema   `json:"cinema"`
	Producer model.Producer `json:"producer"`
	Actors   []model.Actor  `json:"actors"`
}

// PurchasedMovie is one row of a customer's purchase ledger.
type PurchasedMovie struct {
	MovieID      uint                `json:"movie_id"`
	Name         string              `json:"name"`
	Description  string              `json:"description"`
	ImageURL     string              `json:"image_url"`
	Price        float64             `json:"price"`
	Category     model.MovieCategory `json:"category"`
	PurchaseDate time.Time           `json:"purchase_date"`
}

// CatalogEntry is a catalog listing row.
type CatalogEntry struct {
	Movie  model.Movie  `json:"movie"`
	Cinema model.Cinema `json:"cinema"`
}

type CatalogQueryService interface {
	GetMovie(ctx context.Context, id uint) (*MovieDetail, error)
	ListPurchasedMovies(ctx context.Context, userID string) ([]PurchasedMovie, error)
	Filter(ctx context.Context, searchTerm string) ([]CatalogEntry, error)
	ListMovies(ctx context.Context) ([]CatalogEntry, error)
}

type catalogQueryService struct {
	store  repository.Store
	cache  cacheLayer
	logger *zap.Logger
}

var _ CatalogQueryService = (*catalogQueryService)(nil)

func NewCatalogQueryService(store repository.Store, catalogCache CatalogCache, cacheTTL time.Duration, logger *zap.Logger) *catalogQueryService {
	return &catalogQueryService{
		store:  store,
		cache:  newCacheLayer(catalogCache, cacheTTL, logger),
		logger: logger,
	}
}

// GetMovie reads the movie, its cinema, producer and actors from one
// snapshot, so an update committing meanwhile is seen entirely or not at all.
func (s *catalogQueryService) GetMovie(ctx context.Context, id uint) (*MovieDetail, error) {
	key, versionKey := cache.MakeMovieDetailKey(id), cache.MakeMovieVersionKey(id)

	var detail MovieDetail
	if s.cache.get(ctx, key, &detail) {
		return &detail, nil
	}
	// must be read before the snapshot opens
	version, cacheable := s.cache.version(ctx, versionKey)

	err := s.store.WithSnapshot(ctx, func(ctx context.Context, tx repository.Store) error {
		movie, err := tx.Movies().GetByID(ctx, id)
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return &service.NotFoundError{Entity: "Movie", ID: id}
			}
			return err
		}
		detail.Movie = *movie

		cinema, err := tx.Cinemas().GetByID(ctx, movie.CinemaID)
		if err != nil {
			return err
		}
		detail.Cinema = *cinema

		producer, err := tx.Producers().GetByID(ctx, movie.ProducerID)
		if err != nil {
			return err
		}
		detail.Producer = *producer

		links, err := tx.ActorMovies().ListByMovieID(ctx, id)
		if err != nil {
			return err
		}
		actorIDs := make([]uint, 0, len(links))
		for _, l := range links {
			actorIDs = append(actorIDs, l.ActorID)
		}
		detail.Actors, err = tx.Actors().ListByIDs(ctx, actorIDs)
		return err
	})
	if err != nil {
		return nil, service.Classify(err)
	}

	if cacheable {
		s.cache.setIfVersion(ctx, key, versionKey, version, detail)
	}
	return &detail, nil
}

// ListPurchasedMovies returns every order item the user owns, expired or
// not, oldest purchase first.
func (s *catalogQueryService) ListPurchasedMovies(ctx context.Context, userID string) ([]PurchasedMovie, error) {
	if userID == "" {
		return []PurchasedMovie{}, nil
	}

	purchases, err := s.store.Orders().ListPurchases(ctx, repository.PurchaseFilter{UserID: userID})
	if err != nil {
		s.logger.Error("failed to load purchase ledger", zap.String("user_id", userID), zap.Error(err))
		return nil, service.Classify(err)
	}

	movies := make([]PurchasedMovie, 0, len(purchases))
	for _, p := range purchases {
		movies = append(movies, PurchasedMovie{
			MovieID:      p.MovieID,
			Name:         p.MovieName,
			Description:  p.MovieDescription,
			ImageURL:     p.MovieImageURL,
			Price:        p.PricePaid,
			Category:     p.MovieCategory,
			PurchaseDate: p.OrderDate,
		})
	}
	return movies, nil
}

func (s *catalogQueryService) ListMovies(ctx context.Context) ([]CatalogEntry, error) {
	return s.Filter(ctx, "")
}

// Filter keeps the movies whose name or description equals searchTerm
// ignoring case. It is an equality test, not a substring search. An empty
// term returns the whole catalog.
func (s *catalogQueryService) Filter(ctx context.Context, searchTerm string) ([]CatalogEntry, error) {
	var entries []CatalogEntry
	err := s.store.WithSnapshot(ctx, func(ctx context.Context, tx repository.Store) error {
		movies, err := tx.Movies().ListAll(ctx)
		if err != nil {
			return err
		}
		cinemas, err := tx.Cinemas().ListAll(ctx)
		if err != nil {
			return err
		}
		byID := make(map[uint]model.Cinema, len(cinemas))
		for _, c := range cinemas {
			byID[c.ID] = c
		}

		fold := cases.Fold()
		term := fold.String(searchTerm)
		entries = make([]CatalogEntry, 0, len(movies))
		for _, m := range movies {
			if searchTerm != "" && fold.String(m.Name) != term && fold.String(m.Description) != term {
				continue
			}
			entries = append(entries, CatalogEntry{Movie: m, Cinema: byID[m.CinemaID]})
		}
		return nil
	})
	if err != nil {
		return nil, service.Classify(err)
	}
	return entries, nil
}
