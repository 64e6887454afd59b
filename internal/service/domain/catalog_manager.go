package domain

import (
	"context"
	"errors"
	"sort"
	"time"

	"github.com/go-playground/validator/v10"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
	"golang.org/x/text/cases"
	"gorm.io/gorm"

	"github.com/qs-lzh/cineportal/internal/cache"
	"github.com/qs-lzh/cineportal/internal/model"
	"github.com/qs-lzh/cineportal/internal/mq"
	"github.com/qs-lzh/cineportal/internal/repository"
	"github.com/qs-lzh/cineportal/internal/service"
)

// MovieFields are the editable scalar fields of a movie.
type MovieFields struct {
	Name        string              `json:"name" validate:"required,max=255"`
	Description string              `json:"description" validate:"required"`
	Price       float64             `json:"price" validate:"gte=0"`
	ImageURL    string              `json:"image_url" validate:"omitempty,max=512"`
	StartDate   time.Time           `json:"start_date" validate:"required"`
	Category    model.MovieCategory `json:"category" validate:"required,oneof=Action Comedy Drama Documentary Cartoon Horror"`
	CinemaID    uint                `json:"cinema_id" validate:"required"`
	ProducerID  uint                `json:"producer_id" validate:"required"`
}

// DropdownData is the reference data offered when editing a movie.
type DropdownData struct {
	Actors    []model.Actor    `json:"actors"`
	Cinemas   []model.Cinema   `json:"cinemas"`
	Producers []model.Producer `json:"producers"`
}

type CatalogManager interface {
	CreateMovie(ctx context.Context, fields MovieFields, actorIDs []uint) (uint, error)
	UpdateMovie(ctx context.Context, id uint, fields MovieFields, actorIDs []uint) error
	GetDropdownReferenceData(ctx context.Context) (*DropdownData, error)
}

type catalogManager struct {
	store    repository.Store
	cache    cacheLayer
	events   CatalogEvents
	validate *validator.Validate
	tracer   trace.Tracer
	logger   *zap.Logger
}

var _ CatalogManager = (*catalogManager)(nil)

// NewCatalogManager builds the write side of the catalog. catalogCache and
// events may be nil.
func NewCatalogManager(store repository.Store, catalogCache CatalogCache, cacheTTL time.Duration, events CatalogEvents, logger *zap.Logger) *catalogManager {
	return &catalogManager{
		store:    store,
		cache:    newCacheLayer(catalogCache, cacheTTL, logger),
		events:   events,
		validate: validator.New(validator.WithRequiredStructEnabled()),
		tracer:   otel.Tracer("cineportal/catalog"),
		logger:   logger,
	}
}

func (m *catalogManager) CreateMovie(ctx context.Context, fields MovieFields, actorIDs []uint) (uint, error) {
	ctx, span := m.tracer.Start(ctx, "catalog.create_movie",
		trace.WithAttributes(attribute.Int("actor.count", len(actorIDs))),
	)
	defer span.End()

	if err := m.validate.Struct(fields); err != nil {
		return 0, m.fail(span, &service.ValidationError{Err: err})
	}
	actorIDs = uniqueIDs(actorIDs)

	var id uint
	err := m.store.WithTransaction(ctx, func(ctx context.Context, tx repository.Store) error {
		if err := checkReferences(ctx, tx, fields.CinemaID, fields.ProducerID, actorIDs); err != nil {
			return err
		}

		movie := &model.Movie{}
		fields.applyTo(movie)
		if err := tx.Movies().Create(ctx, movie); err != nil {
			return err
		}
		id = movie.ID

		return tx.ActorMovies().Create(ctx, linksFor(id, actorIDs))
	})
	if err != nil {
		err = service.Classify(err)
		m.logger.Warn("create movie rolled back", zap.Error(err))
		return 0, m.fail(span, err)
	}

	span.SetAttributes(attribute.Int64("movie.id", int64(id)))
	m.logger.Info("movie created", zap.Uint("movie_id", id), zap.Int("actors", len(actorIDs)))
	m.publish(ctx, id, mq.MovieCreated)
	return id, nil
}

// UpdateMovie replaces the movie's scalar fields and its whole actor set in
// one transaction. A missing movie is reported before invalid fields. An
// empty ImageURL keeps the stored image.
func (m *catalogManager) UpdateMovie(ctx context.Context, id uint, fields MovieFields, actorIDs []uint) error {
	ctx, span := m.tracer.Start(ctx, "catalog.update_movie",
		trace.WithAttributes(
			attribute.Int64("movie.id", int64(id)),
			attribute.Int("actor.count", len(actorIDs)),
		),
	)
	defer span.End()

	actorIDs = uniqueIDs(actorIDs)

	err := m.store.WithTransaction(ctx, func(ctx context.Context, tx repository.Store) error {
		movie, err := tx.Movies().GetByID(ctx, id)
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return &service.NotFoundError{Entity: "Movie", ID: id}
			}
			return err
		}
		if err := m.validate.Struct(fields); err != nil {
			return &service.ValidationError{Err: err}
		}
		if err := checkReferences(ctx, tx, fields.CinemaID, fields.ProducerID, actorIDs); err != nil {
			return err
		}

		fields.applyTo(movie)
		if err := tx.Movies().Update(ctx, movie); err != nil {
			return err
		}

		if err := tx.ActorMovies().DeleteByMovieID(ctx, id); err != nil {
			return err
		}
		return tx.ActorMovies().Create(ctx, linksFor(id, actorIDs))
	})
	if err != nil {
		err = service.Classify(err)
		m.logger.Warn("update movie rolled back", zap.Uint("movie_id", id), zap.Error(err))
		return m.fail(span, err)
	}

	m.logger.Info("movie updated", zap.Uint("movie_id", id), zap.Int("actors", len(actorIDs)))
	m.cache.invalidateMovie(context.WithoutCancel(ctx), id)
	m.publish(ctx, id, mq.MovieUpdated)
	return nil
}

func (m *catalogManager) GetDropdownReferenceData(ctx context.Context) (*DropdownData, error) {
	ctx, span := m.tracer.Start(ctx, "catalog.dropdowns")
	defer span.End()

	var data DropdownData
	if m.cache.get(ctx, cache.DropdownsKey, &data) {
		span.SetAttributes(attribute.Bool("cache.hit", true))
		return &data, nil
	}

	actors, err := m.store.Actors().ListAll(ctx)
	if err != nil {
		return nil, m.fail(span, service.Classify(err))
	}
	cinemas, err := m.store.Cinemas().ListAll(ctx)
	if err != nil {
		return nil, m.fail(span, service.Classify(err))
	}
	producers, err := m.store.Producers().ListAll(ctx)
	if err != nil {
		return nil, m.fail(span, service.Classify(err))
	}

	sortByName(actors, func(a model.Actor) string { return a.FullName })
	sortByName(cinemas, func(c model.Cinema) string { return c.Name })
	sortByName(producers, func(p model.Producer) string { return p.FullName })

	data = DropdownData{Actors: actors, Cinemas: cinemas, Producers: producers}
	m.cache.set(ctx, cache.DropdownsKey, data)
	return &data, nil
}

// publish announces a committed write. It cannot undo the commit, so a
// failure is only logged.
func (m *catalogManager) publish(ctx context.Context, movieID uint, action mq.MovieAction) {
	ctx = context.WithoutCancel(ctx)
	if m.events == nil {
		return
	}
	if err := m.events.PublishMovieChanged(ctx, movieID, action); err != nil {
		m.logger.Warn("failed to publish movie change",
			zap.Uint("movie_id", movieID),
			zap.String("action", string(action)),
			zap.Error(err),
		)
	}
}

func (m *catalogManager) fail(span trace.Span, err error) error {
	span.RecordError(err)
	span.SetStatus(codes.Error, err.Error())
	return err
}

func (f MovieFields) applyTo(movie *model.Movie) {
	movie.Name = f.Name
	movie.Description = f.Description
	movie.Price = f.Price
	if f.ImageURL != "" {
		movie.ImageURL = f.ImageURL
	}
	movie.StartDate = f.StartDate
	movie.Category = f.Category
	movie.CinemaID = f.CinemaID
	movie.ProducerID = f.ProducerID
}

func checkReferences(ctx context.Context, tx repository.Store, cinemaID, producerID uint, actorIDs []uint) error {
	if _, err := tx.Cinemas().GetByID(ctx, cinemaID); err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return &service.ReferenceError{Entity: "Cinema", ID: cinemaID}
		}
		return err
	}
	if _, err := tx.Producers().GetByID(ctx, producerID); err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return &service.ReferenceError{Entity: "Producer", ID: producerID}
		}
		return err
	}
	if len(actorIDs) == 0 {
		return nil
	}

	actors, err := tx.Actors().ListByIDs(ctx, actorIDs)
	if err != nil {
		return err
	}
	if len(actors) == len(actorIDs) {
		return nil
	}
	found := make(map[uint]struct{}, len(actors))
	for _, a := range actors {
		found[a.ID] = struct{}{}
	}
	for _, id := range actorIDs {
		if _, ok := found[id]; !ok {
			return &service.ReferenceError{Entity: "Actor", ID: id}
		}
	}
	return nil
}

// uniqueIDs drops repeated ids, keeping first-seen order.
func uniqueIDs(ids []uint) []uint {
	seen := make(map[uint]struct{}, len(ids))
	out := make([]uint, 0, len(ids))
	for _, id := range ids {
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	return out
}

func linksFor(movieID uint, actorIDs []uint) []model.ActorMovie {
	links := make([]model.ActorMovie, 0, len(actorIDs))
	for _, actorID := range actorIDs {
		links = append(links, model.ActorMovie{MovieID: movieID, ActorID: actorID})
	}
	return links
}

// sortByName orders items by case-folded display name. Items come in id
// order and the sort is stable, so equal names keep storage order.
func sortByName[T any](items []T, name func(T) string) {
	fold := cases.Fold()
	keys := make(map[int]string, len(items))
	idx := make([]int, len(items))
	for i := range items {
		idx[i] = i
		keys[i] = fold.String(name(items[i]))
	}
	sort.SliceStable(idx, func(a, b int) bool {
		return keys[idx[a]] < keys[idx[b]]
	})
	sorted := make([]T, len(items))
	for i, j := range idx {
		sorted[i] = items[j]
	}
	copy(items, sorted)
}
