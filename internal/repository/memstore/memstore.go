// Package memstore is an in-process repository.Store. Transactions work on a
// private copy of the data that replaces the shared copy on commit, so
// readers never see a transaction's writes before it commits.
package memstore

import (
	"context"
	"maps"
	"slices"
	"sort"
	"sync"
	"time"

	"gorm.io/gorm"

	"github.com/qs-lzh/cineportal/internal/model"
	"github.com/qs-lzh/cineportal/internal/repository"
)

type linkKey struct {
	movieID uint
	actorID uint
}

type state struct {
	movies    map[uint]model.Movie
	actors    map[uint]model.Actor
	cinemas   map[uint]model.Cinema
	producers map[uint]model.Producer
	links     map[linkKey]struct{}
	orders    map[uint]model.Order
	items     map[uint]model.OrderItem
	lastID    uint
}

func newState() *state {
	return &state{
		movies:    map[uint]model.Movie{},
		actors:    map[uint]model.Actor{},
		cinemas:   map[uint]model.Cinema{},
		producers: map[uint]model.Producer{},
		links:     map[linkKey]struct{}{},
		orders:    map[uint]model.Order{},
		items:     map[uint]model.OrderItem{},
	}
}

func (s *state) clone() *state {
	return &state{
		movies:    maps.Clone(s.movies),
		actors:    maps.Clone(s.actors),
		cinemas:   maps.Clone(s.cinemas),
		producers: maps.Clone(s.producers),
		links:     maps.Clone(s.links),
		orders:    maps.Clone(s.orders),
		items:     maps.Clone(s.items),
		lastID:    s.lastID,
	}
}

func (s *state) nextID() uint {
	s.lastID++
	return s.lastID
}

// access hands a state to repository code, either the shared one (behind
// the store locks) or a transaction's private copy.
type access interface {
	read(fn func(st *state) error) error
	write(fn func(st *state) error) error
}

type Store struct {
	txMu sync.Mutex   // one writer at a time
	mu   sync.RWMutex // guards root
	root *state
}

var _ repository.Store = (*Store)(nil)

func New() *Store {
	return &Store{root: newState()}
}

func (s *Store) read(fn func(st *state) error) error {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return fn(s.root)
}

// write applies fn as its own small transaction.
func (s *Store) write(fn func(st *state) error) error {
	return s.WithTransaction(context.Background(), func(_ context.Context, tx repository.Store) error {
		return fn(tx.(*txStore).st)
	})
}

func (s *Store) Movies() repository.MovieRepo           { return movieRepo{s} }
func (s *Store) Actors() repository.ActorRepo           { return actorRepo{s} }
func (s *Store) Cinemas() repository.CinemaRepo         { return cinemaRepo{s} }
func (s *Store) Producers() repository.ProducerRepo     { return producerRepo{s} }
func (s *Store) ActorMovies() repository.ActorMovieRepo { return actorMovieRepo{s} }
func (s *Store) Orders() repository.OrderRepo           { return orderRepo{s} }

func (s *Store) WithTransaction(ctx context.Context, fn func(ctx context.Context, tx repository.Store) error) error {
	ctx = context.WithoutCancel(ctx)

	s.txMu.Lock()
	defer s.txMu.Unlock()

	s.mu.RLock()
	tx := &txStore{st: s.root.clone()}
	s.mu.RUnlock()

	if err := fn(ctx, tx); err != nil {
		return err
	}

	s.mu.Lock()
	s.root = tx.st
	s.mu.Unlock()
	return nil
}

// WithSnapshot hands fn a private copy of the committed state. Writes made
// through it are discarded.
func (s *Store) WithSnapshot(ctx context.Context, fn func(ctx context.Context, tx repository.Store) error) error {
	s.mu.RLock()
	tx := &txStore{st: s.root.clone()}
	s.mu.RUnlock()
	return fn(ctx, tx)
}

// txStore is the view handed to a transaction body.
type txStore struct {
	st *state
}

func (t *txStore) read(fn func(st *state) error) error  { return fn(t.st) }
func (t *txStore) write(fn func(st *state) error) error { return fn(t.st) }

func (t *txStore) Movies() repository.MovieRepo           { return movieRepo{t} }
func (t *txStore) Actors() repository.ActorRepo           { return actorRepo{t} }
func (t *txStore) Cinemas() repository.CinemaRepo         { return cinemaRepo{t} }
func (t *txStore) Producers() repository.ProducerRepo     { return producerRepo{t} }
func (t *txStore) ActorMovies() repository.ActorMovieRepo { return actorMovieRepo{t} }
func (t *txStore) Orders() repository.OrderRepo           { return orderRepo{t} }

// WithTransaction nests as a savepoint: a failing fn leaves the outer
// transaction as it was before the call.
func (t *txStore) WithTransaction(ctx context.Context, fn func(ctx context.Context, tx repository.Store) error) error {
	saved := t.st.clone()
	if err := fn(ctx, t); err != nil {
		t.st = saved
		return err
	}
	return nil
}

func (t *txStore) WithSnapshot(ctx context.Context, fn func(ctx context.Context, tx repository.Store) error) error {
	return fn(ctx, &txStore{st: t.st.clone()})
}

/*
* seeding: reference data and purchase history are owned by other systems
 */

func (s *Store) InsertCinema(name string) model.Cinema {
	var c model.Cinema
	_ = s.write(func(st *state) error {
		c = model.Cinema{ID: st.nextID(), Name: name}
		st.cinemas[c.ID] = c
		return nil
	})
	return c
}

func (s *Store) InsertProducer(fullName string) model.Producer {
	var p model.Producer
	_ = s.write(func(st *state) error {
		p = model.Producer{ID: st.nextID(), FullName: fullName}
		st.producers[p.ID] = p
		return nil
	})
	return p
}

func (s *Store) InsertActor(fullName string) model.Actor {
	var a model.Actor
	_ = s.write(func(st *state) error {
		a = model.Actor{ID: st.nextID(), FullName: fullName}
		st.actors[a.ID] = a
		return nil
	})
	return a
}

// InsertOrder records a purchase. Item ids and order ids are assigned here.
func (s *Store) InsertOrder(userID string, orderDate time.Time, items ...model.OrderItem) (model.Order, error) {
	var o model.Order
	err := s.write(func(st *state) error {
		for _, it := range items {
			if _, ok := st.movies[it.MovieID]; !ok {
				return gorm.ErrForeignKeyViolated
			}
		}
		o = model.Order{ID: st.nextID(), UserID: userID, OrderDate: orderDate}
		for _, it := range items {
			it.ID = st.nextID()
			it.OrderID = o.ID
			it.Movie = nil
			st.items[it.ID] = it
			o.Items = append(o.Items, it)
		}
		stored := o
		stored.Items = nil
		st.orders[o.ID] = stored
		return nil
	})
	return o, err
}

/*
* repositories
 */

type movieRepo struct{ a access }

func (r movieRepo) Create(ctx context.Context, movie *model.Movie) error {
	return r.a.write(func(st *state) error {
		if err := st.checkMovieRefs(movie); err != nil {
			return err
		}
		movie.ID = st.nextID()
		stored := *movie
		stored.Cinema, stored.Producer = nil, nil
		st.movies[movie.ID] = stored
		return nil
	})
}

func (r movieRepo) GetByID(ctx context.Context, id uint) (*model.Movie, error) {
	var out *model.Movie
	err := r.a.read(func(st *state) error {
		m, ok := st.movies[id]
		if !ok {
			return gorm.ErrRecordNotFound
		}
		out = &m
		return nil
	})
	return out, err
}

func (r movieRepo) Update(ctx context.Context, movie *model.Movie) error {
	return r.a.write(func(st *state) error {
		if _, ok := st.movies[movie.ID]; !ok {
			return gorm.ErrRecordNotFound
		}
		if err := st.checkMovieRefs(movie); err != nil {
			return err
		}
		stored := *movie
		stored.Cinema, stored.Producer = nil, nil
		st.movies[movie.ID] = stored
		return nil
	})
}

func (r movieRepo) ListAll(ctx context.Context) ([]model.Movie, error) {
	var out []model.Movie
	err := r.a.read(func(st *state) error {
		out = sortedValues(st.movies)
		return nil
	})
	return out, err
}

func (st *state) checkMovieRefs(m *model.Movie) error {
	if _, ok := st.cinemas[m.CinemaID]; !ok {
		return gorm.ErrForeignKeyViolated
	}
	if _, ok := st.producers[m.ProducerID]; !ok {
		return gorm.ErrForeignKeyViolated
	}
	return nil
}

type actorRepo struct{ a access }

func (r actorRepo) GetByID(ctx context.Context, id uint) (*model.Actor, error) {
	return getByID(r.a, func(st *state) map[uint]model.Actor { return st.actors }, id)
}

func (r actorRepo) ListByIDs(ctx context.Context, ids []uint) ([]model.Actor, error) {
	out := []model.Actor{}
	err := r.a.read(func(st *state) error {
		for _, a := range sortedValues(st.actors) {
			if slices.Contains(ids, a.ID) {
				out = append(out, a)
			}
		}
		return nil
	})
	return out, err
}

func (r actorRepo) ListAll(ctx context.Context) ([]model.Actor, error) {
	return listAll(r.a, func(st *state) map[uint]model.Actor { return st.actors })
}

type cinemaRepo struct{ a access }

func (r cinemaRepo) GetByID(ctx context.Context, id uint) (*model.Cinema, error) {
	return getByID(r.a, func(st *state) map[uint]model.Cinema { return st.cinemas }, id)
}

func (r cinemaRepo) ListAll(ctx context.Context) ([]model.Cinema, error) {
	return listAll(r.a, func(st *state) map[uint]model.Cinema { return st.cinemas })
}

type producerRepo struct{ a access }

func (r producerRepo) GetByID(ctx context.Context, id uint) (*model.Producer, error) {
	return getByID(r.a, func(st *state) map[uint]model.Producer { return st.producers }, id)
}

func (r producerRepo) ListAll(ctx context.Context) ([]model.Producer, error) {
	return listAll(r.a, func(st *state) map[uint]model.Producer { return st.producers })
}

type actorMovieRepo struct{ a access }

func (r actorMovieRepo) ListByMovieID(ctx context.Context, movieID uint) ([]model.ActorMovie, error) {
	out := []model.ActorMovie{}
	err := r.a.read(func(st *state) error {
		for k := range st.links {
			if k.movieID == movieID {
				out = append(out, model.ActorMovie{MovieID: k.movieID, ActorID: k.actorID})
			}
		}
		return nil
	})
	sort.Slice(out, func(i, j int) bool { return out[i].ActorID < out[j].ActorID })
	return out, err
}

func (r actorMovieRepo) Create(ctx context.Context, links []model.ActorMovie) error {
	return r.a.write(func(st *state) error {
		for _, l := range links {
			if _, ok := st.movies[l.MovieID]; !ok {
				return gorm.ErrForeignKeyViolated
			}
			if _, ok := st.actors[l.ActorID]; !ok {
				return gorm.ErrForeignKeyViolated
			}
			k := linkKey{movieID: l.MovieID, actorID: l.ActorID}
			if _, dup := st.links[k]; dup {
				return gorm.ErrDuplicatedKey
			}
			st.links[k] = struct{}{}
		}
		return nil
	})
}

func (r actorMovieRepo) DeleteByMovieID(ctx context.Context, movieID uint) error {
	return r.a.write(func(st *state) error {
		for k := range st.links {
			if k.movieID == movieID {
				delete(st.links, k)
			}
		}
		return nil
	})
}

type orderRepo struct{ a access }

func (r orderRepo) ListPurchases(ctx context.Context, filter repository.PurchaseFilter) ([]model.Purchase, error) {
	out := []model.Purchase{}
	err := r.a.read(func(st *state) error {
		for _, it := range sortedValues(st.items) {
			o := st.orders[it.OrderID]
			if o.UserID != filter.UserID {
				continue
			}
			if filter.MovieID != nil && it.MovieID != *filter.MovieID {
				continue
			}
			m, ok := st.movies[it.MovieID]
			if !ok {
				continue
			}
			out = append(out, model.Purchase{
				OrderID:          o.ID,
				OrderItemID:      it.ID,
				UserID:           o.UserID,
				OrderDate:        o.OrderDate,
				PricePaid:        it.Price,
				MovieID:          m.ID,
				MovieName:        m.Name,
				MovieDescription: m.Description,
				MovieImageURL:    m.ImageURL,
				MovieCategory:    m.Category,
				MovieStartDate:   m.StartDate,
				CinemaName:       st.cinemas[m.CinemaID].Name,
				ProducerName:     st.producers[m.ProducerID].FullName,
			})
		}
		return nil
	})
	sort.SliceStable(out, func(i, j int) bool { return out[i].OrderDate.Before(out[j].OrderDate) })
	return out, err
}

/*
* helpers
 */

func sortedValues[T any](m map[uint]T) []T {
	keys := slices.Sorted(maps.Keys(m))
	out := make([]T, 0, len(keys))
	for _, k := range keys {
		out = append(out, m[k])
	}
	return out
}

func getByID[T any](a access, table func(st *state) map[uint]T, id uint) (*T, error) {
	var out *T
	err := a.read(func(st *state) error {
		v, ok := table(st)[id]
		if !ok {
			return gorm.ErrRecordNotFound
		}
		out = &v
		return nil
	})
	return out, err
}

func listAll[T any](a access, table func(st *state) map[uint]T) ([]T, error) {
	var out []T
	err := a.read(func(st *state) error {
		out = sortedValues(table(st))
		return nil
	})
	return out, err
}
