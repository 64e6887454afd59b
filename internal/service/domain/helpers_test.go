package domain

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/qs-lzh/cineportal/internal/cache"
	"github.com/qs-lzh/cineportal/internal/model"
	"github.com/qs-lzh/cineportal/internal/mq"
	"github.com/qs-lzh/cineportal/internal/repository"
	"github.com/qs-lzh/cineportal/internal/repository/memstore"
)

var errInjected = errors.New("injected failure")

type catalogFixture struct {
	store     *memstore.Store
	cinemas   []model.Cinema
	producers []model.Producer
	actors    []model.Actor
}

func newCatalogFixture(t require.TestingT) *catalogFixture {
	s := memstore.New()
	f := &catalogFixture{store: s}
	for _, name := range []string{"Odeon", "Rex"} {
		f.cinemas = append(f.cinemas, s.InsertCinema(name))
	}
	for _, name := range []string{"Kathleen Kennedy", "Kevin Feige"} {
		f.producers = append(f.producers, s.InsertProducer(name))
	}
	for i := 0; i < 6; i++ {
		f.actors = append(f.actors, s.InsertActor(fmt.Sprintf("Actor %d", i)))
	}
	require.NotEmpty(t, f.actors)
	return f
}

func (f *catalogFixture) fields(name string) MovieFields {
	return MovieFields{
		Name:        name,
		Description: name + " description",
		Price:       9.99,
		ImageURL:    "/images/" + name + ".jpg",
		StartDate:   time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC),
		Category:    model.CategoryDrama,
		CinemaID:    f.cinemas[0].ID,
		ProducerID:  f.producers[0].ID,
	}
}

func (f *catalogFixture) actorIDs(idx ...int) []uint {
	ids := make([]uint, 0, len(idx))
	for _, i := range idx {
		ids = append(ids, f.actors[i].ID)
	}
	return ids
}

func (f *catalogFixture) manager(store repository.Store) *catalogManager {
	return NewCatalogManager(store, nil, 0, nil, zap.NewNop())
}

func (f *catalogFixture) query() *catalogQueryService {
	return NewCatalogQueryService(f.store, nil, 0, zap.NewNop())
}

func linkedActorIDs(t require.TestingT, store repository.Store, movieID uint) []uint {
	links, err := store.ActorMovies().ListByMovieID(context.Background(), movieID)
	require.NoError(t, err)
	ids := make([]uint, 0, len(links))
	for _, l := range links {
		ids = append(ids, l.ActorID)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids
}

func sortedIDs(ids []uint) []uint {
	out := append([]uint{}, uniqueIDs(ids)...)
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

// faultyStore fails one chosen step of the movie write path. Transactions
// opened through it hand out faulty views of the transaction.
type faultyStore struct {
	repository.Store
	failOn string
}

const (
	failMovieUpdate = "movie.update"
	failMovieCreate = "movie.create"
	failLinkDelete  = "links.delete"
	failLinkCreate  = "links.create"
)

func (f *faultyStore) Movies() repository.MovieRepo {
	return faultyMovies{MovieRepo: f.Store.Movies(), failOn: f.failOn}
}

func (f *faultyStore) ActorMovies() repository.ActorMovieRepo {
	return faultyLinks{ActorMovieRepo: f.Store.ActorMovies(), failOn: f.failOn}
}

func (f *faultyStore) WithTransaction(ctx context.Context, fn func(ctx context.Context, tx repository.Store) error) error {
	return f.Store.WithTransaction(ctx, func(ctx context.Context, tx repository.Store) error {
		return fn(ctx, &faultyStore{Store: tx, failOn: f.failOn})
	})
}

type faultyMovies struct {
	repository.MovieRepo
	failOn string
}

func (m faultyMovies) Create(ctx context.Context, movie *model.Movie) error {
	if m.failOn == failMovieCreate {
		return errInjected
	}
	return m.MovieRepo.Create(ctx, movie)
}

func (m faultyMovies) Update(ctx context.Context, movie *model.Movie) error {
	if m.failOn == failMovieUpdate {
		return errInjected
	}
	return m.MovieRepo.Update(ctx, movie)
}

type faultyLinks struct {
	repository.ActorMovieRepo
	failOn string
}

func (l faultyLinks) DeleteByMovieID(ctx context.Context, movieID uint) error {
	if l.failOn == failLinkDelete {
		return errInjected
	}
	return l.ActorMovieRepo.DeleteByMovieID(ctx, movieID)
}

// Create writes the links and then fails, so the rollback has real writes
// to undo.
func (l faultyLinks) Create(ctx context.Context, links []model.ActorMovie) error {
	if l.failOn == failLinkCreate {
		if err := l.ActorMovieRepo.Create(ctx, links); err != nil {
			return err
		}
		return errInjected
	}
	return l.ActorMovieRepo.Create(ctx, links)
}

// memCache is a CatalogCache that stores JSON in a map.
type memCache struct {
	mu       sync.Mutex
	entries  map[string][]byte
	versions map[string]int64
	deletes  []string
}

func newMemCache() *memCache {
	return &memCache{entries: map[string][]byte{}, versions: map[string]int64{}}
}

func (c *memCache) Version(ctx context.Context, versionKey string) (int64, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.versions[versionKey], nil
}

func (c *memCache) BumpVersion(ctx context.Context, versionKey string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.versions[versionKey]++
	return nil
}

func (c *memCache) SetIfVersion(ctx context.Context, key, versionKey string, version int64, value any, expiration time.Duration) (bool, error) {
	data, err := json.Marshal(value)
	if err != nil {
		return false, err
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.versions[versionKey] != version {
		return false, nil
	}
	c.entries[key] = data
	return true, nil
}

func (c *memCache) Get(ctx context.Context, key string, dest any) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	data, ok := c.entries[key]
	if !ok {
		return cache.ErrMiss
	}
	return json.Unmarshal(data, dest)
}

func (c *memCache) Set(ctx context.Context, key string, value any, expiration time.Duration) error {
	data, err := json.Marshal(value)
	if err != nil {
		return err
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries[key] = data
	return nil
}

func (c *memCache) Delete(ctx context.Context, keys ...string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, k := range keys {
		delete(c.entries, k)
		c.deletes = append(c.deletes, k)
	}
	return nil
}

func (c *memCache) has(key string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	_, ok := c.entries[key]
	return ok
}

type movieChange struct {
	movieID uint
	action  mq.MovieAction
}

type recordingEvents struct {
	mu      sync.Mutex
	changes []movieChange
	err     error
}

func (e *recordingEvents) PublishMovieChanged(ctx context.Context, movieID uint, action mq.MovieAction) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.err != nil {
		return e.err
	}
	e.changes = append(e.changes, movieChange{movieID: movieID, action: action})
	return nil
}

// racingSnapshotStore runs onSnapshotDone once, right after the first
// snapshot read finishes and before its caller goes on.
type racingSnapshotStore struct {
	repository.Store
	once           sync.Once
	onSnapshotDone func()
}

func (r *racingSnapshotStore) WithSnapshot(ctx context.Context, fn func(ctx context.Context, tx repository.Store) error) error {
	err := r.Store.WithSnapshot(ctx, fn)
	r.once.Do(r.onSnapshotDone)
	return err
}

// brokenOrdersStore fails every purchase lookup.
type brokenOrdersStore struct {
	repository.Store
}

func (b *brokenOrdersStore) Orders() repository.OrderRepo {
	return brokenOrders{OrderRepo: b.Store.Orders()}
}

type brokenOrders struct {
	repository.OrderRepo
}

func (brokenOrders) ListPurchases(ctx context.Context, filter repository.PurchaseFilter) ([]model.Purchase, error) {
	return nil, errInjected
}
