package repository

import (
	"context"
	"database/sql"

	"gorm.io/gorm"

	"github.com/qs-lzh/cineportal/internal/model"
)

// Store is the narrow view of the catalog database the services work
// through. Repositories returned by a Store obtained inside WithTransaction
// read and write within that transaction.
type Store interface {
	Movies() MovieRepo
	Actors() ActorRepo
	Cinemas() CinemaRepo
	Producers() ProducerRepo
	ActorMovies() ActorMovieRepo
	Orders() OrderRepo

	// WithTransaction runs fn in one transaction. It commits when fn
	// returns nil and rolls back every write issued through tx otherwise.
	// The transaction is not bound to ctx cancellation: fn receives a
	// context detached from it, and once started the transaction runs to
	// commit or rollback.
	WithTransaction(ctx context.Context, fn func(ctx context.Context, tx Store) error) error

	// WithSnapshot runs fn in a read-only transaction whose reads all see
	// the same committed state.
	WithSnapshot(ctx context.Context, fn func(ctx context.Context, tx Store) error) error
}

type storeGorm struct {
	db *gorm.DB

	movies      *movieRepoGorm
	actors      *referenceRepoGorm[model.Actor]
	cinemas     *referenceRepoGorm[model.Cinema]
	producers   *referenceRepoGorm[model.Producer]
	actorMovies *actorMovieRepoGorm
	orders      *orderRepoGorm
}

var _ Store = (*storeGorm)(nil)

func NewStoreGorm(db *gorm.DB) *storeGorm {
	return &storeGorm{
		db:          db,
		movies:      NewMovieRepoGorm(db),
		actors:      NewActorRepoGorm(db),
		cinemas:     NewCinemaRepoGorm(db),
		producers:   NewProducerRepoGorm(db),
		actorMovies: NewActorMovieRepoGorm(db),
		orders:      NewOrderRepoGorm(db),
	}
}

func (s *storeGorm) withTx(tx *gorm.DB) *storeGorm {
	return &storeGorm{
		db:          tx,
		movies:      s.movies.WithTx(tx),
		actors:      s.actors.WithTx(tx),
		cinemas:     s.cinemas.WithTx(tx),
		producers:   s.producers.WithTx(tx),
		actorMovies: s.actorMovies.WithTx(tx),
		orders:      s.orders.WithTx(tx),
	}
}

func (s *storeGorm) Movies() MovieRepo           { return s.movies }
func (s *storeGorm) Actors() ActorRepo           { return s.actors }
func (s *storeGorm) Cinemas() CinemaRepo         { return s.cinemas }
func (s *storeGorm) Producers() ProducerRepo     { return s.producers }
func (s *storeGorm) ActorMovies() ActorMovieRepo { return s.actorMovies }
func (s *storeGorm) Orders() OrderRepo           { return s.orders }

func (s *storeGorm) WithTransaction(ctx context.Context, fn func(ctx context.Context, tx Store) error) error {
	ctx = context.WithoutCancel(ctx)
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return fn(ctx, s.withTx(tx))
	})
}

func (s *storeGorm) WithSnapshot(ctx context.Context, fn func(ctx context.Context, tx Store) error) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return fn(ctx, s.withTx(tx))
	}, &sql.TxOptions{Isolation: sql.LevelRepeatableRead, ReadOnly: true})
}
