package app

import (
	"errors"
	"fmt"

	amqp "github.com/rabbitmq/amqp091-go"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/qs-lzh/cineportal/config"
	"github.com/qs-lzh/cineportal/internal/cache"
	"github.com/qs-lzh/cineportal/internal/mq"
	"github.com/qs-lzh/cineportal/internal/repository"
	"github.com/qs-lzh/cineportal/internal/repository/memstore"
	"github.com/qs-lzh/cineportal/internal/service/domain"
	"github.com/qs-lzh/cineportal/internal/service/workflow"
)

type App struct {
	Config *config.Config

	DB        *gorm.DB
	Cache     *cache.RedisCache
	Logger    *zap.Logger
	MQConn    *amqp.Connection
	Publisher *mq.Publisher

	Store repository.Store

	CatalogManager      domain.CatalogManager
	EntitlementService  domain.EntitlementService
	CatalogQueryService domain.CatalogQueryService

	CatalogWorkflow *workflow.CatalogWorkflow
}

// New wires the services. db nil selects the in-process store, loaded from
// config.SeedFile when set. redisCache and mqConn are optional and their
// features switch off when nil.
func New(config *config.Config, db *gorm.DB, redisCache *cache.RedisCache, mqConn *amqp.Connection, logger *zap.Logger) (*App, error) {
	var store repository.Store
	if db != nil {
		store = repository.NewStoreGorm(db)
	} else {
		mem := memstore.New()
		if config.SeedFile != "" {
			seed, err := memstore.ReadSeedFile(config.SeedFile)
			if err != nil {
				return nil, err
			}
			if err := mem.Load(seed); err != nil {
				return nil, fmt.Errorf("load seed file %s: %w", config.SeedFile, err)
			}
			logger.Info("memory store seeded", zap.String("seed_file", config.SeedFile),
				zap.Int("movies", len(seed.Movies)), zap.Int("orders", len(seed.Orders)))
		}
		store = mem
	}

	var catalogCache domain.CatalogCache
	if redisCache != nil {
		catalogCache = redisCache
	}

	var (
		publisher *mq.Publisher
		events    domain.CatalogEvents
	)
	if mqConn != nil {
		var err error
		publisher, err = mq.NewPublisher(mqConn)
		if err != nil {
			return nil, err
		}
		events = publisher
	}

	app := &App{
		Config:    config,
		DB:        db,
		Cache:     redisCache,
		Logger:    logger,
		MQConn:    mqConn,
		Publisher: publisher,
		Store:     store,

		CatalogManager:      domain.NewCatalogManager(store, catalogCache, config.CacheTTL, events, logger.Named("catalog")),
		EntitlementService:  domain.NewEntitlementService(store, logger.Named("entitlement")),
		CatalogQueryService: domain.NewCatalogQueryService(store, catalogCache, config.CacheTTL, logger.Named("query")),
	}
	if redisCache != nil {
		app.CatalogWorkflow = workflow.NewCatalogWorkflow(redisCache, logger.Named("workflow"))
	}
	return app, nil
}

func (app *App) Init() error {
	if app.DB != nil {
		if err := repository.Migrate(app.DB); err != nil {
			return err
		}
	}

	if app.MQConn == nil {
		app.Logger.Info("rabbitmq not configured, catalog change events disabled")
		return nil
	}
	if err := mq.InitQueues(app.MQConn); err != nil {
		return err
	}
	if app.CatalogWorkflow != nil {
		if err := app.CatalogWorkflow.Start(app.MQConn); err != nil {
			return err
		}
	}
	return nil
}

func (app *App) Close() error {
	var errs []error
	if app.Publisher != nil {
		errs = append(errs, app.Publisher.Close())
	}
	if app.MQConn != nil {
		errs = append(errs, app.MQConn.Close())
	}
	if app.Cache != nil {
		errs = append(errs, app.Cache.Close())
	}
	if app.DB != nil {
		sqlDB, err := app.DB.DB()
		if err != nil {
			errs = append(errs, err)
		} else {
			errs = append(errs, sqlDB.Close())
		}
	}
	return errors.Join(errs...)
}
