package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"gorm.io/gorm"

	"github.com/qs-lzh/cineportal/config"
	"github.com/qs-lzh/cineportal/internal/app"
	"github.com/qs-lzh/cineportal/internal/cache"
	"github.com/qs-lzh/cineportal/internal/handler"
	"github.com/qs-lzh/cineportal/internal/mq"
	"github.com/qs-lzh/cineportal/internal/repository"

	amqp "github.com/rabbitmq/amqp091-go"
)

func main() {
	cfg, err := config.LoadConfig()
	if err != nil {
		panic(err)
	}

	logger, err := newLogger(cfg.LogLevel)
	if err != nil {
		panic(err)
	}
	defer logger.Sync()

	if err := run(cfg, logger); err != nil {
		logger.Fatal("server stopped", zap.Error(err))
	}
}

func run(cfg *config.Config, logger *zap.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	var db *gorm.DB
	if cfg.StoreDriver == config.StoreDriverPostgres {
		var err error
		db, err = repository.OpenPostgres(cfg.DatabaseDSN, logger)
		if err != nil {
			return err
		}
	}

	var redisCache *cache.RedisCache
	if cfg.CacheURL != "" {
		c, err := cache.NewRedisCache(cfg.CacheURL)
		if err != nil {
			return err
		}
		if err := c.Ping(ctx); err != nil {
			logger.Warn("redis unreachable, running without cache", zap.Error(err))
			c.Close()
		} else {
			redisCache = c
		}
	}

	var mqConn *amqp.Connection
	if cfg.MQURL != "" {
		conn, err := mq.NewMQConn(cfg.MQURL)
		if err != nil {
			return err
		}
		mqConn = conn
	}

	application, err := app.New(cfg, db, redisCache, mqConn, logger)
	if err != nil {
		return err
	}
	defer application.Close()

	if err := application.Init(); err != nil {
		return err
	}

	if cfg.LogLevel != "debug" {
		gin.SetMode(gin.ReleaseMode)
	}
	router := gin.New()
	router.Use(gin.Recovery())
	handler.RegisterRoutes(router, handler.NewCatalogHandler(application))

	srv := &http.Server{
		Addr:              cfg.Addr,
		Handler:           router,
		ReadHeaderTimeout: 5 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("listening", zap.String("addr", cfg.Addr), zap.String("store", cfg.StoreDriver))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	logger.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}

func newLogger(level string) (*zap.Logger, error) {
	lvl, err := zapcore.ParseLevel(level)
	if err != nil {
		return nil, err
	}
	zcfg := zap.NewProductionConfig()
	zcfg.Level = zap.NewAtomicLevelAt(lvl)
	return zcfg.Build()
}
