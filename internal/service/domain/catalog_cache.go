package domain

import (
	"context"
	"errors"
	"time"

	"go.uber.org/zap"

	"github.com/qs-lzh/cineportal/internal/cache"
	"github.com/qs-lzh/cineportal/internal/mq"
)

// CatalogCache is the read-through cache in front of catalog reads.
// *cache.RedisCache satisfies it.
//
// Per-movie entries are guarded by a version counter: writers bump it after
// commit, readers remember it before loading and SetIfVersion refuses the
// write once it moved.
type CatalogCache interface {
	Get(ctx context.Context, key string, dest any) error
	Set(ctx context.Context, key string, value any, expiration time.Duration) error
	Delete(ctx context.Context, keys ...string) error
	Version(ctx context.Context, versionKey string) (int64, error)
	BumpVersion(ctx context.Context, versionKey string) error
	SetIfVersion(ctx context.Context, key, versionKey string, version int64, value any, expiration time.Duration) (bool, error)
}

// CatalogEvents announces committed catalog changes. *mq.Publisher
// satisfies it.
type CatalogEvents interface {
	PublishMovieChanged(ctx context.Context, movieID uint, action mq.MovieAction) error
}

// cacheLayer wraps an optional CatalogCache. A nil cache turns every call
// into a miss or a no-op; cache errors are logged and never fail a request.
type cacheLayer struct {
	c      CatalogCache
	ttl    time.Duration
	logger *zap.Logger
}

func (l cacheLayer) get(ctx context.Context, key string, dest any) bool {
	if l.c == nil {
		return false
	}
	err := l.c.Get(ctx, key, dest)
	if err == nil {
		return true
	}
	if !errors.Is(err, cache.ErrMiss) {
		l.logger.Warn("cache read failed", zap.String("key", key), zap.Error(err))
	}
	return false
}

func (l cacheLayer) set(ctx context.Context, key string, value any) {
	if l.c == nil {
		return
	}
	if err := l.c.Set(ctx, key, value, l.ttl); err != nil {
		l.logger.Warn("cache write failed", zap.String("key", key), zap.Error(err))
	}
}

// version reports the guard for a later setIfVersion. ok is false when there
// is no cache or it could not be read, and the caller must then skip caching.
func (l cacheLayer) version(ctx context.Context, versionKey string) (v int64, ok bool) {
	if l.c == nil {
		return 0, false
	}
	v, err := l.c.Version(ctx, versionKey)
	if err != nil {
		l.logger.Warn("cache version read failed", zap.String("key", versionKey), zap.Error(err))
		return 0, false
	}
	return v, true
}

func (l cacheLayer) setIfVersion(ctx context.Context, key, versionKey string, version int64, value any) {
	if l.c == nil {
		return
	}
	stored, err := l.c.SetIfVersion(ctx, key, versionKey, version, value, l.ttl)
	if err != nil {
		l.logger.Warn("cache write failed", zap.String("key", key), zap.Error(err))
		return
	}
	if !stored {
		l.logger.Debug("skipped caching stale read", zap.String("key", key), zap.Int64("version", version))
	}
}

// invalidateMovie bumps the movie's version before dropping its entry, so a
// reader still holding the old version cannot put the entry back.
func (l cacheLayer) invalidateMovie(ctx context.Context, movieID uint) {
	if l.c == nil {
		return
	}
	versionKey := cache.MakeMovieVersionKey(movieID)
	if err := l.c.BumpVersion(ctx, versionKey); err != nil {
		l.logger.Warn("cache version bump failed", zap.String("key", versionKey), zap.Error(err))
	}
	l.invalidate(ctx, cache.MakeMovieDetailKey(movieID))
}

func (l cacheLayer) invalidate(ctx context.Context, keys ...string) {
	if l.c == nil {
		return
	}
	if err := l.c.Delete(ctx, keys...); err != nil {
		l.logger.Warn("cache invalidation failed", zap.Strings("keys", keys), zap.Error(err))
	}
}

func newCacheLayer(c CatalogCache, ttl time.Duration, logger *zap.Logger) cacheLayer {
	if ttl <= 0 {
		ttl = cache.DefaultTTL
	}
	return cacheLayer{c: c, ttl: ttl, logger: logger}
}
