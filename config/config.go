package config

import (
	"fmt"
	"os"
	"time"

	"github.com/qs-lzh/cineportal/internal/util"
)

const (
	StoreDriverPostgres = "postgres"
	StoreDriverMemory   = "memory"
)

type Config struct {
	DatabaseDSN string
	Addr        string
	CacheURL    string
	MQURL       string

	StoreDriver string
	SeedFile    string
	CacheTTL    time.Duration
	LogLevel    string
}

func LoadConfig() (*Config, error) {
	if err := util.LoadEnv(); err != nil {
		return nil, err
	}
	databaseDSN := os.Getenv("DATABASE_DSN")
	addr := getenv("ADDR", ":4000")
	cacheURL := os.Getenv("CACHE_URL")
	mqURL := os.Getenv("RABBIT_MQ_URL")
	storeDriver := getenv("STORE_DRIVER", StoreDriverPostgres)
	seedFile := os.Getenv("SEED_FILE")
	logLevel := getenv("LOG_LEVEL", "info")

	cacheTTL := 5 * time.Minute
	if v := os.Getenv("CACHE_TTL"); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil {
			return nil, fmt.Errorf("invalid CACHE_TTL %q: %w", v, err)
		}
		cacheTTL = d
	}

	switch storeDriver {
	case StoreDriverPostgres:
		if databaseDSN == "" {
			return nil, fmt.Errorf("DATABASE_DSN is required when STORE_DRIVER=%s", StoreDriverPostgres)
		}
		if seedFile != "" {
			return nil, fmt.Errorf("SEED_FILE only applies to STORE_DRIVER=%s", StoreDriverMemory)
		}
	case StoreDriverMemory:
	default:
		return nil, fmt.Errorf("unknown STORE_DRIVER %q", storeDriver)
	}

	return &Config{
		DatabaseDSN: databaseDSN,
		Addr:        addr,
		CacheURL:    cacheURL,
		MQURL:       mqURL,
		StoreDriver: storeDriver,
		SeedFile:    seedFile,
		CacheTTL:    cacheTTL,
		LogLevel:    logLevel,
	}, nil
}

func getenv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
