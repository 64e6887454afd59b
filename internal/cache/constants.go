package cache

import (
	"errors"
	"fmt"
	"time"

	redis "github.com/redis/go-redis/v9"
)

// key names definition
const (
	MovieDetailKey  = "movie:%d:detail"   // movie joined with cinema, producer and actors, '%d' is movie id
	MovieVersionKey = "movie:%d:version"  // bumped on every committed write to the movie, never expires
	DropdownsKey    = "catalog:dropdowns" // actors, cinemas and producers for selection lists
)

func MakeMovieDetailKey(movieID uint) string {
	return fmt.Sprintf(MovieDetailKey, movieID)
}

func MakeMovieVersionKey(movieID uint) string {
	return fmt.Sprintf(MovieVersionKey, movieID)
}

// DefaultTTL bounds how long an entry can outlive a missed invalidation.
const DefaultTTL = 5 * time.Minute

var ErrMiss = errors.New("cache miss")

var setIfVersionScript = redis.NewScript(`
	-- KEYS[1] = key to write
	-- KEYS[2] = version key guarding it
	-- ARGV[1] = version read before loading the value
	-- ARGV[2] = value
	-- ARGV[3] = ttl in milliseconds
	local current = tonumber(redis.call("GET", KEYS[2]) or "0")
	if current ~= tonumber(ARGV[1]) then
		return 0
	end
	redis.call("SET", KEYS[1], ARGV[2], "PX", ARGV[3])
	return 1
`)
