package mq

import "time"

// Queue names and message definitions

// immediate queue from the catalog manager to every cache holder
// deliver message to notify that a movie's committed state changed
const (
	MovieChangedQueue = "catalog.movie.changed.immediate"
)

// delay queue in front of MovieChangedQueue
// the same message is delivered a second time after MovieChangedRedelivery,
// evicting cache entries a concurrent reader re-populated with pre-commit data
const (
	MovieChangedDelayQueue      = "catalog.movie.changed.delay"
	MovieChangedDelayExchange   = "catalog.movie.changed.exchange"
	MovieChangedDelayRoutingKey = "catalog.movie.changed"

	MovieChangedRedelivery = 2 * time.Second
)

type MovieAction string

const (
	MovieCreated MovieAction = "created"
	MovieUpdated MovieAction = "updated"
)

type MovieChangedMessage struct {
	MessageID  string      `json:"message_id"`
	MovieID    uint        `json:"movie_id"`
	Action     MovieAction `json:"action"`
	OccurredAt time.Time   `json:"occurred_at"`
}
