package mq

import (
	"context"
	"encoding/json"
	"os"
	"testing"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setupTestConn(t *testing.T) *amqp.Connection {
	t.Helper()
	url := os.Getenv("RABBIT_MQ_URL")
	if url == "" {
		t.Skip("RABBIT_MQ_URL not set, skipping rabbitmq tests")
	}
	conn, err := NewMQConn(url)
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })

	require.NoError(t, InitQueues(conn))
	require.NoError(t, ClearQueue(conn, MovieChangedQueue))
	require.NoError(t, ClearQueue(conn, MovieChangedDelayQueue))
	return conn
}

// Every change is delivered twice to the consumer queue: at once and again
// after the delay queue's TTL.
func TestPublishMovieChangedDeliversTwice(t *testing.T) {
	conn := setupTestConn(t)

	publisher, err := NewPublisher(conn)
	require.NoError(t, err)
	defer publisher.Close()

	require.NoError(t, publisher.PublishMovieChanged(context.Background(), 17, MovieUpdated))

	ch, err := NewChannel(conn)
	require.NoError(t, err)
	defer ch.Close()
	msgs, err := ch.Consume(MovieChangedQueue, "", true, false, false, false, nil)
	require.NoError(t, err)

	var received []MovieChangedMessage
	timeout := time.After(MovieChangedRedelivery + 5*time.Second)
	for len(received) < 2 {
		select {
		case d := <-msgs:
			var m MovieChangedMessage
			require.NoError(t, json.Unmarshal(d.Body, &m))
			received = append(received, m)
		case <-timeout:
			t.Fatalf("got %d deliveries, want 2", len(received))
		}
	}

	assert.Equal(t, received[0].MessageID, received[1].MessageID)
	assert.EqualValues(t, 17, received[0].MovieID)
	assert.Equal(t, MovieUpdated, received[0].Action)
}
