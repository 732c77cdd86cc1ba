package natsadapter

import (
	"testing"
	"time"

	"github.com/nats-io/nats.go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aquadex/aquadex/internal/core/domain"
)

// unreachable returns a connection that keeps retrying a closed port.
func unreachable(t *testing.T) *nats.Conn {
	t.Helper()
	conn, err := RawConn("nats://127.0.0.1:1")
	require.NoError(t, err)
	t.Cleanup(conn.Close)
	return conn
}

func TestStoreEventSubject(t *testing.T) {
	assert.Equal(t, "stores.events.upserted", StoreEventSubject(domain.StoreUpserted))
	assert.Equal(t, "stores.events.deleted", StoreEventSubject(domain.StoreDeleted))
}

func TestJetStream_ClosesConnOnError(t *testing.T) {
	conn := unreachable(t)

	_, err := jetStream(conn, nats.PublishAsyncMaxPending(0))
	require.Error(t, err)
	assert.True(t, conn.IsClosed())
}

func TestNewPublisher_ClosesConnWhenStreamSetupFails(t *testing.T) {
	conn := unreachable(t)

	_, err := newPublisher(conn, nats.MaxWait(100*time.Millisecond))
	require.Error(t, err)
	assert.True(t, conn.IsClosed())
}
