package events

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	natsserver "github.com/nats-io/nats-server/v2/server"
	"github.com/nats-io/nats.go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func startTestNATS(t *testing.T) string {
	t.Helper()
	opts := &natsserver.Options{Host: "127.0.0.1", Port: -1}
	srv, err := natsserver.NewServer(opts)
	if err != nil {
		t.Fatalf("starting embedded NATS: %v", err)
	}
	srv.Start()
	t.Cleanup(srv.Shutdown)
	if !srv.ReadyForConnections(5 * time.Second) {
		t.Fatal("embedded NATS not ready")
	}
	return srv.ClientURL()
}

func TestNoopPublisher(t *testing.T) {
	var pub Publisher = NoopPublisher{}
	assert.NoError(t, pub.Publish(context.Background(), TopicActorFlagged, ActorFlagged{}))
	assert.NoError(t, pub.Close())
}

func TestNewWithoutURLIsNoop(t *testing.T) {
	pub, err := New("")
	require.NoError(t, err)
	assert.IsType(t, NoopPublisher{}, pub)
}

func TestNATSPublisher_ImplementsPublisher(t *testing.T) {
	var _ Publisher = (*NATSPublisher)(nil)
}

func TestNATSPublisher_Publish(t *testing.T) {
	url := startTestNATS(t)

	pub, err := NewNATSPublisher(url)
	require.NoError(t, err)
	defer pub.Close()

	nc, err := nats.Connect(url)
	require.NoError(t, err)
	defer nc.Close()

	ch := make(chan *nats.Msg, 1)
	sub, err := nc.ChanSubscribe(TopicActorFlagged, ch)
	require.NoError(t, err)
	defer sub.Unsubscribe() //nolint:errcheck
	require.NoError(t, nc.Flush())

	flaggedAt := time.Date(2024, 5, 1, 10, 0, 0, 0, time.UTC)
	event := ActorFlagged{ActorID: "actor-1", WeeklyCount: 20, MonthlyCount: 21, FlaggedAt: flaggedAt}
	require.NoError(t, pub.Publish(context.Background(), TopicActorFlagged, event))
	require.NoError(t, pub.Flush())

	select {
	case msg := <-ch:
		var got ActorFlagged
		require.NoError(t, json.Unmarshal(msg.Data, &got))
		assert.Equal(t, "actor-1", got.ActorID)
		assert.Equal(t, 20, got.WeeklyCount)
		assert.True(t, got.FlaggedAt.Equal(flaggedAt))
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for published message")
	}
}

func TestNewNATSPublisher_BadURL(t *testing.T) {
	_, err := NewNATSPublisher("nats://127.0.0.1:1", nats.Timeout(200*time.Millisecond), nats.MaxReconnects(0))
	assert.Error(t, err)
}
