package stream

import (
	"context"
	"encoding/json"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/coder/websocket"
	"github.com/lao-tseu-is-alive/go-flock-simulation/pkg/simulation"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	golog "github.com/tochemey/goakt/v3/log"
)

func dial(t *testing.T, ctx context.Context, srv *httptest.Server) *websocket.Conn {
	t.Helper()
	url := "ws" + strings.TrimPrefix(srv.URL, "http")
	conn, _, err := websocket.Dial(ctx, url, nil)
	require.NoError(t, err)
	t.Cleanup(func() { conn.CloseNow() })
	return conn
}

func TestHub_PublishReachesClient(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	hub := NewHub(golog.DiscardLogger)
	srv := httptest.NewServer(hub)
	defer srv.Close()

	conn := dial(t, ctx, srv)
	require.Eventually(t, func() bool { return hub.Clients() == 1 }, time.Second, 5*time.Millisecond)

	snap := &simulation.Snapshot{RunID: "run-1", Tick: 3, Perching: 1, Boids: []simulation.BoidState{
		{Index: 0, Perching: true},
		{Index: 1},
	}}
	sent, err := hub.Publish(snap)
	require.NoError(t, err)
	assert.Equal(t, 1, sent)

	typ, data, err := conn.Read(ctx)
	require.NoError(t, err)
	assert.Equal(t, websocket.MessageText, typ)

	var got simulation.Snapshot
	require.NoError(t, json.Unmarshal(data, &got))
	assert.Equal(t, "run-1", got.RunID)
	assert.Equal(t, uint64(3), got.Tick)
	assert.Equal(t, 1, got.Perching)
	assert.Len(t, got.Boids, 2)
}

func TestHub_PublishWithoutClients(t *testing.T) {
	hub := NewHub(golog.DiscardLogger)
	sent, err := hub.Publish(&simulation.Snapshot{})
	require.NoError(t, err)
	assert.Zero(t, sent)
}

func TestHub_ClientLeaves(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	hub := NewHub(golog.DiscardLogger)
	srv := httptest.NewServer(hub)
	defer srv.Close()

	conn := dial(t, ctx, srv)
	require.Eventually(t, func() bool { return hub.Clients() == 1 }, time.Second, 5*time.Millisecond)

	require.NoError(t, conn.Close(websocket.StatusNormalClosure, "bye"))
	assert.Eventually(t, func() bool { return hub.Clients() == 0 }, time.Second, 5*time.Millisecond)
}

func TestHub_RunStreamsUntilChannelCloses(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	hub := NewHub(golog.DiscardLogger)
	srv := httptest.NewServer(hub)
	defer srv.Close()

	conn := dial(t, ctx, srv)
	require.Eventually(t, func() bool { return hub.Clients() == 1 }, time.Second, 5*time.Millisecond)

	snapshots := make(chan *simulation.Snapshot, 1)
	done := make(chan error, 1)
	go func() { done <- hub.Run(ctx, snapshots) }()

	snapshots <- &simulation.Snapshot{Tick: 42}
	_, data, err := conn.Read(ctx)
	require.NoError(t, err)
	assert.Contains(t, string(data), `"tick":42`)

	close(snapshots)
	require.NoError(t, <-done)

	_, _, err = conn.Read(ctx)
	require.Error(t, err)
	assert.True(t, isClosed(err), "unexpected close: %v", err)
	assert.Zero(t, hub.Clients())
}

func TestHub_TurnsAwayClientsAfterRun(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	hub := NewHub(golog.DiscardLogger)
	srv := httptest.NewServer(hub)
	defer srv.Close()

	snapshots := make(chan *simulation.Snapshot)
	close(snapshots)
	require.NoError(t, hub.Run(ctx, snapshots))

	conn := dial(t, ctx, srv)
	_, _, err := conn.Read(ctx)
	require.Error(t, err)
	assert.Equal(t, websocket.StatusGoingAway, websocket.CloseStatus(err))
	assert.Zero(t, hub.Clients())

	sent, err := hub.Publish(&simulation.Snapshot{})
	require.NoError(t, err)
	assert.Zero(t, sent)
}

func TestHub_RunStopsOnCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	hub := NewHub(golog.DiscardLogger)

	done := make(chan error, 1)
	go func() { done <- hub.Run(ctx, make(chan *simulation.Snapshot)) }()
	cancel()

	err := <-done
	assert.ErrorIs(t, err, context.Canceled)
	assert.True(t, isClosed(err))
}

func TestIsClosed(t *testing.T) {
	assert.True(t, isClosed(nil))
	assert.False(t, isClosed(assert.AnError))
}
