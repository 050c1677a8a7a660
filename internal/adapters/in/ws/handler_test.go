package ws_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"freight/internal/adapters/in/ws"
	"freight/internal/core/application/broadcast"
	"freight/internal/core/domain/model/kernel"
	"freight/internal/core/domain/model/order"
	"freight/internal/pkg/errs"
	"freight/internal/pkg/metrics"

	"github.com/fortytw2/leaktest"
	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type frame struct {
	Type    string                 `json:"type"`
	OrderID string                 `json:"orderId"`
	Message string                 `json:"message"`
	Data    json.RawMessage        `json:"data"`
	Snap    order.ProgressSnapshot `json:"-"`
}

type progressStore struct {
	mu    sync.Mutex
	snaps map[kernel.UUID]order.ProgressSnapshot
}

func (p *progressStore) Progress(_ context.Context, id kernel.UUID) (order.ProgressSnapshot, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	snap, ok := p.snaps[id]
	if !ok {
		return order.ProgressSnapshot{}, errs.NewObjectNotFoundError("masterOrderID", id)
	}
	return snap, nil
}

type fixture struct {
	server      *httptest.Server
	broadcaster *broadcast.Broadcaster
	store       *progressStore
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	store := &progressStore{snaps: make(map[kernel.UUID]order.ProgressSnapshot)}
	b := broadcast.New(store, metrics.NewUnregistered(), zap.NewNop())

	cfg := ws.DefaultConfig()
	cfg.PingPeriod = 50 * time.Millisecond
	server := httptest.NewServer(ws.NewHandler(b, cfg, zap.NewNop()))

	return &fixture{server: server, broadcaster: b, store: store}
}

func (f *fixture) url() string {
	return "ws" + strings.TrimPrefix(f.server.URL, "http")
}

func identityHeader() http.Header {
	h := http.Header{}
	h.Set(ws.HeaderUserID, "shipper-1")
	h.Set(ws.HeaderUserRole, "SHIPPER")
	h.Set(ws.HeaderClientType, "web")
	return h
}

func (f *fixture) dial(t *testing.T) *websocket.Conn {
	t.Helper()
	conn, resp, err := websocket.DefaultDialer.Dial(f.url(), identityHeader())
	require.NoError(t, err)
	if resp != nil && resp.Body != nil {
		_ = resp.Body.Close()
	}

	greeting := readFrame(t, conn)
	require.Equal(t, broadcast.TypeConnectionState, greeting.Type)
	return conn
}

func readFrame(t *testing.T, conn *websocket.Conn) frame {
	t.Helper()
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	var f frame
	require.NoError(t, conn.ReadJSON(&f))
	if f.Type == broadcast.TypeProgressUpdate {
		require.NoError(t, json.Unmarshal(f.Data, &f.Snap))
	}
	return f
}

func subscribe(t *testing.T, conn *websocket.Conn, orderID string) {
	t.Helper()
	msg := map[string]any{
		"type": broadcast.TypeSubscribe,
		"data": map[string]string{"orderId": orderID, "userId": "shipper-1", "userRole": "SHIPPER"},
	}
	require.NoError(t, conn.WriteJSON(msg))
}

func (f *fixture) closeAndWait(t *testing.T, conns ...*websocket.Conn) {
	t.Helper()
	for _, c := range conns {
		_ = c.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""), time.Now().Add(time.Second))
		_ = c.Close()
	}
	assert.Eventually(t, func() bool { return f.broadcaster.SessionCount() == 0 }, 2*time.Second, 10*time.Millisecond)
	f.server.Close()
}

func TestHandler_RejectsHandshakeWithoutIdentity(t *testing.T) {
	defer leaktest.Check(t)()
	f := newFixture(t)
	defer f.server.Close()

	h := identityHeader()
	h.Del(ws.HeaderClientType)

	conn, resp, err := websocket.DefaultDialer.Dial(f.url(), h)

	require.ErrorIs(t, err, websocket.ErrBadHandshake)
	assert.Nil(t, conn)
	require.NotNil(t, resp)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
	assert.Zero(t, f.broadcaster.SessionCount())
}

func TestHandler_SubscribeReplaysAndStreamsUpdates(t *testing.T) {
	defer leaktest.Check(t)()
	f := newFixture(t)

	orderID := kernel.NewUUID()
	f.store.snaps[orderID] = order.ProgressSnapshot{OrderID: orderID, Version: 2, TriggerEvent: order.EventBidPlaced}

	conn := f.dial(t)
	subscribe(t, conn, orderID.String())

	replay := readFrame(t, conn)
	require.Equal(t, broadcast.TypeProgressUpdate, replay.Type)
	assert.Equal(t, orderID.String(), replay.OrderID)
	assert.Equal(t, int64(2), replay.Snap.Version)

	require.Eventually(t, func() bool { return f.broadcaster.ConnectedCount(orderID) == 1 }, time.Second, 10*time.Millisecond)

	f.broadcaster.Publish(order.ProgressSnapshot{OrderID: orderID, Version: 3, TriggerEvent: order.EventPartialOrderAwarded})

	update := readFrame(t, conn)
	require.Equal(t, broadcast.TypeProgressUpdate, update.Type)
	assert.Equal(t, int64(3), update.Snap.Version)
	assert.Equal(t, order.EventPartialOrderAwarded, update.Snap.TriggerEvent)

	f.closeAndWait(t, conn)
}

func TestHandler_MalformedFrameGetsErrorMessage(t *testing.T) {
	defer leaktest.Check(t)()
	f := newFixture(t)

	conn := f.dial(t)
	require.NoError(t, conn.WriteMessage(websocket.TextMessage, []byte(`{"type":"order.subscribe","data":{"orderId":"nope"}}`)))

	reply := readFrame(t, conn)
	assert.Equal(t, broadcast.TypeError, reply.Type)
	assert.Contains(t, reply.Message, "orderId")

	f.closeAndWait(t, conn)
}

func TestHandler_UnknownOrderGetsErrorMessage(t *testing.T) {
	defer leaktest.Check(t)()
	f := newFixture(t)

	conn := f.dial(t)
	subscribe(t, conn, kernel.NewUUID().String())

	reply := readFrame(t, conn)
	assert.Equal(t, broadcast.TypeError, reply.Type)
	assert.Contains(t, reply.Message, "not found")

	f.closeAndWait(t, conn)
}

func TestHandler_ClientDisconnectRemovesSession(t *testing.T) {
	defer leaktest.Check(t)()
	f := newFixture(t)

	orderID := kernel.NewUUID()
	f.store.snaps[orderID] = order.ProgressSnapshot{OrderID: orderID, Version: 1}

	first := f.dial(t)
	second := f.dial(t)
	subscribe(t, first, orderID.String())
	readFrame(t, first)
	require.Equal(t, 2, f.broadcaster.SessionCount())

	require.NoError(t, first.Close())
	require.Eventually(t, func() bool { return f.broadcaster.SessionCount() == 1 }, 2*time.Second, 10*time.Millisecond)
	assert.Zero(t, f.broadcaster.ConnectedCount(orderID))

	f.closeAndWait(t, second)
}

func TestHandler_ReapedSessionClosesSocket(t *testing.T) {
	defer leaktest.Check(t)()
	f := newFixture(t)

	conn := f.dial(t)
	require.Eventually(t, func() bool { return f.broadcaster.SessionCount() == 1 }, time.Second, 10*time.Millisecond)

	// A session marked unhealthy by a failed delivery is reaped by the health job.
	sessions := f.broadcaster.Sessions()
	require.Len(t, sessions, 1)
	sessions[0].MarkUnhealthy()
	assert.Equal(t, 1, f.broadcaster.ReapUnhealthy())

	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	_, _, err := conn.ReadMessage()
	assert.True(t, websocket.IsCloseError(err, websocket.CloseNormalClosure), "unexpected error: %v", err)

	f.closeAndWait(t, conn)
}
