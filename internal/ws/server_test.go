package ws

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"livebid/internal/apperr"
	"livebid/internal/bidding"
	"livebid/internal/clock"
	"livebid/internal/domain"
	"livebid/internal/services/auction"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stubAuctions struct {
	auction.IAuctionService
	bidErr error
}

func (s *stubAuctions) Get(_ context.Context, id string) (*auction.AuctionView, error) {
	if id != "a1" {
		return nil, apperr.ErrNotFound
	}
	return &auction.AuctionView{Auction: domain.Auction{ID: "a1", Title: "Lamp", CurrentBid: 100, EndTime: time.Now().Add(time.Hour)}}, nil
}

func (s *stubAuctions) List(context.Context, domain.Status) ([]auction.AuctionView, error) {
	return []auction.AuctionView{}, nil
}

func (s *stubAuctions) PlaceBid(_ context.Context, _, auctionID string, amount int64) (*auction.BidReceipt, error) {
	if s.bidErr != nil {
		return nil, s.bidErr
	}
	return &auction.BidReceipt{AuctionID: auctionID, CurrentBid: amount, MinNextBid: amount + 10}, nil
}

type stubUsers struct{}

func (stubUsers) Authenticate(_ context.Context, token string) (domain.User, error) {
	if token != "t1" {
		return domain.User{}, apperr.ErrUnauthorized
	}
	return domain.User{ID: "u1", Username: "ann"}, nil
}

type harness struct {
	srv *httptest.Server
	ws  *WsServer
	hub *Hub
	ps  *fakePubSub
}

func newHarness(t *testing.T, svc auction.IAuctionService) *harness {
	t.Helper()
	gin.SetMode(gin.TestMode)
	h := &harness{hub: NewHub(), ps: newFakePubSub()}
	h.ws = newWsServer(h.hub, h.ps.open, svc, stubUsers{}, Options{Clock: clock.Clock{}, Tick: time.Hour, AllowedOrigins: []string{"*"}})

	r := gin.New()
	r.GET("/ws", h.ws.Handle)
	r.GET("/ws/lobby", h.ws.HandleLobby)
	h.srv = httptest.NewServer(r)
	t.Cleanup(h.srv.Close)
	return h
}

func (h *harness) dial(t *testing.T, query string) *websocket.Conn {
	t.Helper()
	url := "ws" + strings.TrimPrefix(h.srv.URL, "http") + query
	c, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = c.Close() })
	return c
}

func readEvent(t *testing.T, c *websocket.Conn) map[string]any {
	t.Helper()
	_ = c.SetReadDeadline(time.Now().Add(2 * time.Second))
	var m map[string]any
	require.NoError(t, c.ReadJSON(&m))
	return m
}

func TestHandle_SnapshotThenBid(t *testing.T) {
	h := newHarness(t, &stubAuctions{})
	c := h.dial(t, "/ws?auction_id=a1&token=t1")

	snap := readEvent(t, c)
	assert.Equal(t, EventSnapshot, snap["event"])
	assert.Equal(t, "Lamp", snap["body"].(map[string]any)["title"])

	require.NoError(t, c.WriteJSON(map[string]any{"event": EventBid, "body": map[string]any{"amount": 110}}))
	ack := readEvent(t, c)
	assert.Equal(t, EventBid+"-ack", ack["event"])
	assert.EqualValues(t, 120, ack["body"].(map[string]any)["minNextBid"])
}

func TestHandle_RejectionIsAnErrorFrame(t *testing.T) {
	h := newHarness(t, &stubAuctions{bidErr: &bidding.RejectionError{Reason: bidding.ReasonTooLow, MinBid: 110}})
	c := h.dial(t, "/ws?auction_id=a1&token=t1")
	readEvent(t, c)

	require.NoError(t, c.WriteJSON(map[string]any{"event": EventBid, "body": map[string]any{"amount": 100}}))
	msg := readEvent(t, c)
	assert.Equal(t, EventError, msg["event"])
	body := msg["body"].(map[string]any)
	assert.Equal(t, "too_low", body["code"])
	assert.EqualValues(t, 110, body["minBid"])
}

func TestHandle_AnonymousCannotBid(t *testing.T) {
	h := newHarness(t, &stubAuctions{})
	c := h.dial(t, "/ws?auction_id=a1")
	readEvent(t, c)

	require.NoError(t, c.WriteJSON(map[string]any{"event": EventBid, "body": map[string]any{"amount": 110}}))
	msg := readEvent(t, c)
	assert.Equal(t, EventError, msg["event"])
	assert.Equal(t, "unauthorized", msg["body"].(map[string]any)["code"])

	require.NoError(t, c.WriteJSON(map[string]any{"event": "auctions/dance"}))
	msg = readEvent(t, c)
	assert.Equal(t, "unknown_event", msg["body"].(map[string]any)["code"])
}

func TestHandle_RedisEventsReachTheRoom(t *testing.T) {
	h := newHarness(t, &stubAuctions{})
	c := h.dial(t, "/ws?auction_id=a1")
	readEvent(t, c)

	require.Eventually(t, func() bool { return h.hub.Size("a1") == 1 }, time.Second, 5*time.Millisecond)
	h.ps.publish("auc:a1:events", `{"event":"finished","auction_id":"a1","winner":{"userId":"u1","username":"ann"}}`)

	msg := readEvent(t, c)
	assert.Equal(t, "auctions/finished", msg["event"])
}

func TestHandle_RejectsBeforeUpgrade(t *testing.T) {
	h := newHarness(t, &stubAuctions{})

	tests := []struct {
		name     string
		query    string
		wantCode int
	}{
		{name: "No auction", query: "/ws", wantCode: http.StatusBadRequest},
		{name: "Unknown auction", query: "/ws?auction_id=zz", wantCode: http.StatusNotFound},
		{name: "Bad token", query: "/ws?auction_id=a1&token=bad", wantCode: http.StatusUnauthorized},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			url := "ws" + strings.TrimPrefix(h.srv.URL, "http") + tt.query
			_, resp, err := websocket.DefaultDialer.Dial(url, nil)
			require.Error(t, err)
			require.NotNil(t, resp)
			assert.Equal(t, tt.wantCode, resp.StatusCode)
		})
	}
}

func TestHandleLobby(t *testing.T) {
	h := newHarness(t, &stubAuctions{})
	c := h.dial(t, "/ws/lobby")

	msg := readEvent(t, c)
	assert.Equal(t, EventList, msg["event"])

	require.Eventually(t, func() bool { return h.hub.Size(LobbyRoom) == 1 }, time.Second, 5*time.Millisecond)
	h.hub.Broadcast(LobbyRoom, []byte(`{"event":"auctions/created","body":{"auction_id":"b2"}}`))
	msg = readEvent(t, c)
	assert.Equal(t, "auctions/created", msg["event"])
}

func TestKeepAlive_TicksUntilExpired(t *testing.T) {
	h := newHarness(t, &stubAuctions{})
	h.ws.tick = 10 * time.Millisecond
	end := time.Now().Add(30 * time.Millisecond)

	c := h.dial(t, "/ws/lobby")
	readEvent(t, c)
	require.Eventually(t, func() bool { return h.hub.Size(LobbyRoom) == 1 }, time.Second, 5*time.Millisecond)

	var conn *clientConn
	r := h.hub.get(LobbyRoom)
	r.mu.RLock()
	for cc := range r.conns {
		conn = cc
	}
	r.mu.RUnlock()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go h.ws.keepAlive(ctx, conn, "a1", end, nil)

	for {
		msg := readEvent(t, c)
		require.Equal(t, EventTick, msg["event"])
		if msg["body"].(map[string]any)["expired"] == true {
			assert.Equal(t, clock.FinishedLabel, msg["body"].(map[string]any)["display"])
			break
		}
	}
}

func TestHandle_FinishedEventStopsTicks(t *testing.T) {
	h := newHarness(t, &stubAuctions{})
	h.ws.tick = 10 * time.Millisecond
	c := h.dial(t, "/ws?auction_id=a1")
	assert.Equal(t, EventSnapshot, readEvent(t, c)["event"])
	assert.Equal(t, EventTick, readEvent(t, c)["event"])

	h.ps.publish("auc:a1:events", `{"event":"finished","auction_id":"a1","status":"finished"}`)
	for {
		if readEvent(t, c)["event"] == "auctions/finished" {
			break
		}
	}

	// one tick may already be in flight when the room finishes
	ticks := 0
	for {
		_ = c.SetReadDeadline(time.Now().Add(150 * time.Millisecond))
		var m map[string]any
		if err := c.ReadJSON(&m); err != nil {
			break
		}
		require.Equal(t, EventTick, m["event"])
		ticks++
	}
	assert.LessOrEqual(t, ticks, 1)
}

func TestHandle_EmptyRoomIsDropped(t *testing.T) {
	h := newHarness(t, &stubAuctions{})
	c := h.dial(t, "/ws?auction_id=a1")
	readEvent(t, c)
	require.Eventually(t, func() bool { return h.hub.Size("a1") == 1 }, time.Second, 5*time.Millisecond)

	require.NoError(t, c.Close())
	require.Eventually(t, func() bool { return h.hub.roomCount() == 0 }, time.Second, 5*time.Millisecond)
	assert.Eventually(t, func() bool { return h.ps.closedCount("auc:a1:events") == 1 }, time.Second, 5*time.Millisecond)
}

func TestCheckOrigin(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/ws", nil)
	assert.True(t, checkOrigin(nil)(req))

	req.Header.Set("Origin", "https://shop.example")
	assert.False(t, checkOrigin([]string{"https://other.example"})(req))
	assert.True(t, checkOrigin([]string{"https://shop.example"})(req))
	assert.True(t, checkOrigin([]string{"*"})(req))
}
