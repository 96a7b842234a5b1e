package ws

import (
	"context"
	"encoding/json"
	"sync"

	"livebid/internal/redis/auctionstore"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// openFunc subscribes to one channel and returns its messages and a closer.
type openFunc func(ctx context.Context, channel string) (<-chan *redis.Message, func() error)

func redisOpener(rdb *redis.Client) openFunc {
	return func(ctx context.Context, channel string) (<-chan *redis.Message, func() error) {
		ps := rdb.Subscribe(ctx, channel)
		return ps.Channel(), ps.Close
	}
}

// subscriptionManager keeps exactly one Redis subscription per room, no
// matter how many websocket clients join it.
type subscriptionManager struct {
	open openFunc
	hub  *Hub
	mu   sync.Mutex
	subs map[string]*subEntry // room -> subscription
}

type subEntry struct {
	refCnt int
	cancel context.CancelFunc
}

func newSubscriptionManager(open openFunc, hub *Hub) *subscriptionManager {
	return &subscriptionManager{
		open: open,
		hub:  hub,
		subs: make(map[string]*subEntry),
	}
}

// Subscribe ensures the process listens on channel for room; later calls
// for the same room only bump the reference count.
func (sm *subscriptionManager) Subscribe(room, channel string) {
	sm.mu.Lock()
	if e, ok := sm.subs[room]; ok {
		e.refCnt++
		sm.mu.Unlock()
		return
	}

	ctx, cancel := context.WithCancel(context.Background())
	msgs, closeSub := sm.open(ctx, channel)

	sm.subs[room] = &subEntry{refCnt: 1, cancel: cancel}
	sm.mu.Unlock()

	go func() {
		defer closeSub()
		fanout(ctx, msgs, sm.hub, room)
	}()
}

// Unsubscribe drops one reference and tears the subscription down when the
// last client leaves.
func (sm *subscriptionManager) Unsubscribe(room string) {
	sm.mu.Lock()
	e, ok := sm.subs[room]
	if !ok {
		sm.mu.Unlock()
		return
	}
	e.refCnt--
	if e.refCnt > 0 {
		sm.mu.Unlock()
		return
	}
	delete(sm.subs, room)
	sm.mu.Unlock()

	e.cancel()
}

func (sm *subscriptionManager) active() int {
	sm.mu.Lock()
	defer sm.mu.Unlock()
	return len(sm.subs)
}

// fanout forwards messages to the room until ctx is done or msgs closes.
// A finished event also ends the countdowns of an auction room.
func fanout(ctx context.Context, msgs <-chan *redis.Message, hub *Hub, room string) {
	for {
		select {
		case <-ctx.Done():
			return
		case m, ok := <-msgs:
			if !ok {
				return
			}
			evt, wrapped, err := wrapRedisEvent(m.Payload)
			if err != nil {
				zap.L().Warn("ws.wrap_event_failed", zap.String("room", room), zap.Error(err))
				wrapped = []byte(m.Payload)
			}
			if evt == auctionstore.EventFinished && room != LobbyRoom {
				hub.Finish(room)
			}
			hub.Broadcast(room, wrapped)
		}
	}
}

// wrapRedisEvent turns
//
//	{"event":"bid","auction_id":"a1","current_bid":110,…}
//
// into
//
//	{"event":"auctions/bid","body":{"auction_id":"a1","current_bid":110,…}}
//
// and also returns the bare event name.
func wrapRedisEvent(payload string) (string, []byte, error) {
	var raw map[string]interface{}
	if err := json.Unmarshal([]byte(payload), &raw); err != nil {
		return "", nil, err
	}

	evt, _ := raw["event"].(string)
	if evt == "" {
		evt = "unknown"
	}
	delete(raw, "event")

	out, err := json.Marshal(outbound{Event: "auctions/" + evt, Body: raw})
	return evt, out, err
}
