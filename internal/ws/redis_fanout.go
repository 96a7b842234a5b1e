package ws

import (
	"context"

	"livebid/internal/redis/auctionstore"

	"github.com/redis/go-redis/v9"
)

// RunLobbyFanout relays the auction list channel to the lobby room until
// ctx is done. Every instance runs one.
func RunLobbyFanout(ctx context.Context, rdb *redis.Client, hub *Hub) {
	msgs, closeSub := redisOpener(rdb)(ctx, auctionstore.LobbyChannel)
	defer closeSub()
	fanout(ctx, msgs, hub, LobbyRoom)
}
