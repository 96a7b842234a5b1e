package ws

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"livebid/internal/apperr"
	"livebid/internal/clock"
	"livebid/internal/domain"
	"livebid/internal/http/httperr"
	"livebid/internal/http/middleware"
	"livebid/internal/redis/auctionstore"
	"livebid/internal/services/auction"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 12 * time.Second
	pingPeriod     = 3 * time.Second // must be < pongWait
	handlerTimeout = 1900 * time.Millisecond
	maxMessageSize = 512
)

type Authenticator interface {
	Authenticate(ctx context.Context, token string) (domain.User, error)
}

type Options struct {
	Clock          clock.Clock
	Tick           time.Duration
	AllowedOrigins []string
}

type WsServer struct {
	hub        *Hub
	subMgr     *subscriptionManager
	router     *Router
	upgrader   websocket.Upgrader
	auctionSvc auction.IAuctionService
	users      Authenticator
	clock      clock.Clock
	tick       time.Duration
	now        func() time.Time
}

func NewWsServer(h *Hub, rdc *redis.Client, auctionSvc auction.IAuctionService, users Authenticator, opts Options) *WsServer {
	return newWsServer(h, redisOpener(rdc), auctionSvc, users, opts)
}

func newWsServer(h *Hub, open openFunc, auctionSvc auction.IAuctionService, users Authenticator, opts Options) *WsServer {
	if opts.Tick <= 0 {
		opts.Tick = clock.DefaultTick
	}
	srv := &WsServer{
		hub:    h,
		subMgr: newSubscriptionManager(open, h),
		router: NewRouter(),
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     checkOrigin(opts.AllowedOrigins),
		},
		auctionSvc: auctionSvc,
		users:      users,
		clock:      opts.Clock,
		tick:       opts.Tick,
		now:        time.Now,
	}
	srv.registerHandlers()
	return srv
}

// Handle serves GET /ws?auction_id=<id>[&token=<jwt>]. Anonymous viewers
// get the snapshot, the live events and the countdown; bidding and
// watching need a token.
func (s *WsServer) Handle(ginCtx *gin.Context) {
	auctionID := ginCtx.Query("auction_id")
	if auctionID == "" {
		httperr.BadRequest(ginCtx, errors.New("auction_id is required"))
		return
	}
	userID, err := s.identify(ginCtx)
	if err != nil {
		httperr.Abort(ginCtx, err)
		return
	}
	view, err := s.auctionSvc.Get(ginCtx.Request.Context(), auctionID)
	if err != nil {
		httperr.Abort(ginCtx, err)
		return
	}

	rawConn, err := s.upgrader.Upgrade(ginCtx.Writer, ginCtx.Request, nil)
	if err != nil {
		zap.L().Warn("ws.upgrade", zap.Error(err))
		return
	}
	conn := newClientConn(rawConn)
	finished := s.hub.Join(auctionID, conn)
	if view.Status == domain.StatusFinished {
		s.hub.Finish(auctionID)
	}
	s.subMgr.Subscribe(auctionID, auctionstore.EventsChannel(auctionID))

	if err := conn.writeJSON(outbound{Event: EventSnapshot, Body: view}); err != nil {
		zap.L().Warn("ws.snapshot", zap.String("auction_id", auctionID), zap.Error(err))
	}

	ctx, cancel := context.WithCancel(context.Background())
	cc := &ConnContext{AuctionID: auctionID, UserID: userID}
	go s.keepAlive(ctx, conn, auctionID, view.EndTime, finished)
	go func() {
		defer func() {
			cancel()
			s.hub.Leave(auctionID, conn)
			s.subMgr.Unsubscribe(auctionID)
		}()
		s.reader(cc, conn)
	}()
}

// HandleLobby serves GET /ws/lobby: the active auctions followed by
// created/bid/finished/deleted notices for all of them.
func (s *WsServer) HandleLobby(ginCtx *gin.Context) {
	list, err := s.auctionSvc.List(ginCtx.Request.Context(), domain.StatusActive)
	if err != nil {
		httperr.Abort(ginCtx, err)
		return
	}
	rawConn, err := s.upgrader.Upgrade(ginCtx.Writer, ginCtx.Request, nil)
	if err != nil {
		zap.L().Warn("ws.upgrade", zap.Error(err))
		return
	}
	conn := newClientConn(rawConn)
	s.hub.Join(LobbyRoom, conn)
	_ = conn.writeJSON(outbound{Event: EventList, Body: list})

	ctx, cancel := context.WithCancel(context.Background())
	go s.keepAlive(ctx, conn, "", time.Time{}, nil)
	go func() {
		defer func() {
			cancel()
			s.hub.Leave(LobbyRoom, conn)
		}()
		s.prepareRead(conn)
		for {
			if _, _, err := conn.rawConn.ReadMessage(); err != nil {
				return
			}
		}
	}()
}

func (s *WsServer) identify(c *gin.Context) (string, error) {
	token := c.Query("token")
	if token == "" {
		token, _ = middleware.BearerToken(c.GetHeader("Authorization"))
	}
	if token == "" {
		return "", nil
	}
	u, err := s.users.Authenticate(c.Request.Context(), token)
	if err != nil {
		return "", apperr.ErrUnauthorized
	}
	return u.ID, nil
}

func (s *WsServer) registerHandlers() {
	Register(
		s.router,
		EventBid,
		SignedIn,
		func(ctx context.Context, cc *ConnContext, req BidRequest) (*auction.BidReceipt, error) {
			return s.auctionSvc.PlaceBid(ctx, cc.UserID, cc.AuctionID, req.Amount)
		},
	)
	Register(
		s.router,
		EventWatch,
		SignedIn,
		func(ctx context.Context, cc *ConnContext, _ struct{}) (WatchAck, error) {
			watching, err := s.auctionSvc.ToggleWatch(ctx, cc.UserID, cc.AuctionID)
			return WatchAck{Watching: watching}, err
		},
	)
}

func (s *WsServer) prepareRead(conn *clientConn) {
	conn.rawConn.SetReadLimit(maxMessageSize)
	_ = conn.rawConn.SetReadDeadline(time.Now().Add(pongWait))
	conn.rawConn.SetPongHandler(func(string) error {
		return conn.rawConn.SetReadDeadline(time.Now().Add(pongWait))
	})
}

func (s *WsServer) reader(cc *ConnContext, conn *clientConn) {
	s.prepareRead(conn)
	for {
		_, data, err := conn.rawConn.ReadMessage()
		if err != nil {
			return // client closed or errored
		}

		var env Envelope
		if err := json.Unmarshal(data, &env); err != nil {
			_ = conn.writeJSON(outbound{Event: EventError, Body: errorBody(apperr.Input("envelope", "malformed frame"))})
			continue
		}

		ctx, cancel := context.WithTimeout(context.Background(), handlerTimeout)
		res, err := s.router.dispatch(ctx, cc, env)
		cancel()

		if err != nil {
			_ = conn.writeJSON(outbound{Event: EventError, Body: errorBody(err)})
			continue
		}
		_ = conn.writeJSON(outbound{Event: env.Event + ackSuffix, Body: res})
	}
}

// keepAlive pings the client and, for auction rooms, pushes the countdown
// every tick until it reads expired or the room's auction finishes.
func (s *WsServer) keepAlive(ctx context.Context, conn *clientConn, auctionID string, end time.Time, finished <-chan struct{}) {
	ping := time.NewTicker(pingPeriod)
	defer ping.Stop()

	var tickC <-chan time.Time
	if auctionID != "" {
		tick := time.NewTicker(s.tick)
		defer tick.Stop()
		tickC = tick.C
	}

	for {
		select {
		case <-ctx.Done():
			return
		case <-ping.C:
			if err := conn.ping(); err != nil {
				conn.close()
				return
			}
		case <-finished:
			tickC, finished = nil, nil
		case <-tickC:
			select {
			case <-finished:
				tickC, finished = nil, nil
				continue
			default:
			}
			v := s.clock.Snapshot(s.now(), end)
			if err := conn.writeJSON(outbound{Event: EventTick, Body: TickBody{AuctionID: auctionID, View: v}}); err != nil {
				conn.close()
				return
			}
			if v.Expired {
				tickC = nil
			}
		}
	}
}

func errorBody(err error) httperr.ErrorResponse {
	if errors.Is(err, errUnknownEvent) {
		return httperr.ErrorResponse{Error: err.Error(), Code: "unknown_event"}
	}
	_, body := httperr.Response(err)
	return body
}

func checkOrigin(allowed []string) func(r *http.Request) bool {
	return func(r *http.Request) bool {
		origin := r.Header.Get("Origin")
		if origin == "" {
			return true
		}
		for _, a := range allowed {
			if a == "*" || a == origin {
				return true
			}
		}
		return false
	}
}
