package http_server

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"slices"
	"time"

	"livebid/internal/http/adminhandler"
	"livebid/internal/http/auctionhandler"
	"livebid/internal/http/middleware"
	"livebid/internal/http/userhandler"
	"livebid/internal/services/auction"
	"livebid/internal/services/user"
	"livebid/internal/ws"

	"github.com/gin-contrib/cors"
	ginzap "github.com/gin-contrib/zap"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/abrar71/swaggerfilesv2" // swagger embed files
)

const shutdownTimeout = 10 * time.Second

// HealthFunc reports whether the backing stores answer.
type HealthFunc func(ctx context.Context) error

type Deps struct {
	Auctions    auction.IAuctionService
	Users       user.IUserService
	Ws          *ws.WsServer
	Health      HealthFunc
	CorsOrigins []string
}

type httpServer struct {
	listenPort uint16
	srv        *http.Server
	ln         net.Listener
	deps       Deps
	ctx        context.Context
}

func NewHttpServer(ctx context.Context, listenPort uint16, deps Deps) *httpServer {
	h := &httpServer{
		listenPort: listenPort,
		deps:       deps,
		ctx:        ctx,
	}
	h.srv = &http.Server{
		Handler:           h.Routes(),
		ReadHeaderTimeout: 10 * time.Second,
		BaseContext:       func(net.Listener) context.Context { return ctx },
	}
	return h
}

// Routes builds the gin engine with every REST and websocket route.
func (h *httpServer) Routes() *gin.Engine {
	routerEngine := gin.New()
	routerEngine.Use(middleware.RequestID())
	routerEngine.Use(ginzap.Ginzap(zap.L(), time.RFC3339, true))
	routerEngine.Use(ginzap.RecoveryWithZap(zap.L(), true))
	routerEngine.Use(cors.New(corsConfig(h.deps.CorsOrigins)))

	// Swagger UI and API specs
	routerEngine.StaticFS("/swagger-apis", http.FS(swaggerfilesv2.FS))
	routerEngine.Static("/api-specs", "api_specs")

	routerEngine.GET("/healthz", h.healthz)

	if h.deps.Ws != nil {
		routerEngine.GET("/ws", h.deps.Ws.Handle)
		routerEngine.GET("/ws/lobby", h.deps.Ws.HandleLobby)
	}

	authed := routerEngine.Group("/", middleware.Auth(h.deps.Users))
	admin := routerEngine.Group("/", middleware.Auth(h.deps.Users), middleware.RequireAdmin())

	auctionhandler.New(h.deps.Auctions).Register(routerEngine, authed)
	userhandler.New(h.deps.Users).Register(routerEngine, authed)
	adminhandler.New(h.deps.Auctions, h.deps.Users).Register(admin)

	return routerEngine
}

func (h *httpServer) Start() error {
	var err error
	listenAddr := fmt.Sprintf(":%d", h.listenPort)
	h.ln, err = net.Listen("tcp", listenAddr)
	if err != nil {
		return err
	}

	zap.L().Info("http.listen", zap.String("addr", listenAddr))

	err = h.srv.Serve(h.ln)
	if errors.Is(err, http.ErrServerClosed) {
		return nil
	}
	return err
}

// Dispose gracefully shuts the HTTP server down, waiting up to
// shutdownTimeout for in-flight requests.
func (h *httpServer) Dispose() error {
	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	if err := h.srv.Shutdown(ctx); err != nil {
		zap.L().Error("http_dispose", zap.Error(err))
		return err
	}
	return nil
}

// @Summary		Health check
// @Tags			Ops
// @Success		200
// @Failure		503
// @Router			/healthz [get]
func (h *httpServer) healthz(c *gin.Context) {
	if h.deps.Health != nil {
		ctx, cancel := context.WithTimeout(c.Request.Context(), 2*time.Second)
		defer cancel()
		if err := h.deps.Health(ctx); err != nil {
			zap.L().Warn("http.healthz", zap.Error(err))
			c.JSON(http.StatusServiceUnavailable, gin.H{"status": "unavailable"})
			return
		}
	}
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

func corsConfig(origins []string) cors.Config {
	cfg := cors.DefaultConfig()
	if len(origins) == 0 || slices.Contains(origins, "*") {
		cfg.AllowAllOrigins = true
	} else {
		cfg.AllowOrigins = origins
	}
	cfg.AllowMethods = []string{"GET", "POST", "DELETE", "OPTIONS"}
	cfg.AllowHeaders = []string{"Content-Type", "Authorization", "Accept", "X-Request-ID"}
	cfg.ExposeHeaders = []string{"Retry-After", "X-Request-ID"}
	return cfg
}
