package main

import (
	"context"
	"database/sql"
	"os"
	"os/signal"
	"syscall"
	"time"

	"livebid/internal/auth"
	"livebid/internal/bidding"
	"livebid/internal/clock"
	"livebid/internal/config"
	"livebid/internal/database/auctionrepo"
	"livebid/internal/database/db_client"
	"livebid/internal/database/userrepo"
	"livebid/internal/http/http_server"
	"livebid/internal/logger"
	"livebid/internal/participants"
	"livebid/internal/ratelimit"
	"livebid/internal/redis/auctionstore"
	"livebid/internal/redis/redis_client"
	"livebid/internal/redis/redis_functions"
	"livebid/internal/redis/watcher/auctionwatcher"
	"livebid/internal/services/auction"
	"livebid/internal/services/user"
	"livebid/internal/syncbid"
	"livebid/internal/syncdb"
	"livebid/internal/ws"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

//	@title						livebid API
//	@version					1.0
//	@description				Live auction bidding: auctions, bids, watchlists and moderation.
//	@BasePath					/
//	@securityDefinitions.apikey	BearerAuth
//	@in							header
//	@name						Authorization

func main() {
	// Bootstrap logger until the configured one is built
	boot, _ := zap.NewDevelopment()
	zap.ReplaceGlobals(boot)

	// 1. Load configuration
	cfg, err := config.LoadConfig()
	if err != nil {
		zap.L().Fatal("Failed to load configuration", zap.Error(err))
	}
	log, err := logger.Init(cfg.LogLevel, cfg.LogFormat)
	if err != nil {
		zap.L().Fatal("Failed to init logger", zap.Error(err))
	}
	defer log.Sync()

	// 2. Context with signal handling
	ctx, stop := signal.NotifyContext(context.Background(),
		os.Interrupt, syscall.SIGINT, syscall.SIGTERM,
	)
	defer stop()

	// 3. Redis
	redisClient, err := redis_client.NewRedisClient(cfg.RedisHost, int(cfg.RedisPort), cfg.RedisPassword)
	if err != nil {
		zap.L().Fatal("Failed to create Redis client", zap.Error(err))
	}
	defer redisClient.Close()

	// Load the Redis Functions lua
	if err := redis_functions.LoadAll(ctx, redisClient); err != nil {
		zap.L().Fatal("load-redis-funcs", zap.Error(err))
	}

	// 4. Postgres db client
	pgDb, err := db_client.Open(cfg.PostgresHost, cfg.PostgresPort, cfg.PostgresUser, cfg.PostgresPassword, cfg.PostgresDb)
	if err != nil {
		zap.L().Fatal("pg-open", zap.Error(err))
	}
	defer pgDb.Close()
	if cfg.MigrateOnStart {
		if err := db_client.Migrate(ctx, pgDb); err != nil {
			zap.L().Fatal("pg-migrate", zap.Error(err))
		}
	}

	// 5. Stores and rules
	users := userrepo.New(pgDb)
	archive := auctionrepo.New(pgDb)
	store := auctionstore.New(redisClient)
	limiter := newLimiter(cfg, redisClient)

	clk := clock.Clock{Warning: cfg.ClockWarning}
	scheduler := clock.NewScheduler(clk, cfg.ClockTick)
	defer scheduler.Stop()

	rules := auction.Rules{
		Validator: bidding.New(cfg.BidMinIncrement, bidding.IncrementRule(cfg.BidIncrementRule)),
		Tracker:   participants.New(cfg.ParticipantDisplayCap),
		Clock:     clk,
	}

	// 6. Services
	tokens := auth.NewJWTService(cfg.JwtSecret, cfg.JwtTTL)
	userService := user.NewUserService(users, store, limiter, tokens, cfg.AdminPhones)
	auctionService := auction.NewAuctionService(store, users, archive, limiter, scheduler, rules)
	if err := auctionService.Resume(ctx); err != nil {
		zap.L().Fatal("auction-resume", zap.Error(err))
	}

	// 7. WebSockets hub + servers
	hub := ws.NewHub()
	wsSrv := ws.NewWsServer(hub, redisClient, auctionService, userService, ws.Options{
		Clock:          clk,
		Tick:           cfg.ClockTick,
		AllowedOrigins: cfg.CorsOrigins,
	})
	httpServer := http_server.NewHttpServer(ctx, cfg.HttpServerPort, http_server.Deps{
		Auctions:    auctionService,
		Users:       userService,
		Ws:          wsSrv,
		Health:      health(redisClient, pgDb),
		CorsOrigins: cfg.CorsOrigins,
	})

	ratelimit.RunJanitor(ctx, limiter, cfg.RateLimitSweep)

	g, gctx := errgroup.WithContext(ctx)

	// Background: key-expiry watcher finalises auctions
	g.Go(func() error { auctionwatcher.Run(gctx, redisClient, auctionService); return nil })
	// Background: bid stream and active auctions into Postgres
	g.Go(func() error { syncbid.Run(gctx, redisClient, archive); return nil })
	g.Go(func() error { syncdb.Run(gctx, store, archive, cfg.SyncInterval); return nil })
	g.Go(func() error { ws.RunLobbyFanout(gctx, redisClient, hub); return nil })

	// HTTP + WS server
	g.Go(httpServer.Start)
	g.Go(func() error {
		<-gctx.Done()
		return httpServer.Dispose()
	})

	if err := g.Wait(); err != nil {
		zap.L().Error("server_exit", zap.Error(err))
		os.Exit(1)
	}
	zap.L().Info("server_stopped")
}

func newLimiter(cfg *config.Config, rdc *redis.Client) ratelimit.Limiter {
	if cfg.RateLimitBackend == "redis" {
		return ratelimit.NewRedis(rdc, cfg.RateLimit())
	}
	return ratelimit.NewMemory(cfg.RateLimit())
}

func health(rdc *redis.Client, db *sql.DB) http_server.HealthFunc {
	return func(ctx context.Context) error {
		if err := rdc.Ping(ctx).Err(); err != nil {
			return err
		}
		ctx, cancel := context.WithTimeout(ctx, time.Second)
		defer cancel()
		return db.PingContext(ctx)
	}
}
