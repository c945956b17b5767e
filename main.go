package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"

	"chat-backend/internal/auth"
	"chat-backend/internal/bus"
	"chat-backend/internal/config"
	"chat-backend/internal/db"
	"chat-backend/internal/handlers"
	"chat-backend/internal/logging"
	"chat-backend/internal/middleware"
	"chat-backend/internal/observability"
	"chat-backend/internal/presence"
	"chat-backend/internal/rabbitmq"
	"chat-backend/internal/repositories"
	"chat-backend/internal/service"
	"chat-backend/internal/telemetry"
	"chat-backend/internal/ws"
)

const serviceName = "chat-backend"

// Keyed message sends deduplicate within this window.
const idempotencyWindow = time.Minute

// Exit codes: 0 clean shutdown, 1 bad configuration, 2 store or bus
// unreachable at startup.
const (
	exitOK     = 0
	exitConfig = 1
	exitDeps   = 2
)

func main() {
	os.Exit(run())
}

func run() int {
	cfg, err := config.Load()
	if err != nil {
		// The process logger is not configured yet.
		bootstrapLogger := zerolog.New(os.Stderr)
		bootstrapLogger.Error().Err(err).Msg("invalid configuration")
		return exitConfig
	}

	logger := logging.Setup(cfg.Env, cfg.LogLevel)
	logger.Info().Str("env", cfg.Env).Str("port", cfg.Port).Msg("starting chat backend")

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	shutdownTracing, err := observability.SetupTracing(ctx, cfg.OTLPEndpoint, serviceName, cfg.Env)
	if err != nil {
		logger.Error().Err(err).Msg("tracing setup failed")
		return exitDeps
	}
	defer func() {
		flushCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := shutdownTracing(flushCtx); err != nil {
			logger.Warn().Err(err).Msg("tracing shutdown failed")
		}
	}()

	database, err := db.Connect(cfg)
	if err != nil {
		logger.Error().Err(err).Msg("database unavailable")
		return exitDeps
	}
	defer database.Close()

	redisClient := redis.NewClient(&redis.Options{
		Addr:     cfg.RedisAddr,
		Password: cfg.RedisPassword,
		DB:       cfg.RedisDB,
	})
	defer redisClient.Close()

	pingCtx, cancelPing := context.WithTimeout(ctx, cfg.CallTimeout)
	err = redisClient.Ping(pingCtx).Err()
	cancelPing()
	if err != nil {
		logger.Error().Err(err).Str("addr", cfg.RedisAddr).Msg("redis unavailable")
		return exitDeps
	}

	// Audit and websocket event publishers fall back to noop when AMQP is
	// absent so a missing broker never blocks the data path.
	auditPublisher := rabbitmq.NewPublisher(cfg.AMQPURL, cfg.AMQPExchange)
	defer auditPublisher.Close()
	logger.Info().Str("mode", rabbitmq.PublisherMode(auditPublisher)).Msg("audit publisher ready")

	if wsPublisher, err := observability.NewAMQPPublisher(cfg.AMQPURL, cfg.AMQPExchange); err == nil {
		observability.SetPublisher(wsPublisher)
		defer wsPublisher.Close()
	} else {
		logger.Info().Err(err).Msg("ws event publishing disabled")
	}

	audit := telemetry.NewAuditEmitter(auditPublisher, cfg.AuditRoutingKey, serviceName, cfg.Env)

	userRepo := repositories.NewUserRepo(database)
	roomRepo := repositories.NewRoomRepo(database)
	memberRepo := repositories.NewMemberRepo(database)
	messageRepo := repositories.NewMessageRepo(database)

	hasher := auth.NewPasswordHasher(cfg.BcryptCost)
	tokens := auth.NewTokenManager(cfg.JWTSecret, cfg.AccessTokenTTL, cfg.RefreshTokenTTL)

	// Presence entries live for two heartbeats so one lost pong never flaps
	// a user offline.
	tracker := presence.NewRedisTracker(redisClient, 2*cfg.HeartbeatInterval)
	eventBus := bus.NewRedisBus(redisClient, logger, cfg.CallTimeout)
	defer eventBus.Close()

	hub := ws.NewHub(eventBus, tracker, cfg.CallTimeout, logger)
	go hub.Run(eventBus.Events())

	attempts := service.NewAttemptLimiter(redisClient, cfg.JoinAttemptLimit, cfg.JoinAttemptWindow)
	idem := service.NewIdempotencyCache(redisClient, idempotencyWindow)

	userSvc := service.NewUserSvc(userRepo, hasher, tokens, audit, logger)
	roomSvc := service.NewRoomSvc(roomRepo, memberRepo, userRepo, tracker, eventBus, hasher, attempts, audit, logger)
	messageSvc := service.NewMessageSvc(messageRepo, roomRepo, memberRepo, eventBus, idem, logger)

	authHandler := handlers.NewAuthHandler(userSvc)
	userHandler := handlers.NewUserHandler(userSvc)
	roomHandler := handlers.NewRoomHandler(roomSvc)
	messageHandler := handlers.NewMessageHandler(messageSvc)
	wsHandler := ws.NewHandler(hub, userRepo, tokens, roomSvc, messageSvc, cfg.HeartbeatInterval, cfg.CallTimeout, cfg.SendQueueSize, logger)

	if !cfg.IsDevelopment() {
		gin.SetMode(gin.ReleaseMode)
	}
	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(middleware.RequestID())
	router.Use(middleware.RequestLogger(logger))
	router.Use(otelgin.Middleware(serviceName))
	router.Use(observability.HTTPMetricsMiddleware())

	router.GET("/health", handlers.Health)
	router.GET("/metrics", gin.WrapH(promhttp.Handler()))
	router.GET("/ws", wsHandler.Handle)
	handlers.RegisterDebugRoutes(router, audit, cfg.DebugRoutes)

	api := router.Group("/api/v1")

	authGroup := api.Group("/auth", middleware.RateLimit(cfg.AuthRateLimitRPS, cfg.AuthRateLimitBurst))
	authGroup.POST("/register", authHandler.Register)
	authGroup.POST("/login", authHandler.Login)
	authGroup.POST("/refresh", authHandler.Refresh)

	protected := api.Group("", middleware.RequireAuth(tokens, userRepo))
	protected.GET("/users/me", userHandler.Me)
	protected.PUT("/users/me", userHandler.UpdateMe)
	protected.GET("/users/search", userHandler.Search)

	protected.POST("/rooms", roomHandler.Create)
	protected.GET("/rooms", roomHandler.List)
	protected.GET("/rooms/:id", roomHandler.Get)
	protected.PUT("/rooms/:id", roomHandler.Update)
	protected.DELETE("/rooms/:id", roomHandler.Close)
	protected.POST("/rooms/:id/join", roomHandler.Join)
	protected.POST("/rooms/:id/leave", roomHandler.Leave)
	protected.GET("/rooms/:id/members", roomHandler.Members)
	protected.GET("/rooms/:id/members/online", roomHandler.OnlineMembers)
	protected.POST("/rooms/:id/members", roomHandler.Invite)
	protected.DELETE("/rooms/:id/members/:user_id", roomHandler.Kick)
	protected.PUT("/rooms/:id/members/:user_id", roomHandler.ChangeRole)

	protected.POST("/rooms/:id/messages", messageHandler.Send)
	protected.GET("/rooms/:id/messages", messageHandler.History)
	protected.POST("/rooms/:id/read", messageHandler.MarkRead)
	protected.GET("/messages/:id", messageHandler.Get)
	protected.PUT("/messages/:id", messageHandler.Edit)
	protected.DELETE("/messages/:id", messageHandler.Delete)

	srv := &http.Server{
		Addr:    ":" + cfg.Port,
		Handler: router,
	}

	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.ListenAndServe()
	}()
	logger.Info().Str("addr", srv.Addr).Msg("http server listening")

	select {
	case <-ctx.Done():
		logger.Info().Msg("shutdown signal received")
	case err := <-errCh:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error().Err(err).Msg("http server failed")
			return exitDeps
		}
	}

	// Stop accepting requests first, then close the sockets so every client
	// sees 1012 and the read loops finish their teardown.
	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Warn().Err(err).Msg("http shutdown incomplete")
	}
	if err := hub.Shutdown(shutdownCtx); err != nil {
		logger.Warn().Err(err).Msg("hub shutdown incomplete")
	}

	logger.Info().Msg("shutdown complete")
	return exitOK
}
