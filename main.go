package main

import (
	"context"
	"errors"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/charmbracelet/log"
	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"

	"lineup-chat/internal/auth"
	"lineup-chat/internal/config"
	"lineup-chat/internal/conversation"
	"lineup-chat/internal/db"
	grpcserver "lineup-chat/internal/grpc"
	"lineup-chat/internal/handlers"
	"lineup-chat/internal/middleware"
	"lineup-chat/internal/observability"
	"lineup-chat/internal/rabbitmq"
	"lineup-chat/internal/repositories"
	"lineup-chat/internal/storage"
	"lineup-chat/internal/telemetry"
	"lineup-chat/internal/ws"
)

const serviceName = "lineup-chat"

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatal("failed to load config", "err", err)
	}
	if cfg.Debug {
		log.SetLevel(log.DebugLevel)
	}
	if cfg.Env == "production" {
		log.SetFormatter(log.JSONFormatter)
		gin.SetMode(gin.ReleaseMode)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	shutdownTracing, err := telemetry.InitTracing(ctx, cfg.OTLPEndpoint, serviceName, cfg.Env)
	if err != nil {
		log.Fatal("failed to init tracing", "err", err)
	}

	database, err := db.Connect(ctx, cfg.DatabaseDSN)
	if err != nil {
		log.Fatal("failed to connect to db", "err", err)
	}
	defer database.Close()

	publisher := rabbitmq.NewPublisher(cfg.AMQPURL, cfg.AMQPExchange)
	defer publisher.Close()
	observability.SetPublisher(publisher)
	log.Info("event publisher ready", "mode", rabbitmq.PublisherMode(publisher), "noop_reason", rabbitmq.PublisherNoopReason(publisher))
	emitter := telemetry.NewAuditEmitter(publisher, "audit.chat", serviceName, cfg.Env)

	opts := repositories.Options{Timeout: cfg.StoreTimeout, Attempts: cfg.StoreAttempts}
	threadRepo := repositories.NewThreadRepo(database, opts)
	messageRepo := repositories.NewMessageRepo(database, opts)
	connectionRepo := repositories.NewConnectionRepo(database, opts)

	var profileRepo repositories.ProfileRepository = repositories.NewProfileRepo(database, opts)
	if cfg.RedisURL != "" {
		redisOpts, err := redis.ParseURL(cfg.RedisURL)
		if err != nil {
			log.Fatal("invalid redis url", "err", err)
		}
		rdb := redis.NewClient(redisOpts)
		defer rdb.Close()
		profileRepo = repositories.NewCachedProfileRepo(profileRepo, rdb, cfg.ProfileCacheTTL)
		log.Info("profile cache enabled", "ttl", cfg.ProfileCacheTTL)
	}

	var objects storage.ObjectStore
	if cfg.S3Bucket != "" {
		s3Store, err := storage.NewS3Store(ctx, storage.S3Config{
			Bucket:        cfg.S3Bucket,
			Region:        cfg.S3Region,
			Endpoint:      cfg.S3Endpoint,
			AccessKey:     cfg.S3AccessKey,
			SecretKey:     cfg.S3SecretKey,
			PublicBaseURL: cfg.S3PublicBaseURL,
		})
		if err != nil {
			log.Fatal("failed to init object store", "err", err)
		}
		objects = s3Store
	} else {
		log.Info("group image uploads disabled", "reason", "empty s3 bucket")
	}

	hub := ws.NewHub()
	svc := conversation.NewService(threadRepo, messageRepo, profileRepo, conversation.Notifiers{hub, observability.EventNotifier{}})
	validator := auth.NewJWT(cfg.JWTSecret)

	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(cors.New(cors.Config{
		AllowOrigins:     []string{cfg.CORSOrigin},
		AllowMethods:     []string{"GET", "POST", "PATCH", "DELETE", "OPTIONS"},
		AllowHeaders:     []string{"Authorization", "Content-Type", "X-Request-Id", "X-Device-Id"},
		ExposeHeaders:    []string{"X-Request-Id", "Retry-After"},
		AllowCredentials: cfg.CORSOrigin != "*",
		MaxAge:           12 * time.Hour,
	}))
	router.Use(otelgin.Middleware(serviceName))
	router.Use(middleware.RequestID())
	router.Use(observability.HTTPMetricsMiddleware())

	router.GET("/healthz", func(c *gin.Context) {
		if err := database.PingContext(c.Request.Context()); err != nil {
			c.JSON(http.StatusServiceUnavailable, gin.H{"status": "down"})
			return
		}
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	router.GET("/metrics", gin.WrapH(promhttp.Handler()))

	handlers.Routes{
		Threads:      handlers.NewThreadHandler(svc, objects, emitter),
		Messages:     handlers.NewMessageHandler(svc, emitter),
		Connections:  handlers.NewConnectionHandler(connectionRepo, emitter),
		Profiles:     handlers.NewProfileHandler(profileRepo),
		Auth:         middleware.Authenticate(validator),
		OptionalAuth: middleware.OptionalAuth(validator),
		SendLimiter:  handlers.MessageRateLimiter(uint(max(cfg.MessageRateLimit, 1))),
	}.Register(router)
	handlers.RegisterDebugRoutes(router, emitter, cfg.Debug)
	router.GET("/ws/threads/:thread_id", ws.NewThreadWebSocketHandler(hub, svc, validator).Handle)

	health := grpcserver.NewHealthServer(database, 10*time.Second)
	go health.Run(ctx)
	grpcLis, err := net.Listen("tcp", ":"+cfg.GRPCPort)
	if err != nil {
		log.Fatal("failed to listen for grpc", "port", cfg.GRPCPort, "err", err)
	}
	go func() {
		log.Info("grpc health server listening", "port", cfg.GRPCPort)
		if err := health.Server().Serve(grpcLis); err != nil {
			log.Error("grpc server stopped", "err", err)
		}
	}()

	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}
	go func() {
		log.Info("http server listening", "port", cfg.Port, "env", cfg.Env)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal("server error", "err", err)
		}
	}()

	<-ctx.Done()
	log.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error("http shutdown failed", "err", err)
	}
	health.Server().GracefulStop()
	if err := shutdownTracing(shutdownCtx); err != nil {
		log.Error("tracing shutdown failed", "err", err)
	}
}
