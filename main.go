package main

import (
	"context"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"
	"go.opentelemetry.io/contrib/instrumentation/google.golang.org/grpc/otelgrpc"
	grpclib "google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"

	"messaging-service/internal/config"
	"messaging-service/internal/db"
	grpcclient "messaging-service/internal/grpc"
	"messaging-service/internal/handlers"
	"messaging-service/internal/logger"
	"messaging-service/internal/middleware"
	"messaging-service/internal/observability"
	"messaging-service/internal/presence"
	"messaging-service/internal/rabbitmq"
	"messaging-service/internal/repositories"
	"messaging-service/internal/service"
	"messaging-service/internal/telemetry"
	"messaging-service/internal/ws"
)

const serviceName = "messaging-service"

func main() {
	cfg, err := config.Load()
	if err != nil {
		panic(err)
	}
	logger.Init(cfg.Environment)

	ctx := context.Background()
	shutdownTracing, err := observability.InitTracing(ctx, serviceName, cfg.OTLPEndpoint)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to initialize tracing")
	}
	defer func() {
		_ = shutdownTracing(ctx)
	}()

	database, err := db.Connect(cfg.DBDSN)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to connect to db")
	}

	rdb := redis.NewClient(&redis.Options{Addr: cfg.RedisAddr})
	if err := rdb.Ping(ctx).Err(); err != nil {
		logger.Warn().Err(err).Str("addr", cfg.RedisAddr).Msg("redis unreachable, presence store disabled")
		rdb = nil
	}
	presenceStore := presence.NewStore(rdb)

	instanceID := uuid.NewString()
	publisher := rabbitmq.NewPublisher(cfg.AMQPURL, cfg.AMQPExchange, instanceID)
	defer publisher.Close()
	logger.Info().Str("mode", rabbitmq.Mode(publisher)).Str("instance_id", instanceID).Msg("event publisher ready")

	authConn, err := grpclib.NewClient(cfg.AuthGRPCAddr,
		grpclib.WithTransportCredentials(insecure.NewCredentials()),
		grpclib.WithStatsHandler(otelgrpc.NewClientHandler()),
	)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to connect to auth grpc")
	}
	defer authConn.Close()

	userConn, err := grpclib.NewClient(cfg.UserGRPCAddr,
		grpclib.WithTransportCredentials(insecure.NewCredentials()),
		grpclib.WithStatsHandler(otelgrpc.NewClientHandler()),
	)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to connect to user grpc")
	}
	defer userConn.Close()

	authClient := grpcclient.NewAuthClient(authConn)
	userClient := grpcclient.NewUserClient(userConn)

	audit := telemetry.NewAuditEmitter(publisher, "audit.messaging", serviceName, cfg.Environment)

	conversationRepo := repositories.NewConversationRepo(database)
	messageRepo := repositories.NewMessageRepo(database)

	conversationService := service.NewConversationService(conversationRepo, userClient, audit, cfg.StoreTimeout)
	messageService := service.NewMessageService(conversationRepo, messageRepo, userClient, audit, cfg.StoreTimeout)

	registry := ws.NewRegistry()
	notifier := ws.NewDirectoryNotifier(registry, userClient, publisher)
	gateway := ws.NewGateway(registry, authClient, conversationService, messageService, presenceStore, notifier, publisher)
	messageService.SetBroadcaster(gateway)

	consumer, err := rabbitmq.NewConsumer(cfg.AMQPURL, cfg.AMQPExchange, instanceID, ws.BrokerPatterns, gateway.HandleBroker)
	if err != nil {
		logger.Warn().Err(err).Msg("broker consumer unavailable, cross-instance fan-out disabled")
	}
	defer consumer.Close()

	conversationHandler := handlers.NewConversationHandler(conversationService)
	messageHandler := handlers.NewMessageHandler(messageService, conversationService)

	gin.SetMode(gin.ReleaseMode)
	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(cors.Default())
	router.Use(otelgin.Middleware(serviceName))
	router.Use(observability.HTTPMetricsMiddleware())

	router.GET("/healthz", func(c *gin.Context) {
		if err := database.PingContext(c.Request.Context()); err != nil {
			c.JSON(503, gin.H{"status": "degraded"})
			return
		}
		c.JSON(200, gin.H{"status": "ok"})
	})
	router.GET("/metrics", gin.WrapH(promhttp.Handler()))

	auth := middleware.Auth(authClient)

	router.POST("/conversations/private", auth, conversationHandler.CreatePrivate)
	router.POST("/conversations/group", auth, conversationHandler.CreateGroup)
	router.GET("/conversations", auth, conversationHandler.List)
	router.DELETE("/conversations/:id", auth, conversationHandler.Delete)
	router.POST("/conversations/:id/pin", auth, conversationHandler.TogglePin)
	router.POST("/conversations/:id/mute", auth, conversationHandler.ToggleMute)
	router.GET("/conversations/:id/messages", auth, messageHandler.List)
	router.POST("/conversations/:id/messages", auth, messageHandler.Post)
	router.POST("/conversations/:id/read", auth, messageHandler.MarkRead)
	router.GET("/messages/unread-count", auth, messageHandler.TotalUnread)

	router.GET("/ws", gateway.Handle)

	logger.Info().Str("port", cfg.Port).Msg("messaging service listening")
	if err := router.Run(":" + cfg.Port); err != nil {
		logger.Fatal().Err(err).Msg("server error")
	}
}
