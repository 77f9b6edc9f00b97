package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"
	"go.opentelemetry.io/contrib/instrumentation/google.golang.org/grpc/otelgrpc"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
	grpc "google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"

	"skill-exchange/internal/app"
	"skill-exchange/internal/config"
	"skill-exchange/internal/db"
	"skill-exchange/internal/firestore"
	grpcclient "skill-exchange/internal/grpc"
	"skill-exchange/internal/handlers"
	"skill-exchange/internal/live"
	"skill-exchange/internal/middleware"
	"skill-exchange/internal/observability"
	"skill-exchange/internal/rabbitmq"
	"skill-exchange/internal/repositories"
	"skill-exchange/internal/repositories/memory"
	"skill-exchange/internal/services"
	"skill-exchange/internal/telemetry"
	"skill-exchange/internal/ws"
)

type stores struct {
	requests repositories.RequestRepository
	sessions repositories.SessionRepository
	messages repositories.MessageRepository
}

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	logger, err := observability.NewLogger(cfg.Environment)
	if err != nil {
		log.Fatalf("failed to build logger: %v", err)
	}
	defer logger.Sync()

	if err := run(cfg, logger); err != nil {
		logger.Fatal("service stopped with error", zap.Error(err))
	}
}

func run(cfg *config.Config, logger *zap.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	shutdownTracer, err := telemetry.InitTracer(ctx, cfg.OTLPEndpoint, cfg.ServiceName, cfg.Environment)
	if err != nil {
		return fmt.Errorf("init tracer: %w", err)
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := shutdownTracer(shutdownCtx); err != nil {
			logger.Warn("tracer shutdown failed", zap.Error(err))
		}
	}()

	broker := live.NewBroker()
	var background []func(context.Context) error

	var st stores
	var feed live.Feed
	switch cfg.StorageBackend {
	case config.StorageBackendPostgres:
		database, err := db.Connect(ctx, cfg.DBDSN, logger)
		if err != nil {
			return fmt.Errorf("connect db: %w", err)
		}
		defer database.Close()
		st = stores{
			requests: repositories.NewRequestRepo(database),
			sessions: repositories.NewSessionRepo(database),
			messages: repositories.NewMessageRepo(database),
		}
		if cfg.LiveFeed == config.LiveFeedPostgres {
			feed = live.NewPostgresFeed(database, cfg.LiveChannel, broker)
			background = append(background, live.NewPGListener(cfg.DBDSN, cfg.LiveChannel, broker, logger).Run)
		}
	default:
		store := memory.NewStore(nil)
		st = stores{requests: store, sessions: store, messages: store}
		logger.Warn("using in-memory storage, data is lost on restart")
	}

	switch cfg.LiveFeed {
	case config.LiveFeedRedis:
		opts, err := redis.ParseURL(cfg.RedisURL)
		if err != nil {
			return fmt.Errorf("parse redis url: %w", err)
		}
		rdb := redis.NewClient(opts)
		defer rdb.Close()
		feed = live.NewRedisFeed(rdb, cfg.LiveChannel, broker)
		background = append(background, live.NewRedisListener(rdb, cfg.LiveChannel, broker, logger).Run)
	case config.LiveFeedLocal:
		feed = live.NewLocalFeed(broker)
	}

	dialOpts := []grpc.DialOption{
		grpc.WithTransportCredentials(insecure.NewCredentials()),
		grpc.WithStatsHandler(otelgrpc.NewClientHandler()),
		grpc.WithUnaryInterceptor(observability.GRPCClientMetricsUnaryInterceptor()),
	}

	authConn, err := grpc.NewClient(cfg.AuthGRPCAddr, dialOpts...)
	if err != nil {
		return fmt.Errorf("connect auth grpc: %w", err)
	}
	defer authConn.Close()
	authClient := grpcclient.NewAuthClient(authConn)

	var directory services.Directory
	switch cfg.DirectoryBackend {
	case config.DirectoryBackendFirestore:
		userStore, err := firestore.NewUserStore(ctx, cfg.FirestoreProjectID)
		if err != nil {
			return fmt.Errorf("connect firestore: %w", err)
		}
		defer userStore.Close()
		directory = userStore
	default:
		dirConn, err := grpc.NewClient(cfg.DirectoryGRPCAddr, dialOpts...)
		if err != nil {
			return fmt.Errorf("connect directory grpc: %w", err)
		}
		defer dirConn.Close()
		directory = grpcclient.NewDirectoryClient(dirConn)
	}

	publisher := rabbitmq.NewPublisher(cfg.AMQPURL, cfg.AMQPExchange, logger)
	defer publisher.Close()
	logger.Info("event publisher ready",
		zap.String("mode", rabbitmq.PublisherMode(publisher)),
		zap.String("reason", rabbitmq.PublisherNoopReason(publisher)),
	)
	audit := telemetry.NewAuditEmitter(publisher, cfg.AuditRoutingKey, cfg.ServiceName, cfg.Environment, logger)

	svc := services.New(st.requests, st.sessions, st.messages, directory, services.Options{
		Broker: broker,
		Feed:   feed,
		Events: publisher,
		Logger: logger,
	})

	reconciler := app.NewReconciler(st.requests, svc.Registry, cfg.ReconcileInterval, cfg.ReconcileBatch, logger)
	background = append(background, reconciler.Run)

	hub := ws.NewHub(publisher, logger)
	router := newRouter(cfg, logger, svc, hub, authClient, audit, broker)

	server := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		logger.Info("http server listening", zap.String("addr", server.Addr))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("http server: %w", err)
		}
		return nil
	})
	for _, runFn := range background {
		g.Go(func() error { return runFn(gctx) })
	}
	g.Go(func() error {
		<-gctx.Done()
		logger.Info("shutting down")
		reconciler.Stop()
		hub.CloseAll()

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return server.Shutdown(shutdownCtx)
	})

	return g.Wait()
}

func newRouter(cfg *config.Config, logger *zap.Logger, svc *services.Services, hub *ws.Hub, authenticator middleware.Authenticator, audit *telemetry.AuditEmitter, broker *live.Broker) *gin.Engine {
	if cfg.IsProduction() {
		gin.SetMode(gin.ReleaseMode)
	}

	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(otelgin.Middleware(cfg.ServiceName))
	router.Use(observability.HTTPMetricsMiddleware())
	router.Use(middleware.RequestID())

	router.GET("/healthz", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	router.GET("/metrics", gin.WrapH(promhttp.Handler()))

	authMiddleware := middleware.AuthMiddleware(authenticator)

	requestHandler := handlers.NewRequestHandler(svc.Ledger, audit)
	userHandler := handlers.NewUserHandler(svc.Ledger)
	sessionHandler := handlers.NewSessionHandler(svc.Registry, svc.Stream, audit)

	api := router.Group("/", authMiddleware)
	api.GET("/users", userHandler.Browse)

	api.POST("/requests", requestHandler.Submit)
	api.GET("/requests/incoming", requestHandler.ListIncoming)
	api.GET("/requests/outgoing", requestHandler.ListOutgoing)
	api.GET("/requests/:request_id", requestHandler.Get)
	api.POST("/requests/:request_id/respond", requestHandler.Respond)

	api.GET("/sessions", sessionHandler.List)
	api.GET("/sessions/:session_id", sessionHandler.Get)
	api.POST("/sessions/:session_id/complete", sessionHandler.Complete)
	api.GET("/sessions/:session_id/messages", sessionHandler.Messages)
	api.POST("/sessions/:session_id/messages", sessionHandler.PostMessage)

	liveHandler := ws.NewLiveHandler(hub, svc, logger)
	wsGroup := router.Group("/ws", authMiddleware)
	wsGroup.GET("/requests/incoming", liveHandler.IncomingRequests)
	wsGroup.GET("/requests/outgoing", liveHandler.OutgoingRequests)
	wsGroup.GET("/sessions", liveHandler.Sessions)
	wsGroup.GET("/sessions/:session_id/messages", liveHandler.SessionMessages)

	handlers.RegisterDebugRoutes(api, audit, broker, cfg.DebugRoutes)

	return router
}
