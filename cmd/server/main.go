package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/go-demo/matchroom/internal/config"
	"github.com/go-demo/matchroom/internal/dto/response"
	"github.com/go-demo/matchroom/internal/handler"
	"github.com/go-demo/matchroom/internal/middleware"
	"github.com/go-demo/matchroom/internal/pkg/cache"
	"github.com/go-demo/matchroom/internal/pkg/database"
	"github.com/go-demo/matchroom/internal/pkg/metrics"
	"github.com/go-demo/matchroom/internal/pkg/notify"
	"github.com/go-demo/matchroom/internal/pkg/utils"
	"github.com/go-demo/matchroom/internal/repository"
	"github.com/go-demo/matchroom/internal/service"
	"github.com/go-demo/matchroom/internal/ws"
	"github.com/jmoiron/sqlx"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"golang.org/x/time/rate"
)

const version = "1.0.0"

// @title           Matchroom API
// @version         1.0
// @description     Matchmaking and room coordination for multiplayer coding games.
// @description     Asynchronous results are delivered over /ws on the search-{id} and room-{code} channels.

// @contact.name   API Support
// @contact.email  support@example.com

// @license.name  MIT
// @license.url   https://opensource.org/licenses/MIT

// @host      localhost:8080
// @BasePath  /

// @securityDefinitions.apikey BearerAuth
// @in header
// @name Authorization
// @description Type "Bearer" followed by a space and JWT token.

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Printf("Failed to load config: %v\n", err)
		os.Exit(1)
	}

	logger := initLogger(cfg.Log.Level, cfg.Log.Format)
	defer logger.Sync()

	logger.Info("Starting matchroom server",
		zap.String("mode", cfg.Server.Mode),
		zap.Int("port", cfg.Server.Port),
		zap.Duration("search_timeout", cfg.Matchmaking.SearchTimeout),
		zap.Duration("poll_interval", cfg.Matchmaking.PollInterval),
	)

	gin.SetMode(cfg.Server.Mode)

	db, err := database.NewPostgres(&cfg.Database, logger)
	if err != nil {
		logger.Fatal("Failed to connect to database", zap.Error(err))
	}
	defer database.Close(db, logger)

	redisClient, err := cache.NewRedis(&cfg.Redis, logger)
	if err != nil {
		logger.Fatal("Failed to connect to Redis", zap.Error(err))
	}
	defer cache.Close(redisClient, logger)

	jwtManager := utils.NewJWTManager(cfg.JWT.Secret, cfg.JWT.TokenTTL, cfg.JWT.Issuer)

	registry := prometheus.NewRegistry()
	registry.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	matchMetrics := metrics.NewMetrics(registry)

	// Repositories
	userRepo := repository.NewUserRepository(db)
	roomRepo := repository.NewRoomRepository(db)
	searchRepo := repository.NewSearchRepository(db)

	// Services
	publisher := notify.NewRedisPublisher(redisClient, logger)
	roomService := service.NewRoomService(roomRepo, userRepo, publisher, matchMetrics, service.RoomOptions{
		CodeLength:   cfg.Matchmaking.RoomCodeLength,
		CodeAttempts: cfg.Matchmaking.RoomCodeAttempts,
	}, logger)
	redisCache := cache.NewCache(redisClient, logger)
	matchmaker := service.NewMatchmaker(searchRepo, roomService, publisher, matchMetrics, cfg.Matchmaking, logger).
		WithLocker(redisCache)

	// Background workers
	bgCtx, stopBackground := context.WithCancel(context.Background())
	defer stopBackground()

	hub := ws.NewHub(matchmaker, roomService, redisClient, logger)
	go hub.Run(bgCtx)
	go matchmaker.RunJanitor(bgCtx)

	router := setupRouter(cfg, logger, jwtManager, db, redisClient, redisCache, registry,
		handler.NewMatchHandler(matchmaker),
		handler.NewRoomHandler(roomService),
		ws.NewHandler(hub, jwtManager, logger),
	)

	srv := &http.Server{
		Addr:         cfg.Server.GetAddr(),
		Handler:      router,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}

	go func() {
		logger.Info("Server is running",
			zap.String("addr", srv.Addr),
		)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal("Failed to start server", zap.Error(err))
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("Shutting down server...")

	ctx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		logger.Error("Server forced to shutdown", zap.Error(err))
	}

	// In-flight searches are cancelled; their records expire on their own
	if err := matchmaker.Shutdown(ctx); err != nil {
		logger.Error("Search tasks did not drain", zap.Error(err))
	}

	stopBackground()

	logger.Info("Server exited")
}

func initLogger(level, format string) *zap.Logger {
	var zapLevel zapcore.Level
	switch level {
	case "debug":
		zapLevel = zapcore.DebugLevel
	case "info":
		zapLevel = zapcore.InfoLevel
	case "warn":
		zapLevel = zapcore.WarnLevel
	case "error":
		zapLevel = zapcore.ErrorLevel
	default:
		zapLevel = zapcore.InfoLevel
	}

	encoding := "json"
	if format == "console" {
		encoding = "console"
	}

	config := zap.Config{
		Level:            zap.NewAtomicLevelAt(zapLevel),
		Development:      false,
		Encoding:         encoding,
		EncoderConfig:    zap.NewProductionEncoderConfig(),
		OutputPaths:      []string{"stdout"},
		ErrorOutputPaths: []string{"stderr"},
	}

	config.EncoderConfig.TimeKey = "timestamp"
	config.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder

	logger, err := config.Build()
	if err != nil {
		panic(err)
	}

	return logger
}

func setupRouter(
	cfg *config.Config,
	logger *zap.Logger,
	jwtManager *utils.JWTManager,
	db *sqlx.DB,
	redisClient *redis.Client,
	redisCache *cache.Cache,
	registry *prometheus.Registry,
	matchHandler *handler.MatchHandler,
	roomHandler *handler.RoomHandler,
	wsHandler *ws.Handler,
) *gin.Engine {
	router := gin.New()

	// Global middleware
	router.Use(middleware.RequestID())
	router.Use(middleware.Recovery(logger))
	router.Use(middleware.Logger(logger, "/health", "/metrics"))
	router.Use(middleware.CORS(cfg.Server.AllowedOrigins...))

	router.GET("/health", healthCheck(db, redisCache))
	router.GET("/metrics", gin.WrapH(promhttp.HandlerFor(registry, promhttp.HandlerOpts{Registry: registry})))

	// Swagger documentation
	router.GET("/swagger/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))

	// WebSocket endpoint, authenticated by the token query parameter
	router.GET("/ws", wsHandler.ServeWS)

	searchLimiter := middleware.NewInMemoryRateLimiter(
		rate.Limit(float64(cfg.RateLimit.SearchesPerMinute)/60),
		cfg.RateLimit.SearchBurst,
	)

	v1 := router.Group("/api/v1")
	v1.Use(middleware.Auth(jwtManager))
	v1.Use(middleware.APIRateLimit(redisClient, cfg.RateLimit.APIRequestsPerMinute, logger))
	{
		searches := v1.Group("/searches")
		{
			searches.POST("", middleware.SearchRateLimit(searchLimiter, time.Minute, logger), matchHandler.StartSearch)
			searches.GET("/:id", matchHandler.GetSearch)
			searches.DELETE("/:id", matchHandler.CancelSearch)
		}

		rooms := v1.Group("/rooms")
		{
			rooms.POST("", roomHandler.Create)
			rooms.GET("/me", roomHandler.GetMyRoom)
			rooms.POST("/me/ready", roomHandler.SetReady)
			rooms.GET("/:code", roomHandler.Get)
			rooms.DELETE("/:code", roomHandler.Close)
			rooms.POST("/:code/join", roomHandler.Join)
			rooms.POST("/:code/leave", roomHandler.Leave)
			rooms.PATCH("/:code/settings", roomHandler.UpdateSettings)
			rooms.DELETE("/:code/members/:username", roomHandler.RemoveMember)
		}

		v1.GET("/ws/stats", wsHandler.GetStats)
	}

	return router
}

var startedAt = time.Now()

func healthCheck(db *sqlx.DB, redisCache *cache.Cache) gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx, cancel := context.WithTimeout(c.Request.Context(), 2*time.Second)
		defer cancel()

		health := response.HealthResponse{
			Status:    "healthy",
			Version:   version,
			Uptime:    time.Since(startedAt).Round(time.Second).String(),
			Timestamp: time.Now().Format(time.RFC3339),
			Services:  map[string]string{"postgres": "up", "redis": "up"},
		}

		if err := database.Ping(ctx, db); err != nil {
			health.Status = "degraded"
			health.Services["postgres"] = "down"
		}
		if err := redisCache.Ping(ctx); err != nil {
			health.Status = "degraded"
			health.Services["redis"] = "down"
		}

		status := http.StatusOK
		if health.Status != "healthy" {
			status = http.StatusServiceUnavailable
		}
		c.JSON(status, response.Response{Success: status == http.StatusOK, Data: health})
	}
}
