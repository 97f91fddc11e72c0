package main

import (
	"context"
	"errors"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/redis/go-redis/v9"

	"github.com/ignatzorin/credit-transaction-service/internal/config"
	"github.com/ignatzorin/credit-transaction-service/internal/db"
	"github.com/ignatzorin/credit-transaction-service/internal/events"
	"github.com/ignatzorin/credit-transaction-service/internal/goroutine"
	httpHandlers "github.com/ignatzorin/credit-transaction-service/internal/http/handlers"
	httpRouter "github.com/ignatzorin/credit-transaction-service/internal/http/router"
	"github.com/ignatzorin/credit-transaction-service/internal/logger"
	"github.com/ignatzorin/credit-transaction-service/internal/metrics"
	"github.com/ignatzorin/credit-transaction-service/internal/repository"
	"github.com/ignatzorin/credit-transaction-service/internal/service"
	"github.com/ignatzorin/credit-transaction-service/internal/ws"
)

func main() {
	// Готовим контекст для graceful shutdown.
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg, err := config.Load()
	if err != nil {
		logger.Log.Fatalf("main: ошибка загрузки конфигурации: %v", err)
	}

	logger.Init(cfg.LogLevel, cfg.Env)

	// Подключение к базе и миграции.
	dbConn, err := db.NewPostgres(ctx, cfg.DatabaseURL, db.DefaultPoolOptions)
	if err != nil {
		logger.Log.Fatalf("main: ошибка подключения к базе: %v", err)
	}
	defer safeClose(dbConn)

	if err := db.RunMigrations(ctx, dbConn, cfg.MigrationsPath); err != nil {
		logger.Log.Fatalf("main: ошибка миграций: %v", err)
	}

	// Шина событий: Redis pub/sub, если задан REDIS_URL, иначе in-process.
	var (
		bus         events.Bus
		redisBus    *events.RedisBus
		redisClient *redis.Client
	)
	if cfg.RedisURL != "" {
		redisClient, err = events.Connect(ctx, cfg.RedisURL)
		if err != nil {
			logger.Log.Fatalf("main: ошибка подключения к redis: %v", err)
		}
		defer func() {
			if err := redisClient.Close(); err != nil {
				logger.Log.WithError(err).Warn("main: ошибка закрытия redis")
			}
		}()
		redisBus = events.NewRedisBus(redisClient, cfg.EventChannelPrefix)
		bus = redisBus
	} else {
		logger.Log.Warn("main: REDIS_URL не задан, события доставляются только внутри процесса")
		bus = events.NewLocalBus()
	}

	m := metrics.New("")
	tokenManager := service.NewTokenManager(cfg.JWTSecret, cfg.AccessTokenTTL)

	// Сервисы.
	store := repository.NewStore(dbConn)
	transactionService := service.NewTransactionService(store, bus, service.TransactionServiceConfig{
		FeeRate:         cfg.PlatformFeeRate,
		DefaultCurrency: cfg.DefaultCurrency,
		TTL:             cfg.TransactionTTL,
		ExpiryBatch:     cfg.ExpirySweepBatch,
	})
	cache := service.NewCacheService(cfg.SummaryCacheTTL)
	transactionService.SetCache(cache)
	transactionService.SetObserver(m)
	disputeService := service.NewDisputeService(transactionService)

	// Вебсокеты и подписки на события.
	hub := ws.NewHub()
	goroutine.SafeGoWithContext(ctx, hub.Run)
	ws.Forward(bus, hub)
	events.RegisterCallbacks(bus, transactionService)

	if redisBus != nil {
		goroutine.SafeGoWithContext(ctx, func(ctx context.Context) {
			if err := redisBus.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
				logger.Log.WithError(err).Error("main: подписка redis завершилась с ошибкой")
			}
		})
	}

	// Фоновые задачи.
	service.NewExpirySweeper(transactionService, cfg.ExpirySweepInterval).Start(ctx)
	if cfg.SummaryCacheTTL > 0 {
		cache.StartCleanup(ctx, cfg.SummaryCacheTTL)
	}

	// HTTP хэндлеры.
	transactionHandler := httpHandlers.NewTransactionHandler(transactionService)
	disputeHandler := httpHandlers.NewDisputeHandler(disputeService)
	callbackHandler := httpHandlers.NewCallbackHandler(transactionService)
	wsHandler := httpHandlers.NewWSHandler(hub, cfg.AllowedOrigins)
	healthHandler := httpHandlers.NewHealthHandler(dbConn, redisClient)

	// Роутер.
	engine := httpRouter.SetupRouter(cfg, transactionHandler, disputeHandler, callbackHandler, wsHandler, healthHandler, tokenManager, m)

	server := &http.Server{
		Addr:              ":" + cfg.HTTPPort,
		Handler:           engine,
		ReadHeaderTimeout: 10 * time.Second,
	}

	// Завершаем сервер при получении сигнала.
	goroutine.SafeGo(func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			logger.Log.WithError(err).Error("main: ошибка остановки http сервера")
		}
	})

	logger.Log.Infof("main: HTTP сервер запущен на порту %s", cfg.HTTPPort)

	if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		logger.Log.Fatalf("main: сервер завершился с ошибкой: %v", err)
	}
}

// safeClose закрывает соединение с базой.
func safeClose(db *sqlx.DB) {
	if err := db.Close(); err != nil {
		logger.Log.WithError(err).Error("main: ошибка закрытия базы")
	}
}
