package router

import (
	"github.com/gin-gonic/gin"

	"github.com/ignatzorin/credit-transaction-service/internal/config"
	"github.com/ignatzorin/credit-transaction-service/internal/http/handlers"
	"github.com/ignatzorin/credit-transaction-service/internal/http/middleware"
	"github.com/ignatzorin/credit-transaction-service/internal/metrics"
	"github.com/ignatzorin/credit-transaction-service/internal/service"
)

func SetupRouter(
	cfg *config.Config,
	transactionHandler *handlers.TransactionHandler,
	disputeHandler *handlers.DisputeHandler,
	callbackHandler *handlers.CallbackHandler,
	wsHandler *handlers.WSHandler,
	healthHandler *handlers.HealthHandler,
	tokenManager *service.TokenManager,
	m *metrics.Metrics,
) *gin.Engine {
	if cfg.Env == "production" {
		gin.SetMode(gin.ReleaseMode)
	}

	r := gin.Default()
	r.Use(middleware.RequestID())
	r.Use(m.Middleware())
	r.Use(middleware.ErrorHandler())
	r.Use(middleware.CORSMiddleware(cfg.AllowedOrigins))

	r.GET("/health", healthHandler.Health)
	r.GET("/metrics", gin.WrapH(m.Handler()))

	api := r.Group("/api")
	api.Use(middleware.RateLimitMiddleware(cfg.RateLimitLimit, cfg.RateLimitPeriod))

	transactions := api.Group("/transactions")
	{
		transactions.POST("", transactionHandler.CreateTransaction)
		transactions.GET("/buyer/:buyerId", transactionHandler.ListByBuyer)
		transactions.GET("/seller/:sellerId", transactionHandler.ListBySeller)
		transactions.GET("/:id", transactionHandler.GetTransaction)
		transactions.GET("/:id/summary", transactionHandler.GetSummary)
		transactions.GET("/:id/history", transactionHandler.GetHistory)
		transactions.PUT("/:id/status", transactionHandler.UpdateStatus)
		transactions.POST("/:id/cancel", transactionHandler.CancelTransaction)
		transactions.POST("/:id/payment", transactionHandler.InitiatePayment)
	}

	disputes := api.Group("/disputes")
	{
		disputes.POST("", disputeHandler.CreateDispute)
		disputes.GET("", disputeHandler.ListAll)
		disputes.GET("/active", disputeHandler.ListActive)
		disputes.GET("/status/:status", disputeHandler.ListByStatus)
		disputes.GET("/transaction/:transactionId", disputeHandler.GetByTransaction)
		disputes.GET("/user/:userId", disputeHandler.ListByUser)
		disputes.GET("/:id", disputeHandler.GetDispute)
		disputes.POST("/:id/review", disputeHandler.StartReview)
		disputes.POST("/:id/resolve", disputeHandler.ResolveDispute)
		disputes.POST("/:id/close", disputeHandler.CloseDispute)
	}

	// Служебные вызовы платёжного и кредитного сервисов
	internal := api.Group("/internal")
	internal.Use(middleware.InternalTokenMiddleware(cfg.InternalAPIToken))
	{
		internal.POST("/payments/completed", callbackHandler.PaymentCompleted)
		internal.POST("/payments/failed", callbackHandler.PaymentFailed)
		internal.POST("/credits/transferred", callbackHandler.CreditTransferred)
		internal.POST("/credits/failed", callbackHandler.CreditTransferFailed)
	}

	// WebSocket: токен передаётся в query, т.к. браузер не умеет ставить заголовки
	r.GET("/api/ws", middleware.AuthMiddleware(tokenManager), wsHandler.Handle)

	return r
}
