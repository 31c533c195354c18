package app

import (
	"net/http"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/newrelic/go-agent/v3/integrations/nrgin"
	"github.com/newrelic/go-agent/v3/newrelic"
	"go.uber.org/zap"

	"bikerental/internal/handler"
	"bikerental/internal/middleware"
)

// RouterDeps contains all dependencies needed for the router.
type RouterDeps struct {
	UserHandler    *handler.UserHandler
	BikeHandler    *handler.BikeHandler
	BookingHandler *handler.BookingHandler
	DraftHandler   *handler.DraftHandler
	PaymentHandler *handler.PaymentHandler
	WalletHandler  *handler.WalletHandler
	DamageHandler  *handler.DamageHandler
	AdminHandler   *handler.AdminHandler

	Auth             *middleware.Authenticator
	IdempotencyCache middleware.ResponseCache // nil disables replay
	AllowedOrigins   []string
	NewRelicApp      *newrelic.Application
	Logger           *zap.Logger
}

// NewRouter creates a new Gin router with all routes registered.
func NewRouter(deps RouterDeps) *gin.Engine {
	handler.RegisterValidators()

	router := gin.New()

	router.Use(gin.Recovery())
	router.Use(requestLogger(deps.Logger))
	router.Use(cors.New(corsConfig(deps.AllowedOrigins)))

	if deps.NewRelicApp != nil {
		router.Use(nrgin.Middleware(deps.NewRelicApp))
	}

	router.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	v1 := router.Group("/v1")

	// Unauthenticated: signup and the gateway's browser redirect.
	v1.POST("/users/register", deps.UserHandler.Register)
	v1.GET("/payments/return", deps.PaymentHandler.ConfirmGatewayPayment)

	api := v1.Group("")
	api.Use(deps.Auth.Middleware())
	api.Use(middleware.TransactionAttributes())
	api.Use(middleware.IdempotencyMiddleware(deps.IdempotencyCache, deps.Logger))
	{
		users := api.Group("/users")
		{
			users.GET("/me", deps.UserHandler.Me)
			users.POST("/me/token", deps.UserHandler.RefreshToken)
			users.GET("/:id", deps.UserHandler.GetUser)
		}

		bikes := api.Group("/bikes")
		{
			bikes.POST("", deps.BikeHandler.CreateBike)
			bikes.GET("/:id", deps.BikeHandler.GetBike)
			bikes.GET("/:id/availability", deps.BikeHandler.GetAvailability)
			bikes.PATCH("/:id", deps.BikeHandler.UpdateListing)
			bikes.DELETE("/:id", deps.BikeHandler.DeleteBike)
		}

		bookings := api.Group("/bookings")
		{
			bookings.POST("", deps.BookingHandler.CreateBooking)
			bookings.GET("", deps.BookingHandler.ListBookings)
			bookings.GET("/:id", deps.BookingHandler.GetBooking)
			bookings.POST("/:id/accept", deps.BookingHandler.AcceptBooking)
			bookings.POST("/:id/reject", deps.BookingHandler.RejectBooking)
			bookings.POST("/:id/cancel", deps.BookingHandler.CancelBooking)
			bookings.POST("/:id/return", deps.BookingHandler.ConfirmReturn)
			bookings.POST("/:id/lost", deps.BookingHandler.ReportLost)
			bookings.POST("/:id/found", deps.BookingHandler.MarkFound)
			bookings.GET("/:id/receipt", deps.BookingHandler.GetReceipt)
			bookings.POST("/:id/locations", deps.BookingHandler.RecordLocation)
			bookings.GET("/:id/locations", deps.BookingHandler.LocationHistory)
		}

		drafts := api.Group("/drafts")
		{
			drafts.POST("", deps.DraftHandler.StartDraft)
			drafts.GET("/:token", deps.DraftHandler.GetDraft)
			drafts.POST("/:token/commit", deps.DraftHandler.CommitDraft)
		}

		payments := api.Group("/payments")
		{
			payments.POST("", deps.PaymentHandler.ProcessPayment)
			payments.GET("", deps.PaymentHandler.ListPayments)
			payments.POST("/gateway", deps.PaymentHandler.CreateGatewayPayment)
			payments.POST("/gateway/:intent_id/confirm", deps.PaymentHandler.ConfirmGatewayPayment)
			payments.GET("/:id", deps.PaymentHandler.GetPayment)
		}

		wallet := api.Group("/wallet")
		{
			wallet.GET("", deps.WalletHandler.Balance)
			wallet.GET("/transactions", deps.WalletHandler.Transactions)
			wallet.POST("/top-up", deps.WalletHandler.TopUp)
		}

		points := api.Group("/points")
		{
			points.GET("", deps.WalletHandler.Points)
			points.GET("/history", deps.WalletHandler.PointsHistory)
			points.POST("/redeem", deps.WalletHandler.RedeemPoints)
		}

		damages := api.Group("/damages")
		{
			damages.POST("", deps.DamageHandler.ReportDamage)
			damages.GET("/:id", deps.DamageHandler.GetDamage)
			damages.POST("/:id/dispute", deps.DamageHandler.DisputeDamage)
			damages.POST("/:id/waive", deps.DamageHandler.WaiveDamage)
			damages.POST("/:id/resolve", deps.DamageHandler.ResolveDispute)
			damages.POST("/:id/pay", deps.DamageHandler.PayDamage)
		}

		api.POST("/flags", deps.DamageHandler.FlagRenter)
		api.POST("/red-tags", deps.DamageHandler.RedTagRenter)
		api.POST("/red-tags/:id/resolve", deps.DamageHandler.ResolveRedTag)
		api.GET("/renters/:id/standing", deps.DamageHandler.RenterStanding)

		admin := api.Group("/admin")
		{
			admin.GET("/rentals/nearby", deps.AdminHandler.NearbyRentals)
			admin.POST("/users/:id/verify-phone", deps.UserHandler.VerifyPhone)
			admin.POST("/users/:id/suspension", deps.UserHandler.SetSuspended)
			admin.DELETE("/users/:id", deps.UserHandler.DeleteUser)
		}
	}

	return router
}

func corsConfig(origins []string) cors.Config {
	cfg := cors.Config{
		AllowMethods:  []string{"GET", "POST", "PATCH", "DELETE", "OPTIONS"},
		AllowHeaders:  []string{"Origin", "Authorization", "Content-Type", "Idempotency-Key"},
		ExposeHeaders: []string{"Content-Length", "Idempotent-Replayed"},
		MaxAge:        12 * time.Hour,
	}
	if len(origins) == 0 || (len(origins) == 1 && origins[0] == "*") {
		cfg.AllowAllOrigins = true
		return cfg
	}
	cfg.AllowOrigins = origins
	cfg.AllowCredentials = true
	return cfg
}

// requestLogger logs one structured line per request.
func requestLogger(logger *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		fields := []zap.Field{
			zap.String("method", c.Request.Method),
			zap.String("path", c.Request.URL.Path),
			zap.Int("status", c.Writer.Status()),
			zap.Duration("latency", time.Since(start)),
			zap.String("client_ip", c.ClientIP()),
		}
		if actor, ok := middleware.ActorFrom(c); ok {
			fields = append(fields, zap.String("user_id", actor.UserID))
		}

		switch {
		case c.Writer.Status() >= http.StatusInternalServerError:
			fields = append(fields, zap.String("errors", c.Errors.String()))
			logger.Error("request", fields...)
		default:
			logger.Info("request", fields...)
		}
	}
}
