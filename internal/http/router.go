package api

import (
	stdhttp "net/http"

	intconfig "travelapp/internal/config"
	h "travelapp/internal/http/handlers"
	"travelapp/internal/http/middleware"
	"travelapp/internal/ratelimit"
	"travelapp/internal/utils"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// NewRouter wires every route. The limiter guards the endpoints that reach
// the payment processor; webhooks are never throttled.
func NewRouter(env intconfig.Env, a h.API, limiter ratelimit.Limiter) *gin.Engine {
	r := gin.New()
	r.Use(middleware.RequestID(), middleware.Logger(), gin.Recovery(), middleware.CORS(env.CORSOrigins))

	if err := r.SetTrustedProxies(nil); err != nil {
		utils.Log.WithError(err).Warn("failed to set trusted proxies")
	}

	r.NoRoute(func(c *gin.Context) {
		c.JSON(stdhttp.StatusNotFound, gin.H{
			"error":  "route not found",
			"path":   c.Request.URL.Path,
			"method": c.Request.Method,
		})
	})

	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	api := r.Group("/api")
	{
		api.GET("/health", h.Health)
		api.GET("/db-check", a.DBCheck)
		api.GET("/routes", h.Routes)

		bookings := api.Group("/bookings")
		bookings.POST("/payment-link", middleware.RateLimit(limiter, "payment-link"), a.CreatePaymentLink)

		complete := bookings.Group("/complete/:token")
		complete.GET("", a.GetByToken)
		complete.POST("/details", a.CompleteDetails)
		complete.POST("/pay", middleware.RateLimit(limiter, "balance-link"), a.CreateBalanceLink)
		complete.GET("/receipt", a.GetReceiptByToken)

		api.POST("/webhooks/revolut", a.RevolutWebhook)

		api.POST("/admin/login", middleware.RateLimit(limiter, "admin-login"), a.Login)

		admin := api.Group("/admin", middleware.RequireAdmin(a.AuthService("").ParseToken))
		admin.GET("/me", a.Me)
		admin.GET("/bookings", a.ListBookings)
		admin.GET("/bookings/:id", a.GetBooking)
		admin.PUT("/bookings/:id/status", a.UpdateBookingStatus)
		admin.POST("/bookings/:id/payments", a.RecordPayment)
		admin.POST("/bookings/:id/reconcile", a.ReconcileBooking)
		admin.GET("/bookings/:id/invoice", a.GetInvoice)
		admin.DELETE("/payments/:id", a.DeletePayment)
		admin.POST("/payments/:id/sync", a.SyncPayment)
	}

	h.SetRouter(r)
	return r
}
