package api

import (
	"bank-gateway-api/internal/gateway"
	"bank-gateway-api/internal/middleware"
	"bank-gateway-api/internal/response"
	"bank-gateway-api/internal/services"

	"github.com/gin-gonic/gin"
)

var (
	paymentService *services.PaymentService
	alertService   *services.AlertService
)

// SetupRoutes sets up all routes
func SetupRoutes(r *gin.Engine, factory *gateway.Factory) {
	paymentService = services.NewPaymentService(factory)
	alertService = services.NewAlertService()

	// API route group
	api := r.Group("/api")
	{
		// Merchant-facing payment routes (require API key)
		payment := api.Group("/payment")
		payment.Use(middleware.APIKeyAuthMiddleware())
		{
			payment.POST("/purchase", StartPayment)
			payment.GET("/status", PaymentStatus)
		}
	}

	// Bank-facing routes (no authentication, the banks call these)
	r.GET("/payment/go-to-bank", GoToBank)
	r.GET("/payment/callback", PaymentCallback)
	r.POST("/payment/callback", PaymentCallback)

	// Health check
	r.GET("/health", func(c *gin.Context) {
		response.SuccessJSON(c, gin.H{
			"status":  "ok",
			"service": "bank-gateway-service",
		})
	})
}
