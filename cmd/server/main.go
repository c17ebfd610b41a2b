package main

import (
	"log"

	"bank-gateway-api/internal/api"
	"bank-gateway-api/internal/config"
	"bank-gateway-api/internal/database"
	"bank-gateway-api/internal/gateway"
	"bank-gateway-api/pkg/logging"

	"github.com/gin-gonic/gin"
)

func main() {
	// Initialize configuration
	if err := config.InitConfig(); err != nil {
		log.Fatal("Failed to initialize config:", err)
	}

	// Initialize logging
	logging.InitLogging()

	// Initialize database
	if err := database.InitDatabase(); err != nil {
		log.Fatal("Failed to initialize database:", err)
	}

	// Build the gateway factory; missing bank settings fail here, not on the
	// first payment
	factory, err := gateway.NewFactory(config.AppConfig.BankGateways, config.AppConfig.CallbackBaseURL+"/payment/callback")
	if err != nil {
		log.Fatal("Failed to configure bank gateways:", err)
	}

	// Set Gin mode
	gin.SetMode(config.AppConfig.Mode)

	// Create Gin engine
	r := gin.Default()

	// Setup routes
	api.SetupRoutes(r, factory)

	// Start server
	port := config.AppConfig.Port
	logging.Infof("Starting server on port %s", port)

	if err := r.Run(":" + port); err != nil {
		log.Fatal("Failed to start server:", err)
	}
}
