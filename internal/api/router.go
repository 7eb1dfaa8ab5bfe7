// Package api contains the HTTP handlers and routing for the payment bridge.
package api

import (
	"github.com/gin-gonic/gin"
)

// SetupRouter configures the Gin router with all routes and middleware.
func SetupRouter(handler *Handler, ginMode string) *gin.Engine {
	gin.SetMode(ginMode)

	router := gin.New()
	router.Use(gin.Logger())
	router.Use(gin.Recovery())
	router.Use(CORSMiddleware())
	router.Use(RequestIDMiddleware())

	// Health check endpoint
	router.GET("/health", handler.Health)

	api := router.Group("/api")
	{
		// Merchant platform entry point: signed form post, browser redirect out.
		api.POST("/payment", handler.InitiatePayment)

		// Gateway selection frontend
		api.GET("/orders/:order_id", handler.GetOrder)
		api.POST("/payment/process", handler.ProcessPayment)

		// Customer return from the gateway
		api.GET("/callback/:gateway/:result/:order_id", handler.GatewayReturn)

		// Server-side gateway notifications; authenticity is established by
		// re-querying the gateway, not by trusting the payload.
		api.POST("/webhook/:gateway", handler.HandleWebhook)
	}

	return router
}
