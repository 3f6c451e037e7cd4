package api

import (
	"net/http"

	authDelivery "lexhub-backend/internal/auth/delivery"
	authrepo "lexhub-backend/internal/auth/repository"
	authUsecase "lexhub-backend/internal/auth/usecase"
	connDelivery "lexhub-backend/internal/connection/delivery"
	connUsecase "lexhub-backend/internal/connection/usecase"
	docDelivery "lexhub-backend/internal/document/delivery"
	docUsecase "lexhub-backend/internal/document/usecase"

	"github.com/gin-gonic/gin"
)

func SetupRoutes(r *gin.Engine, authUc authUsecase.AuthUsecase, connUc connUsecase.ConnectionUsecase, docUc docUsecase.DocumentUsecase, deviceTokenRepo authrepo.DeviceTokenRepository) {
	authHandler := authDelivery.NewAuthHandler(authUc, deviceTokenRepo)
	connectionHandler := connDelivery.NewConnectionHandler(connUc)
	documentHandler := docDelivery.NewDocumentHandler(docUc)

	api := r.Group("/api")
	{
		// Health check (no auth required)
		api.GET("/health", func(c *gin.Context) {
			c.JSON(http.StatusOK, gin.H{"status": "ok"})
		})

		// Auth routes
		auth := api.Group("/auth")
		{
			auth.POST("/login", authHandler.Login)
			auth.POST("/register", authHandler.Register)
			auth.POST("/google", authHandler.GoogleSignIn)
			auth.POST("/refresh", authHandler.RefreshToken)
			auth.POST("/logout", authHandler.Logout)
			auth.GET("/me", authDelivery.AuthMiddleware(authUc), authHandler.Me)
		}

		// Device token routes (protected)
		devices := api.Group("/devices")
		devices.Use(authDelivery.AuthMiddleware(authUc))
		{
			devices.POST("/register", authHandler.RegisterDevice)
			devices.DELETE("/:token", authHandler.UnregisterDevice)
		}

		// OAuth redirect target; identity is carried in the signed state
		// parameter, so no auth middleware here.
		api.GET("/connections/callback", connectionHandler.Callback)

		// Connection routes (protected)
		connections := api.Group("/connections")
		connections.Use(authDelivery.AuthMiddleware(authUc))
		{
			connections.POST("/connect", connectionHandler.Connect)
			connections.GET("", connectionHandler.List)
			connections.GET("/:id/status", connectionHandler.Status)
			connections.PUT("/:id/scope", connectionHandler.FinalizeScope)
			connections.POST("/:id/sync", connectionHandler.Sync)
			connections.POST("/:id/items/:itemId/retry", connectionHandler.RetryItem)
			connections.DELETE("/:id", connectionHandler.Disconnect)
		}

		// Document routes (protected)
		documents := api.Group("/documents")
		documents.Use(authDelivery.AuthMiddleware(authUc))
		{
			documents.GET("", documentHandler.ListDocuments)
			documents.GET("/search", documentHandler.Search)
			documents.GET("/:id", documentHandler.GetDocument)
		}

		// Processed email routes (protected)
		emails := api.Group("/emails")
		emails.Use(authDelivery.AuthMiddleware(authUc))
		{
			emails.GET("", documentHandler.ListEmails)
			emails.GET("/:id", documentHandler.GetEmail)
		}
	}
}
