package api

import (
	authrepo "lexhub-backend/internal/auth/repository"
	authUsecase "lexhub-backend/internal/auth/usecase"
	connUsecase "lexhub-backend/internal/connection/usecase"
	docUsecase "lexhub-backend/internal/document/usecase"
	"lexhub-backend/pkg/config"

	"github.com/gin-gonic/gin"
)

type Handler struct {
	authUsecase       authUsecase.AuthUsecase
	connectionUsecase connUsecase.ConnectionUsecase
	documentUsecase   docUsecase.DocumentUsecase
	deviceTokenRepo   authrepo.DeviceTokenRepository
	config            *config.Config
}

func NewHandler(authUc authUsecase.AuthUsecase, connUc connUsecase.ConnectionUsecase, docUc docUsecase.DocumentUsecase, deviceTokenRepo authrepo.DeviceTokenRepository, cfg *config.Config) *Handler {
	return &Handler{
		authUsecase:       authUc,
		connectionUsecase: connUc,
		documentUsecase:   docUc,
		deviceTokenRepo:   deviceTokenRepo,
		config:            cfg,
	}
}

// Engine builds the gin engine with middleware and routes. The caller owns
// the http.Server so it can shut down gracefully.
func (h *Handler) Engine() *gin.Engine {
	gin.SetMode(gin.ReleaseMode)
	r := gin.Default()

	// CORS middleware
	r.Use(func(c *gin.Context) {
		origin := c.Request.Header.Get("Origin")
		if origin != "" {
			c.Writer.Header().Set("Access-Control-Allow-Origin", origin)
		} else {
			c.Writer.Header().Set("Access-Control-Allow-Origin", "*")
		}

		c.Writer.Header().Set("Access-Control-Allow-Credentials", "true")
		c.Writer.Header().Set("Access-Control-Allow-Headers", "Content-Type, Content-Length, Accept-Encoding, X-CSRF-Token, Authorization, accept, origin, Cache-Control, X-Requested-With")
		c.Writer.Header().Set("Access-Control-Allow-Methods", "POST, OPTIONS, GET, PUT, DELETE, PATCH")

		if c.Request.Method == "OPTIONS" {
			c.AbortWithStatus(204)
			return
		}

		c.Next()
	})

	SetupRoutes(r, h.authUsecase, h.connectionUsecase, h.documentUsecase, h.deviceTokenRepo)

	return r
}
