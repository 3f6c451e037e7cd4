package delivery

import (
	"errors"
	"net/http"

	conndomain "lexhub-backend/internal/connection/domain"
	conndto "lexhub-backend/internal/connection/dto"
	"lexhub-backend/internal/connection/usecase"

	"github.com/gin-gonic/gin"
)

type ConnectionHandler struct {
	connectionUsecase usecase.ConnectionUsecase
}

func NewConnectionHandler(connectionUsecase usecase.ConnectionUsecase) *ConnectionHandler {
	return &ConnectionHandler{
		connectionUsecase: connectionUsecase,
	}
}

// Connect returns the Google consent URL for the requested provider.
func (h *ConnectionHandler) Connect(c *gin.Context) {
	var req conndto.ConnectRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	userID := c.GetString("userID")
	authURL, err := h.connectionUsecase.Connect(userID, conndomain.Provider(req.Provider))
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, conndto.ConnectResponse{AuthURL: authURL})
}

// Callback is the OAuth redirect target. It is unauthenticated; identity
// comes from the signed state parameter.
func (h *ConnectionHandler) Callback(c *gin.Context) {
	state := c.Query("state")
	code := c.Query("code")
	if state == "" || code == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "state and code are required"})
		return
	}

	conn, err := h.connectionUsecase.HandleCallback(c.Request.Context(), state, code)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, conn)
}

func (h *ConnectionHandler) FinalizeScope(c *gin.Context) {
	var req conndto.ScopeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	userID := c.GetString("userID")
	conn, err := h.connectionUsecase.FinalizeScope(userID, c.Param("id"), &req)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, conn)
}

func (h *ConnectionHandler) List(c *gin.Context) {
	userID := c.GetString("userID")
	conns, err := h.connectionUsecase.List(userID)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, conndto.ConnectionsResponse{Connections: conns})
}

func (h *ConnectionHandler) Status(c *gin.Context) {
	userID := c.GetString("userID")
	status, err := h.connectionUsecase.Status(userID, c.Param("id"))
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, status)
}

// Sync triggers a reconciliation run. 202 on accept, 409 when a run is
// already in flight.
func (h *ConnectionHandler) Sync(c *gin.Context) {
	userID := c.GetString("userID")
	if err := h.connectionUsecase.TriggerSync(userID, c.Param("id")); err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusAccepted, gin.H{"message": "sync started"})
}

func (h *ConnectionHandler) RetryItem(c *gin.Context) {
	userID := c.GetString("userID")
	if err := h.connectionUsecase.RetryItem(userID, c.Param("id"), c.Param("itemId")); err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"message": "item queued for retry"})
}

func (h *ConnectionHandler) Disconnect(c *gin.Context) {
	userID := c.GetString("userID")
	if err := h.connectionUsecase.Disconnect(c.Request.Context(), userID, c.Param("id")); err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"message": "connection removed"})
}

// respondError maps the error taxonomy onto HTTP statuses.
func respondError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, conndomain.ErrNotFound), errors.Is(err, conndomain.ErrItemNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
	case errors.Is(err, conndomain.ErrSyncInProgress):
		c.JSON(http.StatusConflict, gin.H{"error": err.Error()})
	case errors.Is(err, conndomain.ErrProviderNotConfigured):
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": err.Error()})
	case errors.Is(err, conndomain.ErrAuthExchange):
		c.JSON(http.StatusBadGateway, gin.H{"error": err.Error()})
	default:
		var apiErr *conndomain.RemoteAPIError
		if errors.As(err, &apiErr) {
			c.JSON(http.StatusBadGateway, gin.H{"error": apiErr.Message, "vendor_status": apiErr.StatusCode})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
	}
}
