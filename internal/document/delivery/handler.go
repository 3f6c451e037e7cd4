package delivery

import (
	"errors"
	"net/http"
	"strconv"

	docdomain "lexhub-backend/internal/document/domain"
	docdto "lexhub-backend/internal/document/dto"
	"lexhub-backend/internal/document/usecase"

	"github.com/gin-gonic/gin"
)

type DocumentHandler struct {
	documentUsecase usecase.DocumentUsecase
}

func NewDocumentHandler(documentUsecase usecase.DocumentUsecase) *DocumentHandler {
	return &DocumentHandler{
		documentUsecase: documentUsecase,
	}
}

func (h *DocumentHandler) ListDocuments(c *gin.Context) {
	limit, offset := pagination(c)

	docs, err := h.documentUsecase.ListDocuments(c.GetString("userID"), limit, offset)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, docdto.DocumentsResponse{Documents: docs})
}

func (h *DocumentHandler) GetDocument(c *gin.Context) {
	doc, err := h.documentUsecase.GetDocument(c.GetString("userID"), c.Param("id"))
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, doc)
}

func (h *DocumentHandler) ListEmails(c *gin.Context) {
	limit, offset := pagination(c)

	emails, err := h.documentUsecase.ListEmails(c.GetString("userID"), limit, offset)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, docdto.EmailsResponse{Emails: emails})
}

func (h *DocumentHandler) GetEmail(c *gin.Context) {
	email, err := h.documentUsecase.GetEmail(c.GetString("userID"), c.Param("id"))
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, email)
}

func (h *DocumentHandler) Search(c *gin.Context) {
	query := c.Query("q")
	if query == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "query parameter 'q' is required"})
		return
	}
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "10"))

	results, err := h.documentUsecase.Search(c.Request.Context(), c.GetString("userID"), query, limit)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, docdto.SearchResponse{Results: results})
}

func pagination(c *gin.Context) (limit, offset int) {
	limit, _ = strconv.Atoi(c.DefaultQuery("limit", "50"))
	offset, _ = strconv.Atoi(c.DefaultQuery("offset", "0"))
	return limit, offset
}

func respondError(c *gin.Context, err error) {
	if errors.Is(err, docdomain.ErrNotFound) {
		c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
}
