package handler

import (
	"context"
	"fmt"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/depot-labs/depot-api/internal/models"
	"github.com/depot-labs/depot-api/internal/service"
	appErrors "github.com/depot-labs/depot-api/pkg/errors"
	"github.com/depot-labs/depot-api/pkg/response"
)

type deliveryService interface {
	List(ctx context.Context, itemType, softwareID string, actor *models.JWTClaims, limit, offset int) ([]models.ContentDetail, error)
	Deliver(ctx context.Context, itemType, storedName string, actor *models.JWTClaims, clientIP, userAgent string) (*service.FileDelivery, error)
}

// DeliveryHandler streams stored files to clients.
type DeliveryHandler struct {
	service deliveryService
}

// NewDeliveryHandler constructs the handler.
func NewDeliveryHandler(service deliveryService) *DeliveryHandler {
	return &DeliveryHandler{service: service}
}

// List godoc
// @Summary List stored items of one kind visible to the caller
// @Tags Files
// @Produce json
// @Param itemType path string true "document, patch, link_file or misc_file"
// @Param softwareId query string false "Owning software id filter"
// @Param limit query int false "Page size"
// @Param offset query int false "Page offset"
// @Success 200 {object} response.Envelope
// @Router /files/{itemType} [get]
func (h *DeliveryHandler) List(c *gin.Context) {
	if h.service == nil {
		response.Error(c, appErrors.Clone(appErrors.ErrInternal, "delivery service not configured"))
		return
	}

	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "50"))
	offset, _ := strconv.Atoi(c.DefaultQuery("offset", "0"))
	rows, err := h.service.List(c.Request.Context(),
		c.Param("itemType"), c.Query("softwareId"), claimsFromContext(c), limit, offset)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, rows, nil)
}

// Download godoc
// @Summary Download a stored file
// @Tags Files
// @Produce octet-stream
// @Param itemType path string true "document, patch, link_file or misc_file"
// @Param storedName path string true "Server-side stored filename"
// @Success 200 {file} binary
// @Failure 403 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Router /files/{itemType}/{storedName} [get]
func (h *DeliveryHandler) Download(c *gin.Context) {
	if h.service == nil {
		response.Error(c, appErrors.Clone(appErrors.ErrInternal, "delivery service not configured"))
		return
	}

	result, err := h.service.Deliver(c.Request.Context(),
		c.Param("itemType"), c.Param("storedName"),
		claimsFromContext(c), c.ClientIP(), c.GetHeader("User-Agent"))
	if err != nil {
		response.Error(c, err)
		return
	}
	defer result.File.Close() //nolint:errcheck

	c.Header("Content-Disposition", fmt.Sprintf("attachment; filename=%q", result.Filename))
	c.Header("Cache-Control", "no-store")
	c.DataFromReader(http.StatusOK, result.SizeBytes, result.ContentType, result.File, nil)
}
