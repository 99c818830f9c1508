package handler

import (
	"context"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/depot-labs/depot-api/internal/models"
	appErrors "github.com/depot-labs/depot-api/pkg/errors"
	"github.com/depot-labs/depot-api/pkg/response"
)

type downloadLogService interface {
	List(ctx context.Context, filter models.DownloadLogFilter) ([]models.DownloadLogEntry, error)
	Export(ctx context.Context, filter models.DownloadLogFilter, format string) (string, string, []byte, error)
}

// DownloadLogHandler exposes the delivery audit trail to administrators.
type DownloadLogHandler struct {
	service downloadLogService
}

// NewDownloadLogHandler constructs the handler.
func NewDownloadLogHandler(service downloadLogService) *DownloadLogHandler {
	return &DownloadLogHandler{service: service}
}

// List godoc
// @Summary List download records
// @Tags DownloadLogs
// @Produce json
// @Param fileId query string false "File id filter"
// @Param fileType query string false "Item type filter"
// @Param userId query string false "User id filter"
// @Param from query string false "RFC3339 lower bound"
// @Param to query string false "RFC3339 upper bound"
// @Param limit query int false "Page size"
// @Param offset query int false "Page offset"
// @Success 200 {object} response.Envelope
// @Security BearerAuth
// @Router /download-logs [get]
func (h *DownloadLogHandler) List(c *gin.Context) {
	if h.service == nil {
		response.Error(c, appErrors.Clone(appErrors.ErrInternal, "download log service not configured"))
		return
	}
	filter, err := parseDownloadLogFilter(c)
	if err != nil {
		response.Error(c, err)
		return
	}
	entries, err := h.service.List(c.Request.Context(), filter)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, entries, nil)
}

// Export godoc
// @Summary Export download records as CSV or PDF
// @Tags DownloadLogs
// @Produce octet-stream
// @Param format query string false "csv (default) or pdf"
// @Success 200 {file} binary
// @Security BearerAuth
// @Router /download-logs/export [get]
func (h *DownloadLogHandler) Export(c *gin.Context) {
	if h.service == nil {
		response.Error(c, appErrors.Clone(appErrors.ErrInternal, "download log service not configured"))
		return
	}
	filter, err := parseDownloadLogFilter(c)
	if err != nil {
		response.Error(c, err)
		return
	}
	filename, contentType, data, err := h.service.Export(c.Request.Context(), filter, c.Query("format"))
	if err != nil {
		response.Error(c, err)
		return
	}
	c.Header("Content-Disposition", fmt.Sprintf("attachment; filename=%q", filename))
	c.Data(http.StatusOK, contentType, data)
}

func parseDownloadLogFilter(c *gin.Context) (models.DownloadLogFilter, error) {
	filter := models.DownloadLogFilter{
		FileID: strings.TrimSpace(c.Query("fileId")),
		UserID: strings.TrimSpace(c.Query("userId")),
	}
	if raw := strings.TrimSpace(c.Query("fileType")); raw != "" {
		kind, ok := models.ParseContentKind(raw)
		if !ok {
			return filter, appErrors.Clone(appErrors.ErrValidation, "unknown file type")
		}
		filter.FileType = kind
	}
	if raw := c.Query("from"); raw != "" {
		ts, err := time.Parse(time.RFC3339, raw)
		if err != nil {
			return filter, appErrors.Clone(appErrors.ErrValidation, "invalid from timestamp")
		}
		filter.From = &ts
	}
	if raw := c.Query("to"); raw != "" {
		ts, err := time.Parse(time.RFC3339, raw)
		if err != nil {
			return filter, appErrors.Clone(appErrors.ErrValidation, "invalid to timestamp")
		}
		filter.To = &ts
	}
	if raw := c.Query("limit"); raw != "" {
		limit, err := strconv.Atoi(raw)
		if err != nil {
			return filter, appErrors.Clone(appErrors.ErrValidation, "invalid limit")
		}
		filter.Limit = limit
	}
	if raw := c.Query("offset"); raw != "" {
		offset, err := strconv.Atoi(raw)
		if err != nil {
			return filter, appErrors.Clone(appErrors.ErrValidation, "invalid offset")
		}
		filter.Offset = offset
	}
	return filter, nil
}
