package handler

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/depot-labs/depot-api/internal/dto"
	"github.com/depot-labs/depot-api/internal/models"
	"github.com/depot-labs/depot-api/internal/service"
	appErrors "github.com/depot-labs/depot-api/pkg/errors"
	"github.com/depot-labs/depot-api/pkg/response"
)

type uploadService interface {
	Ingest(ctx context.Context, in service.ChunkInput) (*service.IngestResult, error)
	Remove(ctx context.Context, itemType, id string, actor *models.JWTClaims, clientIP, userAgent string) error
}

// UploadHandler accepts chunked multipart uploads.
type UploadHandler struct {
	service uploadService
}

// NewUploadHandler constructs the handler.
func NewUploadHandler(service uploadService) *UploadHandler {
	return &UploadHandler{service: service}
}

// Chunk godoc
// @Summary Upload one chunk of a file
// @Description Stages the chunk; the final chunk (chunkIndex == totalChunks-1) commits the item.
// @Tags Uploads
// @Accept multipart/form-data
// @Produce json
// @Param uploadId formData string true "Client-chosen upload id"
// @Param itemType formData string true "document, patch, link_file or misc_file"
// @Param chunkIndex formData int true "Zero-based chunk index"
// @Param totalChunks formData int true "Total chunk count"
// @Param softwareId formData string false "Owning software id"
// @Param name formData string false "Item display name"
// @Param categoryId formData string false "Document category id"
// @Param versionId formData string false "Existing version id"
// @Param version formData string false "Typed version string"
// @Param isExternal formData bool false "External link instead of a file"
// @Param externalUrl formData string false "External url for link files"
// @Param chunk formData file true "Chunk bytes"
// @Success 200 {object} response.Envelope "Chunk staged"
// @Success 201 {object} response.Envelope "Item committed"
// @Security BearerAuth
// @Router /uploads/chunk [post]
func (h *UploadHandler) Chunk(c *gin.Context) {
	if h.service == nil {
		response.Error(c, appErrors.Clone(appErrors.ErrInternal, "upload service not configured"))
		return
	}

	var req dto.ChunkUploadRequest
	if err := c.ShouldBind(&req); err != nil {
		response.Error(c, appErrors.Clone(appErrors.ErrValidation, "invalid chunk payload"))
		return
	}

	in := service.ChunkInput{
		ChunkUploadRequest: req,
		Actor:              claimsFromContext(c),
		ClientIP:           c.ClientIP(),
		UserAgent:          c.GetHeader("User-Agent"),
	}

	// External links carry no chunk part.
	if !req.IsExternal {
		fileHeader, err := c.FormFile("chunk")
		if err != nil {
			response.Error(c, appErrors.Clone(appErrors.ErrValidation, "chunk file part is required"))
			return
		}
		src, err := fileHeader.Open()
		if err != nil {
			response.Error(c, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to open chunk"))
			return
		}
		defer src.Close() //nolint:errcheck

		in.OriginalFilename = fileHeader.Filename
		in.DeclaredMIME = fileHeader.Header.Get("Content-Type")
		in.Body = src
	}

	result, err := h.service.Ingest(c.Request.Context(), in)
	if err != nil {
		response.Error(c, err)
		return
	}

	if result.Completed {
		response.Created(c, result.Item)
		return
	}
	response.JSON(c, http.StatusOK, result.Ack, nil)
}

// Remove godoc
// @Summary Delete a committed item and its stored file
// @Tags Uploads
// @Produce json
// @Param itemType path string true "document, patch, link_file or misc_file"
// @Param id path string true "Item id"
// @Success 204
// @Failure 404 {object} response.Envelope
// @Security BearerAuth
// @Router /files/{itemType}/{id} [delete]
func (h *UploadHandler) Remove(c *gin.Context) {
	if h.service == nil {
		response.Error(c, appErrors.Clone(appErrors.ErrInternal, "upload service not configured"))
		return
	}

	err := h.service.Remove(c.Request.Context(),
		c.Param("itemType"), c.Param("id"),
		claimsFromContext(c), c.ClientIP(), c.GetHeader("User-Agent"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.NoContent(c)
}
