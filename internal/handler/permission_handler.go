package handler

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/depot-labs/depot-api/internal/dto"
	"github.com/depot-labs/depot-api/internal/models"
	appErrors "github.com/depot-labs/depot-api/pkg/errors"
	"github.com/depot-labs/depot-api/pkg/response"
)

type permissionService interface {
	Upsert(ctx context.Context, req dto.UpsertPermissionRequest, actor *models.JWTClaims, clientIP, userAgent string) (*models.FilePermission, error)
	ListByFile(ctx context.Context, fileID, fileType string) ([]models.FilePermission, error)
	Remove(ctx context.Context, userID, fileID, fileType string) error
}

// PermissionHandler manages explicit per-user file permission rules.
type PermissionHandler struct {
	service permissionService
}

// NewPermissionHandler constructs the handler.
func NewPermissionHandler(service permissionService) *PermissionHandler {
	return &PermissionHandler{service: service}
}

// Upsert godoc
// @Summary Create or replace a file permission rule
// @Tags Permissions
// @Accept json
// @Produce json
// @Param payload body dto.UpsertPermissionRequest true "Permission rule"
// @Success 200 {object} response.Envelope
// @Security BearerAuth
// @Router /permissions [put]
func (h *PermissionHandler) Upsert(c *gin.Context) {
	if h.service == nil {
		response.Error(c, appErrors.Clone(appErrors.ErrInternal, "permission service not configured"))
		return
	}
	var req dto.UpsertPermissionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Clone(appErrors.ErrValidation, "invalid permission payload"))
		return
	}
	perm, err := h.service.Upsert(c.Request.Context(), req, claimsFromContext(c), c.ClientIP(), c.GetHeader("User-Agent"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, perm, nil)
}

// ListByFile godoc
// @Summary List explicit permission rules of one file
// @Tags Permissions
// @Produce json
// @Param fileType path string true "document, patch, link_file or misc_file"
// @Param fileId path string true "File id"
// @Success 200 {object} response.Envelope
// @Security BearerAuth
// @Router /permissions/{fileType}/{fileId} [get]
func (h *PermissionHandler) ListByFile(c *gin.Context) {
	if h.service == nil {
		response.Error(c, appErrors.Clone(appErrors.ErrInternal, "permission service not configured"))
		return
	}
	perms, err := h.service.ListByFile(c.Request.Context(), c.Param("fileId"), c.Param("fileType"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, perms, nil)
}

// Remove godoc
// @Summary Delete a permission rule, restoring default allow
// @Tags Permissions
// @Produce json
// @Param fileType path string true "document, patch, link_file or misc_file"
// @Param fileId path string true "File id"
// @Param userId path string true "User id"
// @Success 204
// @Security BearerAuth
// @Router /permissions/{fileType}/{fileId}/{userId} [delete]
func (h *PermissionHandler) Remove(c *gin.Context) {
	if h.service == nil {
		response.Error(c, appErrors.Clone(appErrors.ErrInternal, "permission service not configured"))
		return
	}
	if err := h.service.Remove(c.Request.Context(), c.Param("userId"), c.Param("fileId"), c.Param("fileType")); err != nil {
		response.Error(c, err)
		return
	}
	response.NoContent(c)
}
