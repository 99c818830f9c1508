package handler

import (
	"context"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/depot-labs/depot-api/internal/models"
	appErrors "github.com/depot-labs/depot-api/pkg/errors"
	"github.com/depot-labs/depot-api/pkg/response"
)

type softwareCatalog interface {
	FindByID(ctx context.Context, id string) (*models.Software, error)
	List(ctx context.Context, limit, offset int) ([]models.Software, error)
}

type versionLister interface {
	ListBySoftware(ctx context.Context, softwareID string) ([]models.Version, error)
}

// SoftwareHandler serves the software catalogue reads used by upload clients.
type SoftwareHandler struct {
	software softwareCatalog
	versions versionLister
}

// NewSoftwareHandler constructs the handler.
func NewSoftwareHandler(software softwareCatalog, versions versionLister) *SoftwareHandler {
	return &SoftwareHandler{software: software, versions: versions}
}

// List godoc
// @Summary List software products
// @Tags Software
// @Produce json
// @Param limit query int false "Page size"
// @Param offset query int false "Page offset"
// @Success 200 {object} response.Envelope
// @Router /software [get]
func (h *SoftwareHandler) List(c *gin.Context) {
	if h.software == nil {
		response.Error(c, appErrors.Clone(appErrors.ErrInternal, "software service not configured"))
		return
	}
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "50"))
	offset, _ := strconv.Atoi(c.DefaultQuery("offset", "0"))
	items, err := h.software.List(c.Request.Context(), limit, offset)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, items, nil)
}

// Get godoc
// @Summary Get one software product
// @Tags Software
// @Produce json
// @Param id path string true "Software id"
// @Success 200 {object} response.Envelope
// @Router /software/{id} [get]
func (h *SoftwareHandler) Get(c *gin.Context) {
	if h.software == nil {
		response.Error(c, appErrors.Clone(appErrors.ErrInternal, "software service not configured"))
		return
	}
	sw, err := h.software.FindByID(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, sw, nil)
}

// ListVersions godoc
// @Summary List versions of one software product
// @Tags Software
// @Produce json
// @Param id path string true "Software id"
// @Success 200 {object} response.Envelope
// @Router /software/{id}/versions [get]
func (h *SoftwareHandler) ListVersions(c *gin.Context) {
	if h.versions == nil {
		response.Error(c, appErrors.Clone(appErrors.ErrInternal, "version service not configured"))
		return
	}
	versions, err := h.versions.ListBySoftware(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, versions, nil)
}
