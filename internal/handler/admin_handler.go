package handler

import (
	"context"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/cdrp/console-gateway/internal/dto"
	"github.com/cdrp/console-gateway/internal/middleware"
	"github.com/cdrp/console-gateway/internal/models"
	"github.com/cdrp/console-gateway/internal/service"
	appErrors "github.com/cdrp/console-gateway/pkg/errors"
	"github.com/cdrp/console-gateway/pkg/response"
)

const (
	defaultAuditLimit = 50
	maxAuditLimit     = 500
)

type registryStats interface {
	Stats() dto.RegistryStats
}

type auditReader interface {
	Recent(ctx context.Context, filter models.MutationAuditFilter) ([]models.MutationAudit, error)
}

// AdminHandler serves operational views for administrators.
type AdminHandler struct {
	registry registryStats
	audit    auditReader
	metrics  *service.MetricsService
}

// NewAdminHandler constructs the handler.
func NewAdminHandler(registry registryStats, audit auditReader, metrics *service.MetricsService) *AdminHandler {
	return &AdminHandler{registry: registry, audit: audit, metrics: metrics}
}

// Stats godoc
// @Summary Mounted screen statistics
// @Tags Admin
// @Produce json
// @Security BearerAuth
// @Success 200 {object} response.Envelope
// @Router /admin/stats [get]
func (h *AdminHandler) Stats(c *gin.Context) {
	response.JSON(c, http.StatusOK, h.registry.Stats(), nil, middleware.ExtractMeta(c))
}

// Audit godoc
// @Summary Recent mutations
// @Tags Admin
// @Produce json
// @Security BearerAuth
// @Param actorId query string false "Actor user ID"
// @Param collection query string false "Backend collection"
// @Param entityId query string false "Entity ID"
// @Param limit query int false "Maximum rows" default(50)
// @Success 200 {object} response.Envelope
// @Router /admin/audit [get]
func (h *AdminHandler) Audit(c *gin.Context) {
	limit := defaultAuditLimit
	if raw := c.Query("limit"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed < 1 {
			response.Error(c, appErrors.WithFields(map[string]string{"limit": "Limit must be a positive number"}))
			return
		}
		limit = parsed
	}
	if limit > maxAuditLimit {
		limit = maxAuditLimit
	}

	entries, err := h.audit.Recent(c.Request.Context(), models.MutationAuditFilter{
		ActorID:    c.Query("actorId"),
		Collection: c.Query("collection"),
		EntityID:   c.Query("entityId"),
		Limit:      limit,
	})
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, entries, nil, middleware.ExtractMeta(c))
}

// Metrics godoc
// @Summary Gateway counters
// @Tags Admin
// @Produce json
// @Security BearerAuth
// @Success 200 {object} response.Envelope
// @Router /admin/metrics [get]
func (h *AdminHandler) Metrics(c *gin.Context) {
	response.JSON(c, http.StatusOK, h.metrics.Snapshot(), nil)
}
