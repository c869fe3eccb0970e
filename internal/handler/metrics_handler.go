package handler

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/medibook/clinic-api/internal/service"
	"github.com/medibook/clinic-api/pkg/response"
)

// MetricsHandler exposes observability endpoints.
type MetricsHandler struct {
	metrics *service.MetricsService
	audit   *service.AuditService
}

// NewMetricsHandler constructs a metrics handler.
func NewMetricsHandler(metrics *service.MetricsService, audit *service.AuditService) *MetricsHandler {
	return &MetricsHandler{metrics: metrics, audit: audit}
}

// Prometheus serves the Prometheus metrics endpoint.
func (h *MetricsHandler) Prometheus(c *gin.Context) {
	if h.metrics == nil {
		c.Status(http.StatusServiceUnavailable)
		return
	}
	h.metrics.Handler().ServeHTTP(c.Writer, c.Request)
}

// Health responds with a generic OK payload for readiness/liveness usage.
func (h *MetricsHandler) Health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

// Snapshot godoc
// @Summary System metrics snapshot
// @Description Return booking, cache and request counters (admin only)
// @Tags Observability
// @Produce json
// @Success 200 {object} response.Envelope
// @Security BearerAuth
// @Router /admin/metrics [get]
func (h *MetricsHandler) Snapshot(c *gin.Context) {
	if h.metrics == nil {
		c.Status(http.StatusServiceUnavailable)
		return
	}
	response.JSON(c, http.StatusOK, h.metrics.Snapshot(), nil)
}

// AuditTrail godoc
// @Summary List audit entries for a user
// @Description Return recent audit log entries recorded for a user (admin only)
// @Tags Observability
// @Produce json
// @Param id path string true "User ID"
// @Param limit query int false "Max entries"
// @Success 200 {object} response.Envelope
// @Security BearerAuth
// @Router /admin/users/{id}/audit [get]
func (h *MetricsHandler) AuditTrail(c *gin.Context) {
	limit := 50
	if raw, err := strconv.Atoi(c.DefaultQuery("limit", "50")); err == nil && raw > 0 {
		limit = raw
	}

	logs, err := h.audit.ListByUser(c.Request.Context(), c.Param("id"), limit)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, logs, nil)
}
