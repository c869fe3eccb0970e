package handler

import (
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/medibook/clinic-api/internal/models"
	"github.com/medibook/clinic-api/internal/service"
	appErrors "github.com/medibook/clinic-api/pkg/errors"
	"github.com/medibook/clinic-api/pkg/response"
)

// SpecialtyHandler exposes specialty catalog endpoints.
type SpecialtyHandler struct {
	specialties *service.SpecialtyService
}

// NewSpecialtyHandler constructs SpecialtyHandler.
func NewSpecialtyHandler(specialties *service.SpecialtyService) *SpecialtyHandler {
	return &SpecialtyHandler{specialties: specialties}
}

// List godoc
// @Summary List specialties
// @Tags Specialties
// @Produce json
// @Param search query string false "Search by name"
// @Param page query int false "Page"
// @Param limit query int false "Page size"
// @Success 200 {object} response.Envelope
// @Router /specialties [get]
func (h *SpecialtyHandler) List(c *gin.Context) {
	var filter models.SpecialtyFilter
	filter.Search = strings.TrimSpace(c.Query("search"))
	if page, err := strconv.Atoi(c.DefaultQuery("page", "1")); err == nil {
		filter.Page = page
	}
	if size, err := strconv.Atoi(c.DefaultQuery("limit", "20")); err == nil {
		filter.PageSize = size
	}
	filter.SortBy = c.Query("sort")
	filter.SortOrder = c.Query("order")

	specialties, pagination, err := h.specialties.List(c.Request.Context(), filter)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, specialties, pagination)
}

// Get godoc
// @Summary Get specialty detail
// @Tags Specialties
// @Produce json
// @Param id path string true "Specialty ID"
// @Success 200 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Router /specialties/{id} [get]
func (h *SpecialtyHandler) Get(c *gin.Context) {
	specialty, err := h.specialties.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, specialty, nil)
}

// Create godoc
// @Summary Create specialty
// @Tags Specialties
// @Accept json
// @Produce json
// @Param payload body models.SpecialtyRequest true "Specialty payload"
// @Success 201 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Failure 409 {object} response.Envelope
// @Security BearerAuth
// @Router /specialties [post]
func (h *SpecialtyHandler) Create(c *gin.Context) {
	var req models.SpecialtyRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid specialty payload"))
		return
	}

	specialty, err := h.specialties.Create(c.Request.Context(), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, specialty)
}

// Update godoc
// @Summary Update specialty
// @Tags Specialties
// @Accept json
// @Produce json
// @Param id path string true "Specialty ID"
// @Param payload body models.SpecialtyRequest true "Specialty payload"
// @Success 200 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Failure 409 {object} response.Envelope
// @Security BearerAuth
// @Router /specialties/{id} [put]
func (h *SpecialtyHandler) Update(c *gin.Context) {
	var req models.SpecialtyRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid specialty payload"))
		return
	}

	specialty, err := h.specialties.Update(c.Request.Context(), c.Param("id"), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, specialty, nil)
}

// Delete godoc
// @Summary Delete specialty
// @Description Delete a specialty with no attached doctors
// @Tags Specialties
// @Produce json
// @Param id path string true "Specialty ID"
// @Success 204 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Failure 409 {object} response.Envelope
// @Security BearerAuth
// @Router /specialties/{id} [delete]
func (h *SpecialtyHandler) Delete(c *gin.Context) {
	if err := h.specialties.Delete(c.Request.Context(), c.Param("id")); err != nil {
		response.Error(c, err)
		return
	}
	response.NoContent(c)
}
