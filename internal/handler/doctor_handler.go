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

// DoctorHandler exposes doctor profile endpoints.
type DoctorHandler struct {
	doctors *service.DoctorService
	reviews *service.ReviewService
}

// NewDoctorHandler constructs DoctorHandler.
func NewDoctorHandler(doctors *service.DoctorService, reviews *service.ReviewService) *DoctorHandler {
	return &DoctorHandler{doctors: doctors, reviews: reviews}
}

// List godoc
// @Summary List doctors
// @Tags Doctors
// @Produce json
// @Param search query string false "Search by name"
// @Param specialtyId query string false "Filter by specialty"
// @Param active query bool false "Filter by active state"
// @Param page query int false "Page"
// @Param limit query int false "Page size"
// @Success 200 {object} response.Envelope
// @Router /doctors [get]
func (h *DoctorHandler) List(c *gin.Context) {
	var filter models.DoctorFilter
	filter.Search = strings.TrimSpace(c.Query("search"))
	filter.SpecialtyID = c.Query("specialtyId")
	if active := c.Query("active"); active != "" {
		if active == "true" {
			v := true
			filter.Active = &v
		} else if active == "false" {
			v := false
			filter.Active = &v
		}
	}
	if page, err := strconv.Atoi(c.DefaultQuery("page", "1")); err == nil {
		filter.Page = page
	}
	if size, err := strconv.Atoi(c.DefaultQuery("limit", "20")); err == nil {
		filter.PageSize = size
	}
	filter.SortBy = c.Query("sort")
	filter.SortOrder = c.Query("order")

	doctors, pagination, err := h.doctors.List(c.Request.Context(), filter)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, doctors, pagination)
}

// Get godoc
// @Summary Get doctor detail
// @Tags Doctors
// @Produce json
// @Param id path string true "Doctor ID"
// @Success 200 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Router /doctors/{id} [get]
func (h *DoctorHandler) Get(c *gin.Context) {
	doctor, err := h.doctors.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, doctor, nil)
}

// Create godoc
// @Summary Create doctor profile
// @Description Attach a doctor profile to an existing user (admin only)
// @Tags Doctors
// @Accept json
// @Produce json
// @Param payload body models.CreateDoctorRequest true "Doctor payload"
// @Success 201 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Failure 409 {object} response.Envelope
// @Security BearerAuth
// @Router /doctors [post]
func (h *DoctorHandler) Create(c *gin.Context) {
	var req models.CreateDoctorRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid doctor payload"))
		return
	}

	doctor, err := h.doctors.Create(c.Request.Context(), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, doctor)
}

// Update godoc
// @Summary Update doctor profile
// @Tags Doctors
// @Accept json
// @Produce json
// @Param id path string true "Doctor ID"
// @Param payload body models.UpdateDoctorRequest true "Doctor payload"
// @Success 200 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Security BearerAuth
// @Router /doctors/{id} [put]
func (h *DoctorHandler) Update(c *gin.Context) {
	var req models.UpdateDoctorRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid doctor payload"))
		return
	}

	doctor, err := h.doctors.Update(c.Request.Context(), c.Param("id"), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, doctor, nil)
}

// Deactivate godoc
// @Summary Deactivate doctor
// @Tags Doctors
// @Produce json
// @Param id path string true "Doctor ID"
// @Success 204 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Security BearerAuth
// @Router /doctors/{id} [delete]
func (h *DoctorHandler) Deactivate(c *gin.Context) {
	if err := h.doctors.Deactivate(c.Request.Context(), c.Param("id")); err != nil {
		response.Error(c, err)
		return
	}
	response.NoContent(c)
}

// Reviews godoc
// @Summary List doctor reviews
// @Tags Doctors
// @Produce json
// @Param id path string true "Doctor ID"
// @Param limit query int false "Max reviews"
// @Success 200 {object} response.Envelope
// @Router /doctors/{id}/reviews [get]
func (h *DoctorHandler) Reviews(c *gin.Context) {
	limit := 20
	if raw, err := strconv.Atoi(c.DefaultQuery("limit", "20")); err == nil && raw > 0 {
		limit = raw
	}

	reviews, err := h.reviews.ListByDoctor(c.Request.Context(), c.Param("id"), limit)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, reviews, nil)
}
