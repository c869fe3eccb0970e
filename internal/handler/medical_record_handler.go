package handler

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/medibook/clinic-api/internal/models"
	"github.com/medibook/clinic-api/internal/service"
	appErrors "github.com/medibook/clinic-api/pkg/errors"
	"github.com/medibook/clinic-api/pkg/response"
)

// MedicalRecordHandler exposes medical record endpoints.
type MedicalRecordHandler struct {
	records *service.MedicalRecordService
}

// NewMedicalRecordHandler constructs MedicalRecordHandler.
func NewMedicalRecordHandler(records *service.MedicalRecordService) *MedicalRecordHandler {
	return &MedicalRecordHandler{records: records}
}

// Create godoc
// @Summary Create medical record
// @Description Attach a medical record to a completed appointment (doctor only)
// @Tags MedicalRecords
// @Accept json
// @Produce json
// @Param payload body models.CreateMedicalRecordRequest true "Record payload"
// @Success 201 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Failure 403 {object} response.Envelope
// @Failure 409 {object} response.Envelope
// @Security BearerAuth
// @Router /medical-records [post]
func (h *MedicalRecordHandler) Create(c *gin.Context) {
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}

	var req models.CreateMedicalRecordRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid record payload"))
		return
	}

	record, err := h.records.Create(c.Request.Context(), claims.UserID, req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, record)
}

// Get godoc
// @Summary Get medical record
// @Tags MedicalRecords
// @Produce json
// @Param id path string true "Record ID"
// @Success 200 {object} response.Envelope
// @Failure 403 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Security BearerAuth
// @Router /medical-records/{id} [get]
func (h *MedicalRecordHandler) Get(c *gin.Context) {
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}

	record, err := h.records.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	// Patients only see records written about them.
	if claims.Role == models.RolePatient && record.PatientID != claims.UserID {
		response.Error(c, appErrors.ErrForbidden)
		return
	}
	response.JSON(c, http.StatusOK, record, nil)
}

// ListByPatient godoc
// @Summary List a patient's medical records
// @Tags MedicalRecords
// @Produce json
// @Param id path string true "Patient ID"
// @Param limit query int false "Max records"
// @Success 200 {object} response.Envelope
// @Failure 403 {object} response.Envelope
// @Security BearerAuth
// @Router /patients/{id}/medical-records [get]
func (h *MedicalRecordHandler) ListByPatient(c *gin.Context) {
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}

	patientID := c.Param("id")
	if claims.Role == models.RolePatient && patientID != claims.UserID {
		response.Error(c, appErrors.ErrForbidden)
		return
	}

	limit := 50
	if raw, err := strconv.Atoi(c.DefaultQuery("limit", "50")); err == nil && raw > 0 {
		limit = raw
	}

	records, err := h.records.ListByPatient(c.Request.Context(), patientID, limit)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, records, nil)
}
