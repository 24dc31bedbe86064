package handler

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"

	"github.com/noah-isme/edu-center-api/internal/dto"
	"github.com/noah-isme/edu-center-api/internal/models"
	appErrors "github.com/noah-isme/edu-center-api/pkg/errors"
	"github.com/noah-isme/edu-center-api/pkg/response"
)

// IdempotencyKeyHeader lets clients retry payment posts safely.
const IdempotencyKeyHeader = "Idempotency-Key"

type registrationService interface {
	Register(ctx context.Context, actorID string, req dto.RegisterStudentRequest) (*models.StudentRegistration, error)
	Get(ctx context.Context, id string) (*models.StudentRegistration, error)
	List(ctx context.Context, query dto.RegistrationQuery) ([]models.RegistrationDetail, *models.Pagination, error)
	UpdateFee(ctx context.Context, actorID, id string, totalFees decimal.Decimal) (*models.StudentRegistration, error)
	RecordPayment(ctx context.Context, actorID, registrationID string, req dto.RecordPaymentRequest) (*models.PaymentResult, error)
	ListPayments(ctx context.Context, registrationID string) ([]models.PaymentRecord, error)
	MonthlyCollectionStatus(ctx context.Context, registrationID string, year int, month time.Month) (*models.MonthlyCollectionStatus, error)
	MarkAttendance(ctx context.Context, actorID, registrationID, rawDate string) (*models.AttendanceMark, error)
	AttendanceSheet(ctx context.Context, registrationID string, query dto.DateRangeQuery) (*models.AttendanceSheetResult, error)
	FastProcess(ctx context.Context, actorID string, req dto.FastProcessRequest) (*models.FastProcessReport, error)
	Delete(ctx context.Context, actorID, id string) error
}

// RegistrationHandler exposes registrations, payments and attendance.
type RegistrationHandler struct {
	registrations registrationService
}

// NewRegistrationHandler constructs RegistrationHandler.
func NewRegistrationHandler(registrations registrationService) *RegistrationHandler {
	return &RegistrationHandler{registrations: registrations}
}

// Register godoc
// @Summary Register a student in a booking
// @Tags Registrations
// @Accept json
// @Produce json
// @Param payload body dto.RegisterStudentRequest true "Registration payload"
// @Success 201 {object} response.Envelope
// @Failure 409 {object} response.Envelope
// @Router /registrations [post]
func (h *RegistrationHandler) Register(c *gin.Context) {
	actor, ok := actorFromContext(c)
	if !ok {
		return
	}
	var req dto.RegisterStudentRequest
	if !bindJSON(c, &req) {
		return
	}
	reg, err := h.registrations.Register(c.Request.Context(), actor.ID, req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, reg)
}

// List godoc
// @Summary List registrations
// @Tags Registrations
// @Produce json
// @Param student_id query string false "Student filter"
// @Param booking_id query string false "Booking filter"
// @Param payment_status query string false "pending, partial or paid"
// @Param page query int false "Page"
// @Param page_size query int false "Page size"
// @Success 200 {object} response.Envelope
// @Router /registrations [get]
func (h *RegistrationHandler) List(c *gin.Context) {
	var query dto.RegistrationQuery
	if !bindQuery(c, &query) {
		return
	}
	items, pagination, err := h.registrations.List(c.Request.Context(), query)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, items, pagination)
}

// Get godoc
// @Summary Registration detail
// @Tags Registrations
// @Produce json
// @Param id path string true "Registration ID"
// @Success 200 {object} response.Envelope
// @Router /registrations/{id} [get]
func (h *RegistrationHandler) Get(c *gin.Context) {
	id, ok := idParam(c)
	if !ok {
		return
	}
	reg, err := h.registrations.Get(c.Request.Context(), id)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, reg)
}

// UpdateFee godoc
// @Summary Override a registration's total fees
// @Tags Registrations
// @Accept json
// @Produce json
// @Param id path string true "Registration ID"
// @Param payload body dto.UpdateRegistrationFeeRequest true "Fee payload"
// @Success 200 {object} response.Envelope
// @Router /registrations/{id}/fee [patch]
func (h *RegistrationHandler) UpdateFee(c *gin.Context) {
	actor, ok := actorFromContext(c)
	if !ok {
		return
	}
	id, ok := idParam(c)
	if !ok {
		return
	}
	var req dto.UpdateRegistrationFeeRequest
	if !bindJSON(c, &req) {
		return
	}
	reg, err := h.registrations.UpdateFee(c.Request.Context(), actor.ID, id, req.TotalFees)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, reg)
}

// RecordPayment godoc
// @Summary Record a payment
// @Description A repeated Idempotency-Key returns the original payment with 200.
// @Tags Registrations
// @Accept json
// @Produce json
// @Param id path string true "Registration ID"
// @Param Idempotency-Key header string false "Client retry key"
// @Param payload body dto.RecordPaymentRequest true "Payment payload"
// @Success 201 {object} response.Envelope
// @Success 200 {object} response.Envelope
// @Router /registrations/{id}/payments [post]
func (h *RegistrationHandler) RecordPayment(c *gin.Context) {
	actor, ok := actorFromContext(c)
	if !ok {
		return
	}
	id, ok := idParam(c)
	if !ok {
		return
	}
	var req dto.RecordPaymentRequest
	if !bindJSON(c, &req) {
		return
	}
	if req.IdempotencyKey == nil {
		if key := strings.TrimSpace(c.GetHeader(IdempotencyKeyHeader)); key != "" {
			req.IdempotencyKey = &key
		}
	}
	result, err := h.registrations.RecordPayment(c.Request.Context(), actor.ID, id, req)
	if err != nil {
		response.Error(c, err)
		return
	}
	status := http.StatusCreated
	if result.Replayed {
		status = http.StatusOK
	}
	response.JSON(c, status, result, nil)
}

// ListPayments godoc
// @Summary Payments of a registration
// @Tags Registrations
// @Produce json
// @Param id path string true "Registration ID"
// @Success 200 {object} response.Envelope
// @Router /registrations/{id}/payments [get]
func (h *RegistrationHandler) ListPayments(c *gin.Context) {
	id, ok := idParam(c)
	if !ok {
		return
	}
	payments, err := h.registrations.ListPayments(c.Request.Context(), id)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, payments)
}

// MonthlyStatus godoc
// @Summary Whether the month's fee has been collected
// @Tags Registrations
// @Produce json
// @Param id path string true "Registration ID"
// @Param month query int true "Month (1-12)"
// @Param year query int true "Year"
// @Success 200 {object} response.Envelope
// @Router /registrations/{id}/monthly-status [get]
func (h *RegistrationHandler) MonthlyStatus(c *gin.Context) {
	id, ok := idParam(c)
	if !ok {
		return
	}
	var query dto.MonthQuery
	if !bindQuery(c, &query) {
		return
	}
	if query.Month < 1 || query.Month > 12 || query.Year < 2000 {
		response.Error(c, appErrors.Clone(appErrors.ErrValidation, "month and year are required"))
		return
	}
	status, err := h.registrations.MonthlyCollectionStatus(c.Request.Context(), id, query.Year, time.Month(query.Month))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, status)
}

// MarkAttendance godoc
// @Summary Mark a student present
// @Description Marking the same day twice is a no-op and answers 200.
// @Tags Attendance
// @Accept json
// @Produce json
// @Param id path string true "Registration ID"
// @Param payload body dto.MarkAttendanceRequest false "Date (defaults to today)"
// @Success 201 {object} response.Envelope
// @Success 200 {object} response.Envelope
// @Router /registrations/{id}/attendance [post]
func (h *RegistrationHandler) MarkAttendance(c *gin.Context) {
	actor, ok := actorFromContext(c)
	if !ok {
		return
	}
	id, ok := idParam(c)
	if !ok {
		return
	}
	var req dto.MarkAttendanceRequest
	if c.Request.ContentLength > 0 && !bindJSON(c, &req) {
		return
	}
	mark, err := h.registrations.MarkAttendance(c.Request.Context(), actor.ID, id, req.Date)
	if err != nil {
		response.Error(c, err)
		return
	}
	status := http.StatusOK
	if mark.Created {
		status = http.StatusCreated
	}
	response.JSON(c, status, mark, nil)
}

// AttendanceSheet godoc
// @Summary Attendance sheet over a date range
// @Tags Attendance
// @Produce json
// @Param id path string true "Registration ID"
// @Param from query string true "From (YYYY-MM-DD)"
// @Param to query string true "To (YYYY-MM-DD)"
// @Success 200 {object} response.Envelope
// @Router /registrations/{id}/attendance [get]
func (h *RegistrationHandler) AttendanceSheet(c *gin.Context) {
	id, ok := idParam(c)
	if !ok {
		return
	}
	var query dto.DateRangeQuery
	if !bindQuery(c, &query) {
		return
	}
	sheet, err := h.registrations.AttendanceSheet(c.Request.Context(), id, query)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, sheet)
}

// FastProcess godoc
// @Summary Mark today's attendance and collect the monthly fee for a student
// @Description Answers 207 with the per-registration report when any unit failed.
// @Tags Attendance
// @Accept json
// @Produce json
// @Param payload body dto.FastProcessRequest true "Student"
// @Success 200 {object} response.Envelope
// @Success 207 {object} response.Envelope
// @Router /fast-process [post]
func (h *RegistrationHandler) FastProcess(c *gin.Context) {
	actor, ok := actorFromContext(c)
	if !ok {
		return
	}
	var req dto.FastProcessRequest
	if !bindJSON(c, &req) {
		return
	}
	report, err := h.registrations.FastProcess(c.Request.Context(), actor.ID, req)
	if err != nil {
		response.Error(c, err)
		return
	}
	if report.Failed > 0 {
		response.Partial(c, report, appErrors.ErrPartialBatchFailure)
		return
	}
	response.OK(c, report)
}

// Delete godoc
// @Summary Remove a registration with its payments and attendance
// @Tags Registrations
// @Param id path string true "Registration ID"
// @Success 204 {string} string ""
// @Router /registrations/{id} [delete]
func (h *RegistrationHandler) Delete(c *gin.Context) {
	actor, ok := actorFromContext(c)
	if !ok {
		return
	}
	id, ok := idParam(c)
	if !ok {
		return
	}
	if err := h.registrations.Delete(c.Request.Context(), actor.ID, id); err != nil {
		response.Error(c, err)
		return
	}
	response.NoContent(c)
}
