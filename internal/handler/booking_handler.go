package handler

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/edu-center-api/internal/dto"
	"github.com/noah-isme/edu-center-api/internal/models"
	appErrors "github.com/noah-isme/edu-center-api/pkg/errors"
	"github.com/noah-isme/edu-center-api/pkg/response"
)

type bookingService interface {
	Create(ctx context.Context, actorID string, req dto.CreateBookingRequest) (*models.BookingDetail, error)
	Get(ctx context.Context, id string) (*models.BookingDetail, error)
	UpdateFee(ctx context.Context, actorID, id string, req dto.UpdateBookingFeeRequest) (*models.BookingDetail, error)
	Reschedule(ctx context.Context, actorID, id string, req dto.RescheduleBookingRequest) (*models.BookingDetail, error)
	UpdateStatus(ctx context.Context, actorID, id string, status models.BookingStatus) (*models.BookingDetail, error)
	ListLiveForMonth(ctx context.Context, query dto.BookingQuery) ([]models.BookingDetail, error)
	Delete(ctx context.Context, actorID, id string) error
}

// BookingHandler exposes the booking catalog.
type BookingHandler struct {
	bookings bookingService
}

// NewBookingHandler constructs BookingHandler.
func NewBookingHandler(bookings bookingService) *BookingHandler {
	return &BookingHandler{bookings: bookings}
}

// Create godoc
// @Summary Schedule a recurring booking
// @Tags Bookings
// @Accept json
// @Produce json
// @Param payload body dto.CreateBookingRequest true "Booking payload"
// @Success 201 {object} response.Envelope
// @Failure 409 {object} response.Envelope
// @Router /bookings [post]
func (h *BookingHandler) Create(c *gin.Context) {
	actor, ok := actorFromContext(c)
	if !ok {
		return
	}
	var req dto.CreateBookingRequest
	if !bindJSON(c, &req) {
		return
	}
	booking, err := h.bookings.Create(c.Request.Context(), actor.ID, req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, booking)
}

// List godoc
// @Summary Bookings live in a month
// @Tags Bookings
// @Produce json
// @Param month query int true "Month (1-12)"
// @Param year query int true "Year"
// @Param hall_id query string false "Hall filter"
// @Param teacher_id query string false "Teacher filter"
// @Param stage_id query string false "Stage filter"
// @Success 200 {object} response.Envelope
// @Router /bookings [get]
func (h *BookingHandler) List(c *gin.Context) {
	var query dto.BookingQuery
	if !bindQuery(c, &query) {
		return
	}
	bookings, err := h.bookings.ListLiveForMonth(c.Request.Context(), query)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, bookings, nil, map[string]interface{}{"count": len(bookings)})
}

// Get godoc
// @Summary Booking detail
// @Tags Bookings
// @Produce json
// @Param id path string true "Booking ID"
// @Success 200 {object} response.Envelope
// @Router /bookings/{id} [get]
func (h *BookingHandler) Get(c *gin.Context) {
	id, ok := idParam(c)
	if !ok {
		return
	}
	booking, err := h.bookings.Get(c.Request.Context(), id)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, booking)
}

// UpdateFee godoc
// @Summary Set or clear a booking's manual fee
// @Tags Bookings
// @Accept json
// @Produce json
// @Param id path string true "Booking ID"
// @Param payload body dto.UpdateBookingFeeRequest true "Fee payload"
// @Success 200 {object} response.Envelope
// @Router /bookings/{id}/fee [patch]
func (h *BookingHandler) UpdateFee(c *gin.Context) {
	actor, ok := actorFromContext(c)
	if !ok {
		return
	}
	id, ok := idParam(c)
	if !ok {
		return
	}
	var req dto.UpdateBookingFeeRequest
	if !bindJSON(c, &req) {
		return
	}
	booking, err := h.bookings.UpdateFee(c.Request.Context(), actor.ID, id, req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, booking)
}

// Reschedule godoc
// @Summary Move a booking to another slot
// @Tags Bookings
// @Accept json
// @Produce json
// @Param id path string true "Booking ID"
// @Param payload body dto.RescheduleBookingRequest true "Schedule payload"
// @Success 200 {object} response.Envelope
// @Failure 409 {object} response.Envelope
// @Router /bookings/{id}/schedule [patch]
func (h *BookingHandler) Reschedule(c *gin.Context) {
	actor, ok := actorFromContext(c)
	if !ok {
		return
	}
	id, ok := idParam(c)
	if !ok {
		return
	}
	var req dto.RescheduleBookingRequest
	if !bindJSON(c, &req) {
		return
	}
	booking, err := h.bookings.Reschedule(c.Request.Context(), actor.ID, id, req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, booking)
}

// UpdateStatus godoc
// @Summary Cancel, complete or reactivate a booking
// @Tags Bookings
// @Accept json
// @Produce json
// @Param id path string true "Booking ID"
// @Param payload body dto.UpdateBookingStatusRequest true "Status payload"
// @Success 200 {object} response.Envelope
// @Router /bookings/{id}/status [patch]
func (h *BookingHandler) UpdateStatus(c *gin.Context) {
	actor, ok := actorFromContext(c)
	if !ok {
		return
	}
	id, ok := idParam(c)
	if !ok {
		return
	}
	var req dto.UpdateBookingStatusRequest
	if !bindJSON(c, &req) {
		return
	}
	booking, err := h.bookings.UpdateStatus(c.Request.Context(), actor.ID, id, models.BookingStatus(req.Status))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, booking)
}

// Delete godoc
// @Summary Delete a booking with its registrations, payments and attendance
// @Tags Bookings
// @Param id path string true "Booking ID"
// @Param confirm query bool true "Must be true"
// @Success 204 {string} string ""
// @Failure 412 {object} response.Envelope
// @Router /bookings/{id} [delete]
func (h *BookingHandler) Delete(c *gin.Context) {
	actor, ok := actorFromContext(c)
	if !ok {
		return
	}
	id, ok := idParam(c)
	if !ok {
		return
	}
	if c.Query("confirm") != "true" {
		response.Error(c, appErrors.Clone(appErrors.ErrPreconditionFailed, "deleting a booking removes its registrations; pass confirm=true"))
		return
	}
	if err := h.bookings.Delete(c.Request.Context(), actor.ID, id); err != nil {
		response.Error(c, err)
		return
	}
	response.NoContent(c)
}
