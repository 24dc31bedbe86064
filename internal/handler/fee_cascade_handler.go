package handler

import (
	"context"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/edu-center-api/internal/dto"
	"github.com/noah-isme/edu-center-api/internal/models"
	"github.com/noah-isme/edu-center-api/pkg/response"
)

type feeCascadeService interface {
	ListCascadeCandidates(ctx context.Context, teacherID string) ([]models.Booking, error)
	ApplyTeacherDefaultFee(ctx context.Context, actorID, teacherID string, req dto.ApplyTeacherFeeRequest) (*models.FeeCascadeResult, error)
}

// FeeCascadeHandler changes a teacher's default fee across bookings.
type FeeCascadeHandler struct {
	cascade feeCascadeService
}

// NewFeeCascadeHandler constructs FeeCascadeHandler.
func NewFeeCascadeHandler(cascade feeCascadeService) *FeeCascadeHandler {
	return &FeeCascadeHandler{cascade: cascade}
}

// Candidates godoc
// @Summary Bookings eligible for a fee cascade
// @Tags Teachers
// @Produce json
// @Param id path string true "Teacher ID"
// @Success 200 {object} response.Envelope
// @Router /teachers/{id}/fee-cascade [get]
func (h *FeeCascadeHandler) Candidates(c *gin.Context) {
	teacherID, ok := idParam(c)
	if !ok {
		return
	}
	bookings, err := h.cascade.ListCascadeCandidates(c.Request.Context(), teacherID)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, bookings)
}

// Apply godoc
// @Summary Set the teacher default fee and push it to selected bookings
// @Description Runs in one transaction; nothing changes when any step fails.
// @Tags Teachers
// @Accept json
// @Produce json
// @Param id path string true "Teacher ID"
// @Param payload body dto.ApplyTeacherFeeRequest true "Cascade payload"
// @Success 200 {object} response.Envelope
// @Router /teachers/{id}/fee-cascade [post]
func (h *FeeCascadeHandler) Apply(c *gin.Context) {
	actor, ok := actorFromContext(c)
	if !ok {
		return
	}
	teacherID, ok := idParam(c)
	if !ok {
		return
	}
	var req dto.ApplyTeacherFeeRequest
	if !bindJSON(c, &req) {
		return
	}
	result, err := h.cascade.ApplyTeacherDefaultFee(c.Request.Context(), actor.ID, teacherID, req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, result)
}
