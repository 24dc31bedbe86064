package handler

import (
	"context"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/edu-center-api/internal/dto"
	"github.com/noah-isme/edu-center-api/internal/models"
	"github.com/noah-isme/edu-center-api/internal/service"
	"github.com/noah-isme/edu-center-api/pkg/response"
)

type settlementService interface {
	Create(ctx context.Context, actor service.Actor, req dto.CreateSettlementRequest) (*models.DailySettlement, error)
	Update(ctx context.Context, actor service.Actor, id string, req dto.UpdateSettlementRequest) (*service.SettlementMutation, error)
	Delete(ctx context.Context, actor service.Actor, id string, req dto.DeleteSettlementRequest) (*service.SettlementMutation, error)
	ReviewRequest(ctx context.Context, actor service.Actor, requestID string, req dto.ReviewChangeRequest) (*models.SettlementChangeRequest, error)
	List(ctx context.Context, actor service.Actor, query dto.SettlementQuery) ([]models.SettlementListItem, error)
	ListRequests(ctx context.Context, actor service.Actor, query dto.ChangeRequestQuery) ([]models.SettlementChangeRequest, error)
	GetDailySummary(ctx context.Context, actor service.Actor, rawDate string) (*models.DailySummary, error)
}

// SettlementHandler exposes the daily settlement ledger.
type SettlementHandler struct {
	settlements settlementService
}

// NewSettlementHandler constructs SettlementHandler.
func NewSettlementHandler(settlements settlementService) *SettlementHandler {
	return &SettlementHandler{settlements: settlements}
}

// Create godoc
// @Summary Record an income or expense entry
// @Tags Settlements
// @Accept json
// @Produce json
// @Param payload body dto.CreateSettlementRequest true "Settlement payload"
// @Success 201 {object} response.Envelope
// @Failure 403 {object} response.Envelope
// @Router /settlements [post]
func (h *SettlementHandler) Create(c *gin.Context) {
	actor, ok := actorFromContext(c)
	if !ok {
		return
	}
	var req dto.CreateSettlementRequest
	if !bindJSON(c, &req) {
		return
	}
	settlement, err := h.settlements.Create(c.Request.Context(), actor, req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, settlement)
}

// List godoc
// @Summary Settlements of a day
// @Tags Settlements
// @Produce json
// @Param date query string false "Date (YYYY-MM-DD). Defaults to today"
// @Param type query string false "income or expense"
// @Param include_deleted query bool false "Moderators only"
// @Success 200 {object} response.Envelope
// @Router /settlements [get]
func (h *SettlementHandler) List(c *gin.Context) {
	actor, ok := actorFromContext(c)
	if !ok {
		return
	}
	var query dto.SettlementQuery
	if !bindQuery(c, &query) {
		return
	}
	items, err := h.settlements.List(c.Request.Context(), actor, query)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, items)
}

// Summary godoc
// @Summary Income, expense and net totals of a day
// @Tags Settlements
// @Produce json
// @Param date query string false "Date (YYYY-MM-DD). Defaults to today"
// @Success 200 {object} response.Envelope
// @Router /settlements/summary [get]
func (h *SettlementHandler) Summary(c *gin.Context) {
	actor, ok := actorFromContext(c)
	if !ok {
		return
	}
	summary, err := h.settlements.GetDailySummary(c.Request.Context(), actor, c.Query("date"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, summary)
}

// Update godoc
// @Summary Edit a settlement
// @Description Moderators edit directly (200); other writers file a change request (202).
// @Tags Settlements
// @Accept json
// @Produce json
// @Param id path string true "Settlement ID"
// @Param payload body dto.UpdateSettlementRequest true "Changes"
// @Success 200 {object} response.Envelope
// @Success 202 {object} response.Envelope
// @Router /settlements/{id} [patch]
func (h *SettlementHandler) Update(c *gin.Context) {
	actor, ok := actorFromContext(c)
	if !ok {
		return
	}
	id, ok := idParam(c)
	if !ok {
		return
	}
	var req dto.UpdateSettlementRequest
	if !bindJSON(c, &req) {
		return
	}
	mutation, err := h.settlements.Update(c.Request.Context(), actor, id, req)
	if err != nil {
		response.Error(c, err)
		return
	}
	respondMutation(c, mutation)
}

// Delete godoc
// @Summary Delete a settlement
// @Description Moderators delete directly (200); other writers file a change request (202).
// @Tags Settlements
// @Accept json
// @Produce json
// @Param id path string true "Settlement ID"
// @Param payload body dto.DeleteSettlementRequest false "Reason"
// @Success 200 {object} response.Envelope
// @Success 202 {object} response.Envelope
// @Router /settlements/{id} [delete]
func (h *SettlementHandler) Delete(c *gin.Context) {
	actor, ok := actorFromContext(c)
	if !ok {
		return
	}
	id, ok := idParam(c)
	if !ok {
		return
	}
	var req dto.DeleteSettlementRequest
	if c.Request.ContentLength > 0 && !bindJSON(c, &req) {
		return
	}
	mutation, err := h.settlements.Delete(c.Request.Context(), actor, id, req)
	if err != nil {
		response.Error(c, err)
		return
	}
	respondMutation(c, mutation)
}

// ListRequests godoc
// @Summary Settlement change requests
// @Tags Settlements
// @Produce json
// @Param status query []string false "pending, approved or rejected"
// @Param settlement_id query string false "Settlement filter"
// @Param limit query int false "Limit"
// @Param offset query int false "Offset"
// @Success 200 {object} response.Envelope
// @Router /settlement-requests [get]
func (h *SettlementHandler) ListRequests(c *gin.Context) {
	actor, ok := actorFromContext(c)
	if !ok {
		return
	}
	var query dto.ChangeRequestQuery
	if !bindQuery(c, &query) {
		return
	}
	requests, err := h.settlements.ListRequests(c.Request.Context(), actor, query)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, requests)
}

// Review godoc
// @Summary Approve or reject a change request
// @Tags Settlements
// @Accept json
// @Produce json
// @Param id path string true "Change request ID"
// @Param payload body dto.ReviewChangeRequest true "Decision"
// @Success 200 {object} response.Envelope
// @Failure 409 {object} response.Envelope
// @Router /settlement-requests/{id}/review [post]
func (h *SettlementHandler) Review(c *gin.Context) {
	actor, ok := actorFromContext(c)
	if !ok {
		return
	}
	id, ok := idParam(c)
	if !ok {
		return
	}
	var req dto.ReviewChangeRequest
	if !bindJSON(c, &req) {
		return
	}
	request, err := h.settlements.ReviewRequest(c.Request.Context(), actor, id, req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, request)
}

func respondMutation(c *gin.Context, mutation *service.SettlementMutation) {
	if !mutation.Applied {
		response.Accepted(c, mutation)
		return
	}
	response.OK(c, mutation)
}
