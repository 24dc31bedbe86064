package handler

import (
	"context"
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/edu-center-api/internal/models"
	"github.com/noah-isme/edu-center-api/pkg/response"
)

type directoryService interface {
	ListTeachers(ctx context.Context, filter models.TeacherFilter) ([]models.Teacher, *models.Pagination, error)
	ListHalls(ctx context.Context) ([]models.Hall, error)
	SearchStudents(ctx context.Context, filter models.StudentFilter) ([]models.Student, error)
	AuditTrail(ctx context.Context, resource, resourceID string, limit int) ([]models.AuditLog, error)
}

// DirectoryHandler serves lookup lists and the audit trail.
type DirectoryHandler struct {
	directory directoryService
}

// NewDirectoryHandler constructs DirectoryHandler.
func NewDirectoryHandler(directory directoryService) *DirectoryHandler {
	return &DirectoryHandler{directory: directory}
}

// Teachers godoc
// @Summary List teachers
// @Tags Directory
// @Produce json
// @Param search query string false "Name or phone"
// @Param active query bool false "Filter by active state"
// @Param page query int false "Page"
// @Param page_size query int false "Page size"
// @Success 200 {object} response.Envelope
// @Router /teachers [get]
func (h *DirectoryHandler) Teachers(c *gin.Context) {
	filter := models.TeacherFilter{Search: strings.TrimSpace(c.Query("search"))}
	switch c.Query("active") {
	case "true":
		v := true
		filter.Active = &v
	case "false":
		v := false
		filter.Active = &v
	}
	if page, err := strconv.Atoi(c.DefaultQuery("page", "1")); err == nil {
		filter.Page = page
	}
	if size, err := strconv.Atoi(c.DefaultQuery("page_size", "20")); err == nil {
		filter.PageSize = size
	}

	teachers, pagination, err := h.directory.ListTeachers(c.Request.Context(), filter)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, teachers, pagination)
}

// Halls godoc
// @Summary Active halls
// @Tags Directory
// @Produce json
// @Success 200 {object} response.Envelope
// @Router /halls [get]
func (h *DirectoryHandler) Halls(c *gin.Context) {
	halls, err := h.directory.ListHalls(c.Request.Context())
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, halls)
}

// Students godoc
// @Summary Search active students
// @Tags Directory
// @Produce json
// @Param search query string false "Name or mobile"
// @Param page query int false "Page"
// @Param page_size query int false "Page size"
// @Success 200 {object} response.Envelope
// @Router /students [get]
func (h *DirectoryHandler) Students(c *gin.Context) {
	filter := models.StudentFilter{Search: c.Query("search")}
	if page, err := strconv.Atoi(c.DefaultQuery("page", "1")); err == nil {
		filter.Page = page
	}
	if size, err := strconv.Atoi(c.DefaultQuery("page_size", "20")); err == nil {
		filter.PageSize = size
	}
	students, err := h.directory.SearchStudents(c.Request.Context(), filter)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, students)
}

// AuditTrail godoc
// @Summary Audit trail of a resource
// @Tags Directory
// @Produce json
// @Param resource path string true "booking, registration, teacher or settlement"
// @Param id path string true "Resource ID"
// @Param limit query int false "Max entries"
// @Success 200 {object} response.Envelope
// @Router /audit/{resource}/{id} [get]
func (h *DirectoryHandler) AuditTrail(c *gin.Context) {
	limit, _ := strconv.Atoi(c.Query("limit"))
	logs, err := h.directory.AuditTrail(c.Request.Context(), c.Param("resource"), c.Param("id"), limit)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, logs)
}
