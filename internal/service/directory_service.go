package service

import (
	"context"
	"strings"

	"go.uber.org/zap"

	"github.com/noah-isme/edu-center-api/internal/models"
	appErrors "github.com/noah-isme/edu-center-api/pkg/errors"
)

const maxAuditTrail = 200

type teacherDirectory interface {
	List(ctx context.Context, filter models.TeacherFilter) ([]models.Teacher, int, error)
}

type hallDirectory interface {
	ListActive(ctx context.Context) ([]models.Hall, error)
}

type studentDirectory interface {
	Search(ctx context.Context, filter models.StudentFilter) ([]models.Student, error)
}

type auditTrailReader interface {
	ListByResource(ctx context.Context, resource, resourceID string, limit int) ([]models.AuditLog, error)
}

// DirectoryService serves the read-only lookups behind the admin pickers and the
// audit trail.
type DirectoryService struct {
	teachers teacherDirectory
	halls    hallDirectory
	students studentDirectory
	audit    auditTrailReader
	logger   *zap.Logger
}

// NewDirectoryService constructs the service.
func NewDirectoryService(teachers teacherDirectory, halls hallDirectory, students studentDirectory, audit auditTrailReader, logger *zap.Logger) *DirectoryService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &DirectoryService{teachers: teachers, halls: halls, students: students, audit: audit, logger: logger}
}

// ListTeachers pages through teachers.
func (s *DirectoryService) ListTeachers(ctx context.Context, filter models.TeacherFilter) ([]models.Teacher, *models.Pagination, error) {
	if filter.Page < 1 {
		filter.Page = 1
	}
	if filter.PageSize <= 0 || filter.PageSize > 100 {
		filter.PageSize = 20
	}
	filter.Search = strings.TrimSpace(filter.Search)
	teachers, total, err := s.teachers.List(ctx, filter)
	if err != nil {
		return nil, nil, internal(err, "failed to list teachers")
	}
	if teachers == nil {
		teachers = []models.Teacher{}
	}
	return teachers, &models.Pagination{Page: filter.Page, PageSize: filter.PageSize, TotalCount: total}, nil
}

// ListHalls returns halls that accept bookings.
func (s *DirectoryService) ListHalls(ctx context.Context) ([]models.Hall, error) {
	halls, err := s.halls.ListActive(ctx)
	if err != nil {
		return nil, internal(err, "failed to list halls")
	}
	if halls == nil {
		halls = []models.Hall{}
	}
	return halls, nil
}

// SearchStudents matches active students by name or mobile number.
func (s *DirectoryService) SearchStudents(ctx context.Context, filter models.StudentFilter) ([]models.Student, error) {
	students, err := s.students.Search(ctx, filter)
	if err != nil {
		return nil, internal(err, "failed to search students")
	}
	if students == nil {
		students = []models.Student{}
	}
	return students, nil
}

// AuditTrail returns the newest audit entries of one resource.
func (s *DirectoryService) AuditTrail(ctx context.Context, resource, resourceID string, limit int) ([]models.AuditLog, error) {
	resource = strings.TrimSpace(resource)
	resourceID = strings.TrimSpace(resourceID)
	if resource == "" || resourceID == "" {
		return nil, appErrors.Clone(appErrors.ErrValidation, "resource and id are required")
	}
	if limit <= 0 || limit > maxAuditTrail {
		limit = 50
	}
	logs, err := s.audit.ListByResource(ctx, resource, resourceID, limit)
	if err != nil {
		return nil, internal(err, "failed to load audit trail")
	}
	if logs == nil {
		logs = []models.AuditLog{}
	}
	return logs, nil
}
