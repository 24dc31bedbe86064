package service

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/edu-center-api/internal/models"
	appErrors "github.com/noah-isme/edu-center-api/pkg/errors"
)

type stubTeacherDirectory struct {
	last models.TeacherFilter
}

func (s *stubTeacherDirectory) List(_ context.Context, filter models.TeacherFilter) ([]models.Teacher, int, error) {
	s.last = filter
	return []models.Teacher{{ID: "t-1"}}, 41, nil
}

type stubHallDirectory struct{ err error }

func (s stubHallDirectory) ListActive(context.Context) ([]models.Hall, error) { return nil, s.err }

type stubStudentDirectory struct{}

func (stubStudentDirectory) Search(context.Context, models.StudentFilter) ([]models.Student, error) {
	return nil, nil
}

type stubAuditTrail struct{ limit int }

func (s *stubAuditTrail) ListByResource(_ context.Context, _, _ string, limit int) ([]models.AuditLog, error) {
	s.limit = limit
	return []models.AuditLog{{Action: models.AuditActionBookingCreate}}, nil
}

func TestDirectoryListTeachersPaginates(t *testing.T) {
	teachers := &stubTeacherDirectory{}
	svc := NewDirectoryService(teachers, stubHallDirectory{}, stubStudentDirectory{}, &stubAuditTrail{}, nil)

	items, page, err := svc.ListTeachers(context.Background(), models.TeacherFilter{Search: "  sara ", PageSize: 500})
	require.NoError(t, err)
	assert.Len(t, items, 1)
	assert.Equal(t, &models.Pagination{Page: 1, PageSize: 20, TotalCount: 41}, page)
	assert.Equal(t, "sara", teachers.last.Search)
}

func TestDirectoryEmptyListsAreNotNil(t *testing.T) {
	svc := NewDirectoryService(&stubTeacherDirectory{}, stubHallDirectory{}, stubStudentDirectory{}, &stubAuditTrail{}, nil)

	halls, err := svc.ListHalls(context.Background())
	require.NoError(t, err)
	assert.NotNil(t, halls)

	students, err := svc.SearchStudents(context.Background(), models.StudentFilter{Search: "ali"})
	require.NoError(t, err)
	assert.NotNil(t, students)
}

func TestDirectoryHallFailureIsInternal(t *testing.T) {
	svc := NewDirectoryService(&stubTeacherDirectory{}, stubHallDirectory{err: errors.New("boom")}, stubStudentDirectory{}, &stubAuditTrail{}, nil)

	_, err := svc.ListHalls(context.Background())
	assert.ErrorIs(t, err, appErrors.ErrInternal)
}

func TestDirectoryAuditTrail(t *testing.T) {
	trail := &stubAuditTrail{}
	svc := NewDirectoryService(&stubTeacherDirectory{}, stubHallDirectory{}, stubStudentDirectory{}, trail, nil)

	_, err := svc.AuditTrail(context.Background(), "booking", " ", 10)
	assert.ErrorIs(t, err, appErrors.ErrValidation)

	logs, err := svc.AuditTrail(context.Background(), "booking", "b-1", 1000)
	require.NoError(t, err)
	assert.Len(t, logs, 1)
	assert.Equal(t, 50, trail.limit)
}
