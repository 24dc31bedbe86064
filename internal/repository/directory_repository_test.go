package repository

import (
	"context"
	"regexp"
	"testing"
	"time"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/edu-center-api/internal/models"
)

func TestHallRepositoryListActive(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()

	mock.ExpectQuery(regexp.QuoteMeta("FROM halls WHERE active = TRUE ORDER BY name")).
		WillReturnRows(sqlmock.NewRows([]string{"id", "name", "capacity", "active"}).
			AddRow("h-1", "Hall A", 30, true))

	halls, err := NewHallRepository(db).ListActive(context.Background())
	require.NoError(t, err)
	require.Len(t, halls, 1)
	assert.Equal(t, "Hall A", halls[0].Name)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestStudentRepositorySearch(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()

	mock.ExpectQuery(regexp.QuoteMeta("LOWER(full_name) LIKE $1") + ".*" + regexp.QuoteMeta("LIMIT 10 OFFSET 10")).
		WithArgs("%ali%").
		WillReturnRows(sqlmock.NewRows([]string{"id", "full_name", "mobile", "active"}).
			AddRow("s-1", "Ali", nil, true))

	students, err := NewStudentRepository(db).Search(context.Background(), models.StudentFilter{Search: " ALI ", Page: 2, PageSize: 10})
	require.NoError(t, err)
	assert.Len(t, students, 1)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestTeacherRepositoryListCounts(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()
	now := time.Now()
	active := true

	mock.ExpectQuery(regexp.QuoteMeta("FROM teachers WHERE 1=1 AND active = $1")).
		WithArgs(true).
		WillReturnRows(sqlmock.NewRows([]string{"id", "full_name", "phone", "default_fee", "active", "created_at", "updated_at"}).
			AddRow("t-1", "Sara", nil, "200", true, now, now))
	mock.ExpectQuery(regexp.QuoteMeta("SELECT COUNT(*) FROM teachers")).
		WithArgs(true).
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(1))

	teachers, total, err := NewTeacherRepository(db).List(context.Background(), models.TeacherFilter{Active: &active})
	require.NoError(t, err)
	assert.Len(t, teachers, 1)
	assert.Equal(t, 1, total)
	assert.Equal(t, "200", teachers[0].DefaultFee.String())
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestAuditRepositoryListByResource(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()

	mock.ExpectQuery(regexp.QuoteMeta("ORDER BY created_at DESC LIMIT 5")).
		WithArgs("booking", "b-1").
		WillReturnRows(sqlmock.NewRows([]string{"id", "user_id", "action", "resource", "resource_id", "old_values", "new_values", "request_id", "created_at"}).
			AddRow("a-1", "u-1", models.AuditActionBookingCreate, "booking", "b-1", nil, []byte(`{}`), "req-1", time.Now()))

	logs, err := NewAuditRepository(db).ListByResource(context.Background(), "booking", "b-1", 5)
	require.NoError(t, err)
	require.Len(t, logs, 1)
	assert.Equal(t, models.AuditActionBookingCreate, logs[0].Action)
	assert.NoError(t, mock.ExpectationsWereMet())
}
