package service

import (
	"context"
	"database/sql"
	"sync"

	"github.com/jmoiron/sqlx"

	"github.com/noah-isme/edu-center-api/internal/models"
)

type stubTx struct {
	calls int
}

func (s *stubTx) WithinTx(ctx context.Context, fn func(tx *sqlx.Tx) error) error {
	s.calls++
	return fn(nil)
}

type stubHalls struct {
	items   map[string]*models.Hall
	locked  []string
	lockErr error
	journal *[]string
}

func (s *stubHalls) Lock(ctx context.Context, exec sqlx.ExtContext, id string) error {
	if s.lockErr != nil {
		return s.lockErr
	}
	s.locked = append(s.locked, id)
	if s.journal != nil {
		*s.journal = append(*s.journal, "lock:"+id)
	}
	return nil
}

func (s *stubHalls) FindByID(ctx context.Context, id string) (*models.Hall, error) {
	if hall, ok := s.items[id]; ok {
		cp := *hall
		return &cp, nil
	}
	return nil, sql.ErrNoRows
}

type stubTeachers struct {
	items map[string]*models.Teacher
}

func (s *stubTeachers) FindByID(ctx context.Context, id string) (*models.Teacher, error) {
	if teacher, ok := s.items[id]; ok {
		cp := *teacher
		return &cp, nil
	}
	return nil, sql.ErrNoRows
}

type stubStudents struct {
	items map[string]*models.Student
}

func (s *stubStudents) FindByID(ctx context.Context, id string) (*models.Student, error) {
	if student, ok := s.items[id]; ok {
		cp := *student
		return &cp, nil
	}
	return nil, sql.ErrNoRows
}

type recordingAudit struct {
	mu      sync.Mutex
	entries []AuditEntry
}

func (r *recordingAudit) Record(ctx context.Context, entry AuditEntry) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.entries = append(r.entries, entry)
}

func (r *recordingAudit) actions() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]string, len(r.entries))
	for i, e := range r.entries {
		out[i] = e.Action
	}
	return out
}
