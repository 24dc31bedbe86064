package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/noah-isme/edu-center-api/internal/models"
	"github.com/noah-isme/edu-center-api/pkg/jobs"
	"github.com/noah-isme/edu-center-api/pkg/middleware/requestid"
)

type auditStore interface {
	Create(ctx context.Context, log *models.AuditLog) error
}

// AuditEntry is what services report; the service serialises it into an AuditLog.
type AuditEntry struct {
	ActorID    string
	Action     string
	Resource   string
	ResourceID string
	Before     interface{}
	After      interface{}
}

// AuditRecorder is the narrow interface domain services depend on.
type AuditRecorder interface {
	Record(ctx context.Context, entry AuditEntry)
}

// AuditConfig sizes the background writer.
type AuditConfig struct {
	Workers    int
	Retries    int
	BufferSize int
}

// AuditService writes audit logs off the request path through a job queue.
type AuditService struct {
	store  auditStore
	queue  *jobs.Queue
	logger *zap.Logger
}

// NewAuditService constructs the service; call Start before recording.
func NewAuditService(store auditStore, cfg AuditConfig, logger *zap.Logger) *AuditService {
	if logger == nil {
		logger = zap.NewNop()
	}
	svc := &AuditService{store: store, logger: logger}
	svc.queue = jobs.NewQueue("audit", svc.handle, jobs.QueueConfig{
		Workers:    cfg.Workers,
		BufferSize: cfg.BufferSize,
		MaxRetries: cfg.Retries,
		Logger:     logger,
	})
	return svc
}

// Start launches the writer workers.
func (s *AuditService) Start(ctx context.Context) {
	s.queue.Start(ctx)
}

// Stop flushes pending entries and stops the workers.
func (s *AuditService) Stop() {
	s.queue.Stop()
}

// Record enqueues an entry. When the queue cannot take it the entry is written inline.
func (s *AuditService) Record(ctx context.Context, entry AuditEntry) {
	log, err := buildAuditLog(ctx, entry)
	if err != nil {
		s.logger.Warn("failed to encode audit entry", zap.String("action", entry.Action), zap.Error(err))
		return
	}
	err = s.queue.TryEnqueue(jobs.Job{ID: log.ID, Type: entry.Action, Payload: log})
	if err == nil {
		return
	}
	if !errors.Is(err, jobs.ErrQueueFull) && !errors.Is(err, jobs.ErrQueueClosed) {
		s.logger.Warn("audit enqueue failed", zap.Error(err))
	}
	if err := s.store.Create(context.WithoutCancel(ctx), log); err != nil {
		s.logger.Error("failed to persist audit log", zap.String("action", log.Action), zap.Error(err))
	}
}

func (s *AuditService) handle(ctx context.Context, job jobs.Job) error {
	log, ok := job.Payload.(*models.AuditLog)
	if !ok {
		s.logger.Error("unexpected audit payload", zap.String("job_id", job.ID))
		return nil
	}
	return s.store.Create(ctx, log)
}

func buildAuditLog(ctx context.Context, entry AuditEntry) (*models.AuditLog, error) {
	log := &models.AuditLog{
		ID:        uuid.NewString(),
		Action:    entry.Action,
		Resource:  entry.Resource,
		RequestID: requestid.FromContext(ctx),
	}
	if entry.ActorID != "" {
		actor := entry.ActorID
		log.UserID = &actor
	}
	if entry.ResourceID != "" {
		id := entry.ResourceID
		log.ResourceID = &id
	}
	var err error
	if log.OldValues, err = marshalAuditValue(entry.Before); err != nil {
		return nil, err
	}
	if log.NewValues, err = marshalAuditValue(entry.After); err != nil {
		return nil, err
	}
	return log, nil
}

func marshalAuditValue(value interface{}) ([]byte, error) {
	if value == nil {
		return nil, nil
	}
	raw, err := json.Marshal(value)
	if err != nil {
		return nil, fmt.Errorf("marshal audit value: %w", err)
	}
	return raw, nil
}
