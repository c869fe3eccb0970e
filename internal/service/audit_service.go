package service

import (
	"context"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/medibook/clinic-api/internal/models"
	"github.com/medibook/clinic-api/pkg/jobs"
)

type auditLogRepository interface {
	Create(ctx context.Context, log *models.AuditLog) error
	ListByUser(ctx context.Context, userID string, limit int) ([]models.AuditLog, error)
}

// AuditService records audit trail entries asynchronously. Writes go through
// an in-memory queue so request latency never waits on the audit table.
type AuditService struct {
	repo   auditLogRepository
	queue  *jobs.Queue
	logger *zap.Logger
}

// NewAuditService constructs the audit service and its worker queue. Call
// Start before recording and Stop on shutdown.
func NewAuditService(repo auditLogRepository, cfg jobs.QueueConfig, logger *zap.Logger) *AuditService {
	if logger == nil {
		logger = zap.NewNop()
	}
	s := &AuditService{repo: repo, logger: logger}
	s.queue = jobs.NewQueue("audit", s.handle, cfg)
	return s
}

// Start launches the queue workers.
func (s *AuditService) Start(ctx context.Context) {
	s.queue.Start(ctx)
}

// Stop drains the workers.
func (s *AuditService) Stop() {
	s.queue.Stop()
}

// Record enqueues an audit entry. Failures are logged, never propagated:
// audit must not fail the operation it describes.
func (s *AuditService) Record(log *models.AuditLog) {
	if s == nil || log == nil {
		return
	}
	if log.ID == "" {
		log.ID = uuid.NewString()
	}
	if err := s.queue.Enqueue(jobs.Job{ID: log.ID, Type: log.Action, Payload: log}); err != nil {
		s.logger.Warn("failed to enqueue audit record",
			zap.String("action", log.Action),
			zap.Error(err))
	}
}

// ListByUser returns the most recent audit entries for one user.
func (s *AuditService) ListByUser(ctx context.Context, userID string, limit int) ([]models.AuditLog, error) {
	if limit <= 0 || limit > 200 {
		limit = 50
	}
	return s.repo.ListByUser(ctx, userID, limit)
}

func (s *AuditService) handle(ctx context.Context, job jobs.Job) error {
	log, ok := job.Payload.(*models.AuditLog)
	if !ok {
		s.logger.Error("audit job carried unexpected payload", zap.String("job_id", job.ID))
		return nil
	}
	return s.repo.Create(ctx, log)
}
