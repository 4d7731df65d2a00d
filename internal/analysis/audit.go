package analysis

import (
	"time"

	"github.com/google/uuid"

	"github.com/opensource-finance/covenant/internal/domain"
)

// session records the stages of one analysis run.
type session struct {
	s   *domain.AuditSession
	now func() time.Time
}

func newSession(tenantID, documentName string, now func() time.Time) *session {
	return &session{
		s: &domain.AuditSession{
			ID:           uuid.New().String(),
			TenantID:     tenantID,
			DocumentName: documentName,
			Status:       domain.SessionRunning,
			StartedAt:    now().UTC(),
			Events:       []domain.AuditEvent{},
		},
		now: now,
	}
}

func (s *session) record(stage string, data map[string]any) {
	s.s.Events = append(s.s.Events, domain.AuditEvent{
		Timestamp: s.now().UTC(),
		Stage:     stage,
		Data:      data,
	})
}

func (s *session) complete() {
	done := s.now().UTC()
	s.s.Status = domain.SessionCompleted
	s.s.CompletedAt = &done
}

func (s *session) fail(err error) {
	s.record(domain.StageError, map[string]any{"error": err.Error()})
	done := s.now().UTC()
	s.s.Status = domain.SessionFailed
	s.s.CompletedAt = &done
}
