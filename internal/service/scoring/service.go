package scoring

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/jwalitptl/crm-api/internal/model"
	"github.com/jwalitptl/crm-api/internal/repository"
	"github.com/jwalitptl/crm-api/pkg/metrics"
)

type ScorerService interface {
	RecomputeScore(ctx context.Context, cfg *model.EngineConfig, contactID uuid.UUID) (int, error)
}

type Service struct {
	contacts repository.ContactRepository
	metrics  *metrics.Metrics
	now      func() time.Time
}

func NewService(contacts repository.ContactRepository, m *metrics.Metrics) *Service {
	return &Service{contacts: contacts, metrics: m, now: time.Now}
}

// RecomputeScore loads the contact, scores it from its stored aggregates
// and persists the result. Callers invoke it after any aggregate change;
// it is never triggered implicitly.
func (s *Service) RecomputeScore(ctx context.Context, cfg *model.EngineConfig, contactID uuid.UUID) (int, error) {
	contact, err := s.contacts.Get(ctx, cfg.OrganizationID, contactID)
	if err != nil {
		return 0, fmt.Errorf("failed to load contact for scoring: %w", err)
	}

	score := Score(contact, s.now(), cfg.Scoring)

	if err := s.contacts.UpdateEngagementScore(ctx, cfg.OrganizationID, contactID, score); err != nil {
		return 0, fmt.Errorf("failed to persist engagement score: %w", err)
	}
	s.metrics.ScoreRecomputes.Inc()
	return score, nil
}
