// Package comms appends immutable communication events and keeps the
// contact's rolling counters in step with them.
package comms

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"github.com/jwalitptl/crm-api/internal/model"
	"github.com/jwalitptl/crm-api/internal/repository"
	apperrors "github.com/jwalitptl/crm-api/pkg/errors"
	"github.com/jwalitptl/crm-api/pkg/metrics"
)

type CommsService interface {
	LogCommunication(ctx context.Context, cfg *model.EngineConfig, contactID uuid.UUID, req *model.LogCommunicationRequest) (*model.CommunicationEvent, error)
	ListCommunications(ctx context.Context, cfg *model.EngineConfig, contactID uuid.UUID, p model.Pagination) ([]*model.CommunicationEvent, error)
}

type Service struct {
	communications repository.CommunicationRepository
	metrics        *metrics.Metrics
}

func NewService(communications repository.CommunicationRepository, m *metrics.Metrics) *Service {
	return &Service{communications: communications, metrics: m}
}

// LogCommunication is deliberately not idempotent: every call records a
// new physical message. Callers own de-duplication of retried sends.
// The event append and the counter bump are one atomic unit in the
// store; it never invokes the scorer.
func (s *Service) LogCommunication(ctx context.Context, cfg *model.EngineConfig, contactID uuid.UUID, req *model.LogCommunicationRequest) (*model.CommunicationEvent, error) {
	channel := model.CommunicationChannel(req.Channel)
	if !channel.Valid() {
		return nil, apperrors.BadRequest(fmt.Sprintf("invalid channel %q", req.Channel), nil)
	}
	direction := model.CommunicationDirection(req.Direction)
	if !direction.Valid() {
		return nil, apperrors.BadRequest(fmt.Sprintf("invalid direction %q", req.Direction), nil)
	}

	status := model.CommunicationStatusDelivered
	if direction == model.DirectionOutbound {
		status = model.CommunicationStatusSent
	}

	event := &model.CommunicationEvent{
		ID:        uuid.New(),
		ContactID: contactID,
		Channel:   channel,
		Direction: direction,
		Status:    status,
		Subject:   req.Subject,
		Content:   req.Content,
	}

	if err := s.communications.Append(ctx, cfg.OrganizationID, event); err != nil {
		return nil, err
	}
	s.metrics.CommunicationsLogged.WithLabelValues(string(channel), string(direction)).Inc()
	return event, nil
}

func (s *Service) ListCommunications(ctx context.Context, cfg *model.EngineConfig, contactID uuid.UUID, p model.Pagination) ([]*model.CommunicationEvent, error) {
	events, err := s.communications.ListByContact(ctx, cfg.OrganizationID, contactID, p)
	if err != nil {
		return nil, fmt.Errorf("failed to list communications: %w", err)
	}
	return events, nil
}
