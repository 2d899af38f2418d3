package repository

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"

	"github.com/jwalitptl/crm-api/internal/model"
)

// ErrDuplicate is returned when an insert loses a race against a
// concurrent sync for the same upstream record. Callers re-run the find
// phase; the operation converges on the winner's contact.
var ErrDuplicate = errors.New("contact already linked to this upstream record")

// ContactRepository is the canonical contact store. Methods that take an
// orgID are tenant-scoped; cross-tenant reads are not possible through
// this interface.
type ContactRepository interface {
	Get(ctx context.Context, orgID, id uuid.UUID) (*model.Contact, error)
	GetByProspectID(ctx context.Context, orgID, prospectID uuid.UUID) (*model.Contact, error)
	GetByPatientID(ctx context.Context, orgID, patientID uuid.UUID) (*model.Contact, error)

	// FindByMatchKey returns at most two contacts satisfying one
	// precedence rule. Two rows means the rule is ambiguous and the
	// caller must surface a conflict instead of picking one.
	FindByMatchKey(ctx context.Context, orgID uuid.UUID, key model.MatchKey) ([]*model.Contact, error)

	// Create inserts a new contact. A unique-index violation on the
	// prospect or patient back-reference surfaces as ErrDuplicate.
	Create(ctx context.Context, contact *model.Contact) error

	// UpdateProfile overwrites profile fields and lifecycle stage,
	// last-write-wins. Aggregates and source are untouched.
	UpdateProfile(ctx context.Context, contact *model.Contact) error

	// LinkPatient sets the patient back-reference on a matched contact
	// and applies the patient's profile and stage. ErrDuplicate when the
	// contact was concurrently linked to a different patient.
	LinkPatient(ctx context.Context, contact *model.Contact) error

	UpdateEngagementScore(ctx context.Context, orgID, id uuid.UUID, score int) error

	// ApplyAggregates feeds appointment/revenue aggregates from the PMS
	// sync. Nil fields are left unchanged; revenueDelta accumulates.
	ApplyAggregates(ctx context.Context, orgID, id uuid.UUID, lastAppointmentAt *time.Time, revenueDelta *float64) error

	// WithMatchLock runs fn inside a single transaction holding advisory
	// locks on the given match keys, serializing find-or-create against
	// every sync that could resolve to the same person. The repository
	// passed to fn is bound to that transaction.
	WithMatchLock(ctx context.Context, lockKeys []string, fn func(ContactRepository) error) error
}

// CommunicationRepository owns the append-only communication history.
type CommunicationRepository interface {
	// Append writes one event and bumps the contact's rolling counters
	// in the same transaction. Partial application is not possible.
	Append(ctx context.Context, orgID uuid.UUID, event *model.CommunicationEvent) error

	ListByContact(ctx context.Context, orgID, contactID uuid.UUID, p model.Pagination) ([]*model.CommunicationEvent, error)
	CountByContact(ctx context.Context, orgID, contactID uuid.UUID) (int, error)
}

// ProspectRepository reads the upstream prospect producer's records.
type ProspectRepository interface {
	Get(ctx context.Context, orgID, id uuid.UUID) (*model.Prospect, error)
}

// PatientRepository reads the upstream patient producer's records.
type PatientRepository interface {
	Get(ctx context.Context, orgID, id uuid.UUID) (*model.Patient, error)
}

// TenantRepository loads per-organization engine configuration.
type TenantRepository interface {
	GetEngineConfig(ctx context.Context, orgID uuid.UUID) (*model.EngineConfig, error)
}

// OutboxRepository is the transactional outbox drained by the worker.
type OutboxRepository interface {
	Create(ctx context.Context, event *model.OutboxEvent) error
	GetPendingEventsWithLock(ctx context.Context, limit int) ([]*model.OutboxEvent, error)
	UpdateStatus(ctx context.Context, id uuid.UUID, status model.OutboxStatus, errorMessage *string) error
	DeleteProcessedBefore(ctx context.Context, before time.Time) (int64, error)
}
