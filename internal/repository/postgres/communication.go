package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/jwalitptl/crm-api/internal/model"
	"github.com/jwalitptl/crm-api/internal/repository"
	apperrors "github.com/jwalitptl/crm-api/pkg/errors"
)

type communicationRepository struct {
	BaseRepository
}

func NewCommunicationRepository(db *sqlx.DB) repository.CommunicationRepository {
	return &communicationRepository{BaseRepository: NewBaseRepository(db)}
}

// Append writes the event and bumps the contact counters in one
// transaction. The counter-equals-event-count invariant depends on
// these never being applied separately.
func (r *communicationRepository) Append(ctx context.Context, orgID uuid.UUID, event *model.CommunicationEvent) error {
	event.CreatedAt = time.Now()

	return r.WithTx(ctx, func(tx *sqlx.Tx) error {
		bump := `
			UPDATE crm_contacts SET
				total_communications = total_communications + 1,
				last_communication_at = $1,
				last_communication_channel = $2,
				updated_at = $1
			WHERE organization_id = $3 AND id = $4
		`
		res, err := tx.ExecContext(ctx, bump, event.CreatedAt, event.Channel, orgID, event.ContactID)
		if err != nil {
			return fmt.Errorf("failed to update contact counters: %w", err)
		}
		if n, _ := res.RowsAffected(); n == 0 {
			return apperrors.NotFound("contact", nil)
		}

		insert := `
			INSERT INTO crm_communications (id, contact_id, channel, direction, status, subject, content, created_at)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		`
		_, err = tx.ExecContext(ctx, insert,
			event.ID,
			event.ContactID,
			event.Channel,
			event.Direction,
			event.Status,
			event.Subject,
			event.Content,
			event.CreatedAt,
		)
		if err != nil {
			return fmt.Errorf("failed to append communication: %w", err)
		}
		return nil
	})
}

func (r *communicationRepository) ListByContact(ctx context.Context, orgID, contactID uuid.UUID, p model.Pagination) ([]*model.CommunicationEvent, error) {
	if p.PageSize <= 0 {
		p.PageSize = 50
	}
	if p.Page <= 0 {
		p.Page = 1
	}

	query := `
		SELECT c.* FROM crm_communications c
		JOIN crm_contacts ct ON ct.id = c.contact_id
		WHERE ct.organization_id = $1 AND c.contact_id = $2
		ORDER BY c.created_at DESC
		LIMIT $3 OFFSET $4
	`
	var events []*model.CommunicationEvent
	err := r.db.SelectContext(ctx, &events, query, orgID, contactID, p.PageSize, (p.Page-1)*p.PageSize)
	if err != nil {
		return nil, fmt.Errorf("failed to list communications: %w", err)
	}
	return events, nil
}

func (r *communicationRepository) CountByContact(ctx context.Context, orgID, contactID uuid.UUID) (int, error) {
	query := `
		SELECT COUNT(*) FROM crm_communications c
		JOIN crm_contacts ct ON ct.id = c.contact_id
		WHERE ct.organization_id = $1 AND c.contact_id = $2
	`
	var count int
	if err := r.db.GetContext(ctx, &count, query, orgID, contactID); err != nil {
		return 0, fmt.Errorf("failed to count communications: %w", err)
	}
	return count, nil
}
